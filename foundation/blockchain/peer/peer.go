// Package peer maintains the set of known neighbor verifiers: the
// nodes block proposals, learned MPT nodes, and handshake status get
// advertised to.
package peer

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Peer identifies a neighbor verifier by its RPC host.
type Peer struct {
	Host string
}

// New constructs a Peer for the given host.
func New(host string) Peer {
	return Peer{Host: host}
}

// Match reports whether host names this peer, used to keep a node from
// advertising to itself.
func (p Peer) Match(host string) bool {
	return p.Host == host
}

// Status is what a handshake exchange reports about a neighbor: how
// far its chain has advanced and what it believes its own committed
// state root to be.
type Status struct {
	LatestBlockNumber uint64      `json:"latest_block_number"`
	LatestBlockHash   common.Hash `json:"latest_block_hash"`
	LatestStateRoot   common.Hash `json:"latest_state_root"`
	KnownPeers        []Peer      `json:"known_peers"`
}

// Set is a concurrency-safe collection of known neighbor peers.
type Set struct {
	mu  sync.RWMutex
	set map[Peer]struct{}
}

// NewSet constructs an empty peer set.
func NewSet() *Set {
	return &Set{
		set: make(map[Peer]struct{}),
	}
}

// Add registers peer in the set, returning false if it was already known.
func (s *Set) Add(peer Peer) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.set[peer]; exists {
		return false
	}

	s.set[peer] = struct{}{}
	return true
}

// Remove drops peer from the set.
func (s *Set) Remove(peer Peer) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.set, peer)
}

// Copy returns every known peer other than self, the list the
// generator fans block proposals and learned nodes out to.
func (s *Set) Copy(self string) []Peer {
	s.mu.RLock()
	defer s.mu.RUnlock()

	peers := make([]Peer, 0, len(s.set))
	for peer := range s.set {
		if !peer.Match(self) {
			peers = append(peers, peer)
		}
	}

	return peers
}

// Len reports how many peers are currently known.
func (s *Set) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.set)
}
