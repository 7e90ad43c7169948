package peer

import (
	"context"
)

// EventHandler is the logging callback every core package accepts
// instead of importing a logger directly.
type EventHandler func(v string, args ...any)

// Syncer performs the one-shot peer-discovery pass a verifier runs on
// startup and on a periodic tick, grounded on the teacher's
// worker/sync.go and worker/peer.go peer-refresh loop. Unlike the
// teacher's ledger node, this verifier's transaction model is
// client-submitted-with-witness rather than peer-gossiped, so there is
// no mempool to pull and no block-backfill RPC to call — sync here is
// purely handshake-based peer discovery and self-announcement, the
// subset of the teacher's routine that still applies to a
// learner-push architecture.
type Syncer struct {
	self      string
	peers     *Set
	client    *Client
	evHandler EventHandler
}

// NewSyncer constructs a Syncer. evHandler may be nil.
func NewSyncer(self string, peers *Set, client *Client, evHandler EventHandler) *Syncer {
	if evHandler == nil {
		evHandler = func(string, ...any) {}
	}
	return &Syncer{self: self, peers: peers, client: client, evHandler: evHandler}
}

// Sync handshakes with every currently known peer, drops any that
// don't answer, and announces this node to the survivors so their own
// known-peer sets grow to include it — mirroring
// runPeersOperation's two passes (refresh, then announce) but without
// the teacher's mempool/block pull, which has no analogue in this
// verifier's proof-carrying submission model.
func (s *Syncer) Sync(ctx context.Context) {
	s.evHandler("peer: sync: started")
	defer s.evHandler("peer: sync: completed")

	for _, p := range s.peers.Copy(s.self) {
		if _, _, beneficiary, err := s.client.Handshake(ctx, p.Host); err != nil {
			s.evHandler("peer: sync: handshake: %s: ERROR: %s", p.Host, err)
			s.peers.Remove(p)
			continue
		} else {
			s.evHandler("peer: sync: handshake: %s: beneficiary[%s]", p.Host, beneficiary)
		}
	}

	for _, p := range s.peers.Copy(s.self) {
		if err := s.client.AdvertiseNeighbor(ctx, p.Host, s.self); err != nil {
			s.evHandler("peer: sync: advertise neighbor: %s: ERROR: %s", p.Host, err)
		}
	}
}
