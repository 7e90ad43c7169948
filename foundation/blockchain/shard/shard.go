// Package shard defines the storage-shard protocol the proposal step
// speaks: a committed block's write-set split 16 ways by address hash,
// fire-and-wait-per-shard. The client interface is a consumed
// contract; two implementations ship here: HTTPClient, a JSON-over-HTTP
// transport, and Stub, an in-memory double.
package shard

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Count is the fixed number of storage shards the protocol assumes.
const Count = 16

// Index returns which of the 16 shards owns account: the top nibble
// (high 4 bits of the first byte) of Keccak256(account).
func Index(addr common.Address) int {
	h := crypto.Keccak256(addr.Bytes())
	return int(h[0] >> 4)
}

// UpdateOp is a single account mutation routed to its owning shard.
// Account is carried unhashed — the shard itself hashes it again to
// confirm ownership — balance as a 32 byte big-endian word, nonce as a
// fixed 64 bit integer, matching the wire contract exactly.
type UpdateOp struct {
	Account common.Address
	Balance [32]byte
	Nonce   uint64
}

// UpdateMsg is what each of the 16 shard RPCs receives: the newly
// committed block, the serialized root subtree so the shard can
// reanchor its local view of the trie, and the operations this shard
// owns.
type UpdateMsg struct {
	RLPBlock        []byte
	MerkleTreeNodes []byte
	Operations      []UpdateOp
}

// Reply is the shard's acknowledgement of an Update call.
type Reply struct {
	Accepted bool
}

// Client is the per-shard storage connection the generator's propose
// step calls into. Real deployments back this with whatever RPC
// transport the storage tier speaks; Stub below is a reference
// implementation with no network dependency, useful for tests and for
// running a verifier with no storage tier attached.
type Client interface {
	Update(ctx context.Context, msg UpdateMsg) (Reply, error)
}

// Route splits a flat set of operations into one UpdateMsg per shard,
// keyed by Index(op.Account). Shards with no operations this block
// still receive an UpdateMsg (empty Operations) so they stay
// reanchored to the new root.
func Route(rlpBlock, merkleTreeNodes []byte, ops []UpdateOp) [Count]UpdateMsg {
	var msgs [Count]UpdateMsg
	for i := range msgs {
		msgs[i] = UpdateMsg{RLPBlock: rlpBlock, MerkleTreeNodes: merkleTreeNodes}
	}

	for _, op := range ops {
		i := Index(op.Account)
		msgs[i].Operations = append(msgs[i].Operations, op)
	}

	return msgs
}

// Stub is an in-memory Client that always succeeds, recording the
// operations it was asked to apply. The generator tests use it in every
// shard slot; the verifier's startup wiring does not, and leaves a slot
// with no configured host nil, which the propose step skips.
type Stub struct {
	ShardIndex int
	Applied    []UpdateOp
}

// NewStub constructs a Stub for the given shard index.
func NewStub(shardIndex int) *Stub {
	return &Stub{ShardIndex: shardIndex}
}

// Update implements Client.
func (s *Stub) Update(ctx context.Context, msg UpdateMsg) (Reply, error) {
	select {
	case <-ctx.Done():
		return Reply{}, fmt.Errorf("shard %d: %w", s.ShardIndex, ctx.Err())
	default:
	}

	s.Applied = append(s.Applied, msg.Operations...)
	return Reply{Accepted: true}, nil
}
