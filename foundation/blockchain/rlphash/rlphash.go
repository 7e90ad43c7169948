// Package rlphash provides the one hashing primitive the verifier core
// builds every other commitment on: Keccak-256 of a value's RLP
// encoding. Headers, blocks, accounts, and trie nodes are all hashed
// this same way, so it lives in its own package rather than being
// duplicated per caller.
package rlphash

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
)

// hasherPool reuses Keccak state across calls, avoiding an allocation
// per hash on the generator's hot path. crypto.KeccakState is the same
// sponge interface go-ethereum's own rlpHash helper pools.
var hasherPool = sync.Pool{
	New: func() any {
		return crypto.NewKeccakState()
	},
}

// Hash returns Keccak256(RLP(v)). Callers pass headers, blocks,
// transactions, accounts, and trie nodes — anything with an RLP
// encoding that needs a canonical 32 byte digest.
func Hash(v any) (common.Hash, error) {
	data, err := rlp.EncodeToBytes(v)
	if err != nil {
		return common.Hash{}, err
	}

	h := hasherPool.Get().(crypto.KeccakState)
	defer hasherPool.Put(h)
	h.Reset()

	var out common.Hash
	h.Write(data)
	h.Read(out[:])

	return out, nil
}

// Bytes returns Keccak256(data) directly, for callers that already
// have the encoded bytes in hand (e.g. hashing a serialized trie node).
func Bytes(data []byte) common.Hash {
	return crypto.Keccak256Hash(data)
}
