package trie

import (
	"errors"

	"github.com/ethereum/go-ethereum/common"
)

// ErrKeyNotFound is returned when a traversal reaches a nil child: the
// key is genuinely absent from the tree.
var ErrKeyNotFound = errors.New("trie: key not found")

// ErrStructuralMiss is returned when a traversal reaches a hash-only
// stub that none of the supplied proof bags can resolve.
var ErrStructuralMiss = errors.New("trie: structural miss: hash stub not present in any proof bag")

// ProofBag is a set of trie nodes keyed by their own hash, the shape a
// witness, a share bag, or a learned-node table takes. Resolution walks
// the bags a caller supplies in order and returns the first match,
// implementing the "bag of proofs as a chained lookup" design: rather
// than copying nodes between maps, GetFromCache and BatchCOW are handed
// an ordered list of bags — per-tx witness, then share bag, then
// learnedNodes, then previous-learnedNodes — and consult them lazily.
type ProofBag map[common.Hash][]byte

func resolveStub(h common.Hash, bags []ProofBag) (Node, []byte, error) {
	for _, bag := range bags {
		if bag == nil {
			continue
		}
		raw, ok := bag[h]
		if !ok {
			continue
		}
		node, err := RLPToMerkleNode(raw)
		if err != nil {
			return nil, nil, err
		}
		return node, raw, nil
	}

	return nil, nil, ErrStructuralMiss
}
