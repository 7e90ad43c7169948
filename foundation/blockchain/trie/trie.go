// Package trie implements the cached, prunable Merkle-Patricia Tree the
// verifier core treats as an external contract: get_from_cache,
// batch_cow, root_hash, prune_state_cache, and rlp_to_merkle_node. Both
// the account state tree and the per-block transactions tree are
// instances of this same structure, keyed by a 32 byte digest and
// valued by an opaque RLP payload.
//
// Nodes deeper than a configured prune depth are collapsed to hash-only
// stubs to bound memory; traversal resolves a stub by consulting, in
// order, whatever ProofBags the caller supplies — the per-transaction
// witness bag, the block's share bag, the learner's current and
// previous learned-node tables. A stub with no matching bytes in any
// bag is a StructuralMiss.
package trie

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Bytes32 hashes raw bytes with Keccak256, the one digest function
// every node hash and every address/key hash in this package goes
// through.
func Bytes32(data []byte) common.Hash {
	return crypto.Keccak256Hash(data)
}

func emptyRootHash() []byte {
	return []byte{0x80}
}

// Trie is a cached, immutable-per-generation Merkle-Patricia Tree.
// BatchCOW never mutates the receiver — it returns a new *Trie sharing
// every subtree the puts didn't touch.
type Trie struct {
	root       Node
	pruneDepth int
}

// NewEmpty constructs a trie with no entries. pruneDepth bounds how
// many levels PruneStateCache keeps fully resolved before collapsing
// the rest to hash stubs.
func NewEmpty(pruneDepth int) *Trie {
	return &Trie{pruneDepth: pruneDepth}
}

// NewFromRoot wraps an already-built node tree — used when the
// genesis loader or a peer-block adoption hands back a fresh root.
func NewFromRoot(root Node, pruneDepth int) *Trie {
	return &Trie{root: root, pruneDepth: pruneDepth}
}

// RootNode returns the trie's root node, possibly nil for an empty
// trie or a hashNode stub if the root itself has been pruned.
func (t *Trie) RootNode() Node {
	return t.root
}

// RootHash returns the trie's commitment: Keccak256 of the root node's
// serialized bytes, or EmptyRootHash for an empty trie.
func (t *Trie) RootHash() common.Hash {
	if t.root == nil {
		return EmptyRootHash
	}

	h, _, err := hashOf(t.root)
	if err != nil {
		return common.Hash{}
	}

	return h
}

// GetFromCache reads the value stored at key, decoding the leaf's raw
// bytes with decode. Every concrete node touched during traversal is
// recorded into used (hash -> serialized bytes) so it can later be
// re-advertised as a witness. A hash-only stub encountered mid-
// traversal is resolved against bags in order; the first bag holding
// the stub's bytes wins, and that resolution is additionally recorded
// into resolved (nilable) — the subset of used that came from a bag
// rather than already being live in memory, which is what a caller
// checking "did every bag-resolution land in an accounted-for bag"
// needs instead of the broader used. Returns ErrKeyNotFound when the
// key is genuinely absent, or ErrStructuralMiss when a stub can't be
// resolved by any supplied bag.
func GetFromCache[T any](t *Trie, key []byte, decode func([]byte) (T, error), used, resolved map[common.Hash][]byte, bags ...ProofBag) (T, error) {
	var zero T

	raw, err := get(t.root, keybytesToHex(key), used, resolved, bags)
	if err != nil {
		return zero, err
	}

	return decode(raw)
}

func get(n Node, key []byte, used, resolved map[common.Hash][]byte, bags []ProofBag) (valueNode, error) {
	switch n := n.(type) {
	case nil:
		return nil, ErrKeyNotFound

	case hashNode:
		res, raw, err := resolveStub(common.Hash(n), bags)
		if err != nil {
			return nil, err
		}
		recordRaw(common.Hash(n), raw, used)
		recordRaw(common.Hash(n), raw, resolved)
		return get(res, key, used, resolved, bags)

	case valueNode:
		if len(key) != 0 {
			return nil, ErrKeyNotFound
		}
		return n, nil

	case *shortNode:
		recordNode(n, used)
		matchlen := prefixLen(key, n.Key)
		if matchlen < len(n.Key) {
			return nil, ErrKeyNotFound
		}
		return get(n.Val, key[matchlen:], used, resolved, bags)

	case *fullNode:
		recordNode(n, used)
		if len(key) == 0 {
			return get(n.Children[16], nil, used, resolved, bags)
		}
		return get(n.Children[key[0]], key[1:], used, resolved, bags)

	default:
		return nil, ErrStructuralMiss
	}
}

// BatchCOW applies puts (raw key bytes -> raw leaf payload) and returns
// a new tree sharing every subtree the puts didn't reach. puts, used,
// resolved, and bags follow the same chained-resolution rules as
// GetFromCache.
func (t *Trie) BatchCOW(puts map[string][]byte, used, resolved map[common.Hash][]byte, bags ...ProofBag) (*Trie, error) {
	root := t.root

	for keyStr, val := range puts {
		var err error
		root, err = insert(root, keybytesToHex([]byte(keyStr)), valueNode(val), used, resolved, bags)
		if err != nil {
			return nil, err
		}
	}

	return &Trie{root: root, pruneDepth: t.pruneDepth}, nil
}

func insert(n Node, key []byte, value valueNode, used, resolved map[common.Hash][]byte, bags []ProofBag) (Node, error) {
	if len(key) == 0 {
		return value, nil
	}

	switch n := n.(type) {
	case nil:
		return &shortNode{Key: append([]byte(nil), key...), Val: value}, nil

	case hashNode:
		res, raw, err := resolveStub(common.Hash(n), bags)
		if err != nil {
			return nil, err
		}
		recordRaw(common.Hash(n), raw, used)
		recordRaw(common.Hash(n), raw, resolved)
		return insert(res, key, value, used, resolved, bags)

	case valueNode:
		return value, nil

	case *shortNode:
		matchlen := prefixLen(key, n.Key)
		if matchlen == len(n.Key) {
			newVal, err := insert(n.Val, key[matchlen:], value, used, resolved, bags)
			if err != nil {
				return nil, err
			}
			return &shortNode{Key: n.Key, Val: newVal}, nil
		}

		branch := &fullNode{}
		branch.Children[n.Key[matchlen]] = attach(n.Key[matchlen+1:], n.Val)

		newChild, err := insert(nil, key[matchlen+1:], value, used, resolved, bags)
		if err != nil {
			return nil, err
		}
		branch.Children[key[matchlen]] = newChild

		if matchlen == 0 {
			return branch, nil
		}
		return &shortNode{Key: append([]byte(nil), key[:matchlen]...), Val: branch}, nil

	case *fullNode:
		newChild, err := insert(n.Children[key[0]], key[1:], value, used, resolved, bags)
		if err != nil {
			return nil, err
		}
		cpy := &fullNode{Children: n.Children}
		cpy.Children[key[0]] = newChild
		return cpy, nil

	default:
		return nil, ErrStructuralMiss
	}
}

// attach wraps val in a shortNode for the given remaining key, or
// returns val unwrapped if there's no remaining key to encode — used
// when a shortNode splits and one side's leftover path is empty.
func attach(remainingKey []byte, val Node) Node {
	if len(remainingKey) == 0 {
		return val
	}
	return &shortNode{Key: append([]byte(nil), remainingKey...), Val: val}
}

// PruneStateCache collapses every node deeper than the trie's configured
// prune depth into a hash-only stub, bounding how much of the tree
// stays resolved in memory between blocks.
func (t *Trie) PruneStateCache() {
	t.root = prune(t.root, t.pruneDepth)
}

func prune(n Node, depth int) Node {
	switch n := n.(type) {
	case nil, hashNode, valueNode:
		return n

	case *shortNode:
		if depth <= 0 {
			if h, _, err := hashOf(n); err == nil {
				return hashNode(h)
			}
			return n
		}
		return &shortNode{Key: n.Key, Val: prune(n.Val, depth-1)}

	case *fullNode:
		if depth <= 0 {
			if h, _, err := hashOf(n); err == nil {
				return hashNode(h)
			}
			return n
		}
		cpy := &fullNode{}
		for i, c := range n.Children {
			cpy.Children[i] = prune(c, depth-1)
		}
		return cpy

	default:
		return n
	}
}

func recordNode(n Node, used map[common.Hash][]byte) {
	if used == nil {
		return
	}
	if h, data, err := hashOf(n); err == nil {
		used[h] = data
	}
}

func recordRaw(h common.Hash, raw []byte, used map[common.Hash][]byte) {
	if used == nil {
		return
	}
	used[h] = raw
}
