package trie

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
)

// Node is a single Merkle-Patricia trie node. The concrete types are
// hashNode (an unresolved stub, present only as a 32 byte digest until a
// proof bag supplies its bytes), valueNode (a leaf's raw payload —
// account RLP in the state trie, raw tx bytes in the transactions
// trie), *shortNode (a leaf or extension, key-compressed the way real
// MPTs are), and *fullNode (a 16-way branch plus an optional value at
// the branch itself).
//
// Every non-leaf child is always referenced by hash rather than
// embedded inline, which keeps serialization uniform: every node
// encodes as an RLP list of byte strings, never a mix of strings and
// nested lists.
type Node interface {
	isNode()
}

type hashNode common.Hash

func (hashNode) isNode() {}

type valueNode []byte

func (valueNode) isNode() {}

// shortNode is a leaf (Val is a valueNode) or an extension (Val is a
// hashNode referencing the subtree one level down). Key is the hex
// nibble path, including the trailing terminator nibble for leaves.
type shortNode struct {
	Key []byte
	Val Node
}

func (*shortNode) isNode() {}

// fullNode is a 16-way branch. Children[0..15] are indexed by nibble
// value; Children[16] holds a value when a key terminates exactly at
// this branch.
type fullNode struct {
	Children [17]Node
}

func (*fullNode) isNode() {}

// EmptyRootHash is Keccak256 of the RLP encoding of an empty trie
// (RLP(""), a single 0x80 byte) — the root hash of a trie with no
// entries at all.
var EmptyRootHash = Bytes32(emptyRootHash())

// Serialize returns the canonical RLP encoding of a node: the bytes
// `root_node.serialize()` and `rlp_to_merkle_node` operate on. Every
// node type encodes as a list of byte strings — 2 for a short node, 17
// for a full node — so decoding only needs to count list items.
func Serialize(n Node) ([]byte, error) {
	switch n := n.(type) {
	case *shortNode:
		val, err := childBytes(n.Val)
		if err != nil {
			return nil, err
		}
		return rlp.EncodeToBytes([][]byte{hexToCompact(n.Key), val})

	case *fullNode:
		items := make([][]byte, 17)
		for i, child := range n.Children {
			val, err := childBytes(child)
			if err != nil {
				return nil, err
			}
			items[i] = val
		}
		return rlp.EncodeToBytes(items)

	case nil:
		return rlp.EncodeToBytes([]byte{})

	default:
		return nil, fmt.Errorf("trie: cannot serialize node of type %T", n)
	}
}

// childBytes renders a child reference the way a parent node stores
// it: nil for an absent branch slot, the raw payload for a value, or
// the 32 byte hash for anything else (the child is always hashed, not
// inlined, in this implementation).
func childBytes(n Node) ([]byte, error) {
	switch n := n.(type) {
	case nil:
		return nil, nil
	case hashNode:
		return common.Hash(n).Bytes(), nil
	case valueNode:
		return []byte(n), nil
	default:
		h, _, err := hashOf(n)
		if err != nil {
			return nil, err
		}
		return h.Bytes(), nil
	}
}

// hashOf returns the Keccak256 digest of a node's serialized bytes
// along with the bytes themselves, so callers that also need to cache
// the encoding (e.g. for the used-nodes bag) avoid serializing twice.
func hashOf(n Node) (common.Hash, []byte, error) {
	data, err := Serialize(n)
	if err != nil {
		return common.Hash{}, nil, err
	}
	return Bytes32(data), data, nil
}

// RLPToMerkleNode decodes raw node bytes — as carried in a witness bag
// or a neighbor's advertised node — into a Node whose children are
// hash-only stubs. This is the `rlp_to_merkle_node` contract; the
// trie's own leaf value shape (Account RLP, raw tx bytes, ...) is
// opaque to this package, so no value_decoder is needed here — decoding
// the final leaf payload is the caller's job (see GetFromCache).
func RLPToMerkleNode(data []byte) (Node, error) {
	var items [][]byte
	if err := rlp.DecodeBytes(data, &items); err != nil {
		return nil, fmt.Errorf("trie: decode node: %w", err)
	}

	switch len(items) {
	case 2:
		hex := compactToHex(items[0])
		if hasTerm(hex) {
			return &shortNode{Key: hex, Val: valueNode(items[1])}, nil
		}
		if len(items[1]) != common.HashLength {
			return nil, fmt.Errorf("trie: extension child must be a %d byte hash, got %d", common.HashLength, len(items[1]))
		}
		return &shortNode{Key: hex, Val: hashNode(common.BytesToHash(items[1]))}, nil

	case 17:
		var full fullNode
		for i := 0; i < 16; i++ {
			if len(items[i]) == 0 {
				continue
			}
			if len(items[i]) != common.HashLength {
				return nil, fmt.Errorf("trie: branch child %d must be a %d byte hash, got %d", i, common.HashLength, len(items[i]))
			}
			full.Children[i] = hashNode(common.BytesToHash(items[i]))
		}
		if len(items[16]) > 0 {
			full.Children[16] = valueNode(items[16])
		}
		return &full, nil

	default:
		return nil, fmt.Errorf("trie: node has %d items, want 2 or 17", len(items))
	}
}

// prefixLen returns how many leading nibbles a and b share.
func prefixLen(a, b []byte) int {
	i := 0
	for i < len(a) && i < len(b) && a[i] == b[i] {
		i++
	}
	return i
}

// hasTerm reports whether a hex nibble path carries the trie
// terminator (16), meaning it names a leaf rather than an extension.
func hasTerm(hex []byte) bool {
	return len(hex) > 0 && hex[len(hex)-1] == 16
}

// keybytesToHex expands a byte key into a nibble path with a trailing
// terminator nibble, the form every traversal and insert operates on.
func keybytesToHex(key []byte) []byte {
	l := len(key)*2 + 1
	nibbles := make([]byte, l)
	for i, b := range key {
		nibbles[i*2] = b / 16
		nibbles[i*2+1] = b % 16
	}
	nibbles[l-1] = 16
	return nibbles
}

// hexToCompact packs a nibble path (hex-prefix encoding) into the
// compact wire form stored in a shortNode's serialized Key field.
func hexToCompact(hex []byte) []byte {
	terminator := byte(0)
	if hasTerm(hex) {
		terminator = 1
		hex = hex[:len(hex)-1]
	}

	buf := make([]byte, len(hex)/2+1)
	buf[0] = terminator << 5
	if len(hex)&1 == 1 {
		buf[0] |= 1 << 4
		buf[0] |= hex[0]
		hex = hex[1:]
	}

	for bi, ni := 0, 0; ni < len(hex); bi, ni = bi+1, ni+2 {
		buf[bi+1] = hex[ni]<<4 | hex[ni+1]
	}

	return buf
}

// compactToHex reverses hexToCompact.
func compactToHex(compact []byte) []byte {
	if len(compact) == 0 {
		return nil
	}

	base := keybytesToHex(compact)
	base = base[:len(base)-1] // keybytesToHex's own terminator, not ours

	if base[0]&1 == 0 {
		base = base[2:]
	} else {
		base = base[1:]
	}

	if compact[0]&0x20 != 0 {
		base = append(base, 16)
	}

	return base
}
