// Package txqueue holds the transaction record the verifier carries
// from submission through execution, and the FIFO queue the block
// generator drains from. Ordering here is purely queue-insertion order
// — there is no gas-price reordering, matching the specification's
// tie-break rule.
package txqueue

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"
	"github.com/rainblock/verifier/foundation/blockchain/account"
	"github.com/rainblock/verifier/foundation/blockchain/trie"
)

// ErrorCode is the wire-level outcome surfaced to a submitting client
// once its transaction has been processed.
type ErrorCode int

const (
	// Success means the transaction was applied.
	Success ErrorCode = iota
	// Invalid means the transaction was rejected — a decode failure,
	// a stale nonce, an unresolvable account, or an execution error.
	Invalid
)

// Fields are the decoded contents of a submitted transaction. From is
// taken directly off the wire: signature recovery is out of scope
// here, the Non-goal the specification names explicitly.
type Fields struct {
	Nonce *uint256.Int
	From  common.Address
	To    common.Address
	Value *uint256.Int
}

// rlpFields mirrors Fields in canonical RLP tuple order.
type rlpFields struct {
	Nonce *uint256.Int
	From  common.Address
	To    common.Address
	Value *uint256.Int
}

// DecodeFields parses the raw RLP transaction bytes into Fields.
func DecodeFields(txBinary []byte) (Fields, error) {
	var dec rlpFields
	if err := rlp.DecodeBytes(txBinary, &dec); err != nil {
		return Fields{}, fmt.Errorf("txqueue: decode transaction: %w", err)
	}

	return Fields{
		Nonce: dec.Nonce,
		From:  dec.From,
		To:    dec.To,
		Value: dec.Value,
	}, nil
}

// EncodeFields re-encodes Fields the same way DecodeFields expects to
// read them back, used by callers (tests, a future transaction
// submission client) that need to build a wire-compatible tx.
func EncodeFields(f Fields) ([]byte, error) {
	return rlp.EncodeToBytes(rlpFields{
		Nonce: f.Nonce,
		From:  f.From,
		To:    f.To,
		Value: f.Value,
	})
}

// Transaction is the full in-flight record: everything carried from
// the moment a client submits a transaction through to the reply
// handed back once it has been ordered and executed (or dropped).
type Transaction struct {
	TxHash      common.Hash
	Tx          Fields
	TxBinary    []byte
	Proofs      map[common.Hash][]byte
	FromHash    common.Hash
	ToHash      common.Hash
	ReplyHandle string
	ErrorCode   ErrorCode
}

// Decode builds a Transaction record from a submitted tx's raw bytes
// and its witness bag (a list of raw RLP-encoded MPT node bytes). Every
// witness is hashed, decoded into an MPT node to confirm it is
// structurally valid, and indexed into Proofs keyed by its own hash,
// the per-transaction proof map the execution engine consults. A
// witness that fails to decode is rejected here rather than surfacing
// later as an execution-time inconsistency.
//
// Decode never touches global state — it is pure parsing — so a
// decode failure can be reported synchronously without having mutated
// anything, the invariant the RPC surface's submit-transaction
// operation relies on.
func Decode(txBinary []byte, witnesses [][]byte, replyHandle string) (Transaction, error) {
	fields, err := DecodeFields(txBinary)
	if err != nil {
		return Transaction{}, err
	}

	proofs := make(map[common.Hash][]byte, len(witnesses))
	for _, w := range witnesses {
		if _, err := trie.RLPToMerkleNode(w); err != nil {
			return Transaction{}, fmt.Errorf("txqueue: decode witness: %w", err)
		}
		proofs[crypto.Keccak256Hash(w)] = w
	}

	return Transaction{
		TxHash:      crypto.Keccak256Hash(txBinary),
		Tx:          fields,
		TxBinary:    txBinary,
		Proofs:      proofs,
		FromHash:    crypto.Keccak256Hash(fields.From.Bytes()),
		ToHash:      crypto.Keccak256Hash(fields.To.Bytes()),
		ReplyHandle: replyHandle,
		ErrorCode:   Success,
	}, nil
}

// IsContractCreation reports whether this transaction targets the
// CONTRACT_CREATION sentinel rather than an existing account.
func (t Transaction) IsContractCreation() bool {
	return t.Tx.To == account.ContractCreation
}
