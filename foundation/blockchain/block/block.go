// Package block defines the header and block shapes the generator,
// learner, and execution engine all share: the unit of work a PoS
// timer or a peer advertisement produces, and the unit C4's advertise
// routes decode off the wire.
package block

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/rainblock/verifier/foundation/blockchain/rlphash"
)

// ExtraData is the fixed marker every header this verifier proposes
// carries, the way the teacher's PoW header stamped a client identity.
var ExtraData = []byte("rainblock")

// Header is the fully populated block header produced at the end of
// the race step: parentHash, beneficiary, stateRoot and
// transactionsRoot out of execution, and the PoA/PoS placeholders
// (uncleHash, receiptsRoot, logsBloom, mixHash, nonce) zeroed since
// mining/consensus proof is out of scope here. Field order matches the
// canonical Ethereum header RLP encoding.
type Header struct {
	ParentHash       common.Hash
	UncleHash        common.Hash
	Beneficiary      common.Address
	StateRoot        common.Hash
	TransactionsRoot common.Hash
	ReceiptsRoot     common.Hash
	LogsBloom        [256]byte
	Difficulty       uint64
	Number           uint64
	GasLimit         uint64
	GasUsed          uint64
	Timestamp        uint64
	ExtraData        []byte
	MixHash          common.Hash
	Nonce            uint64
}

// Hash returns Keccak256(RLP(header)) — the value a block's successor
// uses as its ParentHash.
func (h Header) Hash() (common.Hash, error) {
	return rlphash.Hash(h)
}

// Block pairs a header with the raw, already-RLP-encoded transactions
// it commits to. Transactions are kept as opaque bytes here: decoding
// them into typed fields is the execution engine's job, not the
// block's.
type Block struct {
	Header       Header
	Transactions [][]byte
}

// Hash returns the hash of the block's header.
func (b Block) Hash() (common.Hash, error) {
	return b.Header.Hash()
}

// rlpBlock mirrors the wire format spec.md names: RLP([header,
// transactions, uncles=[]]) — uncles always empty, since mining-reward
// and uncle accounting are out of scope.
type rlpBlock struct {
	Header       Header
	Transactions [][]byte
	Uncles       []Header
}

// Encode serializes a block the way §6's "Block format" describes:
// RLP([header, transactions, uncles=[]]).
func Encode(b Block) ([]byte, error) {
	return rlp.EncodeToBytes(rlpBlock{
		Header:       b.Header,
		Transactions: b.Transactions,
		Uncles:       []Header{},
	})
}

// Decode parses the wire format Encode produces, the shape a peer's
// advertise-block RPC delivers.
func Decode(data []byte) (Block, error) {
	var dec rlpBlock
	if err := rlp.DecodeBytes(data, &dec); err != nil {
		return Block{}, fmt.Errorf("block: decode: %w", err)
	}
	return Block{Header: dec.Header, Transactions: dec.Transactions}, nil
}
