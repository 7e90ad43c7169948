// Package account maintains the in-trie representation of a single
// account: its nonce, balance, code hash, and storage root. This is the
// leaf value the verifier's partial Merkle-Patricia trie stores and the
// execution engine reads and writes during block processing.
package account

import (
	"bytes"
	"io"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"
)

// EmptyStringHash is Keccak256 of the empty byte sequence. An account
// with this CodeHash is an externally-owned account (has no code).
var EmptyStringHash = crypto.Keccak256Hash(nil)

// EmptyBufferHash is Keccak256 of the RLP encoding of an empty trie. An
// account with this StorageRoot has no storage slots.
var EmptyBufferHash = crypto.Keccak256Hash([]byte{0x80})

// ContractCreation is the sentinel "to" address meaning a transaction
// creates a new contract rather than calling an existing account. It is
// the zero address, matching Ethereum convention.
var ContractCreation = common.Address{}

// Account represents the state the trie stores for a single address.
type Account struct {
	Nonce       *uint256.Int
	Balance     *uint256.Int
	CodeHash    common.Hash
	StorageRoot common.Hash
}

// New constructs an Account with empty code and empty storage, the shape
// a freshly funded externally-owned account takes.
func New(nonce, balance *uint256.Int) Account {
	return Account{
		Nonce:       nonce,
		Balance:     balance,
		CodeHash:    EmptyStringHash,
		StorageRoot: EmptyBufferHash,
	}
}

// HasCode reports whether this account has contract code associated
// with it.
func (a Account) HasCode() bool {
	return a.CodeHash != EmptyStringHash
}

// HasStorage reports whether this account's storage trie is non-empty.
func (a Account) HasStorage() bool {
	return a.StorageRoot != EmptyBufferHash
}

// Copy returns an independent draft of the account: mutating the
// returned value's Nonce or Balance never affects the receiver. The
// execution engine uses this to build a write-set entry before the
// underlying trie node is ever touched.
func (a Account) Copy() Account {
	return Account{
		Nonce:       new(uint256.Int).Set(a.Nonce),
		Balance:     new(uint256.Int).Set(a.Balance),
		CodeHash:    a.CodeHash,
		StorageRoot: a.StorageRoot,
	}
}

// rlpAccount mirrors Account field-for-field in the canonical RLP tuple
// order: nonce, balance, codeHash, storageRoot.
type rlpAccount struct {
	Nonce       *uint256.Int
	Balance     *uint256.Int
	CodeHash    []byte
	StorageRoot []byte
}

// EncodeRLP implements rlp.Encoder.
func (a Account) EncodeRLP(w io.Writer) error {
	enc := rlpAccount{
		Nonce:       a.Nonce,
		Balance:     a.Balance,
		CodeHash:    a.CodeHash.Bytes(),
		StorageRoot: a.StorageRoot.Bytes(),
	}
	return rlp.Encode(w, &enc)
}

// DecodeRLP implements rlp.Decoder.
func (a *Account) DecodeRLP(s *rlp.Stream) error {
	var dec rlpAccount
	if err := s.Decode(&dec); err != nil {
		return err
	}

	a.Nonce = dec.Nonce
	a.Balance = dec.Balance
	a.CodeHash = common.BytesToHash(dec.CodeHash)
	a.StorageRoot = common.BytesToHash(dec.StorageRoot)

	return nil
}

// Equal reports whether two accounts encode to the same RLP bytes, the
// definition of account equality the trie cares about.
func Equal(a, b Account) bool {
	var bufA, bufB bytes.Buffer
	if err := a.EncodeRLP(&bufA); err != nil {
		return false
	}
	if err := b.EncodeRLP(&bufB); err != nil {
		return false
	}
	return bytes.Equal(bufA.Bytes(), bufB.Bytes())
}
