// Package genesis maintains access to the genesis account dump: the
// one-shot file (or stream) that seeds the verifier's state trie
// before the first block is generated.
package genesis

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"github.com/rainblock/verifier/foundation/blockchain/account"
	"github.com/rainblock/verifier/foundation/blockchain/trie"
)

// ErrHasStorage is returned for a genesis entry that declares non-empty
// storage; importing contract storage at genesis isn't supported yet.
var ErrHasStorage = errors.New("genesis: accounts with non-empty storage are not yet supported")

// ErrCodeHashMismatch is returned when a genesis entry's declared
// codeHash doesn't match Keccak256 of the code bytes it ships with.
var ErrCodeHashMismatch = errors.New("genesis: declared codeHash does not match Keccak256(code)")

// ErrStateRootMismatch is returned when the trie built from the dump
// doesn't commit to the header's declared stateRoot.
var ErrStateRootMismatch = errors.New("genesis: computed state root does not match genesis header")

// Header carries the chain parameters a genesis dump declares alongside
// its accounts.
type Header struct {
	Date        time.Time      `json:"date"`
	ChainID     uint16         `json:"chainId"`
	Difficulty  uint16         `json:"difficulty"`
	Beneficiary common.Address `json:"beneficiary"`
	StateRoot   common.Hash    `json:"stateRoot"`
}

// Entry is a single account row in the genesis dump.
type Entry struct {
	Address  common.Address    `json:"address"`
	Nonce    uint64            `json:"nonce"`
	Balance  string            `json:"balance"` // decimal string; too large for JSON numbers in general
	Code     []byte            `json:"code,omitempty"`
	CodeHash common.Hash       `json:"codeHash"`
	Storage  map[string]string `json:"storage,omitempty"`
}

// Genesis is the fully decoded dump: chain header plus account rows.
type Genesis struct {
	Header   Header  `json:"header"`
	Accounts []Entry `json:"accounts"`
}

// Load reads a genesis dump from r — plain JSON or gzip-compressed JSON,
// detected by sniffing the gzip magic number rather than trusting a file
// extension, so a streamed HTTP body behaves the same as a local file —
// and imports it into a fresh trie with the given prune depth.
//
// Every entry's codeHash is checked against Keccak256(code); entries
// declaring non-empty storage are rejected. After import the trie is
// pruned once and its root hash is asserted against the header's
// declared stateRoot.
func Load(r io.Reader, pruneDepth int) (*trie.Trie, Genesis, error) {
	br := bufio.NewReader(r)

	magic, err := br.Peek(2)
	if err != nil && err != io.EOF {
		return nil, Genesis{}, fmt.Errorf("genesis: peek stream header: %w", err)
	}

	var reader io.Reader = br
	if len(magic) == 2 && magic[0] == 0x1f && magic[1] == 0x8b {
		gz, err := gzip.NewReader(br)
		if err != nil {
			return nil, Genesis{}, fmt.Errorf("genesis: open gzip stream: %w", err)
		}
		defer gz.Close()
		reader = gz
	}

	var gen Genesis
	if err := json.NewDecoder(reader).Decode(&gen); err != nil {
		return nil, Genesis{}, fmt.Errorf("genesis: decode dump: %w", err)
	}

	puts := make(map[string][]byte, len(gen.Accounts))

	for _, entry := range gen.Accounts {
		if len(entry.Storage) != 0 {
			return nil, Genesis{}, fmt.Errorf("%w: %s", ErrHasStorage, entry.Address)
		}

		if crypto.Keccak256Hash(entry.Code) != entry.CodeHash {
			return nil, Genesis{}, fmt.Errorf("%w: %s", ErrCodeHashMismatch, entry.Address)
		}

		balance, err := parseBalance(entry.Balance)
		if err != nil {
			return nil, Genesis{}, fmt.Errorf("genesis: account %s: %w", entry.Address, err)
		}

		acct := account.Account{
			Nonce:       uint256.NewInt(entry.Nonce),
			Balance:     balance,
			CodeHash:    entry.CodeHash,
			StorageRoot: account.EmptyBufferHash,
		}

		data, err := accountRLP(acct)
		if err != nil {
			return nil, Genesis{}, fmt.Errorf("genesis: account %s: encode: %w", entry.Address, err)
		}

		key := crypto.Keccak256(entry.Address.Bytes())
		puts[string(key)] = data
	}

	empty := trie.NewEmpty(pruneDepth)
	tree, err := empty.BatchCOW(puts, nil, nil)
	if err != nil {
		return nil, Genesis{}, fmt.Errorf("genesis: build state trie: %w", err)
	}

	tree.PruneStateCache()

	if tree.RootHash() != gen.Header.StateRoot {
		return nil, Genesis{}, fmt.Errorf("%w: got %s, want %s", ErrStateRootMismatch, tree.RootHash(), gen.Header.StateRoot)
	}

	return tree, gen, nil
}

func parseBalance(s string) (*uint256.Int, error) {
	if s == "" {
		return uint256.NewInt(0), nil
	}

	balance := new(uint256.Int)
	if err := balance.SetFromDecimal(s); err != nil {
		return nil, fmt.Errorf("balance %q: %w", s, err)
	}

	return balance, nil
}

// accountRLP re-encodes an account into the same RLP bytes the state
// trie stores as leaf payload.
func accountRLP(acct account.Account) ([]byte, error) {
	var buf bytes.Buffer
	if err := acct.EncodeRLP(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
