// Package execution implements the stateful execution engine: ordered
// transaction application against a cached MPT plus a per-transaction
// proof bag, a write-set overlay, and a copy-on-write commit that
// produces the next state root.
package execution

import (
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"
	"github.com/rainblock/verifier/foundation/blockchain/account"
	"github.com/rainblock/verifier/foundation/blockchain/trie"
	"github.com/rainblock/verifier/foundation/blockchain/txqueue"
)

// EventHandler is the logging callback the engine accepts instead of a
// concrete logger dependency.
type EventHandler func(v string, args ...any)

// Sentinel errors a transaction-scoped failure carries; every one of
// these causes that single transaction's errorCode to be set to
// txqueue.Invalid without touching any other transaction's mutations.
var (
	ErrNonceMismatch         = errors.New("execution: sender nonce does not match transaction nonce")
	ErrUnsupportedFeature    = errors.New("execution: unsupported feature")
	ErrInsufficientBalance   = errors.New("execution: sender balance insufficient for transfer value")
	ErrInternalInconsistency = errors.New("execution: internal inconsistency: used node missing from buffer bag")
)

// Config mirrors the configuration surface's execution-relevant
// options.
type Config struct {
	GenerateFromAccounts bool
	DisableNonceCheck    bool
	ShareBag             bool
}

// WriteSetEntry is the in-flight overlay record for a single account:
// its address pre-hashed for trie-key reuse, and its current draft.
type WriteSetEntry struct {
	HashedAddress common.Hash
	Account       account.Account
}

// WriteSet maps the unhashed address to its in-flight draft. It is the
// sole ground truth during a single execution pass — the tree is
// read-only until the closing BatchCOW.
type WriteSet map[common.Address]WriteSetEntry

// Result is what OrderAndExecute returns: the new state root, the
// processed transactions with their outcome codes assigned, the
// write-set, the new tree, and the buffer bag of witness nodes to
// re-advertise. The buffer bag holds every witness node the batch's
// transactions carried, whether or not execution traversed it; nodes
// resolved from the cached tree or the learned-node bags are not in it.
type Result struct {
	StateRoot     common.Hash
	GasUsed       uint64
	Timestamp     uint64
	Order         []txqueue.Transaction
	WriteSet      WriteSet
	NewTree       *trie.Trie
	BufferBag     map[common.Hash][]byte
	ExecutionTime time.Duration
}

// Engine applies batches of transactions to a cached trie.
type Engine struct {
	config    Config
	evHandler EventHandler
}

// New constructs an Engine. evHandler may be nil.
func New(config Config, evHandler EventHandler) *Engine {
	if evHandler == nil {
		evHandler = func(string, ...any) {}
	}
	return &Engine{config: config, evHandler: evHandler}
}

// OrderAndExecute applies batch against tree, in queue order. In
// proposal mode (verifyOnly=false) a transaction's proofs are the
// share bag (when Config.ShareBag is set) or its own witness map;
// every witness is also folded into a buffer bag so it can be
// re-advertised once the block is proposed. In verify mode
// (verifyOnly=true), used when adopting a peer block, every
// transaction's proofs are learnedNodes only — a transaction's own
// witness map, if any, is ignored.
func (e *Engine) OrderAndExecute(tree *trie.Trie, batch []txqueue.Transaction, verifyOnly bool, learnedNodes, previousLearnedNodes map[common.Hash][]byte) (Result, error) {
	start := time.Now()

	writeSet := make(WriteSet)
	used := make(map[common.Hash][]byte)
	resolved := make(map[common.Hash][]byte)
	bufferBag := make(map[common.Hash][]byte)

	var shareBag map[common.Hash][]byte
	if !verifyOnly && e.config.ShareBag {
		shareBag = make(map[common.Hash][]byte)
		for _, tx := range batch {
			for h, raw := range tx.Proofs {
				shareBag[h] = raw
			}
		}
	}

	order := make([]txqueue.Transaction, 0, len(batch))

	for _, tx := range batch {
		bags := e.proofBags(tx, verifyOnly, shareBag, learnedNodes, previousLearnedNodes)

		if !verifyOnly {
			for h, raw := range tx.Proofs {
				bufferBag[h] = raw
			}
		}

		processed := tx
		if err := e.applyOne(&processed, tree, writeSet, bags, used, resolved); err != nil {
			processed.ErrorCode = txqueue.Invalid
			e.evHandler("execution: tx[%s]: INVALID: %s", processed.TxHash, err)
		} else {
			processed.ErrorCode = txqueue.Success
		}

		order = append(order, processed)
	}

	puts := make(map[string][]byte, len(writeSet))
	for addr, entry := range writeSet {
		data, err := encodeAccount(entry.Account)
		if err != nil {
			return Result{}, fmt.Errorf("execution: encode account %s: %w", addr, err)
		}
		puts[string(crypto.Keccak256(addr.Bytes()))] = data
	}

	var cowBags []trie.ProofBag
	if verifyOnly {
		cowBags = []trie.ProofBag{trie.ProofBag(learnedNodes)}
	} else if e.config.ShareBag {
		cowBags = []trie.ProofBag{trie.ProofBag(shareBag), trie.ProofBag(previousLearnedNodes)}
	} else {
		cowBags = []trie.ProofBag{trie.ProofBag(bufferBag), trie.ProofBag(previousLearnedNodes)}
	}

	newTree, err := tree.BatchCOW(puts, used, resolved, cowBags...)
	if err != nil {
		return Result{}, fmt.Errorf("execution: batch_cow: %w", err)
	}

	// Every hash in resolved was, by construction, pulled from one of
	// the bags handed to the read or write phase above (proofBags or
	// cowBags) — this loop is a regression guard against those two bag
	// sets and the ones checked here drifting apart, not a check that
	// fires in ordinary operation. Nodes already live in the cached
	// tree (never hash-only stubs) never reach resolved and so never
	// need a bag at all.
	if !verifyOnly {
		for h := range resolved {
			if _, ok := bufferBag[h]; ok {
				continue
			}
			if e.config.ShareBag {
				if _, ok := shareBag[h]; ok {
					continue
				}
			}
			if _, ok := learnedNodes[h]; ok {
				continue
			}
			if _, ok := previousLearnedNodes[h]; ok {
				continue
			}
			return Result{}, fmt.Errorf("%w: %s", ErrInternalInconsistency, h)
		}
	}

	return Result{
		StateRoot:     newTree.RootHash(),
		GasUsed:       0,
		Timestamp:     nowMillis(),
		Order:         order,
		WriteSet:      writeSet,
		NewTree:       newTree,
		BufferBag:     bufferBag,
		ExecutionTime: time.Since(start),
	}, nil
}

// proofBags assembles the ordered chain a single lookup resolves
// against: in proposal mode, the tx's own witnesses (or the shared
// bag), then learnedNodes, then previous-learnedNodes; in verify mode,
// learnedNodes alone.
func (e *Engine) proofBags(tx txqueue.Transaction, verifyOnly bool, shareBag, learnedNodes, previousLearnedNodes map[common.Hash][]byte) []trie.ProofBag {
	if verifyOnly {
		return []trie.ProofBag{trie.ProofBag(learnedNodes)}
	}

	var primary trie.ProofBag
	if e.config.ShareBag {
		primary = trie.ProofBag(shareBag)
	} else {
		primary = trie.ProofBag(tx.Proofs)
	}

	return []trie.ProofBag{primary, trie.ProofBag(learnedNodes), trie.ProofBag(previousLearnedNodes)}
}

// applyOne mutates writeSet per the transaction's effect, leaving it
// untouched on any error so a single bad transaction never corrupts
// the batch.
func (e *Engine) applyOne(tx *txqueue.Transaction, tree *trie.Trie, writeSet WriteSet, bags []trie.ProofBag, used, resolved map[common.Hash][]byte) error {
	fromAcct, err := getAccount(writeSet, tx.Tx.From, tx.FromHash, tree, bags, used, resolved, e.config.GenerateFromAccounts, tx.Tx.Nonce)
	if err != nil {
		return err
	}

	if !e.config.DisableNonceCheck && fromAcct.Nonce.Cmp(tx.Tx.Nonce) != 0 {
		return fmt.Errorf("%w: account nonce %s, tx nonce %s", ErrNonceMismatch, fromAcct.Nonce, tx.Tx.Nonce)
	}

	if tx.IsContractCreation() {
		return fmt.Errorf("%w: contract creation", ErrUnsupportedFeature)
	}

	toAcct, err := getAccount(writeSet, tx.Tx.To, tx.ToHash, tree, bags, used, resolved, false, nil)
	switch {
	case errors.Is(err, trie.ErrKeyNotFound):
		toAcct = account.Account{
			Nonce:       uint256.NewInt(0),
			Balance:     uint256.NewInt(0),
			CodeHash:    account.EmptyStringHash,
			StorageRoot: account.EmptyBufferHash,
		}
	case err != nil:
		return err
	}

	if toAcct.HasCode() {
		e.evHandler("execution: tx[%s]: to account %s has code, treating as simple transfer (EVM out of scope)", tx.TxHash, tx.Tx.To)
	}

	if fromAcct.Balance.Cmp(tx.Tx.Value) < 0 {
		return fmt.Errorf("%w: have %s, need %s", ErrInsufficientBalance, fromAcct.Balance, tx.Tx.Value)
	}

	newFrom := fromAcct.Copy()
	newFrom.Nonce.AddUint64(newFrom.Nonce, 1)
	newFrom.Balance.Sub(newFrom.Balance, tx.Tx.Value)

	newTo := toAcct.Copy()
	newTo.Balance.Add(newTo.Balance, tx.Tx.Value)

	writeSet[tx.Tx.From] = WriteSetEntry{HashedAddress: tx.FromHash, Account: newFrom}
	writeSet[tx.Tx.To] = WriteSetEntry{HashedAddress: tx.ToHash, Account: newTo}

	return nil
}

func encodeAccount(a account.Account) ([]byte, error) {
	return rlp.EncodeToBytes(&a)
}

func decodeAccount(data []byte) (account.Account, error) {
	var a account.Account
	if err := rlp.DecodeBytes(data, &a); err != nil {
		return account.Account{}, err
	}
	return a, nil
}

func nowMillis() uint64 {
	return uint64(time.Now().UnixMilli())
}
