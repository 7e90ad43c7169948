package execution

import (
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/rainblock/verifier/foundation/blockchain/account"
	"github.com/rainblock/verifier/foundation/blockchain/trie"
)

// getAccount returns the write-set entry for addr if one exists,
// otherwise fetches it from the tree via GetFromCache. On
// ErrKeyNotFound, generate controls whether a fresh account is
// synthesized (balance = MAX_256_UNSIGNED, nonce = generateNonce) or
// the miss is returned to the caller to fail the transaction. A
// structural miss is always returned as-is: there is no "generate"
// escape hatch for a tree that could not be traversed. resolved
// collects only the stub hashes this lookup actually had to pull from
// bags, the set the caller's post-batch consistency check cares about.
func getAccount(writeSet WriteSet, addr common.Address, addrHash common.Hash, tree *trie.Trie, bags []trie.ProofBag, used, resolved map[common.Hash][]byte, generate bool, generateNonce *uint256.Int) (account.Account, error) {
	if entry, ok := writeSet[addr]; ok {
		return entry.Account, nil
	}

	acct, err := trie.GetFromCache(tree, addrHash.Bytes(), decodeAccount, used, resolved, bags...)
	if err == nil {
		return acct, nil
	}

	if errors.Is(err, trie.ErrKeyNotFound) && generate {
		nonce := generateNonce
		if nonce == nil {
			nonce = uint256.NewInt(0)
		}
		return account.Account{
			Nonce:       new(uint256.Int).Set(nonce),
			Balance:     maxUint256(),
			CodeHash:    account.EmptyStringHash,
			StorageRoot: account.EmptyBufferHash,
		}, nil
	}

	return account.Account{}, err
}

// maxUint256 returns the saturating MAX_256_UNSIGNED value a
// synthesized sender account is funded with when generateFromAccounts
// is enabled.
func maxUint256() *uint256.Int {
	max := new(uint256.Int)
	return max.Not(max)
}
