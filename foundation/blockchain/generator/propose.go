package generator

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rainblock/verifier/foundation/blockchain/block"
	"github.com/rainblock/verifier/foundation/blockchain/execution"
	"github.com/rainblock/verifier/foundation/blockchain/shard"
	"github.com/rainblock/verifier/foundation/blockchain/trie"
	"github.com/rainblock/verifier/foundation/blockchain/txqueue"
	"go.uber.org/multierr"
)

// buildHeader assembles the fully populated header §4.5 step 5
// describes: the PoA/PoW fields (unclesHash, receiptsRoot, logsBloom,
// mixHash, nonce) stay zeroed since mining/consensus proof is out of
// scope.
func buildHeader(parentHash common.Hash, beneficiary common.Address, stateRoot, transactionsRoot common.Hash, difficulty, gasLimit, gasUsed, number uint64) block.Header {
	return block.Header{
		ParentHash:       parentHash,
		Beneficiary:      beneficiary,
		StateRoot:        stateRoot,
		TransactionsRoot: transactionsRoot,
		Difficulty:       difficulty,
		Number:           number,
		GasLimit:         gasLimit,
		GasUsed:          gasUsed,
		Timestamp:        uint64(time.Now().UnixMilli()),
		ExtraData:        block.ExtraData,
	}
}

// transactionsRoot builds the auxiliary MPT §4.5 step 4 calls for: one
// entry per processed transaction, keyed by its ASCII decimal index in
// the block and valued by its raw bytes.
func transactionsRoot(order []txqueue.Transaction, pruneDepth int) (common.Hash, error) {
	puts := make(map[string][]byte, len(order))
	for i, tx := range order {
		puts[strconv.Itoa(i)] = tx.TxBinary
	}

	tr, err := trie.NewEmpty(pruneDepth).BatchCOW(puts, nil, nil)
	if err != nil {
		return common.Hash{}, err
	}

	return tr.RootHash(), nil
}

// proposeBlock implements §4.5.1: encode the block, route the
// write-set 16 ways by shard, fire all 16 update RPCs in parallel and
// wait for them, then advertise the block and the touched nodes to
// neighbors fire-and-forget. Per-shard failures are logged, combined,
// and returned — but the caller treats the block as proposed either
// way (§9 Open Question 4: shard failures are tolerated, not fatal).
func (g *Generator) proposeBlock(ctx context.Context, header block.Header, result execution.Result) error {
	transactions := make([][]byte, len(result.Order))
	for i, tx := range result.Order {
		transactions[i] = tx.TxBinary
	}
	blk := block.Block{Header: header, Transactions: transactions}

	rlpBlock, err := block.Encode(blk)
	if err != nil {
		return fmt.Errorf("encode block: %w", err)
	}

	merkleTreeNodes, err := trie.Serialize(result.NewTree.RootNode())
	if err != nil {
		return fmt.Errorf("serialize root node: %w", err)
	}

	ops := make([]shard.UpdateOp, 0, len(result.WriteSet))
	for addr, entry := range result.WriteSet {
		ops = append(ops, shard.UpdateOp{
			Account: addr,
			Balance: entry.Account.Balance.Bytes32(),
			Nonce:   entry.Account.Nonce.Uint64(),
		})
	}

	msgs := shard.Route(rlpBlock, merkleTreeNodes, ops)

	errs := make([]error, shard.Count)
	var wg sync.WaitGroup
	wg.Add(shard.Count)
	for i := 0; i < shard.Count; i++ {
		go func(i int) {
			defer wg.Done()

			client := g.shards[i]
			if client == nil {
				return
			}

			shardCtx, cancel := context.WithTimeout(ctx, g.cfg.StorageTimeout)
			defer cancel()

			if _, err := client.Update(shardCtx, msgs[i]); err != nil {
				errs[i] = fmt.Errorf("shard %d: %w", i, err)
			}
		}(i)
	}
	wg.Wait()

	go g.neigh.AdvertiseBlock(blk)
	go g.neigh.AdvertiseNodes(result.BufferBag)

	return multierr.Combine(errs...)
}
