// Package generator implements the per-height block generator state
// machine: gather queued transactions, execute them against the cached
// trie, race a simulated PoS timer against learner-reported peer
// blocks, then propose (commit to storage shards) or adopt (install a
// peer's block) before advancing to the next height.
package generator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rainblock/verifier/foundation/blockchain/block"
	"github.com/rainblock/verifier/foundation/blockchain/execution"
	"github.com/rainblock/verifier/foundation/blockchain/learner"
	"github.com/rainblock/verifier/foundation/blockchain/shard"
	"github.com/rainblock/verifier/foundation/blockchain/telemetry"
	"github.com/rainblock/verifier/foundation/blockchain/trie"
	"github.com/rainblock/verifier/foundation/blockchain/txqueue"
)

// EventHandler is the logging callback every core package accepts
// instead of importing a logger directly.
type EventHandler func(v string, args ...any)

// ReplyFunc delivers a transaction's outcome back to whatever surface
// accepted it. The generator calls this fire-and-forget while a
// height's race is still pending, per spec.md §4.5 step 5.
type ReplyFunc func(replyHandle string, code txqueue.ErrorCode)

// Neighbors is the fire-and-forget peer-advertisement sink the
// generator uses once it wins a height. Transport is an external
// collaborator; NoOpNeighbors below is the zero-dependency default.
type Neighbors interface {
	AdvertiseBlock(blk block.Block)
	AdvertiseNodes(nodes map[common.Hash][]byte)
}

// NoOpNeighbors discards every advertisement, the default when no peer
// transport is configured.
type NoOpNeighbors struct{}

// AdvertiseBlock implements Neighbors.
func (NoOpNeighbors) AdvertiseBlock(block.Block) {}

// AdvertiseNodes implements Neighbors.
func (NoOpNeighbors) AdvertiseNodes(map[common.Hash][]byte) {}

// Config is the per-height behavior surface, mirroring spec.md §6's
// configuration table.
type Config struct {
	Beneficiary    common.Address
	Difficulty     uint64
	GasLimit       uint64
	PowMin         time.Duration
	PowMax         time.Duration
	MaxTxPerBlock  int
	PruneDepth     int
	StorageTimeout time.Duration
}

// ErrShutdown is returned by Run when the generator was asked to stop
// cooperatively.
var ErrShutdown = errors.New("generator: shutdown requested")

// Generator owns the single mutable per-height state §5 names:
// blockNumber, parentHash, the live tree, and the transaction queue.
// It is driven by a single loop goroutine; no other goroutine mutates
// this state directly.
type Generator struct {
	cfg       Config
	evHandler EventHandler
	reply     ReplyFunc

	engine     *execution.Engine
	learner    *learner.Learner
	queue      *txqueue.Queue
	shards     [shard.Count]shard.Client
	neigh      Neighbors
	checkpoint *telemetry.Checkpoint

	mu          sync.Mutex
	blockNumber uint64
	parentHash  common.Hash
	tree        *trie.Trie

	shut chan struct{}
}

// New constructs a Generator seeded at the given height with an
// already-built tree (from genesis or a restart snapshot). checkpoint
// may be nil, in which case no throughput telemetry is recorded.
func New(cfg Config, tree *trie.Trie, blockNumber uint64, parentHash common.Hash, engine *execution.Engine, lrn *learner.Learner, queue *txqueue.Queue, shards [shard.Count]shard.Client, neigh Neighbors, reply ReplyFunc, evHandler EventHandler, checkpoint *telemetry.Checkpoint) *Generator {
	if evHandler == nil {
		evHandler = func(string, ...any) {}
	}
	if reply == nil {
		reply = func(string, txqueue.ErrorCode) {}
	}
	if neigh == nil {
		neigh = NoOpNeighbors{}
	}

	return &Generator{
		cfg:         cfg,
		evHandler:   evHandler,
		reply:       reply,
		engine:      engine,
		learner:     lrn,
		queue:       queue,
		shards:      shards,
		neigh:       neigh,
		checkpoint:  checkpoint,
		blockNumber: blockNumber,
		parentHash:  parentHash,
		tree:        tree,
		shut:        make(chan struct{}),
	}
}

// Run drives the state machine until Shutdown is called or a height
// returns a fatal (block-scoped) error. Cooperative shutdown completes
// the in-flight height before returning — no proposal is abandoned
// mid-flight.
func (g *Generator) Run(ctx context.Context) error {
	g.evHandler("generator: run: started")
	defer g.evHandler("generator: run: completed")

	for {
		select {
		case <-g.shut:
			return ErrShutdown
		default:
		}

		if err := g.step(ctx); err != nil {
			return fmt.Errorf("generator: height[%d]: %w", g.currentHeight(), err)
		}
	}
}

// Shutdown requests the loop exit after its current height completes.
func (g *Generator) Shutdown() {
	close(g.shut)
}

func (g *Generator) currentHeight() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.blockNumber
}

// step runs exactly one iteration of spec.md §4.5's numbered state
// machine.
func (g *Generator) step(ctx context.Context) error {
	g.mu.Lock()
	blockNumber := g.blockNumber
	parentHash := g.parentHash
	tree := g.tree
	g.mu.Unlock()

	// 1. Shortcut adoption.
	if blk, ok := g.learner.BlockAt(blockNumber); ok {
		g.evHandler("generator: height[%d]: shortcut adoption of learned block", blockNumber)
		return g.adopt(blk)
	}

	// 2. Gather.
	batch := g.queue.Gather(g.cfg.MaxTxPerBlock)
	g.evHandler("generator: height[%d]: gathered Txs[%d]", blockNumber, len(batch))

	// 3. Execute (proposal mode).
	result, err := g.engine.OrderAndExecute(tree, batch, false, g.learner.CurrentNodes(), g.learner.PreviousNodes())
	if err != nil {
		return fmt.Errorf("execute: %w", err)
	}

	// 4. Transactions root.
	txRoot, err := transactionsRoot(result.Order, g.cfg.PruneDepth)
	if err != nil {
		return fmt.Errorf("transactions root: %w", err)
	}

	header := buildHeader(parentHash, g.cfg.Beneficiary, result.StateRoot, txRoot, g.cfg.Difficulty, g.cfg.GasLimit, result.GasUsed, blockNumber)

	// 5. Race: PoS timer vs peer-block arrival. Replies fire while the
	// race is pending, independent of the eventual outcome.
	go g.replyAll(result.Order)

	race := runRace(g.learner, blockNumber, g.cfg.PowMin, g.cfg.PowMax)

	switch race.outcome {
	case outcomeWon:
		// 6. Outcome A — we win.
		if err := g.proposeBlock(ctx, header, result); err != nil {
			g.evHandler("generator: height[%d]: propose: WARNING: %s", blockNumber, err)
		}

		headerHash, err := header.Hash()
		if err != nil {
			return fmt.Errorf("hash proposed header: %w", err)
		}

		g.learner.RotateNodes()

		if g.checkpoint != nil {
			if err := g.checkpoint.Observe(blockNumber, len(batch), result.ExecutionTime); err != nil {
				g.evHandler("generator: height[%d]: checkpoint: WARNING: %s", blockNumber, err)
			}
		}

		g.mu.Lock()
		g.tree = result.NewTree
		g.parentHash = headerHash
		g.blockNumber = blockNumber + 1
		g.mu.Unlock()

	case outcomePeerWon:
		// 7. Outcome B — peer wins; requeue our batch for retry.
		g.evHandler("generator: height[%d]: peer block won the race", blockNumber)
		if err := g.adopt(race.peerBlock); err != nil {
			return err
		}
		g.queue.PushFront(batch)
	}

	// 8. Prune.
	g.mu.Lock()
	g.tree.PruneStateCache()
	g.mu.Unlock()

	return nil
}

func (g *Generator) replyAll(order []txqueue.Transaction) {
	for _, tx := range order {
		g.reply(tx.ReplyHandle, tx.ErrorCode)
	}
}
