// Package learner ingests peer-advertised MPT nodes and peer-advertised
// blocks. Learned nodes feed the execution engine as a fallback proof
// bag; learned blocks let the generator shortcut its own PoS race when
// a neighbor has already produced the next height.
package learner

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rainblock/verifier/foundation/blockchain/block"
)

// EventHandler is the logging callback every core package accepts
// instead of importing a logger directly, decoupling the core from
// any particular logging library.
type EventHandler func(v string, args ...any)

// Learner holds the two learned-node generations (current/previous)
// and the learned-block table the generator polls for shortcut
// adoption. A single instance is shared across the RPC handlers that
// receive advertisements and the generator loop that consumes them.
type Learner struct {
	evHandler EventHandler

	mu       sync.RWMutex
	current  map[common.Hash][]byte
	previous map[common.Hash][]byte
	blocks   map[uint64]block.Block

	blockSignal chan uint64
}

// New constructs an empty Learner. evHandler may be nil.
func New(evHandler EventHandler) *Learner {
	if evHandler == nil {
		evHandler = func(string, ...any) {}
	}

	return &Learner{
		evHandler:   evHandler,
		current:     make(map[common.Hash][]byte),
		previous:    make(map[common.Hash][]byte),
		blocks:      make(map[uint64]block.Block),
		blockSignal: make(chan uint64, 1),
	}
}

// LearnNode records a peer-advertised MPT node into the current
// generation, keyed by its own hash.
func (l *Learner) LearnNode(hash common.Hash, raw []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.current[hash] = raw
}

// LearnNodes records a batch of peer-advertised nodes, the shape a
// single advertise-node RPC call delivers.
func (l *Learner) LearnNodes(nodes map[common.Hash][]byte) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for hash, raw := range nodes {
		l.current[hash] = raw
	}
}

// CurrentNodes returns the current-generation learned-node bag.
func (l *Learner) CurrentNodes() map[common.Hash][]byte {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return l.current
}

// PreviousNodes returns the previous-generation learned-node bag, the
// fallback consulted during fork re-execution.
func (l *Learner) PreviousNodes() map[common.Hash][]byte {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return l.previous
}

// RotateNodes moves current into previous and resets current to empty,
// the step the generator performs once it wins a height and commits.
func (l *Learner) RotateNodes() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.previous = l.current
	l.current = make(map[common.Hash][]byte)
}

// LearnBlock records a peer-advertised block for the given height and
// wakes the generator's race loop. The wake-up is a non-blocking send
// on a buffered channel of depth 1 — if the generator hasn't drained
// the previous signal yet, this one is simply not needed again.
func (l *Learner) LearnBlock(number uint64, blk block.Block) {
	l.mu.Lock()
	l.blocks[number] = blk
	l.mu.Unlock()

	l.evHandler("learner: learn block: number[%d]", number)

	select {
	case l.blockSignal <- number:
	default:
	}
}

// BlockAt returns the learned block for number, if one has arrived.
func (l *Learner) BlockAt(number uint64) (block.Block, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	blk, exists := l.blocks[number]
	return blk, exists
}

// Signal exposes the block-arrival channel the generator's PoS race
// selects on. It is the condition variable §9 of the specification
// calls for, expressed as a channel rather than a sync.Cond to match
// the rest of the package's signaling style.
func (l *Learner) Signal() <-chan uint64 {
	return l.blockSignal
}
