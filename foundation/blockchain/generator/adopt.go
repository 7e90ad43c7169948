package generator

import (
	"errors"
	"fmt"

	"github.com/rainblock/verifier/foundation/blockchain/block"
	"github.com/rainblock/verifier/foundation/blockchain/txqueue"
)

// ErrStateRootMismatch means a peer block's re-execution under
// verify-mode produced a different state root than the peer declared
// — the block is rejected rather than adopted.
var ErrStateRootMismatch = errors.New("generator: adopted block's re-executed state root does not match peer's declared root")

// adopt implements §4.5.2: construct synthetic transaction records for
// each of the peer's transactions (empty proofs, correct
// fromHash/toHash), run the execution engine in verify mode against
// learnedNodes only, install the resulting tree, and advance past the
// peer's height. Trust stops at structural execution compatibility —
// no PoW/signature check is performed (§9 Open Question 1, decided:
// out of scope).
func (g *Generator) adopt(peer block.Block) error {
	synthetic := make([]txqueue.Transaction, 0, len(peer.Transactions))
	for _, raw := range peer.Transactions {
		tx, err := txqueue.Decode(raw, nil, "")
		if err != nil {
			return fmt.Errorf("adopt: decode peer transaction: %w", err)
		}
		synthetic = append(synthetic, tx)
	}

	g.mu.Lock()
	tree := g.tree
	g.mu.Unlock()

	result, err := g.engine.OrderAndExecute(tree, synthetic, true, g.learner.CurrentNodes(), g.learner.PreviousNodes())
	if err != nil {
		return fmt.Errorf("adopt: verify-mode execution: %w", err)
	}

	if result.StateRoot != peer.Header.StateRoot {
		return fmt.Errorf("adopt: %w: re-execution root %s != peer root %s", ErrStateRootMismatch, result.StateRoot, peer.Header.StateRoot)
	}

	parentHash, err := peer.Header.Hash()
	if err != nil {
		return fmt.Errorf("adopt: hash peer header: %w", err)
	}

	g.mu.Lock()
	g.tree = result.NewTree
	g.parentHash = parentHash
	g.blockNumber = peer.Header.Number + 1
	g.mu.Unlock()

	return nil
}
