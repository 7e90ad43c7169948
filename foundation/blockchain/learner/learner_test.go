package learner_test

import (
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rainblock/verifier/foundation/blockchain/block"
	"github.com/rainblock/verifier/foundation/blockchain/learner"
)

func Test_LearnNodeThenRotate(t *testing.T) {
	l := learner.New(nil)

	hash := common.HexToHash("0x01")
	l.LearnNode(hash, []byte("node-bytes"))

	if _, ok := l.CurrentNodes()[hash]; !ok {
		t.Fatalf("A learned node should be present in the current generation.")
	}

	l.RotateNodes()

	if _, ok := l.PreviousNodes()[hash]; !ok {
		t.Fatalf("After rotation the node should be present in the previous generation.")
	}

	if len(l.CurrentNodes()) != 0 {
		t.Fatalf("After rotation the current generation should be empty.")
	}
}

func Test_LearnBlockSignalsRace(t *testing.T) {
	l := learner.New(nil)

	l.LearnBlock(5, block.Block{Header: block.Header{Number: 5}})

	select {
	case number := <-l.Signal():
		if number != 5 {
			t.Fatalf("got signaled number %d, want 5", number)
		}
	case <-time.After(time.Second):
		t.Fatalf("Learning a block should signal the generator's race loop.")
	}

	if _, ok := l.BlockAt(5); !ok {
		t.Fatalf("The learned block should be retrievable by height.")
	}
}

func Test_LearnBlockSignalNeverBlocks(t *testing.T) {
	l := learner.New(nil)

	done := make(chan struct{})
	go func() {
		for i := uint64(0); i < 10; i++ {
			l.LearnBlock(i, block.Block{Header: block.Header{Number: i}})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("LearnBlock must never block the caller, even with an undrained signal channel.")
	}
}
