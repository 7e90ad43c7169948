package peer_test

import (
	"testing"

	"github.com/rainblock/verifier/foundation/blockchain/peer"
)

func Test_SetAddRemove(t *testing.T) {
	set := peer.NewSet()

	if !set.Add(peer.New("peer1:8080")) {
		t.Fatalf("Adding a new peer should return true.")
	}

	if set.Add(peer.New("peer1:8080")) {
		t.Fatalf("Adding an already known peer should return false.")
	}

	if set.Len() != 1 {
		t.Fatalf("got %d peers, want 1", set.Len())
	}

	set.Remove(peer.New("peer1:8080"))
	if set.Len() != 0 {
		t.Fatalf("got %d peers, want 0 after removal", set.Len())
	}
}

func Test_CopyExcludesSelf(t *testing.T) {
	set := peer.NewSet()
	set.Add(peer.New("self:8080"))
	set.Add(peer.New("other:8080"))

	peers := set.Copy("self:8080")
	if len(peers) != 1 || peers[0].Host != "other:8080" {
		t.Fatalf("Copy should exclude the self host, got %+v", peers)
	}
}
