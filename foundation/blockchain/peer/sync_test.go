package peer_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rainblock/verifier/foundation/blockchain/peer"
)

func Test_SyncDropsUnreachablePeers(t *testing.T) {
	peers := peer.NewSet()
	peers.Add(peer.New("http://127.0.0.1:1"))

	syncer := peer.NewSyncer("self", peers, peer.NewClient(nil), nil)
	syncer.Sync(context.Background())

	if peers.Len() != 0 {
		t.Fatalf("expected an unreachable peer to be dropped, got %d peers remaining", peers.Len())
	}
}

func Test_SyncKeepsReachablePeers(t *testing.T) {
	var handshakes, neighbors int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/handshake":
			handshakes++
			w.Write([]byte(`{"ProtocolVersion":1,"Version":"test","Beneficiary":"0x0000000000000000000000000000000000000000"}`))
		case "/v1/advertise/neighbor":
			neighbors++
			w.WriteHeader(http.StatusOK)
		}
	}))
	defer srv.Close()

	peers := peer.NewSet()
	peers.Add(peer.New(srv.URL))

	syncer := peer.NewSyncer("self", peers, peer.NewClient(nil), nil)
	syncer.Sync(context.Background())

	if peers.Len() != 1 {
		t.Fatalf("expected the reachable peer to remain known, got %d peers", peers.Len())
	}
	if handshakes != 1 || neighbors != 1 {
		t.Fatalf("got handshakes=%d neighbors=%d, want 1 and 1", handshakes, neighbors)
	}
}
