package private_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/rainblock/verifier/app/services/verifier/handlers/private"
	"github.com/rainblock/verifier/foundation/blockchain/block"
	"github.com/rainblock/verifier/foundation/blockchain/learner"
	"github.com/rainblock/verifier/foundation/blockchain/peer"
	"github.com/rainblock/verifier/foundation/web"
	"github.com/rainblock/verifier/foundation/web/mid"
	"go.uber.org/zap"
)

func newApp(h private.Handlers) *web.App {
	app := web.NewApp(make(chan os.Signal, 1), mid.Errors(zap.NewNop().Sugar()), mid.Panics())
	private.Routes(app, h)
	return app
}

func Test_AdvertiseNodeLearnsEachNode(t *testing.T) {
	lrn := learner.New(nil)
	app := newApp(private.Handlers{Log: zap.NewNop().Sugar(), Learner: lrn, Peers: peer.NewSet(), Self: "self:9080"})

	raw := []byte("a-merkle-node")
	body, err := json.Marshal(struct {
		NodeList [][]byte `json:"nodeList"`
	}{NodeList: [][]byte{raw}})
	if err != nil {
		t.Fatalf("encode request: %s", err)
	}

	r := httptest.NewRequest(http.MethodPost, "/v1/advertise/node", strings.NewReader(string(body)))
	w := httptest.NewRecorder()
	app.ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, want %d, body=%s", w.Code, http.StatusOK, w.Body.String())
	}

	hash := crypto.Keccak256Hash(raw)
	if _, found := lrn.CurrentNodes()[hash]; !found {
		t.Fatalf("expected the advertised node to be learned under its hash")
	}
}

func Test_AdvertiseBlockLearnsDecodedBlock(t *testing.T) {
	lrn := learner.New(nil)
	app := newApp(private.Handlers{Log: zap.NewNop().Sugar(), Learner: lrn, Peers: peer.NewSet(), Self: "self:9080"})

	blk := block.Block{Header: block.Header{Number: 7}}
	rlpBlock, err := block.Encode(blk)
	if err != nil {
		t.Fatalf("encode block: %s", err)
	}

	body, err := json.Marshal(struct {
		Block []byte `json:"block"`
	}{Block: rlpBlock})
	if err != nil {
		t.Fatalf("encode request: %s", err)
	}

	r := httptest.NewRequest(http.MethodPost, "/v1/advertise/block", strings.NewReader(string(body)))
	w := httptest.NewRecorder()
	app.ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, want %d, body=%s", w.Code, http.StatusOK, w.Body.String())
	}

	if _, found := lrn.BlockAt(7); !found {
		t.Fatalf("expected block 7 to be learned")
	}
}

func Test_AdvertiseBlockRejectsMalformedRLP(t *testing.T) {
	lrn := learner.New(nil)
	app := newApp(private.Handlers{Log: zap.NewNop().Sugar(), Learner: lrn, Peers: peer.NewSet(), Self: "self:9080"})

	body := `{"block":"bm90LXJscA=="}`
	r := httptest.NewRequest(http.MethodPost, "/v1/advertise/block", strings.NewReader(body))
	w := httptest.NewRecorder()
	app.ServeHTTP(w, r)

	if w.Code == http.StatusOK {
		t.Fatalf("expected a non-200 status for a malformed advertised block, body=%s", w.Body.String())
	}
}

func Test_AdvertiseNeighborAddsPeerButNotSelf(t *testing.T) {
	peers := peer.NewSet()
	app := newApp(private.Handlers{Log: zap.NewNop().Sugar(), Learner: learner.New(nil), Peers: peers, Self: "self:9080"})

	for _, host := range []string{"peer-a:9080", "self:9080"} {
		body, err := json.Marshal(struct {
			Host string `json:"host"`
		}{Host: host})
		if err != nil {
			t.Fatalf("encode request: %s", err)
		}

		r := httptest.NewRequest(http.MethodPost, "/v1/advertise/neighbor", strings.NewReader(string(body)))
		w := httptest.NewRecorder()
		app.ServeHTTP(w, r)

		if w.Code != http.StatusOK {
			t.Fatalf("got status %d, want %d, body=%s", w.Code, http.StatusOK, w.Body.String())
		}
	}

	if peers.Len() != 1 {
		t.Fatalf("got %d known peers, want 1 (self must never be added)", peers.Len())
	}
}
