package public_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/websocket"
	"github.com/holiman/uint256"
	"github.com/rainblock/verifier/app/services/verifier/handlers/public"
	"github.com/rainblock/verifier/foundation/blockchain/txqueue"
	"github.com/rainblock/verifier/foundation/events"
	"github.com/rainblock/verifier/foundation/web"
	"go.uber.org/zap"
)

func newApp(h public.Handlers) *web.App {
	app := web.NewApp(make(chan os.Signal, 1))
	public.Routes(app, h)
	return app
}

func Test_HandshakeReportsConfiguredBeneficiary(t *testing.T) {
	beneficiary := common.HexToAddress("0xbe")
	app := newApp(public.Handlers{Beneficiary: beneficiary, Queue: txqueue.New(), Evts: events.New()})

	r := httptest.NewRequest(http.MethodGet, "/v1/handshake", nil)
	w := httptest.NewRecorder()
	app.ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, want %d", w.Code, http.StatusOK)
	}
	if !strings.Contains(w.Body.String(), strings.ToLower(beneficiary.Hex())) &&
		!strings.Contains(strings.ToLower(w.Body.String()), strings.ToLower(beneficiary.Hex())) {
		t.Fatalf("got body %q, want it to contain the beneficiary", w.Body.String())
	}
}

func Test_SubmitTransactionEnqueuesValidTx(t *testing.T) {
	queue := txqueue.New()
	app := newApp(public.Handlers{Queue: queue, Evts: events.New(), WS: websocket.Upgrader{}, Log: zap.NewNop().Sugar()})

	binary, err := txqueue.EncodeFields(txqueue.Fields{
		Nonce: uint256.NewInt(0),
		From:  common.HexToAddress("0x01"),
		To:    common.HexToAddress("0x02"),
		Value: uint256.NewInt(10),
	})
	if err != nil {
		t.Fatalf("encode fields: %s", err)
	}

	body, err := json.Marshal(struct {
		Transaction      []byte   `json:"transaction"`
		AccountWitnesses [][]byte `json:"accountWitnesses"`
	}{Transaction: binary})
	if err != nil {
		t.Fatalf("encode request: %s", err)
	}

	r := httptest.NewRequest(http.MethodPost, "/v1/tx/submit", strings.NewReader(string(body)))
	w := httptest.NewRecorder()
	app.ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, want %d, body=%s", w.Code, http.StatusOK, w.Body.String())
	}
	if queue.Len() != 1 {
		t.Fatalf("got queue length %d, want 1", queue.Len())
	}

	var reply struct {
		Code        txqueue.ErrorCode
		ReplyHandle string
	}
	if err := json.Unmarshal(w.Body.Bytes(), &reply); err != nil {
		t.Fatalf("decode reply: %s", err)
	}
	if reply.Code != txqueue.Success {
		t.Fatalf("got code %d, want Success", reply.Code)
	}
	if reply.ReplyHandle == "" {
		t.Fatalf("expected a non-empty reply handle")
	}
}

func Test_SubmitTransactionRejectsMalformedRLP(t *testing.T) {
	queue := txqueue.New()
	app := newApp(public.Handlers{Queue: queue, Evts: events.New()})

	body := `{"transaction":"bm90LXJscA==","accountWitnesses":[]}`
	r := httptest.NewRequest(http.MethodPost, "/v1/tx/submit", strings.NewReader(body))
	w := httptest.NewRecorder()
	app.ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, want %d", w.Code, http.StatusOK)
	}
	if queue.Len() != 0 {
		t.Fatalf("a malformed transaction must never be enqueued, got queue length %d", queue.Len())
	}

	var reply struct{ Code txqueue.ErrorCode }
	if err := json.Unmarshal(w.Body.Bytes(), &reply); err != nil {
		t.Fatalf("decode reply: %s", err)
	}
	if reply.Code != txqueue.Invalid {
		t.Fatalf("got code %d, want Invalid", reply.Code)
	}
}
