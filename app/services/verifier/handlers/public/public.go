// Package public holds the client-facing handler group: handshake,
// transaction submission, and the websocket event feed.
package public

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/websocket"
	"github.com/rainblock/verifier/foundation/blockchain/rpc"
	"github.com/rainblock/verifier/foundation/blockchain/txqueue"
	"github.com/rainblock/verifier/foundation/events"
	"github.com/rainblock/verifier/foundation/web"
	"go.uber.org/zap"
)

// Handlers groups the dependencies the public API needs.
type Handlers struct {
	Log         *zap.SugaredLogger
	Queue       *txqueue.Queue
	Beneficiary common.Address
	WS          websocket.Upgrader
	Evts        *events.Events
}

// submitTxRequest is the wire shape for §6's SubmitTransaction RPC.
type submitTxRequest struct {
	Transaction      []byte   `json:"transaction" validate:"required"`
	AccountWitnesses [][]byte `json:"accountWitnesses"`
}

// Handshake returns the protocol version, verifier version, and
// configured beneficiary, per §4.3/§6's handshake contract.
func (h Handlers) Handshake(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return web.Respond(ctx, w, rpc.Handshake(h.Beneficiary), http.StatusOK)
}

// SubmitTransaction decodes and enqueues a client's transaction. Per
// §4.3, any decode or structural failure is reported synchronously
// with INVALID and the transaction is dropped without ever touching
// the queue.
func (h Handlers) SubmitTransaction(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var req submitTxRequest
	if err := web.Decode(r, &req); err != nil {
		return err
	}

	result := rpc.DecodeSubmitTransaction(req.Transaction, req.AccountWitnesses)
	if result.Code == txqueue.Invalid {
		return web.Respond(ctx, w, txReply{Code: result.Code}, http.StatusOK)
	}

	h.Queue.Push(result.Tx)

	v, err := web.GetValues(ctx)
	if err == nil {
		h.Log.Infow("tx submitted", "traceid", v.TraceID, "txhash", result.Tx.TxHash)
	}

	return web.Respond(ctx, w, txReply{Code: result.Code, ReplyHandle: result.Tx.ReplyHandle}, http.StatusOK)
}

type txReply struct {
	Code        txqueue.ErrorCode `json:"code"`
	ReplyHandle string            `json:"replyHandle,omitempty"`
}

// Events streams server-sent log lines to a connected client over a
// websocket, matching the viewer feed's wire shape.
func (h Handlers) Events(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	h.WS.CheckOrigin = func(r *http.Request) bool { return true }

	c, err := h.WS.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("upgrade websocket: %w", err)
	}
	defer c.Close()

	ch := h.Evts.Acquire(v.TraceID)
	defer h.Evts.Release(v.TraceID)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, open := <-ch:
			if !open {
				return nil
			}
			if err := c.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				return err
			}

		case <-ticker.C:
			if err := c.WriteMessage(websocket.PingMessage, []byte("ping")); err != nil {
				return nil
			}
		}
	}
}
