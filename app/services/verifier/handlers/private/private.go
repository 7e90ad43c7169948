// Package private holds the peer-facing handler group: the three
// advertise streams §6 names (nodes, blocks, neighbors). Each models a
// streaming RPC as a single request carrying a batch, the same
// chunked-batch shape the teacher's node-to-node endpoints use.
package private

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rainblock/verifier/foundation/blockchain/learner"
	"github.com/rainblock/verifier/foundation/blockchain/peer"
	"github.com/rainblock/verifier/foundation/blockchain/rpc"
	"github.com/rainblock/verifier/foundation/web"
	"go.uber.org/zap"
)

// Handlers groups the dependencies the peer-facing API needs.
type Handlers struct {
	Log     *zap.SugaredLogger
	Learner *learner.Learner
	Peers   *peer.Set
	Self    string
}

// advertiseNodeRequest mirrors §6's MerkleNodeAdvertisement{nodeList:
// repeated bytes}.
type advertiseNodeRequest struct {
	NodeList [][]byte `json:"nodeList"`
}

// AdvertiseNode implements §4.3's streaming advertise-node contract:
// for each inbound node, hash it and record it with the learner.
func (h Handlers) AdvertiseNode(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var req advertiseNodeRequest
	if err := web.Decode(r, &req); err != nil {
		return err
	}

	for _, raw := range req.NodeList {
		rpc.DecodeAdvertiseNode(h.Learner, raw)
	}

	h.Log.Infow("advertise node", "traceid", web.GetTraceID(ctx), "count", len(req.NodeList))

	return web.Respond(ctx, w, struct{}{}, http.StatusOK)
}

// advertiseBlockRequest mirrors §6's BlockAdvertisement{block: bytes}.
type advertiseBlockRequest struct {
	Block []byte `json:"block"`
}

// AdvertiseBlock implements §4.3's streaming advertise-block contract:
// decode the wire bytes and hand the result to the learner.
func (h Handlers) AdvertiseBlock(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var req advertiseBlockRequest
	if err := web.Decode(r, &req); err != nil {
		return err
	}

	if err := rpc.DecodeAdvertiseBlock(h.Learner, req.Block); err != nil {
		return fmt.Errorf("advertise block: %w", err)
	}

	h.Log.Infow("advertise block", "traceid", web.GetTraceID(ctx))

	return web.Respond(ctx, w, struct{}{}, http.StatusOK)
}

// advertiseNeighborRequest is the wire shape for §6's
// NeighborAdvertisement, left otherwise unspecified by the
// specification beyond "accepted".
type advertiseNeighborRequest struct {
	Host string `json:"host"`
}

// AdvertiseNeighbor implements §4.3's "accepted but otherwise
// unspecified" contract: the advertised peer is added to the known
// set so future proposals fan out to it too.
func (h Handlers) AdvertiseNeighbor(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var req advertiseNeighborRequest
	if err := web.Decode(r, &req); err != nil {
		return err
	}

	if req.Host != h.Self {
		rpc.AdvertiseNeighbor(h.Peers, req.Host)
	}

	h.Log.Infow("advertise neighbor", "traceid", web.GetTraceID(ctx), "host", req.Host)

	return web.Respond(ctx, w, struct{}{}, http.StatusOK)
}
