package peer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
)

// Client speaks the verifier-to-verifier wire protocol over plain
// JSON HTTP, the same style shard.HTTPClient uses for the
// storage-shard protocol: handshake and advertise-neighbor for the
// sync pass, advertise-node and advertise-block for the generator's
// fire-and-forget propose-step fan-out.
type Client struct {
	HC *http.Client
}

// NewClient constructs a Client, defaulting to http.DefaultClient when
// hc is nil.
func NewClient(hc *http.Client) *Client {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Client{HC: hc}
}

// handshakeReply mirrors rpc.HandshakeReply's wire shape.
type handshakeReply struct {
	ProtocolVersion uint32         `json:"ProtocolVersion"`
	Version         string         `json:"Version"`
	Beneficiary     common.Address `json:"Beneficiary"`
}

// Handshake calls a peer's public handshake endpoint, reporting its
// protocol version, build version, and beneficiary.
func (c *Client) Handshake(ctx context.Context, host string) (protocolVersion uint32, version string, beneficiary common.Address, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, host+"/v1/handshake", nil)
	if err != nil {
		return 0, "", common.Address{}, fmt.Errorf("peer: build handshake request: %w", err)
	}

	resp, err := c.HC.Do(req)
	if err != nil {
		return 0, "", common.Address{}, fmt.Errorf("peer: handshake %s: %w", host, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, "", common.Address{}, fmt.Errorf("peer: handshake %s: status %d", host, resp.StatusCode)
	}

	var reply handshakeReply
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return 0, "", common.Address{}, fmt.Errorf("peer: decode handshake reply: %w", err)
	}

	return reply.ProtocolVersion, reply.Version, reply.Beneficiary, nil
}

// AdvertiseNeighbor announces self to a peer's private advertise-
// neighbor endpoint, so the peer's own known-peer set grows to include
// this node.
func (c *Client) AdvertiseNeighbor(ctx context.Context, host, self string) error {
	body, err := json.Marshal(struct {
		Host string `json:"host"`
	}{Host: self})
	if err != nil {
		return fmt.Errorf("peer: encode advertise-neighbor body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, host+"/v1/advertise/neighbor", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("peer: build advertise-neighbor request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HC.Do(req)
	if err != nil {
		return fmt.Errorf("peer: advertise neighbor to %s: %w", host, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("peer: advertise neighbor to %s: status %d", host, resp.StatusCode)
	}

	return nil
}

// AdvertiseBlock pushes a freshly proposed block's RLP encoding to a
// peer's private advertise-block endpoint, the fire-and-forget step
// the generator takes after winning a height's race.
func (c *Client) AdvertiseBlock(ctx context.Context, host string, rlpBlock []byte) error {
	return c.post(ctx, host+"/v1/advertise/block", struct {
		Block []byte `json:"block"`
	}{Block: rlpBlock})
}

// AdvertiseNodes pushes a list of MPT node bytes (after a proposal, the
// witness nodes the block's transactions carried) to a peer's private
// advertise-node endpoint.
func (c *Client) AdvertiseNodes(ctx context.Context, host string, nodes [][]byte) error {
	return c.post(ctx, host+"/v1/advertise/node", struct {
		NodeList [][]byte `json:"nodeList"`
	}{NodeList: nodes})
}

func (c *Client) post(ctx context.Context, url string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("peer: encode request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("peer: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HC.Do(req)
	if err != nil {
		return fmt.Errorf("peer: post %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("peer: post %s: status %d", url, resp.StatusCode)
	}

	return nil
}
