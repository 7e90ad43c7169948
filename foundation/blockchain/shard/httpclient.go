package shard

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// HTTPClient speaks the storage-shard protocol over plain JSON HTTP,
// the same wire style the verifier-to-verifier endpoints use. Host is
// the shard's base URL; Update POSTs to Host+"/v1/shard/update".
type HTTPClient struct {
	Host string
	HC   *http.Client
}

// NewHTTPClient constructs an HTTPClient for host, defaulting to
// http.DefaultClient when hc is nil.
func NewHTTPClient(host string, hc *http.Client) *HTTPClient {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &HTTPClient{Host: host, HC: hc}
}

// Update implements Client by POSTing msg as JSON and decoding the
// shard's JSON reply.
func (c *HTTPClient) Update(ctx context.Context, msg UpdateMsg) (Reply, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return Reply{}, fmt.Errorf("shard: encode update: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Host+"/v1/shard/update", bytes.NewReader(body))
	if err != nil {
		return Reply{}, fmt.Errorf("shard: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HC.Do(req)
	if err != nil {
		return Reply{}, fmt.Errorf("shard: update %s: %w", c.Host, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Reply{}, fmt.Errorf("shard: update %s: status %d", c.Host, resp.StatusCode)
	}

	var reply Reply
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return Reply{}, fmt.Errorf("shard: decode reply: %w", err)
	}

	return reply, nil
}
