package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// NewRelay creates a relay handle POSTing forwarded requests to the given endpoint.
func NewRelay(endpoint string, timeout time.Duration) *Relay {
	return &Relay{
		endpoint: endpoint,
		http:     &http.Client{Timeout: timeout},
	}
}

// Relay forwards requests through an external HTTP-reachable service that
// performs the actual gateway call on the sender's behalf. Used when direct
// raw-socket proxying is unavailable.
type Relay struct {
	endpoint string
	http     *http.Client
}

// RelayRequest is the payload describing the request the relay performs.
type RelayRequest struct {
	TargetURL string            `json:"targetUrl"`
	Method    string            `json:"method"`
	Headers   map[string]string `json:"headers,omitempty"`
	Body      json.RawMessage   `json:"body,omitempty"`
}

func (r *Relay) Forward(ctx context.Context, relayReq *RelayRequest) (*Result, error) {
	payload, err := json.Marshal(relayReq)
	if err != nil {
		return nil, fmt.Errorf("encode relay request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build relay request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("relay %v: %w", r.endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read relay response: %w", err)
	}

	return &Result{
		OK:     resp.StatusCode >= 200 && resp.StatusCode < 300,
		Status: resp.StatusCode,
		Body:   string(body),
	}, nil
}
