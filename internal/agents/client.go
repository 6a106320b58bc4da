package agents

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// QueryContext carries the minimal conversational context an agent gets.
type QueryContext struct {
	Addressed   bool     `json:"addressed"`
	Temperature *float64 `json:"temperature,omitempty"`
}

// QueryRequest is one question to an agent backend.
type QueryRequest struct {
	Message           string       `json:"message"`
	SenderID          string       `json:"sender_id"`
	SenderDisplayName string       `json:"sender_display_name,omitempty"`
	Context           QueryContext `json:"context"`
}

// QueryResponse is the agent's answer. A null response_text is a deliberate
// non-answer, not an error.
type QueryResponse struct {
	ResponseText *string `json:"response_text"`
	Error        string  `json:"error,omitempty"`
}

// Text returns the response text, empty when the agent declined to answer.
func (r QueryResponse) Text() string {
	if r.ResponseText == nil {
		return ""
	}
	return *r.ResponseText
}

// Client queries agent backends over HTTP. The per-agent timeout comes from
// the descriptor; latency and correctness of the generated text are
// entirely the agent's concern.
type Client struct {
	httpClient *http.Client
}

// NewClient creates an agent query client.
func NewClient() *Client {
	// Transport-level ceiling; each query also carries a context deadline
	// from the descriptor's timeout.
	return &Client{httpClient: &http.Client{Timeout: 120 * time.Second}}
}

// Query asks one agent to respond to a message.
func (c *Client) Query(ctx context.Context, ag Descriptor, req QueryRequest) (QueryResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, ag.Timeout)
	defer cancel()

	data, err := json.Marshal(req)
	if err != nil {
		return QueryResponse{}, fmt.Errorf("agent %s: marshal query: %w", ag.Name, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, ag.Endpoint, bytes.NewReader(data))
	if err != nil {
		return QueryResponse{}, fmt.Errorf("agent %s: build query: %w", ag.Name, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return QueryResponse{}, fmt.Errorf("agent %s: %w", ag.Name, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return QueryResponse{}, fmt.Errorf("agent %s: status %d: %s", ag.Name, resp.StatusCode, string(body))
	}

	var qr QueryResponse
	if err := json.Unmarshal(body, &qr); err != nil {
		return QueryResponse{}, fmt.Errorf("agent %s: decode response: %w", ag.Name, err)
	}
	if qr.Error != "" {
		return QueryResponse{}, fmt.Errorf("agent %s: %s", ag.Name, qr.Error)
	}
	return qr, nil
}
