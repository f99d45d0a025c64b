package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hibikihq/hibiki/common/retry"
	"github.com/hibikihq/hibiki/common/trace"
)

const defaultHTTPTimeout = 10 * time.Second

// ErrResultPending is returned internally while the gateway has accepted a
// message but not yet scheduled its result. The poll loop retries on it.
var ErrResultPending = errors.New("transport: result not yet available")

// Gateway is an HTTP Client for a message gateway that signs and forwards
// messages to remote processes.
//
// Endpoints:
//
//	POST /processes/{id}/dryrun   → Reply (evaluated, not committed)
//	POST /processes/{id}/messages → {"message_id": "..."}
//	GET  /messages/{id}/result    → Reply (202 while pending)
type Gateway struct {
	baseURL    string
	httpClient *http.Client
	poll       retry.Config
}

// GatewayOption customises a Gateway.
type GatewayOption func(*Gateway)

// WithHTTPClient replaces the underlying HTTP client (used by tests to
// shorten timeouts).
func WithHTTPClient(c *http.Client) GatewayOption {
	return func(g *Gateway) { g.httpClient = c }
}

// WithPollConfig replaces the result-poll retry configuration.
func WithPollConfig(cfg retry.Config) GatewayOption {
	return func(g *Gateway) { g.poll = cfg }
}

// NewGateway creates a Gateway targeting the given base URL
// (e.g. "https://gateway.example.net").
func NewGateway(baseURL string, opts ...GatewayOption) *Gateway {
	g := &Gateway{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: defaultHTTPTimeout,
		},
		poll: retry.Config{
			MaxAttempts:  10,
			InitialDelay: 250 * time.Millisecond,
			MaxDelay:     2 * time.Second,
			ShouldRetry: func(err error) bool {
				return errors.Is(err, ErrResultPending)
			},
		},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return g
}

// sendResponse is the body returned by POST /processes/{id}/messages.
type sendResponse struct {
	MessageID string `json:"message_id"`
}

// errorResponse is the structured error body returned by the gateway.
type errorResponse struct {
	Error string `json:"error"`
}

// Send pushes msg through the gateway, then polls for the correlated result.
// Once the POST has been accepted the message is committed: cancelling ctx
// abandons the poll, it does not recall the message.
func (g *Gateway) Send(ctx context.Context, msg Message) (*Reply, error) {
	var accepted sendResponse
	path := fmt.Sprintf("/processes/%s/messages", msg.Process)
	if err := g.post(ctx, path, msg, &accepted); err != nil {
		return nil, fmt.Errorf("send message: %w", err)
	}
	if accepted.MessageID == "" {
		return nil, fmt.Errorf("send message: gateway returned no message id")
	}

	var reply Reply
	err := retry.Do(ctx, g.poll, func() error {
		return g.get(ctx, fmt.Sprintf("/messages/%s/result", accepted.MessageID), &reply)
	})
	if err != nil {
		return nil, fmt.Errorf("await result %s: %w", accepted.MessageID, err)
	}
	reply.MessageID = accepted.MessageID
	return &reply, nil
}

// DryRun evaluates msg against current process state without committing it.
func (g *Gateway) DryRun(ctx context.Context, msg Message) (*Reply, error) {
	var reply Reply
	path := fmt.Sprintf("/processes/%s/dryrun", msg.Process)
	if err := g.post(ctx, path, msg, &reply); err != nil {
		return nil, fmt.Errorf("dryrun: %w", err)
	}
	return &reply, nil
}

// --- internal helpers ---

func (g *Gateway) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+path, nil)
	if err != nil {
		return err
	}
	setTraceHeader(req, ctx)
	return g.do(req, out)
}

func (g *Gateway) post(ctx context.Context, path string, body, out interface{}) error {
	var bodyReader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bodyReader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	setTraceHeader(req, ctx)
	return g.do(req, out)
}

// setTraceHeader injects the trace ID from ctx into the trace header.
func setTraceHeader(req *http.Request, ctx context.Context) {
	if traceID := trace.FromContext(ctx); traceID != "" {
		req.Header.Set(trace.Header, traceID)
	}
}

func (g *Gateway) do(req *http.Request, out interface{}) error {
	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}

	if resp.StatusCode == http.StatusAccepted {
		return ErrResultPending
	}
	if resp.StatusCode >= 400 {
		var errResp errorResponse
		if jsonErr := json.Unmarshal(bodyBytes, &errResp); jsonErr == nil && errResp.Error != "" {
			return fmt.Errorf("gateway %s %s → %d: %s", req.Method, req.URL.Path, resp.StatusCode, errResp.Error)
		}
		return fmt.Errorf("gateway %s %s → %d", req.Method, req.URL.Path, resp.StatusCode)
	}

	if out != nil && len(bodyBytes) > 0 {
		if err := json.Unmarshal(bodyBytes, out); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}
