package registry

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/hibikihq/hibiki/internal/hibiki/fail"
	"github.com/hibikihq/hibiki/internal/hibiki/transport"
)

// DefaultTimeout bounds one discovery round-trip. Whichever settles first,
// the correlated response or the timer, decides the outcome, so a silent
// process can never hang a caller.
const DefaultTimeout = 10 * time.Second

// describeAction is the conventional handler every process answers with a
// self-description.
const describeAction = "Info"

// Discoverer performs the describe round-trip against remote processes and
// normalises whatever comes back into a Snapshot.
type Discoverer struct {
	client  transport.Client
	timeout time.Duration
	logger  *slog.Logger
}

// DiscovererOption customises a Discoverer.
type DiscovererOption func(*Discoverer)

// WithTimeout overrides the discovery timeout. Non-positive values keep the
// default.
func WithTimeout(d time.Duration) DiscovererOption {
	return func(dc *Discoverer) {
		if d > 0 {
			dc.timeout = d
		}
	}
}

// WithLogger sets the logger used for discovery diagnostics.
func WithLogger(logger *slog.Logger) DiscovererOption {
	return func(dc *Discoverer) {
		if logger != nil {
			dc.logger = logger
		}
	}
}

// NewDiscoverer creates a Discoverer that reaches processes through client.
func NewDiscoverer(client transport.Client, opts ...DiscovererOption) *Discoverer {
	d := &Discoverer{
		client:  client,
		timeout: DefaultTimeout,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d
}

// Discover sends a single describe message to processID and awaits exactly
// one correlated response, raced against the discovery timeout. The payload
// is tried as a registry-compliant document, then as arbitrary JSON (legacy,
// no handlers), then as free-text markdown documentation.
func (d *Discoverer) Discover(ctx context.Context, processID string) (*Snapshot, error) {
	if strings.TrimSpace(processID) == "" {
		return nil, fail.New(fail.CodeInvalidInput, "process identity must not be empty")
	}

	msg := transport.NewMessage(processID, describeAction, nil, "")

	type replyOutcome struct {
		reply *transport.Reply
		err   error
	}

	replyCh := make(chan replyOutcome, 1)
	go func() {
		r, err := d.client.DryRun(ctx, msg)
		replyCh <- replyOutcome{reply: r, err: err}
	}()

	timer := time.NewTimer(d.timeout)
	defer timer.Stop()

	var reply *transport.Reply
	select {
	case out := <-replyCh:
		if out.err != nil {
			return nil, fail.Wrap(fail.CodeDiscoveryNoResponse, out.err, "no response from process "+processID)
		}
		reply = out.reply
	case <-timer.C:
		// The in-flight request is abandoned, not cancelled: only its
		// result can be ignored once issued.
		return nil, fail.Newf(fail.CodeDiscoveryTimeout, "Timeout: no response from process %s within %s", processID, d.timeout)
	case <-ctx.Done():
		return nil, fail.Wrap(fail.CodeDiscoveryTimeout, ctx.Err(), "Timeout: discovery cancelled for process "+processID)
	}

	if reply == nil || strings.TrimSpace(reply.Data) == "" {
		return nil, fail.New(fail.CodeDiscoveryEmptyData, "process "+processID+" responded without a payload")
	}

	snap, err := d.parsePayload(processID, reply.Data)
	if err != nil {
		return nil, err
	}
	snap.DiscoveredAt = time.Now()
	snap.Docs = RenderDocs(snap)

	d.logger.Debug("discovered process",
		"process", processID,
		"protocol", snap.Protocol,
		"category", snap.Category,
		"handlers", len(snap.Handlers),
	)
	return snap, nil
}

// parsePayload normalises a describe payload into a Snapshot, trying the
// registry dialect, arbitrary JSON, and the markdown convention in order.
func (d *Discoverer) parsePayload(processID, data string) (*Snapshot, error) {
	if doc, err := parseRegistryDocument(data); err == nil {
		return snapshotFromDocument(processID, doc), nil
	}

	// Arbitrary JSON: a process that answers Info with some other JSON shape
	// is treated as legacy with no discoverable handlers.
	var generic map[string]any
	if err := json.Unmarshal([]byte(data), &generic); err == nil {
		snap := &Snapshot{
			ProcessID: processID,
			Handlers:  nil,
			Protocol:  ProtocolLegacy,
			Category:  InferCategory(nil, false),
		}
		if name, ok := generic["Name"].(string); ok {
			snap.Name = name
		}
		if desc, ok := generic["Description"].(string); ok {
			snap.Description = desc
		}
		return snap, nil
	}

	snap, err := parseMarkdownDocs(processID, data)
	if err != nil {
		return nil, fail.Wrap(fail.CodeDiscoveryParseFailure, err, "could not interpret the description returned by "+processID)
	}
	return snap, nil
}
