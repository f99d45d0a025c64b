// Package dispatch runs the request pipeline: discover capabilities, match
// the free-text request to a handler, classify and risk-assess it, then
// execute it through the transport.
//
// Every public entry point folds internal failures into a structured Result
// the caller can branch on. The one exception is synchronous input
// validation: an empty process identity or request fails fast with a plain
// error before any network work begins.
package dispatch

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/hibikihq/hibiki/common/redact"
	"github.com/hibikihq/hibiki/common/trace"
	"github.com/hibikihq/hibiki/internal/hibiki/fail"
	"github.com/hibikihq/hibiki/internal/hibiki/intent"
	"github.com/hibikihq/hibiki/internal/hibiki/registry"
	"github.com/hibikihq/hibiki/internal/hibiki/risk"
	"github.com/hibikihq/hibiki/internal/hibiki/transport"
)

// BatchContext marks a request as one item of an ordered batch.
type BatchContext struct {
	// BatchID identifies the batch the request belongs to.
	BatchID string `json:"batchId"`
	// Sequence is the 1-based position of the request within the batch.
	Sequence int `json:"sequence"`
	// Total is the number of requests in the batch.
	Total int `json:"total"`
}

// Request is one natural-language execution request.
type Request struct {
	// ProcessID is the identity of the target process.
	ProcessID string `json:"processId"`
	// Text is the free-text request ("transfer 100 tokens to alice").
	Text string `json:"text"`
	// Params are caller-supplied parameter values that win over extraction.
	Params map[string]any `json:"params,omitempty"`
	// Mode is the execution mode hint; empty means auto.
	Mode intent.Mode `json:"mode,omitempty"`
	// RequireConfirmation forces a confirmation pause regardless of risk.
	RequireConfirmation bool `json:"requireConfirmation,omitempty"`
	// Confirmed marks the request as already confirmed by the caller, so a
	// confirmation-required assessment does not pause execution.
	Confirmed bool `json:"confirmed,omitempty"`
	// Batch is set when the request runs inside a batch.
	Batch *BatchContext `json:"batch,omitempty"`
}

// Result is the structured outcome of one pipeline run.
type Result struct {
	// Success reports whether the request executed successfully.
	Success bool `json:"success"`
	// ProcessID and Text echo the request.
	ProcessID string `json:"processId"`
	Text      string `json:"text"`
	// Handler is the matched handler action, when matching succeeded.
	Handler string `json:"handler,omitempty"`
	// Operation is the classified operation type.
	Operation intent.OpType `json:"operation,omitempty"`
	// Confidence is the match confidence.
	Confidence float64 `json:"confidence,omitempty"`
	// Params are the resolved parameter values sent as tags.
	Params map[string]any `json:"params,omitempty"`
	// Assessment is the risk verdict; always set once matching succeeded.
	Assessment *risk.Assessment `json:"assessment,omitempty"`
	// PendingConfirmation is true when execution paused for confirmation.
	// The request was NOT executed; re-submit with Confirmed set.
	PendingConfirmation bool `json:"pendingConfirmation,omitempty"`
	// MessageID is the transport identity of the executed message.
	MessageID string `json:"messageId,omitempty"`
	// Output is the raw reply payload.
	Output string `json:"output,omitempty"`
	// Failure carries the structured error when Success is false.
	Failure *fail.Failure `json:"error,omitempty"`
	// Duration is the wall-clock time of the pipeline run.
	Duration time.Duration `json:"duration"`
}

// AuditEntry is what the executor hands to a Recorder after each run.
type AuditEntry struct {
	TraceID   string
	ProcessID string
	Handler   string
	Operation string
	Risk      string
	Params    map[string]any
	Success   bool
	Error     string
}

// Recorder persists audit entries for executed requests. A nil Recorder
// disables auditing; recording failures are logged, never propagated.
type Recorder interface {
	Record(ctx context.Context, entry AuditEntry) error
}

// Executor drives the dispatch pipeline.
type Executor struct {
	cache    *registry.Cache
	client   transport.Client
	recorder Recorder
	logger   *slog.Logger
}

// Option customises an Executor.
type Option func(*Executor)

// WithRecorder attaches an audit recorder.
func WithRecorder(r Recorder) Option {
	return func(e *Executor) { e.recorder = r }
}

// WithLogger sets the executor's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Executor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// New creates an Executor that discovers through cache and executes through
// client.
func New(cache *registry.Cache, client transport.Client, opts ...Option) *Executor {
	e := &Executor{
		cache:  cache,
		client: client,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// Describe returns the capability snapshot for processID, discovering it
// when not cached. force bypasses the cache.
func (e *Executor) Describe(ctx context.Context, processID string, force bool) (*registry.Snapshot, error) {
	if strings.TrimSpace(processID) == "" {
		return nil, fail.New(fail.CodeInvalidInput, "process identity must not be empty")
	}
	return e.cache.GetOrDiscover(ctx, processID, force)
}

// Execute runs the full pipeline for one request. It returns a non-nil
// error only when the request fails synchronous input validation; every
// later failure is folded into the Result.
func (e *Executor) Execute(ctx context.Context, req Request) (*Result, error) {
	req.ProcessID = strings.TrimSpace(req.ProcessID)
	req.Text = strings.TrimSpace(req.Text)
	if req.ProcessID == "" {
		return nil, fail.New(fail.CodeInvalidInput, "process identity must not be empty")
	}
	if req.Text == "" {
		return nil, fail.New(fail.CodeInvalidInput, "request text must not be empty")
	}

	ctx, _ = trace.Ensure(ctx)

	started := time.Now()
	res := &Result{ProcessID: req.ProcessID, Text: req.Text}
	finish := func() *Result {
		res.Duration = time.Since(started)
		e.record(ctx, req, res)
		return res
	}

	snap, err := e.cache.GetOrDiscover(ctx, req.ProcessID, false)
	if err != nil {
		res.Failure = fail.As(err)
		return finish(), nil
	}

	match, err := intent.Match(req.Text, snap, req.Params)
	if err != nil {
		res.Failure = fail.As(err)
		return finish(), nil
	}
	res.Handler = match.Handler.Action
	res.Confidence = match.Confidence
	res.Params = match.Params

	class := intent.Classify(req.Text, req.Mode, match.Handler)
	res.Operation = class.Type

	assessment := risk.Assess(risk.Input{
		ProcessID:           req.ProcessID,
		Text:                req.Text,
		Handler:             match.Handler,
		Params:              match.Params,
		Classification:      class,
		RequireConfirmation: req.RequireConfirmation,
		InBatch:             req.Batch != nil,
	})
	res.Assessment = assessment

	if assessment.ConfirmationRequired && !req.Confirmed {
		res.PendingConfirmation = true
		e.logger.Info("execution paused for confirmation",
			"process", req.ProcessID,
			"handler", res.Handler,
			"risk", assessment.Level,
		)
		return finish(), nil
	}

	msg := transport.NewMessage(req.ProcessID, match.Handler.Action, match.Params, "")

	var reply *transport.Reply
	if class.Type == intent.OpWrite {
		reply, err = e.client.Send(ctx, msg)
	} else {
		// Reads and validations are evaluated without committing a message.
		reply, err = e.client.DryRun(ctx, msg)
	}
	if err != nil {
		res.Failure = fail.Wrap(fail.CodeExecutionFailed, err, "process "+req.ProcessID+" did not execute "+match.Handler.Action)
		return finish(), nil
	}

	res.Success = true
	res.MessageID = reply.MessageID
	res.Output = reply.Data

	e.logger.Info("executed request",
		"process", req.ProcessID,
		"handler", res.Handler,
		"operation", res.Operation,
		"risk", assessment.Level,
		"confidence", res.Confidence,
	)
	return finish(), nil
}

// record writes the audit entry for a finished run. Failures here must not
// affect the caller's result.
func (e *Executor) record(ctx context.Context, req Request, res *Result) {
	if e.recorder == nil {
		return
	}
	entry := AuditEntry{
		TraceID:   trace.FromContext(ctx),
		ProcessID: req.ProcessID,
		Handler:   res.Handler,
		Operation: string(res.Operation),
		Params:    redact.Map(res.Params),
		Success:   res.Success,
	}
	if res.Assessment != nil {
		entry.Risk = string(res.Assessment.Level)
	}
	if res.Failure != nil {
		entry.Error = res.Failure.Error()
	}
	if err := e.recorder.Record(ctx, entry); err != nil {
		e.logger.Warn("audit record failed", "process", req.ProcessID, "err", err)
	}
}
