// Package batch sequences multiple natural-language requests against one
// process and performs best-effort rollback when an item fails.
//
// Execution is strictly sequential, never parallel, so later items may
// depend on the observable effects of earlier ones. Rollback is a
// notification pass over prior successful writes, not a compensating
// transaction: a process that needs true reversal must expose a declared
// compensating handler.
package batch

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/hibikihq/hibiki/internal/hibiki/dispatch"
	"github.com/hibikihq/hibiki/internal/hibiki/fail"
	"github.com/hibikihq/hibiki/internal/hibiki/intent"
	"github.com/hibikihq/hibiki/internal/hibiki/transport"
)

// Item is one request within a batch.
type Item struct {
	// Text is the free-text request.
	Text string `json:"request"`
	// Mode is the optional execution mode hint.
	Mode intent.Mode `json:"mode,omitempty"`
	// Params are optional explicit parameter values.
	Params map[string]any `json:"parameters,omitempty"`
	// RequireConfirmation is forwarded to the per-item risk assessment.
	RequireConfirmation bool `json:"requireConfirmation,omitempty"`
}

// Options controls batch failure handling.
type Options struct {
	// RollbackOnError stops the batch at the first failed item and runs the
	// rollback pass over prior successful writes. When false, the batch
	// continues through the full list regardless of individual failures.
	RollbackOnError bool
}

// ItemResult is the outcome of one batch item.
type ItemResult struct {
	// SequenceNumber is the 1-based position of the item.
	SequenceNumber int `json:"sequenceNumber"`
	// Request echoes the item's request text.
	Request string `json:"request"`
	// Success reports whether the item executed successfully.
	Success bool `json:"success"`
	// Result is the full pipeline result, when the item ran.
	Result *dispatch.Result `json:"result,omitempty"`
	// Error carries the structured failure when Success is false.
	Error *fail.Failure `json:"error,omitempty"`
	// Rollback marks the synthetic result appended by the rollback pass.
	Rollback bool `json:"rollback,omitempty"`
}

// Result aggregates a whole batch run.
type Result struct {
	// BatchID identifies the run.
	BatchID string `json:"batchId"`
	// TotalOperations is the number of requests submitted.
	TotalOperations int `json:"totalOperations"`
	// CompletedOperations counts items that executed successfully.
	CompletedOperations int `json:"completedOperations"`
	// FailedOperations counts failed items, including a failed rollback.
	FailedOperations int `json:"failedOperations"`
	// ExecutionTime is the wall-clock duration of the run.
	ExecutionTime time.Duration `json:"executionTime"`
	// Success is true when nothing failed, or when rollback was disabled
	// and partial completion is acceptable by construction.
	Success bool `json:"success"`
	// Results holds per-item outcomes plus at most one rollback entry, so
	// len(Results) <= TotalOperations+1.
	Results []ItemResult `json:"results"`
}

// Runner executes one request through the dispatch pipeline. *dispatch.Executor
// satisfies it; tests substitute stubs.
type Runner interface {
	Execute(ctx context.Context, req dispatch.Request) (*dispatch.Result, error)
}

// Orchestrator runs batches.
type Orchestrator struct {
	runner Runner
	client transport.Client
	logger *slog.Logger
}

// Option customises an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the orchestrator's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// New creates an Orchestrator. client is used only by the rollback pass to
// deliver reversal notices; pass nil to disable notices (rollback then only
// reports what would have been reversed).
func New(runner Runner, client transport.Client, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		runner: runner,
		client: client,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	return o
}

// Run executes items against processID strictly in order. Submitting a batch
// counts as confirming its items, so confirmation-required assessments do
// not pause mid-batch; the per-item risk assessment still runs and is
// recorded on each result.
func (o *Orchestrator) Run(ctx context.Context, processID string, items []Item, opts Options) *Result {
	started := time.Now()
	res := &Result{
		BatchID:         uuid.New().String(),
		TotalOperations: len(items),
	}

	var completedWrites []ItemResult

	for i, item := range items {
		seq := i + 1
		req := dispatch.Request{
			ProcessID:           processID,
			Text:                item.Text,
			Params:              item.Params,
			Mode:                item.Mode,
			RequireConfirmation: item.RequireConfirmation,
			Confirmed:           true,
			Batch: &dispatch.BatchContext{
				BatchID:  res.BatchID,
				Sequence: seq,
				Total:    len(items),
			},
		}

		itemRes := ItemResult{SequenceNumber: seq, Request: item.Text}

		out, err := o.runner.Execute(ctx, req)
		switch {
		case err != nil:
			itemRes.Error = wrapItemFailure(seq, fail.As(err))
		case out.Success:
			itemRes.Success = true
			itemRes.Result = out
		default:
			itemRes.Result = out
			failure := out.Failure
			if failure == nil {
				failure = fail.Newf(fail.CodeExecutionFailed, "item %d did not execute", seq)
			}
			itemRes.Error = wrapItemFailure(seq, failure)
		}

		res.Results = append(res.Results, itemRes)
		if itemRes.Success {
			res.CompletedOperations++
			if out.Operation == intent.OpWrite {
				completedWrites = append(completedWrites, itemRes)
			}
			continue
		}

		res.FailedOperations++
		o.logger.Warn("batch item failed",
			"batch", res.BatchID,
			"sequence", seq,
			"err", itemRes.Error,
		)

		if opts.RollbackOnError {
			rollback := o.rollback(ctx, processID, res.BatchID, completedWrites)
			rollback.SequenceNumber = len(res.Results) + 1
			res.Results = append(res.Results, rollback)
			if !rollback.Success {
				res.FailedOperations++
			}
			break
		}
	}

	res.ExecutionTime = time.Since(started)
	res.Success = res.FailedOperations == 0 || !opts.RollbackOnError
	return res
}

// rollback runs the best-effort reversal pass over the successful writes
// accumulated before the failure, most recent first. Each write gets one
// reversal notice; notice failures are collected, never escalated.
func (o *Orchestrator) rollback(ctx context.Context, processID, batchID string, writes []ItemResult) ItemResult {
	out := ItemResult{
		Request:  "rollback",
		Rollback: true,
		Success:  true,
	}

	if len(writes) == 0 {
		return out
	}

	failures := 0
	for i := len(writes) - 1; i >= 0; i-- {
		w := writes[i]
		if o.client == nil {
			o.logger.Info("rollback notice skipped (no transport)",
				"batch", batchID, "sequence", w.SequenceNumber)
			continue
		}
		msg := transport.Message{
			Process: processID,
			Tags: []transport.Tag{
				{Name: "Action", Value: "Rollback-Notice"},
				{Name: "Batch", Value: batchID},
				{Name: "Sequence", Value: strconv.Itoa(w.SequenceNumber)},
				{Name: "Handler", Value: w.Result.Handler},
			},
		}
		if _, err := o.client.Send(ctx, msg); err != nil {
			failures++
			o.logger.Warn("rollback notice failed",
				"batch", batchID, "sequence", w.SequenceNumber, "err", err)
		}
	}

	if failures > 0 {
		out.Success = false
		out.Error = fail.Newf(fail.CodeRollbackFailed, "%d of %d rollback notices failed", failures, len(writes))
	}
	return out
}

// wrapItemFailure tags a failure with its batch sequence number.
func wrapItemFailure(seq int, cause *fail.Failure) *fail.Failure {
	f := fail.Wrap(fail.CodeBatchItemFailed, cause, "batch item "+strconv.Itoa(seq)+" failed")
	return f
}
