package commands

import (
	"fmt"
	"strings"

	"github.com/hibikihq/hibiki/internal/hibiki/batch"
	"github.com/hibikihq/hibiki/internal/hibiki/dispatch"
	"github.com/hibikihq/hibiki/internal/hibiki/store"
)

// renderResult formats one pipeline result for the terminal.
func renderResult(res *dispatch.Result) string {
	var b strings.Builder

	switch {
	case res.PendingConfirmation:
		b.WriteString("⏸ confirmation required\n")
	case res.Success:
		b.WriteString("✓ executed\n")
	default:
		b.WriteString("✗ failed\n")
	}

	fmt.Fprintf(&b, "process:    %s\n", res.ProcessID)
	if res.Handler != "" {
		fmt.Fprintf(&b, "handler:    %s (%s, confidence %.2f)\n", res.Handler, res.Operation, res.Confidence)
	}
	if len(res.Params) > 0 {
		fmt.Fprintf(&b, "params:     %v\n", res.Params)
	}
	if res.MessageID != "" {
		fmt.Fprintf(&b, "message:    %s\n", res.MessageID)
	}
	if res.Output != "" {
		fmt.Fprintf(&b, "output:     %s\n", res.Output)
	}
	if res.Failure != nil {
		fmt.Fprintf(&b, "error:      %s\n", res.Failure.Error())
		for _, s := range res.Failure.Solutions {
			fmt.Fprintf(&b, "  hint: %s\n", s)
		}
	}

	if a := res.Assessment; a != nil {
		fmt.Fprintf(&b, "risk:       %s\n", a.Level)
		for _, w := range a.Warnings {
			fmt.Fprintf(&b, "  warning: %s\n", w)
		}
		if res.PendingConfirmation {
			fmt.Fprintf(&b, "\n%s\n%s\n", a.Title, a.Message)
			for _, c := range a.Consequences {
				fmt.Fprintf(&b, "  - %s\n", c)
			}
			b.WriteString("options:\n")
			for _, o := range a.Options {
				marker := " "
				if o.Recommended {
					marker = "*"
				}
				fmt.Fprintf(&b, "  %s %-9s %s\n", marker, o.Action, o.Label)
			}
			b.WriteString("re-run with --yes to proceed\n")
		}
	}

	fmt.Fprintf(&b, "duration:   %s\n", res.Duration)
	return b.String()
}

// renderBatch formats a whole batch run.
func renderBatch(res *batch.Result) string {
	var b strings.Builder
	status := "✗ batch failed"
	if res.Success {
		status = "✓ batch finished"
	}
	fmt.Fprintf(&b, "%s (%s)\n", status, res.BatchID)
	fmt.Fprintf(&b, "operations: %d total, %d completed, %d failed in %s\n",
		res.TotalOperations, res.CompletedOperations, res.FailedOperations, res.ExecutionTime)

	for _, item := range res.Results {
		mark := "✗"
		if item.Success {
			mark = "✓"
		}
		label := item.Request
		if item.Rollback {
			label = "rollback pass"
		}
		fmt.Fprintf(&b, "  %s %d. %s", mark, item.SequenceNumber, label)
		if item.Error != nil {
			fmt.Fprintf(&b, " (%s)", item.Error.Error())
		}
		b.WriteString("\n")
	}
	return b.String()
}

// renderMemories formats a memory listing.
func renderMemories(memories []*store.Memory) string {
	if len(memories) == 0 {
		return "no memories found\n"
	}
	var b strings.Builder
	for _, m := range memories {
		fmt.Fprintf(&b, "%s  %s  [%s]", m.CreatedAt.Format("2006-01-02 15:04"), m.ID, m.Role)
		if len(m.Tags) > 0 {
			fmt.Fprintf(&b, " #%s", strings.Join(m.Tags, " #"))
		}
		fmt.Fprintf(&b, "\n  %s\n", m.Content)
	}
	return b.String()
}

// renderAudit formats audit records.
func renderAudit(records []*store.AuditRecord) string {
	if len(records) == 0 {
		return "no audit entries found\n"
	}
	var b strings.Builder
	for _, r := range records {
		outcome := "error"
		if r.Success {
			outcome = "ok"
		}
		fmt.Fprintf(&b, "%s  %-5s %s %s/%s risk=%s trace=%s",
			r.Timestamp.Format("2006-01-02 15:04:05"), outcome,
			r.ProcessID, r.Handler.String, r.Operation.String, r.Risk.String, r.TraceID)
		if r.ErrorMessage.Valid {
			fmt.Fprintf(&b, " err=%q", r.ErrorMessage.String)
		}
		b.WriteString("\n")
	}
	return b.String()
}
