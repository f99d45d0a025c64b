package commands

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/hibikihq/hibiki/common/version"
	"github.com/hibikihq/hibiki/internal/hibiki/batch"
	"github.com/hibikihq/hibiki/internal/hibiki/dispatch"
	"github.com/hibikihq/hibiki/internal/hibiki/intent"
	"github.com/hibikihq/hibiki/internal/hibiki/store"
)

// Handlers binds command handlers to their dependencies.
type Handlers struct {
	executor     *dispatch.Executor
	orchestrator *batch.Orchestrator
	store        *store.Store
	logger       *slog.Logger
}

// NewHandlers creates the handler set. store may be nil when persistence is
// disabled; memory and audit commands then report that.
func NewHandlers(executor *dispatch.Executor, orchestrator *batch.Orchestrator, st *store.Store, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		executor:     executor,
		orchestrator: orchestrator,
		store:        st,
		logger:       logger,
	}
}

// RegisterAll wires every handler into the router.
func (h *Handlers) RegisterAll(r *Router) {
	r.Register("describe", "describe <process> [--refresh]: show a process's capabilities", h.HandleDescribe)
	r.Register("execute", "execute <process> <request...> [--mode auto|read|write|validate] [--param k=v] [--confirm] [--yes]: run one request", h.HandleExecute)
	r.Register("batch.run", "batch run <process> --template <name> [--var k=v] [--rollback] | --request <text> ...: run a batch", h.HandleBatchRun)
	r.Register("batch.templates", "batch templates: list the built-in batch templates", h.HandleBatchTemplates)
	r.Register("memory.add", "memory add <process> <content...> [--role r] [--tag t]: store a memory", h.HandleMemoryAdd)
	r.Register("memory.list", "memory list <process> [--limit n]: list memories for a process", h.HandleMemoryList)
	r.Register("memory.search", "memory search <query...> [--limit n]: search memories", h.HandleMemorySearch)
	r.Register("memory.delete", "memory delete <id>: delete a memory", h.HandleMemoryDelete)
	r.Register("audit.tail", "audit tail [--limit n]: show recent audit entries", h.HandleAuditTail)
	r.Register("audit.trace", "audit trace <trace-id>: show audit entries for one trace", h.HandleAuditTrace)
	r.Register("version", "version: print build information", h.HandleVersion)
}

// HandleDescribe discovers (or re-reads from cache) a process's capabilities.
//
// Usage: hibiki describe <process> [--refresh]
func (h *Handlers) HandleDescribe(ctx context.Context, cmd *Command) (string, error) {
	processID, ok := cmd.GetArg(0)
	if !ok {
		return "", fmt.Errorf("usage: hibiki describe <process> [--refresh]")
	}

	snap, err := h.executor.Describe(ctx, processID, cmd.HasFlag("refresh"))
	if err != nil {
		return "", err
	}
	return snap.Docs, nil
}

// HandleExecute runs one free-text request against a process.
//
// Usage:
//
//	hibiki execute <process> <request...> [--mode auto|read|write|validate]
//	    [--param k=v ...] [--confirm] [--yes]
func (h *Handlers) HandleExecute(ctx context.Context, cmd *Command) (string, error) {
	processID, ok := cmd.GetArg(0)
	if !ok || len(cmd.Args) < 2 {
		return "", fmt.Errorf("usage: hibiki execute <process> <request...>")
	}
	text := strings.Join(cmd.Args[1:], " ")

	mode, err := intent.ParseMode(cmd.GetFlag("mode", ""))
	if err != nil {
		return "", err
	}

	params, err := parseParamFlags(cmd.FlagValues("param"))
	if err != nil {
		return "", err
	}

	res, err := h.executor.Execute(ctx, dispatch.Request{
		ProcessID:           processID,
		Text:                text,
		Params:              params,
		Mode:                mode,
		RequireConfirmation: cmd.HasFlag("confirm"),
		Confirmed:           cmd.HasFlag("yes"),
	})
	if err != nil {
		return "", err
	}
	return renderResult(res), nil
}

// HandleBatchRun runs a batch, either expanded from a built-in template or
// assembled from repeated --request flags.
//
// Usage:
//
//	hibiki batch run <process> --template <name> [--var k=v ...] [--rollback]
//	hibiki batch run <process> --request "check balance" --request "get info"
func (h *Handlers) HandleBatchRun(ctx context.Context, cmd *Command) (string, error) {
	processID, ok := cmd.GetArg(0)
	if !ok {
		return "", fmt.Errorf("usage: hibiki batch run <process> --template <name> | --request <text> ...")
	}

	var items []batch.Item
	if name := cmd.GetFlag("template", ""); name != "" {
		vars := make(map[string]string)
		for _, kv := range cmd.FlagValues("var") {
			k, v, found := strings.Cut(kv, "=")
			if !found {
				return "", fmt.Errorf("--var expects k=v, got %q", kv)
			}
			vars[k] = v
		}
		expanded, err := batch.Expand(batch.TemplateID(name), vars)
		if err != nil {
			return "", err
		}
		items = expanded
	} else {
		for _, text := range cmd.FlagValues("request") {
			items = append(items, batch.Item{Text: text})
		}
	}
	if len(items) == 0 {
		return "", fmt.Errorf("batch has no items; give --template or at least one --request")
	}

	res := h.orchestrator.Run(ctx, processID, items, batch.Options{
		RollbackOnError: cmd.HasFlag("rollback"),
	})
	return renderBatch(res), nil
}

// HandleBatchTemplates lists the built-in batch templates.
func (h *Handlers) HandleBatchTemplates(ctx context.Context, cmd *Command) (string, error) {
	var b strings.Builder
	for _, t := range batch.Templates() {
		fmt.Fprintf(&b, "%s: %s (%d steps)\n", t.ID, t.Description, len(t.Steps))
	}
	return b.String(), nil
}

// HandleMemoryAdd stores a memory about a process.
//
// Usage: hibiki memory add <process> <content...> [--role r] [--tag t ...]
func (h *Handlers) HandleMemoryAdd(ctx context.Context, cmd *Command) (string, error) {
	if h.store == nil {
		return "", fmt.Errorf("persistence is disabled; set a database path to use memories")
	}
	processID, ok := cmd.GetArg(0)
	if !ok || len(cmd.Args) < 2 {
		return "", fmt.Errorf("usage: hibiki memory add <process> <content...>")
	}
	content := strings.Join(cmd.Args[1:], " ")

	m, err := h.store.AddMemory(ctx, processID, cmd.GetFlag("role", "user"), content, cmd.FlagValues("tag"))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("stored memory %s for process %s", m.ID, m.ProcessID), nil
}

// HandleMemoryList lists memories for a process, newest first.
func (h *Handlers) HandleMemoryList(ctx context.Context, cmd *Command) (string, error) {
	if h.store == nil {
		return "", fmt.Errorf("persistence is disabled; set a database path to use memories")
	}
	processID, ok := cmd.GetArg(0)
	if !ok {
		return "", fmt.Errorf("usage: hibiki memory list <process> [--limit n]")
	}
	limit, err := parseLimit(cmd.GetFlag("limit", ""))
	if err != nil {
		return "", err
	}

	memories, err := h.store.ListMemories(ctx, processID, limit)
	if err != nil {
		return "", err
	}
	return renderMemories(memories), nil
}

// HandleMemorySearch searches memory content and tags.
func (h *Handlers) HandleMemorySearch(ctx context.Context, cmd *Command) (string, error) {
	if h.store == nil {
		return "", fmt.Errorf("persistence is disabled; set a database path to use memories")
	}
	if len(cmd.Args) == 0 {
		return "", fmt.Errorf("usage: hibiki memory search <query...> [--limit n]")
	}
	limit, err := parseLimit(cmd.GetFlag("limit", ""))
	if err != nil {
		return "", err
	}

	memories, err := h.store.SearchMemories(ctx, strings.Join(cmd.Args, " "), limit)
	if err != nil {
		return "", err
	}
	return renderMemories(memories), nil
}

// HandleMemoryDelete deletes one memory by ID.
func (h *Handlers) HandleMemoryDelete(ctx context.Context, cmd *Command) (string, error) {
	if h.store == nil {
		return "", fmt.Errorf("persistence is disabled; set a database path to use memories")
	}
	id, ok := cmd.GetArg(0)
	if !ok {
		return "", fmt.Errorf("usage: hibiki memory delete <id>")
	}
	if err := h.store.DeleteMemory(ctx, id); err != nil {
		return "", err
	}
	return "deleted memory " + id, nil
}

// HandleAuditTail shows the most recent audit entries.
func (h *Handlers) HandleAuditTail(ctx context.Context, cmd *Command) (string, error) {
	if h.store == nil {
		return "", fmt.Errorf("persistence is disabled; set a database path to use the audit log")
	}
	limit, err := parseLimit(cmd.GetFlag("limit", ""))
	if err != nil {
		return "", err
	}
	records, err := h.store.RecentAudit(ctx, limit)
	if err != nil {
		return "", err
	}
	return renderAudit(records), nil
}

// HandleAuditTrace shows the audit entries recorded under one trace ID.
func (h *Handlers) HandleAuditTrace(ctx context.Context, cmd *Command) (string, error) {
	if h.store == nil {
		return "", fmt.Errorf("persistence is disabled; set a database path to use the audit log")
	}
	traceID, ok := cmd.GetArg(0)
	if !ok {
		return "", fmt.Errorf("usage: hibiki audit trace <trace-id>")
	}
	records, err := h.store.AuditByTrace(ctx, traceID)
	if err != nil {
		return "", err
	}
	return renderAudit(records), nil
}

// HandleVersion prints build information.
func (h *Handlers) HandleVersion(ctx context.Context, cmd *Command) (string, error) {
	return "hibiki " + version.Info(), nil
}

// parseParamFlags turns repeated --param k=v flags into an explicit parameter
// map. Values stay strings; the extractor coerces them against the declared
// parameter types.
func parseParamFlags(kvs []string) (map[string]any, error) {
	if len(kvs) == 0 {
		return nil, nil
	}
	params := make(map[string]any, len(kvs))
	for _, kv := range kvs {
		k, v, found := strings.Cut(kv, "=")
		if !found || k == "" {
			return nil, fmt.Errorf("--param expects k=v, got %q", kv)
		}
		params[k] = v
	}
	return params, nil
}

func parseLimit(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("--limit must be a non-negative integer, got %q", raw)
	}
	return n, nil
}
