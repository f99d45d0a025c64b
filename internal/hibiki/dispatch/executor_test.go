package dispatch_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/hibikihq/hibiki/internal/hibiki/dispatch"
	"github.com/hibikihq/hibiki/internal/hibiki/fail"
	"github.com/hibikihq/hibiki/internal/hibiki/intent"
	"github.com/hibikihq/hibiki/internal/hibiki/registry"
	"github.com/hibikihq/hibiki/internal/hibiki/risk"
	"github.com/hibikihq/hibiki/internal/hibiki/transport"
)

func boolPtr(b bool) *bool { return &b }

// snapshotSource serves a fixed snapshot without any network.
type snapshotSource struct {
	snap *registry.Snapshot
	err  error
}

func (s *snapshotSource) Discover(ctx context.Context, processID string) (*registry.Snapshot, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.snap, nil
}

// fakeClient records sent and dry-run messages.
type fakeClient struct {
	mu      sync.Mutex
	sent    []transport.Message
	dryRuns []transport.Message
	reply   transport.Reply
	err     error
}

func (f *fakeClient) Send(ctx context.Context, msg transport.Message) (*transport.Reply, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.sent = append(f.sent, msg)
	r := f.reply
	return &r, nil
}

func (f *fakeClient) DryRun(ctx context.Context, msg transport.Message) (*transport.Reply, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.dryRuns = append(f.dryRuns, msg)
	r := f.reply
	return &r, nil
}

// memoryRecorder captures audit entries.
type memoryRecorder struct {
	mu      sync.Mutex
	entries []dispatch.AuditEntry
}

func (m *memoryRecorder) Record(ctx context.Context, entry dispatch.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
	return nil
}

func tokenSnapshot() *registry.Snapshot {
	return &registry.Snapshot{
		ProcessID: "proc-token-1",
		Name:      "CoolToken",
		Ticker:    "COOL",
		Protocol:  registry.ProtocolRegistry,
		Category:  registry.ProcessToken,
		Handlers: []registry.HandlerDescriptor{
			{
				Action:      "Balance",
				Description: "Returns the token balance of a target account",
				IsWrite:     boolPtr(false),
				Parameters: []registry.ParameterDescriptor{
					{Name: "target", Type: registry.ParamAddress, Required: false},
				},
				Examples: []string{"check my balance"},
			},
			{
				Action:      "Transfer",
				Description: "Moves tokens to a recipient",
				IsWrite:     boolPtr(true),
				Parameters: []registry.ParameterDescriptor{
					{Name: "target", Type: registry.ParamAddress, Required: true},
					{Name: "amount", Type: registry.ParamNumber, Required: true},
				},
				Examples: []string{"transfer 100 tokens to alice"},
			},
		},
	}
}

func newExecutor(client transport.Client, rec dispatch.Recorder) *dispatch.Executor {
	cache := registry.NewCache(&snapshotSource{snap: tokenSnapshot()})
	opts := []dispatch.Option{}
	if rec != nil {
		opts = append(opts, dispatch.WithRecorder(rec))
	}
	return dispatch.New(cache, client, opts...)
}

func TestExecute_TransferEndToEnd(t *testing.T) {
	client := &fakeClient{reply: transport.Reply{MessageID: "msg-1", Data: "ok"}}
	rec := &memoryRecorder{}
	exec := newExecutor(client, rec)

	res, err := exec.Execute(context.Background(), dispatch.Request{
		ProcessID: "proc-token-1",
		Text:      "transfer 100 tokens to alice",
		Confirmed: true,
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !res.Success {
		t.Fatalf("expected success, got %+v", res.Failure)
	}
	if res.Handler != "Transfer" {
		t.Errorf("expected Transfer, got %s", res.Handler)
	}
	if res.Operation != intent.OpWrite {
		t.Errorf("expected write, got %s", res.Operation)
	}
	if res.Params["target"] != "alice" || res.Params["amount"] != float64(100) {
		t.Errorf("unexpected params %v", res.Params)
	}
	if res.Assessment == nil || res.Assessment.Level == risk.Low {
		t.Errorf("value transfer must be at least medium risk")
	}

	// Writes go through Send, not DryRun.
	if len(client.sent) != 1 || len(client.dryRuns) != 0 {
		t.Errorf("expected 1 send / 0 dryruns, got %d/%d", len(client.sent), len(client.dryRuns))
	}
	msg := client.sent[0]
	if v, _ := msg.Tag("Action"); v != "Transfer" {
		t.Errorf("unexpected action tag %q", v)
	}
	if v, _ := msg.Tag("Amount"); v != "100" {
		t.Errorf("unexpected amount tag %q", v)
	}
	if v, _ := msg.Tag("Target"); v != "alice" {
		t.Errorf("unexpected target tag %q", v)
	}

	if len(rec.entries) != 1 {
		t.Fatalf("expected 1 audit entry, got %d", len(rec.entries))
	}
	entry := rec.entries[0]
	if !entry.Success || entry.Handler != "Transfer" || entry.TraceID == "" {
		t.Errorf("unexpected audit entry %+v", entry)
	}
}

func TestExecute_ReadsUseDryRun(t *testing.T) {
	client := &fakeClient{reply: transport.Reply{Data: `{"Balance":"1000"}`}}
	exec := newExecutor(client, nil)

	res, err := exec.Execute(context.Background(), dispatch.Request{
		ProcessID: "proc-token-1",
		Text:      "check my balance",
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !res.Success {
		t.Fatalf("expected success, got %+v", res.Failure)
	}
	if res.Operation != intent.OpRead {
		t.Errorf("expected read, got %s", res.Operation)
	}
	if len(client.dryRuns) != 1 || len(client.sent) != 0 {
		t.Errorf("reads must use DryRun, got %d sends / %d dryruns", len(client.sent), len(client.dryRuns))
	}
}

func TestExecute_PausesForConfirmation(t *testing.T) {
	client := &fakeClient{reply: transport.Reply{MessageID: "msg-1", Data: "ok"}}
	exec := newExecutor(client, nil)

	req := dispatch.Request{
		ProcessID: "proc-token-1",
		Text:      "transfer 500000 tokens to alice",
	}
	res, err := exec.Execute(context.Background(), req)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !res.PendingConfirmation {
		t.Fatal("expected a confirmation pause")
	}
	if res.Success {
		t.Error("paused requests are not successes")
	}
	if res.Failure != nil {
		t.Error("paused requests are not failures")
	}
	if res.Assessment == nil {
		t.Fatal("paused requests must carry the assessment")
	}
	if len(client.sent) != 0 {
		t.Error("nothing may be sent before confirmation")
	}

	// Re-submitting with Confirmed executes.
	req.Confirmed = true
	res, err = exec.Execute(context.Background(), req)
	if err != nil {
		t.Fatalf("Execute confirmed: %v", err)
	}
	if !res.Success || res.PendingConfirmation {
		t.Errorf("confirmed request should execute, got %+v", res)
	}
	if len(client.sent) != 1 {
		t.Errorf("expected exactly 1 send after confirmation, got %d", len(client.sent))
	}
}

func TestExecute_FoldsPipelineFailuresIntoResult(t *testing.T) {
	client := &fakeClient{reply: transport.Reply{Data: "ok"}}
	exec := newExecutor(client, nil)

	res, err := exec.Execute(context.Background(), dispatch.Request{
		ProcessID: "proc-token-1",
		Text:      "frobnicate the widgets",
	})
	if err != nil {
		t.Fatalf("pipeline failures must not surface as errors: %v", err)
	}
	if res.Success {
		t.Fatal("expected failure result")
	}
	if res.Failure == nil || res.Failure.Code != fail.CodeMatchNoHandler {
		t.Errorf("expected MATCH_NO_HANDLER, got %+v", res.Failure)
	}
}

func TestExecute_DiscoveryFailure(t *testing.T) {
	cache := registry.NewCache(&snapshotSource{err: fail.New(fail.CodeDiscoveryTimeout, "slow")})
	exec := dispatch.New(cache, &fakeClient{})

	res, err := exec.Execute(context.Background(), dispatch.Request{
		ProcessID: "proc-slow",
		Text:      "check balance",
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Failure == nil || res.Failure.Code != fail.CodeDiscoveryTimeout {
		t.Errorf("expected DISCOVERY_TIMEOUT, got %+v", res.Failure)
	}
}

func TestExecute_TransportFailure(t *testing.T) {
	client := &fakeClient{err: errors.New("gateway unreachable")}
	cache := registry.NewCache(&snapshotSource{snap: tokenSnapshot()})
	exec := dispatch.New(cache, client)

	res, err := exec.Execute(context.Background(), dispatch.Request{
		ProcessID: "proc-token-1",
		Text:      "check my balance",
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Failure == nil || res.Failure.Code != fail.CodeExecutionFailed {
		t.Errorf("expected EXECUTION_FAILED, got %+v", res.Failure)
	}
}

func TestExecute_InputValidation(t *testing.T) {
	exec := newExecutor(&fakeClient{}, nil)

	if _, err := exec.Execute(context.Background(), dispatch.Request{Text: "check balance"}); err == nil {
		t.Error("missing process identity must fail fast")
	}
	if _, err := exec.Execute(context.Background(), dispatch.Request{ProcessID: "p"}); err == nil {
		t.Error("missing text must fail fast")
	}
}

func TestDescribe(t *testing.T) {
	exec := newExecutor(&fakeClient{}, nil)

	snap, err := exec.Describe(context.Background(), "proc-token-1", false)
	if err != nil {
		t.Fatalf("Describe: %v", err)
	}
	if snap.ProcessID != "proc-token-1" {
		t.Errorf("unexpected snapshot %+v", snap)
	}
	if _, err := exec.Describe(context.Background(), "  ", false); err == nil {
		t.Error("empty identity must be rejected")
	}
}
