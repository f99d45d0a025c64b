package registry

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/hibikihq/hibiki/internal/hibiki/fail"
	"github.com/hibikihq/hibiki/internal/hibiki/transport"
)

// stubClient answers DryRun with a fixed payload, or blocks until the test
// context is cancelled when block is set.
type stubClient struct {
	payload string
	err     error
	block   bool
}

func (s *stubClient) Send(ctx context.Context, msg transport.Message) (*transport.Reply, error) {
	return s.DryRun(ctx, msg)
}

func (s *stubClient) DryRun(ctx context.Context, msg transport.Message) (*transport.Reply, error) {
	if s.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if s.err != nil {
		return nil, s.err
	}
	return &transport.Reply{Data: s.payload}, nil
}

func TestDiscover_RegistryDocument(t *testing.T) {
	d := NewDiscoverer(&stubClient{payload: registryPayload})

	snap, err := d.Discover(context.Background(), "proc-token-1")
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if snap.Protocol != ProtocolRegistry {
		t.Errorf("expected registry protocol, got %s", snap.Protocol)
	}
	if snap.DiscoveredAt.IsZero() {
		t.Error("DiscoveredAt must be set")
	}
	if snap.Docs == "" {
		t.Error("Docs must be rendered")
	}
	for _, h := range snap.Handlers {
		if h.IsWrite == nil {
			t.Errorf("registry handler %s must carry a non-nil IsWrite", h.Action)
		}
	}
}

func TestDiscover_LegacyJSON(t *testing.T) {
	d := NewDiscoverer(&stubClient{payload: `{"Name": "Old Process", "Description": "pre-registry", "Version": 3}`})

	snap, err := d.Discover(context.Background(), "proc-old")
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if snap.Protocol != ProtocolLegacy {
		t.Errorf("non-registry JSON must be legacy, got %s", snap.Protocol)
	}
	if snap.Name != "Old Process" {
		t.Errorf("unexpected name %q", snap.Name)
	}
	if len(snap.Handlers) != 0 {
		t.Errorf("legacy JSON exposes no handlers, got %d", len(snap.Handlers))
	}
}

func TestDiscover_MarkdownFallback(t *testing.T) {
	d := NewDiscoverer(&stubClient{payload: markdownPayload})

	snap, err := d.Discover(context.Background(), "proc-md")
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if snap.Protocol != ProtocolLegacy {
		t.Errorf("markdown must be legacy, got %s", snap.Protocol)
	}
	if len(snap.Handlers) != 2 {
		t.Errorf("expected 2 handlers, got %d", len(snap.Handlers))
	}
}

func TestDiscover_Timeout(t *testing.T) {
	d := NewDiscoverer(&stubClient{block: true}, WithTimeout(20*time.Millisecond))

	start := time.Now()
	_, err := d.Discover(context.Background(), "proc-slow")
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if fail.CodeOf(err) != fail.CodeDiscoveryTimeout {
		t.Errorf("expected DISCOVERY_TIMEOUT, got %s", fail.CodeOf(err))
	}
	if !strings.Contains(err.Error(), "Timeout") {
		t.Errorf("timeout message must identify itself, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("discovery did not respect the timeout, took %v", elapsed)
	}
}

func TestDiscover_NoResponse(t *testing.T) {
	d := NewDiscoverer(&stubClient{err: errors.New("connection refused")})

	_, err := d.Discover(context.Background(), "proc-down")
	if fail.CodeOf(err) != fail.CodeDiscoveryNoResponse {
		t.Errorf("expected DISCOVERY_NO_RESPONSE, got %v", err)
	}
}

func TestDiscover_EmptyPayload(t *testing.T) {
	d := NewDiscoverer(&stubClient{payload: "  "})

	_, err := d.Discover(context.Background(), "proc-empty")
	if fail.CodeOf(err) != fail.CodeDiscoveryEmptyData {
		t.Errorf("expected DISCOVERY_EMPTY_DATA, got %v", err)
	}
}

func TestDiscover_ParseFailure(t *testing.T) {
	d := NewDiscoverer(&stubClient{payload: "plain prose with no structure at all"})

	_, err := d.Discover(context.Background(), "proc-odd")
	if fail.CodeOf(err) != fail.CodeDiscoveryParseFailure {
		t.Errorf("expected DISCOVERY_PARSE_FAILURE, got %v", err)
	}
}

func TestDiscover_EmptyProcessID(t *testing.T) {
	d := NewDiscoverer(&stubClient{payload: registryPayload})

	_, err := d.Discover(context.Background(), "  ")
	if fail.CodeOf(err) != fail.CodeInvalidInput {
		t.Errorf("expected INVALID_INPUT, got %v", err)
	}
}
