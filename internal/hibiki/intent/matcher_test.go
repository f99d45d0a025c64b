package intent

import (
	"math"
	"testing"

	"github.com/hibikihq/hibiki/internal/hibiki/fail"
	"github.com/hibikihq/hibiki/internal/hibiki/registry"
)

func tokenSnapshot() *registry.Snapshot {
	return &registry.Snapshot{
		ProcessID: "proc-token-1",
		Protocol:  registry.ProtocolRegistry,
		Handlers: []registry.HandlerDescriptor{
			{
				Action:      "Balance",
				Description: "Returns the token balance held by a target account",
				IsWrite:     boolPtr(false),
				Parameters: []registry.ParameterDescriptor{
					{Name: "target", Type: registry.ParamAddress, Required: false},
				},
				Examples: []string{"check my balance"},
			},
			{
				Action:      "Transfer",
				Description: "Moves tokens from this process to a recipient",
				IsWrite:     boolPtr(true),
				Parameters: []registry.ParameterDescriptor{
					{Name: "target", Type: registry.ParamAddress, Required: true},
					{Name: "amount", Type: registry.ParamNumber, Required: true},
				},
				Examples: []string{"transfer 100 tokens to alice"},
			},
			{
				Action:      "Info",
				Description: "Describes this process",
				IsWrite:     boolPtr(false),
			},
		},
	}
}

func TestScore_VerbatimActionBeatsSynonym(t *testing.T) {
	h := &registry.HandlerDescriptor{Action: "Transfer"}

	verbatim, _ := Score("transfer the funds", h)
	synonym, _ := Score("send the funds", h)

	if verbatim < actionVerbatimScore {
		t.Errorf("verbatim score %.2f below %.2f", verbatim, actionVerbatimScore)
	}
	if synonym < actionSynonymScore || synonym >= verbatim {
		t.Errorf("synonym score %.2f should sit between %.2f and the verbatim %.2f",
			synonym, actionSynonymScore, verbatim)
	}
}

func TestScore_ClippedToOne(t *testing.T) {
	h := &registry.HandlerDescriptor{
		Action:      "Transfer",
		Description: "transfer tokens amount target recipient",
		Parameters: []registry.ParameterDescriptor{
			{Name: "target", Type: registry.ParamAddress},
			{Name: "amount", Type: registry.ParamNumber},
		},
		Examples: []string{"transfer 100 tokens to target amount"},
	}
	score, _ := Score("transfer tokens amount target send", h)
	if score > 1.0 {
		t.Errorf("score must be clipped to 1, got %.3f", score)
	}
}

func TestMatch_TransferScenario(t *testing.T) {
	res, err := Match("transfer 100 tokens to alice", tokenSnapshot(), nil)
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if res.Handler.Action != "Transfer" {
		t.Fatalf("expected Transfer, got %s", res.Handler.Action)
	}
	if res.Confidence <= MatchThreshold {
		t.Errorf("confidence %.2f not above the floor", res.Confidence)
	}
	if res.Provenance != ProvenanceRegistry {
		t.Errorf("expected registry provenance, got %s", res.Provenance)
	}

	if got, ok := res.Params["target"].(string); !ok || got != "alice" {
		t.Errorf("expected target=alice, got %v", res.Params["target"])
	}
	amount, ok := res.Params["amount"].(float64)
	if !ok || math.Abs(amount-100) > 1e-9 {
		t.Errorf("expected amount=100, got %v", res.Params["amount"])
	}
}

func TestMatch_SynonymRouting(t *testing.T) {
	res, err := Match("send 50 tokens to bob", tokenSnapshot(), nil)
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if res.Handler.Action != "Transfer" {
		t.Errorf("'send' should route to Transfer, got %s", res.Handler.Action)
	}
}

func TestMatch_NoHandlerAboveFloor(t *testing.T) {
	_, err := Match("frobnicate the widgets", tokenSnapshot(), nil)
	if fail.CodeOf(err) != fail.CodeMatchNoHandler {
		t.Errorf("expected MATCH_NO_HANDLER, got %v", err)
	}
}

func TestMatch_EmptySnapshot(t *testing.T) {
	snap := &registry.Snapshot{ProcessID: "proc-empty", Protocol: registry.ProtocolLegacy}
	_, err := Match("check balance", snap, nil)
	if fail.CodeOf(err) != fail.CodeMatchNoHandler {
		t.Errorf("expected MATCH_NO_HANDLER for empty snapshot, got %v", err)
	}
}

func TestMatch_TiesResolveInDeclarationOrder(t *testing.T) {
	// Both handlers score identically through description overlap alone; the
	// first declared one must win.
	snap := &registry.Snapshot{
		ProcessID: "proc-tie",
		Protocol:  registry.ProtocolRegistry,
		Handlers: []registry.HandlerDescriptor{
			{Action: "Alpha", Description: "responds with pong quickly", IsWrite: boolPtr(false)},
			{Action: "Beta", Description: "responds with pong quickly", IsWrite: boolPtr(false)},
		},
	}

	res, err := Match("responds with pong quickly", snap, nil)
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if res.Handler.Action != "Alpha" {
		t.Errorf("tie must keep the first declared handler, got %s", res.Handler.Action)
	}
}

func TestMatch_LegacyProvenance(t *testing.T) {
	snap := tokenSnapshot()
	snap.Protocol = registry.ProtocolLegacy

	res, err := Match("check balance", snap, nil)
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if res.Provenance != ProvenanceLegacy {
		t.Errorf("expected legacy provenance, got %s", res.Provenance)
	}
}
