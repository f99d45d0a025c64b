package intent

import (
	"reflect"
	"testing"

	"github.com/hibikihq/hibiki/internal/hibiki/fail"
	"github.com/hibikihq/hibiki/internal/hibiki/registry"
)

func transferHandler() *registry.HandlerDescriptor {
	return &registry.HandlerDescriptor{
		Action:  "Transfer",
		IsWrite: boolPtr(true),
		Parameters: []registry.ParameterDescriptor{
			{Name: "target", Type: registry.ParamAddress, Required: true},
			{Name: "amount", Type: registry.ParamNumber, Required: true},
			{Name: "note", Type: registry.ParamString, Required: false},
		},
	}
}

func TestExtractParams_KeyValueForm(t *testing.T) {
	params, err := ExtractParams("transfer amount=250 target=alice note=thanks", transferHandler(), nil)
	if err != nil {
		t.Fatalf("ExtractParams: %v", err)
	}
	if params["amount"] != float64(250) {
		t.Errorf("amount = %v", params["amount"])
	}
	if params["target"] != "alice" {
		t.Errorf("target = %v", params["target"])
	}
	if params["note"] != "thanks" {
		t.Errorf("note = %v", params["note"])
	}
}

func TestExtractParams_BareNameForm(t *testing.T) {
	params, err := ExtractParams("transfer amount 75 target bob", transferHandler(), nil)
	if err != nil {
		t.Fatalf("ExtractParams: %v", err)
	}
	if params["amount"] != float64(75) {
		t.Errorf("amount = %v", params["amount"])
	}
	if params["target"] != "bob" {
		t.Errorf("target = %v", params["target"])
	}
}

func TestExtractParams_TypeFallbacks(t *testing.T) {
	params, err := ExtractParams("transfer 100 tokens to alice", transferHandler(), nil)
	if err != nil {
		t.Fatalf("ExtractParams: %v", err)
	}
	if params["amount"] != float64(100) {
		t.Errorf("amount fallback = %v", params["amount"])
	}
	if params["target"] != "alice" {
		t.Errorf("target fallback = %v", params["target"])
	}
	if _, ok := params["note"]; ok {
		t.Error("optional note should stay absent")
	}
}

func TestExtractParams_PrepositionFallbackIsAddressOnly(t *testing.T) {
	// "to alice" resolves the address-typed target; the string-typed note has
	// no name mention and must stay absent rather than echo the recipient.
	params, err := ExtractParams("transfer 100 tokens to alice", transferHandler(), nil)
	if err != nil {
		t.Fatalf("ExtractParams: %v", err)
	}
	if params["target"] != "alice" {
		t.Errorf("target = %v", params["target"])
	}
	if v, ok := params["note"]; ok {
		t.Errorf("string parameter filled from a preposition: note=%v", v)
	}

	// A named mention still resolves the string parameter.
	params, err = ExtractParams("transfer 100 tokens to alice note thanks", transferHandler(), nil)
	if err != nil {
		t.Fatalf("ExtractParams: %v", err)
	}
	if params["note"] != "thanks" {
		t.Errorf("named string parameter must resolve, got %v", params["note"])
	}
}

func TestExtractParams_Deterministic(t *testing.T) {
	text := "transfer 100 tokens to alice"
	first, err := ExtractParams(text, transferHandler(), nil)
	if err != nil {
		t.Fatal(err)
	}
	second, err := ExtractParams(text, transferHandler(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("same text produced different params: %v vs %v", first, second)
	}
}

func TestExtractParams_NumericParseFailureIsAbsent(t *testing.T) {
	// "amount lots" cannot parse as a number; the parameter must be treated
	// as absent (and therefore missing), never silently become zero.
	_, err := ExtractParams("transfer amount lots to alice", transferHandler(), nil)
	if fail.CodeOf(err) != fail.CodeParameterMissing {
		t.Fatalf("expected PARAMETER_MISSING, got %v", err)
	}
}

func TestExtractParams_MissingRequired(t *testing.T) {
	_, err := ExtractParams("transfer to alice", transferHandler(), nil)
	if fail.CodeOf(err) != fail.CodeParameterMissing {
		t.Errorf("expected PARAMETER_MISSING for absent amount, got %v", err)
	}
}

func TestExtractParams_ExplicitValuesWin(t *testing.T) {
	explicit := map[string]any{"amount": float64(999), "target": "carol"}
	params, err := ExtractParams("transfer 100 tokens to alice", transferHandler(), explicit)
	if err != nil {
		t.Fatalf("ExtractParams: %v", err)
	}
	if params["amount"] != float64(999) {
		t.Errorf("explicit amount must win, got %v", params["amount"])
	}
	if params["target"] != "carol" {
		t.Errorf("explicit target must win, got %v", params["target"])
	}
}

func TestExtractParams_ExplicitTypeMismatch(t *testing.T) {
	explicit := map[string]any{"amount": "not-a-number"}
	_, err := ExtractParams("transfer to alice", transferHandler(), explicit)
	if fail.CodeOf(err) != fail.CodeParameterTypeMismatch {
		t.Errorf("expected PARAMETER_TYPE_MISMATCH, got %v", err)
	}
}

func TestExtractParams_ExplicitStringNumberCoerced(t *testing.T) {
	explicit := map[string]any{"amount": "125", "target": "dave"}
	params, err := ExtractParams("transfer tokens", transferHandler(), explicit)
	if err != nil {
		t.Fatalf("ExtractParams: %v", err)
	}
	if params["amount"] != float64(125) {
		t.Errorf("string number should coerce, got %v", params["amount"])
	}
}

func TestExtractParams_ValidationRules(t *testing.T) {
	min, max := 1.0, 1000.0
	h := &registry.HandlerDescriptor{
		Action: "Stake",
		Parameters: []registry.ParameterDescriptor{
			{
				Name: "amount", Type: registry.ParamNumber, Required: true,
				Validation: &registry.Validation{Min: &min, Max: &max},
			},
			{
				Name: "tier", Type: registry.ParamString, Required: false,
				Validation: &registry.Validation{Enum: []string{"bronze", "silver", "gold"}},
			},
		},
	}

	if _, err := ExtractParams("stake amount=5000", h, nil); fail.CodeOf(err) != fail.CodeParameterPatternMismatch {
		t.Errorf("expected PARAMETER_PATTERN_MISMATCH above max, got %v", err)
	}
	if _, err := ExtractParams("stake amount=0.5", h, nil); fail.CodeOf(err) != fail.CodeParameterPatternMismatch {
		t.Errorf("expected PARAMETER_PATTERN_MISMATCH below min, got %v", err)
	}
	if _, err := ExtractParams("stake amount=10 tier=platinum", h, nil); fail.CodeOf(err) != fail.CodeParameterPatternMismatch {
		t.Errorf("expected PARAMETER_PATTERN_MISMATCH for enum violation, got %v", err)
	}
	if _, err := ExtractParams("stake amount=10 tier=gold", h, nil); err != nil {
		t.Errorf("valid values should pass, got %v", err)
	}
}

func TestExtractParams_BooleanCoercion(t *testing.T) {
	h := &registry.HandlerDescriptor{
		Action: "Burn",
		Parameters: []registry.ParameterDescriptor{
			{Name: "permanent", Type: registry.ParamBoolean, Required: false},
		},
	}

	params, err := ExtractParams("burn permanent=yes", h, nil)
	if err != nil {
		t.Fatal(err)
	}
	if params["permanent"] != true {
		t.Errorf("yes should coerce to true, got %v", params["permanent"])
	}

	params, err = ExtractParams("burn permanent=off", h, nil)
	if err != nil {
		t.Fatal(err)
	}
	if params["permanent"] != false {
		t.Errorf("off should coerce to false, got %v", params["permanent"])
	}
}
