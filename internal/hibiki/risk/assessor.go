// Package risk turns a classified, matched request into a risk level, a
// confirmation prompt, and a preview of expected effects.
//
// Assessment starts from the classifier's baseline and only ever escalates:
// no rule in this package may lower a level that an earlier rule raised.
package risk

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/hibikihq/hibiki/internal/hibiki/intent"
	"github.com/hibikihq/hibiki/internal/hibiki/registry"
)

// Level is the severity classification of an operation's potential
// consequences.
type Level string

const (
	Low    Level = "low"
	Medium Level = "medium"
	High   Level = "high"
)

// rank orders levels for monotonic escalation.
func (l Level) rank() int {
	switch l {
	case High:
		return 2
	case Medium:
		return 1
	default:
		return 0
	}
}

// escalate returns the higher of the two levels.
func escalate(current, to Level) Level {
	if to.rank() > current.rank() {
		return to
	}
	return current
}

// Thresholds for amount-based escalation. The two values are intentionally
// distinct: crossing LargeAmountThreshold makes the operation high risk,
// while the lower HighValueThreshold only forces a confirmation prompt, so
// a mid-range amount demands confirmation without being labeled high risk.
const (
	LargeAmountThreshold = 1_000_000
	HighValueThreshold   = 100_000
)

// Verb and keyword tables, kept as data for testability.
var (
	// valueTransferVerbs escalate low to medium even with no other signal.
	valueTransferVerbs = []string{"transfer", "send", "withdraw", "mint"}

	// irreversibleVerbs force high risk and confirmation.
	irreversibleVerbs = []string{"delete", "burn", "destroy", "remove", "revoke"}

	// adminActionVerbs flag administrative handlers (high risk).
	adminActionVerbs = []string{"setadmin", "transferownership", "grantpermission", "revokepermission"}

	// adminParamKeys flag parameters that touch access control.
	adminParamKeys = []string{"owner", "admin", "permission", "access", "role"}

	// finalityParamNames are boolean-ish parameters that, when truthy, mark
	// the operation as not undoable.
	finalityParamNames = []string{"permanent", "irreversible", "final"}

	// amountParamNames are the parameter names recognised as token amounts.
	amountParamNames = []string{"amount", "quantity", "value"}

	// targetParamNames are the parameter names recognised as recipients.
	targetParamNames = []string{"target", "recipient", "to"}
)

// Input is everything the assessor needs about one request.
type Input struct {
	// ProcessID is the target process identity.
	ProcessID string
	// Text is the original free-text request.
	Text string
	// Handler is the matched handler, when matching succeeded.
	Handler *registry.HandlerDescriptor
	// Params are the resolved parameter values.
	Params map[string]any
	// Classification is the operation classification for the request.
	Classification intent.Classification
	// RequireConfirmation is the caller's explicit confirmation demand.
	RequireConfirmation bool
	// InBatch marks the request as one item of an ordered batch.
	InBatch bool
}

func (in *Input) action() string {
	if in.Handler != nil {
		return in.Handler.Action
	}
	return ""
}

// Assessment is the full risk verdict for one request.
type Assessment struct {
	// Level is the final, escalated risk level.
	Level Level `json:"level"`
	// ConfirmationRequired reports whether execution must pause for the
	// caller to confirm.
	ConfirmationRequired bool `json:"confirmationRequired"`
	// Title and Message form the confirmation prompt.
	Title   string `json:"title"`
	Message string `json:"message"`
	// Warnings lists the specific signals that contributed to the level.
	Warnings []string `json:"warnings,omitempty"`
	// Consequences describes what executing the operation will do.
	Consequences []string `json:"consequences,omitempty"`
	// Preview summarises the expected transaction effects.
	Preview Preview `json:"preview"`
	// Options are the choices offered to the caller, exactly one of which
	// is marked recommended.
	Options []Option `json:"options"`
}

// Assess computes the risk verdict for one request. The returned level never
// sits below the classifier's baseline.
func Assess(in Input) *Assessment {
	level := baseline(in.Classification.BaseRisk)
	var warnings []string

	action := normalizeVerb(in.action())

	// Writes and value-transfer handlers are at least medium.
	if in.Classification.Type == intent.OpWrite {
		level = escalate(level, Medium)
	}
	if containsAny(action, valueTransferVerbs) {
		level = escalate(level, Medium)
		warnings = append(warnings, "This operation moves token value.")
	}

	confirmationForced := false

	if containsAny(action, irreversibleVerbs) {
		level = escalate(level, High)
		confirmationForced = true
		warnings = append(warnings, "This operation cannot be undone.")
	}

	if containsAny(action, adminActionVerbs) {
		level = escalate(level, High)
		confirmationForced = true
		warnings = append(warnings, "This operation changes administrative control.")
	}

	if amount, ok := largestNumericParam(in.Params); ok && amount > LargeAmountThreshold {
		level = escalate(level, High)
		confirmationForced = true
		warnings = append(warnings, "This involves a significant amount of tokens.")
	}

	if name, ok := truthyFinalityParam(in.Params); ok {
		level = escalate(level, High)
		confirmationForced = true
		warnings = append(warnings, fmt.Sprintf("The %q flag marks this operation as not undoable.", name))
	}

	if key, ok := adminKeyParam(in.Params); ok {
		level = escalate(level, High)
		confirmationForced = true
		warnings = append(warnings, fmt.Sprintf("Parameter %q touches access control.", key))
	}

	// Batch membership never de-escalates, it only lifts low to medium.
	if in.InBatch {
		level = escalate(level, Medium)
		warnings = append(warnings, "This operation is part of a batch and may affect subsequent operations.")
	}

	amount, hasAmount := recognizedAmount(in.Params)
	confirmation := level == High || confirmationForced || in.RequireConfirmation ||
		(hasAmount && amount > HighValueThreshold)

	a := &Assessment{
		Level:                level,
		ConfirmationRequired: confirmation,
		Warnings:             warnings,
		Consequences:         consequencesFor(action, in.InBatch),
		Preview:              buildPreview(in, level),
		Options:              optionsFor(level),
	}
	a.Title, a.Message = promptFor(in, level)
	return a
}

// baseline converts the classifier's risk hint, defaulting to low for
// anything unrecognised.
func baseline(hint string) Level {
	switch Level(hint) {
	case Medium:
		return Medium
	case High:
		return High
	default:
		return Low
	}
}

// normalizeVerb lowers an action and strips separators so "Set-Admin" and
// "set_admin" hit the same table entries.
func normalizeVerb(action string) string {
	a := strings.ToLower(strings.TrimSpace(action))
	a = strings.ReplaceAll(a, "-", "")
	a = strings.ReplaceAll(a, "_", "")
	return a
}

func containsAny(s string, needles []string) bool {
	if s == "" {
		return false
	}
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

// numericValue interprets a parameter value as a number when it looks like
// one, whether it arrived typed or as a string.
func numericValue(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

// largestNumericParam finds the biggest numeric-looking parameter value.
func largestNumericParam(params map[string]any) (float64, bool) {
	best := 0.0
	found := false
	for _, v := range params {
		if n, ok := numericValue(v); ok {
			if !found || n > best {
				best = n
				found = true
			}
		}
	}
	return best, found
}

// recognizedAmount returns the value of the first recognised amount
// parameter (amount/quantity/value).
func recognizedAmount(params map[string]any) (float64, bool) {
	for _, name := range amountParamNames {
		if v, ok := params[name]; ok {
			if n, ok := numericValue(v); ok {
				return n, true
			}
		}
	}
	return 0, false
}

// recognizedTarget returns the first recognised recipient parameter.
func recognizedTarget(params map[string]any) (string, bool) {
	for _, name := range targetParamNames {
		if v, ok := params[name]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s, true
			}
		}
	}
	return "", false
}

// truthyFinalityParam reports whether a permanent/irreversible/final
// parameter is set truthy.
func truthyFinalityParam(params map[string]any) (string, bool) {
	for _, name := range finalityParamNames {
		v, ok := params[name]
		if !ok {
			continue
		}
		switch x := v.(type) {
		case bool:
			if x {
				return name, true
			}
		case string:
			switch strings.ToLower(strings.TrimSpace(x)) {
			case "true", "yes", "on", "1":
				return name, true
			}
		case float64:
			if x != 0 {
				return name, true
			}
		}
	}
	return "", false
}

// adminKeyParam reports whether any parameter key matches the admin keyword
// set.
func adminKeyParam(params map[string]any) (string, bool) {
	for key := range params {
		k := strings.ToLower(key)
		for _, kw := range adminParamKeys {
			if strings.Contains(k, kw) {
				return key, true
			}
		}
	}
	return "", false
}
