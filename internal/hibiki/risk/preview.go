package risk

import (
	"fmt"
	"sort"
	"strings"

	"github.com/hibikihq/hibiki/internal/hibiki/intent"
	"github.com/hibikihq/hibiki/internal/hibiki/transport"
)

// Option is one choice offered alongside a confirmation prompt.
type Option struct {
	// Action is the machine-readable option key.
	Action string `json:"action"`
	// Label is the human-readable description.
	Label string `json:"label"`
	// Recommended marks the suggested choice; exactly one option per
	// assessment carries it.
	Recommended bool `json:"recommended"`
}

// Option action keys.
const (
	OptionProceed  = "proceed"
	OptionCancel   = "cancel"
	OptionSimulate = "simulate"
	OptionModify   = "modify"
)

// Preview summarises the expected effects of executing a request.
type Preview struct {
	// Handler is the matched handler action.
	Handler string `json:"handler"`
	// Operation is the classified operation type.
	Operation string `json:"operation"`
	// ProcessID is the target process identity.
	ProcessID string `json:"processId"`
	// Params are the resolved parameters, stringified for display.
	Params map[string]string `json:"params,omitempty"`
	// EstimatedOutcome describes the expected effects, one line each.
	EstimatedOutcome []string `json:"estimatedOutcome,omitempty"`
	// PotentialRisks lists what could go wrong.
	PotentialRisks []string `json:"potentialRisks,omitempty"`
	// CostEstimate is a synthetic resource-cost figure; it grows with
	// parameter count, writes, and batch membership.
	CostEstimate string `json:"costEstimate"`
	// Reversible reports whether the operation can be compensated after
	// the fact.
	Reversible bool `json:"reversible"`
	// TokenRequirement states the balance needed, for value transfers.
	TokenRequirement string `json:"tokenRequirement,omitempty"`
}

// consequenceTable maps operation verbs to the canned consequence phrase
// shown in confirmation prompts.
var consequenceTable = []struct {
	verbs  []string
	phrase string
}{
	{[]string{"transfer", "send"}, "Tokens will be moved from this process's balance to the recipient."},
	{[]string{"burn", "destroy"}, "Tokens will be permanently destroyed and removed from the supply."},
	{[]string{"mint"}, "New tokens will be created and added to the supply."},
	{[]string{"delete", "remove"}, "The referenced data will be removed from the process."},
}

// batchConsequence is appended for operations running inside a batch.
const batchConsequence = "This operation runs inside a batch; later items may depend on its outcome."

// riskTable maps operation verbs to the potential risks listed in previews.
var riskTable = []struct {
	verbs []string
	risk  string
}{
	{[]string{"transfer", "send", "withdraw"}, "Funds sent to a wrong recipient are unrecoverable."},
	{[]string{"burn", "destroy", "delete", "remove", "revoke"}, "There is no way to restore what this operation removes."},
	{[]string{"mint"}, "Minting dilutes existing holders."},
	{[]string{"setadmin", "transferownership", "grantpermission", "revokepermission"}, "Administrative control of the process will change."},
}

// consequencesFor builds the consequences list for a normalised action verb.
func consequencesFor(action string, inBatch bool) []string {
	var out []string
	for _, row := range consequenceTable {
		if containsAny(action, row.verbs) {
			out = append(out, row.phrase)
		}
	}
	if inBatch {
		out = append(out, batchConsequence)
	}
	return out
}

// optionsFor returns the ordered confirmation options for a level. Exactly
// one option is recommended: proceed for low risk, cancel for medium,
// simulate for high. High risk additionally offers modify.
func optionsFor(level Level) []Option {
	switch level {
	case High:
		return []Option{
			{Action: OptionSimulate, Label: "Dry-run the operation first", Recommended: true},
			{Action: OptionModify, Label: "Adjust the request before executing"},
			{Action: OptionProceed, Label: "Execute the operation as-is"},
			{Action: OptionCancel, Label: "Abort without executing"},
		}
	case Medium:
		return []Option{
			{Action: OptionProceed, Label: "Execute the operation"},
			{Action: OptionCancel, Label: "Abort without executing", Recommended: true},
		}
	default:
		return []Option{
			{Action: OptionProceed, Label: "Execute the operation", Recommended: true},
			{Action: OptionCancel, Label: "Abort without executing"},
		}
	}
}

// promptFor builds the risk-tagged confirmation title and message.
func promptFor(in Input, level Level) (title, message string) {
	action := in.action()
	if action == "" {
		action = "request"
	}
	title = fmt.Sprintf("[%s RISK] Confirm %s on %s", strings.ToUpper(string(level)), action, in.ProcessID)
	message = fmt.Sprintf("You are about to run a %s operation (%s) against process %s.",
		in.Classification.Type, action, in.ProcessID)
	if in.Text != "" {
		message += fmt.Sprintf(" Request: %q.", in.Text)
	}
	return title, message
}

// buildPreview assembles the transaction preview for one assessed request.
func buildPreview(in Input, level Level) Preview {
	action := normalizeVerb(in.action())

	p := Preview{
		Handler:   in.action(),
		Operation: string(in.Classification.Type),
		ProcessID: in.ProcessID,
		Params:    stringifyParams(in.Params),
	}

	if amount, ok := recognizedAmount(in.Params); ok {
		p.EstimatedOutcome = append(p.EstimatedOutcome,
			fmt.Sprintf("An amount of %s will be affected.", transport.Stringify(amount)))
		if containsAny(action, valueTransferVerbs) {
			p.TokenRequirement = fmt.Sprintf("Requires a balance of at least %s tokens.", transport.Stringify(amount))
		}
	}
	if target, ok := recognizedTarget(in.Params); ok {
		p.EstimatedOutcome = append(p.EstimatedOutcome,
			fmt.Sprintf("The recipient will be %s.", target))
	}
	if len(p.EstimatedOutcome) == 0 {
		if in.Classification.Type == intent.OpWrite {
			p.EstimatedOutcome = []string{"Process state will be modified."}
		} else {
			p.EstimatedOutcome = []string{"Process state will be read; nothing is modified."}
		}
	}

	for _, row := range riskTable {
		if containsAny(action, row.verbs) {
			p.PotentialRisks = append(p.PotentialRisks, row.risk)
		}
	}
	if len(p.PotentialRisks) == 0 && level != Low {
		p.PotentialRisks = []string{"The operation may not behave as expected on this process."}
	}

	p.Reversible = !containsAny(action, irreversibleVerbs)
	p.CostEstimate = costEstimate(in)
	return p
}

// costEstimate produces the synthetic resource-cost figure. The numbers are
// relative, not a fee quote: one base unit, a quarter unit per parameter,
// two extra for writes, one extra inside a batch.
func costEstimate(in Input) string {
	cost := 1.0
	cost += 0.25 * float64(len(in.Params))
	if in.Classification.Type == intent.OpWrite {
		cost += 2
	}
	if in.InBatch {
		cost += 1
	}
	return fmt.Sprintf("~%.2f compute units", cost)
}

// stringifyParams renders parameter values for display, in stable key order.
func stringifyParams(params map[string]any) map[string]string {
	if len(params) == 0 {
		return nil
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make(map[string]string, len(params))
	for _, k := range keys {
		out[k] = transport.Stringify(params[k])
	}
	return out
}
