package batch

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/hibikihq/hibiki/internal/hibiki/fail"
	"github.com/hibikihq/hibiki/internal/hibiki/intent"
)

// TemplateID names one of the built-in batch templates. The set is closed:
// callers pick from Templates(), they do not register their own.
type TemplateID string

const (
	// TemplateTokenDistribution checks the balance, transfers an amount to a
	// recipient, then re-checks the balance.
	TemplateTokenDistribution TemplateID = "token-distribution"
	// TemplateProcessHealth probes a process with read-only requests.
	TemplateProcessHealth TemplateID = "process-health"
	// TemplateStakeAndVerify stakes an amount and verifies the balance after.
	TemplateStakeAndVerify TemplateID = "stake-and-verify"
	// TemplateBurnWithAudit records the balance, burns an amount, records the
	// balance again.
	TemplateBurnWithAudit TemplateID = "burn-with-audit"
)

// Template is a named, pre-validated sequence of batch items with ${name}
// placeholders in the request texts.
type Template struct {
	// ID is the template's stable name.
	ID TemplateID `json:"id"`
	// Description says what the sequence does.
	Description string `json:"description"`
	// Steps are the items in execution order.
	Steps []Item `json:"steps"`
}

// placeholderPattern matches ${name} substitution points.
var placeholderPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

var builtins = map[TemplateID]Template{
	TemplateTokenDistribution: mustTemplate(Template{
		ID:          TemplateTokenDistribution,
		Description: "Check balance, transfer ${amount} tokens to ${recipient}, check balance again",
		Steps: []Item{
			{Text: "check balance"},
			{
				Text:   "transfer ${amount} tokens to ${recipient}",
				Mode:   intent.ModeWrite,
				Params: map[string]any{"target": "${recipient}"},
			},
			{Text: "check balance"},
		},
	}),
	TemplateProcessHealth: mustTemplate(Template{
		ID:          TemplateProcessHealth,
		Description: "Read-only health probe: process info and balance",
		Steps: []Item{
			{Text: "get info", Mode: intent.ModeRead},
			{Text: "check balance", Mode: intent.ModeRead},
		},
	}),
	TemplateStakeAndVerify: mustTemplate(Template{
		ID:          TemplateStakeAndVerify,
		Description: "Stake ${amount} tokens and verify the balance after",
		Steps: []Item{
			{Text: "stake ${amount} tokens", Mode: intent.ModeWrite},
			{Text: "check balance"},
		},
	}),
	TemplateBurnWithAudit: mustTemplate(Template{
		ID:          TemplateBurnWithAudit,
		Description: "Record balance, burn ${amount} tokens, record balance again",
		Steps: []Item{
			{Text: "check balance"},
			{Text: "burn ${amount} tokens", Mode: intent.ModeWrite, RequireConfirmation: true},
			{Text: "check balance"},
		},
	}),
}

// mustTemplate validates a built-in at construction. A malformed built-in is
// a programming error, so it panics.
func mustTemplate(t Template) Template {
	if t.ID == "" {
		panic("batch: template without an id")
	}
	if len(t.Steps) == 0 {
		panic("batch: template " + string(t.ID) + " has no steps")
	}
	for i, step := range t.Steps {
		if strings.TrimSpace(step.Text) == "" {
			panic("batch: template " + string(t.ID) + " has an empty step")
		}
		if step.Mode != "" {
			if _, err := intent.ParseMode(string(step.Mode)); err != nil {
				panic("batch: template " + string(t.ID) + " step " + strconv.Itoa(i+1) + " has an invalid mode")
			}
		}
	}
	return t
}

// Templates returns the built-in templates in stable ID order.
func Templates() []Template {
	out := make([]Template, 0, len(builtins))
	for _, t := range builtins {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Lookup returns the template with the given ID.
func Lookup(id TemplateID) (Template, error) {
	t, ok := builtins[id]
	if !ok {
		return Template{}, fail.Newf(fail.CodeInvalidInput, "unknown batch template %q", id)
	}
	return t, nil
}

// Expand instantiates a template, substituting ${name} placeholders in step
// texts and in string-valued step parameters with vars. Placeholders without
// a supplied value are left literal so the resulting failure points at the
// missing variable instead of producing a silently different request.
func Expand(id TemplateID, vars map[string]string) ([]Item, error) {
	t, err := Lookup(id)
	if err != nil {
		return nil, err
	}
	items := make([]Item, len(t.Steps))
	for i, step := range t.Steps {
		step.Text = substitute(step.Text, vars)
		step.Params = substituteParams(step.Params, vars)
		items[i] = step
	}
	return items, nil
}

// substituteParams returns a copy of params with placeholders in string
// values replaced. The built-in's map is never written to.
func substituteParams(params map[string]any, vars map[string]string) map[string]any {
	if len(params) == 0 {
		return params
	}
	out := make(map[string]any, len(params))
	for k, v := range params {
		if s, ok := v.(string); ok {
			out[k] = substitute(s, vars)
			continue
		}
		out[k] = v
	}
	return out
}

// substitute replaces each supplied ${name} occurrence, keeping unknown
// placeholders byte-for-byte.
func substitute(text string, vars map[string]string) string {
	return placeholderPattern.ReplaceAllStringFunc(text, func(m string) string {
		name := m[2 : len(m)-1]
		if v, ok := vars[name]; ok {
			return v
		}
		return m
	})
}
