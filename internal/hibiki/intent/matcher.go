package intent

import (
	"fmt"
	"strings"

	"github.com/hibikihq/hibiki/internal/hibiki/fail"
	"github.com/hibikihq/hibiki/internal/hibiki/registry"
)

// Provenance records whether the matched descriptor came from an
// authoritative registry document or from legacy heuristics.
type Provenance string

const (
	ProvenanceRegistry Provenance = "registry"
	ProvenanceLegacy   Provenance = "legacy"
)

// MatchResult is the outcome of matching free text against a handler set.
type MatchResult struct {
	// Handler is the winning descriptor.
	Handler *registry.HandlerDescriptor
	// Confidence is the clipped [0,1] match score.
	Confidence float64
	// Params are the extracted parameter values for the winning handler.
	Params map[string]any
	// Provenance reflects the snapshot the handler came from.
	Provenance Provenance
	// Reasons lists the scoring rules that fired, for audit output.
	Reasons []string
}

// scoreRule is one named, pure scoring function. Rules are applied in order
// and their deltas accumulate; keeping them as a list makes individual rules
// testable and lets the table be tuned without touching the match loop.
type scoreRule struct {
	name  string
	apply func(words map[string]bool, text string, h *registry.HandlerDescriptor) (float64, string)
}

var scoreRules = []scoreRule{
	{
		name: "action-verbatim",
		apply: func(words map[string]bool, text string, h *registry.HandlerDescriptor) (float64, string) {
			action := strings.ToLower(h.Action)
			if words[action] || strings.Contains(strings.ToLower(text), action) {
				return actionVerbatimScore, fmt.Sprintf("action %q appears in text", h.Action)
			}
			return 0, ""
		},
	},
	{
		name: "action-synonym",
		apply: func(words map[string]bool, _ string, h *registry.HandlerDescriptor) (float64, string) {
			for _, syn := range actionSynonyms[normalizedAction(h.Action)] {
				if words[syn] {
					return actionSynonymScore, fmt.Sprintf("synonym %q matches action %q", syn, h.Action)
				}
			}
			return 0, ""
		},
	},
	{
		name: "description-overlap",
		apply: func(words map[string]bool, _ string, h *registry.HandlerDescriptor) (float64, string) {
			shared := 0
			for w := range tokenize(h.Description) {
				if len(w) >= 3 && words[w] {
					shared++
				}
			}
			if shared == 0 {
				return 0, ""
			}
			return float64(shared) * descriptionWordScore, fmt.Sprintf("%d word(s) shared with description", shared)
		},
	},
	{
		name: "parameter-mention",
		apply: func(words map[string]bool, _ string, h *registry.HandlerDescriptor) (float64, string) {
			mentioned := 0
			for _, p := range h.Parameters {
				if words[strings.ToLower(p.Name)] {
					mentioned++
				}
			}
			if mentioned == 0 {
				return 0, ""
			}
			return float64(mentioned) * parameterMentionScore, fmt.Sprintf("%d parameter name(s) mentioned", mentioned)
		},
	},
	{
		name: "example-overlap",
		apply: func(words map[string]bool, _ string, h *registry.HandlerDescriptor) (float64, string) {
			shared := 0
			for _, ex := range h.Examples {
				for w := range tokenize(ex) {
					if len(w) >= 3 && words[w] {
						shared++
					}
				}
			}
			if shared == 0 {
				return 0, ""
			}
			return float64(shared) * exampleWordScore, fmt.Sprintf("%d word(s) shared with examples", shared)
		},
	},
}

// normalizedAction lowers an action and strips separators for synonym lookup.
func normalizedAction(action string) string {
	a := strings.ToLower(strings.TrimSpace(action))
	a = strings.ReplaceAll(a, "-", "")
	a = strings.ReplaceAll(a, "_", "")
	return a
}

// Score computes the clipped [0,1] match score of one handler against text,
// with the reasons that contributed.
func Score(text string, h *registry.HandlerDescriptor) (float64, []string) {
	words := tokenize(text)
	total := 0.0
	var reasons []string
	for _, rule := range scoreRules {
		delta, reason := rule.apply(words, text, h)
		if delta > 0 {
			total += delta
			reasons = append(reasons, reason)
		}
	}
	if total > 1 {
		total = 1
	}
	return total, reasons
}

// Match scores every handler in the snapshot against text and returns the
// highest scorer above the confidence floor, extracting its parameters from
// the text. Ties resolve in declaration order. When no handler clears the
// floor a MATCH_NO_HANDLER failure is returned.
func Match(text string, snap *registry.Snapshot, explicit map[string]any) (*MatchResult, error) {
	if snap == nil || len(snap.Handlers) == 0 {
		return nil, fail.Newf(fail.CodeMatchNoHandler, "process %s exposes no discoverable handlers", snapProcessID(snap))
	}

	best := -1
	bestScore := 0.0
	var bestReasons []string
	for i := range snap.Handlers {
		score, reasons := Score(text, &snap.Handlers[i])
		if score > bestScore {
			best = i
			bestScore = score
			bestReasons = reasons
		}
	}

	if best < 0 || bestScore <= MatchThreshold {
		return nil, fail.Newf(fail.CodeMatchNoHandler, "no handler matched %q with confidence above %.1f", text, MatchThreshold)
	}

	handler := &snap.Handlers[best]
	params, err := ExtractParams(text, handler, explicit)
	if err != nil {
		return nil, err
	}

	provenance := ProvenanceLegacy
	if snap.Protocol == registry.ProtocolRegistry {
		provenance = ProvenanceRegistry
	}

	return &MatchResult{
		Handler:    handler,
		Confidence: bestScore,
		Params:     params,
		Provenance: provenance,
		Reasons:    bestReasons,
	}, nil
}

func snapProcessID(snap *registry.Snapshot) string {
	if snap == nil {
		return "<unknown>"
	}
	return snap.ProcessID
}
