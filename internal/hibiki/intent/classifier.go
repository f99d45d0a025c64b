// Package intent turns free-text requests into structured dispatch decisions:
// which handler to call, with which parameters, and whether the operation
// reads or writes process state.
package intent

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/hibikihq/hibiki/internal/hibiki/registry"
)

// Mode is the caller-supplied hint on how a request should be executed.
type Mode string

const (
	ModeAuto     Mode = "auto"
	ModeRead     Mode = "read"
	ModeWrite    Mode = "write"
	ModeValidate Mode = "validate"
)

// ParseMode validates a mode string, treating empty as auto.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeAuto:
		return ModeAuto, nil
	case ModeRead:
		return ModeRead, nil
	case ModeWrite:
		return ModeWrite, nil
	case ModeValidate:
		return ModeValidate, nil
	default:
		return "", fmt.Errorf("unknown mode %q (want auto, read, write or validate)", s)
	}
}

// OpType is the classified operation type.
type OpType string

const (
	OpRead     OpType = "read"
	OpWrite    OpType = "write"
	OpValidate OpType = "validate"
	OpUnknown  OpType = "unknown"
)

// Method records which classification layer decided.
type Method string

const (
	MethodExplicit Method = "explicit"
	MethodHandler  Method = "handler_metadata"
	MethodKeyword  Method = "keyword"
	MethodDefault  Method = "default"
)

// Classification is the outcome of classifying one request.
type Classification struct {
	// Type is the classified operation type.
	Type OpType
	// Confidence reflects how decisive the signal was.
	Confidence float64
	// Method records which layer decided.
	Method Method
	// BaseRisk is the classifier's risk hint: "medium" for writes, "low"
	// otherwise. The risk assessor only ever escalates from it.
	BaseRisk string
	// Reasoning explains the decision for audit and debug output.
	Reasoning string
}

// Classify decides whether a request reads, writes, or validates.
//
// Decision order: an explicit non-auto mode wins outright; a matched handler
// that declares IsWrite is authoritative; otherwise the text is scanned
// case-insensitively against the write-verb and read-verb tables, and a text
// matching both tables, or neither, defaults to read.
func Classify(text string, mode Mode, handler *registry.HandlerDescriptor) Classification {
	if mode != ModeAuto && mode != "" {
		opType := OpType(mode)
		return Classification{
			Type:       opType,
			Confidence: 1.0,
			Method:     MethodExplicit,
			BaseRisk:   baseRiskFor(opType),
			Reasoning:  fmt.Sprintf("caller requested %s mode explicitly", mode),
		}
	}

	if handler != nil && handler.IsWrite != nil {
		opType := OpRead
		if *handler.IsWrite {
			opType = OpWrite
		}
		return Classification{
			Type:       opType,
			Confidence: 0.95,
			Method:     MethodHandler,
			BaseRisk:   baseRiskFor(opType),
			Reasoning:  fmt.Sprintf("handler %s declares isWrite=%t", handler.Action, *handler.IsWrite),
		}
	}

	writeHit := firstVerbHit(text, writeVerbs)
	readHit := firstVerbHit(text, readVerbs)

	switch {
	case writeHit != "" && readHit == "":
		return Classification{
			Type:       OpWrite,
			Confidence: 0.7,
			Method:     MethodKeyword,
			BaseRisk:   baseRiskFor(OpWrite),
			Reasoning:  fmt.Sprintf("text contains write verb %q", writeHit),
		}
	case readHit != "" && writeHit == "":
		return Classification{
			Type:       OpRead,
			Confidence: 0.7,
			Method:     MethodKeyword,
			BaseRisk:   baseRiskFor(OpRead),
			Reasoning:  fmt.Sprintf("text contains read verb %q", readHit),
		}
	case writeHit != "" && readHit != "":
		// Ambiguous texts fail toward non-mutation.
		return Classification{
			Type:       OpRead,
			Confidence: 0.5,
			Method:     MethodKeyword,
			BaseRisk:   baseRiskFor(OpRead),
			Reasoning:  fmt.Sprintf("text matches both write verb %q and read verb %q; defaulting to read", writeHit, readHit),
		}
	default:
		return Classification{
			Type:       OpRead,
			Confidence: 0.3,
			Method:     MethodDefault,
			BaseRisk:   baseRiskFor(OpRead),
			Reasoning:  "no verb matched; defaulting to read",
		}
	}
}

// baseRiskFor maps an operation type to the classifier's baseline risk hint.
func baseRiskFor(t OpType) string {
	if t == OpWrite {
		return "medium"
	}
	return "low"
}

// wordSplit tokenises text into lower-case alphanumeric words.
var wordSplit = regexp.MustCompile(`[a-z0-9]+`)

// tokenize returns the lower-case word set of text.
func tokenize(text string) map[string]bool {
	words := make(map[string]bool)
	for _, w := range wordSplit.FindAllString(strings.ToLower(text), -1) {
		words[w] = true
	}
	return words
}

// firstVerbHit returns the first verb from the table that appears as a word
// in text, or "".
func firstVerbHit(text string, verbs []string) string {
	words := tokenize(text)
	for _, v := range verbs {
		if words[v] {
			return v
		}
	}
	return ""
}
