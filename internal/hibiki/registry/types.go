// Package registry discovers the declared operations ("handlers") of remote
// compute processes and caches the results.
//
// Discovery speaks two dialects: the structured handler-registry protocol
// (JSON with a protocolVersion marker) and the older free-text markdown
// documentation convention. Both normalise into the same Snapshot shape so
// the rest of the pipeline never cares which dialect a process speaks.
package registry

import "time"

// Protocol records which dialect a snapshot was discovered through.
type Protocol string

const (
	// ProtocolRegistry means the process returned a registry-compliant
	// handler document. IsWrite flags from such snapshots are authoritative.
	ProtocolRegistry Protocol = "registry"
	// ProtocolLegacy means handlers were recovered from free-text
	// documentation (or none at all). IsWrite flags are keyword-inferred
	// and may be wrong; callers must not treat them as authoritative.
	ProtocolLegacy Protocol = "legacy"
)

// HandlerCategory groups handlers in rendered documentation.
type HandlerCategory string

const (
	CategoryCore    HandlerCategory = "core"
	CategoryUtility HandlerCategory = "utility"
	CategoryCustom  HandlerCategory = "custom"
)

// ProcessCategory is the inferred kind of a discovered process.
type ProcessCategory string

const (
	ProcessToken  ProcessCategory = "token"
	ProcessDAO    ProcessCategory = "dao"
	ProcessBasic  ProcessCategory = "basic"
	ProcessCustom ProcessCategory = "custom"
)

// ParamType is the declared type of a handler parameter.
type ParamType string

const (
	ParamString  ParamType = "string"
	ParamNumber  ParamType = "number"
	ParamBoolean ParamType = "boolean"
	ParamAddress ParamType = "address"
	ParamJSON    ParamType = "json"
)

// Validation constrains the values accepted for a parameter.
type Validation struct {
	// Pattern is a regular expression the string form must match.
	Pattern string `json:"pattern,omitempty"`
	// Min and Max bound numeric parameters (inclusive).
	Min *float64 `json:"min,omitempty"`
	Max *float64 `json:"max,omitempty"`
	// Enum restricts the value to a fixed set.
	Enum []string `json:"enum,omitempty"`
}

// ParameterDescriptor describes one declared handler parameter.
type ParameterDescriptor struct {
	Name        string      `json:"name"`
	Type        ParamType   `json:"type"`
	Required    bool        `json:"required"`
	Description string      `json:"description,omitempty"`
	Examples    []string    `json:"examples,omitempty"`
	Validation  *Validation `json:"validation,omitempty"`
}

// HandlerDescriptor describes one operation a process exposes. Descriptors
// are immutable once discovered; a later discovery supersedes the whole
// snapshot rather than mutating it.
type HandlerDescriptor struct {
	// Action is the handler identifier sent in the Action tag.
	Action string `json:"action"`
	// Pattern is the registry's tag-matching pattern, kept for reference.
	Pattern string `json:"pattern,omitempty"`
	// Description is free-form handler documentation.
	Description string `json:"description,omitempty"`
	// IsWrite reports whether the handler mutates process state. Nil when
	// the source did not declare it; see Snapshot.Protocol for whether a
	// non-nil value is authoritative.
	IsWrite *bool `json:"isWrite,omitempty"`
	// Parameters are the declared parameters, in declaration order.
	Parameters []ParameterDescriptor `json:"parameters,omitempty"`
	// Examples are sample request phrases for this handler.
	Examples []string `json:"examples,omitempty"`
	// Category groups the handler in rendered documentation.
	Category HandlerCategory `json:"category,omitempty"`
}

// Parameter returns the declared parameter with the given name, or nil.
func (h *HandlerDescriptor) Parameter(name string) *ParameterDescriptor {
	for i := range h.Parameters {
		if h.Parameters[i].Name == name {
			return &h.Parameters[i]
		}
	}
	return nil
}

// Snapshot is the read-only result of one discovery round-trip.
type Snapshot struct {
	// ProcessID is the identity the snapshot was discovered from.
	ProcessID string `json:"processId"`
	// Name and Description come from the process's own self-description.
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
	// Ticker is set for token-style processes that declare one.
	Ticker string `json:"ticker,omitempty"`
	// Handlers are the discovered operations, in declaration order.
	Handlers []HandlerDescriptor `json:"handlers"`
	// Protocol records which discovery dialect produced the snapshot.
	Protocol Protocol `json:"protocol"`
	// Docs is the free-form documentation rendered from the snapshot.
	Docs string `json:"docs,omitempty"`
	// Category is the inferred process kind.
	Category ProcessCategory `json:"category"`
	// DiscoveredAt is when the discovery round-trip completed.
	DiscoveredAt time.Time `json:"discoveredAt"`
}

// Handler returns the handler with the given action, or nil.
func (s *Snapshot) Handler(action string) *HandlerDescriptor {
	for i := range s.Handlers {
		if s.Handlers[i].Action == action {
			return &s.Handlers[i]
		}
	}
	return nil
}

// InferCategory classifies a process from the union of its handler action
// names. A token process exposes balance and transfer handlers (plus a
// ticker); a DAO exposes proposal or voting handlers; a process with only
// info-style handlers is basic; anything else is custom.
func InferCategory(handlers []HandlerDescriptor, hasTicker bool) ProcessCategory {
	actions := make(map[string]bool, len(handlers))
	for _, h := range handlers {
		actions[normalizeAction(h.Action)] = true
	}

	if actions["balance"] && actions["transfer"] && hasTicker {
		return ProcessToken
	}
	if actions["propose"] || actions["vote"] {
		return ProcessDAO
	}
	if len(handlers) == 0 {
		return ProcessBasic
	}
	basicOnly := true
	for _, h := range handlers {
		switch normalizeAction(h.Action) {
		case "info", "ping", "help":
		default:
			basicOnly = false
		}
	}
	if basicOnly {
		return ProcessBasic
	}
	return ProcessCustom
}
