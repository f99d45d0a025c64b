package registry

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed registry_schema.json
var registrySchemaJSON string

// registrySchema is compiled once at package init. The schema is embedded and
// under our control, so a compile failure is a programming error.
var registrySchema = jsonschema.MustCompileString("registry_schema.json", registrySchemaJSON)

// document is the wire shape of a registry-compliant describe response.
type document struct {
	Name            string            `json:"Name"`
	Description     string            `json:"Description"`
	Owner           string            `json:"Owner"`
	ProcessID       string            `json:"ProcessId"`
	Ticker          string            `json:"Ticker"`
	TotalSupply     json.RawMessage   `json:"TotalSupply"`
	ProtocolVersion string            `json:"protocolVersion"`
	LastUpdated     string            `json:"lastUpdated"`
	Handlers        []documentHandler `json:"handlers"`
	Capabilities    struct {
		SupportsHandlerRegistry     bool `json:"supportsHandlerRegistry"`
		SupportsParameterValidation bool `json:"supportsParameterValidation"`
		SupportsTagValidation       bool `json:"supportsTagValidation"`
		SupportsExamples            bool `json:"supportsExamples"`
	} `json:"capabilities"`
}

type documentHandler struct {
	Action      string              `json:"action"`
	Pattern     json.RawMessage     `json:"pattern"`
	Description string              `json:"description"`
	IsWrite     *bool               `json:"isWrite"`
	Parameters  []documentParameter `json:"parameters"`
	Examples    []string            `json:"examples"`
	Category    string              `json:"category"`
}

type documentParameter struct {
	Name        string      `json:"name"`
	Type        string      `json:"type"`
	Required    bool        `json:"required"`
	Description string      `json:"description"`
	Examples    []string    `json:"examples"`
	Validation  *Validation `json:"validation"`
}

// parseRegistryDocument decodes and schema-validates a registry-compliant
// describe payload. The protocolVersion marker and handlers array are
// required; anything that fails validation falls through to the legacy
// parsing paths.
func parseRegistryDocument(data string) (*document, error) {
	var raw any
	if err := json.Unmarshal([]byte(data), &raw); err != nil {
		return nil, fmt.Errorf("registry document: %w", err)
	}
	if err := registrySchema.Validate(raw); err != nil {
		return nil, fmt.Errorf("registry document: %w", err)
	}

	var doc document
	if err := json.Unmarshal([]byte(data), &doc); err != nil {
		return nil, fmt.Errorf("registry document: %w", err)
	}
	if doc.ProtocolVersion == "" {
		return nil, fmt.Errorf("registry document: missing protocolVersion marker")
	}
	return &doc, nil
}

// snapshotFromDocument converts a validated registry document into a
// Snapshot. Every handler carries a non-nil IsWrite: declared values are
// taken as-is, undeclared ones fall back to the action-keyword table so the
// invariant holds even for older registry publishers.
func snapshotFromDocument(processID string, doc *document) *Snapshot {
	handlers := make([]HandlerDescriptor, 0, len(doc.Handlers))
	for _, h := range doc.Handlers {
		isWrite := h.IsWrite
		if isWrite == nil {
			inferred := inferIsWrite(h.Action)
			isWrite = &inferred
		}

		params := make([]ParameterDescriptor, 0, len(h.Parameters))
		for _, p := range h.Parameters {
			params = append(params, ParameterDescriptor{
				Name:        p.Name,
				Type:        ParamType(p.Type),
				Required:    p.Required,
				Description: p.Description,
				Examples:    p.Examples,
				Validation:  p.Validation,
			})
		}

		category := HandlerCategory(h.Category)
		if category == "" {
			category = CategoryCustom
		}

		handlers = append(handlers, HandlerDescriptor{
			Action:      h.Action,
			Pattern:     patternString(h.Pattern),
			Description: h.Description,
			IsWrite:     isWrite,
			Parameters:  params,
			Examples:    h.Examples,
			Category:    category,
		})
	}

	return &Snapshot{
		ProcessID:   processID,
		Name:        doc.Name,
		Description: doc.Description,
		Ticker:      doc.Ticker,
		Handlers:    handlers,
		Protocol:    ProtocolRegistry,
		Category:    InferCategory(handlers, doc.Ticker != ""),
	}
}

// patternString flattens the pattern field, which registries publish either
// as a string or as an array of tag names.
func patternString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return strings.Join(list, ",")
	}
	return ""
}
