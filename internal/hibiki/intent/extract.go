package intent

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/hibikihq/hibiki/internal/hibiki/fail"
	"github.com/hibikihq/hibiki/internal/hibiki/registry"
)

// Type-specific fallback patterns, tried when neither the "name=value" nor
// the bare "name value" form located a parameter. Numeric fallbacks anchor on
// the verbs and units people actually type; preposition fallbacks apply to
// address parameters only. A plain string parameter is resolved solely
// through its name, never guessed from prose.
var (
	numberVerbPattern   = regexp.MustCompile(`(?i)\b(?:send|transfer|give|pay|mint|burn|stake|withdraw|deposit)\s+(\d+(?:\.\d+)?)\b`)
	numberUnitPattern   = regexp.MustCompile(`(?i)\b(\d+(?:\.\d+)?)\s+tokens?\b`)
	numberToPattern     = regexp.MustCompile(`(?i)\b(\d+(?:\.\d+)?)\s+to\b`)
	addressToPattern    = regexp.MustCompile(`(?i)\bto\s+([^\s,.!?]+)`)
	addressForPattern   = regexp.MustCompile(`(?i)\bfor\s+([^\s,.!?]+)`)
	addressRecvPattern  = regexp.MustCompile(`(?i)\brecipient\s+([^\s,.!?]+)`)
	booleanTruthPattern = regexp.MustCompile(`(?i)^(true|yes|on|1)$`)
)

// ExtractParams resolves every declared parameter of handler from text,
// letting explicit values win over extraction. The result depends only on
// the inputs, so re-extracting from identical text yields an identical map.
//
// Resolution order per parameter: explicit value, "name=value" / "name:
// value", bare "name value", then the type-specific fallbacks. A value that
// cannot be coerced to the declared type is treated as absent, so a numeric
// parse failure never silently becomes zero. Missing required parameters and
// descriptor-validation violations return structured failures.
func ExtractParams(text string, handler *registry.HandlerDescriptor, explicit map[string]any) (map[string]any, error) {
	params := make(map[string]any, len(handler.Parameters))

	for i := range handler.Parameters {
		p := &handler.Parameters[i]

		if raw, ok := explicit[p.Name]; ok {
			v, err := coerceExplicit(p, raw)
			if err != nil {
				return nil, err
			}
			params[p.Name] = v
			continue
		}

		if v, ok := extractOne(text, p); ok {
			params[p.Name] = v
		}
	}

	for i := range handler.Parameters {
		p := &handler.Parameters[i]
		v, ok := params[p.Name]
		if !ok {
			if p.Required {
				return nil, fail.Newf(fail.CodeParameterMissing, "required parameter %q of %s could not be resolved from the request", p.Name, handler.Action)
			}
			continue
		}
		if err := validateValue(handler.Action, p, v); err != nil {
			return nil, err
		}
	}

	return params, nil
}

// extractOne tries each pattern for one declared parameter against the text.
func extractOne(text string, p *registry.ParameterDescriptor) (any, bool) {
	name := regexp.QuoteMeta(p.Name)

	// "name=value" or "name: value"
	kv := regexp.MustCompile(`(?i)\b` + name + `\s*[=:]\s*("([^"]*)"|[^\s,]+)`)
	if m := kv.FindStringSubmatch(text); m != nil {
		raw := m[1]
		if m[2] != "" || strings.HasPrefix(m[1], `"`) {
			raw = m[2]
		}
		if v, ok := coerceText(p.Type, raw); ok {
			return v, true
		}
	}

	// bare "name value"
	bare := regexp.MustCompile(`(?i)\b` + name + `\s+([^\s,.!?]+)`)
	if m := bare.FindStringSubmatch(text); m != nil {
		if v, ok := coerceText(p.Type, m[1]); ok {
			return v, true
		}
	}

	// type-specific fallbacks
	switch p.Type {
	case registry.ParamNumber:
		for _, pat := range []*regexp.Regexp{numberVerbPattern, numberUnitPattern, numberToPattern} {
			if m := pat.FindStringSubmatch(text); m != nil {
				if v, ok := coerceText(registry.ParamNumber, m[1]); ok {
					return v, true
				}
			}
		}
	case registry.ParamAddress:
		for _, pat := range []*regexp.Regexp{addressToPattern, addressForPattern, addressRecvPattern} {
			if m := pat.FindStringSubmatch(text); m != nil {
				return strings.TrimSpace(m[1]), true
			}
		}
	}

	return nil, false
}

// coerceText converts a textual capture to the declared parameter type.
// Returns ok=false when the capture cannot represent the type.
func coerceText(t registry.ParamType, raw string) (any, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, false
	}
	switch t {
	case registry.ParamNumber:
		n, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, false
		}
		return n, true
	case registry.ParamBoolean:
		if booleanTruthPattern.MatchString(raw) {
			return true, true
		}
		if b, err := strconv.ParseBool(raw); err == nil {
			return b, true
		}
		switch strings.ToLower(raw) {
		case "no", "off":
			return false, true
		}
		return nil, false
	default:
		return strings.Trim(raw, `"'`), true
	}
}

// coerceExplicit validates a caller-supplied parameter value against the
// declared type. Unlike text extraction, a bad explicit value is an error:
// the caller asserted it on purpose.
func coerceExplicit(p *registry.ParameterDescriptor, raw any) (any, error) {
	switch p.Type {
	case registry.ParamNumber:
		switch v := raw.(type) {
		case float64:
			return v, nil
		case float32:
			return float64(v), nil
		case int:
			return float64(v), nil
		case int64:
			return float64(v), nil
		case string:
			n, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				return nil, fail.Newf(fail.CodeParameterTypeMismatch, "parameter %q must be a number, got %q", p.Name, v)
			}
			return n, nil
		default:
			return nil, fail.Newf(fail.CodeParameterTypeMismatch, "parameter %q must be a number, got %T", p.Name, raw)
		}
	case registry.ParamBoolean:
		switch v := raw.(type) {
		case bool:
			return v, nil
		case string:
			if b, ok := coerceText(registry.ParamBoolean, v); ok {
				return b, nil
			}
			return nil, fail.Newf(fail.CodeParameterTypeMismatch, "parameter %q must be a boolean, got %q", p.Name, v)
		default:
			return nil, fail.Newf(fail.CodeParameterTypeMismatch, "parameter %q must be a boolean, got %T", p.Name, raw)
		}
	default:
		if s, ok := raw.(string); ok {
			return s, nil
		}
		return fmt.Sprintf("%v", raw), nil
	}
}

// validateValue enforces the descriptor's declared validation rules.
func validateValue(action string, p *registry.ParameterDescriptor, v any) error {
	if p.Validation == nil {
		return nil
	}
	val := p.Validation

	if val.Pattern != "" {
		re, err := regexp.Compile(val.Pattern)
		if err == nil && !re.MatchString(stringForm(v)) {
			return fail.Newf(fail.CodeParameterPatternMismatch, "parameter %q of %s does not match pattern %q", p.Name, action, val.Pattern)
		}
	}

	if n, ok := v.(float64); ok {
		if val.Min != nil && n < *val.Min {
			return fail.Newf(fail.CodeParameterPatternMismatch, "parameter %q of %s is below the minimum %v", p.Name, action, *val.Min)
		}
		if val.Max != nil && n > *val.Max {
			return fail.Newf(fail.CodeParameterPatternMismatch, "parameter %q of %s exceeds the maximum %v", p.Name, action, *val.Max)
		}
	}

	if len(val.Enum) > 0 {
		s := stringForm(v)
		for _, allowed := range val.Enum {
			if s == allowed {
				return nil
			}
		}
		return fail.Newf(fail.CodeParameterPatternMismatch, "parameter %q of %s must be one of %v", p.Name, action, val.Enum)
	}

	return nil
}

func stringForm(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	if n, ok := v.(float64); ok {
		return strconv.FormatFloat(n, 'f', -1, 64)
	}
	return fmt.Sprintf("%v", v)
}
