package registry

import (
	"fmt"
	"regexp"
	"strings"
)

// writeActionKeywords is the table used to infer IsWrite for handlers whose
// source never declared it. An action containing any of these verbs is
// assumed to mutate state. The inference may be wrong; snapshots built this
// way are marked ProtocolLegacy so callers know not to trust it.
var writeActionKeywords = []string{
	"transfer", "send", "mint", "burn",
	"create", "update", "delete", "set",
	"add", "remove", "register", "revoke",
	"stake", "unstake", "withdraw", "deposit",
	"propose", "vote", "execute", "claim",
}

// inferIsWrite guesses whether an action mutates state from its name alone.
func inferIsWrite(action string) bool {
	a := normalizeAction(action)
	for _, kw := range writeActionKeywords {
		if strings.Contains(a, kw) {
			return true
		}
	}
	return false
}

// normalizeAction lowers an action name and strips separators so "Get-Balance",
// "get_balance" and "GetBalance " compare equal in keyword tables.
func normalizeAction(action string) string {
	a := strings.ToLower(strings.TrimSpace(action))
	a = strings.ReplaceAll(a, "-", "")
	a = strings.ReplaceAll(a, "_", "")
	return a
}

// paramBullet matches a "- name: description" bullet under a handler
// heading. The description may end with a parenthesised hint such as
// "(optional)" or "(number)".
var paramBullet = regexp.MustCompile(`^[-*]\s+([A-Za-z][\w-]*)\s*:\s*(.*)$`)

// paramHint matches a trailing "(optional)", "(number)", "(optional number)"
// style hint on a parameter description.
var paramHint = regexp.MustCompile(`\(([^)]*)\)\s*$`)

// parseMarkdownDocs recovers a legacy Snapshot from free-text documentation
// following the fixed convention: the level-1 heading names the process,
// level-2 headings name handlers, bullet lines under a handler declare
// "name: description" parameters, and remaining prose becomes the handler
// description.
func parseMarkdownDocs(processID, text string) (*Snapshot, error) {
	lines := strings.Split(text, "\n")

	snap := &Snapshot{
		ProcessID: processID,
		Protocol:  ProtocolLegacy,
	}

	var current *HandlerDescriptor
	var prose []string

	flushProse := func() {
		if current == nil || len(prose) == 0 {
			prose = nil
			return
		}
		desc := strings.TrimSpace(strings.Join(prose, " "))
		if desc != "" {
			if current.Description != "" {
				current.Description += " "
			}
			current.Description += desc
		}
		prose = nil
	}
	closeHandler := func() {
		flushProse()
		if current != nil {
			snap.Handlers = append(snap.Handlers, *current)
			current = nil
		}
	}

	sawHeading := false
	for _, raw := range lines {
		line := strings.TrimSpace(raw)
		switch {
		case strings.HasPrefix(line, "## "):
			closeHandler()
			action := strings.TrimSpace(strings.TrimPrefix(line, "## "))
			if action == "" {
				continue
			}
			sawHeading = true
			isWrite := inferIsWrite(action)
			current = &HandlerDescriptor{
				Action:   action,
				IsWrite:  &isWrite,
				Category: CategoryCustom,
			}

		case strings.HasPrefix(line, "# "):
			sawHeading = true
			if snap.Name == "" {
				snap.Name = strings.TrimSpace(strings.TrimPrefix(line, "# "))
			}

		case current != nil && paramBullet.MatchString(line):
			flushProse()
			m := paramBullet.FindStringSubmatch(line)
			current.Parameters = append(current.Parameters, parseParamBullet(m[1], m[2]))

		case line == "":
			flushProse()

		case current != nil:
			prose = append(prose, line)

		case snap.Name != "" && snap.Description == "":
			snap.Description = line
		}
	}
	closeHandler()

	if !sawHeading {
		return nil, fmt.Errorf("markdown docs: no headings found")
	}

	snap.Category = InferCategory(snap.Handlers, false)
	return snap, nil
}

// parseParamBullet builds a ParameterDescriptor from a "name: description"
// bullet. A trailing parenthesised hint may flag the parameter optional
// and/or carry a type name; parameters are required unless flagged optional.
func parseParamBullet(name, description string) ParameterDescriptor {
	p := ParameterDescriptor{
		Name:     name,
		Type:     ParamString,
		Required: true,
	}

	if m := paramHint.FindStringSubmatch(description); m != nil {
		for _, word := range strings.Fields(strings.ToLower(m[1])) {
			switch word {
			case "optional":
				p.Required = false
			case "number", "numeric", "integer":
				p.Type = ParamNumber
			case "boolean", "bool":
				p.Type = ParamBoolean
			case "address":
				p.Type = ParamAddress
			case "json":
				p.Type = ParamJSON
			case "string", "required":
				// explicit defaults; nothing to change
			}
		}
		description = strings.TrimSpace(description[:len(description)-len(m[0])])
	}

	p.Description = strings.TrimSpace(description)
	return p
}
