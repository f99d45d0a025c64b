package registry

import (
	"fmt"
	"strings"
)

// categoryOrder fixes the section order of rendered documentation.
var categoryOrder = []HandlerCategory{CategoryCore, CategoryUtility, CategoryCustom}

var categoryTitles = map[HandlerCategory]string{
	CategoryCore:    "Core Handlers",
	CategoryUtility: "Utility Handlers",
	CategoryCustom:  "Custom Handlers",
}

// RenderDocs renders any snapshot into organised markdown documentation,
// grouped by handler category. It is a pure formatting function: it never
// touches the network and works the same for registry and legacy snapshots.
func RenderDocs(s *Snapshot) string {
	var b strings.Builder

	title := s.Name
	if title == "" {
		title = s.ProcessID
	}
	fmt.Fprintf(&b, "# %s\n\n", title)
	if s.Description != "" {
		fmt.Fprintf(&b, "%s\n\n", s.Description)
	}
	fmt.Fprintf(&b, "Process: `%s` · Category: %s · Protocol: %s\n", s.ProcessID, s.Category, s.Protocol)

	if len(s.Handlers) == 0 {
		b.WriteString("\nNo handlers discovered.\n")
		return b.String()
	}

	grouped := make(map[HandlerCategory][]HandlerDescriptor, len(categoryOrder))
	for _, h := range s.Handlers {
		cat := h.Category
		if _, known := categoryTitles[cat]; !known {
			cat = CategoryCustom
		}
		grouped[cat] = append(grouped[cat], h)
	}

	for _, cat := range categoryOrder {
		handlers := grouped[cat]
		if len(handlers) == 0 {
			continue
		}
		fmt.Fprintf(&b, "\n## %s\n", categoryTitles[cat])
		for _, h := range handlers {
			renderHandler(&b, h)
		}
	}

	return b.String()
}

func renderHandler(b *strings.Builder, h HandlerDescriptor) {
	fmt.Fprintf(b, "\n### %s", h.Action)
	if h.IsWrite != nil {
		if *h.IsWrite {
			b.WriteString(" (write)")
		} else {
			b.WriteString(" (read)")
		}
	}
	b.WriteString("\n")

	if h.Description != "" {
		fmt.Fprintf(b, "%s\n", h.Description)
	}

	for _, p := range h.Parameters {
		req := "optional"
		if p.Required {
			req = "required"
		}
		fmt.Fprintf(b, "- `%s` (%s, %s)", p.Name, p.Type, req)
		if p.Description != "" {
			fmt.Fprintf(b, ": %s", p.Description)
		}
		b.WriteString("\n")
	}

	if len(h.Examples) > 0 {
		fmt.Fprintf(b, "Examples: %s\n", strings.Join(h.Examples, "; "))
	}
}
