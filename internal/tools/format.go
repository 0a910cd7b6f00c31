package tools

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/yugmatech/yt-mcp-server-odoo/internal/odoo"
	"github.com/yugmatech/yt-mcp-server-odoo/internal/query"
)

const (
	separator        = "=================================================="
	promptPreviewLen = 100
)

func formatSearchResults(model string, records []map[string]any, total int, fields []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Found %d of %d records in %s\n", len(records), total, model)
	b.WriteString(separator)
	writeRecordBlocks(&b, records, fields)
	return b.String()
}

func formatBrowseResults(model string, records []map[string]any, fields []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Retrieved %d records from %s\n", len(records), model)
	b.WriteString(separator)
	writeRecordBlocks(&b, records, fields)
	return b.String()
}

// writeRecordBlocks renders one block per record, headed by the record id.
// Fields follow the effective selection order so output is deterministic.
func writeRecordBlocks(b *strings.Builder, records []map[string]any, fields []string) {
	for _, rec := range records {
		id := "?"
		if n, ok := intValue(rec["id"]); ok {
			id = fmt.Sprintf("%d", n)
		}
		fmt.Fprintf(b, "\n\n[ID: %s]", id)
		for _, field := range fieldOrder(rec, fields) {
			if field == "id" {
				continue
			}
			v, ok := rec[field]
			if !ok {
				continue
			}
			fmt.Fprintf(b, "\n  %s: %s", field, formatValue(v))
		}
	}
}

func formatRecord(model string, id int, record map[string]any, fields []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Record: %s/%d\n", model, id)
	b.WriteString(separator)
	for _, field := range fieldOrder(record, fields) {
		v, ok := record[field]
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "\n%s: %s", field, formatValue(v))
	}
	return b.String()
}

func formatWriteConfirmation(verb, model string, id int) string {
	return fmt.Sprintf("%s record: %s/%d", verb, model, id)
}

func formatCount(model string, count int, dom query.Domain) string {
	rendered := "[]"
	if data, err := json.Marshal([]any(dom)); err == nil && dom != nil {
		rendered = string(data)
	}
	return fmt.Sprintf("Count: %d records in %s matching %s", count, model, rendered)
}

func formatBulkSummary(verb, model string, ids []int, errs []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %d records in %s\n", verb, len(ids), model)
	fmt.Fprintf(&b, "IDs: %v", ids)
	if len(errs) > 0 {
		fmt.Fprintf(&b, "\nErrors: %v", errs)
	}
	return b.String()
}

func formatModels(grants map[string]odoo.Permissions) string {
	names := make([]string, 0, len(grants))
	for name := range grants {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	fmt.Fprintf(&b, "Enabled Models (%d total)\n", len(names))
	b.WriteString(separator)
	for _, name := range names {
		fmt.Fprintf(&b, "\n%s [%s]", name, permissionSummary(grants[name]))
	}
	return b.String()
}

func permissionSummary(p odoo.Permissions) string {
	var marks []string
	if p.Read {
		marks = append(marks, "R")
	}
	if p.Write {
		marks = append(marks, "W")
	}
	if p.Create {
		marks = append(marks, "C")
	}
	if p.Delete {
		marks = append(marks, "D")
	}
	if len(marks) == 0 {
		return "-"
	}
	return strings.Join(marks, "/")
}

func formatPrompts(templates []odoo.PromptTemplate) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Prompt Templates (%d found)\n", len(templates))
	b.WriteString(separator)
	for _, t := range templates {
		fmt.Fprintf(&b, "\n\n[%s] %s", strings.ToUpper(t.Category), t.Name)
		if t.Description != "" {
			fmt.Fprintf(&b, "\n  Description: %s", t.Description)
		}
		if t.Model != "" {
			fmt.Fprintf(&b, "\n  Model: %s", t.Model)
		}
		if t.ExampleInput != "" {
			fmt.Fprintf(&b, "\n  Example: %s", t.ExampleInput)
		}
		fmt.Fprintf(&b, "\n  Prompt: %s", truncate(t.Prompt, promptPreviewLen))
	}
	return b.String()
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

// fieldOrder yields the requested field order first, then any extra keys
// the backend returned that were not asked for, sorted for stability.
func fieldOrder(record map[string]any, fields []string) []string {
	seen := make(map[string]bool, len(fields))
	order := make([]string, 0, len(record))
	for _, f := range fields {
		if seen[f] {
			continue
		}
		seen[f] = true
		order = append(order, f)
	}
	var extras []string
	for k := range record {
		if !seen[k] {
			extras = append(extras, k)
		}
	}
	sort.Strings(extras)
	return append(order, extras...)
}

// formatValue renders scalars bare and composites as compact JSON, so
// relational tuples like [3, "Azure Interior"] stay readable.
func formatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case string:
		return t
	}
	if data, err := json.Marshal(v); err == nil {
		return string(data)
	}
	return fmt.Sprintf("%v", v)
}
