package tools

import "github.com/yugmatech/yt-mcp-server-odoo/internal/policy"

// definitions is the authoritative tool table. Names and argument sets are a
// stable contract: assistant clients bind to them by name.
func definitions() []Definition {
	return []Definition{
		{
			Name:        "list_models",
			Description: "List all models enabled for MCP access, with their permissions.",
			Operation:   policy.OpRead,
			InputSchema: obj(map[string]any{
				"refresh": boolean("Refetch the enabled-model list from Odoo instead of using the cached copy"),
			}),
			handler: (*Dispatcher).listModels,
		},
		{
			Name:        "search_records",
			Description: "Search for records in an Odoo model using a domain filter, with optional field selection, limit, offset, and sort order.",
			Operation:   policy.OpRead,
			InputSchema: obj(map[string]any{
				"model":  str("The Odoo model name (e.g., 'res.partner')"),
				"domain": arrayOrString("Odoo domain filter, e.g. [[\"name\", \"=\", \"Spain\"]]; JSON array or a string containing one"),
				"fields": arrayOrString("Fields to return; array or comma-separated string. Omit for an automatic selection"),
				"limit":  integer("Maximum number of records to return"),
				"offset": integer("Number of records to skip"),
				"order":  str("Sort order, e.g. 'name asc'"),
			}, "model"),
			handler: (*Dispatcher).searchRecords,
		},
		{
			Name:        "get_record",
			Description: "Get a specific record by ID.",
			Operation:   policy.OpRead,
			InputSchema: obj(map[string]any{
				"model":     str("The Odoo model name (e.g., 'res.partner')"),
				"record_id": integer("The record ID to retrieve"),
				"fields":    arrayOrString("Fields to return; array or comma-separated string. Omit for an automatic selection"),
			}, "model", "record_id"),
			handler: (*Dispatcher).getRecord,
		},
		{
			Name:        "create_record",
			Description: "Create a new record in Odoo.",
			Operation:   policy.OpCreate,
			InputSchema: obj(map[string]any{
				"model":  str("The Odoo model name (e.g., 'res.partner')"),
				"values": objectOrString("Field values for the new record; JSON object or a string containing one"),
			}, "model", "values"),
			handler: (*Dispatcher).createRecord,
		},
		{
			Name:        "update_record",
			Description: "Update an existing record.",
			Operation:   policy.OpWrite,
			InputSchema: obj(map[string]any{
				"model":     str("The Odoo model name (e.g., 'res.partner')"),
				"record_id": integer("The record ID to update"),
				"values":    objectOrString("Field values to write; JSON object or a string containing one"),
			}, "model", "record_id", "values"),
			handler: (*Dispatcher).updateRecord,
		},
		{
			Name:        "delete_record",
			Description: "Delete a record from Odoo.",
			Operation:   policy.OpDelete,
			InputSchema: obj(map[string]any{
				"model":     str("The Odoo model name (e.g., 'res.partner')"),
				"record_id": integer("The record ID to delete"),
			}, "model", "record_id"),
			handler: (*Dispatcher).deleteRecord,
		},
		{
			Name:        "count_records",
			Description: "Count records matching a domain filter.",
			Operation:   policy.OpRead,
			InputSchema: obj(map[string]any{
				"model":  str("The Odoo model name (e.g., 'res.partner')"),
				"domain": arrayOrString("Odoo domain filter; JSON array or a string containing one"),
			}, "model"),
			handler: (*Dispatcher).countRecords,
		},
		{
			Name:        "browse_records",
			Description: "Browse multiple records by their IDs.",
			Operation:   policy.OpRead,
			InputSchema: obj(map[string]any{
				"model":  str("The Odoo model name (e.g., 'res.partner')"),
				"ids":    arrayOrString("Record IDs; array or comma-separated string (e.g., '1,2,3')"),
				"fields": arrayOrString("Fields to return; array or comma-separated string. Omit for an automatic selection"),
			}, "model", "ids"),
			handler: (*Dispatcher).browseRecords,
		},
		{
			Name:        "create_bulk",
			Description: "Create multiple records in a single request. Each item succeeds or fails independently.",
			Operation:   policy.OpCreate,
			InputSchema: obj(map[string]any{
				"model":   str("The Odoo model name (e.g., 'res.partner')"),
				"records": arrayOrString("Array of record value objects to create; JSON array or a string containing one"),
			}, "model", "records"),
			handler: (*Dispatcher).createBulk,
		},
		{
			Name:        "update_bulk",
			Description: "Update multiple records with different values. Each item succeeds or fails independently.",
			Operation:   policy.OpWrite,
			InputSchema: obj(map[string]any{
				"model":   str("The Odoo model name (e.g., 'res.partner')"),
				"updates": arrayOrString("Array of {\"id\": record_id, \"values\": {...}} items; JSON array or a string containing one"),
			}, "model", "updates"),
			handler: (*Dispatcher).updateBulk,
		},
		{
			Name:        "list_prompts",
			Description: "List available prompt templates for AI assistance, optionally filtered by category and model.",
			InputSchema: obj(map[string]any{
				"category": str("Filter by category (search, create, update, report, analysis)"),
				"model":    str("Filter by model name (e.g., 'res.partner')"),
			}),
			handler: (*Dispatcher).listPrompts,
		},
	}
}

func obj(props map[string]any, required ...string) map[string]any {
	schema := map[string]any{
		"type":                 "object",
		"properties":           props,
		"additionalProperties": false,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func str(desc string) map[string]any {
	return map[string]any{"type": "string", "description": desc}
}

func integer(desc string) map[string]any {
	return map[string]any{"type": "integer", "description": desc}
}

func boolean(desc string) map[string]any {
	return map[string]any{"type": "boolean", "description": desc}
}

// arrayOrString admits both the native JSON form and the string-wrapped form
// assistant clients frequently produce.
func arrayOrString(desc string) map[string]any {
	return map[string]any{"type": []string{"array", "string"}, "description": desc}
}

func objectOrString(desc string) map[string]any {
	return map[string]any{"type": []string{"object", "string"}, "description": desc}
}
