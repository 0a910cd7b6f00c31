package tools

import (
	"context"

	"github.com/yugmatech/yt-mcp-server-odoo/internal/bulk"
	"github.com/yugmatech/yt-mcp-server-odoo/internal/oerr"
	"github.com/yugmatech/yt-mcp-server-odoo/internal/policy"
	"github.com/yugmatech/yt-mcp-server-odoo/internal/query"
)

func (d *Dispatcher) searchRecords(ctx context.Context, args map[string]any) (*Result, error) {
	model, err := requiredString(args, "model")
	if err != nil {
		return nil, err
	}
	dom, err := query.ParseDomain(args["domain"])
	if err != nil {
		return nil, err
	}
	fields, err := stringList(args, "fields")
	if err != nil {
		return nil, err
	}
	limit, err := optionalInt(args, "limit")
	if err != nil {
		return nil, err
	}
	offset, err := optionalInt(args, "offset")
	if err != nil {
		return nil, err
	}
	order := optionalString(args, "order")

	if err := d.policy.Permitted(ctx, model, policy.OpRead); err != nil {
		return nil, err
	}
	schema, err := d.policy.Fields(ctx, model)
	if err != nil {
		return nil, err
	}
	call, err := d.translator.SearchRead(query.SearchRequest{
		Model:  model,
		Domain: dom,
		Fields: fields,
		Limit:  limit,
		Offset: offset,
		Order:  order,
	}, schema, d.policy.EnforcesFieldNames())
	if err != nil {
		return nil, err
	}

	countCall, err := d.translator.SearchCount(model, dom, schema, d.policy.EnforcesFieldNames())
	if err != nil {
		return nil, err
	}
	rawTotal, err := d.backend.Execute(ctx, countCall.Model, countCall.Method, countCall.Args, countCall.Kwargs)
	if err != nil {
		return nil, err
	}
	total, err := intOf(rawTotal)
	if err != nil {
		return nil, err
	}

	raw, err := d.backend.Execute(ctx, call.Model, call.Method, call.Args, call.Kwargs)
	if err != nil {
		return nil, err
	}
	records, err := recordsOf(raw)
	if err != nil {
		return nil, err
	}

	return &Result{
		Text: formatSearchResults(model, records, total, call.EffectiveFields),
		Structured: map[string]any{
			"model":   model,
			"records": records,
			"total":   total,
			"limit":   call.EffectiveLimit,
			"offset":  offset,
			"fields":  call.EffectiveFields,
		},
		Records:        len(records),
		EffectiveLimit: call.EffectiveLimit,
	}, nil
}

func (d *Dispatcher) getRecord(ctx context.Context, args map[string]any) (*Result, error) {
	model, err := requiredString(args, "model")
	if err != nil {
		return nil, err
	}
	id, err := requiredInt(args, "record_id")
	if err != nil {
		return nil, err
	}
	fields, err := stringList(args, "fields")
	if err != nil {
		return nil, err
	}

	if err := d.policy.Permitted(ctx, model, policy.OpRead); err != nil {
		return nil, err
	}
	schema, err := d.policy.Fields(ctx, model)
	if err != nil {
		return nil, err
	}
	call, err := d.translator.Read(model, []int{id}, fields, schema, d.policy.EnforcesFieldNames())
	if err != nil {
		return nil, err
	}

	raw, err := d.backend.Execute(ctx, call.Model, call.Method, call.Args, call.Kwargs)
	if err != nil {
		return nil, err
	}
	records, err := recordsOf(raw)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, oerr.Newf(oerr.KindRemote, "record %s/%d not found", model, id)
	}

	return &Result{
		Text: formatRecord(model, id, records[0], call.EffectiveFields),
		Structured: map[string]any{
			"model":  model,
			"id":     id,
			"record": records[0],
			"fields": call.EffectiveFields,
		},
		Records: 1,
	}, nil
}

func (d *Dispatcher) createRecord(ctx context.Context, args map[string]any) (*Result, error) {
	model, err := requiredString(args, "model")
	if err != nil {
		return nil, err
	}
	values, err := valuesMap(args, "values")
	if err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, oerr.New(oerr.KindValidation, `argument "values" must not be empty`)
	}

	if err := d.policy.Permitted(ctx, model, policy.OpCreate); err != nil {
		return nil, err
	}
	raw, err := d.backend.Execute(ctx, model, "create", []any{values}, nil)
	if err != nil {
		return nil, err
	}
	id, err := intOf(raw)
	if err != nil {
		return nil, err
	}

	return &Result{
		Text:       formatWriteConfirmation("Created", model, id),
		Structured: map[string]any{"model": model, "id": id},
		Records:    1,
	}, nil
}

func (d *Dispatcher) updateRecord(ctx context.Context, args map[string]any) (*Result, error) {
	model, err := requiredString(args, "model")
	if err != nil {
		return nil, err
	}
	id, err := requiredInt(args, "record_id")
	if err != nil {
		return nil, err
	}
	values, err := valuesMap(args, "values")
	if err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, oerr.New(oerr.KindValidation, `argument "values" must not be empty`)
	}

	if err := d.policy.Permitted(ctx, model, policy.OpWrite); err != nil {
		return nil, err
	}
	if _, err := d.backend.Execute(ctx, model, "write", []any{[]int{id}, values}, nil); err != nil {
		return nil, err
	}

	return &Result{
		Text:       formatWriteConfirmation("Updated", model, id),
		Structured: map[string]any{"model": model, "id": id},
		Records:    1,
	}, nil
}

func (d *Dispatcher) deleteRecord(ctx context.Context, args map[string]any) (*Result, error) {
	model, err := requiredString(args, "model")
	if err != nil {
		return nil, err
	}
	id, err := requiredInt(args, "record_id")
	if err != nil {
		return nil, err
	}

	if err := d.policy.Permitted(ctx, model, policy.OpDelete); err != nil {
		return nil, err
	}
	if _, err := d.backend.Execute(ctx, model, "unlink", []any{[]int{id}}, nil); err != nil {
		return nil, err
	}

	return &Result{
		Text:       formatWriteConfirmation("Deleted", model, id),
		Structured: map[string]any{"model": model, "id": id},
		Records:    1,
	}, nil
}

func (d *Dispatcher) countRecords(ctx context.Context, args map[string]any) (*Result, error) {
	model, err := requiredString(args, "model")
	if err != nil {
		return nil, err
	}
	dom, err := query.ParseDomain(args["domain"])
	if err != nil {
		return nil, err
	}

	if err := d.policy.Permitted(ctx, model, policy.OpRead); err != nil {
		return nil, err
	}
	schema, err := d.policy.Fields(ctx, model)
	if err != nil {
		return nil, err
	}
	call, err := d.translator.SearchCount(model, dom, schema, d.policy.EnforcesFieldNames())
	if err != nil {
		return nil, err
	}

	raw, err := d.backend.Execute(ctx, call.Model, call.Method, call.Args, call.Kwargs)
	if err != nil {
		return nil, err
	}
	count, err := intOf(raw)
	if err != nil {
		return nil, err
	}

	return &Result{
		Text: formatCount(model, count, dom),
		Structured: map[string]any{
			"model":  model,
			"count":  count,
			"domain": []any(dom),
		},
		Records: count,
	}, nil
}

func (d *Dispatcher) browseRecords(ctx context.Context, args map[string]any) (*Result, error) {
	model, err := requiredString(args, "model")
	if err != nil {
		return nil, err
	}
	ids, err := intList(args, "ids")
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, oerr.New(oerr.KindValidation, `argument "ids" must not be empty`)
	}
	fields, err := stringList(args, "fields")
	if err != nil {
		return nil, err
	}

	if err := d.policy.Permitted(ctx, model, policy.OpRead); err != nil {
		return nil, err
	}
	schema, err := d.policy.Fields(ctx, model)
	if err != nil {
		return nil, err
	}
	call, err := d.translator.Read(model, ids, fields, schema, d.policy.EnforcesFieldNames())
	if err != nil {
		return nil, err
	}

	raw, err := d.backend.Execute(ctx, call.Model, call.Method, call.Args, call.Kwargs)
	if err != nil {
		return nil, err
	}
	records, err := recordsOf(raw)
	if err != nil {
		return nil, err
	}

	return &Result{
		Text: formatBrowseResults(model, records, call.EffectiveFields),
		Structured: map[string]any{
			"model":   model,
			"ids":     ids,
			"records": records,
			"fields":  call.EffectiveFields,
		},
		Records: len(records),
	}, nil
}

func (d *Dispatcher) createBulk(ctx context.Context, args map[string]any) (*Result, error) {
	model, err := requiredString(args, "model")
	if err != nil {
		return nil, err
	}
	elements, err := anyList(args, "records")
	if err != nil {
		return nil, err
	}

	// One policy check covers the whole batch: every item shares the model
	// and operation.
	if err := d.policy.Permitted(ctx, model, policy.OpCreate); err != nil {
		return nil, err
	}

	items := make([]bulk.Item, len(elements))
	for i, el := range elements {
		if values, ok := el.(map[string]any); ok {
			items[i] = bulk.Item{Values: values}
		}
		// Malformed elements stay zero-valued and fail per item.
	}

	res, err := d.bulk.Run(ctx, bulk.Create, model, items)
	if err != nil {
		return nil, err
	}
	ids := res.SucceededIDs()

	return &Result{
		Text: formatBulkSummary("Created", model, ids, outcomeErrors(res)),
		Structured: map[string]any{
			"model":     model,
			"ids":       ids,
			"succeeded": len(ids),
			"failed":    res.Failed(),
			"outcomes":  structuredOutcomes(res),
		},
		Records: len(items),
	}, nil
}

func (d *Dispatcher) updateBulk(ctx context.Context, args map[string]any) (*Result, error) {
	model, err := requiredString(args, "model")
	if err != nil {
		return nil, err
	}
	elements, err := anyList(args, "updates")
	if err != nil {
		return nil, err
	}

	if err := d.policy.Permitted(ctx, model, policy.OpWrite); err != nil {
		return nil, err
	}

	items := make([]bulk.Item, len(elements))
	for i, el := range elements {
		m, ok := el.(map[string]any)
		if !ok {
			continue
		}
		if id, ok := intValue(m["id"]); ok {
			items[i].ID = id
		}
		if values, ok := m["values"].(map[string]any); ok {
			items[i].Values = values
		}
	}

	res, err := d.bulk.Run(ctx, bulk.Update, model, items)
	if err != nil {
		return nil, err
	}
	ids := res.SucceededIDs()

	return &Result{
		Text: formatBulkSummary("Updated", model, ids, outcomeErrors(res)),
		Structured: map[string]any{
			"model":     model,
			"ids":       ids,
			"succeeded": len(ids),
			"failed":    res.Failed(),
			"outcomes":  structuredOutcomes(res),
		},
		Records: len(items),
	}, nil
}

func (d *Dispatcher) listModels(ctx context.Context, args map[string]any) (*Result, error) {
	if optionalBool(args, "refresh") {
		d.policy.Invalidate()
	}
	grants, err := d.policy.Grants(ctx)
	if err != nil {
		return nil, err
	}

	return &Result{
		Text: formatModels(grants),
		Structured: map[string]any{
			"models": grants,
			"count":  len(grants),
		},
		Records: len(grants),
	}, nil
}

func (d *Dispatcher) listPrompts(ctx context.Context, args map[string]any) (*Result, error) {
	category := optionalString(args, "category")
	modelFilter := optionalString(args, "model")

	templates, err := d.backend.Prompts(ctx, category, modelFilter)
	if err != nil {
		return nil, err
	}

	return &Result{
		Text: formatPrompts(templates),
		Structured: map[string]any{
			"templates": templates,
			"count":     len(templates),
		},
		Records: len(templates),
	}, nil
}

// recordsOf asserts the backend returned a list of records.
func recordsOf(raw any) ([]map[string]any, error) {
	list, ok := raw.([]any)
	if !ok {
		return nil, oerr.Newf(oerr.KindRemote, "unexpected backend result shape %T", raw)
	}
	records := make([]map[string]any, 0, len(list))
	for _, item := range list {
		rec, ok := item.(map[string]any)
		if !ok {
			return nil, oerr.Newf(oerr.KindRemote, "unexpected record shape %T", item)
		}
		records = append(records, rec)
	}
	return records, nil
}

func intOf(raw any) (int, error) {
	n, ok := intValue(raw)
	if !ok {
		return 0, oerr.Newf(oerr.KindRemote, "expected a numeric backend result, got %T", raw)
	}
	return n, nil
}

func outcomeErrors(res bulk.Result) []string {
	var errs []string
	for _, o := range res.Outcomes {
		if o.Err != nil {
			errs = append(errs, oerr.MessageOf(o.Err))
		}
	}
	return errs
}

func structuredOutcomes(res bulk.Result) []map[string]any {
	out := make([]map[string]any, len(res.Outcomes))
	for i, o := range res.Outcomes {
		entry := map[string]any{"index": o.Index}
		if o.Err != nil {
			entry["error"] = map[string]any{
				"kind":    string(oerr.KindOf(o.Err)),
				"message": oerr.MessageOf(o.Err),
			}
		} else {
			entry["id"] = o.ID
		}
		out[i] = entry
	}
	return out
}
