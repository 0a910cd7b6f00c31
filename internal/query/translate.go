// Package query translates tool-level read requests into the exact call
// shapes the backend client executes. It owns filter validation, smart field
// selection, and limit clamping. The package is deliberately agnostic to the
// permission mode: callers hand it a field schema and a strictness flag, and
// it neither knows nor cares why validation is on or off.
package query

import (
	"sort"
	"strings"

	"github.com/yugmatech/yt-mcp-server-odoo/internal/config"
	"github.com/yugmatech/yt-mcp-server-odoo/internal/odoo"
	"github.com/yugmatech/yt-mcp-server-odoo/internal/oerr"
)

// Translator turns validated requests into backend call specs. Stateless and
// safe for concurrent use.
type Translator struct {
	defaultLimit   int
	maxLimit       int
	maxSmartFields int
}

func NewTranslator(cfg config.Config) *Translator {
	return &Translator{
		defaultLimit:   cfg.DefaultLimit,
		maxLimit:       cfg.MaxLimit,
		maxSmartFields: cfg.MaxSmartFields,
	}
}

// Call is a fully-shaped backend invocation plus the effective values the
// caller should surface so clamping and field selection stay observable.
type Call struct {
	Model  string
	Method string
	Args   []any
	Kwargs map[string]any

	EffectiveLimit  int
	EffectiveFields []string
}

// SearchRequest carries the caller-supplied arguments of a search.
type SearchRequest struct {
	Model  string
	Domain Domain
	Fields []string
	Limit  int // 0 = omitted
	Offset int
	Order  string
}

// SearchRead builds a search_read call. Schema may be nil only when strict is
// false and the caller enumerated fields explicitly.
func (t *Translator) SearchRead(req SearchRequest, schema map[string]odoo.FieldInfo, strict bool) (Call, error) {
	if err := req.Domain.Validate(schema, strict); err != nil {
		return Call{}, err
	}
	if req.Offset < 0 {
		return Call{}, oerr.Newf(oerr.KindValidation, "offset must not be negative, got %d", req.Offset)
	}
	if err := validateOrder(req.Order, schema, strict); err != nil {
		return Call{}, err
	}
	fields, err := t.selectFields(req.Fields, schema, strict)
	if err != nil {
		return Call{}, err
	}
	limit := t.ClampLimit(req.Limit)

	domain := req.Domain
	if domain == nil {
		domain = Domain{}
	}
	kwargs := map[string]any{
		"fields": fields,
		"limit":  limit,
		"offset": req.Offset,
	}
	if req.Order != "" {
		kwargs["order"] = req.Order
	}
	return Call{
		Model:           req.Model,
		Method:          "search_read",
		Args:            []any{[]any(domain)},
		Kwargs:          kwargs,
		EffectiveLimit:  limit,
		EffectiveFields: fields,
	}, nil
}

// Read builds a read call for explicit record ids.
func (t *Translator) Read(model string, ids []int, requested []string, schema map[string]odoo.FieldInfo, strict bool) (Call, error) {
	fields, err := t.selectFields(requested, schema, strict)
	if err != nil {
		return Call{}, err
	}
	return Call{
		Model:           model,
		Method:          "read",
		Args:            []any{ids},
		Kwargs:          map[string]any{"fields": fields},
		EffectiveFields: fields,
	}, nil
}

// SearchCount builds a search_count call.
func (t *Translator) SearchCount(model string, domain Domain, schema map[string]odoo.FieldInfo, strict bool) (Call, error) {
	if err := domain.Validate(schema, strict); err != nil {
		return Call{}, err
	}
	if domain == nil {
		domain = Domain{}
	}
	return Call{
		Model:  model,
		Method: "search_count",
		Args:   []any{[]any(domain)},
		Kwargs: map[string]any{},
	}, nil
}

// ClampLimit applies the default for omitted limits and silently caps
// oversized ones. The effective value travels back to the caller.
func (t *Translator) ClampLimit(requested int) int {
	if requested <= 0 {
		return t.defaultLimit
	}
	if requested > t.maxLimit {
		return t.maxLimit
	}
	return requested
}

// selectFields validates an explicit field list, or smart-selects one when
// the caller gave none. Smart selection is deterministic for a given schema:
// id, display_name, and name lead, then the remaining non-relational fields
// in lexical order, then relational fields in lexical order, capped at the
// configured maximum. Binary fields never make the cut.
func (t *Translator) selectFields(requested []string, schema map[string]odoo.FieldInfo, strict bool) ([]string, error) {
	if len(requested) > 0 {
		if strict {
			for _, f := range requested {
				if _, ok := schema[f]; !ok {
					return nil, oerr.Newf(oerr.KindValidation, "unknown field %q", f)
				}
			}
		}
		return requested, nil
	}

	picked := make([]string, 0, t.maxSmartFields)
	seen := map[string]bool{}
	for _, lead := range []string{"id", "display_name", "name"} {
		if _, ok := schema[lead]; ok {
			picked = append(picked, lead)
			seen[lead] = true
		}
	}

	var scalars, relations []string
	for name, fi := range schema {
		if seen[name] || fi.Type == "binary" {
			continue
		}
		if fi.Relational() {
			relations = append(relations, name)
		} else {
			scalars = append(scalars, name)
		}
	}
	sort.Strings(scalars)
	sort.Strings(relations)

	for _, name := range append(scalars, relations...) {
		if len(picked) >= t.maxSmartFields {
			break
		}
		picked = append(picked, name)
	}
	if len(picked) > t.maxSmartFields {
		picked = picked[:t.maxSmartFields]
	}
	return picked, nil
}

func validateOrder(order string, schema map[string]odoo.FieldInfo, strict bool) error {
	if strings.TrimSpace(order) == "" {
		return nil
	}
	for _, term := range strings.Split(order, ",") {
		tokens := strings.Fields(term)
		switch len(tokens) {
		case 0:
			return oerr.Newf(oerr.KindValidation, "empty term in order %q", order)
		case 1:
		case 2:
			dir := strings.ToLower(tokens[1])
			if dir != "asc" && dir != "desc" {
				return oerr.Newf(oerr.KindValidation, "order direction must be asc or desc, got %q", tokens[1])
			}
		default:
			return oerr.Newf(oerr.KindValidation, "order term %q must be a field name optionally followed by asc or desc", strings.TrimSpace(term))
		}
		if strict {
			if _, ok := schema[tokens[0]]; !ok {
				return oerr.Newf(oerr.KindValidation, "unknown field %q in order", tokens[0])
			}
		}
	}
	return nil
}
