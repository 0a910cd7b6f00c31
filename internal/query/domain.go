package query

import (
	"encoding/json"
	"strings"

	"github.com/yugmatech/yt-mcp-server-odoo/internal/odoo"
	"github.com/yugmatech/yt-mcp-server-odoo/internal/oerr"
)

// Domain is the backend-native filter representation: a flat list mixing
// prefix combinators ("&", "|", "!") with [field, operator, value] leaves.
// Consecutive top-level expressions are implicitly ANDed.
type Domain []any

const (
	combAnd = "&"
	combOr  = "|"
	combNot = "!"
)

// operators the backend accepts in a domain leaf.
var operators = map[string]bool{
	"=": true, "!=": true, "<>": true, "=?": true,
	">": true, ">=": true, "<": true, "<=": true,
	"like": true, "not like": true, "=like": true,
	"ilike": true, "not ilike": true, "=ilike": true,
	"in": true, "not in": true,
	"child_of": true, "parent_of": true,
}

// ParseDomain accepts the two wire forms callers send: a JSON array, or a
// string containing one. Nil and empty strings mean "match everything".
func ParseDomain(raw any) (Domain, error) {
	switch v := raw.(type) {
	case nil:
		return Domain{}, nil
	case Domain:
		return v, nil
	case []any:
		return Domain(v), nil
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return Domain{}, nil
		}
		var out []any
		if err := json.Unmarshal([]byte(s), &out); err != nil {
			return nil, oerr.Wrap(oerr.KindValidation, "domain is not a valid JSON array", err)
		}
		return Domain(out), nil
	default:
		return nil, oerr.Newf(oerr.KindValidation, "domain must be a JSON array, got %T", raw)
	}
}

// Validate checks structure (combinator arity, leaf shape, operator set) and,
// when strict, that every leaf's field resolves in the schema. Dotted paths
// are checked on their first segment only; the backend resolves the rest.
func (d Domain) Validate(schema map[string]odoo.FieldInfo, strict bool) error {
	i := 0
	for i < len(d) {
		next, err := d.validateExpr(i, schema, strict)
		if err != nil {
			return err
		}
		i = next
	}
	return nil
}

func (d Domain) validateExpr(i int, schema map[string]odoo.FieldInfo, strict bool) (int, error) {
	if i >= len(d) {
		return 0, oerr.New(oerr.KindValidation, "incomplete domain: combinator is missing an operand")
	}
	switch tok := d[i].(type) {
	case string:
		switch tok {
		case combAnd, combOr:
			j, err := d.validateExpr(i+1, schema, strict)
			if err != nil {
				return 0, err
			}
			return d.validateExpr(j, schema, strict)
		case combNot:
			return d.validateExpr(i+1, schema, strict)
		default:
			return 0, oerr.Newf(oerr.KindValidation, "unknown domain combinator %q", tok)
		}
	case []any:
		if err := validateLeaf(tok, schema, strict); err != nil {
			return 0, err
		}
		return i + 1, nil
	default:
		return 0, oerr.Newf(oerr.KindValidation, "domain element %d must be a [field, operator, value] leaf or a combinator", i)
	}
}

func validateLeaf(leaf []any, schema map[string]odoo.FieldInfo, strict bool) error {
	if len(leaf) != 3 {
		return oerr.Newf(oerr.KindValidation, "domain leaf must have exactly 3 elements [field, operator, value], got %d", len(leaf))
	}
	field, ok := leaf[0].(string)
	if !ok || field == "" {
		return oerr.New(oerr.KindValidation, "domain leaf field name must be a non-empty string")
	}
	op, ok := leaf[1].(string)
	if !ok {
		return oerr.Newf(oerr.KindValidation, "domain leaf operator must be a string, got %T", leaf[1])
	}
	if !operators[op] {
		return oerr.Newf(oerr.KindValidation, "unsupported domain operator %q", op)
	}
	if strict {
		base, _, _ := strings.Cut(field, ".")
		if _, ok := schema[base]; !ok {
			return oerr.Newf(oerr.KindValidation, "unknown field %q in domain", field)
		}
	}
	return nil
}
