// Package bulk sequences multi-item create and update operations against the
// backend. Items run independently: one item's failure is recorded in its
// outcome and the batch continues. The result always carries exactly one
// outcome per input item, in input order. Permission checks happen upstream,
// once per batch; this package never consults policy.
package bulk

import (
	"context"

	"go.uber.org/zap"

	"github.com/yugmatech/yt-mcp-server-odoo/internal/oerr"
)

// Op selects the per-item backend method.
type Op string

const (
	Create Op = "create"
	Update Op = "update"
)

// Backend is the slice of the data client the executor consumes.
type Backend interface {
	Execute(ctx context.Context, model, method string, args []any, kwargs map[string]any) (any, error)
}

// Item is one unit of work. ID is required for updates and ignored for
// creates.
type Item struct {
	ID     int
	Values map[string]any
}

// Outcome records what happened to one item. Err is nil on success; ID is
// the created record's id for creates and echoes the input id for updates.
type Outcome struct {
	Index int
	ID    int
	Err   error
}

// Result is the ordered aggregate of a batch.
type Result struct {
	Outcomes []Outcome
}

// SucceededIDs returns the ids of successful outcomes in order.
func (r Result) SucceededIDs() []int {
	ids := make([]int, 0, len(r.Outcomes))
	for _, o := range r.Outcomes {
		if o.Err == nil {
			ids = append(ids, o.ID)
		}
	}
	return ids
}

// Failed counts outcomes that carry an error.
func (r Result) Failed() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Err != nil {
			n++
		}
	}
	return n
}

// Executor is stateless between runs and safe for concurrent use.
type Executor struct {
	backend Backend
	log     *zap.Logger
}

func New(backend Backend, log *zap.Logger) *Executor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Executor{backend: backend, log: log}
}

// Run executes the batch sequentially. An empty batch yields an empty result.
// Cancellation stops issuing remote calls; items not yet attempted fail with
// the cancellation error so the one-outcome-per-item invariant holds.
func (e *Executor) Run(ctx context.Context, op Op, model string, items []Item) (Result, error) {
	if op != Create && op != Update {
		return Result{}, oerr.Newf(oerr.KindValidation, "unsupported bulk operation %q", op)
	}

	outcomes := make([]Outcome, len(items))
	for i, item := range items {
		outcomes[i] = Outcome{Index: i}

		if err := ctx.Err(); err != nil {
			outcomes[i].Err = oerr.Wrap(oerr.KindTransient, "batch canceled", err)
			continue
		}

		id, err := e.runOne(ctx, op, model, item, i)
		if err != nil {
			outcomes[i].Err = err
			e.log.Debug("bulk item failed",
				zap.String("model", model),
				zap.String("op", string(op)),
				zap.Int("index", i),
				zap.Error(err))
			continue
		}
		outcomes[i].ID = id
	}
	return Result{Outcomes: outcomes}, nil
}

func (e *Executor) runOne(ctx context.Context, op Op, model string, item Item, index int) (int, error) {
	if len(item.Values) == 0 {
		return 0, oerr.Newf(oerr.KindValidation, "item %d: values are required", index)
	}

	switch op {
	case Create:
		out, err := e.backend.Execute(ctx, model, "create", []any{item.Values}, nil)
		if err != nil {
			return 0, err
		}
		id, ok := recordID(out)
		if !ok {
			return 0, oerr.Newf(oerr.KindRemote, "item %d: backend returned no record id", index)
		}
		return id, nil
	default: // Update
		if item.ID <= 0 {
			return 0, oerr.Newf(oerr.KindValidation, "item %d: a positive record id is required", index)
		}
		if _, err := e.backend.Execute(ctx, model, "write", []any{[]int{item.ID}, item.Values}, nil); err != nil {
			return 0, err
		}
		return item.ID, nil
	}
}

// recordID pulls the new id out of a create result. The backend returns a
// bare number, decoded as float64 from JSON; stubbed clients may hand back a
// plain int.
func recordID(out any) (int, bool) {
	switch v := out.(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	case int64:
		return int(v), true
	}
	return 0, false
}
