// Package tools implements the dispatcher behind every assistant-visible
// tool. Dispatch resolves the tool name, validates arguments against the
// tool's schema, consults the access policy before any remote call, invokes
// the translator, bulk executor, or data client, and shapes the outcome. A
// fire-and-forget audit event is written per call.
package tools

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/santhosh-tekuri/jsonschema/v6"
	"go.uber.org/zap"

	"github.com/yugmatech/yt-mcp-server-odoo/internal/bulk"
	"github.com/yugmatech/yt-mcp-server-odoo/internal/config"
	"github.com/yugmatech/yt-mcp-server-odoo/internal/odoo"
	"github.com/yugmatech/yt-mcp-server-odoo/internal/oerr"
	"github.com/yugmatech/yt-mcp-server-odoo/internal/policy"
	"github.com/yugmatech/yt-mcp-server-odoo/internal/query"
	"github.com/yugmatech/yt-mcp-server-odoo/internal/storage"
)

// Backend is the slice of the data client the dispatcher consumes.
type Backend interface {
	Execute(ctx context.Context, model, method string, args []any, kwargs map[string]any) (any, error)
	Prompts(ctx context.Context, category, model string) ([]odoo.PromptTemplate, error)
	Session() odoo.SessionInfo
}

// Result is a successful tool outcome: a human-readable text rendering plus
// the structured shape, including the effective limit and fields actually
// used so clamping stays observable.
type Result struct {
	Text       string
	Structured map[string]any

	// Audit metadata.
	Records        int
	EffectiveLimit int
}

// Definition describes one tool for protocol listing.
type Definition struct {
	Name        string
	Description string
	InputSchema map[string]any
	Operation   policy.Operation // empty for registry-level tools

	handler  func(d *Dispatcher, ctx context.Context, args map[string]any) (*Result, error)
	compiled *jsonschema.Schema
}

// Dispatcher is stateless per call and safe for concurrent use.
type Dispatcher struct {
	cfg        config.Config
	backend    Backend
	policy     *policy.Policy
	translator *query.Translator
	bulk       *bulk.Executor
	events     storage.EventWriter
	log        *zap.Logger

	defs  map[string]*Definition
	order []string
}

// New builds the dispatcher and compiles every tool's argument schema. A nil
// events writer falls back to logging.
func New(cfg config.Config, backend Backend, pol *policy.Policy, events storage.EventWriter, log *zap.Logger) (*Dispatcher, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if events == nil {
		events = storage.NewLogWriter(log)
	}
	d := &Dispatcher{
		cfg:        cfg,
		backend:    backend,
		policy:     pol,
		translator: query.NewTranslator(cfg),
		bulk:       bulk.New(backend, log),
		events:     events,
		log:        log,
		defs:       map[string]*Definition{},
	}

	compiler := jsonschema.NewCompiler()
	for _, def := range definitions() {
		def := def
		name := def.Name + ".json"
		if err := compiler.AddResource(name, asSchemaDoc(def.InputSchema)); err != nil {
			return nil, oerr.Wrap(oerr.KindValidation, "register schema for "+def.Name, err)
		}
		compiled, err := compiler.Compile(name)
		if err != nil {
			return nil, oerr.Wrap(oerr.KindValidation, "compile schema for "+def.Name, err)
		}
		def.compiled = compiled
		d.defs[def.Name] = &def
		d.order = append(d.order, def.Name)
	}
	return d, nil
}

// Definitions returns the tool table in stable listing order.
func (d *Dispatcher) Definitions() []Definition {
	out := make([]Definition, 0, len(d.order))
	for _, name := range d.order {
		out = append(out, *d.defs[name])
	}
	return out
}

// Dispatch runs one tool call end to end.
func (d *Dispatcher) Dispatch(ctx context.Context, name string, args map[string]any) (*Result, error) {
	start := time.Now()
	if args == nil {
		args = map[string]any{}
	}

	// 1. Resolve the tool.
	def, ok := d.defs[name]
	if !ok {
		err := oerr.Newf(oerr.KindUnknownTool, "unknown tool %q", name)
		d.writeEvent(name, args, nil, nil, err, start)
		return nil, err
	}

	// 2. Validate arguments against the tool schema.
	if err := def.compiled.Validate(normalizeArgs(args)); err != nil {
		werr := oerr.Wrap(oerr.KindValidation, "invalid arguments for "+name, err)
		d.writeEvent(name, args, def, nil, werr, start)
		return nil, werr
	}

	// 3. Run the handler; it performs the policy check before any remote call.
	res, err := def.handler(d, ctx, args)

	d.writeEvent(name, args, def, res, err, start)
	if err != nil {
		d.log.Debug("tool call failed",
			zap.String("tool", name),
			zap.String("kind", string(oerr.KindOf(err))),
			zap.Error(err))
		return nil, err
	}
	return res, nil
}

// writeEvent is fire-and-forget; the writer never blocks the call path.
func (d *Dispatcher) writeEvent(tool string, args map[string]any, def *Definition, res *Result, callErr error, start time.Time) {
	argsJSON, _ := json.Marshal(args)
	sess := d.backend.Session()

	event := &storage.ToolCallEvent{
		RequestID:     uuid.New().String(),
		Timestamp:     start,
		Tool:          tool,
		ArgumentsJSON: string(argsJSON),
		Status:        "ok",
		Database:      sess.Database,
		UserID:        int32(sess.UID),
		Transport:     d.cfg.Transport,
		LatencyMs:     float32(float64(time.Since(start)) / float64(time.Millisecond)),
	}
	if model, ok := args["model"].(string); ok {
		event.Model = model
	}
	if def != nil {
		event.Operation = string(def.Operation)
	}
	if res != nil {
		event.Records = int32(res.Records)
		event.EffectiveLimit = int32(res.EffectiveLimit)
	}
	if callErr != nil {
		event.Status = "error"
		event.ErrorKind = string(oerr.KindOf(callErr))
		event.ErrorMessage = oerr.MessageOf(callErr)
	}
	d.events.Write(event)
}

// Close drains the audit writer.
func (d *Dispatcher) Close() {
	d.events.Close()
}

// normalizeArgs re-decodes arguments through encoding/json so schema
// validation always sees canonical JSON types, whatever the transport
// delivered.
func normalizeArgs(args map[string]any) any {
	data, err := json.Marshal(args)
	if err != nil {
		return args
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return args
	}
	return out
}

func asSchemaDoc(schema map[string]any) any {
	data, err := json.Marshal(schema)
	if err != nil {
		return schema
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return schema
	}
	return out
}
