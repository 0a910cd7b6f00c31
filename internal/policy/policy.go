// Package policy answers "is this model and operation permitted" for every
// tool call. It holds the enabled-model allow-list fetched from the backend
// registry, per-model field descriptors, and the permission-override mode.
// The mode is consulted nowhere else in the process.
//
// Both caches load lazily on first use and live for the process lifetime;
// they are dropped only through Invalidate. Concurrent loads of the same key
// may race, which is harmless: the registry is authoritative and the last
// writer wins.
package policy

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/yugmatech/yt-mcp-server-odoo/internal/config"
	"github.com/yugmatech/yt-mcp-server-odoo/internal/odoo"
	"github.com/yugmatech/yt-mcp-server-odoo/internal/oerr"
)

// Operation classifies what a tool call does to a model.
type Operation string

const (
	OpRead   Operation = "read"
	OpWrite  Operation = "write"
	OpCreate Operation = "create"
	OpDelete Operation = "delete"
)

// Registry is the slice of the backend client the policy consumes.
type Registry interface {
	EnabledModels(ctx context.Context) (map[string]odoo.Permissions, error)
	FieldsGet(ctx context.Context, model string) (map[string]odoo.FieldInfo, error)
}

// Policy is safe for concurrent use.
type Policy struct {
	mode config.Mode
	reg  Registry
	log  *zap.Logger

	grantsMu sync.RWMutex
	grants   map[string]odoo.Permissions // nil = not loaded yet

	fieldsMu sync.RWMutex
	fields   map[string]map[string]odoo.FieldInfo
}

func New(mode config.Mode, reg Registry, log *zap.Logger) *Policy {
	if log == nil {
		log = zap.NewNop()
	}
	return &Policy{
		mode:   mode,
		reg:    reg,
		log:    log,
		fields: map[string]map[string]odoo.FieldInfo{},
	}
}

// Permitted returns nil when the operation may proceed, a permission_denied
// error when the allow-list rejects it, and the registry's own error when the
// allow-list cannot be loaded.
func (p *Policy) Permitted(ctx context.Context, model string, op Operation) error {
	switch p.mode {
	case config.ModeFull:
		// Allow-list gate removed entirely. The backend's user-level access
		// rules still apply when the call lands.
		return nil
	case config.ModeRead:
		if op == OpRead {
			return nil
		}
	}

	grants, err := p.loadGrants(ctx)
	if err != nil {
		return err
	}
	perms, ok := grants[model]
	if !ok {
		return oerr.Newf(oerr.KindPermission, "model %s is not enabled for MCP access (operation %s)", model, op)
	}
	if !allows(perms, op) {
		return oerr.Newf(oerr.KindPermission, "operation %s is not permitted on %s", op, model)
	}
	return nil
}

// EnforcesFieldNames reports whether filter and selection field names must
// resolve against the model's descriptor. Only the full override mode turns
// this off.
func (p *Policy) EnforcesFieldNames() bool {
	return p.mode != config.ModeFull
}

// Grants returns the enabled-model allow-list as the backend registry
// reports it, regardless of mode. Listing describes the registry; the mode
// only changes enforcement.
func (p *Policy) Grants(ctx context.Context) (map[string]odoo.Permissions, error) {
	return p.loadGrants(ctx)
}

// Fields returns the cached field descriptors for a model, fetching them on
// first use.
func (p *Policy) Fields(ctx context.Context, model string) (map[string]odoo.FieldInfo, error) {
	p.fieldsMu.RLock()
	fi, ok := p.fields[model]
	p.fieldsMu.RUnlock()
	if ok {
		return fi, nil
	}

	got, err := p.reg.FieldsGet(ctx, model)
	if err != nil {
		return nil, err
	}
	p.log.Debug("loaded field descriptors", zap.String("model", model), zap.Int("fields", len(got)))

	p.fieldsMu.Lock()
	p.fields[model] = got
	p.fieldsMu.Unlock()
	return got, nil
}

// Invalidate drops both caches so the next call refetches from the backend.
// Nothing refreshes implicitly; this is the only path.
func (p *Policy) Invalidate() {
	p.grantsMu.Lock()
	p.grants = nil
	p.grantsMu.Unlock()

	p.fieldsMu.Lock()
	p.fields = map[string]map[string]odoo.FieldInfo{}
	p.fieldsMu.Unlock()

	p.log.Debug("policy caches invalidated")
}

func (p *Policy) loadGrants(ctx context.Context) (map[string]odoo.Permissions, error) {
	p.grantsMu.RLock()
	grants := p.grants
	p.grantsMu.RUnlock()
	if grants != nil {
		return grants, nil
	}

	got, err := p.reg.EnabledModels(ctx)
	if err != nil {
		return nil, err
	}
	p.log.Debug("loaded model allow-list", zap.Int("models", len(got)))

	p.grantsMu.Lock()
	p.grants = got
	p.grantsMu.Unlock()
	return got, nil
}

func allows(perms odoo.Permissions, op Operation) bool {
	switch op {
	case OpRead:
		return perms.Read
	case OpWrite:
		return perms.Write
	case OpCreate:
		return perms.Create
	case OpDelete:
		return perms.Delete
	}
	return false
}
