package policy

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"go.uber.org/zap"

	"github.com/yugmatech/yt-mcp-server-odoo/internal/config"
	"github.com/yugmatech/yt-mcp-server-odoo/internal/odoo"
	"github.com/yugmatech/yt-mcp-server-odoo/internal/oerr"
)

// countingRegistry tracks how many times each registry call is made.
type countingRegistry struct {
	modelsCalls atomic.Int32
	fieldsCalls atomic.Int32

	mu     sync.Mutex
	models map[string]odoo.Permissions
	fields map[string]map[string]odoo.FieldInfo
	err    error
}

func (r *countingRegistry) EnabledModels(context.Context) (map[string]odoo.Permissions, error) {
	r.modelsCalls.Add(1)
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	return r.models, nil
}

func (r *countingRegistry) FieldsGet(_ context.Context, model string) (map[string]odoo.FieldInfo, error) {
	r.fieldsCalls.Add(1)
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	return r.fields[model], nil
}

func (r *countingRegistry) setModels(models map[string]odoo.Permissions) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.models = models
}

func stockRegistry() *countingRegistry {
	return &countingRegistry{
		models: map[string]odoo.Permissions{
			"res.partner": {Read: true, Write: true, Create: true},
			"sale.order":  {Read: true},
		},
		fields: map[string]map[string]odoo.FieldInfo{
			"res.partner": {
				"name":  {String: "Name", Type: "char"},
				"email": {String: "Email", Type: "char"},
			},
		},
	}
}

func TestPermitted_ModeOff(t *testing.T) {
	reg := stockRegistry()
	p := New(config.ModeOff, reg, zap.NewNop())
	ctx := context.Background()

	cases := []struct {
		model string
		op    Operation
		allow bool
	}{
		{"res.partner", OpRead, true},
		{"res.partner", OpWrite, true},
		{"res.partner", OpCreate, true},
		{"res.partner", OpDelete, false},
		{"sale.order", OpRead, true},
		{"sale.order", OpWrite, false},
		{"secret_ledger", OpRead, false},
		{"secret_ledger", OpDelete, false},
	}
	for _, tc := range cases {
		err := p.Permitted(ctx, tc.model, tc.op)
		if tc.allow && err != nil {
			t.Errorf("Permitted(%s, %s) = %v, want nil", tc.model, tc.op, err)
		}
		if !tc.allow {
			if err == nil {
				t.Errorf("Permitted(%s, %s) = nil, want denial", tc.model, tc.op)
			} else if oerr.KindOf(err) != oerr.KindPermission {
				t.Errorf("Permitted(%s, %s) kind = %v", tc.model, tc.op, oerr.KindOf(err))
			}
		}
	}

	if got := reg.modelsCalls.Load(); got != 1 {
		t.Errorf("registry fetched %d times, want 1 (cached)", got)
	}
}

func TestPermitted_ModeRead(t *testing.T) {
	reg := stockRegistry()
	p := New(config.ModeRead, reg, zap.NewNop())
	ctx := context.Background()

	// Reads bypass the allow-list entirely: no registry fetch at all.
	if err := p.Permitted(ctx, "secret_ledger", OpRead); err != nil {
		t.Errorf("read on unlisted model: %v", err)
	}
	if got := reg.modelsCalls.Load(); got != 0 {
		t.Errorf("registry fetched %d times for a read, want 0", got)
	}

	// Writes stay gated.
	if err := p.Permitted(ctx, "secret_ledger", OpWrite); oerr.KindOf(err) != oerr.KindPermission {
		t.Errorf("write on unlisted model = %v, want permission denial", err)
	}
	if err := p.Permitted(ctx, "res.partner", OpWrite); err != nil {
		t.Errorf("write on listed model: %v", err)
	}
}

func TestPermitted_ModeFull(t *testing.T) {
	reg := stockRegistry()
	p := New(config.ModeFull, reg, zap.NewNop())
	ctx := context.Background()

	for _, op := range []Operation{OpRead, OpWrite, OpCreate, OpDelete} {
		if err := p.Permitted(ctx, "secret_ledger", op); err != nil {
			t.Errorf("Permitted(secret_ledger, %s) = %v, want nil", op, err)
		}
	}
	if got := reg.modelsCalls.Load(); got != 0 {
		t.Errorf("registry fetched %d times in full mode, want 0", got)
	}
	if p.EnforcesFieldNames() {
		t.Error("full mode should not enforce field names")
	}
}

func TestPermitted_RegistryErrorPassesThrough(t *testing.T) {
	reg := &countingRegistry{err: oerr.New(oerr.KindTransient, "backend unreachable")}
	p := New(config.ModeOff, reg, zap.NewNop())

	err := p.Permitted(context.Background(), "res.partner", OpRead)
	if oerr.KindOf(err) != oerr.KindTransient {
		t.Fatalf("err = %v, want transient kind", err)
	}
}

func TestInvalidate_RefetchesGrants(t *testing.T) {
	reg := stockRegistry()
	p := New(config.ModeOff, reg, zap.NewNop())
	ctx := context.Background()

	if err := p.Permitted(ctx, "crm.lead", OpRead); oerr.KindOf(err) != oerr.KindPermission {
		t.Fatalf("want denial before registry change, got %v", err)
	}

	// Backend admin enables the model; nothing changes until invalidation.
	reg.setModels(map[string]odoo.Permissions{"crm.lead": {Read: true}})
	if err := p.Permitted(ctx, "crm.lead", OpRead); err == nil {
		t.Fatal("stale cache should still deny")
	}

	p.Invalidate()
	if err := p.Permitted(ctx, "crm.lead", OpRead); err != nil {
		t.Fatalf("after invalidation: %v", err)
	}
	if got := reg.modelsCalls.Load(); got != 2 {
		t.Errorf("registry fetched %d times, want 2", got)
	}
}

func TestFields_CachedPerModel(t *testing.T) {
	reg := stockRegistry()
	p := New(config.ModeOff, reg, zap.NewNop())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		fields, err := p.Fields(ctx, "res.partner")
		if err != nil {
			t.Fatalf("Fields: %v", err)
		}
		if len(fields) != 2 {
			t.Fatalf("fields = %v", fields)
		}
	}
	if got := reg.fieldsCalls.Load(); got != 1 {
		t.Errorf("descriptor fetched %d times, want 1", got)
	}

	p.Invalidate()
	if _, err := p.Fields(ctx, "res.partner"); err != nil {
		t.Fatalf("Fields after invalidate: %v", err)
	}
	if got := reg.fieldsCalls.Load(); got != 2 {
		t.Errorf("descriptor fetched %d times after invalidate, want 2", got)
	}
}

func TestFields_ConcurrentLoadDoesNotCorrupt(t *testing.T) {
	reg := stockRegistry()
	p := New(config.ModeOff, reg, zap.NewNop())
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fields, err := p.Fields(ctx, "res.partner")
			if err != nil || len(fields) != 2 {
				t.Errorf("Fields = %v, %v", fields, err)
			}
		}()
	}
	wg.Wait()

	// Later lookups must hit the cache.
	before := reg.fieldsCalls.Load()
	if _, err := p.Fields(ctx, "res.partner"); err != nil {
		t.Fatal(err)
	}
	if reg.fieldsCalls.Load() != before {
		t.Error("cache miss after concurrent warm-up")
	}
}

func TestGrants_ListsRegistryRegardlessOfMode(t *testing.T) {
	reg := stockRegistry()
	p := New(config.ModeFull, reg, zap.NewNop())

	grants, err := p.Grants(context.Background())
	if err != nil {
		t.Fatalf("Grants: %v", err)
	}
	if len(grants) != 2 {
		t.Errorf("grants = %v", grants)
	}
}
