// Package odoo implements the remote data client. The data plane speaks
// JSON-RPC against the backend's /jsonrpc endpoint (service "object", method
// execute_kw); the registry plane uses the MCP addon's REST endpoints under
// /mcp for health, key validation, the enabled-model list, and prompt
// templates. The client owns session lifecycle and bounded retry on
// transient failures; callers see typed errors from the oerr package.
package odoo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/yugmatech/yt-mcp-server-odoo/internal/config"
	"github.com/yugmatech/yt-mcp-server-odoo/internal/oerr"
)

// defaultBackoff spaces retry attempts for transient failures. Three retries
// on top of the initial attempt.
var defaultBackoff = []time.Duration{500 * time.Millisecond, time.Second, 2 * time.Second}

// Client is safe for concurrent use once Connect has returned.
type Client struct {
	cfg     config.Config
	httpc   *http.Client
	log     *zap.Logger
	base    string
	backoff []time.Duration
	reqID   atomic.Int64

	mu      sync.RWMutex
	session session
}

// session holds the authenticated identity used on every execute_kw call.
type session struct {
	database string
	uid      int
	secret   string // API key or password, whichever authenticated
	user     string
}

// SessionInfo describes the authenticated session.
type SessionInfo struct {
	Database string
	UID      int
	User     string
}

// Option configures the client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpc = h }
}

// WithBackoff replaces the retry schedule. An empty slice disables retries.
func WithBackoff(backoff []time.Duration) Option {
	return func(c *Client) { c.backoff = backoff }
}

// New builds a client from resolved configuration. No network traffic happens
// until Connect.
func New(cfg config.Config, log *zap.Logger, opts ...Option) (*Client, error) {
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, oerr.Wrap(oerr.KindValidation, "invalid backend URL", err)
	}
	timeout := cfg.RPCTimeout
	if timeout <= 0 {
		timeout = config.DefaultRPCTimeout
	}
	cfg.RPCTimeout = timeout
	if log == nil {
		log = zap.NewNop()
	}
	c := &Client{
		cfg:     cfg,
		httpc:   &http.Client{},
		log:     log,
		base:    strings.TrimRight(u.String(), "/"),
		backoff: defaultBackoff,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Connect verifies the backend is reachable, resolves the target database,
// and authenticates. It must complete before Execute is used.
func (c *Client) Connect(ctx context.Context) error {
	if err := c.Health(ctx); err != nil {
		return err
	}

	db := c.cfg.Database
	if db == "" {
		var err error
		db, err = c.resolveDatabase(ctx)
		if err != nil {
			return err
		}
	}

	var sess session
	if c.cfg.HasAPIKey() {
		info, err := c.validateAPIKey(ctx)
		if err != nil {
			return err
		}
		sess = session{database: db, uid: info.UserID, secret: c.cfg.APIKey, user: info.UserName}
	} else {
		uid, err := c.authenticate(ctx, db)
		if err != nil {
			return err
		}
		sess = session{database: db, uid: uid, secret: c.cfg.Password, user: c.cfg.Username}
	}

	c.mu.Lock()
	c.session = sess
	c.mu.Unlock()

	c.log.Info("connected to backend",
		zap.String("url", c.cfg.URL),
		zap.String("database", sess.database),
		zap.Int("uid", sess.uid),
		zap.String("user", sess.user))
	return nil
}

// Session returns the authenticated identity, zero-valued before Connect.
func (c *Client) Session() SessionInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return SessionInfo{Database: c.session.database, UID: c.session.uid, User: c.session.user}
}

// Close releases idle connections. The session itself is stateless on the
// backend side and needs no teardown.
func (c *Client) Close() {
	c.httpc.CloseIdleConnections()
}

// Execute performs a generic model-method call via execute_kw and returns the
// decoded backend result. A nil kwargs is sent as an empty mapping. Canceling
// the context abandons the wait, not the remote call: an in-flight write may
// still commit on the backend, so a retry after cancellation can apply twice.
func (c *Client) Execute(ctx context.Context, model, method string, args []any, kwargs map[string]any) (any, error) {
	var raw json.RawMessage
	if err := c.objectCall(ctx, model, method, args, kwargs, &raw); err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, oerr.Wrap(oerr.KindRemote, "malformed backend result", err)
	}
	return out, nil
}

// FieldsGet fetches the field descriptors for a model.
func (c *Client) FieldsGet(ctx context.Context, model string) (map[string]FieldInfo, error) {
	kwargs := map[string]any{
		"attributes": []string{"string", "type", "relation", "required", "readonly"},
	}
	var fields map[string]FieldInfo
	if err := c.objectCall(ctx, model, "fields_get", []any{}, kwargs, &fields); err != nil {
		return nil, err
	}
	return fields, nil
}

// FieldInfo is the subset of a backend field descriptor the server needs.
type FieldInfo struct {
	String   string `json:"string"`
	Type     string `json:"type"`
	Relation string `json:"relation,omitempty"`
	Required bool   `json:"required,omitempty"`
	Readonly bool   `json:"readonly,omitempty"`
}

// Relational reports whether the field points at another model.
func (f FieldInfo) Relational() bool {
	switch f.Type {
	case "many2one", "one2many", "many2many":
		return true
	}
	return false
}

func (c *Client) objectCall(ctx context.Context, model, method string, args []any, kwargs map[string]any, out any) error {
	c.mu.RLock()
	sess := c.session
	c.mu.RUnlock()
	if sess.uid == 0 {
		return oerr.New(oerr.KindAuth, "not connected")
	}
	if args == nil {
		args = []any{}
	}
	if kwargs == nil {
		kwargs = map[string]any{}
	}
	full := []any{sess.database, sess.uid, sess.secret, model, method, args, kwargs}
	return c.call(ctx, "object", "execute_kw", full, out)
}

func (c *Client) resolveDatabase(ctx context.Context) (string, error) {
	var names []string
	if err := c.call(ctx, "db", "list", []any{}, &names); err != nil {
		return "", oerr.Wrap(oerr.KindAuth, "database not configured and listing failed; set ODOO_DB", err)
	}
	switch len(names) {
	case 1:
		c.log.Debug("auto-detected database", zap.String("database", names[0]))
		return names[0], nil
	case 0:
		return "", oerr.New(oerr.KindAuth, "backend reports no databases")
	default:
		return "", oerr.Newf(oerr.KindAuth, "backend has %d databases; set ODOO_DB to pick one", len(names))
	}
}

func (c *Client) authenticate(ctx context.Context, db string) (int, error) {
	args := []any{db, c.cfg.Username, c.cfg.Password, map[string]any{}}
	var raw json.RawMessage
	if err := c.call(ctx, "common", "authenticate", args, &raw); err != nil {
		return 0, err
	}
	var uid int
	// A failed login yields false instead of a numeric uid.
	if err := json.Unmarshal(raw, &uid); err != nil || uid <= 0 {
		return 0, oerr.New(oerr.KindAuth, "invalid username or password")
	}
	return uid, nil
}

// rpcEnvelope is the JSON-RPC 2.0 request frame the backend expects.
type rpcEnvelope struct {
	JSONRPC string    `json:"jsonrpc"`
	Method  string    `json:"method"`
	Params  rpcParams `json:"params"`
	ID      int64     `json:"id"`
}

type rpcParams struct {
	Service string `json:"service"`
	Method  string `json:"method"`
	Args    []any  `json:"args"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    struct {
		Name    string `json:"name"`
		Message string `json:"message"`
	} `json:"data"`
}

func (e *rpcError) kind() oerr.Kind {
	if strings.Contains(e.Data.Name, "AccessDenied") {
		return oerr.KindAuth
	}
	return oerr.KindRemote
}

func (e *rpcError) text() string {
	if e.Data.Message != "" {
		return e.Data.Message
	}
	return e.Message
}

// call issues one JSON-RPC request with the retry schedule applied.
func (c *Client) call(ctx context.Context, service, method string, args []any, out any) error {
	op := service + "." + method
	return c.withRetry(ctx, op, func(ctx context.Context) error {
		return c.callOnce(ctx, service, method, args, out)
	})
}

func (c *Client) callOnce(ctx context.Context, service, method string, args []any, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.RPCTimeout)
	defer cancel()

	env := rpcEnvelope{
		JSONRPC: "2.0",
		Method:  "call",
		Params:  rpcParams{Service: service, Method: method, Args: args},
		ID:      c.reqID.Add(1),
	}
	body, err := json.Marshal(env)
	if err != nil {
		return oerr.Wrap(oerr.KindValidation, "encode request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/jsonrpc", bytes.NewReader(body))
	if err != nil {
		return oerr.Wrap(oerr.KindValidation, "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return oerr.Wrap(oerr.KindTransient, "backend unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return oerr.Newf(oerr.KindTransient, "backend returned status %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return oerr.Newf(oerr.KindRemote, "backend returned status %d", resp.StatusCode)
	}

	var rpc rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpc); err != nil {
		return oerr.Wrap(oerr.KindRemote, "malformed backend response", err)
	}
	if rpc.Error != nil {
		return oerr.New(rpc.Error.kind(), rpc.Error.text())
	}
	if out != nil {
		if err := json.Unmarshal(rpc.Result, out); err != nil {
			return oerr.Wrap(oerr.KindRemote, "malformed backend result", err)
		}
	}
	return nil
}

func (c *Client) withRetry(ctx context.Context, op string, fn func(context.Context) error) error {
	for attempt := 0; ; attempt++ {
		err := fn(ctx)
		if err == nil || !oerr.IsRetryable(err) || attempt >= len(c.backoff) {
			return err
		}
		c.log.Warn("retrying backend call",
			zap.String("op", op),
			zap.Int("attempt", attempt+1),
			zap.Error(err))
		select {
		case <-ctx.Done():
			return oerr.Wrap(oerr.KindTransient, op+" canceled", ctx.Err())
		case <-time.After(c.backoff[attempt]):
		}
	}
}

// restJSON performs one registry-plane request with the retry schedule.
// Responses outside 2xx are mapped onto error kinds: 401/403 as auth, 5xx as
// transient, everything else as a remote fault carrying the body's error
// message when present.
func (c *Client) restJSON(ctx context.Context, method, path string, query url.Values, body, out any) error {
	return c.withRetry(ctx, method+" "+path, func(ctx context.Context) error {
		return c.restOnce(ctx, method, path, query, body, out)
	})
}

func (c *Client) restOnce(ctx context.Context, method, path string, query url.Values, body, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.RPCTimeout)
	defer cancel()

	target := c.base + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return oerr.Wrap(oerr.KindValidation, "encode request", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return oerr.Wrap(oerr.KindValidation, "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.cfg.HasAPIKey() {
		req.Header.Set("X-MCP-API-KEY", c.cfg.APIKey)
	}
	if db := c.databaseHint(); db != "" {
		req.Header.Set("X-Odoo-Database", db)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return oerr.Wrap(oerr.KindTransient, "backend unreachable", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return oerr.Newf(oerr.KindAuth, "%s: %s", path, restErrorText(resp))
	case resp.StatusCode >= 500:
		return oerr.Newf(oerr.KindTransient, "%s returned status %d", path, resp.StatusCode)
	default:
		return oerr.Newf(oerr.KindRemote, "%s: %s", path, restErrorText(resp))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return oerr.Wrap(oerr.KindRemote, "malformed backend response", err)
		}
	}
	return nil
}

func (c *Client) databaseHint() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.session.database != "" {
		return c.session.database
	}
	return c.cfg.Database
}

func restErrorText(resp *http.Response) string {
	var payload struct {
		Error string `json:"error"`
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err == nil && json.Unmarshal(data, &payload) == nil && payload.Error != "" {
		return payload.Error
	}
	return fmt.Sprintf("status %d", resp.StatusCode)
}
