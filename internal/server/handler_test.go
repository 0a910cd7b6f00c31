package server

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/jsonrpc"
	mcpschema "github.com/viant/mcp-protocol/schema"
	"go.uber.org/zap"

	"github.com/yugmatech/yt-mcp-server-odoo/internal/config"
	"github.com/yugmatech/yt-mcp-server-odoo/internal/odoo"
	"github.com/yugmatech/yt-mcp-server-odoo/internal/policy"
	"github.com/yugmatech/yt-mcp-server-odoo/internal/tools"
)

type stubBackend struct{}

func (stubBackend) Execute(ctx context.Context, model, method string, args []any, kwargs map[string]any) (any, error) {
	switch method {
	case "search_count":
		return float64(1), nil
	case "search_read", "read":
		return []any{map[string]any{"id": float64(1), "name": "Alice"}}, nil
	case "create":
		return float64(55), nil
	}
	return true, nil
}

func (stubBackend) Prompts(ctx context.Context, category, model string) ([]odoo.PromptTemplate, error) {
	return nil, nil
}

func (stubBackend) Session() odoo.SessionInfo {
	return odoo.SessionInfo{Database: "prod", UID: 2}
}

type stubRegistry struct{}

func (stubRegistry) EnabledModels(ctx context.Context) (map[string]odoo.Permissions, error) {
	return map[string]odoo.Permissions{"res.partner": {Read: true}}, nil
}

func (stubRegistry) FieldsGet(ctx context.Context, model string) (map[string]odoo.FieldInfo, error) {
	return map[string]odoo.FieldInfo{
		"id":   {String: "ID", Type: "integer"},
		"name": {String: "Name", Type: "char"},
	}, nil
}

func newTestHandler(t *testing.T) *Handler {
	t.Helper()
	cfg := config.Config{
		URL:            "http://localhost:8069",
		Database:       "prod",
		Transport:      config.TransportStdio,
		DefaultLimit:   10,
		MaxLimit:       100,
		MaxSmartFields: 25,
	}
	d, err := tools.New(cfg, stubBackend{}, policy.New(config.ModeOff, stubRegistry{}, zap.NewNop()), nil, zap.NewNop())
	require.NoError(t, err)
	return NewHandler(d, zap.NewNop())
}

func callReq(name string, args map[string]any) *jsonrpc.TypedRequest[*mcpschema.CallToolRequest] {
	req := &mcpschema.CallToolRequest{}
	req.Params.Name = name
	if args != nil {
		req.Params.Arguments = args
	}
	return &jsonrpc.TypedRequest[*mcpschema.CallToolRequest]{Request: req}
}

func TestInitialize_AnnouncesServer(t *testing.T) {
	h := newTestHandler(t)

	result := &mcpschema.InitializeResult{}
	h.Initialize(context.Background(), nil, result)

	assert.Equal(t, "yt-mcp-server-odoo", result.ServerInfo.Name)
	assert.Equal(t, "0.1.0", result.ServerInfo.Version)
	require.NotNil(t, result.Instructions)
	assert.Contains(t, *result.Instructions, "Odoo ERP")
}

func TestListTools(t *testing.T) {
	h := newTestHandler(t)

	result, rpcErr := h.ListTools(context.Background(), nil)
	require.Nil(t, rpcErr)
	require.Len(t, result.Tools, 11)

	var search *mcpschema.Tool
	for i := range result.Tools {
		if result.Tools[i].Name == "search_records" {
			search = &result.Tools[i]
			break
		}
	}
	require.NotNil(t, search)
	require.NotNil(t, search.Description)
	assert.Equal(t, "object", search.InputSchema.Type)
	assert.Contains(t, search.InputSchema.Properties, "model")
	assert.Contains(t, search.InputSchema.Properties, "domain")
	assert.Equal(t, []string{"model"}, search.InputSchema.Required)
}

func TestCallTool_Success(t *testing.T) {
	h := newTestHandler(t)

	result, rpcErr := h.CallTool(context.Background(), callReq("search_records", map[string]any{
		"model": "res.partner",
	}))
	require.Nil(t, rpcErr)
	require.NotNil(t, result)
	assert.Nil(t, result.IsError)
	require.Len(t, result.Content, 1)
	text, ok := result.Content[0].(mcpschema.TextContent)
	require.True(t, ok)
	assert.Equal(t, "text", text.Type)
	assert.True(t, strings.HasPrefix(text.Text, "Found 1 of 1 records in res.partner"), text.Text)
	require.NotNil(t, result.StructuredContent)
	assert.Equal(t, "res.partner", result.StructuredContent["model"])
}

func TestCallTool_FailureIsInBand(t *testing.T) {
	h := newTestHandler(t)

	// The allow-list grants read only, so a create must fail inside the
	// result rather than as a protocol error.
	result, rpcErr := h.CallTool(context.Background(), callReq("create_record", map[string]any{
		"model":  "res.partner",
		"values": map[string]any{"name": "X"},
	}))
	require.Nil(t, rpcErr)
	require.NotNil(t, result)
	require.NotNil(t, result.IsError)
	assert.True(t, *result.IsError)
	require.Len(t, result.Content, 1)
	text, ok := result.Content[0].(mcpschema.TextContent)
	require.True(t, ok)
	assert.Contains(t, text.Text, "permission_denied")

	errInfo, ok := result.StructuredContent["error"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "permission_denied", errInfo["kind"])
	assert.Contains(t, errInfo["message"], "not permitted")
}

func TestCallTool_UnknownToolIsProtocolError(t *testing.T) {
	h := newTestHandler(t)

	result, rpcErr := h.CallTool(context.Background(), callReq("no_such_tool", nil))
	assert.Nil(t, result)
	require.NotNil(t, rpcErr)
}

func TestCallTool_MissingRequest(t *testing.T) {
	h := newTestHandler(t)

	result, rpcErr := h.CallTool(context.Background(), nil)
	assert.Nil(t, result)
	require.NotNil(t, rpcErr)
}

func TestImplements(t *testing.T) {
	h := newTestHandler(t)

	assert.True(t, h.Implements(mcpschema.MethodToolsList))
	assert.True(t, h.Implements(mcpschema.MethodToolsCall))
	assert.False(t, h.Implements("resources/read"))
}

func TestUnsupportedMethodsReportMethodNotFound(t *testing.T) {
	h := newTestHandler(t)

	_, rpcErr := h.ListResources(context.Background(), nil)
	require.NotNil(t, rpcErr)
	assert.Contains(t, rpcErr.Message, "not implemented")

	_, rpcErr = h.ListPrompts(context.Background(), nil)
	require.NotNil(t, rpcErr)

	_, rpcErr = h.Complete(context.Background(), nil)
	require.NotNil(t, rpcErr)
}
