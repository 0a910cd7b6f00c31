// Package server exposes the tool dispatcher over the Model Context
// Protocol. tools/list advertises the tool table and tools/call routes into
// the dispatcher; resource, prompt, and completion methods report method not
// found since prompt templates are served through the list_prompts tool.
package server

import (
	"context"

	"github.com/viant/jsonrpc"
	mcpschema "github.com/viant/mcp-protocol/schema"
	"go.uber.org/zap"

	"github.com/yugmatech/yt-mcp-server-odoo/internal/oerr"
	"github.com/yugmatech/yt-mcp-server-odoo/internal/tools"
)

const (
	serverName    = "yt-mcp-server-odoo"
	serverVersion = "0.1.0"

	serverInstructions = "MCP server for accessing and managing Odoo ERP data through the Model Context Protocol"
)

// Handler adapts the tool dispatcher to the MCP server operations.
type Handler struct {
	dispatcher *tools.Dispatcher
	log        *zap.Logger
}

func NewHandler(dispatcher *tools.Dispatcher, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{dispatcher: dispatcher, log: log}
}

func (h *Handler) Initialize(_ context.Context, _ *mcpschema.InitializeRequestParams, result *mcpschema.InitializeResult) {
	instructions := serverInstructions
	result.ServerInfo = mcpschema.Implementation{Name: serverName, Version: serverVersion}
	result.Instructions = &instructions
}

func (h *Handler) ListTools(_ context.Context, _ *jsonrpc.TypedRequest[*mcpschema.ListToolsRequest]) (*mcpschema.ListToolsResult, *jsonrpc.Error) {
	defs := h.dispatcher.Definitions()
	out := make([]mcpschema.Tool, 0, len(defs))
	for i := range defs {
		out = append(out, toolFromDefinition(&defs[i]))
	}
	return &mcpschema.ListToolsResult{Tools: out}, nil
}

func (h *Handler) CallTool(ctx context.Context, req *jsonrpc.TypedRequest[*mcpschema.CallToolRequest]) (*mcpschema.CallToolResult, *jsonrpc.Error) {
	if req == nil || req.Request == nil {
		return nil, jsonrpc.NewInvalidRequest("missing request", nil)
	}
	name := req.Request.Params.Name
	args := make(map[string]any, len(req.Request.Params.Arguments))
	for k, v := range req.Request.Params.Arguments {
		args[k] = v
	}

	res, err := h.dispatcher.Dispatch(ctx, name, args)
	if err != nil {
		if oerr.KindOf(err) == oerr.KindUnknownTool {
			return nil, mcpschema.NewUnknownTool(name)
		}
		return toolError(err), nil
	}

	out := &mcpschema.CallToolResult{
		Content: []mcpschema.CallToolResultContentElem{mcpschema.TextContent{Type: "text", Text: res.Text}},
	}
	if res.Structured != nil {
		out.StructuredContent = res.Structured
	}
	return out, nil
}

func (h *Handler) ListResources(_ context.Context, _ *jsonrpc.TypedRequest[*mcpschema.ListResourcesRequest]) (*mcpschema.ListResourcesResult, *jsonrpc.Error) {
	return nil, jsonrpc.NewMethodNotFound("resources/list not implemented", nil)
}

func (h *Handler) ListResourceTemplates(_ context.Context, _ *jsonrpc.TypedRequest[*mcpschema.ListResourceTemplatesRequest]) (*mcpschema.ListResourceTemplatesResult, *jsonrpc.Error) {
	return nil, jsonrpc.NewMethodNotFound("resources/templates/list not implemented", nil)
}

func (h *Handler) ReadResource(_ context.Context, _ *jsonrpc.TypedRequest[*mcpschema.ReadResourceRequest]) (*mcpschema.ReadResourceResult, *jsonrpc.Error) {
	return nil, jsonrpc.NewMethodNotFound("resources/read not implemented", nil)
}

func (h *Handler) Subscribe(_ context.Context, _ *jsonrpc.TypedRequest[*mcpschema.SubscribeRequest]) (*mcpschema.SubscribeResult, *jsonrpc.Error) {
	return nil, jsonrpc.NewMethodNotFound("subscribe not implemented", nil)
}

func (h *Handler) Unsubscribe(_ context.Context, _ *jsonrpc.TypedRequest[*mcpschema.UnsubscribeRequest]) (*mcpschema.UnsubscribeResult, *jsonrpc.Error) {
	return nil, jsonrpc.NewMethodNotFound("unsubscribe not implemented", nil)
}

func (h *Handler) ListPrompts(_ context.Context, _ *jsonrpc.TypedRequest[*mcpschema.ListPromptsRequest]) (*mcpschema.ListPromptsResult, *jsonrpc.Error) {
	return nil, jsonrpc.NewMethodNotFound("prompts/list not implemented", nil)
}

func (h *Handler) GetPrompt(_ context.Context, _ *jsonrpc.TypedRequest[*mcpschema.GetPromptRequest]) (*mcpschema.GetPromptResult, *jsonrpc.Error) {
	return nil, jsonrpc.NewMethodNotFound("prompts/get not implemented", nil)
}

func (h *Handler) Complete(_ context.Context, _ *jsonrpc.TypedRequest[*mcpschema.CompleteRequest]) (*mcpschema.CompleteResult, *jsonrpc.Error) {
	return nil, jsonrpc.NewMethodNotFound("complete not implemented", nil)
}

func (h *Handler) OnNotification(_ context.Context, _ *jsonrpc.Notification) {}

func (h *Handler) Implements(method string) bool {
	switch method {
	case mcpschema.MethodToolsList, mcpschema.MethodToolsCall:
		return true
	default:
		return false
	}
}

// toolError renders a failed call as an in-band tool result so assistant
// clients can read the kind and message instead of a bare protocol fault.
func toolError(err error) *mcpschema.CallToolResult {
	isError := true
	return &mcpschema.CallToolResult{
		IsError: &isError,
		Content: []mcpschema.CallToolResultContentElem{mcpschema.TextContent{Type: "text", Text: err.Error()}},
		StructuredContent: map[string]any{
			"error": map[string]any{
				"kind":    string(oerr.KindOf(err)),
				"message": oerr.MessageOf(err),
			},
		},
	}
}

func toolFromDefinition(def *tools.Definition) mcpschema.Tool {
	desc := def.Description
	props := make(map[string]map[string]any)
	if raw, ok := def.InputSchema["properties"].(map[string]any); ok {
		for name, p := range raw {
			if pm, ok := p.(map[string]any); ok {
				props[name] = pm
			}
		}
	}
	var required []string
	if r, ok := def.InputSchema["required"].([]string); ok {
		required = r
	}
	return mcpschema.Tool{
		Name:        def.Name,
		Description: &desc,
		InputSchema: mcpschema.ToolInputSchema{
			Type:       "object",
			Properties: mcpschema.ToolInputSchemaProperties(props),
			Required:   required,
		},
	}
}
