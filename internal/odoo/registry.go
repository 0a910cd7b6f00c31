package odoo

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/yugmatech/yt-mcp-server-odoo/internal/oerr"
)

// Permissions are the per-operation grants from the enabled-model registry.
type Permissions struct {
	Read   bool `json:"read"`
	Write  bool `json:"write"`
	Create bool `json:"create"`
	Delete bool `json:"delete"`
}

// PromptTemplate is a backend-managed prompt usable by assistant clients.
type PromptTemplate struct {
	ID           int    `json:"id"`
	Name         string `json:"name"`
	Category     string `json:"category"`
	Description  string `json:"description"`
	Model        string `json:"model"`
	Prompt       string `json:"prompt"`
	ExampleInput string `json:"example_input"`
}

// Health probes the registry endpoint to confirm the backend addon is
// installed and reachable.
func (c *Client) Health(ctx context.Context) error {
	return c.restJSON(ctx, http.MethodGet, "/mcp/health", nil, nil, nil)
}

type authInfo struct {
	Valid     bool   `json:"valid"`
	UserID    int    `json:"user_id"`
	UserName  string `json:"user_name"`
	UserLogin string `json:"user_login"`
}

func (c *Client) validateAPIKey(ctx context.Context) (authInfo, error) {
	var info authInfo
	if err := c.restJSON(ctx, http.MethodPost, "/mcp/auth/validate", nil, map[string]any{}, &info); err != nil {
		return authInfo{}, err
	}
	if !info.Valid || info.UserID <= 0 {
		return authInfo{}, oerr.New(oerr.KindAuth, "invalid API key")
	}
	return info, nil
}

// EnabledModels fetches the registry's allow-list: every model enabled for
// assistant access, keyed by technical name, with per-operation grants.
func (c *Client) EnabledModels(ctx context.Context) (map[string]Permissions, error) {
	var payload struct {
		Models map[string]Permissions `json:"models"`
	}
	if err := c.restJSON(ctx, http.MethodGet, "/mcp/models", nil, nil, &payload); err != nil {
		return nil, err
	}
	if payload.Models == nil {
		payload.Models = map[string]Permissions{}
	}
	return payload.Models, nil
}

// Prompts lists prompt templates, optionally filtered by category and model.
func (c *Client) Prompts(ctx context.Context, category, model string) ([]PromptTemplate, error) {
	query := url.Values{}
	if category != "" {
		query.Set("category", category)
	}
	if model != "" {
		query.Set("model", model)
	}
	var payload struct {
		Templates []PromptTemplate `json:"templates"`
	}
	if err := c.restJSON(ctx, http.MethodGet, "/mcp/prompts", query, nil, &payload); err != nil {
		return nil, err
	}
	return payload.Templates, nil
}

// Prompt fetches a single template by registry ID.
func (c *Client) Prompt(ctx context.Context, id int) (PromptTemplate, error) {
	var tpl PromptTemplate
	err := c.restJSON(ctx, http.MethodGet, "/mcp/prompts/"+strconv.Itoa(id), nil, nil, &tpl)
	return tpl, err
}
