package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func mapEnv(vars map[string]string) func(string) string {
	return func(key string) string { return vars[key] }
}

func TestResolve_Defaults(t *testing.T) {
	cfg, err := Resolve(Options{Env: mapEnv(map[string]string{
		"ODOO_API_KEY": "k",
	})})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if cfg.URL != "http://localhost:8069" {
		t.Errorf("URL = %q", cfg.URL)
	}
	if cfg.Transport != TransportStdio {
		t.Errorf("Transport = %q", cfg.Transport)
	}
	if cfg.DefaultLimit != 10 || cfg.MaxLimit != 100 || cfg.MaxSmartFields != 25 {
		t.Errorf("limits = %d/%d/%d", cfg.DefaultLimit, cfg.MaxLimit, cfg.MaxSmartFields)
	}
	if cfg.Yolo != ModeOff {
		t.Errorf("Yolo = %v, want off", cfg.Yolo)
	}
	if cfg.RPCTimeout != 30*time.Second {
		t.Errorf("RPCTimeout = %s", cfg.RPCTimeout)
	}
	if !cfg.HasAPIKey() {
		t.Error("HasAPIKey = false")
	}
}

func TestResolve_EnvOverrides(t *testing.T) {
	cfg, err := Resolve(Options{Env: mapEnv(map[string]string{
		"ODOO_URL":             "https://erp.example.com",
		"ODOO_DB":              "prod",
		"ODOO_USER":            "admin",
		"ODOO_PASSWORD":        "secret",
		"MCP_TRANSPORT":        "streamable-http",
		"MCP_PORT":             "9000",
		"DEFAULT_LIMIT":        "5",
		"MAX_LIMIT":            "50",
		"MAX_SMART_FIELDS":     "12",
		"ODOO_YOLO":            "read",
		"ODOO_TIMEOUT_SECONDS": "7",
	})})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if cfg.URL != "https://erp.example.com" || cfg.Database != "prod" {
		t.Errorf("URL/DB = %q/%q", cfg.URL, cfg.Database)
	}
	if cfg.Transport != TransportHTTP || cfg.Port != 9000 {
		t.Errorf("transport = %q port %d", cfg.Transport, cfg.Port)
	}
	if cfg.DefaultLimit != 5 || cfg.MaxLimit != 50 || cfg.MaxSmartFields != 12 {
		t.Errorf("limits = %d/%d/%d", cfg.DefaultLimit, cfg.MaxLimit, cfg.MaxSmartFields)
	}
	if cfg.Yolo != ModeRead {
		t.Errorf("Yolo = %v, want read", cfg.Yolo)
	}
	if cfg.RPCTimeout != 7*time.Second {
		t.Errorf("RPCTimeout = %s", cfg.RPCTimeout)
	}
	if cfg.HasAPIKey() {
		t.Error("HasAPIKey = true with password auth")
	}
}

func TestResolve_FlagsWinOverEnv(t *testing.T) {
	cfg, err := Resolve(Options{
		Env: mapEnv(map[string]string{
			"ODOO_API_KEY":  "k",
			"MCP_TRANSPORT": "stdio",
			"MCP_HOST":      "envhost",
			"MCP_PORT":      "8000",
		}),
		Transport: "streamable-http",
		Host:      "flaghost",
		Port:      9001,
		LogLevel:  "debug",
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if cfg.Transport != TransportHTTP || cfg.Host != "flaghost" || cfg.Port != 9001 {
		t.Errorf("got %q %q %d", cfg.Transport, cfg.Host, cfg.Port)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q", cfg.LogLevel)
	}
}

func TestResolve_FileOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "odoo-mcp.yaml")
	body := strings.Join([]string{
		"url: https://file.example.com",
		"api_key: file-key",
		"max_limit: 40",
		"yolo: read",
	}, "\n")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	// Env still beats the file where both set a value.
	cfg, err := Resolve(Options{
		File: path,
		Env:  mapEnv(map[string]string{"MAX_LIMIT": "60"}),
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if cfg.URL != "https://file.example.com" || cfg.APIKey != "file-key" {
		t.Errorf("file values not applied: %q %q", cfg.URL, cfg.APIKey)
	}
	if cfg.MaxLimit != 60 {
		t.Errorf("MaxLimit = %d, want env override 60", cfg.MaxLimit)
	}
	if cfg.Yolo != ModeRead {
		t.Errorf("Yolo = %v", cfg.Yolo)
	}
}

func TestResolve_MissingFile(t *testing.T) {
	_, err := Resolve(Options{
		File: filepath.Join(t.TempDir(), "nope.yaml"),
		Env:  mapEnv(map[string]string{"ODOO_API_KEY": "k"}),
	})
	if err == nil {
		t.Fatal("want error for missing config file")
	}
}

func TestResolve_Invalid(t *testing.T) {
	cases := []struct {
		name string
		vars map[string]string
		want string
	}{
		{"no credentials", map[string]string{}, "missing credentials"},
		{"user without password", map[string]string{"ODOO_USER": "admin"}, "missing credentials"},
		{"bad scheme", map[string]string{"ODOO_API_KEY": "k", "ODOO_URL": "ftp://x"}, "scheme"},
		{"bad transport", map[string]string{"ODOO_API_KEY": "k", "MCP_TRANSPORT": "sse"}, "MCP_TRANSPORT"},
		{"bad yolo", map[string]string{"ODOO_API_KEY": "k", "ODOO_YOLO": "yes"}, "ODOO_YOLO"},
		{"limit inversion", map[string]string{"ODOO_API_KEY": "k", "DEFAULT_LIMIT": "200"}, "exceeds MAX_LIMIT"},
		{"zero max limit", map[string]string{"ODOO_API_KEY": "k", "MAX_LIMIT": "0", "DEFAULT_LIMIT": "0"}, "DEFAULT_LIMIT"},
		{"bad port", map[string]string{"ODOO_API_KEY": "k", "MCP_TRANSPORT": "streamable-http", "MCP_PORT": "70000"}, "MCP_PORT"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Resolve(Options{Env: mapEnv(tc.vars)})
			if err == nil {
				t.Fatal("want error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestParseMode(t *testing.T) {
	cases := []struct {
		token string
		want  Mode
		ok    bool
	}{
		{"", ModeOff, true},
		{"off", ModeOff, true},
		{"read", ModeRead, true},
		{"true", ModeFull, true},
		{"full", ModeOff, false},
		{"1", ModeOff, false},
	}
	for _, tc := range cases {
		got, err := ParseMode(tc.token)
		if tc.ok && err != nil {
			t.Errorf("ParseMode(%q): %v", tc.token, err)
		}
		if !tc.ok && err == nil {
			t.Errorf("ParseMode(%q): want error", tc.token)
		}
		if tc.ok && got != tc.want {
			t.Errorf("ParseMode(%q) = %v, want %v", tc.token, got, tc.want)
		}
	}
}

func TestModeString(t *testing.T) {
	if ModeOff.String() != "off" || ModeRead.String() != "read" || ModeFull.String() != "full" {
		t.Errorf("Mode strings = %q %q %q", ModeOff, ModeRead, ModeFull)
	}
}
