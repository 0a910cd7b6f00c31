package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/yugmatech/yt-mcp-server-odoo/internal/config"
	"github.com/yugmatech/yt-mcp-server-odoo/internal/odoo"
	"github.com/yugmatech/yt-mcp-server-odoo/internal/policy"
	"github.com/yugmatech/yt-mcp-server-odoo/internal/server"
	"github.com/yugmatech/yt-mcp-server-odoo/internal/storage"
	"github.com/yugmatech/yt-mcp-server-odoo/internal/tools"
)

func main() {
	opts := config.Options{Env: os.Getenv}

	rootCmd := &cobra.Command{
		Use:   "odoo-mcp-server",
		Short: "MCP server exposing Odoo ERP data to AI assistants",
		Long: `odoo-mcp-server bridges assistant clients and an Odoo backend over the
Model Context Protocol. It speaks stdio for desktop clients and streamable
HTTP for remote ones, enforcing the Odoo-side model allow-list on every call.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(opts)
		},
	}

	flags := rootCmd.Flags()
	flags.StringVar(&opts.Transport, "transport", "", "Transport to serve: stdio or streamable-http (default stdio)")
	flags.StringVar(&opts.Host, "host", "", "Bind host for streamable-http (default localhost)")
	flags.IntVar(&opts.Port, "port", 0, "Bind port for streamable-http (default 8000)")
	flags.StringVar(&opts.File, "config", "", "Path to a YAML config file")
	flags.StringVar(&opts.LogLevel, "log-level", "", "Log level: debug, info, warn, or error (default info)")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(opts config.Options) error {
	cfg, err := config.Resolve(opts)
	if err != nil {
		return err
	}

	logger := mustBuildLogger(cfg.LogLevel)
	defer logger.Sync() //nolint:errcheck // best-effort flush

	logger.Info("starting odoo mcp server",
		zap.String("url", cfg.URL),
		zap.String("transport", cfg.Transport),
		zap.String("yolo_mode", cfg.Yolo.String()),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := odoo.New(cfg, logger)
	if err != nil {
		return err
	}
	defer client.Close()
	if err := client.Connect(ctx); err != nil {
		return err
	}

	// Audit sink: ClickHouse when a DSN is configured, logging otherwise.
	var events storage.EventWriter
	if cfg.ClickHouseDSN != "" {
		chWriter, err := storage.NewClickHouseWriter(cfg.ClickHouseDSN, logger)
		if err != nil {
			logger.Warn("clickhouse connection failed, falling back to log writer", zap.Error(err))
			events = storage.NewLogWriter(logger)
		} else {
			events = chWriter
			logger.Info("clickhouse writer connected")
		}
	} else {
		events = storage.NewLogWriter(logger)
	}

	pol := policy.New(cfg.Yolo, client, logger)
	dispatcher, err := tools.New(cfg, client, pol, events, logger)
	if err != nil {
		return err
	}
	defer dispatcher.Close()

	srv, err := server.New(cfg, dispatcher, logger)
	if err != nil {
		return err
	}
	return srv.Run(ctx)
}

func mustBuildLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	cfg := zap.Config{
		Level:         zap.NewAtomicLevelAt(zapLevel),
		Development:   false,
		Encoding:      "json",
		EncoderConfig: zap.NewProductionEncoderConfig(),
		// stdout carries protocol frames on the stdio transport; all logging
		// goes to stderr.
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := cfg.Build()
	if err != nil {
		panic(fmt.Sprintf("failed to build logger: %v", err))
	}
	return logger
}
