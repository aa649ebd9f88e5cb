package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/secretgate/secretgate/internal/adapter/inbound/stdio"
	auditadapter "github.com/secretgate/secretgate/internal/adapter/outbound/audit"
	"github.com/secretgate/secretgate/internal/adapter/outbound/cel"
	"github.com/secretgate/secretgate/internal/adapter/outbound/httpaction"
	"github.com/secretgate/secretgate/internal/adapter/outbound/memory"
	"github.com/secretgate/secretgate/internal/config"
	"github.com/secretgate/secretgate/internal/domain/policy"
	"github.com/secretgate/secretgate/internal/service"
)

var logLevelFlag string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the gateway, serving tool calls over stdio",
	Long: `Serve loads vault.config.json (or the file given by --config), wires the
policy evaluator, rate limiter, secret resolver, HTTP action executor,
and file-based audit store, and then reads newline-delimited JSON-RPC
tools/call and tools/list requests from stdin, writing responses to
stdout until stdin closes or the process receives SIGINT/SIGTERM.

Logging goes to stderr: stdout is reserved for the JSON-RPC stream.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&logLevelFlag, "log-level", "info", "log level: debug, info, warn, error")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(exitInvalidConfig)
		return nil
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLogLevel(logLevelFlag),
	}))

	ctx, stop := signal.NotifyContext(context.Background(), gracefulSignals()...)
	defer stop()

	resolver := memory.NewEnvSecretResolver(cfg.Mappings)
	policyStore := memory.NewPolicyStore(cfg.Policies)

	conditionEvaluator, err := cel.NewEvaluator()
	if err != nil {
		return fmt.Errorf("failed to build condition evaluator: %w", err)
	}
	evaluator := policy.NewEvaluator(policyStore, conditionEvaluator)

	limiter := memory.NewRateLimiter()
	limiter.StartCleanup(ctx)
	defer limiter.Stop()

	auditStore, err := auditadapter.NewFileStore(auditadapter.Config{
		Dir:        cfg.Settings.AuditDir,
		MaxSizeMB:  cfg.Settings.MaxFileSizeMB,
		MaxAgeDays: cfg.Settings.MaxFileAgeDays,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to open audit store: %w", err)
	}
	defer func() { _ = auditStore.Close() }()

	gw := service.NewGateway(resolver, policyStore, evaluator, limiter, httpaction.New(), auditStore, cfg.Settings.DefaultRateLimit, logger)
	dispatcher := service.NewDispatcher(gw)

	logger.Info("secretgate starting",
		"version", Version,
		"mappings", len(cfg.Mappings),
		"policies", len(cfg.Policies),
		"audit_dir", cfg.Settings.AuditDir,
	)

	transport := stdio.NewTransport(dispatcher, os.Stdin, os.Stdout, logger)
	if err := transport.Start(ctx); err != nil {
		return fmt.Errorf("transport stopped: %w", err)
	}

	logger.Info("secretgate stopped")
	return nil
}

// parseLogLevel converts a string log level to slog.Level, defaulting
// to info for unrecognized values.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
