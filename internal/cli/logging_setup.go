package cli

import (
	"context"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/specforge/specforge/internal/config"
	"github.com/specforge/specforge/internal/logging"
)

// logger is the package-level logger for CLI operations.
var logger zerolog.Logger //nolint:gochecknoglobals // Required for zerolog context integration

// configKey carries the resolved *config.Config on the command context so
// executors see the same configuration setupLogging resolved.
type configKey struct{}

// setupLogging resolves configuration, builds the run logger from the
// config file and CLI flags, and installs both on the command context.
func setupLogging(cmd *cobra.Command) logging.LogPathResult {
	ctx := cmd.Context()

	projectFlag, _ := cmd.Flags().GetString("project-dir")
	startDir, err := os.Getwd()
	if err != nil {
		startDir = "."
	}
	cfg := config.NewWithProjectDir(ctx, config.ResolveProjectDir(ctx, projectFlag, startDir))

	loggingCfg := cfg.Logging
	debug, _ := cmd.Flags().GetBool("debug")
	if debug {
		loggingCfg.Level = "debug"
		loggingCfg.Format = "console"
		loggingCfg.File = ""
	}
	if envFormat := os.Getenv("SPECFORGE_LOG_FORMAT"); envFormat != "" {
		loggingCfg.Format = envFormat
	}

	result := logging.NewLoggerWithPath(loggingCfg.ToLoggingConfig())
	logger = logging.ComponentLogger(result.Logger, "cli")

	if result.UsingFile {
		logging.PrintLogPathMessage(cmd.ErrOrStderr(), result.FilePath)
	} else if result.FallbackUsed {
		logging.PrintFallbackWarning(cmd.ErrOrStderr(), result.FallbackReason)
	}

	traceID := logging.GetOrGenerateTraceID(ctx)
	ctx = logging.ContextWithTraceID(ctx, traceID)
	ctx = logger.WithContext(ctx)
	ctx = context.WithValue(ctx, configKey{}, cfg)
	cmd.SetContext(ctx)

	logger.Info().Ctx(ctx).Str("command", cmd.Name()).Msg("command started")

	return result
}

// cleanupLogging closes the log file handle opened by setupLogging.
func cleanupLogging(logResult *logging.LogPathResult) error {
	if logResult == nil {
		return nil
	}
	return logResult.Close()
}

// configFromCommand returns the configuration installed by setupLogging,
// loading a fresh one when the command runs outside the root wiring.
func configFromCommand(cmd *cobra.Command) *config.Config {
	if cfg, ok := cmd.Context().Value(configKey{}).(*config.Config); ok {
		return cfg
	}
	return config.New()
}
