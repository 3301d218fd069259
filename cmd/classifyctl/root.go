package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kirillkom/document-classifier/internal/bootstrap"
	"github.com/kirillkom/document-classifier/internal/config"
	"github.com/kirillkom/document-classifier/internal/observability/logging"
)

// version is set at build time via -ldflags.
var version = "dev"

const serviceName = "classifyctl"

var rootCmd = &cobra.Command{
	Use:   "classifyctl",
	Short: "Train, run and serve the document classifier from the command line",
	Long: "classifyctl trains the supervised model from labelled files, classifies\n" +
		"a directory in batch, and serves classification as an MCP tool over stdio.",
	SilenceUsage: true,
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
}

func init() {
	rootCmd.AddCommand(trainCmd)
	rootCmd.AddCommand(batchCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.Version = version
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newLogger writes to stderr: stdout carries reports and the MCP protocol.
func newLogger(cfg config.Config) *slog.Logger {
	logger := logging.NewJSONLoggerTo(os.Stderr, serviceName, cfg.LogLevel)
	slog.SetDefault(logger)
	return logger
}

func newPipeline(cfg config.Config, logger *slog.Logger) (*bootstrap.Pipeline, error) {
	p, err := bootstrap.NewPipeline(cfg, bootstrap.PipelineOptions{Logger: logger, Service: serviceName})
	if err != nil {
		return nil, fmt.Errorf("build classification pipeline: %w", err)
	}
	return p, nil
}
