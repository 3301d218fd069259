package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	mcpadapter "github.com/kirillkom/document-classifier/internal/adapters/mcp"
	"github.com/kirillkom/document-classifier/internal/config"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the classify_document tool over MCP stdio",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg := config.Load()
		logger := newLogger(cfg)
		p, err := newPipeline(cfg, logger)
		if err != nil {
			return err
		}
		server, err := mcpadapter.New(p.Classifier, version)
		if err != nil {
			return err
		}
		logger.Info("mcp_serving", "tool", mcpadapter.ToolClassifyDocument, "strategy", cfg.ContentStrategy)
		if err := server.Serve(cmd.Context(), os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("serve mcp: %w", err)
		}
		return nil
	},
}
