package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/loomworks/mcpagent"
	"github.com/loomworks/mcpagent/internal/config"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "mcpagent",
	Short: "Ask questions against an MCP server's tools",
	Long: `mcpagent connects a text-generation model to a Model Context Protocol
(MCP) server. The model sees the server's tools, invokes them as needed,
and answers in plain text.

Configuration is read from the environment (a .env file in the working
directory is honored): MCPAGENT_PROVIDER, MCPAGENT_MODEL, the provider's
API key variable, and one of MCP_SERVER_URL or MCP_SERVER_COMMAND.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log protocol activity to stderr")
	rootCmd.AddCommand(toolsCmd)
	rootCmd.AddCommand(askCmd)
}

func newLogger() *slog.Logger {
	if !verbose {
		return nil
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// connect loads the environment configuration and establishes a session.
// All commands validate the full environment, including provider
// credentials, so misconfiguration fails before any server is spawned.
func connect(ctx context.Context) (*mcpagent.Session, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	log := newLogger()
	if log != nil {
		log.Debug("Loaded configuration",
			"provider", cfg.Provider,
			"model", cfg.Model,
			"api_key", config.RedactSecret(cfg.APIKey),
		)
	}

	opts := &mcpagent.Options{
		Provider: mcpagent.ProviderConfig{
			Name:   cfg.Provider,
			APIKey: cfg.APIKey,
			Model:  cfg.Model,
		},
		SystemPrompt:   systemPrompt,
		MaxTurns:       cfg.MaxTurns,
		RequestTimeout: cfg.Timeout,
		Logger:         log,
	}

	if cfg.ServerURL != "" {
		opts.Server = mcpagent.HTTPServerConfig{
			URL:       cfg.ServerURL,
			Token:     cfg.ServerToken,
			WaitReady: true,
		}
	} else {
		opts.Server = mcpagent.StdioServerConfig{
			Command: cfg.ServerCommand,
			Args:    cfg.ServerArgs,
		}
	}

	connectCtx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	return mcpagent.Connect(connectCtx, opts)
}
