// apex-spec: MCP server for the Apex Spec System workflow.
//
// It exposes the project workflow state (.spec_system/state.json), the
// prerequisite and analysis validators, and the command catalog as MCP
// tools over stdio.
//
// Usage:
//
//	apex-spec serve      # Start MCP server (stdio transport)
//	apex-spec state      # Print the project state
//	apex-spec commands   # List workflow commands
//	apex-spec history    # Show recent operations
//	apex-spec version
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/HendryAvila/apex-spec/internal/config"
	"github.com/HendryAvila/apex-spec/internal/logging"
	apexserver "github.com/HendryAvila/apex-spec/internal/server"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// rootOptions holds flags shared by every subcommand.
type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "apex-spec",
		Short: "MCP server for the Apex Spec System workflow",
		Long: `apex-spec serves the Apex Spec System workflow over the Model Context Protocol.

Agents use it to read and update .spec_system/state.json, run the
analysis and prerequisite validators, and list the available commands.

Configuration is read from ~/.config/apex-spec/config.yaml (or --config)
and APEX_* environment variables, e.g. APEX_PROJECT_DIR.`,
		Version:      apexserver.Version,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default ~/.config/apex-spec/config.yaml)")

	root.AddCommand(
		newServeCmd(opts),
		newVersionCmd(),
		newStateCmd(opts),
		newCommandsCmd(opts),
		newHistoryCmd(opts),
	)
	return root
}

// setup loads configuration and builds the stderr logger.
func setup(opts *rootOptions) (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, nil, err
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, nil, fmt.Errorf("creating logger: %w", err)
	}
	return cfg, logger, nil
}

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server on stdio",
		Long: `Start the MCP server using the stdio transport.

Stdout carries the protocol; all logs go to stderr.

Examples:
  # Serve the current directory's project
  apex-spec serve

  # Serve a specific project with debug logs
  APEX_PROJECT_DIR=/work/app APEX_LOG_LEVEL=debug apex-spec serve`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := setup(opts)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			return runServe(cmd.Context(), cfg, logger)
		},
	}
}

func runServe(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, cleanup, err := apexserver.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	defer cleanup()

	logger.Info("serving MCP over stdio", zap.String("version", apexserver.Version))
	stdio := server.NewStdioServer(s)
	stdio.SetErrorLogger(zap.NewStdLog(logger.Named("stdio")))
	if err := stdio.Listen(ctx, os.Stdin, os.Stdout); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s v%s\n", apexserver.Name, apexserver.Version)
		},
	}
}
