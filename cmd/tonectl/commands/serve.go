package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tonehq/tonectl/internal/logging"
	"github.com/tonehq/tonectl/internal/mcp"
)

var (
	serveBatch       bool
	serveAutoApprove bool
	serveTimeout     time.Duration
	serveLogLevel    string
	serveRateLimit   int
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server",
	Long: `Start the Model Context Protocol server so AI assistants can list,
create, edit and delete agents with the selected profile's session.

The server communicates over stdio (stdin/stdout) using the MCP protocol.
Sign in first with 'tonectl login'.

Examples:
  # Start server with default profile
  tonectl serve

  # Start server with specific profile
  tonectl serve --profile production

  # Delete agents without asking for confirm=true (use with caution!)
  tonectl serve --auto-approve --timeout 30s`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	// stdout belongs to the protocol
	serveCmd.SetOut(os.Stderr)
	serveCmd.SetErr(os.Stderr)

	serveCmd.Flags().BoolVar(&serveBatch, "batch", false, "enable batch mode (no interactive prompts)")
	serveCmd.Flags().BoolVar(&serveAutoApprove, "auto-approve", false, "auto-approve destructive operations (dangerous)")
	serveCmd.Flags().DurationVar(&serveTimeout, "timeout", 0, "per-tool timeout (default from config)")
	serveCmd.Flags().StringVar(&serveLogLevel, "log-level", "", "logging level (debug, info, warn, error)")
	serveCmd.Flags().IntVar(&serveRateLimit, "rate-limit", -1, "tool calls per minute, 0 disables (default from config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	e, err := newEnv(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	log := e.log
	if serveLogLevel != "" {
		log = logging.New(os.Stderr, serveLogLevel)
	}
	if e.jar.AccessToken() == "" {
		log.Warn().Str("profile", e.profile).Msg("no live session, tools will fail until 'tonectl login' succeeds")
	}

	opts := &mcp.ServerOptions{
		BatchMode:   serveBatch || e.cfg.Security.BatchMode,
		AutoApprove: serveAutoApprove || e.cfg.Security.AutoApprove,
		Timeout:     e.cfg.MCP.Timeout,
		ProfileName: e.profile,
		RateLimit:   e.cfg.MCP.RateLimit.RequestsPerMinute,
		Version:     version,
		Logger:      log,
	}
	if serveTimeout > 0 {
		opts.Timeout = serveTimeout
	}
	if serveRateLimit >= 0 {
		opts.RateLimit = serveRateLimit
	}

	server := mcp.NewServer(e.client, e.audit, opts)
	defer server.Close()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case <-sigChan:
			log.Info().Msg("shutting down")
			cancel()
		case <-ctx.Done():
		}
	}()

	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}
