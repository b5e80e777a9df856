package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version    = "dev"
	configFile string
	profile    string
	apiURL     string
	verbose    bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "tonectl",
	Short: "Tone voice agent CLI and MCP server",
	Long: `Manage Tone voice agents from the terminal.

tonectl signs in to the Tone backend, creates and edits inbound and outbound
agents, and serves the same operations to AI assistants over the Model
Context Protocol (MCP).`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// stdout carries command output and, under serve, the MCP stream
	rootCmd.SetErr(os.Stderr)

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default is ~/.tone/tonectl/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&profile, "profile", "", "session profile to use (overrides config default)")
	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "", "backend URL (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "verbose output")
}

// SetVersion sets the version for the CLI
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// verboseLog prints a message only if verbose mode is enabled
func verboseLog(format string, args ...interface{}) {
	if verbose {
		fmt.Fprintf(os.Stderr, "[DEBUG] "+format+"\n", args...)
	}
}
