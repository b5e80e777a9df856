package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tonehq/tonectl/internal/api"
)

var testDetails bool

// testCmd represents the test command
var testCmd = &cobra.Command{
	Use:   "test",
	Short: "Test the profile's session against the backend",
	Long: `Test the connection to the Tone backend.

This command verifies that:
- The profile holds a live session
- The backend accepts it
- Agents of the active organization can be listed

Examples:
  tonectl test
  tonectl test --profile production --details`,
	RunE: runTest,
}

func init() {
	rootCmd.AddCommand(testCmd)
	testCmd.Flags().BoolVar(&testDetails, "details", false, "show detailed test results")
}

func runTest(cmd *cobra.Command, args []string) error {
	e, err := newEnv(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Testing profile: %s (%s)\n\n", e.profile, e.client.BaseURL())

	fmt.Fprint(out, "1. Loading session... ")
	user, err := e.auth().CurrentUser()
	if err != nil {
		fmt.Fprintln(out, "✗")
		return e.requireLogin()
	}
	fmt.Fprintf(out, "✓ (%s)\n", user.Email)

	fmt.Fprint(out, "2. Listing agents... ")
	agents, err := e.client.ListAgents(cmd.Context())
	if err != nil {
		fmt.Fprintln(out, "✗")
		return fmt.Errorf("failed to list agents: %w", err)
	}
	fmt.Fprintf(out, "✓ (found %d agents)\n", len(agents))

	if testDetails {
		fmt.Fprint(out, "3. Listing service providers... ")
		providers, err := e.client.ListServiceProviders(cmd.Context(), "")
		if err != nil {
			fmt.Fprintln(out, "✗")
			fmt.Fprintf(out, "   %s\n", api.Detail(err, err.Error()))
		} else {
			fmt.Fprintf(out, "✓ (found %d providers)\n", len(providers))
		}

		counts := map[string]int{}
		for _, a := range agents {
			counts[a.AgentType]++
		}
		if len(counts) > 0 {
			fmt.Fprintln(out, "\nAgent types:")
			for _, t := range []string{"inbound", "outbound"} {
				if n := counts[t]; n > 0 {
					fmt.Fprintf(out, "  - %s: %d\n", t, n)
				}
			}
		}
	}

	fmt.Fprintf(out, "\n✓ Connection successful!\n")
	return nil
}
