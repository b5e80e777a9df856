package commands

import (
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"github.com/tonehq/tonectl/internal/signup"
)

var orgsOutput string

// orgsCmd represents the orgs command
var orgsCmd = &cobra.Command{
	Use:   "orgs",
	Short: "Work with organizations",
	Long: `List the organizations of the signed-in user, switch the active one,
or check whether an organization name is already taken.`,
}

// orgsListCmd represents the orgs list command
var orgsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List your organizations",
	RunE:  runOrgsList,
}

// orgsUseCmd represents the orgs use command
var orgsUseCmd = &cobra.Command{
	Use:   "use [organization-id]",
	Short: "Make an organization the active tenant",
	Args:  cobra.ExactArgs(1),
	RunE:  runOrgsUse,
}

// orgsCheckCmd represents the orgs check command
var orgsCheckCmd = &cobra.Command{
	Use:   "check [name]",
	Short: "Check whether an organization name exists",
	Args:  cobra.ExactArgs(1),
	RunE:  runOrgsCheck,
}

func init() {
	rootCmd.AddCommand(orgsCmd)
	orgsCmd.AddCommand(orgsListCmd)
	orgsCmd.AddCommand(orgsUseCmd)
	orgsCmd.AddCommand(orgsCheckCmd)

	orgsListCmd.Flags().StringVarP(&orgsOutput, "output", "o", formatTable, "output format: table, json or yaml")
}

func runOrgsList(cmd *cobra.Command, args []string) error {
	e, err := newEnv(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	if err := e.requireLogin(); err != nil {
		return err
	}
	orgs, err := e.auth().Organizations()
	if err != nil {
		return err
	}

	tenant := e.jar.TenantID()
	return printOutput(cmd.OutOrStdout(), orgsOutput, orgs, func(w *tabwriter.Writer) {
		fmt.Fprintln(w, "ID\tNAME\tROLE\tACTIVE")
		for _, org := range orgs {
			active := ""
			if strconv.FormatInt(org.ID, 10) == tenant {
				active = "✓"
			}
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", org.ID, org.Name, org.Role, active)
		}
	})
}

func runOrgsUse(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid organization id %q", args[0])
	}

	e, err := newEnv(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	if err := e.requireLogin(); err != nil {
		return err
	}
	if err := e.auth().SwitchOrganization(id); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Active organization set to %d\n", id)
	return nil
}

func runOrgsCheck(cmd *cobra.Command, args []string) error {
	name := strings.TrimSpace(args[0])
	if utf8.RuneCountInString(name) < signup.MinOrgNameLength {
		return fmt.Errorf("organization name must be at least %d characters", signup.MinOrgNameLength)
	}

	e, err := newEnv(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	checker := signup.NewOrgChecker(e.client, signup.WithDebounce(0), signup.WithCheckerLogger(e.log))
	defer checker.Close()

	org, err := checker.Check(cmd.Context(), name)
	if err != nil {
		return err
	}
	if org == nil {
		fmt.Fprintf(cmd.OutOrStdout(), "✓ '%s' is available\n", name)
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "'%s' already exists (id %d). Ask an admin of that organization for an invite.\n", org.Name, org.ID)
	return nil
}
