package commands

import (
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/tonehq/tonectl/internal/config"
	"github.com/tonehq/tonectl/internal/storage"
)

var profilesYes bool

// profilesCmd represents the profiles command
var profilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "Manage session profiles",
	Long: `List, delete, and manage session profiles.

Each profile keeps the session cookies of one login, so several accounts or
organizations can be used side by side with --profile.`,
}

// profilesListCmd represents the profiles list command
var profilesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all profiles",
	RunE:  runProfilesList,
}

// profilesDeleteCmd represents the profiles delete command
var profilesDeleteCmd = &cobra.Command{
	Use:   "delete [profile]",
	Short: "Delete a profile",
	Long:  `Delete a profile's stored session. This action cannot be undone.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runProfilesDelete,
}

// profilesSetDefaultCmd represents the profiles set-default command
var profilesSetDefaultCmd = &cobra.Command{
	Use:   "set-default [profile]",
	Short: "Set default profile",
	Long:  `Set the default profile to use when no --profile flag is specified.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runProfilesSetDefault,
}

func init() {
	rootCmd.AddCommand(profilesCmd)
	profilesCmd.AddCommand(profilesListCmd)
	profilesCmd.AddCommand(profilesDeleteCmd)
	profilesCmd.AddCommand(profilesSetDefaultCmd)

	profilesDeleteCmd.Flags().BoolVarP(&profilesYes, "yes", "y", false, "delete without asking")
}

// openProfiles loads config and the session store without building a client
func openProfiles(cmd *cobra.Command) (*config.Config, *storage.FileStore, error) {
	cfg, configDir, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	store, err := openStore(cmd, cfg, configDir)
	if err != nil {
		return nil, nil, err
	}
	return cfg, store, nil
}

func runProfilesList(cmd *cobra.Command, args []string) error {
	cfg, store, err := openProfiles(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	names := store.ListSessions()
	out := cmd.OutOrStdout()
	if len(names) == 0 {
		fmt.Fprintln(out, "No profiles configured.")
		fmt.Fprintln(out, "\nTo create a profile, run:")
		fmt.Fprintln(out, "  tonectl login --profile <name>")
		return nil
	}

	metadata := store.Metadata()
	now := time.Now()

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PROFILE\tDEFAULT\tSESSION\tUPDATED")
	fmt.Fprintln(w, "-------\t-------\t-------\t-------")
	for _, name := range names {
		isDefault := ""
		if name == cfg.Profiles.Default {
			isDefault = "✓"
		}
		meta := metadata[name]
		session := "active"
		switch {
		case meta.ExpiresAt.IsZero():
			session = "none"
		case !now.Before(meta.ExpiresAt):
			session = "expired"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", name, isDefault, session, meta.UpdatedAt.Local().Format(time.RFC3339))
	}
	return w.Flush()
}

func runProfilesDelete(cmd *cobra.Command, args []string) error {
	name := args[0]

	cfg, store, err := openProfiles(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	if !store.SessionExists(name) {
		return fmt.Errorf("profile '%s' does not exist", name)
	}

	out := cmd.OutOrStdout()
	if !profilesYes {
		fmt.Fprintf(out, "Are you sure you want to delete profile '%s'? This action cannot be undone.\n", name)
		fmt.Fprint(out, "Type 'yes' to confirm: ")

		confirm, _ := readPassword(cmd.InOrStdin())
		if strings.ToLower(confirm) != "yes" {
			fmt.Fprintln(out, "Deletion cancelled.")
			return nil
		}
	}

	if err := store.DeleteSession(name); err != nil {
		if errors.Is(err, storage.ErrSessionNotFound) {
			return fmt.Errorf("profile '%s' does not exist", name)
		}
		return fmt.Errorf("failed to delete profile: %w", err)
	}

	if cfg.Profiles.Default == name {
		if err := saveDefaultProfile(""); err != nil {
			return fmt.Errorf("failed to update config: %w", err)
		}
		fmt.Fprintln(out, "⚠️  Default profile cleared")
	}

	fmt.Fprintf(out, "✓ Profile '%s' deleted successfully\n", name)
	return nil
}

func runProfilesSetDefault(cmd *cobra.Command, args []string) error {
	name := args[0]

	_, store, err := openProfiles(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	if !store.SessionExists(name) {
		return fmt.Errorf("profile '%s' does not exist", name)
	}

	if err := saveDefaultProfile(name); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "✓ Default profile set to '%s'\n", name)
	return nil
}

// saveDefaultProfile rewrites the config file without the flag and secret
// overrides applied by loadConfig
func saveDefaultProfile(name string) error {
	cfg, err := config.LoadOrCreate(configFile)
	if err != nil {
		return err
	}
	cfg.Profiles.Default = name
	return cfg.Save(configFile)
}
