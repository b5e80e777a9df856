package commands

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/tonehq/tonectl/internal/config"
	"github.com/tonehq/tonectl/internal/crypto"
	"github.com/tonehq/tonectl/internal/storage"
)

var (
	initPassphrase   string
	initNoPassphrase bool
)

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the config file and protect stored sessions",
	Long: `Write the tonectl config file and optionally set a passphrase that seals
every stored session on disk.

Examples:
  # Defaults, prompting for a passphrase
  tonectl init

  # Point at a staging backend without a passphrase
  tonectl init --api-url https://staging.api.tonehq.ai --no-passphrase`,
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)

	initCmd.Flags().StringVar(&initPassphrase, "passphrase", "", "passphrase sealing the session store (prompted when omitted)")
	initCmd.Flags().BoolVar(&initNoPassphrase, "no-passphrase", false, "store sessions unsealed (NOT RECOMMENDED)")
}

func runInit(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadOrCreate(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if apiURL != "" {
		cfg.API.BaseURL = apiURL
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	configDir := config.GetConfigDir()
	if configFile != "" {
		configDir = filepath.Dir(configFile)
	}
	out := cmd.ErrOrStderr()

	if !initNoPassphrase && cfg.Security.PassphraseHash == "" {
		passphrase := initPassphrase
		if passphrase == "" && config.IsRunningInDocker() {
			if secret, err := config.LoadPassphraseFromSecret(); err == nil {
				passphrase = secret
			}
		}
		if passphrase == "" {
			fmt.Fprint(out, "Choose a passphrase: ")
			if passphrase, err = readPassword(cmd.InOrStdin()); err != nil {
				return fmt.Errorf("failed to read passphrase: %w", err)
			}
		}
		if err := crypto.ValidatePassphrase(passphrase); err != nil {
			return err
		}

		hash, err := crypto.HashPassphrase(passphrase)
		if err != nil {
			return fmt.Errorf("failed to hash passphrase: %w", err)
		}
		if err := sealSessions(configDir, passphrase); err != nil {
			return err
		}
		cfg.Security.PassphraseHash = hash
		verboseLog("sessions in %s sealed", configDir)
	}

	if err := cfg.Save(configFile); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	fmt.Fprintf(out, "✓ Configuration written (backend %s)\n", cfg.API.BaseURL)
	if cfg.Security.PassphraseHash == "" {
		fmt.Fprintln(out, "⚠️  Sessions are stored unsealed")
	}
	fmt.Fprintln(out, "\nNext, sign in with:")
	fmt.Fprintln(out, "  tonectl login --email <email>")
	return nil
}

// sealSessions rewrites every plaintext session under passphrase
func sealSessions(configDir, passphrase string) error {
	store, err := storage.NewSealedFileStore(configDir, passphrase)
	if err != nil {
		return fmt.Errorf("failed to open session store: %w", err)
	}
	defer store.Close()

	for _, name := range store.ListSessions() {
		s, err := store.GetSession(name)
		if err != nil {
			return err
		}
		if err := store.PutSession(s); err != nil {
			return fmt.Errorf("failed to seal profile '%s': %w", name, err)
		}
	}
	return nil
}
