package commands

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/tonehq/tonectl/internal/api"
	"github.com/tonehq/tonectl/internal/audit"
	"github.com/tonehq/tonectl/internal/auth"
	"github.com/tonehq/tonectl/internal/config"
	"github.com/tonehq/tonectl/internal/crypto"
	"github.com/tonehq/tonectl/internal/logging"
	"github.com/tonehq/tonectl/internal/settings"
	"github.com/tonehq/tonectl/internal/storage"
	"github.com/tonehq/tonectl/internal/ui"
	"github.com/tonehq/tonectl/pkg/types"
)

const (
	auditMaxSize = 100 * 1024 * 1024   // 100MB
	auditMaxAge  = 30 * 24 * time.Hour // 30 days
)

// env is everything a backend command runs with
type env struct {
	cfg       *config.Config
	configDir string
	profile   string

	store  *storage.FileStore
	jar    *storage.Jar
	client *api.Client
	audit  *audit.Logger
	log    *logging.Logger

	notifier  ui.Notifier
	navigator ui.Navigator
}

// loadConfig reads the config file, creating it on first run, and applies
// the Docker secret and flag overrides
func loadConfig() (*config.Config, string, error) {
	cfg, err := config.LoadOrCreate(configFile)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load config: %w", err)
	}
	if config.IsRunningInDocker() {
		cfg.ApplyDockerSecrets()
	}
	if apiURL != "" {
		cfg.API.BaseURL = apiURL
	}

	configDir := config.GetConfigDir()
	if configFile != "" {
		configDir = filepath.Dir(configFile)
	}
	return cfg, configDir, nil
}

// profileName resolves the --profile flag against the configured default
func profileName(cfg *config.Config) string {
	if profile != "" {
		return profile
	}
	if cfg.Profiles.Default != "" {
		return cfg.Profiles.Default
	}
	return "default"
}

// newEnv loads config, unlocks the session store and wires the client
func newEnv(cmd *cobra.Command) (*env, error) {
	cfg, configDir, err := loadConfig()
	if err != nil {
		return nil, err
	}

	level := cfg.Logging.Level
	if verbose {
		level = "debug"
	}
	log := logging.New(cmd.ErrOrStderr(), level)

	store, err := openStore(cmd, cfg, configDir)
	if err != nil {
		return nil, err
	}

	name := profileName(cfg)
	jar := storage.NewJar(store, name)
	verboseLog("profile %s, backend %s, sessions %s", name, cfg.API.BaseURL, store.Path())

	auditLog, err := audit.NewLogger(audit.Config{
		FilePath: cfg.Logging.File,
		MaxSize:  auditMaxSize,
		MaxAge:   auditMaxAge,
	})
	if err != nil {
		log.Warn().Err(err).Msg("audit logging disabled")
		auditLog = nil
	}

	return &env{
		cfg:       cfg,
		configDir: configDir,
		profile:   name,
		store:     store,
		jar:       jar,
		client: api.New(
			api.WithBaseURL(cfg.API.BaseURL),
			api.WithTimeout(cfg.API.Timeout),
			api.WithLogger(log),
			api.WithCredentials(jar),
		),
		audit:     auditLog,
		log:       log,
		notifier:  ui.NewConsoleNotifier(cmd.ErrOrStderr()),
		navigator: &routeHints{out: cmd.ErrOrStderr()},
	}, nil
}

// Close flushes the audit trail and wipes session values from memory
func (e *env) Close() {
	_ = e.audit.Close()
	_ = e.store.Close()
}

func (e *env) auth() *auth.Service {
	return auth.NewService(e.client, e.jar,
		auth.WithNotifier(e.notifier),
		auth.WithNavigator(e.navigator),
		auth.WithAudit(e.audit),
		auth.WithLogger(e.log),
	)
}

// settingsService builds the organization settings service with the session's role
func (e *env) settingsService(cmd *cobra.Command, assumeYes bool) *settings.Service {
	role := ""
	if u, err := e.auth().CurrentUser(); err == nil {
		role = u.Role
	}
	return settings.New(e.client,
		settings.WithNotifier(e.notifier),
		settings.WithConfirmer(e.confirmer(cmd, assumeYes)),
		settings.WithAudit(e.audit),
		settings.WithLogger(e.log),
		settings.WithProfile(e.profile),
		settings.WithRole(role),
	)
}

// confirmer prompts on the command's streams. assumeYes skips the prompt;
// batch mode without it answers no.
func (e *env) confirmer(cmd *cobra.Command, assumeYes bool) *ui.Confirmer {
	approve := e.cfg.Security.AutoApprove || assumeYes
	return ui.NewConfirmerIO(types.Confirmation{
		BatchMode:   e.cfg.Security.BatchMode,
		AutoApprove: approve,
		Timeout:     e.cfg.Security.ConfirmationTimeout,
		DefaultDeny: !approve,
	}, cmd.InOrStdin(), cmd.ErrOrStderr())
}

// requireLogin fails early when the profile holds no live session
func (e *env) requireLogin() error {
	if e.jar.AccessToken() == "" {
		return fmt.Errorf("%w: run 'tonectl login --profile %s'", auth.ErrNotLoggedIn, e.profile)
	}
	return nil
}

// openStore opens the session jar, unlocking it when a passphrase is set
func openStore(cmd *cobra.Command, cfg *config.Config, configDir string) (*storage.FileStore, error) {
	if cfg.Security.PassphraseHash == "" {
		return storage.NewFileStore(configDir)
	}

	var passphrase string
	if config.IsRunningInDocker() {
		if secret, err := config.LoadPassphraseFromSecret(); err == nil {
			passphrase = secret
		}
	}
	if passphrase == "" {
		fmt.Fprint(cmd.ErrOrStderr(), "Enter passphrase: ")
		var err error
		passphrase, err = readPassword(cmd.InOrStdin())
		if err != nil {
			return nil, fmt.Errorf("failed to read passphrase: %w", err)
		}
	}

	if !crypto.VerifyPassphrase(passphrase, cfg.Security.PassphraseHash) {
		return nil, fmt.Errorf("incorrect passphrase")
	}
	store, err := storage.NewSealedFileStore(configDir, passphrase)
	if err != nil {
		return nil, fmt.Errorf("failed to unlock session store: %w", err)
	}
	return store, nil
}

// readPassword reads one line from in. It reads a byte at a time so later
// prompts on the same stream still see their input.
func readPassword(in io.Reader) (string, error) {
	var line strings.Builder
	buf := make([]byte, 1)
	for {
		n, err := in.Read(buf)
		if n > 0 {
			if buf[0] == '\n' {
				break
			}
			line.WriteByte(buf[0])
		}
		if err != nil {
			if err == io.EOF && line.Len() > 0 {
				break
			}
			return "", err
		}
	}
	return strings.TrimSpace(line.String()), nil
}

// routeHints turns page redirects into terminal hints
type routeHints struct {
	out io.Writer
}

func (r *routeHints) Navigate(route string) {
	switch {
	case strings.HasPrefix(route, ui.RouteSignup):
		fmt.Fprintln(r.out, "No account exists for this Google user yet. Run 'tonectl signup --firebase-token <token>' to create one.")
	case strings.HasPrefix(route, ui.RouteCheckEmail):
		fmt.Fprintln(r.out, "Open the verification link we emailed you, then run 'tonectl login'.")
	case route == ui.RouteLogin:
		fmt.Fprintln(r.out, "Run 'tonectl login' to sign in again.")
	default:
		verboseLog("navigate %s", route)
	}
}
