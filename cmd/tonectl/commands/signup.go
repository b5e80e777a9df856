package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tonehq/tonectl/internal/signup"
)

var (
	signupEmail         string
	signupUsername      string
	signupPassword      string
	signupOrg           string
	signupFirebaseToken string
)

// signupCmd represents the signup command
var signupCmd = &cobra.Command{
	Use:   "signup",
	Short: "Create a Tone account",
	Long: `Create a Tone account, optionally with a new organization.

The organization name is checked against existing organizations first; an
existing name blocks the signup so you can request an invite instead.

Examples:
  # Email signup (the password is prompted when omitted)
  tonectl signup --email me@example.com --username me --org "Acme Support"

  # Finish a Google sign-in for a new user
  tonectl signup --firebase-token "$ID_TOKEN" --email me@example.com --username me`,
	RunE: runSignup,
}

func init() {
	rootCmd.AddCommand(signupCmd)

	signupCmd.Flags().StringVar(&signupEmail, "email", "", "account email (required)")
	signupCmd.Flags().StringVar(&signupUsername, "username", "", "username (required)")
	signupCmd.Flags().StringVar(&signupPassword, "password", "", "password (prompted when omitted)")
	signupCmd.Flags().StringVar(&signupOrg, "org", "", "organization to create")
	signupCmd.Flags().StringVar(&signupFirebaseToken, "firebase-token", "", "Firebase ID token from Google sign-in")
	_ = signupCmd.MarkFlagRequired("email")
}

func runSignup(cmd *cobra.Command, args []string) error {
	e, err := newEnv(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	password := signupPassword
	if password == "" && signupFirebaseToken == "" {
		fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
		if password, err = readPassword(cmd.InOrStdin()); err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
	}

	checker := signup.NewOrgChecker(e.client,
		signup.WithDebounce(e.cfg.Signup.OrgCheckDebounce),
		signup.WithCheckerLogger(e.log),
	)
	defer checker.Close()
	checker.Input(signupOrg)

	flow := signup.NewFlow(e.client, checker,
		signup.WithNotifier(e.notifier),
		signup.WithNavigator(e.navigator),
		signup.WithSessions(e.auth()),
		signup.WithAudit(e.audit),
		signup.WithLogger(e.log),
	)

	return flow.Submit(cmd.Context(), signup.Form{
		Email:         signupEmail,
		Username:      signupUsername,
		Password:      password,
		OrgName:       signupOrg,
		FirebaseToken: signupFirebaseToken,
	})
}
