package commands

import (
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/tonehq/tonectl/internal/auth"
)

var (
	loginEmail         string
	loginPassword      string
	loginFirebaseToken string
	loginDisplayName   string
	whoamiOutput       string
)

// loginCmd represents the login command
var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in and store the session in the profile",
	Long: `Sign in to the Tone backend and store the session cookies in the
selected profile.

Examples:
  # Email and password (the password is prompted when omitted)
  tonectl login --email owner@example.com

  # Google sign-in with a Firebase ID token
  tonectl login --firebase-token "$ID_TOKEN" --email owner@example.com

  # Keep a second account in its own profile
  tonectl login --profile work --email me@work.example`,
	RunE: runLogin,
}

// logoutCmd represents the logout command
var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove the profile's stored session",
	RunE:  runLogout,
}

// whoamiCmd represents the whoami command
var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in user",
	RunE:  runWhoami,
}

func init() {
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(whoamiCmd)

	loginCmd.Flags().StringVar(&loginEmail, "email", "", "account email")
	loginCmd.Flags().StringVar(&loginPassword, "password", "", "account password (prompted when omitted)")
	loginCmd.Flags().StringVar(&loginFirebaseToken, "firebase-token", "", "Firebase ID token from Google sign-in")
	loginCmd.Flags().StringVar(&loginDisplayName, "name", "", "display name passed on to signup for new Google users")

	whoamiCmd.Flags().StringVarP(&whoamiOutput, "output", "o", formatTable, "output format: table, json or yaml")
}

func runLogin(cmd *cobra.Command, args []string) error {
	e, err := newEnv(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	svc := e.auth()
	ctx := cmd.Context()

	if loginFirebaseToken != "" {
		_, err := svc.SignInWithFirebase(ctx, loginFirebaseToken, loginEmail, loginDisplayName)
		return err
	}

	email := strings.TrimSpace(loginEmail)
	if email == "" {
		fmt.Fprint(cmd.ErrOrStderr(), "Email: ")
		if email, err = readPassword(cmd.InOrStdin()); err != nil {
			return fmt.Errorf("failed to read email: %w", err)
		}
	}
	password := loginPassword
	if password == "" {
		fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
		if password, err = readPassword(cmd.InOrStdin()); err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
	}

	_, err = svc.Login(ctx, email, password)
	return err
}

func runLogout(cmd *cobra.Command, args []string) error {
	e, err := newEnv(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	if err := e.auth().Logout(); err != nil {
		return fmt.Errorf("failed to log out: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Logged out of profile '%s'\n", e.profile)
	return nil
}

func runWhoami(cmd *cobra.Command, args []string) error {
	e, err := newEnv(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	user, err := e.auth().CurrentUser()
	if err != nil {
		if errors.Is(err, auth.ErrNotLoggedIn) {
			return e.requireLogin()
		}
		return err
	}

	return printOutput(cmd.OutOrStdout(), whoamiOutput, user, func(w *tabwriter.Writer) {
		fmt.Fprintf(w, "PROFILE\t%s\n", e.profile)
		fmt.Fprintf(w, "USER\t%s\n", user.ID)
		fmt.Fprintf(w, "EMAIL\t%s\n", user.Email)
		if user.Username != "" {
			fmt.Fprintf(w, "USERNAME\t%s\n", user.Username)
		}
		if user.Organization != nil {
			fmt.Fprintf(w, "ORGANIZATION\t%s (%d)\n", user.Organization.Name, user.Organization.ID)
			fmt.Fprintf(w, "ROLE\t%s\n", user.Role)
		}
		if !user.ExpiresAt.IsZero() {
			fmt.Fprintf(w, "EXPIRES\t%s\n", user.ExpiresAt.Local().Format(time.RFC3339))
		}
	})
}
