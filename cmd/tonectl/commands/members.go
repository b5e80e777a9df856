package commands

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tonehq/tonectl/internal/api"
)

var (
	orgSettingsOutput    string
	orgAllowAccess       bool
	orgAutoVerify        bool
	membersOutput        string
	inviteEmail          string
	inviteName           string
	inviteRole           string
	invitationsAllStatus bool
)

// orgsSettingsCmd represents the orgs settings command
var orgsSettingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show the active organization's access settings",
	RunE:  runOrgSettings,
}

// orgsSettingsSetCmd represents the orgs settings set command
var orgsSettingsSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Change the active organization's access settings",
	Long: `Change who may ask to join the organization. Turning access requests
off also turns same-domain auto-verification off.`,
	Example: `  tonectl orgs settings set --allow-access-requests=true --auto-verify-same-domain=true
  tonectl orgs settings set --allow-access-requests=false`,
	RunE: runOrgSettingsSet,
}

// orgsMembersCmd represents the orgs members command
var orgsMembersCmd = &cobra.Command{
	Use:   "members",
	Short: "Manage organization members and invitations",
}

// orgsMembersListCmd represents the orgs members list command
var orgsMembersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List active members",
	RunE:  runMembersList,
}

// orgsMembersInvitationsCmd represents the orgs members invitations command
var orgsMembersInvitationsCmd = &cobra.Command{
	Use:   "invitations",
	Short: "List pending invitations",
	RunE:  runMembersInvitations,
}

// orgsMembersInviteCmd represents the orgs members invite command
var orgsMembersInviteCmd = &cobra.Command{
	Use:     "invite",
	Short:   "Invite someone to the organization",
	Example: `  tonectl orgs members invite --email ada@example.com --name "Ada Lovelace" --role admin`,
	RunE:    runMembersInvite,
}

// orgsMembersSetRoleCmd represents the orgs members set-role command
var orgsMembersSetRoleCmd = &cobra.Command{
	Use:   "set-role [member-id] [role]",
	Short: "Change a member's role (owner, admin, member or viewer)",
	Args:  cobra.ExactArgs(2),
	RunE:  runMembersSetRole,
}

func init() {
	orgsCmd.AddCommand(orgsSettingsCmd)
	orgsSettingsCmd.AddCommand(orgsSettingsSetCmd)
	orgsCmd.AddCommand(orgsMembersCmd)
	orgsMembersCmd.AddCommand(orgsMembersListCmd)
	orgsMembersCmd.AddCommand(orgsMembersInvitationsCmd)
	orgsMembersCmd.AddCommand(orgsMembersInviteCmd)
	orgsMembersCmd.AddCommand(orgsMembersSetRoleCmd)

	orgsSettingsCmd.Flags().StringVarP(&orgSettingsOutput, "output", "o", formatTable, "output format: table, json or yaml")
	orgsSettingsSetCmd.Flags().BoolVar(&orgAllowAccess, "allow-access-requests", false, "let people ask to join the organization")
	orgsSettingsSetCmd.Flags().BoolVar(&orgAutoVerify, "auto-verify-same-domain", false, "admit requests from the organization's email domain automatically")

	orgsMembersListCmd.Flags().StringVarP(&membersOutput, "output", "o", formatTable, "output format: table, json or yaml")
	orgsMembersInvitationsCmd.Flags().StringVarP(&membersOutput, "output", "o", formatTable, "output format: table, json or yaml")
	orgsMembersInvitationsCmd.Flags().BoolVar(&invitationsAllStatus, "all", false, "include accepted, expired and cancelled invitations")

	orgsMembersInviteCmd.Flags().StringVar(&inviteEmail, "email", "", "email address to invite")
	orgsMembersInviteCmd.Flags().StringVar(&inviteName, "name", "", "name of the invitee")
	orgsMembersInviteCmd.Flags().StringVar(&inviteRole, "role", api.RoleMember, "role: owner, admin, member or viewer")
	_ = orgsMembersInviteCmd.MarkFlagRequired("email")
	_ = orgsMembersInviteCmd.MarkFlagRequired("name")
}

func runOrgSettings(cmd *cobra.Command, args []string) error {
	e, err := newEnv(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	if err := e.requireLogin(); err != nil {
		return err
	}
	current, err := e.settingsService(cmd, false).Settings(cmd.Context())
	if err != nil {
		return err
	}
	return printSettings(cmd, orgSettingsOutput, current)
}

func runOrgSettingsSet(cmd *cobra.Command, args []string) error {
	var update api.OrgSettingsUpdate
	if cmd.Flags().Changed("allow-access-requests") {
		update.AllowAccessRequests = &orgAllowAccess
	}
	if cmd.Flags().Changed("auto-verify-same-domain") {
		update.AutoVerifySameDomain = &orgAutoVerify
	}
	if update.AllowAccessRequests == nil && update.AutoVerifySameDomain == nil {
		return fmt.Errorf("nothing to change: pass --allow-access-requests or --auto-verify-same-domain")
	}

	e, err := newEnv(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	if err := e.requireLogin(); err != nil {
		return err
	}
	next, err := e.settingsService(cmd, false).UpdateSettings(cmd.Context(), update)
	if err != nil {
		return err
	}
	return printSettings(cmd, formatTable, next)
}

func printSettings(cmd *cobra.Command, format string, s *api.OrgSettings) error {
	return printOutput(cmd.OutOrStdout(), format, s, func(w *tabwriter.Writer) {
		fmt.Fprintf(w, "Allow access requests:\t%s\n", onOff(s.AllowAccessRequests))
		fmt.Fprintf(w, "Auto-verify same domain:\t%s\n", onOff(s.AutoVerifySameDomain))
	})
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func runMembersList(cmd *cobra.Command, args []string) error {
	e, err := newEnv(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	if err := e.requireLogin(); err != nil {
		return err
	}
	members, err := e.settingsService(cmd, false).Members(cmd.Context())
	if err != nil {
		return err
	}

	return printOutput(cmd.OutOrStdout(), membersOutput, members, func(w *tabwriter.Writer) {
		fmt.Fprintln(w, "ID\tNAME\tEMAIL\tROLE\tSTATUS\tJOINED")
		for _, m := range members {
			joined := ""
			if t := m.Joined(); !t.IsZero() {
				joined = t.Format("2006-01-02")
			}
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n", m.MemberID, m.DisplayName(), m.Email, m.Role, m.Status, joined)
		}
	})
}

func runMembersInvitations(cmd *cobra.Command, args []string) error {
	e, err := newEnv(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	if err := e.requireLogin(); err != nil {
		return err
	}
	all, err := e.settingsService(cmd, false).Invitations(cmd.Context())
	if err != nil {
		return err
	}

	invitations := make([]api.Invitation, 0, len(all))
	for _, inv := range all {
		if invitationsAllStatus || inv.Status == "pending" {
			invitations = append(invitations, inv)
		}
	}

	return printOutput(cmd.OutOrStdout(), membersOutput, invitations, func(w *tabwriter.Writer) {
		fmt.Fprintln(w, "ID\tNAME\tEMAIL\tROLE\tSTATUS")
		for _, inv := range invitations {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", inv.MemberID, inv.Name, inv.Email, inv.Role, inv.Status)
		}
	})
}

func runMembersInvite(cmd *cobra.Command, args []string) error {
	e, err := newEnv(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	if err := e.requireLogin(); err != nil {
		return err
	}
	return e.settingsService(cmd, false).Invite(cmd.Context(), inviteName, inviteEmail, inviteRole)
}

func runMembersSetRole(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id <= 0 {
		return fmt.Errorf("invalid member id %q: must be a positive number", args[0])
	}

	e, err := newEnv(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	if err := e.requireLogin(); err != nil {
		return err
	}
	return e.settingsService(cmd, false).ChangeRole(cmd.Context(), id, args[1])
}
