package commands

import (
	"errors"
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tonehq/tonectl/internal/api"
	"github.com/tonehq/tonectl/internal/settings"
	"github.com/tonehq/tonectl/internal/ui"
)

var (
	channelsOutput     string
	channelName        string
	channelAccountSID  string
	channelAuthToken   string
	channelsYes        bool
	channelsShowSecret bool
	phoneNumbersOutput string
	phoneNumbersChan   int64
	apiKeysOutput      string
	apiKeysShowSecret  bool
)

// channelsCmd represents the channels command
var channelsCmd = &cobra.Command{
	Use:     "channels",
	Aliases: []string{"integrations"},
	Short:   "Manage Twilio telephony channels",
	Long: `A channel holds the Twilio credentials an agent's phone numbers are
attached through. Agents pick up the organization's Twilio channel when saved.`,
}

// channelsListCmd represents the channels list command
var channelsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List channels",
	RunE:  runChannelsList,
}

// channelsCreateCmd represents the channels create command
var channelsCreateCmd = &cobra.Command{
	Use:     "create",
	Short:   "Create a Twilio channel",
	Example: `  tonectl channels create --name "Main Twilio" --account-sid AC123... --auth-token ...`,
	RunE:    runChannelsCreate,
}

// channelsUpdateCmd represents the channels update command
var channelsUpdateCmd = &cobra.Command{
	Use:   "update [channel-id]",
	Short: "Replace a channel's name and credentials",
	Args:  cobra.ExactArgs(1),
	RunE:  runChannelsUpdate,
}

// channelsDeleteCmd represents the channels delete command
var channelsDeleteCmd = &cobra.Command{
	Use:   "delete [channel-id]",
	Short: "Delete a channel",
	Args:  cobra.ExactArgs(1),
	RunE:  runChannelsDelete,
}

// phoneNumbersCmd lists the numbers a Twilio channel can attach
var phoneNumbersCmd = &cobra.Command{
	Use:   "phone-numbers",
	Short: "List the Twilio numbers available to assign to agents",
	RunE:  runPhoneNumbers,
}

// apiKeysCmd lists generated API keys
var apiKeysCmd = &cobra.Command{
	Use:   "api-keys",
	Short: "List the organization's API keys",
	RunE:  runAPIKeys,
}

func init() {
	rootCmd.AddCommand(channelsCmd)
	rootCmd.AddCommand(phoneNumbersCmd)
	rootCmd.AddCommand(apiKeysCmd)
	channelsCmd.AddCommand(channelsListCmd)
	channelsCmd.AddCommand(channelsCreateCmd)
	channelsCmd.AddCommand(channelsUpdateCmd)
	channelsCmd.AddCommand(channelsDeleteCmd)

	channelsListCmd.Flags().StringVarP(&channelsOutput, "output", "o", formatTable, "output format: table, json or yaml")
	channelsListCmd.Flags().BoolVar(&channelsShowSecret, "show-secrets", false, "print auth tokens unmasked")

	for _, c := range []*cobra.Command{channelsCreateCmd, channelsUpdateCmd} {
		c.Flags().StringVar(&channelName, "name", "", "channel name")
		c.Flags().StringVar(&channelAccountSID, "account-sid", "", "Twilio account SID")
		c.Flags().StringVar(&channelAuthToken, "auth-token", "", "Twilio auth token")
		_ = c.MarkFlagRequired("name")
		_ = c.MarkFlagRequired("account-sid")
		_ = c.MarkFlagRequired("auth-token")
	}
	channelsDeleteCmd.Flags().BoolVarP(&channelsYes, "yes", "y", false, "delete without asking")

	phoneNumbersCmd.Flags().Int64Var(&phoneNumbersChan, "channel", 0, "channel whose credentials to use")
	phoneNumbersCmd.Flags().StringVarP(&phoneNumbersOutput, "output", "o", formatTable, "output format: table, json or yaml")

	apiKeysCmd.Flags().StringVarP(&apiKeysOutput, "output", "o", formatTable, "output format: table, json or yaml")
	apiKeysCmd.Flags().BoolVar(&apiKeysShowSecret, "show-secrets", false, "print key values unmasked")
}

func parseChannelID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid channel id %q: must be a positive number", raw)
	}
	return id, nil
}

func runChannelsList(cmd *cobra.Command, args []string) error {
	e, err := newEnv(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	if err := e.requireLogin(); err != nil {
		return err
	}
	channels, err := e.settingsService(cmd, false).Channels(cmd.Context())
	if err != nil {
		return err
	}
	if !channelsShowSecret {
		for i := range channels {
			channels[i] = channels[i].Redacted()
		}
	}

	return printOutput(cmd.OutOrStdout(), channelsOutput, channels, func(w *tabwriter.Writer) {
		fmt.Fprintln(w, "ID\tNAME\tTYPE\tACCOUNT SID\tUPDATED")
		for _, c := range channels {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", c.ID, c.Name, c.Type, c.AccountSID(), c.UpdatedAt)
		}
	})
}

func runChannelsCreate(cmd *cobra.Command, args []string) error {
	return saveChannel(cmd, nil)
}

func runChannelsUpdate(cmd *cobra.Command, args []string) error {
	id, err := parseChannelID(args[0])
	if err != nil {
		return err
	}
	return saveChannel(cmd, &id)
}

func saveChannel(cmd *cobra.Command, id *int64) error {
	e, err := newEnv(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	if err := e.requireLogin(); err != nil {
		return err
	}
	rec, err := e.settingsService(cmd, false).SaveChannel(cmd.Context(), id, channelName, channelAccountSID, channelAuthToken)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d\n", rec.ID)
	return nil
}

func runChannelsDelete(cmd *cobra.Command, args []string) error {
	id, err := parseChannelID(args[0])
	if err != nil {
		return err
	}

	e, err := newEnv(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	if err := e.requireLogin(); err != nil {
		return err
	}
	if err := e.settingsService(cmd, channelsYes).DeleteChannel(cmd.Context(), id); err != nil {
		if errors.Is(err, settings.ErrDeclined) {
			ui.Info(e.notifier, "Deletion cancelled", "")
			return nil
		}
		return err
	}
	return nil
}

func runPhoneNumbers(cmd *cobra.Command, args []string) error {
	var channelID *int64
	if cmd.Flags().Changed("channel") {
		if phoneNumbersChan <= 0 {
			return fmt.Errorf("invalid channel id %d: must be a positive number", phoneNumbersChan)
		}
		channelID = &phoneNumbersChan
	}

	e, err := newEnv(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	if err := e.requireLogin(); err != nil {
		return err
	}
	numbers, err := e.settingsService(cmd, false).PhoneNumbers(cmd.Context(), channelID)
	if err != nil {
		return err
	}

	return printOutput(cmd.OutOrStdout(), phoneNumbersOutput, numbers, func(w *tabwriter.Writer) {
		fmt.Fprintln(w, "NUMBER\tNAME\tSID")
		for _, n := range numbers {
			fmt.Fprintf(w, "%s\t%s\t%s\n", n.PhoneNumber, n.FriendlyName, n.SID)
		}
	})
}

func runAPIKeys(cmd *cobra.Command, args []string) error {
	e, err := newEnv(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	if err := e.requireLogin(); err != nil {
		return err
	}
	keys, err := e.settingsService(cmd, false).APIKeys(cmd.Context())
	if err != nil {
		return err
	}
	if !apiKeysShowSecret {
		masked := make([]api.APIKey, len(keys))
		for i, k := range keys {
			masked[i] = k.Redacted()
		}
		keys = masked
	}

	return printOutput(cmd.OutOrStdout(), apiKeysOutput, keys, func(w *tabwriter.Writer) {
		fmt.Fprintln(w, "ID\tNAME\tKEY\tCREATED")
		for _, k := range keys {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", k.ID, k.Name, k.KeyValue, k.CreatedAt)
		}
	})
}
