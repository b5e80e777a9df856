package commands

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tonehq/tonectl/internal/agentform"
	"github.com/tonehq/tonectl/internal/editor"
	"github.com/tonehq/tonectl/internal/ui"
)

var (
	agentsListOutput string
	agentsGetOutput  string
	agentsType       string
	agentsSet        []string
	agentsAddVocab   []string
	agentsAddFilter  []string
	agentsYes        bool
	phoneType        string
)

// agentsCmd represents the agents command
var agentsCmd = &cobra.Command{
	Use:     "agents",
	Aliases: []string{"agent"},
	Short:   "Create, edit and delete voice agents",
	Long: `Create, edit and delete the voice agents of the active organization.

Fields are set with --set key=value. Keys take the backend spelling
(system_prompt, llm_service_id) or the form spelling (voice_prompting,
ai_model). Lists are comma separated; "none" clears a service id.

Examples:
  tonectl agents list --type inbound
  tonectl agents get 12 -o yaml
  tonectl agents create --type outbound --set name="Renewals" --set voice_speed=60
  tonectl agents edit 12 --add-vocab ToneHQ --set patience_level=high
  tonectl agents delete 12`,
}

var agentsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List agents",
	RunE:  runAgentsList,
}

var agentsGetCmd = &cobra.Command{
	Use:   "get [agent-id]",
	Short: "Show an agent as the edit form sees it",
	Args:  cobra.ExactArgs(1),
	RunE:  runAgentsGet,
}

var agentsCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an agent from the defaults of its type",
	RunE:  runAgentsCreate,
}

var agentsEditCmd = &cobra.Command{
	Use:   "edit [agent-id]",
	Short: "Change fields of an agent",
	Args:  cobra.ExactArgs(1),
	RunE:  runAgentsEdit,
}

var agentsDeleteCmd = &cobra.Command{
	Use:   "delete [agent-id]",
	Short: "Delete an agent",
	Long:  `Delete an agent. This erases its personalized data, voice profiles and integrations.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runAgentsDelete,
}

var agentsPhoneCmd = &cobra.Command{
	Use:   "phone",
	Short: "Assign phone numbers to an agent",
}

var agentsPhoneAssignCmd = &cobra.Command{
	Use:   "assign [agent-id] [number...]",
	Short: "Attach numbers to the agent's twilio channel",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runPhoneAssign,
}

var agentsPhoneUnassignCmd = &cobra.Command{
	Use:   "unassign [agent-id] [number]",
	Short: "Detach one number from the agent",
	Args:  cobra.ExactArgs(2),
	RunE:  runPhoneUnassign,
}

func init() {
	rootCmd.AddCommand(agentsCmd)
	agentsCmd.AddCommand(agentsListCmd, agentsGetCmd, agentsCreateCmd, agentsEditCmd, agentsDeleteCmd, agentsPhoneCmd)
	agentsPhoneCmd.AddCommand(agentsPhoneAssignCmd, agentsPhoneUnassignCmd)

	agentsListCmd.Flags().StringVarP(&agentsListOutput, "output", "o", formatTable, "output format: table, json or yaml")
	agentsListCmd.Flags().StringVar(&agentsType, "type", "", "only list inbound or outbound agents")

	agentsGetCmd.Flags().StringVarP(&agentsGetOutput, "output", "o", formatYAML, "output format: json or yaml")

	agentsCreateCmd.Flags().StringVar(&agentsType, "type", "", "agent type: inbound or outbound (required)")
	_ = agentsCreateCmd.MarkFlagRequired("type")

	for _, c := range []*cobra.Command{agentsCreateCmd, agentsEditCmd} {
		c.Flags().StringArrayVar(&agentsSet, "set", nil, "field assignment key=value (repeatable)")
		c.Flags().StringSliceVar(&agentsAddVocab, "add-vocab", nil, "words to append to the custom vocabulary")
		c.Flags().StringSliceVar(&agentsAddFilter, "add-filter", nil, "words to append to the filter list")
	}

	agentsDeleteCmd.Flags().BoolVarP(&agentsYes, "yes", "y", false, "delete without asking")
	agentsPhoneUnassignCmd.Flags().BoolVarP(&agentsYes, "yes", "y", false, "unassign without asking")
	agentsPhoneAssignCmd.Flags().StringVar(&phoneType, "number-type", "", "number type recorded with each number")
}

func parseAgentID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid agent id %q", arg)
	}
	return id, nil
}

// openEditor returns a loaded editor page for one command run
func (e *env) openEditor(cmd *cobra.Command, agentType agentform.AgentType, agentID *int64) (*editor.Editor, error) {
	if err := e.requireLogin(); err != nil {
		return nil, err
	}
	ed := editor.New(e.client, agentType, agentID,
		editor.WithNotifier(e.notifier),
		editor.WithNavigator(e.navigator),
		editor.WithConfirmer(e.confirmer(cmd, agentsYes)),
		editor.WithAudit(e.audit),
		editor.WithLogger(e.log),
		editor.WithProfile(e.profile),
	)
	if err := ed.Open(cmd.Context()); err != nil {
		ed.Close()
		return nil, err
	}
	return ed, nil
}

// applyEdits runs the --set, --add-vocab and --add-filter flags through ed
func applyEdits(ed *editor.Editor) (agentform.FormState, error) {
	patch, err := agentform.ParseAssignments(agentsSet)
	if err != nil {
		return agentform.FormState{}, err
	}
	form := ed.Update(patch)
	if len(agentsAddVocab) > 0 {
		form = ed.Update(agentform.AddVocabulary(form, agentsAddVocab...))
	}
	if len(agentsAddFilter) > 0 {
		form = ed.Update(agentform.AddFilterWords(form, agentsAddFilter...))
	}
	return form, nil
}

func runAgentsList(cmd *cobra.Command, args []string) error {
	var filter agentform.AgentType
	if agentsType != "" {
		t, err := agentform.ParseAgentType(agentsType)
		if err != nil {
			return err
		}
		filter = t
	}

	e, err := newEnv(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	if err := e.requireLogin(); err != nil {
		return err
	}
	agents, err := e.client.ListAgents(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list agents: %w", err)
	}

	shown := agents[:0]
	for _, a := range agents {
		if filter == "" || strings.EqualFold(a.AgentType, string(filter)) {
			shown = append(shown, a)
		}
	}

	return printOutput(cmd.OutOrStdout(), agentsListOutput, shown, func(w *tabwriter.Writer) {
		fmt.Fprintln(w, "ID\tNAME\tTYPE\tSTATUS\tLANGUAGE")
		for i := range shown {
			a := &shown[i]
			language := ""
			if a.Language != nil {
				language = *a.Language
			}
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", a.ID, a.DisplayName(), a.AgentType, a.Status, language)
		}
	})
}

func runAgentsGet(cmd *cobra.Command, args []string) error {
	id, err := parseAgentID(args[0])
	if err != nil {
		return err
	}
	e, err := newEnv(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	ed, err := e.openEditor(cmd, "", &id)
	if err != nil {
		return err
	}
	defer ed.Close()

	return printOutput(cmd.OutOrStdout(), agentsGetOutput, ed.Form(), nil)
}

func runAgentsCreate(cmd *cobra.Command, args []string) error {
	agentType, err := agentform.ParseAgentType(agentsType)
	if err != nil {
		return err
	}
	e, err := newEnv(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	ed, err := e.openEditor(cmd, agentType, nil)
	if err != nil {
		return err
	}
	defer ed.Close()

	form, err := applyEdits(ed)
	if err != nil {
		return err
	}
	result, err := ed.Save(cmd.Context())
	if err != nil {
		return err
	}

	if result != nil && result.ID != 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\n", result.ID, form.Name)
	}
	return nil
}

func runAgentsEdit(cmd *cobra.Command, args []string) error {
	id, err := parseAgentID(args[0])
	if err != nil {
		return err
	}
	e, err := newEnv(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	ed, err := e.openEditor(cmd, "", &id)
	if err != nil {
		return err
	}
	defer ed.Close()

	if _, err := applyEdits(ed); err != nil {
		return err
	}
	_, err = ed.Save(cmd.Context())
	return err
}

func runAgentsDelete(cmd *cobra.Command, args []string) error {
	id, err := parseAgentID(args[0])
	if err != nil {
		return err
	}
	e, err := newEnv(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	ed, err := e.openEditor(cmd, "", &id)
	if err != nil {
		return err
	}
	defer ed.Close()

	if err := ed.Delete(cmd.Context()); err != nil {
		if errors.Is(err, editor.ErrDeclined) {
			ui.Info(e.notifier, "Deletion cancelled", "")
			return nil
		}
		return err
	}
	return nil
}

func runPhoneAssign(cmd *cobra.Command, args []string) error {
	id, err := parseAgentID(args[0])
	if err != nil {
		return err
	}
	numbers := make([]agentform.PhoneNumber, 0, len(args)-1)
	for _, n := range args[1:] {
		numbers = append(numbers, agentform.PhoneNumber{Type: phoneType, No: strings.TrimSpace(n)})
	}

	e, err := newEnv(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	ed, err := e.openEditor(cmd, "", &id)
	if err != nil {
		return err
	}
	defer ed.Close()

	err = ed.AssignPhoneNumbers(cmd.Context(), numbers)
	if errors.Is(err, editor.ErrNoChannel) {
		return fmt.Errorf("%w: create one with 'tonectl channels create', then save the agent again", err)
	}
	return err
}

func runPhoneUnassign(cmd *cobra.Command, args []string) error {
	id, err := parseAgentID(args[0])
	if err != nil {
		return err
	}
	e, err := newEnv(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	ed, err := e.openEditor(cmd, "", &id)
	if err != nil {
		return err
	}
	defer ed.Close()

	if err := ed.UnassignPhoneNumber(cmd.Context(), strings.TrimSpace(args[1])); err != nil {
		if errors.Is(err, editor.ErrDeclined) {
			ui.Info(e.notifier, "Unassign cancelled", "")
			return nil
		}
		return err
	}
	return nil
}
