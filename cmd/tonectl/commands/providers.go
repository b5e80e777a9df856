package commands

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tonehq/tonectl/internal/api"
)

var (
	providersType   string
	providersOutput string
)

// providersCmd lists the LLM, TTS and STT services an agent can point at
var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "List service providers usable as llm_service_id, tts_service_id or stt_service_id",
	RunE:  runProviders,
}

func init() {
	rootCmd.AddCommand(providersCmd)
	providersCmd.Flags().StringVar(&providersType, "type", "", "only list llm, tts or stt providers")
	providersCmd.Flags().StringVarP(&providersOutput, "output", "o", formatTable, "output format: table, json or yaml")
}

func runProviders(cmd *cobra.Command, args []string) error {
	kind := strings.ToLower(strings.TrimSpace(providersType))
	switch kind {
	case "", api.ProviderLLM, api.ProviderTTS, api.ProviderSTT:
	default:
		return fmt.Errorf("invalid provider type %q: must be llm, tts or stt", providersType)
	}

	e, err := newEnv(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	if err := e.requireLogin(); err != nil {
		return err
	}
	providers, err := e.client.ListServiceProviders(cmd.Context(), kind)
	if err != nil {
		return fmt.Errorf("failed to list providers: %w", err)
	}

	return printOutput(cmd.OutOrStdout(), providersOutput, providers, func(w *tabwriter.Writer) {
		fmt.Fprintln(w, "ID\tTYPE\tNAME\tMODELS")
		for _, p := range providers {
			name := p.DisplayName
			if name == "" {
				name = p.Name
			}
			models := make([]string, 0, len(p.Models))
			for _, m := range p.Models {
				models = append(models, m.Name)
			}
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", p.ID, p.ProviderType, name, strings.Join(models, ", "))
		}
	})
}
