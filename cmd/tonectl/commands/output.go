package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"gopkg.in/yaml.v3"
)

// Output formats accepted by -o
const (
	formatTable = "table"
	formatJSON  = "json"
	formatYAML  = "yaml"
)

// printOutput renders v as JSON or YAML, or calls table for the table format
func printOutput(w io.Writer, format string, v interface{}, table func(tw *tabwriter.Writer)) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return enc.Encode(v)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	case formatTable, "":
		if table == nil {
			return fmt.Errorf("table output is not available here, use -o json or -o yaml")
		}
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		table(tw)
		return tw.Flush()
	default:
		return fmt.Errorf("unknown output format %q (want table, json or yaml)", format)
	}
}
