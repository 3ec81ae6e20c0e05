package main

import (
	"encoding/json"
	"io"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/haggle/internal/sources"
)

var sourcesFormat string

// sourceView is the printable form of a registry entry.
type sourceView struct {
	ID           string `json:"id" yaml:"id"`
	Kind         string `json:"kind" yaml:"kind"`
	URLTemplate  string `json:"url_template" yaml:"url_template"`
	SearchEngine bool   `json:"search_engine,omitempty" yaml:"search_engine,omitempty"`
}

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List the price sources queried for each lookup",
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := sources.Default(cfg.Sources.CraigslistCities)
		if err != nil {
			return err
		}
		return writeSources(cmd.OutOrStdout(), reg, sourcesFormat)
	},
}

func writeSources(w io.Writer, reg *sources.Registry, format string) error {
	srcs := reg.Sources()
	views := make([]sourceView, 0, len(srcs))
	for _, s := range srcs {
		views = append(views, sourceView{
			ID:           s.ID,
			Kind:         string(s.Rule.Kind()),
			URLTemplate:  s.URLTemplate,
			SearchEngine: s.SearchEngine,
		})
	}

	switch format {
	case "yaml", "":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(views); err != nil {
			return eris.Wrap(err, "sources: encode yaml")
		}
		return eris.Wrap(enc.Close(), "sources: close yaml encoder")
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return eris.Wrap(enc.Encode(views), "sources: encode json")
	default:
		return eris.Errorf("sources: unknown format %q (want yaml or json)", format)
	}
}

func init() {
	sourcesCmd.Flags().StringVar(&sourcesFormat, "format", "yaml", "output format: yaml or json")
	rootCmd.AddCommand(sourcesCmd)
}
