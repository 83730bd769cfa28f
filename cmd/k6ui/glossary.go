package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/studiowebux/k6ui/internal/cli"
	"github.com/studiowebux/k6ui/internal/glossary"
)

var glossaryCmd = &cobra.Command{
	Use:   "glossary [term]",
	Short: "Explain the k6 summary metrics",
	Long: `Explain the metrics k6ui reports. An optional term is fuzzy matched
against metric names.

Examples:
  k6ui glossary
  k6ui glossary p95
  k6ui glossary dur -o json`,
	Args: cobra.MaximumNArgs(1),
	// The glossary is static and needs no configuration.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	RunE:              runGlossary,
}

var glossaryOutput string

func init() {
	glossaryCmd.Flags().StringVarP(&glossaryOutput, "output", "o", cli.FormatText, "Output format (text/json/yaml)")
}

func runGlossary(cmd *cobra.Command, args []string) error {
	if !cli.ValidFormat(glossaryOutput) {
		return fmt.Errorf("invalid output format %q (text/json/yaml)", glossaryOutput)
	}

	var term string
	if len(args) == 1 {
		term = strings.TrimSpace(args[0])
	}

	out, err := cli.FormatGlossary(glossary.Lookup(term), glossaryOutput)
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), out)
	return nil
}
