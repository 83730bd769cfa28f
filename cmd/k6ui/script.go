package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/studiowebux/k6ui/internal/cli"
	"github.com/studiowebux/k6ui/internal/config"
)

var scriptCmd = &cobra.Command{
	Use:   "script [file]",
	Short: "Print the k6 script generated for a load test",
	Long: `Print the k6 script k6ui would run for a configuration, without running it.

Examples:
  k6ui script --url https://example.com --vus 5
  k6ui script test.yaml --color
  k6ui script test.yaml --write test.js
  k6ui script test.yaml --copy`,
	Args: cobra.MaximumNArgs(1),
	RunE: runScript,
}

var (
	scriptFlags loadTestFlags
	scriptColor bool
	scriptCopy  bool
	scriptWrite string
)

func init() {
	scriptFlags.register(scriptCmd)
	scriptCmd.Flags().BoolVar(&scriptColor, "color", false, "Highlight the script")
	scriptCmd.Flags().BoolVar(&scriptCopy, "copy", false, "Copy the script to the clipboard")
	scriptCmd.Flags().StringVarP(&scriptWrite, "write", "w", "", "Write the script to a file instead of stdout")
}

func runScript(cmd *cobra.Command, args []string) error {
	cfg, err := scriptFlags.build(cmd, args)
	if err != nil {
		return err
	}

	logger, err := newLogger(false)
	if err != nil {
		return err
	}

	a, err := newApp(logger, false, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	content, err := a.service.Preview(cfg)
	if err != nil {
		return err
	}
	content += "\n"

	if scriptCopy {
		if err := cli.CopyToClipboard(content); err != nil {
			return err
		}
		fmt.Fprintln(os.Stderr, "Script copied to clipboard")
	}

	if scriptWrite != "" {
		if err := os.WriteFile(scriptWrite, []byte(content), config.FilePermissions); err != nil {
			return fmt.Errorf("failed to write script: %w", err)
		}
		fmt.Fprintf(os.Stderr, "Script written to %s\n", scriptWrite)
		return nil
	}

	if scriptCopy && !cmd.Flags().Changed("color") {
		return nil
	}

	if scriptColor {
		return cli.Highlight(cmd.OutOrStdout(), content)
	}
	fmt.Fprint(cmd.OutOrStdout(), content)
	return nil
}
