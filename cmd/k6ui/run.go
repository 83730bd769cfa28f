package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/studiowebux/k6ui/internal/cli"
	"github.com/studiowebux/k6ui/internal/loadtest"
	"github.com/studiowebux/k6ui/internal/service"
)

var runCmd = &cobra.Command{
	Use:   "run [file]",
	Short: "Run one load test and print its metrics",
	Long: `Run one load test from flags or from a .yaml, .yml, .json or .jsonc file.
Flags override the values read from the file.

Examples:
  k6ui run --url https://example.com/health --vus 20 --duration 30s
  k6ui run --url https://example.com/api -X POST --body '{"name":"k6"}'
  k6ui run --url https://example.com --call-type gradual --ramp-up 10s
  k6ui run test.yaml -o json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLoadTest,
}

var (
	runFlags  loadTestFlags
	runOutput string
	runStream bool
)

func init() {
	runFlags.register(runCmd)
	runCmd.Flags().StringVarP(&runOutput, "output", "o", cli.FormatText, "Output format (text/json/yaml)")
	runCmd.Flags().BoolVar(&runStream, "stream", false, "Print k6 output to stderr while the test runs")
}

func runLoadTest(cmd *cobra.Command, args []string) error {
	if !cli.ValidFormat(runOutput) {
		return fmt.Errorf("invalid output format %q (text/json/yaml)", runOutput)
	}

	cfg, err := runFlags.build(cmd, args)
	if err != nil {
		return err
	}

	logger, err := newLogger(false)
	if err != nil {
		return err
	}

	a, err := newApp(logger, true, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	var verbose io.Writer
	if runStream {
		verbose = cmd.ErrOrStderr()
	}

	title := fmt.Sprintf("Running %s %s with %d VUs for %s", cfg.Method, cfg.TargetURL, cfg.VirtualUsers, cfg.Duration)

	var result *loadtest.Result
	err = cli.RunWithProgress(cmd.Context(), title, verbose, func(ctx context.Context, progress io.Writer) error {
		var runErr error
		result, runErr = a.service.Run(ctx, cfg, progress)
		return runErr
	})
	if err != nil {
		if service.IsBinaryNotFound(err) {
			fmt.Fprintln(os.Stderr, "k6 could not be found. Run `k6ui doctor` for details.")
		}
		return err
	}

	out, err := cli.FormatResult(result, runOutput)
	if err != nil {
		return fmt.Errorf("failed to format output: %w", err)
	}
	fmt.Fprint(cmd.OutOrStdout(), out)

	return nil
}
