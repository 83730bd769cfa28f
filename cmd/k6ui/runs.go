package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/studiowebux/k6ui/internal/cli"
	"github.com/studiowebux/k6ui/internal/filter"
	"github.com/studiowebux/k6ui/internal/history"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recorded load test runs",
	Long: `List the load test runs recorded in the history database, newest first.

Examples:
  k6ui runs
  k6ui runs --limit 5 -o json
  k6ui runs --query "[?status=='failed'].{id: id, target: config.targetUrl}"
  k6ui runs --query '$(jq ".[0].metrics")'
  k6ui runs show 12 --full
  k6ui runs delete 12
  k6ui runs prune --older-than 168h`,
	Args: cobra.NoArgs,
	RunE: runListRuns,
}

var runsShowCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Show one run, or pick one interactively",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runShowRun,
}

var runsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a recorded run",
	Args:  cobra.ExactArgs(1),
	RunE:  runDeleteRun,
}

var runsPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete runs older than a duration",
	Args:  cobra.NoArgs,
	RunE:  runPruneRuns,
}

var (
	runsLimit     int
	runsQuery     string
	runsOutput    string
	runsFull      bool
	runsOlderThan time.Duration
)

func init() {
	runsCmd.Flags().IntVarP(&runsLimit, "limit", "n", history.DefaultListLimit, "Maximum number of runs")
	runsCmd.Flags().StringVarP(&runsQuery, "query", "q", "", "JMESPath query or $(shell command) applied to the JSON list")
	runsCmd.Flags().StringVarP(&runsOutput, "output", "o", cli.FormatText, "Output format (text/json/yaml)")

	runsShowCmd.Flags().BoolVar(&runsFull, "full", false, "Include the script and the raw k6 output")
	runsShowCmd.Flags().StringVarP(&runsOutput, "output", "o", cli.FormatText, "Output format (text/json/yaml)")

	runsPruneCmd.Flags().DurationVar(&runsOlderThan, "older-than", 30*24*time.Hour, "Age of the runs to delete")

	runsCmd.AddCommand(runsShowCmd)
	runsCmd.AddCommand(runsDeleteCmd)
	runsCmd.AddCommand(runsPruneCmd)
}

func runListRuns(cmd *cobra.Command, args []string) error {
	if !cli.ValidFormat(runsOutput) {
		return fmt.Errorf("invalid output format %q (text/json/yaml)", runsOutput)
	}
	if runsLimit <= 0 {
		return fmt.Errorf("--limit must be positive")
	}
	if err := validateQuery(runsQuery); err != nil {
		return err
	}

	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.List(runsLimit)
	if err != nil {
		return err
	}

	if runsQuery != "" {
		out, err := filter.ApplyValue(runs, runsQuery)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), out)
		return nil
	}

	out, err := cli.FormatRuns(runs, runsOutput)
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), out)
	return nil
}

func runShowRun(cmd *cobra.Command, args []string) error {
	if !cli.ValidFormat(runsOutput) {
		return fmt.Errorf("invalid output format %q (text/json/yaml)", runsOutput)
	}

	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	var id int64
	if len(args) == 1 {
		id, err = parseRunID(args[0])
		if err != nil {
			return err
		}
	} else {
		if !cli.IsInteractive() {
			return fmt.Errorf("a run id is required when not attached to a terminal")
		}
		runs, err := store.List(history.DefaultListLimit)
		if err != nil {
			return err
		}
		id, err = cli.SelectRun(runs)
		if err != nil {
			return err
		}
	}

	run, err := store.Get(id)
	if err != nil {
		return err
	}

	out, err := cli.FormatRun(run, runsOutput, runsFull)
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), out)
	return nil
}

func runDeleteRun(cmd *cobra.Command, args []string) error {
	id, err := parseRunID(args[0])
	if err != nil {
		return err
	}

	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Delete(id); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted run #%d\n", id)
	return nil
}

func runPruneRuns(cmd *cobra.Command, args []string) error {
	if runsOlderThan <= 0 {
		return fmt.Errorf("--older-than must be positive")
	}

	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	n, err := store.Prune(time.Now().Add(-runsOlderThan))
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d run(s) older than %s\n", n, runsOlderThan)
	return nil
}

// validateQuery rejects a malformed JMESPath expression before the history
// database is opened.
func validateQuery(query string) error {
	if query == "" || filter.IsShellCommand(query) || filter.IsValidJMESPath(query) {
		return nil
	}
	return fmt.Errorf("invalid --query %q: expected a JMESPath expression or $(command)", query)
}

func parseRunID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid run id %q", s)
	}
	return id, nil
}
