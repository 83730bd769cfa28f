package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/studiowebux/k6ui/internal/config"
	"github.com/studiowebux/k6ui/internal/k6"
	k6version "github.com/studiowebux/k6ui/internal/version"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check the k6 installation and the k6ui configuration",
	Long: `Locate the k6 binary, print its version, check for a newer k6 release
and show where k6ui keeps its files.

Examples:
  k6ui doctor
  k6ui doctor --offline`,
	Args: cobra.NoArgs,
	RunE: runDoctor,
}

var doctorOffline bool

var (
	okStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	failStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	keyStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(14)
)

func init() {
	doctorCmd.Flags().BoolVar(&doctorOffline, "offline", false, "Skip the k6 release check")
}

func runDoctor(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	w := cmd.OutOrStdout()

	logger, err := newLogger(false)
	if err != nil {
		return err
	}

	locator, err := k6.NewLocator(k6.LocatorConfig{
		Logger: logger,
		Binary: settings.K6Binary,
	})
	if err != nil {
		return err
	}

	line(w, "k6ui", version)
	line(w, "Config file", config.ConfigFile)
	line(w, "Scripts", settings.ScriptsDir)
	doctorHistory(w)

	binary, err := locator.Locate(ctx)
	if err != nil {
		line(w, "k6", failStyle.Render("not found"))
		fmt.Fprintln(w)
		fmt.Fprintln(w, err)
		return fmt.Errorf("k6 is not installed")
	}
	line(w, "k6", okStyle.Render(binary))
	if resolved := k6.Resolve(binary); resolved != binary {
		line(w, "Resolves to", resolved)
	}

	output, err := k6.Version(ctx, binary)
	if err != nil {
		line(w, "Version", failStyle.Render(err.Error()))
		return err
	}
	line(w, "Version", output)

	if doctorOffline {
		return nil
	}

	current := k6.ParseVersion(output)
	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	update, err := k6version.NewChecker("k6ui/"+version).CheckForUpdate(checkCtx, current)
	switch {
	case err != nil:
		line(w, "Latest", warnStyle.Render("unknown ("+err.Error()+")"))
	case update.Available:
		line(w, "Latest", warnStyle.Render(fmt.Sprintf("%s available: %s", update.Latest, update.URL)))
	default:
		line(w, "Latest", okStyle.Render(update.Latest+" (up to date)"))
	}

	return nil
}

func doctorHistory(w io.Writer) {
	if !settings.HistoryEnabled {
		line(w, "History", warnStyle.Render("disabled"))
		return
	}

	store, err := openStore()
	if err != nil {
		line(w, "History", failStyle.Render(err.Error()))
		return
	}
	defer store.Close()

	n, err := store.Count()
	if err != nil {
		line(w, "History", failStyle.Render(err.Error()))
		return
	}
	line(w, "History", fmt.Sprintf("%s (%d runs)", settings.HistoryPath, n))
}

func line(w io.Writer, key, value string) {
	fmt.Fprintf(w, "%s%s\n", keyStyle.Render(key), value)
}
