package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/studiowebux/k6ui/internal/config"
)

var (
	version = "0.1.0"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "k6ui",
	Short: "k6ui - configure and run k6 load tests from a browser or the terminal",
	Long: `k6ui turns a load test configuration into a k6 script, runs it with the
k6 binary installed on this machine and reports the end-of-test metrics.

Run without arguments to start the web UI, or use a subcommand to run a test,
print the generated script or browse previous runs.

Examples:
  k6ui                                             # Start the web UI on 127.0.0.1:3000
  k6ui serve --listen 0.0.0.0:8080                 # Serve on another address
  k6ui run --url https://example.com --vus 10      # Run one test from flags
  k6ui run test.yaml -o json                       # Run a test described in a file
  k6ui script test.yaml --color                    # Print the generated k6 script
  k6ui runs --query "[?status=='failed'].id"       # Query recorded runs
  k6ui doctor                                      # Check the k6 installation`,
	Version:           version,
	SilenceUsage:      true,
	Args:              cobra.NoArgs,
	PersistentPreRunE: loadSettings,
	RunE:              runServe,
}

// Global flags
var (
	flagConfigFile string
	flagVerbose    bool
)

// settings holds the configuration resolved before a command runs.
var settings config.Config

// persistentBindings maps configuration keys to root persistent flags.
var persistentBindings = map[string]string{
	config.KeyK6Binary:         "k6",
	config.KeyK6Timeout:        "timeout",
	config.KeyK6MaxOutputBytes: "max-output-bytes",
	config.KeyScriptsDir:       "scripts-dir",
	config.KeyScriptsKeep:      "keep-scripts",
	config.KeyHistoryEnabled:   "history",
	config.KeyHistoryPath:      "history-path",
}

func init() {
	f := rootCmd.PersistentFlags()
	f.StringVar(&flagConfigFile, "config", "", "Config file (default ~/.k6ui/config.yaml)")
	f.BoolVarP(&flagVerbose, "verbose", "v", false, "Write structured logs to stderr")
	f.String("k6", "", "Path or name of the k6 binary (default: discover)")
	f.Duration("timeout", 0, "Maximum duration of a single k6 run (default 10m)")
	f.Int("max-output-bytes", 0, "Maximum bytes captured from each k6 output stream (default 10MiB)")
	f.String("scripts-dir", "", "Directory for generated k6 scripts")
	f.Bool("keep-scripts", false, "Keep generated scripts after each run")
	f.Bool("history", true, "Record runs in the history database")
	f.String("history-path", "", "Path of the history database (default ~/.k6ui/k6ui.db)")

	addServeFlags(rootCmd)

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(scriptCmd)
	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(glossaryCmd)
	rootCmd.AddCommand(doctorCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadSettings resolves defaults, the config file, K6UI_* environment
// variables and flags, in increasing order of precedence.
func loadSettings(cmd *cobra.Command, args []string) error {
	if err := config.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}

	v := config.New()
	if err := config.ReadFile(v, flagConfigFile); err != nil {
		return err
	}

	if err := bindChangedFlags(v, cmd, persistentBindings); err != nil {
		return err
	}
	if err := bindChangedFlags(v, cmd, serveBindings); err != nil {
		return err
	}

	c, err := config.Load(v)
	if err != nil {
		return err
	}
	settings = c

	return nil
}

// bindChangedFlags binds only flags set on the command line so that zero
// flag defaults never mask the config file or environment.
func bindChangedFlags(v *viper.Viper, cmd *cobra.Command, bindings map[string]string) error {
	changed := map[string]string{}
	for key, name := range bindings {
		if f := cmd.Flags().Lookup(name); f != nil && f.Changed {
			changed[key] = name
		}
	}
	return config.BindFlags(v, cmd.Flags(), changed)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the k6ui version",
	Args:  cobra.NoArgs,
	// No configuration is needed to print the version.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "k6ui %s\n", version)
	},
}
