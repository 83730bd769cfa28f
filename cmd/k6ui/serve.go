package main

import (
	"fmt"

	"github.com/giantswarm/microerror"
	"github.com/spf13/cobra"

	"github.com/studiowebux/k6ui/internal/config"
	"github.com/studiowebux/k6ui/internal/glossary"
	"github.com/studiowebux/k6ui/internal/server"
	"github.com/studiowebux/k6ui/internal/telemetry"
	"github.com/studiowebux/k6ui/internal/ui"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web UI and HTTP API",
	Long: `Start the web UI and the HTTP API.

Endpoints:
  GET    /                       Load test form
  POST   /api/load-test          Run a load test and return its metrics
  GET    /api/load-test/stream   Run a load test over a websocket with live output
  POST   /api/script             Preview the generated k6 script
  GET    /api/runs               Recent runs (?limit=N)
  GET    /api/runs/{id}          One run
  DELETE /api/runs/{id}          Delete a run
  GET    /api/glossary           Metric glossary (?q=term)
  GET    /healthz                Health and k6 location
  GET    /metrics                Prometheus metrics`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

var serveBindings = map[string]string{
	config.KeyListenAddress:     "listen",
	config.KeyCORSOrigin:        "cors-origin",
	config.KeyMaxConcurrentRuns: "max-concurrent-runs",
}

func addServeFlags(cmd *cobra.Command) {
	cmd.Flags().String("listen", "", "Listen address (default 127.0.0.1:3000)")
	cmd.Flags().String("cors-origin", "", "Value of Access-Control-Allow-Origin (default *)")
	cmd.Flags().Int("max-concurrent-runs", 0, "Maximum simultaneous k6 processes, 0 for no limit")
}

func init() {
	addServeFlags(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	logger, err := newLogger(true)
	if err != nil {
		return err
	}

	metrics := telemetry.New()

	a, err := newApp(logger, true, metrics)
	if err != nil {
		return err
	}
	defer a.Close()

	if path, err := a.locator.Locate(ctx); err != nil {
		logger.LogCtx(ctx, "level", "warning", "message", "k6 not found, load tests will fail until it is installed", "stack", microerror.JSON(err))
	} else {
		logger.LogCtx(ctx, "level", "info", "message", "using k6", "path", path)
	}

	page, err := ui.New(ui.Config{Glossary: glossary.Entries(), Version: version})
	if err != nil {
		return microerror.Mask(err)
	}

	srvConfig := server.Config{
		Logger:     logger,
		Service:    a.service,
		Locator:    a.locator,
		Metrics:    metrics.Handler(),
		UI:         page,
		Address:    settings.ListenAddress,
		CORSOrigin: settings.CORSOrigin,
	}
	if a.store != nil {
		srvConfig.History = a.store
	}

	srv, err := server.New(srvConfig)
	if err != nil {
		return microerror.Mask(err)
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "k6ui %s listening on http://%s\n", version, srv.Address())

	return srv.ListenAndServe(ctx)
}
