package main

import (
	"io"
	"os"

	"github.com/giantswarm/microerror"
	"github.com/giantswarm/micrologger"

	"github.com/studiowebux/k6ui/internal/history"
	"github.com/studiowebux/k6ui/internal/k6"
	"github.com/studiowebux/k6ui/internal/script"
	"github.com/studiowebux/k6ui/internal/service"
)

// app wires the components shared by the commands.
type app struct {
	logger  micrologger.Logger
	locator *k6.Locator
	store   *history.Store
	service *service.Service
}

// newLogger writes to stderr when forced or --verbose is set and discards
// logs otherwise.
func newLogger(force bool) (micrologger.Logger, error) {
	var w io.Writer = io.Discard
	if force || flagVerbose {
		w = os.Stderr
	}

	logger, err := micrologger.New(micrologger.Config{IOWriter: w})
	if err != nil {
		return nil, microerror.Mask(err)
	}
	return logger, nil
}

// newApp builds the load test service from settings. Observer may be nil.
func newApp(logger micrologger.Logger, withHistory bool, observer service.Observer) (*app, error) {
	a := &app{logger: logger}

	locator, err := k6.NewLocator(k6.LocatorConfig{
		Logger: logger,
		Binary: settings.K6Binary,
	})
	if err != nil {
		return nil, microerror.Mask(err)
	}
	a.locator = locator

	runner, err := k6.NewRunner(k6.RunnerConfig{
		Logger:         logger,
		Timeout:        settings.K6Timeout,
		MaxOutputBytes: settings.K6MaxOutputBytes,
	})
	if err != nil {
		return nil, microerror.Mask(err)
	}

	var recorder service.Recorder
	if withHistory && settings.HistoryEnabled {
		store, err := history.NewStore(settings.HistoryPath)
		if err != nil {
			return nil, microerror.Mask(err)
		}
		a.store = store
		recorder = store
	}

	svc, err := service.New(service.Config{
		Logger:   logger,
		Locator:  locator,
		Runner:   runner,
		Scripts:  script.NewGenerator(settings.ScriptsDir),
		History:  recorder,
		Observer: observer,

		KeepScripts:       settings.KeepScripts,
		MaxConcurrentRuns: settings.MaxConcurrentRuns,
	})
	if err != nil {
		a.Close()
		return nil, microerror.Mask(err)
	}
	a.service = svc

	return a, nil
}

func (a *app) Close() {
	if a.store != nil {
		a.store.Close()
	}
}

// openStore opens the history database for the runs commands.
func openStore() (*history.Store, error) {
	if !settings.HistoryEnabled {
		return nil, microerror.Maskf(historyDisabledError, "run history is disabled (history.enabled=false)")
	}
	store, err := history.NewStore(settings.HistoryPath)
	if err != nil {
		return nil, microerror.Mask(err)
	}
	return store, nil
}

var historyDisabledError = &microerror.Error{
	Kind: "historyDisabledError",
}
