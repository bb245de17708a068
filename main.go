package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

func main() {
	os.Exit(run())
}

// run returns the exit code once every deferred cleanup has completed
func run() int {
	// Load initial configuration
	configuration := parseFlags()
	logger, err := getLogger(configuration)
	if err != nil {
		log.Fatalf("[FATAL] Failed to instantiate logger: %s", err)
	}
	defer logger.Sync()

	// Validate the configuration
	if errs := configuration.Validate(); len(errs) != 0 {
		logger.Fatalw("Invalid configuration values", "errors", errs)
	}
	logger.Infow("Using configuration", "configuration", configuration)

	// Initialize application state
	state, err := NewState(configuration, logger)
	if err != nil {
		logger.Fatalw("Failed to initialize application", "err", err)
	}
	defer state.Store.CleanUp()

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	defer wg.Wait()
	defer cancel()

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, os.Interrupt, syscall.SIGTERM)

	// Subscribe before the initial sync so no container is missed in between
	eventChan, errorChan := makeDockerChannels(ctx, state.DockerClient)

	if err := state.Reconciler.SyncAll(ctx); err != nil {
		state.Logger.Errorw("Initial sync incomplete", "err", err)
	}

	wg.Add(2)
	go func() {
		defer wg.Done()
		state.Queue.Run(ctx, duration(state.Config.DrainInterval))
	}()
	go func() {
		defer wg.Done()
		checkAddressPeriodically(ctx, state, duration(state.Config.CheckInterval))
	}()

	exitCode := 0
main:
	for {
		select {
		case event := <-eventChan:
			err := processDockerEvent(ctx, event, state.DockerClient, state.Reconciler, state.Logger)
			if err != nil {
				state.Logger.Errorw("Failed to process docker event", "event", event.Action, "containerId", event.Actor.ID, "err", err)
			}
		case err := <-errorChan:
			state.Logger.Errorw("Received a docker error", "err", err)
			exitCode = 1
			break main
		case sig := <-signalChan:
			state.Logger.Infow("Received signal to terminate", "sig", sig)
			break main
		}
	}
	return exitCode
}

func checkAddressPeriodically(ctx context.Context, state *State, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := state.Reconciler.OnPeriodicAddressCheck(ctx); err != nil {
				state.Logger.Errorw("Public address check failed", "err", err)
			}
		}
	}
}
