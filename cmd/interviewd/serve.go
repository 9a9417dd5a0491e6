package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/gleehq/interviewd/internal/audio"
	"github.com/gleehq/interviewd/internal/auth"
	"github.com/gleehq/interviewd/internal/checkpoint"
	"github.com/gleehq/interviewd/internal/config"
	"github.com/gleehq/interviewd/internal/dispatch"
	"github.com/gleehq/interviewd/internal/events"
	"github.com/gleehq/interviewd/internal/feedback"
	"github.com/gleehq/interviewd/internal/httpapi"
	"github.com/gleehq/interviewd/internal/interview"
	"github.com/gleehq/interviewd/internal/llm"
	"github.com/gleehq/interviewd/internal/observability"
	"github.com/gleehq/interviewd/internal/session"
	"github.com/gleehq/interviewd/internal/state"
	"github.com/gleehq/interviewd/internal/tasks"
	"github.com/gleehq/interviewd/internal/telemetry"
)

const sweepInterval = time.Minute

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the interview API server",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return serve(cmd.Context())
	},
}

func serve(parent context.Context) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := observability.NewLogger(cfg.LogLevel)

	client, err := buildLLM(ctx, cfg.LLM)
	if err != nil {
		return err
	}

	checkpoints, memCheckpoints := buildCheckpoints(cfg.Checkpoint)
	registry, err := interview.NewRegistry(client, client,
		interview.WithRegistryCheckpointer(checkpoint.NewStateCheckpointer[state.Interview](checkpoints)),
	)
	if err != nil {
		return errors.Wrap(err, "build interview registry")
	}

	sessions := session.NewMemoryStore(cfg.Session.TTL)
	dispatcher := dispatch.New(dispatch.Options{
		Workers:     cfg.Dispatch.Workers,
		MaxAttempts: cfg.Dispatch.MaxAttempts,
		BackoffBase: cfg.Dispatch.BackoffBase,
		BackoffCap:  cfg.Dispatch.BackoffCap,
		HardLimit:   cfg.Dispatch.HardLimit,
		ResultTTL:   cfg.Dispatch.ResultTTL,
	}, logger)

	synth, err := buildSynthesizer(ctx, cfg.Audio, logger)
	if err != nil {
		return err
	}
	transcriber := audio.NewCartesiaTranscriber(cfg.Audio.CartesiaURL, cfg.Audio.CartesiaKey, cfg.Audio.CartesiaModel)
	defer transcriber.Close()

	reports := feedback.NewService(client, cfg.Dispatch.ResultTTL)
	monitor := telemetry.NewMonitor(sessions)
	svc := tasks.NewService(
		interview.NewExecutor(registry),
		sessions,
		synth,
		transcriber,
		reports,
		monitor,
		dispatcher,
		cfg.Dispatch.TranscribeWait,
		logger,
	)

	server := httpapi.NewServer(httpapi.Deps{
		Logger:        logger,
		Verifier:      auth.NewHMACVerifier(cfg.Auth.Secret),
		Sessions:      sessions,
		Tasks:         svc,
		Dispatcher:    dispatcher,
		Poller:        events.NewPoller(sessions, svc),
		Streamer:      events.NewStreamer(sessions, svc, time.Second),
		Monitor:       monitor,
		Reports:       reports,
		ProcessingTTL: cfg.Dispatch.HardLimit,
	})

	dispatcher.Start()
	defer dispatcher.Stop()

	go sweep(ctx, sessions, memCheckpoints, logger)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", httpServer.Addr, "llm", cfg.LLM.Provider, "audio", cfg.Audio.Enabled)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return errors.Wrap(err, "http server")
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

func buildLLM(ctx context.Context, cfg config.LLM) (interface {
	llm.Generator
	llm.Classifier
}, error) {
	switch cfg.Provider {
	case "fake":
		// offline runs and smoke tests
		return llm.NewFake(), nil
	case "googleai", "":
		return llm.NewGoogleAI(ctx, cfg.APIKey, cfg.Model, cfg.Temperature)
	default:
		return nil, errors.Errorf("unknown llm provider %q", cfg.Provider)
	}
}

// buildCheckpoints selects the checkpoint backend. The memory store is also
// returned separately so the sweeper can reach it.
func buildCheckpoints(cfg config.Checkpoint) (checkpoint.Store[state.Interview], *checkpoint.MemoryStore[state.Interview]) {
	if cfg.Dir != "" {
		return checkpoint.NewFileStore[state.Interview](afero.NewOsFs(), cfg.Dir), nil
	}
	mem := checkpoint.NewMemoryStore[state.Interview](cfg.TTL)
	return mem, mem
}

func buildSynthesizer(ctx context.Context, cfg config.Audio, logger *slog.Logger) (audio.Synthesizer, error) {
	if !cfg.Enabled {
		return audio.Disabled{}, nil
	}
	return audio.NewPollySynthesizer(ctx, cfg.Region, cfg.Voice, cfg.Engine, cfg.SpeechRate, logger)
}

// sweep evicts expired sessions and checkpoints in the background.
func sweep(ctx context.Context, sessions *session.MemoryStore, checkpoints *checkpoint.MemoryStore[state.Interview], logger *slog.Logger) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed := sessions.Sweep()
			if checkpoints != nil {
				removed += checkpoints.Sweep()
			}
			if removed > 0 {
				logger.Debug("expired state swept", "removed", removed)
			}
		}
	}
}
