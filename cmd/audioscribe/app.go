package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/bdougie/audioscribe/internal/config"
	"github.com/bdougie/audioscribe/internal/controller"
	"github.com/bdougie/audioscribe/internal/describer"
	"github.com/bdougie/audioscribe/internal/embeddings"
	"github.com/bdougie/audioscribe/internal/extractor"
	"github.com/bdougie/audioscribe/internal/speech"
	"github.com/bdougie/audioscribe/internal/storage"
	"github.com/bdougie/audioscribe/internal/ui"
)

// backend is where images get described
type backend interface {
	controller.Describer
	Ping(ctx context.Context) error
	Endpoint() string
}

// app is everything a describe or session run needs
type app struct {
	logger     *slog.Logger
	client     backend
	speaker    *speech.Speaker
	terminal   *ui.Terminal
	controller *controller.Controller
	loader     *extractor.Loader
	journal    storage.Journal
	closers    []func()
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	engine, err := speech.NewEngine(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize speech engine: %w", err)
	}
	logger.Debug("speech engine ready", "engine", engine.Name())

	client, err := newBackend(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	a := &app{
		logger:   logger,
		client:   client,
		speaker:  speech.NewSpeaker(engine, logger),
		terminal: ui.NewTerminal(os.Stdout, logger),
		loader:   &extractor.Loader{FrameAt: frameAtFlag},
	}
	a.controller = controller.New(a.client, a.speaker, a.terminal, logger)

	journal, err := a.openJournal(ctx, cfg)
	if err != nil {
		a.close()
		return nil, err
	}
	if journal != nil {
		a.journal = journal
		a.controller.WithJournal(journal)
	}
	return a, nil
}

// newBackend picks the HTTP service or a local Ollama model
func newBackend(ctx context.Context, cfg *config.Config, logger *slog.Logger) (backend, error) {
	if cfg.Service.Backend == "ollama" {
		o, err := describer.NewOllama(ctx, cfg.Ollama.Model, cfg.Service.Timeout, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize ollama backend: %w", err)
		}
		return o, nil
	}
	return describer.NewClient(cfg.Service.Endpoint, cfg.Service.Timeout, logger), nil
}

// openJournal returns nil when no journal is configured
func (a *app) openJournal(ctx context.Context, cfg *config.Config) (storage.Journal, error) {
	var journals []storage.Journal

	if cfg.Journal.Dir != "" {
		journals = append(journals, storage.NewFileJournal(cfg.Journal.Dir, a.logger))
	}

	if cfg.Journal.DatabaseURL != "" {
		pg, err := openPostgres(ctx, cfg, a.logger, &a.closers)
		if err != nil {
			return nil, err
		}
		journals = append(journals, pg)
	}

	if len(journals) == 0 {
		return nil, nil
	}
	return storage.Multi(journals...), nil
}

// openPostgres connects the database journal, with embeddings when an
// OpenAI key is configured. Cleanups are appended to closers.
func openPostgres(ctx context.Context, cfg *config.Config, logger *slog.Logger, closers *[]func()) (*storage.PostgresJournal, error) {
	var embedder embeddings.Embedder
	if cfg.OpenAI.APIKey != "" {
		ai, err := embeddings.NewOpenAIEmbedder(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL)
		if err != nil {
			return nil, err
		}
		svc := embeddings.NewService(ai, 2)
		*closers = append(*closers, svc.Close)
		embedder = svc
	} else {
		logger.Warn("OPENAI_API_KEY not set, journal entries will not be searchable")
	}

	pg, err := storage.NewPostgresJournal(ctx, cfg.Journal.DatabaseURL, embedder, logger)
	if err != nil {
		return nil, err
	}
	*closers = append(*closers, pg.Close)
	return pg, nil
}

func (a *app) close() {
	a.speaker.Cancel()
	if a.journal != nil {
		if err := a.journal.Flush(); err != nil {
			a.logger.Error("failed to flush journal", "err", err)
		}
	}
	// Close in reverse order of opening
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// upload loads path and hands it to the controller
func (a *app) upload(ctx context.Context, path string) error {
	file, err := a.loader.Load(ctx, path)
	if err != nil {
		return fmt.Errorf("could not open %s: %w", path, err)
	}
	if err := a.controller.HandleUpload(ctx, file); err != nil {
		return err
	}
	if err := a.controller.Wait(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return a.controller.LastError()
}
