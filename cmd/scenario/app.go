package main

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/rendis/scenario/internal/actions"
	"github.com/rendis/scenario/internal/engine"
	"github.com/rendis/scenario/internal/expressions"
	"github.com/rendis/scenario/internal/logging"
	"github.com/rendis/scenario/internal/manipulate"
	"github.com/rendis/scenario/internal/publisher"
	"github.com/rendis/scenario/internal/scenario"
	"github.com/rendis/scenario/internal/scheduler"
	"github.com/rendis/scenario/internal/secrets"
	"github.com/rendis/scenario/internal/store"
	"github.com/rendis/scenario/internal/streaming"
	"github.com/rendis/scenario/internal/validation"
)

// app is the wired object graph shared by every command.
type app struct {
	cfg         Config
	logger      *slog.Logger
	store       store.DocumentStore
	validator   *validation.DocumentValidator
	engine      *manipulate.Engine
	registry    *actions.Registry
	loader      *scenario.Loader
	interpreter *engine.Interpreter
	events      *streaming.MemoryHub
	vault       *secrets.AESVault
}

func newApp(ctx context.Context, cfg Config) (*app, error) {
	logger, err := logging.NewLogger(os.Stderr, cfg.LogFormat, cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)

	st, err := openStore(ctx, cfg.DBPath)
	if err != nil {
		return nil, err
	}

	validator, err := validation.NewDocumentValidator()
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	engines, err := expressions.NewEngines()
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	eng := manipulate.New(engines, manipulate.WithLogger(logger))

	pub := publisher.New(publisher.Config{
		Timeout:         cfg.HTTP.Timeout,
		MaxResponseBody: cfg.HTTP.MaxResponseBody,
		Retry: publisher.RetryPolicy{
			MaxAttempts: cfg.HTTP.MaxAttempts,
			BaseDelay:   cfg.HTTP.BaseDelay,
			MaxDelay:    cfg.HTTP.MaxDelay,
		},
	}, logger)

	vault, err := openVault(st, cfg.Secrets)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	var resolver actions.SecretResolver
	if vault != nil {
		resolver = vault
	}

	reg := actions.NewRegistry(logger)
	if err := actions.RegisterBuiltins(reg, actions.Deps{
		Store:             st,
		Validator:         validator,
		Engine:            eng,
		Publisher:         pub,
		JQ:                engines.JQ,
		Secrets:           resolver,
		ProcessCollection: cfg.ProcessCollection,
		ServiceCollection: cfg.ServiceCollection,
		DeleteBatchSize:   cfg.DeleteBatchSize,
		Logger:            logger,
	}); err != nil {
		_ = st.Close()
		return nil, err
	}

	loader := scenario.NewLoader(st, validator, logger)
	events := streaming.NewMemoryHub()
	return &app{
		cfg:         cfg,
		logger:      logger,
		store:       st,
		validator:   validator,
		engine:      eng,
		registry:    reg,
		loader:      loader,
		interpreter: engine.NewInterpreter(loader, reg, logger, engine.WithEventHub(events)),
		events:      events,
		vault:       vault,
	}, nil
}

// openStore opens the libSQL database, creating its directory, or an
// in-memory store for the "memory" path.
func openStore(ctx context.Context, dbPath string) (store.DocumentStore, error) {
	if dbPath == "memory" {
		return store.NewMemoryStore(), nil
	}
	if path, ok := strings.CutPrefix(dbPath, "file:"); ok {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, err
		}
	}
	st, err := store.NewLibSQLStore(dbPath)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}
	return st, nil
}

// openVault returns nil when no key material is configured.
func openVault(st store.DocumentStore, cfg SecretsConfig) (*secrets.AESVault, error) {
	vc, err := cfg.vaultConfig()
	if err != nil {
		return nil, err
	}
	if !vc.Enabled() {
		return nil, nil
	}
	return secrets.NewAESVault(secrets.NewDocumentBackend(st, cfg.Collection), vc)
}

func (a *app) scheduler() *scheduler.Scheduler {
	return scheduler.NewScheduler(a.store, scheduler.RunnerFunc(func(ctx context.Context, name string, input map[string]any) error {
		_, err := a.interpreter.ExecuteScenario(ctx, name, input)
		return err
	}), a.logger, scheduler.WithCollection(a.cfg.ScheduleCollection))
}

func (a *app) importer() *scenario.Importer {
	return scenario.NewImporter(a.store, a.validator, scenario.Collections{
		Processes: a.cfg.ProcessCollection,
		Services:  a.cfg.ServiceCollection,
	})
}

func (a *app) Close() error {
	return a.store.Close()
}
