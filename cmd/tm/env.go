package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/amonks/taskmirror/backend"
	"github.com/amonks/taskmirror/internal/config"
	"github.com/amonks/taskmirror/internal/paths"
	"github.com/amonks/taskmirror/remote"
	"github.com/amonks/taskmirror/remote/mongostore"
	"github.com/amonks/taskmirror/remote/sqlitestore"
	"github.com/amonks/taskmirror/session"
)

// loadTimeout bounds how long one-shot commands wait for the first snapshot.
const loadTimeout = 30 * time.Second

var errUserRequired = errors.New("user is required (use --user, TM_USER, or session.user)")

// environment is the resolved configuration plus an open store.
type environment struct {
	cfg    *config.Config
	logger *slog.Logger
	store  remote.Store
	close  func() error
}

// loadConfig reads config for the working directory and applies flag
// overrides.
func loadConfig() (*config.Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("get working directory: %w", err)
	}
	cfg, err := config.Load(cwd)
	if err != nil {
		return nil, err
	}
	if flagUser != "" {
		cfg.Session.User = flagUser
	}
	if flagBackend != "" {
		cfg.Backend.Kind = flagBackend
	}
	if flagAddr != "" {
		cfg.Backend.Addr = flagAddr
	}
	if flagDB != "" {
		cfg.Backend.SQLitePath = flagDB
	}
	if flagLogLevel != "" {
		cfg.Log.Level = flagLogLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// openEnvironment loads config and opens the configured store. When local is
// true the http kind is rejected, since the caller needs a store it can
// serve.
func openEnvironment(ctx context.Context, local bool) (*environment, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger := mustMakeLogger(cfg.Log.Level)

	env := &environment{cfg: cfg, logger: logger, close: func() error { return nil }}
	switch cfg.Backend.Kind {
	case config.BackendSQLite:
		path, err := paths.ResolveWithDefault(cfg.Backend.SQLitePath, paths.DefaultDatabasePath)
		if err != nil {
			return nil, err
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
		store, err := sqlitestore.Open(ctx, path, sqlitestore.Options{Logger: logger})
		if err != nil {
			return nil, err
		}
		env.store = store
		env.close = store.Close
	case config.BackendMongo:
		store, err := mongostore.Connect(ctx, cfg.Backend.MongoURI, cfg.Backend.MongoDatabase, mongostore.Options{Logger: logger})
		if err != nil {
			return nil, err
		}
		env.store = store
		env.close = store.Close
	case config.BackendHTTP:
		if local {
			return nil, fmt.Errorf("backend kind %q cannot be served; use sqlite or mongo", cfg.Backend.Kind)
		}
		addr, err := backend.ResolveAddr(cfg.Backend.Addr)
		if err != nil {
			return nil, err
		}
		env.store = backend.NewClient(addr)
	default:
		return nil, fmt.Errorf("unknown backend kind %q", cfg.Backend.Kind)
	}
	logger.Debug("opened store", "kind", cfg.Backend.Kind)
	return env, nil
}

// openSession opens the store and loads the configured user's tasks,
// waiting for the first snapshot. The returned cleanup closes both.
func openSession(ctx context.Context, onChange func()) (*session.Manager, *environment, func(), error) {
	env, err := openEnvironment(ctx, false)
	if err != nil {
		return nil, nil, nil, err
	}
	if env.cfg.Session.User == "" {
		env.close()
		return nil, nil, nil, errUserRequired
	}

	manager := session.Open(env.store, session.Options{
		Logger:          env.logger,
		CacheTTL:        env.cfg.Session.CacheTTL,
		JanitorInterval: env.cfg.Session.JanitorInterval,
		Debounce:        env.cfg.Session.Debounce,
		PageSize:        env.cfg.Session.PageSize,
		OnChange:        onChange,
	})
	cleanup := func() {
		manager.Close()
		if err := env.close(); err != nil {
			env.logger.Warn("close store", "err", err)
		}
	}

	if err := manager.LoadTasks(ctx, env.cfg.Session.User); err != nil {
		cleanup()
		return nil, nil, nil, err
	}
	waitCtx, cancel := context.WithTimeout(ctx, loadTimeout)
	defer cancel()
	if err := manager.WaitLoaded(waitCtx); err != nil {
		cleanup()
		return nil, nil, nil, fmt.Errorf("load tasks: %w", err)
	}
	return manager, env, cleanup, nil
}

// resolveTaskID expands an id prefix against the loaded tasks.
func resolveTaskID(manager *session.Manager, prefix string) (string, error) {
	id, err := manager.ResolveID(prefix)
	if err != nil {
		return "", fmt.Errorf("%w: %s", err, prefix)
	}
	return id, nil
}
