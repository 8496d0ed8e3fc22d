package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"switchfacts/internal/config"
	"switchfacts/internal/extractor"
	"switchfacts/internal/logging"
	"switchfacts/internal/mangle"
	"switchfacts/internal/metrics"
	"switchfacts/internal/store"
)

// app bundles the components one command needs.
type app struct {
	workspace string
	cfg       *config.Config
	store     *store.FactStore
	engine    *mangle.Engine
	metrics   *metrics.Metrics
	extractor *extractor.Extractor
}

func resolveWorkspace() (string, error) {
	ws := workspace
	if ws == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return "", err
		}
		ws = cwd
	}
	return filepath.Abs(ws)
}

func defaultConfigPath(ws string) string {
	return filepath.Join(ws, ".switchfacts", "config.yaml")
}

func loadConfig(ws string) (*config.Config, error) {
	path := configPath
	if path == "" {
		path = defaultConfigPath(ws)
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if failFast {
		cfg.Extraction.FailFast = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// openRuntime loads config, opens the store, boots the engine from the
// persisted facts and builds an extractor over the workspace.
func openRuntime(ctx context.Context) (*app, error) {
	ws, err := resolveWorkspace()
	if err != nil {
		return nil, err
	}
	cfg, err := loadConfig(ws)
	if err != nil {
		return nil, err
	}
	if err := logging.Initialize(ws, cfg.Logging.Options()); err != nil {
		logger.Warn("file logging disabled", zap.Error(err))
	}

	rt := &app{workspace: ws, cfg: cfg, metrics: metrics.New()}

	var persistence mangle.Persistence
	if dbPath := cfg.DatabasePath(ws); dbPath != "" {
		if dbPath != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
				return nil, fmt.Errorf("create store directory: %w", err)
			}
		}
		rt.store, err = store.NewFactStore(dbPath)
		if err != nil {
			return nil, err
		}
		persistence = rt.store
		logger.Debug("store opened", zap.String("path", dbPath))
	}

	rt.engine, err = mangle.New(mangle.Config{
		FactLimit:    cfg.Mangle.FactLimit,
		QueryTimeout: int(cfg.GetQueryTimeout().Seconds()),
		AutoEval:     cfg.Mangle.AutoEval,
	}, persistence)
	if err != nil {
		rt.Close()
		return nil, err
	}
	if policy := cfg.Mangle.PolicyPath; policy != "" {
		if !filepath.IsAbs(policy) {
			policy = filepath.Join(ws, policy)
		}
		if err := rt.engine.LoadSchema(policy); err != nil {
			rt.Close()
			return nil, fmt.Errorf("load policy: %w", err)
		}
		logger.Debug("policy loaded", zap.String("path", policy))
	}
	if err := rt.engine.WarmFromPersistence(ctx); err != nil {
		rt.Close()
		return nil, err
	}

	opts := []extractor.Option{extractor.WithMetrics(rt.metrics)}
	if rt.store != nil {
		opts = append(opts, extractor.WithStateSource(rt.store))
	}
	rt.extractor, err = extractor.New(ws, cfg.Extraction, rt.engine, opts...)
	if err != nil {
		rt.Close()
		return nil, err
	}
	return rt, nil
}

// Close releases the engine, the store and log files.
func (rt *app) Close() {
	if rt.engine != nil {
		_ = rt.engine.Close()
	}
	if rt.store != nil {
		if err := rt.store.Close(); err != nil {
			logger.Warn("closing store", zap.Error(err))
		}
	}
	logging.CloseAll()
}

func commandContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return context.WithTimeout(parent, timeout)
}
