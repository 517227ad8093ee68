package server

import (
	"context"
	"io"

	"github.com/cockroachdb/errors"

	"github.com/agenthands/canon/internal/config"
	"github.com/agenthands/canon/internal/core"
	"github.com/agenthands/canon/internal/core/apply"
	"github.com/agenthands/canon/internal/core/catalog"
	"github.com/agenthands/canon/internal/core/normalize"
	"github.com/agenthands/canon/internal/core/oracle"
	"github.com/agenthands/canon/internal/core/progress"
	"github.com/agenthands/canon/internal/core/review"
	"github.com/agenthands/canon/internal/driver"
	"github.com/agenthands/canon/internal/llm"
	"github.com/agenthands/canon/internal/logger"
)

// App is every long-lived component built from one config.
type App struct {
	Config  *config.Config
	Log     *logger.Logger
	Canon   *core.Canon
	Reviews *review.Service
	Hub     *progress.Hub

	closers []func() error
}

// Build connects to Memgraph, the LLM provider, the review database and,
// when configured, Redis. catalogPath, if set, reads concepts from a JSON
// file instead of the graph.
func Build(ctx context.Context, cfg *config.Config, log *logger.Logger, catalogPath string) (*App, error) {
	app := &App{Config: cfg, Log: log}

	d, err := driver.NewMemgraphDriver(cfg.Memgraph, log)
	if err != nil {
		return nil, errors.Wrap(err, "connect to memgraph")
	}
	app.closers = append(app.closers, func() error { return d.Close(context.Background()) })

	var cat catalog.Catalog = catalog.NewGraph(d)
	if catalogPath != "" {
		mem, err := catalog.LoadFile(catalogPath)
		if err != nil {
			app.Close()
			return nil, err
		}
		cat = mem
	}

	llmClient, err := llm.NewClient(ctx, cfg.LLM)
	if err != nil {
		app.Close()
		return nil, errors.Wrap(err, "init llm client")
	}
	if c, ok := llmClient.(io.Closer); ok {
		app.closers = append(app.closers, c.Close)
	}

	opts := normalize.OptionsFromConfig(cfg.Normalization)
	applier := apply.NewApplier(apply.NewMemgraphStore(d), opts.Retry, log)

	store, err := review.OpenSQLite(cfg.Review.Path)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.closers = append(app.closers, store.Close)

	app.Hub = progress.NewHub(log, 64)
	sinks := progress.Multi{app.Hub}
	if cfg.Redis.Addr != "" {
		rs, err := progress.NewRedisSink(cfg.Redis, log)
		if err != nil {
			log.Warn("redis progress sink disabled", "addr", cfg.Redis.Addr, "error", err)
		} else {
			sinks = append(sinks, rs)
			app.closers = append(app.closers, rs.Close)
		}
	}

	canon := core.NewCanon(cat, oracle.NewLLMOracle(llmClient, cfg.Prompts), applier, nil, sinks, log, opts)
	canon.Driver = d
	app.Reviews = review.NewService(store, applier, canon.NewID, log)
	canon.Reviews = app.Reviews
	app.Canon = canon

	return app, nil
}

// Close stops running work and releases connections in reverse order.
func (a *App) Close() {
	if a.Canon != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		_ = a.Canon.Shutdown(ctx)
		cancel()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.Log.Warn("close failed", "error", err)
		}
	}
	a.closers = nil
}
