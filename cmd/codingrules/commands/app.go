package commands

import (
	"context"
	"fmt"

	"github.com/JNZader/codingrules/internal/browse"
	"github.com/JNZader/codingrules/internal/cache"
	"github.com/JNZader/codingrules/internal/history"
	"github.com/JNZader/codingrules/internal/logger"
	"github.com/JNZader/codingrules/internal/metrics"
	"github.com/JNZader/codingrules/internal/sonar"
)

// app holds the collaborators a command talks to.
type app struct {
	client  *sonar.Client
	cache   cache.Cache
	history *history.Store
	log     *logger.Logger
}

// openApp builds the API client, with its response cache when enabled.
func openApp() (*app, error) {
	a := &app{log: logger.Default().WithPrefix("cli")}

	opts := []sonar.Option{sonar.WithMetrics(metrics.Global())}
	if cfg.Cache.Enabled {
		c, err := openCache()
		if err != nil {
			return nil, err
		}
		a.cache = c
		opts = append(opts, sonar.WithCache(c))
	}

	client, err := sonar.NewClient(cfg.Server, opts...)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("creating API client: %w", err)
	}
	a.client = client
	return a, nil
}

func openCache() (cache.Cache, error) {
	c, err := cache.New(cache.Options{
		Backend:    cfg.Cache.Backend,
		Dir:        cfg.Cache.Dir,
		TTL:        cfg.Cache.TTL,
		MaxEntries: cfg.Cache.MaxEntries,
	})
	if err != nil {
		return nil, fmt.Errorf("opening cache: %w", err)
	}
	return c, nil
}

// openHistory opens the viewed-rules history. It returns nil when history
// is disabled.
func (a *app) openHistory() (*history.Store, error) {
	if !cfg.History.Enabled {
		return nil, nil
	}
	if a.history != nil {
		return a.history, nil
	}
	store, err := history.NewStore(history.StoreConfig{
		Path:       cfg.History.Path,
		MaxEntries: cfg.History.MaxEntries,
	})
	if err != nil {
		return nil, fmt.Errorf("opening history database: %w", err)
	}
	a.history = store
	return store, nil
}

// record remembers a viewed rule. Failures only warn.
func (a *app) record(ctx context.Context, d *browse.Details) {
	store, err := a.openHistory()
	if err != nil {
		a.log.Warn("%v", err)
		return
	}
	if store == nil {
		return
	}
	if err := store.Record(ctx, d.HistoryView()); err != nil {
		a.log.Warn("recording view of %s: %v", d.Rule.Key, err)
	}
}

func (a *app) browser() *browse.Session {
	return browse.New(a.client, browse.Options{
		PageSize:         cfg.Search.PageSize,
		AllowCustomRules: cfg.Server.AllowCustomRules,
		Logger:           logger.Default().WithPrefix("browse"),
		Metrics:          metrics.Global(),
	})
}

// Close releases the cache and history stores.
func (a *app) Close() {
	if a.history != nil {
		if err := a.history.Close(); err != nil {
			a.log.Warn("closing history: %v", err)
		}
	}
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.log.Warn("closing cache: %v", err)
		}
	}
}
