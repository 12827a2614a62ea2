package main

import (
	"fmt"
	"log"
	"time"

	"github.com/steveyegge/taskql/internal/cache"
	"github.com/steveyegge/taskql/internal/config"
	"github.com/steveyegge/taskql/internal/engine"
	"github.com/steveyegge/taskql/internal/globalfilter"
	"github.com/steveyegge/taskql/internal/logging"
	"github.com/steveyegge/taskql/internal/store"
	"github.com/steveyegge/taskql/internal/urgency"
)

// app wires the components one command needs. Build it with newApp and
// release it with close.
type app struct {
	cfg  *config.Config
	sink *logging.Sink

	filter *globalfilter.Engine // nil without a profile file
	source engine.Source
	db     *store.SQLite // set when the source is the SQLite index
	runner *engine.CachedRunner
}

func newApp(cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg, sink: logging.NewSink(cfg.Log)}

	if err := a.loadFilter(); err != nil {
		a.close()
		return nil, err
	}

	inner, err := a.openSource()
	if err != nil {
		a.close()
		return nil, err
	}
	a.source = inner
	if a.filter != nil {
		a.source = globalfilter.FilteredSource{Source: inner, Filter: a.filter}
	}

	eng := engine.NewWithConfig(&engine.Config{
		Urgency: urgency.Score,
		Now:     time.Now,
		Logger:  a.logger("engine"),
	})
	results := cache.New[*engine.Result](cache.Config{
		Name:     "queries",
		Capacity: cfg.Cache.Capacity,
		TTL:      cfg.Cache.TTL,
	})
	a.runner = engine.NewCachedRunner(eng, results)

	return a, nil
}

func (a *app) logger(component string) *log.Logger {
	return a.sink.Logger(component)
}

// loadProfile reads the configured profile from the profile file.
func (a *app) loadProfile() (*globalfilter.Profile, error) {
	set, err := globalfilter.LoadProfileSet(a.cfg.ProfilePath)
	if err != nil {
		return nil, err
	}
	if a.cfg.Profile != "" {
		return set.Profile(a.cfg.Profile)
	}
	return set.ActiveProfile()
}

func (a *app) loadFilter() error {
	if a.cfg.ProfilePath == "" {
		return nil
	}
	p, err := a.loadProfile()
	if err != nil {
		return err
	}
	a.filter = globalfilter.New(*p, globalfilter.WithLogger(a.logger("globalfilter")))
	return nil
}

// reloadFilter re-reads the profile file into the running filter. On
// error the previous profile stays in effect.
func (a *app) reloadFilter() error {
	if a.filter == nil {
		return nil
	}
	p, err := a.loadProfile()
	if err != nil {
		return fmt.Errorf("failed to reload profile: %w", err)
	}
	a.filter.UpdateConfig(*p)
	a.logger("globalfilter").Printf("Reloaded profile %s from %s", p.Name, a.cfg.ProfilePath)
	return nil
}

func (a *app) openSource() (engine.Source, error) {
	switch a.cfg.Source {
	case config.SourceJSONL:
		return store.JSONLSource{Path: a.cfg.JSONLPath}, nil
	case config.SourceSQLite:
		db, err := store.OpenSQLite(a.cfg.DBPath)
		if err != nil {
			return nil, err
		}
		a.db = db
		return db, nil
	default:
		return store.DirSource{Dir: a.cfg.TasksDir, Logger: a.logger("store")}, nil
	}
}

// watchedPaths returns the inputs whose changes invalidate results: the
// task source and the profile file.
func (a *app) watchedPaths() (dirs []string, files []string) {
	switch a.cfg.Source {
	case config.SourceJSONL:
		files = append(files, a.cfg.JSONLPath)
	default:
		// The SQLite index follows the tasks directory through sync.
		dirs = append(dirs, a.cfg.TasksDir)
	}
	if a.cfg.ProfilePath != "" {
		files = append(files, a.cfg.ProfilePath)
	}
	return dirs, files
}

func (a *app) close() {
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger("store").Printf("Error closing database: %v", err)
		}
	}
	_ = a.sink.Close()
}
