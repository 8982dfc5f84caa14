package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/heraklist/evochia-ops/internal/model"
	"github.com/heraklist/evochia-ops/internal/store"
)

func initStore(ctx context.Context) (store.Store, error) {
	if err := cfg.Validate("store"); err != nil {
		return nil, err
	}
	switch cfg.Store.Driver {
	case "sqlite", "":
		return store.NewSQLite(cfg.Store.DatabaseURL)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// openHistory opens and migrates the run history store. History is
// best-effort: a store that cannot be opened is logged and skipped.
func openHistory(ctx context.Context) store.Store {
	st, err := initStore(ctx)
	if err != nil {
		zap.L().Warn("run history disabled", zap.Error(err))
		return nil
	}
	if err := st.Migrate(ctx); err != nil {
		zap.L().Warn("run history disabled", zap.Error(err))
		st.Close() //nolint:errcheck
		return nil
	}
	return st
}

// runRecorder tracks one run in the history store. A nil store records
// nothing.
type runRecorder struct {
	st  store.Store
	run *model.Run
}

func startRun(ctx context.Context, st store.Store, kind model.RunKind, outDir string) *runRecorder {
	rec := &runRecorder{st: st}
	if st == nil {
		return rec
	}
	run, err := st.CreateRun(ctx, kind, outDir)
	if err != nil {
		zap.L().Warn("record run start", zap.String("kind", string(kind)), zap.Error(err))
		return rec
	}
	rec.run = run
	return rec
}

// ID returns the recorded run id, or "" when the run is not recorded.
func (r *runRecorder) ID() string {
	if r.run == nil {
		return ""
	}
	return r.run.ID
}

func (r *runRecorder) complete(ctx context.Context, status model.RunStatus, summary any) {
	if r.run == nil {
		return
	}
	if err := r.st.CompleteRun(ctx, r.run.ID, status, summary); err != nil {
		zap.L().Warn("record run completion", zap.String("run_id", r.run.ID), zap.Error(err))
	}
}

func (r *runRecorder) fail(ctx context.Context, cause error) {
	if r.run == nil {
		return
	}
	if err := r.st.FailRun(ctx, r.run.ID, cause); err != nil {
		zap.L().Warn("record run failure", zap.String("run_id", r.run.ID), zap.Error(err))
	}
}
