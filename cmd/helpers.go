package main

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/harborview/coinwatch/internal/runlog"
	"github.com/harborview/coinwatch/internal/snapshot"
)

// openRunlog opens and migrates the local run-history database.
func openRunlog(ctx context.Context) (*runlog.Store, error) {
	rl, err := runlog.Open(cfg.Data.RunDB)
	if err != nil {
		return nil, err
	}
	if err := rl.Migrate(ctx); err != nil {
		rl.Close()
		return nil, err
	}
	return rl, nil
}

func openSnapshots() (*snapshot.Store, error) {
	return snapshot.New(cfg.Data.Dir)
}

// phase wraps one pipeline stage with run-history bookkeeping. Recording
// failures never interrupt the pipeline itself.
func phase(ctx context.Context, rl *runlog.Store, runID, name string, fn func() error) error {
	p, err := rl.StartPhase(ctx, runID, name)
	if err != nil {
		zap.L().Warn("runlog: start phase", zap.String("phase", name), zap.Error(err))
		return fn()
	}

	start := time.Now()
	phaseErr := fn()
	if err := rl.FinishPhase(ctx, p.ID, phaseErr); err != nil {
		zap.L().Warn("runlog: finish phase", zap.String("phase", name), zap.Error(err))
	}
	zap.L().Info("phase done",
		zap.String("phase", name),
		zap.Duration("took", time.Since(start).Round(time.Millisecond)),
		zap.Bool("ok", phaseErr == nil),
	)
	return phaseErr
}
