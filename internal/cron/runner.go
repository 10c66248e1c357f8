package cronrunner

import (
	"context"
	"sync"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

type Runner struct {
	cron    *cron.Cron
	logger  *zap.Logger
	baseCtx context.Context
}

func New(logger *zap.Logger, baseCtx context.Context) *Runner {
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	return &Runner{
		cron:    cron.New(cron.WithSeconds()),
		logger:  logger,
		baseCtx: baseCtx,
	}
}

// Add schedules job. A job still running when its next tick fires is not
// started again; the tick is skipped.
func (r *Runner) Add(name, spec string, job func(context.Context)) (cron.EntryID, error) {
	var running sync.Mutex
	return r.cron.AddFunc(spec, func() {
		if !running.TryLock() {
			if r.logger != nil {
				r.logger.Warn("cron job still running, tick skipped", zap.String("job", name))
			}
			return
		}
		defer running.Unlock()
		job(r.baseCtx)
	})
}

func (r *Runner) Len() int {
	return len(r.cron.Entries())
}

func (r *Runner) Start() {
	if r.logger != nil {
		r.logger.Info("cron started", zap.Int("jobs", r.Len()))
	}
	r.cron.Start()
}

func (r *Runner) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
	if r.logger != nil {
		r.logger.Info("cron stopped")
	}
}
