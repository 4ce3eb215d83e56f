// Package scheduler owns the clock: it runs the dispatch, report,
// compliance and activity jobs on the club's reference timezone.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"clubbot/internal/activity"
	"clubbot/internal/enforcement"
	"clubbot/internal/report"
	"clubbot/internal/ritual"
)

const jobTimeout = 2 * time.Minute

type Scheduler struct {
	cron   *cron.Cron
	logger *zap.Logger
}

// cronLogger adapts zap to the cron logging interface.
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, kv ...interface{}) {
	l.s.Debugw(msg, kv...)
}

func (l cronLogger) Error(err error, msg string, kv ...interface{}) {
	l.s.Errorw(msg, append(kv, "error", err)...)
}

// New builds the scheduler with every recurring job registered. Cron
// expressions are evaluated on the reference clock, so "0 6 * * *" is six
// in the morning club time wherever the server runs.
func New(
	logger *zap.Logger,
	refOffset int,
	rituals *ritual.Engine,
	reports *report.Service,
	enforcer *enforcement.Engine,
	activities *activity.Aggregator,
) (*Scheduler, error) {
	refZone := time.FixedZone(fmt.Sprintf("UTC%+d", refOffset), refOffset*3600)
	c := cron.New(
		cron.WithLocation(refZone),
		cron.WithLogger(cronLogger{logger.Sugar()}),
		cron.WithChain(
			cron.Recover(cronLogger{logger.Sugar()}),
			cron.SkipIfStillRunning(cronLogger{logger.Sugar()}),
		),
	)
	s := &Scheduler{cron: c, logger: logger}

	jobs := []struct {
		name string
		spec string
		run  func(ctx context.Context, now time.Time) error
	}{
		{"ritual dispatch", "@every 1m", rituals.Tick},
		{"report reminders", "@every 1m", reports.ReminderTick},
		{"compliance sweep", "@every 5m", enforcer.Sweep},
		{"missed reports", "0 6 * * *", reports.MarkMissed},
		{"renewal reminders", "0 12 * * *", enforcer.SendRenewalReminders},
		{"daily rollup", "0 2 * * *", activities.ProcessDaily},
		{"weekly report build", "0 23 * * 0", activities.BuildWeeklyReport},
		{"weekly report publish", "0 12 * * 1", activities.PublishWeeklyReports},
	}
	for _, j := range jobs {
		j := j
		_, err := c.AddFunc(j.spec, func() {
			ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
			defer cancel()
			if err := j.run(ctx, time.Now()); err != nil {
				s.logger.Error("scheduled job failed",
					zap.String("job", j.name),
					zap.Error(err))
			}
		})
		if err != nil {
			return nil, fmt.Errorf("schedule %s: %w", j.name, err)
		}
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.logger.Info("scheduler started", zap.Int("jobs", len(s.cron.Entries())))
	s.cron.Start()
}

// Stop waits for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("scheduler stopped")
}
