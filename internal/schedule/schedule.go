// Package schedule repeats a job on a five-field cron expression.
package schedule

import (
	"context"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Job receives the activation time it was scheduled for.
type Job func(ctx context.Context, at time.Time)

type Scheduler struct {
	expr  string
	sched cron.Schedule
	loc   *time.Location
	log   *zap.SugaredLogger

	now   func() time.Time
	after func(time.Duration) <-chan time.Time
}

// New parses expr ("minute hour dom month dow") evaluated in loc.
func New(expr string, loc *time.Location, log *zap.SugaredLogger) (*Scheduler, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, errors.New("schedule is not set")
	}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	sched, err := parser.Parse(expr)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid schedule '%s'", expr)
	}
	if loc == nil {
		loc = time.Local
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Scheduler{expr: expr, sched: sched, loc: loc, log: log, now: time.Now, after: time.After}, nil
}

func (s *Scheduler) Next(from time.Time) time.Time {
	return s.sched.Next(from.In(s.loc))
}

// Run blocks, calling job at every activation, until ctx is done. Runs never
// overlap: the next activation is computed after job returns.
func (s *Scheduler) Run(ctx context.Context, job Job) error {
	s.log.Infow("scheduler started", "cron", s.expr, "timezone", s.loc.String())
	for ctx.Err() == nil {
		now := s.now().In(s.loc)
		next := s.Next(now)
		wait := next.Sub(now)
		s.log.Infow("next run scheduled", "at", next.Format("Mon Jan 2 15:04"), "in", wait.Round(time.Minute).String())

		select {
		case <-ctx.Done():
		case <-s.after(wait):
			job(ctx, next)
		}
	}
	s.log.Infow("scheduler stopped")
	return nil
}
