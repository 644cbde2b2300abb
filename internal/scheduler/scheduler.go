// Package scheduler runs a job on a standard 5-field cron schedule
// (minute hour day-of-month month day-of-week).
// Examples: "0 * * * *" (hourly), "30 9 * * *" (daily 9:30), "0 9 * * 1-5" (weekdays 9am).
package scheduler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
)

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

func ParseSchedule(expr string) (cron.Schedule, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, fmt.Errorf("scheduler: empty schedule")
	}
	sched, err := parser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("scheduler: invalid schedule %q: %w", expr, err)
	}
	return sched, nil
}

type Job func(ctx context.Context)

type Scheduler struct {
	name     string
	expr     string
	schedule cron.Schedule
	location *time.Location
	job      Job
	now      func() time.Time
}

func New(name, expr string, loc *time.Location, job Job) (*Scheduler, error) {
	sched, err := ParseSchedule(expr)
	if err != nil {
		return nil, err
	}
	if loc == nil {
		loc = time.Local
	}
	return &Scheduler{name: name, expr: expr, schedule: sched, location: loc, job: job, now: time.Now}, nil
}

// Next returns the first run time strictly after t.
func (s *Scheduler) Next(t time.Time) time.Time {
	return s.schedule.Next(t.In(s.location))
}

// Run blocks, invoking the job at each scheduled time, until ctx is done.
// Runs never overlap: a slow job delays the following tick.
func (s *Scheduler) Run(ctx context.Context) {
	log.Printf("%s scheduled (cron: %s, tz: %s)", s.name, s.expr, s.location)
	for {
		now := s.now().In(s.location)
		next := s.Next(now)
		wait := next.Sub(now)
		log.Printf("Next %s at %s (in %s)", s.name, next.Format("Mon Jan 2 15:04"), wait.Round(time.Minute))

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			log.Printf("%s scheduler stopped", s.name)
			return
		case <-timer.C:
		}
		s.job(ctx)
	}
}

// Start runs the scheduler in its own goroutine.
func (s *Scheduler) Start(ctx context.Context) {
	go s.Run(ctx)
}
