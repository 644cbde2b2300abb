// Package escalation finds complaints that stayed open past the age
// threshold and escalates each one independently.
package escalation

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"smartgriev/internal/domain"
	"smartgriev/internal/metrics"
	"smartgriev/internal/notify"
)

const defaultWorkers = 4

type Store interface {
	ListEscalationCandidates(ctx context.Context, createdBefore time.Time) ([]domain.Complaint, error)
	ApplyEscalation(ctx context.Context, d domain.EscalationDecision) error
}

type DepartmentLookup interface {
	GetDepartment(ctx context.Context, id int64) (domain.Department, error)
}

type SweepOptions struct {
	AgeThresholdDays  int
	DryRun            bool
	SendNotifications bool
	Now               time.Time // zero means time.Now()
}

type Engine struct {
	store       Store
	notifier    notify.Notifier
	departments DepartmentLookup
	metrics     *metrics.Metrics
	cooldown    time.Duration
	workers     int
	now         func() time.Time
}

type Option func(*Engine)

func WithNotifier(n notify.Notifier) Option {
	return func(e *Engine) { e.notifier = n }
}

func WithDepartments(d DepartmentLookup) Option {
	return func(e *Engine) { e.departments = d }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

func WithCooldown(d time.Duration) Option {
	return func(e *Engine) {
		if d >= 0 {
			e.cooldown = d
		}
	}
}

func WithWorkers(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.workers = n
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func NewEngine(store Store, opts ...Option) *Engine {
	e := &Engine{
		store:    store,
		notifier: notify.LogNotifier{},
		cooldown: DefaultCooldown,
		workers:  defaultWorkers,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type outcome struct {
	decision domain.EscalationDecision
	due      bool
	err      error
}

// RunSweep escalates every due complaint. Per-complaint failures are
// collected in the report; only a failure to list candidates is returned
// as an error.
func (e *Engine) RunSweep(ctx context.Context, opts SweepOptions) (domain.SweepReport, error) {
	started := time.Now()
	now := opts.Now
	if now.IsZero() {
		now = e.now()
	}
	policy := Policy{AgeThresholdDays: opts.AgeThresholdDays, Cooldown: e.cooldown}
	report := domain.SweepReport{DryRun: opts.DryRun}

	candidates, err := e.store.ListEscalationCandidates(ctx, now.Add(-policy.ageThreshold()))
	if err != nil {
		return report, fmt.Errorf("escalation: list candidates: %w", err)
	}

	outcomes := make([]outcome, len(candidates))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i := range candidates {
		i := i
		g.Go(func() error {
			outcomes[i] = e.process(gctx, candidates[i], now, policy, opts)
			return nil
		})
	}
	_ = g.Wait()

	for i, o := range outcomes {
		if !o.due {
			continue
		}
		report.Found++
		if o.err != nil {
			report.Failed++
			report.Errors = append(report.Errors, domain.SweepError{ComplaintID: candidates[i].ID, Err: o.err})
			continue
		}
		report.Escalated++
		report.Decisions = append(report.Decisions, o.decision)
	}

	if !opts.DryRun {
		e.metrics.ObserveSweep(report.Found, report.Escalated, report.Failed, time.Since(started).Seconds())
	}
	log.WithFields(log.Fields{
		"found":     report.Found,
		"escalated": report.Escalated,
		"failed":    report.Failed,
		"dry_run":   opts.DryRun,
		"threshold": opts.AgeThresholdDays,
	}).Info("escalation sweep finished")
	return report, nil
}

// process handles one complaint. A panic is turned into that complaint's
// error so the rest of the batch still runs.
func (e *Engine) process(ctx context.Context, c domain.Complaint, now time.Time, policy Policy, opts SweepOptions) (o outcome) {
	defer func() {
		if r := recover(); r != nil {
			o.err = fmt.Errorf("escalation: complaint %s: panic: %v", c.ID, r)
		}
	}()

	d, due := Plan(c, now, policy)
	if !due {
		return outcome{}
	}
	o = outcome{decision: d, due: true}
	if opts.DryRun {
		log.Debugf("dry run: would escalate %s priority %s->%s", c.ID, d.OldPriority, d.NewPriority)
		return o
	}

	if err := ctx.Err(); err != nil {
		o.err = err
		return o
	}
	if err := e.store.ApplyEscalation(ctx, d); err != nil {
		log.WithFields(log.Fields{"complaint_id": c.ID, "error": err}).Warn("escalation apply failed")
		o.err = err
		return o
	}

	if opts.SendNotifications {
		e.notify(ctx, c, d)
	}
	return o
}

// notify is best effort: the escalation is already committed, so nothing
// here may reach the complaint's outcome.
func (e *Engine) notify(ctx context.Context, c domain.Complaint, d domain.EscalationDecision) {
	defer func() {
		if r := recover(); r != nil {
			log.WithFields(log.Fields{"complaint_id": c.ID, "panic": r}).Warn("escalation notification panic")
		}
	}()

	dept := e.lookupDepartment(ctx, c)
	for _, n := range d.Notifications {
		if dept.Name != "" {
			n.Context["department"] = dept.Name
		}
		if n.Channel == domain.ChannelSlack && dept.SlackChannelID != "" {
			n.Recipient = dept.SlackChannelID
		}
		err := e.safeNotify(ctx, n)
		e.metrics.ObserveNotification(string(n.Channel), err == nil)
		if err != nil {
			log.WithFields(log.Fields{
				"complaint_id": c.ID,
				"channel":      n.Channel,
				"recipient":    n.Recipient,
				"error":        err,
			}).Warn("escalation notification failed")
		}
	}
}

// lookupDepartment returns the zero Department when the lookup fails or
// panics; notifications then go out without department routing.
func (e *Engine) lookupDepartment(ctx context.Context, c domain.Complaint) (dept domain.Department) {
	if e.departments == nil || c.DepartmentID <= 0 {
		return dept
	}
	defer func() {
		if r := recover(); r != nil {
			log.WithFields(log.Fields{"complaint_id": c.ID, "department_id": c.DepartmentID, "panic": r}).Warn("department lookup panic")
			dept = domain.Department{}
		}
	}()
	found, err := e.departments.GetDepartment(ctx, c.DepartmentID)
	if err != nil {
		log.WithFields(log.Fields{"complaint_id": c.ID, "department_id": c.DepartmentID, "error": err}).Warn("department lookup failed")
		return dept
	}
	return found
}

func (e *Engine) safeNotify(ctx context.Context, n domain.Notification) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("notifier panic: %v", r)
		}
	}()
	return e.notifier.Notify(ctx, n)
}

// Summary is the one-line report posted to staff after a sweep.
func Summary(r domain.SweepReport) string {
	prefix := "Escalation sweep"
	if r.DryRun {
		prefix = "Escalation sweep (dry run)"
	}
	return fmt.Sprintf("%s: %d due, %d escalated, %d failed", prefix, r.Found, r.Escalated, r.Failed)
}
