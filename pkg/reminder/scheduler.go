package reminder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jmhodges/clock"
	"golang.org/x/sync/singleflight"

	"github.com/itcctvonlinetif-sudo/BillTracker/pkg/channels"
	"github.com/itcctvonlinetif-sudo/BillTracker/pkg/model"
)

// Store is the persistence the scheduler needs.
type Store interface {
	ListUnpaidBills(ctx context.Context) ([]model.Bill, error)
	UpdateReminderTimestamps(ctx context.Context, id int64, update model.ReminderUpdate) error
	GetSettings(ctx context.Context) (*model.Settings, error)
}

// Options tunes the scheduler.
type Options struct {
	// Interval between sweeps.
	Interval time.Duration
	// SendTimeout bounds a single channel send.
	SendTimeout time.Duration
	// Location defines calendar days for classification and cadence.
	Location *time.Location
	// AdvanceOnFailure advances a cadence timestamp after an attempted send
	// even when every channel of that kind failed. When false, the timestamp
	// only moves if at least one channel delivered.
	AdvanceOnFailure bool
	// RunOnStart sweeps immediately when Run begins.
	RunOnStart bool
}

// DefaultOptions returns the stock scheduler configuration.
func DefaultOptions() Options {
	return Options{
		Interval:         time.Minute,
		SendTimeout:      15 * time.Second,
		Location:         time.Local,
		AdvanceOnFailure: true,
		RunOnStart:       true,
	}
}

// SweepReport summarizes one sweep.
type SweepReport struct {
	ID         string          `json:"id"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
	Evaluated  int             `json:"evaluated"`
	Skipped    int             `json:"skipped"`
	ByUrgency  map[Urgency]int `json:"by_urgency"`
	Sent       map[string]int  `json:"sent"`
	Failed     map[string]int  `json:"failed"`
}

// Status is a snapshot of the scheduler state.
type Status struct {
	Running   bool         `json:"running"`
	StartedAt time.Time    `json:"started_at,omitempty"`
	Interval  string       `json:"interval"`
	Sweeps    int64        `json:"sweeps"`
	LastSweep *SweepReport `json:"last_sweep,omitempty"`
	LastError string       `json:"last_error,omitempty"`
}

// Scheduler periodically evaluates unpaid bills and dispatches reminders.
type Scheduler struct {
	store    Store
	channels *channels.Registry
	clock    clock.Clock
	logger   *slog.Logger
	opts     Options

	group singleflight.Group

	mu        sync.RWMutex
	running   bool
	startedAt time.Time
	sweeps    int64
	lastSweep *SweepReport
	lastErr   error
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewScheduler creates a scheduler. A nil clock uses the system clock.
func NewScheduler(store Store, registry *channels.Registry, clk clock.Clock, logger *slog.Logger, opts Options) *Scheduler {
	if clk == nil {
		clk = clock.New()
	}
	if opts.Interval <= 0 {
		opts.Interval = time.Minute
	}
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = 15 * time.Second
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	return &Scheduler{
		store:    store,
		channels: registry,
		clock:    clk,
		logger:   logger,
		opts:     opts,
	}
}

// Location returns the timezone sweeps take calendar days in.
func (s *Scheduler) Location() *time.Location {
	return s.opts.Location
}

// Start runs the sweep loop in the background until Stop or ctx is done.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return errors.New("scheduler already started")
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done

	go func() {
		defer close(done)
		s.Run(ctx)
	}()
	return nil
}

// Stop cancels the background loop and waits for it to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Run sweeps every Interval until ctx is cancelled. Sweeps never overlap.
func (s *Scheduler) Run(ctx context.Context) {
	s.setRunning(true)
	defer s.setRunning(false)

	s.logger.Info("reminder scheduler started",
		"interval", s.opts.Interval,
		"timezone", s.opts.Location.String(),
	)

	timer := s.clock.NewTimer(s.opts.Interval)
	defer timer.Stop()

	if s.opts.RunOnStart {
		s.tick(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("reminder scheduler stopped")
			return
		case <-timer.C:
			s.tick(ctx)
			timer.Reset(s.opts.Interval)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	if _, err := s.Sweep(ctx); err != nil && ctx.Err() == nil {
		s.logger.Error("sweep failed", "error", err)
	}
}

// Sweep evaluates every unpaid bill once. Concurrent callers share the
// sweep already in flight and receive its report. Once started, a sweep
// runs to completion even if ctx is cancelled; each send is still bounded
// by SendTimeout.
func (s *Scheduler) Sweep(ctx context.Context) (*SweepReport, error) {
	v, err, _ := s.group.Do("sweep", func() (any, error) {
		return s.sweep(context.WithoutCancel(ctx))
	})
	if err != nil {
		return nil, err
	}
	return v.(*SweepReport), nil
}

func (s *Scheduler) sweep(ctx context.Context) (*SweepReport, error) {
	now := s.clock.Now().In(s.opts.Location)
	report := &SweepReport{
		ID:        uuid.New().String(),
		StartedAt: now,
		ByUrgency: make(map[Urgency]int),
		Sent:      make(map[string]int),
		Failed:    make(map[string]int),
	}

	settings, err := s.store.GetSettings(ctx)
	if err != nil {
		err = fmt.Errorf("load settings: %w", err)
		s.record(nil, err)
		return nil, err
	}

	bills, err := s.store.ListUnpaidBills(ctx)
	if err != nil {
		err = fmt.Errorf("list unpaid bills: %w", err)
		s.record(nil, err)
		return nil, err
	}

	for _, bill := range bills {
		s.evaluate(ctx, bill, *settings, now, report)
	}

	report.FinishedAt = s.clock.Now().In(s.opts.Location)
	s.record(report, nil)

	s.logger.Info("sweep finished",
		"sweep_id", report.ID,
		"evaluated", report.Evaluated,
		"skipped", report.Skipped,
		"sent", report.Sent,
		"failed", report.Failed,
	)
	return report, nil
}

// evaluate applies the cadence policy to one bill and writes back the
// timestamps of the kinds that fired.
func (s *Scheduler) evaluate(ctx context.Context, bill Bill, settings Settings, now time.Time, report *SweepReport) {
	if bill.IsPaid() {
		return
	}
	if err := bill.Validate(); err != nil {
		report.Skipped++
		s.logger.Warn("skipping invalid bill", "bill_id", bill.ID, "error", err)
		return
	}
	report.Evaluated++

	urgency := Classify(bill, now)
	report.ByUrgency[urgency]++
	r := channels.Reminder{
		Bill:     bill,
		Urgency:  urgency,
		DaysLeft: model.DaysUntil(bill.DueDate, now),
	}

	var update model.ReminderUpdate
	if MessageDue(urgency, bill.LastEmailRemindedAt, now) && s.dispatch(ctx, channels.KindMessage, r, settings, report) {
		update.LastEmailRemindedAt = &now
	}
	if SoundDue(urgency, bill.LastRemindedAt, bill.ReminderSoundIntervalMinutes, now) && s.dispatch(ctx, channels.KindSound, r, settings, report) {
		update.LastRemindedAt = &now
	}
	if update.Empty() {
		return
	}

	if err := s.store.UpdateReminderTimestamps(ctx, bill.ID, update); err != nil {
		s.logger.Error("update reminder timestamps", "bill_id", bill.ID, "error", err)
	}
}

// dispatch sends r on every enabled channel of kind and reports whether the
// kind's cadence timestamp should advance.
func (s *Scheduler) dispatch(ctx context.Context, kind channels.Kind, r channels.Reminder, settings Settings, report *SweepReport) bool {
	attempted, delivered := 0, 0
	for _, ch := range s.channels.ByKind(kind) {
		if !ch.Enabled(settings) {
			s.logger.Debug("channel disabled", "channel", ch.Name(), "bill_id", r.Bill.ID)
			continue
		}
		attempted++

		sendCtx, cancel := context.WithTimeout(ctx, s.opts.SendTimeout)
		err := ch.Send(sendCtx, r, settings)
		cancel()
		if err != nil {
			report.Failed[ch.Name()]++
			s.logger.Error("send reminder failed",
				"channel", ch.Name(),
				"bill_id", r.Bill.ID,
				"urgency", r.Urgency,
				"error", err,
			)
			continue
		}
		delivered++
		report.Sent[ch.Name()]++
		s.logger.Info("reminder sent",
			"channel", ch.Name(),
			"bill_id", r.Bill.ID,
			"urgency", r.Urgency,
			"days_left", r.DaysLeft,
		)
	}

	if attempted == 0 {
		return false
	}
	return delivered > 0 || s.opts.AdvanceOnFailure
}

// Status returns a snapshot of the scheduler state.
func (s *Scheduler) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Status{
		Running:   s.running,
		StartedAt: s.startedAt,
		Interval:  s.opts.Interval.String(),
		Sweeps:    s.sweeps,
		LastSweep: s.lastSweep,
	}
	if s.lastErr != nil {
		st.LastError = s.lastErr.Error()
	}
	return st
}

func (s *Scheduler) record(report *SweepReport, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sweeps++
	if report != nil {
		s.lastSweep = report
	}
	s.lastErr = err
}

func (s *Scheduler) setRunning(running bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.running = running
	if running {
		s.startedAt = s.clock.Now()
	}
}
