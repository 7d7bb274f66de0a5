// Package scheduler drives the booking queue: it wakes at the right
// moments, keeps credentials current, and fires the executor at the exact
// instant a booking window opens. Arriving a second late loses the race to
// other clients; arriving early gets rejected by the server, so the loop
// sleeps down to the boundary instead of polling across it.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/example/court-scheduler/internal/booking"
	"github.com/example/court-scheduler/internal/schedule"
	"github.com/example/court-scheduler/internal/session"
)

const (
	defaultPrepMargin          = 10 * time.Second
	defaultIdleSleep           = 60 * time.Second
	defaultMaxNap              = 60 * time.Second
	defaultCookieCheckInterval = 5 * time.Minute
)

// Executor is the slice of the booking layer the loop invokes.
type Executor interface {
	Execute(ctx context.Context, req booking.Request) (booking.Result, error)
	Prepare(ctx context.Context, facility, hint string) (string, error)
}

// Loop is the single-writer control loop over one schedule store. Running
// two of these against the same store races on last-write-wins and loses
// updates; that discipline is operational, not enforced here.
type Loop struct {
	Store    *schedule.Store
	Sessions *session.Store

	// NewExecutor loads current credentials and returns a fresh executor
	// around them. Called at startup and whenever a reload triggers, so
	// session state is swapped by value instead of mutated in place.
	NewExecutor func() (Executor, error)

	Clock    Clock
	Log      *slog.Logger
	Strategy booking.Strategy

	PrepMargin          time.Duration
	IdleSleep           time.Duration
	MaxNap              time.Duration
	CookieCheckInterval time.Duration

	// ReloadSignal is a sentinel file path; its presence forces a
	// credential reload and is cleared after acting (one-shot).
	ReloadSignal string

	exec            Executor
	credsLoadedAt   time.Time
	lastCookieCheck time.Time
}

func (l *Loop) applyDefaults() {
	if l.Clock == nil {
		l.Clock = NewClock()
	}
	if l.Log == nil {
		l.Log = slog.Default()
	}
	if l.Strategy == "" {
		l.Strategy = booking.StrategyRandom
	}
	if l.PrepMargin <= 0 {
		l.PrepMargin = defaultPrepMargin
	}
	if l.IdleSleep <= 0 {
		l.IdleSleep = defaultIdleSleep
	}
	if l.MaxNap <= 0 {
		l.MaxNap = defaultMaxNap
	}
	if l.CookieCheckInterval <= 0 {
		l.CookieCheckInterval = defaultCookieCheckInterval
	}
}

// Run executes the scheduling loop. In daemon mode it runs until ctx is
// cancelled; in single-shot mode it exits after the first execution, or
// immediately when nothing is due within the preparation margin.
func (l *Loop) Run(ctx context.Context, daemon bool) error {
	l.applyDefaults()

	if err := l.refreshExecutor(); err != nil {
		return fmt.Errorf("scheduler: load credentials: %w", err)
	}

	if err := l.Store.Reload(); err != nil {
		l.Log.Error("schedule reload failed", "err", err)
	}
	if n := l.Store.ReconcileInterrupted(); n > 0 {
		l.Log.Warn("reconciled intents interrupted by a previous crash", "count", n)
		if err := l.Store.Save(); err != nil {
			l.Log.Error("persist reconciliation failed", "err", err)
		}
	}

	l.Log.Info("scheduler started", "daemon", daemon, "schedule", l.Store.Path())

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		// pick up intents appended by other processes
		if err := l.Store.Reload(); err != nil {
			l.Log.Error("schedule reload failed, continuing with empty schedule", "err", err)
		}

		l.checkReloadSignal()
		l.refreshIfSessionChanged()

		idx, next, ok := l.Store.NextPending()
		if !ok {
			if !daemon {
				l.Log.Info("no pending bookings")
				return nil
			}
			if err := l.Clock.Sleep(ctx, l.IdleSleep); err != nil {
				return err
			}
			continue
		}

		until := next.ExecuteAt.Sub(l.Clock.Now())
		if until > l.PrepMargin {
			if !daemon {
				l.Log.Info("next booking not due yet", "execute_at", next.ExecuteAt, "in", until.Round(time.Second))
				return nil
			}
			nap := until - l.PrepMargin
			if nap > l.MaxNap {
				nap = l.MaxNap
			}
			l.Log.Debug("sleeping toward next booking", "in", until.Round(time.Second), "nap", nap)
			if err := l.Clock.Sleep(ctx, nap); err != nil {
				return err
			}
			continue
		}

		l.execute(ctx, idx, next)

		if !daemon {
			return nil
		}
	}
}

// execute runs one intent through warm-up, the residual wait, and the
// booking attempt, then persists the outcome immediately.
func (l *Loop) execute(ctx context.Context, idx int, it schedule.Intent) {
	log := l.Log.With("facility", it.Facility, "slot", it.SlotLabel)
	log.Info("preparing booking", "execute_at", it.ExecuteAt)

	// warm-up inside the margin; intent state stays untouched
	courtHint := ""
	if prepped, err := l.exec.Prepare(ctx, it.Facility, it.CourtHint); err != nil {
		log.Warn("preparation failed", "err", err)
	} else {
		courtHint = prepped
	}

	it.Status = schedule.StatusExecuting
	if err := l.Store.Update(idx, it); err != nil {
		log.Error("mark executing failed", "err", err)
		return
	}
	if err := l.Store.Save(); err != nil {
		log.Warn("persist executing marker failed", "err", err)
	}

	// sleep the residual delta down to the exact opening instant
	if d := it.ExecuteAt.Sub(l.Clock.Now()); d > 0 {
		log.Info("waiting for opening instant", "residual", d)
		if err := l.Clock.Sleep(ctx, d); err != nil {
			it.Status = schedule.StatusFailed
			it.Error = "cancelled before execution: " + err.Error()
			_ = l.Store.Update(idx, it)
			if serr := l.Store.Save(); serr != nil {
				log.Error("persist outcome failed", "err", serr)
			}
			return
		}
	}

	log.Info("booking now")
	res, err := l.exec.Execute(ctx, booking.Request{
		Facility:    it.Facility,
		Date:        it.TargetDate,
		SlotLabel:   it.SlotLabel,
		CourtHint:   courtHint,
		CachedCourt: it.CourtHint,
		Strategy:    l.Strategy,
	})

	switch {
	case err != nil:
		it.Status = schedule.StatusFailed
		it.Error = err.Error()
		log.Error("booking failed", "err", err)
	case res.Booked:
		it.Status = schedule.StatusSuccess
		it.Error = ""
		it.CourtHint = res.CourtID
		it.BookingRef = res.Confirmation
		log.Info("booking succeeded", "court", res.CourtID, "ref", res.Confirmation)
	default:
		it.Status = schedule.StatusFailed
		it.Error = fmt.Sprintf("slot %q unavailable on all %d court(s)", it.SlotLabel, res.CourtsTried)
		log.Warn("slot unavailable everywhere", "courts_tried", res.CourtsTried)
	}

	_ = l.Store.Update(idx, it)
	if err := l.Store.Save(); err != nil {
		log.Error("persist outcome failed", "err", err)
	}
}

// checkReloadSignal honors the out-of-band reload sentinel. The file is
// removed after acting so the signal fires at most once.
func (l *Loop) checkReloadSignal() {
	if l.ReloadSignal == "" {
		return
	}
	if _, err := os.Stat(l.ReloadSignal); err != nil {
		return
	}
	l.Log.Info("reload signal detected, reloading credentials")
	if err := l.refreshExecutor(); err != nil {
		l.Log.Error("credential reload failed", "err", err)
	}
	if err := os.Remove(l.ReloadSignal); err != nil && !errors.Is(err, os.ErrNotExist) {
		l.Log.Warn("could not clear reload signal", "err", err)
	}
}

// refreshIfSessionChanged polls the session file's mtime on a bounded
// interval and reloads credentials when the external login flow has
// rewritten it.
func (l *Loop) refreshIfSessionChanged() {
	now := l.Clock.Now()
	if now.Sub(l.lastCookieCheck) < l.CookieCheckInterval {
		return
	}
	l.lastCookieCheck = now
	if l.Sessions == nil {
		return
	}
	if !l.Sessions.ModifiedSince(l.credsLoadedAt) {
		return
	}
	l.Log.Info("session file updated, reloading credentials")
	if err := l.refreshExecutor(); err != nil {
		l.Log.Error("credential reload failed", "err", err)
	}
}

func (l *Loop) refreshExecutor() error {
	exec, err := l.NewExecutor()
	if err != nil {
		return err
	}
	l.exec = exec
	// wall time, not Clock: compared against the session file's mtime
	l.credsLoadedAt = time.Now()
	return nil
}
