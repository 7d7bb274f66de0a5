// Package booking implements the reservation attempt itself: pick a court,
// find the wanted window on it, claim it, and race across the remaining
// courts when the first choice is taken.
package booking

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/example/court-scheduler/internal/catalog"
)

// Strategy picks the first court to try when a facility is backed by
// several interchangeable ones.
type Strategy string

const (
	// StrategyRandom spreads independent clients across courts so they do
	// not all collide on the same one at the opening instant.
	StrategyRandom Strategy = "random"
	// StrategyFirst is deterministic; mainly for testing.
	StrategyFirst Strategy = "first"
	// StrategyCached prefers the court a previous booking succeeded on.
	StrategyCached Strategy = "cached"
)

func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case StrategyRandom, StrategyFirst, StrategyCached:
		return Strategy(s), nil
	}
	return "", fmt.Errorf("booking: unknown strategy %q", s)
}

// Provider is what the executor needs from the catalog layer.
type Provider interface {
	Facility(name string) (catalog.Facility, error)
	ListCourts(ctx context.Context, f catalog.Facility) ([]string, error)
	ListSlots(ctx context.Context, f catalog.Facility, courtID string, date time.Time) ([]catalog.Slot, error)
	Reserve(ctx context.Context, f catalog.Facility, courtID string, s catalog.Slot, date time.Time) (string, error)
	RememberCourt(name, courtID string)
	Warm(ctx context.Context)
}

type Request struct {
	Facility  string
	Date      time.Time
	SlotLabel string

	// CourtHint pins the attempt to one court: no discovery, no fallback.
	CourtHint string
	// CachedCourt feeds StrategyCached; unlike CourtHint it only biases
	// the starting point and keeps the full fallback sweep.
	CachedCourt string

	Strategy Strategy
	DryRun   bool
}

// Result reports how an attempt ended. An unbooked Result with a nil error
// is the expected "slot gone everywhere" outcome, not a failure of the
// attempt machinery.
type Result struct {
	Booked       bool
	DryRun       bool
	CourtID      string
	Confirmation string
	CourtsTried  int
}

type Executor struct {
	Provider Provider
	Log      *slog.Logger
}

func New(p Provider, log *slog.Logger) *Executor {
	if log == nil {
		log = slog.Default()
	}
	return &Executor{Provider: p, Log: log}
}

func (e *Executor) log() *slog.Logger {
	if e.Log != nil {
		return e.Log
	}
	return slog.Default()
}

// Execute runs one full reservation attempt. Per-court misses are absorbed;
// only unknown facilities and failed discovery surface as errors.
func (e *Executor) Execute(ctx context.Context, req Request) (Result, error) {
	log := e.log().With("facility", req.Facility, "slot", req.SlotLabel)

	f, err := e.Provider.Facility(req.Facility)
	if err != nil {
		return Result{}, err
	}

	// pinned court: single attempt, no contention handling
	if req.CourtHint != "" {
		log.Info("attempting pinned court", "court", short(req.CourtHint))
		if res, ok := e.attempt(ctx, f, req.CourtHint, req, log); ok {
			e.Provider.RememberCourt(f.Name, res.CourtID)
			res.CourtsTried = 1
			return res, nil
		}
		return Result{CourtsTried: 1}, nil
	}

	courts, err := e.Provider.ListCourts(ctx, f)
	if err != nil {
		return Result{}, err
	}

	if len(courts) == 1 {
		log.Info("single-court facility", "court", short(courts[0]))
		if res, ok := e.attempt(ctx, f, courts[0], req, log); ok {
			e.Provider.RememberCourt(f.Name, res.CourtID)
			res.CourtsTried = 1
			return res, nil
		}
		return Result{CourtsTried: 1}, nil
	}

	cached := req.CachedCourt
	if cached == "" {
		cached = f.CourtID
	}
	initial := selectInitial(courts, cached, req.Strategy)
	log.Info("racing courts", "count", len(courts), "strategy", string(req.Strategy), "initial", short(initial))

	tried := 0
	if res, ok := e.attempt(ctx, f, initial, req, log); ok {
		e.Provider.RememberCourt(f.Name, res.CourtID)
		res.CourtsTried = 1
		return res, nil
	}
	tried++

	// initial court missed; sweep the rest in catalog order
	for _, courtID := range courts {
		if courtID == initial {
			continue
		}
		if err := ctx.Err(); err != nil {
			return Result{CourtsTried: tried}, err
		}
		if res, ok := e.attempt(ctx, f, courtID, req, log); ok {
			e.Provider.RememberCourt(f.Name, res.CourtID)
			res.CourtsTried = tried + 1
			return res, nil
		}
		tried++
	}

	log.Info("slot unavailable on all courts", "courts", len(courts))
	return Result{CourtsTried: len(courts)}, nil
}

// attempt tries one court. Every failure mode here is a local miss: slot
// listing failed, label absent, or the reservation was rejected.
func (e *Executor) attempt(ctx context.Context, f catalog.Facility, courtID string, req Request, log *slog.Logger) (Result, bool) {
	slots, err := e.Provider.ListSlots(ctx, f, courtID, req.Date)
	if err != nil {
		log.Debug("slot listing failed", "court", short(courtID), "err", err)
		return Result{}, false
	}

	var target *catalog.Slot
	for i := range slots {
		if slots[i].Label == req.SlotLabel {
			target = &slots[i]
			break
		}
	}
	if target == nil {
		log.Debug("slot not offered on court", "court", short(courtID))
		return Result{}, false
	}

	if req.DryRun {
		log.Info("dry run, skipping reservation", "court", short(courtID))
		return Result{Booked: true, DryRun: true, CourtID: courtID}, true
	}

	conf, err := e.Provider.Reserve(ctx, f, courtID, *target, req.Date)
	if err != nil {
		log.Debug("reservation rejected", "court", short(courtID), "err", err)
		return Result{}, false
	}
	log.Info("reservation confirmed", "court", short(courtID), "confirmation", conf)
	return Result{Booked: true, CourtID: courtID, Confirmation: conf}, true
}

// Prepare warms the transport and, for single-court facilities, resolves
// the court ahead of time. Safe to call inside the preparation margin; it
// never mutates intent state.
func (e *Executor) Prepare(ctx context.Context, facility, hint string) (string, error) {
	f, err := e.Provider.Facility(facility)
	if err != nil {
		return "", err
	}
	e.Provider.Warm(ctx)
	if hint != "" {
		return hint, nil
	}
	courts, err := e.Provider.ListCourts(ctx, f)
	if err != nil {
		return "", err
	}
	if len(courts) == 1 {
		return courts[0], nil
	}
	return "", nil
}

func selectInitial(courts []string, cached string, strategy Strategy) string {
	if strategy == StrategyCached && cached != "" {
		for _, c := range courts {
			if c == cached {
				return c
			}
		}
		// cached court no longer exists; fall through to a random pick
	}
	switch strategy {
	case StrategyFirst:
		return courts[0]
	default:
		return courts[rand.IntN(len(courts))]
	}
}

func short(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
