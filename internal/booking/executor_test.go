package booking

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/court-scheduler/internal/catalog"
)

type fakeProvider struct {
	facilities map[string]catalog.Facility
	courts     []string
	// slots per court id
	slots map[string][]catalog.Slot

	listSlotsErr map[string]error
	reserveErr   map[string]error

	reserveCalls []string
	remembered   string
	warmed       bool
}

func (f *fakeProvider) Facility(name string) (catalog.Facility, error) {
	fac, ok := f.facilities[name]
	if !ok {
		return catalog.Facility{}, catalog.ErrUnknownFacility
	}
	return fac, nil
}

func (f *fakeProvider) ListCourts(ctx context.Context, fac catalog.Facility) ([]string, error) {
	if f.courts == nil {
		return nil, catalog.ErrNoCourts
	}
	return f.courts, nil
}

func (f *fakeProvider) ListSlots(ctx context.Context, fac catalog.Facility, courtID string, date time.Time) ([]catalog.Slot, error) {
	if err := f.listSlotsErr[courtID]; err != nil {
		return nil, err
	}
	return f.slots[courtID], nil
}

func (f *fakeProvider) Reserve(ctx context.Context, fac catalog.Facility, courtID string, s catalog.Slot, date time.Time) (string, error) {
	f.reserveCalls = append(f.reserveCalls, courtID)
	if err := f.reserveErr[courtID]; err != nil {
		return "", err
	}
	return "ref-" + courtID, nil
}

func (f *fakeProvider) RememberCourt(name, courtID string) { f.remembered = courtID }
func (f *fakeProvider) Warm(ctx context.Context)           { f.warmed = true }

func slot(label string) catalog.Slot {
	return catalog.Slot{ApptID: "appt", TimeslotID: "ts", InstanceID: "tsi", Label: label}
}

func newFake() *fakeProvider {
	return &fakeProvider{
		facilities: map[string]catalog.Facility{
			"ARC_MP1": {Name: "ARC_MP1", ProductID: "prod-1"},
		},
		slots:        map[string][]catalog.Slot{},
		listSlotsErr: map[string]error{},
		reserveErr:   map[string]error{},
	}
}

func TestExecuteSweepsCourtsUntilSlotFound(t *testing.T) {
	f := newFake()
	f.courts = []string{"A", "B", "C"}
	f.slots["A"] = []catalog.Slot{slot("5:00 PM - 6:00 PM")}
	f.slots["B"] = nil
	f.slots["C"] = []catalog.Slot{slot("6:00 PM - 7:00 PM")}

	e := New(f, nil)
	res, err := e.Execute(context.Background(), Request{
		Facility:  "ARC_MP1",
		Date:      time.Now(),
		SlotLabel: "6:00 PM - 7:00 PM",
		Strategy:  StrategyFirst,
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !res.Booked {
		t.Fatal("expected a booking")
	}
	if res.CourtID != "C" {
		t.Fatalf("booked court = %q, want C", res.CourtID)
	}
	if res.Confirmation != "ref-C" {
		t.Fatalf("confirmation = %q", res.Confirmation)
	}
	if res.CourtsTried != 3 {
		t.Fatalf("courts tried = %d, want 3", res.CourtsTried)
	}
	if f.remembered != "C" {
		t.Fatalf("remembered court = %q, want C", f.remembered)
	}
}

func TestExecuteRejectionIsLocalMiss(t *testing.T) {
	f := newFake()
	f.courts = []string{"A", "B"}
	f.slots["A"] = []catalog.Slot{slot("6:00 PM - 7:00 PM")}
	f.slots["B"] = []catalog.Slot{slot("6:00 PM - 7:00 PM")}
	f.reserveErr["A"] = errors.New("reserve rejected (error code 7)")

	e := New(f, nil)
	res, err := e.Execute(context.Background(), Request{
		Facility:  "ARC_MP1",
		Date:      time.Now(),
		SlotLabel: "6:00 PM - 7:00 PM",
		Strategy:  StrategyFirst,
	})
	if err != nil || !res.Booked || res.CourtID != "B" {
		t.Fatalf("res=%+v err=%v, want booked on B", res, err)
	}
	if res.CourtsTried != 2 {
		t.Fatalf("courts tried = %d, want 2", res.CourtsTried)
	}
}

func TestExecuteExhaustionIsNotAnError(t *testing.T) {
	f := newFake()
	f.courts = []string{"A", "B", "C"}

	e := New(f, nil)
	res, err := e.Execute(context.Background(), Request{
		Facility:  "ARC_MP1",
		Date:      time.Now(),
		SlotLabel: "6:00 PM - 7:00 PM",
		Strategy:  StrategyRandom,
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Booked {
		t.Fatal("nothing should have booked")
	}
	if res.CourtsTried != 3 {
		t.Fatalf("courts tried = %d, want 3", res.CourtsTried)
	}
	if len(f.reserveCalls) != 0 {
		t.Fatalf("reserve called %d times, want 0", len(f.reserveCalls))
	}
}

func TestExecutePinnedCourtNoFallback(t *testing.T) {
	f := newFake()
	f.courts = []string{"A", "B"}
	f.slots["B"] = []catalog.Slot{slot("6:00 PM - 7:00 PM")}

	e := New(f, nil)
	res, err := e.Execute(context.Background(), Request{
		Facility:  "ARC_MP1",
		Date:      time.Now(),
		SlotLabel: "6:00 PM - 7:00 PM",
		CourtHint: "A",
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Booked {
		t.Fatal("pinned miss must not fall back to other courts")
	}
	if res.CourtsTried != 1 {
		t.Fatalf("courts tried = %d, want 1", res.CourtsTried)
	}
}

func TestExecuteSingleCourtFastPath(t *testing.T) {
	f := newFake()
	f.courts = []string{"only"}
	f.slots["only"] = []catalog.Slot{slot("6:00 PM - 7:00 PM")}

	e := New(f, nil)
	res, err := e.Execute(context.Background(), Request{
		Facility:  "ARC_MP1",
		Date:      time.Now(),
		SlotLabel: "6:00 PM - 7:00 PM",
		Strategy:  StrategyRandom,
	})
	if err != nil || !res.Booked || res.CourtID != "only" || res.CourtsTried != 1 {
		t.Fatalf("res=%+v err=%v", res, err)
	}
}

func TestExecuteDryRunNeverReserves(t *testing.T) {
	f := newFake()
	f.courts = []string{"A"}
	f.slots["A"] = []catalog.Slot{slot("6:00 PM - 7:00 PM")}

	e := New(f, nil)
	res, err := e.Execute(context.Background(), Request{
		Facility:  "ARC_MP1",
		Date:      time.Now(),
		SlotLabel: "6:00 PM - 7:00 PM",
		Strategy:  StrategyFirst,
		DryRun:    true,
	})
	if err != nil || !res.Booked || !res.DryRun {
		t.Fatalf("res=%+v err=%v", res, err)
	}
	if len(f.reserveCalls) != 0 {
		t.Fatalf("reserve called during dry run")
	}
}

func TestExecuteUnknownFacility(t *testing.T) {
	e := New(newFake(), nil)
	_, err := e.Execute(context.Background(), Request{Facility: "NOPE", SlotLabel: "x"})
	if !errors.Is(err, catalog.ErrUnknownFacility) {
		t.Fatalf("err = %v, want ErrUnknownFacility", err)
	}
}

func TestExecuteDiscoveryErrorSurfaces(t *testing.T) {
	f := newFake()
	f.courts = nil

	e := New(f, nil)
	_, err := e.Execute(context.Background(), Request{Facility: "ARC_MP1", SlotLabel: "x"})
	if !errors.Is(err, catalog.ErrNoCourts) {
		t.Fatalf("err = %v, want ErrNoCourts", err)
	}
}

func TestCachedStrategyTriesCachedCourtFirst(t *testing.T) {
	f := newFake()
	f.courts = []string{"A", "B", "C"}
	f.slots["A"] = []catalog.Slot{slot("6:00 PM - 7:00 PM")}
	f.slots["C"] = []catalog.Slot{slot("6:00 PM - 7:00 PM")}

	e := New(f, nil)
	res, err := e.Execute(context.Background(), Request{
		Facility:    "ARC_MP1",
		Date:        time.Now(),
		SlotLabel:   "6:00 PM - 7:00 PM",
		CachedCourt: "C",
		Strategy:    StrategyCached,
	})
	if err != nil || !res.Booked {
		t.Fatalf("res=%+v err=%v", res, err)
	}
	if res.CourtID != "C" || res.CourtsTried != 1 {
		t.Fatalf("cached court not tried first: %+v", res)
	}
}

func TestSelectInitialCachedMissingFallsBack(t *testing.T) {
	courts := []string{"A", "B"}
	got := selectInitial(courts, "gone", StrategyCached)
	if got != "A" && got != "B" {
		t.Fatalf("selectInitial returned %q, want a member of the court set", got)
	}
}

func TestParseStrategy(t *testing.T) {
	for _, s := range []string{"random", "first", "cached"} {
		if _, err := ParseStrategy(s); err != nil {
			t.Fatalf("ParseStrategy(%q): %v", s, err)
		}
	}
	if _, err := ParseStrategy("greedy"); err == nil {
		t.Fatal("expected error for unknown strategy")
	}
}

func TestPrepareResolvesSingleCourt(t *testing.T) {
	f := newFake()
	f.courts = []string{"only"}

	e := New(f, nil)
	court, err := e.Prepare(context.Background(), "ARC_MP1", "")
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if court != "only" {
		t.Fatalf("court = %q, want only", court)
	}
	if !f.warmed {
		t.Fatal("transport was not warmed")
	}

	f.courts = []string{"A", "B"}
	court, err = e.Prepare(context.Background(), "ARC_MP1", "")
	if err != nil || court != "" {
		t.Fatalf("multi-court Prepare = %q, %v; want empty", court, err)
	}

	court, err = e.Prepare(context.Background(), "ARC_MP1", "pinned")
	if err != nil || court != "pinned" {
		t.Fatalf("hint passthrough = %q, %v", court, err)
	}
}
