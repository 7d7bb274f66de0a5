package schedule

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewIntentDefaultsExecuteAtToWindowOpening(t *testing.T) {
	target := time.Date(2026, 9, 4, 18, 0, 0, 0, time.UTC)
	it := NewIntent("ARC_MP1", target, "6:00 PM - 7:00 PM", time.Time{})

	require.Equal(t, StatusPending, it.Status)
	require.True(t, it.ExecuteAt.Equal(target.Add(-72*time.Hour)))
}

func TestNewIntentKeepsExplicitExecuteAt(t *testing.T) {
	target := time.Date(2026, 9, 4, 18, 0, 0, 0, time.UTC)
	at := target.Add(-time.Hour)
	it := NewIntent("ARC_MP1", target, "6:00 PM - 7:00 PM", at)
	require.True(t, it.ExecuteAt.Equal(at))
}

func TestIntentValidate(t *testing.T) {
	target := time.Date(2026, 9, 4, 18, 0, 0, 0, time.UTC)

	require.NoError(t, NewIntent("ARC_MP1", target, "6:00 PM - 7:00 PM", time.Time{}).Validate())
	require.Error(t, NewIntent("", target, "6:00 PM - 7:00 PM", time.Time{}).Validate())
	require.Error(t, NewIntent("ARC_MP1", target, "", time.Time{}).Validate())
	require.Error(t, NewIntent("ARC_MP1", time.Time{}, "6:00 PM - 7:00 PM", target).Validate())
	require.Error(t, NewIntent("ARC_MP1", target, "6:00 PM - 7:00 PM", target.Add(time.Minute)).Validate())
}

func TestAppendRoundTripsAcrossStores(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bookings_schedule.json")
	target := time.Date(2026, 9, 4, 18, 0, 0, 0, time.UTC)

	w := NewStore(path)
	require.NoError(t, w.Append(NewIntent("ARC_MP1", target, "6:00 PM - 7:00 PM", time.Time{})))
	require.NoError(t, w.Append(NewIntent("ARC_GYM2", target.Add(time.Hour), "7:00 PM - 8:00 PM", time.Time{})))

	r := NewStore(path)
	require.NoError(t, r.Reload())
	require.Equal(t, 2, r.Len())

	got, ok := r.Get(0)
	require.True(t, ok)
	require.Equal(t, "ARC_MP1", got.Facility)
	require.Equal(t, "6:00 PM - 7:00 PM", got.SlotLabel)
	require.True(t, got.ExecuteAt.Equal(target.Add(-72*time.Hour)))
	require.Equal(t, StatusPending, got.Status)
}

func TestReloadMissingFileIsEmpty(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, s.Reload())
	require.Zero(t, s.Len())
}

func TestReloadCorruptFileResetsAndReports(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bookings_schedule.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	s := NewStore(path)
	err := s.Reload()
	require.ErrorIs(t, err, ErrCorrupt)
	require.Zero(t, s.Len())
}

func TestCancelOnlyRemovesPending(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bookings_schedule.json")
	target := time.Date(2026, 9, 4, 18, 0, 0, 0, time.UTC)

	s := NewStore(path)
	require.NoError(t, s.Append(NewIntent("ARC_MP1", target, "6:00 PM - 7:00 PM", time.Time{})))

	done := NewIntent("ARC_GYM2", target, "7:00 PM - 8:00 PM", time.Time{})
	done.Status = StatusSuccess
	s.intents = append(s.intents, done)
	require.NoError(t, s.Save())

	removed, err := s.Cancel(1)
	require.NoError(t, err)
	require.False(t, removed)

	removed, err = s.Cancel(0)
	require.NoError(t, err)
	require.True(t, removed)

	removed, err = s.Cancel(5)
	require.NoError(t, err)
	require.False(t, removed)

	r := NewStore(path)
	require.NoError(t, r.Reload())
	require.Equal(t, 1, r.Len())
	got, _ := r.Get(0)
	require.Equal(t, "ARC_GYM2", got.Facility)
}

func TestNextPendingPicksEarliestExecuteAt(t *testing.T) {
	target := time.Date(2026, 9, 4, 18, 0, 0, 0, time.UTC)
	s := NewStore(filepath.Join(t.TempDir(), "bookings_schedule.json"))

	late := NewIntent("A", target.Add(2*time.Hour), "x", time.Time{})
	early := NewIntent("B", target, "x", time.Time{})
	finished := NewIntent("C", target.Add(-time.Hour), "x", target.Add(-74*time.Hour))
	finished.Status = StatusSuccess
	s.intents = []Intent{late, finished, early}

	idx, it, ok := s.NextPending()
	require.True(t, ok)
	require.Equal(t, 2, idx)
	require.Equal(t, "B", it.Facility)

	s.intents = []Intent{finished}
	_, _, ok = s.NextPending()
	require.False(t, ok)
}

func TestReconcileInterrupted(t *testing.T) {
	target := time.Date(2026, 9, 4, 18, 0, 0, 0, time.UTC)
	s := NewStore(filepath.Join(t.TempDir(), "bookings_schedule.json"))

	stuck := NewIntent("A", target, "x", time.Time{})
	stuck.Status = StatusExecuting
	pend := NewIntent("B", target, "x", time.Time{})
	s.intents = []Intent{stuck, pend}

	require.Equal(t, 1, s.ReconcileInterrupted())

	got, _ := s.Get(0)
	require.Equal(t, StatusFailed, got.Status)
	require.Contains(t, got.Error, "interrupted while executing")

	got, _ = s.Get(1)
	require.Equal(t, StatusPending, got.Status)
}

func TestSaveIsAtomic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bookings_schedule.json")
	target := time.Date(2026, 9, 4, 18, 0, 0, 0, time.UTC)

	s := NewStore(path)
	require.NoError(t, s.Append(NewIntent("A", target, "x", time.Time{})))

	_, err := os.Stat(path + ".tmp")
	require.True(t, os.IsNotExist(err))
}
