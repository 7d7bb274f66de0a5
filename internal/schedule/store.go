// Package schedule holds the durable queue of booking intents. The store is
// a single flat JSON file shared with external writers (the dashboard
// appends, humans edit), so the discipline is reload before every decision
// and persist immediately after every mutation.
package schedule

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusExecuting Status = "executing"
	StatusSuccess   Status = "success"
	StatusFailed    Status = "failed"
)

// BookingWindow is the fixed lead time: slots open for reservation exactly
// this long before the slot start.
const BookingWindow = 72 * time.Hour

// Intent is one scheduled booking attempt. Intents are identified by their
// position in the store; ExecuteAt never changes once set.
type Intent struct {
	Facility   string    `json:"facility"`
	TargetDate time.Time `json:"target_date"`
	SlotLabel  string    `json:"slot_label"`
	ExecuteAt  time.Time `json:"execute_at"`
	CourtHint  string    `json:"court_hint,omitempty"`
	Status     Status    `json:"status"`
	Error      string    `json:"error,omitempty"`
	BookingRef string    `json:"booking_ref,omitempty"`
}

// NewIntent builds a pending intent. A zero executeAt defaults to the
// instant the booking window opens.
func NewIntent(facility string, targetDate time.Time, slotLabel string, executeAt time.Time) Intent {
	if executeAt.IsZero() {
		executeAt = targetDate.Add(-BookingWindow)
	}
	return Intent{
		Facility:   facility,
		TargetDate: targetDate,
		SlotLabel:  slotLabel,
		ExecuteAt:  executeAt,
		Status:     StatusPending,
	}
}

func (i Intent) Validate() error {
	if i.Facility == "" {
		return fmt.Errorf("facility required")
	}
	if i.SlotLabel == "" {
		return fmt.Errorf("slot label required")
	}
	if i.TargetDate.IsZero() {
		return fmt.Errorf("target date required")
	}
	if i.ExecuteAt.After(i.TargetDate) {
		return fmt.Errorf("execute-at must not be after the target date")
	}
	return nil
}

func (i Intent) TimeUntil(now time.Time) time.Duration {
	return i.ExecuteAt.Sub(now)
}

// ErrCorrupt marks a store file that failed to parse. The in-memory
// schedule resets to empty so the loop keeps running; the caller is
// expected to log loudly.
var ErrCorrupt = errors.New("schedule: corrupt store")

type Store struct {
	path    string
	intents []Intent
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

func (s *Store) Path() string { return s.path }

type fileSchedule struct {
	Bookings []Intent `json:"bookings"`
}

// Reload replaces the in-memory schedule with the file contents. A missing
// file is an empty schedule; a corrupt file resets to empty and reports
// ErrCorrupt.
func (s *Store) Reload() error {
	b, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		s.intents = nil
		return nil
	}
	if err != nil {
		return fmt.Errorf("schedule: read %s: %w", s.path, err)
	}
	var f fileSchedule
	if err := json.Unmarshal(b, &f); err != nil {
		s.intents = nil
		return fmt.Errorf("%w (%s): %v", ErrCorrupt, s.path, err)
	}
	s.intents = f.Bookings
	return nil
}

// Save writes the schedule atomically (temp file + rename) so a concurrent
// reader never observes a partial write.
func (s *Store) Save() error {
	data, err := json.MarshalIndent(fileSchedule{Bookings: s.intents}, "", "  ")
	if err != nil {
		return fmt.Errorf("schedule: marshal: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("schedule: write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("schedule: rename %s: %w", tmp, err)
	}
	return nil
}

// Append reloads, validates, appends and persists in one step so a CLI
// enqueue does not clobber intents added by another process.
func (s *Store) Append(it Intent) error {
	if err := it.Validate(); err != nil {
		return err
	}
	if err := s.Reload(); err != nil && !errors.Is(err, ErrCorrupt) {
		return err
	}
	s.intents = append(s.intents, it)
	return s.Save()
}

// Cancel removes the intent at index if it is still pending and persists.
// Anything already executing or terminal is left alone.
func (s *Store) Cancel(index int) (bool, error) {
	if index < 0 || index >= len(s.intents) {
		return false, nil
	}
	if s.intents[index].Status != StatusPending {
		return false, nil
	}
	s.intents = append(s.intents[:index], s.intents[index+1:]...)
	return true, s.Save()
}

// Intents returns a copy; mutations go through Update.
func (s *Store) Intents() []Intent {
	out := make([]Intent, len(s.intents))
	copy(out, s.intents)
	return out
}

func (s *Store) Len() int { return len(s.intents) }

func (s *Store) Get(index int) (Intent, bool) {
	if index < 0 || index >= len(s.intents) {
		return Intent{}, false
	}
	return s.intents[index], true
}

func (s *Store) Update(index int, it Intent) error {
	if index < 0 || index >= len(s.intents) {
		return fmt.Errorf("schedule: index %d out of range", index)
	}
	s.intents[index] = it
	return nil
}

// NextPending returns the pending intent with the earliest ExecuteAt.
// Ties go to store order.
func (s *Store) NextPending() (int, Intent, bool) {
	best := -1
	for i, it := range s.intents {
		if it.Status != StatusPending {
			continue
		}
		if best == -1 || it.ExecuteAt.Before(s.intents[best].ExecuteAt) {
			best = i
		}
	}
	if best == -1 {
		return 0, Intent{}, false
	}
	return best, s.intents[best], true
}

// ReconcileInterrupted fails any intent left in the executing state by a
// crashed run. The booking window has long closed by the time a restart
// sees these, so re-attempting would fire into a closed window; they need
// a human to check the upstream booking list.
func (s *Store) ReconcileInterrupted() int {
	n := 0
	for i, it := range s.intents {
		if it.Status != StatusExecuting {
			continue
		}
		it.Status = StatusFailed
		it.Error = "interrupted while executing; verify upstream booking manually"
		s.intents[i] = it
		n++
	}
	return n
}
