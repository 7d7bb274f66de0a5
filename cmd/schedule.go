package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/court-scheduler/internal/schedule"
)

func newScheduleCmd() *cobra.Command {
	var (
		facility  string
		date      string
		slot      string
		executeAt string
		court     string
	)

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Queue a booking to fire when its reservation window opens",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			target, err := parseTarget(date, slot)
			if err != nil {
				return err
			}

			var execAt time.Time
			if executeAt != "" {
				execAt, err = time.ParseInLocation(time.RFC3339, executeAt, time.Local)
				if err != nil {
					return fmt.Errorf("parse --execute-at: %w", err)
				}
			}

			it := schedule.NewIntent(facility, target, slot, execAt)
			it.CourtHint = court
			if err := it.Validate(); err != nil {
				return err
			}

			store := schedule.NewStore(cfg.ScheduleFile)
			if err := store.Append(it); err != nil {
				return err
			}

			fmt.Printf("scheduled %s %q on %s\n", it.Facility, it.SlotLabel, it.TargetDate.Format("Mon Jan 2 15:04"))
			fmt.Printf("executes at %s (in %s)\n", it.ExecuteAt.Format(time.RFC3339), it.TimeUntil(time.Now()).Round(time.Second))
			return nil
		},
	}

	cmd.Flags().StringVar(&facility, "facility", "", "facility name, e.g. ARC_MP1")
	cmd.Flags().StringVar(&date, "date", "", "target date, YYYY-MM-DD")
	cmd.Flags().StringVar(&slot, "slot", "", `slot label, e.g. "6:00 PM - 7:00 PM"`)
	cmd.Flags().StringVar(&executeAt, "execute-at", "", "override execution instant (RFC3339; default: window opening)")
	cmd.Flags().StringVar(&court, "court", "", "court id to try first")
	_ = cmd.MarkFlagRequired("facility")
	_ = cmd.MarkFlagRequired("date")
	_ = cmd.MarkFlagRequired("slot")

	return cmd
}

// parseTarget combines a calendar date with the start time taken from the
// slot label, so the execution instant lands exactly 72 hours before the
// slot begins rather than before midnight.
func parseTarget(date, slot string) (time.Time, error) {
	day, err := time.ParseInLocation("2006-01-02", date, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse --date: %w", err)
	}

	start := slot
	if i := strings.Index(slot, " - "); i >= 0 {
		start = slot[:i]
	}
	start = strings.TrimSpace(start)
	for _, layout := range []string{"3:04 PM", "3 PM"} {
		if t, err := time.ParseInLocation(layout, start, time.Local); err == nil {
			return time.Date(day.Year(), day.Month(), day.Day(), t.Hour(), t.Minute(), 0, 0, time.Local), nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot read a start time from slot label %q", slot)
}
