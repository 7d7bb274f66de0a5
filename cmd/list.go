package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/court-scheduler/internal/schedule"
)

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Show queued bookings and their outcomes",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			store := schedule.NewStore(cfg.ScheduleFile)
			if err := store.Reload(); err != nil {
				return err
			}

			intents := store.Intents()
			if len(intents) == 0 {
				fmt.Println("no bookings scheduled")
				return nil
			}

			now := time.Now()
			for i, it := range intents {
				fmt.Printf("[%d] %-12s %s %q  %s", i, it.Facility, it.TargetDate.Format("Mon Jan 2"), it.SlotLabel, it.Status)
				switch it.Status {
				case schedule.StatusPending:
					fmt.Printf("  (fires in %s)", it.TimeUntil(now).Round(time.Second))
				case schedule.StatusSuccess:
					if it.BookingRef != "" {
						fmt.Printf("  ref=%s", it.BookingRef)
					}
				case schedule.StatusFailed:
					if it.Error != "" {
						fmt.Printf("  %s", it.Error)
					}
				}
				fmt.Println()
			}
			return nil
		},
	}
}
