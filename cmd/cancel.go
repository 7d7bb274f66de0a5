package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/example/court-scheduler/internal/schedule"
)

func newCancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <index>",
		Short: "Remove a pending booking from the queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("index must be a number, got %q", args[0])
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			store := schedule.NewStore(cfg.ScheduleFile)
			if err := store.Reload(); err != nil {
				return err
			}

			removed, err := store.Cancel(idx)
			if err != nil {
				return err
			}
			if !removed {
				return fmt.Errorf("booking %d is not pending and cannot be cancelled", idx)
			}
			fmt.Printf("cancelled booking %d\n", idx)
			return nil
		},
	}
}
