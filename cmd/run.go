package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/court-scheduler/internal/booking"
	"github.com/example/court-scheduler/internal/schedule"
	"github.com/example/court-scheduler/internal/scheduler"
)

func newRunCmd() *cobra.Command {
	var daemon bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the scheduler loop over the booking queue",
		Long: `Run executes queued bookings at their opening instants. By default it
handles the next due booking and exits; with --daemon it keeps running
until interrupted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			strategy, err := booking.ParseStrategy(cfg.Strategy)
			if err != nil {
				return err
			}

			sessions, err := openSessionStore(cfg)
			if err != nil {
				return err
			}

			loop := &scheduler.Loop{
				Store:    schedule.NewStore(cfg.ScheduleFile),
				Sessions: sessions,
				NewExecutor: func() (scheduler.Executor, error) {
					creds, err := sessions.Load()
					if err != nil {
						return nil, err
					}
					if !creds.IsFresh(time.Now(), cfg.SessionMaxAge) {
						slog.Warn("session cookies are past their trusted age, booking may fail",
							"issued_at", creds.IssuedAt, "max_age", cfg.SessionMaxAge)
					}
					return newExecutor(cfg, creds), nil
				},
				Log:                 slog.Default(),
				Strategy:            strategy,
				PrepMargin:          cfg.PrepMargin,
				IdleSleep:           cfg.IdleSleep,
				MaxNap:              cfg.MaxNap,
				CookieCheckInterval: cfg.CookieCheckInterval,
				ReloadSignal:        cfg.ReloadSignalFile,
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := loop.Run(ctx, daemon); err != nil {
				if errors.Is(err, context.Canceled) {
					fmt.Println("scheduler stopped")
					return nil
				}
				return err
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&daemon, "daemon", false, "keep running until interrupted")
	return cmd
}
