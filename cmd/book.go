package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/court-scheduler/internal/booking"
	"github.com/example/court-scheduler/internal/catalog"
)

func newBookCmd() *cobra.Command {
	var (
		facility string
		date     string
		slot     string
		court    string
		strategy string
		dryRun   bool
		yes      bool
		force    bool
	)

	cmd := &cobra.Command{
		Use:   "book",
		Short: "Book a slot right now",
		Long: `Book attempts a reservation immediately with the current session. Use it
for slots already inside their reservation window; for windows that have
not opened yet, use schedule + run.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			strat, err := booking.ParseStrategy(strategy)
			if err != nil {
				return err
			}

			target, err := parseTarget(date, slot)
			if err != nil {
				return err
			}

			sessions, err := openSessionStore(cfg)
			if err != nil {
				return err
			}
			creds, err := sessions.Load()
			if err != nil {
				return err
			}
			if !creds.IsFresh(time.Now(), cfg.SessionMaxAge) {
				slog.Warn("session cookies are past their trusted age, booking may fail",
					"issued_at", creds.IssuedAt)
			}

			ctx := cmd.Context()
			cat := newCatalog(cfg, creds)

			if !force {
				f, err := cat.Facility(facility)
				if errors.Is(err, catalog.ErrUnknownFacility) {
					return fmt.Errorf("%w (known: %s)", err, strings.Join(cat.Reg.Names(), ", "))
				}
				if err != nil {
					return err
				}
				avail, err := cat.AggregateSlots(ctx, f, target)
				if err != nil {
					return err
				}
				found := false
				for _, av := range avail {
					if av.Label == slot {
						found = true
						fmt.Printf("%q open on %d of %d court(s)\n", av.Label, av.Courts, av.TotalCourts)
					}
				}
				if !found {
					fmt.Printf("%q is not currently listed for %s; available:\n", slot, target.Format("Mon Jan 2"))
					for _, av := range avail {
						fmt.Printf("  %-20s %d/%d court(s)\n", av.Label, av.Courts, av.TotalCourts)
					}
					return fmt.Errorf("slot not available (use --force to try anyway)")
				}
			}

			if !yes && !dryRun {
				fmt.Printf("book %s %q on %s? [yes/no] ", facility, slot, target.Format("Mon Jan 2"))
				line, _ := bufio.NewReader(os.Stdin).ReadString('\n')
				if strings.TrimSpace(strings.ToLower(line)) != "yes" {
					fmt.Println("aborted")
					return nil
				}
			}

			exec := booking.New(cat, slog.Default())
			res, err := exec.Execute(ctx, booking.Request{
				Facility:  facility,
				Date:      target,
				SlotLabel: slot,
				CourtHint: court,
				Strategy:  strat,
				DryRun:    dryRun,
			})
			if err != nil {
				return err
			}
			switch {
			case res.DryRun:
				fmt.Printf("dry run: would book court %s\n", res.CourtID)
			case res.Booked:
				fmt.Printf("booked court %s (ref %s)\n", res.CourtID, res.Confirmation)
			default:
				return fmt.Errorf("slot %q unavailable on all %d court(s)", slot, res.CourtsTried)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&facility, "facility", "", "facility name, e.g. ARC_MP1")
	cmd.Flags().StringVar(&date, "date", "", "target date, YYYY-MM-DD")
	cmd.Flags().StringVar(&slot, "slot", "", `slot label, e.g. "6:00 PM - 7:00 PM"`)
	cmd.Flags().StringVar(&court, "court", "", "court id to book directly, skipping fallback")
	cmd.Flags().StringVar(&strategy, "strategy", "random", "court selection: random, first, cached")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "resolve everything but do not reserve")
	cmd.Flags().BoolVar(&yes, "yes", false, "skip the confirmation prompt")
	cmd.Flags().BoolVar(&force, "force", false, "skip the availability pre-check")
	_ = cmd.MarkFlagRequired("facility")
	_ = cmd.MarkFlagRequired("date")
	_ = cmd.MarkFlagRequired("slot")

	return cmd
}
