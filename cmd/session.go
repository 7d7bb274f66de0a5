package cmd

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/court-scheduler/internal/campusrec"
	"github.com/example/court-scheduler/internal/catalog"
	"github.com/example/court-scheduler/internal/session"
)

func newSessionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Inspect and manage the stored login session",
	}
	cmd.AddCommand(newSessionStatusCmd())
	cmd.AddCommand(newSessionImportCmd())
	cmd.AddCommand(newSessionReloadCmd())
	return cmd
}

func newSessionStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show session age and verify it against the booking site",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			store, err := openSessionStore(cfg)
			if err != nil {
				return err
			}
			creds, err := store.Load()
			if errors.Is(err, session.ErrNotFound) {
				return fmt.Errorf("no session stored at %s (run `courtsched session import`)", store.Path())
			}
			if err != nil {
				return err
			}

			age := time.Since(creds.IssuedAt).Round(time.Minute)
			fmt.Printf("session: %d cookie(s), issued %s ago", len(creds.Cookies), age)
			if !creds.IsFresh(time.Now(), cfg.SessionMaxAge) {
				fmt.Printf(" (past the %s trust window)", cfg.SessionMaxAge)
			}
			fmt.Println()

			// probe a known facility to see whether the upstream still honors
			// the cookies
			f, ok := catalog.NewRegistry().Lookup("ARC_MP1")
			if !ok {
				return errors.New("probe facility missing from registry")
			}
			client := campusrec.New(cfg.BaseURL, creds.Cookies, cfg.HTTPTimeout)
			if err := client.Probe(cmd.Context(), f.ProductID); err != nil {
				if errors.Is(err, campusrec.ErrUnauthorized) {
					return fmt.Errorf("session rejected upstream, log in again and re-import")
				}
				return fmt.Errorf("probe failed: %w", err)
			}
			fmt.Println("session accepted upstream")
			return nil
		},
	}
}

func newSessionImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <cookies.json>",
		Short: "Import a cookie export from the external login flow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			store, err := openSessionStore(cfg)
			if err != nil {
				return err
			}

			b, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			creds, err := session.ParseExport(b, time.Now())
			if err != nil {
				return err
			}
			if err := store.Save(creds); err != nil {
				return err
			}
			fmt.Printf("imported %d cookie(s) into %s\n", len(creds.Cookies), store.Path())
			return nil
		},
	}
}

func newSessionReloadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reload",
		Short: "Signal a running scheduler to reload its credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := os.WriteFile(cfg.ReloadSignalFile, nil, 0o644); err != nil {
				return err
			}
			fmt.Printf("reload signal written to %s\n", cfg.ReloadSignalFile)
			return nil
		},
	}
}
