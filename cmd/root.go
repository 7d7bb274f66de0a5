package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/court-scheduler/internal/booking"
	"github.com/example/court-scheduler/internal/campusrec"
	"github.com/example/court-scheduler/internal/catalog"
	"github.com/example/court-scheduler/internal/config"
	"github.com/example/court-scheduler/internal/session"
)

var (
	Version   = "dev"
	CommitSHA = "none"
	BuildDate = "unknown"
)

var (
	cfgFile string
	verbose bool
)

func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "courtsched",
		Short:        "Books facility slots the instant their 72-hour reservation window opens",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelInfo
			if verbose {
				level = slog.LevelDebug
			}
			h := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
			slog.SetDefault(slog.New(h))
		},
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./courtsched.{yaml,json})")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(newVersionCmd())
	root.AddCommand(newKeysCmd())
	root.AddCommand(newBookCmd())
	root.AddCommand(newScheduleCmd())
	root.AddCommand(newListCmd())
	root.AddCommand(newCancelCmd())
	root.AddCommand(newRunCmd())
	root.AddCommand(newSessionCmd())

	return root
}

func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() (config.Config, error) {
	return config.Load(cfgFile)
}

func openSessionStore(cfg config.Config) (*session.Store, error) {
	hashKey, blockKey, err := cfg.SessionKeys()
	if err != nil {
		return nil, err
	}
	return session.NewStore(cfg.SessionFile, hashKey, blockKey), nil
}

func newCatalog(cfg config.Config, creds session.Credentials) *catalog.Catalog {
	client := campusrec.New(cfg.BaseURL, creds.Cookies, cfg.HTTPTimeout)
	reg := catalog.NewRegistry()
	for name, productID := range cfg.Facilities {
		reg.Add(name, productID)
	}
	return catalog.New(client, reg)
}

func newExecutor(cfg config.Config, creds session.Credentials) *booking.Executor {
	return booking.New(newCatalog(cfg, creds), slog.Default())
}
