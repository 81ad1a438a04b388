package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"server-presence-backend/config"
	"server-presence-backend/internal/db"
	"server-presence-backend/internal/logging"
	"server-presence-backend/internal/report"
	"server-presence-backend/internal/store"
)

var (
	digestRange string
	digestDate  string
)

var digestCmd = &cobra.Command{
	Use:   "digest",
	Short: "Generate an activity digest from collected data and print it",
	RunE:  runDigest,
}

func init() {
	digestCmd.Flags().StringVar(&digestRange, "range", "day", "Digest range: day, week, month or year")
	digestCmd.Flags().StringVar(&digestDate, "date", "", "Reference date (YYYY-MM-DD), defaults to today")
	rootCmd.AddCommand(digestCmd)
}

func runDigest(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration from %s: %w", configPath, err)
	}

	r, err := report.ParseRange(digestRange)
	if err != nil {
		return err
	}

	ref := time.Now().UTC()
	if digestDate != "" {
		ref, err = time.ParseInLocation("2006-01-02", digestDate, time.UTC)
		if err != nil {
			return fmt.Errorf("invalid date %q, use YYYY-MM-DD", digestDate)
		}
	}
	from, to := report.DateRange(r, ref)

	logger := logging.New(cfg.Logging)
	gormDB, err := db.Init(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	generator := report.NewGenerator(
		store.NewSessionStore(gormDB, db.PlayerSessionsTable),
		store.NewSessionStore(gormDB, db.WorldSessionsTable),
		store.NewSampleStore(gormDB, db.PlayerOnlineTable),
		store.NewWorldStatusStore(gormDB),
		logger,
	)

	digest, err := generator.Generate(context.Background(), r, from, to)
	if err != nil {
		return fmt.Errorf("failed to generate digest: %w", err)
	}

	fmt.Println(report.Render(digest))
	return nil
}
