package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/opencouncil/docfind/internal/config"
	"github.com/opencouncil/docfind/internal/logging"
	"github.com/opencouncil/docfind/internal/store"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the database schema",
	Long: `Apply the docfind schema: documents, chunks, events, chat audit, and
the vector similarity index. Statements are idempotent; running migrate
against an up-to-date database is a no-op.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMigrate()
	},
}

func runMigrate() error {
	ctx := context.Background()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	db, err := store.New(ctx, store.Config{
		URL:      cfg.Database.URL.Value(),
		MaxConns: int32(cfg.Database.MaxConns),
	}, logger.Named("store"))
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("applying schema: %w", err)
	}
	if err := db.EnsureVectorIndex(ctx); err != nil {
		return fmt.Errorf("creating vector index: %w", err)
	}

	logger.Info("migration complete", zap.String("version", version))
	return nil
}
