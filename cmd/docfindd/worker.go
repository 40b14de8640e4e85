package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.uber.org/zap"

	"github.com/opencouncil/docfind/internal/config"
	"github.com/opencouncil/docfind/internal/embeddings"
	"github.com/opencouncil/docfind/internal/enricher"
	"github.com/opencouncil/docfind/internal/generation"
	"github.com/opencouncil/docfind/internal/logging"
	"github.com/opencouncil/docfind/internal/pipeline"
	"github.com/opencouncil/docfind/internal/segmenter"
	"github.com/opencouncil/docfind/internal/store"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the document pipeline worker",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWorker()
	},
}

func runWorker() error {
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

	logger.Info("starting docfindd worker",
		zap.String("version", version),
		zap.String("task_queue", cfg.Pipeline.TaskQueue))

	db, err := store.New(ctx, store.Config{
		URL:      cfg.Database.URL.Value(),
		MaxConns: int32(cfg.Database.MaxConns),
	}, logger.Named("store"))
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer db.Close()

	embedder, err := embeddings.NewService(embeddings.Config{
		BaseURL:   cfg.Embeddings.BaseURL,
		Dimension: cfg.Embeddings.Dimension,
		Timeout:   cfg.Embeddings.Timeout,
	})
	if err != nil {
		return fmt.Errorf("creating embedding client: %w", err)
	}
	batcher := embeddings.NewBatcher(embedder, cfg.Embeddings.BatchSize,
		cfg.Embeddings.RequestsPerSec, logger.Named("embeddings"))

	genSvc, err := generation.NewService(generation.Config{
		BaseURL:     cfg.Generation.BaseURL,
		Model:       cfg.Generation.Model,
		APIKey:      cfg.Generation.APIKey.Value(),
		Temperature: cfg.Generation.Temperature,
	}, logger.Named("generation"))
	if err != nil {
		return fmt.Errorf("creating generation client: %w", err)
	}

	seg := segmenter.New(segmenter.Config{})
	enr := enricher.New(db, logger.Named("enricher"))

	acts := pipeline.NewActivities(db, seg, enr, batcher, genSvc,
		cfg.Pipeline.DocumentRoot, logger.Named("pipeline"))

	temporalClient, err := client.Dial(client.Options{
		HostPort:  cfg.Pipeline.HostPort,
		Namespace: cfg.Pipeline.Namespace,
	})
	if err != nil {
		return fmt.Errorf("connecting to temporal: %w", err)
	}
	defer temporalClient.Close()

	w := pipeline.NewWorker(temporalClient, cfg.Pipeline, acts)
	return w.Run(worker.InterruptCh())
}
