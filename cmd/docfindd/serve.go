package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.temporal.io/sdk/client"
	"go.uber.org/zap"

	"github.com/opencouncil/docfind/internal/chat"
	"github.com/opencouncil/docfind/internal/config"
	"github.com/opencouncil/docfind/internal/embeddings"
	"github.com/opencouncil/docfind/internal/generation"
	"github.com/opencouncil/docfind/internal/httpapi"
	"github.com/opencouncil/docfind/internal/logging"
	"github.com/opencouncil/docfind/internal/rewriter"
	"github.com/opencouncil/docfind/internal/session"
	"github.com/opencouncil/docfind/internal/store"
	"github.com/opencouncil/docfind/internal/telemetry"
	"github.com/opencouncil/docfind/internal/vectorindex"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func runServe() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("starting docfindd serve",
		zap.String("version", version),
		zap.Int("port", cfg.Server.Port))

	tel, err := telemetry.New(telemetry.Config{ServiceName: "docfind", Enabled: true})
	if err != nil {
		logger.Warn("telemetry init failed, metrics disabled", zap.Error(err))
	} else {
		defer func() { _ = tel.Shutdown(context.Background()) }()
	}

	db, err := store.New(ctx, store.Config{
		URL:      cfg.Database.URL.Value(),
		MaxConns: int32(cfg.Database.MaxConns),
	}, logger.Named("store"))
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer db.Close()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password.Value(),
		DB:       cfg.Redis.DB,
	})
	defer func() { _ = redisClient.Close() }()

	sessions := session.New(redisClient, session.Config{
		MaxMessages:       cfg.Session.MaxMessages,
		TTL:               cfg.Session.TTL,
		HistoryCharBudget: cfg.Session.HistoryCharBudget,
	}, logger.Named("session"))

	embedder, err := embeddings.NewService(embeddings.Config{
		BaseURL:   cfg.Embeddings.BaseURL,
		Dimension: cfg.Embeddings.Dimension,
		Timeout:   cfg.Embeddings.Timeout,
	})
	if err != nil {
		return fmt.Errorf("creating embedding client: %w", err)
	}

	genSvc, err := generation.NewService(generation.Config{
		BaseURL:     cfg.Generation.BaseURL,
		Model:       cfg.Generation.Model,
		APIKey:      cfg.Generation.APIKey.Value(),
		Temperature: cfg.Generation.Temperature,
	}, logger.Named("generation"))
	if err != nil {
		return fmt.Errorf("creating generation client: %w", err)
	}

	gateway := vectorindex.New(db, logger.Named("vectorindex"))
	rw := rewriter.New(genSvc, logger.Named("rewriter"))

	chatSvc := chat.NewService(embedder, gateway, genSvc, rw, sessions, db, chat.Config{
		TopK:           cfg.Search.TopK,
		SemanticWeight: cfg.Search.SemanticWeight,
	}, logger.Named("chat"))
	defer chatSvc.Wait()

	// The pipeline connection is optional for the API role: without it the
	// chat surface still works and job endpoints return 503.
	var jobs httpapi.Jobs
	temporalClient, err := client.Dial(client.Options{
		HostPort:  cfg.Pipeline.HostPort,
		Namespace: cfg.Pipeline.Namespace,
	})
	if err != nil {
		logger.Warn("temporal unreachable, pipeline endpoints disabled", zap.Error(err))
	} else {
		defer temporalClient.Close()
		jobs = httpapi.NewTemporalJobs(temporalClient, cfg.Pipeline, logger.Named("jobs"))
	}

	server, err := httpapi.NewServer(chatSvc, sessions, jobs, httpapi.Config{
		Port: cfg.Server.Port,
	}, logger.Named("http"))
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
