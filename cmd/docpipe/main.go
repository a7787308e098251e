package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/zap"

	"github.com/qrengage/docpipe/internal/ai"
	"github.com/qrengage/docpipe/internal/config"
	"github.com/qrengage/docpipe/internal/db"
	"github.com/qrengage/docpipe/internal/embedcache"
	"github.com/qrengage/docpipe/internal/extract"
	"github.com/qrengage/docpipe/internal/filestore"
	"github.com/qrengage/docpipe/internal/handler"
	"github.com/qrengage/docpipe/internal/job"
	"github.com/qrengage/docpipe/internal/middleware"
	"github.com/qrengage/docpipe/internal/repo"
	"github.com/qrengage/docpipe/internal/schedule"
	"github.com/qrengage/docpipe/internal/service"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "docpipe",
		Short: "docpipe ingestion and retrieval server",
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run docpipe server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath == "" {
				return fmt.Errorf("--config is required")
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			logger.Init(
				cfg.LogConfig.File,
				cfg.LogConfig.Level,
				int(cfg.LogConfig.FileCount),
				int(cfg.LogConfig.FileSize),
				int(cfg.LogConfig.KeepDays),
				cfg.LogConfig.Console,
			)
			logutil.GetLogger(context.Background()).Info("config loaded", zap.String("config", configPath))

			dbConn, err := db.Open(cfg.Database)
			if err != nil {
				return fmt.Errorf("open db: %w", err)
			}
			if err := db.ApplyMigrations(dbConn, cfg.AI.EmbedDim); err != nil {
				return fmt.Errorf("migrations: %w", err)
			}
			return runServer(cfg, dbConn)
		},
	}

	runCmd.Flags().StringVar(&configPath, "config", "", "path to config.json")
	rootCmd.AddCommand(runCmd)

	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("startup error", zap.Error(err))
	}
}

func runServer(cfg *config.Config, dbConn *sql.DB) error {
	logutil.GetLogger(context.Background()).Info(
		"starting server",
		zap.Int("port", cfg.Port),
		zap.String("ai_provider", cfg.AI.Provider),
		zap.String("extract_provider", cfg.Extract.Provider),
		zap.String("file_store", cfg.FileStore.Type),
	)

	docRepo := repo.NewDocumentRepo(dbConn)
	chunkRepo := repo.NewChunkRepo(dbConn)
	jobRepo := repo.NewJobRepo(dbConn)

	store, err := filestore.New(cfg.FileStore)
	if err != nil {
		return fmt.Errorf("init file store: %w", err)
	}

	embedProvider, err := ai.NewEmbedProvider(cfg.AI.Provider, cfg.AI.Data)
	if err != nil {
		return fmt.Errorf("init embed provider: %w", err)
	}
	embedder := ai.NewEmbedder(embedProvider, cfg.AI.EmbedModel, cfg.AI.EmbedDim, cfg.AI.MaxInputChars)
	embedder = embedcache.WrapLruCacheToEmbedder(embedder, 8192, time.Hour)
	embedder = ai.WrapRetryToEmbedder(
		embedder,
		cfg.AI.MaxRetries,
		time.Duration(cfg.AI.RetryBaseMs)*time.Millisecond,
		time.Duration(cfg.AI.Timeout)*time.Second,
	)

	extractProvider, err := extract.NewProvider(cfg.Extract.Provider, cfg.Extract.Data)
	if err != nil {
		return fmt.Errorf("init extract provider: %w", err)
	}
	extractor := extract.NewExtractor(extractProvider, extract.ExtractorConfig{
		MaxSizeBytes: cfg.Extract.MaxSizeMB * 1024 * 1024,
		MaxRetries:   cfg.Extract.MaxRetries,
		BaseDelay:    time.Duration(cfg.Extract.RetryBaseMs) * time.Millisecond,
		Timeout:      time.Duration(cfg.Extract.Timeout) * time.Second,
	})

	ingestService := service.NewIngestService(docRepo, chunkRepo, jobRepo, store, extractor, embedder, service.IngestOptions{
		ChunkSize:    cfg.Ingest.ChunkSize,
		ChunkOverlap: cfg.Ingest.ChunkOverlap,
		EmbedBatch:   cfg.Ingest.EmbedBatch,
		BatchDelay:   time.Duration(cfg.Ingest.BatchDelayMs) * time.Millisecond,
	})
	queryService := service.NewQueryService(chunkRepo, embedder, service.QueryOptions{
		Threshold: cfg.Query.Threshold,
		Count:     cfg.Query.Count,
	})
	repairService := service.NewRepairService(chunkRepo, embedder, cfg.Repair.BatchSize)
	documentService := service.NewDocumentService(docRepo, store)

	deps := handler.RouterDeps{
		Documents:    handler.NewDocumentHandler(documentService, ingestService),
		Queries:      handler.NewQueryHandler(queryService),
		UploadWindow: time.Duration(cfg.Ingest.UploadWindowMs) * time.Millisecond,
	}

	engine, err := webapi.NewEngine(
		"/api/v1",
		fmt.Sprintf("0.0.0.0:%d", cfg.Port),
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.CORS(cfg.CORSOrigins),
			gzip.Gzip(gzip.DefaultCompression),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}
	logutil.GetLogger(context.Background()).Info("http server listening", zap.String("addr", fmt.Sprintf("0.0.0.0:%d", cfg.Port)))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scheduler := schedule.NewCronScheduler()
	if err := scheduler.AddJob(job.NewChunkRepairJob(repairService), cfg.Repair.CronSpec); err != nil {
		return fmt.Errorf("schedule chunk repair: %w", err)
	}
	staleAge := time.Duration(cfg.Repair.StaleAfterSecs) * time.Second
	if err := scheduler.AddJob(job.NewStaleJobSweepJob(ingestService, staleAge), cfg.Repair.StaleCronSpec); err != nil {
		return fmt.Errorf("schedule stale job sweep: %w", err)
	}
	scheduler.Start(ctx)
	defer scheduler.Stop()

	go func() {
		if err := engine.Run(); err != nil && err != http.ErrServerClosed {
			logutil.GetLogger(context.Background()).Error("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logutil.GetLogger(context.Background()).Info("server stopping...")
	return nil
}
