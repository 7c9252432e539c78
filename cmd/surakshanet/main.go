package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/surakshanet/surakshanet/internal/agents/defense"
	"github.com/surakshanet/surakshanet/internal/agents/intelligence"
	"github.com/surakshanet/surakshanet/internal/agents/perception"
	"github.com/surakshanet/surakshanet/internal/config"
	"github.com/surakshanet/surakshanet/internal/core"
	"github.com/surakshanet/surakshanet/internal/handlers"
	"github.com/surakshanet/surakshanet/internal/llm"
	"github.com/surakshanet/surakshanet/internal/observability"
	"github.com/surakshanet/surakshanet/internal/store"
)

func main() {
	cfg := config.Load()

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(level)
	}

	if cfg.LLM.APIKey == "" {
		logger.Warn("LLM_API_KEY is not set; model-backed analysis will degrade to heuristics")
	}

	metrics := observability.NewMetrics(nil)

	cache := llm.NewResponseCache(cfg.LLM.CacheMaxEntries)
	if cfg.Redis.Addr != "" {
		mirror := llm.NewRedisMirror(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.LLM.CacheTTL, logger)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := mirror.Ping(ctx); err != nil {
			logger.WithError(err).Warn("redis unreachable, continuing with in-memory cache only")
			mirror.Close()
		} else {
			cache.WithMirror(mirror)
			logger.WithField("addr", cfg.Redis.Addr).Info("redis cache mirror attached")
			defer mirror.Close()
		}
		cancel()
	}

	client := llm.NewGeminiClientWithCache(cfg.LLM.APIKey, cfg.LLM.BaseURL, cfg.LLM.Model, cache, logger)
	client.SetUsageRecorder(metrics)
	if cfg.LLM.MaxRetries > 0 {
		retry := llm.DefaultRetryConfig()
		retry.MaxAttempts = cfg.LLM.MaxRetries
		client.SetRetryConfig(retry)
	}

	var analysisStore store.AnalysisStore = store.NewMemoryStore(cfg.Database.MaxKeep)
	if cfg.Database.URL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		pg, err := store.NewPostgresStore(ctx, cfg.Database.URL)
		cancel()
		if err != nil {
			logger.WithError(err).Warn("postgres unavailable, falling back to in-memory store")
		} else {
			analysisStore = pg
			logger.Info("postgres analysis store attached")
			defer pg.Close()
		}
	}

	matcher := intelligence.NewPatternMatcher(logger)
	if cfg.Analysis.PatternSeedFile != "" {
		if err := matcher.LoadSeedFile(cfg.Analysis.PatternSeedFile); err != nil {
			logger.WithError(err).WithField("file", cfg.Analysis.PatternSeedFile).
				Warn("pattern seed file could not be loaded")
		}
	}

	decoys := defense.NewDecoySystem(client, logger)
	defenseAgent := defense.NewDefenseAgent(decoys, logger)

	orchestrator := core.NewOrchestrator(
		perception.NewTextAnalyzer(client, logger),
		perception.NewImageAnalyzer(client, nil, logger),
		perception.NewVideoAnalyzer(client, nil, logger),
		intelligence.NewThreatScorer(client, cfg.Analysis.Renormalize, logger),
		matcher,
		defenseAgent,
		decoys,
		logger,
		core.WithStore(analysisStore),
		core.WithMetrics(metrics),
		core.WithPerceptionTimeout(cfg.Analysis.PerceptionTimeout),
	)

	gin.SetMode(cfg.Server.Mode)
	router := gin.New()
	router.Use(gin.Recovery())

	handlers.RegisterRoutes(router,
		handlers.NewAnalyzeHandler(orchestrator, logger),
		handlers.NewHealthHandler(),
		handlers.NewAdminHandler(orchestrator, matcher, analysisStore, logger),
		handlers.NewDecoyHandler(decoys, logger),
	)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	srv := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.WithField("addr", srv.Addr).Info("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("forced shutdown")
	}
	logger.Info("server stopped")
}
