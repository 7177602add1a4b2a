package main

import (
	"context"
	"crypto/tls"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/harborview-health/voice-scheduler/internal/archive"
	"github.com/harborview-health/voice-scheduler/internal/backend"
	"github.com/harborview-health/voice-scheduler/internal/config"
	"github.com/harborview-health/voice-scheduler/internal/dialog"
	"github.com/harborview-health/voice-scheduler/internal/httpapi"
	"github.com/harborview-health/voice-scheduler/internal/observability/metrics"
	"github.com/harborview-health/voice-scheduler/internal/oracle"
	"github.com/harborview-health/voice-scheduler/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting voice scheduler", "env", cfg.Env, "port", cfg.Port)

	loc, err := time.LoadLocation(cfg.OrgTimezone)
	if err != nil {
		logger.Error("invalid ORG_TIMEZONE, falling back to UTC", "timezone", cfg.OrgTimezone, "error", err)
		loc = time.UTC
	}

	sessionStore := buildSessionStore(cfg, logger)
	nlu := buildOracle(cfg, logger)
	backendClient := backend.NewClient(cfg.BackendBaseURL, cfg.BackendAPIKey, logger)
	turnMetrics := metrics.NewTurnMetrics(nil)

	engine := dialog.NewEngine(nlu, backendClient, sessionStore, turnMetrics, dialog.Config{
		OrganizationID: cfg.OrganizationID,
		Timezone:       loc,
		VisitType:      cfg.VisitType,
		TurnTimeout:    cfg.TurnTimeout,
	}, logger)

	transcripts := buildTranscriptStore(cfg, logger)

	server := httpapi.NewServer(engine, transcripts, httpapi.Config{
		CallIDHeader:   cfg.CallIDHeader,
		CallIDPath:     cfg.CallIDPath,
		DefaultModel:   cfg.DefaultModel,
		StreamEnabled:  cfg.StreamEnabled,
		OrganizationID: cfg.OrganizationID,
		RequestTimeout: cfg.TurnTimeout + 30*time.Second,
	}, logger)

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("http server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server failed", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", "error", err)
	}
}

// buildSessionStore prefers Redis; without REDIS_ADDR the in-process store
// keeps local development working, at the cost of state surviving restarts.
func buildSessionStore(cfg *config.Config, logger *logging.Logger) dialog.SessionStore {
	if cfg.RedisAddr == "" {
		logger.Warn("REDIS_ADDR not set, using in-memory session store")
		return dialog.NewMemorySessionStore()
	}
	opts := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Error("redis ping failed", "addr", cfg.RedisAddr, "error", err)
		os.Exit(1)
	}
	return dialog.NewRedisSessionStore(client, cfg.SessionTTL)
}

// buildOracle selects the LLM client per LLM_PROVIDER. When both OpenAI and
// Bedrock are configured, the other provider backs the primary as a fallback.
func buildOracle(cfg *config.Config, logger *logging.Logger) *oracle.Oracle {
	var openaiClient *oracle.OpenAIClient
	if cfg.OpenAIAPIKey != "" {
		openaiClient = oracle.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel)
	}

	var bedrockClient *oracle.BedrockClient
	if cfg.BedrockModelID != "" {
		awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
			awsconfig.WithRegion(cfg.AWSRegion))
		if err != nil {
			logger.Error("aws config load failed", "error", err)
			os.Exit(1)
		}
		bedrockClient = oracle.NewBedrockClient(bedrockruntime.NewFromConfig(awsCfg), cfg.BedrockModelID)
	}

	var client oracle.LLMClient
	switch {
	case cfg.LLMProvider == "bedrock" && bedrockClient != nil:
		client = bedrockClient
		if openaiClient != nil {
			client = oracle.NewFallbackClient(bedrockClient, openaiClient, logger)
		}
	case openaiClient != nil:
		client = openaiClient
		if bedrockClient != nil {
			client = oracle.NewFallbackClient(openaiClient, bedrockClient, logger)
		}
	case bedrockClient != nil:
		client = bedrockClient
	default:
		fmt.Fprintln(os.Stderr, "no LLM provider configured: set OPENAI_API_KEY or BEDROCK_MODEL_ID")
		os.Exit(1)
	}

	model := cfg.OpenAIModel
	if cfg.LLMProvider == "bedrock" {
		model = cfg.BedrockModelID
	}
	return oracle.New(client, model, logger)
}

// buildTranscriptStore opens the optional Postgres archive. A nil store
// disables archiving without touching the dialogue path.
func buildTranscriptStore(cfg *config.Config, logger *logging.Logger) *archive.TranscriptStore {
	if cfg.DatabaseURL == "" {
		logger.Info("DATABASE_URL not set, transcript archive disabled")
		return nil
	}
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		logger.Error("postgres open failed", "error", err)
		os.Exit(1)
	}
	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		logger.Error("postgres ping failed", "error", err)
		os.Exit(1)
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return archive.NewTranscriptStore(db)
}
