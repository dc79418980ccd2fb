package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/news-guard/newsguard/internal/auth"
	"github.com/news-guard/newsguard/internal/cache"
	"github.com/news-guard/newsguard/internal/config"
	"github.com/news-guard/newsguard/internal/database"
	"github.com/news-guard/newsguard/internal/factcheck"
	"github.com/news-guard/newsguard/internal/handlers"
	"github.com/news-guard/newsguard/internal/kafka"
	"github.com/news-guard/newsguard/internal/llm"
	"github.com/news-guard/newsguard/internal/mcpserver"
	"github.com/news-guard/newsguard/internal/metrics"
	"github.com/news-guard/newsguard/internal/search"
	"github.com/news-guard/newsguard/internal/services"
	"github.com/news-guard/newsguard/internal/storage"
	"github.com/news-guard/newsguard/migrations"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg := config.Load()

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	log.Info().Msg("Starting NewsGuard API")

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	if err := migrations.Run(db.SQLDB()); err != nil {
		log.Fatal().Err(err).Msg("Failed to run migrations")
	}

	var searchCache search.Store
	if rc := cache.New(cfg.RedisAddr, cfg.SearchCacheTTL); rc != nil {
		defer rc.Close()
		searchCache = rc
	}
	searchClient := search.NewClient(cfg.SerperBaseURL, cfg.SerperAPIKey, searchCache)

	llmClient, err := llm.NewClient(
		cfg.OpenRouterAPIKey, cfg.OpenRouterBaseURL,
		cfg.OpenRouterModel, cfg.VisionModel,
		cfg.AppReferer, cfg.AppTitle,
	)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize LLM client")
	}

	checker := factcheck.NewChecker(searchClient, llmClient, factcheck.Config{
		MaxResults:  cfg.DefaultMaxResults,
		Temperature: cfg.DefaultTemperature,
		MaxTokens:   cfg.DefaultMaxTokens,
	})

	var events *kafka.Producer
	if cfg.KafkaEnabled {
		events = kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopicEvents)
		defer events.Close()
	}

	var images *storage.Client
	if cfg.S3Endpoint != "" && cfg.S3AccessKey != "" {
		images, err = storage.NewClient(
			cfg.S3Endpoint, cfg.S3Region, cfg.S3Bucket,
			cfg.S3AccessKey, cfg.S3SecretKey, cfg.S3UseSSL, cfg.S3PublicURL,
		)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize storage client")
		}
	}

	logRepo := database.NewActivityLogRepository(db)
	analysisService := services.NewAnalysisService(checker, logRepo, eventSink(events), imageSink(images))

	h := handlers.NewHandler(analysisService, logRepo, db)
	authService := auth.NewService(db)

	r := mux.NewRouter()
	r.HandleFunc("/healthz", h.Health).Methods("GET")
	r.Handle("/metrics", metrics.Handler()).Methods("GET")

	api := r.PathPrefix("/v1").Subrouter()
	api.Use(authService.Middleware)
	api.HandleFunc("/factcheck/text", h.CheckText).Methods("POST")
	api.HandleFunc("/factcheck/image", h.CheckImage).Methods("POST")
	api.HandleFunc("/factcheck/ws", h.CheckWS).Methods("GET")
	api.HandleFunc("/logs", h.ListLogs).Methods("GET")

	if cfg.AdminToken != "" {
		adminH := handlers.NewAdminHandler(
			database.NewUserRepository(db), database.NewAPIKeyRepository(db),
			cfg.AdminToken, cfg.DefaultQuotaChars, cfg.DefaultQuotaPeriod,
		)
		admin := r.PathPrefix("/admin").Subrouter()
		admin.Use(adminH.Middleware)
		admin.HandleFunc("/users", adminH.CreateUser).Methods("POST")
		admin.HandleFunc("/users", adminH.ListUsers).Methods("GET")
		log.Info().Msg("Admin provisioning endpoints enabled")
	}

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      r,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 120 * time.Second, // fact-checks wait on search + model
	}

	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("API listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	var mcpSrv *http.Server
	if cfg.MCPAddr != "" {
		mcp := mcpserver.NewServer(checker)
		mcpMux := http.NewServeMux()
		mcpMux.Handle("/", mcpserver.AuthMiddleware(authService)(mcp.Handler()))
		mcpSrv = &http.Server{
			Addr:         cfg.MCPAddr,
			Handler:      mcpMux,
			ReadTimeout:  60 * time.Second,
			WriteTimeout: 120 * time.Second,
		}
		go func() {
			log.Info().Str("addr", cfg.MCPAddr).Msg("MCP listening")
			if err := mcpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatal().Err(err).Msg("MCP server failed")
			}
		}()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down API...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server shutdown error")
	}
	if mcpSrv != nil {
		if err := mcpSrv.Shutdown(ctx); err != nil {
			log.Error().Err(err).Msg("MCP server shutdown error")
		}
	}
	log.Info().Msg("API exited")
}

// eventSink converts a possibly-nil producer into the service's optional
// publisher dependency without handing it a typed nil.
func eventSink(p *kafka.Producer) services.EventPublisher {
	if p == nil {
		return nil
	}
	return p
}

// imageSink does the same for the optional image archive.
func imageSink(c *storage.Client) services.ImageStore {
	if c == nil {
		return nil
	}
	return c
}
