package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"repurpose-backend/internal/cache"
	"repurpose-backend/internal/config"
	"repurpose-backend/internal/database"
	"repurpose-backend/internal/handlers"
	"repurpose-backend/internal/middleware"
	"repurpose-backend/internal/repository"
	"repurpose-backend/internal/router"
	"repurpose-backend/internal/services"
	"repurpose-backend/internal/websocket"
	"repurpose-backend/internal/worker"
)

func main() {
	log.Println("🚀 Starting Repurpose Backend...")

	// ──── Step 1: Load Environment Variables ────
	cfg := config.Load()
	log.Println("✓ Environment variables loaded")

	// ──── Step 2: Initialize PostgreSQL Connection Pool ────
	pool, err := database.NewPostgresPool(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("✗ PostgreSQL connection failed: %v", err)
	}
	defer pool.Close()
	log.Println("✓ PostgreSQL connected")

	// ──── Step 3: Initialize Redis Clients ────
	redisClients, err := database.NewRedisClients(cfg.RedisURL)
	if err != nil {
		log.Fatalf("✗ Redis connection failed: %v", err)
	}
	defer redisClients.Close()
	log.Println("✓ Redis connected")

	// ──── Step 4: Run Database Migrations ────
	if err := database.RunMigrations(pool, "migrations"); err != nil {
		log.Fatalf("✗ Database migration failed: %v", err)
	}
	log.Println("✓ Database migrations applied")

	// ──── Initialize Repositories ────
	sourceRepo := repository.NewSourceRepo(pool)
	transcriptRepo := repository.NewTranscriptRepo(pool)
	generatedRepo := repository.NewGeneratedRepo(pool)
	usageRepo := repository.NewUsageRepo(pool)
	historyRepo := repository.NewHistoryRepo(pool)
	planRepo := repository.NewPlanRepo(pool)
	jobRepo := repository.NewJobRepo(pool)

	// ──── Step 5: Initialize Gemini Client ────
	geminiService, err := services.NewGeminiService(cfg.GeminiAPIKey, cfg.GeminiConcurrentReqs)
	if err != nil {
		log.Fatalf("✗ Gemini client initialization failed: %v", err)
	}
	defer geminiService.Close()
	log.Println("✓ Gemini client initialized")

	// ──── Initialize Services ────
	jwtAuth := middleware.NewJWTAuth(cfg.JWTSecret)

	responseCache := cache.NewTwoTier(
		cache.NewRedisStore(redisClients.Cache, "ytapi:"),
		time.Duration(cfg.CacheTTLMinutes)*time.Minute,
		nil,
	)
	youtubeService := services.NewYouTubeService(cfg.YouTubeAPIKey, responseCache)

	apifyClient := services.NewApifyClient(
		cfg.ApifyToken,
		cfg.ApifyActorID,
		time.Duration(cfg.TranscriptPollSeconds)*time.Second,
		cfg.TranscriptMaxPolls,
	)
	captionService := services.NewCaptionService()
	transcriptService := services.NewTranscriptService(transcriptRepo, apifyClient, captionService, geminiService)

	usageService := services.NewUsageService(usageRepo, planRepo)
	sourceService := services.NewSourceService(sourceRepo, historyRepo, jobRepo, youtubeService, usageService, redisClients.Queue)
	generatorService := services.NewGeneratorService(sourceRepo, generatedRepo, transcriptRepo, historyRepo, usageService, geminiService)

	// ──── Initialize Handlers ────
	sourceHandler := handlers.NewSourceHandler(sourceService, generatorService)
	channelHandler := handlers.NewChannelHandler(youtubeService)
	usageHandler := handlers.NewUsageHandler(usageService)
	jobHandler := handlers.NewJobHandler(jobRepo)

	// ──── Step 6: Start Job Worker Pool ────
	workerPool := worker.NewPool(
		redisClients.Queue,
		redisClients.PubSub,
		transcriptService,
		jobRepo,
		sourceRepo,
		historyRepo,
		cfg.WorkerCount,
	)
	workerPool.Start()
	log.Printf("✓ Worker pool started (%d goroutines)", cfg.WorkerCount)

	// ──── Step 7: Start WebSocket Hub ────
	wsHub := websocket.NewHub(redisClients.PubSub, cfg.JWTSecret)
	log.Println("✓ WebSocket hub started")

	// ──── Step 8: Start HTTP Server ────
	r := router.New(
		jwtAuth,
		sourceHandler,
		channelHandler,
		usageHandler,
		jobHandler,
		wsHub,
		cfg.FrontendURL,
	)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down...")
		workerPool.Stop()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}()

	log.Printf("✓ Repurpose Backend ready on http://localhost:%s", cfg.Port)
	log.Printf("  API: http://localhost:%s/api/v1", cfg.Port)
	log.Printf("  WS:  ws://localhost:%s/api/v1/ws", cfg.Port)

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}
}
