package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	Port string
	Env  string

	// Database
	DatabaseURL string

	// Redis
	RedisURL string

	// JWT (access tokens are issued by the hosted auth provider; we only verify)
	JWTSecret string

	// YouTube Data API
	YouTubeAPIKey   string
	CacheTTLMinutes int

	// Apify job runner
	ApifyToken   string
	ApifyActorID string

	// Transcript polling
	TranscriptPollSeconds int
	TranscriptMaxPolls    int

	// Gemini AI
	GeminiAPIKey         string
	GeminiConcurrentReqs int

	// Workers
	WorkerCount int

	// Frontend
	FrontendURL string
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	cfg := &Config{
		Port:        getEnvOrDefault("PORT", "8080"),
		Env:         getEnvOrDefault("ENV", "development"),
		DatabaseURL: mustGetEnv("DATABASE_URL"),
		RedisURL:    mustGetEnv("REDIS_URL"),
		JWTSecret:   mustGetEnv("JWT_SECRET"),

		YouTubeAPIKey:   mustGetEnv("YOUTUBE_API_KEY"),
		CacheTTLMinutes: getEnvAsIntOrDefault("CACHE_TTL_MINUTES", 30),

		ApifyToken:   mustGetEnv("APIFY_TOKEN"),
		ApifyActorID: getEnvOrDefault("APIFY_ACTOR_ID", "CTQcdDtqW5dvELvur"),

		TranscriptPollSeconds: getEnvAsIntOrDefault("TRANSCRIPT_POLL_SECONDS", 5),
		TranscriptMaxPolls:    getEnvAsIntOrDefault("TRANSCRIPT_MAX_POLLS", 60),

		GeminiAPIKey:         mustGetEnv("GEMINI_API_KEY"),
		GeminiConcurrentReqs: getEnvAsIntOrDefault("GEMINI_CONCURRENT_REQUESTS", 5),

		WorkerCount: getEnvAsIntOrDefault("WORKER_COUNT", 5),

		FrontendURL: getEnvOrDefault("FRONTEND_URL", "http://localhost:5173"),
	}

	return cfg
}

func mustGetEnv(key string) string {
	val := os.Getenv(key)
	if val == "" {
		panic(fmt.Sprintf("required environment variable %s is not set", key))
	}
	return val
}

func getEnvOrDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvAsIntOrDefault(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}
