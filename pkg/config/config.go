package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

var (
	GeminiAPIKey     string
	GeminiModel      string
	GeminiImageModel string
	// IsGeminiEnabled is a flag to enable/disable Gemini API usage (enum: "1" or "0")
	IsGeminiEnabled bool

	MySQLDSN string

	AppEnv       string
	IsProduction bool

	JWTSecret string
	Port      string

	// runtime tunables
	RateLimitWindowSeconds int
	RateLimitCapacity      int
)

func init() {
	AppEnv = os.Getenv("APP_ENV")
	if AppEnv != "production" {
		// .env is optional outside production; host env wins when absent
		_ = godotenv.Load()
		AppEnv = os.Getenv("APP_ENV")
	}
	if AppEnv == "" {
		AppEnv = "staging"
	}
	IsProduction = AppEnv == "production"

	GeminiAPIKey = os.Getenv("GEMINI_API_KEY")
	GeminiModel = os.Getenv("GEMINI_MODEL")
	if GeminiModel == "" {
		GeminiModel = "gemini-2.0-flash"
	}
	GeminiImageModel = os.Getenv("GEMINI_IMAGE_MODEL")
	if GeminiImageModel == "" {
		GeminiImageModel = "gemini-2.0-flash-preview-image-generation"
	}
	IsGeminiEnabled = os.Getenv("IS_GEMINI_ENABLED") != "0"

	MySQLDSN = os.Getenv("MYSQL_DSN")

	JWTSecret = os.Getenv("JWT_SECRET_KEY")
	Port = os.Getenv("PORT")
	if Port == "" {
		Port = "5000"
	}

	RateLimitWindowSeconds = atoiOr(os.Getenv("RATE_LIMIT_WINDOW_SECONDS"), 10)
	RateLimitCapacity = atoiOr(os.Getenv("RATE_LIMIT_CAPACITY"), 5)

	if IsProduction && JWTSecret == "" {
		log.Fatal("JWT_SECRET_KEY must be set in production")
	}

	log.Printf("[config] AppEnv=%s IsProduction=%v", AppEnv, IsProduction)
	log.Printf("[config] IsGeminiEnabled=%v GeminiAPIKeyPresent=%v model=%s imageModel=%s",
		IsGeminiEnabled, GeminiAPIKey != "", GeminiModel, GeminiImageModel)
}

func atoiOr(s string, def int) int {
	if s == "" {
		return def
	}
	if v, err := strconv.Atoi(s); err == nil {
		return v
	}
	return def
}
