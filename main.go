package main

import (
	"log"
	"time"

	"PocketAI/middleware"
	"PocketAI/models"
	"PocketAI/pkg/chat"
	"PocketAI/pkg/config"
	"PocketAI/pkg/services"
	"PocketAI/routes"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func main() {
	// config init via package init()

	// MySQL in hosted environments, sqlite file for local runs
	var dial gorm.Dialector
	if config.MySQLDSN != "" {
		dial = mysql.Open(config.MySQLDSN)
	} else {
		dial = sqlite.Open("app.db")
	}
	db, err := gorm.Open(dial, &gorm.Config{})
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}

	if err := db.AutoMigrate(&models.User{}, &models.Conversation{}, &models.Message{}); err != nil {
		log.Fatalf("failed migrate: %v", err)
	}

	middleware.SetRateLimitConfig(
		time.Duration(config.RateLimitWindowSeconds)*time.Second,
		config.RateLimitCapacity,
	)

	gemini := services.GeminiClientFromEnv()
	dispatcher := chat.NewDispatcher(db, gemini)

	r := gin.Default()

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:3000", "http://127.0.0.1:3000", "http://localhost:5173", "http://127.0.0.1:5173"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	routes.RegisterRoutes(r, db, dispatcher)
	r.Run(":" + config.Port)
}
