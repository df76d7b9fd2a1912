package routes

import (
	"net/http"

	"PocketAI/middleware"
	"PocketAI/pkg/chat"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	authRoutes "PocketAI/routes/auth"
	convRoutes "PocketAI/routes/conversation"
)

func RegisterRoutes(r *gin.Engine, db *gorm.DB, dispatcher *chat.Dispatcher) {
	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"msg": "PocketAI chat backend running"})
	})

	authRoutes.RegisterPublic(r, db)

	protected := r.Group("/")
	protected.Use(middleware.AuthMiddleware())
	authRoutes.RegisterProtected(protected)
	convRoutes.Register(protected, dispatcher)
}
