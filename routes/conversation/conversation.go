package conversation

import (
	"PocketAI/controllers"
	"PocketAI/middleware"
	"PocketAI/pkg/chat"

	"github.com/gin-gonic/gin"
)

// Register registers conversation routes (protected)
func Register(g *gin.RouterGroup, d *chat.Dispatcher) {
	// Rate limiting only on the model-calling endpoint
	g.POST("/conversations/messages", middleware.RateLimit(), controllers.SendMessage(d))
	g.GET("/conversations", controllers.ListConversations(d))
	g.GET("/conversations/:conversation_id/messages", controllers.GetMessages(d))
	g.DELETE("/conversations/:conversation_id", controllers.DeleteConversation(d))
	g.DELETE("/conversations", controllers.DeleteAllConversations(d))
}
