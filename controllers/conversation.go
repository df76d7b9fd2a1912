package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"PocketAI/middleware"
	"PocketAI/models"
	"PocketAI/pkg/chat"
	"PocketAI/pkg/store"

	"github.com/gin-gonic/gin"
)

func messageJSON(m models.Message) gin.H {
	return gin.H{
		"id":           m.ID,
		"role":         m.Role,
		"content":      m.Content,
		"message_type": m.MessageType,
		"created_at":   m.CreatedAt,
	}
}

func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, chat.ErrUnauthenticated):
		return http.StatusUnauthorized, "unauthenticated"
	case errors.Is(err, chat.ErrInvalidInput):
		return http.StatusBadRequest, "message is required"
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, "conversation not found"
	case errors.Is(err, chat.ErrUpstream):
		return http.StatusBadGateway, "model request failed"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

// SendMessage handles POST /conversations/messages: dispatches the message
// to the model gateway and returns the persisted assistant reply.
func SendMessage(d *chat.Dispatcher) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid := middleware.CurrentUserID(c)

		var body struct {
			Message        string `json:"message"`
			ConversationID *uint  `json:"conversation_id"`
			ImageBase64    string `json:"image_base64"`
			MimeType       string `json:"mime_type"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"msg": "invalid request"})
			return
		}

		out, err := d.SendMessage(c.Request.Context(), uid, chat.SendMessageInput{
			Message:        body.Message,
			ConversationID: body.ConversationID,
			ImageBase64:    body.ImageBase64,
			MimeType:       body.MimeType,
		})
		if err != nil {
			status, msg := statusFor(err)
			c.JSON(status, gin.H{"msg": msg})
			return
		}

		c.JSON(http.StatusCreated, gin.H{
			"conversation_id": out.ConversationID,
			"message":         messageJSON(*out.AssistantMessage),
		})
	}
}

func ListConversations(d *chat.Dispatcher) gin.HandlerFunc {
	return func(c *gin.Context) {
		convs, err := d.ListConversations(middleware.CurrentUserID(c))
		if err != nil {
			status, msg := statusFor(err)
			c.JSON(status, gin.H{"msg": msg})
			return
		}
		result := make([]gin.H, 0, len(convs))
		for _, conv := range convs {
			result = append(result, gin.H{
				"id":         conv.ID,
				"title":      conv.Title,
				"created_at": conv.CreatedAt,
				"updated_at": conv.UpdatedAt,
			})
		}
		c.JSON(http.StatusOK, result)
	}
}

func GetMessages(d *chat.Dispatcher) gin.HandlerFunc {
	return func(c *gin.Context) {
		cid, err := strconv.Atoi(c.Param("conversation_id"))
		if err != nil || cid <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"msg": "invalid conversation id"})
			return
		}
		msgs, err := d.GetMessages(middleware.CurrentUserID(c), uint(cid))
		if err != nil {
			status, msg := statusFor(err)
			c.JSON(status, gin.H{"msg": msg})
			return
		}
		result := make([]gin.H, 0, len(msgs))
		for _, m := range msgs {
			result = append(result, messageJSON(m))
		}
		c.JSON(http.StatusOK, gin.H{"conversation_id": cid, "messages": result})
	}
}

func DeleteConversation(d *chat.Dispatcher) gin.HandlerFunc {
	return func(c *gin.Context) {
		cid, err := strconv.Atoi(c.Param("conversation_id"))
		if err != nil || cid <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"msg": "invalid conversation id"})
			return
		}
		if err := d.DeleteConversation(middleware.CurrentUserID(c), uint(cid)); err != nil {
			status, msg := statusFor(err)
			c.JSON(status, gin.H{"msg": msg})
			return
		}
		c.JSON(http.StatusOK, gin.H{"msg": "conversation deleted"})
	}
}

func DeleteAllConversations(d *chat.Dispatcher) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := d.DeleteAllConversations(middleware.CurrentUserID(c)); err != nil {
			status, msg := statusFor(err)
			c.JSON(status, gin.H{"msg": msg})
			return
		}
		c.JSON(http.StatusOK, gin.H{"msg": "conversations deleted"})
	}
}
