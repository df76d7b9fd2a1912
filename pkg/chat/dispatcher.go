package chat

import (
	"context"
	"fmt"
	"log"
	"strings"

	"PocketAI/models"
	"PocketAI/pkg/services"
	"PocketAI/pkg/store"
	utils "PocketAI/pkg/utills"

	"gorm.io/gorm"
)

const (
	imageCommand = "/image"
	titleMaxLen  = 50
)

// ModelGateway is the upstream LLM surface the dispatcher needs. Satisfied
// by *services.GeminiClient; tests substitute a fake.
type ModelGateway interface {
	GenerateText(ctx context.Context, chat []services.ChatMessage) (string, error)
	GenerateImage(ctx context.Context, prompt string) (services.ModelResult, error)
	DescribeImage(ctx context.Context, text, mimeType, imageBase64 string) (string, error)
}

// Dispatcher routes an inbound message to the right upstream model call,
// assembles dialogue context, and persists the resulting turn pair.
type Dispatcher struct {
	db      *gorm.DB
	gateway ModelGateway
}

func NewDispatcher(db *gorm.DB, gateway ModelGateway) *Dispatcher {
	return &Dispatcher{db: db, gateway: gateway}
}

type SendMessageInput struct {
	Message        string
	ConversationID *uint
	ImageBase64    string
	MimeType       string
}

// SendMessageOutput carries the persisted assistant reply and the resolved
// conversation id (freshly minted when the input carried none).
type SendMessageOutput struct {
	AssistantMessage *models.Message
	ConversationID   uint
}

// SendMessage is the core dispatch operation. Precedence: /image command,
// then image attachment, then plain chat with history. The user turn is
// written first, then the assistant turn; the two writes are sequential
// and untransacted, so a crash in between leaves an unpaired user message.
func (d *Dispatcher) SendMessage(ctx context.Context, userID uint, in SendMessageInput) (*SendMessageOutput, error) {
	if userID == 0 {
		return nil, ErrUnauthenticated
	}
	if strings.TrimSpace(in.Message) == "" {
		return nil, fmt.Errorf("%w: message is required", ErrInvalidInput)
	}

	scoped := store.ForUser(d.db, userID)

	var conv *models.Conversation
	var err error
	if in.ConversationID != nil {
		conv, err = scoped.FindConversation(*in.ConversationID)
		if err != nil {
			return nil, err
		}
	} else {
		conv, err = scoped.CreateConversation(utils.FirstRunes(in.Message, titleMaxLen))
		if err != nil {
			return nil, fmt.Errorf("%w: create conversation: %w", ErrPersistence, err)
		}
	}

	userType := models.TypeText
	replyContent := ""
	replyType := models.TypeText

	trimmed := strings.TrimSpace(in.Message)
	switch {
	case strings.HasPrefix(strings.ToLower(trimmed), imageCommand):
		userType = models.TypeImagePrompt
		prompt := strings.TrimLeft(trimmed[len(imageCommand):], " \t")
		replyContent, replyType, err = d.generateImage(ctx, prompt)

	case in.ImageBase64 != "":
		userType = models.TypeImageQuery
		replyContent, err = d.gateway.DescribeImage(ctx, in.Message, in.MimeType, in.ImageBase64)
		if err != nil {
			err = fmt.Errorf("%w: %w", ErrUpstream, err)
		}

	default:
		var history []services.ChatMessage
		history, err = loadHistory(scoped, conv.ID)
		if err != nil {
			return nil, fmt.Errorf("%w: load history: %w", ErrPersistence, err)
		}
		history = append(history, services.ChatMessage{Role: "user", Text: in.Message})
		replyContent, err = d.gateway.GenerateText(ctx, history)
		if err != nil {
			err = fmt.Errorf("%w: %w", ErrUpstream, err)
		}
	}
	if err != nil {
		return nil, err
	}

	userMsg := models.Message{
		ConversationID: conv.ID,
		Role:           models.RoleUser,
		Content:        in.Message,
		MessageType:    userType,
	}
	if err := scoped.AppendMessage(&userMsg); err != nil {
		return nil, fmt.Errorf("%w: save user message: %w", ErrPersistence, err)
	}

	assistantMsg := models.Message{
		ConversationID: conv.ID,
		Role:           models.RoleAssistant,
		Content:        replyContent,
		MessageType:    replyType,
	}
	if err := scoped.AppendMessage(&assistantMsg); err != nil {
		return nil, fmt.Errorf("%w: save assistant message: %w", ErrPersistence, err)
	}

	return &SendMessageOutput{AssistantMessage: &assistantMsg, ConversationID: conv.ID}, nil
}

// generateImage runs the /image branch: call the image model, encode an
// image payload as a data URI, or fall back to the text model when image
// generation itself fails.
func (d *Dispatcher) generateImage(ctx context.Context, prompt string) (content, msgType string, err error) {
	result, genErr := d.gateway.GenerateImage(ctx, prompt)
	if genErr != nil {
		log.Printf("[dispatch] image generation failed, falling back to text: %v", genErr)
		fallback := fmt.Sprintf(
			"The user asked to generate an image of: %s. Image generation is currently unavailable; respond conversationally about that request.",
			prompt)
		text, textErr := d.gateway.GenerateText(ctx, []services.ChatMessage{{Role: "user", Text: fallback}})
		if textErr != nil {
			return "", "", fmt.Errorf("%w: image generation: %w", ErrUpstream, genErr)
		}
		return text, models.TypeText, nil
	}

	switch result.Kind {
	case services.ResultImage:
		return fmt.Sprintf("data:%s;base64,%s", result.MimeType, result.Data), models.TypeImage, nil
	case services.ResultText:
		return result.Text, models.TypeText, nil
	default:
		return "", "", fmt.Errorf("%w: unrecognized image response", ErrUpstream)
	}
}

// ListConversations returns the caller's conversations, newest first.
func (d *Dispatcher) ListConversations(userID uint) ([]models.Conversation, error) {
	if userID == 0 {
		return nil, ErrUnauthenticated
	}
	convs, err := store.ForUser(d.db, userID).Conversations()
	if err != nil {
		return nil, fmt.Errorf("%w: list conversations: %w", ErrPersistence, err)
	}
	return convs, nil
}

// GetMessages returns every message of a conversation, oldest first.
func (d *Dispatcher) GetMessages(userID, conversationID uint) ([]models.Message, error) {
	if userID == 0 {
		return nil, ErrUnauthenticated
	}
	scoped := store.ForUser(d.db, userID)
	if _, err := scoped.FindConversation(conversationID); err != nil {
		return nil, err
	}
	msgs, err := scoped.Messages(conversationID)
	if err != nil {
		return nil, fmt.Errorf("%w: list messages: %w", ErrPersistence, err)
	}
	return msgs, nil
}

func (d *Dispatcher) DeleteConversation(userID, conversationID uint) error {
	if userID == 0 {
		return ErrUnauthenticated
	}
	err := store.ForUser(d.db, userID).DeleteConversation(conversationID)
	if err != nil && err != store.ErrNotFound {
		return fmt.Errorf("%w: delete conversation: %w", ErrPersistence, err)
	}
	return err
}

func (d *Dispatcher) DeleteAllConversations(userID uint) error {
	if userID == 0 {
		return ErrUnauthenticated
	}
	if err := store.ForUser(d.db, userID).DeleteAllConversations(); err != nil {
		return fmt.Errorf("%w: delete conversations: %w", ErrPersistence, err)
	}
	return nil
}
