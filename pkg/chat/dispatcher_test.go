package chat_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"PocketAI/models"
	"PocketAI/pkg/chat"
	"PocketAI/pkg/services"
	"PocketAI/pkg/store"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type fakeGateway struct {
	textReply string
	textErr   error
	lastChat  []services.ChatMessage

	imageResult     services.ModelResult
	imageErr        error
	lastImagePrompt string

	describeReply string
	describeErr   error
	lastDescribe  struct{ text, mime, data string }
}

func (f *fakeGateway) GenerateText(ctx context.Context, chat []services.ChatMessage) (string, error) {
	f.lastChat = append([]services.ChatMessage(nil), chat...)
	return f.textReply, f.textErr
}

func (f *fakeGateway) GenerateImage(ctx context.Context, prompt string) (services.ModelResult, error) {
	f.lastImagePrompt = prompt
	return f.imageResult, f.imageErr
}

func (f *fakeGateway) DescribeImage(ctx context.Context, text, mimeType, imageBase64 string) (string, error) {
	f.lastDescribe.text = text
	f.lastDescribe.mime = mimeType
	f.lastDescribe.data = imageBase64
	return f.describeReply, f.describeErr
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(&models.User{}, &models.Conversation{}, &models.Message{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func countMessages(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var n int64
	if err := db.Model(&models.Message{}).Count(&n).Error; err != nil {
		t.Fatalf("count messages: %v", err)
	}
	return n
}

func TestSendMessageCreatesConversation(t *testing.T) {
	db := newTestDB(t)
	gw := &fakeGateway{textReply: "hello there"}
	d := chat.NewDispatcher(db, gw)

	long := strings.Repeat("x", 60)
	out, err := d.SendMessage(context.Background(), 1, chat.SendMessageInput{Message: long})
	if err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	if out.ConversationID == 0 {
		t.Fatalf("expected a conversation id")
	}

	var conv models.Conversation
	if err := db.First(&conv, out.ConversationID).Error; err != nil {
		t.Fatalf("load conversation: %v", err)
	}
	if conv.Title != strings.Repeat("x", 50) {
		t.Fatalf("expected 50-char title, got %d chars", len(conv.Title))
	}
	if conv.UserID != 1 {
		t.Fatalf("expected conversation owned by user 1, got %d", conv.UserID)
	}

	msgs, err := store.ForUser(db, 1).Messages(out.ConversationID)
	if err != nil {
		t.Fatalf("list messages: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected user+assistant pair, got %d messages", len(msgs))
	}
	if msgs[0].Role != models.RoleUser || msgs[0].MessageType != models.TypeText {
		t.Fatalf("unexpected user message: %+v", msgs[0])
	}
	if msgs[1].Role != models.RoleAssistant || msgs[1].Content != "hello there" {
		t.Fatalf("unexpected assistant message: %+v", msgs[1])
	}
	if out.AssistantMessage.ID != msgs[1].ID {
		t.Fatalf("returned assistant message should be the persisted one")
	}
}

func TestPlainChatHistoryWindow(t *testing.T) {
	db := newTestDB(t)
	gw := &fakeGateway{textReply: "ok"}
	d := chat.NewDispatcher(db, gw)

	scoped := store.ForUser(db, 7)
	conv, err := scoped.CreateConversation("history")
	if err != nil {
		t.Fatalf("create conversation: %v", err)
	}

	base := time.Now().Add(-time.Hour)
	// 24 text turns plus interleaved image turns that must never reach the model
	for i := 0; i < 24; i++ {
		role := models.RoleUser
		if i%2 == 1 {
			role = models.RoleAssistant
		}
		m := models.Message{
			ConversationID: conv.ID,
			Role:           role,
			Content:        fmt.Sprintf("turn-%02d", i),
			MessageType:    models.TypeText,
		}
		m.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		if err := scoped.AppendMessage(&m); err != nil {
			t.Fatalf("seed message: %v", err)
		}
	}
	img := models.Message{
		ConversationID: conv.ID,
		Role:           models.RoleAssistant,
		Content:        "data:image/png;base64,AAAA",
		MessageType:    models.TypeImage,
	}
	img.CreatedAt = base.Add(30 * time.Minute)
	if err := scoped.AppendMessage(&img); err != nil {
		t.Fatalf("seed image message: %v", err)
	}

	if _, err := d.SendMessage(context.Background(), 7, chat.SendMessageInput{
		Message:        "what next?",
		ConversationID: &conv.ID,
	}); err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}

	// 20 most recent text turns + the new user turn
	if len(gw.lastChat) != 21 {
		t.Fatalf("expected 21 turns, got %d", len(gw.lastChat))
	}
	if gw.lastChat[0].Text != "turn-04" {
		t.Fatalf("expected window to start at turn-04, got %q", gw.lastChat[0].Text)
	}
	if gw.lastChat[19].Text != "turn-23" {
		t.Fatalf("expected window to end at turn-23, got %q", gw.lastChat[19].Text)
	}
	if gw.lastChat[20].Role != "user" || gw.lastChat[20].Text != "what next?" {
		t.Fatalf("expected final turn to be the new message, got %+v", gw.lastChat[20])
	}
	for i, turn := range gw.lastChat[:20] {
		want := "user"
		if (i+4)%2 == 1 {
			want = "model"
		}
		if turn.Role != want {
			t.Fatalf("turn %d: expected role %s, got %s", i, want, turn.Role)
		}
		if strings.HasPrefix(turn.Text, "data:") {
			t.Fatalf("image message leaked into model context")
		}
	}
}

func TestImageCommand(t *testing.T) {
	db := newTestDB(t)
	gw := &fakeGateway{imageResult: services.ModelResult{
		Kind:     services.ResultImage,
		MimeType: "image/png",
		Data:     "UE5HZGF0YQ==",
	}}
	d := chat.NewDispatcher(db, gw)

	out, err := d.SendMessage(context.Background(), 1, chat.SendMessageInput{Message: "  /Image  a red fox  "})
	if err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	if gw.lastImagePrompt != "a red fox" {
		t.Fatalf("expected stripped prompt, got %q", gw.lastImagePrompt)
	}
	if out.AssistantMessage.MessageType != models.TypeImage {
		t.Fatalf("expected image kind, got %s", out.AssistantMessage.MessageType)
	}
	if out.AssistantMessage.Content != "data:image/png;base64,UE5HZGF0YQ==" {
		t.Fatalf("unexpected data URI: %q", out.AssistantMessage.Content)
	}

	msgs, _ := store.ForUser(db, 1).Messages(out.ConversationID)
	if len(msgs) != 2 || msgs[0].MessageType != models.TypeImagePrompt {
		t.Fatalf("expected user message kind image_prompt, got %+v", msgs)
	}
}

func TestImageCommandTextResult(t *testing.T) {
	db := newTestDB(t)
	gw := &fakeGateway{imageResult: services.ModelResult{
		Kind: services.ResultText,
		Text: "I cannot draw that.",
	}}
	d := chat.NewDispatcher(db, gw)

	out, err := d.SendMessage(context.Background(), 1, chat.SendMessageInput{Message: "/image something"})
	if err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	if out.AssistantMessage.MessageType != models.TypeText || out.AssistantMessage.Content != "I cannot draw that." {
		t.Fatalf("expected text reply, got %+v", out.AssistantMessage)
	}
}

func TestImageGenerationFallsBackToText(t *testing.T) {
	db := newTestDB(t)
	gw := &fakeGateway{
		imageErr:  errors.New("image model unavailable"),
		textReply: "Sorry, no image today.",
	}
	d := chat.NewDispatcher(db, gw)

	out, err := d.SendMessage(context.Background(), 1, chat.SendMessageInput{Message: "/image a castle"})
	if err != nil {
		t.Fatalf("expected fallback to succeed, got %v", err)
	}
	if out.AssistantMessage.MessageType != models.TypeText || out.AssistantMessage.Content != "Sorry, no image today." {
		t.Fatalf("unexpected fallback reply: %+v", out.AssistantMessage)
	}
	if len(gw.lastChat) != 1 || !strings.Contains(gw.lastChat[0].Text, "a castle") {
		t.Fatalf("fallback prompt should mention the failed prompt, got %+v", gw.lastChat)
	}
}

func TestImageFallbackAlsoFails(t *testing.T) {
	db := newTestDB(t)
	gw := &fakeGateway{
		imageErr: errors.New("image model down"),
		textErr:  errors.New("text model down"),
	}
	d := chat.NewDispatcher(db, gw)

	_, err := d.SendMessage(context.Background(), 1, chat.SendMessageInput{Message: "/image a castle"})
	if !errors.Is(err, chat.ErrUpstream) {
		t.Fatalf("expected ErrUpstream, got %v", err)
	}
	if n := countMessages(t, db); n != 0 {
		t.Fatalf("expected no persisted messages after upstream failure, got %d", n)
	}
}

func TestImageAttachment(t *testing.T) {
	db := newTestDB(t)
	gw := &fakeGateway{describeReply: "That is a cat."}
	d := chat.NewDispatcher(db, gw)

	out, err := d.SendMessage(context.Background(), 1, chat.SendMessageInput{
		Message:     "what is this?",
		ImageBase64: "Y2F0cGl4ZWxz",
		MimeType:    "image/jpeg",
	})
	if err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	if gw.lastDescribe.text != "what is this?" || gw.lastDescribe.mime != "image/jpeg" || gw.lastDescribe.data != "Y2F0cGl4ZWxz" {
		t.Fatalf("multimodal call got %+v", gw.lastDescribe)
	}

	msgs, _ := store.ForUser(db, 1).Messages(out.ConversationID)
	if msgs[0].MessageType != models.TypeImageQuery {
		t.Fatalf("expected user kind image_query, got %s", msgs[0].MessageType)
	}
	if msgs[1].MessageType != models.TypeText || msgs[1].Content != "That is a cat." {
		t.Fatalf("unexpected assistant message: %+v", msgs[1])
	}
}

func TestUnauthenticated(t *testing.T) {
	db := newTestDB(t)
	d := chat.NewDispatcher(db, &fakeGateway{textReply: "hi"})

	if _, err := d.SendMessage(context.Background(), 0, chat.SendMessageInput{Message: "hi"}); !errors.Is(err, chat.ErrUnauthenticated) {
		t.Fatalf("SendMessage: expected ErrUnauthenticated, got %v", err)
	}
	if _, err := d.ListConversations(0); !errors.Is(err, chat.ErrUnauthenticated) {
		t.Fatalf("ListConversations: expected ErrUnauthenticated, got %v", err)
	}
	if _, err := d.GetMessages(0, 1); !errors.Is(err, chat.ErrUnauthenticated) {
		t.Fatalf("GetMessages: expected ErrUnauthenticated, got %v", err)
	}
	if n := countMessages(t, db); n != 0 {
		t.Fatalf("expected no writes, got %d messages", n)
	}
}

func TestEmptyMessageRejected(t *testing.T) {
	db := newTestDB(t)
	d := chat.NewDispatcher(db, &fakeGateway{})

	_, err := d.SendMessage(context.Background(), 1, chat.SendMessageInput{Message: "   "})
	if !errors.Is(err, chat.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestRoundTrip(t *testing.T) {
	db := newTestDB(t)
	gw := &fakeGateway{textReply: "first reply"}
	d := chat.NewDispatcher(db, gw)

	out, err := d.SendMessage(context.Background(), 3, chat.SendMessageInput{Message: "first question"})
	if err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}

	msgs, err := d.GetMessages(3, out.ConversationID)
	if err != nil {
		t.Fatalf("GetMessages failed: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].Content != "first question" || msgs[0].Role != models.RoleUser || msgs[0].MessageType != models.TypeText {
		t.Fatalf("user message did not round-trip: %+v", msgs[0])
	}
	if msgs[1].Content != "first reply" || msgs[1].Role != models.RoleAssistant {
		t.Fatalf("assistant message did not round-trip: %+v", msgs[1])
	}
}

func TestScopedIsolation(t *testing.T) {
	db := newTestDB(t)
	gw := &fakeGateway{textReply: "mine"}
	d := chat.NewDispatcher(db, gw)

	out, err := d.SendMessage(context.Background(), 1, chat.SendMessageInput{Message: "private"})
	if err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}

	// another user cannot read or write into that conversation
	if _, err := d.GetMessages(2, out.ConversationID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for foreign conversation, got %v", err)
	}
	if _, err := d.SendMessage(context.Background(), 2, chat.SendMessageInput{
		Message:        "intrusion",
		ConversationID: &out.ConversationID,
	}); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on foreign write, got %v", err)
	}

	convs, err := d.ListConversations(2)
	if err != nil {
		t.Fatalf("ListConversations failed: %v", err)
	}
	if len(convs) != 0 {
		t.Fatalf("user 2 should see no conversations, got %d", len(convs))
	}
}

func TestListConversationsNewestFirst(t *testing.T) {
	db := newTestDB(t)
	scoped := store.ForUser(db, 5)

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		conv := models.Conversation{UserID: 5, Title: fmt.Sprintf("conv-%d", i)}
		conv.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		if err := db.Create(&conv).Error; err != nil {
			t.Fatalf("seed conversation: %v", err)
		}
	}

	convs, err := scoped.Conversations()
	if err != nil {
		t.Fatalf("Conversations failed: %v", err)
	}
	if len(convs) != 3 {
		t.Fatalf("expected 3 conversations, got %d", len(convs))
	}
	if convs[0].Title != "conv-2" || convs[2].Title != "conv-0" {
		t.Fatalf("expected newest first, got %s .. %s", convs[0].Title, convs[2].Title)
	}
}

func TestDeleteConversation(t *testing.T) {
	db := newTestDB(t)
	gw := &fakeGateway{textReply: "bye"}
	d := chat.NewDispatcher(db, gw)

	out, err := d.SendMessage(context.Background(), 1, chat.SendMessageInput{Message: "to be deleted"})
	if err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}

	if err := d.DeleteConversation(1, out.ConversationID); err != nil {
		t.Fatalf("DeleteConversation failed: %v", err)
	}
	if _, err := d.GetMessages(1, out.ConversationID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected conversation gone, got %v", err)
	}
}
