package store

import (
	"errors"

	"PocketAI/models"

	"gorm.io/gorm"
)

// ErrNotFound is returned when a conversation does not exist for the
// scoped caller (including conversations owned by someone else).
var ErrNotFound = errors.New("conversation not found")

// Scoped is a per-request data-access handle bound to one caller. Every
// query it issues carries the caller's user id, so rows owned by other
// users are never visible or writable through it.
type Scoped struct {
	db     *gorm.DB
	userID uint
}

func ForUser(db *gorm.DB, userID uint) Scoped {
	return Scoped{db: db, userID: userID}
}

func (s Scoped) UserID() uint { return s.userID }

func (s Scoped) CreateConversation(title string) (*models.Conversation, error) {
	conv := models.Conversation{UserID: s.userID, Title: title}
	if err := s.db.Create(&conv).Error; err != nil {
		return nil, err
	}
	return &conv, nil
}

func (s Scoped) FindConversation(id uint) (*models.Conversation, error) {
	var conv models.Conversation
	err := s.db.Where("id = ? AND user_id = ?", id, s.userID).First(&conv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

// Conversations lists the caller's conversations, newest-created first.
func (s Scoped) Conversations() ([]models.Conversation, error) {
	var convs []models.Conversation
	err := s.db.Where("user_id = ?", s.userID).
		Order("created_at DESC, id DESC").
		Find(&convs).Error
	return convs, err
}

// Messages returns every message of a conversation, oldest first, all
// kinds included. Used for display, not for model context.
func (s Scoped) Messages(conversationID uint) ([]models.Message, error) {
	var msgs []models.Message
	err := s.db.Where("conversation_id = ? AND user_id = ?", conversationID, s.userID).
		Order("created_at ASC, id ASC").
		Find(&msgs).Error
	return msgs, err
}

// RecentTextMessages returns up to limit most recent kind=text messages of
// a conversation, reordered oldest first. A missing or empty conversation
// yields an empty slice, never an error.
func (s Scoped) RecentTextMessages(conversationID uint, limit int) ([]models.Message, error) {
	var msgs []models.Message
	err := s.db.Where("conversation_id = ? AND user_id = ? AND message_type = ?",
		conversationID, s.userID, models.TypeText).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&msgs).Error
	if err != nil {
		return nil, err
	}
	// reverse into chronological order
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// AppendMessage persists a message on behalf of the scoped caller. The
// owning user id is always taken from the scope, never from the caller's
// struct, so a message cannot be written into another user's row space.
func (s Scoped) AppendMessage(m *models.Message) error {
	m.UserID = s.userID
	return s.db.Create(m).Error
}

// DeleteConversation removes a conversation and its messages.
func (s Scoped) DeleteConversation(id uint) error {
	conv, err := s.FindConversation(id)
	if err != nil {
		return err
	}
	if err := s.db.Where("conversation_id = ?", conv.ID).Delete(&models.Message{}).Error; err != nil {
		return err
	}
	return s.db.Delete(conv).Error
}

// DeleteAllConversations removes every conversation owned by the caller.
func (s Scoped) DeleteAllConversations() error {
	var convs []models.Conversation
	if err := s.db.Where("user_id = ?", s.userID).Find(&convs).Error; err != nil {
		return err
	}
	for _, conv := range convs {
		if err := s.db.Where("conversation_id = ?", conv.ID).Delete(&models.Message{}).Error; err != nil {
			return err
		}
		if err := s.db.Delete(&conv).Error; err != nil {
			return err
		}
	}
	return nil
}
