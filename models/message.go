package models

import (
	"gorm.io/gorm"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message kinds. Image results are stored as data URIs in Content.
const (
	TypeText        = "text"
	TypeImage       = "image"
	TypeImagePrompt = "image_prompt"
	TypeImageQuery  = "image_query"
)

type Message struct {
	gorm.Model
	ConversationID uint   `gorm:"index;not null"`
	UserID         uint   `gorm:"index;not null"`
	Role           string `gorm:"size:20;not null"` // "user" or "assistant"
	Content        string `gorm:"type:longtext;not null"` // data URIs exceed 64KB TEXT on MySQL
	MessageType    string `gorm:"size:20;not null;default:text"`
}
