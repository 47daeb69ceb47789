package chat

import "time"

// Conversation groups a user's chat messages under a short title.
type Conversation struct {
	ID        string    `gorm:"column:id;primaryKey;size:36;not null" json:"id"`
	UserID    string    `gorm:"column:user_id;size:190;not null;index" json:"userId"`
	Title     string    `gorm:"column:title;size:320;not null" json:"title"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null" json:"updatedAt"`
}

// TableName exposes the table backing conversations.
func (Conversation) TableName() string {
	return "chat_conversations"
}

// Message is one stored turn of a conversation.
type Message struct {
	ID             string    `gorm:"column:id;primaryKey;size:36;not null" json:"id"`
	ConversationID string    `gorm:"column:conversation_id;size:36;not null;index" json:"conversationId"`
	Role           string    `gorm:"column:role;size:16;not null" json:"role"`
	Content        string    `gorm:"column:content;not null" json:"content"`
	CreatedAt      time.Time `gorm:"column:created_at;not null" json:"createdAt"`
}

// TableName exposes the table backing conversation messages.
func (Message) TableName() string {
	return "chat_messages"
}
