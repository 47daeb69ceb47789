package users

import "time"

// Identity records a Google login seen by the service.
type Identity struct {
	Subject     string    `gorm:"column:subject;primaryKey;size:190;not null"`
	Email       string    `gorm:"column:email;size:320"`
	DisplayName string    `gorm:"column:display_name;size:320"`
	AvatarURL   string    `gorm:"column:avatar_url;size:512"`
	LastSeenAt  time.Time `gorm:"column:last_seen_at;not null"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName exposes the table backing user identities.
func (Identity) TableName() string {
	return "user_identities"
}
