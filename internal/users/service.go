package users

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/clearfield-labs/noteloop/internal/auth"
)

// ErrInvalidIdentity indicates the verified token carried no usable subject.
var ErrInvalidIdentity = errors.New("users: invalid identity")

// ServiceConfig describes the dependencies for identity tracking.
type ServiceConfig struct {
	Database *gorm.DB
	Clock    func() time.Time
}

// Service upserts the identity behind each successful login so profile data
// stays current without a separate user admin surface.
type Service struct {
	db  *gorm.DB
	now func() time.Time
}

// NewService constructs the identity service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("users: database connection required")
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Service{db: cfg.Database, now: clock}, nil
}

// RecordLogin stores or refreshes the identity for a verified Google login
// and returns the stable user id.
func (s *Service) RecordLogin(identity auth.GoogleIdentity) (string, error) {
	subject := strings.TrimSpace(identity.Subject)
	if subject == "" {
		return "", ErrInvalidIdentity
	}

	var stored Identity
	err := s.db.Where("subject = ?", subject).First(&stored).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		stored = Identity{
			Subject:     subject,
			Email:       strings.TrimSpace(identity.Email),
			DisplayName: strings.TrimSpace(identity.Name),
			AvatarURL:   strings.TrimSpace(identity.Picture),
			LastSeenAt:  s.now(),
		}
		if err := s.db.Create(&stored).Error; err != nil {
			return "", err
		}
		return subject, nil
	}
	if err != nil {
		return "", err
	}

	updates := map[string]interface{}{"last_seen_at": s.now()}
	if email := strings.TrimSpace(identity.Email); email != "" && email != stored.Email {
		updates["email"] = email
	}
	if name := strings.TrimSpace(identity.Name); name != "" && name != stored.DisplayName {
		updates["display_name"] = name
	}
	if avatar := strings.TrimSpace(identity.Picture); avatar != "" && avatar != stored.AvatarURL {
		updates["avatar_url"] = avatar
	}
	if err := s.db.Model(&Identity{}).Where("subject = ?", subject).Updates(updates).Error; err != nil {
		return "", err
	}
	return subject, nil
}
