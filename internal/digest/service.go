package digest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/url"
	"strings"

	shoutrrr "github.com/nicholas-fedor/shoutrrr"
	router "github.com/nicholas-fedor/shoutrrr/pkg/router"
	stypes "github.com/nicholas-fedor/shoutrrr/pkg/types"
	"go.uber.org/zap"

	"github.com/clearfield-labs/noteloop/internal/review"
)

// ErrMissingSMTPURL indicates the digest sender was not configured.
var ErrMissingSMTPURL = errors.New("digest: smtp url is required")

// PendingProvider supplies the current pending-review snapshot.
type PendingProvider interface {
	Pending(ctx context.Context) (review.PendingResult, error)
}

// ServiceConfig bundles the dependencies for the digest service. SMTPURL is
// a shoutrrr smtp:// URL; recipients and HTML delivery ride on its query
// parameters.
type ServiceConfig struct {
	Pending PendingProvider
	SMTPURL string
	BaseURL string
	Logger  *zap.Logger
}

// Service emails the daily review digest.
type Service struct {
	pending  PendingProvider
	sender   *router.ServiceRouter
	htmlBody bool
	baseURL  string
	logger   *zap.Logger
}

// NewService constructs the digest service and validates the SMTP URL.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Pending == nil {
		return nil, fmt.Errorf("digest: pending provider is required")
	}
	if cfg.SMTPURL == "" {
		return nil, ErrMissingSMTPURL
	}

	sender, err := shoutrrr.CreateSender(cfg.SMTPURL)
	if err != nil {
		return nil, fmt.Errorf("digest: invalid smtp url: %w", err)
	}
	sender.SetLogger(log.New(io.Discard, "", 0))

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		pending:  cfg.Pending,
		sender:   sender,
		htmlBody: htmlDelivery(cfg.SMTPURL),
		baseURL:  cfg.BaseURL,
		logger:   logger,
	}, nil
}

// htmlDelivery reports whether the shoutrrr smtp URL requests text/html
// bodies via its usehtml parameter. Without it the smtp service delivers
// the body as plain text, so the digest must hand over the text rendering.
func htmlDelivery(rawURL string) bool {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	switch strings.ToLower(parsed.Query().Get("usehtml")) {
	case "yes", "true", "1":
		return true
	default:
		return false
	}
}

// deliveryBody picks the rendering that matches the configured delivery
// mode: the HTML document for usehtml senders, the derived plain text
// otherwise.
func (s *Service) deliveryBody(email Email) string {
	if s.htmlBody {
		return email.HTML
	}
	return email.Text
}

// Send renders the digest for today's pending reviews and emails it. The
// digest goes out even when nothing is pending so the recipient knows the
// pipeline ran.
func (s *Service) Send(ctx context.Context) (Email, error) {
	pending, err := s.pending.Pending(ctx)
	if err != nil {
		return Email{}, fmt.Errorf("digest: load pending reviews: %w", err)
	}

	email := Render(pending, s.baseURL)

	params := stypes.Params{}
	params.SetTitle(email.Subject)
	sendErrors := s.sender.Send(s.deliveryBody(email), &params)
	for _, sendErr := range sendErrors {
		if sendErr != nil {
			return Email{}, fmt.Errorf("digest: send email: %w", sendErr)
		}
	}

	s.logger.Info("review digest sent",
		zap.Int("total", email.Total),
		zap.Int("next_day", email.NextDayCount),
		zap.Int("week_later", email.WeekLaterCount))
	return email, nil
}
