package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix            = "NOTELOOP"
	defaultHTTPAddress   = "0.0.0.0:8080"
	defaultDatabasePath  = "noteloop.db"
	defaultLogLevel      = "info"
	defaultCookieName    = "noteloop_session"
	defaultSessionIssuer = "noteloop-api"
	defaultSummaryModel  = "gpt-4o-mini"
	defaultChatModel     = "gpt-4o"
	defaultJWKSURL       = "https://www.googleapis.com/oauth2/v3/certs"
	defaultSessionTTL    = 12 * time.Hour
)

// DriveFolder binds a Google Drive folder to the note source its documents carry.
type DriveFolder struct {
	FolderID string
	Source   string
	Name     string
}

// AppConfig captures runtime configuration for the API server.
type AppConfig struct {
	HTTPAddress  string
	DatabasePath string
	LogLevel     string
	BaseURL      string

	NotionToken      string
	NotionDatabaseID string

	OpenAIKey    string
	SummaryModel string
	ChatModel    string

	GoogleCredentialsJSON string
	GoogleCredentialsFile string
	DriveFolders          []DriveFolder

	IngestSecret string
	SyncAPIKey   string
	CronSecret   string

	SMTPURL string

	SessionSigningKey string
	SessionCookieName string
	SessionIssuer     string
	SessionTTL        time.Duration
	GoogleClientID    string
	GoogleJWKSURL     string

	ReviewTimezone string
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("openai.summary_model", defaultSummaryModel)
	configViper.SetDefault("openai.chat_model", defaultChatModel)
	configViper.SetDefault("session.cookie_name", defaultCookieName)
	configViper.SetDefault("session.issuer", defaultSessionIssuer)
	configViper.SetDefault("session.ttl_minutes", int(defaultSessionTTL.Minutes()))
	configViper.SetDefault("google.jwks_url", defaultJWKSURL)
	configViper.SetDefault("review.timezone", "Local")
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	folders, err := parseDriveFolders(configViper.GetStringSlice("drive.folders"))
	if err != nil {
		return AppConfig{}, err
	}

	cfg := AppConfig{
		HTTPAddress:  configViper.GetString("http.address"),
		DatabasePath: configViper.GetString("database.path"),
		LogLevel:     configViper.GetString("log.level"),
		BaseURL:      strings.TrimRight(configViper.GetString("app.base_url"), "/"),

		NotionToken:      configViper.GetString("notion.token"),
		NotionDatabaseID: configViper.GetString("notion.database_id"),

		OpenAIKey:    configViper.GetString("openai.api_key"),
		SummaryModel: configViper.GetString("openai.summary_model"),
		ChatModel:    configViper.GetString("openai.chat_model"),

		GoogleCredentialsJSON: configViper.GetString("google.credentials_json"),
		GoogleCredentialsFile: configViper.GetString("google.credentials_file"),
		DriveFolders:          folders,

		IngestSecret: configViper.GetString("ingest.shared_secret"),
		SyncAPIKey:   configViper.GetString("sync.api_key"),
		CronSecret:   configViper.GetString("cron.secret"),

		SMTPURL: configViper.GetString("email.smtp_url"),

		SessionSigningKey: configViper.GetString("session.signing_secret"),
		SessionCookieName: configViper.GetString("session.cookie_name"),
		SessionIssuer:     configViper.GetString("session.issuer"),
		SessionTTL:        time.Duration(configViper.GetInt("session.ttl_minutes")) * time.Minute,
		GoogleClientID:    configViper.GetString("google.client_id"),
		GoogleJWKSURL:     configViper.GetString("google.jwks_url"),

		ReviewTimezone: configViper.GetString("review.timezone"),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.NotionToken) == "" {
		return fmt.Errorf("notion.token is required")
	}
	if strings.TrimSpace(c.NotionDatabaseID) == "" {
		return fmt.Errorf("notion.database_id is required")
	}
	if strings.TrimSpace(c.OpenAIKey) == "" {
		return fmt.Errorf("openai.api_key is required")
	}
	if strings.TrimSpace(c.GoogleClientID) == "" {
		return fmt.Errorf("google.client_id is required")
	}
	if strings.TrimSpace(c.GoogleCredentialsJSON) == "" && strings.TrimSpace(c.GoogleCredentialsFile) == "" {
		return fmt.Errorf("google.credentials_json or google.credentials_file is required")
	}
	if strings.TrimSpace(c.IngestSecret) == "" {
		return fmt.Errorf("ingest.shared_secret is required")
	}
	if strings.TrimSpace(c.SMTPURL) == "" {
		return fmt.Errorf("email.smtp_url is required")
	}
	if strings.TrimSpace(c.SessionSigningKey) == "" {
		return fmt.Errorf("session.signing_secret is required")
	}
	if strings.TrimSpace(c.SessionCookieName) == "" {
		return fmt.Errorf("session.cookie_name is required")
	}
	if strings.TrimSpace(c.DatabasePath) == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("session.ttl_minutes must be positive")
	}
	return nil
}

// parseDriveFolders accepts "folderID:source[:name]" entries.
func parseDriveFolders(raw []string) ([]DriveFolder, error) {
	folders := make([]DriveFolder, 0, len(raw))
	for _, entry := range raw {
		trimmed := strings.TrimSpace(entry)
		if trimmed == "" {
			continue
		}
		segments := strings.SplitN(trimmed, ":", 3)
		if len(segments) < 2 {
			return nil, fmt.Errorf("drive.folders entry %q must be folderID:source[:name]", entry)
		}
		folder := DriveFolder{
			FolderID: strings.TrimSpace(segments[0]),
			Source:   strings.TrimSpace(segments[1]),
		}
		if folder.FolderID == "" || folder.Source == "" {
			return nil, fmt.Errorf("drive.folders entry %q must be folderID:source[:name]", entry)
		}
		if len(segments) == 3 && strings.TrimSpace(segments[2]) != "" {
			folder.Name = strings.TrimSpace(segments[2])
		} else {
			folder.Name = folder.Source + " Notes"
		}
		folders = append(folders, folder)
	}
	return folders, nil
}
