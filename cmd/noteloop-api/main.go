package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/clearfield-labs/noteloop/internal/auth"
	"github.com/clearfield-labs/noteloop/internal/chat"
	"github.com/clearfield-labs/noteloop/internal/config"
	"github.com/clearfield-labs/noteloop/internal/database"
	"github.com/clearfield-labs/noteloop/internal/digest"
	"github.com/clearfield-labs/noteloop/internal/drive"
	"github.com/clearfield-labs/noteloop/internal/llm"
	"github.com/clearfield-labs/noteloop/internal/logging"
	"github.com/clearfield-labs/noteloop/internal/notion"
	"github.com/clearfield-labs/noteloop/internal/review"
	"github.com/clearfield-labs/noteloop/internal/server"
	"github.com/clearfield-labs/noteloop/internal/syncer"
	"github.com/clearfield-labs/noteloop/internal/users"
)

var (
	cfgFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "noteloop-api",
		Short: "Noteloop review middleware service",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}

	setupFlags(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	cmd.PersistentFlags().String("database-path", defaults.GetString("database.path"), "SQLite database path")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("base-url", defaults.GetString("app.base_url"), "Public base URL used in digest links")
	cmd.PersistentFlags().String("notion-database-id", defaults.GetString("notion.database_id"), "Notion database ID")
	cmd.PersistentFlags().String("summary-model", defaults.GetString("openai.summary_model"), "Model used for note summarization")
	cmd.PersistentFlags().String("chat-model", defaults.GetString("openai.chat_model"), "Model used for chat answers")
	cmd.PersistentFlags().String("google-client-id", defaults.GetString("google.client_id"), "Google OAuth client ID")
	cmd.PersistentFlags().String("google-jwks-url", defaults.GetString("google.jwks_url"), "Google JWKS URL")
	cmd.PersistentFlags().Int("session-ttl-minutes", defaults.GetInt("session.ttl_minutes"), "Session token TTL in minutes")
	cmd.PersistentFlags().String("signing-secret", "", "Session signing secret (overrides env)")
	cmd.PersistentFlags().String("review-timezone", defaults.GetString("review.timezone"), "Timezone used for review windows")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "database.path", "database-path")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "app.base_url", "base-url")
	bindFlag(cmd, "notion.database_id", "notion-database-id")
	bindFlag(cmd, "openai.summary_model", "summary-model")
	bindFlag(cmd, "openai.chat_model", "chat-model")
	bindFlag(cmd, "google.client_id", "google-client-id")
	bindFlag(cmd, "google.jwks_url", "google-jwks-url")
	bindFlag(cmd, "session.ttl_minutes", "session-ttl-minutes")
	bindFlag(cmd, "session.signing_secret", "signing-secret")
	bindFlag(cmd, "review.timezone", "review-timezone")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if cfgFile != "" && errors.As(err, &configNotFound) {
			return err
		}
	}

	return nil
}

func runServer(ctx context.Context) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	db, err := database.OpenSQLite(appConfig.DatabasePath, logger)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	location, err := time.LoadLocation(appConfig.ReviewTimezone)
	if err != nil {
		return err
	}

	sessionManager, err := auth.NewSessionManager(auth.SessionManagerConfig{
		SigningKey: []byte(appConfig.SessionSigningKey),
		Issuer:     appConfig.SessionIssuer,
		CookieName: appConfig.SessionCookieName,
		TTL:        appConfig.SessionTTL,
	})
	if err != nil {
		return err
	}

	googleVerifier, err := auth.NewGoogleVerifier(auth.GoogleVerifierConfig{
		ClientID: appConfig.GoogleClientID,
		JWKSURL:  appConfig.GoogleJWKSURL,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	userService, err := users.NewService(users.ServiceConfig{Database: db})
	if err != nil {
		return err
	}

	recordStore, err := notion.NewStore(notion.StoreConfig{
		Token:      appConfig.NotionToken,
		DatabaseID: appConfig.NotionDatabaseID,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	reviewService, err := review.NewService(review.ServiceConfig{
		Store:    recordStore,
		Location: location,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	llmClient, err := llm.NewClient(llm.ClientConfig{
		APIKey:       appConfig.OpenAIKey,
		SummaryModel: appConfig.SummaryModel,
		ChatModel:    appConfig.ChatModel,
		Logger:       logger,
	})
	if err != nil {
		return err
	}

	driveClient, err := drive.NewClient(ctx, drive.ClientConfig{
		CredentialsJSON: appConfig.GoogleCredentialsJSON,
		CredentialsFile: appConfig.GoogleCredentialsFile,
		Logger:          logger,
	})
	if err != nil {
		return err
	}

	syncService, err := syncer.NewService(syncer.ServiceConfig{
		Source:     driveClient,
		Summarizer: llmClient,
		Store:      recordStore,
		Database:   db,
		Folders:    appConfig.DriveFolders,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	chatService, err := chat.NewService(chat.ServiceConfig{
		Store:     recordStore,
		Responder: llmClient,
		Database:  db,
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	digestService, err := digest.NewService(digest.ServiceConfig{
		Pending: reviewService,
		SMTPURL: appConfig.SMTPURL,
		BaseURL: appConfig.BaseURL,
		Logger:  logger,
	})
	if err != nil {
		return err
	}

	handler, err := server.NewHTTPHandler(server.Dependencies{
		GoogleVerifier: googleVerifier,
		Sessions:       sessionManager,
		Identities:     userService,
		Review:         reviewService,
		Records:        recordStore,
		Summarizer:     llmClient,
		Chat:           chatService,
		Sync:           syncService,
		Digest:         digestService,
		IngestSecret:   appConfig.IngestSecret,
		SyncAPIKey:     appConfig.SyncAPIKey,
		CronSecret:     appConfig.CronSecret,
		Logger:         logger,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:    appConfig.HTTPAddress,
		Handler: handler,
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("address", appConfig.HTTPAddress))
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
