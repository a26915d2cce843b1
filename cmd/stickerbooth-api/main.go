package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lumetrymedia/stickerbooth/backend/internal/auth"
	"github.com/lumetrymedia/stickerbooth/backend/internal/config"
	"github.com/lumetrymedia/stickerbooth/backend/internal/database"
	"github.com/lumetrymedia/stickerbooth/backend/internal/events"
	"github.com/lumetrymedia/stickerbooth/backend/internal/imaging"
	"github.com/lumetrymedia/stickerbooth/backend/internal/logging"
	"github.com/lumetrymedia/stickerbooth/backend/internal/notify"
	"github.com/lumetrymedia/stickerbooth/backend/internal/presets"
	"github.com/lumetrymedia/stickerbooth/backend/internal/server"
	"github.com/lumetrymedia/stickerbooth/backend/internal/storage"
	"github.com/lumetrymedia/stickerbooth/backend/internal/submissions"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	cfgFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "stickerbooth-api",
		Short: "Sticker booth backend service",
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
	cmd.PersistentFlags().String("base-url", defaults.GetString("http.base_url"), "Public base URL used in notification links")
	cmd.PersistentFlags().String("database-path", defaults.GetString("database.path"), "SQLite database path")
	cmd.PersistentFlags().Int("token-ttl-minutes", defaults.GetInt("token.ttl_minutes"), "Client token TTL in minutes")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("signing-secret", "", "Token signing secret (overrides env)")
	cmd.PersistentFlags().String("s3-bucket", defaults.GetString("s3.bucket"), "S3 bucket for photos and generated images")
	cmd.PersistentFlags().String("s3-endpoint", defaults.GetString("s3.endpoint"), "Custom S3 endpoint (leave empty for AWS)")
	cmd.PersistentFlags().String("s3-region", defaults.GetString("s3.region"), "S3 region")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "http.base_url", "base-url")
	bindFlag(cmd, "database.path", "database-path")
	bindFlag(cmd, "token.ttl_minutes", "token-ttl-minutes")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "auth.signing_secret", "signing-secret")
	bindFlag(cmd, "s3.bucket", "s3-bucket")
	bindFlag(cmd, "s3.endpoint", "s3-endpoint")
	bindFlag(cmd, "s3.region", "s3-region")
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

	tokenManager := auth.NewTokenIssuer(auth.TokenIssuerConfig{
		SigningSecret: []byte(appConfig.SigningSecret),
		Issuer:        "stickerbooth-auth",
		Audience:      "stickerbooth-api",
		TokenTTL:      appConfig.TokenTTL,
	})

	store, err := storage.NewGateway(ctx, storage.Config{
		Bucket:       appConfig.S3Bucket,
		Region:       appConfig.S3Region,
		Endpoint:     appConfig.S3Endpoint,
		AccessKeyID:  appConfig.S3AccessKeyID,
		SecretKey:    appConfig.S3SecretKey,
		UsePathStyle: appConfig.S3UsePathStyle,
	}, logger)
	if err != nil {
		return err
	}

	dispatcher := notify.NewDispatcher(notify.Config{
		BaseURL:           appConfig.BaseURL,
		SendgridAPIKey:    appConfig.SendgridAPIKey,
		SendgridFromEmail: appConfig.SendgridFromEmail,
		SendgridFromName:  appConfig.SendgridFromName,
		TwilioAccountSID:  appConfig.TwilioAccountSID,
		TwilioAuthToken:   appConfig.TwilioAuthToken,
		TwilioFromNumber:  appConfig.TwilioFromNumber,
	}, logger)

	idProvider := submissions.NewUUIDProvider()

	eventService, err := events.NewService(events.ServiceConfig{
		Database:   db,
		Clock:      time.Now,
		IDProvider: idProvider,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	submissionService, err := submissions.NewService(submissions.ServiceConfig{
		Database:   db,
		Clock:      time.Now,
		IDProvider: idProvider,
		Store:      store,
		Events:     eventService,
		Notifier:   dispatcher,
		Compositor: imaging.NewCompositor(logger),
		Logger:     logger,
	})
	if err != nil {
		return err
	}
	eventService.AttachSubmissionCounter(submissionService)

	presetService, err := presets.NewService(presets.ServiceConfig{
		Database:   db,
		IDProvider: idProvider,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	handler, err := server.NewHTTPHandler(server.Dependencies{
		TokenManager: tokenManager,
		Credentials: server.Credentials{
			AdminPassword:   appConfig.AdminPassword,
			CapturePassword: appConfig.CapturePassword,
			ProcessorSecret: appConfig.ProcessorSecret,
		},
		Submissions: submissionService,
		Events:      eventService,
		Presets:     presetService,
		Logger:      logger,
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
