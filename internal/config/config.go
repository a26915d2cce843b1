package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix           = "STICKERBOOTH"
	defaultHTTPAddress  = "0.0.0.0:8080"
	defaultDatabasePath = "stickerbooth.db"
	defaultLogLevel     = "info"
	defaultTokenTTL     = 24 * time.Hour
	defaultBaseURL      = "http://localhost:8080"
	defaultS3Region     = "us-east-1"
)

// AppConfig captures runtime configuration for the API server.
type AppConfig struct {
	HTTPAddress  string
	DatabasePath string
	LogLevel     string
	BaseURL      string

	SigningSecret   string
	AdminPassword   string
	CapturePassword string
	ProcessorSecret string
	TokenTTL        time.Duration

	S3Bucket       string
	S3Region       string
	S3Endpoint     string
	S3AccessKeyID  string
	S3SecretKey    string
	S3UsePathStyle bool

	SendgridAPIKey    string
	SendgridFromEmail string
	SendgridFromName  string
	TwilioAccountSID  string
	TwilioAuthToken   string
	TwilioFromNumber  string
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
	configViper.SetDefault("http.base_url", defaultBaseURL)
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("token.ttl_minutes", int(defaultTokenTTL.Minutes()))
	configViper.SetDefault("s3.region", defaultS3Region)
	configViper.SetDefault("s3.use_path_style", false)
	configViper.SetDefault("notify.sendgrid_from_name", "Stickers Generator")
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:  configViper.GetString("http.address"),
		DatabasePath: configViper.GetString("database.path"),
		LogLevel:     configViper.GetString("log.level"),
		BaseURL:      configViper.GetString("http.base_url"),

		SigningSecret:   configViper.GetString("auth.signing_secret"),
		AdminPassword:   configViper.GetString("auth.admin_password"),
		CapturePassword: configViper.GetString("auth.capture_password"),
		ProcessorSecret: configViper.GetString("auth.processor_secret"),
		TokenTTL:        time.Duration(configViper.GetInt("token.ttl_minutes")) * time.Minute,

		S3Bucket:       configViper.GetString("s3.bucket"),
		S3Region:       configViper.GetString("s3.region"),
		S3Endpoint:     configViper.GetString("s3.endpoint"),
		S3AccessKeyID:  configViper.GetString("s3.access_key_id"),
		S3SecretKey:    configViper.GetString("s3.secret_key"),
		S3UsePathStyle: configViper.GetBool("s3.use_path_style"),

		SendgridAPIKey:    configViper.GetString("notify.sendgrid_api_key"),
		SendgridFromEmail: configViper.GetString("notify.sendgrid_from_email"),
		SendgridFromName:  configViper.GetString("notify.sendgrid_from_name"),
		TwilioAccountSID:  configViper.GetString("notify.twilio_account_sid"),
		TwilioAuthToken:   configViper.GetString("notify.twilio_auth_token"),
		TwilioFromNumber:  configViper.GetString("notify.twilio_from_number"),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.SigningSecret) == "" {
		return fmt.Errorf("auth.signing_secret is required")
	}
	if strings.TrimSpace(c.AdminPassword) == "" {
		return fmt.Errorf("auth.admin_password is required")
	}
	if strings.TrimSpace(c.CapturePassword) == "" {
		return fmt.Errorf("auth.capture_password is required")
	}
	if strings.TrimSpace(c.ProcessorSecret) == "" {
		return fmt.Errorf("auth.processor_secret is required")
	}
	if strings.TrimSpace(c.DatabasePath) == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("token.ttl_minutes must be positive")
	}
	return nil
}
