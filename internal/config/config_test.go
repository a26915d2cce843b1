package config

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func requiredSettings(configViper *viper.Viper) {
	configViper.Set("auth.signing_secret", "secret")
	configViper.Set("auth.admin_password", "admin-pass")
	configViper.Set("auth.capture_password", "capture-pass")
	configViper.Set("auth.processor_secret", "processor-secret")
}

func TestLoadAppliesDefaults(t *testing.T) {
	configViper := NewViper()
	requiredSettings(configViper)

	cfg, err := Load(configViper)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.HTTPAddress != "0.0.0.0:8080" {
		t.Fatalf("unexpected http address %q", cfg.HTTPAddress)
	}
	if cfg.DatabasePath != "stickerbooth.db" {
		t.Fatalf("unexpected database path %q", cfg.DatabasePath)
	}
	if cfg.LogLevel != "info" {
		t.Fatalf("unexpected log level %q", cfg.LogLevel)
	}
	if cfg.TokenTTL != 24*time.Hour {
		t.Fatalf("unexpected token ttl %v", cfg.TokenTTL)
	}
	if cfg.S3Region != "us-east-1" {
		t.Fatalf("unexpected s3 region %q", cfg.S3Region)
	}
}

func TestLoadReadsOverrides(t *testing.T) {
	configViper := NewViper()
	requiredSettings(configViper)
	configViper.Set("http.address", "127.0.0.1:9090")
	configViper.Set("database.path", "/tmp/booth.db")
	configViper.Set("token.ttl_minutes", 15)
	configViper.Set("s3.bucket", "stickers")
	configViper.Set("notify.sendgrid_api_key", "sg-key")

	cfg, err := Load(configViper)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.HTTPAddress != "127.0.0.1:9090" {
		t.Fatalf("unexpected http address %q", cfg.HTTPAddress)
	}
	if cfg.DatabasePath != "/tmp/booth.db" {
		t.Fatalf("unexpected database path %q", cfg.DatabasePath)
	}
	if cfg.TokenTTL != 15*time.Minute {
		t.Fatalf("unexpected token ttl %v", cfg.TokenTTL)
	}
	if cfg.S3Bucket != "stickers" {
		t.Fatalf("unexpected s3 bucket %q", cfg.S3Bucket)
	}
	if cfg.SendgridAPIKey != "sg-key" {
		t.Fatalf("unexpected sendgrid key %q", cfg.SendgridAPIKey)
	}
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("STICKERBOOTH_AUTH_SIGNING_SECRET", "env-secret")
	t.Setenv("STICKERBOOTH_AUTH_ADMIN_PASSWORD", "env-admin")
	t.Setenv("STICKERBOOTH_AUTH_CAPTURE_PASSWORD", "env-capture")
	t.Setenv("STICKERBOOTH_AUTH_PROCESSOR_SECRET", "env-processor")
	t.Setenv("STICKERBOOTH_LOG_LEVEL", "debug")

	cfg, err := Load(NewViper())
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.SigningSecret != "env-secret" {
		t.Fatalf("unexpected signing secret %q", cfg.SigningSecret)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("unexpected log level %q", cfg.LogLevel)
	}
}

func TestLoadRejectsMissingSettings(t *testing.T) {
	testCases := []struct {
		name    string
		missing string
	}{
		{name: "signing secret", missing: "auth.signing_secret"},
		{name: "admin password", missing: "auth.admin_password"},
		{name: "capture password", missing: "auth.capture_password"},
		{name: "processor secret", missing: "auth.processor_secret"},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			configViper := NewViper()
			requiredSettings(configViper)
			configViper.Set(testCase.missing, "")

			if _, err := Load(configViper); err == nil {
				t.Fatal("expected validation error")
			} else if !strings.Contains(err.Error(), testCase.missing) {
				t.Fatalf("error %q does not name %q", err, testCase.missing)
			}
		})
	}
}

func TestLoadRejectsNonPositiveTokenTTL(t *testing.T) {
	configViper := NewViper()
	requiredSettings(configViper)
	configViper.Set("token.ttl_minutes", 0)

	if _, err := Load(configViper); err == nil {
		t.Fatal("expected validation error")
	}
}
