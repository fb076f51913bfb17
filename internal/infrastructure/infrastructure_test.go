package infrastructure_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/JaimeStill/certify/internal/config"
	"github.com/JaimeStill/certify/internal/infrastructure"
	"github.com/JaimeStill/certify/pkg/database"
	"github.com/JaimeStill/certify/pkg/storage"
)

const azuriteConnString = "DefaultEndpointsProtocol=http;AccountName=devstoreaccount1;AccountKey=Eby8vdM02xNOcqFlqUwJPLlmEtlCDXJ1OUzFT50uSRZ6IFsuFq2UVErCz4I6tq/K1SZFPTOtr/KBHBeksoGMGw==;BlobEndpoint=http://127.0.0.1:10000/devstoreaccount1;"

func validConfig() *config.Config {
	return &config.Config{
		Database: database.Config{
			Host:            "localhost",
			Port:            5432,
			Name:            "certify",
			User:            "certify",
			Password:        "certify",
			SSLMode:         "disable",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: "15m",
			ConnTimeout:     "5s",
		},
		Version:   "0.1.0",
		LogLevel:  "info",
		LogFormat: "text",
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name        string
		storage     storage.Config
		wantStorage bool
	}{
		{"without storage", storage.Config{}, false},
		{"with storage", storage.Config{Container: "certify", ConnectionString: azuriteConnString, Prefix: "certificates"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			cfg.Storage = tt.storage

			infra, err := infrastructure.New(cfg)
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			defer infra.Database.Connection().Close()

			if infra.Lifecycle == nil || infra.Logger == nil || infra.Database == nil || infra.Metrics == nil {
				t.Fatalf("got %+v, want every core system set", infra)
			}
			if got := infra.Storage != nil; got != tt.wantStorage {
				t.Errorf("storage set: got %v, want %v", got, tt.wantStorage)
			}
		})
	}
}

func TestNewInvalidStorageConfig(t *testing.T) {
	cfg := validConfig()
	cfg.Storage.ConnectionString = "not-a-connection-string"

	if _, err := infrastructure.New(cfg); err == nil {
		t.Fatal("expected error for invalid storage connection string")
	}
}

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name    string
		format  string
		level   string
		debug   bool
		wantSub string
	}{
		{"text info", "text", "info", false, "msg=hello"},
		{"json debug", "json", "debug", true, `"msg":"hello"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			cfg.LogFormat = tt.format
			cfg.LogLevel = tt.level

			var buf bytes.Buffer
			logger := infrastructure.NewLogger(&buf, cfg)
			logger.Debug("debug line")
			logger.Info("hello")

			out := buf.String()
			if !strings.Contains(out, tt.wantSub) {
				t.Errorf("output: got %q, want containing %q", out, tt.wantSub)
			}
			if got := strings.Contains(out, "debug line"); got != tt.debug {
				t.Errorf("debug logged: got %v, want %v", got, tt.debug)
			}
		})
	}
}
