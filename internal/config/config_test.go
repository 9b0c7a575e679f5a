package config

import (
	"strings"
	"testing"
	"time"
)

func validConfig() *Config {
	return &Config{
		Port:                   "8080",
		SQLiteDBPath:           ":memory:",
		AMQPURL:                "",
		AMQPExchange:           "finledger",
		AMQPQueue:              "sync_transactions",
		SyncBatchSize:          25,
		SyncInterval:           30 * time.Second,
		SessionCleanupInterval: time.Hour,
	}
}

func TestValidateOK(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
}

func TestValidateBadPort(t *testing.T) {
	cfg := validConfig()
	cfg.Port = "not-a-port"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for bad port")
	}

	cfg.Port = "70000"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for out-of-range port")
	}
}

func TestValidateBadAMQPURL(t *testing.T) {
	cfg := validConfig()
	cfg.AMQPURL = "http://localhost:5672"
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for non-amqp scheme")
	}
	if !strings.Contains(err.Error(), "scheme") {
		t.Fatalf("expected scheme error, got %v", err)
	}
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := validConfig()
	cfg.Port = "bad"
	cfg.SyncBatchSize = 0
	cfg.SessionCleanupInterval = time.Second

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"port", "batch size", "session cleanup"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected %q in error, got %v", want, err)
		}
	}
}
