package config_test

import (
	"testing"

	"github.com/blogware/user-sync-service/internal/config"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SIGNING_SECRET", "whsec_x")

	cfg := config.Load()
	if cfg.Port != "8080" || cfg.MongoDB != "blog" || cfg.RabbitExchange != "user.events" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.WebhookDedupTTLMin != 1440 {
		t.Fatalf("dedup ttl default = %d", cfg.WebhookDedupTTLMin)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
}

func TestLoad_MongoDBURIAlias(t *testing.T) {
	t.Setenv("SIGNING_SECRET", "whsec_x")
	t.Setenv("MONGO_URI", "")
	t.Setenv("MONGODB_URI", "mongodb://alias:27017")

	cfg := config.Load()
	if cfg.MongoURI != "mongodb://alias:27017" {
		t.Fatalf("MONGODB_URI alias not honored: %q", cfg.MongoURI)
	}

	// MONGO_URI wins when both are set
	t.Setenv("MONGO_URI", "mongodb://primary:27017")
	cfg = config.Load()
	if cfg.MongoURI != "mongodb://primary:27017" {
		t.Fatalf("MONGO_URI should take precedence: %q", cfg.MongoURI)
	}
}

func TestLoad_NonNumericDedupTTLFallsBack(t *testing.T) {
	t.Setenv("SIGNING_SECRET", "whsec_x")
	t.Setenv("WEBHOOK_DEDUP_TTL_MIN", "a day")

	cfg := config.Load()
	if cfg.WebhookDedupTTLMin != 1440 {
		t.Fatalf("dedup ttl = %d, want 1440 fallback", cfg.WebhookDedupTTLMin)
	}
}

func TestValidate_RequiresSigningSecret(t *testing.T) {
	t.Setenv("SIGNING_SECRET", "")

	cfg := config.Load()
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error without SIGNING_SECRET")
	}
}
