package config

import (
	"errors"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(
		WithoutSystemEnv(),
		WithEnvFile(""),
		WithEnvMap(map[string]string{
			"API_STORE_BACKEND": "memory",
		}),
	)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Server.Port != "8080" {
		t.Fatalf("expected default port 8080, got %s", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 15*time.Second {
		t.Fatalf("unexpected read timeout %v", cfg.Server.ReadTimeout)
	}
	if cfg.Store.Backend != StoreBackendMemory {
		t.Fatalf("expected memory backend, got %s", cfg.Store.Backend)
	}
	if !cfg.Orders.AcceptTerminalPayments {
		t.Fatal("terminal payments must be accepted by default")
	}
	if cfg.Orders.NumberPrefix != "SO" {
		t.Fatalf("expected SO prefix, got %s", cfg.Orders.NumberPrefix)
	}
	if cfg.PubSub.Enabled {
		t.Fatal("pubsub must be disabled by default")
	}
}

func TestLoadFirestoreBackendRequiresProject(t *testing.T) {
	_, err := Load(
		WithoutSystemEnv(),
		WithEnvFile(""),
		WithEnvMap(map[string]string{
			"API_STORE_BACKEND": "firestore",
		}),
	)
	var validationErr *ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	found := false
	for _, field := range validationErr.Fields() {
		if field == "Firestore.ProjectID" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected Firestore.ProjectID in %v", validationErr.Fields())
	}
}

func TestLoadOverridesAndFallbacks(t *testing.T) {
	cfg, err := Load(
		WithoutSystemEnv(),
		WithEnvFile(""),
		WithEnvMap(map[string]string{
			"API_STORE_BACKEND":            "firestore",
			"API_FIRESTORE_PROJECT_ID":     "demo-project",
			"API_PUBSUB_ENABLED":           "true",
			"API_SERVER_PORT":              "9090",
			"API_ORDERS_DEFAULT_PAGE_SIZE": "50",
		}),
	)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Server.Port != "9090" {
		t.Fatalf("expected port 9090, got %s", cfg.Server.Port)
	}
	if cfg.PubSub.ProjectID != "demo-project" {
		t.Fatalf("pubsub project must fall back to firestore project, got %s", cfg.PubSub.ProjectID)
	}
	if cfg.Orders.DefaultPageSize != 50 {
		t.Fatalf("expected page size 50, got %d", cfg.Orders.DefaultPageSize)
	}
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	_, err := Load(
		WithoutSystemEnv(),
		WithEnvFile(""),
		WithEnvMap(map[string]string{
			"API_STORE_BACKEND": "postgres",
		}),
	)
	if err == nil {
		t.Fatal("expected error for unknown backend")
	}
}
