package store

import (
	"context"
	"strings"
	"testing"

	"github.com/nimburion/docprobe/pkg/config"
	"github.com/nimburion/docprobe/pkg/observability/logger"
	"github.com/nimburion/docprobe/pkg/repository/document"
)

func TestNewDocumentAdapter_Memory(t *testing.T) {
	adapter, err := NewDocumentAdapter(config.StoreConfig{Type: " Memory ", Collection: "posts"}, logger.Nop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := adapter.(*document.MemoryAdapter); !ok {
		t.Fatalf("expected memory adapter, got %T", adapter)
	}
	if err := adapter.HealthCheck(context.Background()); err != nil {
		t.Fatalf("healthcheck: %v", err)
	}
	var _ Adapter = adapter
}

func TestNewDocumentAdapter_UnsupportedType(t *testing.T) {
	_, err := NewDocumentAdapter(config.StoreConfig{Type: "cassandra"}, logger.Nop())
	if err == nil {
		t.Fatal("expected unsupported type error")
	}
	if !strings.Contains(err.Error(), "unsupported store.type") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNewDocumentAdapter_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.StoreConfig
		want string
	}{
		{"mongodb without url", config.StoreConfig{Type: "mongodb", Database: "db"}, "mongodb URL is required"},
		{"mongodb without database", config.StoreConfig{Type: "mongodb", URL: "mongodb://localhost"}, "mongodb database is required"},
		{"dynamodb without region", config.StoreConfig{Type: "dynamodb"}, "aws region is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewDocumentAdapter(tt.cfg, logger.Nop())
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}
