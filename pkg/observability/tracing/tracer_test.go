package tracing

import (
	"context"
	"testing"
	"time"
)

func TestNewTracerProvider_Disabled(t *testing.T) {
	provider, err := NewTracerProvider(context.Background(), TracerConfig{
		ServiceName: "docprobe",
		Enabled:     false,
	})
	if err != nil {
		t.Fatalf("expected no error for disabled tracing, got: %v", err)
	}
	if provider.Tracer("test") == nil {
		t.Fatal("expected tracer to be non-nil")
	}

	_, span := provider.Tracer("test").Start(context.Background(), "span")
	span.End()
}

func TestNewTracerProvider_ValidationErrors(t *testing.T) {
	tests := []struct {
		name        string
		config      TracerConfig
		expectedErr string
	}{
		{
			name:        "missing service name",
			config:      TracerConfig{Enabled: true, Endpoint: "localhost:4317"},
			expectedErr: "service name is required",
		},
		{
			name:        "missing endpoint",
			config:      TracerConfig{Enabled: true, ServiceName: "docprobe"},
			expectedErr: "OTLP endpoint is required",
		},
		{
			name:        "negative sample rate",
			config:      TracerConfig{Enabled: true, ServiceName: "docprobe", Endpoint: "localhost:4317", SampleRate: -0.1},
			expectedErr: "sample rate must be between 0 and 1",
		},
		{
			name:        "sample rate above one",
			config:      TracerConfig{Enabled: true, ServiceName: "docprobe", Endpoint: "localhost:4317", SampleRate: 1.5},
			expectedErr: "sample rate must be between 0 and 1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTracerProvider(context.Background(), tt.config)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if err.Error() != tt.expectedErr {
				t.Errorf("expected error %q, got %q", tt.expectedErr, err.Error())
			}
		})
	}
}

func TestTracerProvider_Shutdown(t *testing.T) {
	provider, err := NewTracerProvider(context.Background(), TracerConfig{ServiceName: "docprobe"})
	if err != nil {
		t.Fatalf("failed to create provider: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := provider.Shutdown(ctx); err != nil {
		t.Errorf("expected no error on shutdown, got: %v", err)
	}
}
