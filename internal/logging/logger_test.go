package logging

import (
	"context"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewDevelopmentLogger(t *testing.T) {
	t.Parallel()

	logger, err := New(true)
	if err != nil {
		t.Fatalf("New(true) error = %v", err)
	}
	if logger == nil {
		t.Fatal("expected logger to be non-nil")
	}
	defer logger.Sync() //nolint:errcheck // best-effort flush
	logger.Info("development logger ready")
}

func TestNewProductionLogger(t *testing.T) {
	t.Parallel()

	logger, err := New(false)
	if err != nil {
		t.Fatalf("New(false) error = %v", err)
	}
	if logger == nil {
		t.Fatal("expected logger to be non-nil")
	}
	defer logger.Sync() //nolint:errcheck // best-effort flush
	logger.Info("production logger ready")
}

func TestContextRoundTrip(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.InfoLevel)
	logger := zap.New(core).With(zap.String("request_id", "abc"))
	ctx := WithContext(context.Background(), logger)

	FromContext(ctx, nil).Info("from context")
	if logs.Len() != 1 || logs.All()[0].ContextMap()["request_id"] != "abc" {
		t.Fatalf("expected request-scoped logger, got %+v", logs.All())
	}

	if FromContext(context.Background(), nil) == nil {
		t.Fatal("expected a nop logger when ctx carries none")
	}
	fallback := zap.NewExample()
	if FromContext(context.Background(), fallback) != fallback {
		t.Fatal("expected fallback logger")
	}
}
