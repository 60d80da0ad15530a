package monitoring

import (
	"errors"
	"testing"

	"github.com/immansha/renewcast/config"
	coremon "github.com/immansha/renewcast/core/monitoring"
)

func TestNewSentryMonitor_EmptyDSN(t *testing.T) {
	m, err := NewSentryMonitor(config.SentryConfig{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := m.(coremon.NopMonitor); !ok {
		t.Fatalf("expected NopMonitor, got %T", m)
	}
}

func TestNewSentryMonitor_InvalidDSN(t *testing.T) {
	if _, err := NewSentryMonitor(config.SentryConfig{DSN: "::not-a-dsn"}); err == nil {
		t.Fatalf("expected error for invalid dsn")
	}
}

func TestSentryMonitor_CaptureWithoutClient(t *testing.T) {
	m := &sentryMonitor{}
	m.CaptureException(nil, nil)
	m.CaptureException(errors.New("boom"), map[string]string{"plant_id": "RJ01"})
	m.Flush(0)
}
