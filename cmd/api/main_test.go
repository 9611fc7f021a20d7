package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	appconfig "github.com/wolfman30/cpr-booking-platform/internal/config"
	"github.com/wolfman30/cpr-booking-platform/pkg/logging"
)

func TestNewRegistryExposesRuntimeMetrics(t *testing.T) {
	handler := promhttp.HandlerFor(newRegistry(), promhttp.HandlerOpts{})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "go_goroutines") {
		t.Fatalf("expected go collector output")
	}
}

func TestNewLoggerUsesTextInDevelopment(t *testing.T) {
	t.Setenv("LOG_FORMAT", "")
	cfg := &appconfig.Config{Env: "development", LogLevel: "info", LogFormat: "json"}
	if logger := newLogger(cfg); logger == nil {
		t.Fatalf("expected logger")
	}

	var buf bytes.Buffer
	logging.NewWithOptions(logging.Options{Format: "text", Output: &buf}).Info("hello", "k", "v")
	if strings.HasPrefix(buf.String(), "{") {
		t.Fatalf("expected text output, got %q", buf.String())
	}
}
