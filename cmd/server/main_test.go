package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/p-n-ai/little-star/internal/platform/config"
)

func testConfig() *config.Config {
	return &config.Config{
		Server:  config.ServerConfig{Port: 8080},
		Cache:   config.CacheConfig{LessonTTL: time.Hour},
		Session: config.SessionConfig{IdleTimeout: time.Hour},
		Log:     config.LogConfig{Level: "info", Format: "json"},
	}
}

func TestHealthEndpoints(t *testing.T) {
	a, err := build(context.Background(), testConfig())
	if err != nil {
		t.Fatalf("build() error = %v", err)
	}
	defer a.close()

	tests := []struct {
		name       string
		path       string
		wantStatus int
		wantBody   string
	}{
		{
			name:       "healthz returns 200",
			path:       "/healthz",
			wantStatus: http.StatusOK,
			wantBody:   `{"status":"ok"}`,
		},
		{
			name:       "readyz with no optional dependencies returns 200",
			path:       "/readyz",
			wantStatus: http.StatusOK,
			wantBody:   `{"status":"ready"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			rec := httptest.NewRecorder()

			a.handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if got := strings.TrimSpace(rec.Body.String()); got != tt.wantBody {
				t.Errorf("body = %q, want %q", got, tt.wantBody)
			}
		})
	}
}

func TestBuild_WithoutCredentials(t *testing.T) {
	a, err := build(context.Background(), testConfig())
	if err != nil {
		t.Fatalf("build() error = %v", err)
	}
	defer a.close()

	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/tts?text=hi&lang=en-US", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("tts status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}

	rec = httptest.NewRecorder()
	a.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/sessions", nil))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, want %d", rec.Code, http.StatusCreated)
	}
	if a.registry.Len() != 1 {
		t.Errorf("registry.Len() = %d, want 1", a.registry.Len())
	}
}

func TestBuild_BadContentPath(t *testing.T) {
	cfg := testConfig()
	cfg.ContentPath = t.TempDir() + "/missing"
	if _, err := build(context.Background(), cfg); err == nil {
		t.Fatal("build() should fail for a missing content directory")
	}
}

func TestBuild_UnreachableCache(t *testing.T) {
	cfg := testConfig()
	cfg.Cache.URL = "redis://127.0.0.1:1/0"
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := build(ctx, cfg); err == nil {
		t.Fatal("build() should fail when the configured cache is unreachable")
	}
}

func TestNewLogger(t *testing.T) {
	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		logger := newLogger(config.LogConfig{Level: "warn", Format: "json"}, &buf)
		logger.Info("hidden")
		logger.Warn("shown", "k", "v")

		var line map[string]any
		if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
			t.Fatalf("output is not a single JSON line: %q", buf.String())
		}
		if line["msg"] != "shown" || line["k"] != "v" {
			t.Errorf("line = %v", line)
		}
	})

	t.Run("text", func(t *testing.T) {
		var buf bytes.Buffer
		logger := newLogger(config.LogConfig{Level: "debug", Format: "text"}, &buf)
		logger.Debug("hello", "k", "v")
		if !strings.Contains(buf.String(), "hello") || !strings.Contains(buf.String(), "k=v") {
			t.Errorf("output = %q", buf.String())
		}
		if strings.Contains(buf.String(), "\x1b[") {
			t.Errorf("output to a non-terminal has color codes: %q", buf.String())
		}
	})

	t.Run("text to a file", func(t *testing.T) {
		f, err := os.CreateTemp(t.TempDir(), "log")
		if err != nil {
			t.Fatal(err)
		}
		defer f.Close()
		if isTerminal(f) {
			t.Fatal("regular file reported as a terminal")
		}
		newLogger(config.LogConfig{Level: "info", Format: "text"}, f).Info("saved", "k", "v")
		data, err := os.ReadFile(f.Name())
		if err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(string(data), "k=v") || strings.Contains(string(data), "\x1b[") {
			t.Errorf("file output = %q", data)
		}
	})
}
