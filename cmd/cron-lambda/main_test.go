package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/events"

	"github.com/wolfman30/clinic-scheduler/pkg/logging"
)

func quietLogger() *logging.Logger {
	return logging.NewWithWriter("error", &bytes.Buffer{})
}

func TestHandleCallsEachJobWithSecret(t *testing.T) {
	var paths []string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer s3cret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		paths = append(paths, r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"processed":2}`))
	}))
	defer upstream.Close()

	cfg := config{apiBaseURL: upstream.URL, secret: "s3cret", jobs: []string{"reminders", "backup"}, timeout: time.Second}
	out, err := handle(context.Background(), cfg, upstream.Client(), quietLogger(), events.CloudWatchEvent{ID: "evt-1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Join(paths, ",") != "/cron/reminders,/cron/backup" {
		t.Fatalf("unexpected calls %v", paths)
	}
	if string(out["reminders"]) != `{"success":true,"processed":2}` {
		t.Fatalf("unexpected result %s", out["reminders"])
	}
}

func TestHandleReportsFailuresButRunsRemainingJobs(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/cron/reminders" {
			http.Error(w, `{"success":false}`, http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(`{"success":true,"due":false}`))
	}))
	defer upstream.Close()

	cfg := config{apiBaseURL: upstream.URL, secret: "s", jobs: []string{"reminders", "backup"}, timeout: time.Second}
	out, err := handle(context.Background(), cfg, upstream.Client(), quietLogger(), events.CloudWatchEvent{})
	if err == nil || !strings.Contains(err.Error(), "reminders: api returned 500") {
		t.Fatalf("expected reminders failure, got %v", err)
	}
	if _, ok := out["backup"]; !ok {
		t.Fatalf("backup should still run, got %v", out)
	}
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("API_BASE_URL", "https://api.clinic.example/")
	t.Setenv("CRON_SECRET", "s")
	t.Setenv("CRON_JOBS", " reminders ,")
	t.Setenv("CRON_TIMEOUT", "")

	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.apiBaseURL != "https://api.clinic.example" {
		t.Fatalf("expected trailing slash trimmed, got %s", cfg.apiBaseURL)
	}
	if len(cfg.jobs) != 1 || cfg.jobs[0] != "reminders" {
		t.Fatalf("unexpected jobs %v", cfg.jobs)
	}
	if cfg.timeout != 25*time.Second {
		t.Fatalf("unexpected timeout %s", cfg.timeout)
	}

	t.Setenv("CRON_SECRET", "")
	if _, err := loadConfig(); err == nil {
		t.Fatalf("expected error without secret")
	}
}
