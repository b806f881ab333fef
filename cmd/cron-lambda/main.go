// Command cron-lambda is invoked by an EventBridge schedule and calls the
// API's cron endpoints with the shared secret.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"github.com/wolfman30/clinic-scheduler/pkg/logging"
)

type config struct {
	apiBaseURL string
	secret     string
	jobs       []string
	timeout    time.Duration
}

func loadConfig() (config, error) {
	baseURL := strings.TrimSpace(os.Getenv("API_BASE_URL"))
	if baseURL == "" {
		return config{}, errors.New("API_BASE_URL is required")
	}
	secret := strings.TrimSpace(os.Getenv("CRON_SECRET"))
	if secret == "" {
		return config{}, errors.New("CRON_SECRET is required")
	}

	jobs := []string{"reminders", "backup"}
	if raw := strings.TrimSpace(os.Getenv("CRON_JOBS")); raw != "" {
		jobs = nil
		for _, j := range strings.Split(raw, ",") {
			if j = strings.TrimSpace(j); j != "" {
				jobs = append(jobs, j)
			}
		}
	}

	timeout := 25 * time.Second
	if raw := strings.TrimSpace(os.Getenv("CRON_TIMEOUT")); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return config{}, fmt.Errorf("invalid CRON_TIMEOUT: %w", err)
		}
		timeout = parsed
	}

	return config{
		apiBaseURL: strings.TrimRight(baseURL, "/"),
		secret:     secret,
		jobs:       jobs,
		timeout:    timeout,
	}, nil
}

func main() {
	cfg, err := loadConfig()
	if err != nil {
		panic(err)
	}

	logger := logging.New(os.Getenv("LOG_LEVEL"))
	client := &http.Client{Timeout: cfg.timeout}
	lambda.Start(func(ctx context.Context, evt events.CloudWatchEvent) (map[string]json.RawMessage, error) {
		return handle(ctx, cfg, client, logger, evt)
	})
}

// handle triggers every configured job and returns each job's response body.
// A failing job does not stop the others; the invocation errors if any failed.
func handle(ctx context.Context, cfg config, client *http.Client, logger *logging.Logger, evt events.CloudWatchEvent) (map[string]json.RawMessage, error) {
	results := make(map[string]json.RawMessage, len(cfg.jobs))
	var errs []error
	for _, job := range cfg.jobs {
		body, err := trigger(ctx, cfg, client, job)
		if err != nil {
			logger.Error("cron job failed", "job", job, "event_id", evt.ID, "error", err)
			errs = append(errs, err)
			continue
		}
		logger.Info("cron job triggered", "job", job, "event_id", evt.ID, "response", string(body))
		results[job] = body
	}
	return results, errors.Join(errs...)
}

func trigger(ctx context.Context, cfg config, client *http.Client, job string) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.apiBaseURL+"/cron/"+job, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", job, err)
	}
	req.Header.Set("Authorization", "Bearer "+cfg.secret)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: call api: %w", job, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return nil, fmt.Errorf("%s: read response: %w", job, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%s: api returned %d: %s", job, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("%s: api returned non-JSON body", job)
	}
	return body, nil
}
