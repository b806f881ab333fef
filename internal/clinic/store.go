package clinic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store persists clinic settings in Redis as a JSON document.
type Store struct {
	redis    *redis.Client
	defaults Defaults
}

// NewStore creates a settings store. Defaults are returned until settings are saved.
func NewStore(redisClient *redis.Client, defaults Defaults) *Store {
	return &Store{redis: redisClient, defaults: defaults}
}

func (s *Store) key() string {
	return fmt.Sprintf("clinic:settings:%s", s.defaults.ClinicID)
}

// Get retrieves the settings, returning defaults if none were saved.
func (s *Store) Get(ctx context.Context) (*Settings, error) {
	data, err := s.redis.Get(ctx, s.key()).Bytes()
	if errors.Is(err, redis.Nil) {
		return DefaultSettings(s.defaults), nil
	}
	if err != nil {
		return nil, fmt.Errorf("clinic: get settings: %w", err)
	}

	var settings Settings
	if err := json.Unmarshal(data, &settings); err != nil {
		return nil, fmt.Errorf("clinic: unmarshal settings: %w", err)
	}
	settings.Normalize()
	return &settings, nil
}

// Set validates and saves the settings.
func (s *Store) Set(ctx context.Context, settings *Settings) error {
	settings.ClinicID = s.defaults.ClinicID
	settings.Normalize()
	if err := settings.Validate(); err != nil {
		return err
	}
	settings.UpdatedAt = time.Now().UTC()

	data, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("clinic: marshal settings: %w", err)
	}
	if err := s.redis.Set(ctx, s.key(), data, 0).Err(); err != nil {
		return fmt.Errorf("clinic: set settings: %w", err)
	}
	return nil
}

// RecordBackupRun stores the time of the last successful backup.
func (s *Store) RecordBackupRun(ctx context.Context, at time.Time) error {
	settings, err := s.Get(ctx)
	if err != nil {
		return fmt.Errorf("clinic: record backup run: %w", err)
	}
	at = at.UTC()
	settings.Backup.LastRunAt = &at
	return s.Set(ctx, settings)
}
