package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ayusman/shotcoach/internal/analysis"
)

// SettingFeedback is the settings key holding the feedback bands.
const SettingFeedback = "feedback"

// SettingsRepository is a key/value store for application settings.
type SettingsRepository struct {
	db *sql.DB
}

// Settings returns the settings repository.
func (s *Store) Settings() *SettingsRepository {
	return &SettingsRepository{db: s.db}
}

// Get returns the value for key.
func (r *SettingsRepository) Get(key string) (string, error) {
	var v string
	err := r.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&v)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", err
	}
	return v, nil
}

// Set stores value under key, replacing any previous value.
func (r *SettingsRepository) Set(key, value string) error {
	_, err := r.db.Exec(
		`INSERT INTO settings (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	return err
}

// FeedbackConfig returns the saved feedback bands, or the defaults when none
// were saved.
func (r *SettingsRepository) FeedbackConfig() (analysis.FeedbackConfig, error) {
	v, err := r.Get(SettingFeedback)
	if errors.Is(err, ErrNotFound) {
		return analysis.DefaultFeedbackConfig(), nil
	}
	if err != nil {
		return analysis.FeedbackConfig{}, err
	}

	var cfg analysis.FeedbackConfig
	if err := json.Unmarshal([]byte(v), &cfg); err != nil {
		return analysis.FeedbackConfig{}, fmt.Errorf("decode feedback bands: %w", err)
	}
	return cfg, nil
}

// SetFeedbackConfig validates and saves cfg.
func (r *SettingsRepository) SetFeedbackConfig(cfg analysis.FeedbackConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	return r.Set(SettingFeedback, string(data))
}
