package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// LLMExchange is a prompt/response pair kept for debugging reply drafts
type LLMExchange struct {
	Timestamp time.Time `json:"timestamp"`
	Provider  string    `json:"provider"` // e.g. "anthropic"
	Model     string    `json:"model"`
	Intent    string    `json:"intent"`
	Prompt    string    `json:"prompt"`
	Response  string    `json:"response"`
	Error     string    `json:"error,omitempty"`
}

// timestamped file names sort chronologically
func generateFilename(now time.Time, ext string) string {
	return now.UTC().Format("2006-01-02T15-04-05.000000000") + ext
}

// SaveJSON writes data as indented JSON to a new timestamped file in dir.
// Returns the path to the saved file.
func SaveJSON[T any](dir string, data T) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create cache dir: %w", err)
	}

	path := filepath.Join(dir, generateFilename(time.Now(), ".json"))

	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal cache entry: %w", err)
	}

	if err := os.WriteFile(path, jsonData, 0644); err != nil {
		return "", fmt.Errorf("failed to write cache entry: %w", err)
	}

	return path, nil
}

// LoadLatestJSON loads the most recent entry from dir.
// Returns the data, the path it was loaded from, and any error.
func LoadLatestJSON[T any](dir string) (T, string, error) {
	var zero T

	path, err := latestFile(dir)
	if err != nil {
		return zero, "", err
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return zero, "", fmt.Errorf("failed to read cache entry: %w", err)
	}

	var data T
	if err := json.Unmarshal(raw, &data); err != nil {
		return zero, "", fmt.Errorf("failed to unmarshal cache entry: %w", err)
	}
	return data, path, nil
}

func latestFile(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("no cache entries in %s", dir)
		}
		return "", err
	}

	// os.ReadDir sorts by name, which is chronological for our file names
	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && filepath.Ext(entry.Name()) == ".json" {
			files = append(files, entry.Name())
		}
	}
	if len(files) == 0 {
		return "", fmt.Errorf("no cache entries in %s", dir)
	}
	return filepath.Join(dir, files[len(files)-1]), nil
}
