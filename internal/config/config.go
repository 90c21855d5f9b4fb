package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Config holds application configuration.
type Config struct {
	// IntakeDir is the directory scanned for new audio artifacts.
	IntakeDir string `json:"intake_dir,omitempty"`

	// ProcessedDir is where artifacts are relocated after a successful
	// capture. Defaults to <intake_dir>/processed.
	ProcessedDir string `json:"processed_dir,omitempty"`

	// JournalPath is the line-oriented JSON journal file.
	JournalPath string `json:"journal_path,omitempty"`

	// TranscribeCommand is the transcription provider binary. The artifact
	// path is appended as the final argument and the transcript is read
	// from stdout.
	TranscribeCommand string `json:"transcribe_command,omitempty"`

	// TranscribeArgs are arguments passed before the artifact path.
	TranscribeArgs []string `json:"transcribe_args,omitempty"`

	// TranscribeTimeoutSecs is the hard wall-clock limit for one
	// transcription. The provider process is killed on expiry.
	TranscribeTimeoutSecs int `json:"transcribe_timeout_secs,omitempty"`

	// ClassifyURL is an OpenAI-compatible chat completions endpoint.
	// Empty means classification is skipped and every entry gets the
	// fallback classification.
	ClassifyURL string `json:"classify_url,omitempty"`

	// ClassifyModel is the model name sent to the classification endpoint.
	ClassifyModel string `json:"classify_model,omitempty"`

	// ClassifyAPIKey is the bearer token for the classification endpoint.
	// Prefer the MURMUR_CLASSIFY_API_KEY environment variable over
	// committing this to the config file.
	ClassifyAPIKey string `json:"classify_api_key,omitempty"`

	// ClassifyTimeoutSecs bounds the whole classification attempt,
	// retries included.
	ClassifyTimeoutSecs int `json:"classify_timeout_secs,omitempty"`

	// MinTranscriptChars is the minimum transcript length considered
	// meaningful speech. Shorter transcripts are skipped, not failed.
	MinTranscriptChars int `json:"min_transcript_chars,omitempty"`

	// WatchDebounceSecs is the quiet period the watch command waits after
	// intake activity before starting a run.
	WatchDebounceSecs int `json:"watch_debounce_secs,omitempty"`
}

// DefaultConfig returns the default configuration anchored at baseDir.
func DefaultConfig(baseDir string) *Config {
	return &Config{
		IntakeDir:             filepath.Join(baseDir, "intake"),
		JournalPath:           filepath.Join(baseDir, "journal", "captures.jsonl"),
		TranscribeCommand:     "uv",
		TranscribeArgs:        []string{"run", filepath.Join(baseDir, "tools", "extract-transcript.py")},
		TranscribeTimeoutSecs: 300,
		ClassifyTimeoutSecs:   15,
		MinTranscriptChars:    3,
		WatchDebounceSecs:     2,
	}
}

// Load loads configuration from baseDir/config.json, applies environment
// overrides, and falls back to defaults for anything unset.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.murmur.
func Load(baseDir string) (*Config, error) {
	overlay, err := loadFileRaw(filepath.Join(baseDir, "config.json"))
	if err != nil {
		return nil, err
	}
	cfg := Merge(DefaultConfig(baseDir), overlay)
	applyEnv(cfg)
	return cfg, nil
}

// loadFileRaw loads configuration from a specific file path.
// Returns zero-valued config if the file doesn't exist (not defaults).
func loadFileRaw(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Merge combines base and overlay configs. Overlay values win when non-zero.
func Merge(base, overlay *Config) *Config {
	result := *base

	if overlay.IntakeDir != "" {
		result.IntakeDir = overlay.IntakeDir
	}
	if overlay.ProcessedDir != "" {
		result.ProcessedDir = overlay.ProcessedDir
	}
	if overlay.JournalPath != "" {
		result.JournalPath = overlay.JournalPath
	}
	if overlay.TranscribeCommand != "" {
		result.TranscribeCommand = overlay.TranscribeCommand
		// A replaced command takes its own args, even an empty set.
		result.TranscribeArgs = overlay.TranscribeArgs
	}
	if overlay.TranscribeTimeoutSecs != 0 {
		result.TranscribeTimeoutSecs = overlay.TranscribeTimeoutSecs
	}
	if overlay.ClassifyURL != "" {
		result.ClassifyURL = overlay.ClassifyURL
	}
	if overlay.ClassifyModel != "" {
		result.ClassifyModel = overlay.ClassifyModel
	}
	if overlay.ClassifyAPIKey != "" {
		result.ClassifyAPIKey = overlay.ClassifyAPIKey
	}
	if overlay.ClassifyTimeoutSecs != 0 {
		result.ClassifyTimeoutSecs = overlay.ClassifyTimeoutSecs
	}
	if overlay.MinTranscriptChars != 0 {
		result.MinTranscriptChars = overlay.MinTranscriptChars
	}
	if overlay.WatchDebounceSecs != 0 {
		result.WatchDebounceSecs = overlay.WatchDebounceSecs
	}

	return &result
}

// applyEnv overrides config fields from MURMUR_* environment variables.
func applyEnv(cfg *Config) {
	if v := os.Getenv("MURMUR_INTAKE_DIR"); v != "" {
		cfg.IntakeDir = v
	}
	if v := os.Getenv("MURMUR_PROCESSED_DIR"); v != "" {
		cfg.ProcessedDir = v
	}
	if v := os.Getenv("MURMUR_JOURNAL_PATH"); v != "" {
		cfg.JournalPath = v
	}
	if v := os.Getenv("MURMUR_CLASSIFY_URL"); v != "" {
		cfg.ClassifyURL = v
	}
	if v := os.Getenv("MURMUR_CLASSIFY_MODEL"); v != "" {
		cfg.ClassifyModel = v
	}
	if v := os.Getenv("MURMUR_CLASSIFY_API_KEY"); v != "" {
		cfg.ClassifyAPIKey = v
	}
	if v := os.Getenv("MURMUR_TRANSCRIBE_TIMEOUT_SECS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.TranscribeTimeoutSecs = n
		}
	}
}

// Processed returns the processed-artifacts directory, defaulting to a
// subdirectory of the intake directory.
func (c *Config) Processed() string {
	if c.ProcessedDir != "" {
		return c.ProcessedDir
	}
	return filepath.Join(c.IntakeDir, "processed")
}

// TranscribeTimeout returns the transcription timeout as a duration.
func (c *Config) TranscribeTimeout() time.Duration {
	return time.Duration(c.TranscribeTimeoutSecs) * time.Second
}

// ClassifyTimeout returns the classification timeout as a duration.
func (c *Config) ClassifyTimeout() time.Duration {
	return time.Duration(c.ClassifyTimeoutSecs) * time.Second
}

// WatchDebounce returns the watch debounce interval as a duration.
func (c *Config) WatchDebounce() time.Duration {
	return time.Duration(c.WatchDebounceSecs) * time.Second
}
