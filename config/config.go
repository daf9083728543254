// Package config holds the daemon's configuration tree and the loader that
// populates it. Precedence: defaults, then YAML file, then environment
// variables prefixed with SCREENWISE.
package config

import (
	"time"

	"github.com/screenwise/screenwise/actions"
	"github.com/screenwise/screenwise/automation"
	"github.com/screenwise/screenwise/vision"
)

// Config is the full configuration tree.
type Config struct {
	Capture    CaptureConfig       `yaml:"capture"`
	OCR        OCRConfig           `yaml:"ocr"`
	Automation automation.Config   `yaml:"automation"`
	Vision     VisionConfig        `yaml:"vision"`
	Relay      actions.RelayConfig `yaml:"relay"`
	History    HistoryConfig       `yaml:"history"`
	Credential CredentialConfig    `yaml:"credential"`
	Server     ServerConfig        `yaml:"server"`
	Log        LogConfig           `yaml:"log"`
	Telemetry  TelemetryConfig     `yaml:"telemetry"`
}

// CaptureConfig selects and tunes the frame source.
type CaptureConfig struct {
	// Backend is "ffmpeg" or "dir".
	Backend string `yaml:"backend"`
	// Binary is the ffmpeg executable path.
	Binary string `yaml:"binary"`
	// Display is the X11 display grabbed on linux.
	Display string `yaml:"display"`
	// Directory feeds the replay source when Backend is "dir".
	Directory string        `yaml:"directory"`
	Timeout   time.Duration `yaml:"timeout"`
}

// OCRConfig tunes the local text extractor.
type OCRConfig struct {
	// Enabled gates the local OCR pre-filter; when false the hybrid
	// trigger degrades to remote-only behavior.
	Enabled     bool          `yaml:"enabled"`
	Binary      string        `yaml:"binary"`
	Languages   []string      `yaml:"languages"`
	PageSegMode string        `yaml:"page_seg_mode"`
	Timeout     time.Duration `yaml:"timeout"`
}

// VisionConfig groups the remote backend settings.
type VisionConfig struct {
	Client   vision.ClientConfig   `yaml:"client"`
	Analyzer vision.AnalyzerConfig `yaml:"analyzer"`
	// OracleModel is the model used for change checks; cheaper than the
	// analysis model since verdicts are advisory.
	OracleModel string `yaml:"oracle_model"`
	// VerifierModel is the model used for selection verification.
	VerifierModel string `yaml:"verifier_model"`
}

// HistoryConfig controls the local answer log.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// CredentialConfig locates the encrypted API-key store.
type CredentialConfig struct {
	Path string `yaml:"path"`
}

// ServerConfig covers the local observability listener.
type ServerConfig struct {
	MetricsAddr     string        `yaml:"metrics_addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// LogConfig configures zap output and file rotation.
type LogConfig struct {
	// Level is debug, info, warn, or error.
	Level string `yaml:"level"`
	// Format is json or console.
	Format string `yaml:"format"`
	// File enables rotated file output when non-empty; stderr otherwise.
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// TelemetryConfig configures the OTLP trace exporter.
type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled"`
	OTLPEndpoint string  `yaml:"otlp_endpoint"`
	ServiceName  string  `yaml:"service_name"`
	SampleRate   float64 `yaml:"sample_rate"`
}
