package config

import (
	"time"

	"github.com/screenwise/screenwise/actions"
	"github.com/screenwise/screenwise/automation"
	"github.com/screenwise/screenwise/vision"
)

// Default returns the full default configuration tree.
func Default() *Config {
	return &Config{
		Capture:    DefaultCaptureConfig(),
		OCR:        DefaultOCRConfig(),
		Automation: automation.DefaultConfig(),
		Vision:     DefaultVisionConfig(),
		Relay:      actions.DefaultRelayConfig(),
		History:    DefaultHistoryConfig(),
		Credential: DefaultCredentialConfig(),
		Server:     DefaultServerConfig(),
		Log:        DefaultLogConfig(),
		Telemetry:  DefaultTelemetryConfig(),
	}
}

// DefaultCaptureConfig returns the default frame-source settings.
func DefaultCaptureConfig() CaptureConfig {
	return CaptureConfig{
		Backend: "ffmpeg",
		Binary:  "ffmpeg",
		Display: ":0.0",
		Timeout: 5 * time.Second,
	}
}

// DefaultOCRConfig returns the default extractor settings.
func DefaultOCRConfig() OCRConfig {
	return OCRConfig{
		Enabled:     true,
		Binary:      "tesseract",
		Languages:   []string{"eng"},
		PageSegMode: "3",
		Timeout:     10 * time.Second,
	}
}

// DefaultVisionConfig returns the default backend settings.
func DefaultVisionConfig() VisionConfig {
	return VisionConfig{
		Client: vision.ClientConfig{
			Timeout: 60 * time.Second,
		},
		Analyzer:      vision.DefaultAnalyzerConfig(),
		OracleModel:   "gemini-2.0-flash-lite",
		VerifierModel: "gemini-2.0-flash-lite",
	}
}

// DefaultHistoryConfig returns the default answer-log settings.
func DefaultHistoryConfig() HistoryConfig {
	return HistoryConfig{
		Enabled: true,
		Path:    "screenwise.db",
	}
}

// DefaultCredentialConfig returns the default credential-store location.
func DefaultCredentialConfig() CredentialConfig {
	return CredentialConfig{
		Path: "credentials.enc",
	}
}

// DefaultServerConfig returns the default observability listener settings.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		MetricsAddr:     "127.0.0.1:9091",
		ShutdownTimeout: 10 * time.Second,
	}
}

// DefaultLogConfig returns the default logging settings.
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:      "info",
		Format:     "json",
		MaxSizeMB:  50,
		MaxBackups: 3,
		MaxAgeDays: 14,
		Compress:   true,
	}
}

// DefaultTelemetryConfig returns the default tracing settings.
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "screenwise",
		SampleRate:   1.0,
	}
}
