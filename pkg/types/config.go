// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// HTTPConfig holds shared HTTP settings used by backends that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "texpreview/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// PreviewConfig holds settings for the auto-preview controller.
type PreviewConfig struct {
	// Debounce is the quiet period after the last edit before a conversion
	// is issued (default 1.5s).
	Debounce time.Duration `json:"debounce" yaml:"debounce"`

	// AutoPreview controls whether draft changes schedule conversions.
	AutoPreview bool `json:"auto_preview" yaml:"auto_preview"`

	// Timeout bounds a single conversion. Zero waits indefinitely.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// OutputDir is where rendered artifacts are written.
	OutputDir string `json:"output_dir" yaml:"output_dir"`

	// OutputName is the artifact filename inside OutputDir (default "document.pdf").
	OutputName string `json:"output_name" yaml:"output_name"`
}

// ConversionBackend identifies the LaTeX-to-PDF conversion tool.
type ConversionBackend string

const (
	BackendContainer ConversionBackend = "container"
	BackendRemote    ConversionBackend = "remote"
)

// ConversionConfig holds settings for the conversion backends.
type ConversionConfig struct {
	HTTPConfig `yaml:",inline"`

	// Backend selects the conversion tool: container or remote.
	Backend ConversionBackend `json:"backend" yaml:"backend"`

	// Runtime selects the container runtime: docker, podman, or auto.
	Runtime string `json:"runtime" yaml:"runtime"`

	// Image is the container image used by the container backend. It must
	// read LaTeX on stdin and write a PDF to stdout.
	Image string `json:"image" yaml:"image"`

	// Endpoint is the URL of the remote conversion service.
	Endpoint string `json:"endpoint" yaml:"endpoint"`

	// RateLimit caps conversions per second. Zero disables limiting.
	RateLimit float64 `json:"rate_limit" yaml:"rate_limit"`

	// Burst is the limiter bucket size (default 1).
	Burst int `json:"burst" yaml:"burst"`

	// MaxRetries is the number of backoff attempts on HTTP 429 (default 5).
	MaxRetries int `json:"max_retries" yaml:"max_retries"`
}

// HistoryConfig holds settings for the conversion history log.
type HistoryConfig struct {
	// Enabled turns recording on.
	Enabled bool `json:"enabled" yaml:"enabled"`

	// Dir holds history.db and exports.
	Dir string `json:"dir" yaml:"dir"`

	// MaxResults is the default number of entries listed (default 20).
	MaxResults int `json:"max_results" yaml:"max_results"`
}

// Config groups all settings.
type Config struct {
	Preview    PreviewConfig    `json:"preview" yaml:"preview"`
	Conversion ConversionConfig `json:"conversion" yaml:"conversion"`
	History    HistoryConfig    `json:"history" yaml:"history"`
}
