// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"time"

	"github.com/spf13/viper"

	"github.com/pdiddy/texpreview/internal/convert"
	"github.com/pdiddy/texpreview/internal/debounce"
	"github.com/pdiddy/texpreview/pkg/types"
)

const defaultUserAgent = "texpreview/0.1"

// setDefaults registers every configuration key so environment variables
// resolve even when no config file exists.
func setDefaults() {
	viper.SetDefault("preview.debounce", debounce.DefaultWindow)
	viper.SetDefault("preview.auto_preview", true)
	viper.SetDefault("preview.timeout", 60*time.Second)
	viper.SetDefault("preview.output_dir", "output")
	viper.SetDefault("preview.output_name", "document.pdf")

	viper.SetDefault("conversion.backend", string(types.BackendContainer))
	viper.SetDefault("conversion.runtime", "auto")
	viper.SetDefault("conversion.image", convert.DefaultImage)
	viper.SetDefault("conversion.endpoint", "")
	viper.SetDefault("conversion.timeout", 60*time.Second)
	viper.SetDefault("conversion.user_agent", defaultUserAgent)
	viper.SetDefault("conversion.rate_limit", 0.0)
	viper.SetDefault("conversion.burst", 1)
	viper.SetDefault("conversion.max_retries", 5)

	viper.SetDefault("history.enabled", true)
	viper.SetDefault("history.dir", ".texpreview")
	viper.SetDefault("history.max_results", 20)
}

// loadConfig assembles a Config from viper.
func loadConfig() types.Config {
	return types.Config{
		Preview: types.PreviewConfig{
			Debounce:    viper.GetDuration("preview.debounce"),
			AutoPreview: viper.GetBool("preview.auto_preview"),
			Timeout:     viper.GetDuration("preview.timeout"),
			OutputDir:   viper.GetString("preview.output_dir"),
			OutputName:  viper.GetString("preview.output_name"),
		},
		Conversion: types.ConversionConfig{
			HTTPConfig: types.HTTPConfig{
				Timeout:   viper.GetDuration("conversion.timeout"),
				UserAgent: viper.GetString("conversion.user_agent"),
			},
			Backend:    types.ConversionBackend(viper.GetString("conversion.backend")),
			Runtime:    viper.GetString("conversion.runtime"),
			Image:      viper.GetString("conversion.image"),
			Endpoint:   viper.GetString("conversion.endpoint"),
			RateLimit:  viper.GetFloat64("conversion.rate_limit"),
			Burst:      viper.GetInt("conversion.burst"),
			MaxRetries: viper.GetInt("conversion.max_retries"),
		},
		History: types.HistoryConfig{
			Enabled:    viper.GetBool("history.enabled"),
			Dir:        viper.GetString("history.dir"),
			MaxResults: viper.GetInt("history.max_results"),
		},
	}
}
