// Package config resolves runtime configuration once at startup. The
// engine never reads the environment itself; it only receives the
// resolved analysis.Configuration built here.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/discourselab/poliscope/internal/analysis"
)

type Config struct {
	Server   ServerConfig
	Analysis analysis.Configuration
}

type ServerConfig struct {
	Host         string
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Load resolves configuration in layers: defaults, an optional
// poliscope.yaml in the working directory, then environment
// variables. A .env file is honored when present.
func Load() (*Config, error) {
	// Optional; absence is the normal case outside development.
	_ = godotenv.Load()

	v := viper.New()
	v.SetDefault("model", analysis.DefaultModel)
	v.SetDefault("language", analysis.DefaultLanguage)
	v.SetDefault("temperature", analysis.DefaultTemperature)
	v.SetDefault("credential", "")
	v.SetDefault("base_url", "")
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "8000")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 2*time.Minute)

	v.SetConfigName("poliscope")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	// Environment names stay compatible with the original analyzer
	// tooling; POLISCOPE_* covers everything else.
	_ = v.BindEnv("credential", "OPENAI_API_KEY")
	_ = v.BindEnv("model", "POLITICAL_ANALYSIS_MODEL")
	_ = v.BindEnv("temperature", "POLITICAL_ANALYSIS_TEMPERATURE")
	_ = v.BindEnv("language", "POLITICAL_ANALYSIS_LANGUAGE")
	_ = v.BindEnv("base_url", "POLITICAL_ANALYSIS_BASE_URL")
	v.SetEnvPrefix("POLISCOPE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	ac, err := analysis.NewConfiguration(
		analysis.WithModel(v.GetString("model")),
		analysis.WithCredential(v.GetString("credential")),
		analysis.WithLanguage(v.GetString("language")),
		analysis.WithTemperature(v.GetFloat64("temperature")),
		analysis.WithBaseURL(v.GetString("base_url")),
	)
	if err != nil {
		return nil, fmt.Errorf("invalid analysis configuration: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:         v.GetString("server.host"),
			Port:         v.GetString("server.port"),
			ReadTimeout:  v.GetDuration("server.read_timeout"),
			WriteTimeout: v.GetDuration("server.write_timeout"),
		},
		Analysis: ac,
	}

	slog.Info("configuration loaded successfully",
		"model", ac.Model,
		"language", ac.Language,
		"local_endpoint", ac.BaseURL != "",
	)
	return cfg, nil
}
