// Package config loads engine settings from a YAML file with SAGE_*
// environment overrides. Every key has a default, so a missing file is
// not an error and the zero configuration runs against a local
// OpenAI-compatible endpoint.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// LLMConfig selects and authenticates the completion provider.
type LLMConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	APIKey         string `mapstructure:"api_key"`
	Model          string `mapstructure:"model"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// ReadingConfig shapes the document-playback window.
type ReadingConfig struct {
	PrecedingChunks int `mapstructure:"preceding_chunks"`
	FollowingChunks int `mapstructure:"following_chunks"`
	MaxSectionChars int `mapstructure:"max_section_chars"`
}

// EngineConfig is the full engine configuration.
type EngineConfig struct {
	LLM LLMConfig `mapstructure:"llm"`

	// ContextWindow overrides the model-derived window when positive.
	ContextWindow int `mapstructure:"context_window"`

	// ModelWindows adds or overrides model→context-window entries in
	// the built-in catalog.
	ModelWindows map[string]int `mapstructure:"model_windows"`

	CurriculumDir    string        `mapstructure:"curriculum_dir"`
	ExpansionEnabled bool          `mapstructure:"expansion_enabled"`
	SystemPrompt     string        `mapstructure:"system_prompt"`
	Reading          ReadingConfig `mapstructure:"reading"`
	LogLevel         string        `mapstructure:"log_level"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("llm.base_url", "http://localhost:11434/v1")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.model", "llama3")
	v.SetDefault("llm.timeout_seconds", 60)
	v.SetDefault("context_window", 0)
	v.SetDefault("model_windows", map[string]int{})
	v.SetDefault("curriculum_dir", "curriculum")
	v.SetDefault("expansion_enabled", true)
	v.SetDefault("system_prompt", "")
	v.SetDefault("reading.preceding_chunks", 2)
	v.SetDefault("reading.following_chunks", 1)
	v.SetDefault("reading.max_section_chars", 1200)
	v.SetDefault("log_level", "info")
}

// Load reads configuration from path (optional; "" searches the working
// directory for sage.yaml), applies SAGE_* environment overrides, and
// validates the result.
func Load(path string) (*EngineConfig, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("SAGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("sage")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("reading config: %w", err)
			}
		}
	}

	var cfg EngineConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *EngineConfig) validate() error {
	if strings.TrimSpace(c.LLM.Model) == "" {
		return fmt.Errorf("llm.model must not be empty")
	}
	if c.LLM.TimeoutSeconds <= 0 {
		return fmt.Errorf("llm.timeout_seconds must be positive, got %d", c.LLM.TimeoutSeconds)
	}
	if c.ContextWindow < 0 {
		return fmt.Errorf("context_window must not be negative, got %d", c.ContextWindow)
	}
	for model, window := range c.ModelWindows {
		if window <= 0 {
			return fmt.Errorf("model_windows.%s must be positive, got %d", model, window)
		}
	}
	return nil
}
