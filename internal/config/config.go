package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds the entire application configuration. It is resolved once
// at startup and passed by value into component constructors; nothing
// reads ambient global state after that.
type Config struct {
	Logger   LoggerConfig    `mapstructure:"logger" yaml:"logger"`
	Database DatabaseConfig  `mapstructure:"database" yaml:"database"`
	Device   DeviceConfig    `mapstructure:"device" yaml:"device"`
	Crawler  CrawlerConfig   `mapstructure:"crawler" yaml:"crawler"`
	LLM      LLMRouterConfig `mapstructure:"llm" yaml:"llm"`
	OCR      OCRConfig       `mapstructure:"ocr" yaml:"ocr"`
	Vision   VisionConfig    `mapstructure:"vision" yaml:"vision"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color names for console log levels.
type ColorConfig struct {
	Debug string `mapstructure:"debug" yaml:"debug"`
	Info  string `mapstructure:"info" yaml:"info"`
	Warn  string `mapstructure:"warn" yaml:"warn"`
	Error string `mapstructure:"error" yaml:"error"`
}

// DatabaseConfig holds the run store connection details.
type DatabaseConfig struct {
	URL string `mapstructure:"url" yaml:"url"`
}

// DeviceConfig tunes the ADB automation driver.
type DeviceConfig struct {
	ADBPath        string        `mapstructure:"adb_path" yaml:"adb_path"`
	CommandTimeout time.Duration `mapstructure:"command_timeout" yaml:"command_timeout"`
	CaptureTimeout time.Duration `mapstructure:"capture_timeout" yaml:"capture_timeout"`
	LongPressMs    int           `mapstructure:"long_press_ms" yaml:"long_press_ms"`
	SwipeMs        int           `mapstructure:"swipe_ms" yaml:"swipe_ms"`
}

// CrawlerConfig bounds the exploration control loop.
type CrawlerConfig struct {
	// MaxSteps caps the number of persisted steps per run.
	MaxSteps int `mapstructure:"max_steps" yaml:"max_steps"`
	// MaxDuration caps the wall-clock length of a run.
	MaxDuration time.Duration `mapstructure:"max_duration" yaml:"max_duration"`
	// InitTimeout bounds the device/provider handshake during INITIALIZING.
	InitTimeout time.Duration `mapstructure:"init_timeout" yaml:"init_timeout"`
	// StuckThreshold is the number of consecutive cycles without a
	// navigation change before the recovery ladder kicks in.
	StuckThreshold int `mapstructure:"stuck_threshold" yaml:"stuck_threshold"`
	// CycleRetries bounds retries of a failed decision cycle before the
	// run escalates toward failure.
	CycleRetries int `mapstructure:"cycle_retries" yaml:"cycle_retries"`
	// SessionDir is the root under which per-run artifact directories live.
	SessionDir string `mapstructure:"session_dir" yaml:"session_dir"`
	// Objective is the exploration goal handed to the model.
	Objective string `mapstructure:"objective" yaml:"objective"`
	// JournalWindow is how many recent steps are replayed into the prompt.
	JournalWindow int `mapstructure:"journal_window" yaml:"journal_window"`
}

// OCRConfig points the grounding client at its sidecar service.
type OCRConfig struct {
	Endpoint      string        `mapstructure:"endpoint" yaml:"endpoint"`
	Timeout       time.Duration `mapstructure:"timeout" yaml:"timeout"`
	MinConfidence float64       `mapstructure:"min_confidence" yaml:"min_confidence"`
}

// VisionConfig tunes the perceptual change detector.
type VisionConfig struct {
	// HashDistanceThreshold is the Hamming distance above which two
	// screen hashes count as a meaningful change.
	HashDistanceThreshold int `mapstructure:"hash_distance_threshold" yaml:"hash_distance_threshold"`
}

// LLMProvider defines the supported model providers.
type LLMProvider string

const (
	ProviderGemini LLMProvider = "gemini"
	ProviderOpenAI LLMProvider = "openai"
)

// LLMRouterConfig selects the default model out of the configured set.
type LLMRouterConfig struct {
	DefaultModel string                    `mapstructure:"default_model" yaml:"default_model"`
	Models       map[string]LLMModelConfig `mapstructure:"models" yaml:"models"`
}

// LLMModelConfig defines the configuration for a single model backend.
type LLMModelConfig struct {
	Provider          LLMProvider   `mapstructure:"provider" yaml:"provider"`
	Model             string        `mapstructure:"model" yaml:"model"`
	APIKey            string        `mapstructure:"api_key" yaml:"-"`
	Endpoint          string        `mapstructure:"endpoint" yaml:"endpoint"`
	APITimeout        time.Duration `mapstructure:"api_timeout" yaml:"api_timeout"`
	Temperature       float32       `mapstructure:"temperature" yaml:"temperature"`
	MaxTokens         int           `mapstructure:"max_tokens" yaml:"max_tokens"`
	RequestsPerMinute float64       `mapstructure:"requests_per_minute" yaml:"requests_per_minute"`
	MaxRetries        int           `mapstructure:"max_retries" yaml:"max_retries"`
}

// SetDefaults initializes default values for all configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "ui-crawler")
	v.SetDefault("logger.log_file", "crawler.log")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")

	// -- Device --
	v.SetDefault("device.adb_path", "adb")
	v.SetDefault("device.command_timeout", "10s")
	v.SetDefault("device.capture_timeout", "15s")
	v.SetDefault("device.long_press_ms", 650)
	v.SetDefault("device.swipe_ms", 300)

	// -- Crawler --
	v.SetDefault("crawler.max_steps", 40)
	v.SetDefault("crawler.max_duration", "15m")
	v.SetDefault("crawler.init_timeout", "30s")
	v.SetDefault("crawler.stuck_threshold", 3)
	v.SetDefault("crawler.cycle_retries", 2)
	v.SetDefault("crawler.session_dir", "sessions")
	v.SetDefault("crawler.objective", "Explore the application and complete the signup flow.")
	v.SetDefault("crawler.journal_window", 10)

	// -- OCR --
	v.SetDefault("ocr.endpoint", "http://127.0.0.1:8765/detect")
	v.SetDefault("ocr.timeout", "20s")
	v.SetDefault("ocr.min_confidence", 0.4)

	// -- Vision --
	v.SetDefault("vision.hash_distance_threshold", 10)

	// -- LLM --
	v.SetDefault("llm.default_model", "gemini-flash")
	v.SetDefault("llm.models.gemini-flash.provider", "gemini")
	v.SetDefault("llm.models.gemini-flash.model", "gemini-2.5-flash")
	v.SetDefault("llm.models.gemini-flash.api_timeout", "45s")
	v.SetDefault("llm.models.gemini-flash.temperature", 0.2)
	v.SetDefault("llm.models.gemini-flash.max_tokens", 2048)
	v.SetDefault("llm.models.gemini-flash.requests_per_minute", 12)
	v.SetDefault("llm.models.gemini-flash.max_retries", 4)
}

// NewDefaultConfig creates a configuration populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// Cannot happen with the defaults above.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// NewConfigFromViper creates a validated configuration from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	// Sensitive values come from the environment, never the config file.
	v.BindEnv("llm.models.gemini-flash.api_key", "CRAWLER_GEMINI_API_KEY")
	v.BindEnv("database.url", "CRAWLER_DATABASE_URL")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.Crawler.MaxSteps <= 0 {
		return fmt.Errorf("crawler.max_steps must be a positive integer")
	}
	if c.Crawler.MaxDuration <= 0 {
		return fmt.Errorf("crawler.max_duration must be a positive duration")
	}
	if c.Crawler.StuckThreshold <= 0 {
		return fmt.Errorf("crawler.stuck_threshold must be a positive integer")
	}
	if c.Crawler.CycleRetries < 0 {
		return fmt.Errorf("crawler.cycle_retries must not be negative")
	}
	if c.Vision.HashDistanceThreshold < 0 {
		return fmt.Errorf("vision.hash_distance_threshold must not be negative")
	}
	if c.OCR.MinConfidence < 0 || c.OCR.MinConfidence > 1 {
		return fmt.Errorf("ocr.min_confidence must be between 0.0 and 1.0")
	}
	if c.LLM.DefaultModel == "" {
		return fmt.Errorf("llm.default_model is required")
	}
	if _, ok := c.LLM.Models[c.LLM.DefaultModel]; !ok {
		return fmt.Errorf("llm.default_model '%s' not found in llm.models", c.LLM.DefaultModel)
	}
	for name, m := range c.LLM.Models {
		switch m.Provider {
		case ProviderGemini, ProviderOpenAI:
		default:
			return fmt.Errorf("llm.models.%s.provider '%s' is not supported", name, m.Provider)
		}
		if m.Model == "" {
			return fmt.Errorf("llm.models.%s.model is required", name)
		}
	}
	return nil
}
