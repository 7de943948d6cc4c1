// File: internal/config/config.go
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Logger     LoggerConfig     `mapstructure:"logger" yaml:"logger"`
	Engine     EngineConfig     `mapstructure:"engine" yaml:"engine"`
	Browser    BrowserConfig    `mapstructure:"browser" yaml:"browser"`
	Humanoid   HumanoidConfig   `mapstructure:"humanoid" yaml:"humanoid"`
	Assist     AssistConfig     `mapstructure:"assist" yaml:"assist"`
	Checkpoint CheckpointConfig `mapstructure:"checkpoint" yaml:"checkpoint"`
	Documents  DocumentsConfig  `mapstructure:"documents" yaml:"documents"`
	Portals    PortalsConfig    `mapstructure:"portals" yaml:"portals"`
	Results    ResultsConfig    `mapstructure:"results" yaml:"results"`
}

// LoggerConfig controls the zap logger bootstrap.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"` // "console" or "json"
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"` // megabytes, per lumberjack
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"` // days
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig maps log levels to terminal colors for the console encoder.
type ColorConfig struct {
	Debug string `mapstructure:"debug" yaml:"debug"`
	Info  string `mapstructure:"info" yaml:"info"`
	Warn  string `mapstructure:"warn" yaml:"warn"`
	Error string `mapstructure:"error" yaml:"error"`
	Fatal string `mapstructure:"fatal" yaml:"fatal"`
}

// EngineConfig carries the session pipeline's budgets and thresholds.
type EngineConfig struct {
	// EscalationThreshold is the minimum confidence below which an answer
	// must be escalated to external assistance before it is accepted.
	EscalationThreshold float64 `mapstructure:"escalation_threshold" yaml:"escalation_threshold"`
	// MaxCorrectionAttempts bounds the validation correction loop per field.
	MaxCorrectionAttempts int `mapstructure:"max_correction_attempts" yaml:"max_correction_attempts"`
	// MaxUploadAttempts bounds retries on the custom document path before
	// the fallback asset is used.
	MaxUploadAttempts int `mapstructure:"max_upload_attempts" yaml:"max_upload_attempts"`
	// MaxTransientRetries bounds retries of network/timeout failures on a
	// single step before escalation to a structural failure.
	MaxTransientRetries int           `mapstructure:"max_transient_retries" yaml:"max_transient_retries"`
	TransientBackoff    time.Duration `mapstructure:"transient_backoff" yaml:"transient_backoff"`
	NavigationTimeout   time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	StabilizeTimeout    time.Duration `mapstructure:"stabilize_timeout" yaml:"stabilize_timeout"`
	// MaxPages is a hard stop against portals that never reach a terminal
	// page.
	MaxPages int `mapstructure:"max_pages" yaml:"max_pages"`
}

// BrowserConfig controls the chromedp context.
type BrowserConfig struct {
	Headless  bool   `mapstructure:"headless" yaml:"headless"`
	UserAgent string `mapstructure:"user_agent" yaml:"user_agent"`
	ExecPath  string `mapstructure:"exec_path" yaml:"exec_path"`
	// UploadTimeout bounds the wait for the native file chooser to open
	// after activating an upload control.
	UploadTimeout time.Duration `mapstructure:"upload_timeout" yaml:"upload_timeout"`
}

// HumanoidConfig shapes the human-plausible pacing between interactions.
type HumanoidConfig struct {
	Enabled       bool    `mapstructure:"enabled" yaml:"enabled"`
	PauseMeanMs   float64 `mapstructure:"pause_mean_ms" yaml:"pause_mean_ms"`
	PauseStdDevMs float64 `mapstructure:"pause_stddev_ms" yaml:"pause_stddev_ms"`
	KeyMeanMs     float64 `mapstructure:"key_mean_ms" yaml:"key_mean_ms"`
	KeyStdDevMs   float64 `mapstructure:"key_stddev_ms" yaml:"key_stddev_ms"`
	// FatigueRate is the per-action increase of the fatigue factor.
	FatigueRate float64 `mapstructure:"fatigue_rate" yaml:"fatigue_rate"`
}

// AssistConfig configures the external language-model assistance call.
type AssistConfig struct {
	Enabled    bool          `mapstructure:"enabled" yaml:"enabled"`
	Endpoint   string        `mapstructure:"endpoint" yaml:"endpoint"`
	APIKey     string        `mapstructure:"api_key" yaml:"api_key"`
	Timeout    time.Duration `mapstructure:"timeout" yaml:"timeout"`
	MaxElapsed time.Duration `mapstructure:"max_elapsed" yaml:"max_elapsed"`
}

// CheckpointConfig selects and configures the checkpoint store.
type CheckpointConfig struct {
	// Backend is "postgres" or "memory".
	Backend string `mapstructure:"backend" yaml:"backend"`
	DSN     string `mapstructure:"dsn" yaml:"dsn"`
	// StalenessWindow is the maximum checkpoint age that may be resumed.
	StalenessWindow time.Duration `mapstructure:"staleness_window" yaml:"staleness_window"`
}

// DocumentsConfig locates the applicant's files and the default fallbacks.
type DocumentsConfig struct {
	ResumePath             string `mapstructure:"resume_path" yaml:"resume_path"`
	CoverLetterPath        string `mapstructure:"cover_letter_path" yaml:"cover_letter_path"`
	DefaultResumePath      string `mapstructure:"default_resume_path" yaml:"default_resume_path"`
	DefaultCoverLetterPath string `mapstructure:"default_cover_letter_path" yaml:"default_cover_letter_path"`
}

// PortalsConfig locates the versioned per-portal selector mappings.
type PortalsConfig struct {
	Dir string `mapstructure:"dir" yaml:"dir"`
	// ProfilePath is the applicant profile JSON file.
	ProfilePath string `mapstructure:"profile_path" yaml:"profile_path"`
}

// ResultsConfig configures the terminal result sink.
type ResultsConfig struct {
	// Path is the JSONL file results are appended to; "-" means stdout.
	Path string `mapstructure:"path" yaml:"path"`
}

// SetDefaults registers every configuration default on the given viper
// instance. Defaults match the engine contract: escalation threshold 0.6,
// three correction attempts, three upload attempts, a one hour staleness
// window.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.service_name", "merlin-apply")
	v.SetDefault("logger.max_size", 50)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.fatal", "magenta")

	v.SetDefault("engine.escalation_threshold", 0.6)
	v.SetDefault("engine.max_correction_attempts", 3)
	v.SetDefault("engine.max_upload_attempts", 3)
	v.SetDefault("engine.max_transient_retries", 3)
	v.SetDefault("engine.transient_backoff", 2*time.Second)
	v.SetDefault("engine.navigation_timeout", 30*time.Second)
	v.SetDefault("engine.stabilize_timeout", 10*time.Second)
	v.SetDefault("engine.max_pages", 25)

	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.upload_timeout", 30*time.Second)

	v.SetDefault("humanoid.enabled", true)
	v.SetDefault("humanoid.pause_mean_ms", 900.0)
	v.SetDefault("humanoid.pause_stddev_ms", 350.0)
	v.SetDefault("humanoid.key_mean_ms", 120.0)
	v.SetDefault("humanoid.key_stddev_ms", 45.0)
	v.SetDefault("humanoid.fatigue_rate", 0.002)

	v.SetDefault("assist.enabled", false)
	v.SetDefault("assist.timeout", 20*time.Second)
	v.SetDefault("assist.max_elapsed", time.Minute)

	v.SetDefault("checkpoint.backend", "memory")
	v.SetDefault("checkpoint.staleness_window", time.Hour)

	v.SetDefault("portals.dir", "portals")
	v.SetDefault("portals.profile_path", "profile.json")

	v.SetDefault("results.path", "-")
}

// Load reads configuration from the optional file, the environment
// (MERLIN_ prefix) and the registered defaults, and validates it.
func Load(cfgFile string) (*Config, error) {
	v := viper.GetViper()
	SetDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("MERLIN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// No config file; defaults and env vars apply.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the engine cannot honor.
func (c *Config) Validate() error {
	if c.Engine.EscalationThreshold < 0 || c.Engine.EscalationThreshold > 1 {
		return fmt.Errorf("engine.escalation_threshold must be within [0,1], got %v", c.Engine.EscalationThreshold)
	}
	if c.Engine.MaxCorrectionAttempts < 1 {
		return fmt.Errorf("engine.max_correction_attempts must be at least 1")
	}
	if c.Engine.MaxUploadAttempts < 1 {
		return fmt.Errorf("engine.max_upload_attempts must be at least 1")
	}
	if c.Checkpoint.StalenessWindow <= 0 {
		return fmt.Errorf("checkpoint.staleness_window must be positive")
	}
	switch c.Checkpoint.Backend {
	case "postgres", "memory":
	default:
		return fmt.Errorf("checkpoint.backend must be \"postgres\" or \"memory\", got %q", c.Checkpoint.Backend)
	}
	if c.Checkpoint.Backend == "postgres" && c.Checkpoint.DSN == "" {
		return fmt.Errorf("checkpoint.dsn is required for the postgres backend")
	}
	if c.Assist.Enabled && c.Assist.Endpoint == "" {
		return fmt.Errorf("assist.endpoint is required when assistance is enabled")
	}
	return nil
}
