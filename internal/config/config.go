package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

type Mode string

const (
	ModeLocal Mode = "local"
	ModeGCP   Mode = "gcp"
)

type Config struct {
	Mode Mode `toml:"mode"`

	Port      string `toml:"port"`
	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"` // "json" or "text"

	LLM      LLMConfig      `toml:"llm"`
	Location LocationConfig `toml:"location"`
	Session  SessionConfig  `toml:"session"`
}

type LLMConfig struct {
	UseMock   bool   `toml:"use_mock"` // true = use mock even on GCP
	UseVertex bool   `toml:"use_vertex"`
	APIKey    string `toml:"api_key"`

	GCPProjectID string `toml:"gcp_project"`
	GCPLocation  string `toml:"gcp_location"`
	ModelName    string `toml:"model"`

	// Timeout bounds a single answering call.
	Timeout time.Duration `toml:"timeout"`
	// RequestsPerMinute throttles calls across all sessions; 0 disables it.
	RequestsPerMinute int `toml:"requests_per_minute"`
	// InstructionsFile overrides the built-in instruction template.
	InstructionsFile string `toml:"instructions_file"`
}

type LocationConfig struct {
	MinDistanceMeters float64       `toml:"min_distance_meters"`
	MaxAge            time.Duration `toml:"max_age"`
	WatchTimeout      time.Duration `toml:"watch_timeout"`
	FallbackTimeout   time.Duration `toml:"fallback_timeout"`
}

type SessionConfig struct {
	IdleTTL time.Duration `toml:"idle_ttl"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Mode:      ModeLocal,
		Port:      "8080",
		LogLevel:  "info",
		LogFormat: "json",
		LLM: LLMConfig{
			UseMock:           true,
			GCPLocation:       "us-central1",
			ModelName:         "gemini-2.5-flash",
			Timeout:           60 * time.Second,
			RequestsPerMinute: 60,
		},
		Location: LocationConfig{
			MinDistanceMeters: 20,
			MaxAge:            60 * time.Second,
			WatchTimeout:      30 * time.Second,
			FallbackTimeout:   30 * time.Second,
		},
		Session: SessionConfig{
			IdleTTL: 30 * time.Minute,
		},
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getBoolEnv(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if v == "1" || v == "true" || v == "TRUE" {
		return true
	}
	return false
}

func getDurationEnv(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func getIntEnv(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getFloatEnv(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return f, nil
}

// Load builds the config from defaults, then the TOML file at path (or
// RUMBO_CONFIG_FILE when path is empty), then env vars. Env vars win.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("RUMBO_CONFIG_FILE")
	}
	mockFromFile := false
	if path != "" {
		md, err := toml.DecodeFile(path, cfg)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("unknown keys in config file %s: %v", path, undecoded)
		}
		mockFromFile = md.IsDefined("llm", "use_mock")
	}

	if err := applyEnv(cfg, mockFromFile); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config, mockFromFile bool) error {
	switch getEnv("RUMBO_MODE", string(cfg.Mode)) {
	case "gcp":
		cfg.Mode = ModeGCP
	default:
		cfg.Mode = ModeLocal
	}

	cfg.Port = getEnv("RUMBO_PORT", getEnv("PORT", cfg.Port))
	cfg.LogLevel = getEnv("RUMBO_LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = getEnv("RUMBO_LOG_FORMAT", cfg.LogFormat)

	// unless set explicitly, local mode uses the mock and gcp mode the real model
	if !mockFromFile {
		cfg.LLM.UseMock = cfg.Mode == ModeLocal
	}
	cfg.LLM.UseMock = getBoolEnv("RUMBO_USE_MOCK_LLM", cfg.LLM.UseMock)
	cfg.LLM.UseVertex = getBoolEnv("RUMBO_USE_VERTEX", cfg.LLM.UseVertex)
	cfg.LLM.APIKey = getEnv("RUMBO_GEMINI_API_KEY", getEnv("GEMINI_API_KEY", cfg.LLM.APIKey))
	cfg.LLM.GCPProjectID = getEnv("RUMBO_GCP_PROJECT", cfg.LLM.GCPProjectID)
	cfg.LLM.GCPLocation = getEnv("RUMBO_GCP_LOCATION", cfg.LLM.GCPLocation)
	cfg.LLM.ModelName = getEnv("RUMBO_MODEL_NAME", cfg.LLM.ModelName)
	cfg.LLM.InstructionsFile = getEnv("RUMBO_INSTRUCTIONS_FILE", cfg.LLM.InstructionsFile)

	var err error
	if cfg.LLM.Timeout, err = getDurationEnv("RUMBO_LLM_TIMEOUT", cfg.LLM.Timeout); err != nil {
		return err
	}
	if cfg.LLM.RequestsPerMinute, err = getIntEnv("RUMBO_LLM_REQUESTS_PER_MINUTE", cfg.LLM.RequestsPerMinute); err != nil {
		return err
	}
	if cfg.Location.MinDistanceMeters, err = getFloatEnv("RUMBO_LOCATION_MIN_DISTANCE_M", cfg.Location.MinDistanceMeters); err != nil {
		return err
	}
	if cfg.Location.MaxAge, err = getDurationEnv("RUMBO_LOCATION_MAX_AGE", cfg.Location.MaxAge); err != nil {
		return err
	}
	if cfg.Location.WatchTimeout, err = getDurationEnv("RUMBO_LOCATION_TIMEOUT", cfg.Location.WatchTimeout); err != nil {
		return err
	}
	if cfg.Location.FallbackTimeout, err = getDurationEnv("RUMBO_LOCATION_FALLBACK_TIMEOUT", cfg.Location.FallbackTimeout); err != nil {
		return err
	}
	if cfg.Session.IdleTTL, err = getDurationEnv("RUMBO_SESSION_IDLE_TTL", cfg.Session.IdleTTL); err != nil {
		return err
	}
	return nil
}

// Validate checks the settings the chosen mode depends on.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("port must be set")
	}
	if c.Location.MinDistanceMeters < 0 || c.Location.MaxAge < 0 {
		return fmt.Errorf("location thresholds must not be negative")
	}
	if c.LLM.RequestsPerMinute < 0 {
		return fmt.Errorf("llm requests_per_minute must not be negative")
	}
	if c.LLM.UseMock {
		return nil
	}

	if c.LLM.UseVertex {
		if c.LLM.GCPProjectID == "" {
			return fmt.Errorf("RUMBO_GCP_PROJECT must be set to use Vertex AI")
		}
		return nil
	}
	if c.LLM.APIKey == "" {
		return fmt.Errorf("RUMBO_GEMINI_API_KEY (or GEMINI_API_KEY) must be set unless the mock LLM is used")
	}
	return nil
}
