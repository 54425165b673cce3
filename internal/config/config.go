package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server struct {
		Port int    `yaml:"port" toml:"port"`
		Host string `yaml:"host" toml:"host"`
	} `yaml:"server" toml:"server"`

	Storage struct {
		DataDir  string `yaml:"data_dir" toml:"data_dir"`
		Database string `yaml:"database" toml:"database"`
	} `yaml:"storage" toml:"storage"`

	Recording struct {
		Device         string `yaml:"device" toml:"device"`
		FlushThreshold int    `yaml:"flush_threshold" toml:"flush_threshold"`
		ChannelSize    int    `yaml:"channel_size" toml:"channel_size"`
	} `yaml:"recording" toml:"recording"`

	Transcription struct {
		Diarizer         string `yaml:"diarizer" toml:"diarizer"`
		Transcriber      string `yaml:"transcriber" toml:"transcriber"`
		Model            string `yaml:"model" toml:"model"`
		BaseURL          string `yaml:"base_url" toml:"base_url"`
		Format           string `yaml:"format" toml:"format"`
		Language         string `yaml:"language" toml:"language"`
		AssemblyAIKey    string `yaml:"assemblyai_api_key" toml:"assemblyai_api_key"`
		OpenAIKey        string `yaml:"openai_api_key" toml:"openai_api_key"`
		PollIntervalSecs int    `yaml:"poll_interval_seconds" toml:"poll_interval_seconds"`
		MaxPollAttempts  int    `yaml:"max_poll_attempts" toml:"max_poll_attempts"`
	} `yaml:"transcription" toml:"transcription"`

	Summary struct {
		Model        string `yaml:"model" toml:"model"`
		MaxTokens    int    `yaml:"max_tokens" toml:"max_tokens"`
		Auto         bool   `yaml:"auto" toml:"auto"`
		AnthropicKey string `yaml:"anthropic_api_key" toml:"anthropic_api_key"`
	} `yaml:"summary" toml:"summary"`

	Workers struct {
		Count int `yaml:"count" toml:"count"`
	} `yaml:"workers" toml:"workers"`

	Cleanup struct {
		IntervalMinutes int `yaml:"interval_minutes" toml:"interval_minutes"`
		MaxAgeHours     int `yaml:"max_age_hours" toml:"max_age_hours"`
	} `yaml:"cleanup" toml:"cleanup"`

	GoogleDrive struct {
		CredentialsFile string `yaml:"credentials_file" toml:"credentials_file"`
		TokenFile       string `yaml:"token_file" toml:"token_file"`
		FolderName      string `yaml:"folder_name" toml:"folder_name"`
	} `yaml:"google_drive" toml:"google_drive"`

	Logging struct {
		Level string `yaml:"level" toml:"level"`
		File  string `yaml:"file" toml:"file"`
	} `yaml:"logging" toml:"logging"`
}

// Default returns a configuration with every default applied
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Load reads the config file at path (YAML or TOML by extension), loads .env,
// applies environment overrides and defaults, then validates.
// A missing file is not an error; defaults and environment still apply.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		if err := decodeFile(path, cfg); err != nil && !os.IsNotExist(err) {
			return nil, err
		}
	}

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decodeFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return fmt.Errorf("failed to parse %s: %w", path, err)
		}
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	cfg.Server.Host = getEnv("MEETING_HOST", cfg.Server.Host)
	cfg.Server.Port = getEnvInt("MEETING_PORT", cfg.Server.Port)
	cfg.Storage.DataDir = getEnv("MEETING_DATA_DIR", cfg.Storage.DataDir)
	cfg.Storage.Database = getEnv("MEETING_DATABASE", cfg.Storage.Database)
	cfg.Recording.Device = getEnv("MEETING_DEVICE", cfg.Recording.Device)
	cfg.Transcription.Diarizer = getEnv("MEETING_DIARIZER", cfg.Transcription.Diarizer)
	cfg.Transcription.Transcriber = getEnv("MEETING_TRANSCRIBER", cfg.Transcription.Transcriber)
	cfg.Workers.Count = getEnvInt("MEETING_WORKERS", cfg.Workers.Count)
	cfg.Logging.Level = getEnv("MEETING_LOG_LEVEL", cfg.Logging.Level)

	cfg.Transcription.AssemblyAIKey = getEnv("ASSEMBLYAI_API_KEY", cfg.Transcription.AssemblyAIKey)
	cfg.Summary.AnthropicKey = getEnv("ANTHROPIC_API_KEY", cfg.Summary.AnthropicKey)
	if cfg.Transcription.Transcriber == "groq" {
		cfg.Transcription.OpenAIKey = getEnv("GROQ_API_KEY", cfg.Transcription.OpenAIKey)
	} else {
		cfg.Transcription.OpenAIKey = getEnv("OPENAI_API_KEY", cfg.Transcription.OpenAIKey)
	}

	if v := getEnv("MEETING_SUMMARY_AUTO", ""); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Summary.Auto = b
		}
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "127.0.0.1"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8787
	}
	if cfg.Storage.DataDir == "" {
		cfg.Storage.DataDir = defaultDataDir()
	}
	cfg.Storage.DataDir = expandTilde(cfg.Storage.DataDir)
	if cfg.Storage.Database == "" {
		cfg.Storage.Database = filepath.Join(cfg.Storage.DataDir, "meetings.db")
	}
	if cfg.Recording.FlushThreshold <= 0 {
		cfg.Recording.FlushThreshold = 160000
	}
	if cfg.Recording.ChannelSize <= 0 {
		cfg.Recording.ChannelSize = 64
	}
	if cfg.Transcription.Transcriber == "" {
		cfg.Transcription.Transcriber = "openai"
	}
	if cfg.Transcription.Format == "" {
		cfg.Transcription.Format = "flac"
	}
	if cfg.Transcription.PollIntervalSecs <= 0 {
		cfg.Transcription.PollIntervalSecs = 3
	}
	if cfg.Transcription.MaxPollAttempts <= 0 {
		cfg.Transcription.MaxPollAttempts = 120
	}
	if cfg.Summary.Model == "" {
		cfg.Summary.Model = "claude-haiku-4-5"
	}
	if cfg.Summary.MaxTokens <= 0 {
		cfg.Summary.MaxTokens = 4096
	}
	if cfg.Workers.Count <= 0 {
		cfg.Workers.Count = 1
	}
	if cfg.Cleanup.IntervalMinutes <= 0 {
		cfg.Cleanup.IntervalMinutes = 60
	}
	if cfg.Cleanup.MaxAgeHours <= 0 {
		cfg.Cleanup.MaxAgeHours = 24
	}
	if cfg.GoogleDrive.FolderName == "" {
		cfg.GoogleDrive.FolderName = "Meeting Transcripts"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}

// Validate checks values that have no sensible default
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	switch c.Transcription.Diarizer {
	case "", "none", "assemblyai":
	default:
		return fmt.Errorf("invalid diarizer: %s (must be assemblyai or none)", c.Transcription.Diarizer)
	}
	switch c.Transcription.Transcriber {
	case "openai", "groq", "none":
	default:
		return fmt.Errorf("invalid transcriber: %s (must be openai, groq or none)", c.Transcription.Transcriber)
	}
	switch c.Transcription.Format {
	case "flac", "wav":
	default:
		return fmt.Errorf("invalid upload format: %s (must be flac or wav)", c.Transcription.Format)
	}
	return nil
}

// AudioDir is the managed directory holding meeting recordings
func (c *Config) AudioDir() string {
	return filepath.Join(c.Storage.DataDir, "meeting-audio")
}

// EnsureDirs creates the data and audio directories
func (c *Config) EnsureDirs() error {
	for _, dir := range []string{c.Storage.DataDir, c.AudioDir(), filepath.Dir(c.Storage.Database)} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func defaultDataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "meeting-recorder")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "share", "meeting-recorder")
	}
	return filepath.Join(".", "data")
}

func expandTilde(path string) string {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
