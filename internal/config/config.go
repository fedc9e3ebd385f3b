package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the ouija gateway
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Inference InferenceConfig `yaml:"inference"`
	Spirit    SpiritConfig    `yaml:"spirit"`
	Store     StoreConfig     `yaml:"store"`
	Channels  ChannelsConfig  `yaml:"channels"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig defines HTTP server settings
type ServerConfig struct {
	Port        int    `yaml:"port"`
	Host        string `yaml:"host"`
	AllowOrigin string `yaml:"allow_origin"`
}

// InferenceConfig defines the chat-completion backend
type InferenceConfig struct {
	Provider    string  `yaml:"provider"` // openai-compatible, ollama, anthropic, gemini
	BaseURL     string  `yaml:"base_url,omitempty"`
	APIKey      string  `yaml:"api_key,omitempty"`
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
	Timeout     string  `yaml:"timeout"`
}

// GetTimeout returns the timeout as a time.Duration
func (c *InferenceConfig) GetTimeout() time.Duration {
	if c.Timeout == "" {
		return 60 * time.Second
	}
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 60 * time.Second
	}
	return d
}

// SpiritConfig defines persona and conversation-memory behaviour
type SpiritConfig struct {
	MemoryDepth int    `yaml:"memory_depth"` // question/answer pairs kept per spirit
	Sentinel    string `yaml:"sentinel"`
	ResetAck    string `yaml:"reset_ack"`
	Greeting    string `yaml:"greeting"`
}

// StoreConfig defines where spirit records live
type StoreConfig struct {
	Backend       string      `yaml:"backend"` // file, redis, sqlite, memory
	Dir           string      `yaml:"dir,omitempty"`
	SQLitePath    string      `yaml:"sqlite_path,omitempty"`
	Redis         RedisConfig `yaml:"redis,omitempty"`
	SweepSchedule string      `yaml:"sweep_schedule,omitempty"`
}

// RedisConfig defines Redis connection settings
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// ChannelsConfig defines channel configurations
type ChannelsConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
	Discord  DiscordConfig  `yaml:"discord"`
	WebChat  WebChatConfig  `yaml:"webchat"`
}

// TelegramConfig defines Telegram channel settings
type TelegramConfig struct {
	Enabled bool   `yaml:"enabled"`
	Token   string `yaml:"token"`
}

// DiscordConfig defines Discord channel settings
type DiscordConfig struct {
	Enabled bool   `yaml:"enabled"`
	Token   string `yaml:"token"`
}

// WebChatConfig defines WebChat channel settings
type WebChatConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// LoggingConfig defines logging settings
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when no file is present.
// The inference defaults point at DeepSeek's OpenAI-compatible API.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        8080,
			Host:        "0.0.0.0",
			AllowOrigin: "*",
		},
		Inference: InferenceConfig{
			Provider:    "openai-compatible",
			BaseURL:     "https://api.deepseek.com/v1",
			Model:       "deepseek-chat",
			Temperature: 0.2,
			MaxTokens:   512,
			Timeout:     "60s",
		},
		Spirit: SpiritConfig{
			MemoryDepth: 20,
			Sentinel:    "<<NEW_SPIRIT>>",
			ResetAck:    "Yes",
			Greeting:    "Hello.",
		},
		Store: StoreConfig{
			Backend:       "file",
			Dir:           "spirits",
			SQLitePath:    "spirits.db",
			Redis:         RedisConfig{Addr: "localhost:6379", Prefix: "ouija"},
			SweepSchedule: "0 3 * * *",
		},
		Channels: ChannelsConfig{
			WebChat: WebChatConfig{Port: 18793},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load loads configuration from a YAML file with environment variable overrides.
// A missing file is not an error: defaults plus environment are used instead.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the config
func (c *Config) applyEnvOverrides() {
	if port := os.Getenv("OUIJA_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Server.Port = p
		}
	}
	if key := os.Getenv("DEEPSEEK_API_KEY"); key != "" {
		c.Inference.APIKey = key
	}
	// OUIJA_API_KEY wins over the provider specific variable
	if key := os.Getenv("OUIJA_API_KEY"); key != "" {
		c.Inference.APIKey = key
	}
	if backend := os.Getenv("OUIJA_STORE"); backend != "" {
		c.Store.Backend = backend
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		c.Store.Redis.Addr = addr
	}
	if token := os.Getenv("TELEGRAM_TOKEN"); token != "" {
		c.Channels.Telegram.Token = token
	}
	if token := os.Getenv("DISCORD_TOKEN"); token != "" {
		c.Channels.Discord.Token = token
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	switch c.Inference.Provider {
	case "openai-compatible", "openai", "deepseek", "ollama", "anthropic", "gemini":
	default:
		return fmt.Errorf("unsupported inference provider: %q", c.Inference.Provider)
	}
	if c.Inference.Model == "" {
		return fmt.Errorf("inference model is required")
	}
	if c.Inference.MaxTokens <= 0 {
		return fmt.Errorf("invalid max_tokens: %d", c.Inference.MaxTokens)
	}
	if c.Spirit.MemoryDepth <= 0 {
		return fmt.Errorf("invalid memory_depth: %d", c.Spirit.MemoryDepth)
	}
	if c.Spirit.Sentinel == "" {
		return fmt.Errorf("spirit sentinel is required")
	}
	switch c.Store.Backend {
	case "file":
		if c.Store.Dir == "" {
			return fmt.Errorf("store dir is required for the file backend")
		}
	case "redis":
		if c.Store.Redis.Addr == "" {
			return fmt.Errorf("redis addr is required for the redis backend")
		}
	case "sqlite":
		if c.Store.SQLitePath == "" {
			return fmt.Errorf("sqlite_path is required for the sqlite backend")
		}
	case "memory":
	default:
		return fmt.Errorf("unsupported store backend: %q", c.Store.Backend)
	}
	if c.Channels.WebChat.Enabled && (c.Channels.WebChat.Port <= 0 || c.Channels.WebChat.Port > 65535) {
		return fmt.Errorf("invalid webchat port: %d", c.Channels.WebChat.Port)
	}
	return nil
}
