package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type AppConfig struct {
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`
	OpenAI    OpenAIConfig    `mapstructure:"openai" yaml:"openai"`
	Responder ResponderConfig `mapstructure:"responder" yaml:"responder"`
	Database  DatabaseConfig  `mapstructure:"database" yaml:"database"`
	Redis     RedisConfig     `mapstructure:"redis" yaml:"redis"`
	Outbound  OutboundConfig  `mapstructure:"outbound" yaml:"outbound"`
	Poller    PollerConfig    `mapstructure:"poller" yaml:"poller"`
	Log       LogConfig       `mapstructure:"log" yaml:"log"`
}

type ServerConfig struct {
	Port            string        `mapstructure:"port" yaml:"port"`
	WebhookSecret   string        `mapstructure:"webhook_secret" yaml:"webhook_secret"`
	RateRPS         float64       `mapstructure:"rate_rps" yaml:"rate_rps"`
	RateBurst       int           `mapstructure:"rate_burst" yaml:"rate_burst"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

type OpenAIConfig struct {
	APIKey    string        `mapstructure:"api_key" yaml:"api_key"`
	Model     string        `mapstructure:"model" yaml:"model"`
	BaseURL   string        `mapstructure:"base_url" yaml:"base_url"`
	MaxTokens int           `mapstructure:"max_tokens" yaml:"max_tokens"`
	Timeout   time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

type ResponderConfig struct {
	RulesFile string `mapstructure:"rules_file" yaml:"rules_file"`
	// OnNoMatch is "default" or "ai".
	OnNoMatch string `mapstructure:"on_no_match" yaml:"on_no_match"`
	// OnAIError is "default" or "fail".
	OnAIError string `mapstructure:"on_ai_error" yaml:"on_ai_error"`
}

type DatabaseConfig struct {
	URL string `mapstructure:"url" yaml:"url"`
}

type RedisConfig struct {
	Addr     string        `mapstructure:"addr" yaml:"addr"`
	Password string        `mapstructure:"password" yaml:"password"`
	DB       int           `mapstructure:"db" yaml:"db"`
	Prefix   string        `mapstructure:"prefix" yaml:"prefix"`
	TTL      time.Duration `mapstructure:"ttl" yaml:"ttl"`
}

type OutboundConfig struct {
	URL     string        `mapstructure:"url" yaml:"url"`
	Token   string        `mapstructure:"token" yaml:"token"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

type PollerConfig struct {
	URL             string        `mapstructure:"url" yaml:"url"`
	Interval        time.Duration `mapstructure:"interval" yaml:"interval"`
	Headless        bool          `mapstructure:"headless" yaml:"headless"`
	StepTimeout     time.Duration `mapstructure:"step_timeout" yaml:"step_timeout"`
	ChatID          string        `mapstructure:"chat_id" yaml:"chat_id"`
	SelfName        string        `mapstructure:"self_name" yaml:"self_name"`
	SkipBacklog     bool          `mapstructure:"skip_backlog" yaml:"skip_backlog"`
	MaxScanFailures int           `mapstructure:"max_scan_failures" yaml:"max_scan_failures"`
	DriftThreshold  int           `mapstructure:"drift_threshold" yaml:"drift_threshold"`

	ContainerSelector string `mapstructure:"container_selector" yaml:"container_selector"`
	MessageSelector   string `mapstructure:"message_selector" yaml:"message_selector"`
	TextSelector      string `mapstructure:"text_selector" yaml:"text_selector"`
	SenderSelector    string `mapstructure:"sender_selector" yaml:"sender_selector"`
	IDAttribute       string `mapstructure:"id_attribute" yaml:"id_attribute"`
	InputSelector     string `mapstructure:"input_selector" yaml:"input_selector"`
	SubmitSelector    string `mapstructure:"submit_selector" yaml:"submit_selector"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

var defaults = map[string]any{
	"server.port":             "8080",
	"server.webhook_secret":   "",
	"server.rate_rps":         2.0,
	"server.rate_burst":       5,
	"server.shutdown_timeout": 5 * time.Second,

	"openai.api_key":    "",
	"openai.model":      "gpt-4o-mini",
	"openai.base_url":   "",
	"openai.max_tokens": 50,
	"openai.timeout":    15 * time.Second,

	"responder.rules_file":  "",
	"responder.on_no_match": "default",
	"responder.on_ai_error": "default",

	"database.url": "",

	"redis.addr":     "",
	"redis.password": "",
	"redis.db":       0,
	"redis.prefix":   "autoreply:seen:",
	"redis.ttl":      24 * time.Hour,

	"outbound.url":     "",
	"outbound.token":   "",
	"outbound.timeout": 10 * time.Second,

	"poller.url":                "",
	"poller.interval":           5 * time.Second,
	"poller.headless":           true,
	"poller.step_timeout":       10 * time.Second,
	"poller.chat_id":            "webinar",
	"poller.self_name":          "",
	"poller.skip_backlog":       true,
	"poller.max_scan_failures":  10,
	"poller.drift_threshold":    6,
	"poller.container_selector": "#chat",
	"poller.message_selector":   ".chat-message",
	"poller.text_selector":      ".message-text",
	"poller.sender_selector":    ".message-sender",
	"poller.id_attribute":       "data-id",
	"poller.input_selector":     "#chat-input",
	"poller.submit_selector":    "#send-button",

	"log.level":  "info",
	"log.format": "console",
}

// Load reads configuration from defaults, an optional YAML file and the
// environment, in increasing priority. Keys map to env vars by replacing
// dots with underscores (openai.api_key -> OPENAI_API_KEY).
func Load(path string) (*AppConfig, error) {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// PORT is what most hosting platforms inject.
	if err := v.BindEnv("server.port", "SERVER_PORT", "PORT"); err != nil {
		return nil, err
	}

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the enum-like fields.
func (c *AppConfig) Validate() error {
	switch c.Responder.OnNoMatch {
	case "default", "ai":
	default:
		return fmt.Errorf("responder.on_no_match: unknown value %q", c.Responder.OnNoMatch)
	}
	switch c.Responder.OnAIError {
	case "default", "fail":
	default:
		return fmt.Errorf("responder.on_ai_error: unknown value %q", c.Responder.OnAIError)
	}
	if c.Responder.OnNoMatch == "ai" && c.OpenAI.APIKey == "" {
		return fmt.Errorf("responder.on_no_match=ai requires OPENAI_API_KEY")
	}
	if c.OpenAI.MaxTokens <= 0 {
		return fmt.Errorf("openai.max_tokens must be positive")
	}
	return nil
}
