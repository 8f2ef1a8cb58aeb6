package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"auto_thread_publisher/generator"
)

// Config holds the environment driven configuration for the bot.
type Config struct {
	ServiceName string `env:"SERVICE_NAME" envDefault:"thread-bot"`
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	TelegramToken   string `env:"TELEGRAM_BOT_TOKEN"`
	OpenAIAPIKey    string `env:"OPENAI_API_KEY"`
	TypefullyAPIKey string `env:"TYPEFULLY_API_KEY"`

	AllowedChatIDs []int64 `env:"ALLOWED_CHAT_IDS" envSeparator:","`

	OpenAIModel       string        `env:"OPENAI_MODEL" envDefault:"gpt-4o"`
	OpenAIBaseURL     string        `env:"OPENAI_BASE_URL"`
	OpenAIMaxRetries  int           `env:"OPENAI_MAX_RETRIES" envDefault:"2"`
	GenerationTimeout time.Duration `env:"GENERATION_TIMEOUT" envDefault:"60s"`

	TypefullyBaseURL   string `env:"TYPEFULLY_BASE_URL" envDefault:"https://api.typefully.com"`
	TypefullyShareBase string `env:"TYPEFULLY_SHARE_BASE" envDefault:"https://typefully.com/draft/"`
	TypefullySchedule  string `env:"TYPEFULLY_SCHEDULE"`

	HTTPPort   int           `env:"PORT" envDefault:"8080"`
	APIEnabled bool          `env:"API_ENABLED" envDefault:"false"`
	SessionTTL time.Duration `env:"SESSION_TTL" envDefault:"10m"`
	TonesFile  string        `env:"TONES_FILE"`

	opts LoadOptions
}

// LoadOptions relax the credential checks for modes that never call a service.
type LoadOptions struct {
	// Terminal runs without the chat bot, so TELEGRAM_BOT_TOKEN is optional.
	Terminal bool
	// OfflineModel uses the mock model, so OPENAI_API_KEY is optional.
	OfflineModel bool
}

// Load reads envFile (if present) into the process environment and parses Config.
// It fails when any of the three service credentials is missing.
func Load(envFile string) (*Config, error) {
	return LoadWith(envFile, LoadOptions{})
}

// LoadWith is Load with the credential checks relaxed by opts.
func LoadWith(envFile string, opts LoadOptions) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	cfg := &Config{opts: opts}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required credentials and numeric bounds.
func (c *Config) Validate() error {
	var missing []string
	if !c.opts.Terminal && strings.TrimSpace(c.TelegramToken) == "" {
		missing = append(missing, "TELEGRAM_BOT_TOKEN")
	}
	if !c.opts.OfflineModel && strings.TrimSpace(c.OpenAIAPIKey) == "" {
		missing = append(missing, "OPENAI_API_KEY")
	}
	if strings.TrimSpace(c.TypefullyAPIKey) == "" {
		missing = append(missing, "TYPEFULLY_API_KEY")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535, got %d", c.HTTPPort)
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive")
	}
	if c.OpenAIMaxRetries < 0 {
		c.OpenAIMaxRetries = 0
	}
	return nil
}

// Addr returns the HTTP listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

// ChatAllowed reports whether commands from chatID are accepted.
// An empty allow-list accepts every chat.
func (c *Config) ChatAllowed(chatID int64) bool {
	if len(c.AllowedChatIDs) == 0 {
		return true
	}
	for _, id := range c.AllowedChatIDs {
		if id == chatID {
			return true
		}
	}
	return false
}

// LoadTones returns the built-in tone preambles, overridden by the YAML file at path when set:
//
//	normal: "You are ..."
//	casual: "..."
func LoadTones(path string) (generator.Tones, error) {
	tones := generator.DefaultTones()
	if path == "" {
		return tones, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var overrides map[string]string
	if err := yaml.Unmarshal(b, &overrides); err != nil {
		return nil, fmt.Errorf("parse tones file %s: %w", path, err)
	}
	for name, preamble := range overrides {
		tone := generator.Tone(strings.ToLower(strings.TrimSpace(name)))
		if !knownTone(tone) {
			return nil, fmt.Errorf("tones file %s: unknown tone %q", path, name)
		}
		if strings.TrimSpace(preamble) != "" {
			tones[tone] = strings.TrimSpace(preamble)
		}
	}
	return tones, nil
}

func knownTone(t generator.Tone) bool {
	for _, known := range generator.AllTones {
		if t == known {
			return true
		}
	}
	return false
}
