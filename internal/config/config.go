package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/samber/lo"
	"gopkg.in/yaml.v3"

	"BlogDigest/internal/domain"
)

const (
	configPathEnv       = "BLOGDIGEST_CONFIG"
	logLevelEnv         = "LOG_LEVEL"
	databaseDSNEnv      = "DATABASE_DSN"
	chatGPTAPIKeyEnv    = "CHATGPT_API_KEY"
	chatGPTModelEnv     = "CHATGPT_MODEL"
	summarizerKeyEnv    = "SUMMARIZER_API_KEY"
	sendgridAPIKeyEnv   = "SENDGRID_API_KEY"
	fromEmailEnv        = "FROM_EMAIL"
	subjectEnv          = "SUBJECT"
	sendgridEUEnv       = "SENDGRID_EU_RESIDENCY"
	pushgatewayURLEnv   = "PUSHGATEWAY_URL"
	telegramTokenEnv    = "TELEGRAM_BOT_TOKEN"
	telegramChatIDEnv   = "TELEGRAM_CHAT_ID"
	defaultArtifactPath = "blog_summaries.md"
)

// Window modes.
const (
	WindowLookback     = "lookback"
	WindowSinceLastRun = "since_last_run"
)

// Summarizer providers.
const (
	ProviderChatGPT = "chatgpt"
	ProviderService = "service"
	ProviderExcerpt = "excerpt"
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging       LoggingConfig      `yaml:"logging"`
	Database      DatabaseConfig     `yaml:"database"`
	Discovery     DiscoveryConfig    `yaml:"discovery"`
	Fetch         FetchConfig        `yaml:"fetch"`
	Collect       CollectConfig      `yaml:"collect"`
	Window        WindowConfig       `yaml:"window"`
	Fallback      FallbackConfig     `yaml:"fallback"`
	Analysis      AnalysisConfig     `yaml:"analysis"`
	Summarizer    SummarizerConfig   `yaml:"summarizer"`
	ChatGPT       ChatGPTConfig      `yaml:"chatgpt"`
	ML            MLConfig           `yaml:"ml"`
	Delivery      DeliveryConfig     `yaml:"delivery"`
	Artifact      ArtifactConfig     `yaml:"artifact"`
	Metrics       MetricsConfig      `yaml:"metrics"`
	Notifications NotificationConfig `yaml:"notifications"`

	Sources        []domain.Source    `yaml:"sources" validate:"min=1,dive"`
	Recipients     []domain.Recipient `yaml:"recipients" validate:"dive"`
	SourcesFile    string             `yaml:"sourcesFile"`
	RecipientsFile string             `yaml:"recipientsFile"`
}

// LoggingConfig sets the slog level: debug, info, warn or error.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DatabaseConfig describes Postgres connection details. An empty DSN keeps state in memory.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// DiscoveryConfig tunes feed discovery probes.
type DiscoveryConfig struct {
	ProbeTimeout  time.Duration `yaml:"probeTimeout" validate:"gt=0"`
	RespectRobots bool          `yaml:"respectRobots"`
	HostInterval  time.Duration `yaml:"hostInterval" validate:"gte=0"`
	UserAgent     string        `yaml:"userAgent"`
	Paths         []string      `yaml:"paths"`
}

// FetchConfig bounds feed downloads.
type FetchConfig struct {
	Timeout           time.Duration `yaml:"timeout" validate:"gt=0"`
	MaxPostsPerSource int           `yaml:"maxPostsPerSource" validate:"gt=0"`
	MaxBodyBytes      int64         `yaml:"maxBodyBytes" validate:"gt=0"`
}

// CollectConfig bounds the collection stage.
type CollectConfig struct {
	Concurrency int           `yaml:"concurrency" validate:"gt=0"`
	Timeout     time.Duration `yaml:"timeout" validate:"gte=0"`
}

// WindowConfig selects how the novelty window is computed.
type WindowConfig struct {
	Mode     string        `yaml:"mode" validate:"oneof=lookback since_last_run"`
	Lookback time.Duration `yaml:"lookback" validate:"gt=0"`
}

// FallbackConfig bounds the fallback selection.
type FallbackConfig struct {
	Count  int           `yaml:"count" validate:"gt=0"`
	MaxAge time.Duration `yaml:"maxAge" validate:"gte=0"`
}

// AnalysisConfig narrows the digest to posts mentioning one of the topics.
// An empty list keeps every post.
type AnalysisConfig struct {
	Topics []string `yaml:"topics"`
}

// SummarizerConfig picks the summarization backend.
type SummarizerConfig struct {
	Provider      string `yaml:"provider" validate:"oneof=chatgpt service excerpt"`
	ExcerptLength int    `yaml:"excerptLength" validate:"gte=0"`
}

// ChatGPTConfig defines how to contact the ChatGPT API.
type ChatGPTConfig struct {
	Endpoint     string        `yaml:"endpoint"`
	Model        string        `yaml:"model"`
	APIKey       string        `yaml:"apiKey"`
	SystemPrompt string        `yaml:"systemPrompt"`
	Timeout      time.Duration `yaml:"timeout"`
}

// MLConfig describes the summarization service integration.
type MLConfig struct {
	InferenceURL string        `yaml:"inferenceUrl"`
	APIKey       string        `yaml:"apiKey"`
	Timeout      time.Duration `yaml:"timeout"`
}

// DeliveryConfig configures SendGrid email delivery.
type DeliveryConfig struct {
	APIKey      string `yaml:"apiKey"`
	FromEmail   string `yaml:"fromEmail" validate:"omitempty,email"`
	FromName    string `yaml:"fromName"`
	Subject     string `yaml:"subject"`
	EUResidency bool   `yaml:"euResidency"`
	MaxRetries  int    `yaml:"maxRetries" validate:"gte=0"`
}

// ArtifactConfig controls where the rendered digest is written.
type ArtifactConfig struct {
	Path       string `yaml:"path" validate:"required"`
	ReadmePath string `yaml:"readmePath"`
	Title      string `yaml:"title"`
}

// MetricsConfig points at an optional Prometheus Pushgateway.
type MetricsConfig struct {
	PushURL string `yaml:"pushUrl" validate:"omitempty,url"`
	Job     string `yaml:"job"`
}

// NotificationConfig encapsulates operator alert channels.
type NotificationConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	APIBase  string `yaml:"apiBase"`
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
}

// Enabled reports whether alerts can be sent.
func (t TelegramConfig) Enabled() bool {
	return t.BotToken != "" && t.ChatID != ""
}

// Load reads .env, the YAML file at path (or BLOGDIGEST_CONFIG), applies
// environment overrides and validates the result.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("config: load .env: %w", err)
	}

	cfg := defaultConfig()

	if path == "" {
		path = os.Getenv(configPathEnv)
	}
	baseDir := ""
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
		baseDir = filepath.Dir(path)
	}

	cfg.applyEnvOverrides()

	if err := cfg.loadLists(baseDir); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks field constraints and rejects duplicate source URLs.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	dups := lo.FindDuplicatesBy(c.Sources, func(s domain.Source) string {
		return normalizeURL(s.URL)
	})
	if len(dups) > 0 {
		urls := lo.Map(dups, func(s domain.Source, _ int) string { return s.URL })
		return fmt.Errorf("config: duplicate source urls: %s", strings.Join(urls, ", "))
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}

	if v := os.Getenv(databaseDSNEnv); v != "" {
		c.Database.DSN = v
	}

	if v := os.Getenv(chatGPTAPIKeyEnv); v != "" {
		c.ChatGPT.APIKey = v
	}

	if v := os.Getenv(chatGPTModelEnv); v != "" {
		c.ChatGPT.Model = v
	}

	if v := os.Getenv(summarizerKeyEnv); v != "" {
		c.ML.APIKey = v
	}

	if v := os.Getenv(sendgridAPIKeyEnv); v != "" {
		c.Delivery.APIKey = v
	}

	if v := os.Getenv(fromEmailEnv); v != "" {
		c.Delivery.FromEmail = v
	}

	if v := os.Getenv(subjectEnv); v != "" {
		c.Delivery.Subject = v
	}

	if v := os.Getenv(sendgridEUEnv); v != "" {
		c.Delivery.EUResidency = truthy(v)
	}

	if v := os.Getenv(pushgatewayURLEnv); v != "" {
		c.Metrics.PushURL = v
	}

	if v := os.Getenv(telegramTokenEnv); v != "" {
		c.Notifications.Telegram.BotToken = v
	}

	if v := os.Getenv(telegramChatIDEnv); v != "" {
		c.Notifications.Telegram.ChatID = v
	}
}

// loadLists appends sources and recipients from the optional JSON files.
func (c *Config) loadLists(baseDir string) error {
	if c.SourcesFile != "" {
		var sources []domain.Source
		if err := readJSON(resolvePath(baseDir, c.SourcesFile), &sources); err != nil {
			return fmt.Errorf("config: sources file: %w", err)
		}
		c.Sources = append(c.Sources, sources...)
	}

	if c.RecipientsFile != "" {
		var recipients []domain.Recipient
		if err := readJSON(resolvePath(baseDir, c.RecipientsFile), &recipients); err != nil {
			return fmt.Errorf("config: recipients file: %w", err)
		}
		c.Recipients = append(c.Recipients, recipients...)
	}
	return nil
}

func readJSON(path string, v any) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func resolvePath(baseDir, path string) string {
	if baseDir == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}

func normalizeURL(raw string) string {
	return strings.TrimRight(strings.ToLower(strings.TrimSpace(raw)), "/")
}

func truthy(v string) bool {
	if b, err := strconv.ParseBool(v); err == nil {
		return b
	}
	return strings.EqualFold(v, "yes")
}

// Defaults returns the configuration used when no file or environment sets a value.
func Defaults() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Logging: LoggingConfig{Level: "info"},
		Discovery: DiscoveryConfig{
			ProbeTimeout:  8 * time.Second,
			RespectRobots: true,
			HostInterval:  250 * time.Millisecond,
			UserAgent:     "BlogDigest/1.0 (+https://github.com/blogdigest)",
		},
		Fetch: FetchConfig{
			Timeout:           15 * time.Second,
			MaxPostsPerSource: 20,
			MaxBodyBytes:      5 << 20,
		},
		Collect: CollectConfig{
			Concurrency: 4,
			Timeout:     2 * time.Minute,
		},
		Window: WindowConfig{
			Mode:     WindowLookback,
			Lookback: 48 * time.Hour,
		},
		Fallback: FallbackConfig{Count: 5},
		Summarizer: SummarizerConfig{
			Provider:      ProviderChatGPT,
			ExcerptLength: 300,
		},
		ChatGPT: ChatGPTConfig{
			Endpoint: "https://api.openai.com/v1/chat/completions",
			Model:    "gpt-4o-mini",
			Timeout:  60 * time.Second,
		},
		ML: MLConfig{Timeout: 15 * time.Second},
		Delivery: DeliveryConfig{
			FromName:   "Blog Digest",
			MaxRetries: 3,
		},
		Artifact: ArtifactConfig{Path: defaultArtifactPath},
		Metrics:  MetricsConfig{Job: "blogdigest"},
	}
}
