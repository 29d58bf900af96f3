package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultTimezone  = "UTC"
	configPathEnv    = "DAILY_PODCAST_CONFIG"
	environmentEnv   = "WORKER_ENV"
	productionEnv    = "production"
	defaultSlug      = "hacker-news"
	defaultCacheTTL  = 24 * time.Hour
	defaultLockTTL   = time.Hour
	devBreakTime     = 2 * time.Second
	prodBreakTime    = 5 * time.Second
	defaultMaxTokens = 4096
	defaultLimit     = 16384
)

// Config holds high-level settings required across the application.
type Config struct {
	Environment   string             `yaml:"environment"`
	Slug          string             `yaml:"slug"`
	PodcastTitle  string             `yaml:"podcastTitle"`
	Logging       LoggingConfig      `yaml:"logging"`
	Scheduler     SchedulerConfig    `yaml:"scheduler"`
	HTTP          HTTPConfig         `yaml:"http"`
	Workflow      WorkflowConfig     `yaml:"workflow"`
	Storage       StorageConfig      `yaml:"storage"`
	LLM           LLMConfig          `yaml:"llm"`
	TTS           TTSConfig          `yaml:"tts"`
	Fetchers      FetcherConfig      `yaml:"fetchers"`
	Notifications NotificationConfig `yaml:"notifications"`
	Sources       []SourceConfig     `yaml:"sources"`
	// Limits overrides the per-source story caps of the environment.
	Limits map[string]int `yaml:"limits"`
	// SpeakerLabels renames hosts in the flattened transcript, keyed by "A" or "B".
	SpeakerLabels map[string]string `yaml:"speakerLabels"`
}

// LoggingConfig selects slog level and handler.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// SchedulerConfig defines when the pipeline should run.
type SchedulerConfig struct {
	Enabled        bool           `yaml:"enabled"`
	CronExpression string         `yaml:"cronExpression"`
	Timezone       string         `yaml:"timezone"`
	location       *time.Location `yaml:"-"`
}

// Location resolves the scheduler timezone string to a time.Location.
func (s SchedulerConfig) Location() *time.Location {
	if s.location != nil {
		return s.location
	}
	loc, _ := time.LoadLocation(defaultTimezone)
	return loc
}

// HTTPConfig configures the on-demand trigger server.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// WorkflowConfig holds stage retry policy and pacing.
type WorkflowConfig struct {
	Retries        int           `yaml:"retries"`
	Delay          time.Duration `yaml:"delay"`
	MaxDelay       time.Duration `yaml:"maxDelay"`
	Timeout        time.Duration `yaml:"timeout"`
	LongTimeout    time.Duration `yaml:"longTimeout"`
	BreakTime      time.Duration `yaml:"breakTime"`
	LockTTL        time.Duration `yaml:"lockTtl"`
	CacheTTL       time.Duration `yaml:"cacheTtl"`
	AudioBatchSize int           `yaml:"audioBatchSize"`
	CleanupTimeout time.Duration `yaml:"cleanupTimeout"`
}

// StorageConfig picks a backend per store kind.
type StorageConfig struct {
	// KV is "redis" or "memory".
	KV string `yaml:"kv"`
	// Blob is "gcs", "local" or "memory".
	Blob string `yaml:"blob"`
	// Lock is "redis", "file" or "memory".
	Lock          string           `yaml:"lock"`
	RedisURL      string           `yaml:"redisUrl"`
	LocalDir      string           `yaml:"localDir"`
	LockDir       string           `yaml:"lockDir"`
	PublicBaseURL string           `yaml:"publicBaseUrl"`
	GCS           GCSConfig        `yaml:"gcs"`
	Checkpoints   CheckpointConfig `yaml:"checkpoints"`
}

// GCSConfig names the bucket holding audio.
type GCSConfig struct {
	Bucket   string `yaml:"bucket"`
	Endpoint string `yaml:"endpoint"`
}

// CheckpointConfig describes the stage checkpoint database.
type CheckpointConfig struct {
	// Driver is "sqlite", "postgres" or "memory".
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// LLMConfig defines how to contact the text generation API.
type LLMConfig struct {
	// Provider is "openai" or "anthropic".
	Provider            string `yaml:"provider"`
	BaseURL             string `yaml:"baseUrl"`
	APIKey              string `yaml:"apiKey"`
	Model               string `yaml:"model"`
	ThinkingModel       string `yaml:"thinkingModel"`
	MaxTokens           int    `yaml:"maxTokens"`
	MaxCompletionTokens int    `yaml:"maxCompletionTokens"`
	AnthropicAPIKey     string `yaml:"anthropicApiKey"`
	AnthropicBaseURL    string `yaml:"anthropicBaseUrl"`
	AnthropicModel      string `yaml:"anthropicModel"`
}

// TTSConfig selects a speech provider and its voices.
type TTSConfig struct {
	// Provider is "openai" or "minimax".
	Provider           string `yaml:"provider"`
	APIURL             string `yaml:"apiUrl"`
	APIID              string `yaml:"apiId"`
	APIKey             string `yaml:"apiKey"`
	Model              string `yaml:"model"`
	ManVoiceID         string `yaml:"manVoiceId"`
	WomanVoiceID       string `yaml:"womanVoiceId"`
	Speed              string `yaml:"speed"`
	OpenAIAPIKey       string `yaml:"openaiApiKey"`
	OpenAIBaseURL      string `yaml:"openaiBaseUrl"`
	OpenAIModel        string `yaml:"openaiModel"`
	OpenAIInstructions string `yaml:"openaiInstructions"`
}

// FetcherConfig holds keys for the content fetchers.
type FetcherConfig struct {
	JinaKey      string `yaml:"jinaKey"`
	JinaURL      string `yaml:"jinaUrl"`
	FirecrawlKey string `yaml:"firecrawlKey"`
	FirecrawlURL string `yaml:"firecrawlUrl"`
}

// NotificationConfig encapsulates outbound channels (Telegram, etc.).
type NotificationConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
}

// SourceConfig describes one story source with its scanner strategy. The
// order of sources is the aggregation priority order.
type SourceConfig struct {
	Name    string            `yaml:"name"`
	Scanner string            `yaml:"scanner"`
	Options map[string]string `yaml:"options"`
}

// IsProduction reports whether the worker runs with production limits.
func (c Config) IsProduction() bool {
	return c.Environment == productionEnv
}

// StoryLimits returns per-source story caps.
func (c Config) StoryLimits() map[string]int {
	limits := map[string]int{
		"hacker-news":     3,
		"github-trending": 2,
		"product-hunt":    2,
		"dev-to":          2,
	}
	if c.IsProduction() {
		limits = map[string]int{
			"hacker-news":     8,
			"github-trending": 5,
			"product-hunt":    5,
			"dev-to":          5,
		}
	}
	for name, limit := range c.Limits {
		limits[name] = limit
	}
	return limits
}

// BreakTime is the pacing pause between text stages.
func (c Config) BreakTime() time.Duration {
	if c.Workflow.BreakTime > 0 {
		return c.Workflow.BreakTime
	}
	if c.IsProduction() {
		return prodBreakTime
	}
	return devBreakTime
}

// Load reads YAML configuration (if present) and applies environment overrides.
func Load() Config {
	return LoadPath(os.Getenv(configPathEnv))
}

// LoadPath is Load with an explicit YAML path; an empty path means defaults.
func LoadPath(path string) Config {
	return load(path, os.Getenv)
}

func load(path string, getenv func(string) string) Config {
	cfg := defaultConfig()

	if path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			fileCfg := defaultConfig()
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = fileCfg
			}
		}
	}

	cfg.applyEnvOverrides(getenv)
	cfg.bindTimezone()

	if len(cfg.Sources) == 0 {
		cfg.Sources = defaultConfig().Sources
	}

	return cfg
}

func (c *Config) applyEnvOverrides(getenv func(string) string) {
	str := func(target *string, names ...string) {
		for _, name := range names {
			if v := strings.TrimSpace(getenv(name)); v != "" {
				*target = v
				return
			}
		}
	}
	num := func(target *int, name string) {
		if v := strings.TrimSpace(getenv(name)); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*target = n
			} else {
				log.Printf("config: ignoring %s=%q: %v", name, v, err)
			}
		}
	}

	str(&c.Environment, environmentEnv)
	str(&c.Logging.Level, "LOG_LEVEL")
	str(&c.Logging.Format, "LOG_FORMAT")
	str(&c.HTTP.Addr, "HTTP_ADDR")

	str(&c.LLM.Provider, "LLM_PROVIDER")
	str(&c.LLM.BaseURL, "OPENAI_BASE_URL")
	str(&c.LLM.APIKey, "OPENAI_API_KEY")
	str(&c.LLM.Model, "OPENAI_MODEL")
	str(&c.LLM.ThinkingModel, "OPENAI_THINKING_MODEL")
	num(&c.LLM.MaxTokens, "OPENAI_MAX_TOKENS")
	num(&c.LLM.MaxCompletionTokens, "OPENAI_MAX_COMPLETION_TOKENS")
	str(&c.LLM.AnthropicAPIKey, "ANTHROPIC_API_KEY")
	str(&c.LLM.AnthropicModel, "ANTHROPIC_MODEL")

	str(&c.Fetchers.JinaKey, "JINA_KEY")
	str(&c.Fetchers.FirecrawlKey, "FIRECRAWL_KEY")

	str(&c.TTS.Provider, "TTS_PROVIDER")
	str(&c.TTS.APIURL, "TTS_API_URL")
	str(&c.TTS.APIID, "TTS_API_ID")
	str(&c.TTS.APIKey, "TTS_API_KEY")
	str(&c.TTS.Model, "TTS_MODEL")
	str(&c.TTS.ManVoiceID, "MAN_VOICE_ID")
	str(&c.TTS.WomanVoiceID, "WOMAN_VOICE_ID")
	str(&c.TTS.Speed, "AUDIO_SPEED")
	str(&c.TTS.OpenAIAPIKey, "OPENAI_TTS_API_KEY", "OPENAI_API_KEY")
	str(&c.TTS.OpenAIBaseURL, "OPENAI_TTS_BASE_URL", "OPENAI_BASE_URL")
	str(&c.TTS.OpenAIModel, "OPENAI_TTS_MODEL")
	str(&c.TTS.OpenAIInstructions, "OPENAI_TTS_INSTRUCTIONS")

	str(&c.Storage.RedisURL, "REDIS_URL")
	str(&c.Storage.GCS.Bucket, "GCS_BUCKET")
	str(&c.Storage.PublicBaseURL, "PUBLIC_BASE_URL")
	str(&c.Storage.Checkpoints.DSN, "DATABASE_DSN")
	str(&c.Storage.Checkpoints.Driver, "CHECKPOINT_DRIVER")

	str(&c.Notifications.Telegram.BotToken, "TELEGRAM_BOT_TOKEN")
	str(&c.Notifications.Telegram.ChatID, "TELEGRAM_CHAT_ID")
}

func (c *Config) bindTimezone() {
	tz := c.Scheduler.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Printf("config: unknown timezone %s, reverting to %s", tz, defaultTimezone)
		loc, _ = time.LoadLocation(defaultTimezone)
	}
	c.Scheduler.location = loc
}

func defaultConfig() Config {
	tz, _ := time.LoadLocation(defaultTimezone)
	return Config{
		Environment:  "development",
		Slug:         defaultSlug,
		PodcastTitle: "Hacker Podcast",
		Logging:      LoggingConfig{Level: "info", Format: "text"},
		Scheduler:    SchedulerConfig{Enabled: true, CronExpression: "0 6 * * *", Timezone: defaultTimezone, location: tz},
		HTTP:         HTTPConfig{Addr: ":8080"},
		Workflow: WorkflowConfig{
			Retries:        5,
			Delay:          10 * time.Second,
			MaxDelay:       5 * time.Minute,
			Timeout:        3 * time.Minute,
			LongTimeout:    12 * time.Minute,
			LockTTL:        defaultLockTTL,
			CacheTTL:       defaultCacheTTL,
			AudioBatchSize: 4,
			CleanupTimeout: time.Second,
		},
		Storage: StorageConfig{
			KV:          "memory",
			Blob:        "local",
			Lock:        "file",
			LocalDir:    "data/objects",
			LockDir:     "data/locks",
			Checkpoints: CheckpointConfig{Driver: "sqlite", DSN: "data/checkpoints.db"},
		},
		LLM: LLMConfig{
			Provider:            "openai",
			Model:               "gpt-4.1-mini",
			MaxTokens:           defaultMaxTokens,
			MaxCompletionTokens: defaultLimit,
		},
		TTS: TTSConfig{Provider: "openai"},
		Sources: []SourceConfig{
			{Name: "hacker-news", Scanner: "hacker-news"},
			{Name: "github-trending", Scanner: "github-trending"},
			{Name: "product-hunt", Scanner: "product-hunt"},
			{Name: "dev-to", Scanner: "dev-to"},
		},
	}
}
