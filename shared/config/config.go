package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"postgame-agent/shared/retry"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Supported language-model providers
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

type Config struct {
	AI         AIConfig         `yaml:"ai"`
	X          XConfig          `yaml:"x"`
	Pipeline   PipelineConfig   `yaml:"pipeline"`
	Retry      RetryConfig      `yaml:"retry"`
	Output     OutputConfig     `yaml:"output"`
	Email      EmailConfig      `yaml:"email"`
	Redis      RedisConfig      `yaml:"redis"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Schedule   string           `yaml:"schedule"`
	LogLevel   string           `yaml:"log_level" env:"LOG_LEVEL"`
	LogFormat  string           `yaml:"log_format"`
}

type AIConfig struct {
	Provider     string `yaml:"provider"`
	Model        string `yaml:"model"`
	GeminiAPIKey string `yaml:"gemini_api_key" env:"GEMINI_API_KEY"`
	OpenAIAPIKey string `yaml:"openai_api_key" env:"OPENAI_API_KEY"`
	APIURL       string `yaml:"api_url"` // OpenAI-compatible base URL
}

type XConfig struct {
	BearerToken        string   `yaml:"bearer_token" env:"X_BEARER_TOKEN"`
	ClientID           string   `yaml:"client_id" env:"X_CLIENT_ID"`
	ClientSecret       string   `yaml:"client_secret" env:"X_CLIENT_SECRET"`
	APIURL             string   `yaml:"api_url"`
	TokenURL           string   `yaml:"token_url"`
	WindowHours        int      `yaml:"window_hours"`
	MaxResultsPerQuery int      `yaml:"max_results_per_query"`
	ExtraTerms         []string `yaml:"extra_terms"`
}

type PipelineConfig struct {
	MinEngagement          float64 `yaml:"min_engagement"`
	MinCredibility         float64 `yaml:"min_credibility"`
	EngagementFallbackCap  int     `yaml:"engagement_fallback_cap"`
	CredibilityFallbackCap int     `yaml:"credibility_fallback_cap"`
	SentimentBatchSize     int     `yaml:"sentiment_batch_size"`
	NumNarratives          int     `yaml:"num_narratives"`
	TargetMinutes          int     `yaml:"target_minutes"`
	MaxQualityRetries      int     `yaml:"max_quality_retries"`
	SamplePosts            int     `yaml:"sample_posts"`
}

type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay"`
	MaxDelay    time.Duration `yaml:"max_delay"`
}

// Policy converts the configured values into a retry policy
func (r RetryConfig) Policy() retry.Policy {
	return retry.Policy{
		MaxAttempts: r.MaxAttempts,
		BaseDelay:   r.BaseDelay,
		MaxDelay:    r.MaxDelay,
	}
}

type OutputConfig struct {
	Dir string `yaml:"dir"`
}

type EmailConfig struct {
	Enabled    bool   `yaml:"enabled"`
	SMTPServer string `yaml:"smtp_server"`
	SMTPPort   int    `yaml:"smtp_port"`
	Username   string `yaml:"username" env:"EMAIL_USERNAME"`
	Password   string `yaml:"password" env:"EMAIL_PASSWORD"`
	FromEmail  string `yaml:"from_email"`
	ToEmail    string `yaml:"to_email"`
}

type RedisConfig struct {
	Addr     string        `yaml:"addr" env:"REDIS_ADDR"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

// Enabled reports whether a search cache should be used
func (r RedisConfig) Enabled() bool {
	return r.Addr != ""
}

type MonitoringConfig struct {
	HealthPort int `yaml:"health_port"`
}

// Load reads .env, then the YAML file at path (or CONFIG_FILE, or config.yaml),
// then applies environment overrides and defaults. A missing file is not an
// error. Validation is left to the caller since it depends on the run mode.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	if path == "" {
		path = "config.yaml"
	}

	var cfg Config
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
		// defaults and environment only
	default:
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyEnv() {
	setFromEnv(&c.AI.GeminiAPIKey, "GEMINI_API_KEY")
	setFromEnv(&c.AI.OpenAIAPIKey, "OPENAI_API_KEY")
	setFromEnv(&c.X.BearerToken, "X_BEARER_TOKEN")
	setFromEnv(&c.X.ClientID, "X_CLIENT_ID")
	setFromEnv(&c.X.ClientSecret, "X_CLIENT_SECRET")
	setFromEnv(&c.Email.Username, "EMAIL_USERNAME")
	setFromEnv(&c.Email.Password, "EMAIL_PASSWORD")
	setFromEnv(&c.Redis.Addr, "REDIS_ADDR")
	setFromEnv(&c.LogLevel, "LOG_LEVEL")
}

func setFromEnv(field *string, key string) {
	if *field == "" {
		*field = os.Getenv(key)
	}
}

func (c *Config) applyDefaults() {
	if c.AI.Provider == "" {
		c.AI.Provider = ProviderGemini
	}
	if c.AI.Model == "" {
		if c.AI.Provider == ProviderOpenAI {
			c.AI.Model = "gpt-4o"
		} else {
			c.AI.Model = "gemini-2.5-flash"
		}
	}
	if c.AI.APIURL == "" {
		c.AI.APIURL = "https://api.openai.com/v1"
	}

	if c.X.APIURL == "" {
		c.X.APIURL = "https://api.twitter.com/2"
	}
	if c.X.TokenURL == "" {
		c.X.TokenURL = "https://api.twitter.com/oauth2/token"
	}
	if c.X.WindowHours == 0 {
		c.X.WindowHours = 12
	}
	if c.X.MaxResultsPerQuery == 0 {
		c.X.MaxResultsPerQuery = 200
	}

	p := &c.Pipeline
	if p.MinEngagement == 0 {
		p.MinEngagement = 15
	}
	if p.MinCredibility == 0 {
		p.MinCredibility = 25
	}
	if p.EngagementFallbackCap == 0 {
		p.EngagementFallbackCap = 50
	}
	if p.CredibilityFallbackCap == 0 {
		p.CredibilityFallbackCap = 30
	}
	if p.SentimentBatchSize == 0 {
		p.SentimentBatchSize = 30
	}
	if p.NumNarratives == 0 {
		p.NumNarratives = 5
	}
	if p.TargetMinutes == 0 {
		p.TargetMinutes = 10
	}
	if p.MaxQualityRetries == 0 {
		p.MaxQualityRetries = 2
	}
	if p.SamplePosts == 0 {
		p.SamplePosts = 15
	}

	defaults := retry.DefaultPolicy()
	if c.Retry.MaxAttempts == 0 {
		c.Retry.MaxAttempts = defaults.MaxAttempts
	}
	if c.Retry.BaseDelay == 0 {
		c.Retry.BaseDelay = defaults.BaseDelay
	}
	if c.Retry.MaxDelay == 0 {
		c.Retry.MaxDelay = defaults.MaxDelay
	}

	if c.Output.Dir == "" {
		c.Output.Dir = "output"
	}
	if c.Email.SMTPPort == 0 {
		c.Email.SMTPPort = 587
	}
	if c.Redis.TTL == 0 {
		c.Redis.TTL = 30 * time.Minute
	}
	if c.Monitoring.HealthPort == 0 {
		c.Monitoring.HealthPort = 8080
	}
	if c.Schedule == "" {
		c.Schedule = "0 0 23 * * 0,1,4" // after Sunday, Monday and Thursday games
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = "text"
	}
}

// Validate checks the credentials required for the run mode. Sample runs
// don't need record-source credentials.
func (c *Config) Validate(dryRun bool) error {
	switch c.AI.Provider {
	case ProviderGemini:
		if c.AI.GeminiAPIKey == "" {
			return fmt.Errorf("Gemini API key is required (set GEMINI_API_KEY or ai.gemini_api_key)")
		}
	case ProviderOpenAI:
		if c.AI.OpenAIAPIKey == "" {
			return fmt.Errorf("OpenAI API key is required (set OPENAI_API_KEY or ai.openai_api_key)")
		}
	default:
		return fmt.Errorf("unknown AI provider %q (expected %s or %s)", c.AI.Provider, ProviderGemini, ProviderOpenAI)
	}

	if !dryRun && c.X.BearerToken == "" && (c.X.ClientID == "" || c.X.ClientSecret == "") {
		return fmt.Errorf("X credentials are required (set X_BEARER_TOKEN, or X_CLIENT_ID and X_CLIENT_SECRET)")
	}

	if c.Email.Enabled {
		if c.Email.Username == "" {
			return fmt.Errorf("Email username is required (set EMAIL_USERNAME or email.username)")
		}
		if c.Email.Password == "" {
			return fmt.Errorf("Email password is required (set EMAIL_PASSWORD or email.password)")
		}
		if c.Email.SMTPServer == "" || c.Email.ToEmail == "" {
			return fmt.Errorf("email.smtp_server and email.to_email are required when email is enabled")
		}
	}

	if c.Pipeline.MaxQualityRetries < 0 {
		return fmt.Errorf("pipeline.max_quality_retries must not be negative")
	}
	return nil
}
