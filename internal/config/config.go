package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	LLM       LLMConfig       `yaml:"llm"`
	TTS       TTSConfig       `yaml:"tts"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Storage   StorageConfig   `yaml:"storage"`
	Worker    WorkerConfig    `yaml:"worker"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

type ServerConfig struct {
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	RateLimitRPS   float64  `yaml:"rate_limit_rps"`
	RateLimitBurst int      `yaml:"rate_limit_burst"`
}

type DatabaseConfig struct {
	URL            string `yaml:"url"`
	MaxConns       int    `yaml:"max_conns"`
	MinConns       int    `yaml:"min_conns"`
	MigrationsPath string `yaml:"migrations_path"` // empty: use the embedded migrations
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type LLMConfig struct {
	OpenAIKey        string  `yaml:"openai_key"`
	OpenRouterKey    string  `yaml:"openrouter_key"`
	OpenRouterURL    string  `yaml:"openrouter_url"`
	AnthropicKey     string  `yaml:"anthropic_key"`
	OllamaURL        string  `yaml:"ollama_url"`
	EnableMock       bool    `yaml:"enable_mock"`
	DefaultProvider  string  `yaml:"default_provider"`
	DefaultModel     string  `yaml:"default_model"`
	FallbackProvider string  `yaml:"fallback_provider"`
	FallbackModel    string  `yaml:"fallback_model"`
	MaxRetries       int     `yaml:"max_retries"`
	MaxTokens        int     `yaml:"max_tokens"`
	Temperature      float64 `yaml:"temperature"`
}

type TTSConfig struct {
	Backend           string  `yaml:"backend"` // "openai", "elevenlabs", "local" or "mock"
	OpenAIKey         string  `yaml:"openai_key"`
	OpenAIBaseURL     string  `yaml:"openai_base_url"`
	OpenAIModel       string  `yaml:"openai_model"`
	ElevenLabsKey     string  `yaml:"elevenlabs_key"`
	ElevenLabsBaseURL string  `yaml:"elevenlabs_base_url"`
	ElevenLabsModel   string  `yaml:"elevenlabs_model"`
	LocalBinPath      string  `yaml:"local_bin_path"` // default: "piper"
	LocalModel        string  `yaml:"local_model"`    // required when backend=local
	Speed             float64 `yaml:"speed"`
}

// PipelineConfig holds the generation options that are fixed for the
// lifetime of the process.
type PipelineConfig struct {
	MaxChapterChars  int           `yaml:"max_chapter_chars"`
	ConcurrencyLimit int           `yaml:"concurrency_limit"`
	Retry            RetryConfig   `yaml:"retry"`
	DefaultVoice     string        `yaml:"default_voice"`
	DefaultLanguage  string        `yaml:"default_language"`
	ScriptTimeout    time.Duration `yaml:"script_timeout"`
	SpeechTimeout    time.Duration `yaml:"speech_timeout"`
	WordsPerMinute   int           `yaml:"words_per_minute"`
	TargetWords      int           `yaml:"target_words"`
	MaxTopicChars    int           `yaml:"max_topic_chars"`
	PromptTemplate   string        `yaml:"prompt_template"`
	ScreenTopicsLLM  bool          `yaml:"screen_topics_llm"`
}

type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay"`
	MaxDelay    time.Duration `yaml:"max_delay"`
	Jitter      float64       `yaml:"jitter"`
}

type StorageConfig struct {
	AudioBackend  string        `yaml:"audio_backend"` // "memory" or "redis"
	AudioTTL      time.Duration `yaml:"audio_ttl"`
	JobTTL        time.Duration `yaml:"job_ttl"`
	PublicBaseURL string        `yaml:"public_base_url"`
}

// WorkerConfig sizes the async job worker. Each job already fans out to
// ConcurrencyLimit speech calls.
type WorkerConfig struct {
	Concurrency int `yaml:"concurrency"`
}

type TelemetryConfig struct {
	ServiceName    string `yaml:"service_name"`
	LogLevel       string `yaml:"log_level"`
	MetricsEnabled bool   `yaml:"metrics_enabled"`
}

// Default returns the configuration used when neither a file nor the
// environment says otherwise.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host:           "0.0.0.0",
			Port:           8080,
			AllowedOrigins: []string{"*"},
			RateLimitRPS:   2,
			RateLimitBurst: 10,
		},
		Database: DatabaseConfig{
			MaxConns: 10,
			MinConns: 1,
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		LLM: LLMConfig{
			OpenRouterURL:   "https://openrouter.ai/api/v1",
			OllamaURL:       "http://localhost:11434",
			DefaultProvider: "openai",
			DefaultModel:    "gpt-4o-mini",
			MaxRetries:      2,
			MaxTokens:       4096,
			Temperature:     0.7,
		},
		TTS: TTSConfig{
			Backend:      "openai",
			LocalBinPath: "piper",
		},
		Pipeline: PipelineConfig{
			MaxChapterChars:  3500,
			ConcurrencyLimit: 4,
			Retry: RetryConfig{
				MaxAttempts: 4,
				BaseDelay:   500 * time.Millisecond,
				MaxDelay:    8 * time.Second,
				Jitter:      0.5,
			},
			DefaultVoice:    "nova",
			DefaultLanguage: "en",
			ScriptTimeout:   90 * time.Second,
			SpeechTimeout:   60 * time.Second,
			WordsPerMinute:  150,
			TargetWords:     1200,
			MaxTopicChars:   500,
		},
		Storage: StorageConfig{
			AudioBackend: "memory",
			AudioTTL:     time.Hour,
			JobTTL:       24 * time.Hour,
		},
		Worker: WorkerConfig{
			Concurrency: 2,
		},
		Telemetry: TelemetryConfig{
			ServiceName:    "audiobookai",
			LogLevel:       "info",
			MetricsEnabled: true,
		},
	}
}

// Load builds the configuration from defaults, the optional YAML file named
// by CONFIG_FILE, and environment overrides, in that order.
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func applyEnv(cfg *Config) error {
	var err error

	cfg.Server.Host = getEnv("SERVER_HOST", cfg.Server.Host)
	if cfg.Server.Port, err = getEnvInt("SERVER_PORT", cfg.Server.Port); err != nil {
		return fmt.Errorf("invalid SERVER_PORT: %w", err)
	}
	cfg.Server.AllowedOrigins = getEnvList("CORS_ALLOWED_ORIGINS", cfg.Server.AllowedOrigins)
	if cfg.Server.RateLimitRPS, err = getEnvFloat("RATE_LIMIT_RPS", cfg.Server.RateLimitRPS); err != nil {
		return fmt.Errorf("invalid RATE_LIMIT_RPS: %w", err)
	}
	if cfg.Server.RateLimitBurst, err = getEnvInt("RATE_LIMIT_BURST", cfg.Server.RateLimitBurst); err != nil {
		return fmt.Errorf("invalid RATE_LIMIT_BURST: %w", err)
	}

	cfg.Database.URL = getEnv("DATABASE_URL", cfg.Database.URL)
	if cfg.Database.MaxConns, err = getEnvInt("DB_MAX_CONNS", cfg.Database.MaxConns); err != nil {
		return fmt.Errorf("invalid DB_MAX_CONNS: %w", err)
	}
	if cfg.Database.MinConns, err = getEnvInt("DB_MIN_CONNS", cfg.Database.MinConns); err != nil {
		return fmt.Errorf("invalid DB_MIN_CONNS: %w", err)
	}
	cfg.Database.MigrationsPath = getEnv("MIGRATIONS_PATH", cfg.Database.MigrationsPath)

	cfg.Redis.Addr = getEnv("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", cfg.Redis.Password)
	if cfg.Redis.DB, err = getEnvInt("REDIS_DB", cfg.Redis.DB); err != nil {
		return fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg.LLM.OpenAIKey = getEnv("OPENAI_API_KEY", cfg.LLM.OpenAIKey)
	cfg.LLM.OpenRouterKey = getEnv("OPENROUTER_API_KEY", cfg.LLM.OpenRouterKey)
	cfg.LLM.OpenRouterURL = getEnv("OPENROUTER_URL", cfg.LLM.OpenRouterURL)
	cfg.LLM.AnthropicKey = getEnv("ANTHROPIC_API_KEY", cfg.LLM.AnthropicKey)
	cfg.LLM.OllamaURL = getEnv("OLLAMA_URL", cfg.LLM.OllamaURL)
	if cfg.LLM.EnableMock, err = getEnvBool("LLM_ENABLE_MOCK", cfg.LLM.EnableMock); err != nil {
		return fmt.Errorf("invalid LLM_ENABLE_MOCK: %w", err)
	}
	cfg.LLM.DefaultProvider = getEnv("LLM_DEFAULT_PROVIDER", cfg.LLM.DefaultProvider)
	cfg.LLM.DefaultModel = getEnv("LLM_DEFAULT_MODEL", cfg.LLM.DefaultModel)
	cfg.LLM.FallbackProvider = getEnv("LLM_FALLBACK_PROVIDER", cfg.LLM.FallbackProvider)
	cfg.LLM.FallbackModel = getEnv("LLM_FALLBACK_MODEL", cfg.LLM.FallbackModel)
	if cfg.LLM.MaxRetries, err = getEnvInt("LLM_MAX_RETRIES", cfg.LLM.MaxRetries); err != nil {
		return fmt.Errorf("invalid LLM_MAX_RETRIES: %w", err)
	}
	if cfg.LLM.MaxTokens, err = getEnvInt("LLM_MAX_TOKENS", cfg.LLM.MaxTokens); err != nil {
		return fmt.Errorf("invalid LLM_MAX_TOKENS: %w", err)
	}
	if cfg.LLM.Temperature, err = getEnvFloat("LLM_TEMPERATURE", cfg.LLM.Temperature); err != nil {
		return fmt.Errorf("invalid LLM_TEMPERATURE: %w", err)
	}

	cfg.TTS.Backend = getEnv("TTS_BACKEND", cfg.TTS.Backend)
	cfg.TTS.OpenAIKey = getEnv("OPENAI_API_KEY", cfg.TTS.OpenAIKey)
	cfg.TTS.OpenAIBaseURL = getEnv("TTS_OPENAI_BASE_URL", cfg.TTS.OpenAIBaseURL)
	cfg.TTS.OpenAIModel = getEnv("TTS_OPENAI_MODEL", cfg.TTS.OpenAIModel)
	cfg.TTS.ElevenLabsKey = getEnv("ELEVENLABS_API_KEY", cfg.TTS.ElevenLabsKey)
	cfg.TTS.ElevenLabsBaseURL = getEnv("ELEVENLABS_BASE_URL", cfg.TTS.ElevenLabsBaseURL)
	cfg.TTS.ElevenLabsModel = getEnv("ELEVENLABS_MODEL", cfg.TTS.ElevenLabsModel)
	cfg.TTS.LocalBinPath = getEnv("TTS_LOCAL_PIPER_BIN", cfg.TTS.LocalBinPath)
	cfg.TTS.LocalModel = getEnv("TTS_LOCAL_PIPER_MODEL", cfg.TTS.LocalModel)
	if cfg.TTS.Speed, err = getEnvFloat("TTS_SPEED", cfg.TTS.Speed); err != nil {
		return fmt.Errorf("invalid TTS_SPEED: %w", err)
	}

	p := &cfg.Pipeline
	if p.MaxChapterChars, err = getEnvInt("PIPELINE_MAX_CHAPTER_CHARS", p.MaxChapterChars); err != nil {
		return fmt.Errorf("invalid PIPELINE_MAX_CHAPTER_CHARS: %w", err)
	}
	if p.ConcurrencyLimit, err = getEnvInt("PIPELINE_CONCURRENCY", p.ConcurrencyLimit); err != nil {
		return fmt.Errorf("invalid PIPELINE_CONCURRENCY: %w", err)
	}
	if p.Retry.MaxAttempts, err = getEnvInt("PIPELINE_RETRY_MAX_ATTEMPTS", p.Retry.MaxAttempts); err != nil {
		return fmt.Errorf("invalid PIPELINE_RETRY_MAX_ATTEMPTS: %w", err)
	}
	if p.Retry.BaseDelay, err = getEnvMillis("PIPELINE_RETRY_BASE_DELAY_MS", p.Retry.BaseDelay); err != nil {
		return fmt.Errorf("invalid PIPELINE_RETRY_BASE_DELAY_MS: %w", err)
	}
	if p.Retry.MaxDelay, err = getEnvMillis("PIPELINE_RETRY_MAX_DELAY_MS", p.Retry.MaxDelay); err != nil {
		return fmt.Errorf("invalid PIPELINE_RETRY_MAX_DELAY_MS: %w", err)
	}
	if p.Retry.Jitter, err = getEnvFloat("PIPELINE_RETRY_JITTER", p.Retry.Jitter); err != nil {
		return fmt.Errorf("invalid PIPELINE_RETRY_JITTER: %w", err)
	}
	p.DefaultVoice = getEnv("DEFAULT_VOICE_ID", p.DefaultVoice)
	p.DefaultLanguage = getEnv("DEFAULT_LANGUAGE", p.DefaultLanguage)
	if p.ScriptTimeout, err = getEnvMillis("PIPELINE_SCRIPT_TIMEOUT_MS", p.ScriptTimeout); err != nil {
		return fmt.Errorf("invalid PIPELINE_SCRIPT_TIMEOUT_MS: %w", err)
	}
	if p.SpeechTimeout, err = getEnvMillis("PIPELINE_SPEECH_TIMEOUT_MS", p.SpeechTimeout); err != nil {
		return fmt.Errorf("invalid PIPELINE_SPEECH_TIMEOUT_MS: %w", err)
	}
	if p.WordsPerMinute, err = getEnvInt("PIPELINE_WORDS_PER_MINUTE", p.WordsPerMinute); err != nil {
		return fmt.Errorf("invalid PIPELINE_WORDS_PER_MINUTE: %w", err)
	}
	if p.TargetWords, err = getEnvInt("PIPELINE_TARGET_WORDS", p.TargetWords); err != nil {
		return fmt.Errorf("invalid PIPELINE_TARGET_WORDS: %w", err)
	}
	if p.MaxTopicChars, err = getEnvInt("PIPELINE_MAX_TOPIC_CHARS", p.MaxTopicChars); err != nil {
		return fmt.Errorf("invalid PIPELINE_MAX_TOPIC_CHARS: %w", err)
	}
	p.PromptTemplate = getEnv("PIPELINE_PROMPT_TEMPLATE", p.PromptTemplate)
	if p.ScreenTopicsLLM, err = getEnvBool("PIPELINE_SCREEN_TOPICS_LLM", p.ScreenTopicsLLM); err != nil {
		return fmt.Errorf("invalid PIPELINE_SCREEN_TOPICS_LLM: %w", err)
	}

	cfg.Storage.AudioBackend = getEnv("AUDIO_STORE_BACKEND", cfg.Storage.AudioBackend)
	if cfg.Storage.AudioTTL, err = getEnvDuration("AUDIO_STORE_TTL", cfg.Storage.AudioTTL); err != nil {
		return fmt.Errorf("invalid AUDIO_STORE_TTL: %w", err)
	}
	if cfg.Storage.JobTTL, err = getEnvDuration("JOB_TTL", cfg.Storage.JobTTL); err != nil {
		return fmt.Errorf("invalid JOB_TTL: %w", err)
	}
	cfg.Storage.PublicBaseURL = getEnv("PUBLIC_BASE_URL", cfg.Storage.PublicBaseURL)

	if cfg.Worker.Concurrency, err = getEnvInt("WORKER_CONCURRENCY", cfg.Worker.Concurrency); err != nil {
		return fmt.Errorf("invalid WORKER_CONCURRENCY: %w", err)
	}

	cfg.Telemetry.ServiceName = getEnv("SERVICE_NAME", cfg.Telemetry.ServiceName)
	cfg.Telemetry.LogLevel = getEnv("LOG_LEVEL", cfg.Telemetry.LogLevel)
	if cfg.Telemetry.MetricsEnabled, err = getEnvBool("METRICS_ENABLED", cfg.Telemetry.MetricsEnabled); err != nil {
		return fmt.Errorf("invalid METRICS_ENABLED: %w", err)
	}

	return nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// Validate reports every problem with the configuration at once.
func (c *Config) Validate() error {
	var problems []string

	p := c.Pipeline
	if p.MaxChapterChars <= 0 {
		problems = append(problems, "PIPELINE_MAX_CHAPTER_CHARS must be positive")
	}
	if p.ConcurrencyLimit <= 0 {
		problems = append(problems, "PIPELINE_CONCURRENCY must be positive")
	}
	if p.Retry.MaxAttempts <= 0 {
		problems = append(problems, "PIPELINE_RETRY_MAX_ATTEMPTS must be positive")
	}
	if p.Retry.BaseDelay <= 0 || p.Retry.MaxDelay < p.Retry.BaseDelay {
		problems = append(problems, "retry delays must satisfy 0 < base <= max")
	}
	if p.Retry.Jitter < 0 || p.Retry.Jitter >= 1 {
		problems = append(problems, "PIPELINE_RETRY_JITTER must be in [0, 1)")
	}
	if p.ScriptTimeout <= 0 || p.SpeechTimeout <= 0 {
		problems = append(problems, "pipeline timeouts must be positive")
	}
	if p.MaxTopicChars <= 0 {
		problems = append(problems, "PIPELINE_MAX_TOPIC_CHARS must be positive")
	}
	if strings.TrimSpace(p.DefaultVoice) == "" {
		problems = append(problems, "DEFAULT_VOICE_ID is required")
	}
	if _, err := language.Parse(p.DefaultLanguage); err != nil {
		problems = append(problems, fmt.Sprintf("DEFAULT_LANGUAGE %q is not a BCP 47 tag", p.DefaultLanguage))
	}

	if c.LLM.MaxRetries < 0 {
		problems = append(problems, "LLM_MAX_RETRIES must not be negative")
	}
	if problem := c.LLM.credentialProblem(c.LLM.DefaultProvider, "LLM_DEFAULT_PROVIDER"); problem != "" {
		problems = append(problems, problem)
	}
	if c.LLM.FallbackProvider != "" {
		if problem := c.LLM.credentialProblem(c.LLM.FallbackProvider, "LLM_FALLBACK_PROVIDER"); problem != "" {
			problems = append(problems, problem)
		}
	}

	if c.TTS.Backend == "elevenlabs" && openAIVoices[strings.ToLower(p.DefaultVoice)] {
		problems = append(problems, fmt.Sprintf("DEFAULT_VOICE_ID %q is an OpenAI voice; set an ElevenLabs voice id for TTS_BACKEND=elevenlabs", p.DefaultVoice))
	}

	switch c.TTS.Backend {
	case "openai":
		if c.TTS.OpenAIKey == "" {
			problems = append(problems, "OPENAI_API_KEY is required for TTS_BACKEND=openai")
		}
	case "elevenlabs":
		if c.TTS.ElevenLabsKey == "" {
			problems = append(problems, "ELEVENLABS_API_KEY is required for TTS_BACKEND=elevenlabs")
		}
	case "local":
		if c.TTS.LocalModel == "" {
			problems = append(problems, "TTS_LOCAL_PIPER_MODEL is required for TTS_BACKEND=local")
		}
	case "mock":
	default:
		problems = append(problems, fmt.Sprintf("unknown TTS_BACKEND %q", c.TTS.Backend))
	}

	if c.Worker.Concurrency <= 0 {
		problems = append(problems, "WORKER_CONCURRENCY must be positive")
	}

	switch c.Storage.AudioBackend {
	case "memory", "redis":
	default:
		problems = append(problems, fmt.Sprintf("unknown AUDIO_STORE_BACKEND %q", c.Storage.AudioBackend))
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// openAIVoices are the built-in OpenAI speech voices. ElevenLabs addresses
// voices by id and rejects these names.
var openAIVoices = map[string]bool{
	"alloy": true, "ash": true, "ballad": true, "coral": true, "echo": true,
	"fable": true, "nova": true, "onyx": true, "sage": true, "shimmer": true,
}

func (l LLMConfig) credentialProblem(provider, setting string) string {
	switch provider {
	case "openai":
		if l.OpenAIKey == "" {
			return fmt.Sprintf("OPENAI_API_KEY is required for %s=openai", setting)
		}
	case "openrouter":
		if l.OpenRouterKey == "" {
			return fmt.Sprintf("OPENROUTER_API_KEY is required for %s=openrouter", setting)
		}
	case "anthropic":
		if l.AnthropicKey == "" {
			return fmt.Sprintf("ANTHROPIC_API_KEY is required for %s=anthropic", setting)
		}
	case "ollama":
		if l.OllamaURL == "" {
			return fmt.Sprintf("OLLAMA_URL is required for %s=ollama", setting)
		}
	case "mock":
		if !l.EnableMock {
			return fmt.Sprintf("LLM_ENABLE_MOCK must be true for %s=mock", setting)
		}
	default:
		return fmt.Sprintf("unknown %s %q", setting, provider)
	}
	return ""
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}

func getEnvFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.ParseFloat(v, 64)
}

func getEnvBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.ParseBool(v)
}

func getEnvMillis(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	ms, err := strconv.Atoi(v)
	if err != nil {
		return 0, err
	}
	return time.Duration(ms) * time.Millisecond, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return time.ParseDuration(v)
}

func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
