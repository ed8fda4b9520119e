package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Server   ServerConfig   `envPrefix:"SERVER_"`
	Database DatabaseConfig `envPrefix:"DATABASE_"`
	Auth     AuthConfig     `envPrefix:"AUTH_"`
	LLM      LLMConfig      `envPrefix:"LLM_"`
	GitHub   GitHubConfig   `envPrefix:"GITHUB_"`
	Upload   UploadConfig   `envPrefix:"UPLOAD_"`
}

type ServerConfig struct {
	Addr        string `env:"ADDR" envDefault:"0.0.0.0:8080"`
	CORSPattern string `env:"CORS_PATTERN" envDefault:"^https?://localhost(:\\d+)?$"`
}

type DatabaseConfig struct {
	URI      string `env:"URI" envDefault:"mongodb://localhost:27017"`
	Database string `env:"DATABASE" envDefault:"omegachat"`
}

type AuthConfig struct {
	JWTSecret string `env:"JWT_SECRET,required"`
}

type LLMConfig struct {
	// Provider is "googleai" or "openai". Empty means infer from whichever
	// API key is configured, preferring Google AI.
	Provider        string        `env:"PROVIDER"`
	ModelOverride   string        `env:"MODEL"`
	GoogleAIAPIKey  string        `env:"GOOGLE_AI_API_KEY"`
	OpenAIAPIKey    string        `env:"OPENAI_API_KEY"`
	OpenAIBaseURL   string        `env:"OPENAI_BASE_URL" envDefault:"https://api.openai.com/v1"`
	GenerateTimeout time.Duration `env:"GENERATE_TIMEOUT" envDefault:"45s"`
	ContextTimeout  time.Duration `env:"CONTEXT_TIMEOUT" envDefault:"8s"`
	ModelCacheTTL   time.Duration `env:"MODEL_CACHE_TTL" envDefault:"30m"`
}

type GitHubConfig struct {
	// Token is the service-level fallback credential; per-user tokens from
	// the user store take precedence when available.
	Token        string        `env:"TOKEN"`
	StatsTimeout time.Duration `env:"STATS_TIMEOUT" envDefault:"10s"`
}

type UploadConfig struct {
	MaxSizeBytes      int64    `env:"MAX_SIZE_BYTES" envDefault:"10485760"`
	AllowedExtensions []string `env:"ALLOWED_EXTENSIONS" envDefault:".png,.jpg,.jpeg,.gif,.webp,.pdf,.txt,.md,.zip,.tar.gz,.webm,.mp3,.wav,.ogg"`
	BaseURL           string   `env:"BASE_URL" envDefault:"/uploads"`
}

func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}
