package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"content-studio/helpers"

	"github.com/joho/godotenv"
	"golang.org/x/oauth2/google"
)

type Config struct {
	Env       string
	APIHost   string
	App       AppConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Auth      AuthConfig
	Storage   StorageConfig
	Facebook  FacebookConfig
	Instagram InstagramConfig
	YouTube   YouTubeConfig
	TikTok    TikTokConfig
	Scheduler SchedulerConfig
}

// AppConfig holds the PocketBase process settings.
type AppConfig struct {
	DataDir      string
	QueryTimeout time.Duration
}

type DatabaseConfig struct {
	DSN     string
	Migrate bool
}

type RedisConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DB       int
}

// Enabled reports whether a redis host was configured.
func (c RedisConfig) Enabled() bool {
	return c.Host != ""
}

type AuthConfig struct {
	JWTSecret     string
	StateTTL      time.Duration
	RedirectHost  string
	SessionSecret string
}

type StorageConfig struct {
	Driver            string
	PublicBaseURL     string
	AllowPrivateHosts bool
	MinioEndpoint     string
	MinioAccessKey    string
	MinioSecretKey    string
	MinioUseSSL       bool
	MinioBucket       string
	MinioRegion       string
	PresignExpiry     time.Duration
}

type FacebookConfig struct {
	AppID        string
	AppSecret    string
	GraphURL     string
	GraphVersion string
	Timeout      time.Duration
}

type InstagramConfig struct {
	ClientID     string
	ClientSecret string
	AuthURL      string
	TokenURL     string
	GraphURL     string
	Publish      helpers.Backoff
	Timeout      time.Duration
}

type YouTubeConfig struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
	APIURL       string
	CategoryID   string
	ChunkSize    int64
	Timeout      time.Duration
}

type TikTokConfig struct {
	ClientKey    string
	ClientSecret string
	BaseURL      string
	Poll         helpers.Backoff
	Timeout      time.Duration
}

type SchedulerConfig struct {
	Cron       string
	BatchSize  int
	LeaseTTL   time.Duration
	RunTimeout time.Duration
}

// Load reads the process environment (and a .env file when present) once.
// Nothing else in the module reads the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Env:     getEnv("APP_ENV", "dev"),
		APIHost: strings.TrimRight(os.Getenv("API_HOST"), "/"),
		App: AppConfig{
			DataDir:      getEnv("PB_DATA_DIR", "pb_data"),
			QueryTimeout: getDuration("PB_QUERY_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseConfig{
			DSN:     os.Getenv("DATABASE_URL"),
			Migrate: getBool("DB_MIGRATE", false),
		},
		Redis: RedisConfig{
			Host:     os.Getenv("REDIS_HOST"),
			Port:     getEnv("REDIS_PORT", "6379"),
			User:     os.Getenv("REDIS_USER"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       getInt("REDIS_DB", 0),
		},
		Auth: AuthConfig{
			JWTSecret:     os.Getenv("JWT_SECRET"),
			StateTTL:      getDuration("OAUTH_STATE_TTL", 10*time.Minute),
			RedirectHost:  os.Getenv("REDIRECT_HOST"),
			SessionSecret: os.Getenv("SESSION_SECRET"),
		},
		Storage: StorageConfig{
			Driver:            getEnv("STORAGE_DRIVER", "local"),
			PublicBaseURL:     getEnv("PUBLIC_BASE_URL", os.Getenv("API_HOST")),
			AllowPrivateHosts: getBool("STORAGE_ALLOW_PRIVATE_HOSTS", false),
			MinioEndpoint:     os.Getenv("MINIO_ENDPOINT"),
			MinioAccessKey:    os.Getenv("MINIO_ACCESS_KEY"),
			MinioSecretKey:    os.Getenv("MINIO_SECRET_KEY"),
			MinioUseSSL:       getBool("MINIO_USE_SSL", true),
			MinioBucket:       os.Getenv("MINIO_BUCKET_NAME"),
			MinioRegion:       getEnv("MINIO_REGION", "us-east-1"),
			PresignExpiry:     getDuration("MINIO_PRESIGN_EXPIRY", 24*time.Hour),
		},
		Facebook: FacebookConfig{
			AppID:        os.Getenv("FACEBOOK_APP_ID"),
			AppSecret:    os.Getenv("FACEBOOK_SECRET"),
			GraphURL:     getEnv("FACEBOOK_GRAPH_URL", "https://graph.facebook.com"),
			GraphVersion: getEnv("FACEBOOK_GRAPH_VERSION", "v18.0"),
			Timeout:      getDuration("FACEBOOK_TIMEOUT", 60*time.Second),
		},
		Instagram: InstagramConfig{
			ClientID:     os.Getenv("INSTAGRAM_BUSINESS_CLIENT_ID"),
			ClientSecret: os.Getenv("INSTAGRAM_BUSINESS_CLIENT_SECRET"),
			AuthURL:      getEnv("INSTAGRAM_AUTH_URL", "https://api.instagram.com/oauth/authorize"),
			TokenURL:     getEnv("INSTAGRAM_TOKEN_URL", "https://api.instagram.com/oauth/access_token"),
			GraphURL:     getEnv("INSTAGRAM_GRAPH_URL", "https://graph.instagram.com"),
			Publish:      helpers.InstagramPublishBackoff,
			Timeout:      getDuration("INSTAGRAM_TIMEOUT", 30*time.Second),
		},
		YouTube: YouTubeConfig{
			ClientID:     os.Getenv("YOUTUBE_CLIENT_ID"),
			ClientSecret: os.Getenv("YOUTUBE_CLIENT_SECRET"),
			TokenURL:     getEnv("YOUTUBE_TOKEN_URL", google.Endpoint.TokenURL),
			APIURL:       getEnv("YOUTUBE_API_URL", "https://youtube.googleapis.com/"),
			CategoryID:   getEnv("YOUTUBE_CATEGORY_ID", "22"),
			ChunkSize:    int64(getInt("YOUTUBE_CHUNK_SIZE", 8*1024*1024)),
			Timeout:      getDuration("YOUTUBE_TIMEOUT", 10*time.Minute),
		},
		TikTok: TikTokConfig{
			ClientKey:    os.Getenv("TIKTOK_CLIENT_KEY"),
			ClientSecret: os.Getenv("TIKTOK_CLIENT_SECRET"),
			BaseURL:      getEnv("TIKTOK_API_URL", "https://open.tiktokapis.com"),
			Poll:         helpers.TikTokPollBackoff,
			Timeout:      getDuration("TIKTOK_TIMEOUT", 30*time.Second),
		},
		Scheduler: SchedulerConfig{
			Cron:       getEnv("SCHEDULER_CRON", "* * * * *"),
			BatchSize:  getInt("SCHEDULER_BATCH_SIZE", 50),
			LeaseTTL:   getDuration("SCHEDULER_LEASE_TTL", 5*time.Minute),
			RunTimeout: getDuration("SCHEDULER_RUN_TIMEOUT", 4*time.Minute),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings the process cannot start without.
func (c *Config) Validate() error {
	if c.Database.DSN == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.YouTube.ChunkSize <= 0 || c.YouTube.ChunkSize%(256*1024) != 0 {
		return fmt.Errorf("YOUTUBE_CHUNK_SIZE must be a positive multiple of 262144, got %d", c.YouTube.ChunkSize)
	}
	if c.Scheduler.LeaseTTL <= 0 || c.Scheduler.RunTimeout <= 0 || c.Scheduler.RunTimeout >= c.Scheduler.LeaseTTL {
		return fmt.Errorf("SCHEDULER_RUN_TIMEOUT (%s) must be positive and shorter than SCHEDULER_LEASE_TTL (%s)",
			c.Scheduler.RunTimeout, c.Scheduler.LeaseTTL)
	}
	switch c.Storage.Driver {
	case "local":
		if c.Storage.PublicBaseURL == "" {
			return fmt.Errorf("PUBLIC_BASE_URL (or API_HOST) is required for the local storage driver")
		}
	case "minio":
		if c.Storage.MinioEndpoint == "" || c.Storage.MinioBucket == "" {
			return fmt.Errorf("MINIO_ENDPOINT and MINIO_BUCKET_NAME are required for the minio storage driver")
		}
	default:
		return fmt.Errorf("unknown STORAGE_DRIVER %q", c.Storage.Driver)
	}
	return nil
}

// IsProd mirrors the "prod" switch used for logging and TLS decisions.
func (c *Config) IsProd() bool {
	return c.Env == "prod"
}

// AppOptions maps the config onto the PocketBase app settings.
func (c *Config) AppOptions() helpers.AppOptions {
	return helpers.AppOptions{
		Prod:         c.IsProd(),
		DataDir:      c.App.DataDir,
		QueryTimeout: c.App.QueryTimeout,
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func getBool(key string, fallback bool) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}
