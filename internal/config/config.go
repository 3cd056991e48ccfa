package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config 汇总应用配置，来源可以是文件或环境变量。
type Config struct {
	API      APIConfig      `mapstructure:"api"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	MinIO    MinIOConfig    `mapstructure:"minio"`
	Clamd    ClamdConfig    `mapstructure:"clamd"`
	Worker   WorkerConfig   `mapstructure:"worker"`
	Editor   EditorConfig   `mapstructure:"editor"`
}

// APIConfig HTTP 服务配置。
type APIConfig struct {
	Port           int    `mapstructure:"port"`
	CORSOrigins    string `mapstructure:"cors_origins"`
	InternalSecret string `mapstructure:"internal_secret"`
	// ExportsPerHour 限制单个广告每小时的导出次数，0 表示不限。
	ExportsPerHour int `mapstructure:"exports_per_hour"`
}

// AllowedOrigins 拆分逗号分隔的来源列表。
func (a APIConfig) AllowedOrigins() []string {
	var out []string
	for _, o := range strings.Split(a.CORSOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// DatabaseConfig PostgreSQL 连接配置。
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Name     string `mapstructure:"name"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	SSLMode  string `mapstructure:"sslmode"`
	Debug    bool   `mapstructure:"debug"`
}

// RedisConfig 包含 Redis 连接配置。
type RedisConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// MinIOConfig MinIO/S3 兼容存储的连接配置。
type MinIOConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	Bucket          string `mapstructure:"bucket"`
	// PublicEndpoint 用于生成浏览器可访问的预签名链接，例如 http://localhost:9000。
	PublicEndpoint   string `mapstructure:"public_endpoint"`
	Region           string `mapstructure:"region"`
	BucketLookup     string `mapstructure:"bucket_lookup"`
	AutoCreateBucket bool   `mapstructure:"auto_create_bucket"`
}

// ClamdConfig 指向 clamd 守护进程，留空则跳过病毒扫描。
type ClamdConfig struct {
	Addr string `mapstructure:"addr"`
}

// WorkerConfig asynq worker 与 PDF 渲染配置。
type WorkerConfig struct {
	InternalAPIURL     string        `mapstructure:"internal_api_url"`
	FrontendURL        string        `mapstructure:"frontend_url"`
	Concurrency        int           `mapstructure:"concurrency"`
	RenderReadyTimeout time.Duration `mapstructure:"render_ready_timeout"`
}

// EditorConfig 编辑会话配置。
type EditorConfig struct {
	AutosaveInterval time.Duration `mapstructure:"autosave_interval"`
	HistoryLimit     int           `mapstructure:"history_limit"`
	PriceFlashDelay  time.Duration `mapstructure:"price_flash_delay"`
	DefaultRegion    string        `mapstructure:"default_region"`
}

// DSN 生成 lib/pq 兼容的连接串。
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host,
		d.Port,
		d.User,
		d.Password,
		d.Name,
		d.SSLMode,
	)
}

// Load 先加载可选的 .env 文件，再从环境变量读取配置，有默认值的项都会设置默认值。
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("load .env failed", slog.Any("error", err))
	}

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if err := bindEnv(v); err != nil {
		return nil, fmt.Errorf("bind env: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// MustLoad 调用 Load，失败时 panic。
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.port", 8080)
	v.SetDefault("api.cors_origins", "http://localhost:5173")
	v.SetDefault("api.exports_per_hour", 20)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "adbuilder")
	v.SetDefault("database.user", "adbuilder")
	v.SetDefault("database.password", "adbuilder")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.debug", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("minio.endpoint", "localhost:9000")
	v.SetDefault("minio.use_ssl", false)
	v.SetDefault("minio.bucket", "weekly-ads")
	v.SetDefault("minio.public_endpoint", "http://localhost:9000")
	v.SetDefault("minio.region", "us-east-1")
	v.SetDefault("minio.bucket_lookup", "auto")
	v.SetDefault("minio.auto_create_bucket", true)
	v.SetDefault("clamd.addr", "")
	v.SetDefault("worker.internal_api_url", "http://localhost:8080")
	v.SetDefault("worker.frontend_url", "")
	v.SetDefault("worker.concurrency", 4)
	v.SetDefault("worker.render_ready_timeout", 8*time.Second)
	v.SetDefault("editor.autosave_interval", 30*time.Second)
	v.SetDefault("editor.history_limit", 50)
	v.SetDefault("editor.price_flash_delay", 2*time.Second)
	v.SetDefault("editor.default_region", "WEST_COAST")
}

func bindEnv(v *viper.Viper) error {
	mappings := map[string]string{
		"api.port":                    "API_PORT",
		"api.cors_origins":            "CORS_ORIGINS",
		"api.internal_secret":         "INTERNAL_API_SECRET",
		"api.exports_per_hour":        "EXPORTS_PER_HOUR",
		"database.host":               "DATABASE_HOST",
		"database.port":               "DATABASE_PORT",
		"database.name":               "POSTGRES_DB",
		"database.user":               "POSTGRES_USER",
		"database.password":           "POSTGRES_PASSWORD",
		"database.sslmode":            "DATABASE_SSLMODE",
		"database.debug":              "DATABASE_DEBUG",
		"redis.host":                  "REDIS_HOST",
		"redis.port":                  "REDIS_PORT",
		"minio.endpoint":              "MINIO_ENDPOINT",
		"minio.access_key_id":         "MINIO_ACCESS_KEY_ID",
		"minio.secret_access_key":     "MINIO_SECRET_ACCESS_KEY",
		"minio.use_ssl":               "MINIO_USE_SSL",
		"minio.bucket":                "MINIO_BUCKET",
		"minio.public_endpoint":       "MINIO_PUBLIC_ENDPOINT",
		"minio.region":                "MINIO_REGION",
		"minio.bucket_lookup":         "MINIO_BUCKET_LOOKUP",
		"minio.auto_create_bucket":    "MINIO_AUTO_CREATE_BUCKET",
		"clamd.addr":                  "CLAMD_ADDR",
		"worker.internal_api_url":     "INTERNAL_API_BASE_URL",
		"worker.frontend_url":         "FRONTEND_BASE_URL",
		"worker.concurrency":          "WORKER_CONCURRENCY",
		"worker.render_ready_timeout": "RENDER_READY_TIMEOUT",
		"editor.autosave_interval":    "AUTOSAVE_INTERVAL",
		"editor.history_limit":        "HISTORY_LIMIT",
		"editor.price_flash_delay":    "PRICE_FLASH_DELAY",
		"editor.default_region":       "DEFAULT_REGION",
	}

	for key, env := range mappings {
		if err := v.BindEnv(key, env); err != nil {
			return fmt.Errorf("bind %s to %s: %w", key, env, err)
		}
	}

	return nil
}

func validate(cfg Config) error {
	if cfg.API.Port <= 0 {
		return errors.New("api port must be positive")
	}
	if cfg.API.InternalSecret == "" {
		return errors.New("internal api secret is required")
	}
	if cfg.API.ExportsPerHour < 0 {
		return errors.New("exports per hour must not be negative")
	}
	if cfg.Database.Host == "" {
		return errors.New("database host is required")
	}
	if cfg.Database.Port <= 0 {
		return errors.New("database port must be positive")
	}
	if cfg.Database.Name == "" {
		return errors.New("database name is required")
	}
	if cfg.Database.User == "" {
		return errors.New("database user is required")
	}
	if cfg.Database.Password == "" {
		return errors.New("database password is required")
	}
	if cfg.Database.SSLMode == "" {
		return errors.New("database sslmode is required")
	}
	if cfg.Redis.Host == "" {
		return errors.New("redis host is required")
	}
	if cfg.Redis.Port <= 0 {
		return errors.New("redis port must be positive")
	}
	if cfg.MinIO.Endpoint == "" {
		return errors.New("minio endpoint is required")
	}
	if cfg.MinIO.AccessKeyID == "" {
		return errors.New("minio access key id is required")
	}
	if cfg.MinIO.SecretAccessKey == "" {
		return errors.New("minio secret access key is required")
	}
	if cfg.MinIO.Bucket == "" {
		return errors.New("minio bucket is required")
	}
	if cfg.Worker.Concurrency <= 0 {
		return errors.New("worker concurrency must be positive")
	}
	if cfg.Worker.RenderReadyTimeout <= 0 {
		return errors.New("render ready timeout must be positive")
	}
	if cfg.Editor.AutosaveInterval <= 0 {
		return errors.New("autosave interval must be positive")
	}
	if cfg.Editor.HistoryLimit <= 0 {
		return errors.New("history limit must be positive")
	}
	return nil
}
