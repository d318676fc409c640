package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type HTTP struct {
	Host              string
	Port              int
	ReadTimeoutSec    int
	WriteTimeoutSec   int
	IdleTimeoutSec    int
	RequestTimeoutSec int
	CORSOrigins       []string `mapstructure:"corsOrigins"`
	RateLimitRPS      float64  `mapstructure:"rateLimitRps"`
	RateLimitBurst    int
	MaxConcurrency    int64
}

type AdminHTTP struct {
	Host string
	Port int
}

type App struct {
	Name  string
	Env   string
	HTTP  HTTP
	Admin AdminHTTP
}

type LogRotate struct {
	Enable     bool
	Filename   string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

type Log struct {
	Level  string
	JSON   bool
	Rotate LogRotate
}

type JWT struct {
	Secret              string
	Issuer              string
	AccessTokenTTLMin   int
	RefreshTokenTTLDays int
	LeewaySec           int
}

func (j JWT) AccessTTL() time.Duration  { return time.Duration(j.AccessTokenTTLMin) * time.Minute }
func (j JWT) RefreshTTL() time.Duration { return time.Duration(j.RefreshTokenTTLDays) * 24 * time.Hour }

type Auth struct {
	PasswordAlgorithm string
	AllowRegistration bool
}

type Redis struct {
	Addr             string `mapstructure:"addr"`
	Password         string `mapstructure:"password"`
	DB               int    `mapstructure:"db"`
	AuthzCacheTTLSec int    `mapstructure:"authzCacheTTLSec"`
}

type OPA struct {
	Enabled    bool
	URL        string
	PolicyPath string
	TimeoutSec int
}

type Storage struct {
	AudioPath      string
	MaxUploadBytes int64
	AllowedFormats []string
	ChunkSize      int
}

type DB struct {
	Driver             string
	DSN                string
	Username           string
	Password           string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetimeMin int
	AutoMigrate        bool
	LogLevel           string
}

type Config struct {
	App     App
	Log     Log
	JWT     JWT
	Auth    Auth
	DB      DB
	Redis   Redis `mapstructure:"redis"`
	OPA     OPA
	Storage Storage
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "dictat")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.http.host", "0.0.0.0")
	v.SetDefault("app.http.port", 8080)
	v.SetDefault("app.http.readTimeoutSec", 15)
	v.SetDefault("app.http.writeTimeoutSec", 120)
	v.SetDefault("app.http.idleTimeoutSec", 60)
	v.SetDefault("app.http.requestTimeoutSec", 60)
	v.SetDefault("app.http.corsOrigins", []string{"http://localhost:3000", "http://localhost:5173"})
	v.SetDefault("app.http.rateLimitRps", 20)
	v.SetDefault("app.http.rateLimitBurst", 40)
	v.SetDefault("app.http.maxConcurrency", 300)
	v.SetDefault("app.admin.host", "127.0.0.1")
	v.SetDefault("app.admin.port", 8081)

	v.SetDefault("log.level", "info")

	v.SetDefault("jwt.issuer", "dictat")
	v.SetDefault("jwt.accessTokenTTLMin", 30)
	v.SetDefault("jwt.refreshTokenTTLDays", 7)
	v.SetDefault("jwt.leewaySec", 0)

	v.SetDefault("auth.passwordAlgorithm", "argon2")

	v.SetDefault("db.driver", "postgres")
	v.SetDefault("db.maxOpenConns", 20)
	v.SetDefault("db.maxIdleConns", 10)
	v.SetDefault("db.connMaxLifetimeMin", 60)
	v.SetDefault("db.logLevel", "warn")

	v.SetDefault("redis.authzCacheTTLSec", 30)

	v.SetDefault("opa.url", "http://localhost:8181")
	v.SetDefault("opa.policyPath", "/v1/data/dictat/allow")
	v.SetDefault("opa.timeoutSec", 5)

	v.SetDefault("storage.audioPath", "./storage/audio")
	v.SetDefault("storage.maxUploadBytes", 100<<20)
	v.SetDefault("storage.allowedFormats", []string{"mp3", "wav", "m4a", "ogg", "flac"})
	v.SetDefault("storage.chunkSize", 1<<20)
}

// Load 读取 YAML，再用 APP_ 前缀环境变量覆盖（APP_JWT_SECRET → jwt.secret）
func Load(path string) (*Config, error) {
	v := viper.New()
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
		if path == "" {
			path = "./configs/config.local.yaml"
		}
	}
	setDefaults(v)
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) Validate() error {
	var errs []error
	if len(c.JWT.Secret) < 32 {
		errs = append(errs, errors.New("jwt.secret must be at least 32 bytes"))
	}
	if c.JWT.AccessTokenTTLMin <= 0 || c.JWT.RefreshTokenTTLDays <= 0 {
		errs = append(errs, errors.New("jwt token ttl must be positive"))
	}
	switch c.Auth.PasswordAlgorithm {
	case "argon2", "bcrypt":
	default:
		errs = append(errs, fmt.Errorf("auth.passwordAlgorithm %q not in argon2|bcrypt", c.Auth.PasswordAlgorithm))
	}
	switch c.DB.Driver {
	case "postgres", "mysql":
	default:
		errs = append(errs, fmt.Errorf("db.driver %q not in postgres|mysql", c.DB.Driver))
	}
	if c.Storage.MaxUploadBytes <= 0 {
		errs = append(errs, errors.New("storage.maxUploadBytes must be positive"))
	}
	if len(c.Storage.AllowedFormats) == 0 {
		errs = append(errs, errors.New("storage.allowedFormats must not be empty"))
	}
	return errors.Join(errs...)
}
