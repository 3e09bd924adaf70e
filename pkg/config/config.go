// Package config builds the process configuration once at start-up. Nothing
// below the command layer reads the environment directly.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Development-only secrets, used when none are configured outside production.
const (
	devAccessSecret  = "dev-insecure-access-secret-change-me"
	devRefreshSecret = "dev-insecure-refresh-secret-change-me"
	devAdminPassword = "admin123"
)

type Config struct {
	HTTPAddr      string `mapstructure:"http_addr"`
	DBDSN         string `mapstructure:"db_dsn"`
	DBAutoMigrate bool   `mapstructure:"db_auto_migrate"`
	AppEnv        string `mapstructure:"app_env"`

	JWTAccessSecret   string        `mapstructure:"jwt_access_secret"`
	JWTRefreshSecret  string        `mapstructure:"jwt_refresh_secret"`
	JWTAccessExpires  time.Duration `mapstructure:"jwt_access_expires"`
	JWTRefreshExpires time.Duration `mapstructure:"jwt_refresh_expires"`

	CookiePath   string `mapstructure:"cookie_path"`
	CookieDomain string `mapstructure:"cookie_domain"`
	// CrossOrigin is true when the browser client is served from another
	// origin than the API. Defaults to production mode.
	CrossOrigin bool `mapstructure:"cross_origin"`

	UploadBase     string `mapstructure:"upload_base"`
	UploadMaxBytes int64  `mapstructure:"upload_max_bytes"`
	ThumbWidth     int    `mapstructure:"thumb_width"`

	AdminEmail    string `mapstructure:"admin_email"`
	AdminPassword string `mapstructure:"admin_password"`

	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
}

// Production reports whether the service runs in production mode, which
// turns on secure cookies and requires explicit secrets.
func (c *Config) Production() bool {
	return strings.EqualFold(c.AppEnv, "production")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http_addr", ":8081")
	v.SetDefault("db_dsn", "")
	v.SetDefault("db_auto_migrate", true)
	v.SetDefault("app_env", "development")
	v.SetDefault("jwt_access_secret", "")
	v.SetDefault("jwt_refresh_secret", "")
	v.SetDefault("jwt_access_expires", 15*time.Minute)
	v.SetDefault("jwt_refresh_expires", 7*24*time.Hour)
	v.SetDefault("cookie_path", "/api")
	v.SetDefault("cookie_domain", "")
	v.SetDefault("upload_base", "uploads")
	v.SetDefault("upload_max_bytes", 5*1024*1024)
	v.SetDefault("thumb_width", 320)
	v.SetDefault("admin_email", "admin@example.com")
	v.SetDefault("admin_password", devAdminPassword)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
}

// Load reads .env (never overriding the real environment), then the optional
// config file, then environment variables such as DB_DSN or JWT_ACCESS_SECRET.
func Load(configFile string, log logrus.FieldLogger) (*Config, error) {
	if err := godotenv.Load(); err != nil && log != nil {
		log.Debug("no .env file loaded")
	}

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	// cross_origin has no default so that its absence can be told apart.
	if v.IsSet("cross_origin") {
		cfg.CrossOrigin = v.GetBool("cross_origin")
	} else {
		cfg.CrossOrigin = cfg.Production()
	}

	if err := cfg.finish(log); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// finish fills development secrets and validates the result.
func (c *Config) finish(log logrus.FieldLogger) error {
	if !c.Production() {
		if c.JWTAccessSecret == "" {
			c.JWTAccessSecret = devAccessSecret
			if log != nil {
				log.Warn("JWT_ACCESS_SECRET not set, using development secret")
			}
		}
		if c.JWTRefreshSecret == "" {
			c.JWTRefreshSecret = devRefreshSecret
			if log != nil {
				log.Warn("JWT_REFRESH_SECRET not set, using development secret")
			}
		}
	}
	return c.Validate()
}

// Validate checks the invariants the token and cookie layers rely on.
func (c *Config) Validate() error {
	if c.JWTAccessSecret == "" {
		return errors.New("jwt_access_secret is required")
	}
	if c.JWTRefreshSecret == "" {
		return errors.New("jwt_refresh_secret is required")
	}
	if c.JWTAccessSecret == c.JWTRefreshSecret {
		return errors.New("jwt_access_secret and jwt_refresh_secret must be different")
	}
	if c.Production() && c.AdminPassword == devAdminPassword {
		return errors.New("admin_password must be set to a non-default value in production")
	}
	if c.JWTAccessExpires <= 0 {
		return errors.New("jwt_access_expires must be positive")
	}
	if c.JWTRefreshExpires <= c.JWTAccessExpires {
		return errors.New("jwt_refresh_expires must be longer than jwt_access_expires")
	}
	if c.UploadMaxBytes <= 0 {
		return errors.New("upload_max_bytes must be positive")
	}
	if c.ThumbWidth <= 0 {
		return errors.New("thumb_width must be positive")
	}
	if c.CookiePath == "" {
		c.CookiePath = "/"
	}
	return nil
}
