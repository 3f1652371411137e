package config

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"gopkg.in/yaml.v3"

	"github.com/gps-hub/gps-hub-server/pkg/crypto"
)

// Config represents the application configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	API      APIConfig      `yaml:"api"`
	Auth     AuthConfig     `yaml:"auth"`
	JWT      JWTConfig      `yaml:"jwt"`
	Log      LogConfig      `yaml:"log"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Trackimo TrackimoConfig `yaml:"trackimo"` // 新增提供商配置
	Arvento  ArventoConfig  `yaml:"arvento"`
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

// APIConfig represents API configuration
type APIConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// AuthConfig represents API authentication configuration
type AuthConfig struct {
	Enabled           bool   `yaml:"enabled"`
	AdminUser         string `yaml:"admin_user"`
	AdminPasswordHash string `yaml:"admin_password_hash"`
}

// JWTConfig represents JWT configuration
type JWTConfig struct {
	Secret          string        `yaml:"secret"`
	AccessTokenTTL  time.Duration `yaml:"access_token_ttl"`
	RefreshTokenTTL time.Duration `yaml:"refresh_token_ttl"`
}

// LogConfig represents logging configuration
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig represents metrics endpoint configuration
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// === 新增提供商相关配置结构 ===

// TrackimoConfig Trackimo 云平台凭据配置
type TrackimoConfig struct {
	Host         string `yaml:"host"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	Username     string `yaml:"username"`
	Password     string `yaml:"password"`
	Offline      bool   `yaml:"offline"`
}

// ArventoConfig Arvento 报表服务凭据配置
type ArventoConfig struct {
	Host     string `yaml:"host"`
	Username string `yaml:"username"`
	PIN1     string `yaml:"pin1"`
	PIN2     string `yaml:"pin2"`
	Offline  bool   `yaml:"offline"`
}

// Load loads configuration from file
func Load(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// Apply environment overrides
	cfg.applyEnvOverrides()

	if err := cfg.validateAndSetDefaults(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// applyEnvOverrides applies environment variable overrides
func (c *Config) applyEnvOverrides() {
	if jwtSecret := os.Getenv("JWT_SECRET"); jwtSecret != "" {
		c.JWT.Secret = jwtSecret
	}

	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		c.Log.Level = logLevel
	}

	if hash := os.Getenv("ADMIN_PASSWORD_HASH"); hash != "" {
		c.Auth.AdminPasswordHash = hash
	}

	// 提供商凭据环境变量覆盖
	if v := os.Getenv("TRACKIMO_CLIENT_ID"); v != "" {
		c.Trackimo.ClientID = v
	}
	if v := os.Getenv("TRACKIMO_CLIENT_SECRET"); v != "" {
		c.Trackimo.ClientSecret = v
	}
	if v := os.Getenv("TRACKIMO_USERNAME"); v != "" {
		c.Trackimo.Username = v
	}
	if v := os.Getenv("TRACKIMO_PASSWORD"); v != "" {
		c.Trackimo.Password = v
	}
	if v := os.Getenv("ARVENTO_USERNAME"); v != "" {
		c.Arvento.Username = v
	}
	if v := os.Getenv("ARVENTO_PIN1"); v != "" {
		c.Arvento.PIN1 = v
	}
	if v := os.Getenv("ARVENTO_PIN2"); v != "" {
		c.Arvento.PIN2 = v
	}
}

// validateAndSetDefaults 验证配置并设置默认值
func (c *Config) validateAndSetDefaults() error {
	if c.Server.Name == "" {
		c.Server.Name = "gps-hub-server"
	}
	if c.Server.Version == "" {
		c.Server.Version = "1.0.0"
	}
	if c.API.Host == "" {
		c.API.Host = "0.0.0.0"
	}
	if c.API.Port == 0 {
		c.API.Port = 8000
	}
	if c.JWT.AccessTokenTTL == 0 {
		c.JWT.AccessTokenTTL = 15 * time.Minute
	}
	if c.JWT.RefreshTokenTTL == 0 {
		c.JWT.RefreshTokenTTL = 168 * time.Hour // 默认7天
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
	if c.Trackimo.Host == "" {
		c.Trackimo.Host = "app.trackimo.com" // 默认云端地址
	}

	if c.Auth.Enabled {
		if c.JWT.Secret == "" {
			// 未配置密钥时生成随机密钥,重启后旧令牌全部失效
			secret, err := crypto.GenerateRandomString(32)
			if err != nil {
				return fmt.Errorf("generate jwt secret: %w", err)
			}
			c.JWT.Secret = secret
			log.Warn().Msg("JWT secret not configured, generated a random one")
		}
		if c.Auth.AdminUser == "" {
			c.Auth.AdminUser = "admin"
		}
		if c.Auth.AdminPasswordHash == "" {
			return fmt.Errorf("auth enabled but admin_password_hash is not set")
		}
	}

	return nil
}

// PrintConfigSummary 打印配置摘要
func (c *Config) PrintConfigSummary() {
	fmt.Printf("=== GPS Hub Server Configuration ===\n")
	fmt.Printf("Server: %s v%s\n", c.Server.Name, c.Server.Version)
	fmt.Printf("API: %s:%d\n", c.API.Host, c.API.Port)
	fmt.Printf("Auth Enabled: %v\n", c.Auth.Enabled)
	fmt.Printf("Metrics Enabled: %v\n", c.Metrics.Enabled)

	trackimoMode := "live"
	if c.Trackimo.Offline {
		trackimoMode = "offline"
	}
	fmt.Printf("Trackimo: host=%s mode=%s\n", c.Trackimo.Host, trackimoMode)

	arventoMode := "live"
	if c.Arvento.Offline {
		arventoMode = "offline"
	}
	fmt.Printf("Arvento: host=%s mode=%s\n", c.Arvento.Host, arventoMode)
	fmt.Printf("====================================\n")
}
