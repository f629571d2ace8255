package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/halcyon-auth/halcyon/domain"
)

// ServerConfig holds the issuer-level settings consumed by the token core
// and its store adapters. Tags use mapstructure for viper unmarshalling.
type ServerConfig struct {
	Issuer string `mapstructure:"ISSUER"`

	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogPretty bool   `mapstructure:"LOG_PRETTY"`

	MongoURI    string `mapstructure:"MONGO_URI"`
	MongoDBName string `mapstructure:"MONGO_DB_NAME"`
	RedisAddr   string `mapstructure:"REDIS_ADDR"`

	AccessTokenTTLMin        int `mapstructure:"ACCESS_TOKEN_TTL_MIN"`
	IdentityTokenTTLMin      int `mapstructure:"IDENTITY_TOKEN_TTL_MIN"`
	AuthorizationCodeTTLMin  int `mapstructure:"AUTHORIZATION_CODE_TTL_MIN"`
	RefreshTokenTTLHour      int `mapstructure:"REFRESH_TOKEN_TTL_HOUR"`
	RefreshTokenIdleTimeoutH int `mapstructure:"REFRESH_TOKEN_IDLE_TIMEOUT_HOUR"`

	// Interaction page destinations owned by the external UI. An empty
	// CreateAccountURL leaves prompt=create unrecognized.
	LoginURL         string `mapstructure:"LOGIN_URL"`
	ConsentURL       string `mapstructure:"CONSENT_URL"`
	CreateAccountURL string `mapstructure:"CREATE_ACCOUNT_URL"`

	// SupportedPromptValues overrides the recognized prompt modes. Leave
	// empty for the default set.
	SupportedPromptValues []string `mapstructure:"SUPPORTED_PROMPT_VALUES"`

	// ValidateTenant enables tenant-hint enforcement in the interaction
	// generator.
	ValidateTenant bool `mapstructure:"VALIDATE_TENANT"`
}

// AccessTokenTTL returns the configured access token lifetime.
func (c *ServerConfig) AccessTokenTTL() time.Duration {
	return time.Duration(c.AccessTokenTTLMin) * time.Minute
}

// AuthorizationCodeTTL returns the configured authorization code lifetime.
func (c *ServerConfig) AuthorizationCodeTTL() time.Duration {
	return time.Duration(c.AuthorizationCodeTTLMin) * time.Minute
}

// IdentityTokenTTL returns the configured identity token lifetime.
func (c *ServerConfig) IdentityTokenTTL() time.Duration {
	return time.Duration(c.IdentityTokenTTLMin) * time.Minute
}

// RefreshTokenTTL returns the configured refresh token lifetime.
func (c *ServerConfig) RefreshTokenTTL() time.Duration {
	return time.Duration(c.RefreshTokenTTLHour) * time.Hour
}

// RefreshTokenIdleTimeout returns the configured sliding-window timeout.
// Zero disables the sliding window.
func (c *ServerConfig) RefreshTokenIdleTimeout() time.Duration {
	return time.Duration(c.RefreshTokenIdleTimeoutH) * time.Hour
}

// InteractionURLs returns the interaction page destinations for the
// interaction response generator.
func (c *ServerConfig) InteractionURLs() domain.InteractionURLs {
	return domain.InteractionURLs{
		LoginURL:         c.LoginURL,
		ConsentURL:       c.ConsentURL,
		CreateAccountURL: c.CreateAccountURL,
	}
}

// LoadConfig reads configuration from file, environment variables and
// defaults.
func LoadConfig() (*ServerConfig, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/halcyon/")
	v.AddConfigPath("$HOME/.halcyon")
	v.AddConfigPath(".")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("ISSUER", "https://localhost:8443")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_PRETTY", true)
	v.SetDefault("MONGO_URI", "mongodb://localhost:27017/halcyon_dev")
	v.SetDefault("MONGO_DB_NAME", "halcyon_dev")
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("ACCESS_TOKEN_TTL_MIN", 60)
	v.SetDefault("IDENTITY_TOKEN_TTL_MIN", 5)
	v.SetDefault("AUTHORIZATION_CODE_TTL_MIN", 5)
	v.SetDefault("REFRESH_TOKEN_TTL_HOUR", 720)
	v.SetDefault("REFRESH_TOKEN_IDLE_TIMEOUT_HOUR", 0)
	v.SetDefault("LOGIN_URL", "/account/login")
	v.SetDefault("CONSENT_URL", "/account/consent")
	v.SetDefault("CREATE_ACCOUNT_URL", "")
	v.SetDefault("VALIDATE_TENANT", false)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg ServerConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	return &cfg, nil
}
