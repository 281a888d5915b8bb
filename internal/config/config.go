package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the configuration for the application.
type Config struct {
	App struct {
		Name          string `mapstructure:"name"`
		Environment   string `mapstructure:"environment"`
		DevModeBypass bool   `mapstructure:"dev_mode_bypass"`
	} `mapstructure:"app"`
	DB struct {
		Host     string `mapstructure:"host"`
		Port     int    `mapstructure:"port"`
		User     string `mapstructure:"user"`
		Password string `mapstructure:"password"`
		Name     string `mapstructure:"name"`
		SSLMode  string `mapstructure:"sslmode"`
	} `mapstructure:"db"`
	Auth struct {
		JWTSecret       string `mapstructure:"jwt_secret"`
		TokenTTLMinutes int    `mapstructure:"token_ttl_minutes"`
		// Issuer enables SSO mode: when set, bearer tokens are verified
		// against this OIDC issuer instead of the local JWT secret.
		Issuer   string `mapstructure:"issuer"`
		ClientID string `mapstructure:"client_id"`
	} `mapstructure:"auth"`
	Search struct {
		URL        string        `mapstructure:"url"`
		APIKey     string        `mapstructure:"api_key"`
		MaxResults int           `mapstructure:"max_results"`
		Timeout    time.Duration `mapstructure:"timeout"`
	} `mapstructure:"search"`
	Generation struct {
		URL     string        `mapstructure:"url"`
		APIKey  string        `mapstructure:"api_key"`
		Model   string        `mapstructure:"model"`
		Timeout time.Duration `mapstructure:"timeout"`
	} `mapstructure:"generation"`
	MCP struct {
		// ServiceAccountEmail identifies the user that MCP tool calls run as.
		ServiceAccountEmail string `mapstructure:"service_account_email"`
	} `mapstructure:"mcp"`
	TLS struct {
		Enable    bool     `mapstructure:"enable"`
		CertFile  string   `mapstructure:"cert_file"`
		KeyFile   string   `mapstructure:"key_file"`
		Hostnames []string `mapstructure:"hostnames"`
	} `mapstructure:"tls"`
}

// LoadConfig loads the configuration from a file and the environment.
func LoadConfig(path string) (*Config, error) {
	if path != "" {
		viper.SetConfigFile(path)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("./config")
	}
	viper.AutomaticEnv()

	viper.SetDefault("app.name", "matchpost")
	viper.SetDefault("auth.token_ttl_minutes", 30)
	viper.SetDefault("search.url", "https://api.tavily.com")
	viper.SetDefault("search.max_results", 2)
	viper.SetDefault("search.timeout", 15*time.Second)
	viper.SetDefault("generation.url", "https://generativelanguage.googleapis.com")
	viper.SetDefault("generation.model", "gemini-2.0-flash")
	viper.SetDefault("generation.timeout", 30*time.Second)

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	// normalize the OIDC issuer url (strip trailing slash if any)
	config.Auth.Issuer = normalizeIssuer(config.Auth.Issuer)

	return &config, nil
}

// normalizeIssuer ensures the provided OIDC issuer string is in a predictable
// form. It removes any trailing slash and leaves the scheme and path intact,
// so the URL can be pasted verbatim from the provider's admin console.
func normalizeIssuer(input string) string {
	iss := strings.TrimSpace(input)
	if strings.HasSuffix(iss, "/") {
		iss = strings.TrimRight(iss, "/")
	}
	return iss
}
