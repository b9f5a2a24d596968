package config

import (
	"github.com/cockroachdb/errors"
	"github.com/spf13/viper"
)

// Config holds all configuration values.
type Config struct {
	// Scheduling API credentials (HTTP basic auth pair).
	AcuityBaseURL string `mapstructure:"ACUITY_BASE_URL"`
	AcuityUserID  string `mapstructure:"ACUITY_USER_ID"`
	AcuityAPIKey  string `mapstructure:"ACUITY_API_KEY"`

	// Notification delivery. An empty token selects the console notifier.
	DiscordAPIURL string `mapstructure:"DISCORD_API_URL"`
	DiscordToken  string `mapstructure:"DISCORD_TOKEN"`

	// Static membership data.
	StaffFile  string `mapstructure:"STAFF_FILE"`
	ExemptFile string `mapstructure:"EXEMPT_FILE"`

	// Run record database.
	DatabasePath string `mapstructure:"DATABASE_PATH"`

	// Admin API and scheduling.
	AdminPort int `mapstructure:"ADMIN_PORT"`
	RunHour   int `mapstructure:"RUN_HOUR"`

	Env string `mapstructure:"ENV"`
}

// Load reads configuration from config.yaml (current directory or
// ./config) with environment variables taking precedence.
func Load() (Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AutomaticEnv()

	viper.SetDefault("ACUITY_BASE_URL", "https://acuityscheduling.com/api/v1/")
	viper.SetDefault("ACUITY_USER_ID", "")
	viper.SetDefault("ACUITY_API_KEY", "")
	viper.SetDefault("DISCORD_API_URL", "")
	viper.SetDefault("DISCORD_TOKEN", "")
	viper.SetDefault("STAFF_FILE", "staff_details.json")
	viper.SetDefault("EXEMPT_FILE", "exempt_students.txt")
	viper.SetDefault("DATABASE_PATH", "reconciler.db")
	viper.SetDefault("ADMIN_PORT", 8080)
	viper.SetDefault("RUN_HOUR", 6)
	viper.SetDefault("ENV", "production")

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, errors.Wrap(err, "read config file")
		}
		// No config file is fine; environment variables cover it.
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return Config{}, errors.Wrap(err, "unmarshal config")
	}

	if cfg.AcuityUserID == "" || cfg.AcuityAPIKey == "" {
		return Config{}, errors.New("ACUITY_USER_ID and ACUITY_API_KEY are required")
	}
	return cfg, nil
}

// IsDevelopment reports whether the service runs in development mode
// (human-readable logs, debug level).
func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}
