package config

import (
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port                          string        `mapstructure:"PORT"`
	StoreBackend                  string        `mapstructure:"STORE_BACKEND"`
	DatabaseDriver                string        `mapstructure:"DATABASE_DRIVER"`
	DatabasePath                  string        `mapstructure:"DATABASE_PATH"`
	DatabaseDSN                   string        `mapstructure:"DATABASE_DSN"`
	SpreadsheetID                 string        `mapstructure:"GOOGLE_SHEETS_SPREADSHEET_ID"`
	ServiceAccountJSON            string        `mapstructure:"GOOGLE_SERVICE_ACCOUNT_JSON"`
	DiscordClientID               string        `mapstructure:"DISCORD_CLIENT_ID"`
	DiscordClientSecret           string        `mapstructure:"DISCORD_CLIENT_SECRET"`
	DiscordRedirectURL            string        `mapstructure:"DISCORD_REDIRECT_URL"`
	DiscordGuildID                string        `mapstructure:"DISCORD_GUILD_ID"`
	DiscordBotToken               string        `mapstructure:"DISCORD_BOT_TOKEN"`
	DiscordNotificationsChannelID string        `mapstructure:"DISCORD_NOTIFICATIONS_CHANNEL_ID"`
	TelegramBotToken              string        `mapstructure:"TELEGRAM_BOT_TOKEN"`
	JWTSecret                     string        `mapstructure:"JWT_SECRET"`
	FrontendURL                   string        `mapstructure:"FRONTEND_URL"`
	EnableCORS                    bool          `mapstructure:"ENABLE_CORS"`
	StaffIDs                      []string      `mapstructure:"STAFF_IDS"`
	RedisURL                      string        `mapstructure:"REDIS_URL"`
	RateLimitRequests             int           `mapstructure:"RATE_LIMIT_REQUESTS"`
	RateLimitWindow               time.Duration `mapstructure:"RATE_LIMIT_WINDOW"`
	NotifyTimeout                 time.Duration `mapstructure:"NOTIFY_TIMEOUT"`
	LogLevel                      string        `mapstructure:"LOG_LEVEL"`
	LogDevelopment                bool          `mapstructure:"LOG_DEVELOPMENT"`
	DefaultConfirmationTemplate   string        `mapstructure:"DEFAULT_CONFIRMATION_TEMPLATE"`
}

// IsStaffID reports whether a Discord id is configured as bootstrap staff.
func (c *Config) IsStaffID(id string) bool {
	for _, s := range c.StaffIDs {
		if strings.TrimSpace(s) == id {
			return true
		}
	}
	return false
}

func LoadConfig() *Config {
	viper.SetDefault("PORT", "8080")
	viper.SetDefault("STORE_BACKEND", "sql")
	viper.SetDefault("DATABASE_DRIVER", "sqlite")
	viper.SetDefault("DATABASE_PATH", "events.db")
	viper.SetDefault("DISCORD_REDIRECT_URL", "http://127.0.0.1:8080/auth/discord/callback")
	viper.SetDefault("FRONTEND_URL", "http://127.0.0.1:4000/")
	viper.SetDefault("RATE_LIMIT_REQUESTS", 20)
	viper.SetDefault("RATE_LIMIT_WINDOW", time.Minute)
	viper.SetDefault("NOTIFY_TIMEOUT", 10*time.Second)
	viper.SetDefault("LOG_LEVEL", "info")

	viper.BindEnv("STORE_BACKEND")
	viper.BindEnv("DATABASE_DRIVER")
	viper.BindEnv("DATABASE_PATH")
	viper.BindEnv("DATABASE_DSN")
	viper.BindEnv("GOOGLE_SHEETS_SPREADSHEET_ID")
	viper.BindEnv("GOOGLE_SERVICE_ACCOUNT_JSON")
	viper.BindEnv("DISCORD_CLIENT_ID")
	viper.BindEnv("DISCORD_CLIENT_SECRET")
	viper.BindEnv("DISCORD_GUILD_ID")
	viper.BindEnv("DISCORD_BOT_TOKEN")
	viper.BindEnv("DISCORD_NOTIFICATIONS_CHANNEL_ID")
	viper.BindEnv("TELEGRAM_BOT_TOKEN")
	viper.BindEnv("JWT_SECRET")
	viper.BindEnv("FRONTEND_URL")
	viper.BindEnv("ENABLE_CORS")
	viper.BindEnv("STAFF_IDS")
	viper.BindEnv("REDIS_URL")
	viper.BindEnv("LOG_DEVELOPMENT")
	viper.BindEnv("DEFAULT_CONFIRMATION_TEMPLATE")

	viper.AutomaticEnv()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		log.Fatalf("Unable to decode into struct, %v", err)
	}

	return &config
}
