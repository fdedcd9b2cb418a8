package config

import (
	"github.com/spf13/viper"
)

// Config stores all configuration for the application.
type Config struct {
	ServerPort string `mapstructure:"SERVER_PORT"`

	PostgresURL string `mapstructure:"POSTGRES_URL"`
	RedisAddr   string `mapstructure:"REDIS_ADDR"`

	FirecrawlAPIKey  string `mapstructure:"FIRECRAWL_API_KEY"`
	FirecrawlBaseURL string `mapstructure:"FIRECRAWL_BASE_URL"`

	ScrapeTotalLimit   int `mapstructure:"SCRAPE_TOTAL_LIMIT"`
	ScrapeSiteOverhead int `mapstructure:"SCRAPE_SITE_OVERHEAD"`
	ScrapeWaitMs       int `mapstructure:"SCRAPE_WAIT_MS"`
	MaxConcurrentSites int `mapstructure:"MAX_CONCURRENT_SITES"`

	InsertBatchSize int `mapstructure:"INSERT_BATCH_SIZE"`
	UpsertBatchSize int `mapstructure:"UPSERT_BATCH_SIZE"`
	RefreshLimit    int `mapstructure:"REFRESH_LIMIT"`

	DefaultLocation string `mapstructure:"DEFAULT_LOCATION"`
	DefaultCountry  string `mapstructure:"DEFAULT_COUNTRY"`

	SyntheticFill     bool `mapstructure:"SYNTHETIC_FILL"`
	BrowserImageFetch bool `mapstructure:"BROWSER_IMAGE_FETCH"`

	RecentURLTTLDays int `mapstructure:"RECENT_URL_TTL_DAYS"`
}

// Load reads configuration from file or environment variables.
func Load() (*Config, error) {
	viper.SetConfigFile(".env")
	viper.SetConfigType("env")
	viper.AutomaticEnv()

	// Attempt to read the .env file, but don't fail if it's not present.
	// This allows configuration purely through environment variables in production.
	_ = viper.ReadInConfig()

	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("FIRECRAWL_BASE_URL", "https://api.firecrawl.dev")
	viper.SetDefault("SCRAPE_TOTAL_LIMIT", 50)
	viper.SetDefault("SCRAPE_SITE_OVERHEAD", 2)
	viper.SetDefault("SCRAPE_WAIT_MS", 5000)
	viper.SetDefault("MAX_CONCURRENT_SITES", 0) // 0 = one goroutine per site, uncapped
	viper.SetDefault("INSERT_BATCH_SIZE", 20)
	viper.SetDefault("UPSERT_BATCH_SIZE", 50)
	viper.SetDefault("REFRESH_LIMIT", 500)
	viper.SetDefault("DEFAULT_LOCATION", "South Africa")
	viper.SetDefault("DEFAULT_COUNTRY", "South Africa")
	viper.SetDefault("SYNTHETIC_FILL", false)
	viper.SetDefault("BROWSER_IMAGE_FETCH", false)
	viper.SetDefault("RECENT_URL_TTL_DAYS", 2)

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
