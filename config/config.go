package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

var configFile string

// Config holds all application configuration
type Config struct {
	Environment string          `mapstructure:"environment" validate:"required"`
	Server      ServerConfig    `mapstructure:"server"`
	Logging     LoggingConfig   `mapstructure:"logging"`
	DB          DatabaseConfig  `mapstructure:"database"`
	Analytics   AnalyticsConfig `mapstructure:"analytics"`
	Cache       CacheConfig     `mapstructure:"cache"`
	Redis       RedisConfig     `mapstructure:"redis"`
	Azure       AzureConfig     `mapstructure:"azure"`
	Elastic     ElasticConfig   `mapstructure:"elastic"`
	Tracing     TracingConfig   `mapstructure:"tracing"`
	Worker      WorkerConfig    `mapstructure:"worker"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Address        string        `mapstructure:"address" validate:"required"`
	Timeout        time.Duration `mapstructure:"timeout"`
	RateLimit      float64       `mapstructure:"rate_limit" validate:"gte=0"`
	RateBurst      int           `mapstructure:"rate_burst" validate:"gte=0"`
	MetricsEnabled bool          `mapstructure:"metrics_enabled"`
}

// LoggingConfig holds logger configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=json console"`
}

// DatabaseConfig holds MongoDB connection parameters.
//
// The defaults point at the course environment the dataset was published on;
// the password has no default and must be supplied by the config file or
// SHELTER_DATABASE_PASSWORD.
type DatabaseConfig struct {
	Scheme         string        `mapstructure:"scheme" validate:"required,oneof=mongodb mongodb+srv"`
	User           string        `mapstructure:"user"`
	Password       string        `mapstructure:"password"`
	Host           string        `mapstructure:"host" validate:"required"`
	Port           int           `mapstructure:"port" validate:"gte=0,lte=65535"`
	Name           string        `mapstructure:"name" validate:"required"`
	Collection     string        `mapstructure:"collection" validate:"required"`
	AuthSource     string        `mapstructure:"auth_source"`
	Timeout        time.Duration `mapstructure:"timeout"`
	ConnectRetries uint64        `mapstructure:"connect_retries"`
	MaxPoolSize    uint64        `mapstructure:"max_pool_size"`
}

// AnalyticsConfig holds report configuration
type AnalyticsConfig struct {
	// SeasonalDateField is the date field whose month buckets the seasonal
	// adoption report.
	SeasonalDateField string `mapstructure:"seasonal_date_field" validate:"required"`
}

// CacheConfig holds report cache configuration
type CacheConfig struct {
	ReportTTL time.Duration `mapstructure:"report_ttl"`
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Enabled  bool   `mapstructure:"enabled"`
}

// AzureConfig holds Azure Service Bus configuration
type AzureConfig struct {
	QueueConnStr string `mapstructure:"queue_conn_str"`
	QueueName    string `mapstructure:"queue_name"`
}

// ElasticConfig holds Elasticsearch configuration
type ElasticConfig struct {
	URL      string `mapstructure:"url"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Prefix   string `mapstructure:"prefix"`
	Index    string `mapstructure:"index"`
	Enabled  bool   `mapstructure:"enabled"`
}

// TracingConfig holds tracing configuration
type TracingConfig struct {
	LicenseKey     string `mapstructure:"license_key"`
	AppName        string `mapstructure:"app_name"`
	LogEnabled     bool   `mapstructure:"log_enabled"`
	DistribTracing bool   `mapstructure:"distributed_tracing_enabled"`
}

// WorkerConfig holds background worker configuration
type WorkerConfig struct {
	ReportRefreshInterval time.Duration `mapstructure:"report_refresh_interval" validate:"gt=0"`
}

// SetConfigFile sets an explicit config file path used by LoadConfig
func SetConfigFile(file string) {
	configFile = file
}

// LoadConfig reads configuration from file or environment variables
func LoadConfig(path string) (Config, error) {
	v := viper.New()

	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.AddConfigPath(path)
		v.AddConfigPath("./config")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok && configFile == "" {
			v.SetConfigName("app")
			v.SetConfigType("env")
			// No config file at all is fine: defaults and ENV vars remain.
			_ = v.ReadInConfig()
		} else {
			return Config{}, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("SHELTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return Config{}, fmt.Errorf("unable to unmarshal config: %w", err)
	}

	if err := validator.New().Struct(config); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// setDefaults sets default values for configuration.
//
// Every key must have a default, otherwise AutomaticEnv cannot override it
// during Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")

	v.SetDefault("server.address", "0.0.0.0:8080")
	v.SetDefault("server.timeout", "30s")
	v.SetDefault("server.rate_limit", 50)
	v.SetDefault("server.rate_burst", 100)
	v.SetDefault("server.metrics_enabled", true)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("database.scheme", "mongodb")
	v.SetDefault("database.user", "aacuser")
	v.SetDefault("database.password", "")
	v.SetDefault("database.host", "nv-desktop-services.apporto.com")
	v.SetDefault("database.port", 32390)
	v.SetDefault("database.name", "AAC")
	v.SetDefault("database.collection", "animals")
	v.SetDefault("database.auth_source", "admin")
	v.SetDefault("database.timeout", "10s")
	v.SetDefault("database.connect_retries", 5)
	v.SetDefault("database.max_pool_size", 50)

	v.SetDefault("analytics.seasonal_date_field", "date_of_birth")

	v.SetDefault("cache.report_ttl", "10m")

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.enabled", false)

	v.SetDefault("azure.queue_conn_str", "")
	v.SetDefault("azure.queue_name", "animal-intakes")

	v.SetDefault("elastic.url", "http://localhost:9200")
	v.SetDefault("elastic.username", "")
	v.SetDefault("elastic.password", "")
	v.SetDefault("elastic.prefix", "shelter")
	v.SetDefault("elastic.index", "animals")
	v.SetDefault("elastic.enabled", false)

	v.SetDefault("tracing.license_key", "")
	v.SetDefault("tracing.app_name", "Shelter Service")
	v.SetDefault("tracing.log_enabled", true)
	v.SetDefault("tracing.distributed_tracing_enabled", true)

	v.SetDefault("worker.report_refresh_interval", "15m")
}

// FormatIndex formats an Elasticsearch index name with the configured prefix
func FormatIndex(cfg ElasticConfig, index string) string {
	return cfg.Prefix + "-" + index
}
