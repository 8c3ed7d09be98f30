package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ErrMissingConfig is returned when a required setting is absent at startup.
var ErrMissingConfig = errors.New("missing required configuration")

type Config struct {
	App      AppConfig
	Log      LogConfig
	DB       DBConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Twilio   TwilioConfig
	Geocoder GeocoderConfig
	Location LocationConfig
	Limiter  LimiterConfig
}

type AppConfig struct {
	Port string
	Env  string
}

type LogConfig struct {
	Level      string
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

type DBConfig struct {
	Host          string
	Port          string
	User          string
	Password      string
	Name          string
	MigrationsRun bool
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type JWTConfig struct {
	Secret       string
	AccessExpiry time.Duration
}

type TwilioConfig struct {
	AccountSID    string
	AuthToken     string
	FromPhone     string
	ReceiverPhone string
}

type GeocoderConfig struct {
	APIKey   string
	BaseURL  string
	Timeout  time.Duration
	CacheTTL time.Duration
}

type LocationConfig struct {
	Timeout   time.Duration
	MaxAge    time.Duration
	GeoIPPath string
}

type LimiterConfig struct {
	LoginRate string
}

// LoadConfig reads .env (when present) and the process environment.
// Messaging and geocoding credentials are mandatory.
func LoadConfig() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	// .env is optional; the environment alone is enough in containers
	if err := v.ReadInConfig(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	v.SetDefault("APP_PORT", "5000")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_MAX_SIZE_MB", 100)
	v.SetDefault("LOG_MAX_BACKUPS", 5)
	v.SetDefault("LOG_MAX_AGE_DAYS", 28)
	v.SetDefault("DB_MIGRATE", true)
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("OPENCAGE_BASE_URL", "https://api.opencagedata.com")
	v.SetDefault("LOGIN_RATE_LIMIT", "10-M")

	cfg := &Config{
		App: AppConfig{
			Port: v.GetString("APP_PORT"),
			Env:  v.GetString("APP_ENV"),
		},
		Log: LogConfig{
			Level:      v.GetString("LOG_LEVEL"),
			File:       v.GetString("LOG_FILE"),
			MaxSizeMB:  v.GetInt("LOG_MAX_SIZE_MB"),
			MaxBackups: v.GetInt("LOG_MAX_BACKUPS"),
			MaxAgeDays: v.GetInt("LOG_MAX_AGE_DAYS"),
		},
		DB: DBConfig{
			Host:          v.GetString("DB_HOST"),
			Port:          v.GetString("DB_PORT"),
			User:          v.GetString("DB_USER"),
			Password:      v.GetString("DB_PASSWORD"),
			Name:          v.GetString("DB_NAME"),
			MigrationsRun: v.GetBool("DB_MIGRATE"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("REDIS_HOST"),
			Port:     v.GetString("REDIS_PORT"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		JWT: JWTConfig{
			Secret:       v.GetString("JWT_SECRET"),
			AccessExpiry: durationOr(v, "JWT_ACCESS_EXPIRY", 2*time.Hour),
		},
		Twilio: TwilioConfig{
			AccountSID:    v.GetString("TWILIO_ACCOUNT_SID"),
			AuthToken:     v.GetString("TWILIO_AUTH_TOKEN"),
			FromPhone:     v.GetString("TWILIO_PHONE"),
			ReceiverPhone: v.GetString("ALERT_RECEIVER_PHONE"),
		},
		Geocoder: GeocoderConfig{
			APIKey:   v.GetString("OPENCAGE_API_KEY"),
			BaseURL:  v.GetString("OPENCAGE_BASE_URL"),
			Timeout:  durationOr(v, "OPENCAGE_TIMEOUT", 5*time.Second),
			CacheTTL: durationOr(v, "OPENCAGE_CACHE_TTL", time.Hour),
		},
		Location: LocationConfig{
			Timeout:   durationOr(v, "LOCATION_TIMEOUT", 10*time.Second),
			MaxAge:    durationOr(v, "LOCATION_MAX_AGE", 10*time.Minute),
			GeoIPPath: v.GetString("GEOIP_DB_PATH"),
		},
		Limiter: LimiterConfig{
			LoginRate: v.GetString("LOGIN_RATE_LIMIT"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate reports every required key that is empty.
func (c *Config) Validate() error {
	required := []struct {
		key   string
		value string
	}{
		{"TWILIO_ACCOUNT_SID", c.Twilio.AccountSID},
		{"TWILIO_AUTH_TOKEN", c.Twilio.AuthToken},
		{"TWILIO_PHONE", c.Twilio.FromPhone},
		{"ALERT_RECEIVER_PHONE", c.Twilio.ReceiverPhone},
		{"OPENCAGE_API_KEY", c.Geocoder.APIKey},
		{"JWT_SECRET", c.JWT.Secret},
	}

	var missing []string
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			missing = append(missing, r.key)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingConfig, strings.Join(missing, ", "))
	}

	return nil
}

func durationOr(v *viper.Viper, key string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(v.GetString(key))
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
