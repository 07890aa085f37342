package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DBDSN       string `mapstructure:"DB_DSN"`
	Environment string `mapstructure:"ENV"`
	LogLevel    string `mapstructure:"LOG_LEVEL"` // пусто - уровень по умолчанию для окружения
	HTTPAddr    string `mapstructure:"HTTP_ADDR"`
	RedisURL    string `mapstructure:"REDIS_URL"` // пусто - кэш отключён

	TelegramToken string `mapstructure:"TELEGRAM_TOKEN"` // пусто - уведомления только в лог

	MeetingAPIURL          string        `mapstructure:"MEETING_API_URL"`
	MeetingAPIToken        string        `mapstructure:"MEETING_API_TOKEN"`
	MeetingTimeout         time.Duration `mapstructure:"MEETING_TIMEOUT"`
	MeetingFallbackBaseURL string        `mapstructure:"MEETING_FALLBACK_BASE_URL"`

	SummonDefaultHour     int            `mapstructure:"SUMMON_DEFAULT_HOUR"`
	SummonDurationMinutes int            `mapstructure:"SUMMON_DURATION_MINUTES"`
	Timezone              string         `mapstructure:"TIMEZONE"`
	Location              *time.Location `mapstructure:"-"`

	NotifyTimeout    time.Duration `mapstructure:"NOTIFY_TIMEOUT"`
	ReminderInterval time.Duration `mapstructure:"REMINDER_INTERVAL"`
	ReminderWindow   time.Duration `mapstructure:"REMINDER_WINDOW"`

	RateLimitRPS   float64 `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst int     `mapstructure:"RATE_LIMIT_BURST"`

	SlotCacheTTL      time.Duration `mapstructure:"SLOT_CACHE_TTL"`
	MigrationsEnabled bool          `mapstructure:"MIGRATIONS_ENABLED"`
}

func Load() (*Config, error) {
	// Пытаемся загрузить .env файл (игнорируем ошибку, если файла нет)
	if err := godotenv.Load(".env"); err != nil {
		log.Println("⚠️  No .env file found, using environment variables")
	} else {
		log.Println("✅ Loaded configuration from .env file")
	}

	return FromEnv(os.Getenv)
}

// FromEnv builds the config from a lookup function, applying defaults.
func FromEnv(getenv func(string) string) (*Config, error) {
	p := parser{getenv: getenv}

	cfg := &Config{
		DBDSN:                  getenv("DB_DSN"),
		Environment:            p.str("ENV", "development"),
		LogLevel:               getenv("LOG_LEVEL"),
		HTTPAddr:               p.str("HTTP_ADDR", ":8080"),
		RedisURL:               getenv("REDIS_URL"),
		TelegramToken:          getenv("TELEGRAM_TOKEN"),
		MeetingAPIURL:          getenv("MEETING_API_URL"),
		MeetingAPIToken:        getenv("MEETING_API_TOKEN"),
		MeetingTimeout:         p.duration("MEETING_TIMEOUT", 5*time.Second),
		MeetingFallbackBaseURL: p.str("MEETING_FALLBACK_BASE_URL", "https://meet.jit.si"),
		SummonDefaultHour:      p.integer("SUMMON_DEFAULT_HOUR", 10),
		SummonDurationMinutes:  p.integer("SUMMON_DURATION_MINUTES", 60),
		Timezone:               p.str("TIMEZONE", "UTC"),
		NotifyTimeout:          p.duration("NOTIFY_TIMEOUT", 10*time.Second),
		ReminderInterval:       p.duration("REMINDER_INTERVAL", 15*time.Minute),
		ReminderWindow:         p.duration("REMINDER_WINDOW", 24*time.Hour),
		RateLimitRPS:           p.number("RATE_LIMIT_RPS", 10),
		RateLimitBurst:         p.integer("RATE_LIMIT_BURST", 20),
		SlotCacheTTL:           p.duration("SLOT_CACHE_TTL", 30*time.Second),
		MigrationsEnabled:      p.boolean("MIGRATIONS_ENABLED", true),
	}
	if p.err != nil {
		return nil, p.err
	}

	// Проверяем обязательные поля
	if cfg.DBDSN == "" {
		return nil, fmt.Errorf("DB_DSN is required but not set")
	}
	if cfg.SummonDefaultHour < 0 || cfg.SummonDefaultHour > 23 {
		return nil, fmt.Errorf("SUMMON_DEFAULT_HOUR must be between 0 and 23, got %d", cfg.SummonDefaultHour)
	}
	if cfg.SummonDurationMinutes <= 0 {
		return nil, fmt.Errorf("SUMMON_DURATION_MINUTES must be positive, got %d", cfg.SummonDurationMinutes)
	}
	if cfg.RateLimitRPS <= 0 || cfg.RateLimitBurst <= 0 {
		return nil, fmt.Errorf("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive")
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load TIMEZONE %q: %w", cfg.Timezone, err)
	}
	cfg.Location = loc

	return cfg, nil
}

func (c *Config) SummonDuration() time.Duration {
	return time.Duration(c.SummonDurationMinutes) * time.Minute
}

// parser remembers the first malformed variable.
type parser struct {
	getenv func(string) string
	err    error
}

func (p *parser) str(key, def string) string {
	if v := p.getenv(key); v != "" {
		return v
	}
	return def
}

func (p *parser) integer(key string, def int) int {
	v := p.getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.fail(key, v, err)
		return def
	}
	return n
}

func (p *parser) number(key string, def float64) float64 {
	v := p.getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		p.fail(key, v, err)
		return def
	}
	return f
}

func (p *parser) boolean(key string, def bool) bool {
	v := p.getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.fail(key, v, err)
		return def
	}
	return b
}

func (p *parser) duration(key string, def time.Duration) time.Duration {
	v := p.getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		if err == nil {
			err = fmt.Errorf("must be positive")
		}
		p.fail(key, v, err)
		return def
	}
	return d
}

func (p *parser) fail(key, value string, err error) {
	if p.err == nil {
		p.err = fmt.Errorf("invalid %s=%q: %w", key, value, err)
	}
}
