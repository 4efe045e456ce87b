package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Host string
	Port string

	LogLevel       string
	LogDevelopment bool

	// RateLimit is requests per second per client address; 0 disables it.
	RateLimit float64
	RateBurst int

	FeedInterval   time.Duration
	ReportInterval time.Duration

	MaxBodyBytes    int64
	ShutdownTimeout time.Duration

	KafkaBrokers []string
	KafkaTopic   string
}

func Default() *Config {
	return &Config{
		Host:            "0.0.0.0",
		Port:            "8080",
		LogLevel:        "info",
		RateBurst:       20,
		FeedInterval:    time.Second,
		ReportInterval:  time.Minute,
		MaxBodyBytes:    1 << 20,
		ShutdownTimeout: 10 * time.Second,
		KafkaTopic:      "flight_events",
	}
}

// Addr is the listen address.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, c.Port)
}

// Load reads the configuration from the environment, falling back to the
// defaults for unset variables.
func Load() (*Config, error) {
	return load(os.Getenv)
}

func load(getenv func(string) string) (*Config, error) {
	c := Default()
	p := parser{getenv: getenv}

	p.str("HOST", &c.Host)
	p.str("PORT", &c.Port)
	p.str("LOG_LEVEL", &c.LogLevel)
	p.boolean("LOG_DEVELOPMENT", &c.LogDevelopment)
	p.float("RATE_LIMIT", &c.RateLimit)
	p.integer("RATE_BURST", &c.RateBurst)
	p.duration("FEED_INTERVAL", &c.FeedInterval)
	p.duration("REPORT_INTERVAL", &c.ReportInterval)
	p.int64("MAX_BODY_BYTES", &c.MaxBodyBytes)
	p.duration("SHUTDOWN_TIMEOUT", &c.ShutdownTimeout)
	p.str("KAFKA_TOPIC", &c.KafkaTopic)
	if v := getenv("KAFKA_BROKERS"); v != "" {
		for _, b := range strings.Split(v, ",") {
			if b = strings.TrimSpace(b); b != "" {
				c.KafkaBrokers = append(c.KafkaBrokers, b)
			}
		}
	}

	if p.err != nil {
		return nil, p.err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) Validate() error {
	if c.RateLimit < 0 {
		return fmt.Errorf("RATE_LIMIT must not be negative, got %v", c.RateLimit)
	}
	if c.RateLimit > 0 && c.RateBurst <= 0 {
		return fmt.Errorf("RATE_BURST must be positive when rate limiting, got %d", c.RateBurst)
	}
	// The scheduler runs at whole-second resolution.
	if c.FeedInterval < time.Second {
		return fmt.Errorf("FEED_INTERVAL must be at least 1s, got %s", c.FeedInterval)
	}
	if c.ReportInterval < time.Second {
		return fmt.Errorf("REPORT_INTERVAL must be at least 1s, got %s", c.ReportInterval)
	}
	if c.MaxBodyBytes <= 0 {
		return fmt.Errorf("MAX_BODY_BYTES must be positive, got %d", c.MaxBodyBytes)
	}
	if len(c.KafkaBrokers) > 0 && c.KafkaTopic == "" {
		return fmt.Errorf("KAFKA_TOPIC must be set when KAFKA_BROKERS is")
	}
	return nil
}

// parser keeps the first error so Load can report it once.
type parser struct {
	getenv func(string) string
	err    error
}

func (p *parser) str(key string, dst *string) {
	if v := p.getenv(key); v != "" {
		*dst = v
	}
}

func (p *parser) boolean(key string, dst *bool) {
	p.parse(key, func(v string) error {
		b, err := strconv.ParseBool(v)
		*dst = b
		return err
	})
}

func (p *parser) integer(key string, dst *int) {
	p.parse(key, func(v string) error {
		n, err := strconv.Atoi(v)
		*dst = n
		return err
	})
}

func (p *parser) int64(key string, dst *int64) {
	p.parse(key, func(v string) error {
		n, err := strconv.ParseInt(v, 10, 64)
		*dst = n
		return err
	})
}

func (p *parser) float(key string, dst *float64) {
	p.parse(key, func(v string) error {
		f, err := strconv.ParseFloat(v, 64)
		*dst = f
		return err
	})
}

func (p *parser) duration(key string, dst *time.Duration) {
	p.parse(key, func(v string) error {
		d, err := time.ParseDuration(v)
		*dst = d
		return err
	})
}

func (p *parser) parse(key string, fn func(string) error) {
	v := p.getenv(key)
	if v == "" || p.err != nil {
		return
	}
	if err := fn(v); err != nil {
		p.err = fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
}
