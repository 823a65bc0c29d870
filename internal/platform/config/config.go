// Package config reads process configuration from the environment. An
// optional .env file in the working directory is loaded first; variables
// already set in the environment win.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Bank source kinds.
const (
	SourceFile   = "file"
	SourceHTTP   = "http"
	SourceObject = "s3"
)

// Config is the full service configuration.
type Config struct {
	Server Server
	Log    LogConfig
	Redis  RedisConfig
	Bank   BankConfig
	Search SearchConfig
	Menu   MenuConfig
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string
	TrustProxy      bool
	MaxBodyBytes    int64
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

type LogConfig struct {
	Level  string
	Format string
}

// RedisConfig holds connection settings for the vote counter store.
type RedisConfig struct {
	URL          string
	HashKey      string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// BankConfig says where the registry snapshot lives and how often to re-read it.
type BankConfig struct {
	Source         string
	Path           string
	URL            string
	FetchTimeout   time.Duration
	ReloadInterval time.Duration
	Watch          bool
	Compress       bool
	Object         ObjectConfig
}

type ObjectConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Key       string
	UseTLS    bool
}

// SearchConfig configures the search document feed. With no brokers the
// documents are only logged.
type SearchConfig struct {
	Brokers     []string
	Topic       string
	Partitions  int32
	Replication int16
	Interval    time.Duration
}

// MenuConfig configures the dining menu feed used by the builder.
type MenuConfig struct {
	Endpoint      string
	Timeout       time.Duration
	RatePerSecond float64
	Burst         int
	DaysBefore    int
	DaysAfter     int
}

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() (Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	r := &reader{}
	cfg := Config{
		Server: Server{
			Addr:            r.str("FOODVOTE_ADDR", ":8080"),
			TrustProxy:      r.boolean("FOODVOTE_TRUST_PROXY", false),
			MaxBodyBytes:    int64(r.integer("FOODVOTE_MAX_BODY_BYTES", 64<<10)),
			ReadTimeout:     r.duration("FOODVOTE_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    r.duration("FOODVOTE_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:     r.duration("FOODVOTE_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: r.duration("FOODVOTE_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Log: LogConfig{
			Level:  r.str("LOG_LEVEL", "info"),
			Format: r.str("LOG_FORMAT", "json"),
		},
		Redis: RedisConfig{
			URL:          r.secret("REDIS_URL", "redis://localhost:6379/0"),
			HashKey:      r.str("REDIS_VOTES_KEY", "food:votes"),
			PoolSize:     r.integer("REDIS_POOL_SIZE", 20),
			MinIdleConns: r.integer("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  r.duration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  r.duration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: r.duration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Bank: BankConfig{
			Source:         strings.ToLower(r.str("BANK_SOURCE", SourceFile)),
			Path:           r.str("BANK_PATH", "bank.bin"),
			URL:            r.str("BANK_URL", ""),
			FetchTimeout:   r.duration("BANK_FETCH_TIMEOUT", 30*time.Second),
			ReloadInterval: r.duration("BANK_RELOAD_INTERVAL", 5*time.Minute),
			Watch:          r.boolean("BANK_WATCH", true),
			Compress:       r.boolean("BANK_COMPRESS", false),
			Object: ObjectConfig{
				Endpoint:  r.str("BANK_S3_ENDPOINT", ""),
				AccessKey: r.secret("BANK_S3_ACCESS_KEY", ""),
				SecretKey: r.secret("BANK_S3_SECRET_KEY", ""),
				Bucket:    r.str("BANK_S3_BUCKET", ""),
				Key:       r.str("BANK_S3_KEY", "bank.bin"),
				UseTLS:    r.boolean("BANK_S3_TLS", true),
			},
		},
		Search: SearchConfig{
			Brokers:  r.list("SEARCH_BROKERS"),
			Topic:       r.str("SEARCH_TOPIC", "foodvote.foods"),
			Partitions:  int32(r.integer("SEARCH_TOPIC_PARTITIONS", 1)),
			Replication: int16(r.integer("SEARCH_TOPIC_REPLICATION", 1)),
			Interval:    r.duration("SEARCH_SYNC_INTERVAL", time.Minute),
		},
		Menu: MenuConfig{
			Endpoint:      r.str("MENU_ENDPOINT", ""),
			Timeout:       r.duration("MENU_TIMEOUT", 15*time.Second),
			RatePerSecond: r.float("MENU_RATE_PER_SECOND", 4),
			Burst:         r.integer("MENU_BURST", 2),
			DaysBefore:    r.integer("MENU_DAYS_BEFORE", 7),
			DaysAfter:     r.integer("MENU_DAYS_AFTER", 7),
		},
	}
	if r.err != nil {
		return Config{}, r.err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field requirements.
func (c Config) Validate() error {
	switch c.Bank.Source {
	case SourceFile:
		if c.Bank.Path == "" {
			return fmt.Errorf("BANK_PATH is required for file source")
		}
	case SourceHTTP:
		if c.Bank.URL == "" {
			return fmt.Errorf("BANK_URL is required for http source")
		}
	case SourceObject:
		if c.Bank.Object.Endpoint == "" || c.Bank.Object.Bucket == "" {
			return fmt.Errorf("BANK_S3_ENDPOINT and BANK_S3_BUCKET are required for s3 source")
		}
	default:
		return fmt.Errorf("unknown BANK_SOURCE %q", c.Bank.Source)
	}
	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}
	if c.Menu.DaysBefore < 0 || c.Menu.DaysAfter < 0 {
		return fmt.Errorf("menu day window must not be negative")
	}
	return nil
}

// reader collects the first parse error so FromEnv reads top to bottom.
type reader struct {
	err error
}

func (r *reader) fail(key, value string, err error) {
	if r.err == nil {
		r.err = fmt.Errorf("invalid %s=%q: %w", key, value, err)
	}
}

func (r *reader) str(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

// secret reads key, or the contents of the file named by key_FILE.
func (r *reader) secret(key, def string) string {
	if path := os.Getenv(key + "_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			r.fail(key+"_FILE", path, err)
			return def
		}
		return strings.TrimSpace(string(data))
	}
	return r.str(key, def)
}

func (r *reader) integer(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.fail(key, v, err)
		return def
	}
	return n
}

func (r *reader) float(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		r.fail(key, v, err)
		return def
	}
	return f
}

func (r *reader) boolean(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		r.fail(key, v, err)
		return def
	}
	return b
}

func (r *reader) duration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		r.fail(key, v, err)
		return def
	}
	return d
}

func (r *reader) list(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
