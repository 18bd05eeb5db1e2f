package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"FinCapture/internal/domain/models"
	"FinCapture/pkg/util"
)

type Config struct {
	Environment string           `yaml:"environment" default:"development" validate:"oneof=development staging production"`
	Server      ServerConfig     `yaml:"server"`
	Logging     LoggingConfig    `yaml:"logging"`
	Scheduler   SchedulerConfig  `yaml:"scheduler"`
	Universe    UniverseConfig   `yaml:"universe"`
	Provider    ProviderConfig   `yaml:"provider"`
	Capture     CaptureConfig    `yaml:"capture"`
	SQLite      SQLiteConfig     `yaml:"sqlite"`
	ClickHouse  ClickHouseConfig `yaml:"clickhouse"`
	Kafka       KafkaConfig      `yaml:"kafka"`
	Redis       RedisConfig      `yaml:"redis"`
	Cache       LocalCacheConfig `yaml:"cache"`
	Archive     ArchiveConfig    `yaml:"archive"`
}

type ServerConfig struct {
	Enabled         bool          `yaml:"enabled" default:"true"`
	Host            string        `yaml:"host" default:"0.0.0.0"`
	Port            int           `yaml:"port" default:"8080" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" default:"30s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
	SlowRequest     time.Duration `yaml:"slow_request" default:"2s"`
}

type LoggingConfig struct {
	Level   string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
	Format  string `yaml:"format" default:"console" validate:"oneof=console json"`
	Output  string `yaml:"output" default:"stdout"`
	Collect struct {
		Enabled   bool          `yaml:"enabled"`
		Topic     string        `yaml:"topic" default:"fincapture.logs"`
		Interval  time.Duration `yaml:"interval" default:"10s"`
		Threshold int           `yaml:"threshold" default:"100"`
	} `yaml:"collect"`
}

// CategoryConfig overrides the built-in parameters of one category. Unset
// fields keep their defaults.
type CategoryConfig struct {
	Enabled                *bool    `yaml:"enabled"`
	PollIntervalSeconds    *float64 `yaml:"poll_interval_seconds"`
	MaxSymbolsPerBatch     *int     `yaml:"max_symbols_per_batch"`
	PagesPerSymbolPerCycle *int     `yaml:"pages_per_symbol_per_cycle"`
}

type SchedulerConfig struct {
	DispatchConcurrency int                       `yaml:"dispatch_concurrency" default:"4" validate:"min=1"`
	FetchTimeout        time.Duration             `yaml:"fetch_timeout" default:"30s"`
	UniverseStaleness   time.Duration             `yaml:"universe_staleness" default:"30s"`
	Categories          map[string]CategoryConfig `yaml:"categories"`
}

type UniverseConfig struct {
	Symbols       []string      `yaml:"symbols"`
	Boards        []string      `yaml:"boards" default:"[\"sh_a\",\"sz_a\",\"bj_a\"]"`
	FromListings  bool          `yaml:"from_listings" default:"true"`
	ListingWindow time.Duration `yaml:"listing_window" default:"48h"`
}

// RateLimit bounds requests to one provider host.
type RateLimit struct {
	MinInterval   time.Duration `yaml:"min_interval"`
	PerMinute     int           `yaml:"per_minute"`
	MaxConcurrent int           `yaml:"max_concurrent"`
}

type ProviderConfig struct {
	// BaseURL, when set, replaces every endpoint; used against mocks.
	BaseURL       string        `yaml:"base_url"`
	SinaURL       string        `yaml:"sina_url" default:"https://hq.sinajs.cn"`
	QuoteURL      string        `yaml:"quote_url" default:"https://push2.eastmoney.com"`
	HistoryURL    string        `yaml:"history_url" default:"https://push2his.eastmoney.com"`
	DatacenterURL string        `yaml:"datacenter_url" default:"https://datacenter-web.eastmoney.com"`
	Timeout       time.Duration `yaml:"timeout" default:"10s"`
	KLineType     int           `yaml:"kline_type" default:"101" validate:"oneof=5 15 30 60 101 102 103"`
	AdjustType    int           `yaml:"adjust_type" default:"1" validate:"oneof=0 1 2"`
	BarWindowDays int           `yaml:"bar_window_days" default:"365" validate:"min=1"`
	// StartDate (YYYY-MM-DD) fetches full history from that day in one page.
	StartDate      string               `yaml:"start_date" validate:"omitempty,datetime=2006-01-02"`
	ListPageSize   int                  `yaml:"list_page_size" default:"5000" validate:"min=1"`
	ReportPageSize int                  `yaml:"report_page_size" default:"50" validate:"min=1"`
	RateLimits     map[string]RateLimit `yaml:"rate_limits"`
}

type CaptureConfig struct {
	Backend string `yaml:"backend" default:"sqlite" validate:"oneof=sqlite clickhouse kafka"`
	// Store backs the ingest consumer and the archiver when Backend is kafka.
	Store string `yaml:"store" default:"sqlite" validate:"oneof=sqlite clickhouse"`
}

type SQLiteConfig struct {
	Path string `yaml:"path" default:"data/captures.db" validate:"required"`
}

type ClickHouseConfig struct {
	Host             string        `yaml:"host" default:"localhost"`
	Port             int           `yaml:"port" default:"9000"`
	Database         string        `yaml:"database" default:"fincapture"`
	User             string        `yaml:"user" default:"default"`
	Password         string        `yaml:"password"`
	UseHTTP          bool          `yaml:"use_http"`
	AsyncInsert      bool          `yaml:"async_insert"`
	MaxConnections   int           `yaml:"max_connections" default:"10"`
	DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
	ReadTimeout      time.Duration `yaml:"read_timeout" default:"30s"`
	MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"60s"`
}

type KafkaConfig struct {
	Brokers      []string `yaml:"brokers"`
	Topic        string   `yaml:"topic" default:"fincapture.captures"`
	RequiredAcks int      `yaml:"required_acks" default:"-1"`
	Compression  string   `yaml:"compression" default:"snappy" validate:"oneof=none gzip snappy lz4 zstd"`
	Producer     struct {
		MaxAttempts  int           `yaml:"max_attempts" default:"5"`
		Linger       time.Duration `yaml:"linger" default:"50ms"`
		BatchBytes   int64         `yaml:"batch_bytes" default:"1048576"`
		BatchSize    int           `yaml:"batch_size" default:"500"`
		WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
		ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
		Async        bool          `yaml:"async"`
	} `yaml:"producer"`
	Consumer struct {
		GroupID         string        `yaml:"group_id" default:"fincapture-ingest"`
		Workers         int           `yaml:"workers" default:"4"`
		BufferSize      int           `yaml:"buffer_size" default:"1000"`
		RetryMax        int           `yaml:"retry_max" default:"5"`
		BackoffMin      time.Duration `yaml:"backoff_min" default:"200ms"`
		BackoffMax      time.Duration `yaml:"backoff_max" default:"10s"`
		DLQTopic        string        `yaml:"dlq_topic" default:"fincapture.captures.dlq"`
		MinBytes        int           `yaml:"min_bytes" default:"1"`
		MaxBytes        int           `yaml:"max_bytes" default:"10485760"`
		AutoOffsetReset string        `yaml:"auto_offset_reset" default:"earliest" validate:"oneof=earliest latest"`
	} `yaml:"consumer"`
}

type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host" default:"localhost"`
	Port     int    `yaml:"port" default:"6379"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix" default:"fincapture"`

	PoolSize     int           `yaml:"pool_size" default:"10" validate:"min=1"`
	MinIdleConns int           `yaml:"min_idle_conns" default:"2" validate:"min=0"`
	PoolTimeout  time.Duration `yaml:"pool_timeout" default:"4s"`
}

// LocalCacheConfig sizes the in-process cache, alone or as the layer in
// front of Redis.
type LocalCacheConfig struct {
	MaxSize         int           `yaml:"max_size" default:"1000" validate:"min=1"`
	TTL             time.Duration `yaml:"ttl" default:"5s"`
	CleanupInterval time.Duration `yaml:"cleanup_interval" default:"1m" validate:"gt=0"`
}

type ArchiveConfig struct {
	Dir     string        `yaml:"dir" default:"data/archive" validate:"required"`
	Cron    string        `yaml:"cron" default:"0 30 15 * * MON-FRI"`
	Workers int           `yaml:"workers" default:"4" validate:"min=1"`
	LockTTL time.Duration `yaml:"lock_ttl" default:"10m"`
	// Queue routes scheduled and API merges through the Redis job queue.
	Queue struct {
		Enabled    bool          `yaml:"enabled"`
		Workers    int           `yaml:"workers" default:"2"`
		RetryLimit int           `yaml:"retry_limit" default:"3"`
		RetryDelay time.Duration `yaml:"retry_delay" default:"30s"`
	} `yaml:"queue"`
}

var validate = validator.New()

// Default returns a configuration with every default applied.
func Default() (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	return &c, nil
}

func decode(b []byte) (*Config, error) {
	c, err := Default()
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return c, nil
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(b []byte) (*Config, error) {
	c, err := decode(b)
	if err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
// An empty path yields the defaults.
func LoadWithEnv(path string) (*Config, error) {
	return loadWithEnv(path, os.Getenv)
}

func loadWithEnv(path string, getenv func(string) string) (*Config, error) {
	var b []byte
	if path != "" {
		var err error
		if b, err = os.ReadFile(path); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	c, err := decode(b)
	if err != nil {
		return nil, err
	}

	c.applyEnv(getenv)
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	if v := getenv("PROVIDER_BASE_URL"); v != "" {
		c.Provider.BaseURL = v
	}
	if v := getenv("PROVIDER_START_DATE"); v != "" {
		c.Provider.StartDate = v
	}
	if v := getenv("SYMBOLS"); v != "" {
		c.Universe.Symbols = splitList(v)
	}
	if v := getenv("CAPTURE_BACKEND"); v != "" {
		c.Capture.Backend = v
	}
	if v := getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = splitList(v)
	}
	if v := getenv("KAFKA_TOPIC"); v != "" {
		c.Kafka.Topic = v
	}
	if v := getenv("SQLITE_PATH"); v != "" {
		c.SQLite.Path = v
	}
	if v := getenv("ARCHIVE_DIR"); v != "" {
		c.Archive.Dir = v
	}
	if v := getenv("REDIS_ADDR"); v != "" {
		host, port, ok := strings.Cut(v, ":")
		c.Redis.Enabled = true
		c.Redis.Host = host
		if p, err := strconv.Atoi(port); ok && err == nil {
			c.Redis.Port = p
		}
	}
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate checks field rules and cross-section requirements.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}

	var errs []error
	if c.Capture.Backend == "kafka" && len(c.Kafka.Brokers) == 0 {
		errs = append(errs, errors.New("capture.backend kafka requires kafka.brokers"))
	}
	if c.Capture.Backend == "clickhouse" || (c.Capture.Backend == "kafka" && c.Capture.Store == "clickhouse") {
		if c.ClickHouse.Host == "" {
			errs = append(errs, errors.New("clickhouse.host is required"))
		}
	}
	if c.Archive.Queue.Enabled && !c.Redis.Enabled {
		errs = append(errs, errors.New("archive.queue requires redis.enabled"))
	}
	if c.Logging.Collect.Enabled && len(c.Kafka.Brokers) == 0 {
		errs = append(errs, errors.New("logging.collect requires kafka.brokers"))
	}
	for name := range c.Scheduler.Categories {
		if _, err := models.ParseCategory(name); err != nil {
			errs = append(errs, fmt.Errorf("scheduler.categories: %w", err))
		}
	}
	for _, b := range c.Universe.Boards {
		if models.Board(b).Market() == "" {
			errs = append(errs, fmt.Errorf("universe.boards: unknown board %q", b))
		}
	}
	for _, s := range c.Universe.Symbols {
		if _, err := models.ParseSymbol(s); err != nil {
			errs = append(errs, fmt.Errorf("universe.symbols: %w", err))
		}
	}
	return errors.Join(errs...)
}

// CategorySpecs returns the effective spec of every category: defaults with
// configured overrides applied. Values are not validated here; the scheduler
// rejects unusable specs per category.
func (c *Config) CategorySpecs() []models.CategorySpec {
	def := models.DefaultSpecs()
	for name, o := range c.Scheduler.Categories {
		cat, err := models.ParseCategory(name)
		if err != nil {
			continue
		}
		s := def[cat]
		if o.Enabled != nil {
			s.Enabled = *o.Enabled
		}
		if o.PollIntervalSeconds != nil {
			s.PollInterval = time.Duration(*o.PollIntervalSeconds * float64(time.Second))
		}
		if o.MaxSymbolsPerBatch != nil {
			s.MaxSymbolsPerBatch = *o.MaxSymbolsPerBatch
		}
		if o.PagesPerSymbolPerCycle != nil {
			s.PagesPerSymbolPerCycle = *o.PagesPerSymbolPerCycle
		}
		def[cat] = s
	}

	out := make([]models.CategorySpec, 0, len(models.AllCategories))
	for _, cat := range models.AllCategories {
		out = append(out, def[cat])
	}
	return out
}

// Boards returns the configured market boards.
func (c *Config) Boards() []models.Board {
	out := make([]models.Board, len(c.Universe.Boards))
	for i, b := range c.Universe.Boards {
		out[i] = models.Board(b)
	}
	return out
}

// BarStartDate is the configured history start in market time, zero when
// unset.
func (c *Config) BarStartDate() time.Time {
	if c.Provider.StartDate == "" {
		return time.Time{}
	}
	t, err := time.ParseInLocation(util.DateLayout, c.Provider.StartDate, util.MarketZone)
	if err != nil {
		return time.Time{}
	}
	return t
}

// ProviderRateLimits returns per-host limits, falling back to conservative
// built-ins for the public endpoints.
func (c *Config) ProviderRateLimits() map[string]RateLimit {
	if len(c.Provider.RateLimits) > 0 {
		return c.Provider.RateLimits
	}
	return map[string]RateLimit{
		"hq.sinajs.cn":    {MinInterval: 200 * time.Millisecond, PerMinute: 300, MaxConcurrent: 5},
		"*.eastmoney.com": {MinInterval: 500 * time.Millisecond, PerMinute: 60, MaxConcurrent: 2},
	}
}
