package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FinCapture/internal/domain/models"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestDefault(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)
	require.NoError(t, c.Validate())

	assert.Equal(t, "development", c.Environment)
	assert.Equal(t, "sqlite", c.Capture.Backend)
	assert.Equal(t, 30*time.Second, c.Scheduler.UniverseStaleness)
	assert.Equal(t, []string{"sh_a", "sz_a", "bj_a"}, c.Universe.Boards)
	assert.Equal(t, 48*time.Hour, c.Universe.ListingWindow)
	assert.Equal(t, 101, c.Provider.KLineType)
	assert.Equal(t, "fincapture.captures", c.Kafka.Topic)
	assert.Equal(t, 200*time.Millisecond, c.Kafka.Consumer.BackoffMin)
	assert.Equal(t, 10, c.Redis.PoolSize)
	assert.Equal(t, 1000, c.Cache.MaxSize)
	assert.Equal(t, time.Minute, c.Cache.CleanupInterval)
}

func TestParse_OverridesKeepOtherDefaults(t *testing.T) {
	c, err := Parse([]byte(`
environment: production
server:
  port: 9090
scheduler:
  dispatch_concurrency: 8
  categories:
    realtime_quote:
      poll_interval_seconds: 0.5
      max_symbols_per_batch: 50
    dividend-event:
      enabled: false
provider:
  rate_limits:
    hq.sinajs.cn:
      min_interval: 100ms
      per_minute: 600
      max_concurrent: 3
`))
	require.NoError(t, err)
	assert.Equal(t, 9090, c.Server.Port)
	assert.Equal(t, "0.0.0.0", c.Server.Host)
	assert.Equal(t, 8, c.Scheduler.DispatchConcurrency)
	assert.Equal(t, 30*time.Second, c.Scheduler.FetchTimeout)

	specs := map[models.Category]models.CategorySpec{}
	for _, s := range c.CategorySpecs() {
		specs[s.Category] = s
	}
	require.Len(t, specs, len(models.AllCategories))
	assert.Equal(t, 500*time.Millisecond, specs[models.CategoryRealtimeQuote].PollInterval)
	assert.Equal(t, 50, specs[models.CategoryRealtimeQuote].MaxSymbolsPerBatch)
	assert.Equal(t, 1, specs[models.CategoryRealtimeQuote].PagesPerSymbolPerCycle)
	assert.False(t, specs[models.CategoryDividendEvent].Enabled)
	assert.Equal(t, time.Hour, specs[models.CategorySymbolList].PollInterval)

	limits := c.ProviderRateLimits()
	require.Contains(t, limits, "hq.sinajs.cn")
	assert.Equal(t, 100*time.Millisecond, limits["hq.sinajs.cn"].MinInterval)
	assert.NotContains(t, limits, "*.eastmoney.com")
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"backend", "capture:\n  backend: s3\n"},
		{"kafka without brokers", "capture:\n  backend: kafka\n"},
		{"queue without redis", "archive:\n  queue:\n    enabled: true\n"},
		{"unknown category", "scheduler:\n  categories:\n    options_chain:\n      enabled: true\n"},
		{"unknown board", "universe:\n  boards: [hk_main]\n"},
		{"bad symbol", "universe:\n  symbols: [\"ABC\"]\n"},
		{"log level", "logging:\n  level: loud\n"},
		{"environment", "environment: qa\n"},
		{"start date", "provider:\n  start_date: 2001/01/01\n"},
		{"symbol market", "universe:\n  symbols: [\"600000.XX\"]\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
		})
	}
}

func TestLoadWithEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("capture:\n  backend: kafka\n"), 0o644))

	c, err := loadWithEnv(path, envMap(map[string]string{
		"KAFKA_BROKERS":     "k1:9092, k2:9092",
		"KAFKA_TOPIC":       "captures.test",
		"SYMBOLS":           "600000.SH,000001",
		"PROVIDER_BASE_URL": "http://mock:8000",
		"SQLITE_PATH":       "/tmp/c.db",
		"ARCHIVE_DIR":       "/tmp/archive",
		"REDIS_ADDR":        "redis:6380",
	}))
	require.NoError(t, err, "env brokers satisfy the kafka backend")
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, c.Kafka.Brokers)
	assert.Equal(t, "captures.test", c.Kafka.Topic)
	assert.Equal(t, []string{"600000.SH", "000001"}, c.Universe.Symbols)
	assert.Equal(t, "http://mock:8000", c.Provider.BaseURL)
	assert.Equal(t, "/tmp/c.db", c.SQLite.Path)
	assert.Equal(t, "/tmp/archive", c.Archive.Dir)
	assert.True(t, c.Redis.Enabled)
	assert.Equal(t, "redis", c.Redis.Host)
	assert.Equal(t, 6380, c.Redis.Port)
}

func TestBarStartDate(t *testing.T) {
	c, err := Parse([]byte("provider:\n  start_date: \"2001-01-01\"\n"))
	require.NoError(t, err)
	want := time.Date(2001, 1, 1, 0, 0, 0, 0, time.FixedZone("CST", 8*3600))
	assert.True(t, want.Equal(c.BarStartDate()))

	c, err = loadWithEnv("", envMap(map[string]string{"PROVIDER_START_DATE": "2010-06-30"}))
	require.NoError(t, err)
	assert.Equal(t, "2010-06-30", c.BarStartDate().Format("2006-01-02"))

	c, err = Default()
	require.NoError(t, err)
	assert.True(t, c.BarStartDate().IsZero())
	assert.Equal(t, 1, c.Provider.AdjustType)
}

func TestLoadWithEnv_NoFile(t *testing.T) {
	c, err := loadWithEnv("", envMap(map[string]string{"CAPTURE_BACKEND": "clickhouse"}))
	require.NoError(t, err)
	assert.Equal(t, "clickhouse", c.Capture.Backend)

	_, err = loadWithEnv(filepath.Join(t.TempDir(), "missing.yaml"), envMap(nil))
	require.Error(t, err)
}
