package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dr-haathi/healthbot/internal/config"
	"github.com/dr-haathi/healthbot/internal/models"
)

func TestLoadAPIDefaults(t *testing.T) {
	for _, key := range []string{
		"API_BIND_ADDR", "SUPPORTED_LANGUAGES", "WORKING_LANGUAGE", "REQUEST_TIMEOUT",
		"RETRIEVER_FETCH_TIMEOUT", "CACHE_TTL", "CACHE_CAPACITY", "TRANSLATE_URL",
		"KNOWLEDGE_FALLBACK", "ELASTICSEARCH_ADDR", "ELASTICSEARCH_INDEX",
	} {
		t.Setenv(key, "")
	}

	cfg, err := config.LoadAPI()
	require.NoError(t, err)

	require.Equal(t, "0.0.0.0:8000", cfg.BindAddr)
	require.Equal(t, []models.Language{"en", "hi", "es", "fr"}, cfg.SupportedLanguages)
	require.Equal(t, models.Language("en"), cfg.WorkingLanguage)
	require.Equal(t, 500, cfg.MaxQueryLength)
	require.Equal(t, 10*time.Second, cfg.RequestTimeout)
	require.Equal(t, 5*time.Second, cfg.FetchTimeout)
	require.Equal(t, 3, cfg.MaxAttempts)
	require.Equal(t, 24*time.Hour, cfg.CacheTTL)
	require.Equal(t, 1000, cfg.CacheCapacity)
	require.Empty(t, cfg.TranslateURL)
	require.True(t, cfg.KnowledgeFallback)
	require.Equal(t, "http://elasticsearch:9200", cfg.ElasticsearchAddr)
	require.Equal(t, "health_knowledge", cfg.ElasticsearchIndex)
}

func TestLoadAPIOverrides(t *testing.T) {
	t.Setenv("API_BIND_ADDR", ":9090")
	t.Setenv("SUPPORTED_LANGUAGES", "EN, es ,es")
	t.Setenv("CACHE_TTL", "1h")
	t.Setenv("CACHE_CAPACITY", "5")
	t.Setenv("RETRIEVER_MAX_ATTEMPTS", "2")
	t.Setenv("TRANSLATE_URL", "http://translate:5000")
	t.Setenv("KNOWLEDGE_FALLBACK", "false")
	t.Setenv("WIKIPEDIA_RATE_LIMIT", "0.5")

	cfg, err := config.LoadAPI()
	require.NoError(t, err)
	require.Equal(t, ":9090", cfg.BindAddr)
	require.Equal(t, []models.Language{"en", "es"}, cfg.SupportedLanguages)
	require.Equal(t, time.Hour, cfg.CacheTTL)
	require.Equal(t, 5, cfg.CacheCapacity)
	require.Equal(t, 2, cfg.MaxAttempts)
	require.Equal(t, "http://translate:5000", cfg.TranslateURL)
	require.False(t, cfg.KnowledgeFallback)
	require.InDelta(t, 0.5, cfg.WikipediaRateLimit, 1e-9)
}

func TestLoadAPIRejectsWorkingLanguageOutsideSet(t *testing.T) {
	t.Setenv("SUPPORTED_LANGUAGES", "hi,es")
	t.Setenv("WORKING_LANGUAGE", "en")

	_, err := config.LoadAPI()
	require.Error(t, err)
}

func TestLoadAPIRejectsFetchTimeoutAboveRequestBudget(t *testing.T) {
	t.Setenv("REQUEST_TIMEOUT", "2s")
	t.Setenv("RETRIEVER_FETCH_TIMEOUT", "3s")

	_, err := config.LoadAPI()
	require.Error(t, err)
}

func TestLoadWorkerDefaults(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "")
	t.Setenv("KAFKA_TOPIC", "")
	t.Setenv("KAFKA_CONSUMER_GROUP", "")

	cfg, err := config.LoadWorker()
	require.NoError(t, err)

	require.Equal(t, []string{"kafka:9092"}, cfg.KafkaBrokers)
	require.Equal(t, "knowledge_raw", cfg.KafkaTopic)
	require.Equal(t, "knowledge-worker", cfg.KafkaConsumer)
	require.Equal(t, models.Language("en"), cfg.DefaultLanguage)
}

func TestLoadWorkerOverrides(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "broker-a:29092,broker-b:29093")
	t.Setenv("WORKER_KEYWORD_LIMIT", "12")
	t.Setenv("WORKER_KEYWORD_MIN_LEN", "5")
	t.Setenv("WORKER_DEDUPE_CAPACITY", "5")
	t.Setenv("WORKER_DEDUPE_TTL", "48h")
	t.Setenv("WORKER_BATCH_SIZE", "3")

	cfg, err := config.LoadWorker()
	require.NoError(t, err)

	require.Equal(t, []string{"broker-a:29092", "broker-b:29093"}, cfg.KafkaBrokers)
	require.Equal(t, 12, cfg.KeywordLimit)
	require.Equal(t, 5, cfg.KeywordMinLength)
	require.Equal(t, 5, cfg.DedupeCapacity)
	require.Equal(t, 48*time.Hour, cfg.DedupeTTL)
	require.Equal(t, 3, cfg.BatchSize)
}

func TestLoadRetention(t *testing.T) {
	t.Setenv("ELASTICSEARCH_ADDR", "http://ret-es:9200")
	t.Setenv("RETENTION_CRON", "12h")
	t.Setenv("RETENTION_MAX_AGE", "36h")
	t.Setenv("RETENTION_BATCH_SIZE", "123")

	cfg, err := config.LoadRetention()
	require.NoError(t, err)

	require.Equal(t, 12*time.Hour, cfg.Interval)
	require.Equal(t, 36*time.Hour, cfg.MaxAge)
	require.Equal(t, 123, cfg.BatchSize)
	require.Equal(t, "http://ret-es:9200", cfg.ElasticsearchAddr)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("HEALTHBOT_TEST_VALUE=from-file\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("HEALTHBOT_TEST_VALUE") })

	require.NoError(t, config.LoadDotEnv(path))
	require.Equal(t, "from-file", os.Getenv("HEALTHBOT_TEST_VALUE"))

	require.NoError(t, config.LoadDotEnv(filepath.Join(dir, "missing.env")))
}

func TestLoadSeed(t *testing.T) {
	t.Setenv("WORKING_LANGUAGE", "ES")
	t.Setenv("WORKER_KEYWORD_LIMIT", "4")

	cfg, err := config.LoadSeed()
	require.NoError(t, err)
	require.Equal(t, models.Language("es"), cfg.Language)
	require.Equal(t, 4, cfg.KeywordLimit)

	t.Setenv("WORKER_KEYWORD_LIMIT", "0")
	_, err = config.LoadSeed()
	require.Error(t, err)
}
