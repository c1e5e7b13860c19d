package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/dr-haathi/healthbot/internal/models"
)

// Common contains knowledge-index parameters shared by every service.
type Common struct {
	ElasticsearchAddr  string
	ElasticsearchIndex string
}

// API describes the chat API and the answer pipeline it hosts.
type API struct {
	Common
	BindAddr           string
	SupportedLanguages []models.Language
	WorkingLanguage    models.Language
	MaxQueryLength     int
	RequestTimeout     time.Duration

	WikipediaBaseURL   string
	WikipediaRateLimit float64
	WikipediaUserAgent string

	FetchTimeout  time.Duration
	MaxAttempts   int
	RetryBackoff  time.Duration
	CacheTTL      time.Duration
	CacheCapacity int

	TranslateURL       string
	TranslateAPIKey    string
	TranslateTimeout   time.Duration
	TranslateRateLimit float64

	KnowledgeFallback bool
	LexiconPath       string
	TopicPatternsPath string
}

// Worker holds configuration for the Kafka -> knowledge index worker.
type Worker struct {
	Common
	KafkaBrokers     []string
	KafkaTopic       string
	KafkaConsumer    string
	DefaultLanguage  models.Language
	KeywordLimit     int
	KeywordMinLength int
	DedupeCapacity   int
	DedupeTTL        time.Duration
	BatchSize        int
}

// Retention configures the cleanup loop.
type Retention struct {
	Common
	Interval  time.Duration
	MaxAge    time.Duration
	BatchSize int
}

// Seed configures the one-off library import.
type Seed struct {
	Common
	Language     models.Language
	KeywordLimit int
}

// LoadDotEnv reads variables from the given .env files (".env" when none are
// given) without overriding the real environment. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

func loadCommon() Common {
	return Common{
		ElasticsearchAddr:  getEnv("ELASTICSEARCH_ADDR", "http://elasticsearch:9200"),
		ElasticsearchIndex: getEnv("ELASTICSEARCH_INDEX", "health_knowledge"),
	}
}

// LoadAPI builds an API config from environment variables.
func LoadAPI() (*API, error) {
	c := &API{
		Common:             loadCommon(),
		BindAddr:           getEnv("API_BIND_ADDR", "0.0.0.0:8000"),
		SupportedLanguages: parseLanguages(getEnv("SUPPORTED_LANGUAGES", "en,hi,es,fr")),
		WorkingLanguage:    models.Language(strings.ToLower(getEnv("WORKING_LANGUAGE", "en"))),
		MaxQueryLength:     getInt("MAX_QUERY_LENGTH", 500),
		RequestTimeout:     getDuration("REQUEST_TIMEOUT", "10s"),

		WikipediaBaseURL:   getEnv("WIKIPEDIA_BASE_URL", "https://{lang}.wikipedia.org"),
		WikipediaRateLimit: getFloat("WIKIPEDIA_RATE_LIMIT", 5),
		WikipediaUserAgent: getEnv("WIKIPEDIA_USER_AGENT", "healthbot/1.0"),

		FetchTimeout:  getDuration("RETRIEVER_FETCH_TIMEOUT", "5s"),
		MaxAttempts:   getInt("RETRIEVER_MAX_ATTEMPTS", 3),
		RetryBackoff:  getDuration("RETRIEVER_RETRY_BACKOFF", "200ms"),
		CacheTTL:      getDuration("CACHE_TTL", "24h"),
		CacheCapacity: getInt("CACHE_CAPACITY", 1000),

		TranslateURL:       getEnv("TRANSLATE_URL", ""),
		TranslateAPIKey:    getEnv("TRANSLATE_API_KEY", ""),
		TranslateTimeout:   getDuration("TRANSLATE_TIMEOUT", "3s"),
		TranslateRateLimit: getFloat("TRANSLATE_RATE_LIMIT", 10),

		KnowledgeFallback: getBool("KNOWLEDGE_FALLBACK", true),
		LexiconPath:       getEnv("LEXICON_PATH", ""),
		TopicPatternsPath: getEnv("TOPIC_PATTERNS_PATH", ""),
	}

	if len(c.SupportedLanguages) == 0 {
		return nil, fmt.Errorf("SUPPORTED_LANGUAGES must contain at least one language")
	}
	if !slices.Contains(c.SupportedLanguages, c.WorkingLanguage) {
		return nil, fmt.Errorf("WORKING_LANGUAGE %q must be one of SUPPORTED_LANGUAGES", c.WorkingLanguage)
	}
	if c.MaxQueryLength <= 0 {
		return nil, fmt.Errorf("MAX_QUERY_LENGTH must be positive")
	}
	if c.RequestTimeout <= 0 || c.FetchTimeout <= 0 {
		return nil, fmt.Errorf("REQUEST_TIMEOUT and RETRIEVER_FETCH_TIMEOUT must be positive")
	}
	if c.FetchTimeout >= c.RequestTimeout {
		return nil, fmt.Errorf("RETRIEVER_FETCH_TIMEOUT must be shorter than REQUEST_TIMEOUT")
	}
	if c.MaxAttempts <= 0 {
		return nil, fmt.Errorf("RETRIEVER_MAX_ATTEMPTS must be positive")
	}
	if c.CacheCapacity <= 0 {
		return nil, fmt.Errorf("CACHE_CAPACITY must be positive")
	}
	if c.WikipediaRateLimit <= 0 {
		return nil, fmt.Errorf("WIKIPEDIA_RATE_LIMIT must be positive")
	}

	return c, nil
}

// LoadWorker builds a Worker config from environment variables.
func LoadWorker() (*Worker, error) {
	c := &Worker{
		Common:           loadCommon(),
		KafkaBrokers:     splitAndTrim(getEnv("KAFKA_BROKERS", "kafka:9092")),
		KafkaTopic:       getEnv("KAFKA_TOPIC", "knowledge_raw"),
		KafkaConsumer:    getEnv("KAFKA_CONSUMER_GROUP", "knowledge-worker"),
		DefaultLanguage:  models.Language(strings.ToLower(getEnv("WORKING_LANGUAGE", "en"))),
		KeywordLimit:     getInt("WORKER_KEYWORD_LIMIT", 8),
		KeywordMinLength: getInt("WORKER_KEYWORD_MIN_LEN", 4),
		DedupeCapacity:   getInt("WORKER_DEDUPE_CAPACITY", 20000),
		DedupeTTL:        getDuration("WORKER_DEDUPE_TTL", "24h"),
		BatchSize:        getInt("WORKER_BATCH_SIZE", 10),
	}

	if len(c.KafkaBrokers) == 0 {
		return nil, fmt.Errorf("KAFKA_BROKERS must contain at least one broker")
	}
	if c.BatchSize <= 0 {
		return nil, fmt.Errorf("WORKER_BATCH_SIZE must be positive")
	}
	if c.DedupeCapacity <= 0 {
		return nil, fmt.Errorf("WORKER_DEDUPE_CAPACITY must be positive")
	}
	if c.KeywordLimit <= 0 {
		return nil, fmt.Errorf("WORKER_KEYWORD_LIMIT must be positive")
	}
	if c.KeywordMinLength < 0 {
		return nil, fmt.Errorf("WORKER_KEYWORD_MIN_LEN cannot be negative")
	}

	return c, nil
}

// LoadRetention builds a Retention config from environment variables.
func LoadRetention() (*Retention, error) {
	c := &Retention{
		Common:    loadCommon(),
		Interval:  getDuration("RETENTION_CRON", "24h"),
		MaxAge:    getDuration("RETENTION_MAX_AGE", "2160h"),
		BatchSize: getInt("RETENTION_BATCH_SIZE", 500),
	}

	if c.MaxAge <= 0 {
		return nil, fmt.Errorf("RETENTION_MAX_AGE must be positive")
	}
	if c.Interval <= 0 {
		return nil, fmt.Errorf("RETENTION_CRON must be positive")
	}
	if c.BatchSize <= 0 {
		return nil, fmt.Errorf("RETENTION_BATCH_SIZE must be positive")
	}

	return c, nil
}

// LoadSeed builds a Seed config from environment variables.
func LoadSeed() (*Seed, error) {
	c := &Seed{
		Common:       loadCommon(),
		Language:     models.Language(strings.ToLower(getEnv("WORKING_LANGUAGE", "en"))),
		KeywordLimit: getInt("WORKER_KEYWORD_LIMIT", 8),
	}
	if c.KeywordLimit <= 0 {
		return nil, fmt.Errorf("WORKER_KEYWORD_LIMIT must be positive")
	}
	return c, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return fallback
}

func getFloat(key string, fallback float64) float64 {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			return parsed
		}
	}
	return fallback
}

func getDuration(key, fallback string) time.Duration {
	raw := getEnv(key, fallback)
	d, err := time.ParseDuration(raw)
	if err != nil {
		fd, ferr := time.ParseDuration(fallback)
		if ferr != nil {
			panic(fmt.Sprintf("invalid fallback duration %q: %v", fallback, ferr))
		}
		return fd
	}
	return d
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func parseLanguages(raw string) []models.Language {
	var out []models.Language
	for _, code := range splitAndTrim(raw) {
		lang := models.Language(strings.ToLower(code))
		if !slices.Contains(out, lang) {
			out = append(out, lang)
		}
	}
	return out
}
