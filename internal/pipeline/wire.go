package pipeline

import (
	"fmt"
	"log/slog"

	"github.com/dr-haathi/healthbot/internal/config"
	"github.com/dr-haathi/healthbot/internal/elasticsearch"
	"github.com/dr-haathi/healthbot/internal/formatter"
	"github.com/dr-haathi/healthbot/internal/knowledge"
	"github.com/dr-haathi/healthbot/internal/language"
	"github.com/dr-haathi/healthbot/internal/logger"
	"github.com/dr-haathi/healthbot/internal/retrieval"
	"github.com/dr-haathi/healthbot/internal/topic"
	"github.com/dr-haathi/healthbot/internal/translate"
	"github.com/dr-haathi/healthbot/internal/wikipedia"
)

// FromConfig builds the production pipeline. The returned index client is nil
// when the knowledge index fallback is disabled.
func FromConfig(cfg *config.API, log *slog.Logger) (*Orchestrator, *elasticsearch.Client, error) {
	log = logger.OrDiscard(log)

	var translator language.Translator
	if cfg.TranslateURL != "" {
		client, err := translate.New(translate.Config{
			BaseURL:   cfg.TranslateURL,
			APIKey:    cfg.TranslateAPIKey,
			Timeout:   cfg.TranslateTimeout,
			RateLimit: cfg.TranslateRateLimit,
		}, log)
		if err != nil {
			return nil, nil, err
		}
		translator = client
	} else {
		log.Warn("TRANSLATE_URL not set, answers stay in the working language")
	}
	normalizer := language.NewNormalizer(translator, cfg.WorkingLanguage, cfg.SupportedLanguages, log)

	patterns, err := topic.LoadPatterns(cfg.TopicPatternsPath)
	if err != nil {
		return nil, nil, err
	}
	lexicon, err := formatter.LoadLexicon(cfg.LexiconPath)
	if err != nil {
		return nil, nil, err
	}

	wiki, err := wikipedia.New(wikipedia.Config{
		BaseURL:   cfg.WikipediaBaseURL,
		UserAgent: cfg.WikipediaUserAgent,
		RateLimit: cfg.WikipediaRateLimit,
		Timeout:   cfg.FetchTimeout,
	}, log)
	if err != nil {
		return nil, nil, err
	}

	var (
		fallbacks []retrieval.Source
		index     *elasticsearch.Client
	)
	if cfg.KnowledgeFallback {
		index, err = elasticsearch.New(cfg.ElasticsearchAddr, cfg.ElasticsearchIndex, log)
		if err != nil {
			return nil, nil, fmt.Errorf("knowledge index: %w", err)
		}
		fallbacks = append(fallbacks, index)
	}
	fallbacks = append(fallbacks, knowledge.NewLibrary(cfg.WorkingLanguage))

	retriever, err := retrieval.New(wiki, retrieval.Options{
		CacheTTL:      cfg.CacheTTL,
		CacheCapacity: cfg.CacheCapacity,
		FetchTimeout:  cfg.FetchTimeout,
		MaxAttempts:   cfg.MaxAttempts,
		RetryBackoff:  cfg.RetryBackoff,
	}, log, fallbacks...)
	if err != nil {
		return nil, nil, err
	}

	log.Info("pipeline ready",
		slog.Any("languages", cfg.SupportedLanguages),
		slog.String("working_language", string(cfg.WorkingLanguage)),
		slog.Int("lexicon_version", lexicon.Version),
		slog.Int("topic_patterns_version", patterns.Version),
		slog.Bool("knowledge_index", index != nil),
		slog.Bool("translation", translator != nil),
	)

	return New(normalizer, topic.New(patterns), retriever, formatter.New(lexicon), Options{
		RequestTimeout: cfg.RequestTimeout,
		MaxQueryLength: cfg.MaxQueryLength,
	}, log), index, nil
}
