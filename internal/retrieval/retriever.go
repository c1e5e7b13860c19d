// Package retrieval fetches topic summaries through a TTL cache, coalescing
// concurrent lookups of the same topic into one upstream fetch.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/dr-haathi/healthbot/internal/cache"
	"github.com/dr-haathi/healthbot/internal/logger"
	"github.com/dr-haathi/healthbot/internal/models"
)

// Source is a reference source that can summarize a topic.
type Source interface {
	Name() string
	FetchSummary(ctx context.Context, topic string, lang models.Language) (models.RawSummary, error)
}

// Options tune caching and upstream behavior.
type Options struct {
	CacheTTL      time.Duration
	CacheCapacity int
	// FetchTimeout bounds one shared upstream fetch including retries.
	FetchTimeout time.Duration
	// MaxAttempts counts the initial primary call.
	MaxAttempts  int
	RetryBackoff time.Duration
	Clock        func() time.Time
}

func (o Options) withDefaults() Options {
	if o.CacheTTL <= 0 {
		o.CacheTTL = 24 * time.Hour
	}
	if o.CacheCapacity <= 0 {
		o.CacheCapacity = 1000
	}
	if o.FetchTimeout <= 0 {
		o.FetchTimeout = 5 * time.Second
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 3
	}
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = 200 * time.Millisecond
	}
	if o.Clock == nil {
		o.Clock = time.Now
	}
	return o
}

type cacheKey struct {
	topic string
	lang  models.Language
}

func (k cacheKey) String() string {
	return string(k.lang) + ":" + k.topic
}

// Retriever serves summaries from the cache, the primary source, and then
// each fallback in order.
type Retriever struct {
	primary   Source
	fallbacks []Source
	opts      Options
	cache     *cache.Cache[cacheKey, models.RawSummary]
	group     singleflight.Group
	log       *slog.Logger
	sleep     func(ctx context.Context, d time.Duration) error
}

// New builds a Retriever around primary. Fallbacks are consulted once each,
// in order, when the primary fails for any reason.
func New(primary Source, opts Options, log *slog.Logger, fallbacks ...Source) (*Retriever, error) {
	if primary == nil {
		return nil, fmt.Errorf("retrieval: primary source is required")
	}
	opts = opts.withDefaults()
	return &Retriever{
		primary:   primary,
		fallbacks: fallbacks,
		opts:      opts,
		cache:     cache.New[cacheKey, models.RawSummary](opts.CacheCapacity, opts.CacheTTL, cache.WithClock(opts.Clock)),
		log:       logger.OrDiscard(log),
		sleep:     sleepCtx,
	}, nil
}

// Retrieve returns the summary for topic in lang. Concurrent callers for the
// same key share one fetch; a caller whose ctx ends returns ctx.Err() while
// the shared fetch runs on and still fills the cache.
func (r *Retriever) Retrieve(ctx context.Context, topic string, lang models.Language) (models.RawSummary, error) {
	key := cacheKey{topic: strings.ToLower(strings.TrimSpace(topic)), lang: lang}
	if key.topic == "" {
		return models.RawSummary{}, models.ErrEmptyTopic
	}

	if summary, ok := r.cache.Get(key); ok {
		r.log.Debug("summary cache hit", slog.String("key", key.String()))
		return summary, nil
	}

	detached := context.WithoutCancel(ctx)
	ch := r.group.DoChan(key.String(), func() (any, error) {
		return r.fetch(detached, key)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return models.RawSummary{}, res.Err
		}
		if res.Shared {
			r.log.Debug("summary fetch coalesced", slog.String("key", key.String()))
		}
		return res.Val.(models.RawSummary), nil
	case <-ctx.Done():
		return models.RawSummary{}, ctx.Err()
	}
}

// Cached reports whether a fresh summary is cached for topic in lang.
func (r *Retriever) Cached(topic string, lang models.Language) bool {
	return r.cache.Contains(cacheKey{topic: strings.ToLower(strings.TrimSpace(topic)), lang: lang})
}

// fetch runs once per coalesced key. The cache is written before waiters are
// released so a later caller never misses a result that was just fetched.
func (r *Retriever) fetch(parent context.Context, key cacheKey) (models.RawSummary, error) {
	if summary, ok := r.cache.Get(key); ok {
		return summary, nil
	}

	ctx, cancel := context.WithTimeout(parent, r.opts.FetchTimeout)
	defer cancel()

	start := r.opts.Clock()
	summary, err := r.withRetry(ctx, key)
	if err != nil {
		primaryErr := err
		summary, err = r.fromFallbacks(ctx, key, primaryErr)
		if err != nil {
			r.log.Warn("summary fetch failed",
				slog.String("key", key.String()),
				slog.String("error", primaryErr.Error()),
			)
			return models.RawSummary{}, primaryErr
		}
	}

	r.cache.Set(key, summary)
	r.log.Info("summary fetched",
		slog.String("key", key.String()),
		slog.String("title", summary.Title),
		slog.Duration("took", r.opts.Clock().Sub(start)),
	)
	return summary, nil
}

// withRetry calls the primary, retrying only transient failures with
// doubling backoff.
func (r *Retriever) withRetry(ctx context.Context, key cacheKey) (models.RawSummary, error) {
	backoff := r.opts.RetryBackoff
	var err error
	for attempt := 1; attempt <= r.opts.MaxAttempts; attempt++ {
		var summary models.RawSummary
		summary, err = r.primary.FetchSummary(ctx, key.topic, key.lang)
		if err == nil {
			return summary, nil
		}
		if !errors.Is(err, models.ErrUpstreamUnavailable) || attempt == r.opts.MaxAttempts {
			break
		}

		r.log.Warn("primary source unavailable, retrying",
			slog.String("source", r.primary.Name()),
			slog.String("key", key.String()),
			slog.Int("attempt", attempt),
			slog.Duration("backoff", backoff),
			slog.String("error", err.Error()),
		)
		if sleepErr := r.sleep(ctx, backoff); sleepErr != nil {
			break
		}
		backoff *= 2
	}
	return models.RawSummary{}, err
}

func (r *Retriever) fromFallbacks(ctx context.Context, key cacheKey, primaryErr error) (models.RawSummary, error) {
	lastErr := primaryErr
	for _, src := range r.fallbacks {
		summary, err := src.FetchSummary(ctx, key.topic, key.lang)
		if err == nil {
			r.log.Info("summary served by fallback source",
				slog.String("source", src.Name()),
				slog.String("key", key.String()),
				slog.String("primary_error", primaryErr.Error()),
			)
			return summary, nil
		}
		r.log.Debug("fallback source failed",
			slog.String("source", src.Name()),
			slog.String("key", key.String()),
			slog.String("error", err.Error()),
		)
		lastErr = err
	}
	return models.RawSummary{}, lastErr
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
