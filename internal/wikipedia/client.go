// Package wikipedia fetches topic summaries from the Wikipedia REST API.
package wikipedia

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"

	"github.com/dr-haathi/healthbot/internal/logger"
	"github.com/dr-haathi/healthbot/internal/models"
	"github.com/dr-haathi/healthbot/internal/processing"
)

const (
	typeDisambiguation = "disambiguation"
	// maxCandidates bounds the summary lookups made from one search.
	maxCandidates = 3
)

// Config describes how to reach Wikipedia. BaseURL may contain a {lang}
// placeholder, e.g. https://{lang}.wikipedia.org.
type Config struct {
	BaseURL     string
	UserAgent   string
	RateLimit   float64 // requests per second
	Timeout     time.Duration
	SearchLimit int
	HTTPClient  *http.Client
}

// Client looks up page summaries, falling back to search for missing and
// disambiguation pages.
type Client struct {
	baseURL     string
	userAgent   string
	searchLimit int
	http        *http.Client
	limiter     *rate.Limiter
	log         *slog.Logger
	now         func() time.Time
}

type pageSummary struct {
	Type        string `json:"type"`
	Title       string `json:"title"`
	Extract     string `json:"extract"`
	ExtractHTML string `json:"extract_html"`
	ContentURLs struct {
		Desktop struct {
			Page string `json:"page"`
		} `json:"desktop"`
	} `json:"content_urls"`
}

// New instantiates the Wikipedia client.
func New(cfg Config, log *slog.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("wikipedia base url is required")
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "healthbot/1.0"
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 5
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.SearchLimit <= 0 {
		cfg.SearchLimit = 5
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		userAgent:   cfg.UserAgent,
		searchLimit: cfg.SearchLimit,
		http:        httpClient,
		limiter:     rate.NewLimiter(rate.Limit(cfg.RateLimit), 1),
		log:         logger.OrDiscard(log),
		now:         time.Now,
	}, nil
}

// Name identifies the source in logs.
func (c *Client) Name() string {
	return "wikipedia"
}

// FetchSummary returns the summary for topic. A disambiguation page resolves to
// the first search result that is a regular article; the summary is then
// marked Disambiguated.
func (c *Client) FetchSummary(ctx context.Context, topic string, lang models.Language) (models.RawSummary, error) {
	page, err := c.summary(ctx, topic, lang)
	switch {
	case errors.Is(err, models.ErrNotFound):
		return c.resolve(ctx, topic, lang, "")
	case err != nil:
		return models.RawSummary{}, err
	case page.Type == typeDisambiguation:
		return c.resolve(ctx, topic, lang, page.Title)
	}
	return c.toRaw(page, topic)
}

// resolve walks search results for topic. A non-empty disambiguation title is
// skipped and turns an exhausted search into models.ErrAmbiguous.
func (c *Client) resolve(ctx context.Context, topic string, lang models.Language, disambiguation string) (models.RawSummary, error) {
	titles, err := c.search(ctx, topic, lang)
	if err != nil {
		return models.RawSummary{}, err
	}

	tried := 0
	for _, title := range titles {
		if tried == maxCandidates {
			break
		}
		if disambiguation != "" && strings.EqualFold(title, disambiguation) {
			continue
		}
		tried++

		page, err := c.summary(ctx, title, lang)
		if errors.Is(err, models.ErrNotFound) {
			continue
		}
		if err != nil {
			return models.RawSummary{}, err
		}
		if page.Type == typeDisambiguation {
			continue
		}

		raw, err := c.toRaw(page, title)
		if err != nil {
			return models.RawSummary{}, err
		}
		if disambiguation != "" {
			raw.Disambiguated = true
			c.log.Info("disambiguation resolved to first search result",
				slog.String("topic", topic),
				slog.String("page", raw.Title),
			)
		}
		return raw, nil
	}

	if disambiguation != "" {
		return models.RawSummary{}, fmt.Errorf("%w: %q has no unambiguous article", models.ErrAmbiguous, topic)
	}
	return models.RawSummary{}, fmt.Errorf("%w: %q", models.ErrNotFound, topic)
}

func (c *Client) summary(ctx context.Context, title string, lang models.Language) (pageSummary, error) {
	endpoint := c.base(lang) + "/api/rest_v1/page/summary/" + url.PathEscape(strings.ReplaceAll(strings.TrimSpace(title), " ", "_")) + "?redirect=true"

	var page pageSummary
	if err := c.getJSON(ctx, endpoint, &page); err != nil {
		return pageSummary{}, err
	}
	return page, nil
}

func (c *Client) search(ctx context.Context, topic string, lang models.Language) ([]string, error) {
	q := url.Values{}
	q.Set("action", "opensearch")
	q.Set("search", topic)
	q.Set("limit", fmt.Sprint(c.searchLimit))
	q.Set("namespace", "0")
	q.Set("format", "json")

	var raw []json.RawMessage
	if err := c.getJSON(ctx, c.base(lang)+"/w/api.php?"+q.Encode(), &raw); err != nil {
		return nil, err
	}
	if len(raw) < 2 {
		return nil, fmt.Errorf("%w: opensearch returned %d fields", models.ErrUpstreamMalformed, len(raw))
	}
	var titles []string
	if err := json.Unmarshal(raw[1], &titles); err != nil {
		return nil, fmt.Errorf("%w: decode opensearch titles: %v", models.ErrUpstreamMalformed, err)
	}
	return titles, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: rate limit: %v", models.ErrUpstreamUnavailable, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("%w: build request: %v", models.ErrUpstreamMalformed, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrUpstreamUnavailable, err)
	}
	defer res.Body.Close()

	switch {
	case res.StatusCode == http.StatusOK:
	case res.StatusCode == http.StatusTooManyRequests || res.StatusCode >= http.StatusInternalServerError:
		return fmt.Errorf("%w: status %d", models.ErrUpstreamUnavailable, res.StatusCode)
	case res.StatusCode >= http.StatusBadRequest:
		return fmt.Errorf("%w: status %d", models.ErrNotFound, res.StatusCode)
	default:
		return fmt.Errorf("%w: unexpected status %d", models.ErrUpstreamMalformed, res.StatusCode)
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return fmt.Errorf("%w: read body: %v", models.ErrUpstreamUnavailable, err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: decode %s: %v", models.ErrUpstreamMalformed, endpoint, err)
	}
	return nil
}

func (c *Client) toRaw(page pageSummary, fallbackTitle string) (models.RawSummary, error) {
	extract := strings.TrimSpace(page.Extract)
	if extract == "" && page.ExtractHTML != "" {
		extract = htmlText(page.ExtractHTML)
	}
	if extract == "" {
		return models.RawSummary{}, fmt.Errorf("%w: page %q has no extract", models.ErrUpstreamMalformed, page.Title)
	}
	title := page.Title
	if title == "" {
		title = fallbackTitle
	}
	return models.RawSummary{
		Title:       title,
		URL:         page.ContentURLs.Desktop.Page,
		Extract:     extract,
		RetrievedAt: c.now().UTC(),
	}, nil
}

func (c *Client) base(lang models.Language) string {
	return strings.ReplaceAll(c.baseURL, "{lang}", string(lang))
}

// htmlText flattens an extract_html fragment into plain text.
func htmlText(fragment string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return ""
	}
	return processing.CollapseWhitespace(doc.Text())
}
