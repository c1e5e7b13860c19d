// Package translate talks to a LibreTranslate-compatible translation service.
package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/dr-haathi/healthbot/internal/logger"
	"github.com/dr-haathi/healthbot/internal/models"
)

// Config describes the translation endpoint.
type Config struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	RateLimit  float64 // requests per second
	HTTPClient *http.Client
}

// Client calls POST {BaseURL}/translate.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	limiter *rate.Limiter
	log     *slog.Logger
}

type translateRequest struct {
	Q      string `json:"q"`
	Source string `json:"source"`
	Target string `json:"target"`
	Format string `json:"format"`
	APIKey string `json:"api_key,omitempty"`
}

type translateResponse struct {
	TranslatedText string `json:"translatedText"`
	Error          string `json:"error"`
}

// New instantiates the translation client.
func New(cfg Config, log *slog.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("translate base url is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 3 * time.Second
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 10
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		http:    httpClient,
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), 1),
		log:     logger.OrDiscard(log),
	}, nil
}

// Translate converts text from source to target. Every failure is reported as
// models.ErrTranslationUnavailable.
func (c *Client) Translate(ctx context.Context, text string, source, target models.Language) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("%w: rate limit: %v", models.ErrTranslationUnavailable, err)
	}

	payload, err := json.Marshal(translateRequest{
		Q:      text,
		Source: string(source),
		Target: string(target),
		Format: "text",
		APIKey: c.apiKey,
	})
	if err != nil {
		return "", fmt.Errorf("%w: marshal request: %v", models.ErrTranslationUnavailable, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/translate", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("%w: build request: %v", models.ErrTranslationUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")

	started := time.Now()
	res, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrTranslationUnavailable, err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return "", fmt.Errorf("%w: status %d: %s", models.ErrTranslationUnavailable, res.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed translateResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", models.ErrTranslationUnavailable, err)
	}
	if parsed.Error != "" {
		return "", fmt.Errorf("%w: %s", models.ErrTranslationUnavailable, parsed.Error)
	}
	if strings.TrimSpace(parsed.TranslatedText) == "" && strings.TrimSpace(text) != "" {
		return "", fmt.Errorf("%w: empty translation", models.ErrTranslationUnavailable)
	}

	c.log.Debug("translated text",
		slog.String("source", string(source)),
		slog.String("target", string(target)),
		slog.Duration("took", time.Since(started)),
	)
	return parsed.TranslatedText, nil
}
