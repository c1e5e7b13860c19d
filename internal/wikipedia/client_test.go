package wikipedia

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dr-haathi/healthbot/internal/models"
)

type page struct {
	Type        string `json:"type"`
	Title       string `json:"title"`
	Extract     string `json:"extract,omitempty"`
	ExtractHTML string `json:"extract_html,omitempty"`
	ContentURLs struct {
		Desktop struct {
			Page string `json:"page"`
		} `json:"desktop"`
	} `json:"content_urls"`
}

func article(title, extract string) page {
	p := page{Type: "standard", Title: title, Extract: extract}
	p.ContentURLs.Desktop.Page = "https://en.wikipedia.org/wiki/" + strings.ReplaceAll(title, " ", "_")
	return p
}

// fakeWiki serves summaries keyed by underscored title and a fixed search result.
type fakeWiki struct {
	pages    map[string]page
	search   []string
	status   int
	requests atomic.Int32
}

func (f *fakeWiki) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.requests.Add(1)
	if f.status != 0 {
		w.WriteHeader(f.status)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	switch {
	case strings.HasPrefix(r.URL.Path, "/api/rest_v1/page/summary/"):
		title := strings.TrimPrefix(r.URL.Path, "/api/rest_v1/page/summary/")
		p, ok := f.pages[title]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"type":"https://mediawiki.org/wiki/HyperSwitch/errors/not_found"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(p)
	case r.URL.Path == "/w/api.php":
		_ = json.NewEncoder(w).Encode([]any{r.URL.Query().Get("search"), f.search, []string{}, []string{}})
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func newTestClient(t *testing.T, fake *fakeWiki) *Client {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	c, err := New(Config{BaseURL: srv.URL, RateLimit: 1000, Timeout: time.Second}, nil)
	require.NoError(t, err)
	c.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }
	return c
}

func TestFetchSummaryStandardPage(t *testing.T) {
	fake := &fakeWiki{pages: map[string]page{
		"dengue_fever": article("Dengue fever", "Dengue fever is a mosquito-borne tropical disease."),
	}}
	c := newTestClient(t, fake)

	raw, err := c.FetchSummary(context.Background(), "dengue fever", "en")
	require.NoError(t, err)
	require.Equal(t, "Dengue fever", raw.Title)
	require.Equal(t, "https://en.wikipedia.org/wiki/Dengue_fever", raw.URL)
	require.Equal(t, "Dengue fever is a mosquito-borne tropical disease.", raw.Extract)
	require.False(t, raw.Disambiguated)
	require.Equal(t, time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC), raw.RetrievedAt)
}

func TestFetchSummaryFallsBackToSearchOnMissingPage(t *testing.T) {
	fake := &fakeWiki{
		pages: map[string]page{
			"Dengue_fever": article("Dengue fever", "Dengue fever is a disease."),
		},
		search: []string{"Dengue fever"},
	}
	c := newTestClient(t, fake)

	raw, err := c.FetchSummary(context.Background(), "dengue", "en")
	require.NoError(t, err)
	require.Equal(t, "Dengue fever", raw.Title)
	require.False(t, raw.Disambiguated)
}

func TestFetchSummaryNotFound(t *testing.T) {
	c := newTestClient(t, &fakeWiki{})

	_, err := c.FetchSummary(context.Background(), "xyzzy", "en")
	require.ErrorIs(t, err, models.ErrNotFound)
}

func TestFetchSummaryResolvesDisambiguation(t *testing.T) {
	fake := &fakeWiki{
		pages: map[string]page{
			"cold":        {Type: "disambiguation", Title: "Cold", Extract: "Cold may refer to:"},
			"Common_cold": article("Common cold", "The common cold is a viral infection."),
		},
		search: []string{"Cold", "Common cold", "Cold (band)"},
	}
	c := newTestClient(t, fake)

	raw, err := c.FetchSummary(context.Background(), "cold", "en")
	require.NoError(t, err)
	require.Equal(t, "Common cold", raw.Title)
	require.True(t, raw.Disambiguated)
}

func TestFetchSummaryAmbiguousWithoutCandidates(t *testing.T) {
	fake := &fakeWiki{
		pages: map[string]page{
			"mercury": {Type: "disambiguation", Title: "Mercury", Extract: "Mercury may refer to:"},
		},
		search: []string{"Mercury"},
	}
	c := newTestClient(t, fake)

	_, err := c.FetchSummary(context.Background(), "mercury", "en")
	require.ErrorIs(t, err, models.ErrAmbiguous)
}

func TestFetchSummaryUsesExtractHTML(t *testing.T) {
	p := page{Type: "standard", Title: "Migraine", ExtractHTML: "<p><b>Migraine</b> is a  headache disorder.</p>"}
	c := newTestClient(t, &fakeWiki{pages: map[string]page{"migraine": p}})

	raw, err := c.FetchSummary(context.Background(), "migraine", "en")
	require.NoError(t, err)
	require.Equal(t, "Migraine is a headache disorder.", raw.Extract)
}

func TestFetchSummaryEmptyExtractIsMalformed(t *testing.T) {
	p := page{Type: "no-extract", Title: "Blank"}
	c := newTestClient(t, &fakeWiki{pages: map[string]page{"blank": p}})

	_, err := c.FetchSummary(context.Background(), "blank", "en")
	require.ErrorIs(t, err, models.ErrUpstreamMalformed)
}

func TestFetchSummaryServerErrorsAreUnavailable(t *testing.T) {
	for _, status := range []int{http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable} {
		fake := &fakeWiki{status: status}
		c := newTestClient(t, fake)

		_, err := c.FetchSummary(context.Background(), "dengue", "en")
		require.ErrorIs(t, err, models.ErrUpstreamUnavailable, "status %d", status)
		require.EqualValues(t, 1, fake.requests.Load())
	}
}

func TestFetchSummaryUndecodableBodyIsMalformed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html>not json</html>"))
	}))
	defer srv.Close()

	c, err := New(Config{BaseURL: srv.URL, RateLimit: 1000}, nil)
	require.NoError(t, err)

	_, err = c.FetchSummary(context.Background(), "dengue", "en")
	require.ErrorIs(t, err, models.ErrUpstreamMalformed)
}

func TestFetchSummaryCancelledContextIsUnavailable(t *testing.T) {
	c := newTestClient(t, &fakeWiki{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.FetchSummary(ctx, "dengue", "en")
	require.ErrorIs(t, err, models.ErrUpstreamUnavailable)
}

func TestBaseURLLanguagePlaceholder(t *testing.T) {
	c, err := New(Config{BaseURL: "https://{lang}.wikipedia.org/"}, nil)
	require.NoError(t, err)
	require.Equal(t, "https://hi.wikipedia.org", c.base("hi"))
}

func TestNewRequiresBaseURL(t *testing.T) {
	_, err := New(Config{}, nil)
	require.Error(t, err)
}
