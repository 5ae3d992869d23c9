package scraper

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/docqa/internal/models"
)

func TestScraperConfig(t *testing.T) {
	config := ScraperConfig{
		BaseURL:        "https://example.com",
		MaxDepth:       5,
		RateLimit:      1.0,
		IgnorePatterns: []string{"/ignore/", "private"},
		Timeout:        10 * time.Second,
	}

	s, err := NewWithConfig(config)
	require.NoError(t, err)
	assert.Equal(t, config.BaseURL, s.config.BaseURL)
	assert.Equal(t, config.MaxDepth, s.config.MaxDepth)
	assert.Equal(t, 200, s.config.MaxPages)
	assert.NotNil(t, s.config.Logger)

	_, err = NewWithConfig(ScraperConfig{BaseURL: "not a url"})
	assert.Error(t, err)
}

func TestShouldProcessURL(t *testing.T) {
	config := ScraperConfig{
		BaseURL:           "https://example.com",
		IgnorePatterns:    []string{"/ignore/", "private"},
		AllowedExtensions: []string{".html", "/"},
	}

	s, err := NewWithConfig(config)
	require.NoError(t, err)

	tests := []struct {
		url      string
		expected bool
	}{
		{"https://example.com/docs/", true},
		{"https://example.com/page.html", true},
		{"https://example.com/ignore/page.html", false},
		{"https://example.com/private.html", false},
		{"https://other-domain.com/page.html", false},
		{"https://example.com/file.pdf", false},
		{"mailto:docs@example.com", false},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, tt.expected, s.shouldProcessURL(tt.url))
		})
	}
}

func TestShouldProcessURL_Extensionless(t *testing.T) {
	s, err := NewWithConfig(ScraperConfig{BaseURL: "https://example.com"})
	require.NoError(t, err)

	assert.True(t, s.shouldProcessURL("https://example.com/docs/intro"))
	assert.True(t, s.shouldProcessURL("https://example.com"))
	assert.False(t, s.shouldProcessURL("https://example.com/logo.png"))
}

func TestCleanContent(t *testing.T) {
	assert.Equal(t, "Intro text", cleanContent("  Intro \n text  Cookie Policy "))
}

func newSite(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`
			<html>
				<head><title>Test Page</title></head>
				<body>
					<nav>Menu</nav>
					<main>
						<h1>Test Content</h1>
						<p>This is a test paragraph.</p>
						<a href="/page2.html">Link</a>
						<a href="/page2.html#section">Anchor</a>
						<a href="/missing.html">Missing</a>
						<a href="https://elsewhere.example.org/">External</a>
					</main>
				</body>
			</html>
		`))
	})
	mux.HandleFunc("/page2.html", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><head><title>Second</title></head><body><article>Second page body <a href="/">Home</a></article></body></html>`))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestScrapeWithMockServer(t *testing.T) {
	server := newSite(t)

	var progress []string
	s, err := NewWithConfig(ScraperConfig{
		BaseURL:    server.URL,
		MaxDepth:   1,
		RateLimit:  100,
		OnProgress: func(url string) { progress = append(progress, url) },
	})
	require.NoError(t, err)

	docs, err := s.Scrape(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 2)

	first := docs[0]
	assert.Equal(t, server.URL, first.Source)
	assert.Equal(t, "Test Page", first.Name)
	require.Len(t, first.Pages, 1)
	assert.Equal(t, models.UnknownPage, first.Pages[0].Number)
	assert.Contains(t, first.Pages[0].Text, "Test Content")
	assert.Contains(t, first.Pages[0].Text, "This is a test paragraph")
	assert.NotContains(t, first.Pages[0].Text, "Menu")

	assert.Equal(t, server.URL+"/page2.html", docs[1].Source)
	assert.Equal(t, "Second page body Home", docs[1].Pages[0].Text)

	// page2 is fetched once despite the anchor link, the 404 is skipped.
	assert.Equal(t, []string{server.URL, server.URL + "/page2.html", server.URL + "/missing.html"}, progress)
}

func TestScrape_NegativeDepth(t *testing.T) {
	server := newSite(t)

	s, err := NewWithConfig(ScraperConfig{BaseURL: server.URL, MaxDepth: -1, RateLimit: 100})
	require.NoError(t, err)

	docs, err := s.Scrape(context.Background())
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestScrape_StartFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	s, err := NewWithConfig(ScraperConfig{BaseURL: server.URL, RateLimit: 100})
	require.NoError(t, err)

	_, err = s.Scrape(context.Background())
	assert.Error(t, err)
}

func TestScrape_Cancelled(t *testing.T) {
	server := newSite(t)

	s, err := NewWithConfig(ScraperConfig{BaseURL: server.URL, RateLimit: 100})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.Scrape(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
