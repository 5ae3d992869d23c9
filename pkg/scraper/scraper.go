// Package scraper crawls a documentation site and turns every page into a
// document ready for ingestion.
package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/xhad/docqa/internal/models"
	"github.com/xhad/docqa/pkg/extract"
	"golang.org/x/time/rate"
)

type ScraperConfig struct {
	BaseURL           string
	MaxDepth          int
	MaxPages          int
	RateLimit         float64 // requests per second
	IgnorePatterns    []string
	AllowedExtensions []string
	Timeout           time.Duration
	OnProgress        func(url string)
	Logger            *slog.Logger
}

type Scraper struct {
	config   ScraperConfig
	client   *http.Client
	visited  map[string]bool
	limiter  *rate.Limiter
	baseHost string
}

var noisePatterns = []string{
	"Cookie Policy",
	"Accept Cookies",
	"Privacy Policy",
	"Terms of Service",
}

func NewWithConfig(config ScraperConfig) (*Scraper, error) {
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.MaxDepth == 0 {
		config.MaxDepth = 3
	}
	if config.MaxPages == 0 {
		config.MaxPages = 200
	}
	if config.RateLimit == 0 {
		config.RateLimit = 2
	}
	if len(config.AllowedExtensions) == 0 {
		config.AllowedExtensions = []string{".html", ".htm", "/", ""}
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	parsedURL, err := url.Parse(config.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if parsedURL.Host == "" {
		return nil, fmt.Errorf("invalid base url %q: missing host", config.BaseURL)
	}

	return &Scraper{
		config: config,
		client: &http.Client{
			Timeout: config.Timeout,
		},
		visited:  make(map[string]bool),
		limiter:  rate.NewLimiter(rate.Limit(config.RateLimit), 1),
		baseHost: parsedURL.Host,
	}, nil
}

func (s *Scraper) shouldProcessURL(urlStr string) bool {
	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return false
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return false
	}
	if parsedURL.Host != s.baseHost {
		return false
	}

	path := strings.ToLower(parsedURL.Path)
	validExt := false
	for _, allowedExt := range s.config.AllowedExtensions {
		if allowedExt == "" {
			// extensionless paths such as /docs/intro
			if !strings.Contains(path[strings.LastIndex(path, "/")+1:], ".") {
				validExt = true
				break
			}
			continue
		}
		if strings.HasSuffix(path, allowedExt) {
			validExt = true
			break
		}
	}
	if !validExt {
		return false
	}

	for _, pattern := range s.config.IgnorePatterns {
		if strings.Contains(urlStr, pattern) {
			return false
		}
	}

	return true
}

func cleanContent(content string) string {
	for _, pattern := range noisePatterns {
		content = strings.ReplaceAll(content, pattern, "")
	}
	return strings.Join(strings.Fields(content), " ")
}

// Scrape crawls from the base URL breadth-first and returns one document per
// page that carries text. Page numbers are unknown for web pages.
func (s *Scraper) Scrape(ctx context.Context) ([]models.Document, error) {
	type item struct {
		url   string
		depth int
	}

	start := normalizeURL(s.config.BaseURL)
	queue := []item{{url: start}}
	var documents []models.Document

	for len(queue) > 0 && len(s.visited) < s.config.MaxPages {
		next := queue[0]
		queue = queue[1:]

		if next.depth > s.config.MaxDepth || s.visited[next.url] || !s.shouldProcessURL(next.url) {
			continue
		}
		s.visited[next.url] = true

		if s.config.OnProgress != nil {
			s.config.OnProgress(next.url)
		}

		doc, links, err := s.fetch(ctx, next.url)
		if err != nil {
			if ctx.Err() != nil {
				return documents, ctx.Err()
			}
			if next.url == start {
				return nil, err
			}
			s.config.Logger.Warn("scrape_page_failed", slog.String("url", next.url), slog.String("error", err.Error()))
			continue
		}
		if len(doc.Pages) > 0 {
			documents = append(documents, doc)
		}

		for _, link := range links {
			if !s.visited[link] {
				queue = append(queue, item{url: link, depth: next.depth + 1})
			}
		}
	}

	s.config.Logger.Info("scrape_completed",
		slog.String("base_url", s.config.BaseURL),
		slog.Int("visited", len(s.visited)),
		slog.Int("documents", len(documents)))

	return documents, nil
}

func (s *Scraper) fetch(ctx context.Context, urlStr string) (models.Document, []string, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return models.Document{}, nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return models.Document{}, nil, err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return models.Document{}, nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return models.Document{}, nil, fmt.Errorf("received status code %d for URL: %s", resp.StatusCode, urlStr)
	}

	page, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return models.Document{}, nil, fmt.Errorf("failed to parse %s: %w", urlStr, err)
	}

	links := s.links(page, resp.Request.URL)

	name := strings.TrimSpace(page.Find("title").First().Text())
	if name == "" {
		name = urlStr
	}
	doc := models.Document{Name: name, Source: urlStr}
	if text := cleanContent(extract.MainContent(page)); text != "" {
		doc.Pages = []models.Page{{Number: models.UnknownPage, Text: text}}
	}

	return doc, links, nil
}

func (s *Scraper) links(page *goquery.Document, base *url.URL) []string {
	var links []string
	page.Find("a[href]").Each(func(_ int, selection *goquery.Selection) {
		href, _ := selection.Attr("href")
		ref, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			return
		}
		abs := normalizeURL(base.ResolveReference(ref).String())
		if s.shouldProcessURL(abs) {
			links = append(links, abs)
		}
	})
	return links
}

// normalizeURL drops fragments so anchors on one page are fetched once.
func normalizeURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	u.Fragment = ""
	return u.String()
}
