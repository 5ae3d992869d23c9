package main

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/xhad/docqa/pkg/scraper"
)

var crawlMaxDepth int

var crawlCmd = &cobra.Command{
	Use:   "crawl <url>",
	Short: "Crawl a documentation site and index every page",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), cfg, log)
		if err != nil {
			return err
		}
		defer a.Close()

		return a.crawl(cmd.Context(), args[0])
	},
}

func init() {
	crawlCmd.Flags().IntVar(&crawlMaxDepth, "max-depth", 0, "maximum link depth (default from config)")
}

// crawl scrapes url with a live page counter, then indexes every page.
func (a *app) crawl(ctx context.Context, url string) error {
	if !strings.HasPrefix(url, "http") {
		url = "https://" + url
	}
	color.Blue("\nStarting documentation pipeline for %s\n", url)

	var scrapeCount int32
	sc := a.scraperConfig(url)
	if crawlMaxDepth > 0 {
		sc.MaxDepth = crawlMaxDepth
	}
	sc.OnProgress = func(string) {
		atomic.AddInt32(&scrapeCount, 1)
	}

	s, err := scraper.NewWithConfig(sc)
	if err != nil {
		return fmt.Errorf("failed to initialize scraper: %w", err)
	}

	scrapingBar := getProgressBar(-1, " Scraping documentation...")
	startTime := time.Now()
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				count := atomic.LoadInt32(&scrapeCount)
				scrapingBar.Set(int(count))
				if elapsed := time.Since(startTime).Seconds(); elapsed > 0 && count > 0 {
					scrapingBar.Describe(color.BlueString(
						" Scraping documentation (%.1f pages/sec)", float64(count)/elapsed))
				}
			}
		}
	}()

	docs, err := s.Scrape(ctx)
	close(done)
	scrapingBar.Finish()
	if err != nil {
		return fmt.Errorf("failed to scrape documents: %w", err)
	}
	color.Green("\n✓ Scraped %d documents\n", len(docs))

	indexBar := getProgressBar(len(docs), " Indexing pages")
	chunks := 0
	startTime = time.Now()
	for i, doc := range docs {
		res, err := a.ingester.IngestDocument(ctx, doc)
		indexBar.Add(1)
		if err != nil {
			color.Red("\nFailed to index %s: %v", doc.Source, err)
			continue
		}
		chunks += res.ChunksIndexed

		elapsed := time.Since(startTime).Seconds()
		indexBar.Describe(color.BlueString(" Indexing pages (%.1f docs/sec)", float64(i+1)/elapsed))
	}
	indexBar.Finish()

	color.Green("\n✓ Indexed %d chunks\n", chunks)
	return nil
}
