package extract

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/xhad/docqa/internal/models"
)

var mainContentSelectors = []string{
	"main",
	"article",
	".content",
	"#content",
	".documentation",
	"#documentation",
}

// HTML extracts the main content of a page. Web pages have no page numbers.
type HTML struct{}

func (HTML) Extract(_ context.Context, name string, r io.Reader) (models.Document, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return models.Document{}, fmt.Errorf("failed to parse html: %w", err)
	}

	out := models.Document{Name: name, Source: name}
	if text := MainContent(doc); text != "" {
		out.Pages = []models.Page{{Number: models.UnknownPage, Text: text}}
	}
	return out, nil
}

// MainContent returns the text of the first main-content element, falling
// back to the body, with whitespace collapsed.
func MainContent(doc *goquery.Document) string {
	doc.Find("script, style, noscript").Remove()

	var content string
	for _, selector := range mainContentSelectors {
		if selected := doc.Find(selector); selected.Length() > 0 {
			content = selected.Text()
			break
		}
	}
	if content == "" {
		content = doc.Find("body").Text()
	}

	return strings.Join(strings.Fields(content), " ")
}
