package extract

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/xhad/docqa/internal/models"
)

// Text reads UTF-8 text. Form feeds separate pages.
type Text struct{}

func (Text) Extract(_ context.Context, name string, r io.Reader) (models.Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return models.Document{}, fmt.Errorf("failed to read text: %w", err)
	}

	content := strings.ToValidUTF8(string(data), "")

	doc := models.Document{Name: name, Source: name}
	for i, part := range strings.Split(content, "\f") {
		if text := normalize(part); text != "" {
			doc.Pages = append(doc.Pages, models.Page{Number: i + 1, Text: text})
		}
	}
	return doc, nil
}
