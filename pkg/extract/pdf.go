package extract

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/ledongthuc/pdf"
	"github.com/xhad/docqa/internal/models"
)

// PDF extracts the plain text of every page, keeping page numbers.
type PDF struct{}

func (PDF) Extract(ctx context.Context, name string, r io.Reader) (models.Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return models.Document{}, fmt.Errorf("failed to read pdf: %w", err)
	}

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return models.Document{}, fmt.Errorf("failed to open pdf: %w", err)
	}

	doc := models.Document{Name: name, Source: name}
	for i := 1; i <= reader.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return models.Document{}, err
		}

		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return models.Document{}, fmt.Errorf("failed to read pdf page %d: %w", i, err)
		}
		if text = normalize(text); text != "" {
			doc.Pages = append(doc.Pages, models.Page{Number: i, Text: text})
		}
	}

	return doc, nil
}
