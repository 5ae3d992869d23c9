// Package extract turns uploaded files into page-numbered text.
package extract

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/xhad/docqa/internal/types"
)

var ErrUnsupportedType = errors.New("unsupported document type")

// SupportedExtensions lists the file extensions ForName accepts.
var SupportedExtensions = []string{".pdf", ".txt", ".html", ".htm"}

// ForName picks an extractor from the file extension of name.
func ForName(name string) (types.Extractor, error) {
	switch ext := strings.ToLower(filepath.Ext(name)); ext {
	case ".pdf":
		return PDF{}, nil
	case ".txt":
		return Text{}, nil
	case ".html", ".htm":
		return HTML{}, nil
	default:
		return nil, fmt.Errorf("%w: %q (supported: %s)", ErrUnsupportedType, ext, strings.Join(SupportedExtensions, ", "))
	}
}

func normalize(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.TrimSpace(strings.ReplaceAll(s, "\r", "\n"))
}
