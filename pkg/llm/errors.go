package llm

import (
	"errors"
	"net/http"
	"strings"

	"github.com/openai/openai-go"
	"github.com/xhad/docqa/internal/models"
)

// RateLimitedAnswer is returned when the provider throttles the request.
const RateLimitedAnswer = models.NotAvailableAnswer

func isRateLimited(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests
	}

	// Ollama reports the HTTP status line, e.g. "429 Too Many Requests: ...".
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, tooManyRequests) ||
		strings.Contains(msg, "status code: 429")
}

var tooManyRequests = strings.ToLower(http.StatusText(http.StatusTooManyRequests))

// fallbackAnswer maps a provider error to the fixed answer shown to callers.
func fallbackAnswer(err error) string {
	if isRateLimited(err) {
		return RateLimitedAnswer
	}
	return models.GenerationFailedAnswer
}
