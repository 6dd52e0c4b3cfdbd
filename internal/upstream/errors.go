package upstream

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"mcp-fleet/internal/shape"
)

// Error is a non-2xx response from a vendor API.
type Error struct {
	Vendor     string
	StatusCode int
	Message    string
	Body       string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s API error (HTTP %d)", e.Vendor, e.StatusCode)
	}
	return fmt.Sprintf("%s API error (HTTP %d): %s", e.Vendor, e.StatusCode, e.Message)
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var ue *Error
	if errors.As(err, &ue) {
		return ue.StatusCode
	}
	return 0
}

// IsNotFound reports whether err is an upstream 404.
func IsNotFound(err error) bool { return StatusCode(err) == http.StatusNotFound }

// IsRateLimited reports whether err is an upstream 429.
func IsRateLimited(err error) bool { return StatusCode(err) == http.StatusTooManyRequests }

// ErrorDecoder extracts a human readable message from an error body.
// Returning "" falls back to the default decoder.
type ErrorDecoder func(status int, body []byte) string

// messagePaths are tried in order against JSON error bodies.
var messagePaths = []string{
	"error.message",
	"error_description",
	"message",
	"error",
	"errors[0].detail",
	"errors[0].message",
	"errors[0].title",
	"errors[0]",
	"description",
	"detail",
}

// DefaultErrorMessage reads the common error fields vendors use. Non-JSON
// bodies are returned truncated; empty bodies map to the status text.
func DefaultErrorMessage(status int, body []byte) string {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return http.StatusText(status)
	}
	doc, err := shape.Decode(body)
	if err != nil {
		return shape.Truncate(trimmed, 300)
	}
	for _, p := range messagePaths {
		if s, ok := shape.Path(doc, p).(string); ok && s != "" {
			return s
		}
	}
	return shape.Truncate(trimmed, 300)
}
