package places

import (
	"errors"
	"fmt"
	"strings"
)

var ErrMissingAPIKey = errors.New("places: PLACES_API_KEY is required")

// HTTPError is a non-2xx response from the place search upstream.
type HTTPError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *HTTPError) Error() string {
	if e == nil {
		return "places http error"
	}
	msg := fmt.Sprintf("places api error: status=%s", strings.TrimSpace(e.Status))
	if e.Body != "" {
		msg += " body=" + e.Body
	}
	return msg
}

func newHTTPError(status string, code int, body []byte) *HTTPError {
	const max = 512
	b := body
	truncated := false
	if len(b) > max {
		b = b[:max]
		truncated = true
	}
	s := strings.TrimSpace(strings.NewReplacer("\n", " ", "\r", " ").Replace(string(b)))
	if truncated {
		s += "..."
	}
	return &HTTPError{StatusCode: code, Status: status, Body: s}
}
