package session

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Response is the outcome of a single Chef server call
type Response struct {
	StatusCode int
	Body       []byte
}

// OK reports whether the server answered with a 2xx status
func (r *Response) OK() bool {
	return r != nil && r.StatusCode >= 200 && r.StatusCode < 300
}

// Text returns the raw body, trimmed
func (r *Response) Text() string {
	if r == nil {
		return ""
	}
	return strings.TrimSpace(string(r.Body))
}

// JSON decodes the body into v
func (r *Response) JSON(v any) error {
	if r == nil || len(r.Body) == 0 {
		return fmt.Errorf("empty response body")
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("failed to decode response body: %w", err)
	}
	return nil
}
