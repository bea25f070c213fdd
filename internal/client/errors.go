package client

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// TransportError reports a call to the REFLEX server that either never
// completed or came back with a non-success status. It is the only error kind
// the client surfaces; failed stages are reported in-band by the server.
type TransportError struct {
	Method     string
	Path       string
	StatusCode int
	Message    string
	Cause      error
}

func (e *TransportError) Error() string {
	target := strings.TrimSpace(e.Method + " " + e.Path)
	if e.StatusCode > 0 {
		return fmt.Sprintf("api error: %s: %d %s", target, e.StatusCode, e.Message)
	}
	if e.Cause != nil {
		return fmt.Sprintf("api error: %s: %s: %v", target, e.Message, e.Cause)
	}
	return fmt.Sprintf("api error: %s: %s", target, e.Message)
}

func (e *TransportError) Unwrap() error {
	return e.Cause
}

// Temporary reports whether retrying the same call later could succeed:
// network failures and 5xx responses.
func (e *TransportError) Temporary() bool {
	return e.StatusCode == 0 || e.StatusCode >= http.StatusInternalServerError
}

// errorMessage derives a readable message from an error response body. The
// server reports problems as {"detail": "..."}; anything else falls back to
// the status text.
func errorMessage(status int, body []byte) string {
	var payload struct {
		Detail any    `json:"detail"`
		Error  string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		switch detail := payload.Detail.(type) {
		case string:
			if strings.TrimSpace(detail) != "" {
				return detail
			}
		case nil:
		default:
			if raw, err := json.Marshal(detail); err == nil {
				return string(raw)
			}
		}
		if strings.TrimSpace(payload.Error) != "" {
			return payload.Error
		}
	}
	if text := http.StatusText(status); text != "" {
		return text
	}
	return "unexpected response"
}
