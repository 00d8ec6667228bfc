package grades

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var ErrMissingSecret = errors.New("grades client: service token secret required")

type HTTPError struct {
	StatusCode int
	Message    string
	Code       string
	Body       string
}

func (e *HTTPError) Error() string {
	if e == nil {
		return "http error"
	}
	msg := strings.TrimSpace(e.Message)
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	if msg == "" {
		msg = "http error"
	}
	if strings.TrimSpace(e.Code) != "" {
		return fmt.Sprintf("grades http error: status=%d code=%s message=%s", e.StatusCode, strings.TrimSpace(e.Code), msg)
	}
	return fmt.Sprintf("grades http error: status=%d message=%s", e.StatusCode, msg)
}

// Temporary reports whether the request may succeed on retry.
func (e *HTTPError) Temporary() bool {
	return e != nil && (e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500)
}

func parseHTTPError(status int, raw []byte) error {
	body := strings.TrimSpace(string(raw))

	var env struct {
		Error struct {
			Message string `json:"message"`
			Code    string `json:"code,omitempty"`
		} `json:"error"`
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(raw, &env); err == nil {
		msg := strings.TrimSpace(env.Error.Message)
		if msg == "" {
			msg = strings.TrimSpace(env.Detail)
		}
		if msg != "" {
			return &HTTPError{
				StatusCode: status,
				Message:    msg,
				Code:       strings.TrimSpace(env.Error.Code),
				Body:       body,
			}
		}
	}
	return &HTTPError{StatusCode: status, Body: body}
}
