package sonar

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// APIError is a non-2xx response from the server.
type APIError struct {
	Method   string
	Path     string
	Status   int
	Messages []string
}

func (e *APIError) Error() string {
	msg := http.StatusText(e.Status)
	if len(e.Messages) > 0 {
		msg = strings.Join(e.Messages, "; ")
	}
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.Status, msg)
}

type errorBody struct {
	Errors []struct {
		Msg string `json:"msg"`
	} `json:"errors"`
}

func newAPIError(method, path string, status int, body []byte) *APIError {
	apiErr := &APIError{Method: method, Path: path, Status: status}

	var parsed errorBody
	if json.Unmarshal(body, &parsed) == nil {
		for _, e := range parsed.Errors {
			if e.Msg != "" {
				apiErr.Messages = append(apiErr.Messages, e.Msg)
			}
		}
	}
	return apiErr
}

// StatusCode returns the HTTP status of err, 0 if it is not an APIError.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

// IsNotFound reports whether err is a 404 from the server.
func IsNotFound(err error) bool {
	return StatusCode(err) == http.StatusNotFound
}

// IsUnauthorized reports whether the server rejected the credentials.
func IsUnauthorized(err error) bool {
	code := StatusCode(err)
	return code == http.StatusUnauthorized || code == http.StatusForbidden
}
