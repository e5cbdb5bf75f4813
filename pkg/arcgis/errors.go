package arcgis

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// APIError is the error payload the REST API returns, either as a non-2xx
// response or inside a 200 response as {"error": {...}}.
type APIError struct {
	Code        int      `json:"code"`
	MessageCode string   `json:"messageCode,omitempty"`
	Message     string   `json:"message"`
	Details     []string `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	msg := e.Message
	if len(e.Details) > 0 {
		msg += " (" + strings.Join(e.Details, "; ") + ")"
	}
	return fmt.Sprintf("arcgis: error %d: %s", e.Code, msg)
}

// invalidToken reports whether the token was rejected or has expired.
func (e *APIError) invalidToken() bool {
	return e.Code == 498 || e.Code == 499
}

func (e *APIError) notFound() bool {
	if e.Code == http.StatusNotFound || e.MessageCode == "CONT_0001" {
		return true
	}
	return strings.Contains(strings.ToLower(e.Message), "does not exist")
}

func (e *APIError) forbidden() bool {
	if e.Code == http.StatusForbidden {
		return true
	}
	msg := strings.ToLower(e.Message + " " + strings.Join(e.Details, " "))
	return strings.Contains(msg, "permission") || strings.Contains(msg, "administrator")
}

func (e *APIError) invalidArgument() bool {
	msg := strings.ToLower(e.Message + " " + strings.Join(e.Details, " "))
	return strings.Contains(msg, "invalid")
}

// asAPIError extracts an *APIError from err's chain.
func asAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// truncate keeps error bodies short enough for a log line.
func truncate(body []byte) string {
	const limit = 256
	if len(body) > limit {
		return string(body[:limit]) + "..."
	}
	return string(body)
}
