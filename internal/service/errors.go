package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// ErrUnavailable wraps transport failures and an open circuit breaker.
var ErrUnavailable = errors.New("service unavailable")

// HTTPError is a non-success response that is not a version conflict.
type HTTPError struct {
	Method  string
	Path    string
	Status  int
	// Code is the machine-readable error code from the body, when present.
	Code    string
	Message string
}

func (e *HTTPError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.Status, e.Message)
}

// Unauthorized reports whether the backend rejected the caller's credentials.
func (e *HTTPError) Unauthorized() bool {
	return e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden
}

// ConflictError is returned when the backend rejects a write because its copy
// of the resource has moved on. Current holds the authoritative state: the
// whole collection for collection resources, the object for singletons.
type ConflictError struct {
	Method  string
	Path    string
	Current json.RawMessage
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s %s: version conflict", e.Method, e.Path)
}

// Decode unmarshals the authoritative snapshot into dst.
func (e *ConflictError) Decode(dst any) error {
	if err := json.Unmarshal(e.Current, dst); err != nil {
		return fmt.Errorf("decode conflict snapshot: %w", err)
	}
	return nil
}

// Snapshot returns the snapshot as generic JSON values with dates hydrated.
func (e *ConflictError) Snapshot() any {
	var v any
	if err := json.Unmarshal(e.Current, &v); err != nil {
		return nil
	}
	return HydrateDates(v)
}

// AsConflict unwraps err to a *ConflictError.
func AsConflict(err error) (*ConflictError, bool) {
	var ce *ConflictError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// IsUnauthorized reports whether err is a 401 or 403 from the backend.
func IsUnauthorized(err error) bool {
	var he *HTTPError
	return errors.As(err, &he) && he.Unauthorized()
}

// conflictBody is the shape that identifies a 409 as a version conflict.
type conflictBody struct {
	Error   string          `json:"error"`
	Current json.RawMessage `json:"current"`
}

type messageBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

func parseConflict(body []byte) (json.RawMessage, bool) {
	var cb conflictBody
	if err := json.Unmarshal(body, &cb); err != nil {
		return nil, false
	}
	if cb.Error != "conflict" || len(cb.Current) == 0 {
		return nil, false
	}
	return cb.Current, true
}

// parseMessage returns the body's code and human-readable message.
func parseMessage(body []byte) (code, message string) {
	var mb messageBody
	if err := json.Unmarshal(body, &mb); err != nil {
		return "", ""
	}
	if mb.Message != "" {
		return mb.Code, mb.Message
	}
	return mb.Code, mb.Error
}

func newHTTPError(method, path string, status int, body []byte) *HTTPError {
	code, msg := parseMessage(body)
	return &HTTPError{Method: method, Path: path, Status: status, Code: code, Message: msg}
}
