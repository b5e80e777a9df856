package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrNetwork wraps every failure to reach the backend at all
var ErrNetwork = errors.New("network error")

// DetailUserNotFound is the one server detail callers branch on
const DetailUserNotFound = "USER_NOT_FOUND"

// Error is a request the backend answered with a non-2xx status
type Error struct {
	Status int
	Detail string
	Body   string
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("backend returned %d: %s", e.Status, e.Detail)
	}
	return fmt.Sprintf("backend returned %d %s", e.Status, http.StatusText(e.Status))
}

// Detail returns the server-provided detail of err, or fallback when err
// carries none
func Detail(err error, fallback string) string {
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.Detail != "" {
		return apiErr.Detail
	}
	return fallback
}

// IsUserNotFound reports whether err is the backend's USER_NOT_FOUND rejection
func IsUserNotFound(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Detail == DetailUserNotFound
}

// IsNotFound reports whether the backend answered 404
func IsNotFound(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

func newError(status int, body []byte) *Error {
	e := &Error{Status: status, Body: strings.TrimSpace(string(body))}

	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || len(payload.Detail) == 0 {
		return e
	}

	// detail is usually a string; validation failures send a list of objects
	var s string
	if err := json.Unmarshal(payload.Detail, &s); err == nil {
		e.Detail = s
		return e
	}

	var items []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(payload.Detail, &items); err == nil {
		msgs := make([]string, 0, len(items))
		for _, it := range items {
			if it.Msg != "" {
				msgs = append(msgs, it.Msg)
			}
		}
		e.Detail = strings.Join(msgs, "; ")
	}
	return e
}
