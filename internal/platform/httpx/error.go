// Package httpx holds the JSON plumbing shared by the HTTP handlers.
package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/AbdelrhmanRafat/Funnel-Pages-sub000/internal/platform/requestctx"
)

const (
	codeLimit    = 80
	messageLimit = 512
	idLimit      = 80
	traceLimit   = 64
)

// Error is the JSON error body written by every handler. Clients branch on
// Code; Message is human readable.
type Error struct {
	Code    string
	Message string
	Status  int
	Details map[string]any
}

// NewError builds an error envelope. A zero status means 500.
func NewError(code, message string, status int) Error {
	if status == 0 {
		status = http.StatusInternalServerError
	}
	return Error{
		Code:    sanitize(code, codeLimit),
		Message: sanitize(message, messageLimit),
		Status:  status,
	}
}

// WithDetails merges extra JSON fields into the envelope. Keys that collide
// with the envelope's own fields are dropped when written.
func (e Error) WithDetails(details map[string]any) Error {
	if len(details) == 0 {
		return e
	}
	merged := make(map[string]any, len(e.Details)+len(details))
	for k, v := range e.Details {
		merged[k] = v
	}
	for k, v := range details {
		merged[k] = v
	}
	e.Details = merged
	return e
}

func (e Error) Error() string { return e.Code + ": " + e.Message }

// AsError extracts an envelope from an error chain.
func AsError(err error) (Error, bool) {
	var e Error
	if errors.As(err, &e) {
		return e, true
	}
	return Error{}, false
}

// WriteError writes the envelope with request correlation fields taken from
// ctx. Error responses are never cached.
func WriteError(ctx context.Context, w http.ResponseWriter, err Error) {
	if err.Status == 0 {
		err.Status = http.StatusInternalServerError
	}
	body := map[string]any{
		"error":   err.Code,
		"message": err.Message,
		"status":  err.Status,
	}
	optional := map[string]string{
		"request_id": sanitize(middleware.GetReqID(ctx), idLimit),
		"trace_id":   sanitize(requestctx.TraceID(ctx), traceLimit),
		"locale":     sanitize(requestctx.Locale(ctx), idLimit),
	}
	for k, v := range optional {
		if v != "" {
			body[k] = v
		}
	}
	for k, v := range err.Details {
		if _, taken := body[k]; !taken {
			body[k] = v
		}
	}
	w.Header().Set("Cache-Control", "no-store")
	WriteJSON(w, err.Status, body)
}

// WriteJSON encodes payload with the given status.
func WriteJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// sanitize flattens newlines and truncates to limit bytes.
func sanitize(value string, limit int) string {
	value = strings.TrimSpace(strings.NewReplacer("\r", " ", "\n", " ").Replace(value))
	if len(value) > limit {
		value = value[:limit]
	}
	return value
}
