package httpx

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
)

// DefaultBodyLimit caps request bodies decoded by DecodeJSON.
const DefaultBodyLimit int64 = 16 << 10

var (
	// ErrEmptyBody is returned when a request without a body reaches DecodeJSON.
	ErrEmptyBody = errors.New("request body is required")
	// ErrBodyTooLarge is returned when a body exceeds the limit.
	ErrBodyTooLarge = errors.New("request body too large")
	// ErrInvalidJSON is returned when the body does not decode into the target.
	ErrInvalidJSON = errors.New("request body must be valid JSON")
)

// ReadLimitedBody reads up to limit bytes of the request body.
func ReadLimitedBody(r *http.Request, limit int64) ([]byte, error) {
	if r == nil || r.Body == nil {
		return nil, ErrEmptyBody
	}
	if limit <= 0 {
		limit = DefaultBodyLimit
	}
	data, err := io.ReadAll(io.LimitReader(r.Body, limit+1))
	if err != nil {
		return nil, err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, ErrEmptyBody
	}
	if int64(len(data)) > limit {
		return nil, ErrBodyTooLarge
	}
	return data, nil
}

// DecodeJSON reads a bounded body into dst, rejecting unknown fields.
func DecodeJSON(r *http.Request, dst any) error {
	data, err := ReadLimitedBody(r, DefaultBodyLimit)
	if err != nil {
		return err
	}
	dec := json.NewDecoder(strings.NewReader(string(data)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return errors.Join(ErrInvalidJSON, err)
	}
	return nil
}

// BodyError maps a DecodeJSON failure to the error envelope.
func BodyError(err error) Error {
	switch {
	case errors.Is(err, ErrBodyTooLarge):
		return NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge)
	case errors.Is(err, ErrEmptyBody):
		return NewError("invalid_request", ErrEmptyBody.Error(), http.StatusBadRequest)
	default:
		return NewError("invalid_request", ErrInvalidJSON.Error(), http.StatusBadRequest)
	}
}
