package coach

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors mapped from API error codes. Use errors.Is() to check.
var (
	// ErrUnauthorized means the API key was missing or rejected.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNotReady means the knowledge base is not loaded or empty.
	ErrNotReady = errors.New("service not ready")
	// ErrAnswerFailed means an upstream model call failed.
	ErrAnswerFailed = errors.New("answer generation failed")
	// ErrBadRequest means the request was malformed or failed validation.
	ErrBadRequest = errors.New("bad request")
)

// APIError carries the raw error envelope returned by the server. It wraps
// one of the sentinel errors above when the code is recognized.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("coach: %s (%s, HTTP %d)", e.Message, e.Code, e.StatusCode)
}

// Unwrap maps API error codes onto sentinel errors.
func (e *APIError) Unwrap() error {
	switch e.Code {
	case "unauthorized":
		return ErrUnauthorized
	case "not_ready":
		return ErrNotReady
	case "answer_failed":
		return ErrAnswerFailed
	case "bad_request", "validation_failed":
		return ErrBadRequest
	default:
		return nil
	}
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}

	var envelope struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err == nil {
		apiErr.Code = envelope.Code
		apiErr.Message = envelope.Message
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}
