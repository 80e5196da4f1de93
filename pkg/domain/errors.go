package domain

import (
	"errors"
	"fmt"
)

var (
	ErrMissingCredential = errors.New("voyage API key not configured on server")
	ErrEmptyQuery        = errors.New("query is required")
	ErrNoDocuments       = errors.New("at least one document is required")
	ErrEmptyDocument     = errors.New("document content must not be empty")
	ErrNegativeTopK      = errors.New("top_k must not be negative")
)

// UpstreamError carries the status code and raw payload returned by the
// reranking upstream so handlers can pass both through to the caller.
type UpstreamError struct {
	StatusCode int
	Body       []byte
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream request failed with status %d", e.StatusCode)
}

func NewUpstreamError(statusCode int, body []byte) error {
	return &UpstreamError{
		StatusCode: statusCode,
		Body:       body,
	}
}

func IsUpstreamError(err error) (*UpstreamError, bool) {
	var upstreamError *UpstreamError
	ok := errors.As(err, &upstreamError)
	return upstreamError, ok
}

// UnreachableError marks transport-level failures (connect, timeout, open
// circuit) toward the upstream. Handlers map it to 502.
type UnreachableError struct {
	Err error
}

func (e *UnreachableError) Error() string {
	return fmt.Sprintf("error contacting voyage API: %v", e.Err)
}

func (e *UnreachableError) Unwrap() error {
	return e.Err
}

func NewUnreachableError(err error) error {
	return &UnreachableError{Err: err}
}

func IsUnreachableError(err error) bool {
	if err == nil {
		return false
	}
	var unreachableError *UnreachableError
	return errors.As(err, &unreachableError)
}
