package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors
var (
	// ErrNotFound indicates a resource was not found
	ErrNotFound = errors.New("not found")

	// ErrCacheMiss indicates a cache miss
	ErrCacheMiss = errors.New("cache miss")

	// ErrRateLimited indicates rate limiting was encountered
	ErrRateLimited = errors.New("rate limited")

	// ErrTimeout indicates a timeout occurred
	ErrTimeout = errors.New("timeout")

	// ErrInvalidURL indicates an invalid URL was provided
	ErrInvalidURL = errors.New("invalid URL")

	// ErrNotGitRepository indicates the target directory exists but is not a git repository
	ErrNotGitRepository = errors.New("directory exists but is not a git repository")

	// ErrRepomixNotInstalled indicates repomix is not on PATH
	ErrRepomixNotInstalled = errors.New("repomix is not installed or not available in PATH")

	// ErrDimensionMismatch indicates an embedding has the wrong length
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrEmptyEmbedding indicates a provider returned no vector
	ErrEmptyEmbedding = errors.New("empty embedding returned")

	// ErrUnsupportedModel indicates the configured embedding model is unknown
	ErrUnsupportedModel = errors.New("unsupported embedding model")

	// ErrIndexNotReady indicates the index did not become ready in time
	ErrIndexNotReady = errors.New("index not ready")

	// ErrCircuitOpen indicates the circuit breaker rejected the call
	ErrCircuitOpen = errors.New("circuit breaker is open")

	// ErrNotSupported indicates the backend does not implement an operation
	ErrNotSupported = errors.New("operation not supported by backend")

	// ErrMissingAPIKey indicates a required API key is empty
	ErrMissingAPIKey = errors.New("API key is required")

	// ErrAuthFailed indicates the remote API rejected the credentials
	ErrAuthFailed = errors.New("authentication failed")

	// ErrNoFilePaths indicates no file paths could be read from repomix output
	ErrNoFilePaths = errors.New("no file paths found in Repomix output")
)

// FetchError represents an error during fetching a web page
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("fetch error for %s: status %d: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch error for %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// NewFetchError creates a new FetchError
func NewFetchError(url string, statusCode int, err error) *FetchError {
	return &FetchError{
		URL:        url,
		StatusCode: statusCode,
		Err:        err,
	}
}

// APIError is returned by the Pinecone, Firecrawl and embedding HTTP clients
type APIError struct {
	Service    string
	StatusCode int
	Message    string
	Err        error
}

func (e *APIError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s error (HTTP %d): %s", e.Service, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s error: %s", e.Service, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// NewAPIError creates a new APIError
func NewAPIError(service string, statusCode int, message string, err error) *APIError {
	return &APIError{
		Service:    service,
		StatusCode: statusCode,
		Message:    message,
		Err:        err,
	}
}

// RetryableError indicates an error that can be retried
type RetryableError struct {
	Err        error
	RetryAfter int // Seconds to wait before retry, 0 if unknown
}

func (e *RetryableError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("retryable error (retry after %ds): %v", e.RetryAfter, e.Err)
	}
	return fmt.Sprintf("retryable error: %v", e.Err)
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// IsRetryableStatus reports whether an HTTP status is worth retrying
func IsRetryableStatus(statusCode int) bool {
	switch statusCode {
	case 429, 502, 503, 504:
		return true
	}
	// Cloudflare errors
	return statusCode >= 520 && statusCode <= 530
}

// IsRetryable checks if an error should be retried
func IsRetryable(err error) bool {
	var retryable *RetryableError
	if errors.As(err, &retryable) {
		return true
	}

	var fetchErr *FetchError
	if errors.As(err, &fetchErr) && IsRetryableStatus(fetchErr.StatusCode) {
		return true
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) && IsRetryableStatus(apiErr.StatusCode) {
		return true
	}

	return errors.Is(err, ErrRateLimited) || errors.Is(err, ErrTimeout)
}

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for %s: %s", e.Field, e.Message)
}

// NewValidationError creates a new ValidationError
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// StageError wraps a failure in one step of the ingestion pipeline
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("pipeline stage %q failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// NewStageError creates a new StageError
func NewStageError(stage string, err error) *StageError {
	return &StageError{
		Stage: stage,
		Err:   err,
	}
}
