package orkl

import (
	"errors"
	"fmt"
)

// Kind classifies client failures.
type Kind int

const (
	KindUnknown Kind = iota
	// KindRateLimited: the remote API answered 429.
	KindRateLimited
	// KindAPI: a non-2xx status or a transport failure.
	KindAPI
	// KindDecode: a 2xx response whose body was not the expected JSON.
	KindDecode
	// KindValidation: the caller passed an unusable argument; nothing was sent.
	KindValidation
)

func (k Kind) String() string {
	switch k {
	case KindRateLimited:
		return "rate_limited"
	case KindAPI:
		return "api_error"
	case KindDecode:
		return "decode_error"
	case KindValidation:
		return "validation_error"
	default:
		return "unknown"
	}
}

// DefaultRetryAfter is used when a 429 carries no usable Retry-After.
const DefaultRetryAfter = 30

// RateLimitError is returned when the remote API rejects a request with 429.
type RateLimitError struct {
	// RetryAfter is the server's suggested wait in seconds.
	RetryAfter int
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("Rate limit exceeded, retry after %ds", e.RetryAfter)
}

func (e *RateLimitError) Kind() Kind { return KindRateLimited }

// APIError is a non-2xx response (StatusCode set) or a transport failure
// (StatusCode 0, Err set).
type APIError struct {
	StatusCode int
	Message    string
	// Body is the decoded error body. Only JSON objects are kept; an array,
	// a scalar or a non-JSON body leaves Body nil.
	Body map[string]any
	Err  error
}

func (e *APIError) Error() string { return e.Message }

func (e *APIError) Unwrap() error { return e.Err }

func (e *APIError) Kind() Kind { return KindAPI }

// DecodeError is a successful response whose body could not be decoded.
type DecodeError struct {
	Endpoint string
	Raw      []byte
	Err      error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode response from %s: %v", e.Endpoint, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

func (e *DecodeError) Kind() Kind { return KindDecode }

// ValidationError is an invalid argument caught before any I/O.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func (e *ValidationError) Kind() Kind { return KindValidation }

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// KindOf reports the Kind of the first error in err's chain that has one.
func KindOf(err error) Kind {
	var k interface{ Kind() Kind }
	if errors.As(err, &k) {
		return k.Kind()
	}
	return KindUnknown
}
