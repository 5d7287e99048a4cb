// Package caller performs single outbound HTTP calls with an explicit timeout and maps
// transport and payload failures to a small set of error kinds.
package caller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"slices"
	"time"

	"resty.dev/v3"
)

// DefaultTimeout is used when a Caller is created without a positive timeout.
const DefaultTimeout = 10 * time.Second

// Kind classifies why a call failed.
type Kind int

const (
	KindUnreachable Kind = iota + 1
	KindTimeout
	KindStatus
	KindMalformed
)

func (k Kind) String() string {
	switch k {
	case KindUnreachable:
		return "unreachable"
	case KindTimeout:
		return "timeout"
	case KindStatus:
		return "status"
	case KindMalformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// Error describes a failed call.
type Error struct {
	Service    string
	Kind       Kind
	StatusCode int
	Body       string
	Err        error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindStatus:
		return fmt.Sprintf("%s: response error %d: %s", e.Service, e.StatusCode, e.Body)
	case KindMalformed:
		return fmt.Sprintf("%s: malformed response: %v", e.Service, e.Err)
	default:
		return fmt.Sprintf("%s: %s: %v", e.Service, e.Kind, e.Err)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Malformed creates a KindMalformed error for a response whose payload is valid JSON
// but fails a semantic check, such as a missing field.
func Malformed(service string, err error) *Error {
	return &Error{Service: service, Kind: KindMalformed, Err: err}
}

// KindOf returns the Kind of the first *Error in err's chain.
func KindOf(err error) (Kind, bool) {
	var callErr *Error
	if errors.As(err, &callErr) {
		return callErr.Kind, true
	}
	return 0, false
}

// IsTransient reports whether the failure may go away on its own: the service was
// unreachable, timed out, rate limited or answered with a server error.
func IsTransient(err error) bool {
	var callErr *Error
	if !errors.As(err, &callErr) {
		return false
	}
	switch callErr.Kind {
	case KindUnreachable, KindTimeout:
		return true
	case KindStatus:
		return callErr.StatusCode >= 500 || callErr.StatusCode == 429
	default:
		return false
	}
}

// File is a multipart file part.
type File struct {
	FieldName   string
	FileName    string
	ContentType string
	Reader      io.Reader
	Fields      map[string]string
}

// Request describes one outbound call.
type Request struct {
	Method    string
	Path      string
	Query     map[string]string
	Body      any
	Multipart *File
	// AcceptStatus lists non-2xx status codes that are returned to the caller instead of
	// being reported as errors.
	AcceptStatus []int
}

// Caller sends requests to one external service.
type Caller struct {
	name       string
	httpClient *resty.Client
	timeout    time.Duration
}

// Option configures the underlying HTTP client.
type Option func(client *resty.Client)

// WithBasicAuth sets basic auth credentials when a username is given.
func WithBasicAuth(username, password string) Option {
	return func(client *resty.Client) {
		if username != "" {
			client.SetBasicAuth(username, password)
		}
	}
}

// WithHeader sets a header on every request.
func WithHeader(key, value string) Option {
	return func(client *resty.Client) {
		client.SetHeader(key, value)
	}
}

// New creates a Caller for the service at baseURL.
func New(name, baseURL string, timeout time.Duration, opts ...Option) *Caller {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	client := resty.New()
	client.SetBaseURL(baseURL)
	client.SetHeader("Accept", "application/json")
	for _, opt := range opts {
		opt(client)
	}
	return &Caller{
		name:       name,
		httpClient: client,
		timeout:    timeout,
	}
}

// Name returns the service name used in errors and logs.
func (c *Caller) Name() string {
	return c.name
}

// Timeout returns the per-call timeout.
func (c *Caller) Timeout() time.Duration {
	return c.timeout
}

// Close releases the underlying HTTP client.
func (c *Caller) Close() error {
	return c.httpClient.Close()
}

// Call sends req and decodes a 2xx JSON response into out when out is not nil.
// It returns the response status code.
//
// The call is bounded by the Caller's timeout only. If ctx is cancelled while the call is in
// flight, the call still runs to completion, its result is discarded and ctx.Err() is returned.
func (c *Caller) Call(ctx context.Context, req Request, out any) (int, error) {
	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
	defer cancel()

	r := c.httpClient.R().SetContext(callCtx)
	if len(req.Query) > 0 {
		r.SetQueryParams(req.Query)
	}
	switch {
	case req.Multipart != nil:
		r.SetMultipartField(req.Multipart.FieldName, req.Multipart.FileName, req.Multipart.ContentType, req.Multipart.Reader)
		if len(req.Multipart.Fields) > 0 {
			r.SetMultipartFormData(req.Multipart.Fields)
		}
	case req.Body != nil:
		r.SetHeader("Content-Type", "application/json")
		r.SetBody(req.Body)
	}

	start := time.Now()
	response, err := r.Execute(req.Method, req.Path)
	if ctxErr := ctx.Err(); ctxErr != nil {
		slog.Default().Debug("discarding response of abandoned call",
			"service", c.name,
			"path", req.Path,
			"elapsed", time.Since(start))
		return 0, fmt.Errorf("%s %s: %w", req.Method, req.Path, ctxErr)
	}
	if err != nil {
		return 0, c.classify(err)
	}

	status := response.StatusCode()
	if status < 200 || status > 299 {
		if slices.Contains(req.AcceptStatus, status) {
			return status, nil
		}
		return status, &Error{
			Service:    c.name,
			Kind:       KindStatus,
			StatusCode: status,
			Body:       response.String(),
		}
	}

	if out != nil {
		body := response.String()
		if body == "" {
			return status, Malformed(c.name, errors.New("empty response body"))
		}
		if err := json.Unmarshal([]byte(body), out); err != nil {
			return status, Malformed(c.name, fmt.Errorf("json.Unmarshal(%s) > %w", body, err))
		}
	}
	return status, nil
}

// classify maps a transport error. Anything that is not a timeout (connection refused,
// DNS failure, reset) counts as unreachable.
func (c *Caller) classify(err error) *Error {
	kind := KindUnreachable
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		kind = KindTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		kind = KindTimeout
	}
	return &Error{Service: c.name, Kind: kind, Err: err}
}
