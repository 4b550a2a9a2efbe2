// Package fetcher downloads upstream documents as text and classifies the
// ways a download can fail.
package fetcher

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"matrusp-crawler/internal/components/assert"
	"matrusp-crawler/internal/components/telemetry"
	"net"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/net/html/charset"
	"golang.org/x/time/rate"
)

var (
	// ErrTimeout is wrapped by every error caused by a request exceeding its timeout.
	ErrTimeout = errors.New("fetch timed out")
	// ErrClient is wrapped by every transport level failure that is not a timeout.
	ErrClient = errors.New("fetch client error")
)

// BadStatusError is returned when the upstream answers with anything but 200.
type BadStatusError struct {
	Url  string
	Code int
}

func (e *BadStatusError) Error() string {
	return fmt.Sprintf("bad status %d for %s", e.Code, e.Url)
}

// Fetcher performs a single GET and returns the response body as text.
//
// note: fault injection point
type Fetcher interface {
	Fetch(ctx context.Context, url string, timeout time.Duration) (string, error)
}

type Options struct {
	UserAgent string
	// RequestsPerSecond limits the request rate of the whole client, 0 disables the limit.
	RequestsPerSecond  float64
	InsecureSkipVerify bool
}

// Client is the resty implementation of Fetcher.
type Client struct {
	http *resty.Client
}

func NewClient(opts Options, tel telemetry.API) *Client {
	assert.NotNil(tel)

	httpClient := resty.New()
	if opts.UserAgent != "" {
		httpClient.SetHeader("user-agent", opts.UserAgent)
	}
	if opts.InsecureSkipVerify {
		httpClient.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}

	if opts.RequestsPerSecond > 0 {
		burst := int(opts.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		rateLimiter := rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
		httpClient.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
			return rateLimiter.Wait(req.Context())
		})
	}

	telemetry.InstrumentResty(httpClient, telemetry.NewScopedAPI("fetcher", tel))

	return &Client{http: httpClient}
}

func (c *Client) Fetch(ctx context.Context, url string, timeout time.Duration) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	res, err := c.http.R().
		SetContext(ctx).
		Get(url)
	if err != nil {
		return "", classify(err)
	}
	if res.StatusCode() != http.StatusOK {
		return "", &BadStatusError{Url: url, Code: res.StatusCode()}
	}

	reader, err := charset.NewReader(bytes.NewReader(res.Body()), res.Header().Get("content-type"))
	if err != nil {
		return "", fmt.Errorf("%w: decode body: %w", ErrClient, err)
	}
	text, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("%w: read body: %w", ErrClient, err)
	}
	return string(text), nil
}

func classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %w", ErrClient, err)
}

// Retryable tells whether err is a failure worth a second attempt.
func Retryable(err error) bool {
	return errors.Is(err, ErrTimeout) || errors.Is(err, ErrClient)
}
