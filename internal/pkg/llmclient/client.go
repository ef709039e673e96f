// Package llmclient provides a base HTTP client for LLM provider adapters:
// - Request marshaling/unmarshaling
// - Bounded upstream timeouts
// - Standardized upstream error classification
// - Observability hooks
//
// Upstream failures are never retried here: they are surfaced to the
// caller, who may retry.
package llmclient

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"modelgate/internal/core"
	"modelgate/internal/pkg/httpclient"
)

// Hooks carries optional observability callbacks. The zero value is valid
// and disables all instrumentation.
type Hooks struct {
	// ObserveUpstream is called once per upstream round trip with the
	// final outcome. statusCode is 0 when the request never produced a
	// response.
	ObserveUpstream func(provider string, statusCode int, duration time.Duration, err error)
}

func (h Hooks) observe(provider string, statusCode int, start time.Time, err error) {
	if h.ObserveUpstream != nil {
		h.ObserveUpstream(provider, statusCode, time.Since(start), err)
	}
}

// Config holds configuration for the LLM client
type Config struct {
	// ProviderName identifies the provider for error attribution
	ProviderName string

	// BaseURL is the API base URL
	BaseURL string

	// Timeout bounds every upstream call (default: httpclient.DefaultTimeout)
	Timeout time.Duration

	// Hooks for observability
	Hooks Hooks
}

// DefaultConfig returns default client configuration
func DefaultConfig(providerName, baseURL string) Config {
	return Config{
		ProviderName: providerName,
		BaseURL:      baseURL,
		Timeout:      httpclient.DefaultTimeout,
	}
}

// HeaderSetter is a function that sets headers on an HTTP request
type HeaderSetter func(req *http.Request)

// Client is a base HTTP client for LLM provider adapters
type Client struct {
	httpClient   *http.Client
	config       Config
	headerSetter HeaderSetter
}

// New creates a new LLM client with the given configuration
func New(config Config, headerSetter HeaderSetter) *Client {
	clientCfg := httpclient.DefaultConfig()
	if config.Timeout > 0 {
		clientCfg.Timeout = config.Timeout
	}
	return &Client{
		httpClient:   httpclient.NewHTTPClient(&clientCfg),
		config:       config,
		headerSetter: headerSetter,
	}
}

// NewWithHTTPClient creates a new LLM client with a custom HTTP client
func NewWithHTTPClient(httpClient *http.Client, config Config, headerSetter HeaderSetter) *Client {
	return &Client{
		httpClient:   httpClient,
		config:       config,
		headerSetter: headerSetter,
	}
}

// SetBaseURL updates the base URL
func (c *Client) SetBaseURL(url string) {
	c.config.BaseURL = url
}

// BaseURL returns the current base URL
func (c *Client) BaseURL() string {
	return c.config.BaseURL
}

// Request represents an HTTP request to be made
type Request struct {
	Method   string
	Endpoint string
	Body     interface{} // Will be JSON marshaled if not nil
	Headers  map[string]string
	Query    url.Values
}

// Response represents an HTTP response
type Response struct {
	StatusCode int
	Body       []byte
}

// Do executes a request and unmarshals the success body into result.
func (c *Client) Do(ctx context.Context, req Request, result interface{}) error {
	resp, err := c.DoRaw(ctx, req)
	if err != nil {
		return err
	}

	if result != nil {
		if err := json.Unmarshal(resp.Body, result); err != nil {
			return core.NewUpstreamError(c.config.ProviderName, http.StatusBadGateway,
				"failed to unmarshal response: "+err.Error(), err)
		}
	}

	return nil
}

// DoRaw executes a request and returns the raw success response. Non-2xx
// statuses and transport failures come back as classified *core.Error
// values; nothing is retried.
func (c *Client) DoRaw(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()

	httpReq, err := c.buildRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.config.Hooks.observe(c.config.ProviderName, 0, start, err)
		return nil, core.ClassifyTransportError(c.config.ProviderName, err)
	}
	defer func() {
		_ = resp.Body.Close() //nolint:errcheck
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.config.Hooks.observe(c.config.ProviderName, resp.StatusCode, start, err)
		return nil, core.NewUpstreamError(c.config.ProviderName, http.StatusBadGateway,
			"failed to read response: "+err.Error(), err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		upstreamErr := core.ParseUpstreamError(c.config.ProviderName, resp.StatusCode, body)
		c.config.Hooks.observe(c.config.ProviderName, resp.StatusCode, start, upstreamErr)
		return nil, upstreamErr
	}

	c.config.Hooks.observe(c.config.ProviderName, resp.StatusCode, start, nil)
	return &Response{
		StatusCode: resp.StatusCode,
		Body:       body,
	}, nil
}

// DoStream executes a streaming request, returning the raw body on success
// (caller must close). Pre-stream upstream failures are classified exactly
// like DoRaw.
func (c *Client) DoStream(ctx context.Context, req Request) (io.ReadCloser, error) {
	start := time.Now()

	httpReq, err := c.buildRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.config.Hooks.observe(c.config.ProviderName, 0, start, err)
		return nil, core.ClassifyTransportError(c.config.ProviderName, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			respBody = []byte("failed to read error response")
		}
		_ = resp.Body.Close() //nolint:errcheck

		upstreamErr := core.ParseUpstreamError(c.config.ProviderName, resp.StatusCode, respBody)
		c.config.Hooks.observe(c.config.ProviderName, resp.StatusCode, start, upstreamErr)
		return nil, upstreamErr
	}

	c.config.Hooks.observe(c.config.ProviderName, resp.StatusCode, start, nil)
	return resp.Body, nil
}

// buildRequest creates an HTTP request from a Request
func (c *Client) buildRequest(ctx context.Context, req Request) (*http.Request, error) {
	endpoint := c.config.BaseURL + req.Endpoint
	if encoded := req.Query.Encode(); encoded != "" {
		endpoint += "?" + encoded
	}

	var bodyReader io.Reader
	if req.Body != nil {
		bodyBytes, err := json.Marshal(req.Body)
		if err != nil {
			return nil, core.NewInternalError("failed to marshal request", err)
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, endpoint, bodyReader)
	if err != nil {
		return nil, core.NewInternalError("failed to create request", err)
	}

	// Set default content type for requests with body
	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	// Apply provider-specific headers
	if c.headerSetter != nil {
		c.headerSetter(httpReq)
	}

	// Apply request-specific headers
	for key, value := range req.Headers {
		httpReq.Header.Set(key, value)
	}

	return httpReq, nil
}
