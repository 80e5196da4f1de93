package httpx

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/valyala/fasthttp"
)

// Default values for FastHTTPClient options
const (
	DefaultTimeout             = 30 * time.Second
	DefaultMaxConnsPerHost     = 512
	DefaultMaxIdleConnDuration = 10 * time.Second
	DefaultReadBufferSize      = 4096
	DefaultWriteBufferSize     = 4096
	DefaultMaxResponseBodySize = 16 * 1024 * 1024 // 16MB
)

// FastHTTPClientOptions contains configuration for the FastHTTP client
type FastHTTPClientOptions struct {
	// Timeout is the maximum duration for the entire request (read + write)
	Timeout time.Duration

	// ReadTimeout is the maximum duration for reading the full response
	ReadTimeout time.Duration

	// WriteTimeout is the maximum duration for writing the full request
	WriteTimeout time.Duration

	// MaxConnsPerHost is the maximum number of concurrent connections per host
	MaxConnsPerHost int

	// MaxIdleConnDuration is the maximum duration for keeping idle connections open
	MaxIdleConnDuration time.Duration

	// ReadBufferSize is the size of the read buffer
	ReadBufferSize int

	// WriteBufferSize is the size of the write buffer
	WriteBufferSize int

	// MaxResponseBodySize is the maximum response body size to read
	MaxResponseBodySize int

	// UserAgent is the default User-Agent header value
	UserAgent string
}

// FastHTTPClientOption is a function that configures FastHTTPClientOptions
type FastHTTPClientOption func(*FastHTTPClientOptions)

// WithTimeout sets the overall request timeout
func WithTimeout(timeout time.Duration) FastHTTPClientOption {
	return func(o *FastHTTPClientOptions) {
		o.Timeout = timeout
	}
}

// WithMaxConnsPerHost sets the maximum connections per host
func WithMaxConnsPerHost(max int) FastHTTPClientOption {
	return func(o *FastHTTPClientOptions) {
		o.MaxConnsPerHost = max
	}
}

// WithMaxResponseBodySize sets the maximum response body size
func WithMaxResponseBodySize(size int) FastHTTPClientOption {
	return func(o *FastHTTPClientOptions) {
		o.MaxResponseBodySize = size
	}
}

// WithUserAgent sets the default User-Agent header
func WithUserAgent(userAgent string) FastHTTPClientOption {
	return func(o *FastHTTPClientOptions) {
		o.UserAgent = userAgent
	}
}

type FastHTTPClient struct {
	client    *fasthttp.Client
	userAgent string
}

// NewFastHTTPClient creates a new FastHTTPClient with the given options.
// If no options are provided, sensible defaults are used.
func NewFastHTTPClient(opts ...FastHTTPClientOption) Client {
	options := &FastHTTPClientOptions{
		Timeout:             DefaultTimeout,
		MaxConnsPerHost:     DefaultMaxConnsPerHost,
		MaxIdleConnDuration: DefaultMaxIdleConnDuration,
		ReadBufferSize:      DefaultReadBufferSize,
		WriteBufferSize:     DefaultWriteBufferSize,
		MaxResponseBodySize: DefaultMaxResponseBodySize,
	}

	for _, opt := range opts {
		opt(options)
	}

	client := &fasthttp.Client{
		MaxConnsPerHost:     options.MaxConnsPerHost,
		MaxIdleConnDuration: options.MaxIdleConnDuration,
		ReadBufferSize:      options.ReadBufferSize,
		WriteBufferSize:     options.WriteBufferSize,
		MaxResponseBodySize: options.MaxResponseBodySize,
	}

	if options.ReadTimeout > 0 {
		client.ReadTimeout = options.ReadTimeout
	} else if options.Timeout > 0 {
		client.ReadTimeout = options.Timeout
	}

	if options.WriteTimeout > 0 {
		client.WriteTimeout = options.WriteTimeout
	} else if options.Timeout > 0 {
		client.WriteTimeout = options.Timeout
	}

	return &FastHTTPClient{
		client:    client,
		userAgent: options.UserAgent,
	}
}

func (c *FastHTTPClient) Do(req *http.Request) (*http.Response, error) {
	fastReq := fasthttp.AcquireRequest()
	fastResp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(fastReq)

	if req.URL != nil {
		fastReq.SetRequestURI(req.URL.String())
	}

	fastReq.Header.SetMethod(req.Method)

	if req.Host != "" {
		fastReq.Header.SetHost(req.Host)
	} else if req.URL != nil && req.URL.Host != "" {
		fastReq.Header.SetHost(req.URL.Host)
	}

	for key, values := range req.Header {
		if len(values) == 1 {
			fastReq.Header.Set(key, values[0])
		} else {
			for _, value := range values {
				fastReq.Header.Add(key, value)
			}
		}
	}

	if c.userAgent != "" && len(req.Header.Get("User-Agent")) == 0 {
		fastReq.Header.Set("User-Agent", c.userAgent)
	}

	if req.Body != nil {
		body, err := io.ReadAll(req.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to read request body: %w", err)
		}
		fastReq.SetBodyRaw(body)
		_ = req.Body.Close()
	}

	if err := c.client.Do(fastReq, fastResp); err != nil {
		fasthttp.ReleaseResponse(fastResp)
		return nil, err
	}

	// fastResp.Body() references an internal buffer that is reused once
	// the response is released, so it has to be copied out first.
	respBody := fastResp.Body()
	bodyCopy := make([]byte, len(respBody))
	copy(bodyCopy, respBody)

	statusCode := fastResp.StatusCode()

	headerCount := 0
	fastResp.Header.VisitAll(func(_, _ []byte) { headerCount++ })
	headers := make(http.Header, headerCount)
	fastResp.Header.VisitAll(func(key, value []byte) {
		headers.Add(string(key), string(value))
	})

	contentLength := int64(len(bodyCopy))
	if cl := fastResp.Header.ContentLength(); cl >= 0 {
		contentLength = int64(cl)
	}

	resp := &http.Response{
		Status:        fmt.Sprintf("%d %s", statusCode, http.StatusText(statusCode)),
		StatusCode:    statusCode,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        headers,
		Body:          io.NopCloser(bytes.NewReader(bodyCopy)),
		ContentLength: contentLength,
		Request:       req,
	}

	fasthttp.ReleaseResponse(fastResp)

	return resp, nil
}
