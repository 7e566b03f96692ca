// Package httputil provides HTTP client abstractions for testability.
package httputil

import (
	"bytes"
	"io"
	"net/http"
	"sync"
)

// HTTPClient abstracts HTTP operations for testability.
// Use StandardClient for production; MockHTTPClient for testing.
type HTTPClient interface {
	// Do sends an HTTP request and returns an HTTP response.
	Do(req *http.Request) (*http.Response, error)
	// Get issues a GET to the specified URL.
	Get(url string) (*http.Response, error)
}

// StandardClient wraps *http.Client to implement HTTPClient.
type StandardClient struct {
	*http.Client
}

// NewStandardClient creates a new StandardClient wrapping the given http.Client.
func NewStandardClient(c *http.Client) *StandardClient {
	if c == nil {
		c = http.DefaultClient
	}
	return &StandardClient{Client: c}
}

// Do sends an HTTP request.
func (c *StandardClient) Do(req *http.Request) (*http.Response, error) {
	return c.Client.Do(req)
}

// Get issues a GET request.
func (c *StandardClient) Get(url string) (*http.Response, error) {
	return c.Client.Get(url)
}

// MockHTTPClient provides a testable HTTP client implementation. Responses
// are queued and returned in order; bodies are raw bytes so binary payloads
// such as PNG images can be served.
type MockHTTPClient struct {
	mu           sync.Mutex
	DoFunc       func(req *http.Request) (*http.Response, error)
	Requests     []*http.Request
	Responses    []*MockResponse
	responseIdx  int
	DefaultError error
}

// MockResponse defines a canned HTTP response for testing.
type MockResponse struct {
	StatusCode int
	Body       []byte
	Headers    http.Header
	Error      error
}

// NewMockHTTPClient creates a new mock HTTP client.
func NewMockHTTPClient() *MockHTTPClient {
	return &MockHTTPClient{}
}

// AddResponse queues a response to be returned by subsequent requests.
func (m *MockHTTPClient) AddResponse(statusCode int, body []byte) *MockHTTPClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Responses = append(m.Responses, &MockResponse{
		StatusCode: statusCode,
		Body:       body,
		Headers:    make(http.Header),
	})
	return m
}

// AddErrorResponse queues an error response.
func (m *MockHTTPClient) AddErrorResponse(err error) *MockHTTPClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Responses = append(m.Responses, &MockResponse{Error: err})
	return m
}

// Do records the request and returns the next queued response.
func (m *MockHTTPClient) Do(req *http.Request) (*http.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Requests = append(m.Requests, req)

	if m.DoFunc != nil {
		return m.DoFunc(req)
	}

	if m.DefaultError != nil {
		return nil, m.DefaultError
	}

	if m.responseIdx < len(m.Responses) {
		resp := m.Responses[m.responseIdx]
		m.responseIdx++

		if resp.Error != nil {
			return nil, resp.Error
		}

		return &http.Response{
			StatusCode: resp.StatusCode,
			Body:       io.NopCloser(bytes.NewReader(resp.Body)),
			Header:     resp.Headers,
			Request:    req,
		}, nil
	}

	// Default response when nothing is queued
	return &http.Response{
		StatusCode: http.StatusOK,
		Body:       io.NopCloser(bytes.NewReader(nil)),
		Header:     make(http.Header),
		Request:    req,
	}, nil
}

// Get issues a GET request.
func (m *MockHTTPClient) Get(url string) (*http.Response, error) {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	return m.Do(req)
}

// RequestCount returns the number of recorded requests.
func (m *MockHTTPClient) RequestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Requests)
}
