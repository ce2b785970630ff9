// shared/api/client.go
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"time"
)

// HTTPError describes a non-2xx response.
type HTTPError struct {
	StatusCode int
	Message    string
	URL        string
	Method     string
}

func (e *HTTPError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("HTTP error %d %s from %s %s: %s", e.StatusCode, http.StatusText(e.StatusCode), e.Method, e.URL, e.Message)
	}
	return fmt.Sprintf("HTTP error %d %s from %s %s", e.StatusCode, http.StatusText(e.StatusCode), e.Method, e.URL)
}

// Status classes returned by Client. Check with errors.Is.
var (
	ErrNotFound      = errors.New("resource not found")
	ErrConflict      = errors.New("resource conflict")
	ErrBadRequest    = errors.New("bad request")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrForbidden     = errors.New("forbidden")
	ErrInternalError = errors.New("internal server error")
)

// maxErrorBody caps how much of a non-JSON error body is quoted in an error.
const maxErrorBody = 512

// NewDefaultHTTPClient returns the http.Client used for inter-service calls.
func NewDefaultHTTPClient() *http.Client {
	return &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   5 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   10,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   5 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}
}

// Client is a small JSON-over-HTTP client bound to one base URL.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient creates a Client. A nil httpClient falls back to NewDefaultHTTPClient.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		log.Println("WARNING: NewClient called with nil httpClient. Using NewDefaultHTTPClient.")
		httpClient = NewDefaultHTTPClient()
	}
	return &Client{httpClient: httpClient, baseURL: baseURL}
}

func (c *Client) do(ctx context.Context, method, path string, body, result any) error {
	url := c.baseURL + path

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body for %s %s: %w", method, url, err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create %s request for %s: %w", method, url, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%s request to %s aborted: %w", method, url, ctxErr)
		}
		return fmt.Errorf("failed to send %s request to %s: %w", method, url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return statusError(resp, url, method)
	}
	if result == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode %s response from %s: %w", method, url, err)
	}
	return nil
}

// statusError turns an error response into an HTTPError wrapped in the
// matching status class.
func statusError(resp *http.Response, url, method string) error {
	httpErr := &HTTPError{StatusCode: resp.StatusCode, URL: url, Method: method}
	if raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10)); err == nil && len(raw) > 0 {
		var body JSONErrorResponse
		if json.Unmarshal(raw, &body) == nil && body.Message != "" {
			httpErr.Message = body.Message
		} else if len(raw) <= maxErrorBody {
			httpErr.Message = string(raw)
		}
	}

	var class error
	switch {
	case resp.StatusCode == http.StatusNotFound:
		class = ErrNotFound
	case resp.StatusCode == http.StatusConflict:
		class = ErrConflict
	case resp.StatusCode == http.StatusBadRequest:
		class = ErrBadRequest
	case resp.StatusCode == http.StatusUnauthorized:
		class = ErrUnauthorized
	case resp.StatusCode == http.StatusForbidden:
		class = ErrForbidden
	case resp.StatusCode >= 500:
		class = ErrInternalError
	default:
		return httpErr
	}
	return fmt.Errorf("%w: %w", class, httpErr)
}

// Get performs a GET and decodes the JSON body into result.
func (c *Client) Get(ctx context.Context, path string, result any) error {
	return c.do(ctx, http.MethodGet, path, nil, result)
}

// Post sends body as JSON and decodes the response into result, if non-nil.
func (c *Client) Post(ctx context.Context, path string, body, result any) error {
	return c.do(ctx, http.MethodPost, path, body, result)
}

// Delete performs a DELETE.
func (c *Client) Delete(ctx context.Context, path string) error {
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

// GetHTTPStatusCode extracts the status code from an HTTPError, or 0.
func GetHTTPStatusCode(err error) int {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode
	}
	return 0
}
