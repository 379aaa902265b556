package helpers

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"
	"time"

	"sjsage522/dealrefresher/pkg/errors"

	"golang.org/x/net/html/charset"
)

// maxBodySize caps how much of an upstream response is read into memory.
const maxBodySize = 8 << 20

// NewHTTPClient returns the HTTP client used for upstream calls
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
	}
}

// Do sends req and returns the UTF-8 body of a 2xx response. Non-2xx statuses are
// mapped onto the error taxonomy: 401/403 auth, 404 not found, 429/430 rate limit,
// anything else network.
func Do(client *http.Client, provider string, req *http.Request) ([]byte, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, errors.NewNetwork(provider, fmt.Sprintf("%s %s", req.Method, req.URL.Path), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, errors.NewNetwork(provider, "failed to read response body", err)
	}

	if err := StatusError(provider, resp, body); err != nil {
		return nil, err
	}

	return ToUTF8(body, resp.Header.Get("Content-Type"))
}

// StatusError classifies a non-2xx response, or returns nil for a 2xx one
func StatusError(provider string, resp *http.Response, body []byte) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	// Check for rate limiting
	if slices.Contains([]int{http.StatusTooManyRequests, 430}, resp.StatusCode) {
		return errors.NewRateLimit(provider, resp.Header.Get("Retry-After"))
	}

	path := ""
	if resp.Request != nil && resp.Request.URL != nil {
		path = resp.Request.URL.Path
	}

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return errors.NewAuth(provider, fmt.Sprintf("%s unexpected status code: %d", path, resp.StatusCode), nil)
	case http.StatusNotFound:
		return errors.NewNotFound(provider, fmt.Sprintf("%s unexpected status code: %d", path, resp.StatusCode))
	}

	snippet := strings.TrimSpace(string(body[:min(len(body), 256)]))
	return errors.NewNetwork(provider, fmt.Sprintf("%s unexpected status code: %d", path, resp.StatusCode), fmt.Errorf("body: %s", snippet))
}

// ToUTF8 converts body to UTF-8 based on the Content-Type header and body content
func ToUTF8(body []byte, contentType string) ([]byte, error) {
	encoding, name, _ := charset.DetermineEncoding(body, contentType)

	// If already UTF-8, return as is
	if strings.EqualFold(name, "utf-8") {
		return body, nil
	}

	utf8Reader := encoding.NewDecoder().Reader(bytes.NewReader(body))
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, utf8Reader); err != nil {
		return nil, fmt.Errorf("failed to read converted UTF-8 body: %w", err)
	}

	return buf.Bytes(), nil
}
