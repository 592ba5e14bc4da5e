package fetch

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html/charset"
)

// HTTPClient fetches pages over plain HTTP(S). Redirect responses are
// returned to the operator as failures rather than followed, so the
// configured source URL is always the canonical one and redirects cannot
// be used to reach other hosts.
type HTTPClient struct {
	client    *http.Client
	userAgent string
	timeout   time.Duration
}

func NewHTTPClient(userAgent string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		client: &http.Client{
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		userAgent: userAgent,
		timeout:   timeout,
	}
}

func (c *HTTPClient) Fetch(ctx context.Context, rawURL string) (*Result, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return nil, &Error{Kind: KindScheme, URL: rawURL, Detail: "only http and https URLs are fetched"}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &Error{Kind: KindNetwork, URL: rawURL, Detail: err.Error(), cause: err}
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, c.classifyTransportError(rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 && resp.StatusCode < 400 {
		return nil, &Error{Kind: KindRedirect, URL: rawURL, Status: resp.StatusCode,
			Detail: "redirect to " + resp.Header.Get("Location")}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &Error{Kind: KindHTTPStatus, URL: rawURL, Status: resp.StatusCode, Detail: resp.Status}
	}

	contentType := resp.Header.Get("Content-Type")
	if !isHTMLContentType(contentType) {
		return nil, &Error{Kind: KindHTTPStatus, URL: rawURL, Status: resp.StatusCode,
			Detail: "expected HTML, got " + contentType}
	}

	// Read one byte past the cap so oversized bodies are detected without
	// buffering the whole response.
	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseBytes+1))
	if err != nil {
		return nil, c.classifyTransportError(rawURL, err)
	}
	if len(data) > MaxResponseBytes {
		return nil, &Error{Kind: KindTooLarge, URL: rawURL, Detail: "response exceeds 2 MB limit"}
	}

	decoded, err := decodeHTML(data, contentType)
	if err != nil {
		return nil, &Error{Kind: KindNetwork, URL: rawURL, Detail: "decode body: " + err.Error(), cause: err}
	}

	finalURL := rawURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	return &Result{HTML: decoded, FinalURL: finalURL}, nil
}

func (c *HTTPClient) classifyTransportError(rawURL string, err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindTimeout, URL: rawURL, Detail: "request timed out", cause: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &Error{Kind: KindTimeout, URL: rawURL, Detail: "request timed out", cause: err}
	}
	return &Error{Kind: KindNetwork, URL: rawURL, Detail: err.Error(), cause: err}
}

func isHTMLContentType(contentType string) bool {
	ct := strings.ToLower(contentType)
	return contentType == "" ||
		strings.Contains(ct, "text/html") ||
		strings.Contains(ct, "application/xhtml+xml")
}

// decodeHTML converts the body to UTF-8 using the declared or sniffed
// charset, so extraction always operates on valid UTF-8.
func decodeHTML(data []byte, contentType string) (string, error) {
	reader, err := charset.NewReader(bytes.NewReader(data), contentType)
	if err != nil {
		return "", err
	}
	decoded, err := io.ReadAll(reader)
	if err != nil {
		return "", err
	}
	return string(decoded), nil
}
