package pipeline

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ppiankov/annofrag/internal/util"
)

const fetchMaxRetries = 3

// fetchSleepFunc is the sleep function used between retries (injectable for tests)
var fetchSleepFunc = time.Sleep

// Fetcher fetches remote documents
type Fetcher struct {
	httpClient *http.Client
	userAgent  string
	maxBytes   int64
}

// NewFetcher creates a new Fetcher with the given configuration
func NewFetcher(timeout time.Duration, userAgent string, maxBytes int64, insecure bool, httpProxy, httpsProxy, noProxy string) *Fetcher {
	transport := &http.Transport{
		Proxy: util.NewProxyFunc(httpProxy, httpsProxy, noProxy),
	}
	if insecure {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in for self-signed document hosts
	}

	return &Fetcher{
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: transport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 3 {
					return fmt.Errorf("stopped after 3 redirects")
				}
				return nil
			},
		},
		userAgent: userAgent,
		maxBytes:  maxBytes,
	}
}

// FetchResult contains the fetched body and metadata
type FetchResult struct {
	Body        []byte
	ContentType string
	StatusCode  int
	FinalURL    string
}

// Fetch retrieves a document from the given URL
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*FetchResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "application/json,application/yaml,application/toml,text/html;q=0.9,*/*;q=0.8")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status: %d %s", resp.StatusCode, resp.Status)
	}

	// Read one byte past the limit to tell a full body from a truncated one
	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(body)) > f.maxBytes {
		return nil, fmt.Errorf("read body: document larger than %d bytes", f.maxBytes)
	}

	return &FetchResult{
		Body:        body,
		ContentType: resp.Header.Get("Content-Type"),
		StatusCode:  resp.StatusCode,
		FinalURL:    resp.Request.URL.String(),
	}, nil
}

// FetchWithRetry retries transient failures with exponential backoff
func (f *Fetcher) FetchWithRetry(ctx context.Context, rawURL string) (*FetchResult, error) {
	var lastErr error
	for attempt := 0; attempt < fetchMaxRetries; attempt++ {
		result, err := f.Fetch(ctx, rawURL)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if !isRetryableFetchError(err) || ctx.Err() != nil {
			return nil, err
		}
		if attempt < fetchMaxRetries-1 {
			backoff := time.Duration(1<<uint(attempt)) * time.Second
			fetchSleepFunc(backoff)
		}
	}
	return nil, lastErr
}

// isRetryableFetchError reports transient failures: 5xx, 429 and
// connection-level network errors
func isRetryableFetchError(err error) bool {
	if err == nil {
		return false
	}
	s := strings.ToLower(err.Error())
	if strings.HasPrefix(s, "unexpected status: ") {
		code := strings.TrimPrefix(s, "unexpected status: ")
		return strings.HasPrefix(code, "5") || strings.HasPrefix(code, "429")
	}
	return strings.Contains(s, "timeout") ||
		strings.Contains(s, "connection refused") ||
		strings.Contains(s, "connection reset")
}
