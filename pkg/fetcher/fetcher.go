package fetcher

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/dtnitsch/rn-table-scraper/models"
	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/net/html/charset"
)

// Options configures the HTTP client.
type Options struct {
	Timeout   time.Duration
	Retries   int
	UserAgent string
}

type Fetcher struct {
	client *resty.Client
}

func NewFetcher(opts Options) *Fetcher {
	// pooled transport only; retry policy stays with resty
	transport := retryablehttp.NewClient().HTTPClient.Transport

	client := resty.New().
		SetTransport(transport).
		SetTimeout(opts.Timeout).
		SetRetryCount(opts.Retries).
		SetRetryWaitTime(time.Second).
		SetRetryMaxWaitTime(10*time.Second).
		SetHeader("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")
	if opts.UserAgent != "" {
		client.SetHeader("User-Agent", opts.UserAgent)
	}

	return &Fetcher{client: client}
}

// Fetch returns the body of url decoded to UTF-8. Transport failures and
// non-2xx responses are reported as *models.FetchError.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	resp, err := f.client.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, &models.FetchError{URL: url, Err: err}
	}
	if !resp.IsSuccess() {
		return nil, &models.FetchError{URL: url, StatusCode: resp.StatusCode()}
	}

	body, err := decode(resp.Body(), resp.Header().Get("Content-Type"))
	if err != nil {
		return nil, &models.FetchError{URL: url, Err: err}
	}
	return body, nil
}

func decode(body []byte, contentType string) ([]byte, error) {
	r, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		return nil, fmt.Errorf("failed to detect charset: %w", err)
	}
	decoded, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to decode response body: %w", err)
	}
	return decoded, nil
}
