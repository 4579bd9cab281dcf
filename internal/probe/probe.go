// Package probe checks whether external URLs are reachable.
package probe

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
)

// Prober fetches a URL and reports the HTTP status it answered with.
type Prober interface {
	Probe(ctx context.Context, url string) (status int, err error)
}

// HTTPProber probes with a GET request.
type HTTPProber struct {
	client *http.Client
}

// NewHTTPProber creates a prober whose requests time out after timeout.
func NewHTTPProber(timeout time.Duration) *HTTPProber {
	return &HTTPProber{client: &http.Client{Timeout: timeout}}
}

// Probe implements Prober. The response body is discarded.
func (p *HTTPProber) Probe(ctx context.Context, url string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("invalid url %q: %w", url, err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))

	return resp.StatusCode, nil
}

// Result is the outcome of probing one URL.
type Result struct {
	URL    string
	Status int
	Err    error
}

// Alive reports whether the URL answered 200 OK. Any other status, including
// other 2xx codes and redirects that were not followed to a 200, counts as dead.
func (r Result) Alive() bool {
	return r.Err == nil && r.Status == http.StatusOK
}

// CheckAll probes every URL with at most concurrency probes in flight and
// returns the results in input order. A failed probe never stops the others.
func CheckAll(ctx context.Context, p Prober, urls []string, concurrency int) []Result {
	results := make([]Result, len(urls))
	if concurrency < 1 {
		concurrency = 1
	}

	var g errgroup.Group
	g.SetLimit(concurrency)
	for i, u := range urls {
		g.Go(func() error {
			status, err := p.Probe(ctx, u)
			results[i] = Result{URL: u, Status: status, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	return results
}
