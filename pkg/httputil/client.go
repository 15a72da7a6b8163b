package httputil

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/matzehuels/elk/pkg/buildinfo"
	"github.com/matzehuels/elk/pkg/observability"
)

const httpTimeout = 10 * time.Minute

var (
	// ErrNotFound is returned for 404 responses.
	ErrNotFound = errors.New("resource not found")

	// ErrNetwork is returned for transport failures and unexpected status codes.
	ErrNetwork = errors.New("network error")
)

// NewHTTPClient returns an http.Client with a timeout long enough for a
// release download on a slow link.
func NewHTTPClient() *http.Client {
	return &http.Client{Timeout: httpTimeout}
}

// Client issues GET requests with a fixed set of headers and reports every
// request to [observability.HTTP].
type Client struct {
	http    *http.Client
	headers map[string]string
}

// NewClient creates a Client. A nil hc uses [NewHTTPClient]. The
// User-Agent header defaults to [buildinfo.UserAgent].
func NewClient(hc *http.Client, headers map[string]string) *Client {
	if hc == nil {
		hc = NewHTTPClient()
	}
	h := map[string]string{"User-Agent": buildinfo.UserAgent()}
	for k, v := range headers {
		h[k] = v
	}
	return &Client{http: hc, headers: h}
}

// Get performs a GET and returns the response body for a 200 response.
// Transport failures, 429 and 5xx responses come back as [RetryableError].
// The caller closes the body.
func (c *Client) Get(ctx context.Context, url string) (io.ReadCloser, int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, err
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	hooks := observability.HTTP()
	host, path := req.URL.Host, req.URL.Path
	hooks.OnRequest(ctx, req.Method, host, path)
	start := time.Now()

	resp, err := c.http.Do(req)
	if err != nil {
		hooks.OnError(ctx, req.Method, host, path, err)
		if ctx.Err() != nil {
			return nil, 0, ctx.Err()
		}
		return nil, 0, Retryable(fmt.Errorf("%w: %v", ErrNetwork, err))
	}
	hooks.OnResponse(ctx, req.Method, host, path, resp.StatusCode, time.Since(start))

	if err := checkStatus(resp); err != nil {
		resp.Body.Close()
		return nil, 0, err
	}
	return resp.Body, resp.ContentLength, nil
}

// Progress receives the running byte count and the expected total, which
// is -1 when the server did not send Content-Length.
type Progress func(done, total int64)

// Download streams url into w, calling progress after every chunk. name
// labels the bytes in [observability.HTTPHooks.OnDownload].
func (c *Client) Download(ctx context.Context, url, name string, w io.Writer, progress Progress) (int64, error) {
	body, total, err := c.Get(ctx, url)
	if err != nil {
		return 0, err
	}
	defer body.Close()

	var r io.Reader = body
	if progress != nil {
		progress(0, total)
		r = &progressReader{r: body, total: total, fn: progress}
	}
	n, err := io.Copy(w, r)
	observability.HTTP().OnDownload(ctx, name, n)
	if err != nil {
		if ctx.Err() != nil {
			return n, ctx.Err()
		}
		return n, Retryable(fmt.Errorf("%w: reading body: %v", ErrNetwork, err))
	}
	if total > 0 && n != total {
		return n, Retryable(fmt.Errorf("%w: short body: got %d of %d bytes", ErrNetwork, n, total))
	}
	return n, nil
}

type progressReader struct {
	r     io.Reader
	done  int64
	total int64
	fn    Progress
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.done += int64(n)
		p.fn(p.done, p.total)
	}
	return n, err
}

func checkStatus(resp *http.Response) error {
	code := resp.StatusCode
	switch {
	case code == http.StatusOK:
		return nil
	case code == http.StatusNotFound:
		return ErrNotFound
	case code == http.StatusTooManyRequests, code >= 500:
		return &RetryableError{
			Err:   fmt.Errorf("%w: status %d", ErrNetwork, code),
			After: parseRetryAfter(resp.Header.Get("Retry-After"), time.Now()),
		}
	default:
		return fmt.Errorf("%w: status %d", ErrNetwork, code)
	}
}
