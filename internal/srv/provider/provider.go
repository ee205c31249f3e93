// Package provider holds the stateless clients of the external data sources.
// Each call performs exactly one request; retry policy belongs to the caller.
package provider

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultTimeout = 10 * time.Second

// StatusError reports a non-2xx upstream answer.
type StatusError struct {
	Url        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s answered %d %s", e.Url, e.StatusCode, http.StatusText(e.StatusCode))
}

func newHttpClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &http.Client{Timeout: timeout}
}

// get performs a GET and returns the body of a 2xx answer.
func get(ctx context.Context, client *http.Client, rawUrl string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawUrl, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))
		return nil, &StatusError{Url: req.URL.Host + req.URL.Path, StatusCode: resp.StatusCode}
	}

	return io.ReadAll(io.LimitReader(resp.Body, 4*1024*1024))
}
