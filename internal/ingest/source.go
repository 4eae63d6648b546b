package ingest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"time"
)

// Source supplies the raw bytes of one import source. The name is a hint
// used to pick the parsing strategy from its extension.
type Source interface {
	Name() string
	Open(ctx context.Context) (io.ReadCloser, error)
}

// FileSource reads a local file.
type FileSource struct {
	Path string
}

func (s FileSource) Name() string { return filepath.Base(s.Path) }

func (s FileSource) Open(ctx context.Context) (io.ReadCloser, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", s.Path, err)
	}
	return f, nil
}

// RetryPolicy controls re-attempts when fetching a remote source.
type RetryPolicy struct {
	Attempts int
	Wait     time.Duration
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.Attempts <= 0 {
		p.Attempts = 3
	}
	if p.Wait <= 0 {
		p.Wait = 5 * time.Second
	}
	return p
}

// HTTPSource fetches a source over HTTP, retrying transient failures the
// same way the media sync does.
type HTTPSource struct {
	URL    string
	Client *http.Client
	Retry  RetryPolicy
}

func (s *HTTPSource) Name() string {
	u, err := url.Parse(s.URL)
	if err != nil || u.Path == "" || u.Path == "/" {
		return s.URL
	}
	return path.Base(u.Path)
}

func (s *HTTPSource) Open(ctx context.Context) (io.ReadCloser, error) {
	client := s.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	retry := s.Retry.withDefaults()

	var lastErr error
	for attempt := 1; attempt <= retry.Attempts; attempt++ {
		if attempt > 1 {
			select {
			case <-time.After(retry.Wait):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
		if err != nil {
			return nil, fmt.Errorf("build request for %s: %w", s.URL, err)
		}
		resp, err := client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			lastErr = fmt.Errorf("unexpected status %s", resp.Status)
			continue
		}
		return resp.Body, nil
	}
	return nil, fmt.Errorf("fetch %s after %d attempts: %w", s.URL, retry.Attempts, lastErr)
}

// BytesSource serves an in-memory source, mostly for tests.
type BytesSource struct {
	SourceName string
	Data       []byte
}

func (s BytesSource) Name() string { return s.SourceName }

func (s BytesSource) Open(ctx context.Context) (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(s.Data)), nil
}
