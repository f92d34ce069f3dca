// Package resource fetches images and styles referenced by rendered content.
// The render and sync paths never wait on it: a pending or failed fetch shows
// a placeholder instead of stalling the preview.
package resource

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/fumiama/imgsz"
)

// Resource is fetched content plus what the preview needs to lay it out.
// Width/Height are filled for images whose format imgsz understands, 0
// otherwise.
type Resource struct {
	Data        []byte
	ContentType string
	Width       int
	Height      int
}

// LoadError reports a fetch that failed after retries. Callers render the
// placeholder and move on.
type LoadError struct {
	URL string
	Err error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load resource %s: %v", e.URL, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Loader resolves a URL referenced inside rendered markup.
type Loader interface {
	Fetch(ctx context.Context, url string) (Resource, error)
}

const maxRetries = 3

// Backoff returns the wait before retry attempt n (0-indexed), exponential
// with jitter, capped at 10s.
func Backoff(attempt int) time.Duration {
	base := time.Duration(1<<uint(attempt)) * 500 * time.Millisecond
	if base > 10*time.Second {
		base = 10 * time.Second
	}
	jitter := time.Duration(rand.Int63n(int64(base) / 2))
	return base + jitter
}

type cacheEntry struct {
	res       Resource
	expiresAt time.Time
}

// HTTPLoader fetches over HTTP with bounded retries and a TTL cache.
type HTTPLoader struct {
	client   *http.Client
	ttl      time.Duration
	maxBytes int64
	log      *slog.Logger

	mu    sync.Mutex
	cache map[string]cacheEntry
}

func NewHTTPLoader(ttl time.Duration, maxBytes int64, log *slog.Logger) *HTTPLoader {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if maxBytes <= 0 {
		maxBytes = 10 << 20
	}
	if log == nil {
		log = slog.Default()
	}
	return &HTTPLoader{
		client:   &http.Client{Timeout: 15 * time.Second},
		ttl:      ttl,
		maxBytes: maxBytes,
		log:      log,
		cache:    make(map[string]cacheEntry),
	}
}

// Fetch returns the resource at url, from cache when fresh. Failures after
// retries come back as a *LoadError.
func (l *HTTPLoader) Fetch(ctx context.Context, url string) (Resource, error) {
	l.mu.Lock()
	if entry, ok := l.cache[url]; ok && time.Now().Before(entry.expiresAt) {
		l.mu.Unlock()
		return entry.res, nil
	}
	l.mu.Unlock()

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return Resource{}, &LoadError{URL: url, Err: ctx.Err()}
			case <-time.After(Backoff(attempt - 1)):
			}
		}
		res, err := l.fetchOnce(ctx, url)
		if err == nil {
			l.mu.Lock()
			l.cache[url] = cacheEntry{res: res, expiresAt: time.Now().Add(l.ttl)}
			l.mu.Unlock()
			return res, nil
		}
		lastErr = err
		l.log.Warn("resource fetch failed", "url", url, "attempt", attempt+1, "error", err)
	}
	return Resource{}, &LoadError{URL: url, Err: lastErr}
}

func (l *HTTPLoader) fetchOnce(ctx context.Context, url string) (Resource, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Resource{}, fmt.Errorf("create request: %w", err)
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return Resource{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Resource{}, fmt.Errorf("status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, l.maxBytes+1))
	if err != nil {
		return Resource{}, fmt.Errorf("read body: %w", err)
	}
	if int64(len(data)) > l.maxBytes {
		return Resource{}, fmt.Errorf("resource exceeds %d bytes", l.maxBytes)
	}

	res := Resource{Data: data, ContentType: resp.Header.Get("Content-Type")}
	if strings.HasPrefix(res.ContentType, "image/") || res.ContentType == "" {
		if sz, _, err := imgsz.DecodeSize(bytes.NewReader(data)); err == nil {
			res.Width = sz.Width
			res.Height = sz.Height
		}
	}
	return res, nil
}

// placeholderSVG is a neutral box shown while a resource is pending or after
// it failed.
const placeholderSVG = `<svg xmlns="http://www.w3.org/2000/svg" width="120" height="90" viewBox="0 0 120 90"><rect width="120" height="90" fill="#e4e4e4"/><path d="M30 62l18-22 14 15 10-11 18 18z" fill="#b0b0b0"/><circle cx="42" cy="32" r="7" fill="#b0b0b0"/></svg>`

// Placeholder is what the preview renders when a resource is unavailable.
func Placeholder() Resource {
	return Resource{
		Data:        []byte(placeholderSVG),
		ContentType: "image/svg+xml",
		Width:       120,
		Height:      90,
	}
}
