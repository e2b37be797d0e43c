// Package transport fetches manifests, catalogs, and installer payloads
// from the repo server, with an on-disk cache and conditional re-fetch.
//
// Retries and cache revalidation happen here; the planner above never
// retries.
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/starford/raido/internal/apperr"
	"github.com/starford/raido/internal/checksum"
	"github.com/starford/raido/internal/storage"
)

// Fetcher is the metadata-fetch interface the loaders consume.
type Fetcher interface {
	FetchManifest(ctx context.Context, name string) ([]byte, error)
	FetchCatalog(ctx context.Context, name string) ([]byte, error)
	// FetchData performs a plain GET of an absolute URL (seat lookups).
	FetchData(ctx context.Context, rawURL string) ([]byte, error)
}

const (
	manifestDir = "manifests"
	catalogDir  = "catalogs"
	cacheDir    = "cache"

	fetchRetries = 2
)

// Client is the HTTP implementation of Fetcher, caching every resource
// under the managed install directory.
type Client struct {
	baseURL string
	httpc   *http.Client
	store   storage.Provider
	logger  *slog.Logger
}

// NewClient returns a Client for the given repo base URL.
func NewClient(baseURL string, store storage.Provider, logger *slog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpc:   &http.Client{Timeout: 2 * time.Minute},
		store:   store,
		logger:  logger,
	}
}

// FetchManifest retrieves the named manifest, honouring the cache.
func (c *Client) FetchManifest(ctx context.Context, name string) ([]byte, error) {
	return c.fetchResource(ctx, manifestDir, name)
}

// FetchCatalog retrieves the named catalog, honouring the cache.
func (c *Client) FetchCatalog(ctx context.Context, name string) ([]byte, error) {
	return c.fetchResource(ctx, catalogDir, name)
}

// FetchData performs a plain GET of an absolute URL without caching.
func (c *Client) FetchData(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("transport: build request: %w", err)
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("transport: get %s: %w", rawURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("transport: get %s: unexpected status %d", rawURL, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// fetchResource gets <base>/<kind>/<name> with ETag revalidation. A 304
// answer serves the cached copy; a fetch failure with no cache is an error
// for the caller's subtree.
func (c *Client) fetchResource(ctx context.Context, kind, name string) ([]byte, error) {
	cachePath := path.Join(kind, name)
	etagPath := cachePath + ".etag"
	resourceURL := c.baseURL + "/" + kind + "/" + url.PathEscape(name)

	var etag string
	if c.store.Exists(cachePath) {
		if data, err := c.store.Read(etagPath); err == nil {
			etag = strings.TrimSpace(string(data))
		}
	}

	body, newTag, err := c.get(ctx, resourceURL, etag)
	if errors.Is(err, apperr.ErrNotModified) {
		c.logger.Debug("cache still current", slog.String("resource", cachePath))
		return c.store.Read(cachePath)
	}
	if err != nil {
		return nil, err
	}

	if werr := c.store.Write(cachePath, body); werr != nil {
		return nil, werr
	}
	if newTag != "" {
		_ = c.store.Write(etagPath, []byte(newTag))
	}
	return body, nil
}

func (c *Client) get(ctx context.Context, resourceURL, etag string) (body []byte, newTag string, err error) {
	for attempt := 0; ; attempt++ {
		body, newTag, err = c.getOnce(ctx, resourceURL, etag)
		if err == nil || errors.Is(err, apperr.ErrNotModified) ||
			ctx.Err() != nil || attempt >= fetchRetries {
			return body, newTag, err
		}
		c.logger.Debug("retrying fetch",
			slog.String("url", resourceURL), slog.String("error", err.Error()))
	}
}

func (c *Client) getOnce(ctx context.Context, resourceURL, etag string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, resourceURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("transport: build request: %w", err)
	}
	if etag != "" {
		req.Header.Set("If-None-Match", etag)
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("transport: get %s: %w", resourceURL, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNotModified:
		return nil, "", apperr.ErrNotModified
	case http.StatusOK:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, "", fmt.Errorf("transport: read %s: %w", resourceURL, err)
		}
		return body, resp.Header.Get("ETag"), nil
	case http.StatusNotFound:
		return nil, "", fmt.Errorf("transport: %s: %w", resourceURL, apperr.ErrNotFound)
	default:
		return nil, "", fmt.Errorf("transport: get %s: unexpected status %d", resourceURL, resp.StatusCode)
	}
}

// FetchPayload downloads an installer payload into the cache directory,
// verifying expectedHash when given. Returns the relative cache path, the
// bytes actually transferred (0 when the cache was already valid), or an
// error.
func (c *Client) FetchPayload(ctx context.Context, location, expectedHash string) (string, int64, error) {
	name := path.Base(location)
	cachePath := path.Join(cacheDir, name)

	if c.store.Exists(cachePath) && expectedHash != "" {
		abs, err := c.store.Abs(cachePath)
		if err == nil {
			if sum, err := checksum.SumFile(abs); err == nil && sum == expectedHash {
				return cachePath, 0, nil
			}
		}
	}

	payloadURL := c.baseURL + "/pkgs/" + url.PathEscape(strings.TrimLeft(location, "/"))
	body, _, err := c.get(ctx, payloadURL, "")
	if err != nil {
		return "", 0, err
	}
	if expectedHash != "" && checksum.Sum(body) != expectedHash {
		return "", 0, fmt.Errorf("transport: %s: integrity check failed", name)
	}
	if err := c.store.Write(cachePath, body); err != nil {
		return "", 0, err
	}
	return cachePath, int64(len(body)), nil
}
