package manifest

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/starford/raido/internal/transport"
)

// SiteDefault is the last-resort manifest name when no client identifier
// resolves.
const SiteDefault = "site_default"

// Loader resolves named manifests through the transport, memoizing each
// one for the duration of a run. A manifest is never re-fetched within
// one run.
type Loader struct {
	fetcher transport.Fetcher
	logger  *slog.Logger
	cache   map[string]*Manifest
}

// NewLoader returns a Loader backed by fetcher.
func NewLoader(fetcher transport.Fetcher, logger *slog.Logger) *Loader {
	return &Loader{
		fetcher: fetcher,
		logger:  logger,
		cache:   make(map[string]*Manifest),
	}
}

// Get resolves a named manifest. Fetch or decode failures are returned to
// the caller, which treats them as fatal for the requesting subtree only.
func (l *Loader) Get(ctx context.Context, name string) (*Manifest, error) {
	if m, ok := l.cache[name]; ok {
		return m, nil
	}
	data, err := l.fetcher.FetchManifest(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("manifest %s: %w", name, err)
	}
	m, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("manifest %s: %w", name, err)
	}
	l.cache[name] = m
	l.logger.Debug("manifest loaded", slog.String("manifest", name))
	return m, nil
}

// Put seeds the cache with an already-decoded manifest (local-only and
// self-serve manifests).
func (l *Loader) Put(name string, m *Manifest) {
	l.cache[name] = m
}

// Primary resolves the primary client manifest. With an explicit client
// identifier only that manifest is tried; otherwise the hostname, the
// short hostname, and finally the site default are attempted in order.
// Failure here is fatal for the whole run.
func (l *Loader) Primary(ctx context.Context, clientID string) (*Manifest, string, error) {
	if clientID != "" {
		m, err := l.Get(ctx, clientID)
		if err != nil {
			return nil, "", err
		}
		return m, clientID, nil
	}

	var candidates []string
	if hostname, err := os.Hostname(); err == nil && hostname != "" {
		candidates = append(candidates, hostname)
		if short := strings.SplitN(hostname, ".", 2)[0]; short != "" && short != hostname {
			candidates = append(candidates, short)
		}
	}
	candidates = append(candidates, SiteDefault)

	var lastErr error
	for _, name := range candidates {
		m, err := l.Get(ctx, name)
		if err == nil {
			l.logger.Info("using manifest", slog.String("manifest", name))
			return m, name, nil
		}
		lastErr = err
		l.logger.Debug("manifest candidate failed",
			slog.String("manifest", name), slog.String("error", err.Error()))
	}
	return nil, "", fmt.Errorf("manifest: no primary manifest: %w", lastErr)
}
