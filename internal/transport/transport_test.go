package transport

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/starford/raido/internal/checksum"
	"github.com/starford/raido/internal/storage"
)

func testClient(t *testing.T, handler http.Handler) (*Client, storage.Provider) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	store, err := storage.NewFS(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewClient(srv.URL, store, logger), store
}

func TestFetchManifestCachesAndRevalidates(t *testing.T) {
	var hits atomic.Int64
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Path != "/manifests/site_default" {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		_, _ = w.Write([]byte("managed_installs: [Widget]\n"))
	})
	c, store := testClient(t, handler)
	ctx := context.Background()

	first, err := c.FetchManifest(ctx, "site_default")
	if err != nil {
		t.Fatalf("first fetch: %v", err)
	}
	if !store.Exists("manifests/site_default") {
		t.Fatal("manifest not cached")
	}

	second, err := c.FetchManifest(ctx, "site_default")
	if err != nil {
		t.Fatalf("revalidated fetch: %v", err)
	}
	if string(first) != string(second) {
		t.Error("cached copy differs from original")
	}
	if hits.Load() != 2 {
		t.Errorf("server hits = %d, want 2 (fetch + 304)", hits.Load())
	}
}

func TestFetchCatalogNotFound(t *testing.T) {
	c, _ := testClient(t, http.NotFoundHandler())
	if _, err := c.FetchCatalog(context.Background(), "nope"); err == nil {
		t.Fatal("want error for missing catalog")
	}
}

func TestFetchRetriesOnServerError(t *testing.T) {
	var hits atomic.Int64
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte("items: []\n"))
	})
	c, _ := testClient(t, handler)

	if _, err := c.FetchCatalog(context.Background(), "production"); err != nil {
		t.Fatalf("fetch after retries: %v", err)
	}
	if hits.Load() != 3 {
		t.Errorf("server hits = %d, want 3", hits.Load())
	}
}

func TestFetchPayloadVerifiesHash(t *testing.T) {
	payload := []byte("installer bytes")
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(payload)
	})
	c, store := testClient(t, handler)
	ctx := context.Background()

	cachePath, transferred, err := c.FetchPayload(ctx, "apps/widget-1.0.pkg", checksum.Sum(payload))
	if err != nil {
		t.Fatalf("FetchPayload: %v", err)
	}
	if cachePath != "cache/widget-1.0.pkg" || transferred != int64(len(payload)) {
		t.Errorf("FetchPayload = (%s, %d)", cachePath, transferred)
	}
	if !store.Exists(cachePath) {
		t.Error("payload not cached")
	}

	// second fetch is served from the verified cache
	_, transferred, err = c.FetchPayload(ctx, "apps/widget-1.0.pkg", checksum.Sum(payload))
	if err != nil {
		t.Fatalf("cached FetchPayload: %v", err)
	}
	if transferred != 0 {
		t.Errorf("transferred = %d, want cache hit", transferred)
	}
}

func TestFetchPayloadIntegrityFailure(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("tampered bytes"))
	})
	c, store := testClient(t, handler)

	_, _, err := c.FetchPayload(context.Background(), "apps/widget-1.0.pkg", checksum.Sum([]byte("real bytes")))
	if err == nil {
		t.Fatal("want integrity error")
	}
	if store.Exists("cache/widget-1.0.pkg") {
		t.Error("corrupt payload written to cache")
	}
}
