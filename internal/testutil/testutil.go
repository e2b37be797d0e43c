// Package testutil provides shared test helpers: temporary inventory
// databases, managed directories, and an in-memory repo.
package testutil

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"testing"

	"github.com/starford/raido/internal/apperr"
	"github.com/starford/raido/internal/inventory"
	"github.com/starford/raido/internal/storage"
)

// Logger returns a discard slog logger for tests.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// TestDB creates a temporary inventory database that is automatically
// cleaned up.
func TestDB(t *testing.T) *inventory.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "raido-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := inventory.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestManagedDir creates a temporary managed install directory with a
// storage.Provider over it.
func TestManagedDir(t *testing.T) (string, storage.Provider) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	return dir, store
}

// Repo is an in-memory repo server implementing the transport interfaces
// used by the loaders and the seat lookup.
type Repo struct {
	Manifests map[string][]byte
	Catalogs  map[string][]byte
	Data      map[string][]byte // keyed by full URL
}

// NewRepo returns an empty Repo.
func NewRepo() *Repo {
	return &Repo{
		Manifests: make(map[string][]byte),
		Catalogs:  make(map[string][]byte),
		Data:      make(map[string][]byte),
	}
}

// FetchManifest implements transport.Fetcher.
func (r *Repo) FetchManifest(_ context.Context, name string) ([]byte, error) {
	if data, ok := r.Manifests[name]; ok {
		return data, nil
	}
	return nil, fmt.Errorf("manifest %s: %w", name, apperr.ErrNotFound)
}

// FetchCatalog implements transport.Fetcher and catalog.Source.
func (r *Repo) FetchCatalog(_ context.Context, name string) ([]byte, error) {
	if data, ok := r.Catalogs[name]; ok {
		return data, nil
	}
	return nil, fmt.Errorf("catalog %s: %w", name, apperr.ErrNotFound)
}

// FetchData implements transport.Fetcher and licensing.DataFetcher.
func (r *Repo) FetchData(_ context.Context, rawURL string) ([]byte, error) {
	if data, ok := r.Data[rawURL]; ok {
		return data, nil
	}
	return nil, fmt.Errorf("get %s: %w", rawURL, apperr.ErrNotFound)
}
