package plan

import (
	"bytes"
	"fmt"
	"log/slog"

	"howett.net/plist"

	"github.com/starford/raido/internal/storage"
)

// DocumentPath is the plan document's path relative to the managed
// install directory. The privileged installer and status UIs read it.
const DocumentPath = "InstallInfo.plist"

// Store persists and reloads the plan document. Writes are atomic; a
// concurrent reader never observes a partial document.
type Store struct {
	store  storage.Provider
	logger *slog.Logger
}

// NewStore returns a Store over the managed directory provider.
func NewStore(store storage.Provider, logger *slog.Logger) *Store {
	return &Store{store: store, logger: logger}
}

// Read loads the last persisted plan. A missing document returns
// (nil, nil); a corrupt one is an error.
func (s *Store) Read() (*Plan, error) {
	if !s.store.Exists(DocumentPath) {
		return nil, nil
	}
	data, err := s.store.Read(DocumentPath)
	if err != nil {
		return nil, err
	}
	var p Plan
	if _, err := plist.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("plan: decode %s: %w", DocumentPath, err)
	}
	return &p, nil
}

// Write persists the plan atomically. An unchanged document is left
// untouched so readers keep their timestamps.
func (s *Store) Write(p *Plan) error {
	data, err := plist.MarshalIndent(p, plist.XMLFormat, "\t")
	if err != nil {
		return fmt.Errorf("plan: encode: %w", err)
	}
	if s.store.Exists(DocumentPath) {
		if old, err := s.store.Read(DocumentPath); err == nil && bytes.Equal(old, data) {
			s.logger.Debug("plan unchanged, not rewriting")
			return nil
		}
	}
	if err := s.store.Write(DocumentPath, data); err != nil {
		return err
	}
	s.logger.Info("plan written",
		slog.Int("installs", len(p.ActionableInstalls())),
		slog.Int("removals", len(p.ActionableRemovals())),
		slog.Int("problems", len(p.Problems())))
	return nil
}
