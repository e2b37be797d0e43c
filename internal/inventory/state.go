package inventory

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/starford/raido/internal/catalog"
	"github.com/starford/raido/internal/checksum"
	"github.com/starford/raido/internal/version"
)

// State classifies a catalog item against the local inventory.
type State int

const (
	// Absent means no version is present; a full install is needed.
	Absent State = iota
	// Outdated means an older version is present; an upgrade is needed.
	Outdated
	// Current means the described version is present.
	Current
	// NewerOrUnknown means something newer (or unrecognizable) is
	// present; no action is taken.
	NewerOrUnknown
)

func (s State) String() string {
	switch s {
	case Absent:
		return "absent"
	case Outdated:
		return "outdated"
	case Current:
		return "current"
	case NewerOrUnknown:
		return "newer-or-unknown"
	}
	return "unknown"
}

// Satisfied reports whether the state needs no install action.
func (s State) Satisfied() bool {
	return s == Current || s == NewerOrUnknown
}

// Evaluator answers installation-state questions for catalog items.
// Deterministic against a fixed inventory snapshot; never mutates anything.
type Evaluator struct {
	db     *DB
	root   string // optional prefix for installs-file paths, "" in production
	logger *slog.Logger
}

// NewEvaluator returns an Evaluator over the given receipt database.
// root, when non-empty, is prepended to installs-file paths (tests).
func NewEvaluator(db *DB, root string, logger *slog.Logger) *Evaluator {
	return &Evaluator{db: db, root: root, logger: logger}
}

// State classifies the item. Installs-file evidence takes precedence over
// receipts; all checks must pass for the item to count as installed.
func (e *Evaluator) State(item *catalog.Item) State {
	// OnDemand items install every time they are requested.
	if item.OnDemand {
		return Absent
	}

	foundNewer := false
	if len(item.Installs) > 0 {
		for _, f := range item.Installs {
			switch e.compareFile(f) {
			case version.Lower:
				return Outdated
			case fileAbsent:
				return Absent
			case version.Higher:
				foundNewer = true
			}
		}
	} else if len(item.Receipts) > 0 {
		present, missing, older := 0, 0, 0
		for _, r := range item.Receipts {
			if r.Optional {
				continue
			}
			installed, ok, err := e.db.InstalledVersion(r.PackageID)
			if err != nil {
				e.logger.Warn("receipt lookup failed",
					slog.String("pkg_id", r.PackageID), slog.String("error", err.Error()))
				return NewerOrUnknown
			}
			if !ok {
				missing++
				continue
			}
			present++
			switch version.Compare(installed, r.Version) {
			case version.Lower:
				older++
			case version.Higher:
				foundNewer = true
			}
		}
		switch {
		case missing > 0 && present == 0:
			return Absent
		case missing > 0 || older > 0:
			return Outdated
		}
	}

	if foundNewer {
		return NewerOrUnknown
	}
	return Current
}

// SomeVersionInstalled reports whether any version of the item appears to
// be installed.
func (e *Evaluator) SomeVersionInstalled(item *catalog.Item) bool {
	if item.OnDemand {
		// OnDemand items never count as installed.
		return false
	}
	if len(item.Installs) > 0 {
		for _, f := range item.Installs {
			if e.compareFile(f) == fileAbsent {
				return false
			}
		}
		return true
	}
	if len(item.Receipts) > 0 {
		for _, r := range item.Receipts {
			if r.Optional {
				continue
			}
			if _, ok, _ := e.db.InstalledVersion(r.PackageID); !ok {
				return false
			}
		}
		return true
	}
	// no evidence sources; assume installed
	return true
}

// EvidenceOfInstalled is a coarser existence check used to decide whether
// a removal is worth attempting. Any positive evidence counts.
func (e *Evaluator) EvidenceOfInstalled(item *catalog.Item) bool {
	if item.OnDemand {
		return false
	}
	if len(item.Installs) > 0 {
		all := true
		for _, f := range item.Installs {
			if _, err := os.Lstat(e.resolve(f.Path)); err != nil {
				all = false
				break
			}
		}
		if all {
			return true
		}
	}
	if len(item.Receipts) > 0 {
		installed, err := e.db.IsAnyVersionInstalled(item.Name)
		if err == nil && installed {
			return true
		}
		for _, r := range item.Receipts {
			if _, ok, _ := e.db.InstalledVersion(r.PackageID); ok {
				return true
			}
		}
	}
	return false
}

// fileAbsent is a sentinel outside the version.Compare result range.
const fileAbsent = 0

// compareFile checks one installs-file ref against the machine.
// Returns fileAbsent when missing, version.Lower when an older version or
// mismatched checksum is present, version.Same when it matches, and
// version.Higher when a newer version is recorded.
func (e *Evaluator) compareFile(f catalog.FileRef) int {
	resolved := e.resolve(f.Path)
	if _, err := os.Lstat(resolved); err != nil {
		return fileAbsent
	}
	if f.Version != "" {
		recorded, ok, err := e.db.FileVersion(f.Path)
		if err != nil || !ok {
			// present on disk but unrecorded; fall through to checksum
			if f.SHA256 == "" {
				return version.Same
			}
		} else {
			return version.Compare(recorded, f.Version)
		}
	}
	if f.SHA256 != "" {
		sum, err := checksum.SumFile(resolved)
		if err != nil {
			return fileAbsent
		}
		if sum != f.SHA256 {
			return version.Lower
		}
	}
	return version.Same
}

func (e *Evaluator) resolve(p string) string {
	if e.root == "" {
		return p
	}
	return filepath.Join(e.root, strings.TrimLeft(p, "/"))
}
