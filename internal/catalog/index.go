package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/starford/raido/internal/version"
)

// Source fetches raw catalog documents by name.
type Source interface {
	FetchCatalog(ctx context.Context, name string) ([]byte, error)
}

// loadedCatalog holds one catalog's items plus lookup tables.
type loadedCatalog struct {
	name     string
	items    []*Item
	byName   map[string][]*Item // name → items, newest version first
	updaters []*Item            // items with a non-empty update_for
}

// Index loads named catalogs and answers resolution queries against an
// ordered catalog list. Earlier-declared catalogs win on collisions.
type Index struct {
	source   Source
	logger   *slog.Logger
	catalogs map[string]*loadedCatalog
}

// NewIndex returns an empty index backed by source.
func NewIndex(source Source, logger *slog.Logger) *Index {
	return &Index{
		source:   source,
		logger:   logger,
		catalogs: make(map[string]*loadedCatalog),
	}
}

// Load fetches and indexes each named catalog not yet loaded. A catalog
// that cannot be fetched or decoded degrades to an empty catalog with a
// warning; resolution against the rest continues.
func (x *Index) Load(ctx context.Context, names []string) {
	for _, name := range names {
		if _, ok := x.catalogs[name]; ok {
			continue
		}
		data, err := x.source.FetchCatalog(ctx, name)
		if err != nil {
			x.logger.Warn("catalog unavailable",
				slog.String("catalog", name), slog.String("error", err.Error()))
			x.catalogs[name] = &loadedCatalog{name: name, byName: map[string][]*Item{}}
			continue
		}
		items, rejected, err := decode(data)
		if err != nil {
			x.logger.Warn("catalog invalid",
				slog.String("catalog", name), slog.String("error", err.Error()))
			x.catalogs[name] = &loadedCatalog{name: name, byName: map[string][]*Item{}}
			continue
		}
		for _, reason := range rejected {
			x.logger.Warn("bad catalog item",
				slog.String("catalog", name), slog.String("item", reason))
		}
		x.catalogs[name] = buildCatalog(name, items)
		x.logger.Debug("catalog loaded",
			slog.String("catalog", name), slog.Int("items", len(items)))
	}
}

// Loaded reports whether the named catalog has been loaded (possibly empty).
func (x *Index) Loaded(name string) bool {
	_, ok := x.catalogs[name]
	return ok
}

func buildCatalog(name string, items []*Item) *loadedCatalog {
	c := &loadedCatalog{name: name, items: items, byName: make(map[string][]*Item)}
	for _, item := range items {
		c.byName[item.Name] = append(c.byName[item.Name], item)
		if len(item.UpdateFor) > 0 {
			c.updaters = append(c.updaters, item)
		}
	}
	for _, variants := range c.byName {
		sort.SliceStable(variants, func(i, j int) bool {
			return version.Compare(variants[i].Version, variants[j].Version) == version.Higher
		})
	}
	return c
}

// Lookup finds an item by reference in the ordered catalog list. The ref
// may embed a version ("Firefox-100.0"); an explicit vers argument takes
// precedence. A bare name resolves to the highest version available.
func (x *Index) Lookup(ref string, vers string, cataloglist []string) (*Item, bool) {
	name, embedded := SplitNameAndVersion(ref)
	if vers == "" {
		vers = embedded
	}
	if vers != "" {
		vers = version.TrimVersion(vers)
	}

	for _, catalogname := range cataloglist {
		c, ok := x.catalogs[catalogname]
		if !ok {
			continue
		}
		for _, item := range c.byName[name] {
			if vers == "" || version.TrimVersion(item.Version) == vers {
				return item, true
			}
		}
	}
	return nil, false
}

// Variants returns every version of name across the catalog list, newest
// first, with (name, version) duplicates removed. No precedence is given
// to catalog order.
func (x *Index) Variants(ref string, cataloglist []string) []*Item {
	name, _ := SplitNameAndVersion(ref)
	seen := make(map[string]bool)
	var out []*Item
	for _, catalogname := range cataloglist {
		c, ok := x.catalogs[catalogname]
		if !ok {
			continue
		}
		for _, item := range c.byName[name] {
			key := item.Name + "\x00" + item.Version
			if !seen[key] {
				seen[key] = true
				out = append(out, item)
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return version.Compare(out[i].Version, out[j].Version) == version.Higher
	})
	return out
}

// UpdatesFor returns the names of items declaring themselves updates for
// the given reference (installed, installing, or being removed).
func (x *Index) UpdatesFor(ref string, cataloglist []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, catalogname := range cataloglist {
		c, ok := x.catalogs[catalogname]
		if !ok {
			continue
		}
		for _, updater := range c.updaters {
			for _, target := range updater.UpdateFor {
				if target == ref && !seen[updater.Name] {
					seen[updater.Name] = true
					out = append(out, updater.Name)
				}
			}
		}
	}
	return out
}

// UpdatesForVersion returns updates scoped to a specific version of name.
// Update declarations may use either "name-vers" or "name--vers".
func (x *Index) UpdatesForVersion(name, vers string, cataloglist []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, ref := range []string{
		fmt.Sprintf("%s-%s", name, vers),
		fmt.Sprintf("%s--%s", name, vers),
	} {
		for _, updateName := range x.UpdatesFor(ref, cataloglist) {
			if !seen[updateName] {
				seen[updateName] = true
				out = append(out, updateName)
			}
		}
	}
	return out
}

// AutoRemovalNames returns the names of autoremove-flagged items in the
// catalog list.
func (x *Index) AutoRemovalNames(cataloglist []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, catalogname := range cataloglist {
		c, ok := x.catalogs[catalogname]
		if !ok {
			continue
		}
		for _, item := range c.items {
			if item.Autoremove && !seen[item.Name] {
				seen[item.Name] = true
				out = append(out, item.Name)
			}
		}
	}
	return out
}

// Items returns every item in the ordered catalog list, in declaration
// order, for whole-catalog scans (removal cascades).
func (x *Index) Items(cataloglist []string) []*Item {
	var out []*Item
	for _, catalogname := range cataloglist {
		if c, ok := x.catalogs[catalogname]; ok {
			out = append(out, c.items...)
		}
	}
	return out
}

// PackageRefs maps each receipt package id to the catalog item names that
// reference it, across the catalog list. Used to reference-count shared
// low-level packages during removals.
func (x *Index) PackageRefs(cataloglist []string) map[string][]string {
	refs := make(map[string][]string)
	for _, catalogname := range cataloglist {
		c, ok := x.catalogs[catalogname]
		if !ok {
			continue
		}
		for _, item := range c.items {
			for _, r := range item.Receipts {
				if r.PackageID == "" {
					continue
				}
				if !contains(refs[r.PackageID], item.Name) {
					refs[r.PackageID] = append(refs[r.PackageID], item.Name)
				}
			}
		}
	}
	return refs
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
