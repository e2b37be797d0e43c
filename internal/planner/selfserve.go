package planner

import (
	"context"
	"log/slog"

	"gopkg.in/yaml.v3"

	"github.com/starford/raido/internal/apperr"
	"github.com/starford/raido/internal/catalog"
	"github.com/starford/raido/internal/manifest"
	"github.com/starford/raido/internal/plan"
)

// selfServeKey is the adopted self-serve manifest's path under the
// managed directory. The user-writable choices file is copied here so
// the run works from a snapshot the user can't change mid-pass.
const selfServeKey = "manifests/SelfServeManifest.yaml"

// selfServePass processes the user's self-serve choices: installs are
// honoured only for items still offered as selectable optional installs,
// removals are honoured unconditionally, and uninstall entries for items
// no longer installed are pruned from the stored manifest.
func (pl *Planner) selfServePass(ctx context.Context, cataloglist []string, p *plan.Plan) error {
	if pl.selfServePath == "" {
		return nil
	}
	if pl.stop.Requested() {
		return apperr.ErrStopRequested
	}

	sm, err := pl.adoptSelfServe()
	if err != nil {
		pl.logger.Warn("self-serve manifest unusable", slog.String("error", err.Error()))
		return nil
	}

	changed := false
	for _, name := range pl.defaultInstalls {
		if !containsString(sm.ManagedInstalls, name) && !containsString(sm.ManagedUninstalls, name) {
			pl.logger.Info("seeding default install", slog.String("item", name))
			sm.ManagedInstalls = append(sm.ManagedInstalls, name)
			changed = true
		}
	}

	for _, ref := range sm.ManagedInstalls {
		if pl.stop.Requested() {
			return apperr.ErrStopRequested
		}
		name, _ := catalog.SplitNameAndVersion(ref)
		entry := optionalEntry(p, name)
		if entry == nil {
			pl.logger.Debug("self-serve choice no longer offered", slog.String("item", name))
			continue
		}
		if entry.Note != "" {
			pl.logger.Debug("self-serve choice not selectable",
				slog.String("item", name), slog.String("note", entry.Note))
			continue
		}
		if pl.resolveInstall(ctx, ref, cataloglist, p, installContext{asOptional: true}) {
			entry.WillBeInstalled = true
		}
	}

	kept := sm.ManagedUninstalls[:0]
	for _, ref := range sm.ManagedUninstalls {
		if pl.stop.Requested() {
			return apperr.ErrStopRequested
		}
		name, _ := catalog.SplitNameAndVersion(ref)
		pl.resolveRemoval(ctx, ref, cataloglist, p, 0)
		if p.InRemovals(name) {
			// still installed; keep until the installer finishes the job
			kept = append(kept, ref)
			if entry := optionalEntry(p, name); entry != nil {
				entry.WillBeRemoved = true
			}
		} else {
			pl.logger.Debug("pruning self-serve uninstall, item gone",
				slog.String("item", name))
			changed = true
		}
	}
	sm.ManagedUninstalls = kept

	if changed {
		data, err := yaml.Marshal(sm)
		if err != nil {
			return nil
		}
		if err := pl.store.Write(selfServeKey, data); err != nil {
			pl.logger.Warn("self-serve manifest not saved", slog.String("error", err.Error()))
		}
	}
	return nil
}

// adoptSelfServe copies the user's choices file into the managed
// directory (when present) and decodes the adopted copy. A missing file
// on both sides yields an empty manifest.
func (pl *Planner) adoptSelfServe() (*manifest.Manifest, error) {
	if data, ok := readUserFile(pl.selfServePath); ok {
		if err := pl.store.Write(selfServeKey, data); err != nil {
			pl.logger.Warn("self-serve manifest not adopted", slog.String("error", err.Error()))
		}
	}
	if !pl.store.Exists(selfServeKey) {
		return &manifest.Manifest{}, nil
	}
	data, err := pl.store.Read(selfServeKey)
	if err != nil {
		return nil, err
	}
	return manifest.Decode(data)
}

func optionalEntry(p *plan.Plan, name string) *plan.OptionalInstall {
	for i := range p.OptionalInstalls {
		if p.OptionalInstalls[i].Name == name {
			return &p.OptionalInstalls[i]
		}
	}
	return nil
}
