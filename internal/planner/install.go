package planner

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/starford/raido/internal/apperr"
	"github.com/starford/raido/internal/catalog"
	"github.com/starford/raido/internal/download"
	"github.com/starford/raido/internal/inventory"
	"github.com/starford/raido/internal/plan"
)

// installContext threads the resolution mode through recursive
// resolveInstall calls.
type installContext struct {
	// asUpdate suppresses the processed_installs marker so the item can
	// still be claimed as a full managed install later in the walk.
	asUpdate bool
	// asOptional marks self-serve resolution: force-install dates are
	// dropped for items not yet installed.
	asOptional bool
	depth      int
}

func (ic installContext) deeper() installContext {
	ic.depth++
	return ic
}

// resolveInstall resolves one install reference into the plan. Returns
// true when the item is, or will be, satisfied. Failures are recorded
// in the plan or logged; they never abort the pass.
func (pl *Planner) resolveInstall(ctx context.Context, ref string, cataloglist []string, p *plan.Plan, ic installContext) bool {
	if ic.depth >= maxResolveDepth {
		pl.logger.Warn("resolution too deep, pruning", slog.String("ref", ref))
		return false
	}
	if p.HasProcessedInstall(ref) {
		return true
	}

	name, vers := catalog.SplitNameAndVersion(ref)
	if p.HasProcessedUninstall(name) {
		pl.logger.Warn("install conflicts with processed removal",
			slog.String("item", name),
			slog.String("error", apperr.ErrConflict.Error()))
		return false
	}

	item, ok := pl.index.Lookup(ref, "", cataloglist)
	if !ok {
		pl.logger.Warn("no catalog item for reference",
			slog.String("ref", ref),
			slog.String("catalogs", fmt.Sprint(cataloglist)))
		return false
	}

	// Mark before recursing: a requires cycle back to this item resolves
	// to "already processed" instead of recursing forever.
	if !ic.asUpdate {
		p.MarkInstallProcessed(ref)
	}

	if p.SatisfiedInstall(item.Name, item.Version) {
		pl.logger.Debug("already satisfied in plan",
			slog.String("item", item.Name), slog.String("version", item.Version))
		return true
	}

	dependenciesMet := true
	for _, req := range item.Requires {
		pl.logger.Debug("resolving dependency",
			slog.String("item", item.Name), slog.String("requires", req))
		if !pl.resolveInstall(ctx, req, cataloglist, p, ic.deeper()) {
			pl.logger.Warn("dependency not resolvable",
				slog.String("item", item.Name), slog.String("requires", req))
			dependenciesMet = false
		}
	}

	entry := plan.PlannedInstall{
		Name:          item.Name,
		DisplayName:   item.DisplayName,
		Description:   item.Description,
		Requires:      item.Requires,
		UpdateFor:     item.UpdateFor,
		RestartAction: item.Restart(),
		AppleItem:     item.IsAppleItem(),
		InstalledSize: item.InstalledSize,
	}

	if !dependenciesMet {
		entry.VersionToInstall = item.Version
		entry.Note = fmt.Sprintf("Dependencies for %s-%s could not be resolved.", item.Name, item.Version)
		p.ManagedInstalls = append(p.ManagedInstalls, entry)
		return false
	}

	state := pl.state.State(item)
	if state.Satisfied() {
		entry.Installed = true
		if state == inventory.Current {
			entry.InstalledVersion = item.Version
		} else {
			entry.InstalledVersion = fmt.Sprintf("(newer than %s)", item.Version)
		}
		p.ManagedInstalls = append(p.ManagedInstalls, entry)
		pl.logger.Debug("item already installed",
			slog.String("item", item.Name), slog.String("state", state.String()))
		pl.recurseUpdates(ctx, item, name, vers, cataloglist, p, ic)
		return true
	}

	entry.VersionToInstall = item.Version
	entry.InstallerSize = item.InstallerSize

	if !download.EnoughDiskSpace(item, p.ManagedInstalls, pl.availableKB, false) {
		entry.Note = fmt.Sprintf("Insufficient disk space to download and install %s-%s.", item.Name, item.Version)
		p.ManagedInstalls = append(p.ManagedInstalls, entry)
		pl.logger.Warn("insufficient disk space",
			slog.String("item", item.Name), slog.Int64("installer_kb", item.InstallerSize))
		return false
	}

	pl.publish("Downloading "+displayName(item), item.Version, -1)
	res, err := pl.stager.DownloadAndStage(ctx, item, false)
	if err != nil {
		// per-item note; the update chain is not pursued
		entry.Note = err.Error()
		p.ManagedInstalls = append(p.ManagedInstalls, entry)
		pl.logger.Warn("download failed",
			slog.String("item", item.Name), slog.String("error", err.Error()))
		return false
	}
	entry.InstallerItem = res.InstallerItem
	entry.DownloadKBPerSec = res.KBPerSec

	if item.UnattendedInstall {
		if item.Restart() == catalog.RestartNone {
			entry.UnattendedInstall = true
		} else {
			pl.logger.Warn("unattended install suppressed, restart required",
				slog.String("item", item.Name))
		}
	}
	entry.ForceInstallAfterDate = item.ForceInstallAfterDate
	if ic.asOptional && state == inventory.Absent {
		// self-serve picks of not-yet-installed items are never forced
		entry.ForceInstallAfterDate = nil
	}

	p.ManagedInstalls = append(p.ManagedInstalls, entry)
	pl.logger.Info("install scheduled",
		slog.String("item", item.Name),
		slog.String("version", item.Version),
		slog.String("installer_item", res.InstallerItem))

	pl.recurseUpdates(ctx, item, name, vers, cataloglist, p, ic)
	return true
}

// recurseUpdates pulls in point-updates layered on the item. A
// version-qualified reference scopes the chain to that exact version;
// a bare reference also picks up updates bound to the resolved version.
func (pl *Planner) recurseUpdates(ctx context.Context, item *catalog.Item, name, vers string, cataloglist []string, p *plan.Plan, ic installContext) {
	var updates []string
	if vers != "" {
		updates = pl.index.UpdatesForVersion(name, vers, cataloglist)
	} else {
		updates = pl.index.UpdatesFor(name, cataloglist)
		for _, u := range pl.index.UpdatesForVersion(name, item.Version, cataloglist) {
			if !containsString(updates, u) {
				updates = append(updates, u)
			}
		}
	}
	for _, u := range updates {
		pl.logger.Debug("following update chain",
			slog.String("item", name), slog.String("update", u))
		next := ic.deeper()
		next.asUpdate = true
		pl.resolveInstall(ctx, u, cataloglist, p, next)
	}
}

// resolveManagedUpdate offers an update only when some version of the
// item is already installed; absent items are left alone.
func (pl *Planner) resolveManagedUpdate(ctx context.Context, ref string, cataloglist []string, p *plan.Plan) {
	name, _ := catalog.SplitNameAndVersion(ref)
	if p.HasManagedUpdate(name) || p.HasProcessedInstallName(name) || p.HasProcessedUninstall(name) {
		return
	}
	item, ok := pl.index.Lookup(ref, "", cataloglist)
	if !ok {
		pl.logger.Warn("no catalog item for managed update", slog.String("ref", ref))
		return
	}
	if !pl.state.SomeVersionInstalled(item) {
		pl.logger.Debug("managed update skipped, item not installed",
			slog.String("item", name))
		return
	}
	p.MarkManagedUpdate(name)
	pl.resolveInstall(ctx, ref, cataloglist, p, installContext{asUpdate: true})
}

func displayName(item *catalog.Item) string {
	if item.DisplayName != "" {
		return item.DisplayName
	}
	return item.Name
}
