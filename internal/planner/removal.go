package planner

import (
	"context"
	"log/slog"

	"github.com/starford/raido/internal/apperr"
	"github.com/starford/raido/internal/catalog"
	"github.com/starford/raido/internal/plan"
	"github.com/starford/raido/internal/version"
)

// Uninstall methods the privileged installer understands.
const (
	methodRemovePackages   = "remove_packages"
	methodRemoveFiles      = "remove_files"
	methodUninstallScript  = "uninstall_script"
	methodUninstallPackage = "uninstall_package"
)

// resolveRemoval resolves one removal reference into the plan. Returns
// true when the item is gone or will be removed. An install request for
// the same name always wins: the removal is rejected, not dropped
// silently.
func (pl *Planner) resolveRemoval(ctx context.Context, ref string, cataloglist []string, p *plan.Plan, depth int) bool {
	if depth >= maxResolveDepth {
		pl.logger.Warn("removal resolution too deep, pruning", slog.String("ref", ref))
		return false
	}

	name, vers := catalog.SplitNameAndVersion(ref)
	if p.HasProcessedInstallName(name) {
		pl.logger.Warn("removal rejected, item is managed for install",
			slog.String("item", name),
			slog.String("error", apperr.ErrConflict.Error()))
		return false
	}
	if p.HasProcessedUninstall(name) {
		return true
	}
	p.MarkUninstallProcessed(name)

	var variants []*catalog.Item
	if vers != "" {
		if item, ok := pl.index.Lookup(name, vers, cataloglist); ok {
			variants = []*catalog.Item{item}
		}
	} else {
		variants = pl.index.Variants(name, cataloglist)
	}
	if len(variants) == 0 {
		pl.logger.Warn("no catalog item for removal", slog.String("ref", ref))
		return false
	}

	var found *catalog.Item
	for _, v := range variants {
		if pl.state.EvidenceOfInstalled(v) {
			found = v
			break
		}
	}
	if found == nil {
		// removing an absent item is a successful no-op
		p.Removals = append(p.Removals, plan.PlannedRemoval{Name: name, Installed: false})
		pl.logger.Debug("item not installed, nothing to remove", slog.String("item", name))
		return true
	}

	if !found.Uninstallable || found.UninstallMethod == "" {
		pl.logger.Warn("item has no uninstall method",
			slog.String("item", found.Name), slog.String("version", found.Version))
		return false
	}

	// Installed items that require this one must go first; failing to
	// remove a dependent blocks this removal.
	for _, other := range pl.index.Items(cataloglist) {
		if other.Name == found.Name || !requiresItem(other, found) {
			continue
		}
		if p.HasProcessedUninstall(other.Name) || !pl.state.EvidenceOfInstalled(other) {
			continue
		}
		pl.logger.Info("removing dependent item",
			slog.String("item", other.Name), slog.String("requires", found.Name))
		if !pl.resolveRemoval(ctx, other.Name, cataloglist, p, depth+1) {
			pl.logger.Warn("dependent item not removable, removal blocked",
				slog.String("item", found.Name), slog.String("dependent", other.Name))
			return false
		}
	}

	entry := plan.PlannedRemoval{
		Name:             found.Name,
		DisplayName:      found.DisplayName,
		Installed:        true,
		InstalledVersion: found.Version,
		UninstallMethod:  found.UninstallMethod,
		RestartAction:    found.Restart(),
		AppleItem:        found.IsAppleItem(),
	}

	switch found.UninstallMethod {
	case methodRemovePackages:
		pkgs, ok := pl.removablePackages(found, cataloglist, p)
		if !ok {
			return false
		}
		entry.Packages = pkgs
	case methodUninstallPackage:
		res, err := pl.stager.DownloadAndStage(ctx, found, true)
		if err != nil {
			pl.logger.Warn("uninstaller download failed",
				slog.String("item", found.Name), slog.String("error", err.Error()))
			return false
		}
		entry.UninstallerItem = res.InstallerItem
	case methodRemoveFiles, methodUninstallScript:
		// installer works from the item's own metadata
	default:
		pl.logger.Warn("unknown uninstall method",
			slog.String("item", found.Name), slog.String("method", found.UninstallMethod))
		return false
	}

	if found.UnattendedUninstall {
		if found.Restart() == catalog.RestartNone {
			entry.UnattendedUninstall = true
		} else {
			pl.logger.Warn("unattended uninstall suppressed, restart required",
				slog.String("item", found.Name))
		}
	}

	// Point-updates layered on this item go with it. Their failures do
	// not block the base removal.
	updates := pl.index.UpdatesFor(found.Name, cataloglist)
	for _, u := range pl.index.UpdatesForVersion(found.Name, found.Version, cataloglist) {
		if !containsString(updates, u) {
			updates = append(updates, u)
		}
	}
	for _, u := range updates {
		pl.logger.Debug("removing update for item",
			slog.String("item", found.Name), slog.String("update", u))
		pl.resolveRemoval(ctx, u, cataloglist, p, depth+1)
	}

	p.Removals = append(p.Removals, entry)
	pl.logger.Info("removal scheduled",
		slog.String("item", found.Name),
		slog.String("version", found.Version),
		slog.String("method", found.UninstallMethod))
	return true
}

// removablePackages reference-counts the item's receipt packages against
// every other installed item in the catalogs, returning only packages
// nothing else still needs. Items already being removed this run do not
// hold a reference. Works from one snapshot of the full receipt set
// rather than a query per package.
func (pl *Planner) removablePackages(item *catalog.Item, cataloglist []string, p *plan.Plan) ([]string, bool) {
	installedPkgs, err := pl.db.InstalledPackageIDs()
	if err != nil {
		pl.logger.Warn("receipt snapshot unavailable",
			slog.String("item", item.Name), slog.String("error", err.Error()))
		return nil, false
	}
	refs := pl.index.PackageRefs(cataloglist)
	var pkgs []string
	for _, r := range item.Receipts {
		if r.Optional || r.PackageID == "" {
			continue
		}
		if _, installed := installedPkgs[r.PackageID]; !installed {
			continue
		}
		shared := false
		for _, otherName := range refs[r.PackageID] {
			if otherName == item.Name || p.HasProcessedUninstall(otherName) {
				continue
			}
			if installed, err := pl.db.IsAnyVersionInstalled(otherName); err == nil && installed {
				pl.logger.Debug("package shared with installed item",
					slog.String("pkg_id", r.PackageID), slog.String("item", otherName))
				shared = true
				break
			}
		}
		if !shared {
			pkgs = append(pkgs, r.PackageID)
		}
	}
	if len(pkgs) == 0 {
		pl.logger.Warn("no removable packages",
			slog.String("item", item.Name), slog.String("version", item.Version))
		return nil, false
	}
	return pkgs, true
}

// requiresItem reports whether other's requires list references target,
// by bare name or at target's exact version.
func requiresItem(other, target *catalog.Item) bool {
	for _, req := range other.Requires {
		n, v := catalog.SplitNameAndVersion(req)
		if n != target.Name {
			continue
		}
		if v == "" || version.TrimVersion(v) == version.TrimVersion(target.Version) {
			return true
		}
	}
	return false
}
