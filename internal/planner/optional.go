package planner

import (
	"fmt"
	"log/slog"

	"github.com/starford/raido/internal/catalog"
	"github.com/starford/raido/internal/download"
	"github.com/starford/raido/internal/plan"
)

// resolveOptional classifies one optional-install candidate and appends
// it to the plan's candidate list. No dependency recursion happens here:
// dependencies are resolved only if the user actually picks the item.
func (pl *Planner) resolveOptional(ref string, cataloglist []string, p *plan.Plan) {
	name, _ := catalog.SplitNameAndVersion(ref)
	if p.HasProcessedInstallName(name) || p.HasProcessedUninstall(name) {
		pl.logger.Debug("optional install already managed", slog.String("item", name))
		return
	}
	if p.HasOptionalInstall(name) {
		return
	}

	item, ok := pl.index.Lookup(ref, "", cataloglist)
	if !ok {
		pl.logger.Warn("no catalog item for optional install", slog.String("ref", ref))
		return
	}

	installed := pl.state.SomeVersionInstalled(item)
	needsUpdate := false
	if installed {
		needsUpdate = !pl.state.State(item).Satisfied()
	}

	entry := plan.OptionalInstall{
		Name:             item.Name,
		DisplayName:      item.DisplayName,
		Description:      item.Description,
		VersionToInstall: item.Version,
		Installed:        installed,
		NeedsUpdate:      needsUpdate,
		Uninstallable:    item.Uninstallable && item.UninstallMethod != "",
		InstallerSize:    item.InstallerSize,
		InstalledSize:    item.InstalledSize,

		LicensedSeatInfoAvailable: item.LicensedSeatInfoAvailable,
	}

	if !installed || needsUpdate {
		if !download.EnoughDiskSpace(item, p.ManagedInstalls, pl.availableKB, false) {
			entry.Note = fmt.Sprintf("Insufficient disk space to install %s.", displayName(item))
		}
	}

	p.OptionalInstalls = append(p.OptionalInstalls, entry)
	pl.logger.Debug("optional install candidate",
		slog.String("item", item.Name),
		slog.Bool("installed", installed),
		slog.Bool("needs_update", needsUpdate))
}
