// Package plan holds the resolved install/removal plan built during one
// planning pass and persists it for the privileged installer.
package plan

import (
	"time"

	"github.com/starford/raido/internal/catalog"
	"github.com/starford/raido/internal/version"
)

// PlannedInstall is one resolved install/update entry (also used for
// problem items: entries that could not be fully resolved).
type PlannedInstall struct {
	Name        string `plist:"name" yaml:"name"`
	DisplayName string `plist:"display_name,omitempty" yaml:"display_name,omitempty"`
	Description string `plist:"description,omitempty" yaml:"description,omitempty"`

	VersionToInstall string `plist:"version_to_install,omitempty" yaml:"version_to_install,omitempty"`
	// Installed is true when the item was found already satisfied and no
	// action is scheduled.
	Installed        bool   `plist:"installed" yaml:"installed"`
	InstalledVersion string `plist:"installed_version,omitempty" yaml:"installed_version,omitempty"`

	// InstallerItem is the cache-relative staged payload path; empty for
	// already-satisfied and problem entries.
	InstallerItem    string `plist:"installer_item,omitempty" yaml:"installer_item,omitempty"`
	InstallerSize    int64  `plist:"installer_size,omitempty" yaml:"installer_size,omitempty"`
	InstalledSize    int64  `plist:"installed_size,omitempty" yaml:"installed_size,omitempty"`
	DownloadKBPerSec int64  `plist:"download_kbytes_per_sec,omitempty" yaml:"download_kbytes_per_sec,omitempty"`

	UnattendedInstall bool                  `plist:"unattended_install,omitempty" yaml:"unattended_install,omitempty"`
	RestartAction     catalog.RestartAction `plist:"restart_action,omitempty" yaml:"restart_action,omitempty"`
	AppleItem         bool                  `plist:"apple_item,omitempty" yaml:"apple_item,omitempty"`

	ForceInstallAfterDate *time.Time `plist:"force_install_after_date,omitempty" yaml:"force_install_after_date,omitempty"`

	Requires  []string `plist:"requires,omitempty" yaml:"requires,omitempty"`
	UpdateFor []string `plist:"update_for,omitempty" yaml:"update_for,omitempty"`

	// Note records why an entry could not be fully resolved.
	Note string `plist:"note,omitempty" yaml:"note,omitempty"`
}

// PlannedRemoval is one resolved removal entry. Installed=false entries
// are explicit "not installed, nothing to do" placeholders.
type PlannedRemoval struct {
	Name             string `plist:"name" yaml:"name"`
	DisplayName      string `plist:"display_name,omitempty" yaml:"display_name,omitempty"`
	Installed        bool   `plist:"installed" yaml:"installed"`
	InstalledVersion string `plist:"installed_version,omitempty" yaml:"installed_version,omitempty"`

	UninstallMethod string `plist:"uninstall_method,omitempty" yaml:"uninstall_method,omitempty"`
	UninstallerItem string `plist:"uninstaller_item,omitempty" yaml:"uninstaller_item,omitempty"`
	// Packages lists the receipt package ids to remove; shared packages
	// referenced by other installed items are excluded.
	Packages []string `plist:"packages,omitempty" yaml:"packages,omitempty"`

	UnattendedUninstall bool                  `plist:"unattended_uninstall,omitempty" yaml:"unattended_uninstall,omitempty"`
	RestartAction       catalog.RestartAction `plist:"restart_action,omitempty" yaml:"restart_action,omitempty"`
	AppleItem           bool                  `plist:"apple_item,omitempty" yaml:"apple_item,omitempty"`
}

// OptionalInstall is one self-serve candidate presented to the user.
type OptionalInstall struct {
	Name             string `plist:"name" yaml:"name"`
	DisplayName      string `plist:"display_name,omitempty" yaml:"display_name,omitempty"`
	Description      string `plist:"description,omitempty" yaml:"description,omitempty"`
	VersionToInstall string `plist:"version_to_install,omitempty" yaml:"version_to_install,omitempty"`

	Installed     bool `plist:"installed" yaml:"installed"`
	NeedsUpdate   bool `plist:"needs_update" yaml:"needs_update"`
	Uninstallable bool `plist:"uninstallable" yaml:"uninstallable"`

	InstallerSize int64 `plist:"installer_size,omitempty" yaml:"installer_size,omitempty"`
	InstalledSize int64 `plist:"installed_size,omitempty" yaml:"installed_size,omitempty"`

	LicensedSeatInfoAvailable bool `plist:"licensed_seat_info_available,omitempty" yaml:"licensed_seat_info_available,omitempty"`
	// LicensedSeatsAvailable is nil until the seat lookup annotates the
	// candidate; false renders the item visible but unselectable.
	LicensedSeatsAvailable *bool `plist:"licensed_seats_available,omitempty" yaml:"licensed_seats_available,omitempty"`

	WillBeInstalled bool `plist:"will_be_installed,omitempty" yaml:"will_be_installed,omitempty"`
	WillBeRemoved   bool `plist:"will_be_removed,omitempty" yaml:"will_be_removed,omitempty"`

	Note string `plist:"note,omitempty" yaml:"note,omitempty"`
}

// Plan is the full output of one planning pass. It is built incrementally
// and append-only; the Mark/Append helpers enforce the idempotence rules.
type Plan struct {
	ManagedInstalls  []PlannedInstall  `plist:"managed_installs" yaml:"managed_installs"`
	Removals         []PlannedRemoval  `plist:"removals" yaml:"removals"`
	OptionalInstalls []OptionalInstall `plist:"optional_installs" yaml:"optional_installs"`

	ManagedUpdates      []string `plist:"managed_updates" yaml:"managed_updates"`
	ProcessedInstalls   []string `plist:"processed_installs" yaml:"processed_installs"`
	ProcessedUninstalls []string `plist:"processed_uninstalls" yaml:"processed_uninstalls"`
	FeaturedItems       []string `plist:"featured_items,omitempty" yaml:"featured_items,omitempty"`

	ProblemItems []PlannedInstall `plist:"problem_items" yaml:"problem_items"`
}

// New returns an empty plan.
func New() *Plan {
	return &Plan{}
}

// HasProcessedInstall reports whether the exact reference has been
// processed for install.
func (p *Plan) HasProcessedInstall(ref string) bool {
	return containsString(p.ProcessedInstalls, ref)
}

// HasProcessedInstallName reports whether any processed install matches
// the bare name (version qualifiers stripped).
func (p *Plan) HasProcessedInstallName(name string) bool {
	for _, ref := range p.ProcessedInstalls {
		if n, _ := catalog.SplitNameAndVersion(ref); n == name {
			return true
		}
	}
	return false
}

// MarkInstallProcessed records the reference, once.
func (p *Plan) MarkInstallProcessed(ref string) {
	if !containsString(p.ProcessedInstalls, ref) {
		p.ProcessedInstalls = append(p.ProcessedInstalls, ref)
	}
}

// HasProcessedUninstall reports whether the bare name has been processed
// for removal.
func (p *Plan) HasProcessedUninstall(name string) bool {
	return containsString(p.ProcessedUninstalls, name)
}

// MarkUninstallProcessed records the name, once.
func (p *Plan) MarkUninstallProcessed(name string) {
	if !containsString(p.ProcessedUninstalls, name) {
		p.ProcessedUninstalls = append(p.ProcessedUninstalls, name)
	}
}

// HasManagedUpdate reports whether the name is already tracked as a
// managed update.
func (p *Plan) HasManagedUpdate(name string) bool {
	return containsString(p.ManagedUpdates, name)
}

// MarkManagedUpdate records the name, once.
func (p *Plan) MarkManagedUpdate(name string) {
	if !containsString(p.ManagedUpdates, name) {
		p.ManagedUpdates = append(p.ManagedUpdates, name)
	}
}

// HasOptionalInstall reports whether any version of name is already a
// candidate.
func (p *Plan) HasOptionalInstall(name string) bool {
	for i := range p.OptionalInstalls {
		if p.OptionalInstalls[i].Name == name {
			return true
		}
	}
	return false
}

// SatisfiedInstall reports whether an entry for name already in
// managed_installs satisfies the given version: either installed at the
// same or a higher version, or scheduled to install one.
func (p *Plan) SatisfiedInstall(name, vers string) bool {
	for i := range p.ManagedInstalls {
		entry := &p.ManagedInstalls[i]
		if entry.Name != name {
			continue
		}
		if vers == "" {
			return true
		}
		if entry.Installed && entry.InstalledVersion != "" &&
			version.Compare(entry.InstalledVersion, vers) != version.Lower {
			return true
		}
		if entry.VersionToInstall != "" &&
			version.Compare(entry.VersionToInstall, vers) != version.Lower {
			return true
		}
	}
	return false
}

// InRemovals reports whether name is scheduled for an actual removal.
func (p *Plan) InRemovals(name string) bool {
	for i := range p.Removals {
		if p.Removals[i].Name == name && p.Removals[i].Installed {
			return true
		}
	}
	return false
}

// ActionableInstalls returns the managed_installs entries with a staged
// installer payload.
func (p *Plan) ActionableInstalls() []PlannedInstall {
	var out []PlannedInstall
	for _, entry := range p.ManagedInstalls {
		if entry.InstallerItem != "" {
			out = append(out, entry)
		}
	}
	return out
}

// ActionableRemovals returns the removals entries with installation
// evidence.
func (p *Plan) ActionableRemovals() []PlannedRemoval {
	var out []PlannedRemoval
	for _, entry := range p.Removals {
		if entry.Installed {
			out = append(out, entry)
		}
	}
	return out
}

// Problems returns entries that need an install but have no staged
// payload, whether or not Finalize has separated them yet.
func (p *Plan) Problems() []PlannedInstall {
	out := append([]PlannedInstall(nil), p.ProblemItems...)
	for _, entry := range p.ManagedInstalls {
		if !entry.Installed && entry.InstallerItem == "" {
			out = append(out, entry)
		}
	}
	return out
}

// Finalize moves unresolved entries out of managed_installs into
// problem_items so consumers see only actionable or satisfied entries.
// Called once at the end of a planning pass.
func (p *Plan) Finalize() {
	kept := p.ManagedInstalls[:0]
	for _, entry := range p.ManagedInstalls {
		if !entry.Installed && entry.InstallerItem == "" {
			p.ProblemItems = append(p.ProblemItems, entry)
			continue
		}
		kept = append(kept, entry)
	}
	p.ManagedInstalls = kept
}

// RequiresRestart reports whether any scheduled install or removal
// carries a restart action.
func (p *Plan) RequiresRestart() bool {
	for _, entry := range p.ActionableInstalls() {
		if restarts(entry.RestartAction) {
			return true
		}
	}
	for _, entry := range p.ActionableRemovals() {
		if restarts(entry.RestartAction) {
			return true
		}
	}
	return false
}

func restarts(action catalog.RestartAction) bool {
	return action != "" && action != catalog.RestartNone
}

// NothingToDo reports an empty, error-free outcome: no installs, no
// removals, no problems.
func (p *Plan) NothingToDo() bool {
	return len(p.ActionableInstalls()) == 0 &&
		len(p.ActionableRemovals()) == 0 &&
		len(p.Problems()) == 0
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
