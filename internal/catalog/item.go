// Package catalog models software catalogs and indexes them for resolution.
//
// A catalog is a named, ordered collection of item descriptions published by
// the repo. Items are immutable once loaded; identity is (name, version).
package catalog

import (
	"fmt"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"
)

// RestartAction describes what an item demands of the machine after
// installation or removal.
type RestartAction string

const (
	RestartNone      RestartAction = "None"
	RequireLogout    RestartAction = "RequireLogout"
	RecommendRestart RestartAction = "RecommendRestart"
	RequireRestart   RestartAction = "RequireRestart"
)

// Receipt identifies a low-level package recorded in the local inventory
// when an item is installed.
type Receipt struct {
	PackageID string `yaml:"package_id"`
	Version   string `yaml:"version"`
	// Optional receipts don't count against installation state.
	Optional bool `yaml:"optional,omitempty"`
}

// FileRef describes a file an item places on disk, used as installation
// evidence.
type FileRef struct {
	Path    string `yaml:"path"`
	Version string `yaml:"version,omitempty"`
	SHA256  string `yaml:"sha256,omitempty"`
}

// Item is one installable or removable software unit.
type Item struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	DisplayName string `yaml:"display_name,omitempty"`
	Description string `yaml:"description,omitempty"`

	// Requires lists hard install-order prerequisites. Entries may be
	// version-qualified ("Mozilla-Certs-1.0").
	Requires []string `yaml:"requires,omitempty"`
	// UpdateFor declares this item is a point-update layered on the
	// named base items (bare name or name-version).
	UpdateFor []string `yaml:"update_for,omitempty"`

	Receipts []Receipt `yaml:"receipts,omitempty"`
	Installs []FileRef `yaml:"installs,omitempty"`

	InstallerLocation   string `yaml:"installer_location,omitempty"`
	InstallerSize       int64  `yaml:"installer_size,omitempty"` // KBytes
	InstallerHash       string `yaml:"installer_hash,omitempty"`
	InstalledSize       int64  `yaml:"installed_size,omitempty"` // KBytes
	Uninstallable       bool   `yaml:"uninstallable,omitempty"`
	UninstallMethod     string `yaml:"uninstall_method,omitempty"`
	UninstallerLocation string `yaml:"uninstaller_location,omitempty"`

	UnattendedInstall   bool          `yaml:"unattended_install,omitempty"`
	UnattendedUninstall bool          `yaml:"unattended_uninstall,omitempty"`
	RestartAction       RestartAction `yaml:"restart_action,omitempty"`

	// AppleItem marks items whose install cycle must block vendor
	// software-update runs. Unset items are classified from receipts.
	AppleItem bool `yaml:"apple_item,omitempty"`
	// OnDemand items are never considered installed and always
	// reinstall when requested.
	OnDemand bool `yaml:"on_demand,omitempty"`
	// Autoremove items are removed automatically when no manifest
	// claims them any longer.
	Autoremove bool `yaml:"autoremove,omitempty"`

	ForceInstallAfterDate *time.Time `yaml:"force_install_after_date,omitempty"`

	LicensedSeatInfoAvailable bool `yaml:"licensed_seat_info_available,omitempty"`
}

// Validate enforces the minimum an item needs to be resolvable.
func (i *Item) Validate() error {
	return validation.ValidateStruct(i,
		validation.Field(&i.Name, validation.Required),
		validation.Field(&i.Version, validation.Required),
		validation.Field(&i.RestartAction, validation.In(
			RestartAction(""), RestartNone, RequireLogout,
			RecommendRestart, RequireRestart)),
	)
}

// Restart returns the item's restart action, defaulting to None.
func (i *Item) Restart() RestartAction {
	if i.RestartAction == "" {
		return RestartNone
	}
	return i.RestartAction
}

// IsAppleItem reports whether the item is explicitly marked as a vendor
// item or carries vendor package identifiers.
func (i *Item) IsAppleItem() bool {
	if i.AppleItem {
		return true
	}
	for _, r := range i.Receipts {
		if strings.HasPrefix(r.PackageID, "com.apple.") {
			return true
		}
	}
	return false
}

// decode parses catalog bytes into validated items. Items that fail
// validation are returned separately so callers can warn without dropping
// the whole catalog.
func decode(data []byte) (items []*Item, rejected []string, err error) {
	var doc struct {
		Items []*Item `yaml:"items"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, nil, fmt.Errorf("catalog: decode: %w", err)
	}
	for _, item := range doc.Items {
		if item == nil {
			continue
		}
		if verr := item.Validate(); verr != nil {
			rejected = append(rejected, fmt.Sprintf("%s-%s: %v", item.Name, item.Version, verr))
			continue
		}
		items = append(items, item)
	}
	return items, rejected, nil
}

// SplitNameAndVersion splits a manifest reference into name and version.
// Name and version must be separated with a hyphen or double hyphen and the
// version must start with a digit:
// "TextWrangler-2.3b1" → ("TextWrangler", "2.3b1"),
// "AdobePhotoshop--11.2.1" → ("AdobePhotoshop", "11.2.1").
func SplitNameAndVersion(ref string) (name, vers string) {
	for _, delim := range []string{"--", "-"} {
		if strings.Contains(ref, delim) {
			chunks := strings.Split(ref, delim)
			v := chunks[len(chunks)-1]
			n := strings.Join(chunks[:len(chunks)-1], delim)
			if v != "" && v[0] >= '0' && v[0] <= '9' {
				return n, v
			}
		}
	}
	return ref, ""
}
