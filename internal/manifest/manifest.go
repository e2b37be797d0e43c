// Package manifest loads and models the hierarchical manifest documents
// that declare what a machine should install, remove, or offer.
package manifest

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Manifest is one declarative manifest document. Manifests form a graph
// via IncludedManifests; nothing here assumes that graph is acyclic.
type Manifest struct {
	// Catalogs, when non-empty, replaces the inherited catalog list for
	// this manifest's subtree.
	Catalogs          []string          `yaml:"catalogs,omitempty"`
	IncludedManifests []string          `yaml:"included_manifests,omitempty"`
	ConditionalItems  []ConditionalItem `yaml:"conditional_items,omitempty"`

	ManagedInstalls   []string `yaml:"managed_installs,omitempty"`
	ManagedUninstalls []string `yaml:"managed_uninstalls,omitempty"`
	ManagedUpdates    []string `yaml:"managed_updates,omitempty"`
	OptionalInstalls  []string `yaml:"optional_installs,omitempty"`
	// DefaultInstalls seed the machine's self-serve choices: each name is
	// added to the self-serve install list the first time it is seen.
	DefaultInstalls []string `yaml:"default_installs,omitempty"`
	FeaturedItems   []string `yaml:"featured_items,omitempty"`
}

// ConditionalItem is a predicate-gated manifest fragment. The fragment's
// lists are honoured only when the condition evaluates true against the
// machine facts.
type ConditionalItem struct {
	Condition string   `yaml:"condition"`
	Manifest  Manifest `yaml:",inline"`
}

// Decode parses manifest bytes.
func Decode(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("manifest: decode: %w", err)
	}
	return &m, nil
}
