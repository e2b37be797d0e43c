// Package planner turns the manifest hierarchy into a concrete install
// and removal plan.
//
// One planning pass walks the primary manifest top-down, resolving each
// declared item against the catalog index and the local inventory, and
// accumulates everything into a single plan. The pass is deliberately
// sequential: determinism and cycle safety matter more than throughput
// here, and catalog sizes never warrant parallel resolution. The planner
// decides what to do; it never installs anything itself.
package planner

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/starford/raido/internal/apperr"
	"github.com/starford/raido/internal/catalog"
	"github.com/starford/raido/internal/download"
	"github.com/starford/raido/internal/inventory"
	"github.com/starford/raido/internal/licensing"
	"github.com/starford/raido/internal/manifest"
	"github.com/starford/raido/internal/plan"
	"github.com/starford/raido/internal/status"
	"github.com/starford/raido/internal/storage"
)

// maxManifestDepth bounds included-manifest nesting. The walk also skips
// manifests already on the current include path, so this only guards
// against pathological trees.
const maxManifestDepth = 64

// maxResolveDepth bounds requires/update-chain recursion. Normal cycles
// resolve to "already processed" well before this.
const maxResolveDepth = 128

// Config wires a Planner. All fields except Sink, LicenseURL and
// SelfServePath are required.
type Config struct {
	Index     *catalog.Index
	Manifests *manifest.Loader
	State     *inventory.Evaluator
	Inventory *inventory.DB
	Stager    download.Stager
	Store     storage.Provider
	Stop      *status.StopFlag
	Sink      status.Sink
	Logger    *slog.Logger
	Facts     manifest.Facts

	// AvailableKB is the disk-space probe result for the managed volume.
	AvailableKB int64
	// LicenseURL enables the seat lookup for optional installs when set.
	LicenseURL string
	// SeatFetcher performs the seat lookup; required when LicenseURL is set.
	SeatFetcher licensing.DataFetcher
	// SelfServePath is the user-writable self-serve choices file; empty
	// disables the self-serve pass.
	SelfServePath string
}

// Planner runs planning passes. One pass at a time; the accumulator it
// builds is owned exclusively by that pass.
type Planner struct {
	index     *catalog.Index
	manifests *manifest.Loader
	state     *inventory.Evaluator
	db        *inventory.DB
	stager    download.Stager
	store     storage.Provider
	stop      *status.StopFlag
	sink      status.Sink
	logger    *slog.Logger
	facts     manifest.Facts

	availableKB   int64
	licenseURL    string
	seatFetcher   licensing.DataFetcher
	selfServePath string

	// defaultInstalls collects default_installs names seen during the
	// optional walk; consumed by the self-serve pass. Reset each run.
	defaultInstalls []string
}

// New returns a Planner.
func New(cfg Config) *Planner {
	if cfg.Stop == nil {
		cfg.Stop = &status.StopFlag{}
	}
	if cfg.Facts == nil {
		cfg.Facts = manifest.GatherFacts()
	}
	return &Planner{
		index:         cfg.Index,
		manifests:     cfg.Manifests,
		state:         cfg.State,
		db:            cfg.Inventory,
		stager:        cfg.Stager,
		store:         cfg.Store,
		stop:          cfg.Stop,
		sink:          cfg.Sink,
		logger:        cfg.Logger,
		facts:         cfg.Facts,
		availableKB:   cfg.AvailableKB,
		licenseURL:    cfg.LicenseURL,
		seatFetcher:   cfg.SeatFetcher,
		selfServePath: cfg.SelfServePath,
	}
}

// listKey selects which manifest list a walk processes.
type listKey int

const (
	keyInstalls listKey = iota
	keyUninstalls
	keyUpdates
	keyOptional
)

func (k listKey) String() string {
	switch k {
	case keyInstalls:
		return "managed_installs"
	case keyUninstalls:
		return "managed_uninstalls"
	case keyUpdates:
		return "managed_updates"
	case keyOptional:
		return "optional_installs"
	}
	return "unknown"
}

// Run executes one full planning pass and returns the accumulated plan.
// The only fatal errors are failure to obtain the primary manifest
// (plan is nil) and a stop request (partial plan returned alongside
// apperr.ErrStopRequested; everything already appended remains valid).
func (pl *Planner) Run(ctx context.Context, clientID string) (*plan.Plan, error) {
	primary, primaryName, err := pl.manifests.Primary(ctx, clientID)
	if err != nil {
		return nil, err
	}
	pl.defaultInstalls = nil

	p := plan.New()
	pl.publish("Checking for available updates", "", -1)

	for _, key := range []listKey{keyInstalls, keyUninstalls} {
		if err := pl.walk(ctx, primaryName, primary, key, nil, nil, p); err != nil {
			return p, err
		}
	}
	if err := pl.autoRemovalPass(ctx, primary.Catalogs, p); err != nil {
		return p, err
	}
	if err := pl.walk(ctx, primaryName, primary, keyUpdates, nil, nil, p); err != nil {
		return p, err
	}

	pl.publish("Checking for optional software", "", -1)
	if err := pl.walk(ctx, primaryName, primary, keyOptional, nil, nil, p); err != nil {
		return p, err
	}
	if err := pl.selfServePass(ctx, primary.Catalogs, p); err != nil {
		return p, err
	}
	if pl.licenseURL != "" && pl.seatFetcher != nil {
		licensing.UpdateAvailableSeats(ctx, pl.seatFetcher, pl.licenseURL, p, pl.logger)
	}

	return p, nil
}

// Check runs one planning pass and persists the result. On an aborted
// pass (primary manifest failure or stop request) the previously
// persisted plan is returned unchanged alongside the error.
func (pl *Planner) Check(ctx context.Context, store *plan.Store, clientID string) (*plan.Plan, error) {
	p, err := pl.Run(ctx, clientID)
	if err != nil {
		prev, readErr := store.Read()
		if readErr != nil {
			pl.logger.Warn("stale plan unavailable", slog.String("error", readErr.Error()))
		}
		if prev != nil {
			pl.logger.Warn("planning aborted, keeping previous plan",
				slog.String("error", err.Error()))
			return prev, err
		}
		return nil, err
	}

	p.Finalize()
	if err := store.Write(p); err != nil {
		return p, err
	}

	installs := len(p.ActionableInstalls())
	removals := len(p.ActionableRemovals())
	problems := len(p.Problems())
	switch {
	case installs == 0 && removals == 0 && problems == 0:
		pl.publish("Nothing to do", "", 100)
	default:
		if pl.sink != nil {
			pl.sink.Publish(status.Event{
				Message:         "Planning complete",
				Detail:          fmt.Sprintf("%d to install, %d to remove, %d problems", installs, removals, problems),
				Percent:         100,
				RestartRequired: p.RequiresRestart(),
			})
		}
	}
	return p, nil
}

// walk processes one manifest list for one manifest, depth-first.
// Included manifests go first, true conditional fragments next, the
// manifest's own list last, so nested declarations get first claim on
// the processed markers. path carries the current include chain for
// cycle detection.
func (pl *Planner) walk(ctx context.Context, name string, m *manifest.Manifest, key listKey, parentCatalogs, path []string, p *plan.Plan) error {
	if pl.stop.Requested() {
		return apperr.ErrStopRequested
	}
	if len(path) >= maxManifestDepth {
		pl.logger.Warn("manifest nesting too deep, pruning",
			slog.String("manifest", name), slog.Int("depth", len(path)))
		return nil
	}

	cataloglist := m.Catalogs
	if len(cataloglist) == 0 {
		cataloglist = parentCatalogs
	}
	if len(cataloglist) == 0 {
		pl.logger.Warn("manifest has no catalogs", slog.String("manifest", name))
		return nil
	}
	pl.index.Load(ctx, cataloglist)

	path = append(path, name)
	for _, included := range m.IncludedManifests {
		if pl.stop.Requested() {
			return apperr.ErrStopRequested
		}
		if containsString(path, included) {
			pl.logger.Debug("manifest include cycle, skipping",
				slog.String("manifest", included))
			continue
		}
		child, err := pl.manifests.Get(ctx, included)
		if err != nil {
			// fatal for this subtree only
			pl.logger.Warn("nested manifest unavailable",
				slog.String("manifest", included), slog.String("error", err.Error()))
			continue
		}
		if err := pl.walk(ctx, included, child, key, cataloglist, path, p); err != nil {
			return err
		}
	}

	for _, frag := range manifest.EvaluateConditionals(m, pl.facts, cataloglist, pl.logger) {
		if err := pl.walk(ctx, name, frag, key, cataloglist, path, p); err != nil {
			return err
		}
	}

	var refs []string
	switch key {
	case keyInstalls:
		refs = m.ManagedInstalls
	case keyUninstalls:
		refs = m.ManagedUninstalls
	case keyUpdates:
		refs = m.ManagedUpdates
	case keyOptional:
		refs = m.OptionalInstalls
	}
	for _, ref := range refs {
		if pl.stop.Requested() {
			return apperr.ErrStopRequested
		}
		switch key {
		case keyInstalls:
			pl.resolveInstall(ctx, ref, cataloglist, p, installContext{})
		case keyUninstalls:
			pl.resolveRemoval(ctx, ref, cataloglist, p, 0)
		case keyUpdates:
			pl.resolveManagedUpdate(ctx, ref, cataloglist, p)
		case keyOptional:
			pl.resolveOptional(ref, cataloglist, p)
		}
	}

	if key == keyOptional {
		for _, n := range m.DefaultInstalls {
			if !containsString(pl.defaultInstalls, n) {
				pl.defaultInstalls = append(pl.defaultInstalls, n)
			}
		}
		for _, n := range m.FeaturedItems {
			if !containsString(p.FeaturedItems, n) {
				p.FeaturedItems = append(p.FeaturedItems, n)
			}
		}
	}
	return nil
}

// autoRemovalPass removes items flagged autoremove that no manifest in
// this run claimed for install or removal (implicit opt-out).
func (pl *Planner) autoRemovalPass(ctx context.Context, cataloglist []string, p *plan.Plan) error {
	for _, name := range pl.index.AutoRemovalNames(cataloglist) {
		if pl.stop.Requested() {
			return apperr.ErrStopRequested
		}
		if p.HasProcessedInstallName(name) || p.HasProcessedUninstall(name) {
			continue
		}
		pl.logger.Info("auto-removal candidate", slog.String("item", name))
		pl.resolveRemoval(ctx, name, cataloglist, p, 0)
	}
	return nil
}

func (pl *Planner) publish(message, detail string, percent float64) {
	if pl.sink == nil {
		return
	}
	pl.sink.Publish(status.Event{Message: message, Detail: detail, Percent: percent})
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// readUserFile reads the user-writable self-serve choices file; absence
// is not an error.
func readUserFile(path string) ([]byte, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}
	return data, true
}
