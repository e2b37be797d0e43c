// Package download stages installer payloads for items the planner
// accepts. The planner records the scheduling outcome; it never performs
// transfers itself.
package download

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/starford/raido/internal/catalog"
	"github.com/starford/raido/internal/plan"
)

// Result reports one staging attempt.
type Result struct {
	// InstallerItem is the cache-relative path of the staged payload.
	InstallerItem    string
	BytesTransferred int64
	Duration         time.Duration
	// KBPerSec is 0 for cache hits and tiny payloads.
	KBPerSec int64
}

// Stager downloads and stages one item's payload.
type Stager interface {
	DownloadAndStage(ctx context.Context, item *catalog.Item, uninstalling bool) (Result, error)
}

// PayloadFetcher is the slice of the transport the stager needs.
type PayloadFetcher interface {
	FetchPayload(ctx context.Context, location, expectedHash string) (string, int64, error)
}

// CacheStager implements Stager on top of the transport's payload cache.
type CacheStager struct {
	fetcher PayloadFetcher
	logger  *slog.Logger
}

// NewCacheStager returns a CacheStager.
func NewCacheStager(fetcher PayloadFetcher, logger *slog.Logger) *CacheStager {
	return &CacheStager{fetcher: fetcher, logger: logger}
}

// DownloadAndStage fetches the item's (un)installer payload into the
// cache, verifying its hash. Verification and transfer failures are
// returned for the planner to record per-item.
func (s *CacheStager) DownloadAndStage(ctx context.Context, item *catalog.Item, uninstalling bool) (Result, error) {
	location := item.InstallerLocation
	if uninstalling && item.UninstallerLocation != "" {
		location = item.UninstallerLocation
	}
	if location == "" {
		return Result{}, fmt.Errorf("download: %s-%s: no installer location", item.Name, item.Version)
	}

	start := time.Now()
	cachePath, transferred, err := s.fetcher.FetchPayload(ctx, location, item.InstallerHash)
	if err != nil {
		return Result{}, fmt.Errorf("download: %s-%s: %w", item.Name, item.Version, err)
	}
	elapsed := time.Since(start)

	res := Result{
		InstallerItem:    cachePath,
		BytesTransferred: transferred,
		Duration:         elapsed,
	}
	// Transfers under 1MB skew the speed figure; report 0 for those and
	// for cache hits.
	if transferred >= 1024*1024 && elapsed.Seconds() >= 1 {
		res.KBPerSec = transferred / 1024 / int64(elapsed.Seconds())
	}
	if transferred > 0 {
		s.logger.Debug("payload staged",
			slog.String("item", item.Name),
			slog.Int64("bytes", transferred),
			slog.Int64("kb_per_sec", res.KBPerSec))
	}
	return res, nil
}

// diskFudgeKB is headroom added to every disk-space estimate (100MB).
const diskFudgeKB = 102400

// EnoughDiskSpace estimates whether the machine can download and install
// the item given everything already accepted into the plan. availableKB
// comes from the platform probe; pass uninstalling to size the
// uninstaller payload instead.
func EnoughDiskSpace(item *catalog.Item, accepted []plan.PlannedInstall, availableKB int64, uninstalling bool) bool {
	installerKB := item.InstallerSize
	installedKB := item.InstalledSize
	if installedKB == 0 {
		installedKB = installerKB
	}
	if uninstalling {
		installedKB = 0
	}
	neededKB := installerKB + installedKB + diskFudgeKB

	for _, entry := range accepted {
		if entry.InstallerItem != "" {
			availableKB -= entry.InstalledSize
		}
	}
	return availableKB > neededKB
}
