package download

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/starford/raido/internal/catalog"
	"github.com/starford/raido/internal/plan"
)

type fakeFetcher struct {
	fetched []string
	fail    bool
}

func (f *fakeFetcher) FetchPayload(_ context.Context, location, _ string) (string, int64, error) {
	f.fetched = append(f.fetched, location)
	if f.fail {
		return "", 0, fmt.Errorf("transport: %s: connection reset", location)
	}
	return "cache/" + location, 2048, nil
}

func testStager(fail bool) (*CacheStager, *fakeFetcher) {
	f := &fakeFetcher{fail: fail}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewCacheStager(f, logger), f
}

func TestDownloadAndStage(t *testing.T) {
	s, f := testStager(false)
	item := &catalog.Item{
		Name:              "Widget",
		Version:           "1.0",
		InstallerLocation: "apps/widget-1.0.pkg",
	}

	res, err := s.DownloadAndStage(context.Background(), item, false)
	if err != nil {
		t.Fatalf("DownloadAndStage: %v", err)
	}
	if res.InstallerItem != "cache/apps/widget-1.0.pkg" || res.BytesTransferred != 2048 {
		t.Errorf("result = %+v", res)
	}
	if len(f.fetched) != 1 || f.fetched[0] != "apps/widget-1.0.pkg" {
		t.Errorf("fetched = %v", f.fetched)
	}
}

func TestDownloadAndStageUninstaller(t *testing.T) {
	s, f := testStager(false)
	item := &catalog.Item{
		Name:                "Widget",
		Version:             "1.0",
		InstallerLocation:   "apps/widget-1.0.pkg",
		UninstallerLocation: "apps/widget-1.0-uninstall.pkg",
	}

	if _, err := s.DownloadAndStage(context.Background(), item, true); err != nil {
		t.Fatalf("DownloadAndStage: %v", err)
	}
	if f.fetched[0] != "apps/widget-1.0-uninstall.pkg" {
		t.Errorf("fetched = %v, want uninstaller location", f.fetched)
	}
}

func TestDownloadAndStageNoLocation(t *testing.T) {
	s, _ := testStager(false)
	item := &catalog.Item{Name: "Widget", Version: "1.0"}

	if _, err := s.DownloadAndStage(context.Background(), item, false); err == nil {
		t.Fatal("want error for missing installer location")
	}
}

func TestEnoughDiskSpace(t *testing.T) {
	item := &catalog.Item{
		Name:          "Big",
		Version:       "1.0",
		InstallerSize: 1024,
		InstalledSize: 4096,
	}

	tests := []struct {
		name        string
		availableKB int64
		accepted    []plan.PlannedInstall
		want        bool
	}{
		{"plenty", 1 << 30, nil, true},
		{"just under need plus fudge", 1024 + 4096 + diskFudgeKB, nil, false},
		{"accepted installs count against space", 1 << 20,
			[]plan.PlannedInstall{{InstallerItem: "cache/x.pkg", InstalledSize: 1 << 20}}, false},
		{"satisfied entries do not", 1 << 20,
			[]plan.PlannedInstall{{Installed: true, InstalledSize: 1 << 20}}, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := EnoughDiskSpace(item, tc.accepted, tc.availableKB, false); got != tc.want {
				t.Errorf("EnoughDiskSpace = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestEnoughDiskSpaceUninstalling(t *testing.T) {
	item := &catalog.Item{
		Name:          "Big",
		Version:       "1.0",
		InstallerSize: 1024,
		InstalledSize: 1 << 30,
	}
	// uninstalls only need the payload, not the installed footprint
	if !EnoughDiskSpace(item, nil, 1024+diskFudgeKB+1, true) {
		t.Error("uninstall estimate should ignore installed size")
	}
}
