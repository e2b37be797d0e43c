package plan

import (
	"io"
	"log/slog"
	"testing"

	"github.com/starford/raido/internal/catalog"
	"github.com/starford/raido/internal/storage"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	fs, err := storage.NewFS(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewStore(fs, logger)
}

func samplePlan() *Plan {
	p := New()
	p.ManagedInstalls = append(p.ManagedInstalls,
		PlannedInstall{
			Name:              "Firefox",
			VersionToInstall:  "100.0",
			InstallerItem:     "cache/Firefox-100.0.pkg",
			UnattendedInstall: true,
		},
		PlannedInstall{
			Name:             "Mozilla-Certs",
			Installed:        true,
			InstalledVersion: "1.0",
		},
	)
	p.Removals = append(p.Removals,
		PlannedRemoval{Name: "OldApp", Installed: false},
		PlannedRemoval{
			Name:             "Plugin",
			Installed:        true,
			InstalledVersion: "2.0",
			UninstallMethod:  "remove_packages",
			Packages:         []string{"com.example.plugin"},
		},
	)
	p.ProcessedInstalls = []string{"Firefox", "Mozilla-Certs-1.0"}
	p.ProcessedUninstalls = []string{"OldApp", "Plugin"}
	return p
}

func TestStoreRoundTrip(t *testing.T) {
	s := testStore(t)

	p := samplePlan()
	if err := s.Write(p); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got, err := s.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got == nil {
		t.Fatal("Read returned nil for a written plan")
	}
	if len(got.ManagedInstalls) != 2 || got.ManagedInstalls[0].Name != "Firefox" {
		t.Errorf("managed_installs = %+v", got.ManagedInstalls)
	}
	if got.ManagedInstalls[0].InstallerItem != "cache/Firefox-100.0.pkg" {
		t.Errorf("installer_item lost: %+v", got.ManagedInstalls[0])
	}
	if len(got.Removals) != 2 || !got.Removals[1].Installed {
		t.Errorf("removals = %+v", got.Removals)
	}
	if len(got.ProcessedUninstalls) != 2 {
		t.Errorf("processed_uninstalls = %v", got.ProcessedUninstalls)
	}
}

func TestStoreMissingDocument(t *testing.T) {
	s := testStore(t)
	p, err := s.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if p != nil {
		t.Fatalf("Read = %+v, want nil for missing document", p)
	}
}

func TestMarkersAreIdempotent(t *testing.T) {
	p := New()
	p.MarkInstallProcessed("Firefox")
	p.MarkInstallProcessed("Firefox")
	p.MarkUninstallProcessed("OldApp")
	p.MarkUninstallProcessed("OldApp")
	p.MarkManagedUpdate("Editor")
	p.MarkManagedUpdate("Editor")

	if len(p.ProcessedInstalls) != 1 || len(p.ProcessedUninstalls) != 1 || len(p.ManagedUpdates) != 1 {
		t.Errorf("markers duplicated: %+v", p)
	}
	if !p.HasProcessedInstallName("Firefox") {
		t.Error("bare-name lookup failed")
	}
	if !p.HasProcessedInstall("Firefox") || p.HasProcessedInstall("Chrome") {
		t.Error("exact lookup wrong")
	}
}

func TestSatisfiedInstall(t *testing.T) {
	p := New()
	p.ManagedInstalls = append(p.ManagedInstalls,
		PlannedInstall{Name: "Widget", VersionToInstall: "2.0"},
		PlannedInstall{Name: "Gadget", Installed: true, InstalledVersion: "3.0"},
	)

	tests := []struct {
		name string
		vers string
		want bool
	}{
		{"Widget", "", true},
		{"Widget", "1.0", true},
		{"Widget", "2.0", true},
		{"Widget", "3.0", false},
		{"Gadget", "3.0", true},
		{"Gadget", "4.0", false},
		{"Missing", "1.0", false},
	}
	for _, tc := range tests {
		if got := p.SatisfiedInstall(tc.name, tc.vers); got != tc.want {
			t.Errorf("SatisfiedInstall(%s, %s) = %v, want %v", tc.name, tc.vers, got, tc.want)
		}
	}
}

func TestRequiresRestart(t *testing.T) {
	p := New()
	p.ManagedInstalls = append(p.ManagedInstalls,
		PlannedInstall{Name: "Quiet", InstallerItem: "cache/quiet.pkg"},
	)
	p.Removals = append(p.Removals,
		PlannedRemoval{Name: "OldApp", Installed: false, RestartAction: catalog.RequireRestart},
	)
	if p.RequiresRestart() {
		t.Error("restart reported with no restart-action entries scheduled")
	}

	p.ManagedInstalls = append(p.ManagedInstalls,
		PlannedInstall{Name: "Kernel", InstallerItem: "cache/kernel.pkg", RestartAction: catalog.RequireRestart},
	)
	if !p.RequiresRestart() {
		t.Error("restart not reported for a scheduled restart-action install")
	}
}

func TestFinalizeSeparatesProblems(t *testing.T) {
	p := New()
	p.ManagedInstalls = append(p.ManagedInstalls,
		PlannedInstall{Name: "Good", InstallerItem: "cache/good.pkg"},
		PlannedInstall{Name: "Broken", Note: "download failed"},
		PlannedInstall{Name: "Done", Installed: true},
	)

	p.Finalize()

	if len(p.ManagedInstalls) != 2 {
		t.Fatalf("managed_installs = %+v, want problem entry moved", p.ManagedInstalls)
	}
	if len(p.ProblemItems) != 1 || p.ProblemItems[0].Name != "Broken" {
		t.Fatalf("problem_items = %+v", p.ProblemItems)
	}
	if probs := p.Problems(); len(probs) != 1 {
		t.Errorf("Problems() = %+v", probs)
	}
	if p.NothingToDo() {
		t.Error("NothingToDo with a problem item")
	}
}
