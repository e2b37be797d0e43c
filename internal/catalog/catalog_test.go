package catalog

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/starford/raido/internal/apperr"
)

func TestSplitNameAndVersion(t *testing.T) {
	tests := []struct {
		ref  string
		name string
		vers string
	}{
		{"Firefox", "Firefox", ""},
		{"Firefox-100.0", "Firefox", "100.0"},
		{"TextWrangler-2.3b1", "TextWrangler", "2.3b1"},
		{"AdobePhotoshop--11.2.1", "AdobePhotoshop", "11.2.1"},
		{"Mozilla-Certs", "Mozilla-Certs", ""},
		{"Mozilla-Certs-1.0", "Mozilla-Certs", "1.0"},
		{"check-in-tool", "check-in-tool", ""},
	}
	for _, tc := range tests {
		name, vers := SplitNameAndVersion(tc.ref)
		if name != tc.name || vers != tc.vers {
			t.Errorf("SplitNameAndVersion(%q) = (%q, %q), want (%q, %q)",
				tc.ref, name, vers, tc.name, tc.vers)
		}
	}
}

// memSource is a catalog.Source over a map.
type memSource map[string][]byte

func (s memSource) FetchCatalog(_ context.Context, name string) ([]byte, error) {
	if data, ok := s[name]; ok {
		return data, nil
	}
	return nil, fmt.Errorf("catalog %s: %w", name, apperr.ErrNotFound)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testIndex(t *testing.T, source memSource, names ...string) *Index {
	t.Helper()
	x := NewIndex(source, testLogger())
	x.Load(context.Background(), names)
	return x
}

func TestLookupPrecedenceAndVersions(t *testing.T) {
	source := memSource{
		"testing": []byte(`
items:
  - name: Widget
    version: "3.0"
`),
		"production": []byte(`
items:
  - name: Widget
    version: "2.0"
  - name: Widget
    version: "1.0"
`),
	}
	x := testIndex(t, source, "testing", "production")

	// bare name resolves to the highest version in the first catalog
	// declaring it
	item, ok := x.Lookup("Widget", "", []string{"testing", "production"})
	if !ok || item.Version != "3.0" {
		t.Fatalf("Lookup(Widget) = %+v, want testing's 3.0", item)
	}

	// earlier catalogs win even when a later one has a newer version
	item, ok = x.Lookup("Widget", "", []string{"production", "testing"})
	if !ok || item.Version != "2.0" {
		t.Fatalf("Lookup(Widget) = %+v, want production's 2.0", item)
	}

	// exact version reaches past the first catalog
	item, ok = x.Lookup("Widget-1.0", "", []string{"testing", "production"})
	if !ok || item.Version != "1.0" {
		t.Fatalf("Lookup(Widget-1.0) = %+v, want 1.0", item)
	}

	if _, ok := x.Lookup("Widget-9.9", "", []string{"testing", "production"}); ok {
		t.Error("Lookup(Widget-9.9) found something")
	}
}

func TestLookupTrimsTrailingZeros(t *testing.T) {
	source := memSource{
		"production": []byte(`
items:
  - name: Widget
    version: "2.0.0"
`),
	}
	x := testIndex(t, source, "production")

	if _, ok := x.Lookup("Widget-2.0", "", []string{"production"}); !ok {
		t.Error("Widget-2.0 should match the 2.0.0 item")
	}
}

func TestUnknownCatalogDegrades(t *testing.T) {
	x := testIndex(t, memSource{}, "missing")
	if !x.Loaded("missing") {
		t.Fatal("missing catalog should load as empty")
	}
	if _, ok := x.Lookup("Anything", "", []string{"missing"}); ok {
		t.Error("empty catalog resolved an item")
	}
}

func TestVariantsNewestFirst(t *testing.T) {
	source := memSource{
		"a": []byte(`
items:
  - name: Widget
    version: "1.0"
  - name: Widget
    version: "10.0"
`),
		"b": []byte(`
items:
  - name: Widget
    version: "2.0"
  - name: Widget
    version: "1.0"
`),
	}
	x := testIndex(t, source, "a", "b")

	variants := x.Variants("Widget", []string{"a", "b"})
	if len(variants) != 3 {
		t.Fatalf("len(variants) = %d, want 3 after dedupe", len(variants))
	}
	want := []string{"10.0", "2.0", "1.0"}
	for i, v := range variants {
		if v.Version != want[i] {
			t.Errorf("variants[%d].Version = %s, want %s", i, v.Version, want[i])
		}
	}
}

func TestUpdatesFor(t *testing.T) {
	source := memSource{
		"production": []byte(`
items:
  - name: BaseApp
    version: "2.0"
  - name: SecurityPatch
    version: "2.1"
    update_for: [BaseApp]
  - name: LegacyFix
    version: "1.5"
    update_for: [BaseApp-1.0]
`),
	}
	x := testIndex(t, source, "production")
	cl := []string{"production"}

	if got := x.UpdatesFor("BaseApp", cl); len(got) != 1 || got[0] != "SecurityPatch" {
		t.Errorf("UpdatesFor(BaseApp) = %v", got)
	}
	if got := x.UpdatesForVersion("BaseApp", "1.0", cl); len(got) != 1 || got[0] != "LegacyFix" {
		t.Errorf("UpdatesForVersion(BaseApp, 1.0) = %v", got)
	}
	if got := x.UpdatesForVersion("BaseApp", "2.0", cl); len(got) != 0 {
		t.Errorf("UpdatesForVersion(BaseApp, 2.0) = %v, want none", got)
	}
}

func TestDecodeRejectsInvalidItems(t *testing.T) {
	source := memSource{
		"production": []byte(`
items:
  - name: Good
    version: "1.0"
  - name: NoVersion
  - name: BadRestart
    version: "1.0"
    restart_action: Reboot
`),
	}
	x := testIndex(t, source, "production")

	if _, ok := x.Lookup("Good", "", []string{"production"}); !ok {
		t.Error("valid item dropped")
	}
	if _, ok := x.Lookup("NoVersion", "", []string{"production"}); ok {
		t.Error("item without version survived validation")
	}
	if _, ok := x.Lookup("BadRestart", "", []string{"production"}); ok {
		t.Error("item with unknown restart_action survived validation")
	}
}

func TestRestartAndAppleClassification(t *testing.T) {
	item := &Item{Name: "X", Version: "1"}
	if item.Restart() != RestartNone {
		t.Errorf("Restart() = %s, want None default", item.Restart())
	}
	item.Receipts = []Receipt{{PackageID: "com.apple.pkg.Safari", Version: "1"}}
	if !item.IsAppleItem() {
		t.Error("com.apple. receipt should classify as vendor item")
	}
}
