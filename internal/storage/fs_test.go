package storage

import (
	"os"
	"path/filepath"
	"testing"
)

func newTestFS(t *testing.T) (*FS, string) {
	t.Helper()
	dir := t.TempDir()
	fs, err := NewFS(dir)
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return fs, dir
}

func TestWriteReadRoundTrip(t *testing.T) {
	fs, _ := newTestFS(t)

	content := []byte("managed_installs: [Widget]\n")
	if err := fs.Write("manifests/site_default", content); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := fs.Read("manifests/site_default")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != string(content) {
		t.Errorf("Read = %q, want %q", got, content)
	}
	if !fs.Exists("manifests/site_default") {
		t.Error("Exists = false after write")
	}
}

func TestWriteIsAtomic(t *testing.T) {
	fs, dir := newTestFS(t)

	if err := fs.Write("InstallInfo.plist", []byte("v1")); err != nil {
		t.Fatal(err)
	}
	if err := fs.Write("InstallInfo.plist", []byte("v2")); err != nil {
		t.Fatal(err)
	}
	got, _ := fs.Read("InstallInfo.plist")
	if string(got) != "v2" {
		t.Errorf("Read = %q, want v2", got)
	}

	// no temp files survive
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if filepath.Ext(e.Name()) == "" && len(e.Name()) > 10 && e.Name()[0] == '.' {
			t.Errorf("leftover temp file %s", e.Name())
		}
	}
}

func TestPathEscapeRejected(t *testing.T) {
	fs, _ := newTestFS(t)

	for _, p := range []string{"../outside", "a/../../outside", "/etc/passwd"} {
		if err := fs.Write(p, []byte("x")); err == nil {
			t.Errorf("Write(%q) accepted an escaping path", p)
		}
		if _, err := fs.Read(p); err == nil {
			t.Errorf("Read(%q) accepted an escaping path", p)
		}
	}
}

func TestListSkipsTempFiles(t *testing.T) {
	fs, dir := newTestFS(t)

	if err := fs.Write("catalogs/production", []byte("items: []\n")); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "catalogs", ".raido-tmp-123"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	files, err := fs.List("catalogs")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(files) != 1 || files[0] != filepath.Join("catalogs", "production") {
		t.Errorf("List = %v", files)
	}
}

func TestDelete(t *testing.T) {
	fs, _ := newTestFS(t)
	if err := fs.Write("cache/old.pkg", []byte("x")); err != nil {
		t.Fatal(err)
	}
	if err := fs.Delete("cache/old.pkg"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if fs.Exists("cache/old.pkg") {
		t.Error("file still exists after delete")
	}
}
