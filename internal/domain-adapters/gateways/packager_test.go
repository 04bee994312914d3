package gateways

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestPackager_BundleDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	outDir := filepath.Join(tmpDir, "distcheck-out")
	if err := os.MkdirAll(filepath.Join(outDir, "logs"), 0750); err != nil {
		t.Fatal(err)
	}
	files := map[string]string{
		"report.json":          `{"exit_code":0}`,
		"report.txt":           "PASS\n",
		"logs/build.check.log": "--- stdout ---\n",
	}
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(outDir, filepath.FromSlash(name)), []byte(body), 0600); err != nil {
			t.Fatal(err)
		}
	}

	bundle := filepath.Join(tmpDir, "distcheck-out.tar.gz")
	if err := NewPackager(nil).BundleDirectory(context.Background(), outDir, bundle); err != nil {
		t.Fatalf("BundleDirectory() error = %v", err)
	}
	if _, err := os.Stat(bundle + ".tmp"); !os.IsNotExist(err) {
		t.Error("temporary bundle file left behind")
	}

	dest := t.TempDir()
	if err := NewArchiveExtractor(nil).Extract(context.Background(), bundle, dest); err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	for name, body := range files {
		data, err := os.ReadFile(filepath.Join(dest, "distcheck-out", filepath.FromSlash(name)))
		if err != nil {
			t.Errorf("%s missing from bundle: %v", name, err)
			continue
		}
		if string(data) != body {
			t.Errorf("%s = %q, want %q", name, data, body)
		}
	}
}

func TestPackager_BundleMissingDirectory(t *testing.T) {
	bundle := filepath.Join(t.TempDir(), "out.tar.gz")
	if err := NewPackager(nil).BundleDirectory(context.Background(), "/nonexistent/out", bundle); err == nil {
		t.Fatal("BundleDirectory() should fail for a missing directory")
	}
	if _, err := os.Stat(bundle); !os.IsNotExist(err) {
		t.Error("failed bundle should not leave an archive behind")
	}
}
