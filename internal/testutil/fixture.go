// Package testutil builds fixture distributions for tests.
package testutil

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/ochairo/distcheck/internal/domain/entities"
)

// Version is the product version every fixture reports
const Version = "1.2.0"

// ComponentVersion is the version every fixture component reports
const ComponentVersion = "1.0.0"

// RuntimeVersion is written to runtime/VERSION
const RuntimeVersion = "20.11.0"

// MainScript answers the invocations the default layout drives. "--sleep N" lets tests
// exercise timeouts.
const MainScript = `#!/bin/sh
case "$1" in
  --version) echo "app ` + Version + `"; exit 0 ;;
  --help) echo "usage: app [--version] [--help] [--print-env NAME] [FILE]"; exit 0 ;;
  --print-env) printenv "$2"; exit 0 ;;
  --sleep) exec sleep "$2" ;;
  -*) echo "app: unknown flag $1" >&2; exit 2 ;;
  "") exit 0 ;;
  *) if [ ! -f "$1" ]; then echo "app: $1: no such file" >&2; exit 1; fi; cat "$1" ;;
esac
`

const launcherScript = `#!/bin/sh
exec "$(dirname "$0")/app" "$@"
`

const readme = `# App

A fixture distribution.

## Installation

Unpack the archive.

## Usage

Run bin/app.
`

// tierComponents mirrors the built-in layout
var tierComponents = map[entities.Tier][]string{
	entities.TierMinimal:   nil,
	entities.TierEssential: {"formatter", "linter"},
	entities.TierComplete:  {"formatter", "language-server", "linter"},
	entities.TierFull:      {"debugger", "formatter", "language-server", "linter"},
}

// Package is a fixture distribution laid out per the built-in layout
type Package struct {
	t    testing.TB
	Root string
}

// NewPackage writes a complete, valid package for tier and arch into a temporary
// directory named name
func NewPackage(t testing.TB, name string, tier entities.Tier, arch entities.Architecture) *Package {
	t.Helper()
	p := &Package{t: t, Root: filepath.Join(t.TempDir(), name)}

	p.write("bin/app", MainScript, 0755)
	p.write("bin/app.sh", launcherScript, 0755)
	p.write("lib/app.jar", "library payload\n", 0644)
	p.write("runtime/VERSION", RuntimeVersion+"\n", 0644)
	p.write("runtime/bin/runtime", "#!/bin/sh\nexit 0\n", 0755)
	p.write("LICENSE", strings.Repeat("Permission is hereby granted, free of charge, to any person.\n", 24), 0644)
	p.write("README.md", readme, 0644)
	if tier.AtLeast(entities.TierComplete) {
		p.write("share/doc/CHANGELOG.md", "# Changelog\n\n## "+Version+"\n", 0644)
	}

	components := tierComponents[tier]
	for _, c := range components {
		p.AddComponent(c)
	}
	p.SetManifest(Manifest(tier, arch, components))
	p.Seal()
	return p
}

// Manifest renders a manifest.json body
func Manifest(tier entities.Tier, arch entities.Architecture, components []string) string {
	type component struct {
		Name    string `json:"name"`
		Version string `json:"version"`
	}
	m := struct {
		Name           string      `json:"name"`
		Version        string      `json:"version"`
		Tier           string      `json:"tier"`
		Architecture   string      `json:"architecture"`
		RuntimeVersion string      `json:"runtime_version"`
		Components     []component `json:"components"`
	}{
		Name:           "app",
		Version:        Version,
		Tier:           string(tier),
		Architecture:   string(arch),
		RuntimeVersion: RuntimeVersion,
		Components:     []component{},
	}
	for _, c := range components {
		m.Components = append(m.Components, component{Name: c, Version: ComponentVersion})
	}
	data, _ := json.MarshalIndent(m, "", "  ")
	return string(data) + "\n"
}

// AddComponent writes a component directory with everything the built-in layout expects
func (p *Package) AddComponent(name string) {
	dir := "components/" + name + "/"
	p.write(dir+"bin/"+name, "#!/bin/sh\necho \""+name+" "+ComponentVersion+"\"\n", 0755)
	p.write(dir+"lib/"+name+".jar", "component payload\n", 0644)
	p.write(dir+"config/defaults.json", "{}\n", 0644)
}

// SetManifest replaces manifest.json
func (p *Package) SetManifest(body string) {
	p.write("manifest.json", body, 0644)
}

// Set writes a file and refreshes the checksum list
func (p *Package) Set(rel, body string, mode os.FileMode) {
	p.write(rel, body, mode)
	p.Seal()
}

// Tamper writes a file without refreshing the checksum list
func (p *Package) Tamper(rel, body string) {
	p.write(rel, body, 0644)
}

// Remove deletes a path and refreshes the checksum list
func (p *Package) Remove(rel string) {
	p.t.Helper()
	if err := os.RemoveAll(p.Path(rel)); err != nil {
		p.t.Fatalf("failed to remove %s: %v", rel, err)
	}
	p.Seal()
}

// Path resolves a slash-separated path inside the package
func (p *Package) Path(rel string) string {
	return filepath.Join(p.Root, filepath.FromSlash(rel))
}

// Seal rewrites SHA256SUMS over every regular file in the package
func (p *Package) Seal() {
	p.t.Helper()
	var lines []string
	err := filepath.WalkDir(p.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.Type().IsRegular() {
			return err
		}
		rel, _ := filepath.Rel(p.Root, path)
		rel = filepath.ToSlash(rel)
		if rel == "SHA256SUMS" || rel == "SHA256SUMS.sig" {
			return nil
		}
		//nolint:gosec // G304: fixture file
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		sum := sha256.Sum256(data)
		lines = append(lines, hex.EncodeToString(sum[:])+"  "+rel)
		return nil
	})
	if err != nil {
		p.t.Fatalf("failed to checksum fixture: %v", err)
	}
	sort.Strings(lines)
	p.write("SHA256SUMS", strings.Join(lines, "\n")+"\n", 0644)
}

func (p *Package) write(rel, body string, mode os.FileMode) {
	p.t.Helper()
	path := p.Path(rel)
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		p.t.Fatalf("failed to create %s: %v", filepath.Dir(rel), err)
	}
	if err := os.WriteFile(path, []byte(body), mode); err != nil {
		p.t.Fatalf("failed to write %s: %v", rel, err)
	}
	// WriteFile keeps the mode of an existing file
	if err := os.Chmod(path, mode); err != nil {
		p.t.Fatalf("failed to chmod %s: %v", rel, err)
	}
}
