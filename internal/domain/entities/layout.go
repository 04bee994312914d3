package entities

import (
	"sort"
	"time"
)

// Layout describes the expected shape of a distribution: where its parts live,
// how to invoke it, and which components each tier bundles
type Layout struct {
	Name          string
	Product       string
	Executable    string // main executable, relative to the artifact root
	Manifest      string
	Checksums     string
	Signature     string
	Runtime       RuntimeSpec
	Launchers     []LauncherSpec
	RequiredDirs  []PathRule
	RequiredFiles []PathRule
	License       string
	Documentation DocumentationSpec
	Forbidden     []string // glob patterns matched against base names and relative paths
	SizeBounds    map[Tier]SizeBound
	MaxPathLength int
	HostTools     []string
	MinFreeSpace  int64
	Invocation    InvocationSpec
	ComponentsDir string
	Components    []ComponentSpec
}

// RuntimeSpec locates the bundled runtime
type RuntimeSpec struct {
	Dir         string
	VersionFile string
}

// LauncherSpec is a wrapper script shipped next to the main executable
type LauncherSpec struct {
	Path  string
	POSIX bool // runnable with /bin/sh on unix hosts
}

// PathRule is a required path that applies from MinTier upwards
type PathRule struct {
	Path    string
	MinTier Tier
}

// DocumentationSpec names the primary document and the headings it must contain
type DocumentationSpec struct {
	File     string
	Sections []string
}

// SizeBound is an inclusive byte range; zero Max means unbounded
type SizeBound struct {
	Min int64
	Max int64
}

// InvocationSpec tells functional checks how to drive the main executable
type InvocationSpec struct {
	VersionArgs     []string
	HelpArgs        []string
	SmokeArgs       []string
	InvalidArgs     []string
	MissingFileArgs []string // "{missing}" is replaced with a path that does not exist
	EnvProbeArgs    []string // "{name}" is replaced with the probed variable name
	EnvVars         []string
	StartupBudget   time.Duration
}

// ComponentSpec is an optional bundled sub-tool
type ComponentSpec struct {
	Name        string
	MinTier     Tier
	Executable  string // relative to the component directory
	VersionArgs []string
	Files       []string
	Dirs        []string
	MaxSize     int64
}

// ComponentDir returns the component directory relative to the artifact root
func (l *Layout) ComponentDir(name string) string {
	if l.ComponentsDir == "" {
		return name
	}
	return l.ComponentsDir + "/" + name
}

// Component looks up a component by name
func (l *Layout) Component(name string) (ComponentSpec, bool) {
	for _, c := range l.Components {
		if c.Name == name {
			return c, true
		}
	}
	return ComponentSpec{}, false
}

// RequiredComponents returns the names of components a tier must bundle, sorted
func (l *Layout) RequiredComponents(t Tier) []string {
	var names []string
	for _, c := range l.Components {
		minTier := c.MinTier
		if minTier == "" {
			minTier = TierMinimal
		}
		if t.AtLeast(minTier) {
			names = append(names, c.Name)
		}
	}
	sort.Strings(names)
	return names
}

// TierForComponents finds the tier whose required component set equals present.
// The boolean is false when no tier matches exactly.
func (l *Layout) TierForComponents(present []string) (Tier, bool) {
	have := make(map[string]bool, len(present))
	for _, name := range present {
		have[name] = true
	}

	for i := len(AllTiers) - 1; i >= 0; i-- {
		tier := AllTiers[i]
		required := l.RequiredComponents(tier)
		if len(required) != len(have) {
			continue
		}
		match := true
		for _, name := range required {
			if !have[name] {
				match = false
				break
			}
		}
		if match {
			return tier, true
		}
	}
	return "", false
}
