package services

import (
	"encoding/json"
	"fmt"
	"os"
	"runtime"
	"sort"
	"strings"

	"github.com/ochairo/distcheck/internal/domain/entities"
	"github.com/ochairo/distcheck/internal/domain/interfaces/gateways"
)

// Profile detection sources, recorded in the report
const (
	SourceOverride   = "override"
	SourceName       = "name"
	SourceManifest   = "manifest"
	SourceComponents = "components"
	SourceExecutable = "executable"
	SourceHost       = "host"
	SourceDefault    = "default"
)

// ProfileOverrides carries explicit tier and architecture choices; empty means detect
type ProfileOverrides struct {
	Tier         entities.Tier
	Architecture entities.Architecture
}

// ProfileDetector infers the tier and architecture of an artifact
type ProfileDetector struct {
	binaries gateways.BinaryInspector
	hostArch string
}

// NewProfileDetector creates a detector that falls back to the running host's architecture
func NewProfileDetector(binaries gateways.BinaryInspector) *ProfileDetector {
	return &ProfileDetector{binaries: binaries, hostArch: runtime.GOARCH}
}

// Detect resolves the profile. When the tier cannot be determined the profile
// falls back to full and the returned error wraps entities.ErrProfileAmbiguous;
// the profile is usable in that case.
func (d *ProfileDetector) Detect(artifact *entities.Artifact, layout *entities.Layout, overrides ProfileOverrides) (entities.Profile, error) {
	profile := entities.Profile{Components: PresentComponents(artifact, layout)}
	manifest := readManifestHints(artifact, layout)
	nameTier, nameArch := tokensFromName(artifact.Name)

	var ambiguity error
	switch {
	case overrides.Tier != "":
		profile.Tier, profile.TierSource = overrides.Tier, SourceOverride
	case nameTier != "":
		profile.Tier, profile.TierSource = nameTier, SourceName
	case manifest.tier != "":
		profile.Tier, profile.TierSource = manifest.tier, SourceManifest
	default:
		if tier, ok := layout.TierForComponents(profile.Components); ok {
			profile.Tier, profile.TierSource = tier, SourceComponents
		} else {
			profile.Tier, profile.TierSource = entities.TierFull, SourceDefault
			profile.Ambiguous = true
			ambiguity = fmt.Errorf("%w: components [%s] match no tier, assuming %s",
				entities.ErrProfileAmbiguous, strings.Join(profile.Components, ", "), entities.TierFull)
		}
	}

	switch {
	case overrides.Architecture != "":
		profile.Architecture, profile.ArchitectureSource = overrides.Architecture, SourceOverride
	case nameArch != "":
		profile.Architecture, profile.ArchitectureSource = nameArch, SourceName
	case manifest.arch != "":
		profile.Architecture, profile.ArchitectureSource = manifest.arch, SourceManifest
	default:
		if arch, ok := d.executableArchitecture(artifact, layout); ok {
			profile.Architecture, profile.ArchitectureSource = arch, SourceExecutable
		} else if arch, ok := hostArchitecture(d.hostArch); ok {
			profile.Architecture, profile.ArchitectureSource = arch, SourceHost
		} else {
			profile.Architecture, profile.ArchitectureSource = entities.ArchX64, SourceDefault
		}
	}

	artifact.Tier = profile.Tier
	artifact.Architecture = profile.Architecture
	return profile, ambiguity
}

// tokensFromName reads tier and architecture tokens from an artifact name such
// as "app-2.1.0-complete-arm64". Conflicting tokens are ignored.
func tokensFromName(name string) (entities.Tier, entities.Architecture) {
	lower := strings.ReplaceAll(strings.ToLower(name), "x86-64", "x86_64")
	tokens := strings.FieldsFunc(lower, func(r rune) bool {
		return r == '-' || r == '.' || r == ' ' || r == '+'
	})

	tiers := make(map[entities.Tier]bool)
	arches := make(map[entities.Architecture]bool)
	for _, token := range tokens {
		if t := entities.Tier(token); t.Valid() {
			tiers[t] = true
		}
		if a, ok := entities.LookupArchitecture(token); ok {
			arches[a] = true
			continue
		}
		for _, part := range strings.Split(token, "_") {
			if t := entities.Tier(part); t.Valid() {
				tiers[t] = true
			}
			if a, ok := entities.LookupArchitecture(part); ok {
				arches[a] = true
			}
		}
	}

	var tier entities.Tier
	if len(tiers) == 1 {
		for t := range tiers {
			tier = t
		}
	}
	var arch entities.Architecture
	if len(arches) == 1 {
		for a := range arches {
			arch = a
		}
	}
	return tier, arch
}

type manifestHints struct {
	tier entities.Tier
	arch entities.Architecture
}

// readManifestHints reads tier and architecture leniently; a broken manifest
// is reported by the build checks, not here
func readManifestHints(artifact *entities.Artifact, layout *entities.Layout) manifestHints {
	var hints manifestHints
	if layout.Manifest == "" {
		return hints
	}
	data, err := os.ReadFile(artifact.Path(layout.Manifest))
	if err != nil {
		return hints
	}
	var m struct {
		Tier         string `json:"tier"`
		Architecture string `json:"architecture"`
	}
	if json.Unmarshal(data, &m) != nil {
		return hints
	}
	if t, err := entities.ParseTier(m.Tier); err == nil {
		hints.tier = t
	}
	if a, ok := entities.LookupArchitecture(m.Architecture); ok {
		hints.arch = a
	}
	return hints
}

func (d *ProfileDetector) executableArchitecture(artifact *entities.Artifact, layout *entities.Layout) (entities.Architecture, bool) {
	if d.binaries == nil || layout.Executable == "" {
		return "", false
	}
	info, err := d.binaries.Inspect(artifact.Path(layout.Executable))
	if err != nil || len(info.Architectures) != 1 {
		return "", false
	}
	return info.Architectures[0], true
}

// hostArchitecture maps a GOARCH value to a package architecture
func hostArchitecture(goarch string) (entities.Architecture, bool) {
	switch goarch {
	case "amd64":
		return entities.ArchX64, true
	case "arm64":
		return entities.ArchARM64, true
	default:
		return "", false
	}
}

// PresentComponents lists the component directories bundled in the artifact, sorted.
// Without a components directory only catalog components are probed.
func PresentComponents(artifact *entities.Artifact, layout *entities.Layout) []string {
	present := make([]string, 0, len(layout.Components))
	if layout.ComponentsDir != "" {
		entries, err := os.ReadDir(artifact.Path(layout.ComponentsDir))
		if err != nil {
			return present
		}
		for _, e := range entries {
			if e.IsDir() {
				present = append(present, e.Name())
			}
		}
		sort.Strings(present)
		return present
	}

	for _, c := range layout.Components {
		info, err := os.Stat(artifact.Path(layout.ComponentDir(c.Name)))
		if err == nil && info.IsDir() {
			present = append(present, c.Name)
		}
	}
	sort.Strings(present)
	return present
}
