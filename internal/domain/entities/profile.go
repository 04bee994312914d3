package entities

import (
	"fmt"
	"strings"
)

// Tier is a named bundle variant controlling how many optional components ship
type Tier string

// Supported tiers, smallest first
const (
	TierMinimal   Tier = "minimal"
	TierEssential Tier = "essential"
	TierComplete  Tier = "complete"
	TierFull      Tier = "full"
)

// AllTiers lists every tier in ascending order
var AllTiers = []Tier{TierMinimal, TierEssential, TierComplete, TierFull}

// Rank returns the position of the tier in ascending order, or -1 if unknown
func (t Tier) Rank() int {
	for i, candidate := range AllTiers {
		if candidate == t {
			return i
		}
	}
	return -1
}

// AtLeast reports whether t is the same as or larger than other
func (t Tier) AtLeast(other Tier) bool {
	return t.Rank() >= other.Rank() && other.Rank() >= 0
}

// Valid reports whether the tier is one of the known tiers
func (t Tier) Valid() bool {
	return t.Rank() >= 0
}

// ParseTier normalizes a user-supplied tier name
func ParseTier(s string) (Tier, error) {
	t := Tier(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("unknown tier %q (expected one of minimal, essential, complete, full)", s)
	}
	return t, nil
}

// Architecture is the target CPU variant of the package binaries
type Architecture string

// Supported architectures
const (
	ArchX64   Architecture = "x64"
	ArchARM64 Architecture = "arm64"
)

// AllArchitectures lists every supported architecture
var AllArchitectures = []Architecture{ArchX64, ArchARM64}

// archAliases maps common spellings found in file names and toolchains
var archAliases = map[string]Architecture{
	"x64":     ArchX64,
	"amd64":   ArchX64,
	"x86_64":  ArchX64,
	"x86-64":  ArchX64,
	"arm64":   ArchARM64,
	"aarch64": ArchARM64,
}

// Valid reports whether the architecture is supported
func (a Architecture) Valid() bool {
	for _, candidate := range AllArchitectures {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseArchitecture normalizes a user-supplied architecture name, accepting common aliases
func ParseArchitecture(s string) (Architecture, error) {
	if arch, ok := LookupArchitecture(s); ok {
		return arch, nil
	}
	return "", fmt.Errorf("unknown architecture %q (expected x64 or arm64)", s)
}

// LookupArchitecture resolves an alias without producing an error
func LookupArchitecture(s string) (Architecture, bool) {
	arch, ok := archAliases[strings.ToLower(strings.TrimSpace(s))]
	return arch, ok
}

// Profile is the resolved tier and architecture of an artifact plus how they were found
type Profile struct {
	Tier               Tier         `json:"tier"`
	Architecture       Architecture `json:"architecture"`
	TierSource         string       `json:"tier_source"`
	ArchitectureSource string       `json:"architecture_source"`
	Ambiguous          bool         `json:"ambiguous"`
	Components         []string     `json:"components"`
}
