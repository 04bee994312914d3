package entities

import (
	"fmt"
	"time"
)

// Category groups checks; categories always run in the order of AllCategories
type Category string

// Check categories in execution order
const (
	CategoryEnvironment Category = "environment"
	CategoryBuild       Category = "build"
	CategoryStructure   Category = "structure"
	CategoryFunctional  Category = "functional"
	CategoryComponent   Category = "component"
)

// AllCategories lists the fixed category sequence
var AllCategories = []Category{
	CategoryEnvironment,
	CategoryBuild,
	CategoryStructure,
	CategoryFunctional,
	CategoryComponent,
}

// Rank returns the execution position of the category, or -1 if unknown
func (c Category) Rank() int {
	for i, candidate := range AllCategories {
		if candidate == c {
			return i
		}
	}
	return -1
}

// ParseCategory validates a category name from the command line
func ParseCategory(s string) (Category, error) {
	c := Category(s)
	if c.Rank() < 0 {
		return "", fmt.Errorf("unknown category %q (expected one of environment, build, structure, functional, component)", s)
	}
	return c, nil
}

// CheckDefinition is the immutable descriptor of a single verification unit
type CheckDefinition struct {
	ID            string
	Category      Category
	Description   string
	MinTier       Tier           // applies to this tier and every larger one
	Architectures []Architecture // empty means architecture-agnostic
	Timeout       time.Duration  // zero uses the engine default
	DependsOn     []string       // ids that must pass before this check runs
	Component     string         // set for per-component checks
	Spawns        bool           // launches external processes in an isolated working directory
}

// AppliesToTier reports whether the check is required for the given tier
func (d CheckDefinition) AppliesToTier(t Tier) bool {
	minTier := d.MinTier
	if minTier == "" {
		minTier = TierMinimal
	}
	return t.AtLeast(minTier)
}

// AppliesToArchitecture reports whether the check is relevant for the given architecture
func (d CheckDefinition) AppliesToArchitecture(a Architecture) bool {
	if len(d.Architectures) == 0 {
		return true
	}
	for _, candidate := range d.Architectures {
		if candidate == a {
			return true
		}
	}
	return false
}
