// Package checks holds the static catalog of artifact verification checks.
package checks

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ochairo/distcheck/internal/domain/entities"
)

// Default per-check budgets
const (
	DefaultTimeout  = 30 * time.Second
	ProcessTimeout  = 60 * time.Second
	FilesystemLimit = 2 * time.Minute
)

// Func is the verification logic of a check
type Func func(ctx context.Context, env *Env) entities.Outcome

// Check pairs a definition with its verification logic
type Check struct {
	entities.CheckDefinition
	Run Func
}

// Registry is the ordered catalog for one layout
type Registry struct {
	checks []Check
	index  map[string]int
}

// NewRegistry builds the catalog for a layout. Per-component checks are expanded once
// for every component the layout declares plus any unknown component found on disk,
// sorted by name.
func NewRegistry(layout *entities.Layout, present []string) (*Registry, error) {
	var all []Check
	all = append(all, environmentChecks()...)
	all = append(all, buildChecks()...)
	all = append(all, structureChecks()...)
	all = append(all, functionalChecks()...)
	for _, spec := range componentSpecs(layout, present) {
		all = append(all, componentChecks(spec)...)
	}
	return NewRegistryFromChecks(all)
}

// NewRegistryFromChecks validates an explicit catalog: ids are unique, categories appear in
// execution order and dependencies are declared before their dependents
func NewRegistryFromChecks(all []Check) (*Registry, error) {
	r := &Registry{index: make(map[string]int, len(all))}
	lastRank := 0
	for i, c := range all {
		if c.ID == "" || c.Run == nil {
			return nil, fmt.Errorf("check %d is incomplete", i)
		}
		if _, dup := r.index[c.ID]; dup {
			return nil, fmt.Errorf("duplicate check id %q", c.ID)
		}
		rank := c.Category.Rank()
		if rank < lastRank {
			return nil, fmt.Errorf("check %q declared out of category order", c.ID)
		}
		lastRank = rank
		for _, dep := range c.DependsOn {
			if _, ok := r.index[dep]; !ok {
				return nil, fmt.Errorf("check %q depends on %q which is not declared before it", c.ID, dep)
			}
		}
		r.index[c.ID] = i
		r.checks = append(r.checks, c)
	}
	return r, nil
}

// Checks returns the catalog in execution order
func (r *Registry) Checks() []Check {
	return r.checks
}

// Definitions returns the check descriptors in execution order
func (r *Registry) Definitions() []entities.CheckDefinition {
	defs := make([]entities.CheckDefinition, 0, len(r.checks))
	for _, c := range r.checks {
		defs = append(defs, c.CheckDefinition)
	}
	return defs
}

// Lookup finds a check by id
func (r *Registry) Lookup(id string) (Check, bool) {
	i, ok := r.index[id]
	if !ok {
		return Check{}, false
	}
	return r.checks[i], true
}

// Len returns the catalog size
func (r *Registry) Len() int {
	return len(r.checks)
}

// componentSpecs merges declared components with unknown directories found on disk
func componentSpecs(layout *entities.Layout, present []string) []entities.ComponentSpec {
	specs := make([]entities.ComponentSpec, 0, len(layout.Components)+len(present))
	seen := make(map[string]bool)
	for _, c := range layout.Components {
		specs = append(specs, c)
		seen[c.Name] = true
	}
	for _, name := range present {
		if seen[name] {
			continue
		}
		seen[name] = true
		specs = append(specs, entities.ComponentSpec{
			Name:       name,
			MinTier:    entities.TierMinimal,
			Executable: "bin/" + name,
		})
	}
	sort.Slice(specs, func(i, j int) bool { return specs[i].Name < specs[j].Name })
	return specs
}
