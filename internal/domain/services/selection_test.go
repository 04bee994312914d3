package services

import (
	"testing"

	"github.com/ochairo/distcheck/internal/domain/entities"
)

func sampleCatalog() []entities.CheckDefinition {
	return []entities.CheckDefinition{
		{ID: "env.tools", Category: entities.CategoryEnvironment},
		{ID: "build.machine.x64", Category: entities.CategoryBuild, Architectures: []entities.Architecture{entities.ArchX64}},
		{ID: "build.machine.arm64", Category: entities.CategoryBuild, Architectures: []entities.Architecture{entities.ArchARM64}},
		{ID: "structure.docs", Category: entities.CategoryStructure, MinTier: entities.TierEssential},
		{ID: "functional.version", Category: entities.CategoryFunctional},
		{ID: "component.lsp.exists", Category: entities.CategoryComponent, MinTier: entities.TierComplete},
		{ID: "component.dbg.exists", Category: entities.CategoryComponent, MinTier: entities.TierFull},
	}
}

func TestSelectChecks_Reasons(t *testing.T) {
	selections := SelectChecks(sampleCatalog(), SelectionFilter{
		Tier:         entities.TierEssential,
		Architecture: entities.ArchX64,
		Categories:   []entities.Category{entities.CategoryBuild, entities.CategoryStructure, entities.CategoryComponent},
	})

	want := map[string]string{
		"env.tools":            entities.ReasonCategoryFilter,
		"build.machine.x64":    "",
		"build.machine.arm64":  entities.ReasonArchitecture,
		"structure.docs":       "",
		"functional.version":   entities.ReasonCategoryFilter,
		"component.lsp.exists": entities.ReasonTier,
		"component.dbg.exists": entities.ReasonTier,
	}

	if len(selections) != len(want) {
		t.Fatalf("SelectChecks() returned %d entries, want %d", len(selections), len(want))
	}
	for i, s := range selections {
		if s.Definition.ID != sampleCatalog()[i].ID {
			t.Errorf("selection %d = %s, order must follow the catalog", i, s.Definition.ID)
		}
		if s.SkipReason != want[s.Definition.ID] {
			t.Errorf("%s skip reason = %q, want %q", s.Definition.ID, s.SkipReason, want[s.Definition.ID])
		}
		if s.Selected != (want[s.Definition.ID] == "") {
			t.Errorf("%s selected = %v", s.Definition.ID, s.Selected)
		}
	}
}

func TestSelectChecks_TierMonotonic(t *testing.T) {
	for _, arch := range entities.AllArchitectures {
		var previous map[string]bool
		for _, tier := range entities.AllTiers {
			current := make(map[string]bool)
			for _, id := range SelectedIDs(SelectChecks(sampleCatalog(), SelectionFilter{Tier: tier, Architecture: arch})) {
				current[id] = true
			}
			for id := range previous {
				if !current[id] {
					t.Errorf("%s/%s drops %s selected by a smaller tier", tier, arch, id)
				}
			}
			previous = current
		}
	}
}

func TestSelectChecks_ArchitectureAgnosticAlwaysSelected(t *testing.T) {
	for _, arch := range entities.AllArchitectures {
		ids := SelectedIDs(SelectChecks(sampleCatalog(), SelectionFilter{Tier: entities.TierMinimal, Architecture: arch}))
		found := false
		for _, id := range ids {
			if id == "env.tools" {
				found = true
			}
		}
		if !found {
			t.Errorf("architecture-agnostic check not selected for %s", arch)
		}
	}
}

func TestSelectChecks_FilterNeverWidens(t *testing.T) {
	unfiltered := SelectedIDs(SelectChecks(sampleCatalog(), SelectionFilter{Tier: entities.TierMinimal, Architecture: entities.ArchARM64}))
	filtered := SelectedIDs(SelectChecks(sampleCatalog(), SelectionFilter{
		Tier:         entities.TierMinimal,
		Architecture: entities.ArchARM64,
		Categories:   []entities.Category{entities.CategoryComponent},
	}))

	base := make(map[string]bool)
	for _, id := range unfiltered {
		base[id] = true
	}
	for _, id := range filtered {
		if !base[id] {
			t.Errorf("category filter added %s", id)
		}
	}
	if len(filtered) != 0 {
		t.Errorf("filtered = %v, want none (component checks need a larger tier)", filtered)
	}
}
