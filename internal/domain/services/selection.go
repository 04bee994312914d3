package services

import (
	"github.com/ochairo/distcheck/internal/domain/entities"
)

// Selection is one catalog entry together with whether it will run
type Selection struct {
	Definition entities.CheckDefinition
	Selected   bool
	SkipReason string // set when Selected is false
}

// SelectionFilter narrows the checks of a run
type SelectionFilter struct {
	Tier         entities.Tier
	Architecture entities.Architecture
	Categories   []entities.Category // empty runs every category
}

// SelectChecks applies the tier, architecture and category rules to the catalog
// in order. The category filter only ever removes checks the tier would run.
func SelectChecks(definitions []entities.CheckDefinition, filter SelectionFilter) []Selection {
	allowed := make(map[entities.Category]bool, len(filter.Categories))
	for _, c := range filter.Categories {
		allowed[c] = true
	}

	selections := make([]Selection, 0, len(definitions))
	for _, def := range definitions {
		s := Selection{Definition: def}
		switch {
		case !def.AppliesToTier(filter.Tier):
			s.SkipReason = entities.ReasonTier
		case !def.AppliesToArchitecture(filter.Architecture):
			s.SkipReason = entities.ReasonArchitecture
		case len(allowed) > 0 && !allowed[def.Category]:
			s.SkipReason = entities.ReasonCategoryFilter
		default:
			s.Selected = true
		}
		selections = append(selections, s)
	}
	return selections
}

// SelectedIDs returns the ids of the checks that will run, in order
func SelectedIDs(selections []Selection) []string {
	var ids []string
	for _, s := range selections {
		if s.Selected {
			ids = append(ids, s.Definition.ID)
		}
	}
	return ids
}
