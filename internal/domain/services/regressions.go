package services

import "github.com/ochairo/distcheck/internal/domain/entities"

// HistoryKey identifies runs that are comparable with each other
func HistoryKey(product string, profile entities.Profile) string {
	return product + "/" + string(profile.Tier) + "/" + string(profile.Architecture)
}

// FindRegressions lists checks that passed previously and now fail or error, in result order.
// Skipped checks are not regressions since filters change what runs.
func FindRegressions(previous map[string]entities.Status, results []entities.CheckResult) []entities.Regression {
	var regressions []entities.Regression
	for _, r := range results {
		if previous[r.ID] != entities.StatusPass {
			continue
		}
		if r.Status == entities.StatusFail || r.Status == entities.StatusError {
			regressions = append(regressions, entities.Regression{
				ID:       r.ID,
				Previous: entities.StatusPass,
				Current:  r.Status,
			})
		}
	}
	return regressions
}
