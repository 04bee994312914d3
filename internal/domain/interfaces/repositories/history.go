package repositories

import (
	"context"

	"github.com/ochairo/distcheck/internal/domain/entities"
)

// RunHistoryRepository persists check statuses across runs
type RunHistoryRepository interface {
	// LastStatuses returns the statuses recorded by the latest run for key, empty when none exists
	LastStatuses(ctx context.Context, key string) (map[string]entities.Status, error)

	// Record stores the results of a finished run under key
	Record(ctx context.Context, key string, report *entities.RunReport) error
}
