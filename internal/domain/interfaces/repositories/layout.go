// Package repositories defines interfaces for data access layers.
package repositories

import (
	"context"

	"github.com/ochairo/distcheck/internal/domain/entities"
)

// LayoutRepository defines the interface for accessing distribution layouts
type LayoutRepository interface {
	// GetLayout loads a layout from a file path, or the built-in default when path is empty
	GetLayout(ctx context.Context, path string) (*entities.Layout, error)
}
