package yaml

import (
	"context"
	_ "embed"
	"fmt"
	"os"

	"github.com/ochairo/distcheck/internal/domain/entities"
	"github.com/ochairo/distcheck/internal/domain/interfaces/repositories"
)

//go:embed layouts/default.yml
var defaultLayout []byte

// DefaultLayoutName is the name of the embedded layout
const DefaultLayoutName = "default"

// LayoutRepository implements repositories.LayoutRepository using YAML files
type LayoutRepository struct {
	parser *LayoutParser
}

// NewLayoutRepository creates a new YAML-based layout repository
func NewLayoutRepository() *LayoutRepository {
	return &LayoutRepository{parser: NewLayoutParser()}
}

var _ repositories.LayoutRepository = (*LayoutRepository)(nil)

// GetLayout loads the layout at path, or the embedded default when path is empty
func (r *LayoutRepository) GetLayout(_ context.Context, path string) (*entities.Layout, error) {
	if path == "" {
		layout, err := r.parser.Parse(defaultLayout)
		if err != nil {
			return nil, fmt.Errorf("failed to parse built-in layout: %w", err)
		}
		return layout, nil
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("layout not found: %s", path)
	}

	layout, err := r.parser.ParseFile(path)
	if err != nil {
		return nil, fmt.Errorf("invalid layout %s: %w", path, err)
	}
	return layout, nil
}

// DefaultLayoutYAML returns the embedded layout source, for `distcheck list --show-layout`
func DefaultLayoutYAML() []byte {
	return append([]byte(nil), defaultLayout...)
}
