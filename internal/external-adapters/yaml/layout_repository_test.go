package yaml

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/ochairo/distcheck/internal/domain/entities"
)

func TestLayoutRepository_GetLayout_Default(t *testing.T) {
	layout, err := NewLayoutRepository().GetLayout(context.Background(), "")
	if err != nil {
		t.Fatalf("GetLayout() error = %v", err)
	}

	if layout.Name != DefaultLayoutName {
		t.Errorf("GetLayout() name = %v, want %v", layout.Name, DefaultLayoutName)
	}

	// Each tier must require every component of the tiers below it
	var previous []string
	for _, tier := range entities.AllTiers {
		current := layout.RequiredComponents(tier)
		have := make(map[string]bool, len(current))
		for _, name := range current {
			have[name] = true
		}
		for _, name := range previous {
			if !have[name] {
				t.Errorf("tier %s drops component %s", tier, name)
			}
		}
		previous = current
	}

	// Component sets must be distinct so the count can identify the tier
	for _, tier := range entities.AllTiers {
		got, ok := layout.TierForComponents(layout.RequiredComponents(tier))
		if !ok || got != tier {
			t.Errorf("TierForComponents(%s set) = %v, %v", tier, got, ok)
		}
	}
}

func TestLayoutRepository_GetLayout_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.yml")
	if err := os.WriteFile(path, []byte("name: custom\nexecutable: bin/custom\n"), 0600); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}

	layout, err := NewLayoutRepository().GetLayout(context.Background(), path)
	if err != nil {
		t.Fatalf("GetLayout() error = %v", err)
	}
	if layout.Name != "custom" {
		t.Errorf("GetLayout() name = %v, want custom", layout.Name)
	}
}

func TestLayoutRepository_GetLayout_NotFound(t *testing.T) {
	_, err := NewLayoutRepository().GetLayout(context.Background(), filepath.Join(t.TempDir(), "nonexistent.yml"))
	if err == nil {
		t.Error("GetLayout() should return error for nonexistent layout")
	}
}
