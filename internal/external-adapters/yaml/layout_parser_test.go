package yaml

import (
	"strings"
	"testing"
	"time"

	"github.com/ochairo/distcheck/internal/domain/entities"
)

func TestLayoutParser_Parse_Valid(t *testing.T) {
	parser := NewLayoutParser()
	yamlData := []byte(`name: editor
executable: bin/editor
manifest: manifest.json
required_dirs:
  - path: bin
  - path: share
    min_tier: complete
size_bounds:
  minimal: { min: 512KB, max: 20MB }
  full: { max: 1.5GB }
min_free_space: 1048576
invocation:
  version_args: ["--version"]
  startup_budget: 2s
components_dir: tools
components:
  - name: fmt
    min_tier: essential
    max_size: 10MB
  - name: lsp
    min_tier: full
    executable: server/lsp
`)

	layout, err := parser.Parse(yamlData)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if layout.Name != "editor" {
		t.Errorf("Name = %v, want editor", layout.Name)
	}
	if layout.Product != "editor" {
		t.Errorf("Product = %v, want editor (derived from executable)", layout.Product)
	}
	if len(layout.RequiredDirs) != 2 || layout.RequiredDirs[1].MinTier != entities.TierComplete {
		t.Errorf("RequiredDirs = %+v", layout.RequiredDirs)
	}
	if layout.RequiredDirs[0].MinTier != entities.TierMinimal {
		t.Errorf("RequiredDirs[0].MinTier = %v, want minimal", layout.RequiredDirs[0].MinTier)
	}
	if got := layout.SizeBounds[entities.TierMinimal]; got.Min != 512<<10 || got.Max != 20<<20 {
		t.Errorf("SizeBounds[minimal] = %+v", got)
	}
	if got := layout.SizeBounds[entities.TierFull].Max; got != 1536<<20 {
		t.Errorf("SizeBounds[full].Max = %d, want %d", got, 1536<<20)
	}
	if layout.MinFreeSpace != 1048576 {
		t.Errorf("MinFreeSpace = %d, want 1048576", layout.MinFreeSpace)
	}
	if layout.Invocation.StartupBudget != 2*time.Second {
		t.Errorf("StartupBudget = %v, want 2s", layout.Invocation.StartupBudget)
	}
	if len(layout.Components) != 2 {
		t.Fatalf("Components count = %d, want 2", len(layout.Components))
	}
	if layout.Components[0].Executable != "bin/fmt" {
		t.Errorf("Components[0].Executable = %v, want bin/fmt", layout.Components[0].Executable)
	}
	if layout.Components[1].Executable != "server/lsp" {
		t.Errorf("Components[1].Executable = %v, want server/lsp", layout.Components[1].Executable)
	}
	if layout.ComponentDir("lsp") != "tools/lsp" {
		t.Errorf("ComponentDir(lsp) = %v, want tools/lsp", layout.ComponentDir("lsp"))
	}
}

func TestLayoutParser_Parse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"missing name", "executable: bin/app\n", "must have a name"},
		{"missing executable", "name: x\n", "main executable"},
		{"absolute executable", "name: x\nexecutable: /usr/bin/app\n", "inside the artifact"},
		{"escaping path", "name: x\nexecutable: bin/app\nrequired_files:\n  - path: ../secret\n", "inside the artifact"},
		{"unknown tier", "name: x\nexecutable: bin/app\nrequired_dirs:\n  - path: bin\n    min_tier: huge\n", "unknown tier"},
		{"bad size", "name: x\nexecutable: bin/app\nmin_free_space: lots\n", "invalid size"},
		{"inverted bounds", "name: x\nexecutable: bin/app\nsize_bounds:\n  full: { min: 2MB, max: 1MB }\n", "min exceeds max"},
		{"duplicate component", "name: x\nexecutable: bin/app\ncomponents:\n  - name: a\n  - name: a\n", "duplicate component"},
		{"bad duration", "name: x\nexecutable: bin/app\ninvocation:\n  startup_budget: soon\n", "startup_budget"},
		{"invalid yaml", "name: [unclosed\n", "failed to parse YAML"},
	}

	parser := NewLayoutParser()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parser.Parse([]byte(tt.yaml))
			if err == nil {
				t.Fatal("Parse() should return error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Parse() error = %v, want to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestLayoutParser_ParseFile_Missing(t *testing.T) {
	if _, err := NewLayoutParser().ParseFile("/nonexistent/layout.yml"); err == nil {
		t.Error("ParseFile() should return error for missing file")
	}
}
