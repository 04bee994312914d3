// Package yaml provides YAML-based layout parsing and repository implementations.
package yaml

import (
	"fmt"
	"os"
	"path"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ochairo/distcheck/internal/domain/entities"
)

// yamlLayout represents the raw YAML structure
type yamlLayout struct {
	Name          string                  `yaml:"name"`
	Product       string                  `yaml:"product"`
	Executable    string                  `yaml:"executable"`
	Manifest      string                  `yaml:"manifest"`
	Checksums     string                  `yaml:"checksums"`
	Signature     string                  `yaml:"signature"`
	Runtime       yamlRuntime             `yaml:"runtime"`
	Launchers     []yamlLauncher          `yaml:"launchers"`
	RequiredDirs  []yamlPathRule          `yaml:"required_dirs"`
	RequiredFiles []yamlPathRule          `yaml:"required_files"`
	License       string                  `yaml:"license"`
	Documentation yamlDocumentation       `yaml:"documentation"`
	Forbidden     []string                `yaml:"forbidden"`
	SizeBounds    map[string]yamlSizeSpan `yaml:"size_bounds"`
	MaxPathLength int                     `yaml:"max_path_length"`
	HostTools     []string                `yaml:"host_tools"`
	MinFreeSpace  byteSize                `yaml:"min_free_space"`
	Invocation    yamlInvocation          `yaml:"invocation"`
	ComponentsDir string                  `yaml:"components_dir"`
	Components    []yamlComponent         `yaml:"components"`
}

type yamlRuntime struct {
	Dir         string `yaml:"dir"`
	VersionFile string `yaml:"version_file"`
}

type yamlLauncher struct {
	Path  string `yaml:"path"`
	POSIX bool   `yaml:"posix"`
}

type yamlPathRule struct {
	Path    string `yaml:"path"`
	MinTier string `yaml:"min_tier"`
}

type yamlDocumentation struct {
	File     string   `yaml:"file"`
	Sections []string `yaml:"sections"`
}

type yamlSizeSpan struct {
	Min byteSize `yaml:"min"`
	Max byteSize `yaml:"max"`
}

type yamlInvocation struct {
	VersionArgs     []string `yaml:"version_args"`
	HelpArgs        []string `yaml:"help_args"`
	SmokeArgs       []string `yaml:"smoke_args"`
	InvalidArgs     []string `yaml:"invalid_args"`
	MissingFileArgs []string `yaml:"missing_file_args"`
	EnvProbeArgs    []string `yaml:"env_probe_args"`
	EnvVars         []string `yaml:"env_vars"`
	StartupBudget   string   `yaml:"startup_budget"`
}

type yamlComponent struct {
	Name        string   `yaml:"name"`
	MinTier     string   `yaml:"min_tier"`
	Executable  string   `yaml:"executable"`
	VersionArgs []string `yaml:"version_args"`
	Files       []string `yaml:"files"`
	Dirs        []string `yaml:"dirs"`
	MaxSize     byteSize `yaml:"max_size"`
}

// byteSize accepts plain integers or strings such as "512KB", "20MB" and "1.5GB"
type byteSize int64

var sizeUnits = []struct {
	suffix string
	factor float64
}{
	{"GB", 1 << 30},
	{"MB", 1 << 20},
	{"KB", 1 << 10},
	{"B", 1},
}

// UnmarshalYAML implements yaml.Unmarshaler
func (b *byteSize) UnmarshalYAML(node *yaml.Node) error {
	raw := strings.ToUpper(strings.TrimSpace(node.Value))
	if raw == "" {
		*b = 0
		return nil
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		*b = byteSize(n)
		return nil
	}
	for _, unit := range sizeUnits {
		if number, ok := strings.CutSuffix(raw, unit.suffix); ok {
			value, err := strconv.ParseFloat(strings.TrimSpace(number), 64)
			if err != nil || value < 0 {
				return fmt.Errorf("line %d: invalid size %q", node.Line, node.Value)
			}
			*b = byteSize(value * unit.factor)
			return nil
		}
	}
	return fmt.Errorf("line %d: invalid size %q", node.Line, node.Value)
}

// LayoutParser parses YAML layout files
type LayoutParser struct{}

// NewLayoutParser creates a new YAML parser
func NewLayoutParser() *LayoutParser {
	return &LayoutParser{}
}

// ParseFile parses a YAML layout file into a Layout entity
func (p *LayoutParser) ParseFile(filePath string) (*entities.Layout, error) {
	//nolint:gosec // G304: filePath is the operator-supplied layout
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", filePath, err)
	}

	return p.Parse(data)
}

// Parse parses YAML bytes into a Layout entity
func (p *LayoutParser) Parse(data []byte) (*entities.Layout, error) {
	var raw yamlLayout
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if raw.Name == "" {
		return nil, fmt.Errorf("layout must have a name")
	}
	if raw.Executable == "" {
		return nil, fmt.Errorf("layout must name the main executable")
	}
	if err := checkRelative("executable", raw.Executable); err != nil {
		return nil, err
	}

	startup, err := parseOptionalDuration(raw.Invocation.StartupBudget)
	if err != nil {
		return nil, fmt.Errorf("invocation.startup_budget: %w", err)
	}

	requiredDirs, err := convertPathRules("required_dirs", raw.RequiredDirs)
	if err != nil {
		return nil, err
	}
	requiredFiles, err := convertPathRules("required_files", raw.RequiredFiles)
	if err != nil {
		return nil, err
	}
	sizeBounds, err := convertSizeBounds(raw.SizeBounds)
	if err != nil {
		return nil, err
	}
	components, err := convertComponents(raw.Components)
	if err != nil {
		return nil, err
	}

	layout := &entities.Layout{
		Name:          raw.Name,
		Product:       raw.Product,
		Executable:    raw.Executable,
		Manifest:      raw.Manifest,
		Checksums:     raw.Checksums,
		Signature:     raw.Signature,
		Runtime:       entities.RuntimeSpec{Dir: raw.Runtime.Dir, VersionFile: raw.Runtime.VersionFile},
		RequiredDirs:  requiredDirs,
		RequiredFiles: requiredFiles,
		License:       raw.License,
		Documentation: entities.DocumentationSpec{
			File:     raw.Documentation.File,
			Sections: raw.Documentation.Sections,
		},
		Forbidden:     raw.Forbidden,
		SizeBounds:    sizeBounds,
		MaxPathLength: raw.MaxPathLength,
		HostTools:     raw.HostTools,
		MinFreeSpace:  int64(raw.MinFreeSpace),
		Invocation: entities.InvocationSpec{
			VersionArgs:     raw.Invocation.VersionArgs,
			HelpArgs:        raw.Invocation.HelpArgs,
			SmokeArgs:       raw.Invocation.SmokeArgs,
			InvalidArgs:     raw.Invocation.InvalidArgs,
			MissingFileArgs: raw.Invocation.MissingFileArgs,
			EnvProbeArgs:    raw.Invocation.EnvProbeArgs,
			EnvVars:         raw.Invocation.EnvVars,
			StartupBudget:   startup,
		},
		ComponentsDir: raw.ComponentsDir,
		Components:    components,
	}
	if layout.Product == "" {
		layout.Product = path.Base(raw.Executable)
	}
	for _, l := range raw.Launchers {
		layout.Launchers = append(layout.Launchers, entities.LauncherSpec{Path: l.Path, POSIX: l.POSIX})
	}

	return layout, nil
}

func convertPathRules(field string, rules []yamlPathRule) ([]entities.PathRule, error) {
	converted := make([]entities.PathRule, 0, len(rules))
	for i, r := range rules {
		if err := checkRelative(fmt.Sprintf("%s[%d]", field, i), r.Path); err != nil {
			return nil, err
		}
		tier, err := parseOptionalTier(r.MinTier)
		if err != nil {
			return nil, fmt.Errorf("%s[%d]: %w", field, i, err)
		}
		converted = append(converted, entities.PathRule{Path: r.Path, MinTier: tier})
	}
	return converted, nil
}

func convertSizeBounds(raw map[string]yamlSizeSpan) (map[entities.Tier]entities.SizeBound, error) {
	bounds := make(map[entities.Tier]entities.SizeBound, len(raw))
	for name, span := range raw {
		tier, err := entities.ParseTier(name)
		if err != nil {
			return nil, fmt.Errorf("size_bounds: %w", err)
		}
		if span.Max > 0 && span.Min > span.Max {
			return nil, fmt.Errorf("size_bounds.%s: min exceeds max", name)
		}
		bounds[tier] = entities.SizeBound{Min: int64(span.Min), Max: int64(span.Max)}
	}
	return bounds, nil
}

func convertComponents(raw []yamlComponent) ([]entities.ComponentSpec, error) {
	seen := make(map[string]bool, len(raw))
	components := make([]entities.ComponentSpec, 0, len(raw))
	for i, c := range raw {
		if c.Name == "" {
			return nil, fmt.Errorf("components[%d]: missing name", i)
		}
		if strings.ContainsAny(c.Name, `/\`) {
			return nil, fmt.Errorf("components[%d]: name %q must not contain path separators", i, c.Name)
		}
		if seen[c.Name] {
			return nil, fmt.Errorf("components[%d]: duplicate component %q", i, c.Name)
		}
		seen[c.Name] = true

		tier, err := parseOptionalTier(c.MinTier)
		if err != nil {
			return nil, fmt.Errorf("components[%d]: %w", i, err)
		}
		executable := c.Executable
		if executable == "" {
			executable = "bin/" + c.Name
		}

		components = append(components, entities.ComponentSpec{
			Name:        c.Name,
			MinTier:     tier,
			Executable:  executable,
			VersionArgs: c.VersionArgs,
			Files:       c.Files,
			Dirs:        c.Dirs,
			MaxSize:     int64(c.MaxSize),
		})
	}
	return components, nil
}

func parseOptionalTier(s string) (entities.Tier, error) {
	if s == "" {
		return entities.TierMinimal, nil
	}
	return entities.ParseTier(s)
}

func parseOptionalDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("duration must not be negative")
	}
	return d, nil
}

// checkRelative rejects absolute paths and paths escaping the artifact root
func checkRelative(field, p string) error {
	if p == "" {
		return fmt.Errorf("%s: empty path", field)
	}
	clean := path.Clean(p)
	if path.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, "../") {
		return fmt.Errorf("%s: path %q must stay inside the artifact", field, p)
	}
	return nil
}
