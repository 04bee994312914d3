package checks

import (
	"bufio"
	"bytes"
	"context"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/ochairo/distcheck/internal/domain/entities"
)

func structureChecks() []Check {
	def := func(id, description string) entities.CheckDefinition {
		return entities.CheckDefinition{
			ID:          id,
			Category:    entities.CategoryStructure,
			Description: description,
			MinTier:     entities.TierMinimal,
		}
	}
	walking := func(d entities.CheckDefinition) entities.CheckDefinition {
		d.Timeout = FilesystemLimit
		return d
	}

	return []Check{
		{def("structure.required-dirs", "Directories required for the tier exist"), checkRequiredDirs},
		{def("structure.required-files", "Files required for the tier exist"), checkRequiredFiles},
		{def("structure.launchers", "Launcher scripts exist and are runnable"), checkLaunchers},
		{def("structure.license", "License file is shipped"), checkLicense},
		{def("structure.documentation", "README contains the required sections"), checkDocumentation},
		{walking(def("structure.forbidden-files", "No development leftovers are shipped")), checkForbiddenFiles},
		{walking(def("structure.symlinks", "Symbolic links resolve inside the artifact")), checkSymlinks},
		{walking(def("structure.size-bounds", "Total size is within the tier bounds")), checkSizeBounds},
		{def("structure.component-set", "Bundled components match the tier"), checkComponentSet},
	}
}

func applicablePaths(rules []entities.PathRule, tier entities.Tier) []string {
	var paths []string
	for _, r := range rules {
		minTier := r.MinTier
		if minTier == "" {
			minTier = entities.TierMinimal
		}
		if tier.AtLeast(minTier) {
			paths = append(paths, r.Path)
		}
	}
	return paths
}

func checkRequiredDirs(_ context.Context, env *Env) entities.Outcome {
	dirs := applicablePaths(env.Layout.RequiredDirs, env.Profile.Tier)
	var missing []string
	for _, dir := range dirs {
		if info, err := env.stat(dir); err != nil || !info.IsDir() {
			missing = append(missing, dir)
		}
	}
	if len(missing) > 0 {
		return entities.Fail("missing directories: %s", summarizeList(missing, 10))
	}
	return entities.Pass("%d required directories present", len(dirs))
}

func checkRequiredFiles(_ context.Context, env *Env) entities.Outcome {
	files := applicablePaths(env.Layout.RequiredFiles, env.Profile.Tier)
	var missing []string
	for _, file := range files {
		if info, err := env.stat(file); err != nil || !info.Mode().IsRegular() {
			missing = append(missing, file)
		}
	}
	if len(missing) > 0 {
		return entities.Fail("missing files: %s", summarizeList(missing, 10))
	}
	return entities.Pass("%d required files present", len(files))
}

func checkLaunchers(_ context.Context, env *Env) entities.Outcome {
	if len(env.Layout.Launchers) == 0 {
		return entities.Skip("layout declares no launchers")
	}
	var problems []string
	for _, launcher := range env.Layout.Launchers {
		info, err := env.stat(launcher.Path)
		if err != nil {
			problems = append(problems, launcher.Path+" is missing")
			continue
		}
		if !isExecutable(info) {
			problems = append(problems, launcher.Path+" is not executable")
		}
		if launcher.POSIX {
			line, err := firstLine(env.Artifact.Path(launcher.Path))
			if err != nil || !strings.HasPrefix(line, "#!") {
				problems = append(problems, launcher.Path+" has no interpreter line")
			}
		}
	}
	if len(problems) > 0 {
		return entities.Fail("%s", strings.Join(problems, "; "))
	}
	return entities.Pass("%d launchers present", len(env.Layout.Launchers))
}

func firstLine(path string) (string, error) {
	//nolint:gosec // G304: path is inside the artifact under test
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	//nolint:errcheck // Defer close on read-only file
	defer f.Close()

	line, err := bufio.NewReader(f).ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func checkLicense(_ context.Context, env *Env) entities.Outcome {
	rel := env.Layout.License
	if rel == "" {
		return entities.Skip("layout declares no license file")
	}
	//nolint:gosec // G304: path is inside the artifact under test
	data, err := os.ReadFile(env.Artifact.Path(rel))
	if err != nil {
		return entities.Fail("license file %s is missing", rel)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return entities.Fail("license file %s is empty", rel)
	}
	return entities.Pass("%s present", rel)
}

func checkDocumentation(_ context.Context, env *Env) entities.Outcome {
	doc := env.Layout.Documentation
	if doc.File == "" {
		return entities.Skip("layout declares no documentation")
	}
	if _, err := env.stat(doc.File); err != nil {
		return entities.Fail("documentation %s is missing", doc.File)
	}
	headings, err := env.Tools.Documents.Headings(env.Artifact.Path(doc.File))
	if err != nil {
		return entities.Errorf("failed to parse %s: %v", doc.File, err)
	}

	have := make(map[string]bool, len(headings))
	for _, h := range headings {
		have[strings.ToLower(strings.TrimSpace(h))] = true
	}
	var missing []string
	for _, section := range doc.Sections {
		if !have[strings.ToLower(section)] {
			missing = append(missing, section)
		}
	}
	if len(missing) > 0 {
		return entities.Fail("%s lacks sections: %s", doc.File, strings.Join(missing, ", ")).
			WithOutput("headings found:\n" + strings.Join(headings, "\n") + "\n")
	}
	return entities.Pass("%s has %d headings", doc.File, len(headings))
}

// forbiddenMatch matches a glob against the base name and the full relative path
func forbiddenMatch(patterns []string, rel string) (string, bool) {
	base := path.Base(rel)
	for _, pattern := range patterns {
		if ok, _ := path.Match(pattern, base); ok {
			return pattern, true
		}
		if ok, _ := path.Match(pattern, rel); ok {
			return pattern, true
		}
	}
	return "", false
}

func checkForbiddenFiles(ctx context.Context, env *Env) entities.Outcome {
	if len(env.Layout.Forbidden) == 0 {
		return entities.Skip("layout forbids nothing")
	}
	var found []string
	var transcript strings.Builder
	err := env.walkArtifact(ctx, func(rel string, d fs.DirEntry) error {
		if pattern, ok := forbiddenMatch(env.Layout.Forbidden, rel); ok {
			found = append(found, rel)
			transcript.WriteString(rel + " matches " + pattern + "\n")
			if d.IsDir() {
				return filepath.SkipDir
			}
		}
		return nil
	})
	if err != nil {
		return entities.Errorf("failed to walk artifact: %v", err)
	}
	if len(found) > 0 {
		return entities.Fail("%d forbidden entries: %s", len(found), summarizeList(found, 5)).
			WithOutput(transcript.String())
	}
	return entities.Pass("no forbidden entries")
}

func checkSymlinks(ctx context.Context, env *Env) entities.Outcome {
	root := env.Artifact.Root
	var broken []string
	links := 0
	err := env.walkArtifact(ctx, func(rel string, d fs.DirEntry) error {
		if d.Type()&fs.ModeSymlink == 0 {
			return nil
		}
		links++
		full := env.Artifact.Path(rel)
		target, err := os.Readlink(full)
		if err != nil {
			broken = append(broken, rel)
			return nil
		}
		if !filepath.IsAbs(target) {
			target = filepath.Join(filepath.Dir(full), target)
		}
		inside, err := filepath.Rel(root, target)
		if err != nil || inside == ".." || strings.HasPrefix(inside, ".."+string(filepath.Separator)) {
			broken = append(broken, rel)
			return nil
		}
		if _, err := os.Stat(full); err != nil {
			broken = append(broken, rel)
		}
		return nil
	})
	if err != nil {
		return entities.Errorf("failed to walk artifact: %v", err)
	}
	if len(broken) > 0 {
		return entities.Fail("%d dangling or escaping links: %s", len(broken), summarizeList(broken, 5))
	}
	return entities.Pass("%d links resolve inside the artifact", links)
}

func checkSizeBounds(ctx context.Context, env *Env) entities.Outcome {
	bound, ok := env.Layout.SizeBounds[env.Profile.Tier]
	if !ok {
		return entities.Skip("layout sets no size bounds for %s", env.Profile.Tier)
	}
	size, err := treeSize(ctx, env.Artifact.Root)
	if err != nil {
		return entities.Errorf("failed to measure artifact: %v", err)
	}
	if size < bound.Min {
		return entities.Fail("artifact is %s, below the %s minimum of %s", formatBytes(size), env.Profile.Tier, formatBytes(bound.Min))
	}
	if bound.Max > 0 && size > bound.Max {
		return entities.Fail("artifact is %s, above the %s maximum of %s", formatBytes(size), env.Profile.Tier, formatBytes(bound.Max))
	}
	return entities.Pass("artifact is %s", formatBytes(size))
}

func checkComponentSet(_ context.Context, env *Env) entities.Outcome {
	required := env.Layout.RequiredComponents(env.Profile.Tier)
	want := make(map[string]bool, len(required))
	for _, name := range required {
		want[name] = true
	}

	var unexpected []string
	have := make(map[string]bool)
	for _, name := range env.Profile.Components {
		have[name] = true
		if !want[name] {
			unexpected = append(unexpected, name)
		}
	}
	var missing []string
	for _, name := range required {
		if !have[name] {
			missing = append(missing, name)
		}
	}

	var problems []string
	if len(missing) > 0 {
		problems = append(problems, "missing "+summarizeList(missing, 10))
	}
	if len(unexpected) > 0 {
		problems = append(problems, "not part of "+string(env.Profile.Tier)+": "+summarizeList(unexpected, 10))
	}
	if len(problems) > 0 {
		return entities.Fail("component set does not match %s: %s", env.Profile.Tier, strings.Join(problems, "; "))
	}
	return entities.Pass("%d components match %s", len(required), env.Profile.Tier)
}
