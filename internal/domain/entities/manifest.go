package entities

// Manifest is the package's self-description shipped as JSON at the artifact root
type Manifest struct {
	Name           string              `json:"name"`
	Version        string              `json:"version"`
	Tier           string              `json:"tier"`
	Architecture   string              `json:"architecture"`
	RuntimeVersion string              `json:"runtime_version"`
	Components     []ManifestComponent `json:"components"`
}

// ManifestComponent lists one bundled component
type ManifestComponent struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// ComponentNames returns the names listed in the manifest in declaration order
func (m *Manifest) ComponentNames() []string {
	names := make([]string, 0, len(m.Components))
	for _, c := range m.Components {
		names = append(names, c.Name)
	}
	return names
}
