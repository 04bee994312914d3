package entities

import "time"

// RunConfiguration holds the user-supplied parameters of one run. It is read-only once built.
type RunConfiguration struct {
	ArtifactPath string            `json:"artifact_path"`
	Tier         Tier              `json:"tier,omitempty"`
	Architecture Architecture      `json:"architecture,omitempty"`
	Categories   []Category        `json:"categories,omitempty"`
	Timeout      time.Duration     `json:"timeout_ns,omitempty"`
	OutputDir    string            `json:"output_dir"`
	Verbose      bool              `json:"verbose"`
	Parallel     int               `json:"parallel"`
	LayoutFile   string            `json:"layout_file,omitempty"`
	KeyringFile  string            `json:"keyring_file,omitempty"`
	ExtractTo    string            `json:"extract_to,omitempty"`
	HistoryFile  string            `json:"history_file,omitempty"`
	Bundle       bool              `json:"bundle"`
	ExtraEnv     map[string]string `json:"-"`
	HostEnv      map[string]string `json:"-"`
}

// CategoryAllowed reports whether the category filter admits c. An empty filter admits everything.
func (c RunConfiguration) CategoryAllowed(category Category) bool {
	if len(c.Categories) == 0 {
		return true
	}
	for _, allowed := range c.Categories {
		if allowed == category {
			return true
		}
	}
	return false
}
