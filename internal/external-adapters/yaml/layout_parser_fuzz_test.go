package yaml

import (
	"testing"
)

// FuzzLayoutParser tests the YAML parser against random/malformed inputs
// to detect crashes, panics, or unexpected behavior.
//
// Run with: go test -fuzz=FuzzLayoutParser -fuzztime=30s
func FuzzLayoutParser(f *testing.F) {
	f.Add(DefaultLayoutYAML())

	f.Add([]byte(`name: tiny
executable: app
size_bounds:
  minimal: { min: 1B, max: 1KB }
components:
  - name: helper
    min_tier: full
`))

	f.Add([]byte(``))
	f.Add([]byte(`name: ""` + "\n"))
	f.Add([]byte(`{}`))
	f.Add([]byte(`[]`))
	f.Add([]byte("name: x\nexecutable: a\nmin_free_space: -1GB\n"))
	f.Add([]byte("name: x\nexecutable: a\nsize_bounds:\n  full: { max: 1e400GB }\n"))

	parser := NewLayoutParser()

	f.Fuzz(func(_ *testing.T, data []byte) {
		_, _ = parser.Parse(data)
	})
}
