package gateways

import (
	"fmt"

	"github.com/ochairo/distcheck/internal/domain/checks"
	"github.com/ochairo/distcheck/internal/domain/interfaces"
	"github.com/ochairo/distcheck/internal/external-adapters/cue"
	"github.com/ochairo/distcheck/internal/external-adapters/markdown"
)

// NewToolkit composes every gateway the check catalog uses. The signature verifier is
// only created when a keyring path is given.
func NewToolkit(logger interfaces.Logger, keyringPath string) (checks.Toolkit, error) {
	manifests, err := cue.NewManifestValidator()
	if err != nil {
		return checks.Toolkit{}, err
	}

	toolkit := checks.Toolkit{
		Binaries:  NewBinaryAnalyzerGateway(),
		Checksums: NewChecksumVerifier(),
		Manifests: manifests,
		Documents: markdown.NewInspector(),
		Processes: NewProcessRunner(logger),
		Host:      NewHostProbe(),
	}

	if keyringPath != "" {
		verifier, err := NewGPGVerifier(keyringPath)
		if err != nil {
			return checks.Toolkit{}, fmt.Errorf("failed to load keyring: %w", err)
		}
		toolkit.Signatures = verifier
	}

	return toolkit, nil
}
