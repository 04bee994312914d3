package gateways

import (
	"fmt"

	"github.com/ochairo/distcheck/internal/external-adapters/gpg"
)

// gpgVerifier wraps the external GPG adapter to implement the domain gateway interface
type gpgVerifier struct {
	verifier *gpg.Verifier
}

// NewGPGVerifier creates a GPG verifier gateway backed by the keyring at keyringPath
//
//nolint:revive // unexported-return: Intentionally returns concrete type for testability
func NewGPGVerifier(keyringPath string) (*gpgVerifier, error) {
	v, err := gpg.NewVerifierFromFile(keyringPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load keyring %s: %w", keyringPath, err)
	}
	return &gpgVerifier{verifier: v}, nil
}

// VerifySignatureFromFile verifies a detached GPG signature from a local file
func (g *gpgVerifier) VerifySignatureFromFile(filePath, sigPath string) error {
	if err := g.verifier.VerifySignatureFromFile(filePath, sigPath); err != nil {
		return fmt.Errorf("GPG signature verification failed: %w", err)
	}
	return nil
}

// GetKeyringSize returns the number of keys loaded
func (g *gpgVerifier) GetKeyringSize() int {
	return g.verifier.GetKeyringSize()
}
