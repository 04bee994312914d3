// Package gateways defines interfaces for external service adapters.
package gateways

import (
	"context"

	"github.com/ochairo/distcheck/internal/domain/entities"
)

// LocateOptions tunes how an artifact path is resolved
type LocateOptions struct {
	// ExtractTo is a caller-owned directory to extract archives into. It is never
	// removed, and a matching extraction marker lets later runs skip extraction.
	ExtractTo string
}

// ArtifactLocator resolves a directory or archive path to a usable artifact root
type ArtifactLocator interface {
	Locate(ctx context.Context, path string, opts LocateOptions) (*entities.Artifact, error)
}
