package gateways

import (
	"context"

	"github.com/ochairo/distcheck/internal/domain/entities"
)

// BinaryInspector reads executable headers
type BinaryInspector interface {
	// Inspect identifies the format and machine type of an executable
	Inspect(path string) (*entities.BinaryInfo, error)

	// AnalyzeHardening reports security hardening features of a native binary
	AnalyzeHardening(ctx context.Context, path string) (*entities.BinaryAnalysis, error)
}

// ChecksumEntry is one line of a checksum file
type ChecksumEntry struct {
	Path string
	Sum  string
}

// ChecksumVerifier computes and parses SHA-256 checksums
type ChecksumVerifier interface {
	CalculateChecksum(path string) (string, error)
	VerifyChecksum(ctx context.Context, path, expectedSum string) error
	ParseChecksumFile(path string) ([]ChecksumEntry, error)
}

// ManifestValidator decodes a manifest and validates it against the manifest schema
type ManifestValidator interface {
	Validate(data []byte) (*entities.Manifest, error)
}

// DocumentInspector extracts the heading outline of a Markdown document
type DocumentInspector interface {
	Headings(path string) ([]string, error)
}

// SignatureVerifier checks detached signatures against a preloaded keyring
type SignatureVerifier interface {
	VerifySignatureFromFile(filePath, sigPath string) error
	GetKeyringSize() int
}
