package gateways

import (
	"bufio"
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/ochairo/distcheck/internal/domain/interfaces/gateways"
)

// checksumVerifier computes SHA-256 sums and parses sha256sum-style listings
type checksumVerifier struct{}

// NewChecksumVerifier creates a new checksum verifier
//
//nolint:revive // unexported-return: Intentionally returns concrete type for testability
func NewChecksumVerifier() *checksumVerifier {
	return &checksumVerifier{}
}

// VerifyChecksum verifies a file's SHA-256 checksum
func (v *checksumVerifier) VerifyChecksum(ctx context.Context, filePath, expectedSum string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	actualSum, err := v.CalculateChecksum(filePath)
	if err != nil {
		return err
	}

	if !strings.EqualFold(actualSum, expectedSum) {
		return fmt.Errorf("checksum mismatch: expected %s, got %s", expectedSum, actualSum)
	}

	return nil
}

// CalculateChecksum calculates the SHA-256 checksum of a file
func (v *checksumVerifier) CalculateChecksum(filePath string) (string, error) {
	sum, err := fileSHA256(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to hash file: %w", err)
	}
	return sum, nil
}

// ParseChecksumFile reads a listing of "<hex>  <path>" lines. Binary-mode
// markers ("<hex> *<path>"), blank lines and # comments are accepted.
func (v *checksumVerifier) ParseChecksumFile(filePath string) ([]gateways.ChecksumEntry, error) {
	//nolint:gosec // G304: checksum file is part of the artifact under test
	f, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open checksum file: %w", err)
	}
	//nolint:errcheck // Defer close on read-only file
	defer f.Close()

	var entries []gateways.ChecksumEntry
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		sum, name, ok := strings.Cut(line, " ")
		if !ok {
			return nil, fmt.Errorf("line %d: expected \"<sha256>  <path>\"", lineNo)
		}
		if len(sum) != 64 {
			return nil, fmt.Errorf("line %d: checksum has %d characters, want 64", lineNo, len(sum))
		}
		if _, err := hex.DecodeString(sum); err != nil {
			return nil, fmt.Errorf("line %d: checksum is not hexadecimal", lineNo)
		}

		name = strings.TrimLeft(name, " ")
		name = strings.TrimPrefix(name, "*")
		name = strings.TrimPrefix(path.Clean(name), "./")
		if name == "" || name == "." {
			return nil, fmt.Errorf("line %d: missing path", lineNo)
		}

		entries = append(entries, gateways.ChecksumEntry{Path: name, Sum: strings.ToLower(sum)})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read checksum file: %w", err)
	}

	return entries, nil
}
