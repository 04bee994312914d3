package services

import (
	"context"
	"fmt"

	"github.com/ochairo/distcheck/internal/domain/entities"
	"github.com/ochairo/distcheck/internal/domain/interfaces/gateways"
)

// minimumHardeningPercentage is the score below which a binary is rejected
const minimumHardeningPercentage = 50

// HardeningVerdict is the policy decision for one binary
type HardeningVerdict struct {
	Analysis *entities.BinaryAnalysis
	Missing  []string
	Blocked  bool
}

// HardeningService applies release policy to binary hardening analysis
type HardeningService struct {
	binaries gateways.BinaryInspector
}

// NewHardeningService creates a new hardening service with dependency injection
func NewHardeningService(binaries gateways.BinaryInspector) *HardeningService {
	return &HardeningService{binaries: binaries}
}

// Evaluate analyzes a binary and decides whether it meets the hardening policy
func (s *HardeningService) Evaluate(ctx context.Context, binaryPath string) (*HardeningVerdict, error) {
	// Delegate to gateway for the actual header analysis
	analysis, err := s.binaries.AnalyzeHardening(ctx, binaryPath)
	if err != nil {
		return nil, fmt.Errorf("binary analysis failed: %w", err)
	}

	return &HardeningVerdict{
		Analysis: analysis,
		Missing:  s.MissingFeatures(analysis),
		Blocked:  s.ShouldBlock(analysis),
	}, nil
}

// MissingFeatures lists the hardening features the binary lacks
// Pure business logic - no I/O
func (s *HardeningService) MissingFeatures(analysis *entities.BinaryAnalysis) []string {
	features := analysis.HardeningFeatures
	var missing []string
	if !features.PIEEnabled {
		missing = append(missing, "pie")
	}
	if !features.NXBit {
		missing = append(missing, "nx")
	}

	switch analysis.Format {
	case entities.FormatELF:
		if features.RELRO == "disabled" || features.RELRO == "" {
			missing = append(missing, "relro")
		}
		if !features.StackCanaries {
			missing = append(missing, "stack-canary")
		}
	case entities.FormatMachO:
		if !features.StackCanaries {
			missing = append(missing, "stack-canary")
		}
		if !features.CodeSigned {
			missing = append(missing, "code-signature")
		}
	}
	return missing
}

// ShouldBlock determines if a binary must be rejected
// Pure business logic - no I/O
func (s *HardeningService) ShouldBlock(analysis *entities.BinaryAnalysis) bool {
	// Block if the stack is executable
	if !analysis.HardeningFeatures.NXBit {
		return true
	}

	// Block if hardening score too low
	if analysis.SecurityScore.Percentage < minimumHardeningPercentage {
		return true
	}

	return false
}
