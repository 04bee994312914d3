// Package gateways provides adapter implementations for external services and tools.
package gateways

import (
	"bytes"
	"context"
	"debug/elf"
	"debug/macho"
	"debug/pe"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ochairo/distcheck/internal/domain/entities"
)

// headerProbeSize is enough to reach the PE signature of ordinary executables
const headerProbeSize = 4096

// binaryAnalyzerGateway reads executable headers using debug/elf, debug/macho
// and debug/pe - no external tools required
type binaryAnalyzerGateway struct{}

// NewBinaryAnalyzerGateway creates a new binary analyzer gateway
//
//nolint:revive // unexported-return: Intentionally returns concrete type for testability
func NewBinaryAnalyzerGateway() *binaryAnalyzerGateway {
	return &binaryAnalyzerGateway{}
}

// Inspect identifies the container format and target machine of an executable
func (g *binaryAnalyzerGateway) Inspect(path string) (*entities.BinaryInfo, error) {
	//nolint:gosec // G304: path is an executable inside the artifact under test
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open binary: %w", err)
	}
	//nolint:errcheck // Defer close on read-only file
	defer f.Close()

	header := make([]byte, headerProbeSize)
	n, err := io.ReadFull(f, header)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to read binary header: %w", err)
	}
	header = header[:n]

	switch {
	case bytes.HasPrefix(header, []byte(elf.ELFMAG)):
		return inspectELF(header)
	case isMachO(header):
		return inspectMachO(header)
	case isFatMachO(header):
		return inspectFatMachO(path)
	case bytes.HasPrefix(header, []byte("MZ")):
		return inspectPE(header)
	case bytes.HasPrefix(header, []byte("#!")):
		line, _, _ := bytes.Cut(header[2:], []byte("\n"))
		return &entities.BinaryInfo{
			Format:      entities.FormatScript,
			Machine:     "script",
			Interpreter: strings.TrimSpace(string(line)),
		}, nil
	default:
		return nil, fmt.Errorf("unrecognized executable format")
	}
}

func inspectELF(header []byte) (*entities.BinaryInfo, error) {
	if len(header) < 20 {
		return nil, fmt.Errorf("truncated ELF header")
	}

	var order binary.ByteOrder
	switch elf.Data(header[elf.EI_DATA]) {
	case elf.ELFDATA2LSB:
		order = binary.LittleEndian
	case elf.ELFDATA2MSB:
		order = binary.BigEndian
	default:
		return nil, fmt.Errorf("invalid ELF data encoding %d", header[elf.EI_DATA])
	}

	machine := elf.Machine(order.Uint16(header[18:20]))
	info := &entities.BinaryInfo{
		Format:  entities.FormatELF,
		Machine: machine.String(),
	}
	switch machine {
	case elf.EM_X86_64:
		info.Architectures = []entities.Architecture{entities.ArchX64}
	case elf.EM_AARCH64:
		info.Architectures = []entities.Architecture{entities.ArchARM64}
	}
	return info, nil
}

func isMachO(header []byte) bool {
	if len(header) < 4 {
		return false
	}
	magic := binary.LittleEndian.Uint32(header)
	return magic == macho.Magic64 || magic == macho.Magic32
}

func isFatMachO(header []byte) bool {
	// Java class files share the magic; they never declare more than a handful of arches
	return len(header) >= 8 &&
		binary.BigEndian.Uint32(header) == macho.MagicFat &&
		binary.BigEndian.Uint32(header[4:8]) < 20
}

func inspectMachO(header []byte) (*entities.BinaryInfo, error) {
	if len(header) < 8 {
		return nil, fmt.Errorf("truncated Mach-O header")
	}
	cpu := macho.Cpu(binary.LittleEndian.Uint32(header[4:8]))
	return &entities.BinaryInfo{
		Format:        entities.FormatMachO,
		Machine:       cpu.String(),
		Architectures: machoArchitectures(cpu),
	}, nil
}

func inspectFatMachO(path string) (*entities.BinaryInfo, error) {
	fat, err := macho.OpenFat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open universal Mach-O file: %w", err)
	}
	//nolint:errcheck // Defer close on read-only file
	defer fat.Close()

	info := &entities.BinaryInfo{Format: entities.FormatMachO}
	machines := make([]string, 0, len(fat.Arches))
	for _, arch := range fat.Arches {
		machines = append(machines, arch.Cpu.String())
		info.Architectures = append(info.Architectures, machoArchitectures(arch.Cpu)...)
	}
	info.Machine = strings.Join(machines, ",")
	return info, nil
}

func machoArchitectures(cpu macho.Cpu) []entities.Architecture {
	switch cpu {
	case macho.CpuAmd64:
		return []entities.Architecture{entities.ArchX64}
	case macho.CpuArm64:
		return []entities.Architecture{entities.ArchARM64}
	default:
		return nil
	}
}

func inspectPE(header []byte) (*entities.BinaryInfo, error) {
	if len(header) < 0x40 {
		return nil, fmt.Errorf("truncated PE header")
	}
	offset := int(binary.LittleEndian.Uint32(header[0x3c:0x40]))
	if offset < 0 || offset+6 > len(header) || !bytes.Equal(header[offset:offset+4], []byte("PE\x00\x00")) {
		return nil, fmt.Errorf("missing PE signature")
	}

	machine := binary.LittleEndian.Uint16(header[offset+4 : offset+6])
	info := &entities.BinaryInfo{Format: entities.FormatPE}
	switch machine {
	case pe.IMAGE_FILE_MACHINE_AMD64:
		info.Machine = "IMAGE_FILE_MACHINE_AMD64"
		info.Architectures = []entities.Architecture{entities.ArchX64}
	case pe.IMAGE_FILE_MACHINE_ARM64:
		info.Machine = "IMAGE_FILE_MACHINE_ARM64"
		info.Architectures = []entities.Architecture{entities.ArchARM64}
	default:
		info.Machine = fmt.Sprintf("0x%04x", machine)
	}
	return info, nil
}

// AnalyzeHardening reports security hardening features of a native binary
func (g *binaryAnalyzerGateway) AnalyzeHardening(_ context.Context, binaryPath string) (*entities.BinaryAnalysis, error) {
	info, err := g.Inspect(binaryPath)
	if err != nil {
		return nil, err
	}

	switch info.Format {
	case entities.FormatELF:
		return g.analyzeELF(binaryPath)
	case entities.FormatMachO:
		return g.analyzeMachO(binaryPath)
	default:
		return nil, fmt.Errorf("hardening analysis not supported for %s files", info.Format)
	}
}

// analyzeELF analyzes a Linux ELF binary using debug/elf
func (g *binaryAnalyzerGateway) analyzeELF(binaryPath string) (*entities.BinaryAnalysis, error) {
	f, err := elf.Open(binaryPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open ELF file: %w", err)
	}
	//nolint:errcheck // Defer close on read-only file
	defer f.Close()

	features := entities.HardeningFeatures{}

	features.PIEEnabled = f.Type == elf.ET_DYN

	features.RELRO = "disabled"
	for _, prog := range f.Progs {
		if prog.Type == elf.PT_GNU_RELRO {
			features.RELRO = "partial"
			break
		}
	}
	if features.RELRO == "partial" && bindNow(f) {
		features.RELRO = "full"
	}

	// A missing PT_GNU_STACK means the toolchain default, which is non-executable
	features.NXBit = true
	for _, prog := range f.Progs {
		if prog.Type == elf.PT_GNU_STACK {
			features.NXBit = (prog.Flags & elf.PF_X) == 0
			break
		}
	}

	symbols, _ := f.Symbols()
	dynamic, _ := f.DynamicSymbols()
	for _, sym := range append(symbols, dynamic...) {
		switch {
		case sym.Name == "__stack_chk_fail":
			features.StackCanaries = true
		case strings.HasSuffix(sym.Name, "_chk"):
			features.FortifySource = true
		}
	}

	return &entities.BinaryAnalysis{
		Format:            entities.FormatELF,
		HardeningFeatures: features,
		SecurityScore: calculateHardeningScore(
			features.PIEEnabled,
			features.NXBit,
			features.RELRO != "disabled",
			features.StackCanaries,
		),
	}, nil
}

func bindNow(f *elf.File) bool {
	if flags, err := f.DynValue(elf.DT_FLAGS); err == nil {
		for _, v := range flags {
			if elf.DynFlag(v)&elf.DF_BIND_NOW != 0 {
				return true
			}
		}
	}
	if flags, err := f.DynValue(elf.DT_FLAGS_1); err == nil {
		for _, v := range flags {
			if elf.DynFlag1(v)&elf.DF_1_NOW != 0 {
				return true
			}
		}
	}
	if v, err := f.DynValue(elf.DT_BIND_NOW); err == nil && len(v) > 0 {
		return true
	}
	return false
}

// analyzeMachO analyzes a macOS Mach-O binary using debug/macho
func (g *binaryAnalyzerGateway) analyzeMachO(binaryPath string) (*entities.BinaryAnalysis, error) {
	f, err := macho.Open(binaryPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open Mach-O file: %w", err)
	}
	//nolint:errcheck // Defer close on read-only file
	defer f.Close()

	features := entities.HardeningFeatures{
		PIEEnabled: (f.Flags & macho.FlagPIE) != 0,
		NXBit:      (f.Flags & macho.FlagAllowStackExecution) == 0,
		RELRO:      "disabled",
	}

	if symtab := f.Symtab; symtab != nil {
		for _, sym := range symtab.Syms {
			if strings.Contains(sym.Name, "__stack_chk_fail") {
				features.StackCanaries = true
				break
			}
		}
	}

	const loadCmdCodeSignature = 0x1d
	for _, load := range f.Loads {
		raw := load.Raw()
		if len(raw) >= 4 && f.ByteOrder.Uint32(raw) == loadCmdCodeSignature {
			features.CodeSigned = true
			break
		}
	}

	return &entities.BinaryAnalysis{
		Format:            entities.FormatMachO,
		HardeningFeatures: features,
		SecurityScore: calculateHardeningScore(
			features.PIEEnabled,
			features.NXBit,
			features.StackCanaries,
			features.CodeSigned,
		),
	}, nil
}

// calculateHardeningScore counts the satisfied hardening checks
func calculateHardeningScore(checks ...bool) entities.SecurityScore {
	passed := 0
	for _, check := range checks {
		if check {
			passed++
		}
	}

	percentage := 0
	if len(checks) > 0 {
		percentage = (passed * 100) / len(checks)
	}

	return entities.SecurityScore{
		Total:      len(checks),
		Passed:     passed,
		Percentage: percentage,
	}
}
