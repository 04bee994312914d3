package gateways

import (
	"context"
	"debug/elf"
	"debug/macho"
	"debug/pe"
	"encoding/binary"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/ochairo/distcheck/internal/domain/entities"
)

// elfHeader builds a minimal little-endian ELF64 header for the given machine
func elfHeader(machine elf.Machine) []byte {
	h := make([]byte, 64)
	copy(h, elf.ELFMAG)
	h[elf.EI_CLASS] = byte(elf.ELFCLASS64)
	h[elf.EI_DATA] = byte(elf.ELFDATA2LSB)
	h[elf.EI_VERSION] = byte(elf.EV_CURRENT)
	binary.LittleEndian.PutUint16(h[16:], uint16(elf.ET_EXEC))
	binary.LittleEndian.PutUint16(h[18:], uint16(machine))
	binary.LittleEndian.PutUint32(h[20:], uint32(elf.EV_CURRENT))
	return h
}

func machoHeader(cpu macho.Cpu) []byte {
	h := make([]byte, 32)
	binary.LittleEndian.PutUint32(h, macho.Magic64)
	binary.LittleEndian.PutUint32(h[4:], uint32(cpu))
	return h
}

func peHeader(machine uint16) []byte {
	h := make([]byte, 0x90)
	copy(h, "MZ")
	binary.LittleEndian.PutUint32(h[0x3c:], 0x80)
	copy(h[0x80:], "PE\x00\x00")
	binary.LittleEndian.PutUint16(h[0x84:], machine)
	return h
}

func writeBinary(t *testing.T, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tool")
	if err := os.WriteFile(path, content, 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestBinaryAnalyzer_Inspect(t *testing.T) {
	analyzer := NewBinaryAnalyzerGateway()

	tests := []struct {
		name       string
		content    []byte
		wantFormat entities.BinaryFormat
		wantArch   []entities.Architecture
	}{
		{"elf x64", elfHeader(elf.EM_X86_64), entities.FormatELF, []entities.Architecture{entities.ArchX64}},
		{"elf arm64", elfHeader(elf.EM_AARCH64), entities.FormatELF, []entities.Architecture{entities.ArchARM64}},
		{"elf riscv", elfHeader(elf.EM_RISCV), entities.FormatELF, nil},
		{"macho x64", machoHeader(macho.CpuAmd64), entities.FormatMachO, []entities.Architecture{entities.ArchX64}},
		{"macho arm64", machoHeader(macho.CpuArm64), entities.FormatMachO, []entities.Architecture{entities.ArchARM64}},
		{"pe x64", peHeader(pe.IMAGE_FILE_MACHINE_AMD64), entities.FormatPE, []entities.Architecture{entities.ArchX64}},
		{"pe arm64", peHeader(pe.IMAGE_FILE_MACHINE_ARM64), entities.FormatPE, []entities.Architecture{entities.ArchARM64}},
		{"pe i386", peHeader(pe.IMAGE_FILE_MACHINE_I386), entities.FormatPE, nil},
		{"script", []byte("#!/bin/sh\necho hi\n"), entities.FormatScript, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info, err := analyzer.Inspect(writeBinary(t, tt.content))
			if err != nil {
				t.Fatalf("Inspect() error = %v", err)
			}
			if info.Format != tt.wantFormat {
				t.Errorf("Inspect() format = %v, want %v", info.Format, tt.wantFormat)
			}
			if !reflect.DeepEqual(info.Architectures, tt.wantArch) {
				t.Errorf("Inspect() architectures = %v, want %v", info.Architectures, tt.wantArch)
			}
		})
	}
}

func TestBinaryAnalyzer_InspectScriptInterpreter(t *testing.T) {
	info, err := NewBinaryAnalyzerGateway().Inspect(writeBinary(t, []byte("#!/usr/bin/env bash\nexit 0\n")))
	if err != nil {
		t.Fatalf("Inspect() error = %v", err)
	}
	if info.Interpreter != "/usr/bin/env bash" {
		t.Errorf("Inspect() interpreter = %q, want %q", info.Interpreter, "/usr/bin/env bash")
	}
	if info.Native() {
		t.Error("script should not be reported as native")
	}
}

func TestBinaryAnalyzer_InspectErrors(t *testing.T) {
	analyzer := NewBinaryAnalyzerGateway()

	if _, err := analyzer.Inspect("/nonexistent/binary"); err == nil {
		t.Error("Inspect() on missing file should fail")
	}

	if _, err := analyzer.Inspect(writeBinary(t, []byte("not a binary"))); err == nil {
		t.Error("Inspect() on text file should fail")
	}

	truncated := peHeader(pe.IMAGE_FILE_MACHINE_AMD64)[:0x50]
	if _, err := analyzer.Inspect(writeBinary(t, truncated)); err == nil {
		t.Error("Inspect() on PE without signature should fail")
	}
}

func TestBinaryAnalyzer_InspectSelf(t *testing.T) {
	self, err := os.Executable()
	if err != nil {
		t.Skip("test executable path unavailable")
	}

	info, err := NewBinaryAnalyzerGateway().Inspect(self)
	if err != nil {
		t.Fatalf("Inspect() error = %v", err)
	}
	if !info.Native() {
		t.Errorf("Inspect() format = %v, want a native format", info.Format)
	}
}

func TestBinaryAnalyzer_AnalyzeHardeningRejectsScripts(t *testing.T) {
	_, err := NewBinaryAnalyzerGateway().AnalyzeHardening(context.Background(), writeBinary(t, []byte("#!/bin/sh\n")))
	if err == nil {
		t.Fatal("Expected error for script, got nil")
	}
	if !strings.Contains(err.Error(), "not supported") {
		t.Errorf("Expected 'not supported' error, got: %v", err)
	}
}

func TestBinaryAnalyzer_AnalyzeELFInvalidFile(t *testing.T) {
	_, err := NewBinaryAnalyzerGateway().analyzeELF(writeBinary(t, []byte("not an ELF")))
	if err == nil {
		t.Fatal("Expected error for invalid ELF file, got nil")
	}
	if !strings.Contains(err.Error(), "failed to open ELF file") {
		t.Errorf("Expected ELF error, got: %v", err)
	}
}

func TestBinaryAnalyzer_AnalyzeMachOInvalidFile(t *testing.T) {
	_, err := NewBinaryAnalyzerGateway().analyzeMachO(writeBinary(t, []byte("not a Mach-O")))
	if err == nil {
		t.Fatal("Expected error for invalid Mach-O file, got nil")
	}
	if !strings.Contains(err.Error(), "failed to open Mach-O file") {
		t.Errorf("Expected Mach-O error, got: %v", err)
	}
}

func TestCalculateHardeningScore(t *testing.T) {
	tests := []struct {
		name           string
		checks         []bool
		wantPassed     int
		wantPercentage int
	}{
		{"all pass", []bool{true, true, true, true}, 4, 100},
		{"none pass", []bool{false, false, false, false}, 0, 0},
		{"half pass", []bool{true, false, true, false}, 2, 50},
		{"no checks", nil, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score := calculateHardeningScore(tt.checks...)
			if score.Passed != tt.wantPassed {
				t.Errorf("Passed = %d, want %d", score.Passed, tt.wantPassed)
			}
			if score.Percentage != tt.wantPercentage {
				t.Errorf("Percentage = %d, want %d", score.Percentage, tt.wantPercentage)
			}
			if score.Total != len(tt.checks) {
				t.Errorf("Total = %d, want %d", score.Total, len(tt.checks))
			}
		})
	}
}
