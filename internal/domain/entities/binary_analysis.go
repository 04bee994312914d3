package entities

// BinaryFormat is the container format of an executable
type BinaryFormat string

// Recognized executable formats
const (
	FormatELF    BinaryFormat = "elf"
	FormatMachO  BinaryFormat = "macho"
	FormatPE     BinaryFormat = "pe"
	FormatScript BinaryFormat = "script"
)

// BinaryInfo describes the header of an executable file
type BinaryInfo struct {
	Format        BinaryFormat
	Machine       string         // raw machine name from the header, e.g. "EM_X86_64"
	Architectures []Architecture // more than one for universal Mach-O files, empty if unsupported
	Interpreter   string         // shebang interpreter for scripts
}

// Supports reports whether the binary carries code for arch
func (b *BinaryInfo) Supports(arch Architecture) bool {
	for _, candidate := range b.Architectures {
		if candidate == arch {
			return true
		}
	}
	return false
}

// Native reports whether the file is a compiled executable rather than a script
func (b *BinaryInfo) Native() bool {
	return b.Format == FormatELF || b.Format == FormatMachO || b.Format == FormatPE
}

// BinaryAnalysis represents security analysis results for a binary
type BinaryAnalysis struct {
	Format            BinaryFormat
	HardeningFeatures HardeningFeatures
	SecurityScore     SecurityScore
}

// HardeningFeatures represents security hardening features detected in a binary
type HardeningFeatures struct {
	PIEEnabled    bool   // Position Independent Executable
	StackCanaries bool   // Stack canary protection
	RELRO         string // "full", "partial", "disabled" - RELocation Read-Only
	NXBit         bool   // No-eXecute bit (non-executable stack)
	CodeSigned    bool   // Code signing (macOS)
	FortifySource bool   // FORTIFY_SOURCE (Linux)
}

// SecurityScore represents a calculated security score for a binary
type SecurityScore struct {
	Total      int // Total number of checks
	Passed     int // Number of checks passed
	Percentage int // Percentage of checks passed
}
