package gateways

import (
	"os/exec"
	"runtime"

	"github.com/ochairo/distcheck/internal/domain/interfaces/gateways"
)

// HostProbe reports facts about the machine running the harness
type HostProbe struct{}

// NewHostProbe creates a new host probe
func NewHostProbe() *HostProbe {
	return &HostProbe{}
}

var _ gateways.HostProbe = (*HostProbe)(nil)

// FreeSpace returns the bytes available to unprivileged users on the volume holding path
func (h *HostProbe) FreeSpace(path string) (uint64, error) {
	return freeSpace(path)
}

// LookPath resolves a tool on PATH
func (h *HostProbe) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}

// OS returns the host operating system
func (h *HostProbe) OS() string {
	return runtime.GOOS
}
