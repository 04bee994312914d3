//go:build !windows

package gateways

import (
	"fmt"

	"golang.org/x/sys/unix"
)

func freeSpace(path string) (uint64, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return 0, fmt.Errorf("failed to stat filesystem: %w", err)
	}
	//nolint:gosec,unconvert // G115: block size is positive; field types vary by platform
	return uint64(stat.Bavail) * uint64(stat.Bsize), nil
}
