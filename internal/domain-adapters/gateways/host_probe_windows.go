//go:build windows

package gateways

import (
	"fmt"

	"golang.org/x/sys/windows"
)

func freeSpace(path string) (uint64, error) {
	dir, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return 0, fmt.Errorf("invalid path: %w", err)
	}
	var available, total, totalFree uint64
	if err := windows.GetDiskFreeSpaceEx(dir, &available, &total, &totalFree); err != nil {
		return 0, fmt.Errorf("failed to query disk space: %w", err)
	}
	return available, nil
}
