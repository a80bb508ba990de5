//go:build windows

package storage

import (
	"errors"

	"golang.org/x/sys/windows"
)

var errHideUnsupported = errors.New("hide attribute unsupported")

// hideFile marks the blob hidden and system so it stays out of normal
// directory listings.
func hideFile(path string) error {
	p, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return err
	}
	return windows.SetFileAttributes(p, windows.FILE_ATTRIBUTE_HIDDEN|windows.FILE_ATTRIBUTE_SYSTEM)
}
