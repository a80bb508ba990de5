//go:build !windows

package storage

import "errors"

var errHideUnsupported = errors.New("hide attribute unsupported")

// hideFile is a no-op outside Windows; dotfile renaming would change the
// blob name contract, so unsupported platforms just report degraded.
func hideFile(string) error {
	return errHideUnsupported
}
