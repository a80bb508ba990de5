package vault

import (
	"github.com/Khoirul-Yardan/JUMANV4/internal/crypto"
	"github.com/Khoirul-Yardan/JUMANV4/internal/keyring"
	"github.com/Khoirul-Yardan/JUMANV4/internal/storage"
)

// The vault error taxonomy. These alias the sub-package sentinels so
// callers can match with errors.Is at this boundary alone.
var (
	// ErrConfigMissing: the directory was never initialized.
	ErrConfigMissing = keyring.ErrConfigMissing

	// ErrAuthentication: the password failed to unwrap the master key.
	ErrAuthentication = keyring.ErrAuthentication

	// ErrIntegrity: a blob or backup failed its authentication tag.
	ErrIntegrity = crypto.ErrIntegrity

	// ErrNotFound: no stored file matches the lookup.
	ErrNotFound = storage.ErrNotFound

	// ErrAmbiguous: the lookup matches more than one stored file.
	ErrAmbiguous = storage.ErrAmbiguous
)
