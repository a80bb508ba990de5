// Package storage maps logical files to encrypted blobs on disk. Each
// stored file becomes one blob named <uuid>__<sanitized-name>.jmn whose
// contents are a nonce-prefixed AES-GCM ciphertext under the master key.
package storage

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/Khoirul-Yardan/JUMANV4/internal/crypto"
	"github.com/Khoirul-Yardan/JUMANV4/internal/shred"
)

// BlobSuffix is appended to every stored blob name.
const BlobSuffix = ".jmn"

// separator splits the identifier from the sanitized original name.
const separator = "__"

var (
	// ErrNotFound is returned when no blob matches a lookup.
	ErrNotFound = errors.New("stored file not found")

	// ErrAmbiguous is returned when a tolerant lookup tier matches more
	// than one blob. The caller must use the full blob name or the full
	// identifier instead.
	ErrAmbiguous = errors.New("name matches multiple stored files")
)

// StoreResult reports how a store completed.
type StoreResult struct {
	// Name is the blob file name under the storage directory.
	Name string

	// ID is the generated identifier portion of the name.
	ID string

	// Hidden is set when the OS hide attribute was applied to the blob.
	Hidden bool

	// SourceRemoved is set by StoreFile when the plaintext source no
	// longer exists.
	SourceRemoved bool

	// SourceErased is set by StoreFile when the plaintext source was
	// securely overwritten before deletion, not just unlinked.
	SourceErased bool

	// Degraded is set when any best-effort step (hide attribute, source
	// erase) fell back to weaker behavior.
	Degraded bool
}

// DeleteResult reports how a delete completed.
type DeleteResult struct {
	// Name is the blob that was removed.
	Name string

	// Degraded is set when the blob was removed with a plain delete
	// because secure overwriting failed.
	Degraded bool
}

// Options configures a Manager.
type Options struct {
	// Shredder erases plaintext sources and deleted blobs. Defaults to a
	// single-pass shredder.
	Shredder *shred.Shredder

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Manager owns one storage directory of encrypted blobs.
type Manager struct {
	dir      string
	shredder *shred.Shredder
	logger   *slog.Logger
}

// New returns a Manager for the given storage directory.
func New(dir string, opts Options) *Manager {
	shredder := opts.Shredder
	if shredder == nil {
		shredder = shred.New(shred.DefaultPasses)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{dir: dir, shredder: shredder, logger: logger}
}

// Dir returns the storage directory.
func (m *Manager) Dir() string {
	return m.dir
}

// Store encrypts content under key and writes it as a new blob. The
// original name is sanitized and combined with a fresh identifier.
// Either a complete blob is written or nothing is left behind.
func (m *Manager) Store(content []byte, originalName string, key []byte) (StoreResult, error) {
	if err := os.MkdirAll(m.dir, 0o700); err != nil {
		return StoreResult{}, fmt.Errorf("create storage directory: %w", err)
	}

	blob, err := crypto.Encrypt(key, content)
	if err != nil {
		return StoreResult{}, fmt.Errorf("encrypt content: %w", err)
	}

	id := uuid.New().String()
	name := id + separator + SanitizeName(originalName) + BlobSuffix
	path := filepath.Join(m.dir, name)

	if err := os.WriteFile(path, blob, 0o600); err != nil {
		os.Remove(path)
		return StoreResult{}, fmt.Errorf("write blob: %w", err)
	}

	res := StoreResult{Name: name, ID: id}
	if err := hideFile(path); err != nil {
		if !errors.Is(err, errHideUnsupported) {
			m.logger.Warn("could not hide blob", "name", name, "error", err)
		}
		res.Degraded = true
	} else {
		res.Hidden = true
	}
	return res, nil
}

// StoreFile stores the file at path and then best-effort erases the
// plaintext source. Erase failure degrades the result, it never fails
// the store.
func (m *Manager) StoreFile(path string, key []byte) (StoreResult, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return StoreResult{}, fmt.Errorf("read source file: %w", err)
	}

	res, err := m.Store(content, filepath.Base(path), key)
	if err != nil {
		return StoreResult{}, err
	}

	eraseRes, eraseErr := m.shredder.Erase(path)
	switch {
	case eraseErr != nil:
		m.logger.Warn("could not erase plaintext source", "path", path, "error", eraseErr)
		res.Degraded = true
	case eraseRes.Degraded:
		m.logger.Warn("plaintext source removed without secure overwrite", "path", path)
		res.SourceRemoved = true
		res.Degraded = true
	default:
		res.SourceRemoved = true
		res.SourceErased = true
	}
	return res, nil
}

// Retrieve resolves nameOrID with the tolerant lookup, decrypts the
// blob and returns the plaintext.
func (m *Manager) Retrieve(nameOrID string, key []byte) ([]byte, error) {
	name, err := m.Resolve(nameOrID)
	if err != nil {
		return nil, err
	}

	blob, err := os.ReadFile(filepath.Join(m.dir, name))
	if err != nil {
		return nil, fmt.Errorf("read blob: %w", err)
	}
	return crypto.Decrypt(key, blob)
}

// RetrieveTo decrypts a blob into the destination path, written 0600.
func (m *Manager) RetrieveTo(nameOrID string, key []byte, dst string) error {
	content, err := m.Retrieve(nameOrID, key)
	if err != nil {
		return err
	}
	if err := os.WriteFile(dst, content, 0o600); err != nil {
		return fmt.Errorf("write destination: %w", err)
	}
	return nil
}

// List returns the names of all stored blobs. A missing storage
// directory is an empty vault, not an error.
func (m *Manager) List() ([]string, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read storage directory: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.Type().IsRegular() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

// Delete resolves nameOrID and securely erases the blob.
func (m *Manager) Delete(nameOrID string) (DeleteResult, error) {
	name, err := m.Resolve(nameOrID)
	if err != nil {
		return DeleteResult{}, err
	}

	res, err := m.shredder.Erase(filepath.Join(m.dir, name))
	if err != nil {
		return DeleteResult{}, fmt.Errorf("erase blob: %w", err)
	}
	if res.Degraded {
		m.logger.Warn("blob removed without secure overwrite", "name", name)
	}
	return DeleteResult{Name: name, Degraded: res.Degraded}, nil
}

// OriginalName extracts the sanitized original file name from a blob
// name, or returns the input unchanged if it does not follow the
// <id>__<name>.jmn pattern.
func OriginalName(blobName string) string {
	_, rest, ok := strings.Cut(blobName, separator)
	if !ok {
		return blobName
	}
	return strings.TrimSuffix(rest, BlobSuffix)
}

// SanitizeName strips everything outside alphanumerics, '.', '_' and
// '-' from a file name, replacing stripped runes with '_'.
func SanitizeName(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' || r == '_' || r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
