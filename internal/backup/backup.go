// Package backup snapshots a vault's encrypted blobs and non-secret
// metadata into a single encrypted archive, and restores such archives.
//
// The archive is a zip holding every storage blob, config.json and
// recovery.txt. The wrapped master key is never a member: a backup in
// attacker hands must not offer anything to run a password guess
// against. The whole zip is then encrypted as one blob under the
// master key.
package backup

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/Khoirul-Yardan/JUMANV4/internal/crypto"
	"github.com/Khoirul-Yardan/JUMANV4/internal/keyring"
	"github.com/Khoirul-Yardan/JUMANV4/internal/shred"
	"github.com/Khoirul-Yardan/JUMANV4/internal/storage"
)

// Suffix marks encrypted backup archives.
const Suffix = ".jumanbackup"

// Options configures a Service.
type Options struct {
	// Shredder erases the intermediate plaintext zip. Defaults to a
	// single-pass shredder.
	Shredder *shred.Shredder

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Service creates and restores encrypted vault backups.
type Service struct {
	vaultDir string
	storage  *storage.Manager
	shredder *shred.Shredder
	logger   *slog.Logger
}

// New returns a Service for the given vault directory and its storage
// manager.
func New(vaultDir string, store *storage.Manager, opts Options) *Service {
	shredder := opts.Shredder
	if shredder == nil {
		shredder = shred.New(shred.DefaultPasses)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{vaultDir: vaultDir, storage: store, shredder: shredder, logger: logger}
}

// Create snapshots all storage blobs plus config.json and recovery.txt
// into a zip, encrypts the zip under key and writes it next to the
// vault as <name>.jumanbackup. The intermediate plaintext zip is
// securely erased. Returns the backup file path.
//
// Member order is deterministic: storage blobs in enumeration order,
// then config.json, then recovery.txt.
func (s *Service) Create(key []byte, name string) (string, error) {
	if name == "" {
		name = "juman_backup_" + strings.ReplaceAll(uuid.New().String(), "-", "") + ".zip"
	}

	tmp, err := os.CreateTemp(s.vaultDir, "backup-*.zip")
	if err != nil {
		return "", fmt.Errorf("create archive temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer s.eraseIntermediate(tmpName)

	if err := s.writeArchive(tmp); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close archive: %w", err)
	}

	plain, err := os.ReadFile(tmpName)
	if err != nil {
		return "", fmt.Errorf("read archive: %w", err)
	}
	blob, err := crypto.Encrypt(key, plain)
	if err != nil {
		return "", fmt.Errorf("encrypt archive: %w", err)
	}

	out := filepath.Join(s.vaultDir, name+Suffix)
	if err := os.WriteFile(out, blob, 0o600); err != nil {
		os.Remove(out)
		return "", fmt.Errorf("write backup: %w", err)
	}
	return out, nil
}

// writeArchive streams the vault snapshot into w as a zip.
func (s *Service) writeArchive(w io.Writer) error {
	zw := zip.NewWriter(w)

	blobs, err := s.storage.List()
	if err != nil {
		return err
	}
	for _, blob := range blobs {
		src := filepath.Join(s.storage.Dir(), blob)
		if err := addMember(zw, src, keyring.StorageDir+"/"+blob); err != nil {
			return err
		}
	}

	// Non-secret metadata only; the wrapped key stays out.
	for _, name := range []string{keyring.ConfigName, keyring.RecoveryName} {
		src := filepath.Join(s.vaultDir, name)
		if _, err := os.Stat(src); os.IsNotExist(err) {
			continue
		}
		if err := addMember(zw, src, name); err != nil {
			return err
		}
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("finalize archive: %w", err)
	}
	return nil
}

func addMember(zw *zip.Writer, src, member string) error {
	content, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("read %s: %w", member, err)
	}
	w, err := zw.Create(member)
	if err != nil {
		return fmt.Errorf("add %s: %w", member, err)
	}
	if _, err := w.Write(content); err != nil {
		return fmt.Errorf("write %s: %w", member, err)
	}
	return nil
}

// Restore decrypts the archive and extracts its members over the vault
// directory. Extraction is staged: members land in a temp directory
// first and only replace live entries after the whole archive
// extracted cleanly.
func (s *Service) Restore(archivePath string, key []byte) error {
	blob, err := os.ReadFile(archivePath)
	if err != nil {
		return fmt.Errorf("read backup: %w", err)
	}

	plain, err := crypto.Decrypt(key, blob)
	if err != nil {
		return err
	}

	zr, err := zip.NewReader(bytes.NewReader(plain), int64(len(plain)))
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}

	stage, err := os.MkdirTemp(s.vaultDir, "restore-*")
	if err != nil {
		return fmt.Errorf("create staging directory: %w", err)
	}
	defer os.RemoveAll(stage)

	var members []string
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		member, err := safeMemberName(f.Name)
		if err != nil {
			return err
		}
		if err := extractMember(f, filepath.Join(stage, member)); err != nil {
			return err
		}
		members = append(members, member)
	}

	// Promote: everything extracted, swap into the live tree.
	for _, member := range members {
		dst := filepath.Join(s.vaultDir, member)
		if err := os.MkdirAll(filepath.Dir(dst), 0o700); err != nil {
			return fmt.Errorf("create %s: %w", filepath.Dir(member), err)
		}
		if err := os.Rename(filepath.Join(stage, member), dst); err != nil {
			// Rename over an existing entry fails on some platforms.
			os.Remove(dst)
			if err := os.Rename(filepath.Join(stage, member), dst); err != nil {
				return fmt.Errorf("promote %s: %w", member, err)
			}
		}
	}
	return nil
}

// safeMemberName rejects archive members that would escape the vault
// directory.
func safeMemberName(name string) (string, error) {
	cleaned := filepath.Clean(filepath.FromSlash(name))
	if filepath.IsAbs(cleaned) || cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("archive member escapes vault directory: %q", name)
	}
	return cleaned, nil
}

func extractMember(f *zip.File, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o700); err != nil {
		return fmt.Errorf("create staging subdirectory: %w", err)
	}
	r, err := f.Open()
	if err != nil {
		return fmt.Errorf("open member %s: %w", f.Name, err)
	}
	defer r.Close()

	w, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("create staged %s: %w", f.Name, err)
	}
	if _, err := io.Copy(w, r); err != nil {
		w.Close()
		return fmt.Errorf("extract %s: %w", f.Name, err)
	}
	return w.Close()
}

// eraseIntermediate shreds the plaintext zip; failure degrades to a
// warning, never fails the backup that already completed.
func (s *Service) eraseIntermediate(path string) {
	res, err := s.shredder.Erase(path)
	if err != nil {
		s.logger.Warn("could not erase intermediate archive", "path", path, "error", err)
		return
	}
	if res.Degraded {
		s.logger.Warn("intermediate archive removed without secure overwrite", "path", path)
	}
}
