// Package vault ties the key, storage, shred and backup layers into
// the operations the CLI exposes.
//
// A Vault has no unlocked state: every operation takes the password,
// unwraps a fresh copy of the master key, uses it and zeros it before
// returning. Mutating operations hold an exclusive advisory file lock
// on the vault directory; reads hold a shared one. That is the whole
// concurrency contract: two processes on the same directory are
// serialized, goroutines inside one process must bring their own
// discipline.
package vault

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"github.com/Khoirul-Yardan/JUMANV4/internal/audit"
	"github.com/Khoirul-Yardan/JUMANV4/internal/backup"
	"github.com/Khoirul-Yardan/JUMANV4/internal/crypto"
	"github.com/Khoirul-Yardan/JUMANV4/internal/keyring"
	"github.com/Khoirul-Yardan/JUMANV4/internal/shred"
	"github.com/Khoirul-Yardan/JUMANV4/internal/storage"
)

const lockName = ".lock"

// Options configures a Vault.
type Options struct {
	// Iterations is the PBKDF2 iteration count for new wraps. Zero means
	// crypto.DefaultIterations.
	Iterations int

	// ShredPasses is the number of secure-erase overwrite passes. Zero
	// means shred.DefaultPasses.
	ShredPasses int

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// DisableAudit turns off the bbolt operation log.
	DisableAudit bool
}

// Status is a non-secret snapshot of a vault directory.
type Status struct {
	Dir         string `json:"dir"`
	Initialized bool   `json:"initialized"`
	Iterations  int    `json:"iterations,omitempty"`
	FileCount   int    `json:"file_count"`
	BackupCount int    `json:"backup_count"`
}

// Vault owns one vault directory.
type Vault struct {
	dir      string
	keyring  *keyring.Keyring
	storage  *storage.Manager
	backups  *backup.Service
	auditLog *audit.Log
	lock     *flock.Flock
	logger   *slog.Logger
}

// Open builds a Vault for an explicit directory, creating the directory
// if needed. It does not require the vault to be initialized yet.
func Open(dir string, opts Options) (*Vault, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create vault directory: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	shredder := shred.New(opts.ShredPasses)

	store := storage.New(filepath.Join(dir, keyring.StorageDir), storage.Options{
		Shredder: shredder,
		Logger:   logger,
	})

	v := &Vault{
		dir:     dir,
		keyring: keyring.New(dir, keyring.Options{Iterations: opts.Iterations, Logger: logger}),
		storage: store,
		backups: backup.New(dir, store, backup.Options{Shredder: shredder, Logger: logger}),
		lock:    flock.New(filepath.Join(dir, lockName)),
		logger:  logger,
	}

	if !opts.DisableAudit {
		// bbolt holds an exclusive OS lock on audit.db, so a second
		// process on the same directory cannot open it. The audit log is
		// best-effort everywhere else, so run without it rather than
		// failing the operation.
		log, err := audit.Open(filepath.Join(dir, audit.FileName))
		if err != nil {
			logger.Warn("audit log unavailable, continuing without it", "dir", dir, "error", err)
		} else {
			v.auditLog = log
		}
	}
	return v, nil
}

// Close releases the audit log. The advisory lock is only held during
// operations.
func (v *Vault) Close() error {
	if v.auditLog != nil {
		return v.auditLog.Close()
	}
	return nil
}

// Dir returns the vault directory.
func (v *Vault) Dir() string {
	return v.dir
}

// Initialize creates the master key and its wrap. Idempotent: an
// already initialized vault is left untouched.
func (v *Vault) Initialize(password string) (keyring.InitResult, error) {
	unlock, err := v.acquire(true)
	if err != nil {
		return keyring.InitResult{}, err
	}
	defer unlock()

	res, err := v.keyring.Initialize(password)
	if err != nil {
		return res, err
	}
	v.record("init", "", res.AlreadyInitialized)
	return res, nil
}

// Store encrypts content under the master key and persists it as a new
// blob named after originalName.
func (v *Vault) Store(content []byte, originalName, password string) (storage.StoreResult, error) {
	unlock, err := v.acquire(true)
	if err != nil {
		return storage.StoreResult{}, err
	}
	defer unlock()

	key, err := v.keyring.Unwrap(password)
	if err != nil {
		return storage.StoreResult{}, err
	}
	defer crypto.ZeroBytes(key)

	res, err := v.storage.Store(content, originalName, key)
	if err != nil {
		return res, err
	}
	v.record("store", res.Name, res.Degraded)
	return res, nil
}

// StoreFile stores the file at path and best-effort erases the
// plaintext source.
func (v *Vault) StoreFile(path, password string) (storage.StoreResult, error) {
	unlock, err := v.acquire(true)
	if err != nil {
		return storage.StoreResult{}, err
	}
	defer unlock()

	key, err := v.keyring.Unwrap(password)
	if err != nil {
		return storage.StoreResult{}, err
	}
	defer crypto.ZeroBytes(key)

	res, err := v.storage.StoreFile(path, key)
	if err != nil {
		return res, err
	}
	v.record("store", res.Name, res.Degraded)
	return res, nil
}

// Retrieve resolves nameOrID tolerantly and returns the decrypted
// content.
func (v *Vault) Retrieve(nameOrID, password string) ([]byte, error) {
	unlock, err := v.acquire(false)
	if err != nil {
		return nil, err
	}
	defer unlock()

	key, err := v.keyring.Unwrap(password)
	if err != nil {
		return nil, err
	}
	defer crypto.ZeroBytes(key)

	content, err := v.storage.Retrieve(nameOrID, key)
	if err != nil {
		return nil, err
	}
	v.record("retrieve", nameOrID, false)
	return content, nil
}

// RetrieveTo decrypts a stored file into dst.
func (v *Vault) RetrieveTo(nameOrID, password, dst string) error {
	content, err := v.Retrieve(nameOrID, password)
	if err != nil {
		return err
	}
	if err := os.WriteFile(dst, content, 0o600); err != nil {
		return fmt.Errorf("write destination: %w", err)
	}
	return nil
}

// List enumerates stored blob names.
func (v *Vault) List() ([]string, error) {
	unlock, err := v.acquire(false)
	if err != nil {
		return nil, err
	}
	defer unlock()

	return v.storage.List()
}

// Delete resolves nameOrID tolerantly and securely erases the blob.
// The password is verified first so an unauthenticated caller cannot
// destroy data.
func (v *Vault) Delete(nameOrID, password string) (storage.DeleteResult, error) {
	unlock, err := v.acquire(true)
	if err != nil {
		return storage.DeleteResult{}, err
	}
	defer unlock()

	key, err := v.keyring.Unwrap(password)
	if err != nil {
		return storage.DeleteResult{}, err
	}
	crypto.ZeroBytes(key)

	res, err := v.storage.Delete(nameOrID)
	if err != nil {
		return res, err
	}
	v.record("delete", res.Name, res.Degraded)
	return res, nil
}

// CreateBackup snapshots the vault into an encrypted archive. Returns
// the backup file path.
func (v *Vault) CreateBackup(password, name string) (string, error) {
	unlock, err := v.acquire(true)
	if err != nil {
		return "", err
	}
	defer unlock()

	key, err := v.keyring.Unwrap(password)
	if err != nil {
		return "", err
	}
	defer crypto.ZeroBytes(key)

	path, err := v.backups.Create(key, name)
	if err != nil {
		return "", err
	}
	v.record("backup", filepath.Base(path), false)
	return path, nil
}

// RestoreBackup decrypts the archive and restores its members over the
// current vault contents.
func (v *Vault) RestoreBackup(archivePath, password string) error {
	unlock, err := v.acquire(true)
	if err != nil {
		return err
	}
	defer unlock()

	key, err := v.keyring.Unwrap(password)
	if err != nil {
		return err
	}
	defer crypto.ZeroBytes(key)

	if err := v.backups.Restore(archivePath, key); err != nil {
		return err
	}
	v.record("restore", filepath.Base(archivePath), false)
	return nil
}

// Rotate re-wraps the master key under a new password. Stored blobs
// are untouched because the master key itself does not change.
func (v *Vault) Rotate(oldPassword, newPassword string) error {
	unlock, err := v.acquire(true)
	if err != nil {
		return err
	}
	defer unlock()

	if err := v.keyring.Rotate(oldPassword, newPassword); err != nil {
		return err
	}
	v.record("rotate", "", false)
	return nil
}

// Status reports the non-secret state of the vault directory.
func (v *Vault) Status() (Status, error) {
	unlock, err := v.acquire(false)
	if err != nil {
		return Status{}, err
	}
	defer unlock()

	st := Status{Dir: v.dir, Initialized: v.keyring.Initialized()}
	if st.Initialized {
		cfg, err := v.keyring.Config()
		if err != nil {
			return st, err
		}
		st.Iterations = cfg.Iterations
	}

	names, err := v.storage.List()
	if err != nil {
		return st, err
	}
	st.FileCount = len(names)

	entries, err := os.ReadDir(v.dir)
	if err != nil {
		return st, fmt.Errorf("read vault directory: %w", err)
	}
	for _, e := range entries {
		if e.Type().IsRegular() && filepath.Ext(e.Name()) == backup.Suffix {
			st.BackupCount++
		}
	}
	return st, nil
}

// AuditRecent returns up to n recent audit entries, newest first.
func (v *Vault) AuditRecent(n int) ([]audit.Entry, error) {
	if v.auditLog == nil {
		return nil, nil
	}
	return v.auditLog.Recent(n)
}

// acquire takes the advisory lock, exclusive for mutations.
func (v *Vault) acquire(exclusive bool) (func(), error) {
	var err error
	if exclusive {
		err = v.lock.Lock()
	} else {
		err = v.lock.RLock()
	}
	if err != nil {
		return nil, fmt.Errorf("lock vault directory: %w", err)
	}
	return func() {
		if err := v.lock.Unlock(); err != nil {
			v.logger.Warn("could not release vault lock", "error", err)
		}
	}, nil
}

// record appends to the audit log; failures are logged, never fatal.
func (v *Vault) record(op, target string, degraded bool) {
	if v.auditLog == nil {
		return
	}
	if err := v.auditLog.Record(op, target, degraded); err != nil {
		v.logger.Warn("could not record audit entry", "op", op, "error", err)
	}
}
