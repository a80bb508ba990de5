// Package keyring manages the vault master key: generation at
// initialization, password-based wrapping, and per-call unwrapping.
//
// The master key only ever exists on disk wrapped (encrypted under a
// PBKDF2-derived key). There is no unlocked session: every operation
// re-derives the wrapping key from the password and unwraps a fresh
// copy, which the caller must zero when done.
package keyring

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/Khoirul-Yardan/JUMANV4/internal/crypto"
)

// File names inside a vault directory. External audit tooling reads
// ConfigName and sniffs the others, so the layout is part of the
// on-disk contract.
const (
	ConfigName    = "config.json"
	MasterKeyName = "master.key.enc"
	RecoveryName  = "recovery.txt"
	StorageDir    = "storage"
)

const recoveryTokenLen = 24

var (
	// ErrConfigMissing is returned when the vault directory has no
	// config or wrapped key, i.e. it was never initialized.
	ErrConfigMissing = errors.New("vault not initialized")

	// ErrAuthentication is returned when the wrapped master key does not
	// open under the password-derived key. A wrong password and a
	// corrupted wrap are indistinguishable here; this is the only
	// password check the vault has.
	ErrAuthentication = errors.New("authentication failed")
)

// WrapConfig is the non-secret sibling metadata of the wrapped key,
// persisted as config.json.
type WrapConfig struct {
	Salt       []byte
	Iterations int
}

type wrapConfigJSON struct {
	Salt       string `json:"salt"`
	Iterations int    `json:"iterations"`
}

// InitResult reports how Initialize completed.
type InitResult struct {
	// AlreadyInitialized is set when the directory already held a config
	// and wrapped key. Nothing was changed in that case.
	AlreadyInitialized bool
}

// Options configures a Keyring.
type Options struct {
	// Iterations is the PBKDF2 iteration count used when initializing or
	// rotating. Unwrap always uses the persisted count. Zero means
	// crypto.DefaultIterations.
	Iterations int

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Keyring manages the wrapped master key of one vault directory.
type Keyring struct {
	dir        string
	iterations int
	logger     *slog.Logger
}

// New returns a Keyring for the given vault directory. The directory is
// always passed in explicitly; there is no process-wide default.
func New(dir string, opts Options) *Keyring {
	iterations := opts.Iterations
	if iterations <= 0 {
		iterations = crypto.DefaultIterations
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Keyring{dir: dir, iterations: iterations, logger: logger}
}

// Dir returns the vault directory.
func (k *Keyring) Dir() string {
	return k.dir
}

// Initialized reports whether the directory holds both the config and
// the wrapped master key.
func (k *Keyring) Initialized() bool {
	if _, err := os.Stat(filepath.Join(k.dir, ConfigName)); err != nil {
		return false
	}
	if _, err := os.Stat(filepath.Join(k.dir, MasterKeyName)); err != nil {
		return false
	}
	return true
}

// Initialize creates the vault directory, generates a fresh master key,
// wraps it under the password and persists the wrap, its config and a
// recovery token. Calling it on an initialized directory is a warning
// no-op: the existing key is never overwritten.
func (k *Keyring) Initialize(password string) (InitResult, error) {
	if err := os.MkdirAll(k.dir, 0o700); err != nil {
		return InitResult{}, fmt.Errorf("create vault directory: %w", err)
	}
	if err := os.MkdirAll(filepath.Join(k.dir, StorageDir), 0o700); err != nil {
		return InitResult{}, fmt.Errorf("create storage directory: %w", err)
	}

	if k.Initialized() {
		k.logger.Warn("vault already initialized, keeping existing key", "dir", k.dir)
		return InitResult{AlreadyInitialized: true}, nil
	}

	masterKey, err := crypto.GenerateKey()
	if err != nil {
		return InitResult{}, fmt.Errorf("generate master key: %w", err)
	}
	defer crypto.ZeroBytes(masterKey)

	salt, err := crypto.GenerateSalt()
	if err != nil {
		return InitResult{}, fmt.Errorf("generate salt: %w", err)
	}

	wrappingKey, err := crypto.DeriveKey([]byte(password), salt, k.iterations)
	if err != nil {
		return InitResult{}, fmt.Errorf("derive wrapping key: %w", err)
	}
	wrap, err := crypto.Encrypt(wrappingKey, masterKey)
	crypto.ZeroBytes(wrappingKey)
	if err != nil {
		return InitResult{}, fmt.Errorf("wrap master key: %w", err)
	}

	if err := writeFileAtomic(filepath.Join(k.dir, MasterKeyName), wrap, 0o600); err != nil {
		return InitResult{}, fmt.Errorf("write wrapped key: %w", err)
	}
	if err := k.writeConfig(WrapConfig{Salt: salt, Iterations: k.iterations}); err != nil {
		return InitResult{}, err
	}

	token, err := crypto.GenerateToken(recoveryTokenLen)
	if err != nil {
		return InitResult{}, fmt.Errorf("generate recovery token: %w", err)
	}
	encoded := base64.StdEncoding.EncodeToString(token)
	if err := writeFileAtomic(filepath.Join(k.dir, RecoveryName), []byte(encoded), 0o600); err != nil {
		return InitResult{}, fmt.Errorf("write recovery token: %w", err)
	}

	return InitResult{}, nil
}

// Unwrap re-derives the wrapping key from the persisted salt and
// iteration count and decrypts the stored wrap. It returns
// ErrAuthentication when the wrap does not verify. The caller owns the
// returned key and must zero it when the operation is done.
func (k *Keyring) Unwrap(password string) ([]byte, error) {
	cfg, err := k.Config()
	if err != nil {
		return nil, err
	}

	wrap, err := os.ReadFile(filepath.Join(k.dir, MasterKeyName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigMissing
		}
		return nil, fmt.Errorf("read wrapped key: %w", err)
	}

	wrappingKey, err := crypto.DeriveKey([]byte(password), cfg.Salt, cfg.Iterations)
	if err != nil {
		return nil, fmt.Errorf("derive wrapping key: %w", err)
	}
	defer crypto.ZeroBytes(wrappingKey)

	masterKey, err := crypto.Decrypt(wrappingKey, wrap)
	if err != nil {
		return nil, ErrAuthentication
	}
	return masterKey, nil
}

// Rotate re-wraps the master key under a key derived from newPassword
// with a fresh salt. The master key itself does not change, so stored
// blobs stay valid. The old password is verified by the unwrap.
func (k *Keyring) Rotate(oldPassword, newPassword string) error {
	masterKey, err := k.Unwrap(oldPassword)
	if err != nil {
		return err
	}
	defer crypto.ZeroBytes(masterKey)

	salt, err := crypto.GenerateSalt()
	if err != nil {
		return fmt.Errorf("generate salt: %w", err)
	}
	wrappingKey, err := crypto.DeriveKey([]byte(newPassword), salt, k.iterations)
	if err != nil {
		return fmt.Errorf("derive wrapping key: %w", err)
	}
	wrap, err := crypto.Encrypt(wrappingKey, masterKey)
	crypto.ZeroBytes(wrappingKey)
	if err != nil {
		return fmt.Errorf("wrap master key: %w", err)
	}

	// Write the new wrap before the new config: a crash between the two
	// leaves a wrap that the old config cannot open, which is detectable,
	// rather than a config pointing at a missing wrap.
	if err := writeFileAtomic(filepath.Join(k.dir, MasterKeyName), wrap, 0o600); err != nil {
		return fmt.Errorf("write wrapped key: %w", err)
	}
	return k.writeConfig(WrapConfig{Salt: salt, Iterations: k.iterations})
}

// Config reads the persisted non-secret wrap metadata.
func (k *Keyring) Config() (WrapConfig, error) {
	raw, err := os.ReadFile(filepath.Join(k.dir, ConfigName))
	if err != nil {
		if os.IsNotExist(err) {
			return WrapConfig{}, ErrConfigMissing
		}
		return WrapConfig{}, fmt.Errorf("read config: %w", err)
	}

	var wire wrapConfigJSON
	if err := json.Unmarshal(raw, &wire); err != nil {
		return WrapConfig{}, fmt.Errorf("parse config: %w", err)
	}
	salt, err := base64.StdEncoding.DecodeString(wire.Salt)
	if err != nil {
		return WrapConfig{}, fmt.Errorf("decode salt: %w", err)
	}
	iterations := wire.Iterations
	if iterations <= 0 {
		iterations = crypto.DefaultIterations
	}
	return WrapConfig{Salt: salt, Iterations: iterations}, nil
}

func (k *Keyring) writeConfig(cfg WrapConfig) error {
	raw, err := json.Marshal(wrapConfigJSON{
		Salt:       base64.StdEncoding.EncodeToString(cfg.Salt),
		Iterations: cfg.Iterations,
	})
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := writeFileAtomic(filepath.Join(k.dir, ConfigName), raw, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// writeFileAtomic writes data to a temp file in the target directory
// and renames it into place.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}
