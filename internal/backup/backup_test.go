package backup

import (
	"archive/zip"
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Khoirul-Yardan/JUMANV4/internal/crypto"
	"github.com/Khoirul-Yardan/JUMANV4/internal/keyring"
	"github.com/Khoirul-Yardan/JUMANV4/internal/storage"
)

// newTestVaultDir builds an initialized-looking vault directory with a
// few stored blobs and returns the service, storage manager and key.
func newTestVaultDir(t *testing.T) (*Service, *storage.Manager, []byte) {
	t.Helper()

	dir := filepath.Join(t.TempDir(), "vault")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	for name, content := range map[string]string{
		keyring.ConfigName:    `{"salt":"AAAA","iterations":1000}`,
		keyring.MasterKeyName: "wrapped-key-bytes",
		keyring.RecoveryName:  "recovery-token",
	} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600); err != nil {
			t.Fatalf("WriteFile %s: %v", name, err)
		}
	}

	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	store := storage.New(filepath.Join(dir, keyring.StorageDir), storage.Options{})
	return New(dir, store, Options{}), store, key
}

// decryptArchive opens the encrypted backup and returns its zip reader.
func decryptArchive(t *testing.T, path string, key []byte) *zip.Reader {
	t.Helper()
	blob, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read backup: %v", err)
	}
	plain, err := crypto.Decrypt(key, blob)
	if err != nil {
		t.Fatalf("decrypt backup: %v", err)
	}
	zr, err := zip.NewReader(bytes.NewReader(plain), int64(len(plain)))
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	return zr
}

func TestCreate_MembersAndExclusion(t *testing.T) {
	svc, store, key := newTestVaultDir(t)

	if _, err := store.Store([]byte("one"), "a.txt", key); err != nil {
		t.Fatalf("Store: %v", err)
	}
	if _, err := store.Store([]byte("two"), "b.txt", key); err != nil {
		t.Fatalf("Store: %v", err)
	}

	path, err := svc.Create(key, "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !strings.HasSuffix(path, Suffix) {
		t.Errorf("backup path = %q, want %s suffix", path, Suffix)
	}

	zr := decryptArchive(t, path, key)

	var members []string
	for _, f := range zr.File {
		members = append(members, f.Name)
	}

	// The wrapped master key must never appear in a backup.
	for _, m := range members {
		if strings.Contains(m, keyring.MasterKeyName) {
			t.Fatalf("backup contains wrapped master key member %q", m)
		}
	}

	// Deterministic trailer: config then recovery after the blobs.
	if len(members) != 4 {
		t.Fatalf("archive has %d members, want 4: %v", len(members), members)
	}
	for _, m := range members[:2] {
		if !strings.HasPrefix(m, keyring.StorageDir+"/") {
			t.Errorf("member %q should be a storage blob", m)
		}
	}
	if members[2] != keyring.ConfigName || members[3] != keyring.RecoveryName {
		t.Errorf("trailer members = %v, want [config.json recovery.txt]", members[2:])
	}
}

func TestCreate_ErasesIntermediateZip(t *testing.T) {
	svc, _, key := newTestVaultDir(t)

	if _, err := svc.Create(key, "snap.zip"); err != nil {
		t.Fatalf("Create: %v", err)
	}

	entries, err := os.ReadDir(svc.vaultDir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "backup-") && strings.HasSuffix(e.Name(), ".zip") {
			t.Errorf("intermediate plaintext zip %q left behind", e.Name())
		}
	}
}

func TestRestore_RoundTrip(t *testing.T) {
	svc, store, key := newTestVaultDir(t)

	res, err := store.Store([]byte("restore me"), "f.txt", key)
	if err != nil {
		t.Fatalf("Store: %v", err)
	}

	path, err := svc.Create(key, "snap.zip")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	// Wipe the blob, then restore it from the backup.
	if _, err := store.Delete(res.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := svc.Restore(path, key); err != nil {
		t.Fatalf("Restore: %v", err)
	}

	got, err := store.Retrieve(res.Name, key)
	if err != nil {
		t.Fatalf("Retrieve after restore: %v", err)
	}
	if string(got) != "restore me" {
		t.Errorf("restored content = %q, want %q", got, "restore me")
	}

	// No staging directory left behind.
	entries, _ := os.ReadDir(svc.vaultDir)
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "restore-") {
			t.Errorf("staging directory %q left behind", e.Name())
		}
	}
}

func TestRestore_WrongKey(t *testing.T) {
	svc, _, key := newTestVaultDir(t)

	path, err := svc.Create(key, "snap.zip")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	other, _ := crypto.GenerateKey()
	if err := svc.Restore(path, other); !errors.Is(err, crypto.ErrIntegrity) {
		t.Errorf("Restore with wrong key: error = %v, want ErrIntegrity", err)
	}
}

func TestRestore_TamperedArchive(t *testing.T) {
	svc, _, key := newTestVaultDir(t)

	path, err := svc.Create(key, "snap.zip")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	blob, _ := os.ReadFile(path)
	blob[len(blob)/2] ^= 0x01
	if err := os.WriteFile(path, blob, 0o600); err != nil {
		t.Fatalf("write tampered backup: %v", err)
	}

	if err := svc.Restore(path, key); !errors.Is(err, crypto.ErrIntegrity) {
		t.Errorf("Restore of tampered backup: error = %v, want ErrIntegrity", err)
	}
}

func TestRestore_RejectsEscapingMembers(t *testing.T) {
	svc, _, key := newTestVaultDir(t)

	// Hand-craft an archive with a traversal member.
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("../outside.txt")
	if err != nil {
		t.Fatalf("zip create: %v", err)
	}
	if _, err := w.Write([]byte("escape")); err != nil {
		t.Fatalf("zip write: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}

	blob, err := crypto.Encrypt(key, buf.Bytes())
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	evil := filepath.Join(t.TempDir(), "evil"+Suffix)
	if err := os.WriteFile(evil, blob, 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if err := svc.Restore(evil, key); err == nil {
		t.Fatal("Restore accepted an archive member escaping the vault directory")
	}
	if _, err := os.Stat(filepath.Join(filepath.Dir(svc.vaultDir), "outside.txt")); !os.IsNotExist(err) {
		t.Error("traversal member was written outside the vault directory")
	}
}

func TestSafeMemberName(t *testing.T) {
	if _, err := safeMemberName("../../etc/passwd"); err == nil {
		t.Error("safeMemberName accepted a traversal path")
	}
	if _, err := safeMemberName("/abs/path"); err == nil {
		t.Error("safeMemberName accepted an absolute path")
	}
	got, err := safeMemberName("storage/x.jmn")
	if err != nil {
		t.Fatalf("safeMemberName: %v", err)
	}
	if got != filepath.FromSlash("storage/x.jmn") {
		t.Errorf("safeMemberName = %q", got)
	}
}
