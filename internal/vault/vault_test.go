package vault

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Khoirul-Yardan/JUMANV4/internal/keyring"
)

const testPassword = "Tr0ub4dor&3"

// testOptions keeps the KDF cheap in tests.
var testOptions = Options{Iterations: 1000}

func newTestVault(t *testing.T) *Vault {
	t.Helper()
	v, err := Open(filepath.Join(t.TempDir(), "vault"), testOptions)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { v.Close() })
	return v
}

func initTestVault(t *testing.T) *Vault {
	t.Helper()
	v := newTestVault(t)
	if _, err := v.Initialize(testPassword); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	return v
}

// TestScenarioA covers the full single-file lifecycle: init, store,
// list, retrieve with the right and with a wrong password.
func TestScenarioA(t *testing.T) {
	v := initTestVault(t)
	content := []byte("PDF-DATA")

	res, err := v.Store(content, "report.pdf", testPassword)
	if err != nil {
		t.Fatalf("Store: %v", err)
	}

	names, err := v.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(names) != 1 || names[0] != res.Name {
		t.Fatalf("List = %v, want exactly [%s]", names, res.Name)
	}

	got, err := v.Retrieve(res.Name, testPassword)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if !bytes.Equal(got, content) {
		t.Errorf("Retrieve = %q, want %q", got, content)
	}

	if _, err := v.Retrieve(res.Name, "wrong-password"); !errors.Is(err, ErrAuthentication) {
		t.Errorf("Retrieve with wrong password: error = %v, want ErrAuthentication", err)
	}
}

// TestScenarioB covers backup and destructive restore: three files in,
// backup, delete all, restore, all three back with original contents.
func TestScenarioB(t *testing.T) {
	v := initTestVault(t)

	contents := map[string][]byte{
		"a.txt": []byte("alpha"),
		"b.txt": []byte("bravo"),
		"c.txt": []byte("charlie"),
	}
	stored := make(map[string][]byte)
	for name, content := range contents {
		res, err := v.Store(content, name, testPassword)
		if err != nil {
			t.Fatalf("Store %s: %v", name, err)
		}
		stored[res.Name] = content
	}

	archive, err := v.CreateBackup(testPassword, "")
	if err != nil {
		t.Fatalf("CreateBackup: %v", err)
	}

	for name := range stored {
		if _, err := v.Delete(name, testPassword); err != nil {
			t.Fatalf("Delete %s: %v", name, err)
		}
	}
	if names, _ := v.List(); len(names) != 0 {
		t.Fatalf("List after deletes = %v, want empty", names)
	}

	if err := v.RestoreBackup(archive, testPassword); err != nil {
		t.Fatalf("RestoreBackup: %v", err)
	}

	names, err := v.List()
	if err != nil {
		t.Fatalf("List after restore: %v", err)
	}
	if len(names) != 3 {
		t.Fatalf("List after restore = %v, want 3 entries", names)
	}
	for name, want := range stored {
		got, err := v.Retrieve(name, testPassword)
		if err != nil {
			t.Fatalf("Retrieve %s after restore: %v", name, err)
		}
		if !bytes.Equal(got, want) {
			t.Errorf("Retrieve %s = %q, want %q", name, got, want)
		}
	}
}

func TestInitialize_Idempotent(t *testing.T) {
	v := initTestVault(t)

	res, err := v.Store([]byte("content"), "f.txt", testPassword)
	if err != nil {
		t.Fatalf("Store: %v", err)
	}

	// Re-initializing, even with another password, must not regenerate
	// the master key.
	initRes, err := v.Initialize("another-password")
	if err != nil {
		t.Fatalf("second Initialize: %v", err)
	}
	if !initRes.AlreadyInitialized {
		t.Error("second Initialize did not report AlreadyInitialized")
	}

	if _, err := v.Retrieve(res.Name, testPassword); err != nil {
		t.Errorf("Retrieve after repeated Initialize: %v", err)
	}
}

func TestOperations_NotInitialized(t *testing.T) {
	v := newTestVault(t)

	if _, err := v.Store([]byte("x"), "f.txt", testPassword); !errors.Is(err, ErrConfigMissing) {
		t.Errorf("Store on uninitialized vault: error = %v, want ErrConfigMissing", err)
	}
	if _, err := v.Retrieve("f.txt", testPassword); !errors.Is(err, ErrConfigMissing) {
		t.Errorf("Retrieve on uninitialized vault: error = %v, want ErrConfigMissing", err)
	}
}

func TestDelete_RequiresCorrectPassword(t *testing.T) {
	v := initTestVault(t)

	res, err := v.Store([]byte("content"), "f.txt", testPassword)
	if err != nil {
		t.Fatalf("Store: %v", err)
	}

	if _, err := v.Delete(res.Name, "wrong"); !errors.Is(err, ErrAuthentication) {
		t.Errorf("Delete with wrong password: error = %v, want ErrAuthentication", err)
	}
	// Blob untouched after the failed delete.
	if _, err := v.Retrieve(res.Name, testPassword); err != nil {
		t.Errorf("Retrieve after failed delete: %v", err)
	}

	if _, err := v.Delete("no-such-file", testPassword); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete of missing file: error = %v, want ErrNotFound", err)
	}
}

func TestRetrieveTo(t *testing.T) {
	v := initTestVault(t)

	if _, err := v.Store([]byte("exported"), "f.txt", testPassword); err != nil {
		t.Fatalf("Store: %v", err)
	}

	dst := filepath.Join(t.TempDir(), "out.txt")
	if err := v.RetrieveTo("f.txt", testPassword, dst); err != nil {
		t.Fatalf("RetrieveTo: %v", err)
	}
	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatalf("read destination: %v", err)
	}
	if string(got) != "exported" {
		t.Errorf("destination content = %q, want %q", got, "exported")
	}
}

func TestRotate_KeepsBlobsReadable(t *testing.T) {
	v := initTestVault(t)

	res, err := v.Store([]byte("survives rotation"), "f.txt", testPassword)
	if err != nil {
		t.Fatalf("Store: %v", err)
	}

	if err := v.Rotate(testPassword, "new-password"); err != nil {
		t.Fatalf("Rotate: %v", err)
	}

	if _, err := v.Retrieve(res.Name, testPassword); !errors.Is(err, ErrAuthentication) {
		t.Errorf("Retrieve with old password after rotate: error = %v, want ErrAuthentication", err)
	}
	got, err := v.Retrieve(res.Name, "new-password")
	if err != nil {
		t.Fatalf("Retrieve with new password: %v", err)
	}
	if string(got) != "survives rotation" {
		t.Errorf("Retrieve = %q", got)
	}
}

func TestBackup_ExcludesWrappedKey(t *testing.T) {
	v := initTestVault(t)

	if _, err := v.Store([]byte("x"), "f.txt", testPassword); err != nil {
		t.Fatalf("Store: %v", err)
	}
	archive, err := v.CreateBackup(testPassword, "")
	if err != nil {
		t.Fatalf("CreateBackup: %v", err)
	}

	// Corrupt the wrapped key, restore the backup, and confirm the vault
	// is still broken: if the wrap were inside the backup, the restore
	// would have repaired it.
	wrapPath := filepath.Join(v.Dir(), keyring.MasterKeyName)
	if err := os.WriteFile(wrapPath, []byte("garbage"), 0o600); err != nil {
		t.Fatalf("corrupt wrap: %v", err)
	}
	if err := v.RestoreBackup(archive, testPassword); !errors.Is(err, ErrAuthentication) {
		// The restore itself needs the password, which now fails, which
		// is exactly the point: nothing in the backup can unwrap.
		t.Fatalf("RestoreBackup with corrupted wrap: error = %v, want ErrAuthentication", err)
	}
}

func TestStatus(t *testing.T) {
	v := newTestVault(t)

	st, err := v.Status()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if st.Initialized {
		t.Error("Status reports initialized before Initialize")
	}

	if _, err := v.Initialize(testPassword); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if _, err := v.Store([]byte("x"), "f.txt", testPassword); err != nil {
		t.Fatalf("Store: %v", err)
	}
	if _, err := v.CreateBackup(testPassword, ""); err != nil {
		t.Fatalf("CreateBackup: %v", err)
	}

	st, err = v.Status()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if !st.Initialized {
		t.Error("Status reports uninitialized after Initialize")
	}
	if st.Iterations != testOptions.Iterations {
		t.Errorf("Status iterations = %d, want %d", st.Iterations, testOptions.Iterations)
	}
	if st.FileCount != 1 {
		t.Errorf("Status file count = %d, want 1", st.FileCount)
	}
	if st.BackupCount != 1 {
		t.Errorf("Status backup count = %d, want 1", st.BackupCount)
	}
}

func TestAuditTrail(t *testing.T) {
	v := initTestVault(t)

	res, err := v.Store([]byte("x"), "f.txt", testPassword)
	if err != nil {
		t.Fatalf("Store: %v", err)
	}
	if _, err := v.Delete(res.Name, testPassword); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	entries, err := v.AuditRecent(10)
	if err != nil {
		t.Fatalf("AuditRecent: %v", err)
	}
	var ops []string
	for _, e := range entries {
		ops = append(ops, e.Op)
		if strings.Contains(e.Target, "x") && e.Op == "store" && e.Target != res.Name {
			t.Errorf("audit target = %q, want blob name", e.Target)
		}
	}
	want := []string{"delete", "store", "init"}
	if len(ops) != len(want) {
		t.Fatalf("audit ops = %v, want %v", ops, want)
	}
	for i := range want {
		if ops[i] != want[i] {
			t.Errorf("audit ops = %v, want %v", ops, want)
			break
		}
	}
}

func TestList_SharedAccess(t *testing.T) {
	// Two Vault handles on the same directory; the advisory lock must
	// let both read. The first handle holds the exclusive bbolt lock on
	// audit.db, so the second runs with a degraded audit log instead of
	// failing.
	dir := filepath.Join(t.TempDir(), "vault")
	v1, err := Open(dir, testOptions)
	if err != nil {
		t.Fatalf("Open v1: %v", err)
	}
	defer v1.Close()
	if _, err := v1.Initialize(testPassword); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	v2, err := Open(dir, testOptions)
	if err != nil {
		t.Fatalf("Open v2 while v1 holds the audit log: %v", err)
	}
	defer v2.Close()
	if v2.auditLog != nil {
		t.Error("v2 acquired the audit log while v1 held it")
	}

	if _, err := v1.List(); err != nil {
		t.Errorf("v1.List: %v", err)
	}
	if _, err := v2.List(); err != nil {
		t.Errorf("v2.List: %v", err)
	}

	// Mutations still work on the degraded handle.
	if _, err := v2.Store([]byte("shared"), "shared.txt", testPassword); err != nil {
		t.Errorf("v2.Store without audit log: %v", err)
	}
}
