// Package shred implements best-effort secure deletion: the file is
// overwritten with random bytes before being unlinked.
//
// This reduces recoverability on plain filesystems only. Copy-on-write
// filesystems, snapshots and wear-leveled flash can all retain old
// plaintext regardless of how many overwrite passes run, so treat the
// result as reduced-assurance deletion, not a guarantee.
package shred

import (
	"crypto/rand"
	"fmt"
	"io"
	"os"
)

const chunkSize = 8192

// DefaultPasses is the default number of overwrite passes.
const DefaultPasses = 1

// Result reports how a shred completed.
type Result struct {
	// Passes is the number of overwrite passes that ran to completion.
	Passes int

	// Degraded is set when overwriting failed and the file was removed
	// with a plain delete instead.
	Degraded bool
}

// Shredder overwrites and deletes files.
type Shredder struct {
	passes int
}

// New returns a Shredder running the given number of overwrite passes.
// Values below 1 fall back to DefaultPasses.
func New(passes int) *Shredder {
	if passes < 1 {
		passes = DefaultPasses
	}
	return &Shredder{passes: passes}
}

// Passes returns the configured number of overwrite passes.
func (s *Shredder) Passes() int {
	return s.passes
}

// Erase overwrites the file's full length with random bytes for each
// configured pass, syncing after every pass, then unlinks it.
//
// A missing file is a no-op. When overwriting fails the file is removed
// with a plain delete and the result carries Degraded=true; Erase only
// returns an error when even that fallback delete fails.
func (s *Shredder) Erase(path string) (Result, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return Result{}, nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("stat %s: %w", path, err)
	}

	if err := overwrite(path, info.Size(), s.passes); err != nil {
		if rmErr := os.Remove(path); rmErr != nil {
			return Result{Degraded: true}, fmt.Errorf("overwrite failed (%v), plain delete failed: %w", err, rmErr)
		}
		return Result{Degraded: true}, nil
	}

	if err := os.Remove(path); err != nil {
		return Result{Passes: s.passes}, fmt.Errorf("remove %s: %w", path, err)
	}
	return Result{Passes: s.passes}, nil
}

// overwrite writes size random bytes over the file, passes times,
// fsyncing after each pass.
func overwrite(path string, size int64, passes int) error {
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return err
	}
	defer f.Close()

	buf := make([]byte, chunkSize)
	for pass := 0; pass < passes; pass++ {
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return err
		}
		remaining := size
		for remaining > 0 {
			n := int64(chunkSize)
			if remaining < n {
				n = remaining
			}
			if _, err := rand.Read(buf[:n]); err != nil {
				return err
			}
			if _, err := f.Write(buf[:n]); err != nil {
				return err
			}
			remaining -= n
		}
		if err := f.Sync(); err != nil {
			return err
		}
	}
	return nil
}
