package fs_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/calvinalkan/mailsummary/pkg/fs"
)

func tempFiles(t *testing.T, dir string) []string {
	t.Helper()

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}

	var tmp []string

	for _, e := range entries {
		if strings.Contains(e.Name(), ".tmp-") {
			tmp = append(tmp, e.Name())
		}
	}

	return tmp
}

func Test_AtomicWriter_Replaces_Content_And_Applies_Perm(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "Inbox.msf")

	if err := os.WriteFile(path, []byte("old"), 0o600); err != nil {
		t.Fatalf("setup: %v", err)
	}

	w := fs.NewAtomicWriter(fs.NewReal())

	err := w.WriteBytes(path, []byte("new content"), fs.DefaultAtomicWriteOptions())
	if err != nil {
		t.Fatalf("WriteBytes: %v", err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}

	if string(got) != "new content" {
		t.Fatalf("content=%q, want %q", got, "new content")
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}

	if perm := info.Mode().Perm(); perm != 0o644 {
		t.Fatalf("perm=%#o, want 0644", perm)
	}

	if tmp := tempFiles(t, dir); len(tmp) != 0 {
		t.Fatalf("temp files left behind: %v", tmp)
	}
}

func Test_AtomicWriter_Rejects_Bad_Input(t *testing.T) {
	t.Parallel()

	w := fs.NewAtomicWriter(fs.NewReal())
	dir := t.TempDir()

	if err := w.WriteBytes(filepath.Join(dir, "x"), nil, fs.AtomicWriteOptions{}); err == nil {
		t.Fatal("zero perm: want error")
	}

	if err := w.WriteBytes(dir+"/", nil, fs.DefaultAtomicWriteOptions()); err == nil {
		t.Fatal("directory path: want error")
	}
}

func Test_AtomicWriter_Failure_Keeps_Original_And_Cleans_Up(t *testing.T) {
	t.Parallel()

	configs := map[string]fs.ChaosConfig{
		"write":  {WriteFailRate: 1},
		"sync":   {SyncFailRate: 1},
		"rename": {RenameFailRate: 1},
	}

	for name, cfg := range configs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			dir := t.TempDir()
			path := filepath.Join(dir, "Inbox.msf")

			if err := os.WriteFile(path, []byte("original"), 0o644); err != nil {
				t.Fatalf("setup: %v", err)
			}

			chaos := fs.NewChaos(fs.NewReal(), 1, cfg)
			w := fs.NewAtomicWriter(chaos)

			err := w.WriteBytes(path, []byte("replacement"), fs.DefaultAtomicWriteOptions())
			if err == nil {
				t.Fatal("WriteBytes: want error")
			}

			if !fs.IsChaosErr(err) {
				t.Fatalf("err=%v, want injected error", err)
			}

			got, _ := os.ReadFile(path)
			if string(got) != "original" {
				t.Fatalf("content=%q, want original", got)
			}

			if tmp := tempFiles(t, dir); len(tmp) != 0 {
				t.Fatalf("temp files left behind: %v", tmp)
			}
		})
	}
}
