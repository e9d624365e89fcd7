package logging

import (
	"strings"
	"sync"
	"testing"

	"github.com/spf13/afero"
)

func newTestWriter(t *testing.T, fs afero.Fs, maxBytes int64, backups int) *RotatingWriter {
	t.Helper()

	rw, err := NewRotatingWriter(fs, "/var/log/capctl.log", RotationConfig{MaxBackups: backups})
	if err != nil {
		t.Fatalf("NewRotatingWriter failed: %v", err)
	}
	rw.maxSizeB = maxBytes
	t.Cleanup(func() { _ = rw.Close() })
	return rw
}

func TestNewRotatingWriter(t *testing.T) {
	t.Run("creates nested directories", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		rw := newTestWriter(t, fs, 0, 0)

		if ok, _ := afero.Exists(fs, rw.FilePath()); !ok {
			t.Errorf("log file was not created at %s", rw.FilePath())
		}
	})

	t.Run("appends to existing file", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		if err := afero.WriteFile(fs, "/var/log/capctl.log", []byte("previous\n"), 0644); err != nil {
			t.Fatal(err)
		}

		rw := newTestWriter(t, fs, 0, 0)
		if rw.CurrentSize() != int64(len("previous\n")) {
			t.Errorf("CurrentSize() = %d, want %d", rw.CurrentSize(), len("previous\n"))
		}

		if _, err := rw.Write([]byte("next\n")); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
		_ = rw.Close()

		data, _ := afero.ReadFile(fs, rw.FilePath())
		if string(data) != "previous\nnext\n" {
			t.Errorf("file content = %q", data)
		}
	})
}

func TestRotatingWriter_Rotates(t *testing.T) {
	fs := afero.NewMemMapFs()
	rw := newTestWriter(t, fs, 10, 2)

	for _, line := range []string{"aaaaaaaa\n", "bbbbbbbb\n", "cccccccc\n", "dddddddd\n"} {
		if _, err := rw.Write([]byte(line)); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
	}
	_ = rw.Close()

	tests := []struct {
		path string
		want string
	}{
		{rw.FilePath(), "dddddddd\n"},
		{rw.FilePath() + ".1", "cccccccc\n"},
		{rw.FilePath() + ".2", "bbbbbbbb\n"},
	}
	for _, tt := range tests {
		data, err := afero.ReadFile(fs, tt.path)
		if err != nil {
			t.Errorf("read %s: %v", tt.path, err)
			continue
		}
		if string(data) != tt.want {
			t.Errorf("%s = %q, want %q", tt.path, data, tt.want)
		}
	}

	if ok, _ := afero.Exists(fs, rw.FilePath()+".3"); ok {
		t.Error("backup beyond MaxBackups should not exist")
	}
}

func TestRotatingWriter_NoBackups(t *testing.T) {
	fs := afero.NewMemMapFs()
	rw := newTestWriter(t, fs, 10, 0)

	_, _ = rw.Write([]byte("aaaaaaaa\n"))
	_, _ = rw.Write([]byte("bbbbbbbb\n"))
	_ = rw.Close()

	data, _ := afero.ReadFile(fs, rw.FilePath())
	if string(data) != "bbbbbbbb\n" {
		t.Errorf("file content = %q, want only the last write", data)
	}
	if ok, _ := afero.Exists(fs, rw.FilePath()+".1"); ok {
		t.Error("no backup should be kept when MaxBackups is 0")
	}
}

func TestRotatingWriter_WriteAfterClose(t *testing.T) {
	rw := newTestWriter(t, afero.NewMemMapFs(), 0, 0)
	_ = rw.Close()

	if _, err := rw.Write([]byte("x")); err == nil {
		t.Error("Write after Close should fail")
	}
	if err := rw.Close(); err != nil {
		t.Errorf("second Close() = %v, want nil", err)
	}
}

func TestRotatingWriter_Concurrent(t *testing.T) {
	fs := afero.NewMemMapFs()
	rw := newTestWriter(t, fs, 0, 0)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_, _ = rw.Write([]byte("line\n"))
			}
		}()
	}
	wg.Wait()
	_ = rw.Close()

	data, _ := afero.ReadFile(fs, rw.FilePath())
	if got := strings.Count(string(data), "line\n"); got != 400 {
		t.Errorf("got %d lines, want 400", got)
	}
}

func TestDefaultRotationConfig(t *testing.T) {
	cfg := DefaultRotationConfig()
	if cfg.MaxSizeMB <= 0 || cfg.MaxBackups <= 0 {
		t.Errorf("DefaultRotationConfig() = %+v, want positive limits", cfg)
	}
}
