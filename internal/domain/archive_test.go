package domain

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestOfLocal(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "backup.zip")
	if err := os.WriteFile(path, make([]byte, 2048), 0o600); err != nil {
		t.Fatal(err)
	}

	info, err := OfLocal("photos", path)
	if err != nil {
		t.Fatalf("OfLocal() error = %v", err)
	}
	if info.SizeBytes() != 2048 {
		t.Errorf("SizeBytes() = %d, want 2048", info.SizeBytes())
	}
	if info.IsRemote() {
		t.Error("IsRemote() = true for local archive")
	}
	if got, want := info.Description(), "Glacier backup of "+path; got != want {
		t.Errorf("Description() = %q, want %q", got, want)
	}
}

func TestOfLocal_Errors(t *testing.T) {
	dir := t.TempDir()

	if _, err := OfLocal("", filepath.Join(dir, "x")); !errors.Is(err, ErrEmptyVault) {
		t.Errorf("empty vault: error = %v, want ErrEmptyVault", err)
	}
	if _, err := OfLocal("photos", filepath.Join(dir, "missing")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing file: error = %v, want os.ErrNotExist", err)
	}
	if _, err := OfLocal("photos", dir); !errors.Is(err, ErrInvalidArchive) {
		t.Errorf("directory: error = %v, want ErrInvalidArchive", err)
	}
}

func TestOfRemote(t *testing.T) {
	tests := []struct {
		name      string
		vault     string
		archiveID string
		path      string
		size      int64
		wantErr   error
	}{
		{name: "valid", vault: "v", archiveID: "A1", path: "out.zip", size: 1},
		{name: "zero size", vault: "v", archiveID: "A1", path: "out.zip", size: 0},
		{name: "empty vault", archiveID: "A1", path: "out.zip", wantErr: ErrEmptyVault},
		{name: "empty archive id", vault: "v", path: "out.zip", wantErr: ErrInvalidArchive},
		{name: "empty path", vault: "v", archiveID: "A1", wantErr: ErrInvalidArchive},
		{name: "negative size", vault: "v", archiveID: "A1", path: "out.zip", size: -1, wantErr: ErrInvalidArchive},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info, err := OfRemote(tt.vault, tt.archiveID, tt.path, tt.size)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("OfRemote() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("OfRemote() error = %v", err)
			}
			if !info.IsRemote() {
				t.Error("IsRemote() = false")
			}
		})
	}
}

func TestArchiveInfo_Descriptions(t *testing.T) {
	info, _ := OfRemote("photos", "A1", "/srv/restore/2023.zip", 3*1024*1024)

	if got := info.RetrievalDescription(); got != "Downloading 2023.zip" {
		t.Errorf("RetrievalDescription() = %q", got)
	}
	if got := info.SizeMB(); got != 3 {
		t.Errorf("SizeMB() = %v, want 3", got)
	}
}

func TestArchiveInfo_StateKey(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"2023.zip", "2023.zip"},
		{"./2023.zip", "2023.zip"},
		{"restore/../2023.zip", "2023.zip"},
		{"restore/2023.zip", "restore%2F2023.zip"},
		{"/srv/restore/2023.zip", "%2Fsrv%2Frestore%2F2023.zip"},
		{"100%.zip", "100%25.zip"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			info, err := OfRemote("photos", "A1", tt.path, 1)
			if err != nil {
				t.Fatalf("OfRemote() error = %v", err)
			}
			if got := info.StateKey(); got != tt.want {
				t.Errorf("StateKey() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestArchiveInfo_StateKeyDistinctDirectories(t *testing.T) {
	a, _ := OfRemote("photos", "A1", "2023/backup.zip", 1)
	b, _ := OfRemote("photos", "A2", "2024/backup.zip", 1)
	if a.StateKey() == b.StateKey() {
		t.Errorf("StateKey() collides for %q and %q", a.LocalPath(), b.LocalPath())
	}
}

func TestErrors(t *testing.T) {
	if !errors.Is(ErrJobStateMismatch, ErrJobStateNotFound) {
		t.Error("ErrJobStateMismatch should match ErrJobStateNotFound")
	}

	transient := &TransientError{Code: "ThrottlingException", Err: errors.New("slow down")}
	wrapped := errors.Join(errors.New("describe job"), transient)
	if !IsTransient(wrapped) {
		t.Error("IsTransient() = false for wrapped TransientError")
	}
	if IsTransient(errors.New("access denied")) {
		t.Error("IsTransient() = true for plain error")
	}

	failed := &JobFailedError{JobID: "J1", StatusCode: "Failed", StatusMessage: "archive gone"}
	if got, want := failed.Error(), "job J1 failed (Failed): archive gone"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}
