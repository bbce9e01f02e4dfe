package domain

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DescriptionPrefix starts every archive description written on upload.
// Operators identify archives by this string, so it must never change.
const DescriptionPrefix = "Glacier backup of "

// ArchiveInfo describes the source and destination of one transfer.
// It is immutable; use OfLocal or OfRemote to build one.
type ArchiveInfo struct {
	vault     string
	archiveID string
	localPath string
	sizeBytes int64
}

// OfLocal describes a local file about to be uploaded to vault.
// The size is taken from the file itself.
func OfLocal(vault, path string) (ArchiveInfo, error) {
	if vault == "" {
		return ArchiveInfo{}, ErrEmptyVault
	}
	fi, err := os.Stat(path)
	if err != nil {
		return ArchiveInfo{}, fmt.Errorf("stat archive %s: %w", path, err)
	}
	if !fi.Mode().IsRegular() {
		return ArchiveInfo{}, fmt.Errorf("%w: %s is not a regular file", ErrInvalidArchive, path)
	}
	return ArchiveInfo{
		vault:     vault,
		localPath: path,
		sizeBytes: fi.Size(),
	}, nil
}

// OfRemote describes a remote archive to be downloaded into path.
// The size comes from prior metadata (the download request).
func OfRemote(vault, archiveID, path string, sizeBytes int64) (ArchiveInfo, error) {
	switch {
	case vault == "":
		return ArchiveInfo{}, ErrEmptyVault
	case archiveID == "":
		return ArchiveInfo{}, fmt.Errorf("%w: archive id is required", ErrInvalidArchive)
	case path == "":
		return ArchiveInfo{}, fmt.Errorf("%w: local file name is required", ErrInvalidArchive)
	case sizeBytes < 0:
		return ArchiveInfo{}, fmt.Errorf("%w: negative size %d", ErrInvalidArchive, sizeBytes)
	}
	return ArchiveInfo{
		vault:     vault,
		archiveID: archiveID,
		localPath: path,
		sizeBytes: sizeBytes,
	}, nil
}

func (a ArchiveInfo) Vault() string     { return a.vault }
func (a ArchiveInfo) ArchiveID() string { return a.archiveID }
func (a ArchiveInfo) LocalPath() string { return a.localPath }
func (a ArchiveInfo) SizeBytes() int64  { return a.sizeBytes }

// IsRemote reports whether the info was built for a download.
func (a ArchiveInfo) IsRemote() bool { return a.archiveID != "" }

// Description returns the archive description used on upload.
func (a ArchiveInfo) Description() string {
	return DescriptionPrefix + a.localPath
}

// RetrievalDescription returns the description attached to retrieval jobs.
func (a ArchiveInfo) RetrievalDescription() string {
	return "Downloading " + filepath.Base(a.localPath)
}

var keyEscaper = strings.NewReplacer("%", "%25", "/", "%2F")

// StateKey identifies the persisted job state for this archive. It is the
// cleaned destination path as given, flattened into a single file name, so
// equal base names in different directories do not share a record.
func (a ArchiveInfo) StateKey() string {
	return keyEscaper.Replace(filepath.ToSlash(filepath.Clean(a.localPath)))
}

// SizeMB returns the size in mebibytes.
func (a ArchiveInfo) SizeMB() float64 {
	return float64(a.sizeBytes) / (1024 * 1024)
}
