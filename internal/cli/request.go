package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/cwygoda/thaw/internal/domain"
)

// Request describes an archive to download. FileSize may be written as a
// number or as a numeric string.
type Request struct {
	ArchiveID     string      `json:"archiveId"`
	LocalFileName string      `json:"localFileName"`
	FileSize      json.Number `json:"fileSize"`
}

// LoadRequest reads a download request file.
func LoadRequest(path string) (*Request, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read request: %w", err)
	}
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("parse request %s: %w", path, err)
	}
	return &req, nil
}

// ArchiveInfo builds the download description for vault.
func (r *Request) ArchiveInfo(vault string) (domain.ArchiveInfo, error) {
	var size int64
	if r.FileSize != "" {
		n, err := r.FileSize.Int64()
		if err != nil {
			return domain.ArchiveInfo{}, fmt.Errorf("%w: fileSize %q: %v", domain.ErrInvalidArchive, r.FileSize, err)
		}
		size = n
	}
	return domain.OfRemote(vault, r.ArchiveID, r.LocalFileName, size)
}
