// Package inventory reads vault inventories and checks them against a local
// listing of the files that were meant to be backed up.
package inventory

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/cwygoda/thaw/internal/domain"
)

// Inventory is the document returned by an inventory-retrieval job.
type Inventory struct {
	VaultARN      string    `json:"VaultARN"`
	InventoryDate time.Time `json:"InventoryDate"`
	ArchiveList   []Archive `json:"ArchiveList"`
}

// Archive is one entry of an inventory.
type Archive struct {
	ArchiveID          string    `json:"ArchiveId"`
	ArchiveDescription string    `json:"ArchiveDescription"`
	CreationDate       time.Time `json:"CreationDate"`
	Size               int64     `json:"Size"`
	SHA256TreeHash     string    `json:"SHA256TreeHash"`
}

// Name is the archive's description with the upload prefix and the .zip
// suffix removed, which is how local listings name it.
func (a Archive) Name() string {
	name := strings.TrimPrefix(a.ArchiveDescription, domain.DescriptionPrefix)
	return strings.TrimSuffix(name, ".zip")
}

// Parse decodes an inventory document.
func Parse(r io.Reader) (*Inventory, error) {
	var inv Inventory
	if err := json.NewDecoder(r).Decode(&inv); err != nil {
		return nil, fmt.Errorf("decode inventory: %w", err)
	}
	return &inv, nil
}

// Sizes maps every archive name to its size in bytes. When names collide
// the later archive wins.
func (inv *Inventory) Sizes() map[string]int64 {
	sizes := make(map[string]int64, len(inv.ArchiveList))
	for _, a := range inv.ArchiveList {
		sizes[a.Name()] = a.Size
	}
	return sizes
}

// TotalSize sums the size of every archive.
func (inv *Inventory) TotalSize() int64 {
	var total int64
	for _, a := range inv.ArchiveList {
		total += a.Size
	}
	return total
}
