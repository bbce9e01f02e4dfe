package glacier

import (
	"crypto/sha256"
	"encoding/hex"
)

const leafSize = 1 << 20

// leafHashes returns the SHA-256 of every 1 MiB chunk of data. An empty
// input has a single leaf, the hash of nothing.
func leafHashes(data []byte) [][]byte {
	if len(data) == 0 {
		sum := sha256.Sum256(nil)
		return [][]byte{sum[:]}
	}
	leaves := make([][]byte, 0, (len(data)+leafSize-1)/leafSize)
	for off := 0; off < len(data); off += leafSize {
		end := min(off+leafSize, len(data))
		sum := sha256.Sum256(data[off:end])
		leaves = append(leaves, sum[:])
	}
	return leaves
}

// treeHash folds leaf hashes pairwise until one remains. An odd hash at the
// end of a level is promoted unchanged.
func treeHash(leaves [][]byte) []byte {
	if len(leaves) == 0 {
		return nil
	}
	level := leaves
	for len(level) > 1 {
		next := make([][]byte, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			if i+1 == len(level) {
				next = append(next, level[i])
				continue
			}
			h := sha256.New()
			h.Write(level[i])
			h.Write(level[i+1])
			next = append(next, h.Sum(nil))
		}
		level = next
	}
	return level[0]
}

// TreeHash returns the hex tree hash of data.
func TreeHash(data []byte) string {
	return hex.EncodeToString(treeHash(leafHashes(data)))
}
