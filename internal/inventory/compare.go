package inventory

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/dustin/go-humanize"
)

// DefaultSizeThreshold is the size difference tolerated between a local file
// and its archive. Compression makes exact matches rare.
const DefaultSizeThreshold = 2 << 20

type FindingKind string

const (
	// FindingMissing is a local file with no archive.
	FindingMissing FindingKind = "missing"
	// FindingSize is an archive whose size is too far from the local file.
	FindingSize FindingKind = "size"
	// FindingExtra is an archive with no local file.
	FindingExtra FindingKind = "extra"
)

// Finding is one discrepancy between a listing and an inventory.
type Finding struct {
	Kind       FindingKind
	Name       string
	LocalSize  int64
	RemoteSize int64
}

// Severe reports findings that mean data is not backed up.
func (f Finding) Severe() bool { return f.Kind == FindingMissing }

func (f Finding) String() string {
	switch f.Kind {
	case FindingMissing:
		return fmt.Sprintf("%s is missing from remote", f.Name)
	case FindingSize:
		return fmt.Sprintf("%s size differs: local %s, remote %s",
			f.Name, humanize.IBytes(uint64(f.LocalSize)), humanize.IBytes(uint64(f.RemoteSize)))
	default:
		return fmt.Sprintf("%s is in remote but not in local", f.Name)
	}
}

// Compare lists every discrepancy between local and remote sizes, sorted by
// kind (missing, size, extra) and then name. A non-positive threshold uses
// DefaultSizeThreshold.
func Compare(local, remote map[string]int64, threshold int64) []Finding {
	if threshold <= 0 {
		threshold = DefaultSizeThreshold
	}

	var findings []Finding
	for name, localSize := range local {
		remoteSize, ok := remote[name]
		if !ok {
			findings = append(findings, Finding{Kind: FindingMissing, Name: name, LocalSize: localSize})
			continue
		}
		if diff := localSize - remoteSize; diff > threshold || -diff > threshold {
			findings = append(findings, Finding{Kind: FindingSize, Name: name, LocalSize: localSize, RemoteSize: remoteSize})
		}
	}
	for name, remoteSize := range remote {
		if _, ok := local[name]; !ok {
			findings = append(findings, Finding{Kind: FindingExtra, Name: name, RemoteSize: remoteSize})
		}
	}

	order := map[FindingKind]int{FindingMissing: 0, FindingSize: 1, FindingExtra: 2}
	slices.SortFunc(findings, func(a, b Finding) int {
		return cmp.Or(cmp.Compare(order[a.Kind], order[b.Kind]), cmp.Compare(a.Name, b.Name))
	})
	return findings
}
