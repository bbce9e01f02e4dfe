// Package cli parses thaw's subcommands and runs them against the domain
// services.
package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// Subcommands.
const (
	CmdUpload    = "upload"
	CmdDownload  = "download"
	CmdInventory = "inventory"
	CmdDelete    = "delete"
	CmdCheck     = "check"
)

// ErrUsage marks invalid command lines. Callers exit with status 2.
var ErrUsage = errors.New("usage error")

// Command is a parsed command line.
type Command struct {
	Name  string
	Vault string
	// File is the archive for upload, the request for download and the
	// inventory for check.
	File      string
	ArchiveID string
	Listing   string
}

// NeedsBackend reports whether the command talks to the vault service.
func (c *Command) NeedsBackend() bool { return c.Name != CmdCheck }

var arity = map[string]int{
	CmdUpload:    2,
	CmdDownload:  2,
	CmdInventory: 1,
	CmdDelete:    2,
	CmdCheck:     2,
}

// Parse validates positional arguments. Every error it returns matches
// ErrUsage.
func Parse(args []string) (*Command, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("%w: missing command", ErrUsage)
	}
	name, rest := args[0], args[1:]
	want, ok := arity[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown command %q", ErrUsage, name)
	}
	if len(rest) != want {
		return nil, fmt.Errorf("%w: %s takes %d arguments, got %d", ErrUsage, name, want, len(rest))
	}

	cmd := &Command{Name: name}
	switch name {
	case CmdUpload, CmdDownload:
		cmd.Vault, cmd.File = rest[0], rest[1]
		if err := regularFile(cmd.File); err != nil {
			return nil, err
		}
	case CmdInventory:
		cmd.Vault = rest[0]
	case CmdDelete:
		cmd.Vault, cmd.ArchiveID = rest[0], rest[1]
		if cmd.ArchiveID == "" {
			return nil, fmt.Errorf("%w: archive id must not be empty", ErrUsage)
		}
	case CmdCheck:
		cmd.File, cmd.Listing = rest[0], rest[1]
		if err := regularFile(cmd.File); err != nil {
			return nil, err
		}
		if err := regularFile(cmd.Listing); err != nil {
			return nil, err
		}
		return cmd, nil
	}

	if cmd.Vault == "" {
		return nil, fmt.Errorf("%w: vault must not be empty", ErrUsage)
	}
	return cmd, nil
}

func regularFile(path string) error {
	fi, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUsage, err)
	}
	if !fi.Mode().IsRegular() {
		return fmt.Errorf("%w: %s is not a regular file", ErrUsage, path)
	}
	return nil
}

// Usage prints the command summary.
func Usage(w io.Writer) {
	fmt.Fprint(w, `usage: thaw [flags] <command> <args>

commands:
  upload <vault> <file>               upload file as a new archive
  download <vault> <requestFile>      retrieve and download an archive
  inventory <vault>                   retrieve the vault inventory
  delete <vault> <archiveId>          delete an archive
  check <inventoryFile> <listingFile> compare an inventory with a du -k listing

Run 'thaw -h' for flags.
`)
}
