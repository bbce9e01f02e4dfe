package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/cwygoda/thaw/internal/domain"
	"github.com/cwygoda/thaw/internal/inventory"
	"github.com/cwygoda/thaw/internal/logging"
	"github.com/cwygoda/thaw/internal/transfer"
)

// App runs parsed commands. Services a command does not use may be nil.
type App struct {
	Retrievals    *domain.RetrievalService
	Inventories   *domain.InventoryService
	Archives      *domain.ArchiveService
	Transfers     *transfer.Executor
	SizeThreshold int64
	Out           io.Writer
	Log           logging.Logger
}

// Run executes cmd.
func (a *App) Run(ctx context.Context, cmd *Command) error {
	switch cmd.Name {
	case CmdUpload:
		return a.upload(ctx, cmd)
	case CmdDownload:
		return a.download(ctx, cmd)
	case CmdInventory:
		return a.inventory(ctx, cmd)
	case CmdDelete:
		return a.Archives.Delete(ctx, cmd.Vault, cmd.ArchiveID)
	case CmdCheck:
		return a.check(cmd)
	}
	return fmt.Errorf("%w: unknown command %q", ErrUsage, cmd.Name)
}

func (a *App) upload(ctx context.Context, cmd *Command) error {
	info, err := domain.OfLocal(cmd.Vault, cmd.File)
	if err != nil {
		return err
	}
	archiveID, _, err := a.Transfers.Upload(ctx, info)
	if err != nil {
		return fmt.Errorf("upload %s: %w", cmd.File, err)
	}
	fmt.Fprintln(a.Out, archiveID)
	return nil
}

func (a *App) download(ctx context.Context, cmd *Command) error {
	req, err := LoadRequest(cmd.File)
	if err != nil {
		return err
	}
	info, err := req.ArchiveInfo(cmd.Vault)
	if err != nil {
		return err
	}

	r, err := a.Retrievals.Prepare(ctx, info)
	if err != nil {
		return err
	}
	if info.SizeBytes() == 0 && r.Status.SizeBytes > 0 {
		// Request carried no size; use the one reported with the job.
		if info, err = domain.OfRemote(info.Vault(), info.ArchiveID(), info.LocalPath(), r.Status.SizeBytes); err != nil {
			return err
		}
	}
	if _, err := a.Transfers.Download(ctx, info, r.State.JobID); err != nil {
		return fmt.Errorf("download %s: %w", info.LocalPath(), err)
	}
	return a.Retrievals.Cleanup(ctx, info)
}

func (a *App) inventory(ctx context.Context, cmd *Command) error {
	path, err := a.Inventories.Retrieve(ctx, cmd.Vault)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.Out, path)
	return nil
}

func (a *App) check(cmd *Command) error {
	invFile, err := os.Open(cmd.File)
	if err != nil {
		return fmt.Errorf("open inventory: %w", err)
	}
	defer invFile.Close()
	inv, err := inventory.Parse(invFile)
	if err != nil {
		return err
	}

	listFile, err := os.Open(cmd.Listing)
	if err != nil {
		return fmt.Errorf("open listing: %w", err)
	}
	defer listFile.Close()
	local, err := inventory.ParseListing(listFile)
	if err != nil {
		return err
	}

	missing := 0
	for _, f := range inventory.Compare(local, inv.Sizes(), a.SizeThreshold) {
		level := "WARN"
		if f.Severe() {
			level = "ERROR"
			missing++
		}
		fmt.Fprintf(a.Out, "[%s] %s\n", level, f)
	}
	if missing > 0 {
		return fmt.Errorf("%d local files are missing from the vault", missing)
	}
	return nil
}
