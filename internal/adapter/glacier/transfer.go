package glacier

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/glacier"
	"github.com/sethvargo/go-retry"

	"github.com/cwygoda/thaw/internal/domain"
	"github.com/cwygoda/thaw/internal/fsutil"
	"github.com/cwygoda/thaw/internal/progress"
)

// BulkUpload uploads localPath as a new archive in parts of the configured
// size and returns the archive id. A failed upload is aborted server-side.
func (c *Client) BulkUpload(ctx context.Context, vault, description, localPath string, listener progress.Listener) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("open archive: %w", err)
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("stat archive: %w", err)
	}
	size := fi.Size()

	init, err := c.api.InitiateMultipartUpload(ctx, &glacier.InitiateMultipartUploadInput{
		AccountId:          aws.String(accountID),
		VaultName:          aws.String(vault),
		ArchiveDescription: aws.String(description),
		PartSize:           aws.String(strconv.FormatInt(c.partSize, 10)),
	})
	if err != nil {
		return "", wrap("InitiateMultipartUpload", err)
	}
	uploadID := aws.ToString(init.UploadId)
	log := c.log.With("vault", vault, "upload_id", uploadID)
	log.Debug(ctx, "multipart upload initiated", "size", size, "part_size", c.partSize)

	notify(listener, progress.Started())

	archiveID, err := c.uploadParts(ctx, vault, uploadID, f, size, listener)
	if err != nil {
		// Abort even if ctx is already cancelled.
		_, abortErr := c.api.AbortMultipartUpload(context.WithoutCancel(ctx), &glacier.AbortMultipartUploadInput{
			AccountId: aws.String(accountID),
			VaultName: aws.String(vault),
			UploadId:  aws.String(uploadID),
		})
		if abortErr != nil {
			log.Warn(ctx, "abort multipart upload failed", "error", abortErr)
		}
		return "", err
	}

	notify(listener, progress.Completed())
	return archiveID, nil
}

func (c *Client) uploadParts(ctx context.Context, vault, uploadID string, r io.Reader, size int64, listener progress.Listener) (string, error) {
	buf := make([]byte, min(c.partSize, max(size, 1)))
	var leaves [][]byte

	for off := int64(0); off < size; {
		n, err := io.ReadFull(r, buf)
		if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
			return "", fmt.Errorf("read archive at offset %d: %w", off, err)
		}
		part := buf[:n]
		partLeaves := leafHashes(part)
		checksum := hex.EncodeToString(treeHash(partLeaves))
		rng := fmt.Sprintf("bytes %d-%d/*", off, off+int64(n)-1)

		err = retry.Do(ctx, c.backoff(), func(ctx context.Context) error {
			_, err := c.api.UploadMultipartPart(ctx, &glacier.UploadMultipartPartInput{
				AccountId: aws.String(accountID),
				VaultName: aws.String(vault),
				UploadId:  aws.String(uploadID),
				Range:     aws.String(rng),
				Checksum:  aws.String(checksum),
				Body:      bytes.NewReader(part),
			})
			return retryable(wrap("UploadMultipartPart", err))
		})
		if err != nil {
			return "", err
		}

		leaves = append(leaves, partLeaves...)
		off += int64(n)
		notify(listener, progress.Bytes(int64(n)))
	}

	if size == 0 {
		leaves = leafHashes(nil)
	}
	out, err := c.api.CompleteMultipartUpload(ctx, &glacier.CompleteMultipartUploadInput{
		AccountId:   aws.String(accountID),
		VaultName:   aws.String(vault),
		UploadId:    aws.String(uploadID),
		ArchiveSize: aws.String(strconv.FormatInt(size, 10)),
		Checksum:    aws.String(hex.EncodeToString(treeHash(leaves))),
	})
	if err != nil {
		return "", wrap("CompleteMultipartUpload", err)
	}
	return aws.ToString(out.ArchiveId), nil
}

// BulkDownload writes the output of a completed retrieval job to destPath
// in ranges of the configured part size. destPath only appears once every
// byte has been written and verified.
func (c *Client) BulkDownload(ctx context.Context, vault, jobID, destPath string, size int64, listener progress.Listener) error {
	if size <= 0 {
		desc, err := c.api.DescribeJob(ctx, &glacier.DescribeJobInput{
			AccountId: aws.String(accountID),
			VaultName: aws.String(vault),
			JobId:     aws.String(jobID),
		})
		if err != nil {
			return wrap("DescribeJob", err)
		}
		size = aws.ToInt64(desc.ArchiveSizeInBytes)
	}

	notify(listener, progress.Started())
	r := &rangeReader{
		ctx:      ctx,
		client:   c,
		vault:    vault,
		jobID:    jobID,
		size:     size,
		listener: listener,
	}
	if _, err := fsutil.WriteAtomic(destPath, r, 0o644); err != nil {
		return err
	}
	notify(listener, progress.Completed())
	return nil
}

// rangeReader streams job output one verified range at a time.
type rangeReader struct {
	ctx      context.Context
	client   *Client
	vault    string
	jobID    string
	size     int64
	off      int64
	buf      []byte
	listener progress.Listener
}

func (r *rangeReader) Read(p []byte) (int, error) {
	if len(r.buf) == 0 {
		if r.off >= r.size {
			return 0, io.EOF
		}
		chunk, err := r.fetch()
		if err != nil {
			return 0, err
		}
		r.buf = chunk
		r.off += int64(len(chunk))
		notify(r.listener, progress.Bytes(int64(len(chunk))))
	}
	n := copy(p, r.buf)
	r.buf = r.buf[n:]
	return n, nil
}

func (r *rangeReader) fetch() ([]byte, error) {
	end := min(r.off+r.client.partSize, r.size) - 1
	rng := fmt.Sprintf("bytes=%d-%d", r.off, end)

	var chunk []byte
	err := retry.Do(r.ctx, r.client.backoff(), func(ctx context.Context) error {
		out, err := r.client.api.GetJobOutput(ctx, &glacier.GetJobOutputInput{
			AccountId: aws.String(accountID),
			VaultName: aws.String(r.vault),
			JobId:     aws.String(r.jobID),
			Range:     aws.String(rng),
		})
		if err != nil {
			return retryable(wrap("GetJobOutput", err))
		}
		defer out.Body.Close()

		data, err := io.ReadAll(out.Body)
		if err != nil {
			return retry.RetryableError(fmt.Errorf("read range %s: %w", rng, err))
		}
		if want := int(end - r.off + 1); len(data) != want {
			return retry.RetryableError(fmt.Errorf("range %s: got %d bytes, want %d", rng, len(data), want))
		}
		if sum := aws.ToString(out.Checksum); sum != "" && sum != TreeHash(data) {
			return retry.RetryableError(fmt.Errorf("range %s: %w", rng, ErrChecksumMismatch))
		}
		chunk = data
		return nil
	})
	return chunk, err
}

func retryable(err error) error {
	if domain.IsTransient(err) {
		return retry.RetryableError(err)
	}
	return err
}

func notify(l progress.Listener, ev progress.Event) {
	if l != nil {
		l(ev)
	}
}
