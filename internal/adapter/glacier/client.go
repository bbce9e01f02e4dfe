// Package glacier adapts the Amazon S3 Glacier vault API to the domain
// ports: retrieval and inventory jobs, multipart upload, ranged download
// and archive deletion.
package glacier

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/glacier"
	"github.com/aws/aws-sdk-go-v2/service/glacier/types"
	"github.com/sethvargo/go-retry"

	"github.com/cwygoda/thaw/internal/domain"
	"github.com/cwygoda/thaw/internal/logging"
)

// accountID "-" selects the account the credentials belong to.
const accountID = "-"

const (
	DefaultPartSize = 64 << 20
	minPartSize     = 1 << 20
	maxPartSize     = 4 << 30
)

// Options configures New.
type Options struct {
	Region string
	// CredentialsFile points to a JSON file with static credentials. When
	// empty the default AWS credential chain is used.
	CredentialsFile string
	// PartSize is used for both multipart upload and ranged download. It
	// must be a power of two between 1 MiB and 4 GiB.
	PartSize int64
	// PartAttempts bounds retries of a single part on transient errors.
	PartAttempts uint64
	// PartBackoff is the base of the exponential backoff between attempts.
	PartBackoff time.Duration
	Log         logging.Logger
}

// Client implements domain.JobBackend, domain.Transferer and
// domain.ArchiveDeleter on top of the Glacier API.
type Client struct {
	api          API
	partSize     int64
	partAttempts uint64
	partBackoff  time.Duration
	log          logging.Logger
}

// New loads the AWS configuration and creates a Client.
func New(ctx context.Context, opts Options) (*Client, error) {
	var loadOpts []func(*config.LoadOptions) error

	region := opts.Region
	if opts.CredentialsFile != "" {
		creds, err := LoadCredentials(opts.CredentialsFile)
		if err != nil {
			return nil, err
		}
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(creds.AccessKeyID, creds.SecretAccessKey, ""),
		))
		if region == "" {
			region = creds.Region
		}
	}
	if region != "" {
		loadOpts = append(loadOpts, config.WithRegion(region))
	}

	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	if cfg.Region == "" {
		return nil, fmt.Errorf("no aws region configured")
	}

	return NewWithAPI(glacier.NewFromConfig(cfg), opts)
}

// NewWithAPI creates a Client around an existing API implementation.
func NewWithAPI(api API, opts Options) (*Client, error) {
	partSize := opts.PartSize
	if partSize == 0 {
		partSize = DefaultPartSize
	}
	if err := ValidatePartSize(partSize); err != nil {
		return nil, err
	}
	attempts := opts.PartAttempts
	if attempts == 0 {
		attempts = 5
	}
	backoff := opts.PartBackoff
	if backoff <= 0 {
		backoff = time.Second
	}
	log := opts.Log
	if log == nil {
		log = logging.Discard()
	}
	return &Client{
		api:          api,
		partSize:     partSize,
		partAttempts: attempts,
		partBackoff:  backoff,
		log:          log,
	}, nil
}

// ValidatePartSize checks size against the service's multipart constraints.
func ValidatePartSize(size int64) error {
	if size < minPartSize || size > maxPartSize || size&(size-1) != 0 {
		return fmt.Errorf("part size %d must be a power of two between 1 MiB and 4 GiB", size)
	}
	return nil
}

func (c *Client) InitiateRetrievalJob(ctx context.Context, vault, archiveID, tier, description string) (string, error) {
	out, err := c.api.InitiateJob(ctx, &glacier.InitiateJobInput{
		AccountId: aws.String(accountID),
		VaultName: aws.String(vault),
		JobParameters: &types.JobParameters{
			Type:        aws.String(domain.JobTypeArchiveRetrieval),
			ArchiveId:   aws.String(archiveID),
			Tier:        aws.String(tier),
			Description: aws.String(description),
		},
	})
	if err != nil {
		return "", wrap("InitiateJob", err)
	}
	return aws.ToString(out.JobId), nil
}

func (c *Client) InitiateInventoryJob(ctx context.Context, vault string) (string, error) {
	out, err := c.api.InitiateJob(ctx, &glacier.InitiateJobInput{
		AccountId: aws.String(accountID),
		VaultName: aws.String(vault),
		JobParameters: &types.JobParameters{
			Type:   aws.String(domain.JobTypeInventoryRetrieval),
			Format: aws.String("JSON"),
		},
	})
	if err != nil {
		return "", wrap("InitiateJob", err)
	}
	return aws.ToString(out.JobId), nil
}

func (c *Client) DescribeJob(ctx context.Context, vault, jobID string) (*domain.JobStatus, error) {
	out, err := c.api.DescribeJob(ctx, &glacier.DescribeJobInput{
		AccountId: aws.String(accountID),
		VaultName: aws.String(vault),
		JobId:     aws.String(jobID),
	})
	if err != nil {
		return nil, wrap("DescribeJob", err)
	}
	return &domain.JobStatus{
		Completed:     out.Completed,
		StatusCode:    string(out.StatusCode),
		StatusMessage: aws.ToString(out.StatusMessage),
		SizeBytes:     aws.ToInt64(out.ArchiveSizeInBytes),
	}, nil
}

func (c *Client) FetchJobOutput(ctx context.Context, vault, jobID string) (io.ReadCloser, error) {
	out, err := c.api.GetJobOutput(ctx, &glacier.GetJobOutputInput{
		AccountId: aws.String(accountID),
		VaultName: aws.String(vault),
		JobId:     aws.String(jobID),
	})
	if err != nil {
		return nil, wrap("GetJobOutput", err)
	}
	return out.Body, nil
}

func (c *Client) DeleteArchive(ctx context.Context, vault, archiveID string) error {
	_, err := c.api.DeleteArchive(ctx, &glacier.DeleteArchiveInput{
		AccountId: aws.String(accountID),
		VaultName: aws.String(vault),
		ArchiveId: aws.String(archiveID),
	})
	return wrap("DeleteArchive", err)
}

// backoff governs retries of a single part after a transient error.
func (c *Client) backoff() retry.Backoff {
	return retry.WithMaxRetries(c.partAttempts-1, retry.NewExponential(c.partBackoff))
}
