package glacier

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/glacier"
)

// API is the subset of the Glacier client used by this package.
type API interface {
	InitiateJob(ctx context.Context, params *glacier.InitiateJobInput, optFns ...func(*glacier.Options)) (*glacier.InitiateJobOutput, error)
	DescribeJob(ctx context.Context, params *glacier.DescribeJobInput, optFns ...func(*glacier.Options)) (*glacier.DescribeJobOutput, error)
	GetJobOutput(ctx context.Context, params *glacier.GetJobOutputInput, optFns ...func(*glacier.Options)) (*glacier.GetJobOutputOutput, error)

	InitiateMultipartUpload(
		ctx context.Context,
		params *glacier.InitiateMultipartUploadInput,
		optFns ...func(*glacier.Options),
	) (*glacier.InitiateMultipartUploadOutput, error)
	UploadMultipartPart(
		ctx context.Context,
		params *glacier.UploadMultipartPartInput,
		optFns ...func(*glacier.Options),
	) (*glacier.UploadMultipartPartOutput, error)
	CompleteMultipartUpload(
		ctx context.Context,
		params *glacier.CompleteMultipartUploadInput,
		optFns ...func(*glacier.Options),
	) (*glacier.CompleteMultipartUploadOutput, error)
	AbortMultipartUpload(
		ctx context.Context,
		params *glacier.AbortMultipartUploadInput,
		optFns ...func(*glacier.Options),
	) (*glacier.AbortMultipartUploadOutput, error)

	DeleteArchive(ctx context.Context, params *glacier.DeleteArchiveInput, optFns ...func(*glacier.Options)) (*glacier.DeleteArchiveOutput, error)
}
