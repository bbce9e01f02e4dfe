package glacier

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/glacier"
	"github.com/aws/aws-sdk-go-v2/service/glacier/types"
	"github.com/aws/smithy-go"
)

// fakeAPI is an in-memory vault good enough for round trips.
type fakeAPI struct {
	mu sync.Mutex

	jobs      map[string]*glacier.DescribeJobOutput
	jobInputs []*glacier.InitiateJobInput
	output    []byte
	// corrupt flips the checksum of the first n ranged reads
	corrupt int

	uploads   map[string]*fakeUpload
	archives  map[string][]byte
	aborted   []string
	deleted   []string
	rangeReqs []string

	// failures are returned once each, in order, by the named operation
	failures map[string][]error
}

type fakeUpload struct {
	description string
	partSize    int64
	data        []byte
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		jobs:     make(map[string]*glacier.DescribeJobOutput),
		uploads:  make(map[string]*fakeUpload),
		archives: make(map[string][]byte),
		failures: make(map[string][]error),
	}
}

func (f *fakeAPI) failNext(op string, errs ...error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[op] = append(f.failures[op], errs...)
}

func (f *fakeAPI) popFailure(op string) error {
	errs := f.failures[op]
	if len(errs) == 0 {
		return nil
	}
	f.failures[op] = errs[1:]
	return errs[0]
}

func apiError(code string) error {
	return &smithy.GenericAPIError{Code: code, Message: code}
}

func (f *fakeAPI) InitiateJob(ctx context.Context, in *glacier.InitiateJobInput, _ ...func(*glacier.Options)) (*glacier.InitiateJobOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.popFailure("InitiateJob"); err != nil {
		return nil, err
	}
	f.jobInputs = append(f.jobInputs, in)
	id := fmt.Sprintf("job-%d", len(f.jobInputs))
	f.jobs[id] = &glacier.DescribeJobOutput{JobId: aws.String(id), StatusCode: types.StatusCodeInProgress}
	return &glacier.InitiateJobOutput{JobId: aws.String(id)}, nil
}

func (f *fakeAPI) DescribeJob(ctx context.Context, in *glacier.DescribeJobInput, _ ...func(*glacier.Options)) (*glacier.DescribeJobOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.popFailure("DescribeJob"); err != nil {
		return nil, err
	}
	job, ok := f.jobs[aws.ToString(in.JobId)]
	if !ok {
		return nil, apiError("ResourceNotFoundException")
	}
	return job, nil
}

func (f *fakeAPI) GetJobOutput(ctx context.Context, in *glacier.GetJobOutputInput, _ ...func(*glacier.Options)) (*glacier.GetJobOutputOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.popFailure("GetJobOutput"); err != nil {
		return nil, err
	}
	if in.Range == nil {
		return &glacier.GetJobOutputOutput{Body: io.NopCloser(bytes.NewReader(f.output))}, nil
	}

	rng := aws.ToString(in.Range)
	f.rangeReqs = append(f.rangeReqs, rng)
	var start, end int64
	if _, err := fmt.Sscanf(rng, "bytes=%d-%d", &start, &end); err != nil {
		return nil, apiError("InvalidParameterValueException")
	}
	data := f.output[start : end+1]
	sum := TreeHash(data)
	if f.corrupt > 0 {
		f.corrupt--
		sum = strings.Repeat("0", 64)
	}
	return &glacier.GetJobOutputOutput{
		Body:     io.NopCloser(bytes.NewReader(data)),
		Checksum: aws.String(sum),
	}, nil
}

func (f *fakeAPI) InitiateMultipartUpload(
	ctx context.Context,
	in *glacier.InitiateMultipartUploadInput,
	_ ...func(*glacier.Options),
) (*glacier.InitiateMultipartUploadOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.popFailure("InitiateMultipartUpload"); err != nil {
		return nil, err
	}
	partSize, err := strconv.ParseInt(aws.ToString(in.PartSize), 10, 64)
	if err != nil {
		return nil, apiError("InvalidParameterValueException")
	}
	id := fmt.Sprintf("upload-%d", len(f.uploads)+1)
	f.uploads[id] = &fakeUpload{description: aws.ToString(in.ArchiveDescription), partSize: partSize}
	return &glacier.InitiateMultipartUploadOutput{UploadId: aws.String(id)}, nil
}

func (f *fakeAPI) UploadMultipartPart(
	ctx context.Context,
	in *glacier.UploadMultipartPartInput,
	_ ...func(*glacier.Options),
) (*glacier.UploadMultipartPartOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.popFailure("UploadMultipartPart"); err != nil {
		return nil, err
	}
	up, ok := f.uploads[aws.ToString(in.UploadId)]
	if !ok {
		return nil, apiError("ResourceNotFoundException")
	}
	var start, end int64
	if _, err := fmt.Sscanf(aws.ToString(in.Range), "bytes %d-%d/*", &start, &end); err != nil {
		return nil, apiError("InvalidParameterValueException")
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	if int64(len(data)) != end-start+1 || start%up.partSize != 0 {
		return nil, apiError("InvalidParameterValueException")
	}
	if TreeHash(data) != aws.ToString(in.Checksum) {
		return nil, apiError("InvalidParameterValueException")
	}
	if int64(len(up.data)) < end+1 {
		up.data = append(up.data, make([]byte, end+1-int64(len(up.data)))...)
	}
	copy(up.data[start:], data)
	return &glacier.UploadMultipartPartOutput{Checksum: in.Checksum}, nil
}

func (f *fakeAPI) CompleteMultipartUpload(
	ctx context.Context,
	in *glacier.CompleteMultipartUploadInput,
	_ ...func(*glacier.Options),
) (*glacier.CompleteMultipartUploadOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.popFailure("CompleteMultipartUpload"); err != nil {
		return nil, err
	}
	id := aws.ToString(in.UploadId)
	up, ok := f.uploads[id]
	if !ok {
		return nil, apiError("ResourceNotFoundException")
	}
	if strconv.Itoa(len(up.data)) != aws.ToString(in.ArchiveSize) || TreeHash(up.data) != aws.ToString(in.Checksum) {
		return nil, apiError("InvalidParameterValueException")
	}
	archiveID := "archive-" + id
	f.archives[archiveID] = up.data
	delete(f.uploads, id)
	return &glacier.CompleteMultipartUploadOutput{ArchiveId: aws.String(archiveID)}, nil
}

func (f *fakeAPI) AbortMultipartUpload(
	ctx context.Context,
	in *glacier.AbortMultipartUploadInput,
	_ ...func(*glacier.Options),
) (*glacier.AbortMultipartUploadOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := aws.ToString(in.UploadId)
	f.aborted = append(f.aborted, id)
	delete(f.uploads, id)
	return &glacier.AbortMultipartUploadOutput{}, nil
}

func (f *fakeAPI) DeleteArchive(ctx context.Context, in *glacier.DeleteArchiveInput, _ ...func(*glacier.Options)) (*glacier.DeleteArchiveOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.popFailure("DeleteArchive"); err != nil {
		return nil, err
	}
	f.deleted = append(f.deleted, aws.ToString(in.ArchiveId))
	return &glacier.DeleteArchiveOutput{}, nil
}
