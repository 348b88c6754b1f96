package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3Options configure the archive client. Endpoint targets S3-compatible
// services such as MinIO.
type S3Options struct {
	Region    string
	Bucket    string
	Endpoint  string
	PathStyle bool
}

// NewS3Client loads the default AWS credential chain.
func NewS3Client(ctx context.Context, opts S3Options) (*s3.Client, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if opts.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(opts.Region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
		o.UsePathStyle = opts.PathStyle
	}), nil
}

// objectAPI is the part of *s3.Client the provider uses.
type objectAPI interface {
	manager.UploadAPIClient
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	DeleteObjects(ctx context.Context, in *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
}

type S3Provider struct {
	client objectAPI
	bucket string
}

func NewS3Provider(client objectAPI, bucket string) *S3Provider {
	return &S3Provider{
		client: client,
		bucket: bucket,
	}
}

func (p *S3Provider) StreamToFile(ctx context.Context, key string) (io.WriteCloser, <-chan error) {
	errChan := make(chan error, 1)
	key, err := CleanKey(key)
	if err != nil {
		errChan <- err
		close(errChan)
		return nil, errChan
	}

	reader, writer := io.Pipe()
	go func() {
		defer close(errChan)

		uploader := manager.NewUploader(p.client, func(u *manager.Uploader) {
			u.PartSize = 10 * 1024 * 1024 // 10MB chunks
			u.Concurrency = 5
		})

		slog.Debug("Starting S3 upload", "key", key)
		_, err := uploader.Upload(ctx, &s3.PutObjectInput{
			Bucket: aws.String(p.bucket),
			Key:    aws.String(key),
			Body:   reader,
		})

		// Unblocks the writer if the upload stopped early.
		_ = reader.CloseWithError(err)

		if err != nil {
			slog.Error("S3 upload failed", "key", key, "error", err)
			errChan <- fmt.Errorf("s3 upload failed: %w", err)
			return
		}
		slog.Info("S3 upload finished", "key", key)
		errChan <- nil
	}()

	return writer, errChan
}

func (p *S3Provider) OpenFile(ctx context.Context, key string) (io.ReadCloser, error) {
	key, err := CleanKey(key)
	if err != nil {
		return nil, err
	}
	out, err := p.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(key),
	})
	var noKey *types.NoSuchKey
	if errors.As(err, &noKey) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return out.Body, nil
}

// Sweep deletes exported objects last modified before cutoff, one listing
// page at a time.
func (p *S3Provider) Sweep(ctx context.Context, cutoff time.Time) (int, error) {
	removed := 0
	paginator := s3.NewListObjectsV2Paginator(p.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(p.bucket),
		Prefix: aws.String(ExportPrefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return removed, fmt.Errorf("list archived exports: %w", err)
		}

		var stale []types.ObjectIdentifier
		for _, obj := range page.Contents {
			if obj.LastModified != nil && obj.LastModified.Before(cutoff) {
				stale = append(stale, types.ObjectIdentifier{Key: obj.Key})
			}
		}
		if len(stale) == 0 {
			continue
		}

		out, err := p.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(p.bucket),
			Delete: &types.Delete{Objects: stale, Quiet: aws.Bool(true)},
		})
		if err != nil {
			return removed, fmt.Errorf("delete archived exports: %w", err)
		}
		removed += len(stale) - len(out.Errors)
	}
	return removed, nil
}
