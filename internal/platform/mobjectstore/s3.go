// Package mobjectstore implements the Object Store adapter (spec C2) against
// an S3-compatible endpoint. It is the only package that knows about
// bucket/endpoint details; everything else in Artifortress talks to the
// Client interface.
package mobjectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	smithy "github.com/aws/smithy-go"
)

const (
	minPartTTL     = 60 * time.Second
	maxPartTTL     = 3600 * time.Second
	defaultPartTTL = 900 * time.Second
)

// ClampPartTTL clamps ttl into [60s, 3600s], defaulting to 900s when ttl is
// zero or out of range.
func ClampPartTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return defaultPartTTL
	}

	if ttl < minPartTTL {
		return minPartTTL
	}

	if ttl > maxPartTTL {
		return maxPartTTL
	}

	return ttl
}

// TransientError wraps an error the caller may retry.
type TransientError struct{ Err error }

func (e TransientError) Error() string { return "transient object store error: " + e.Err.Error() }
func (e TransientError) Unwrap() error { return e.Err }

// FatalError wraps an error the caller must not retry.
type FatalError struct{ Err error }

func (e FatalError) Error() string { return "object store error: " + e.Err.Error() }
func (e FatalError) Unwrap() error { return e.Err }

// Part is one completed multipart upload part.
type Part struct {
	PartNumber int32
	ETag       string
}

// Config configures a Client.
type Config struct {
	Endpoint       string
	AccessKey      string
	SecretKey      string
	Bucket         string
	Region         string
	PresignPartTTL time.Duration
	UsePathStyle   bool
}

// Client implements the C2 operations against S3 (or an S3-compatible
// endpoint such as MinIO).
type Client struct {
	s3      *s3.Client
	presign *s3.PresignClient
	bucket  string
	partTTL time.Duration
}

// New builds a Client from cfg.
func New(ctx context.Context, cfg Config) (*Client, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}

	if cfg.AccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("loading object store config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}

		o.UsePathStyle = cfg.UsePathStyle
	})

	return &Client{
		s3:      client,
		presign: s3.NewPresignClient(client),
		bucket:  cfg.Bucket,
		partTTL: ClampPartTTL(cfg.PresignPartTTL),
	}, nil
}

// StartMultipart initiates a multipart upload and returns its storage-side
// upload id.
func (c *Client) StartMultipart(ctx context.Context, objectKey string) (string, error) {
	out, err := c.s3.CreateMultipartUpload(ctx, &s3.CreateMultipartUploadInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(objectKey),
	})
	if err != nil {
		return "", classify(err)
	}

	return aws.ToString(out.UploadId), nil
}

// PresignPart returns a presigned PUT URL for one part, valid for the
// configured (clamped) TTL.
func (c *Client) PresignPart(ctx context.Context, objectKey, uploadID string, partNumber int32) (string, error) {
	req, err := c.presign.PresignUploadPart(ctx, &s3.UploadPartInput{
		Bucket:     aws.String(c.bucket),
		Key:        aws.String(objectKey),
		UploadId:   aws.String(uploadID),
		PartNumber: aws.Int32(partNumber),
	}, s3.WithPresignExpires(c.partTTL))
	if err != nil {
		return "", classify(err)
	}

	return req.URL, nil
}

// Complete finishes a multipart upload. Parts are deduped and sorted
// ascending by part number before being sent, per spec §4.2.
func (c *Client) Complete(ctx context.Context, objectKey, uploadID string, parts []Part) error {
	deduped := dedupeParts(parts)

	sort.Slice(deduped, func(i, j int) bool { return deduped[i].PartNumber < deduped[j].PartNumber })

	completed := make([]types.CompletedPart, 0, len(deduped))
	for _, p := range deduped {
		completed = append(completed, types.CompletedPart{
			PartNumber: aws.Int32(p.PartNumber),
			ETag:       aws.String(p.ETag),
		})
	}

	_, err := c.s3.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:   aws.String(c.bucket),
		Key:      aws.String(objectKey),
		UploadId: aws.String(uploadID),
		MultipartUpload: &types.CompletedMultipartUpload{
			Parts: completed,
		},
	})
	if err != nil {
		return classify(err)
	}

	return nil
}

func dedupeParts(parts []Part) []Part {
	seen := make(map[int32]Part, len(parts))
	for _, p := range parts {
		seen[p.PartNumber] = p
	}

	out := make([]Part, 0, len(seen))
	for _, p := range seen {
		out = append(out, p)
	}

	return out
}

// AbortMultipart aborts an in-progress multipart upload. A missing upload
// (already aborted, or never reached object storage) is treated as success.
func (c *Client) AbortMultipart(ctx context.Context, objectKey, uploadID string) error {
	_, err := c.s3.AbortMultipartUpload(ctx, &s3.AbortMultipartUploadInput{
		Bucket:   aws.String(c.bucket),
		Key:      aws.String(objectKey),
		UploadId: aws.String(uploadID),
	})
	if err == nil {
		return nil
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && apiErr.ErrorCode() == "NoSuchUpload" {
		return nil
	}

	return classify(err)
}

// ObjectInfo is the result of a HEAD request.
type ObjectInfo struct {
	Length int64
	ETag   string
}

// Head returns length and etag for objectKey.
func (c *Client) Head(ctx context.Context, objectKey string) (ObjectInfo, error) {
	out, err := c.s3.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(objectKey),
	})
	if err != nil {
		return ObjectInfo{}, classify(err)
	}

	return ObjectInfo{Length: aws.ToInt64(out.ContentLength), ETag: aws.ToString(out.ETag)}, nil
}

// Get streams objectKey, optionally scoped to a byte range expressed as the
// raw HTTP Range header value (e.g. "bytes=0-99").
func (c *Client) Get(ctx context.Context, objectKey string, byteRange string) (io.ReadCloser, error) {
	input := &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(objectKey),
	}

	if byteRange != "" {
		input.Range = aws.String(byteRange)
	}

	out, err := c.s3.GetObject(ctx, input)
	if err != nil {
		return nil, classify(err)
	}

	return out.Body, nil
}

// Ping probes the object store for readiness (C9) with a lightweight
// HeadBucket call — cheap enough to run on every /health/ready hit, unlike a
// LIST against potentially large prefixes.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.s3.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(c.bucket)})
	if err != nil {
		return classify(err)
	}

	return nil
}

// Delete removes objectKey.
func (c *Client) Delete(ctx context.Context, objectKey string) error {
	_, err := c.s3.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(objectKey),
	})
	if err != nil {
		return classify(err)
	}

	return nil
}

// classify turns an AWS SDK error into TransientError or FatalError. Request
// throttling and 5xx-class API errors are retried by callers; everything else
// (access denied, not found, malformed request) is fatal.
func classify(err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "RequestTimeout", "SlowDown", "InternalError", "ServiceUnavailable":
			return TransientError{Err: err}
		default:
			return FatalError{Err: err}
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return TransientError{Err: err}
	}

	return TransientError{Err: err}
}
