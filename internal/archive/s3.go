package archive

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/ikhode/erp-modular-sub001/internal/lifecycle"
)

// PutObjectAPI is the slice of the S3 client the archive needs.
type PutObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// DefaultLinkTTL bounds download links when LinkTTL is unset.
const DefaultLinkTTL = 15 * time.Minute

// S3 stores signature images as objects under Prefix in Bucket. Signer,
// when set, presigns download links for stored objects.
type S3 struct {
	Client  PutObjectAPI
	Signer  *s3.Client
	Bucket  string
	Prefix  string
	LinkTTL time.Duration
}

var _ lifecycle.SignatureArchive = (*S3)(nil)

type Options struct {
	Bucket   string
	Prefix   string
	Region   string
	Endpoint string
	LinkTTL  time.Duration
}

// NewS3 loads AWS config and returns an archive for opts. An explicit
// endpoint (or S3_ENDPOINT) targets an S3-compatible server such as
// LocalStack or MinIO with path-style addressing.
func NewS3(ctx context.Context, opts Options) (*S3, error) {
	if opts.Bucket == "" {
		return nil, fmt.Errorf("archive: bucket is required")
	}
	region := opts.Region
	if region == "" {
		region = os.Getenv("AWS_REGION")
	}
	if region == "" {
		region = "us-east-1"
	}
	endpoint := opts.Endpoint
	if endpoint == "" {
		endpoint = os.Getenv("S3_ENDPOINT")
	}
	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if endpoint != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(envOr("AWS_ACCESS_KEY_ID", "test"), envOr("AWS_SECRET_ACCESS_KEY", "test"), "")))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS SDK config: %w", err)
	}
	client := NewS3Client(cfg, endpoint)
	return &S3{Client: client, Signer: client, Bucket: opts.Bucket, Prefix: opts.Prefix, LinkTTL: opts.LinkTTL}, nil
}

// NewS3Client builds an S3 client, pointing it at endpoint when set.
func NewS3Client(cfg aws.Config, endpoint string) *s3.Client {
	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})
}

// Put uploads data and returns its s3:// reference.
func (a *S3) Put(ctx context.Context, key, contentType string, data []byte) (string, error) {
	full := path.Join(a.Prefix, key)
	_, err := a.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(a.Bucket),
		Key:           aws.String(full),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return "", fmt.Errorf("archive %s: %w", full, err)
	}
	return fmt.Sprintf("s3://%s/%s", a.Bucket, full), nil
}

// DownloadURL presigns a GET for a reference returned by Put.
func (a *S3) DownloadURL(ctx context.Context, ref string) (string, error) {
	key, ok := strings.CutPrefix(ref, "s3://"+a.Bucket+"/")
	if !ok || key == "" {
		return "", fmt.Errorf("archive: %q is not an object of bucket %s", ref, a.Bucket)
	}
	if a.Signer == nil {
		return "", fmt.Errorf("archive: no presign client")
	}
	ttl := a.LinkTTL
	if ttl <= 0 {
		ttl = DefaultLinkTTL
	}
	return PresignGet(ctx, a.Signer, a.Bucket, key, ttl)
}

// PresignGet returns a time-limited download URL for an object key.
func PresignGet(ctx context.Context, client *s3.Client, bucket, key string, ttl time.Duration) (string, error) {
	req, err := s3.NewPresignClient(client).PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", fmt.Errorf("failed to presign get object: %w", err)
	}
	return req.URL, nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
