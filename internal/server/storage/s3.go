package storage

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/clipstream/clipstream/internal/common"
)

// Seams for tests: swap these to exercise the uploader without a live bucket.
var (
	loadDefaultAWSConfig = awsconfig.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	putObject = func(c *s3.Client, ctx context.Context, in *s3.PutObjectInput) (*s3.PutObjectOutput, error) {
		return c.PutObject(ctx, in)
	}
)

// S3Uploader stores media in an S3-compatible bucket (AWS, MinIO, R2) and
// builds the public URL callers persist on the user record.
type S3Uploader struct {
	client        *s3.Client
	bucket        string
	baseEndpoint  string
	publicBaseURL string
}

// NewS3Uploader builds the client with static credentials and a custom base
// endpoint. Path-style addressing keeps MinIO and R2 happy.
func NewS3Uploader(ctx context.Context, accessKey, secretKey, region, baseEndpoint, bucket, publicBaseURL string) (*S3Uploader, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(accessKey, secretKey, "")),
	)
	if err != nil {
		return nil, err
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(baseEndpoint)
		o.UsePathStyle = true
	})

	return &S3Uploader{
		client:        client,
		bucket:        bucket,
		baseEndpoint:  baseEndpoint,
		publicBaseURL: publicBaseURL,
	}, nil
}

// Upload puts the local file under a date-partitioned random key and returns
// the public URL. Any failure wraps common.ErrDependency so callers can map it
// uniformly. The call is bounded by ctx; pass a timeout context.
func (u *S3Uploader) Upload(ctx context.Context, localPath string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("%w: opening upload source: %v", common.ErrDependency, err)
	}
	defer f.Close()

	key := randomStorageKey(filepath.Ext(localPath))

	in := &s3.PutObjectInput{
		Bucket: aws.String(u.bucket),
		Key:    aws.String(key),
		Body:   f,
	}
	if ct := mime.TypeByExtension(filepath.Ext(localPath)); ct != "" {
		in.ContentType = aws.String(ct)
	}

	if _, err := putObject(u.client, ctx, in); err != nil {
		return "", fmt.Errorf("%w: putting object: %v", common.ErrDependency, err)
	}

	return u.publicURL(key), nil
}

func (u *S3Uploader) publicURL(key string) string {
	if u.publicBaseURL != "" {
		return strings.TrimSuffix(u.publicBaseURL, "/") + "/" + key
	}
	base := strings.TrimSuffix(u.baseEndpoint, "/")
	return fmt.Sprintf("%s/%s/%s", base, u.bucket, key)
}

func randomStorageKey(ext string) string {
	d := time.Now()
	return fmt.Sprintf("images/%d/%02d/%02d/%v%s", d.Year(), d.Month(), d.Day(), uuid.New(), ext)
}
