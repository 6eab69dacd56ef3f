package archive

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/Additional-Code/bloom/internal/config"
	"github.com/Additional-Code/bloom/internal/entity"
)

// S3Archiver uploads snapshots to an S3-compatible bucket (AWS S3 or MinIO).
type S3Archiver struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewS3Archiver loads AWS configuration, preferring explicit keys over the
// default credentials chain.
func NewS3Archiver(ctx context.Context, cfg config.Archive) (*S3Archiver, error) {
	if cfg.S3.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket required")
	}
	region := cfg.S3.Region
	if region == "" {
		region = "us-east-1"
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if cfg.S3.AccessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3.AccessKeyID, cfg.S3.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.S3.PathStyle
		if cfg.S3.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3.Endpoint)
		}
	})
	return newS3Archiver(client, cfg.S3.Bucket, cfg.Prefix), nil
}

func newS3Archiver(client *s3.Client, bucket, prefix string) *S3Archiver {
	return &S3Archiver{client: client, bucket: bucket, prefix: prefix}
}

func (a *S3Archiver) Archive(ctx context.Context, orders []entity.Order, at time.Time) (string, error) {
	data, err := encode(orders, at)
	if err != nil {
		return "", err
	}

	key := objectKey(a.prefix, at)
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("upload snapshot %s: %w", key, err)
	}
	return fmt.Sprintf("s3://%s/%s", a.bucket, key), nil
}
