package durable

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"
)

type S3Config struct {
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"`
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
}

// ObjectAPI is the subset of the S3 client the log uses
type ObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// NewS3Client builds a client for AWS S3 or any S3-compatible endpoint (R2, MinIO)
func NewS3Client(ctx context.Context, cfg S3Config) (*s3.Client, error) {
	region := cfg.Region
	if region == "" {
		region = "auto"
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

// S3Log mirrors the record store into a bucket. Added files are uploaded
// before removed keys are deleted, so a failure never loses the archive copy.
type S3Log struct {
	client ObjectAPI
	bucket string
	prefix string
	root   string
	logger *zap.Logger
}

func NewS3Log(client ObjectAPI, cfg S3Config, root string, logger *zap.Logger) *S3Log {
	return &S3Log{
		client: client,
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
		root:   root,
		logger: logger,
	}
}

func (l *S3Log) Commit(ctx context.Context, change Change) error {
	for _, p := range change.Added {
		data, err := os.ReadFile(filepath.Join(l.root, p))
		if err != nil {
			return &CommitError{Backend: BackendS3, Err: fmt.Errorf("failed to read %s: %w", p, err)}
		}

		_, err = l.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(l.bucket),
			Key:         aws.String(l.key(p)),
			Body:        bytes.NewReader(data),
			ContentType: aws.String("application/json"),
		})
		if err != nil {
			return &CommitError{Backend: BackendS3, Err: fmt.Errorf("failed to upload %s: %w", p, err)}
		}
	}

	for _, p := range change.Removed {
		_, err := l.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(l.bucket),
			Key:    aws.String(l.key(p)),
		})
		if err != nil {
			return &CommitError{Backend: BackendS3, Err: fmt.Errorf("failed to delete %s: %w", p, err)}
		}
	}

	l.logger.Debug("Change mirrored to bucket",
		zap.String("bucket", l.bucket),
		zap.Int("added", len(change.Added)),
		zap.Int("removed", len(change.Removed)),
		zap.String("message", change.Message))
	return nil
}

func (l *S3Log) key(p string) string {
	p = filepath.ToSlash(p)
	if l.prefix == "" {
		return p
	}
	return path.Join(l.prefix, p)
}
