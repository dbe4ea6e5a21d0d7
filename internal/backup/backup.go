// Package backup snapshots the watchlist database and uploads it to S3
// compatible object storage.
package backup

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
)

// Source writes a consistent copy of the database to dest
type Source interface {
	Backup(ctx context.Context, dest string) error
}

// Uploader is satisfied by *manager.Uploader
type Uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// S3Config bucket location and credentials. Empty keys fall back to the
// default AWS credential chain.
type S3Config struct {
	Bucket    string
	Prefix    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
}

// NewS3Uploader builds a multipart uploader for cfg
func NewS3Uploader(ctx context.Context, cfg S3Config) (*manager.Uploader, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return manager.NewUploader(client), nil
}

// Job uploads one database snapshot per run
type Job struct {
	source   Source
	uploader Uploader
	bucket   string
	prefix   string
	tmpDir   string
	log      zerolog.Logger
	now      func() time.Time
}

// NewJob ...
func NewJob(source Source, uploader Uploader, cfg S3Config, tmpDir string, log zerolog.Logger) *Job {
	return &Job{
		source:   source,
		uploader: uploader,
		bucket:   cfg.Bucket,
		prefix:   cfg.Prefix,
		tmpDir:   tmpDir,
		log:      log.With().Str("job", "database_backup").Logger(),
		now:      time.Now,
	}
}

// Name implements scheduler.Job
func (j *Job) Name() string {
	return "database_backup"
}

// Run implements scheduler.Job
func (j *Job) Run(ctx context.Context) error {
	name := fmt.Sprintf("stockbot-%s.db", j.now().UTC().Format("20060102-150405"))
	local := filepath.Join(j.tmpDir, name)

	if err := os.MkdirAll(j.tmpDir, 0o755); err != nil {
		return fmt.Errorf("create backup dir: %w", err)
	}
	defer os.Remove(local)

	if err := j.source.Backup(ctx, local); err != nil {
		return fmt.Errorf("snapshot database: %w", err)
	}

	f, err := os.Open(local)
	if err != nil {
		return fmt.Errorf("open snapshot: %w", err)
	}
	defer f.Close()

	key := path.Join(j.prefix, name)
	out, err := j.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(j.bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String("application/vnd.sqlite3"),
	})
	if err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}

	j.log.Info().Str("bucket", j.bucket).Str("key", key).Str("location", out.Location).Msg("Database backup uploaded")
	return nil
}
