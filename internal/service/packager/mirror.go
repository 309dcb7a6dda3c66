package packager

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/oshokin/umu-scout/internal/config"
	"github.com/oshokin/umu-scout/internal/logger"
)

// Uploader stores published files in an S3-compatible bucket.
// *manager.Uploader satisfies it.
type Uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// NewS3Uploader builds a multipart uploader for the configured bucket.
func NewS3Uploader(cfg *config.MirrorConfig) *manager.Uploader {
	client := s3.New(s3.Options{
		Region:       cfg.Region,
		BaseEndpoint: ptrOrNil(cfg.Endpoint),
		UsePathStyle: cfg.ForcePathStyle,
		Credentials: credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		),
	})

	return manager.NewUploader(client)
}

// ObjectKey returns the bucket key of a published file.
func ObjectKey(prefix, tag, file string) string {
	return prefix + path.Join(tag, filepath.Base(file))
}

// mirror uploads every published file when the mirror is enabled.
func (p *packager) mirror(ctx context.Context, tag string, published *Published) error {
	if !p.cfg.Mirror.Enabled {
		return nil
	}

	uploader := p.opts.Uploader
	if uploader == nil {
		uploader = NewS3Uploader(&p.cfg.Mirror)
	}

	ctx = logger.WithKV(ctx, "bucket", p.cfg.Mirror.Bucket)

	for _, file := range published.Files() {
		key := ObjectKey(p.cfg.Mirror.Prefix, tag, file)

		if err := p.upload(ctx, uploader, key, file); err != nil {
			return err
		}
	}

	return nil
}

// upload sends a single local file.
func (p *packager) upload(ctx context.Context, uploader Uploader, key, localPath string) (err error) {
	file, err := os.Open(filepath.Clean(localPath))
	if err != nil {
		return fmt.Errorf("open %s: %w", localPath, err)
	}

	defer func() {
		if closeErr := file.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", localPath, closeErr)
		}
	}()

	start := time.Now()

	callCtx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	_, err = uploader.Upload(callCtx, &s3.PutObjectInput{
		Bucket: aws.String(p.cfg.Mirror.Bucket),
		Key:    aws.String(key),
		Body:   file,
	})
	if err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}

	logger.InfoKV(ctx, "Uploaded to mirror",
		"key", key,
		"duration", time.Since(start).Round(time.Millisecond))

	return nil
}

func ptrOrNil(s string) *string {
	if s == "" {
		return nil
	}

	return aws.String(s)
}
