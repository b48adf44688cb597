// Package publish mirrors a finished output tree to an S3 bucket.
package publish

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"mime"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const uploadTimeout = 2 * time.Minute

// Uploader is the part of manager.Uploader the publisher needs.
type Uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

type Config struct {
	Bucket    string
	Prefix    string
	Region    string
	AccessKey string
	SecretKey string
}

type Publisher struct {
	up     Uploader
	bucket string
	prefix string
	log    *slog.Logger
}

// New builds a publisher on the default AWS credential chain, or on static
// credentials when both keys are set.
func New(ctx context.Context, cfg Config, log *slog.Logger) (*Publisher, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("S3 bucket name not set")
	}
	var opts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	up := manager.NewUploader(s3.NewFromConfig(awsCfg))
	return NewWithUploader(up, cfg.Bucket, cfg.Prefix, log), nil
}

func NewWithUploader(up Uploader, bucket, prefix string, log *slog.Logger) *Publisher {
	if log == nil {
		log = slog.Default()
	}
	return &Publisher{up: up, bucket: bucket, prefix: prefix, log: log}
}

// PublishDir uploads every regular file under root, keyed by its path
// relative to root. Failed uploads are logged and joined into the returned
// error; the remaining files are still attempted.
func (p *Publisher) PublishDir(ctx context.Context, root string) (int, error) {
	var (
		uploaded int
		errs     []error
	)
	err := filepath.WalkDir(root, func(file string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, err := filepath.Rel(root, file)
		if err != nil {
			return err
		}
		key := path.Join(p.prefix, filepath.ToSlash(rel))
		if err := p.upload(ctx, file, key); err != nil {
			p.log.Warn("upload failed", "key", key, "err", err)
			errs = append(errs, err)
			return nil
		}
		p.log.Debug("uploaded", "bucket", p.bucket, "key", key)
		uploaded++
		return nil
	})
	if err != nil {
		errs = append(errs, err)
	}
	p.log.Info("published output", "bucket", p.bucket, "prefix", p.prefix, "files", uploaded, "failed", len(errs))
	return uploaded, errors.Join(errs...)
}

func (p *Publisher) upload(ctx context.Context, file, key string) error {
	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()

	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()
	_, err = p.up.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(p.bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String(contentType(file)),
	})
	if err != nil {
		return fmt.Errorf("s3 upload %s: %w", key, err)
	}
	return nil
}

func contentType(file string) string {
	if t := mime.TypeByExtension(filepath.Ext(file)); t != "" {
		return t
	}
	return "application/octet-stream"
}
