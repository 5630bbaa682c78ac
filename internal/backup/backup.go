// Package backup copies every record into an S3 compatible bucket.
package backup

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	"github.com/patric-chuzhbe/flatapi/internal/logger"
	"github.com/patric-chuzhbe/flatapi/internal/recordstore"
)

// ErrNotConfigured is returned by NewS3 when no bucket is set.
var ErrNotConfigured = errors.New("backup bucket is not configured")

type source interface {
	List(ctx context.Context, collection string) ([]string, error)
	Read(ctx context.Context, collection, id string, dst any) error
	Collections(ctx context.Context) ([]string, error)
}

type putter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type Config struct {
	Bucket       string
	Region       string
	BaseEndpoint string
	AccessKey    string
	SecretKey    string
	Prefix       string
}

type Backup struct {
	src    source
	client putter
	bucket string
	prefix string
	log    *zap.SugaredLogger
}

// New returns a Backup writing through client.
func New(src source, client putter, bucket, prefix string) *Backup {
	return &Backup{
		src:    src,
		client: client,
		bucket: bucket,
		prefix: prefix,
		log:    logger.Named("backup"),
	}
}

// NewS3 builds the S3 client from cfg. A custom endpoint switches to path
// style addressing, which is what MinIO and most other S3 clones expect.
func NewS3(ctx context.Context, src source, cfg Config) (*Backup, error) {
	if cfg.Bucket == "" {
		return nil, ErrNotConfigured
	}

	loadOptions := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		loadOptions = append(loadOptions, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsConfig, err := config.LoadDefaultConfig(ctx, loadOptions...)
	if err != nil {
		return nil, fmt.Errorf("in internal/backup/backup.go/NewS3(): error while `config.LoadDefaultConfig()` calling: %w", err)
	}

	client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.BaseEndpoint)
			o.UsePathStyle = true
		}
	})

	return New(src, client, cfg.Bucket, cfg.Prefix), nil
}

// Key is the object key of a record.
func (b *Backup) Key(collection, id string) string {
	return path.Join(b.prefix, collection, id+".json")
}

// Backup uploads every record and returns how many were written. Records
// removed while the backup runs are skipped.
func (b *Backup) Backup(ctx context.Context) (int, error) {
	collections, err := b.src.Collections(ctx)
	if err != nil {
		return 0, fmt.Errorf("in internal/backup/backup.go/Backup(): error while `b.src.Collections()` calling: %w", err)
	}

	written := 0
	for _, collection := range collections {
		ids, err := b.src.List(ctx, collection)
		if err != nil {
			return written, fmt.Errorf("in internal/backup/backup.go/Backup(): error while `b.src.List()` calling: %w", err)
		}

		for _, id := range ids {
			var raw json.RawMessage
			err := b.src.Read(ctx, collection, id, &raw)
			if errors.Is(err, recordstore.ErrNotFound) {
				continue
			}
			if err != nil {
				return written, fmt.Errorf("in internal/backup/backup.go/Backup(): error while `b.src.Read()` calling: %w", err)
			}

			if err := b.put(ctx, b.Key(collection, id), raw); err != nil {
				return written, err
			}
			written++
		}
	}

	b.log.Infow("backup finished", "bucket", b.bucket, "records", written)

	return written, nil
}

func (b *Backup) put(ctx context.Context, key string, body []byte) error {
	_, err := b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(b.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("in internal/backup/backup.go/put(): error while `b.client.PutObject()` calling: %w", err)
	}

	return nil
}
