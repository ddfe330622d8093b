// Package s3 lists an S3-compatible bucket as a folder tree.
package s3

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	"github.com/fruitsalade/drivetracker/internal/logging"
	"github.com/fruitsalade/drivetracker/internal/source"
	"github.com/fruitsalade/drivetracker/pkg/models"
	"github.com/fruitsalade/drivetracker/pkg/retry"
)

// Config holds S3 connection settings.
type Config struct {
	Endpoint  string // empty for AWS
	Bucket    string
	Prefix    string
	AccessKey string
	SecretKey string
	Region    string
}

// ObjectLister is the subset of the S3 client used here.
type ObjectLister interface {
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// Lister turns object keys into file records. Folders are implied by "/"
// in keys; the bucket itself is the single root.
type Lister struct {
	client ObjectLister
	bucket string
	prefix string
}

// New creates a Lister backed by a real S3 client.
func New(ctx context.Context, cfg Config) (*Lister, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true // Required for MinIO
		}
	})
	logging.Info("s3 listing source configured",
		zap.String("bucket", cfg.Bucket),
		zap.String("prefix", cfg.Prefix))
	return NewWithClient(client, cfg.Bucket, cfg.Prefix), nil
}

// NewWithClient creates a Lister with a caller-supplied client.
func NewWithClient(client ObjectLister, bucket, prefix string) *Lister {
	return &Lister{client: client, bucket: bucket, prefix: prefix}
}

// Name implements source.Lister.
func (l *Lister) Name() string {
	return "s3"
}

// List pages through the bucket and converts keys to records.
func (l *Lister) List(ctx context.Context) ([]models.FileRecord, error) {
	var keys []string
	p := s3.NewListObjectsV2Paginator(l.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(l.bucket),
		Prefix: aws.String(l.prefix),
	})
	start := time.Now()
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: list %s: %w", source.ErrFetch, l.bucket, retry.Retryable(err))
		}
		for _, obj := range page.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
	}
	logging.Debug("listed s3 objects",
		zap.Int("keys", len(keys)),
		zap.Duration("duration", time.Since(start)))
	return RecordsFromKeys(l.bucket, l.prefix, keys), nil
}

// RootID is the id of the synthetic bucket root.
func RootID(bucket string) string {
	return "s3://" + bucket
}

// RecordsFromKeys builds records for every key and every folder implied by
// a key. Folder ids end in "/". The prefix is stripped from names but kept
// in ids.
func RecordsFromKeys(bucket, prefix string, keys []string) []models.FileRecord {
	root := RootID(bucket)
	records := []models.FileRecord{{ID: root, Name: bucket, MimeType: "folder"}}
	seen := map[string]bool{root: true}

	for _, key := range keys {
		rel := strings.TrimPrefix(key, prefix)
		if rel == "" {
			continue
		}
		parent := root
		segs := strings.Split(strings.TrimSuffix(rel, "/"), "/")
		for i, seg := range segs {
			isLast := i == len(segs)-1
			id := prefix + strings.Join(segs[:i+1], "/")
			mime := "folder"
			if !isLast || strings.HasSuffix(rel, "/") {
				id += "/"
			} else {
				mime = "object"
			}
			if !seen[id] {
				seen[id] = true
				records = append(records, models.FileRecord{
					ID:       id,
					Name:     seg,
					Parents:  []string{parent},
					MimeType: mime,
				})
			}
			parent = id
		}
	}
	return records
}
