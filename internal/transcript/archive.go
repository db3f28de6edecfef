package transcript

import (
	"bytes"
	"context"
	"fmt"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/spec-kit/ticket-bot/internal/config"
	"github.com/spec-kit/ticket-bot/internal/domain"
)

// Archiver persists rendered transcripts outside the chat platform.
type Archiver interface {
	Archive(ctx context.Context, ticket *domain.Ticket, t *Transcript) (string, error)
}

// ObjectKey is the bucket key for a ticket transcript.
func ObjectKey(ticket *domain.Ticket) string {
	return fmt.Sprintf("transcripts/%s/%s-%04d-%s.txt", ticket.GuildID, ticket.Kind, ticket.Number, ticket.ChannelID)
}

// MinioArchive stores transcripts in an S3-compatible bucket.
type MinioArchive struct {
	client *minio.Client
	bucket string
}

// NewMinioArchive connects to the archive endpoint and ensures the bucket
// exists. It returns nil, nil when no endpoint is configured.
func NewMinioArchive(ctx context.Context, cfg config.ArchiveConfig) (*MinioArchive, error) {
	if cfg.Endpoint == "" {
		return nil, nil
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, err
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, err
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, err
		}
	}
	return &MinioArchive{client: client, bucket: cfg.Bucket}, nil
}

// Archive uploads the transcript and returns its object key.
func (a *MinioArchive) Archive(ctx context.Context, ticket *domain.Ticket, t *Transcript) (string, error) {
	key := ObjectKey(ticket)
	_, err := a.client.PutObject(ctx, a.bucket, key, bytes.NewReader(t.Data), int64(len(t.Data)), minio.PutObjectOptions{
		ContentType: "text/plain; charset=utf-8",
		UserMetadata: map[string]string{
			"ticket-owner": ticket.OwnerID,
			"ticket-kind":  string(ticket.Kind),
		},
	})
	if err != nil {
		return "", err
	}
	return key, nil
}
