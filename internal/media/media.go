// Package media stores uploaded assets in S3-compatible object storage
// and mirrors their metadata into the media_assets table so the grid
// can browse them like any other table.
package media

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog"

	"github.com/atelierhq/backstage/internal/config"
	"github.com/atelierhq/backstage/internal/entity"
	apperrors "github.com/atelierhq/backstage/internal/errors"
	"github.com/atelierhq/backstage/internal/schema"
)

// presignTTL bounds how long a download link stays valid.
const presignTTL = 15 * time.Minute

// Rows is the slice of the entity store the media library needs.
type Rows interface {
	Create(ctx context.Context, table schema.Table, partial entity.Row) (entity.Row, error)
	Get(ctx context.Context, table schema.Table, id string) (entity.Row, error)
	Delete(ctx context.Context, table schema.Table, id string) error
}

// Store uploads media files and keeps the media_assets rows in sync.
// Safe for concurrent use.
type Store struct {
	client *miniogo.Client
	bucket string
	rows   Rows
	log    zerolog.Logger
}

// New connects to the object store and verifies the bucket exists,
// creating it when missing.
func New(ctx context.Context, cfg config.MediaConfig, rows Rows, log zerolog.Logger) (*Store, error) {
	client, err := miniogo.New(cfg.Endpoint, &miniogo.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create object store client: %w", err)
	}

	s := &Store{
		client: client,
		bucket: cfg.Bucket,
		rows:   rows,
		log:    log.With().Str("component", "media").Logger(),
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket %q: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, miniogo.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket %q: %w", cfg.Bucket, err)
		}
		s.log.Info().Str("bucket", cfg.Bucket).Msg("created media bucket")
	}

	return s, nil
}

// Upload streams a file into the bucket and records a media_assets row.
// The object key is namespaced by a fresh UUID so filenames never
// collide or overwrite.
func (s *Store) Upload(ctx context.Context, filename, contentType string, size int64, body io.Reader) (entity.Row, error) {
	name := sanitizeFilename(filename)
	if name == "" {
		return nil, apperrors.NewBadRequestError("missing filename")
	}
	key := fmt.Sprintf("uploads/%s/%s", uuid.New().String(), name)

	info, err := s.client.PutObject(ctx, s.bucket, key, body, size, miniogo.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return nil, apperrors.NewStoreError("upload media object", err)
	}

	row, err := s.rows.Create(ctx, schema.TableMediaAssets, entity.Row{
		"filename":   name,
		"url":        key,
		"kind":       kindFromContentType(contentType),
		"size_bytes": float64(info.Size),
	})
	if err != nil {
		// The object is orphaned without its row; best effort cleanup.
		if rmErr := s.client.RemoveObject(ctx, s.bucket, key, miniogo.RemoveObjectOptions{}); rmErr != nil {
			s.log.Error().Err(rmErr).Str("key", key).Msg("failed to remove orphaned object")
		}
		return nil, err
	}

	s.log.Info().Str("key", key).Int64("size", info.Size).Msg("media uploaded")
	return row, nil
}

// DownloadURL returns a time-limited link for an asset row.
func (s *Store) DownloadURL(ctx context.Context, assetID string) (string, error) {
	row, err := s.rows.Get(ctx, schema.TableMediaAssets, assetID)
	if err != nil {
		return "", err
	}
	key, _ := row["url"].(string)
	if key == "" {
		return "", apperrors.NewNotFoundError("media object")
	}
	u, err := s.client.PresignedGetObject(ctx, s.bucket, key, presignTTL, nil)
	if err != nil {
		return "", apperrors.NewStoreError("presign media object", err)
	}
	return u.String(), nil
}

// Remove deletes the asset row and its backing object.
func (s *Store) Remove(ctx context.Context, assetID string) error {
	row, err := s.rows.Get(ctx, schema.TableMediaAssets, assetID)
	if err != nil {
		return err
	}
	if err := s.rows.Delete(ctx, schema.TableMediaAssets, assetID); err != nil {
		return err
	}
	if key, _ := row["url"].(string); key != "" {
		if err := s.client.RemoveObject(ctx, s.bucket, key, miniogo.RemoveObjectOptions{}); err != nil {
			s.log.Error().Err(err).Str("key", key).Msg("failed to remove media object")
			return apperrors.NewStoreError("remove media object", err)
		}
	}
	return nil
}

// kindFromContentType buckets a MIME type into the closed set the
// media schema offers.
func kindFromContentType(contentType string) string {
	switch {
	case strings.HasPrefix(contentType, "image/"):
		return "image"
	case strings.HasPrefix(contentType, "video/"):
		return "video"
	default:
		return "document"
	}
}

// sanitizeFilename keeps the base name and strips characters that have
// no business in an object key.
func sanitizeFilename(filename string) string {
	name := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	if name == "." || name == "/" {
		return ""
	}
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return strings.Trim(b.String(), "._")
}
