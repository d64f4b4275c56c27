// internal/storage/minio.go
package storage

import (
	"bytes"
	"context"
	"fmt"
	"path"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/mwiater/atelier/internal/run"
)

var tracer = otel.Tracer("atelier/storage")

// Minio uploads each run under <bucket>/<run id>/.
type Minio struct {
	client   *minio.Client
	endpoint string
	bucket   string
	useSSL   bool
}

// NewMinio creates a MinIO-backed sink. No request is made until Save.
func NewMinio(endpoint, accessKey, secretKey, bucket string, useSSL bool) (*Minio, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}
	return &Minio{client: client, endpoint: endpoint, bucket: bucket, useSSL: useSSL}, nil
}

func (m *Minio) Save(ctx context.Context, prompt string, res *run.Result) ([]string, error) {
	ctx, span := tracer.Start(ctx, "minio_save_run")
	defer span.End()
	span.SetAttributes(
		attribute.String("minio.bucket", m.bucket),
		attribute.String("run.id", res.ID),
		attribute.Int("run.frames", len(res.Frames)),
	)

	if err := m.ensureBucket(ctx); err != nil {
		span.RecordError(err)
		return nil, err
	}

	var urls []string
	for _, fr := range res.Frames {
		if fr.Frame == nil {
			continue
		}
		url, err := m.upload(ctx, path.Join(res.ID, FrameFile(fr.Index)), []byte(fr.Frame.HTML), "text/html; charset=utf-8")
		if err != nil {
			span.RecordError(err)
			return urls, err
		}
		urls = append(urls, url)
	}

	data, err := NewManifest(prompt, res).encode()
	if err != nil {
		return urls, fmt.Errorf("encode manifest: %w", err)
	}
	url, err := m.upload(ctx, path.Join(res.ID, ManifestName), data, "application/json")
	if err != nil {
		span.RecordError(err)
		return urls, err
	}
	return append(urls, url), nil
}

func (m *Minio) ensureBucket(ctx context.Context) error {
	exists, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}
	if !exists {
		if err := m.client.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("failed to create bucket: %w", err)
		}
	}
	return nil
}

func (m *Minio) upload(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	ctx, span := tracer.Start(ctx, "minio_upload")
	defer span.End()
	span.SetAttributes(attribute.String("minio.key", key), attribute.Int("minio.size", len(data)))

	_, err := m.client.PutObject(ctx, m.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("failed to upload %s to MinIO: %w", key, err)
	}
	return m.objectURL(key), nil
}

func (m *Minio) objectURL(key string) string {
	protocol := "http"
	if m.useSSL {
		protocol = "https"
	}
	return fmt.Sprintf("%s://%s/%s/%s", protocol, m.endpoint, m.bucket, key)
}
