package media

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioStore keeps files in a MinIO/S3 bucket that is readable at baseURL.
type MinioStore struct {
	client  *minio.Client
	bucket  string
	baseURL string
}

type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	// PublicURL defaults to http(s)://Endpoint.
	PublicURL string
}

// NewMinioStore connects to MinIO and ensures the bucket exists.
func NewMinioStore(ctx context.Context, cfg MinioConfig) (*MinioStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio client: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket: %w", err)
		}
	}

	base := cfg.PublicURL
	if base == "" {
		scheme := "http"
		if cfg.UseSSL {
			scheme = "https"
		}
		base = scheme + "://" + cfg.Endpoint
	}
	return &MinioStore{client: client, bucket: cfg.Bucket, baseURL: strings.TrimSuffix(base, "/")}, nil
}

// ObjectKey builds "<folder>/<uuid>.<ext>" for an upload named name.
func ObjectKey(kind Kind, name string) string {
	key := path.Join(kind.Folder(), uuid.NewString())
	if ext := Format(name); ext != "" {
		key += "." + ext
	}
	return key
}

func (m *MinioStore) Upload(ctx context.Context, kind Kind, f File, tags []string) (*Object, error) {
	key := ObjectKey(kind, f.Name)
	opts := minio.PutObjectOptions{ContentType: f.ContentType}
	if len(tags) > 0 {
		opts.UserMetadata = map[string]string{"tags": strings.Join(tags, ",")}
	}
	info, err := m.client.PutObject(ctx, m.bucket, key, f.Body, f.Size, opts)
	if err != nil {
		return nil, fmt.Errorf("put object: %w", err)
	}
	u := m.url(key)
	return &Object{
		PublicID:  key,
		URL:       u,
		SecureURL: SecureURL(u),
		Format:    Format(f.Name),
		Bytes:     info.Size,
	}, nil
}

func (m *MinioStore) Delete(ctx context.Context, _ Kind, publicID string) error {
	if err := m.client.RemoveObject(ctx, m.bucket, publicID, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}

func (m *MinioStore) PublicID(rawURL string) string {
	prefix := m.baseURL + "/" + m.bucket + "/"
	for _, p := range []string{prefix, SecureURL(prefix)} {
		if strings.HasPrefix(rawURL, p) {
			return strings.TrimPrefix(rawURL, p)
		}
	}
	return PublicIDFromURL(rawURL)
}

func (m *MinioStore) url(key string) string {
	return m.baseURL + "/" + m.bucket + "/" + key
}
