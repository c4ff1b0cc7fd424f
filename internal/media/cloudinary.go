package media

import (
	"context"
	"errors"
	"fmt"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

// CloudinaryStore uploads to Cloudinary. PDFs and covers are "image"
// resources so the CDN can render them; audio is a "video" resource.
type CloudinaryStore struct {
	cld *cloudinary.Cloudinary
}

func NewCloudinaryStore(cloudName, apiKey, apiSecret string) (*CloudinaryStore, error) {
	cld, err := cloudinary.NewFromParams(cloudName, apiKey, apiSecret)
	if err != nil {
		return nil, fmt.Errorf("init cloudinary: %w", err)
	}
	return &CloudinaryStore{cld: cld}, nil
}

func resourceType(kind Kind) string {
	if kind == KindAudio {
		return "video"
	}
	return "image"
}

func defaultTags(kind Kind) []string {
	switch kind {
	case KindPDF:
		return []string{"buddhist-book"}
	case KindCover:
		return []string{"book-cover"}
	default:
		return []string{"buddhist-audio"}
	}
}

func (s *CloudinaryStore) Upload(ctx context.Context, kind Kind, f File, tags []string) (*Object, error) {
	if len(tags) == 0 {
		tags = defaultTags(kind)
	}
	res, err := s.cld.Upload.Upload(ctx, f.Body, uploader.UploadParams{
		Folder:         kind.Folder(),
		ResourceType:   resourceType(kind),
		Tags:           tags,
		Overwrite:      api.Bool(false),
		UniqueFilename: api.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("upload %s: %w", kind, err)
	}
	if res.Error.Message != "" {
		return nil, fmt.Errorf("upload %s: %s", kind, res.Error.Message)
	}
	return &Object{
		PublicID:  res.PublicID,
		URL:       res.URL,
		SecureURL: res.SecureURL,
		Format:    res.Format,
		Bytes:     int64(res.Bytes),
	}, nil
}

func (s *CloudinaryStore) Delete(ctx context.Context, kind Kind, publicID string) error {
	res, err := s.cld.Upload.Destroy(ctx, uploader.DestroyParams{
		PublicID:     publicID,
		ResourceType: resourceType(kind),
	})
	if err != nil {
		return fmt.Errorf("destroy %s: %w", publicID, err)
	}
	if res.Error.Message != "" {
		return errors.New(res.Error.Message)
	}
	// "not found" nghĩa là file đã bị xóa trước đó
	if res.Result != "ok" && res.Result != "not found" {
		return fmt.Errorf("destroy %s: %s", publicID, res.Result)
	}
	return nil
}

func (s *CloudinaryStore) PublicID(rawURL string) string {
	return PublicIDFromURL(rawURL)
}
