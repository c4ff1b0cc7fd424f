package media

import (
	"context"
	"errors"
	"io"
)

// Kind selects the folder, the resource type and the upload rule.
type Kind string

const (
	KindPDF   Kind = "pdf"
	KindCover Kind = "cover"
	KindAudio Kind = "audio"
)

// Folder is the remote folder (Cloudinary) or key prefix (MinIO) for kind.
func (k Kind) Folder() string {
	switch k {
	case KindPDF:
		return "thientam/books"
	case KindCover:
		return "thientam/book-covers"
	default:
		return "thientam/audio"
	}
}

var ErrNotConfigured = errors.New("media storage is not configured")

// File is one uploaded part ready to be streamed to the backend.
type File struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}

// Object describes a stored file.
type Object struct {
	PublicID  string
	URL       string
	SecureURL string
	Format    string
	Bytes     int64
}

type Store interface {
	Upload(ctx context.Context, kind Kind, f File, tags []string) (*Object, error)
	Delete(ctx context.Context, kind Kind, publicID string) error
	// PublicID recovers the identifier of a file this backend serves at rawURL.
	PublicID(rawURL string) string
}
