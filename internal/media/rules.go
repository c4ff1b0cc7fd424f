package media

import (
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
)

const mb = 1024 * 1024

var (
	ErrTooLarge    = errors.New("file too large")
	ErrInvalidType = errors.New("invalid file type")
)

// Rule limits what may be uploaded for a kind. A file passes the type check
// when either its MIME type or its extension is listed.
type Rule struct {
	MaxBytes   int64
	MimeTypes  []string
	Extensions []string
}

var rules = map[Kind]Rule{
	KindPDF: {
		MaxBytes:   100 * mb,
		MimeTypes:  []string{"application/pdf"},
		Extensions: []string{".pdf"},
	},
	KindCover: {
		MaxBytes:   5 * mb,
		MimeTypes:  []string{"image/jpeg", "image/jpg", "image/png", "image/webp"},
		Extensions: []string{".jpg", ".jpeg", ".png", ".webp"},
	},
	KindAudio: {
		MaxBytes: 50 * mb,
		MimeTypes: []string{
			"audio/mpeg", "audio/mp3", "audio/wav", "audio/ogg",
			"audio/aac", "audio/flac", "audio/m4a", "audio/x-m4a",
		},
		Extensions: []string{".mp3", ".wav", ".ogg", ".aac", ".flac", ".m4a"},
	},
}

func RuleFor(kind Kind) Rule {
	return rules[kind]
}

// Check validates name, content type and size of an upload against kind's rule.
func Check(kind Kind, name, contentType string, size int64) error {
	r, ok := rules[kind]
	if !ok {
		return fmt.Errorf("unknown media kind %q", kind)
	}
	if size > r.MaxBytes {
		return fmt.Errorf("%w: %d bytes, max %dMB", ErrTooLarge, size, r.MaxBytes/mb)
	}
	mime := strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	ext := strings.ToLower(filepath.Ext(name))
	if slices.Contains(r.MimeTypes, mime) || slices.Contains(r.Extensions, ext) {
		return nil
	}
	return fmt.Errorf("%w: allowed %s", ErrInvalidType, strings.Join(r.Extensions, ", "))
}

// Format is the lowercase extension without the dot, "" when there is none.
func Format(name string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
}
