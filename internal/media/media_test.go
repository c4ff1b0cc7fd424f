package media

import (
	"errors"
	"strings"
	"testing"
)

func TestPublicIDFromURL(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://res.cloudinary.com/demo/image/upload/v1712345678/thientam/books/kinh-phap-hoa.pdf", "thientam/books/kinh-phap-hoa"},
		{"https://res.cloudinary.com/demo/video/upload/v99/thientam/audio/chu-dai-bi.mp3", "thientam/audio/chu-dai-bi"},
		{"https://res.cloudinary.com/demo/image/upload/v12/cover.jpg", "cover"},
		{"https://res.cloudinary.com/demo/image/upload/v12/a/b/c.tar.gz?x=1", "a/b/c"},
		// "video" bắt đầu bằng v nhưng không phải segment phiên bản
		{"https://res.cloudinary.com/demo/video/upload/folder/file.mp3", "file"},
		{"file.pdf", "file"},
	}
	for _, tt := range tests {
		if got := PublicIDFromURL(tt.url); got != tt.want {
			t.Errorf("PublicIDFromURL(%q): expected %q, got %q", tt.url, tt.want, got)
		}
	}
}

func TestSecureURL(t *testing.T) {
	if got := SecureURL("http://x/y.pdf"); got != "https://x/y.pdf" {
		t.Errorf("Expected https upgrade, got %q", got)
	}
	if got := SecureURL("https://x/y.pdf"); got != "https://x/y.pdf" {
		t.Errorf("Expected unchanged, got %q", got)
	}
}

func TestCheck(t *testing.T) {
	tests := []struct {
		name    string
		kind    Kind
		file    string
		ct      string
		size    int64
		wantErr error
	}{
		{"pdf ok", KindPDF, "kinh.pdf", "application/pdf", 10 * mb, nil},
		{"pdf by extension", KindPDF, "kinh.PDF", "application/octet-stream", mb, nil},
		{"pdf too large", KindPDF, "kinh.pdf", "application/pdf", 100*mb + 1, ErrTooLarge},
		{"pdf wrong type", KindPDF, "kinh.docx", "application/msword", mb, ErrInvalidType},
		{"cover webp", KindCover, "a.webp", "", mb, nil},
		{"cover by mime", KindCover, "blob", "image/png", mb, nil},
		{"cover too large", KindCover, "a.jpg", "image/jpeg", 5*mb + 1, ErrTooLarge},
		{"cover gif", KindCover, "a.gif", "image/gif", mb, ErrInvalidType},
		{"audio m4a mime", KindAudio, "track", "audio/x-m4a", mb, nil},
		{"audio flac", KindAudio, "track.flac", "", mb, nil},
		{"audio mime with params", KindAudio, "track", "audio/mpeg; charset=binary", mb, nil},
		{"audio limit", KindAudio, "track.mp3", "audio/mpeg", 50 * mb, nil},
		{"audio too large", KindAudio, "track.mp3", "audio/mpeg", 50*mb + 1, ErrTooLarge},
		{"audio video", KindAudio, "clip.mp4", "video/mp4", mb, ErrInvalidType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Check(tt.kind, tt.file, tt.ct, tt.size)
			if tt.wantErr == nil && err != nil {
				t.Fatalf("Expected no error, got %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("Expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestObjectKey(t *testing.T) {
	key := ObjectKey(KindCover, "Bìa.JPG")
	if !strings.HasPrefix(key, "thientam/book-covers/") {
		t.Errorf("Expected cover folder prefix, got %q", key)
	}
	if !strings.HasSuffix(key, ".jpg") {
		t.Errorf("Expected .jpg suffix, got %q", key)
	}
	if ObjectKey(KindCover, "Bìa.JPG") == key {
		t.Errorf("Expected unique keys")
	}
}

func TestFolders(t *testing.T) {
	if KindPDF.Folder() != "thientam/books" || KindAudio.Folder() != "thientam/audio" {
		t.Errorf("unexpected folders %q %q", KindPDF.Folder(), KindAudio.Folder())
	}
	if resourceType(KindAudio) != "video" || resourceType(KindPDF) != "image" {
		t.Errorf("unexpected resource types")
	}
}
