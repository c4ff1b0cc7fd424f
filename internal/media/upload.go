package media

import (
	"io"
	"mime/multipart"
)

// Open checks fh against kind's rule and opens it for streaming. The caller
// closes the returned file.
func Open(kind Kind, fh *multipart.FileHeader) (File, io.Closer, error) {
	ct := fh.Header.Get("Content-Type")
	if err := Check(kind, fh.Filename, ct, fh.Size); err != nil {
		return File{}, nil, err
	}
	body, err := fh.Open()
	if err != nil {
		return File{}, nil, err
	}
	return File{Name: fh.Filename, ContentType: ct, Size: fh.Size, Body: body}, body, nil
}
