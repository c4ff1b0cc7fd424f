package media

import (
	"net/url"
	"regexp"
	"strings"
)

var versionRe = regexp.MustCompile(`^v\d+$`)

// PublicIDFromURL extracts a hosted-media public id:
//
//	https://res.cloudinary.com/demo/image/upload/v1712/thientam/books/kinh.pdf -> thientam/books/kinh
//
// Without a version segment only the file name (minus extension) is returned.
func PublicIDFromURL(raw string) string {
	path := raw
	if u, err := url.Parse(raw); err == nil && u.Path != "" {
		path = u.Path
	}
	parts := strings.Split(strings.TrimSuffix(path, "/"), "/")
	name := parts[len(parts)-1]
	if i := strings.IndexByte(name, '.'); i >= 0 {
		name = name[:i]
	}

	version := -1
	for i, p := range parts[:len(parts)-1] {
		if versionRe.MatchString(p) {
			version = i
			break
		}
	}
	if version < 0 {
		return name
	}
	folder := parts[version+1 : len(parts)-1]
	if len(folder) == 0 {
		return name
	}
	return strings.Join(folder, "/") + "/" + name
}

// SecureURL upgrades an http:// URL to https://.
func SecureURL(raw string) string {
	if strings.HasPrefix(raw, "http://") {
		return "https://" + strings.TrimPrefix(raw, "http://")
	}
	return raw
}
