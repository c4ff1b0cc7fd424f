package topic

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// bỏ dấu tiếng Việt; đ/Đ không tách được bằng NFD nên thay tay
var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Slugify turns a display name such as "Từ Bi" into "tu-bi".
func Slugify(s string) string {
	s = strings.NewReplacer("đ", "d", "Đ", "d").Replace(s)
	if out, _, err := transform.String(stripMarks, s); err == nil {
		s = out
	}
	s = strings.ToLower(strings.TrimSpace(s))

	var b strings.Builder
	lastDash := false
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			lastDash = false
			continue
		}
		if !lastDash {
			b.WriteByte('-')
			lastDash = true
		}
	}
	return strings.Trim(b.String(), "-")
}
