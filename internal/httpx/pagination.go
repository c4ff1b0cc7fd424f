package httpx

import (
	"context"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultPublicLimit = 10
	DefaultAdminLimit  = 20
	MaxLimit           = 100
	MaxSearchLimit     = 50
)

// Page is a validated page/limit pair: page >= 1, 1 <= limit <= max.
type Page struct {
	Page  int
	Limit int
}

func (p Page) Skip() int {
	return (p.Page - 1) * p.Limit
}

// Pages is ceil(total/limit).
func (p Page) Pages(total int64) int {
	if p.Limit <= 0 || total <= 0 {
		return 0
	}
	return int((total + int64(p.Limit) - 1) / int64(p.Limit))
}

// NewPage coerces raw query values; unparsable values fall back to the defaults.
func NewPage(pageStr, limitStr string, defLimit, maxLimit int) Page {
	page := parseInt(pageStr, 1)
	if page < 1 {
		page = 1
	}
	limit := parseInt(limitStr, defLimit)
	if limit < 1 {
		limit = 1
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return Page{Page: page, Limit: limit}
}

func ParsePage(c *gin.Context, defLimit, maxLimit int) Page {
	return NewPage(c.Query("page"), c.Query("limit"), defLimit, maxLimit)
}

// Envelope builds {key: items, total, page, pages}.
func Envelope(key string, items any, total int64, p Page) gin.H {
	return gin.H{
		key:     items,
		"total": total,
		"page":  p.Page,
		"pages": p.Pages(total),
	}
}

// Sort is a whitelisted sort field and direction.
type Sort struct {
	Field string
	Asc   bool
}

// ParseSort maps sortBy through allowed (query name -> store field) and
// falls back to def when sortBy is missing or not allowed. Descending unless
// sortOrder=asc.
func ParseSort(c *gin.Context, allowed map[string]string, def string) Sort {
	field, ok := allowed[c.Query("sortBy")]
	if !ok {
		field = allowed[def]
	}
	return Sort{Field: field, Asc: strings.EqualFold(c.Query("sortOrder"), "asc")}
}

// CountAndFind runs the count and the page query concurrently against the
// same filter. The two results are not a consistent snapshot.
func CountAndFind[T any](ctx context.Context, count func(context.Context) (int64, error), find func(context.Context) ([]T, error)) ([]T, int64, error) {
	var (
		items []T
		total int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		total, err = count(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		items, err = find(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}
	if items == nil {
		items = []T{}
	}
	return items, total, nil
}

// QueryBool returns nil when the parameter is absent, otherwise value == "true".
func QueryBool(c *gin.Context, key string) *bool {
	v, ok := c.GetQuery(key)
	if !ok {
		return nil
	}
	b := v == "true"
	return &b
}

// SplitCSV splits "a, b,,c" into [a b c].
func SplitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseInt(s string, def int) int {
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return def
	}
	return v
}

// QueryInt reads an integer query parameter with a default.
func QueryInt(c *gin.Context, key string, def int) int {
	return parseInt(c.Query(key), def)
}
