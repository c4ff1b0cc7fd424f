package httpx

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"thientam/internal/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestNewPageClamps(t *testing.T) {
	cases := []struct {
		page, limit  string
		def, max     int
		wantP, wantL int
	}{
		{"0", "500", 10, 100, 1, 100},
		{"", "", 10, 100, 1, 10},
		{"-3", "0", 20, 100, 1, 1},
		{"2", "30", 10, 50, 2, 30},
		{"abc", "xyz", 20, 100, 1, 20},
		{"3", "75", 10, 50, 3, 50},
	}
	for _, tc := range cases {
		got := NewPage(tc.page, tc.limit, tc.def, tc.max)
		if got.Page != tc.wantP || got.Limit != tc.wantL {
			t.Errorf("NewPage(%q,%q): expected %d/%d, got %d/%d", tc.page, tc.limit, tc.wantP, tc.wantL, got.Page, got.Limit)
		}
	}
}

func TestPagesIsCeil(t *testing.T) {
	p := Page{Page: 1, Limit: 10}
	for total, want := range map[int64]int{0: 0, 1: 1, 10: 1, 11: 2, 100: 10, 101: 11} {
		if got := p.Pages(total); got != want {
			t.Errorf("Pages(%d): expected %d, got %d", total, want, got)
		}
	}
	if got := (Page{Page: 3, Limit: 20}).Skip(); got != 40 {
		t.Errorf("expected skip 40, got %d", got)
	}
}

func TestCountAndFindEmptyIsNonNil(t *testing.T) {
	items, total, err := CountAndFind(context.Background(),
		func(context.Context) (int64, error) { return 0, nil },
		func(context.Context) ([]string, error) { return nil, nil },
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if items == nil || len(items) != 0 || total != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v total=%d", items, total)
	}
}

func TestCountAndFindPropagatesError(t *testing.T) {
	boom := errors.New("boom")
	_, _, err := CountAndFind(context.Background(),
		func(context.Context) (int64, error) { return 0, boom },
		func(context.Context) ([]int, error) { return []int{1}, nil },
	)
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
}

func TestSplitCSV(t *testing.T) {
	got := SplitCSV(" thien, ,kinh,")
	if len(got) != 2 || got[0] != "thien" || got[1] != "kinh" {
		t.Errorf("unexpected %v", got)
	}
}

type sample struct {
	Slug  string `json:"slug" binding:"required,slug"`
	Color string `json:"color" binding:"omitempty,hexcolor6"`
	Name  string `json:"name" binding:"required,min=2"`
}

func TestFieldErrorsUseJSONNames(t *testing.T) {
	r := gin.New()
	r.POST("/", func(c *gin.Context) {
		var req sample
		if err := c.ShouldBindJSON(&req); err != nil {
			Invalid(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", stringsReader(`{"slug":"Tu Bi","color":"red","name":"a"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	body := w.Body.String()
	for _, field := range []string{`"field":"slug"`, `"field":"color"`, `"field":"name"`, `"message":"invalid_request"`} {
		if !contains(body, field) {
			t.Errorf("expected %s in %s", field, body)
		}
	}
}

func TestServerErrorHidesDetailInProduction(t *testing.T) {
	for _, prod := range []bool{false, true} {
		r := gin.New()
		r.Use(RequestContext(logger.Nop(), prod))
		r.GET("/", func(c *gin.Context) { ServerError(c, errors.New("db down")) })

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		if w.Code != http.StatusInternalServerError {
			t.Fatalf("expected 500, got %d", w.Code)
		}
		if got := contains(w.Body.String(), "db down"); got == prod {
			t.Errorf("production=%v: unexpected body %s", prod, w.Body.String())
		}
		if w.Header().Get("X-Request-Id") == "" {
			t.Errorf("expected request id header")
		}
	}
}

func TestRequestIDIsPropagated(t *testing.T) {
	r := gin.New()
	r.Use(RequestContext(logger.Nop(), false))
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, RequestID(c)) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-Id", "abc-123")
	r.ServeHTTP(w, req)
	if w.Body.String() != "abc-123" {
		t.Errorf("expected abc-123, got %s", w.Body.String())
	}
}
