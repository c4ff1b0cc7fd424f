package book

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"thientam/internal/auth"
	"thientam/internal/media"
	"thientam/pkg/database"
	"thientam/pkg/models"
)

type fakeMedia struct {
	mu      sync.Mutex
	uploads []media.Kind
	deleted []string
	failOn  media.Kind
}

func (f *fakeMedia) Upload(_ context.Context, kind media.Kind, file media.File, _ []string) (*media.Object, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if kind == f.failOn {
		return nil, errors.New("upstream down")
	}
	n, _ := io.Copy(io.Discard, file.Body)
	f.uploads = append(f.uploads, kind)
	id := kind.Folder() + "/" + strings.TrimSuffix(file.Name, "."+media.Format(file.Name))
	return &media.Object{
		PublicID:  id,
		URL:       "http://cdn.test/" + id,
		SecureURL: "https://cdn.test/" + id,
		Format:    media.Format(file.Name),
		Bytes:     n,
	}, nil
}

func (f *fakeMedia) Delete(_ context.Context, _ media.Kind, publicID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, publicID)
	return nil
}

func (f *fakeMedia) PublicID(rawURL string) string { return media.PublicIDFromURL(rawURL) }

type eventLog struct {
	mu     sync.Mutex
	events []models.Event
}

func (e *eventLog) Publish(ev models.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, ev)
}

func newTestStore(t *testing.T) *SQLStore {
	t.Helper()
	db, err := database.OpenMemory()
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewSQLStore(db)
}

func newTestRouter(t *testing.T, files media.Store) (*gin.Engine, *SQLStore, *eventLog) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	s := newTestStore(t)
	ev := &eventLog{}
	r := gin.New()
	NewHandler(s, files, ev).Register(r.Group("/books"))
	return r, s, ev
}

func doJSON(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &m); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return m
}

type part struct {
	field, name, contentType string
	data                     []byte
}

func multipartBody(t *testing.T, fields map[string]string, files ...part) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	for _, p := range files {
		h := textproto.MIMEHeader{}
		h.Set("Content-Disposition", `form-data; name="`+p.field+`"; filename="`+p.name+`"`)
		h.Set("Content-Type", p.contentType)
		w, err := mw.CreatePart(h)
		if err != nil {
			t.Fatal(err)
		}
		w.Write(p.data)
	}
	mw.Close()
	return &buf, mw.FormDataContentType()
}

func seedBook(t *testing.T, s *SQLStore, title, category string, public bool, downloads int64, tags ...string) *models.Book {
	t.Helper()
	b := &models.Book{
		Title:         title,
		Category:      category,
		Tags:          tags,
		BookLanguage:  "vi",
		FilePublicID:  "thientam/books/" + title,
		FileURL:       "http://cdn.test/" + title,
		FileSecureURL: "https://cdn.test/" + title,
		DownloadCount: downloads,
		IsPublic:      public,
	}
	if err := s.Create(context.Background(), b); err != nil {
		t.Fatalf("create book: %v", err)
	}
	return b
}

func TestStoreFilters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedBook(t, s, "Kinh Pháp Hoa", "sutra", true, 5, "kinh", "dai-thua")
	seedBook(t, s, "Tiểu sử Đức Phật", "biography", true, 1, "tieu-su")
	seedBook(t, s, "Bản nháp", "sutra", false, 9)

	tests := []struct {
		name string
		f    Filter
		want int64
	}{
		{"all", Filter{}, 3},
		{"category", Filter{Category: "sutra"}, 2},
		{"tags any of", Filter{Tags: []string{"tieu-su", "dai-thua"}}, 2},
		{"public only", Filter{IsPublic: boolPtr(true)}, 2},
		{"search title", Filter{Search: "pháp"}, 1},
		{"search escapes wildcard", Filter{Search: "%"}, 0},
		{"language", Filter{Language: "en"}, 0},
	}
	for _, tt := range tests {
		n, err := s.Count(ctx, tt.f)
		if err != nil {
			t.Fatalf("%s: %v", tt.name, err)
		}
		if n != tt.want {
			t.Errorf("%s: expected %d, got %d", tt.name, tt.want, n)
		}
	}

	popular, err := s.Popular(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(popular) != 2 || popular[0].Title != "Kinh Pháp Hoa" {
		t.Errorf("Expected public books by downloads, got %+v", popular)
	}

	asc, err := s.Find(ctx, Filter{SortBy: "downloadCount", Asc: true}, 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if asc[0].DownloadCount != 1 || asc[2].DownloadCount != 9 {
		t.Errorf("Expected ascending downloads, got %d..%d", asc[0].DownloadCount, asc[2].DownloadCount)
	}
}

func boolPtr(b bool) *bool { return &b }

func TestStoreNullableColumns(t *testing.T) {
	s := newTestStore(t)
	b := seedBook(t, s, "Không năm", "other", true, 0)
	got, err := s.Get(context.Background(), b.ID.Hex())
	if err != nil {
		t.Fatal(err)
	}
	if got.PublishYear != nil || got.PageCount != nil {
		t.Errorf("Expected nil publishYear and pageCount, got %v %v", got.PublishYear, got.PageCount)
	}
	if _, err := s.Get(context.Background(), "nope"); !errors.Is(err, database.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for malformed id, got %v", err)
	}
}

func TestListEnvelope(t *testing.T) {
	r, s, _ := newTestRouter(t, nil)
	for i := 0; i < 3; i++ {
		seedBook(t, s, "Sách "+string(rune('A'+i)), "sutra", true, int64(i))
	}
	w := doJSON(r, http.MethodGet, "/books?limit=2&page=2", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	m := decode(t, w)
	if m["total"].(float64) != 3 || m["pages"].(float64) != 2 || m["page"].(float64) != 2 {
		t.Errorf("unexpected envelope %v", m)
	}
	if len(m["books"].([]any)) != 1 {
		t.Errorf("Expected 1 book on page 2, got %d", len(m["books"].([]any)))
	}
}

func TestCategoriesAndPopular(t *testing.T) {
	r, s, _ := newTestRouter(t, nil)
	w := doJSON(r, http.MethodGet, "/books/categories", "")
	cats := decode(t, w)["categories"].([]any)
	if len(cats) != 8 {
		t.Fatalf("Expected 8 categories, got %d", len(cats))
	}
	first := cats[0].(map[string]any)
	if first["value"] != "sutra" || first["label"] != "Kinh điển" {
		t.Errorf("unexpected first category %v", first)
	}

	for i := 0; i < 3; i++ {
		seedBook(t, s, "P"+string(rune('0'+i)), "sutra", true, int64(i))
	}
	w = doJSON(r, http.MethodGet, "/books/popular?limit=2", "")
	books := decode(t, w)["books"].([]any)
	if len(books) != 2 || books[0].(map[string]any)["title"] != "P2" {
		t.Errorf("unexpected popular list %v", books)
	}
}

func TestCounters(t *testing.T) {
	r, s, _ := newTestRouter(t, nil)
	b := seedBook(t, s, "Đếm", "sutra", true, 4)

	w := doJSON(r, http.MethodPost, "/books/"+b.ID.Hex()+"/download", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	if got := decode(t, w)["downloadCount"]; got != float64(5) {
		t.Errorf("Expected downloadCount 5, got %v", got)
	}
	doJSON(r, http.MethodPost, "/books/"+b.ID.Hex()+"/view", "")
	w = doJSON(r, http.MethodPost, "/books/"+b.ID.Hex()+"/view", "")
	if got := decode(t, w)["viewCount"]; got != float64(2) {
		t.Errorf("Expected viewCount 2, got %v", got)
	}

	w = doJSON(r, http.MethodPost, "/books/000000000000000000000000/view", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", w.Code)
	}
}

func TestFromURL(t *testing.T) {
	r, s, ev := newTestRouter(t, nil)
	body := `{"pdfUrl":"http://res.cloudinary.com/demo/image/upload/v1712/thientam/books/kinh.pdf",
		"coverImageUrl":"https://res.cloudinary.com/demo/image/upload/v1712/thientam/book-covers/bia.jpg",
		"title":"Kinh","category":"sutra","tags":["kinh"]}`
	w := doJSON(r, http.MethodPost, "/books/from-url", body)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
	}
	b := decode(t, w)["book"].(map[string]any)
	if b["filePublicId"] != "thientam/books/kinh" {
		t.Errorf("unexpected public id %v", b["filePublicId"])
	}
	if b["fileSecureUrl"] != "https://res.cloudinary.com/demo/image/upload/v1712/thientam/books/kinh.pdf" {
		t.Errorf("Expected https secure url, got %v", b["fileSecureUrl"])
	}
	if b["coverImagePublicId"] != "thientam/book-covers/bia" {
		t.Errorf("unexpected cover public id %v", b["coverImagePublicId"])
	}
	if b["bookLanguage"] != "vi" || b["isPublic"] != true {
		t.Errorf("Expected defaults vi/public, got %v %v", b["bookLanguage"], b["isPublic"])
	}
	if n, _ := s.Count(context.Background(), Filter{}); n != 1 {
		t.Errorf("Expected 1 stored book, got %d", n)
	}
	if len(ev.events) != 1 || ev.events[0].Type != "book.created" {
		t.Errorf("Expected book.created event, got %+v", ev.events)
	}
}

func TestFromURLValidation(t *testing.T) {
	r, _, _ := newTestRouter(t, nil)
	tests := []struct {
		name, body, field string
	}{
		{"bad url", `{"pdfUrl":"nope","title":"x","category":"sutra"}`, "pdfUrl"},
		{"unknown category", `{"pdfUrl":"https://x/y.pdf","title":"x","category":"novel"}`, "category"},
		{"bad language", `{"pdfUrl":"https://x/y.pdf","title":"x","category":"sutra","bookLanguage":"fr"}`, "bookLanguage"},
		{"future year", `{"pdfUrl":"https://x/y.pdf","title":"x","category":"sutra","publishYear":3000}`, "publishYear"},
	}
	for _, tt := range tests {
		w := doJSON(r, http.MethodPost, "/books/from-url", tt.body)
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", tt.name, w.Code)
			continue
		}
		errs := decode(t, w)["errors"].([]any)
		if errs[0].(map[string]any)["field"] != tt.field {
			t.Errorf("%s: expected field %s, got %v", tt.name, tt.field, errs)
		}
	}

	// id của một danh mục sách cũng hợp lệ
	w := doJSON(r, http.MethodPost, "/books/from-url",
		`{"pdfUrl":"https://x/y.pdf","title":"x","category":"65f1c0a2b3d4e5f607182930"}`)
	if w.Code != http.StatusCreated {
		t.Errorf("Expected 201 for category id, got %d", w.Code)
	}
}

func TestUploadWithoutMedia(t *testing.T) {
	r, _, _ := newTestRouter(t, nil)
	body, ct := multipartBody(t, map[string]string{"title": "x", "category": "sutra"},
		part{"pdf", "a.pdf", "application/pdf", []byte("%PDF")})
	req := httptest.NewRequest(http.MethodPost, "/books/upload", body)
	req.Header.Set("Content-Type", ct)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503, got %d", w.Code)
	}
}

func TestUpload(t *testing.T) {
	files := &fakeMedia{}
	r, _, _ := newTestRouter(t, files)

	body, ct := multipartBody(t,
		map[string]string{"title": "Kinh A Di Đà", "category": "sutra", "tags": "kinh, tinh-do", "isPublic": "false", "pageCount": "42"},
		part{"pdf", "a-di-da.pdf", "application/pdf", []byte("%PDF-1.7 data")},
		part{"cover", "bia.png", "image/png", []byte("png")},
	)
	req := httptest.NewRequest(http.MethodPost, "/books/upload", body)
	req.Header.Set("Content-Type", ct)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
	}
	b := decode(t, w)["book"].(map[string]any)
	if b["filePublicId"] != "thientam/books/a-di-da" || b["coverImagePublicId"] != "thientam/book-covers/bia" {
		t.Errorf("unexpected ids %v %v", b["filePublicId"], b["coverImagePublicId"])
	}
	if b["isPublic"] != false || b["pageCount"] != float64(42) || b["fileSize"] != float64(len("%PDF-1.7 data")) {
		t.Errorf("unexpected fields %v", b)
	}
	if tags := b["tags"].([]any); len(tags) != 2 || tags[1] != "tinh-do" {
		t.Errorf("Expected CSV tags split, got %v", tags)
	}
	if len(files.uploads) != 2 {
		t.Errorf("Expected 2 uploads, got %v", files.uploads)
	}
}

func TestUploadRejects(t *testing.T) {
	files := &fakeMedia{}
	r, s, _ := newTestRouter(t, files)
	send := func(fields map[string]string, parts ...part) *httptest.ResponseRecorder {
		body, ct := multipartBody(t, fields, parts...)
		req := httptest.NewRequest(http.MethodPost, "/books/upload", body)
		req.Header.Set("Content-Type", ct)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}
	meta := map[string]string{"title": "x", "category": "sutra"}

	if w := send(meta); w.Code != http.StatusBadRequest || decode(t, w)["message"] != msgNoPDF {
		t.Errorf("Expected 400 no pdf, got %d %s", w.Code, w.Body.String())
	}
	if w := send(meta, part{"pdf", "a.exe", "application/x-msdownload", []byte("MZ")}); w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for wrong pdf type, got %d", w.Code)
	}
	if w := send(meta, part{"pdf", "a.pdf", "application/pdf", []byte("x")}, part{"cover", "a.gif", "image/gif", []byte("x")}); w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for gif cover, got %d", w.Code)
	}
	if w := send(map[string]string{"category": "sutra"}, part{"pdf", "a.pdf", "application/pdf", []byte("x")}); w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for missing title, got %d", w.Code)
	}
	if len(files.uploads) != 0 {
		t.Errorf("Expected nothing uploaded, got %v", files.uploads)
	}

	// cover lỗi: pdf đã tải lên phải được xóa
	files.failOn = media.KindCover
	w := send(meta, part{"pdf", "a.pdf", "application/pdf", []byte("x")}, part{"cover", "a.jpg", "image/jpeg", []byte("x")})
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("Expected 500, got %d", w.Code)
	}
	if len(files.deleted) != 1 || files.deleted[0] != "thientam/books/a" {
		t.Errorf("Expected orphaned pdf removed, got %v", files.deleted)
	}
	if n, _ := s.Count(context.Background(), Filter{}); n != 0 {
		t.Errorf("Expected no stored book, got %d", n)
	}
}

func TestUpdateAndDelete(t *testing.T) {
	files := &fakeMedia{}
	r, s, _ := newTestRouter(t, files)
	b := seedBook(t, s, "Cũ", "sutra", true, 0)
	if _, err := s.Update(context.Background(), b.ID.Hex(), Patch{}); err != nil {
		t.Fatal(err)
	}

	w := doJSON(r, http.MethodPut, "/books/"+b.ID.Hex(), `{"title":"Mới","tags":["a"],"publishYear":2020}`)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	got := decode(t, w)["book"].(map[string]any)
	if got["title"] != "Mới" || got["publishYear"] != float64(2020) || got["category"] != "sutra" {
		t.Errorf("unexpected update result %v", got)
	}
	if w := doJSON(r, http.MethodPut, "/books/"+b.ID.Hex(), `{"category":"novel"}`); w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for bad category, got %d", w.Code)
	}
	if w := doJSON(r, http.MethodPut, "/books/000000000000000000000000", `{"title":"x"}`); w.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", w.Code)
	}

	w = doJSON(r, http.MethodDelete, "/books/"+b.ID.Hex(), "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	if len(files.deleted) != 1 || files.deleted[0] != b.FilePublicID {
		t.Errorf("Expected stored pdf deleted, got %v", files.deleted)
	}
	if w := doJSON(r, http.MethodGet, "/books/"+b.ID.Hex(), ""); w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 after delete, got %d", w.Code)
	}
}

func TestMutationsAreGuarded(t *testing.T) {
	gin.SetMode(gin.TestMode)
	secret := []byte("s")
	r := gin.New()
	NewHandler(newTestStore(t), nil, nil).Register(r.Group("/books"),
		auth.RequireJWT(secret, nil), auth.RequireRoles(models.RoleAdmin))

	if w := doJSON(r, http.MethodDelete, "/books/000000000000000000000000", ""); w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401, got %d", w.Code)
	}
	tok, err := auth.SignAccess(secret, "u1", models.RoleUser, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, "/books/from-url", strings.NewReader(`{}`))
	req.Header.Set("Authorization", "Bearer "+tok)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusForbidden {
		t.Errorf("Expected 403 for USER, got %d", w.Code)
	}
	if w := doJSON(r, http.MethodGet, "/books", ""); w.Code != http.StatusOK {
		t.Errorf("Expected public list 200, got %d", w.Code)
	}
}
