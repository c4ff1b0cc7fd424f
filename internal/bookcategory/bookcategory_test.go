package bookcategory

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"thientam/internal/book"
	"thientam/pkg/database"
	"thientam/pkg/models"
)

type fixture struct {
	router *gin.Engine
	cats   *SQLStore
	books  *book.SQLStore
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db, err := database.OpenMemory()
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	f := fixture{cats: NewSQLStore(db), books: book.NewSQLStore(db)}
	f.router = gin.New()
	NewHandler(f.cats, f.books).Register(f.router.Group("/book-categories"))
	return f
}

func (f fixture) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
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

func (f fixture) mustCreate(t *testing.T, name string, order int, active bool) *models.BookCategory {
	t.Helper()
	bc := &models.BookCategory{Name: name, Icon: DefaultIcon, Color: DefaultColor, DisplayOrder: order, IsActive: active}
	if err := f.cats.Create(context.Background(), bc); err != nil {
		t.Fatalf("create %s: %v", name, err)
	}
	return bc
}

func TestCreateAppliesDefaults(t *testing.T) {
	f := newFixture(t)
	w := f.do(http.MethodPost, "/book-categories", `{"name":" Kinh điển ","nameEn":"Sutras"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
	}
	m := decode(t, w)
	if m["success"] != true || m["message"] != "Tạo danh mục thành công" {
		t.Errorf("Unexpected envelope %v", m)
	}
	data := m["data"].(map[string]any)
	if data["name"] != "Kinh điển" || data["icon"] != DefaultIcon || data["color"] != DefaultColor || data["isActive"] != true {
		t.Errorf("Expected defaults, got %v", data)
	}

	w = f.do(http.MethodPost, "/book-categories", `{"name":"Kinh điển"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400 on duplicate, got %d", w.Code)
	}
	if m := decode(t, w); m["success"] != false || m["message"] != "Danh mục này đã tồn tại" {
		t.Errorf("Unexpected duplicate response %v", m)
	}
}

func TestCreateRequiresName(t *testing.T) {
	f := newFixture(t)
	if w := f.do(http.MethodPost, "/book-categories", `{"icon":"x"}`); w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", w.Code)
	}
}

func TestListOrderAndBookCount(t *testing.T) {
	f := newFixture(t)
	second := f.mustCreate(t, "Thiền", 2, true)
	f.mustCreate(t, "Luận", 1, true)
	f.mustCreate(t, "Ẩn", 0, false)

	ctx := context.Background()
	for _, title := range []string{"a", "b"} {
		b := &models.Book{Title: title, Category: second.ID.Hex(), Tags: []string{}, IsPublic: true}
		if err := f.books.Create(ctx, b); err != nil {
			t.Fatal(err)
		}
	}

	m := decode(t, f.do(http.MethodGet, "/book-categories", ""))
	if m["total"].(float64) != 3 {
		t.Fatalf("Expected 3 categories, got %v", m["total"])
	}
	data := m["data"].([]any)
	if data[0].(map[string]any)["name"] != "Ẩn" {
		t.Errorf("Expected display order, got %v", data[0])
	}
	last := data[2].(map[string]any)
	if last["name"] != "Thiền" || last["bookCount"].(float64) != 2 {
		t.Errorf("Expected Thiền with 2 books, got %v", last)
	}

	m = decode(t, f.do(http.MethodGet, "/book-categories?isActive=true", ""))
	if m["total"].(float64) != 2 {
		t.Errorf("Expected 2 active categories, got %v", m["total"])
	}
}

func TestGetNotFound(t *testing.T) {
	f := newFixture(t)
	for _, id := range []string{"000000000000000000000000", "zzz"} {
		w := f.do(http.MethodGet, "/book-categories/"+id, "")
		if w.Code != http.StatusNotFound {
			t.Fatalf("%s: expected 404, got %d", id, w.Code)
		}
		if m := decode(t, w); m["message"] != msgNotFound {
			t.Errorf("Unexpected message %v", m["message"])
		}
	}
}

func TestUpdateRenameConflict(t *testing.T) {
	f := newFixture(t)
	f.mustCreate(t, "Kinh", 0, true)
	luan := f.mustCreate(t, "Luận", 1, true)

	w := f.do(http.MethodPut, "/book-categories/"+luan.ID.Hex(), `{"name":"Kinh"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d: %s", w.Code, w.Body.String())
	}
	if m := decode(t, w); m["message"] != "Tên danh mục này đã tồn tại" {
		t.Errorf("Unexpected message %v", m["message"])
	}

	w = f.do(http.MethodPut, "/book-categories/"+luan.ID.Hex(), `{"color":"#112233","isActive":false}`)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	data := decode(t, w)["data"].(map[string]any)
	if data["color"] != "#112233" || data["isActive"] != false || data["name"] != "Luận" {
		t.Errorf("Unexpected update result %v", data)
	}
}

func TestDeleteBlockedWhileBooksReferenceIt(t *testing.T) {
	f := newFixture(t)
	bc := f.mustCreate(t, "Thiền", 0, true)
	b := &models.Book{Title: "x", Category: bc.ID.Hex(), Tags: []string{}}
	if err := f.books.Create(context.Background(), b); err != nil {
		t.Fatal(err)
	}

	w := f.do(http.MethodDelete, "/book-categories/"+bc.ID.Hex(), "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d", w.Code)
	}
	if m := decode(t, w); m["message"] != "Không thể xóa danh mục này vì còn 1 sách đang sử dụng" {
		t.Errorf("Unexpected message %v", m["message"])
	}

	if err := f.books.Delete(context.Background(), b.ID.Hex()); err != nil {
		t.Fatal(err)
	}
	if w := f.do(http.MethodDelete, "/book-categories/"+bc.ID.Hex(), ""); w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	if w := f.do(http.MethodGet, "/book-categories/"+bc.ID.Hex(), ""); w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 after delete, got %d", w.Code)
	}
}

func TestReorder(t *testing.T) {
	f := newFixture(t)
	a := f.mustCreate(t, "A", 0, true)
	b := f.mustCreate(t, "B", 1, true)
	c := f.mustCreate(t, "C", 2, true)

	if w := f.do(http.MethodPost, "/book-categories/reorder", `{}`); w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 without categoryIds, got %d", w.Code)
	}
	if w := f.do(http.MethodPost, "/book-categories/reorder", `{"categoryIds":["nope"]}`); w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for bad id, got %d", w.Code)
	}

	body := `{"categoryIds":["` + c.ID.Hex() + `","` + a.ID.Hex() + `","` + b.ID.Hex() + `"]}`
	w := f.do(http.MethodPost, "/book-categories/reorder", body)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	cats, err := f.cats.List(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	got := []string{cats[0].Name, cats[1].Name, cats[2].Name}
	if strings.Join(got, "") != "CAB" {
		t.Errorf("Expected order CAB, got %v", got)
	}
}
