package reading

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"thientam/pkg/localday"
	"thientam/pkg/models"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []models.Event
}

func (p *recordingPublisher) Publish(ev models.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
}

func newTestRouter(t *testing.T) (*gin.Engine, *SQLStore, *recordingPublisher) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	s := newTestStore(t)
	pub := &recordingPublisher{}
	h := NewHandler(s, pub)

	r := gin.New()
	h.RegisterPublic(r.Group("/readings"))
	h.RegisterAdmin(r.Group("/admin"))
	return r, s, pub
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
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

func TestByDateNotFound(t *testing.T) {
	r, _, _ := newTestRouter(t)
	w := do(r, http.MethodGet, "/readings/2025-10-24", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("Expected 404, got %d", w.Code)
	}
	m := decode(t, w)
	if m["message"] != "not_found" {
		t.Errorf("Expected not_found, got %v", m["message"])
	}
	if _, ok := m["items"]; ok {
		t.Errorf("Expected no items field on 404")
	}
}

func TestByDateFound(t *testing.T) {
	r, s, _ := newTestRouter(t)
	mustCreate(t, s, localday.Date(2025, time.October, 24), "hôm nay")

	w := do(r, http.MethodGet, "/readings/2025-10-24", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	m := decode(t, w)
	if m["total"].(float64) != 1 {
		t.Errorf("Expected total 1, got %v", m["total"])
	}
}

func TestByDateMalformed(t *testing.T) {
	r, _, _ := newTestRouter(t)
	for _, p := range []string{"/readings/2025-1-5", "/readings/2025-13-40"} {
		if w := do(r, http.MethodGet, p, ""); w.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", p, w.Code)
		}
	}
}

func TestTodayUsesLocalDay(t *testing.T) {
	r, s, _ := newTestRouter(t)
	if w := do(r, http.MethodGet, "/readings/today", ""); w.Code != http.StatusNotFound {
		t.Fatalf("Expected 404 before seeding, got %d", w.Code)
	}
	mustCreate(t, s, localday.Today(), "today")
	if w := do(r, http.MethodGet, "/readings/today", ""); w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
}

func TestListEmptyPage(t *testing.T) {
	r, _, _ := newTestRouter(t)
	w := do(r, http.MethodGet, "/readings?page=0&limit=500", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	m := decode(t, w)
	items, ok := m["items"].([]any)
	if !ok || len(items) != 0 {
		t.Errorf("Expected empty items array, got %v", m["items"])
	}
	if m["total"].(float64) != 0 || m["pages"].(float64) != 0 || m["page"].(float64) != 1 {
		t.Errorf("Unexpected envelope %v", m)
	}
}

func TestListClampsLimit(t *testing.T) {
	r, s, _ := newTestRouter(t)
	start := localday.Date(2024, time.January, 1)
	for i := 0; i < 120; i++ {
		mustCreate(t, s, start.AddDate(0, 0, i), "bài đọc")
	}

	m := decode(t, do(r, http.MethodGet, "/readings?page=0&limit=500", ""))
	if n := len(m["items"].([]any)); n != 100 {
		t.Errorf("Expected 100 items, got %d", n)
	}
	if m["pages"].(float64) != 2 {
		t.Errorf("Expected 2 pages, got %v", m["pages"])
	}

	m = decode(t, do(r, http.MethodGet, "/readings?query=b%C3%A0i&limit=500", ""))
	if n := len(m["items"].([]any)); n != 50 {
		t.Errorf("Expected search limit 50, got %d", n)
	}
	if m["pages"].(float64) != 3 {
		t.Errorf("Expected 3 pages, got %v", m["pages"])
	}
}

func TestMonthValidation(t *testing.T) {
	r, s, _ := newTestRouter(t)
	mustCreate(t, s, localday.Date(2025, time.February, 28), "feb")

	if w := do(r, http.MethodGet, "/readings/month/2025-13", ""); w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for month 13, got %d", w.Code)
	}
	w := do(r, http.MethodGet, "/readings/month/2025-02", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	items := decode(t, w)["items"].([]any)
	if len(items) != 1 {
		t.Fatalf("Expected 1 item, got %d", len(items))
	}
	if _, ok := items[0].(map[string]any)["body"]; ok {
		t.Errorf("Expected summary without body")
	}
}

func TestAdminCreateNormalizesDate(t *testing.T) {
	r, _, pub := newTestRouter(t)
	w := do(r, http.MethodPost, "/admin/readings",
		`{"date":"2025-10-23T20:00:00Z","title":"Tâm","body":"...","topicSlugs":["tu-bi"]}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
	}
	reading := decode(t, w)["reading"].(map[string]any)
	// 20:00Z ngày 23 là 03:00 ngày 24 giờ VN
	if reading["date"] != "2025-10-23T17:00:00Z" {
		t.Errorf("Expected local midnight of the 24th, got %v", reading["date"])
	}
	if reading["source"] != "Admin" || reading["lang"] != "vi" {
		t.Errorf("Expected defaults, got source=%v lang=%v", reading["source"], reading["lang"])
	}
	if len(pub.events) != 1 || pub.events[0].Type != "reading.created" {
		t.Errorf("Expected one reading.created event, got %+v", pub.events)
	}
}

func TestAdminCreateValidation(t *testing.T) {
	r, _, _ := newTestRouter(t)
	w := do(r, http.MethodPost, "/admin/readings", `{"title":"x","topicSlugs":["Bad Slug"]}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d", w.Code)
	}
	m := decode(t, w)
	if m["message"] != "invalid_request" {
		t.Errorf("Expected invalid_request, got %v", m["message"])
	}
	if errs, _ := m["errors"].([]any); len(errs) == 0 {
		t.Errorf("Expected field errors, got %v", m["errors"])
	}
}

func TestAdminUpdateAndDelete(t *testing.T) {
	r, s, pub := newTestRouter(t)
	rd := mustCreate(t, s, localday.Date(2025, time.April, 1), "cũ")

	w := do(r, http.MethodPut, "/admin/readings/"+rd.ID.Hex(), `{"title":"mới"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if got := decode(t, w)["reading"].(map[string]any)["title"]; got != "mới" {
		t.Errorf("Expected updated title, got %v", got)
	}
	if len(pub.events) != 1 || pub.events[0].Type != "reading.updated" {
		t.Errorf("Expected reading.updated event, got %+v", pub.events)
	}

	if w := do(r, http.MethodDelete, "/admin/readings/"+rd.ID.Hex(), ""); w.Code != http.StatusOK {
		t.Fatalf("Expected 200 on delete, got %d", w.Code)
	}
	if w := do(r, http.MethodGet, "/admin/readings/"+rd.ID.Hex(), ""); w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 after delete, got %d", w.Code)
	}
	if w := do(r, http.MethodGet, "/admin/readings/zzz", ""); w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for malformed id, got %d", w.Code)
	}
}

func TestAdminStats(t *testing.T) {
	r, s, _ := newTestRouter(t)
	mustCreate(t, s, localday.Today(), "a", "tu-bi")
	mustCreate(t, s, localday.Today(), "b", "tu-bi", "thien")

	w := do(r, http.MethodGet, "/admin/stats", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	m := decode(t, w)
	if m["totalReadings"].(float64) != 2 {
		t.Errorf("Expected 2 readings, got %v", m["totalReadings"])
	}
	monthly := m["monthlyStats"].([]any)
	if len(monthly) != statsMonths {
		t.Fatalf("Expected %d months, got %d", statsMonths, len(monthly))
	}
	first := monthly[0].(map[string]any)
	if first["month"] != localday.MonthKey(time.Now()) || first["count"].(float64) != 2 {
		t.Errorf("Expected current month with 2 readings, got %v", first)
	}
	if n := len(m["recentReadings"].([]any)); n != 2 {
		t.Errorf("Expected 2 recent readings, got %d", n)
	}
}
