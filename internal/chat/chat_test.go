package chat

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"

	"thientam/internal/httpx"
	"thientam/internal/logger"
)

// fakeGemini answers per model: "ok" models return text, others fail.
type fakeGemini struct {
	mu     sync.Mutex
	tried  []string
	bodies []generateRequest
	ok     map[string]bool
}

func (f *fakeGemini) server(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		model := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/models/"), ":generateContent")
		var body generateRequest
		_ = json.NewDecoder(r.Body).Decode(&body)

		f.mu.Lock()
		f.tried = append(f.tried, model)
		f.bodies = append(f.bodies, body)
		ok := f.ok[model]
		f.mu.Unlock()

		if r.Header.Get(apiKeyHeader) != "k" || r.URL.RawQuery != "" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"error":{"message":"model ` + model + ` not found"}}`))
			return
		}
		w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"Hãy thở chậm."}]}}]}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newRouter(a Asker) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHandler(a).Register(r.Group("/chat"))
	return r
}

func post(r http.Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/chat/ask", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAskFallsBackThroughModels(t *testing.T) {
	fake := &fakeGemini{ok: map[string]bool{"m2": true}}
	srv := fake.server(t)
	client := NewGeminiClient("k", nil).WithBaseURL(srv.URL).WithModels("m1", "m2", "m3")
	r := newRouter(client)

	w := post(r, `{"prompt":"Con đang căng thẳng","history":[{"role":"assistant","content":"Chào con"},{"content":"Dạ"}]}`)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "Hãy thở chậm.") {
		t.Errorf("Unexpected body %s", w.Body.String())
	}
	if strings.Join(fake.tried, ",") != "m1,m2" {
		t.Errorf("Expected m1 then m2, got %v", fake.tried)
	}

	body := fake.bodies[1]
	roles := make([]string, len(body.Contents))
	for i, c := range body.Contents {
		roles[i] = c.Role
	}
	if strings.Join(roles, ",") != "user,model,model,user,user" {
		t.Errorf("Unexpected role sequence %v", roles)
	}
	if body.Contents[0].Parts[0].Text != defaultInstruction {
		t.Errorf("Expected default instruction first")
	}
	if body.GenerationConfig.Temperature != DefaultTemperature || body.GenerationConfig.MaxOutputTokens != DefaultMaxOutputTokens {
		t.Errorf("Unexpected generation config %+v", body.GenerationConfig)
	}
}

func TestAskAllModelsFail(t *testing.T) {
	fake := &fakeGemini{ok: map[string]bool{}}
	srv := fake.server(t)
	r := newRouter(NewGeminiClient("k", nil).WithBaseURL(srv.URL).WithModels("a", "b"))

	w := post(r, `{"prompt":"x"}`)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("Expected 500, got %d", w.Code)
	}
	var m map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &m)
	if m["message"] != "chat_failed" || m["error"] != "model b not found" {
		t.Errorf("Expected last model error, got %v", m)
	}
}

func TestAskCustomInstructionAndConfig(t *testing.T) {
	fake := &fakeGemini{ok: map[string]bool{"a": true}}
	srv := fake.server(t)
	r := newRouter(NewGeminiClient("k", nil).WithBaseURL(srv.URL).WithModels("a"))

	w := post(r, `{"prompt":"x","systemInstruction":"Ngắn gọn","temperature":0,"maxOutputTokens":64}`)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	body := fake.bodies[0]
	if body.Contents[0].Parts[0].Text != "Ngắn gọn" {
		t.Errorf("Expected custom instruction, got %q", body.Contents[0].Parts[0].Text)
	}
	if body.GenerationConfig.Temperature != 0 || body.GenerationConfig.MaxOutputTokens != 64 {
		t.Errorf("Unexpected config %+v", body.GenerationConfig)
	}
}

func TestAskValidation(t *testing.T) {
	r := newRouter(NewGeminiClient("k", nil))
	for _, body := range []string{
		`{}`,
		`{"prompt":""}`,
		`{"prompt":"x","temperature":1.5}`,
		`{"prompt":"x","maxOutputTokens":4096}`,
		`{"prompt":"x","history":[{"role":"bot","content":"hi"}]}`,
		`{"prompt":"x","history":[{"role":"user","content":""}]}`,
	} {
		w := post(r, body)
		if w.Code != http.StatusBadRequest || !strings.Contains(w.Body.String(), "invalid_request") {
			t.Errorf("%s: expected 400 invalid_request, got %d %s", body, w.Code, w.Body.String())
		}
	}
}

func TestUnconfigured(t *testing.T) {
	r := newRouter(NewGeminiClient("", nil))
	w := post(r, `{"prompt":"x"}`)
	if w.Code != http.StatusInternalServerError || !strings.Contains(w.Body.String(), "not configured") {
		t.Errorf("Expected chat_failed not configured, got %d %s", w.Code, w.Body.String())
	}

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/chat/status", nil))
	if !strings.Contains(rec.Body.String(), `"configured":false`) {
		t.Errorf("Unexpected status %s", rec.Body.String())
	}
}

func TestAskTransportErrorHidesKey(t *testing.T) {
	const key = "SUPERSECRETKEY"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, _, err := w.(http.Hijacker).Hijack()
		if err != nil {
			t.Errorf("hijack: %v", err)
			return
		}
		conn.Close()
	}))
	t.Cleanup(srv.Close)
	client := NewGeminiClient(key, nil).WithBaseURL(srv.URL).WithModels("m1")

	for _, production := range []bool{false, true} {
		gin.SetMode(gin.TestMode)
		r := gin.New()
		r.Use(httpx.RequestContext(logger.Nop(), production))
		NewHandler(client).Register(r.Group("/chat"))

		w := post(r, `{"prompt":"hi"}`)
		if w.Code != http.StatusInternalServerError {
			t.Fatalf("production=%v: expected 500, got %d", production, w.Code)
		}
		if strings.Contains(w.Body.String(), key) {
			t.Errorf("production=%v: api key leaked in %s", production, w.Body.String())
		}
		var m map[string]any
		_ = json.Unmarshal(w.Body.Bytes(), &m)
		if m["message"] != "chat_failed" {
			t.Errorf("production=%v: expected chat_failed, got %v", production, m)
		}
		if _, ok := m["error"]; ok == production {
			t.Errorf("production=%v: unexpected error field presence in %v", production, m)
		}
	}
}
