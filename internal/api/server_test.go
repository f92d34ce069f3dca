package api

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dgallion1/livemark/internal/config"
)

func testConfig(apiKey string) config.Config {
	return config.Config{
		PreviewAPIKey:       apiKey,
		ConfidenceThreshold: 0.7,
		FallbackWindow:      50,
		PrefilterElements:   5000,
		ScrollDebounce:      5 * time.Millisecond,
		HighlightThrottle:   5 * time.Millisecond,
		RenderDebounce:      5 * time.Millisecond,
		SmoothScroll:        time.Millisecond,
		Bidirectional:       true,
		MaxUploadBytes:      1 << 20,
		SessionTTL:          time.Hour,
	}
}

func testServer(t *testing.T, apiKey string) *httptest.Server {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := httptest.NewServer(NewServer(testConfig(apiKey), nil, log))
	t.Cleanup(srv.Close)
	return srv
}

func createSession(t *testing.T, srv *httptest.Server, source string) string {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"source": source})
	resp, err := http.Post(srv.URL+"/api/sessions", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	var out struct {
		SessionID string `json:"session_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.SessionID == "" {
		t.Fatal("expected a session id")
	}
	return out.SessionID
}

func TestServer_Health(t *testing.T) {
	srv := testServer(t, "")
	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
}

func TestServer_SessionLifecycle(t *testing.T) {
	srv := testServer(t, "")
	id := createSession(t, srv, "# Title\n\nBody text.")

	// Fragment reflects the initial source.
	resp, err := http.Get(srv.URL + "/api/sessions/" + id + "/fragment")
	if err != nil {
		t.Fatalf("fragment: %v", err)
	}
	frag, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(frag), "<h1") || !strings.Contains(string(frag), "Title") {
		t.Errorf("fragment missing rendered content: %s", frag)
	}

	// State endpoint.
	resp, err = http.Get(srv.URL + "/api/sessions/" + id)
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	var state struct {
		State    string `json:"state"`
		Mappings int    `json:"mappings"`
	}
	json.NewDecoder(resp.Body).Decode(&state)
	resp.Body.Close()
	if state.State != "idle" {
		t.Errorf("expected idle state, got %q", state.State)
	}
	if state.Mappings == 0 {
		t.Error("expected mappings after the initial render")
	}

	// Delete.
	req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/api/sessions/"+id, nil)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("expected 204, got %d", resp.StatusCode)
	}
	resp, _ = http.Get(srv.URL + "/api/sessions/" + id)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 after delete, got %d", resp.StatusCode)
	}
}

func TestServer_SourceUpdateImmediateRender(t *testing.T) {
	srv := testServer(t, "")
	id := createSession(t, srv, "old content")

	req, _ := http.NewRequest(http.MethodPut,
		srv.URL+"/api/sessions/"+id+"/source?render=now",
		strings.NewReader("new content"))
	req.Header.Set("Content-Type", "text/markdown")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}

	resp, _ = http.Get(srv.URL + "/api/sessions/" + id + "/fragment")
	frag, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(frag), "new content") || strings.Contains(string(frag), "old content") {
		t.Errorf("expected replaced content, got %s", frag)
	}
}

func TestServer_SourceUpdateJSONWithCharset(t *testing.T) {
	srv := testServer(t, "")
	id := createSession(t, srv, "old content")

	body, _ := json.Marshal(map[string]string{"source": "fresh from json"})
	req, _ := http.NewRequest(http.MethodPut,
		srv.URL+"/api/sessions/"+id+"/source?render=now",
		bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}

	resp, _ = http.Get(srv.URL + "/api/sessions/" + id + "/fragment")
	frag, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(frag), "fresh from json") {
		t.Errorf("expected decoded source rendered, got %s", frag)
	}
	if strings.Contains(string(frag), "{") {
		t.Errorf("raw json envelope leaked into the document: %s", frag)
	}
}

func TestServer_MappingEndpoint(t *testing.T) {
	srv := testServer(t, "")
	id := createSession(t, srv, "# One\n\nTwo paragraphs here.")

	resp, err := http.Get(srv.URL + "/api/sessions/" + id + "/mapping")
	if err != nil {
		t.Fatalf("mapping: %v", err)
	}
	defer resp.Body.Close()
	var out struct {
		Mappings []struct {
			Line       int     `json:"line"`
			NodeID     string  `json:"node_id"`
			Confidence float64 `json:"confidence"`
		} `json:"mappings"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out.Mappings) < 2 {
		t.Fatalf("expected at least 2 mappings, got %d", len(out.Mappings))
	}
	if out.Mappings[0].Line != 1 || out.Mappings[0].Confidence != 1.0 {
		t.Errorf("expected exact mapping for line 1 first, got %+v", out.Mappings[0])
	}
}

func TestServer_EventProducesDirective(t *testing.T) {
	srv := testServer(t, "")
	id := createSession(t, srv, "# Title\n\nBody text.")

	ev := map[string]any{
		"kind":     "scroll",
		"origin":   "editor",
		"position": map[string]any{"line": 1},
		"preview":  map[string]any{"top": 0, "height": 1000, "client_height": 400},
	}
	body, _ := json.Marshal(ev)
	resp, err := http.Post(srv.URL+"/api/sessions/"+id+"/events", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("event: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}

	// The debounced sync lands shortly after.
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		resp, err := http.Get(srv.URL + "/api/sessions/" + id + "/directives")
		if err != nil {
			t.Fatalf("directives: %v", err)
		}
		var out struct {
			Preview Directive `json:"preview"`
		}
		json.NewDecoder(resp.Body).Decode(&out)
		resp.Body.Close()
		if out.Preview.Seq > 0 {
			if out.Preview.Action != "scroll_into_view" {
				t.Fatalf("expected scroll_into_view for a mapped line, got %q", out.Preview.Action)
			}
			if out.Preview.NodeID == "" {
				t.Fatal("directive missing target node")
			}
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("no preview directive produced")
}

func TestServer_UnknownEventKindRejected(t *testing.T) {
	srv := testServer(t, "")
	id := createSession(t, srv, "x")

	body := []byte(`{"kind":"teleport","origin":"editor"}`)
	resp, err := http.Post(srv.URL+"/api/sessions/"+id+"/events", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("event: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}
}

func TestServer_AuthRequired(t *testing.T) {
	srv := testServer(t, "sekrit")

	resp, err := http.Post(srv.URL+"/api/sessions", "application/json", nil)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without credentials, got %d", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/api/sessions", strings.NewReader("{}"))
	req.Header.Set("Authorization", "Bearer sekrit")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("post with key: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Errorf("expected 201 with valid key, got %d", resp.StatusCode)
	}

	// Health stays public.
	resp, _ = http.Get(srv.URL + "/health")
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("health must not require auth, got %d", resp.StatusCode)
	}
}

func TestServer_ImportText(t *testing.T) {
	srv := testServer(t, "")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, _ := mw.CreateFormFile("file", "notes.txt")
	fw.Write([]byte("First paragraph.\n\nSecond paragraph."))
	mw.Close()

	resp, err := http.Post(srv.URL+"/api/import", mw.FormDataContentType(), &buf)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, body)
	}
	var out struct {
		Source string `json:"source"`
	}
	json.NewDecoder(resp.Body).Decode(&out)
	if !strings.Contains(out.Source, "First paragraph.") {
		t.Errorf("unexpected import output: %q", out.Source)
	}
}

func TestServer_ImportUnsupportedType(t *testing.T) {
	srv := testServer(t, "")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, _ := mw.CreateFormFile("file", "binary.exe")
	fw.Write([]byte{0x4d, 0x5a})
	mw.Close()

	resp, err := http.Post(srv.URL+"/api/import", mw.FormDataContentType(), &buf)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnsupportedMediaType {
		t.Errorf("expected 415, got %d", resp.StatusCode)
	}
}

func TestServer_StatsAfterActivity(t *testing.T) {
	srv := testServer(t, "")
	createSession(t, srv, "# stats\n\ncontent")

	resp, err := http.Get(srv.URL + "/api/stats")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	defer resp.Body.Close()
	var out struct {
		Sessions int                        `json:"sessions"`
		Metrics  map[string]json.RawMessage `json:"metrics"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Sessions != 1 {
		t.Errorf("expected 1 session, got %d", out.Sessions)
	}
	if len(out.Metrics) == 0 {
		t.Error("expected timing metrics after a render")
	}
}

func TestServer_UnknownSession(t *testing.T) {
	srv := testServer(t, "")
	resp, _ := http.Get(srv.URL + "/api/sessions/01BX5ZZKBKACTAV9WEVGEMMVRZ/fragment")
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", resp.StatusCode)
	}
}
