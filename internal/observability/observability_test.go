package observability

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/danmuck/tcpbmock/internal/testutil/testlog"
	"github.com/gin-gonic/gin"
)

func TestRegisterMetricsAndRecordersAreSafe(t *testing.T) {
	testlog.Start(t)
	RegisterMetrics()
	RegisterMetrics()

	RecordSession("done", 12*time.Millisecond)
	RecordSession("failed", time.Millisecond)
	RecordFrame("recv", "STATUS")
	RecordFrame("send", "JOBOUTPUT")
	RecordHTTPRequest("tcpbmock", "GET", "/health", 200, 3*time.Millisecond)
}

func TestSessionBookKeepsMostRecent(t *testing.T) {
	testlog.Start(t)
	book := NewSessionBook(2)
	book.Add(SessionRecord{ID: "a"})
	book.Add(SessionRecord{ID: "b"})
	book.Add(SessionRecord{ID: "c"})
	got := book.List()
	if len(got) != 2 || got[0].ID != "b" || got[1].ID != "c" {
		t.Fatalf("unexpected records: %+v", got)
	}
}

func TestAdminRouterServesHealthSessionsAndMetrics(t *testing.T) {
	testlog.Start(t)
	gin.SetMode(gin.TestMode)
	book := NewSessionBook(0)
	book.Add(SessionRecord{ID: "s-1", State: "done", Received: 1, Sent: 2})
	RecordSession("done", time.Millisecond)
	r := NewAdminRouter(AdminConfig{Node: "test"}, book)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"status":"ok"`) {
		t.Fatalf("health: code=%d body=%s", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/sessions", nil))
	var body struct {
		Sessions []SessionRecord `json:"sessions"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode sessions: %v", err)
	}
	if len(body.Sessions) != 1 || body.Sessions[0].ID != "s-1" || body.Sessions[0].Sent != 2 {
		t.Fatalf("unexpected sessions: %+v", body.Sessions)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(w.Body.String(), "tcpbmock_session_sessions_total") {
		t.Fatalf("metrics missing session counter")
	}
}

func TestRequestMetricsCollapseUnmatchedPaths(t *testing.T) {
	testlog.Start(t)
	gin.SetMode(gin.TestMode)
	r := NewAdminRouter(AdminConfig{Node: "unmatched-test"}, NewSessionBook(0))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/no-such-route-81", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := w.Body.String()
	if strings.Contains(body, "/no-such-route-81") {
		t.Fatalf("raw path leaked into metric labels")
	}
	if !strings.Contains(body, `node="unmatched-test",path="unmatched"`) {
		t.Fatalf("missing unmatched route label")
	}
}

func TestNormalizeOriginsDefaultsToLoopback(t *testing.T) {
	testlog.Start(t)
	if got := normalizeOrigins(nil); len(got) != 2 {
		t.Fatalf("unexpected defaults: %v", got)
	}
	got := normalizeOrigins([]string{" http://example.test/ ", ""})
	if len(got) != 1 || got[0] != "http://example.test" {
		t.Fatalf("unexpected normalized origins: %v", got)
	}
}
