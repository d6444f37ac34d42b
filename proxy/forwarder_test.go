package proxy

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestForwarder_RelaysStatusHeadersAndBody(t *testing.T) {
	var gotPath, gotQuery string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		w.Header().Add("X-Custom", "a")
		w.Header().Add("X-Custom", "b")
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("teapot"))
	}))
	defer upstream.Close()

	f := NewForwarder(upstream.URL)

	r := httptest.NewRequest(http.MethodGet, "http://proxy/foo?x=1&x=2&y=z", nil)
	w := httptest.NewRecorder()
	f.ServeHTTP(w, r)

	if gotPath != "/foo" {
		t.Fatalf("expected upstream path /foo, got %q", gotPath)
	}
	if gotQuery != "x=1&x=2&y=z" {
		t.Fatalf("expected raw query to be reattached unmodified, got %q", gotQuery)
	}
	if w.Code != http.StatusTeapot {
		t.Fatalf("expected upstream status 418, got %d", w.Code)
	}
	if got := w.Body.String(); got != "teapot" {
		t.Fatalf("expected upstream body, got %q", got)
	}
	vals := w.Header().Values("X-Custom")
	if len(vals) != 2 || vals[0] != "a" || vals[1] != "b" {
		t.Fatalf("expected duplicated header values [a b], got %v", vals)
	}
}

func TestForwarder_ConcatenatesBaseAndPath(t *testing.T) {
	var gotPath string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer upstream.Close()

	// a base pode carregar um prefixo de path: o alvo é concatenação literal
	f := NewForwarder(upstream.URL + "/base")

	r := httptest.NewRequest(http.MethodGet, "http://proxy/sub/recurso", nil)
	w := httptest.NewRecorder()
	f.ServeHTTP(w, r)

	if gotPath != "/base/sub/recurso" {
		t.Fatalf("expected concatenated path, got %q", gotPath)
	}
}

func TestForwarder_NonGETIsNotImplemented(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("upstream should not be called for non-GET")
	}))
	defer upstream.Close()

	f := NewForwarder(upstream.URL)

	r := httptest.NewRequest(http.MethodPost, "http://proxy/foo", strings.NewReader("body"))
	w := httptest.NewRecorder()
	f.ServeHTTP(w, r)

	if w.Code != http.StatusNotImplemented {
		t.Fatalf("expected 501 for POST, got %d", w.Code)
	}
}

func TestForwarder_UnreachableUpstreamReturns500(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	target := upstream.URL
	upstream.Close() // derruba antes de encaminhar

	f := NewForwarder(target)

	r := httptest.NewRequest(http.MethodGet, "http://proxy/foo", nil)
	w := httptest.NewRecorder()
	f.ServeHTTP(w, r)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	if got := w.Body.String(); !strings.HasPrefix(got, "Error forwarding request: ") {
		t.Fatalf("expected error body prefix, got %q", got)
	}
}

func TestForwarder_TimeoutSurfacesAs500(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer upstream.Close()

	f := NewForwarder(upstream.URL, WithTimeout(20*time.Millisecond))

	r := httptest.NewRequest(http.MethodGet, "http://proxy/lento", nil)
	w := httptest.NewRecorder()
	f.ServeHTTP(w, r)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 on timeout, got %d", w.Code)
	}
	if got := w.Body.String(); !strings.HasPrefix(got, "Error forwarding request: ") {
		t.Fatalf("expected error body prefix, got %q", got)
	}
}
