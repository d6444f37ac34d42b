package ratelimit

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"ratelimit-proxy/middleware/ratelimit/infra"
)

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

func TestMiddleware_AllowsThenRejectsSameKey(t *testing.T) {
	store := infra.NewSlidingLogStore(1, infra.WithNow(fixedClock(time.Unix(1000, 0))))

	calls := 0
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, "ok")
	})

	h := Middleware(Options{Store: store})(next)

	// 1) primeira passa
	r1 := httptest.NewRequest(http.MethodGet, "http://example/clientes", nil)
	r1.RemoteAddr = "10.0.0.1:1234"
	w1 := httptest.NewRecorder()
	h.ServeHTTP(w1, r1)
	if w1.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w1.Code)
	}

	// 2) segunda deve bloquear (limite 1, mesmo instante)
	r2 := httptest.NewRequest(http.MethodGet, "http://example/clientes", nil)
	r2.RemoteAddr = "10.0.0.1:1234"
	w2 := httptest.NewRecorder()
	h.ServeHTTP(w2, r2)
	if w2.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w2.Code)
	}
	if got := w2.Body.String(); got != "Rate limit exceeded. Please try again later." {
		t.Fatalf("expected exact reject body, got %q", got)
	}
	// recusa padrão não emite headers extras
	if got := w2.Header().Get("Retry-After"); got != "" {
		t.Fatalf("expected no Retry-After header by default, got %q", got)
	}
	if got := w2.Header().Get("X-RateLimit-Key"); got != "" {
		t.Fatalf("expected no X-RateLimit-Key header by default, got %q", got)
	}

	if calls != 1 {
		t.Fatalf("expected next handler to be called once, got %d", calls)
	}
}

func TestMiddleware_KeyByHeader(t *testing.T) {
	store := infra.NewSlidingLogStore(1, infra.WithNow(fixedClock(time.Unix(1000, 0))))

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	h := Middleware(Options{
		Store:     store,
		KeyHeader: "X-Api-Key",
	})(next)

	// duas chaves diferentes => ambos devem passar (cada chave tem sua própria janela)
	r1 := httptest.NewRequest(http.MethodGet, "http://example/", nil)
	r1.Header.Set("X-Api-Key", "k1")
	r1.RemoteAddr = "10.0.0.1:1234"
	w1 := httptest.NewRecorder()
	h.ServeHTTP(w1, r1)
	if w1.Code != http.StatusOK {
		t.Fatalf("expected 200 for key k1, got %d", w1.Code)
	}

	r2 := httptest.NewRequest(http.MethodGet, "http://example/", nil)
	r2.Header.Set("X-Api-Key", "k2")
	r2.RemoteAddr = "10.0.0.1:1234"
	w2 := httptest.NewRecorder()
	h.ServeHTTP(w2, r2)
	if w2.Code != http.StatusOK {
		t.Fatalf("expected 200 for key k2, got %d", w2.Code)
	}
}

func TestMiddleware_RetryAfterUsesSecondsWhenConfigured(t *testing.T) {
	store := infra.NewSlidingLogStore(1, infra.WithNow(fixedClock(time.Unix(1000, 0))))

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	h := Middleware(Options{
		Store:      store,
		RetryAfter: 2500 * time.Millisecond,
	})(next)

	r1 := httptest.NewRequest(http.MethodGet, "http://example/", nil)
	r1.RemoteAddr = "10.0.0.1:1234"
	w1 := httptest.NewRecorder()
	h.ServeHTTP(w1, r1)
	if w1.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w1.Code)
	}

	r2 := httptest.NewRequest(http.MethodGet, "http://example/", nil)
	r2.RemoteAddr = "10.0.0.1:1234"
	w2 := httptest.NewRecorder()
	h.ServeHTTP(w2, r2)
	if w2.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w2.Code)
	}
	if got := strings.TrimSpace(w2.Header().Get("Retry-After")); got != "2" {
		// int(2.5s.Seconds()) == 2
		t.Fatalf("expected Retry-After=2, got %q", got)
	}
}

func TestMiddleware_AddRateLimitHeadersExposesLimit(t *testing.T) {
	store := infra.NewSlidingLogStore(2.5, infra.WithNow(fixedClock(time.Unix(1000, 0))))

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	h := Middleware(Options{
		Store:               store,
		AddRateLimitHeaders: true,
	})(next)

	r := httptest.NewRequest(http.MethodGet, "http://example/", nil)
	r.RemoteAddr = "10.0.0.1:1234"
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if got := w.Header().Get("X-RateLimit-Key"); got != "10.0.0.1" {
		t.Fatalf("expected X-RateLimit-Key=10.0.0.1, got %q", got)
	}
	if got := w.Header().Get("X-RateLimit-Limit"); got != "2.5" {
		t.Fatalf("expected X-RateLimit-Limit=2.5, got %q", got)
	}
}

func TestMiddleware_RecordsStatsForBothOutcomes(t *testing.T) {
	store := infra.NewSlidingLogStore(1, infra.WithNow(fixedClock(time.Unix(1000, 0))))
	stats := infra.NewMemoryStatsStore(infra.WithTrackKeys(true))

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	h := Middleware(Options{Store: store, Stats: stats})(next)

	for i := 0; i < 2; i++ {
		r := httptest.NewRequest(http.MethodGet, "http://example/pedidos", nil)
		r.RemoteAddr = "10.0.0.1:1234"
		h.ServeHTTP(httptest.NewRecorder(), r)
	}

	total := stats.Total()
	if total.Allowed != 1 || total.Denied != 1 {
		t.Fatalf("expected 1 allowed / 1 denied, got %+v", total)
	}
	byKey := stats.ByKey()
	if c := byKey["10.0.0.1"]; c.Allowed != 1 || c.Denied != 1 {
		t.Fatalf("expected per-key counters 1/1, got %+v", c)
	}
}
