package mid

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/skillswaphq/skillswap-search/engine/domain"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestChain_Order(t *testing.T) {
	var order []string
	mw := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	h := Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		order = append(order, "handler")
	}), mw("outer"), mw("inner"))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if len(order) != 3 || order[0] != "outer" || order[1] != "inner" || order[2] != "handler" {
		t.Fatalf("wrong order: %v", order)
	}
}

func TestLogger_PassesThrough(t *testing.T) {
	h := Logger(discard())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
	if rec.Code != http.StatusTeapot {
		t.Fatalf("status lost: %d", rec.Code)
	}
}

func TestRecover_CatchesPanic(t *testing.T) {
	h := Recover(discard())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}

func TestCORS_Preflight(t *testing.T) {
	h := CORS("https://app.example.com")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("preflight must not reach the handler")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/search", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "https://app.example.com" {
		t.Fatalf("missing origin header")
	}
}

func TestRequester_LiftsHeaders(t *testing.T) {
	var got domain.Requester
	h := Requester()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = RequesterFrom(r.Context())
	}))
	req := httptest.NewRequest(http.MethodPost, "/api/exchange/match", nil)
	req.Header.Set("X-User-Id", "u42")
	req.Header.Set("X-User-Role", "student")
	h.ServeHTTP(httptest.NewRecorder(), req)

	if got.UserID != "u42" || got.Role != domain.RoleStudent {
		t.Fatalf("wrong requester: %+v", got)
	}
}

func TestRequester_AbsentHeadersMeanAnonymous(t *testing.T) {
	var got domain.Requester
	h := Requester()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = RequesterFrom(r.Context())
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if !got.Anonymous() {
		t.Fatalf("expected anonymous, got %+v", got)
	}
}

func TestRequesterFrom_EmptyContext(t *testing.T) {
	req := RequesterFrom(httptest.NewRequest(http.MethodGet, "/", nil).Context())
	if !req.Anonymous() {
		t.Fatal("expected anonymous")
	}
}
