package writer

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"server/internal/domain"
	"server/internal/infra"
)

func testLogger() *infra.Logger {
	logger := infra.NewLogger("test")
	return &logger
}

func TestSyntheticFallbackWithoutAPIKey(t *testing.T) {
	h, err := New(Options{Logger: testLogger()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	order := &domain.Order{ID: "o1"}
	params := map[string]any{"topic": "email marketing"}

	first, err := h.Handle(context.Background(), order, domain.StepAnalyze, params)
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if first.Payload["synthetic"] != true {
		t.Fatal("expected synthetic payload")
	}
	if first.Payload["outline"] == "" {
		t.Fatal("analyze step produced no outline")
	}

	// Deterministic: the same order and step always yield the same output.
	second, err := h.Handle(context.Background(), order, domain.StepAnalyze, params)
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if first.Payload["outline"] != second.Payload["outline"] {
		t.Fatal("synthetic output not deterministic")
	}
}

func newAPIHandler(t *testing.T, srv *httptest.Server) *Handler {
	t.Helper()
	h, err := New(Options{
		APIKey:     "test-key",
		BaseURL:    srv.URL,
		HTTPClient: srv.Client(),
		Logger:     testLogger(),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return h
}

func TestHandleParsesOutput(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}
		w.Write([]byte(`{"output":{"draft":"hello"}}`))
	}))
	defer srv.Close()

	h := newAPIHandler(t, srv)
	res, err := h.Handle(context.Background(), &domain.Order{ID: "o1"}, domain.StepGenerate, map[string]any{"topic": "x"})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if res.Payload["draft"] != "hello" {
		t.Fatalf("payload = %v", res.Payload)
	}
}

func TestServerErrorsAreTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream busy", http.StatusBadGateway)
	}))
	defer srv.Close()

	h := newAPIHandler(t, srv)
	_, err := h.Handle(context.Background(), &domain.Order{ID: "o1"}, domain.StepGenerate, nil)
	if !errors.Is(err, domain.ErrTransient) {
		t.Fatalf("want ErrTransient, got %v", err)
	}
}

func TestClientErrorsArePermanent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "policy violation", http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	h := newAPIHandler(t, srv)
	_, err := h.Handle(context.Background(), &domain.Order{ID: "o1"}, domain.StepGenerate, nil)
	if !errors.Is(err, domain.ErrPermanent) {
		t.Fatalf("want ErrPermanent, got %v", err)
	}
}

func TestAPIErrorBodyIsPermanent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":{"code":"content_policy","message":"rejected"}}`))
	}))
	defer srv.Close()

	h := newAPIHandler(t, srv)
	_, err := h.Handle(context.Background(), &domain.Order{ID: "o1"}, domain.StepGenerate, nil)
	if !errors.Is(err, domain.ErrPermanent) {
		t.Fatalf("want ErrPermanent, got %v", err)
	}
}
