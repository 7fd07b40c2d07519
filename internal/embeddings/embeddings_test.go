package embeddings

import (
	"context"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestMock_Deterministic(t *testing.T) {
	m := NewMock()
	a, err := m.Embed(context.Background(), "hello world")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	b, _ := m.Embed(context.Background(), "hello world")
	if len(a) != m.Dimensions {
		t.Fatalf("len = %d, want %d", len(a), m.Dimensions)
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("vectors differ at %d: %v vs %v", i, a[i], b[i])
		}
	}
}

func TestMock_UnitNorm(t *testing.T) {
	m := NewMock()
	v, _ := m.Embed(context.Background(), "some text")
	var sumSq float64
	for _, x := range v {
		sumSq += float64(x) * float64(x)
	}
	if math.Abs(sumSq-1.0) > 1e-3 {
		t.Errorf("norm^2 = %f, want ~1", sumSq)
	}
}

func TestMock_Disabled(t *testing.T) {
	m := NewMock()
	m.Disabled = true
	v, err := m.Embed(context.Background(), "anything")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if v != nil {
		t.Errorf("expected nil vector when disabled, got %d dims", len(v))
	}
}

func TestHTTPProvider_Embed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embeddings" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"embedding":[0.1,0.2,0.3]}`))
	}))
	defer srv.Close()

	p := NewHTTPProvider(srv.URL, "test-model")
	v, err := p.Embed(context.Background(), "query")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(v) != 3 || v[2] != 0.3 {
		t.Errorf("vector = %v", v)
	}
}

func TestHTTPProvider_EmptyEmbeddingMeansDisabled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"embedding":[]}`))
	}))
	defer srv.Close()

	p := NewHTTPProvider(srv.URL, "test-model")
	v, err := p.Embed(context.Background(), "query")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if v != nil {
		t.Errorf("expected nil vector, got %v", v)
	}
}

func TestHTTPProvider_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	p := NewHTTPProvider(srv.URL, "test-model")
	if _, err := p.Embed(context.Background(), "query"); err == nil {
		t.Error("expected error on 500")
	}
}
