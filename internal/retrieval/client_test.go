package retrieval

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestSearchBareArray(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if body["query"] != "release process" {
			t.Errorf("query = %q", body["query"])
		}
		_, _ = w.Write([]byte(`[{"id":"doc-1","text":"first"},{"text":"second"}]`))
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second)
	items, err := client.Search(context.Background(), "release process")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("got %d items, want 2", len(items))
	}
	if items[0].ID != "doc-1" || items[0].Text != "first" {
		t.Errorf("items[0] = %+v", items[0])
	}
	if items[1].ID != "" {
		t.Errorf("items[1].ID = %q, want empty", items[1].ID)
	}
}

func TestSearchWrappedResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"results":[{"text":"only","metadata":{"source":"wiki"}}]}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second)
	items, err := client.Search(context.Background(), "q")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(items) != 1 || items[0].Metadata["source"] != "wiki" {
		t.Fatalf("items = %+v", items)
	}
}

func TestSearchBackendError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "index unavailable", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second)
	_, err := client.Search(context.Background(), "q")
	if err == nil {
		t.Fatalf("Search() = nil, want error")
	}
	if !strings.Contains(err.Error(), "503") {
		t.Errorf("error %v does not carry status", err)
	}
}

func TestSearchTransportError(t *testing.T) {
	client := NewClient("http://127.0.0.1:1", 100*time.Millisecond)
	if _, err := client.Search(context.Background(), "q"); err == nil {
		t.Fatalf("Search() = nil, want transport error")
	}
}
