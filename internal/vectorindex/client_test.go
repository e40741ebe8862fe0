package vectorindex

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/query" {
			t.Errorf("path = %q, want /query", r.URL.Path)
		}
		var req queryRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if req.TopK != 5 || !req.IncludeMetadata {
			t.Errorf("topK = %d includeMetadata = %v", req.TopK, req.IncludeMetadata)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"result": []map[string]any{
				{"id": "m1", "score": 0.91, "metadata": map[string]any{"content": "likes cats", "category": "preference"}},
			},
		})
	}))
	defer srv.Close()

	c := New(Config{URL: srv.URL, Token: "tok"})
	matches, err := c.Query(context.Background(), []float32{0.1, 0.2}, 5)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(matches) != 1 || matches[0].ID != "m1" {
		t.Fatalf("matches = %+v", matches)
	}
	if matches[0].Metadata.Content != "likes cats" {
		t.Errorf("metadata content = %q", matches[0].Metadata.Content)
	}
}

func TestRangeAndDelete(t *testing.T) {
	var deleted []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/range":
			json.NewEncoder(w).Encode(map[string]any{
				"result": map[string]any{
					"nextCursor": "",
					"vectors":    []map[string]any{{"id": "a"}, {"id": "b"}},
				},
			})
		case "/delete":
			var req struct {
				IDs []string `json:"ids"`
			}
			json.NewDecoder(r.Body).Decode(&req)
			deleted = req.IDs
			w.Write([]byte(`{"result":2}`))
		default:
			t.Errorf("unexpected path %q", r.URL.Path)
		}
	}))
	defer srv.Close()

	c := New(Config{URL: srv.URL, Token: "tok"})
	ids, cursor, err := c.Range(context.Background(), "0", 1000)
	if err != nil {
		t.Fatalf("Range: %v", err)
	}
	if len(ids) != 2 || cursor != "" {
		t.Fatalf("ids = %v cursor = %q", ids, cursor)
	}

	if err := c.Delete(context.Background(), ids); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if len(deleted) != 2 {
		t.Errorf("deleted = %v", deleted)
	}
}

func TestDeleteEmptyIsNoop(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected for empty delete")
	}))
	defer srv.Close()

	c := New(Config{URL: srv.URL})
	if err := c.Delete(context.Background(), nil); err != nil {
		t.Fatalf("Delete: %v", err)
	}
}
