package cdn

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewClient(Config{
		Endpoint:      srv.URL + "/v1",
		ProjectID:     "proj",
		APIKey:        "key",
		BucketID:      "bucket",
		PublicBaseURL: "https://cdn.example.com/",
	}, discardLogger())
}

func TestUploadReturnsPublicURL(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/storage/buckets/bucket/files" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("X-Appwrite-Project"); got != "proj" {
			t.Errorf("project header = %q", got)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}
		if got := r.FormValue("fileId"); got != "vacation-pic" {
			t.Errorf("fileId = %q", got)
		}
		if got := r.FormValue("permissions[]"); got != `read("any")` {
			t.Errorf("permissions = %q", got)
		}
		f, hdr, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("form file: %v", err)
		}
		defer f.Close()
		if hdr.Filename != "beach.png" {
			t.Errorf("filename = %q", hdr.Filename)
		}
		data, _ := io.ReadAll(f)
		if string(data) != "png-bytes" {
			t.Errorf("data = %q", data)
		}
		json.NewEncoder(w).Encode(FileInfo{ID: "vacation-pic", Name: "beach.png"})
	}))

	url, err := c.Upload(context.Background(), "vacation-pic", "beach.png", []byte("png-bytes"))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if url != "https://cdn.example.com/vacation-pic" {
		t.Errorf("url = %q", url)
	}
}

func TestUploadConflictSurfacesError(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		io.WriteString(w, `{"message":"file already exists"}`)
	}))

	_, err := c.Upload(context.Background(), "dup", "a.txt", []byte("x"))
	if err == nil || !strings.Contains(err.Error(), "409") {
		t.Fatalf("expected conflict error, got %v", err)
	}
}

func TestRenameRoundTrip(t *testing.T) {
	var uploaded, deleted bool
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/v1/storage/buckets/bucket/files/old-id":
			json.NewEncoder(w).Encode(FileInfo{ID: "old-id", Name: "report.pdf"})
		case r.Method == http.MethodGet && r.URL.Path == "/v1/storage/buckets/bucket/files/old-id/download":
			io.WriteString(w, "pdf-content")
		case r.Method == http.MethodPost && r.URL.Path == "/v1/storage/buckets/bucket/files":
			if deleted {
				t.Error("upload happened after delete")
			}
			r.ParseMultipartForm(1 << 20)
			if got := r.FormValue("fileId"); got != "new-id" {
				t.Errorf("fileId = %q", got)
			}
			_, hdr, err := r.FormFile("file")
			if err != nil {
				t.Fatalf("form file: %v", err)
			}
			if hdr.Filename != "report.pdf" {
				t.Errorf("filename = %q, want original name preserved", hdr.Filename)
			}
			uploaded = true
			json.NewEncoder(w).Encode(FileInfo{ID: "new-id", Name: "report.pdf"})
		case r.Method == http.MethodDelete && r.URL.Path == "/v1/storage/buckets/bucket/files/old-id":
			if !uploaded {
				t.Error("delete happened before upload")
			}
			deleted = true
			w.WriteHeader(http.StatusNoContent)
		default:
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))

	url, err := c.Rename(context.Background(), "old-id", "new-id")
	if err != nil {
		t.Fatalf("rename: %v", err)
	}
	if url != "https://cdn.example.com/new-id" {
		t.Errorf("url = %q", url)
	}
	if !uploaded || !deleted {
		t.Errorf("uploaded=%v deleted=%v, want both", uploaded, deleted)
	}
}

func TestDeleteMissingFileSurfacesError(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, `{"message":"not found"}`)
	}))

	if err := c.Delete(context.Background(), "ghost"); err == nil {
		t.Fatal("expected error for missing file")
	}
}
