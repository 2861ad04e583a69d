package main

import (
	"bytes"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"camclinic/internal/metrics"
	"camclinic/internal/sink"
	"camclinic/internal/worklist"
)

func newTestServer(t *testing.T) (*httptest.Server, *sink.Store) {
	t.Helper()
	store, err := sink.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	log := slog.New(slog.NewJSONHandler(io.Discard, nil))
	srv := httptest.NewServer(newRouter(store, worklist.NewMockProvider(time.Now()), log, metrics.New()))
	t.Cleanup(srv.Close)
	return srv, store
}

func postChunk(t *testing.T, url string, payload string) *http.Response {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("chunk", "blob")
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	_, _ = part.Write([]byte(payload))
	_ = mw.Close()

	resp, err := http.Post(url, mw.FormDataContentType(), &body)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	return resp
}

func TestRouterServesAppendWorklistAndMetrics(t *testing.T) {
	srv, store := newTestServer(t)

	for _, part := range []string{"a", "b"} {
		if resp := postChunk(t, srv.URL+"/api/video/append/exam.webm", part); resp.StatusCode != http.StatusOK {
			t.Fatalf("append: status %d", resp.StatusCode)
		}
	}
	if resp := postChunk(t, srv.URL+"/api/video/append/exam.txt", "x"); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for denied extension, got %d", resp.StatusCode)
	}
	got, err := os.ReadFile(filepath.Join(store.Dir(), "exam.webm"))
	if err != nil || string(got) != "ab" {
		t.Fatalf("unexpected artifact %q, %v", got, err)
	}

	resp, err := http.Get(srv.URL + "/api/worklist")
	if err != nil {
		t.Fatalf("worklist: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("worklist: status %d", resp.StatusCode)
	}

	resp, err = http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	for _, want := range []string{
		"camclinic_chunks_appended_total 2",
		"camclinic_bytes_appended_total 2",
		`camclinic_uploads_rejected_total{reason="name"} 1`,
		"camclinic_errors_total 1",
	} {
		if !strings.Contains(string(body), want) {
			t.Fatalf("expected %q in metrics:\n%s", want, body)
		}
	}
}
