package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	cases := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"WARN":  slog.LevelWarn,
		"error": slog.LevelError,
		"info":  slog.LevelInfo,
		"":      slog.LevelInfo,
		"loud":  slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNewWithWriterFormats(t *testing.T) {
	t.Parallel()

	var jsonBuf bytes.Buffer
	NewWithWriter(&jsonBuf, "info", "json").Info("hello", "k", "v")
	var entry map[string]any
	if err := json.Unmarshal(jsonBuf.Bytes(), &entry); err != nil {
		t.Fatalf("expected json output: %v", err)
	}
	if entry["msg"] != "hello" || entry["k"] != "v" {
		t.Fatalf("unexpected entry: %v", entry)
	}

	var textBuf bytes.Buffer
	NewWithWriter(&textBuf, "warn", "text").Info("dropped")
	if textBuf.Len() != 0 {
		t.Fatalf("info must be filtered at warn level")
	}
	NewWithWriter(&textBuf, "warn", "text").Warn("kept")
	if !strings.Contains(textBuf.String(), "msg=kept") {
		t.Fatalf("unexpected text output: %q", textBuf.String())
	}
}

func TestRequestLogger(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := NewWithWriter(&buf, "info", "json")
	h := RequestLogger(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("abc"))
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/video/append/x.webm", nil))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected json log line: %v", err)
	}
	if entry["status"] != float64(http.StatusTeapot) || entry["size"] != float64(3) || entry["path"] != "/api/video/append/x.webm" {
		t.Fatalf("unexpected entry: %v", entry)
	}
}
