package api

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/MrWong99/cueline/internal/align"
	"github.com/MrWong99/cueline/internal/script"
)

func audioServer(t *testing.T, path string) *Server {
	t.Helper()
	return New(align.NewMatcher(script.NewModel(nil, nil), nil), WithAudioFile(path))
}

func writeAudio(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte("RIFF0123456789"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestAudio_Full(t *testing.T) {
	t.Parallel()

	srv := audioServer(t, writeAudio(t, "sample.wav"))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest("GET", "/audio", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := rec.Body.String(); got != "RIFF0123456789" {
		t.Errorf("body = %q", got)
	}
	if got := rec.Header().Get("Content-Type"); got != "audio/wav" {
		t.Errorf("Content-Type = %q, want audio/wav", got)
	}
	if got := rec.Header().Get("Accept-Ranges"); got != "bytes" {
		t.Errorf("Accept-Ranges = %q", got)
	}
}

func TestAudio_Ranges(t *testing.T) {
	t.Parallel()

	srv := audioServer(t, writeAudio(t, "sample.wav"))

	tests := []struct {
		rng          string
		wantStatus   int
		wantBody     string
		wantRangeHdr string
	}{
		{"bytes=0-3", http.StatusPartialContent, "RIFF", "bytes 0-3/14"},
		{"bytes=4-", http.StatusPartialContent, "0123456789", "bytes 4-13/14"},
		{"bytes=-2", http.StatusPartialContent, "89", "bytes 12-13/14"},
		{"bytes=100-200", http.StatusRequestedRangeNotSatisfiable, "", "bytes */14"},
	}
	for _, tc := range tests {
		req := httptest.NewRequest("GET", "/audio", nil)
		req.Header.Set("Range", tc.rng)
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, req)

		if rec.Code != tc.wantStatus {
			t.Errorf("%s: status = %d, want %d", tc.rng, rec.Code, tc.wantStatus)
			continue
		}
		if got := rec.Header().Get("Content-Range"); got != tc.wantRangeHdr {
			t.Errorf("%s: Content-Range = %q, want %q", tc.rng, got, tc.wantRangeHdr)
		}
		if tc.wantStatus == http.StatusPartialContent && rec.Body.String() != tc.wantBody {
			t.Errorf("%s: body = %q, want %q", tc.rng, rec.Body, tc.wantBody)
		}
	}
}

func TestAudio_Missing(t *testing.T) {
	t.Parallel()

	for _, path := range []string{"", filepath.Join(t.TempDir(), "nope.wav"), t.TempDir()} {
		rec := httptest.NewRecorder()
		audioServer(t, path).ServeHTTP(rec, httptest.NewRequest("GET", "/audio", nil))
		if rec.Code != http.StatusNotFound {
			t.Errorf("path %q: status = %d, want 404", path, rec.Code)
		}
		if body := rec.Body.String(); body != `{"ok":false,"error":"audio file not found"}`+"\n" {
			t.Errorf("path %q: body = %q", path, body)
		}
	}
}

func TestAudioMIME(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"a.wav":        "audio/wav",
		"a.WAV":        "audio/wav",
		"a.mp3":        "audio/mpeg",
		"a.flac":       "audio/flac",
		"noext":        "audio/wav",
		"a.unknownext": "audio/wav",
	}
	for path, want := range tests {
		if got := audioMIME(path); got != want {
			t.Errorf("audioMIME(%q) = %q, want %q", path, got, want)
		}
	}
}
