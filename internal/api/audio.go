package api

import (
	"errors"
	"io/fs"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// handleAudio streams the reference recording. http.ServeContent answers
// Range requests with 206 and unsatisfiable ones with 416.
func (s *Server) handleAudio(w http.ResponseWriter, r *http.Request) {
	if s.audioPath == "" {
		writeError(w, http.StatusNotFound, "audio file not found")
		return
	}

	f, err := os.Open(s.audioPath)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			writeError(w, http.StatusInternalServerError, "open audio file")
			return
		}
		writeError(w, http.StatusNotFound, "audio file not found")
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		writeError(w, http.StatusNotFound, "audio file not found")
		return
	}

	w.Header().Set("Content-Type", audioMIME(s.audioPath))
	w.Header().Set("Accept-Ranges", "bytes")
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}

// audioTypes covers the usual recording formats; the system MIME table is
// consulted for anything else.
var audioTypes = map[string]string{
	".wav":  "audio/wav",
	".mp3":  "audio/mpeg",
	".ogg":  "audio/ogg",
	".oga":  "audio/ogg",
	".m4a":  "audio/mp4",
	".flac": "audio/flac",
	".webm": "audio/webm",
}

// audioMIME guesses the MIME type from the file extension, defaulting to
// audio/wav.
func audioMIME(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if t, ok := audioTypes[ext]; ok {
		return t
	}
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	return "audio/wav"
}
