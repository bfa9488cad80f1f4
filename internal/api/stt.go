package api

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/MrWong99/cueline/internal/align"
	"github.com/MrWong99/cueline/internal/observe"
	"github.com/MrWong99/cueline/pkg/audio"
	"github.com/MrWong99/cueline/pkg/provider/stt"
)

// Upload sources reported in /stt-proxy responses and upload metrics.
const (
	SourceMultipart = "multipart"
	SourceBase64    = "wav_b64"
	SourceRaw       = "wav"
	SourcePCM       = "l16"
)

// multipartMemory is how much of a multipart body is kept in memory before
// spilling to temporary files.
const multipartMemory = 8 << 20

// uploadError is a client-side problem with an /stt-proxy body.
type uploadError struct {
	status int
	msg    string
}

func (e *uploadError) Error() string { return e.msg }

func badUpload(status int, format string, args ...any) error {
	return &uploadError{status: status, msg: fmt.Sprintf(format, args...)}
}

type sttResponse struct {
	OK     bool    `json:"ok"`
	Source string  `json:"source"`
	Text   string  `json:"text"`
	TotalS float64 `json:"total_s"`
	STTS   float64 `json:"stt_s"`
	NetS   float64 `json:"net_s"`

	// Set only for ?match=1.
	*align.Result
}

func (s *Server) handleSTTProxy(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := observe.Logger(ctx)

	if s.stt == nil {
		writeError(w, http.StatusServiceUnavailable, "no speech recogniser configured")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	data, source, err := readAudio(r)
	if err != nil {
		var mbe *http.MaxBytesError
		var ue *uploadError
		switch {
		case errors.As(err, &mbe):
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("payload too large (> %d bytes)", s.maxUpload))
		case errors.As(err, &ue):
			writeError(w, ue.status, ue.msg)
		default:
			writeError(w, http.StatusBadRequest, "read upload: "+err.Error())
		}
		return
	}

	if err := audio.Validate(data); err != nil {
		msg := "invalid wav"
		if errors.Is(err, audio.ErrTooSmall) {
			msg = "empty or too small WAV payload"
		}
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	s.metrics.RecordUpload(ctx, source, len(data))

	sttCtx, span := observe.StartSTTSpan(ctx, s.sttName, source, len(data))
	tr, err := s.stt.Transcribe(sttCtx, data, stt.Options{Language: s.language})
	if err != nil {
		if ctx.Err() != nil {
			log.Debug("stt proxy: client went away", "err", err)
			observe.EndSTTSpan(span, "cancelled", 0, err)
			s.metrics.RecordTranscription(ctx, s.sttName, "cancelled", time.Since(start))
			return
		}
		if errors.Is(err, stt.ErrTimeout) {
			log.Warn("stt proxy: recogniser timed out", "provider", s.sttName, "err", err)
			observe.EndSTTSpan(span, "timeout", 0, err)
			s.metrics.RecordTranscription(ctx, s.sttName, "timeout", time.Since(start))
			s.metrics.RecordProviderError(ctx, s.sttName, "timeout")
			writeError(w, http.StatusGatewayTimeout, "whisper_timeout")
			return
		}
		log.Warn("stt proxy: recogniser failed", "provider", s.sttName, "err", err)
		observe.EndSTTSpan(span, "error", 0, err)
		s.metrics.RecordTranscription(ctx, s.sttName, "error", time.Since(start))
		s.metrics.RecordProviderError(ctx, s.sttName, "unavailable")
		writeError(w, http.StatusBadGateway, "stt_request_failed: "+err.Error())
		return
	}
	observe.EndSTTSpan(span, "ok", len(tr.Text), nil)
	s.metrics.RecordTranscription(ctx, s.sttName, "ok", tr.Elapsed)

	total := time.Since(start)
	resp := sttResponse{
		OK:     true,
		Source: source,
		Text:   tr.Text,
		TotalS: round3(total),
		STTS:   round3(tr.STTTime()),
		NetS:   round3(total - tr.STTTime()),
	}
	if wantMatch(r.FormValue("match")) {
		res := s.match(ctx, tr.Text, s.candidates(parseCandidateList(r.FormValue("candidates")), parseNear(r.FormValue("near"))))
		resp.Result = &res
	}

	log.Debug("stt proxy: transcribed",
		"source", source,
		"bytes", len(data),
		"chars", len(tr.Text),
		"total", total,
	)
	writeJSON(w, http.StatusOK, resp)
}

// readAudio extracts a WAV payload from the request according to its
// Content-Type.
func readAudio(r *http.Request) (data []byte, source string, err error) {
	ct := r.Header.Get("Content-Type")
	if ct == "" {
		ct = "application/octet-stream"
	}
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return nil, "", badUpload(http.StatusUnsupportedMediaType, "unsupported content type %q", ct)
	}

	switch mt {
	case "multipart/form-data":
		data, err = readMultipart(r)
		return data, SourceMultipart, err

	case "application/json":
		var body struct {
			WAVBase64 string `json:"wav_b64"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			var mbe *http.MaxBytesError
			if errors.As(err, &mbe) {
				return nil, "", err
			}
			return nil, "", badUpload(http.StatusBadRequest, "invalid JSON body")
		}
		data, err := base64.StdEncoding.DecodeString(body.WAVBase64)
		if err != nil {
			return nil, "", badUpload(http.StatusBadRequest, "wav_b64 is not valid base64")
		}
		return data, SourceBase64, nil

	case "application/octet-stream", "audio/wav", "audio/x-wav", "audio/wave":
		data, err = io.ReadAll(r.Body)
		return data, SourceRaw, err
	}

	f, ok, err := audio.ParseL16(ct)
	if !ok {
		return nil, "", badUpload(http.StatusUnsupportedMediaType, "unsupported content type %q", mt)
	}
	if err != nil {
		return nil, "", badUpload(http.StatusBadRequest, "%v", err)
	}
	pcm, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, "", err
	}
	pcm = f.ToLittleEndian(pcm)
	if len(pcm) == 0 {
		return nil, SourcePCM, nil
	}
	return audio.EncodeWAV(pcm, f.SampleRate, f.Channels), SourcePCM, nil
}

// readMultipart returns the "audio" file part, or "file" when there is none.
func readMultipart(r *http.Request) ([]byte, error) {
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return nil, err
		}
		return nil, badUpload(http.StatusBadRequest, "parse multipart form: %v", err)
	}
	defer r.MultipartForm.RemoveAll()

	for _, field := range []string{"audio", "file"} {
		f, _, err := r.FormFile(field)
		if errors.Is(err, http.ErrMissingFile) {
			continue
		}
		if err != nil {
			return nil, badUpload(http.StatusBadRequest, "read %s: %v", field, err)
		}
		defer f.Close()
		return io.ReadAll(f)
	}
	return nil, badUpload(http.StatusBadRequest, `multipart body has no "audio" or "file" part`)
}

func wantMatch(v string) bool {
	b, err := strconv.ParseBool(v)
	return err == nil && b
}

// parseCandidateList reads "3,4,5" into the same shape a JSON array decodes
// to so that both paths share one filter. An empty string means no list.
func parseCandidateList(v string) []any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]any, 0, len(parts))
	for _, p := range parts {
		if f, err := strconv.ParseFloat(strings.TrimSpace(p), 64); err == nil {
			out = append(out, f)
		}
	}
	return out
}

func parseNear(v string) *int {
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || n < 0 {
		return nil
	}
	return &n
}

func round3(d time.Duration) float64 {
	return math.Round(d.Seconds()*1000) / 1000
}
