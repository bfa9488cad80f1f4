package stt

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"
)

// Transcript is the result of a single batch transcription.
type Transcript struct {
	// Text is the recognised speech, flattened to one string.
	Text string

	// Elapsed is the wall-clock time of the round trip as seen by the
	// client, including network transfer.
	Elapsed time.Duration

	// ServerElapsed is the inference time reported by the backend (the
	// "elapsed_s" field of Whisper servers). Zero when not reported; callers
	// should then fall back to Elapsed.
	ServerElapsed time.Duration
}

// STTTime returns ServerElapsed when the backend reported it, Elapsed
// otherwise.
func (t Transcript) STTTime() time.Duration {
	if t.ServerElapsed > 0 {
		return t.ServerElapsed
	}
	return t.Elapsed
}

// ExtractText normalises a backend reply into flat text.
//
// A JSON object with a string "text" field yields that field. Otherwise a
// "segments" array yields the concatenation of each segment's "text". Any
// other payload (plain text, JSON of another shape) is returned verbatim.
func ExtractText(payload []byte) string {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return string(payload)
	}

	var obj struct {
		Text     json.RawMessage `json:"text"`
		Segments []struct {
			Text string `json:"text"`
		} `json:"segments"`
	}
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		return string(payload)
	}

	var text string
	if len(obj.Text) > 0 && obj.Text[0] == '"' && json.Unmarshal(obj.Text, &text) == nil {
		return text
	}
	if obj.Segments != nil {
		var sb strings.Builder
		for _, seg := range obj.Segments {
			sb.WriteString(seg.Text)
		}
		return sb.String()
	}
	return string(payload)
}

// serverElapsed reads a numeric "elapsed_s" field from a JSON reply.
func serverElapsed(payload []byte) (time.Duration, bool) {
	var obj struct {
		ElapsedS *float64 `json:"elapsed_s"`
	}
	if err := json.Unmarshal(payload, &obj); err != nil || obj.ElapsedS == nil || *obj.ElapsedS < 0 {
		return 0, false
	}
	return time.Duration(*obj.ElapsedS * float64(time.Second)), true
}

// ParseReply turns a raw backend reply into a [Transcript] with the server
// timing filled in when present. elapsed is the client-side round trip.
func ParseReply(payload []byte, elapsed time.Duration) Transcript {
	t := Transcript{Text: ExtractText(payload), Elapsed: elapsed}
	if d, ok := serverElapsed(payload); ok {
		t.ServerElapsed = d
	}
	return t
}
