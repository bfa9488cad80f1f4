package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"

	"github.com/xeipuuv/gojsonschema"

	"github.com/MrWong99/cueline/internal/align"
	"github.com/MrWong99/cueline/internal/observe"
	"github.com/MrWong99/cueline/internal/script"
)

// maxMatchBody bounds /match request bodies. A candidate list for every line
// of a long script still fits comfortably.
const maxMatchBody = 1 << 20

// matchSchema describes the /match body. candidates is deliberately untyped:
// a value that is not an array means "no list", and entries that are not
// numbers are dropped later, never rejected. near accepts integral numbers
// in any notation (3, 3.0, 3e0).
const matchSchema = `{
	"type": "object",
	"properties": {
		"text": {"type": ["string", "null"]},
		"near": {"type": ["integer", "null"], "minimum": 0}
	}
}`

var matchRequestSchema = mustSchema(matchSchema)

func mustSchema(s string) *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(s))
	if err != nil {
		panic("api: compile schema: " + err.Error())
	}
	return schema
}

type matchRequest struct {
	Text       string `json:"text"`
	Candidates any    `json:"candidates"`

	// Near is the last known line. When no explicit candidates are given
	// the search is narrowed to a window around it.
	Near json.Number `json:"near"`
}

// candidateList returns the candidates when they were sent as an array and
// nil (every line) for anything else.
func (r matchRequest) candidateList() []any {
	list, _ := r.Candidates.([]any)
	return list
}

// nearLine converts near to a line index. The schema has already checked it
// is a non-negative integral number.
func (r matchRequest) nearLine() *int {
	if r.Near == "" {
		return nil
	}
	f, err := r.Near.Float64()
	if err != nil || f < 0 {
		return nil
	}
	n := int(min(f, math.MaxInt32))
	return &n
}

type matchResponse struct {
	OK bool `json:"ok"`
	align.Result
}

type scriptResponse struct {
	OK         bool          `json:"ok"`
	Count      int           `json:"count"`
	SceneCount int           `json:"scene_count"`
	Lines      []script.Line `json:"lines"`
}

func (s *Server) handleScript(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, scriptResponse{
		OK:         true,
		Count:      s.model.Len(),
		SceneCount: s.model.SceneCount(),
		Lines:      s.model.Lines(),
	})
}

func (s *Server) handleMatch(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxMatchBody))
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "read body: "+err.Error())
		return
	}

	req, details, err := decodeMatchRequest(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), details...)
		return
	}

	res := s.match(r.Context(), req.Text, s.candidates(req.candidateList(), req.nearLine()))
	writeJSON(w, http.StatusOK, matchResponse{OK: true, Result: res})
}

// decodeMatchRequest parses and validates a /match body. details lists the
// schema violations, if any.
func decodeMatchRequest(body []byte) (req matchRequest, details []string, err error) {
	if !json.Valid(body) {
		return req, nil, errors.New("invalid JSON body")
	}

	res, err := matchRequestSchema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return req, nil, errors.New("invalid JSON body")
	}
	if !res.Valid() {
		for _, e := range res.Errors() {
			details = append(details, e.String())
		}
		return req, details, errors.New("request does not match schema")
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil {
		return req, nil, errors.New("invalid JSON body")
	}
	return req, nil, nil
}

// match runs one alignment query under a trace span.
func (s *Server) match(ctx context.Context, text string, cands []int) align.Result {
	searched, all := len(cands), cands == nil
	if all {
		searched = s.model.Len()
	}
	_, span := observe.StartMatchSpan(ctx, s.matcher.Scorer().Name(), searched, all)
	res := s.matcher.Match(text, cands)
	observe.EndMatchSpan(span, res.ScorePct, res.BestIdx)
	return res
}

// candidates turns the request fields into the matcher's candidate list. An
// explicit list wins over a near hint; nil means every line.
func (s *Server) candidates(raw []any, near *int) []int {
	if raw != nil {
		return align.CandidatesFromJSON(raw)
	}
	if near != nil && s.windowRadius > 0 {
		return align.Window(*near, s.windowRadius)
	}
	return nil
}
