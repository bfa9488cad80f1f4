// Package align finds the script line that best matches a piece of
// transcribed speech.
//
// A [Matcher] scores the query against every line of a [script.Model] (or a
// caller-supplied subset of line indices) with a pluggable [Scorer] and
// returns the highest-scoring line. Ties go to the lowest index. "No match"
// is a regular [Result] with a nil BestIdx, never an error.
//
// The Matcher holds no mutable state and is safe for concurrent use.
package align

import (
	"context"
	"encoding/json"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/MrWong99/cueline/internal/script"
)

// Result is the outcome of a single match.
type Result struct {
	// ScorePct is the winning similarity in [0,100], rounded to two decimals.
	ScorePct float64 `json:"score_pct"`

	// BestIdx is the global line index of the winner, or nil when the query
	// was empty, the script was empty, or no candidate survived validation.
	BestIdx *int `json:"best_idx"`
}

// Matched reports whether the result names a line.
func (r Result) Matched() bool { return r.BestIdx != nil }

// Recorder receives match telemetry. The observe package's Metrics type
// satisfies it.
type Recorder interface {
	RecordMatch(ctx context.Context, d time.Duration, scorePct float64, matched bool)
}

// Option is a functional option for configuring a [Matcher].
type Option func(*Matcher)

// WithMetrics attaches a [Recorder] that is told about every match.
func WithMetrics(r Recorder) Option {
	return func(m *Matcher) {
		m.rec = r
	}
}

// Matcher aligns free-form text against a script.
type Matcher struct {
	model  *script.Model
	scorer Scorer
	rec    Recorder
}

// NewMatcher returns a Matcher over model using scorer. A nil scorer selects
// [TokenSetScorer].
func NewMatcher(model *script.Model, scorer Scorer, opts ...Option) *Matcher {
	if scorer == nil {
		scorer = TokenSetScorer{}
	}
	m := &Matcher{model: model, scorer: scorer}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Scorer returns the scoring strategy in use.
func (m *Matcher) Scorer() Scorer { return m.scorer }

// Model returns the script the matcher aligns against.
func (m *Matcher) Model() *script.Model { return m.model }

// Match returns the script line most similar to query.
//
// A nil candidates slice compares against every line. A non-nil slice
// restricts the comparison to those indices: entries outside [0, Len) are
// dropped, duplicates collapse and the rest are visited in ascending order.
// A supplied slice that ends up empty yields no match.
func (m *Matcher) Match(query string, candidates []int) Result {
	start := time.Now()
	res := m.match(query, candidates)
	if m.rec != nil {
		m.rec.RecordMatch(context.Background(), time.Since(start), res.ScorePct, res.Matched())
	}
	return res
}

func (m *Matcher) match(query string, candidates []int) Result {
	query = strings.TrimSpace(query)
	n := 0
	if m.model != nil {
		n = m.model.Len()
	}
	if query == "" || n == 0 {
		return Result{}
	}

	var universe []int
	if candidates != nil {
		universe = validCandidates(candidates, n)
		if len(universe) == 0 {
			return Result{}
		}
	}

	best, bestScore := -1, 0.0
	visit := func(idx int) {
		s := m.scorer.Score(query, m.model.Text(idx))
		if best < 0 || s > bestScore {
			best, bestScore = idx, s
		}
	}
	if universe == nil {
		for i := range n {
			visit(i)
		}
	} else {
		for _, i := range universe {
			visit(i)
		}
	}

	return Result{ScorePct: round2(bestScore), BestIdx: &best}
}

// validCandidates keeps the in-range entries of c, sorted and de-duplicated.
// The result is never nil.
func validCandidates(c []int, n int) []int {
	out := make([]int, 0, len(c))
	for _, i := range c {
		if i >= 0 && i < n {
			out = append(out, i)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// CandidatesFromJSON converts a decoded JSON array into candidate indices.
// Numbers are truncated toward zero; anything else (strings, booleans,
// objects, NaN, infinities) is dropped. Range checks are left to
// [Matcher.Match]. A nil input returns nil, which means "all lines"; a
// non-nil input always returns a non-nil slice.
func CandidatesFromJSON(values []any) []int {
	if values == nil {
		return nil
	}
	out := make([]int, 0, len(values))
	for _, v := range values {
		var f float64
		switch x := v.(type) {
		case float64:
			f = x
		case float32:
			f = float64(x)
		case int:
			out = append(out, x)
			continue
		case int64:
			f = float64(x)
		case json.Number:
			if i, err := x.Int64(); err == nil {
				f = float64(i)
				break
			}
			parsed, err := x.Float64()
			if err != nil {
				continue
			}
			f = parsed
		default:
			continue
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			continue
		}
		f = math.Trunc(f)
		if f < math.MinInt32 || f > math.MaxInt32 {
			// Far outside any script; Match would drop it anyway.
			continue
		}
		out = append(out, int(f))
	}
	return out
}

// Window returns the indices center-radius through center+radius, clamped
// at zero. The upper end is not clamped; [Matcher.Match] drops indices past
// the end of the script. A negative radius is treated as zero.
func Window(center, radius int) []int {
	radius = max(radius, 0)
	lo := max(center-radius, 0)
	hi := center + radius
	if hi < lo {
		return []int{}
	}
	out := make([]int, 0, hi-lo+1)
	for i := lo; i <= hi; i++ {
		out = append(out, i)
	}
	return out
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
