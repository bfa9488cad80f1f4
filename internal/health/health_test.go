package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/MrWong99/cueline/internal/resilience"
)

// readyBody mirrors the /readyz JSON as a client sees it.
type readyBody struct {
	Status string `json:"status"`
	Checks map[string]struct {
		Status string          `json:"status"`
		Error  string          `json:"error"`
		Detail json.RawMessage `json:"detail"`
	} `json:"checks"`
}

func serve(t *testing.T, h *Handler, path string) (*httptest.ResponseRecorder, readyBody) {
	t.Helper()
	mux := http.NewServeMux()
	h.Register(mux)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

	if ct := rec.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Errorf("Content-Type = %q", ct)
	}
	var body readyBody
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode %s: %v", path, err)
	}
	return rec, body
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	// Liveness ignores the checkers, even failing ones.
	h := New(ScriptChecker(fakeScript{}))
	rec, body := serve(t, h, "/healthz")
	if rec.Code != http.StatusOK || body.Status != "ok" || body.Checks != nil {
		t.Errorf("healthz = %d %+v", rec.Code, body)
	}
}

func TestReadyz(t *testing.T) {
	t.Parallel()

	open := fakeChain{states: []resilience.EntryState{{Name: "whisper", State: "open"}}}
	closed := fakeChain{ok: true, states: []resilience.EntryState{{Name: "whisper", State: "closed"}}}

	tests := []struct {
		name       string
		script     ScriptInfo
		chain      BreakerStates
		wantCode   int
		wantScript string
		wantSTT    string
		wantDetail string
	}{
		{"ready", fakeScript{40, 8}, closed, http.StatusOK, "ok", "ok",
			`{"configured":true,"breakers":[{"name":"whisper","state":"closed"}]}`},
		{"no recogniser configured", fakeScript{40, 8}, nil, http.StatusOK, "ok", "ok",
			`{"configured":false}`},
		{"empty script", fakeScript{}, closed, http.StatusServiceUnavailable, "fail", "ok",
			`{"configured":true,"breakers":[{"name":"whisper","state":"closed"}]}`},
		{"all breakers open", fakeScript{40, 8}, open, http.StatusServiceUnavailable, "ok", "fail",
			`{"configured":true,"breakers":[{"name":"whisper","state":"open"}]}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			rec, body := serve(t, New(ScriptChecker(tc.script), STTChecker(tc.chain)), "/readyz")

			if rec.Code != tc.wantCode {
				t.Errorf("status = %d, want %d", rec.Code, tc.wantCode)
			}
			wantStatus := "ok"
			if tc.wantCode != http.StatusOK {
				wantStatus = "fail"
			}
			if body.Status != wantStatus {
				t.Errorf("body status = %q, want %q", body.Status, wantStatus)
			}
			if got := body.Checks["script"].Status; got != tc.wantScript {
				t.Errorf("script = %q, want %q", got, tc.wantScript)
			}
			if got := body.Checks["stt"].Status; got != tc.wantSTT {
				t.Errorf("stt = %q, want %q", got, tc.wantSTT)
			}
			if tc.wantSTT == "fail" && body.Checks["stt"].Error == "" {
				t.Error("failing stt check has no error text")
			}
			if got := string(body.Checks["stt"].Detail); got != tc.wantDetail {
				t.Errorf("stt detail = %s, want %s", got, tc.wantDetail)
			}
		})
	}
}

func TestReadyz_ScriptDetail(t *testing.T) {
	t.Parallel()

	_, body := serve(t, New(ScriptChecker(fakeScript{42, 5})), "/readyz")
	var d struct{ Lines, Scenes int }
	if err := json.Unmarshal(body.Checks["script"].Detail, &d); err != nil {
		t.Fatal(err)
	}
	if d.Lines != 42 || d.Scenes != 5 {
		t.Errorf("script detail = %+v, want 42 lines 5 scenes", d)
	}
}

func TestEvaluate_RespectsContext(t *testing.T) {
	t.Parallel()

	waits := Checker{Name: "stt", Check: func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rep := New(ScriptChecker(fakeScript{1, 1}), waits).Evaluate(ctx)
	if rep.OK() {
		t.Fatal("cancelled check reported ready")
	}
	if rep.Checks["stt"].Error != context.Canceled.Error() {
		t.Errorf("stt error = %q", rep.Checks["stt"].Error)
	}
	if rep.Checks["script"].Status != "ok" {
		t.Errorf("script = %+v", rep.Checks["script"])
	}
}
