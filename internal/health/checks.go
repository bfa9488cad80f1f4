package health

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MrWong99/cueline/internal/resilience"
)

// ScriptInfo is satisfied by *script.Model.
type ScriptInfo interface {
	Len() int
	SceneCount() int
}

// ScriptChecker fails while the loaded script has no lines: every match
// would come back empty. Detail reports line and scene counts.
func ScriptChecker(m ScriptInfo) Checker {
	return Checker{
		Name: "script",
		Check: func(context.Context) error {
			if m == nil || m.Len() == 0 {
				return errors.New("no script lines loaded")
			}
			return nil
		},
		Detail: func() any {
			if m == nil {
				return map[string]int{"lines": 0, "scenes": 0}
			}
			return map[string]int{"lines": m.Len(), "scenes": m.SceneCount()}
		},
	}
}

// BreakerStates is satisfied by *resilience.STTFallback.
type BreakerStates interface {
	Available() bool
	States() []resilience.EntryState
}

// sttDetail is the "stt" detail in /readyz.
type sttDetail struct {
	Configured bool                    `json:"configured"`
	Breakers   []resilience.EntryState `json:"breakers,omitempty"`
}

// STTChecker fails when every recogniser behind the proxy has an open
// circuit breaker. A nil chain (no recogniser configured) passes; the proxy
// answers 503 on its own. Detail lists every breaker's state.
func STTChecker(chain BreakerStates) Checker {
	return Checker{
		Name: "stt",
		Check: func(context.Context) error {
			if chain == nil || chain.Available() {
				return nil
			}
			states := chain.States()
			parts := make([]string, 0, len(states))
			for _, st := range states {
				parts = append(parts, st.Name+"="+st.State)
			}
			return fmt.Errorf("all recognisers unavailable (%s)", strings.Join(parts, ", "))
		},
		Detail: func() any {
			if chain == nil {
				return sttDetail{}
			}
			return sttDetail{Configured: true, Breakers: chain.States()}
		},
	}
}
