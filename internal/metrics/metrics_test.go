package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/starford/questcard/internal/quest"
)

func TestHandlerExposesCounters(t *testing.T) {
	m := New()
	m.ObserveProxy(http.StatusOK)
	m.ObserveProxy(http.StatusBadGateway)
	m.ObserveProxy(http.StatusBadRequest)
	m.CommitHook()(quest.Commit{QuestID: "a", State: quest.StateLoaded, Duration: 10 * time.Millisecond})
	m.CommitHook()(quest.Commit{QuestID: "b", State: quest.StateCancelled, Duration: 3 * time.Second})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, req)

	body := w.Body.String()
	for _, want := range []string{
		`questcard_proxy_requests_total{status="200"} 1`,
		`questcard_proxy_requests_total{status="502"} 1`,
		`questcard_proxy_requests_total{status="400"} 1`,
		`questcard_quest_fetches_total{state="loaded"} 1`,
		`questcard_quest_fetches_total{state="cancelled"} 1`,
		`questcard_quest_fetch_duration_seconds_count 2`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestNewUsesIsolatedRegistries(t *testing.T) {
	// Two instances must not collide on registration.
	_ = New()
	_ = New()
}
