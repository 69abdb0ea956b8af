package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecorders(t *testing.T) {
	before := testutil.ToFloat64(praiseOutcomes.WithLabelValues("cooldown"))
	RecordPraise("cooldown")
	if got := testutil.ToFloat64(praiseOutcomes.WithLabelValues("cooldown")); got != before+1 {
		t.Errorf("praise cooldown counter = %v, want %v", got, before+1)
	}

	before = testutil.ToFloat64(membershipEvents.WithLabelValues("kick"))
	RecordMembershipEvent("kick")
	if got := testutil.ToFloat64(membershipEvents.WithLabelValues("kick")); got != before+1 {
		t.Errorf("kick counter = %v, want %v", got, before+1)
	}

	done := RPCStarted()
	if got := testutil.ToFloat64(rpcInFlight); got < 1 {
		t.Errorf("in-flight gauge = %v, want >= 1", got)
	}
	done("/kudos.v1.PraiseService/SendPraise", "ok")
	if got := testutil.ToFloat64(rpcRequests.WithLabelValues("/kudos.v1.PraiseService/SendPraise", "ok")); got != 1 {
		t.Errorf("request counter = %v, want 1", got)
	}
}

func TestHandler(t *testing.T) {
	RecordCacheLookup("hit")

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body := rec.Body.String()
	if !strings.Contains(body, `kudos_cache_lookups_total{result="hit"}`) {
		t.Errorf("cache counter missing from exposition:\n%s", body)
	}
	if !strings.Contains(body, "go_goroutines") {
		t.Error("expected Go runtime collector output")
	}
}
