package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestHelpers_NoopBeforeInit(t *testing.T) {
	saved := claimsTotal
	claimsTotal = nil
	defer func() { claimsTotal = saved }()

	IncClaim(ResultSuccess)
}

func TestHandler_ExposesPrefixedMetrics(t *testing.T) {
	Init()
	Init()

	ObserveReserve("created", 15*time.Millisecond)
	AddSwept("expired", 2)
	IncCapacityViolation()

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body := rec.Body.String()
	for _, name := range []string{
		`ecovolt_reservations_total{outcome="created"}`,
		`ecovolt_sweeper_items_total{kind="expired"}`,
		"ecovolt_capacity_violations_total",
	} {
		if !strings.Contains(body, name) {
			t.Errorf("expected %s in /metrics output", name)
		}
	}
}
