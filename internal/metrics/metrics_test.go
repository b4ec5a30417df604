package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordLocationUpdate(t *testing.T) {
	before := testutil.ToFloat64(LocationUpdatesTotal.WithLabelValues("move"))

	RecordLocationUpdate("move")
	RecordLocationUpdate("move")

	after := testutil.ToFloat64(LocationUpdatesTotal.WithLabelValues("move"))
	if after-before != 2 {
		t.Errorf("location_updates_total{action=move} grew by %v, want 2", after-before)
	}
}

func TestRecordHTTPRequest(t *testing.T) {
	before := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", "/users/{id}", "404"))

	RecordHTTPRequest("GET", "/users/{id}", 404, 3*time.Millisecond)

	after := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", "/users/{id}", "404"))
	if after-before != 1 {
		t.Errorf("http_requests_total grew by %v, want 1", after-before)
	}
}

func TestRecordAuthAttempt(t *testing.T) {
	before := testutil.ToFloat64(AuthAttemptsTotal.WithLabelValues("login", "failure"))
	RecordAuthAttempt("login", "failure")
	after := testutil.ToFloat64(AuthAttemptsTotal.WithLabelValues("login", "failure"))
	if after-before != 1 {
		t.Errorf("auth_attempts_total grew by %v, want 1", after-before)
	}
}
