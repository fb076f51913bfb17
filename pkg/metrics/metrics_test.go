package metrics_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/JaimeStill/certify/pkg/metrics"
)

func scrape(t *testing.T, m *metrics.System) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, err := io.ReadAll(rec.Result().Body)
	if err != nil {
		t.Fatalf("read metrics: %v", err)
	}
	return string(body)
}

func TestInstrument(t *testing.T) {
	m := metrics.New("certify", "1.2.3")

	mux := http.NewServeMux()
	mux.HandleFunc("GET /certifications/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	handler := m.Instrument(mux)

	for range 3 {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/certifications/abc", nil))
		if rec.Code != http.StatusNotFound {
			t.Fatalf("got %d, want 404", rec.Code)
		}
	}

	body := scrape(t, m)

	tests := []struct {
		name string
		want string
	}{
		{"requests by route", `certify_http_requests_total{method="GET",route="GET /certifications/{id}",status="404"} 3`},
		{"build info", `certify_build_info{version="1.2.3"} 1`},
		{"in flight", `certify_http_in_flight_requests 0`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !strings.Contains(body, tt.want) {
				t.Errorf("metrics missing %q", tt.want)
			}
		})
	}
}

func TestRegisterer(t *testing.T) {
	m := metrics.New("certify", "dev")

	c := prometheus.NewCounter(prometheus.CounterOpts{Namespace: "certify", Name: "custom_total", Help: "Custom."})
	if err := m.Registerer().Register(c); err != nil {
		t.Fatalf("register: %v", err)
	}
	c.Add(2)

	if body := scrape(t, m); !strings.Contains(body, "certify_custom_total 2") {
		t.Error("custom metric not exposed")
	}
}
