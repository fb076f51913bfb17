package api_test

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/JaimeStill/certify/internal/api"
	"github.com/JaimeStill/certify/internal/config"
	"github.com/JaimeStill/certify/internal/infrastructure"
	"github.com/JaimeStill/certify/internal/job"
	"github.com/JaimeStill/certify/internal/store/memory"
	"github.com/JaimeStill/certify/pkg/lifecycle"
	"github.com/JaimeStill/certify/pkg/metrics"
	"github.com/JaimeStill/certify/pkg/module"
	"github.com/JaimeStill/certify/pkg/pagination"
)

var now = time.Date(2026, time.March, 2, 8, 0, 0, 0, time.UTC)

type server struct {
	module  *module.Module
	store   *memory.Store
	metrics *metrics.System
	domain  *api.Domain
}

func newServer(t *testing.T) *server {
	t.Helper()

	cfg := &config.Config{}
	if err := cfg.API.Finalize(); err != nil {
		t.Fatalf("api config: %v", err)
	}
	if err := cfg.Job.Finalize(); err != nil {
		t.Fatalf("job config: %v", err)
	}

	infra := &infrastructure.Infrastructure{
		Lifecycle: lifecycle.New(),
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		Metrics:   metrics.New("certify", "test"),
	}
	s := memory.New()

	runtime := api.NewRuntime(cfg, infra, s, func() time.Time { return now })
	domain, err := api.NewDomain(runtime)
	if err != nil {
		t.Fatalf("NewDomain: %v", err)
	}
	m, err := api.NewModule(cfg, runtime, domain)
	if err != nil {
		t.Fatalf("NewModule: %v", err)
	}

	return &server{module: m, store: s, metrics: infra.Metrics, domain: domain}
}

func (s *server) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("X-Actor-ID", "2")
	rec := httptest.NewRecorder()
	s.module.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return v
}

type idBody struct {
	ID string `json:"id"`
}

func TestManualAssignmentFlow(t *testing.T) {
	srv := newServer(t)
	srv.store.PutUser(memory.User{ID: 5})

	rec := srv.do(t, "POST", "/api/certifications", `{"fullname":"First aid","idnumber":"FA-1","program_id1":3}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create certification: got %d, want 201: %s", rec.Code, rec.Body)
	}
	cert := decode[idBody](t, rec)

	rec = srv.do(t, "POST", "/api/certifications/"+cert.ID+"/sources", `{"type":"manual"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("enable manual: got %d, want 201: %s", rec.Code, rec.Body)
	}
	src := decode[idBody](t, rec)

	rec = srv.do(t, "POST", "/api/sources/"+src.ID+"/assign", `{"user_ids":[5]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("assign: got %d, want 200: %s", rec.Code, rec.Body)
	}

	rec = srv.do(t, "GET", "/api/certifications/"+cert.ID+"/assignments", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list assignments: got %d, want 200", rec.Code)
	}
	page := decode[pagination.PageResult[json.RawMessage]](t, rec)
	if page.Total != 1 {
		t.Errorf("assignments: got %d, want 1", page.Total)
	}

	rec = srv.do(t, "POST", "/api/job/run", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("job run: got %d, want 200: %s", rec.Code, rec.Body)
	}
	report := decode[job.Report](t, rec)
	if len(report.Steps) != 5 {
		t.Errorf("steps: got %d, want 5", len(report.Steps))
	}
	if report.Failed() {
		t.Errorf("report failed: %+v", report)
	}
}

func TestRouting(t *testing.T) {
	srv := newServer(t)

	tests := []struct {
		name   string
		method string
		path   string
		code   int
	}{
		{"list certifications", "GET", "/api/certifications", http.StatusOK},
		{"trailing slash", "GET", "/api/certifications/", http.StatusOK},
		{"unknown certification", "GET", "/api/certifications/00000000-0000-0000-0000-000000000001", http.StatusNotFound},
		{"malformed assignment id", "GET", "/api/assignments/x", http.StatusBadRequest},
		{"wrong method", "DELETE", "/api/job/run", http.StatusMethodNotAllowed},
		{"unmounted path", "GET", "/nothing", http.StatusNotFound},
	}

	router := module.NewRouter()
	if err := router.Mount(srv.module); err != nil {
		t.Fatalf("mount: %v", err)
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
			if rec.Code != tt.code {
				t.Errorf("status: got %d, want %d", rec.Code, tt.code)
			}
		})
	}
}

func TestCertificateRouteRequiresStorage(t *testing.T) {
	srv := newServer(t)
	if srv.domain.Documents != nil {
		t.Fatal("documents should be nil without storage")
	}

	rec := srv.do(t, "GET", "/api/periods/00000000-0000-0000-0000-000000000001/certificate", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status: got %d, want 404", rec.Code)
	}
}

func TestRequestMetrics(t *testing.T) {
	srv := newServer(t)
	srv.do(t, "GET", "/api/certifications", "")

	rec := httptest.NewRecorder()
	srv.metrics.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body := rec.Body.String()

	want := `certify_http_requests_total{method="GET",route="GET /certifications",status="200"} 1`
	if !strings.Contains(body, want) {
		t.Errorf("metrics missing %q", want)
	}
	if !strings.Contains(body, "certify_job_last_success_timestamp_seconds") {
		t.Error("job metrics not registered")
	}
}
