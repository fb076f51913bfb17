package module_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/JaimeStill/certify/pkg/module"
)

func echoPath(w http.ResponseWriter, r *http.Request) {
	io.WriteString(w, r.URL.Path)
}

func mustModule(t *testing.T, prefix string, h http.Handler) *module.Module {
	t.Helper()
	m, err := module.New(prefix, h)
	if err != nil {
		t.Fatalf("new module %s: %v", prefix, err)
	}
	return m
}

func TestNewPrefix(t *testing.T) {
	tests := []struct {
		prefix  string
		wantErr bool
	}{
		{"/api", false},
		{"/v1", false},
		{"", true},
		{"api", true},
		{"/", true},
		{"/api/v1", true},
	}

	for _, tt := range tests {
		t.Run(tt.prefix, func(t *testing.T) {
			m, err := module.New(tt.prefix, http.NewServeMux())
			if (err != nil) != tt.wantErr {
				t.Fatalf("err: got %v, want error %v", err, tt.wantErr)
			}
			if err == nil && m.Prefix() != tt.prefix {
				t.Errorf("prefix: got %s, want %s", m.Prefix(), tt.prefix)
			}
		})
	}
}

func TestServePrefixStripping(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/api/certifications", "/certifications"},
		{"/api/assignments/1/snapshots", "/assignments/1/snapshots"},
		{"/api", "/"},
	}

	m := mustModule(t, "/api", http.HandlerFunc(echoPath))

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest("GET", tt.path, nil)
			m.ServeHTTP(rec, req)

			if got := rec.Body.String(); got != tt.want {
				t.Errorf("path: got %s, want %s", got, tt.want)
			}
			if req.URL.Path != tt.path {
				t.Errorf("original request modified: got %s, want %s", req.URL.Path, tt.path)
			}
		})
	}
}

func TestModuleMiddleware(t *testing.T) {
	m := mustModule(t, "/api", http.HandlerFunc(echoPath))
	m.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Module", "api")
			next.ServeHTTP(w, r)
		})
	})

	rec := httptest.NewRecorder()
	m.ServeHTTP(rec, httptest.NewRequest("GET", "/api/job/run", nil))

	if got := rec.Header().Get("X-Module"); got != "api" {
		t.Errorf("middleware header: got %q, want api", got)
	}
}

func TestRouterDispatch(t *testing.T) {
	api := http.NewServeMux()
	api.HandleFunc("GET /certifications", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "api")
	})
	ops := http.NewServeMux()
	ops.HandleFunc("GET /status", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "ops")
	})

	router := module.NewRouter()
	if err := router.Mount(mustModule(t, "/api", api)); err != nil {
		t.Fatal(err)
	}
	if err := router.Mount(mustModule(t, "/ops", ops)); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		path string
		want string
	}{
		{"/api/certifications", "api"},
		{"/ops/status", "ops"},
		{"/api/certifications/", "api"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest("GET", tt.path, nil))
			if got := rec.Body.String(); got != tt.want {
				t.Errorf("body: got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRouterMountDuplicate(t *testing.T) {
	router := module.NewRouter()
	if err := router.Mount(mustModule(t, "/api", http.NewServeMux())); err != nil {
		t.Fatal(err)
	}
	if err := router.Mount(mustModule(t, "/api", http.NewServeMux())); err == nil {
		t.Error("expected error mounting duplicate prefix")
	}
}

func TestRouterNativeFallback(t *testing.T) {
	router := module.NewRouter()
	router.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "ok")
	})
	router.Handle("GET /metrics", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "metrics")
	}))

	tests := []struct {
		path string
		code int
		want string
	}{
		{"/healthz", http.StatusOK, "ok"},
		{"/metrics", http.StatusOK, "metrics"},
		{"/unknown", http.StatusNotFound, ""},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest("GET", tt.path, nil))
			if rec.Code != tt.code {
				t.Errorf("status: got %d, want %d", rec.Code, tt.code)
			}
			if tt.want != "" && rec.Body.String() != tt.want {
				t.Errorf("body: got %q, want %q", rec.Body.String(), tt.want)
			}
		})
	}
}
