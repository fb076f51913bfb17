package certificates_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/certify/internal/certificates"
	"github.com/JaimeStill/certify/internal/certification"
	"github.com/JaimeStill/certify/internal/store"
	"github.com/JaimeStill/certify/internal/store/memory"
	"github.com/JaimeStill/certify/pkg/storage"
)

var now = time.Date(2026, time.April, 14, 12, 0, 0, 0, time.UTC)

type blobs struct {
	mu    sync.Mutex
	err   error
	items map[string][]byte
}

func (b *blobs) Upload(_ context.Context, key string, r io.Reader, _ string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return b.err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	if b.items == nil {
		b.items = make(map[string][]byte)
	}
	b.items[key] = data
	return nil
}

func (b *blobs) Download(_ context.Context, key string) (io.ReadCloser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.items[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (b *blobs) Delete(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.items[key]; !ok {
		return storage.ErrNotFound
	}
	delete(b.items, key)
	return nil
}

func (b *blobs) get(key string) ([]byte, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.items[key]
	return data, ok
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fixture struct {
	store *memory.Store
	cert  certification.Certification
	src   certification.Source
}

func newFixture(t *testing.T, template bool) *fixture {
	t.Helper()
	ctx := context.Background()

	f := &fixture{store: memory.New()}
	f.cert = certification.Certification{
		ID:         uuid.New(),
		Fullname:   "Electrical safety",
		IDNumber:   "ES-1",
		ProgramID1: 1,
		Settings:   certification.DefaultSettings(),
	}
	if template {
		id := int64(12)
		f.cert.TemplateID = &id
	}
	if err := f.store.InsertCertification(ctx, &f.cert); err != nil {
		t.Fatalf("insert certification: %v", err)
	}

	f.src = certification.Source{ID: uuid.New(), CertificationID: f.cert.ID, Type: certification.SourceManual}
	if err := f.store.InsertSource(ctx, &f.src); err != nil {
		t.Fatalf("insert source: %v", err)
	}
	return f
}

func (f *fixture) period(t *testing.T, userID int64, certified, revoked bool) certification.Period {
	t.Helper()
	ctx := context.Background()

	a := certification.Assignment{ID: uuid.New(), CertificationID: f.cert.ID, UserID: userID, SourceID: f.src.ID, CreatedAt: now}
	if err := f.store.InsertAssignment(ctx, &a); err != nil {
		t.Fatalf("insert assignment: %v", err)
	}

	until := now.AddDate(1, 0, 0)
	p := certification.Period{
		ID:              uuid.New(),
		CertificationID: f.cert.ID,
		UserID:          userID,
		ProgramID:       1,
		TimeWindowStart: now.AddDate(0, -1, 0),
		First:           true,
		CreatedAt:       now,
	}
	if certified {
		p.TimeCertified, p.TimeFrom, p.TimeUntil = &now, &now, &until
	}
	if revoked {
		p.TimeRevoked = &now
	}
	if err := f.store.InsertPeriod(ctx, &p); err != nil {
		t.Fatalf("insert period: %v", err)
	}
	return p
}

func TestIssuePending(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	b := &blobs{}
	issuer := certificates.NewIssuer(f.store, certificates.NewBlobIssuer(b, discard(), func() time.Time { return now }), discard())

	certified := f.period(t, 1, true, false)
	f.period(t, 2, false, false)
	f.period(t, 3, true, true)

	res, err := issuer.IssuePending(ctx, store.Scope{})
	if err != nil {
		t.Fatalf("IssuePending: %v", err)
	}
	if res.Candidates != 1 || res.Issued != 1 || res.Failed != 0 {
		t.Fatalf("got %+v, want one issued", res)
	}

	p, err := f.store.GetPeriod(ctx, certified.ID)
	if err != nil {
		t.Fatalf("GetPeriod: %v", err)
	}
	if p.CertificateIssueID == nil {
		t.Fatal("issue id not recorded")
	}

	data, ok := b.get(certificates.Key(f.cert.ID, p.ID, *p.CertificateIssueID))
	if !ok {
		t.Fatal("certificate document not stored")
	}
	var doc certificates.Document
	if err := json.NewDecoder(bytes.NewReader(data)).Decode(&doc); err != nil {
		t.Fatalf("decode document: %v", err)
	}
	if doc.UserID != 1 || doc.IDNumber != "ES-1" || !doc.TimeIssued.Equal(now) {
		t.Errorf("got %+v, want document of user 1", doc)
	}

	t.Run("second pass issues nothing", func(t *testing.T) {
		res, err := issuer.IssuePending(ctx, store.Scope{})
		if err != nil {
			t.Fatalf("IssuePending: %v", err)
		}
		if res.Candidates != 0 || res.Issued != 0 {
			t.Errorf("got %+v, want no candidates", res)
		}
	})

	t.Run("revoke deletes the document", func(t *testing.T) {
		issuerBlob := certificates.NewBlobIssuer(b, discard(), nil)
		if err := issuerBlob.Revoke(ctx, *p); err != nil {
			t.Fatalf("Revoke: %v", err)
		}
		if _, ok := b.get(certificates.Key(f.cert.ID, p.ID, *p.CertificateIssueID)); ok {
			t.Error("document still stored")
		}
		if err := issuerBlob.Revoke(ctx, *p); err != nil {
			t.Errorf("second Revoke: %v", err)
		}
	})
}

func TestIssuePendingRequiresTemplate(t *testing.T) {
	f := newFixture(t, false)
	f.period(t, 1, true, false)

	issuer := certificates.NewIssuer(f.store, certificates.NewBlobIssuer(&blobs{}, discard(), nil), discard())
	res, err := issuer.IssuePending(context.Background(), store.Scope{})
	if err != nil {
		t.Fatalf("IssuePending: %v", err)
	}
	if res.Candidates != 0 {
		t.Errorf("got %d candidates, want 0", res.Candidates)
	}
}

func TestIssuePendingCountsFailures(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	p := f.period(t, 1, true, false)

	b := &blobs{err: errors.New("storage unavailable")}
	issuer := certificates.NewIssuer(f.store, certificates.NewBlobIssuer(b, discard(), nil), discard())

	res, err := issuer.IssuePending(ctx, store.Scope{})
	if err != nil {
		t.Fatalf("IssuePending: %v", err)
	}
	if res.Failed != 1 || res.Issued != 0 {
		t.Errorf("got %+v, want one failure", res)
	}

	got, err := f.store.GetPeriod(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetPeriod: %v", err)
	}
	if got.CertificateIssueID != nil {
		t.Error("issue id recorded despite failure")
	}
}

func TestHandlerDocument(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	b := &blobs{}
	blob := certificates.NewBlobIssuer(b, discard(), func() time.Time { return now })

	issued := f.period(t, 1, true, false)
	pending := f.period(t, 2, true, false)
	if _, err := certificates.NewIssuer(f.store, blob, discard()).IssuePending(ctx, store.Scope{UserID: &issued.UserID}); err != nil {
		t.Fatalf("IssuePending: %v", err)
	}

	mux := http.NewServeMux()
	h := certificates.NewHandler(f.store, blob, discard())
	for _, route := range h.Routes().Routes {
		mux.HandleFunc(route.Method+" "+route.Pattern, route.Handler)
	}

	tests := []struct {
		name string
		id   string
		code int
	}{
		{"issued", issued.ID.String(), http.StatusOK},
		{"not issued", pending.ID.String(), http.StatusNotFound},
		{"unknown period", uuid.NewString(), http.StatusNotFound},
		{"malformed id", "nope", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest("GET", "/periods/"+tt.id+"/certificate", nil))
			if rec.Code != tt.code {
				t.Fatalf("status: got %d, want %d", rec.Code, tt.code)
			}
			if tt.code != http.StatusOK {
				return
			}
			var doc certificates.Document
			if err := json.NewDecoder(rec.Body).Decode(&doc); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if doc.PeriodID != issued.ID || doc.UserID != 1 {
				t.Errorf("got %+v, want document of period %s", doc, issued.ID)
			}
		})
	}
}
