package certifications_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/certify/internal/certification"
	"github.com/JaimeStill/certify/internal/certifications"
	"github.com/JaimeStill/certify/internal/external/externaltest"
	"github.com/JaimeStill/certify/internal/store/memory"
	"github.com/JaimeStill/certify/pkg/pagination"
	"github.com/JaimeStill/certify/pkg/routes"
)

var now = time.Date(2026, time.May, 4, 7, 0, 0, 0, time.UTC)

func newSystem(t *testing.T) (certifications.System, *memory.Store, *externaltest.Programs) {
	t.Helper()
	s := memory.New()
	programs := &externaltest.Programs{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sys := certifications.New(s, programs, logger, pagination.Config{DefaultPageSize: 2, MaxPageSize: 10}, func() time.Time { return now })
	return sys, s, programs
}

func create(t *testing.T, sys certifications.System, idnumber string) *certification.Certification {
	t.Helper()
	c, err := sys.Create(context.Background(), certification.CreateCommand{
		Fullname:   "Certification " + idnumber,
		IDNumber:   idnumber,
		ProgramID1: 1,
		Settings:   json.RawMessage(`{"expiration1":{"since":"certified","delay":"P1Y"},"recertify":2592000,"programid2":5}`),
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return c
}

func TestCreate(t *testing.T) {
	sys, _, _ := newSystem(t)
	ctx := context.Background()

	c := create(t, sys, "C-1")
	if c.Recertify == nil || *c.Recertify != 2592000 {
		t.Errorf("got recertify %v, want mirrored setting", c.Recertify)
	}
	if c.ProgramID2 == nil || *c.ProgramID2 != 5 {
		t.Errorf("got programid2 %v, want 5", c.ProgramID2)
	}
	if c.Settings.ResetType2 != certification.ResetDeallocate {
		t.Errorf("got resettype2 %s, want default deallocate", c.Settings.ResetType2)
	}

	tests := []struct {
		name string
		cmd  certification.CreateCommand
		want error
	}{
		{"missing fullname", certification.CreateCommand{IDNumber: "X", ProgramID1: 1}, certification.ErrValidation},
		{"missing program", certification.CreateCommand{Fullname: "X", IDNumber: "X"}, certification.ErrValidation},
		{"bad settings", certification.CreateCommand{Fullname: "X", IDNumber: "X", ProgramID1: 1, Settings: json.RawMessage(`{"resettype1":"wipe"}`)}, certification.ErrValidation},
		{"recertify without expiration", certification.CreateCommand{Fullname: "X", IDNumber: "X", ProgramID1: 1, Settings: json.RawMessage(`{"recertify":60}`)}, certification.ErrValidation},
		{"duplicate idnumber", certification.CreateCommand{Fullname: "X", IDNumber: "C-1", ProgramID1: 1}, certification.ErrDuplicate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := sys.Create(ctx, tt.cmd); !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}
}

func TestUpdateKeepsSettingsWhenOmitted(t *testing.T) {
	sys, _, _ := newSystem(t)
	ctx := context.Background()
	c := create(t, sys, "C-2")

	updated, err := sys.Update(ctx, c.ID, certification.UpdateCommand{
		Fullname:   "Renamed",
		IDNumber:   "C-2",
		ProgramID1: 2,
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Fullname != "Renamed" || updated.ProgramID1 != 2 {
		t.Errorf("got %+v, want renamed with program 2", updated)
	}
	if updated.Recertify == nil || *updated.Recertify != 2592000 {
		t.Errorf("got recertify %v, want settings kept", updated.Recertify)
	}

	updated, err = sys.Update(ctx, c.ID, certification.UpdateCommand{
		Fullname:   "Renamed",
		IDNumber:   "C-2",
		ProgramID1: 2,
		Settings:   json.RawMessage(`{}`),
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Recertify != nil || updated.ProgramID2 != nil {
		t.Errorf("got recertify %v programid2 %v, want cleared", updated.Recertify, updated.ProgramID2)
	}
}

func TestArchiveSyncsPrograms(t *testing.T) {
	sys, _, programs := newSystem(t)
	ctx := context.Background()
	c := create(t, sys, "C-3")

	archived, err := sys.Archive(ctx, c.ID)
	if err != nil {
		t.Fatalf("Archive: %v", err)
	}
	if !archived.Archived {
		t.Error("certification not archived")
	}
	if _, err := sys.Archive(ctx, c.ID); err != nil {
		t.Fatalf("second Archive: %v", err)
	}
	if got := programs.Syncs(); got != 1 {
		t.Errorf("got %d syncs, want 1", got)
	}

	restored, err := sys.Restore(ctx, c.ID)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if restored.Archived {
		t.Error("certification still archived")
	}
}

func TestDeleteRefusesAssigned(t *testing.T) {
	sys, s, _ := newSystem(t)
	ctx := context.Background()
	c := create(t, sys, "C-4")

	src := certification.Source{ID: uuid.New(), CertificationID: c.ID, Type: certification.SourceManual}
	if err := s.InsertSource(ctx, &src); err != nil {
		t.Fatalf("insert source: %v", err)
	}
	a := certification.Assignment{ID: uuid.New(), CertificationID: c.ID, UserID: 1, SourceID: src.ID}
	if err := s.InsertAssignment(ctx, &a); err != nil {
		t.Fatalf("insert assignment: %v", err)
	}

	if err := sys.Delete(ctx, c.ID); !errors.Is(err, certification.ErrHasAssignments) {
		t.Fatalf("got %v, want ErrHasAssignments", err)
	}

	if err := s.DeleteAssignment(ctx, a.ID); err != nil {
		t.Fatalf("delete assignment: %v", err)
	}
	if err := sys.Delete(ctx, c.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := sys.Find(ctx, c.ID); !errors.Is(err, certification.ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}

func TestSaveNotification(t *testing.T) {
	sys, _, _ := newSystem(t)
	ctx := context.Background()
	c := create(t, sys, "C-5")

	if _, err := sys.SaveNotification(ctx, c.ID, certifications.NotificationCommand{Kind: "reminder", Enabled: true, Subject: "x"}); !errors.Is(err, certification.ErrValidation) {
		t.Errorf("got %v, want ErrValidation for unknown kind", err)
	}
	if _, err := sys.SaveNotification(ctx, c.ID, certifications.NotificationCommand{Kind: certification.NotifyValid, Enabled: true}); !errors.Is(err, certification.ErrValidation) {
		t.Errorf("got %v, want ErrValidation for missing subject", err)
	}

	if _, err := sys.SaveNotification(ctx, c.ID, certifications.NotificationCommand{
		Kind:    certification.NotifyValid,
		Enabled: true,
		Subject: "Certified: {certification_fullname}",
	}); err != nil {
		t.Fatalf("SaveNotification: %v", err)
	}

	configs, err := sys.Notifications(ctx, c.ID)
	if err != nil {
		t.Fatalf("Notifications: %v", err)
	}
	if len(configs) != 1 || configs[0].Kind != certification.NotifyValid {
		t.Errorf("got %+v, want one valid config", configs)
	}
}

func TestHandler(t *testing.T) {
	sys, _, _ := newSystem(t)
	for _, id := range []string{"H-1", "H-2", "H-3"} {
		create(t, sys, id)
	}

	mux := http.NewServeMux()
	routes.Register(mux, sys.Handler().Routes())

	t.Run("list is paginated", func(t *testing.T) {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/certifications?page=2", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("got %d, want 200", rec.Code)
		}

		var result pagination.PageResult[certification.Certification]
		if err := json.NewDecoder(rec.Body).Decode(&result); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if result.Total != 3 || len(result.Data) != 1 {
			t.Errorf("got total %d len %d, want 3 and 1", result.Total, len(result.Data))
		}
	})

	t.Run("create validation maps to 400", func(t *testing.T) {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/certifications", strings.NewReader(`{"fullname":"x"}`)))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("got %d, want 400", rec.Code)
		}
	})

	t.Run("unknown id maps to 404", func(t *testing.T) {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/certifications/"+uuid.NewString(), nil))
		if rec.Code != http.StatusNotFound {
			t.Errorf("got %d, want 404", rec.Code)
		}
	})

	t.Run("malformed id maps to 400", func(t *testing.T) {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/certifications/nope", nil))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("got %d, want 400", rec.Code)
		}
	})
}
