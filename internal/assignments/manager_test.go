package assignments_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/certify/internal/assignments"
	"github.com/JaimeStill/certify/internal/certification"
	"github.com/JaimeStill/certify/internal/events"
	"github.com/JaimeStill/certify/internal/external/externaltest"
	"github.com/JaimeStill/certify/internal/notifications"
	"github.com/JaimeStill/certify/internal/periods"
	"github.com/JaimeStill/certify/internal/store"
	"github.com/JaimeStill/certify/internal/store/memory"
	"github.com/JaimeStill/certify/pkg/dates"
	"github.com/JaimeStill/certify/pkg/pagination"
)

var start = time.Date(2026, time.February, 2, 14, 0, 0, 0, time.UTC)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type fixture struct {
	store     *memory.Store
	clock     *clock
	engine    *periods.Engine
	manager   *assignments.Manager
	events    *events.Recorder
	messenger *externaltest.Messenger
	cert      certification.Certification
	source    certification.Source
}

func newFixture(t *testing.T, kinds ...certification.NotificationKind) *fixture {
	t.Helper()
	ctx := context.Background()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f := &fixture{
		store:     memory.New(),
		clock:     &clock{now: start},
		events:    &events.Recorder{},
		messenger: &externaltest.Messenger{},
	}
	f.engine = periods.New(f.store, &externaltest.Programs{}, &externaltest.Certificates{}, f.events, logger, periods.WithClock(f.clock.Now))
	notifier := notifications.New(f.store, f.messenger, logger, notifications.WithClock(f.clock.Now))
	f.manager = assignments.New(f.store, f.engine, notifier, f.events, logger, pagination.Config{DefaultPageSize: 10, MaxPageSize: 50})

	year := dates.MustParse("P1Y")
	settings := certification.DefaultSettings()
	settings.Expiration1 = certification.Policy{Since: certification.SinceCertified, Delay: &year}

	f.cert = certification.Certification{
		ID:         uuid.New(),
		Fullname:   "Forklift operation",
		IDNumber:   "FL-1",
		ProgramID1: 3,
		Settings:   settings,
	}
	if err := f.store.InsertCertification(ctx, &f.cert); err != nil {
		t.Fatalf("insert certification: %v", err)
	}

	f.source = certification.Source{ID: uuid.New(), CertificationID: f.cert.ID, Type: certification.SourceManual}
	if err := f.store.InsertSource(ctx, &f.source); err != nil {
		t.Fatalf("insert source: %v", err)
	}

	for _, kind := range kinds {
		cfg := certification.NotificationConfig{
			CertificationID: f.cert.ID,
			Kind:            kind,
			Enabled:         true,
			Subject:         string(kind),
			Body:            "{certification_fullname}",
		}
		if err := f.store.SaveNotificationConfig(ctx, &cfg); err != nil {
			t.Fatalf("save config: %v", err)
		}
	}
	return f
}

func (f *fixture) assign(t *testing.T, userID int64) *certification.Assignment {
	t.Helper()
	a, created, err := f.manager.Assign(context.Background(), assignments.AssignCommand{
		CertificationID: f.cert.ID,
		SourceID:        f.source.ID,
		UserID:          userID,
	})
	if err != nil {
		t.Fatalf("Assign: %v", err)
	}
	if !created {
		t.Fatalf("user %d already assigned", userID)
	}
	return a
}

func (f *fixture) periods(t *testing.T, userID int64) []certification.Period {
	t.Helper()
	ps, err := f.store.ListPeriods(context.Background(), store.PeriodFilter{CertificationID: &f.cert.ID, UserID: &userID})
	if err != nil {
		t.Fatalf("list periods: %v", err)
	}
	return ps
}

func TestAssignCreatesFirstPeriod(t *testing.T) {
	f := newFixture(t, certification.NotifyAssignment)
	a := f.assign(t, 11)

	ps := f.periods(t, 11)
	if len(ps) != 1 {
		t.Fatalf("got %d periods, want 1", len(ps))
	}
	p := ps[0]
	if !p.First || p.ProgramID != 3 || p.TimeCertified != nil {
		t.Errorf("got %+v, want uncertified first period of program 3", p)
	}
	if !p.TimeWindowStart.Equal(start) {
		t.Errorf("got window start %v, want %v", p.TimeWindowStart, start)
	}

	if got := f.events.Count(events.Assigned); got != 1 {
		t.Errorf("got %d assigned events, want 1", got)
	}
	if got := f.messenger.Count(certification.NotifyAssignment); got != 1 {
		t.Errorf("got %d assignment messages, want 1", got)
	}

	snaps, err := f.manager.Snapshots(context.Background(), a.ID)
	if err != nil {
		t.Fatalf("Snapshots: %v", err)
	}
	if len(snaps) != 1 || snaps[0].Reason != certification.ReasonAssigned {
		t.Errorf("got %+v, want one assigned snapshot", snaps)
	}

	t.Run("second assign returns existing", func(t *testing.T) {
		again, created, err := f.manager.Assign(context.Background(), assignments.AssignCommand{
			CertificationID: f.cert.ID,
			SourceID:        f.source.ID,
			UserID:          11,
		})
		if err != nil {
			t.Fatalf("Assign: %v", err)
		}
		if created || again.ID != a.ID {
			t.Errorf("got created %v id %s, want existing %s", created, again.ID, a.ID)
		}
		if got := len(f.periods(t, 11)); got != 1 {
			t.Errorf("got %d periods, want 1", got)
		}
	})
}

func TestAssignIsSingleUnderConcurrency(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const workers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
		ids     = make(map[uuid.UUID]bool)
	)

	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a, ok, err := f.manager.Assign(ctx, assignments.AssignCommand{
				CertificationID: f.cert.ID,
				SourceID:        f.source.ID,
				UserID:          21,
			})
			if err != nil {
				t.Errorf("Assign: %v", err)
				return
			}
			mu.Lock()
			defer mu.Unlock()
			ids[a.ID] = true
			if ok {
				created++
			}
		}()
	}
	wg.Wait()

	if created != 1 {
		t.Errorf("got %d created, want 1", created)
	}
	if len(ids) != 1 {
		t.Errorf("got %d distinct assignments, want 1", len(ids))
	}
	if got := len(f.periods(t, 21)); got != 1 {
		t.Errorf("got %d periods, want 1", got)
	}
}

func TestAssignRejects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	t.Run("foreign source", func(t *testing.T) {
		other := certification.Certification{ID: uuid.New(), Fullname: "Other", ProgramID1: 9, Settings: certification.DefaultSettings()}
		if err := f.store.InsertCertification(ctx, &other); err != nil {
			t.Fatalf("insert certification: %v", err)
		}
		_, _, err := f.manager.Assign(ctx, assignments.AssignCommand{CertificationID: other.ID, SourceID: f.source.ID, UserID: 1})
		if !errors.Is(err, certification.ErrInvariant) {
			t.Errorf("got %v, want ErrInvariant", err)
		}
	})

	t.Run("archived certification", func(t *testing.T) {
		c := f.cert
		c.Archived = true
		if err := f.store.UpdateCertification(ctx, &c); err != nil {
			t.Fatalf("update certification: %v", err)
		}
		defer func() {
			c.Archived = false
			if err := f.store.UpdateCertification(ctx, &c); err != nil {
				t.Fatalf("update certification: %v", err)
			}
		}()

		_, _, err := f.manager.Assign(ctx, assignments.AssignCommand{CertificationID: f.cert.ID, SourceID: f.source.ID, UserID: 2})
		if !errors.Is(err, certification.ErrArchived) {
			t.Errorf("got %v, want ErrArchived", err)
		}
	})

	t.Run("within hook aborts", func(t *testing.T) {
		boom := errors.New("boom")
		_, _, err := f.manager.Assign(ctx, assignments.AssignCommand{CertificationID: f.cert.ID, SourceID: f.source.ID, UserID: 3},
			func(context.Context, store.Tx, *certification.Assignment) error { return boom })
		if !errors.Is(err, boom) {
			t.Fatalf("got %v, want boom", err)
		}
		if _, err := f.store.FindAssignment(ctx, f.cert.ID, 3); !errors.Is(err, certification.ErrNotFound) {
			t.Errorf("got %v, want no assignment", err)
		}
	})
}

func TestStatusLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.assign(t, 31)

	status := func(t *testing.T) *assignments.View {
		t.Helper()
		v, err := f.manager.Status(ctx, a.ID)
		if err != nil {
			t.Fatalf("Status: %v", err)
		}
		return v
	}

	if v := status(t); v.Status != certification.StatusNotCertified || v.Periods[0].State != certification.StatePending {
		t.Fatalf("got %s/%s, want notcertified/pending", v.Status, v.Periods[0].State)
	}

	certifiedAt := start.Add(48 * time.Hour)
	f.clock.Set(certifiedAt)
	if _, err := f.engine.Complete(ctx, periods.Completion{ProgramID: 3, UserID: 31, At: certifiedAt}); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	v := status(t)
	if v.Status != certification.StatusValid {
		t.Errorf("got %s, want valid", v.Status)
	}
	want := certifiedAt.AddDate(1, 0, 0)
	if until := v.Periods[0].TimeUntil; until == nil || !until.Equal(want) {
		t.Errorf("got until %v, want %v", until, want)
	}

	f.clock.Set(want.Add(time.Second))
	if v := status(t); v.Status != certification.StatusExpired || v.Periods[0].State != certification.StateExpired {
		t.Errorf("got %s/%s, want expired/expired", v.Status, v.Periods[0].State)
	}

	t.Run("temporary override", func(t *testing.T) {
		until := f.clock.Now().Add(24 * time.Hour)
		if _, err := f.manager.SetOverride(ctx, a.ID, &until, nil); err != nil {
			t.Fatalf("SetOverride: %v", err)
		}
		if v := status(t); v.Status != certification.StatusTemporary {
			t.Errorf("got %s, want temporary", v.Status)
		}
	})
}

func TestStatusTemporary(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.assign(t, 32)

	until := start.Add(72 * time.Hour)
	if _, err := f.manager.SetOverride(ctx, a.ID, &until, nil); err != nil {
		t.Fatalf("SetOverride: %v", err)
	}

	v, err := f.manager.Status(ctx, a.ID)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if v.Status != certification.StatusTemporary {
		t.Errorf("got %s, want temporary", v.Status)
	}

	f.clock.Set(until)
	v, err = f.manager.Status(ctx, a.ID)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if v.Status != certification.StatusExpired {
		t.Errorf("got %s, want expired", v.Status)
	}
}

func TestArchiveRestore(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.assign(t, 41)

	archived, err := f.manager.Archive(ctx, a.ID, nil)
	if err != nil {
		t.Fatalf("Archive: %v", err)
	}
	if !archived.Archived {
		t.Fatal("assignment not archived")
	}

	v, err := f.manager.Status(ctx, a.ID)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if v.Status != certification.StatusArchived || v.Periods[0].State != certification.StateArchived {
		t.Errorf("got %s/%s, want archived/archived", v.Status, v.Periods[0].State)
	}

	if _, err := f.manager.Archive(ctx, a.ID, nil); err != nil {
		t.Fatalf("second Archive: %v", err)
	}

	restored, err := f.manager.Restore(ctx, a.ID, nil)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if restored.Archived || restored.ID != a.ID {
		t.Errorf("got %+v, want the same active assignment", restored)
	}

	snaps, err := f.manager.Snapshots(ctx, a.ID)
	if err != nil {
		t.Fatalf("Snapshots: %v", err)
	}
	reasons := make([]string, len(snaps))
	for i, s := range snaps {
		reasons[i] = s.Reason
	}
	want := []string{certification.ReasonAssigned, certification.ReasonArchived, certification.ReasonRestored}
	if len(reasons) != len(want) {
		t.Fatalf("got %v, want %v", reasons, want)
	}
	for i := range want {
		if reasons[i] != want[i] {
			t.Errorf("got %v, want %v", reasons, want)
			break
		}
	}
}

func TestUnassign(t *testing.T) {
	f := newFixture(t, certification.NotifyUnassignment)
	ctx := context.Background()
	a := f.assign(t, 51)

	if err := f.manager.Unassign(ctx, a.ID, nil); err != nil {
		t.Fatalf("Unassign: %v", err)
	}

	if _, err := f.store.GetAssignment(ctx, a.ID); !errors.Is(err, certification.ErrNotFound) {
		t.Errorf("got %v, want assignment deleted", err)
	}
	if got := len(f.periods(t, 51)); got != 0 {
		t.Errorf("got %d periods, want 0", got)
	}
	if got := f.messenger.Count(certification.NotifyUnassignment); got != 1 {
		t.Errorf("got %d unassignment messages, want 1", got)
	}

	var unassigned *events.Event
	for _, e := range f.events.Events() {
		if e.Kind == events.Unassigned {
			unassigned = &e
		}
	}
	if unassigned == nil || unassigned.Snapshot == nil {
		t.Fatal("unassigned event without snapshot")
	}
	if unassigned.Snapshot.Reason != certification.ReasonUnassigned || unassigned.Snapshot.AssignmentID != a.ID {
		t.Errorf("got snapshot %+v, want unassigned snapshot of %s", unassigned.Snapshot, a.ID)
	}

	t.Run("user can be assigned again", func(t *testing.T) {
		again := f.assign(t, 51)
		if again.ID == a.ID {
			t.Error("got the deleted assignment id")
		}
	})
}

func TestUnassignUserRejectsMismatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.assign(t, 61)

	other := certification.Source{ID: uuid.New(), CertificationID: f.cert.ID, Type: certification.SourceCohort}
	err := f.manager.UnassignUser(ctx, f.cert, other, *a, nil)
	if !errors.Is(err, certification.ErrInvariant) {
		t.Fatalf("got %v, want ErrInvariant", err)
	}
	if _, err := f.store.GetAssignment(ctx, a.ID); err != nil {
		t.Errorf("assignment removed: %v", err)
	}
}

func TestPage(t *testing.T) {
	f := newFixture(t)
	for user := int64(70); user < 75; user++ {
		f.assign(t, user)
	}

	result, err := f.manager.Page(context.Background(), f.cert.ID, store.AssignmentFilter{}, pagination.PageRequest{Page: 1, PageSize: 2})
	if err != nil {
		t.Fatalf("Page: %v", err)
	}
	if result.Total != 5 || len(result.Data) != 2 {
		t.Errorf("got total %d len %d, want 5 and 2", result.Total, len(result.Data))
	}
	for _, v := range result.Data {
		if v.Status != certification.StatusNotCertified || len(v.Periods) != 1 {
			t.Errorf("got %+v, want notcertified with one period", v)
		}
	}
}
