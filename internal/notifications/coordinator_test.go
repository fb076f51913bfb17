package notifications_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/certify/internal/certification"
	"github.com/JaimeStill/certify/internal/external/externaltest"
	"github.com/JaimeStill/certify/internal/notifications"
	"github.com/JaimeStill/certify/internal/store"
	"github.com/JaimeStill/certify/internal/store/memory"
)

var now = time.Date(2026, time.June, 1, 10, 0, 0, 0, time.UTC)

type fixture struct {
	store     *memory.Store
	messenger *externaltest.Messenger
	cert      certification.Certification
	source    certification.Source
}

func newFixture(t *testing.T, kinds ...certification.NotificationKind) *fixture {
	t.Helper()
	ctx := context.Background()

	f := &fixture{store: memory.New(), messenger: &externaltest.Messenger{}}

	f.cert = certification.Certification{
		ID:         uuid.New(),
		Fullname:   "First aid",
		IDNumber:   "FA-1",
		ProgramID1: 1,
		Settings:   certification.DefaultSettings(),
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
			Subject:         string(kind) + ": {certification_fullname}",
			Body:            "User {user_id} valid until {time_until}",
		}
		if err := f.store.SaveNotificationConfig(ctx, &cfg); err != nil {
			t.Fatalf("save config: %v", err)
		}
	}
	return f
}

func (f *fixture) coordinator(opts ...notifications.Option) *notifications.Coordinator {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	opts = append([]notifications.Option{notifications.WithClock(func() time.Time { return now })}, opts...)
	return notifications.New(f.store, f.messenger, logger, opts...)
}

func (f *fixture) assign(t *testing.T, userID int64, archived bool) certification.Assignment {
	t.Helper()
	a := certification.Assignment{
		ID:              uuid.New(),
		CertificationID: f.cert.ID,
		UserID:          userID,
		SourceID:        f.source.ID,
		Archived:        archived,
		CreatedAt:       now,
	}
	if err := f.store.InsertAssignment(context.Background(), &a); err != nil {
		t.Fatalf("insert assignment: %v", err)
	}
	return a
}

func (f *fixture) period(t *testing.T, userID int64, certified bool) certification.Period {
	t.Helper()
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
		at := now.AddDate(0, 0, -7)
		until := time.Date(2027, time.June, 1, 0, 0, 0, 0, time.UTC)
		p.TimeCertified, p.TimeFrom, p.TimeUntil = &at, &at, &until
	}
	if err := f.store.InsertPeriod(context.Background(), &p); err != nil {
		t.Fatalf("insert period: %v", err)
	}
	return p
}

func TestTriggerSendsOnce(t *testing.T) {
	f := newFixture(t, certification.NotifyAssignment)
	c := f.coordinator()
	ctx := context.Background()
	f.assign(t, 7, false)

	r, err := c.Trigger(ctx, store.Scope{})
	if err != nil {
		t.Fatalf("Trigger: %v", err)
	}
	if r.Sent[certification.NotifyAssignment] != 1 {
		t.Errorf("got %d sent, want 1", r.Sent[certification.NotifyAssignment])
	}

	msgs := f.messenger.Messages()
	if len(msgs) != 1 || msgs[0].Subject != "assignment: First aid" {
		t.Fatalf("got %+v, want one rendered assignment message", msgs)
	}

	r, err = c.Trigger(ctx, store.Scope{})
	if err != nil {
		t.Fatalf("second Trigger: %v", err)
	}
	if r.Sent[certification.NotifyAssignment] != 0 {
		t.Errorf("got %d sent on second pass, want 0", r.Sent[certification.NotifyAssignment])
	}
}

func TestTriggerRequiresEnabledConfig(t *testing.T) {
	f := newFixture(t)
	f.assign(t, 7, false)

	if _, err := f.coordinator().Trigger(context.Background(), store.Scope{}); err != nil {
		t.Fatalf("Trigger: %v", err)
	}
	if n := len(f.messenger.Messages()); n != 0 {
		t.Errorf("got %d messages, want 0", n)
	}
}

func TestTriggerValidPerPeriod(t *testing.T) {
	f := newFixture(t, certification.NotifyValid)
	c := f.coordinator()
	ctx := context.Background()

	f.assign(t, 7, false)
	f.period(t, 7, true)
	f.assign(t, 8, false)
	f.period(t, 8, false)

	if _, err := c.Trigger(ctx, store.Scope{}); err != nil {
		t.Fatalf("Trigger: %v", err)
	}

	msgs := f.messenger.Messages()
	if len(msgs) != 1 || msgs[0].UserID != 7 {
		t.Fatalf("got %d messages, want one for user 7", len(msgs))
	}
	if msgs[0].Body != "User 7 valid until 1 June 2027" {
		t.Errorf("got body %q", msgs[0].Body)
	}
	if msgs[0].Period == nil {
		t.Error("valid message carries no period")
	}
}

func TestTriggerRetriesFailedDelivery(t *testing.T) {
	f := newFixture(t, certification.NotifyUnassignment)
	c := f.coordinator()
	ctx := context.Background()
	f.assign(t, 7, true)

	f.messenger.Err = errors.New("smtp down")
	r, err := c.Trigger(ctx, store.Scope{})
	if err != nil {
		t.Fatalf("Trigger: %v", err)
	}
	if r.Failed != 1 {
		t.Errorf("got %d failed, want 1", r.Failed)
	}

	f.messenger.Err = nil
	r, err = c.Trigger(ctx, store.Scope{})
	if err != nil {
		t.Fatalf("Trigger: %v", err)
	}
	if r.Sent[certification.NotifyUnassignment] != 1 {
		t.Errorf("got %d sent after recovery, want 1", r.Sent[certification.NotifyUnassignment])
	}
}

func TestTriggerScope(t *testing.T) {
	f := newFixture(t, certification.NotifyAssignment)
	f.assign(t, 7, false)
	f.assign(t, 8, false)

	user := int64(8)
	if _, err := f.coordinator().Trigger(context.Background(), store.Scope{UserID: &user}); err != nil {
		t.Fatalf("Trigger: %v", err)
	}

	msgs := f.messenger.Messages()
	if len(msgs) != 1 || msgs[0].UserID != 8 {
		t.Errorf("got %+v, want only user 8", msgs)
	}
}

func TestNotifyAssignedIsRecorded(t *testing.T) {
	f := newFixture(t, certification.NotifyAssignment)
	c := f.coordinator()
	ctx := context.Background()
	a := f.assign(t, 7, false)

	if err := c.NotifyAssigned(ctx, f.cert, f.source, a); err != nil {
		t.Fatalf("NotifyAssigned: %v", err)
	}
	if _, err := c.Trigger(ctx, store.Scope{}); err != nil {
		t.Fatalf("Trigger: %v", err)
	}
	if n := f.messenger.Count(certification.NotifyAssignment); n != 1 {
		t.Errorf("got %d assignment messages, want 1", n)
	}
}

func TestSendUnassignmentIgnoresMessengerFailure(t *testing.T) {
	f := newFixture(t, certification.NotifyUnassignment)
	c := f.coordinator()
	ctx := context.Background()
	a := f.assign(t, 7, false)

	f.messenger.Err = errors.New("smtp down")
	err := f.store.WithTx(ctx, func(tx store.Tx) error {
		return c.SendUnassignment(ctx, tx, f.cert, f.source, a)
	})
	if err != nil {
		t.Errorf("got %v, want nil", err)
	}
}

func TestSendUnassignmentIsNotThrottled(t *testing.T) {
	f := newFixture(t, certification.NotifyAssignment, certification.NotifyUnassignment)
	f.assign(t, 7, false)
	a := f.assign(t, 8, true)

	c := f.coordinator(notifications.WithRate(0.001, 1))
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if _, err := c.Trigger(ctx, store.Scope{UserID: ptr(int64(7))}); err != nil {
		t.Fatalf("Trigger: %v", err)
	}

	err := f.store.WithTx(ctx, func(tx store.Tx) error {
		return c.SendUnassignment(ctx, tx, f.cert, f.source, a)
	})
	if err != nil {
		t.Fatalf("got %v, want nil", err)
	}
	if n := f.messenger.Count(certification.NotifyUnassignment); n != 1 {
		t.Errorf("got %d unassignment messages, want 1", n)
	}
}

func TestTriggerIsThrottled(t *testing.T) {
	f := newFixture(t, certification.NotifyAssignment)
	f.assign(t, 7, false)
	f.assign(t, 8, false)

	c := f.coordinator(notifications.WithRate(0.001, 1))
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	r, err := c.Trigger(ctx, store.Scope{})
	if err != nil {
		t.Fatalf("Trigger: %v", err)
	}
	if r.Sent[certification.NotifyAssignment] != 1 || r.Failed != 1 {
		t.Errorf("got %+v, want one sent and one throttled", r)
	}
}

func ptr[T any](v T) *T {
	return &v
}
