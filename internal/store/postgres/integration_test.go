//go:build integration

package postgres_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/JaimeStill/certify/internal/certification"
	"github.com/JaimeStill/certify/internal/store"
	"github.com/JaimeStill/certify/internal/store/postgres"
	"github.com/JaimeStill/certify/migrations"
	"github.com/JaimeStill/certify/pkg/dates"
)

func startPostgres(t *testing.T) *sql.DB {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:17-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "certify",
				"POSTGRES_PASSWORD": "certify",
				"POSTGRES_DB":       "certify",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("start postgres: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("terminate postgres: %v", err)
		}
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}

	dsn := fmt.Sprintf("postgres://certify:certify@%s:%s/certify?sslmode=disable", host, port.Port())
	if err := migrations.Up(dsn); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestIntegrationLifecycle(t *testing.T) {
	db := startPostgres(t)
	s := postgres.New(db)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	lead := int64(3600)
	c := certification.Certification{
		ID:         uuid.New(),
		Fullname:   "Working at height",
		IDNumber:   "WAH-1",
		Public:     true,
		ProgramID1: 10,
		CohortIDs:  []int64{3},
		Settings:   certification.DefaultSettings(),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	year := dates.MustParse("P1Y")
	c.Settings.Expiration1 = certification.Policy{Since: certification.SinceCertified, Delay: &year}
	c.Settings.Recertify = &lead
	if err := s.InsertCertification(ctx, &c); err != nil {
		t.Fatalf("insert certification: %v", err)
	}

	src := certification.Source{ID: uuid.New(), CertificationID: c.ID, Type: certification.SourceManual, CreatedAt: now}
	if err := s.InsertSource(ctx, &src); err != nil {
		t.Fatalf("insert source: %v", err)
	}

	t.Run("one assignment per user under contention", func(t *testing.T) {
		var wg sync.WaitGroup
		errs := make([]error, 8)
		for i := range errs {
			wg.Go(func() {
				errs[i] = s.WithTx(ctx, func(tx store.Tx) error {
					return tx.InsertAssignment(ctx, &certification.Assignment{
						ID:              uuid.New(),
						CertificationID: c.ID,
						UserID:          77,
						SourceID:        src.ID,
						CreatedAt:       now,
					})
				})
			})
		}
		wg.Wait()

		inserted := 0
		for _, err := range errs {
			switch {
			case err == nil:
				inserted++
			case !errors.Is(err, certification.ErrDuplicate):
				t.Errorf("unexpected error: %v", err)
			}
		}
		if inserted != 1 {
			t.Errorf("inserted %d, want 1", inserted)
		}
	})

	t.Run("recertification candidates", func(t *testing.T) {
		until := now.Add(30 * time.Minute)
		p := certification.Period{
			ID:              uuid.New(),
			CertificationID: c.ID,
			UserID:          77,
			ProgramID:       10,
			TimeWindowStart: now.AddDate(0, -1, 0),
			TimeCertified:   &now,
			TimeFrom:        &now,
			TimeUntil:       &until,
			First:           true,
			Recertifiable:   true,
			CreatedAt:       now,
		}
		if err := s.InsertPeriod(ctx, &p); err != nil {
			t.Fatalf("insert period: %v", err)
		}

		got, err := s.RecertificationCandidates(ctx, store.Scope{CertificationID: &c.ID}, now)
		if err != nil {
			t.Fatalf("candidates: %v", err)
		}
		if len(got) != 1 || got[0].ID != p.ID {
			t.Fatalf("got %v, want period %s", got, p.ID)
		}
	})

	t.Run("notification sends dedupe", func(t *testing.T) {
		a, err := s.FindAssignment(ctx, c.ID, 77)
		if err != nil {
			t.Fatalf("find assignment: %v", err)
		}

		send := certification.NotificationSend{Kind: certification.NotifyAssignment, UserID: 77, AssignmentID: a.ID, TimeSent: now}
		if err := s.InsertNotificationSend(ctx, send); err != nil {
			t.Fatalf("first send: %v", err)
		}
		if err := s.InsertNotificationSend(ctx, send); !errors.Is(err, certification.ErrDuplicate) {
			t.Errorf("got %v, want ErrDuplicate", err)
		}
	})

	t.Run("delete certification with assignments", func(t *testing.T) {
		if err := s.DeleteCertification(ctx, c.ID); !errors.Is(err, certification.ErrHasAssignments) {
			t.Errorf("got %v, want ErrHasAssignments", err)
		}
	})
}
