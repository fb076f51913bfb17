package api

import (
	"fmt"

	"github.com/JaimeStill/certify/internal/assignments"
	"github.com/JaimeStill/certify/internal/certificates"
	"github.com/JaimeStill/certify/internal/certifications"
	"github.com/JaimeStill/certify/internal/events"
	"github.com/JaimeStill/certify/internal/external"
	"github.com/JaimeStill/certify/internal/job"
	"github.com/JaimeStill/certify/internal/notifications"
	"github.com/JaimeStill/certify/internal/periods"
	"github.com/JaimeStill/certify/internal/sources"
)

// Domain holds all domain systems that comprise the API.
type Domain struct {
	Certifications certifications.System
	Sources        *sources.Registry
	Assignments    *assignments.Manager
	Periods        *periods.Engine
	Notifications  *notifications.Coordinator
	Certificates   *certificates.Issuer
	Job            *job.Job

	// Documents is nil when no blob storage is configured.
	Documents *certificates.BlobIssuer
}

// NewDomain creates all domain systems from the API runtime. Certificates
// are written to blob storage when it is configured and only logged
// otherwise.
func NewDomain(runtime *Runtime) (*Domain, error) {
	logger := runtime.Logger
	loc := runtime.Job.Location()

	programs := external.NewLogPrograms(logger)
	emitter := events.NewLogEmitter(logger)

	var (
		certs     external.Certificates = external.NewLogCertificates(logger)
		documents *certificates.BlobIssuer
	)
	if runtime.Storage != nil {
		documents = certificates.NewBlobIssuer(runtime.Storage, logger, runtime.Now)
		certs = documents
	}

	engine := periods.New(
		runtime.Store,
		programs,
		certs,
		emitter,
		logger,
		periods.WithClock(runtime.Now),
		periods.WithLocation(loc),
	)

	coordinator := notifications.New(
		runtime.Store,
		external.NewLogMessenger(logger),
		logger,
		notifications.WithClock(runtime.Now),
		notifications.WithLocation(loc),
		notifications.WithRate(runtime.Job.NotificationRate, runtime.Job.NotificationBurst),
	)

	manager := assignments.New(
		runtime.Store,
		engine,
		coordinator,
		emitter,
		logger,
		runtime.Pagination,
	)

	registry := sources.NewRegistry(runtime.Store, manager, logger)
	issuer := certificates.NewIssuer(runtime.Store, certs, logger)

	j, err := job.New(job.Deps{
		Sources:       registry,
		Programs:      programs,
		Notifications: coordinator,
		Periods:       engine,
		Certificates:  issuer,
	}, logger, runtime.Metrics.Registerer())
	if err != nil {
		return nil, fmt.Errorf("job init failed: %w", err)
	}

	return &Domain{
		Certifications: certifications.New(runtime.Store, programs, logger, runtime.Pagination, runtime.Now),
		Sources:        registry,
		Assignments:    manager,
		Periods:        engine,
		Notifications:  coordinator,
		Certificates:   issuer,
		Job:            j,
		Documents:      documents,
	}, nil
}
