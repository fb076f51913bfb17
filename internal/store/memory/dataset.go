package memory

import (
	"maps"

	"github.com/google/uuid"

	"github.com/JaimeStill/certify/internal/certification"
)

// User is a directory entry of the in-memory user mirror.
type User struct {
	ID        int64
	Deleted   bool
	Suspended bool
	Guest     bool
}

type configKey struct {
	certificationID uuid.UUID
	kind            certification.NotificationKind
}

type sendKey struct {
	kind         certification.NotificationKind
	assignmentID uuid.UUID
	periodID     uuid.UUID
}

// dataset is one committed version of the store. A committed dataset is
// never mutated; transactions work on a clone.
type dataset struct {
	certifications map[uuid.UUID]certification.Certification
	sources        map[uuid.UUID]certification.Source
	assignments    map[uuid.UUID]certification.Assignment
	periods        map[uuid.UUID]certification.Period
	requests       map[uuid.UUID]certification.Request
	snapshots      []certification.Snapshot
	configs        map[configKey]certification.NotificationConfig
	sends          map[sendKey]certification.NotificationSend
	users          map[int64]User
	cohorts        map[int64]map[int64]bool
}

func newDataset() *dataset {
	return &dataset{
		certifications: make(map[uuid.UUID]certification.Certification),
		sources:        make(map[uuid.UUID]certification.Source),
		assignments:    make(map[uuid.UUID]certification.Assignment),
		periods:        make(map[uuid.UUID]certification.Period),
		requests:       make(map[uuid.UUID]certification.Request),
		configs:        make(map[configKey]certification.NotificationConfig),
		sends:          make(map[sendKey]certification.NotificationSend),
		users:          make(map[int64]User),
		cohorts:        make(map[int64]map[int64]bool),
	}
}

// clone copies every table. Entity values are copied by value; their
// pointer fields are replaced, never written through, by the queries.
func (d *dataset) clone() *dataset {
	cohorts := make(map[int64]map[int64]bool, len(d.cohorts))
	for id, members := range d.cohorts {
		cohorts[id] = maps.Clone(members)
	}

	return &dataset{
		certifications: maps.Clone(d.certifications),
		sources:        maps.Clone(d.sources),
		assignments:    maps.Clone(d.assignments),
		periods:        maps.Clone(d.periods),
		requests:       maps.Clone(d.requests),
		snapshots:      append([]certification.Snapshot(nil), d.snapshots...),
		configs:        maps.Clone(d.configs),
		sends:          maps.Clone(d.sends),
		users:          maps.Clone(d.users),
		cohorts:        cohorts,
	}
}
