package postgres

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/JaimeStill/certify/internal/certification"
	"github.com/JaimeStill/certify/pkg/query"
	"github.com/JaimeStill/certify/pkg/repository"
)

var certificationProjection = query.
	NewProjectionMap("public", "certifications", "c").
	Project("id", "ID").
	Project("context_id", "ContextID").
	Project("fullname", "Fullname").
	Project("idnumber", "IDNumber").
	Project("description", "Description").
	Project("public", "Public").
	Project("cohort_ids", "CohortIDs").
	Project("archived", "Archived").
	Project("program_id1", "ProgramID1").
	Project("program_id2", "ProgramID2").
	Project("template_id", "TemplateID").
	Project("recertify", "Recertify").
	Project("settings", "Settings").
	Project("created_at", "CreatedAt").
	Project("updated_at", "UpdatedAt")

var sourceProjection = query.
	NewProjectionMap("public", "sources", "s").
	Project("id", "ID").
	Project("certification_id", "CertificationID").
	Project("type", "Type").
	Project("settings", "Settings").
	Project("created_at", "CreatedAt")

var assignmentProjection = query.
	NewProjectionMap("public", "assignments", "a").
	Project("id", "ID").
	Project("certification_id", "CertificationID").
	Project("user_id", "UserID").
	Project("source_id", "SourceID").
	Project("source_data", "SourceData").
	Project("archived", "Archived").
	Project("time_certified_until", "TimeCertifiedUntil").
	Project("evidence", "Evidence").
	Project("created_at", "CreatedAt")

var periodProjection = newPeriodProjection()

// periodCandidateProjection selects periods together with the
// certification and assignment they belong to, for batch filters.
var periodCandidateProjection = newPeriodProjection().
	Join("public", "certifications", "c", "JOIN", "c.id = p.certification_id").
	Filter("c.archived", "CertificationArchived").
	Filter("c.template_id", "TemplateID").
	Join("public", "assignments", "a", "JOIN", "a.certification_id = p.certification_id AND a.user_id = p.user_id").
	Filter("a.archived", "AssignmentArchived")

func newPeriodProjection() *query.ProjectionMap {
	return query.
		NewProjectionMap("public", "periods", "p").
		Project("id", "ID").
		Project("certification_id", "CertificationID").
		Project("user_id", "UserID").
		Project("program_id", "ProgramID").
		Project("time_window_start", "TimeWindowStart").
		Project("time_window_due", "TimeWindowDue").
		Project("time_window_end", "TimeWindowEnd").
		Project("time_certified", "TimeCertified").
		Project("time_from", "TimeFrom").
		Project("time_until", "TimeUntil").
		Project("time_revoked", "TimeRevoked").
		Project("first", "First").
		Project("recertifiable", "Recertifiable").
		Project("certificate_issue_id", "CertificateIssueID").
		Project("evidence", "Evidence").
		Project("created_at", "CreatedAt")
}

var requestProjection = query.
	NewProjectionMap("public", "requests", "r").
	Project("id", "ID").
	Project("source_id", "SourceID").
	Project("user_id", "UserID").
	Project("time_requested", "TimeRequested").
	Project("time_rejected", "TimeRejected").
	Project("data", "Data")

var snapshotProjection = query.
	NewProjectionMap("public", "snapshots", "sn").
	Project("id", "ID").
	Project("assignment_id", "AssignmentID").
	Project("certification_id", "CertificationID").
	Project("user_id", "UserID").
	Project("reason", "Reason").
	Project("actor_id", "ActorID").
	Project("assignment", "Assignment").
	Project("periods", "Periods").
	Project("created_at", "CreatedAt")

var configProjection = query.
	NewProjectionMap("public", "notification_configs", "n").
	Project("certification_id", "CertificationID").
	Project("kind", "Kind").
	Project("enabled", "Enabled").
	Project("subject", "Subject").
	Project("body", "Body").
	Project("created_at", "CreatedAt")

var (
	certificationSort = query.SortField{Field: "Fullname"}
	assignmentSort    = []query.SortField{{Field: "CreatedAt"}, {Field: "UserID"}}
	periodSort        = []query.SortField{{Field: "TimeWindowStart"}, {Field: "CreatedAt"}}
	requestSort       = []query.SortField{{Field: "TimeRequested"}, {Field: "UserID"}}
)

type certificationRow struct {
	c        certification.Certification
	cohorts  []byte
	settings []byte
}

func (r *certificationRow) dest() []any {
	return []any{
		&r.c.ID,
		&r.c.ContextID,
		&r.c.Fullname,
		&r.c.IDNumber,
		&r.c.Description,
		&r.c.Public,
		&r.cohorts,
		&r.c.Archived,
		&r.c.ProgramID1,
		&r.c.ProgramID2,
		&r.c.TemplateID,
		&r.c.Recertify,
		&r.settings,
		&r.c.CreatedAt,
		&r.c.UpdatedAt,
	}
}

func (r *certificationRow) finish() (certification.Certification, error) {
	if len(r.cohorts) > 0 {
		if err := json.Unmarshal(r.cohorts, &r.c.CohortIDs); err != nil {
			return r.c, fmt.Errorf("decode cohort_ids of %s: %w", r.c.ID, err)
		}
	}

	s, err := certification.ParseSettings(r.settings)
	if err != nil {
		return r.c, fmt.Errorf("decode settings of %s: %w", r.c.ID, err)
	}
	r.c.Settings = s
	return r.c, nil
}

func scanCertification(s repository.Scanner) (certification.Certification, error) {
	var r certificationRow
	if err := s.Scan(r.dest()...); err != nil {
		return certification.Certification{}, err
	}
	return r.finish()
}

type sourceRow struct {
	s        certification.Source
	settings []byte
}

func (r *sourceRow) dest() []any {
	return []any{&r.s.ID, &r.s.CertificationID, &r.s.Type, &r.settings, &r.s.CreatedAt}
}

func (r *sourceRow) finish() certification.Source {
	r.s.Settings = json.RawMessage(r.settings)
	return r.s
}

func scanSource(s repository.Scanner) (certification.Source, error) {
	var r sourceRow
	if err := s.Scan(r.dest()...); err != nil {
		return certification.Source{}, err
	}
	return r.finish(), nil
}

type assignmentRow struct {
	a          certification.Assignment
	sourceData []byte
	evidence   []byte
}

func (r *assignmentRow) dest() []any {
	return []any{
		&r.a.ID,
		&r.a.CertificationID,
		&r.a.UserID,
		&r.a.SourceID,
		&r.sourceData,
		&r.a.Archived,
		&r.a.TimeCertifiedUntil,
		&r.evidence,
		&r.a.CreatedAt,
	}
}

func (r *assignmentRow) finish() certification.Assignment {
	r.a.SourceData = rawJSON(r.sourceData)
	r.a.Evidence = rawJSON(r.evidence)
	return r.a
}

func scanAssignment(s repository.Scanner) (certification.Assignment, error) {
	var r assignmentRow
	if err := s.Scan(r.dest()...); err != nil {
		return certification.Assignment{}, err
	}
	return r.finish(), nil
}

type periodRow struct {
	p        certification.Period
	evidence []byte
}

func (r *periodRow) dest() []any {
	return []any{
		&r.p.ID,
		&r.p.CertificationID,
		&r.p.UserID,
		&r.p.ProgramID,
		&r.p.TimeWindowStart,
		&r.p.TimeWindowDue,
		&r.p.TimeWindowEnd,
		&r.p.TimeCertified,
		&r.p.TimeFrom,
		&r.p.TimeUntil,
		&r.p.TimeRevoked,
		&r.p.First,
		&r.p.Recertifiable,
		&r.p.CertificateIssueID,
		&r.evidence,
		&r.p.CreatedAt,
	}
}

func (r *periodRow) finish() certification.Period {
	r.p.Evidence = rawJSON(r.evidence)
	return r.p
}

func scanPeriod(s repository.Scanner) (certification.Period, error) {
	var r periodRow
	if err := s.Scan(r.dest()...); err != nil {
		return certification.Period{}, err
	}
	return r.finish(), nil
}

func scanRequest(s repository.Scanner) (certification.Request, error) {
	var (
		r    certification.Request
		data []byte
	)
	err := s.Scan(&r.ID, &r.SourceID, &r.UserID, &r.TimeRequested, &r.TimeRejected, &data)
	r.Data = rawJSON(data)
	return r, err
}

func scanSnapshot(s repository.Scanner) (certification.Snapshot, error) {
	var (
		sn                certification.Snapshot
		assignment, perds []byte
	)
	err := s.Scan(
		&sn.ID,
		&sn.AssignmentID,
		&sn.CertificationID,
		&sn.UserID,
		&sn.Reason,
		&sn.ActorID,
		&assignment,
		&perds,
		&sn.CreatedAt,
	)
	sn.Assignment = rawJSON(assignment)
	sn.Periods = rawJSON(perds)
	return sn, err
}

func configDest(c *certification.NotificationConfig) []any {
	return []any{&c.CertificationID, &c.Kind, &c.Enabled, &c.Subject, &c.Body, &c.CreatedAt}
}

func scanConfig(s repository.Scanner) (certification.NotificationConfig, error) {
	var c certification.NotificationConfig
	err := s.Scan(configDest(&c)...)
	return c, err
}

// scanCandidate reads the certification, source, assignment, and
// configuration columns of a candidate row, followed by the period columns
// when withPeriod is set.
func scanCandidate(withPeriod bool) repository.ScanFunc[certification.NotificationCandidate] {
	return func(s repository.Scanner) (certification.NotificationCandidate, error) {
		var (
			cand certification.NotificationCandidate
			cr   certificationRow
			sr   sourceRow
			ar   assignmentRow
			pr   periodRow
		)

		dest := slices.Concat(cr.dest(), sr.dest(), ar.dest(), configDest(&cand.Config))
		if withPeriod {
			dest = append(dest, pr.dest()...)
		}
		if err := s.Scan(dest...); err != nil {
			return cand, err
		}

		c, err := cr.finish()
		if err != nil {
			return cand, err
		}
		cand.Certification = c
		cand.Source = sr.finish()
		cand.Assignment = ar.finish()
		if withPeriod {
			p := pr.finish()
			cand.Period = &p
		}
		return cand, nil
	}
}

func rawJSON(b []byte) json.RawMessage {
	if len(b) == 0 {
		return nil
	}
	return json.RawMessage(b)
}

// jsonArg binds raw JSON as a query argument, mapping empty input to NULL.
func jsonArg(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}
