package notifications

import (
	"strconv"
	"strings"
	"time"

	"github.com/JaimeStill/certify/internal/certification"
	"github.com/JaimeStill/certify/internal/external"
)

const dateLayout = "2 January 2006"

// render replaces {placeholder} tokens in the configured subject and body.
// Placeholders of dates the candidate lacks render empty.
func (c *Coordinator) render(kind certification.NotificationKind, cand certification.NotificationCandidate) external.Message {
	r := strings.NewReplacer(c.placeholders(cand)...)

	return external.Message{
		Kind:          kind,
		UserID:        cand.Assignment.UserID,
		Subject:       r.Replace(cand.Config.Subject),
		Body:          r.Replace(cand.Config.Body),
		Certification: cand.Certification,
		Source:        cand.Source,
		Assignment:    cand.Assignment,
		Period:        cand.Period,
	}
}

func (c *Coordinator) placeholders(cand certification.NotificationCandidate) []string {
	pairs := []string{
		"{user_id}", strconv.FormatInt(cand.Assignment.UserID, 10),
		"{certification_fullname}", cand.Certification.Fullname,
		"{certification_idnumber}", cand.Certification.IDNumber,
		"{source}", string(cand.Source.Type),
		"{certified_until}", c.format(cand.Assignment.TimeCertifiedUntil),
	}

	var p certification.Period
	if cand.Period != nil {
		p = *cand.Period
	}

	var start *time.Time
	if cand.Period != nil {
		start = &p.TimeWindowStart
	}

	return append(pairs,
		"{window_start}", c.format(start),
		"{window_due}", c.format(p.TimeWindowDue),
		"{window_end}", c.format(p.TimeWindowEnd),
		"{time_certified}", c.format(p.TimeCertified),
		"{time_from}", c.format(p.TimeFrom),
		"{time_until}", c.format(p.TimeUntil),
	)
}

func (c *Coordinator) format(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.In(c.loc).Format(dateLayout)
}
