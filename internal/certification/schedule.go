package certification

import (
	"fmt"
	"time"
)

// FirstWindow computes the window of a first period opening at start.
// Overrides replace the computed dates and the result is validated.
// A computed end earlier than the due date is raised to the due date.
func (s Settings) FirstWindow(start time.Time, o WindowOverrides, loc *time.Location) (Window, error) {
	if o.Start != nil {
		start = *o.Start
	}

	w := Window{Start: start}

	switch {
	case o.Due != nil:
		w.Due = o.Due
	case s.Due1 != nil:
		due := s.Due1.AddTo(start, loc)
		w.Due = &due
	}

	if o.End != nil {
		w.End = o.End
	} else {
		w.End = clampEnd(s.WindowEnd1.Resolve(Anchors{WindowStart: &start, WindowDue: w.Due}, loc), w.Due)
	}

	return w, w.Validate()
}

// RecertificationWindow computes the window of the period succeeding prev.
// The window opens Recertify seconds before prev expires, but never before
// prev was certified nor at or before prev's own start, so periods stay
// ordered by window start. It is due at the expiry plus Grace2. When the due
// date would not follow the start it is left unset.
func (s Settings) RecertificationWindow(prev Period, loc *time.Location) (Window, error) {
	if prev.TimeUntil == nil {
		return Window{}, fmt.Errorf("%w: period %s has no expiry", ErrInvariant, prev.ID)
	}

	var lead time.Duration
	if s.Recertify != nil {
		lead = time.Duration(*s.Recertify) * time.Second
	}

	start := prev.TimeUntil.Add(-lead)
	floor := prev.TimeWindowStart.Add(time.Second)
	if prev.TimeCertified != nil && prev.TimeCertified.After(floor) {
		floor = *prev.TimeCertified
	}
	if start.Before(floor) {
		start = floor
	}
	due := *prev.TimeUntil
	if s.Grace2 != nil {
		due = s.Grace2.AddTo(due, loc)
	}

	w := Window{Start: start}
	if due.After(start) {
		w.Due = &due
	}
	w.End = clampEnd(s.WindowEnd2.Resolve(Anchors{WindowStart: &start, WindowDue: w.Due}, loc), w.Due)

	return w, w.Validate()
}

// Validity computes the validity range of p certified at at. Window anchors
// the period lacks fall back to the nearest earlier window date.
func (s Settings) Validity(p Period, at time.Time, loc *time.Location) (time.Time, *time.Time, error) {
	valid, expiration := s.Valid1, s.Expiration1
	if !p.First {
		valid = s.Valid2
		if s.Expiration2 != nil {
			expiration = *s.Expiration2
		}
	}

	due := p.TimeWindowDue
	if due == nil {
		due = &p.TimeWindowStart
	}
	end := p.TimeWindowEnd
	if end == nil {
		end = due
	}

	anchors := Anchors{
		Certified:   &at,
		WindowStart: &p.TimeWindowStart,
		WindowDue:   due,
		WindowEnd:   end,
	}

	from := at
	if f := (Policy{Since: valid}).Resolve(anchors, loc); f != nil {
		from = *f
	}

	until := expiration.Resolve(anchors, loc)
	if until != nil && !until.After(from) {
		return time.Time{}, nil, fmt.Errorf("%w: expiry %s is not after valid from %s", ErrValidation, until, from)
	}

	return from, until, nil
}

func clampEnd(end, due *time.Time) *time.Time {
	if end != nil && due != nil && end.Before(*due) {
		return due
	}
	return end
}
