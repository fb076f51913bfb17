package certification

import (
	"fmt"
	"slices"
	"time"

	"github.com/JaimeStill/certify/pkg/dates"
)

// Anchor names the period timestamp a Policy delay is measured from.
type Anchor string

const (
	SinceCertified   Anchor = "certified"
	SinceWindowStart Anchor = "windowstart"
	SinceWindowDue   Anchor = "windowdue"
	SinceWindowEnd   Anchor = "windowend"
	SinceNever       Anchor = "never"
)

// Policy is a relative date: a delay after an anchor, or never.
type Policy struct {
	Since Anchor          `json:"since"`
	Delay *dates.Duration `json:"delay,omitempty"`
}

// Never is the policy that resolves to no date.
var Never = Policy{Since: SinceNever}

// Anchors holds the concrete timestamps a Policy can be resolved against.
// Nil fields are anchors the period does not have.
type Anchors struct {
	Certified   *time.Time
	WindowStart *time.Time
	WindowDue   *time.Time
	WindowEnd   *time.Time
}

func (a Anchors) lookup(since Anchor) *time.Time {
	switch since {
	case SinceCertified:
		return a.Certified
	case SinceWindowStart:
		return a.WindowStart
	case SinceWindowDue:
		return a.WindowDue
	case SinceWindowEnd:
		return a.WindowEnd
	case SinceNever:
		return nil
	}
	panic(fmt.Sprintf("certification: unknown anchor %q", since))
}

// Resolve computes the absolute timestamp of the policy. It returns nil when
// the policy is never or the anchor is not set. Delays are added on the
// calendar of loc. An unknown anchor panics; settings are validated when parsed.
func (p Policy) Resolve(a Anchors, loc *time.Location) *time.Time {
	at := a.lookup(p.Since)
	if at == nil {
		return nil
	}

	out := *at
	if p.Delay != nil {
		out = p.Delay.AddTo(out, loc)
	}
	return &out
}

// IsNever reports whether the policy never resolves.
func (p Policy) IsNever() bool {
	return p.Since == SinceNever
}

func (p Policy) validate(field string, allowed ...Anchor) error {
	if !slices.Contains(allowed, p.Since) {
		return fmt.Errorf("%w: %s.since %q not allowed", ErrValidation, field, p.Since)
	}
	if p.Since != SinceNever && (p.Delay == nil || p.Delay.IsZero()) {
		return fmt.Errorf("%w: %s.delay required", ErrValidation, field)
	}
	return nil
}
