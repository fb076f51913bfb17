// Package dates provides ISO-8601 durations applied on a location's
// calendar.
package dates

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rickb777/period"
)

// ErrInvalidDuration indicates a string that is not a supported ISO-8601 duration.
var ErrInvalidDuration = errors.New("invalid ISO-8601 duration")

// Duration is a calendar duration in the ISO-8601 PnYnMnWnDTnHnMnS form.
// Date components are applied on the calendar of a location, so P1D always
// advances the wall clock by one day regardless of DST transitions.
type Duration struct {
	p period.Period
}

// Parse parses an ISO-8601 duration such as "P1Y", "P2W" or "PT36H".
// Fractional and negative values are rejected.
func Parse(s string) (Duration, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if strings.ContainsAny(s, ".,-") {
		return Duration{}, fmt.Errorf("%w: %q: only whole positive components", ErrInvalidDuration, s)
	}

	p, err := period.Parse(s)
	if err != nil {
		return Duration{}, fmt.Errorf("%w: %q: %v", ErrInvalidDuration, s, err)
	}
	return Duration{p: p}, nil
}

// MustParse is like Parse but panics on error.
func MustParse(s string) Duration {
	d, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return d
}

// IsZero reports whether every component is zero.
func (d Duration) IsZero() bool {
	return d.p.IsZero()
}

// AddTo adds the duration to t on the calendar of loc. Date components
// follow time.AddDate, so Jan 31 + P1M overflows into March. Time
// components are added as elapsed time.
func (d Duration) AddTo(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	out, _ := d.p.AddTo(t.In(loc))
	return out
}

func (d Duration) String() string {
	return d.p.String()
}

// MarshalJSON encodes the duration as its ISO-8601 string.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON decodes an ISO-8601 string.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidDuration, data)
	}

	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
