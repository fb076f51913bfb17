package certification

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/JaimeStill/certify/pkg/dates"
)

// ResetType selects what happens to a user's prior program allocation
// before a new period begins.
type ResetType string

const (
	ResetNone       ResetType = "none"
	ResetDeallocate ResetType = "deallocate"
	ResetUnenrol    ResetType = "unenrol"
	ResetPurge      ResetType = "purge"
)

// Valid reports whether r is a known reset type.
func (r ResetType) Valid() bool {
	switch r {
	case ResetNone, ResetDeallocate, ResetUnenrol, ResetPurge:
		return true
	}
	return false
}

var (
	validAnchors      = []Anchor{SinceCertified, SinceWindowStart, SinceWindowDue, SinceWindowEnd}
	windowEndAnchors  = []Anchor{SinceWindowStart, SinceWindowDue, SinceNever}
	expirationAnchors = []Anchor{SinceCertified, SinceWindowStart, SinceWindowDue, SinceWindowEnd, SinceNever}
)

// Settings is the period policy of a certification. Fields suffixed 1 apply
// to the first period, fields suffixed 2 to recertification periods.
//
// Defaults applied when a field is absent:
//
//	resettype1  none
//	due1        no due date
//	valid1      certified
//	windowend1  never
//	expiration1 never
//	programid2  reuse programid1
//	resettype2  deallocate
//	grace2      due date equals the previous expiry
//	valid2      windowdue
//	windowend2  never
//	expiration2 same as expiration1
//	recertify   recertification disabled
type Settings struct {
	ResetType1  ResetType       `json:"resettype1"`
	Due1        *dates.Duration `json:"due1"`
	Valid1      Anchor          `json:"valid1"`
	WindowEnd1  Policy          `json:"windowend1"`
	Expiration1 Policy          `json:"expiration1"`

	ProgramID2  *int64          `json:"programid2"`
	ResetType2  ResetType       `json:"resettype2"`
	Grace2      *dates.Duration `json:"grace2"`
	Valid2      Anchor          `json:"valid2"`
	WindowEnd2  Policy          `json:"windowend2"`
	Expiration2 *Policy         `json:"expiration2"`

	// Recertify is the lead time in seconds before expiry at which a
	// successor period opens. Nil disables recertification.
	Recertify *int64 `json:"recertify"`
}

// DefaultSettings returns settings with every default applied.
func DefaultSettings() Settings {
	var s Settings
	s.applyDefaults()
	return s
}

// ParseSettings decodes settings JSON, applies defaults and validates.
// Empty input yields the defaults.
func ParseSettings(data []byte) (Settings, error) {
	var s Settings
	if len(data) > 0 && string(data) != "null" {
		if err := json.Unmarshal(data, &s); err != nil {
			return Settings{}, fmt.Errorf("%w: settings: %v", ErrValidation, err)
		}
	}

	s.applyDefaults()
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// Encode serializes the settings with defaults applied.
func (s Settings) Encode() (json.RawMessage, error) {
	s.applyDefaults()
	return json.Marshal(s)
}

func (s *Settings) applyDefaults() {
	if s.ResetType1 == "" {
		s.ResetType1 = ResetNone
	}
	if s.Valid1 == "" {
		s.Valid1 = SinceCertified
	}
	if s.WindowEnd1.Since == "" {
		s.WindowEnd1 = Never
	}
	if s.Expiration1.Since == "" {
		s.Expiration1 = Never
	}
	if s.ResetType2 == "" {
		s.ResetType2 = ResetDeallocate
	}
	if s.Valid2 == "" {
		s.Valid2 = SinceWindowDue
	}
	if s.WindowEnd2.Since == "" {
		s.WindowEnd2 = Never
	}
	if s.Expiration2 == nil || s.Expiration2.Since == "" {
		exp := s.Expiration1
		s.Expiration2 = &exp
	}
}

// Validate checks enum membership and delay requirements.
func (s Settings) Validate() error {
	if !s.ResetType1.Valid() {
		return fmt.Errorf("%w: resettype1 %q", ErrValidation, s.ResetType1)
	}
	if !s.ResetType2.Valid() {
		return fmt.Errorf("%w: resettype2 %q", ErrValidation, s.ResetType2)
	}
	if s.Due1 != nil && s.Due1.IsZero() {
		return fmt.Errorf("%w: due1 must be positive", ErrValidation)
	}
	if !slices.Contains(validAnchors, s.Valid1) {
		return fmt.Errorf("%w: valid1 %q", ErrValidation, s.Valid1)
	}
	if !slices.Contains(validAnchors, s.Valid2) {
		return fmt.Errorf("%w: valid2 %q", ErrValidation, s.Valid2)
	}
	if err := s.WindowEnd1.validate("windowend1", windowEndAnchors...); err != nil {
		return err
	}
	if err := s.WindowEnd2.validate("windowend2", windowEndAnchors...); err != nil {
		return err
	}
	if err := s.Expiration1.validate("expiration1", expirationAnchors...); err != nil {
		return err
	}
	if s.Expiration2 != nil {
		if err := s.Expiration2.validate("expiration2", expirationAnchors...); err != nil {
			return err
		}
	}
	if s.ProgramID2 != nil && *s.ProgramID2 <= 0 {
		return fmt.Errorf("%w: programid2 must be positive", ErrValidation)
	}
	if s.Recertify != nil {
		if *s.Recertify < 0 {
			return fmt.Errorf("%w: recertify must not be negative", ErrValidation)
		}
		if s.Expiration1.IsNever() {
			return fmt.Errorf("%w: recertify requires expiration1", ErrValidation)
		}
	}
	return nil
}

// RecertifyFirst reports whether a first period is eligible to spawn a successor.
func (s Settings) RecertifyFirst() bool {
	return s.Recertify != nil && !s.Expiration1.IsNever()
}

// RecertifyNext reports whether a recertification period is eligible to spawn a successor.
func (s Settings) RecertifyNext() bool {
	return s.Recertify != nil && s.Expiration2 != nil && !s.Expiration2.IsNever()
}

// RecertificationProgram returns the program driven by recertification periods.
func (s Settings) RecertificationProgram(programID1 int64) int64 {
	if s.ProgramID2 != nil {
		return *s.ProgramID2
	}
	return programID1
}
