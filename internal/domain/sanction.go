package domain

import "time"

type SanctionKind string

const (
	SanctionKindLoss        SanctionKind = "loss"
	SanctionKindDamage      SanctionKind = "damage"
	SanctionKindSevereDelay SanctionKind = "severe_delay"
)

type SanctionStatus string

const (
	SanctionStatusActive    SanctionStatus = "active"
	SanctionStatusFulfilled SanctionStatus = "fulfilled"
	SanctionStatusForgiven  SanctionStatus = "forgiven"
)

type Sanction struct {
	ID          int32          `json:"id"`
	PatronID    int32          `json:"patron_id"`
	LoanID      *int32         `json:"loan_id,omitempty"`
	Kind        SanctionKind   `json:"kind"`
	AmountCents int32          `json:"amount_cents"`
	Status      SanctionStatus `json:"status"`
	ValidFrom   time.Time      `json:"valid_from"`
	ValidUntil  *time.Time     `json:"valid_until,omitempty"` // nil: in force until resolved
	Notes       string         `json:"notes"`
	ResolvedAt  *time.Time     `json:"resolved_at,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// InForceAt reports whether the sanction blocks new loans on the given date.
func (s *Sanction) InForceAt(t time.Time) bool {
	if s.Status != SanctionStatusActive {
		return false
	}
	day := DateOf(t)
	if day.Before(DateOf(s.ValidFrom)) {
		return false
	}
	return s.ValidUntil == nil || !day.After(DateOf(*s.ValidUntil))
}

// Resolve closes an active sanction as fulfilled or forgiven.
func (s *Sanction) Resolve(op string, to SanctionStatus, notes string, at time.Time) error {
	if to != SanctionStatusFulfilled && to != SanctionStatusForgiven {
		return NewValidationError(op, "cannot resolve sanction as %q", to)
	}
	if s.Status != SanctionStatusActive {
		return NewValidationError(op, "sanction %d is already %s", s.ID, s.Status)
	}
	s.Status = to
	if notes != "" {
		s.Notes = notes
	}
	s.ResolvedAt = &at
	return nil
}

func (s *Sanction) Clone() *Sanction {
	if s == nil {
		return nil
	}
	c := *s
	c.LoanID = cloneInt32(s.LoanID)
	c.ValidUntil = cloneTime(s.ValidUntil)
	c.ResolvedAt = cloneTime(s.ResolvedAt)
	return &c
}
