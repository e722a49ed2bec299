package models

import (
	dErrors "github.com/taxlien-online/taxlien-nft/pkg/domain-errors"
)

// Status is the lifecycle state of a lien record.
//
// The transition graph is closed: a status only ever moves forward along the
// four listed edges, never backward, never repeats, never skips. Every other
// ordered pair, including self-transitions, is invalid.
type Status string

const (
	// StatusPending is the initial state after issuance, before the
	// administrator confirms the investment.
	StatusPending Status = "pending"
	// StatusInvested marks a confirmed, active lien.
	StatusInvested Status = "invested"
	// StatusRedeemed flags that the property owner paid off the lien; the
	// investor may now settle for a cash payout.
	StatusRedeemed Status = "redeemed"
	// StatusClaimed flags that the lien went unpaid past its term; the
	// investor may now take title to the property.
	StatusClaimed Status = "claimed"
	// StatusCancelled is a terminal administrative withdrawal of a pending
	// lien.
	StatusCancelled Status = "cancelled"
)

// allowedTransitions is the total transition function; absent pairs are
// invalid.
var allowedTransitions = map[Status]map[Status]bool{
	StatusPending: {
		StatusInvested:  true,
		StatusCancelled: true,
	},
	StatusInvested: {
		StatusRedeemed: true,
		StatusClaimed:  true,
	},
}

// CanTransitionTo reports whether the status may move to next.
func (s Status) CanTransitionTo(next Status) bool {
	return allowedTransitions[s][next]
}

// Valid reports whether s is one of the five defined statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInvested, StatusRedeemed, StatusClaimed, StatusCancelled:
		return true
	}
	return false
}

// ParseStatus validates a status string from a trust boundary.
func ParseStatus(raw string) (Status, error) {
	s := Status(raw)
	if !s.Valid() {
		return "", dErrors.Newf(dErrors.CodeValidation, "unknown status %q", raw)
	}
	return s, nil
}
