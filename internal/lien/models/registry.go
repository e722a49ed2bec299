package models

import (
	id "github.com/taxlien-online/taxlien-nft/pkg/domain"
	dErrors "github.com/taxlien-online/taxlien-nft/pkg/domain-errors"
)

// Registry is the singleton aggregate for the deployment.
//
// Invariants:
//   - exactly one Registry exists for the system's lifetime
//   - NextLienID starts at 0, is strictly increasing, and is never reused or
//     decremented; the sequence of issued ids is gapless because a failed
//     issuance never commits a counter bump
//   - TotalFeesCollected is monotonically non-decreasing and equals the exact
//     sum of all service fees ever collected
//
// The registry is the single serialization point for concurrent issuances;
// all mutation goes through RegistryStore.Execute.
type Registry struct {
	AdminAccount       id.AccountID `json:"admin_account"`
	FeeAccount         id.AccountID `json:"fee_account"`
	NextLienID         uint64       `json:"next_lien_id"`
	TotalFeesCollected uint64       `json:"total_fees_collected"`
}

// NewRegistry creates the singleton with zeroed counters.
func NewRegistry(admin, feeAccount id.AccountID) (*Registry, error) {
	if admin.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "admin account is required")
	}
	if feeAccount.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "fee account is required")
	}
	return &Registry{AdminAccount: admin, FeeAccount: feeAccount}, nil
}

// RecordIssuance consumes the next lien id and accumulates the service fee.
// Only call inside a RegistryStore.Execute callback so the assignment and
// the fee transfer commit together.
func (r *Registry) RecordIssuance(serviceFee uint64) id.LienID {
	lienID := id.LienID(r.NextLienID)
	r.NextLienID++
	r.TotalFeesCollected += serviceFee
	return lienID
}

// IsAdmin reports whether the caller is the administrative identity.
func (r *Registry) IsAdmin(caller id.AccountID) bool {
	return caller == r.AdminAccount
}
