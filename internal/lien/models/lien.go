package models

import (
	id "github.com/taxlien-online/taxlien-nft/pkg/domain"
	dErrors "github.com/taxlien-online/taxlien-nft/pkg/domain-errors"
)

// Issuance bounds, in ledger units.
const (
	// MinFaceAmount is the smallest fundable lien.
	MinFaceAmount uint64 = 10_000_000
	// MaxFaceAmount is the largest fundable lien.
	MaxFaceAmount uint64 = 1_000_000_000_000
	// ServiceFeePercent is the issuance fee taken from the face amount.
	ServiceFeePercent uint64 = 3
	// MinAPR and MaxAPR bound the annual rate, in basis points scaled by 100
	// (800 = 8%, 2400 = 24%).
	MinAPR uint16 = 800
	MaxAPR uint16 = 2400
	// MaxFieldBytes bounds jurisdiction fields.
	MaxFieldBytes = 50
)

// LienTerms is the issuance input describing the lien being funded.
type LienTerms struct {
	State         string `json:"state"`
	County        string `json:"county"`
	ParcelID      string `json:"parcel_id"`
	FaceAmount    uint64 `json:"face_amount"`
	PropertyValue uint64 `json:"property_value"`
	APR           uint16 `json:"apr"`
}

// Validate checks the terms in issuance order. The first failing check wins;
// no partial effects ever depend on later checks.
func (t LienTerms) Validate() error {
	if err := requireField("state", t.State); err != nil {
		return err
	}
	if err := requireField("county", t.County); err != nil {
		return err
	}
	if err := requireField("parcel_id", t.ParcelID); err != nil {
		return err
	}
	if t.FaceAmount < MinFaceAmount {
		return dErrors.New(dErrors.CodeValidation, "investment too low")
	}
	if t.FaceAmount > MaxFaceAmount {
		return dErrors.New(dErrors.CodeValidation, "investment too high")
	}
	if t.PropertyValue <= t.FaceAmount {
		return dErrors.New(dErrors.CodeValidation, "property value must exceed face amount")
	}
	if t.APR < MinAPR || t.APR > MaxAPR {
		return dErrors.New(dErrors.CodeValidation, "invalid apr")
	}
	return nil
}

func requireField(name, value string) error {
	if value == "" {
		return dErrors.Newf(dErrors.CodeValidation, "%s is required", name)
	}
	if len(value) > MaxFieldBytes {
		return dErrors.Newf(dErrors.CodeValidation, "%s must be at most %d bytes", name, MaxFieldBytes)
	}
	return nil
}

// LienRecord is one issued tax-lien instrument.
//
// Invariants:
//   - PropertyValue > FaceAmount for the record's entire life
//   - MinFaceAmount <= FaceAmount <= MaxFaceAmount
//   - MinAPR <= APR <= MaxAPR
//   - InvestedAmount records the issuance payment, at least FaceAmount
//     plus the service fee
//   - RedemptionDate is non-zero if and only if the status has reached
//     redeemed
//   - Status only moves along the transition graph in status.go
//   - The record is destroyed exactly once, by the settlement operation
//     matching its terminal status
type LienRecord struct {
	ID             id.LienID    `json:"id"`
	State          string       `json:"state"`
	County         string       `json:"county"`
	ParcelID       string       `json:"parcel_id"`
	FaceAmount     uint64       `json:"face_amount"`
	PropertyValue  uint64       `json:"property_value"`
	APR            uint16       `json:"apr"`
	IssueDate      int64        `json:"issue_date"`
	Status         Status       `json:"status"`
	Investor       id.AccountID `json:"investor"`
	InvestedAmount uint64       `json:"invested_amount"`
	RedemptionDate int64        `json:"redemption_date"`
}

// NewLienRecord creates a pending record from validated terms. Call
// LienTerms.Validate first; this constructor re-checks the invariants it can
// enforce cheaply.
func NewLienRecord(lienID id.LienID, terms LienTerms, investor id.AccountID, payment uint64, issueDate int64) (*LienRecord, error) {
	if err := terms.Validate(); err != nil {
		return nil, err
	}
	if investor.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "investor account is required")
	}
	return &LienRecord{
		ID:             lienID,
		State:          terms.State,
		County:         terms.County,
		ParcelID:       terms.ParcelID,
		FaceAmount:     terms.FaceAmount,
		PropertyValue:  terms.PropertyValue,
		APR:            terms.APR,
		IssueDate:      issueDate,
		Status:         StatusPending,
		Investor:       investor,
		InvestedAmount: payment,
		RedemptionDate: 0,
	}, nil
}

// CanUpdateStatus checks the transition without applying it.
// Use with ApplyStatus in Execute callbacks for proper separation of concerns.
func (l *LienRecord) CanUpdateStatus(next Status) error {
	if !l.Status.CanTransitionTo(next) {
		return dErrors.Newf(dErrors.CodeInvalidState, "invalid status transition %s -> %s", l.Status, next)
	}
	return nil
}

// ApplyStatus transitions the record. The redeemed transition records the
// redemption timestamp; nothing else touches RedemptionDate.
// Call CanUpdateStatus first to validate the transition.
func (l *LienRecord) ApplyStatus(next Status, now int64) {
	l.Status = next
	if next == StatusRedeemed {
		l.RedemptionDate = now
	}
}
