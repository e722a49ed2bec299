package handler

import (
	"strings"

	"github.com/taxlien-online/taxlien-nft/internal/lien/models"
	id "github.com/taxlien-online/taxlien-nft/pkg/domain"
	dErrors "github.com/taxlien-online/taxlien-nft/pkg/domain-errors"
)

// InitializeRequest is the HTTP request body for POST /registry.
type InitializeRequest struct {
	FeeAccount string `json:"fee_account"`

	parsedFeeAccount id.AccountID
}

// Validate validates and parses the request.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *InitializeRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	feeAccount, err := id.ParseAccountID(strings.TrimSpace(r.FeeAccount))
	if err != nil {
		return err
	}
	r.parsedFeeAccount = feeAccount
	return nil
}

// ParsedFeeAccount returns the validated fee account.
func (r *InitializeRequest) ParsedFeeAccount() id.AccountID {
	return r.parsedFeeAccount
}

// CreateLienRequest is the HTTP request body for POST /liens. Amounts are in
// ledger units; apr is in basis points scaled by 100 (1200 = 12%).
type CreateLienRequest struct {
	State         string `json:"state"`
	County        string `json:"county"`
	ParcelID      string `json:"parcel_id"`
	FaceAmount    uint64 `json:"face_amount"`
	PropertyValue uint64 `json:"property_value"`
	APR           uint16 `json:"apr"`
	Payment       uint64 `json:"payment"`
}

// Validate validates the issuance terms in order.
func (r *CreateLienRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.State = strings.TrimSpace(r.State)
	r.County = strings.TrimSpace(r.County)
	r.ParcelID = strings.TrimSpace(r.ParcelID)
	if err := r.Terms().Validate(); err != nil {
		return err
	}
	if r.Payment == 0 {
		return dErrors.New(dErrors.CodeValidation, "payment is required")
	}
	return nil
}

// Terms returns the issuance terms carried by the request.
func (r *CreateLienRequest) Terms() models.LienTerms {
	return models.LienTerms{
		State:         r.State,
		County:        r.County,
		ParcelID:      r.ParcelID,
		FaceAmount:    r.FaceAmount,
		PropertyValue: r.PropertyValue,
		APR:           r.APR,
	}
}

// UpdateStatusRequest is the HTTP request body for PUT /liens/{id}/status.
type UpdateStatusRequest struct {
	Status string `json:"status"`

	parsedStatus models.Status
}

// Validate validates and parses the target status.
func (r *UpdateStatusRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	status, err := models.ParseStatus(strings.TrimSpace(r.Status))
	if err != nil {
		return err
	}
	r.parsedStatus = status
	return nil
}

// ParsedStatus returns the validated target status.
func (r *UpdateStatusRequest) ParsedStatus() models.Status {
	return r.parsedStatus
}
