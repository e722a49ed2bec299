package handler

import (
	"github.com/taxlien-online/taxlien-nft/internal/lien/models"
	"github.com/taxlien-online/taxlien-nft/internal/lien/service"
)

// LienResponse is the wire shape of a lien record.
type LienResponse struct {
	ID             uint64 `json:"id"`
	State          string `json:"state"`
	County         string `json:"county"`
	ParcelID       string `json:"parcel_id"`
	FaceAmount     uint64 `json:"face_amount"`
	PropertyValue  uint64 `json:"property_value"`
	APR            uint16 `json:"apr"`
	IssueDate      int64  `json:"issue_date"`
	Status         string `json:"status"`
	Investor       string `json:"investor"`
	InvestedAmount uint64 `json:"invested_amount"`
	RedemptionDate int64  `json:"redemption_date,omitempty"`
}

// FromRecord converts a record to its wire shape.
func FromRecord(record *models.LienRecord) LienResponse {
	return LienResponse{
		ID:             uint64(record.ID),
		State:          record.State,
		County:         record.County,
		ParcelID:       record.ParcelID,
		FaceAmount:     record.FaceAmount,
		PropertyValue:  record.PropertyValue,
		APR:            record.APR,
		IssueDate:      record.IssueDate,
		Status:         string(record.Status),
		Investor:       record.Investor.String(),
		InvestedAmount: record.InvestedAmount,
		RedemptionDate: record.RedemptionDate,
	}
}

// CreateLienResponse is the body for POST /liens.
type CreateLienResponse struct {
	ID uint64 `json:"id"`
}

// ListLiensResponse is the body for GET /liens.
type ListLiensResponse struct {
	Liens  []LienResponse `json:"liens"`
	Total  int            `json:"total"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
}

// StatusUpdateResponse is the body for PUT /liens/{id}/status.
type StatusUpdateResponse struct {
	ID        uint64 `json:"id"`
	OldStatus string `json:"old_status"`
	NewStatus string `json:"new_status"`
}

// FromStatusUpdate converts a status update result to its wire shape.
func FromStatusUpdate(update *service.StatusUpdate) StatusUpdateResponse {
	return StatusUpdateResponse{
		ID:        uint64(update.Record.ID),
		OldStatus: string(update.OldStatus),
		NewStatus: string(update.Record.Status),
	}
}

// RedeemResponse is the body for POST /liens/{id}/redeem.
type RedeemResponse struct {
	ID      uint64 `json:"id"`
	Payout  uint64 `json:"payout"`
	Returns uint64 `json:"returns"`
}

// ClaimResponse is the body for POST /liens/{id}/claim.
type ClaimResponse struct {
	ID            uint64 `json:"id"`
	PropertyValue uint64 `json:"property_value"`
}

// RegistryResponse is the body for registry reads.
type RegistryResponse struct {
	AdminAccount       string `json:"admin_account"`
	FeeAccount         string `json:"fee_account"`
	NextLienID         uint64 `json:"next_lien_id"`
	TotalFeesCollected uint64 `json:"total_fees_collected"`
}

// FromRegistry converts the registry to its wire shape.
func FromRegistry(registry *models.Registry) RegistryResponse {
	return RegistryResponse{
		AdminAccount:       registry.AdminAccount.String(),
		FeeAccount:         registry.FeeAccount.String(),
		NextLienID:         registry.NextLienID,
		TotalFeesCollected: registry.TotalFeesCollected,
	}
}
