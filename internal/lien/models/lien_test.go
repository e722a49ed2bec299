package models

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "github.com/taxlien-online/taxlien-nft/pkg/domain"
	dErrors "github.com/taxlien-online/taxlien-nft/pkg/domain-errors"
)

func validTerms() LienTerms {
	return LienTerms{
		State:         "FL",
		County:        "Miami-Dade",
		ParcelID:      "01-2345-678-9012",
		FaceAmount:    100_000_000,
		PropertyValue: 150_000_000,
		APR:           1200,
	}
}

func TestLienTermsValidate(t *testing.T) {
	t.Run("valid terms pass", func(t *testing.T) {
		assert.NoError(t, validTerms().Validate())
	})

	tests := []struct {
		name    string
		mutate  func(*LienTerms)
		message string
	}{
		{"empty state", func(lt *LienTerms) { lt.State = "" }, "state is required"},
		{"empty county", func(lt *LienTerms) { lt.County = "" }, "county is required"},
		{"empty parcel", func(lt *LienTerms) { lt.ParcelID = "" }, "parcel_id is required"},
		{"state too long", func(lt *LienTerms) { lt.State = strings.Repeat("a", 51) }, "state must be at most 50 bytes"},
		{"county too long", func(lt *LienTerms) { lt.County = strings.Repeat("b", 51) }, "county must be at most 50 bytes"},
		{"parcel too long", func(lt *LienTerms) { lt.ParcelID = strings.Repeat("c", 51) }, "parcel_id must be at most 50 bytes"},
		{"face below minimum", func(lt *LienTerms) { lt.FaceAmount = 9_999_999 }, "investment too low"},
		{"face above maximum", func(lt *LienTerms) { lt.FaceAmount = 1_000_000_000_001; lt.PropertyValue = 2_000_000_000_000 }, "investment too high"},
		{"property equals face", func(lt *LienTerms) { lt.PropertyValue = lt.FaceAmount }, "property value must exceed face amount"},
		{"property below face", func(lt *LienTerms) { lt.PropertyValue = lt.FaceAmount - 1 }, "property value must exceed face amount"},
		{"apr below minimum", func(lt *LienTerms) { lt.APR = 799 }, "invalid apr"},
		{"apr above maximum", func(lt *LienTerms) { lt.APR = 2401 }, "invalid apr"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			terms := validTerms()
			tt.mutate(&terms)
			err := terms.Validate()
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
			assert.Equal(t, tt.message, dErrors.MessageOf(err))
		})
	}

	t.Run("boundaries are inclusive", func(t *testing.T) {
		terms := validTerms()
		terms.FaceAmount = MinFaceAmount
		terms.PropertyValue = MinFaceAmount + 1
		assert.NoError(t, terms.Validate())

		terms.FaceAmount = MaxFaceAmount
		terms.PropertyValue = MaxFaceAmount + 1
		assert.NoError(t, terms.Validate())

		terms = validTerms()
		terms.APR = MinAPR
		assert.NoError(t, terms.Validate())
		terms.APR = MaxAPR
		assert.NoError(t, terms.Validate())
	})

	t.Run("field checks run before amount checks", func(t *testing.T) {
		terms := validTerms()
		terms.State = ""
		terms.FaceAmount = 1 // also invalid
		err := terms.Validate()
		assert.Equal(t, "state is required", dErrors.MessageOf(err))
	})

	t.Run("50-byte fields pass exactly at the limit", func(t *testing.T) {
		terms := validTerms()
		terms.County = strings.Repeat("x", MaxFieldBytes)
		assert.NoError(t, terms.Validate())
	})
}

func TestNewLienRecord(t *testing.T) {
	investor := id.AccountID(uuid.New())

	t.Run("creates pending record", func(t *testing.T) {
		record, err := NewLienRecord(7, validTerms(), investor, 103_000_000, 1_700_000_000)
		require.NoError(t, err)
		assert.Equal(t, id.LienID(7), record.ID)
		assert.Equal(t, StatusPending, record.Status)
		assert.Equal(t, investor, record.Investor)
		assert.Equal(t, int64(1_700_000_000), record.IssueDate)
		assert.Equal(t, uint64(103_000_000), record.InvestedAmount, "invested amount is the payment, not the face")
		assert.Zero(t, record.RedemptionDate)
	})

	t.Run("rejects invalid terms", func(t *testing.T) {
		terms := validTerms()
		terms.APR = 0
		_, err := NewLienRecord(0, terms, investor, 100_000_000, 0)
		assert.Error(t, err)
	})

	t.Run("rejects zero investor", func(t *testing.T) {
		_, err := NewLienRecord(0, validTerms(), id.AccountID{}, 100_000_000, 0)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})
}

func TestLienRecordStatus(t *testing.T) {
	investor := id.AccountID(uuid.New())
	record, err := NewLienRecord(0, validTerms(), investor, 100_000_000, 1_700_000_000)
	require.NoError(t, err)

	t.Run("rejects illegal transition", func(t *testing.T) {
		err := record.CanUpdateStatus(StatusRedeemed)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidState))
		assert.Equal(t, "invalid status transition pending -> redeemed", dErrors.MessageOf(err))
	})

	t.Run("redeemed transition stamps redemption date", func(t *testing.T) {
		require.NoError(t, record.CanUpdateStatus(StatusInvested))
		record.ApplyStatus(StatusInvested, 1_700_000_100)
		assert.Zero(t, record.RedemptionDate)

		require.NoError(t, record.CanUpdateStatus(StatusRedeemed))
		record.ApplyStatus(StatusRedeemed, 1_700_000_200)
		assert.Equal(t, StatusRedeemed, record.Status)
		assert.Equal(t, int64(1_700_000_200), record.RedemptionDate)
	})
}
