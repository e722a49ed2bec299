// Package domain defines the typed identifiers shared across modules.
//
// Typed IDs prevent cross-assignment at compile time: an AccountID can never
// be passed where a LienID is expected. Parsing happens once, at trust
// boundaries (HTTP handlers, JWT claims); everything below works with the
// typed values.
package domain

import (
	"strconv"

	"github.com/google/uuid"

	dErrors "github.com/taxlien-online/taxlien-nft/pkg/domain-errors"
)

// AccountID identifies a principal able to hold funds: the administrative
// identity, the fee-receiving account, the pooled escrow account, and
// investor accounts. The value is opaque to the lien engine.
type AccountID uuid.UUID

// LienID identifies an issued lien record. IDs are assigned sequentially by
// the registry and are never reused.
type LienID uint64

// ParseAccountID validates and parses an account identifier.
// Rejects empty strings, malformed UUIDs, and the nil UUID.
func ParseAccountID(s string) (AccountID, error) {
	if s == "" {
		return AccountID{}, dErrors.New(dErrors.CodeInvalidInput, "account id is required")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return AccountID{}, dErrors.Wrap(err, dErrors.CodeInvalidInput, "account id must be a valid UUID")
	}
	if u == uuid.Nil {
		return AccountID{}, dErrors.New(dErrors.CodeInvalidInput, "account id must not be the nil UUID")
	}
	return AccountID(u), nil
}

// ParseLienID parses a decimal lien identifier from a URL segment.
func ParseLienID(s string) (LienID, error) {
	if s == "" {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "lien id is required")
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInvalidInput, "lien id must be an unsigned integer")
	}
	return LienID(v), nil
}

func (a AccountID) String() string { return uuid.UUID(a).String() }

// IsZero reports whether the account ID is unset.
func (a AccountID) IsZero() bool { return uuid.UUID(a) == uuid.Nil }

func (l LienID) String() string { return strconv.FormatUint(uint64(l), 10) }
