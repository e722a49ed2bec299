// Package gateway defines the settlement gateway consumed by the lien
// engine. Fund custody and transfer execution live outside this service; the
// engine only commands transfers and reacts to their success or failure.
package gateway

import (
	"context"

	id "github.com/taxlien-online/taxlien-nft/pkg/domain"
)

// EscrowAuthority is the custodial capability over the pooled escrow
// account. Only a SettlementGateway can mint one (via GrantCustody), and the
// unexported grant makes the type unforgeable outside this package. The
// service holds it after registry initialization and uses it exclusively on
// the redemption path; it is never exposed to callers.
type EscrowAuthority struct {
	escrow id.AccountID
	grant  uint64
}

// Escrow returns the account the authority is scoped to.
func (a EscrowAuthority) Escrow() id.AccountID { return a.escrow }

// SettlementGateway moves funds between accounts on command. Every transfer
// is atomic and all-or-nothing; a failed transfer has no effect.
type SettlementGateway interface {
	// Transfer moves amount from one account to another with the source
	// owner's standing authorization. Fails with sentinel.ErrInsufficientFunds
	// when the source balance is below amount.
	Transfer(ctx context.Context, from, to id.AccountID, amount uint64) error

	// GrantCustody issues the custodial authority over the escrow account.
	// Scoped strictly to funds already deposited as fees or investment
	// capital. Granting is idempotent per account so a restarted service
	// can reacquire its authority.
	GrantCustody(ctx context.Context, escrow id.AccountID) (EscrowAuthority, error)

	// TransferFromEscrow moves amount out of the pooled escrow account under
	// the custodial authority, without the depositor's direct
	// counter-authorization.
	TransferFromEscrow(ctx context.Context, authority EscrowAuthority, to id.AccountID, amount uint64) error
}
