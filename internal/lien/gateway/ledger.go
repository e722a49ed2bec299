package gateway

import (
	"context"
	"sync"

	id "github.com/taxlien-online/taxlien-nft/pkg/domain"
	"github.com/taxlien-online/taxlien-nft/pkg/platform/sentinel"
)

// Ledger is an in-memory settlement gateway backing tests and single-node
// deployments. Balances are plain uint64 ledger units; transfers are atomic
// under one mutex.
type Ledger struct {
	mu        sync.Mutex
	balances  map[id.AccountID]uint64
	grants    map[id.AccountID]uint64
	nextGrant uint64
}

func NewLedger() *Ledger {
	return &Ledger{
		balances: make(map[id.AccountID]uint64),
		grants:   make(map[id.AccountID]uint64),
	}
}

// Deposit credits an account. Test and bootstrap helper; production funds
// arrive through the external settlement network.
func (l *Ledger) Deposit(account id.AccountID, amount uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[account] += amount
}

// Balance reports an account's current balance.
func (l *Ledger) Balance(account id.AccountID) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[account]
}

func (l *Ledger) Transfer(_ context.Context, from, to id.AccountID, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.move(from, to, amount)
}

func (l *Ledger) GrantCustody(_ context.Context, escrow id.AccountID) (EscrowAuthority, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if grant, exists := l.grants[escrow]; exists {
		return EscrowAuthority{escrow: escrow, grant: grant}, nil
	}
	l.nextGrant++
	l.grants[escrow] = l.nextGrant
	return EscrowAuthority{escrow: escrow, grant: l.nextGrant}, nil
}

func (l *Ledger) TransferFromEscrow(_ context.Context, authority EscrowAuthority, to id.AccountID, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.grants[authority.escrow] != authority.grant || authority.grant == 0 {
		return sentinel.ErrInvalidState
	}
	return l.move(authority.escrow, to, amount)
}

// move requires l.mu held.
func (l *Ledger) move(from, to id.AccountID, amount uint64) error {
	if l.balances[from] < amount {
		return sentinel.ErrInsufficientFunds
	}
	l.balances[from] -= amount
	l.balances[to] += amount
	return nil
}
