// Package service orchestrates the tax-lien certificate lifecycle: issuance,
// administrative status decisions, and the two settlement paths.
package service

import (
	"context"
	"log/slog"
	"sync"

	"github.com/taxlien-online/taxlien-nft/internal/lien/gateway"
	lienmetrics "github.com/taxlien-online/taxlien-nft/internal/lien/metrics"
	"github.com/taxlien-online/taxlien-nft/internal/lien/store"
	id "github.com/taxlien-online/taxlien-nft/pkg/domain"
	audit "github.com/taxlien-online/taxlien-nft/pkg/platform/audit"
)

// AuditPublisher delivers lifecycle events to the audit trail.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service coordinates the registry, the lien records, and the settlement
// gateway. All money movement goes through the gateway; the service never
// holds funds, only the custodial escrow authority.
type Service struct {
	registry      store.RegistryStore
	liens         store.LienStore
	gateway       gateway.SettlementGateway
	escrowAccount id.AccountID

	custodyMu  sync.Mutex
	escrowAuth *gateway.EscrowAuthority

	logger       *slog.Logger
	auditEmitter *auditEmitter
	metrics      *lienmetrics.Metrics
}

// Option configures a Service.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditEmitter.publisher = publisher
	}
}

func WithMetrics(m *lienmetrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// New constructs a Service. The escrow account is the pooled custody account
// investment capital settles into; the service acquires the custodial
// authority over it lazily from the gateway.
func New(registry store.RegistryStore, liens store.LienStore, gw gateway.SettlementGateway, escrowAccount id.AccountID, opts ...Option) *Service {
	s := &Service{
		registry:      registry,
		liens:         liens,
		gateway:       gw,
		escrowAccount: escrowAccount,
		auditEmitter:  &auditEmitter{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.auditEmitter.logger = s.logger
	return s
}

// custody returns the escrow authority, acquiring it from the gateway on
// first use. Granting is idempotent, so a restarted process reacquires the
// same authority.
func (s *Service) custody(ctx context.Context) (gateway.EscrowAuthority, error) {
	s.custodyMu.Lock()
	defer s.custodyMu.Unlock()
	if s.escrowAuth != nil {
		return *s.escrowAuth, nil
	}
	auth, err := s.gateway.GrantCustody(ctx, s.escrowAccount)
	if err != nil {
		return gateway.EscrowAuthority{}, err
	}
	s.escrowAuth = &auth
	return auth, nil
}
