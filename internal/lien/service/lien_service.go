package service

import (
	"context"
	"errors"
	"time"

	"github.com/taxlien-online/taxlien-nft/internal/lien/accrual"
	"github.com/taxlien-online/taxlien-nft/internal/lien/models"
	"github.com/taxlien-online/taxlien-nft/internal/lien/store"
	id "github.com/taxlien-online/taxlien-nft/pkg/domain"
	dErrors "github.com/taxlien-online/taxlien-nft/pkg/domain-errors"
	"github.com/taxlien-online/taxlien-nft/pkg/platform/sentinel"
	"github.com/taxlien-online/taxlien-nft/pkg/requestcontext"
)

// StatusUpdate is the result of an administrative transition.
type StatusUpdate struct {
	Record    *models.LienRecord
	OldStatus models.Status
}

// Redemption is the result of a redeem settlement. Record is a snapshot of
// the destroyed record.
type Redemption struct {
	Record  models.LienRecord
	Payout  uint64
	Returns uint64
}

// Initialize creates the registry singleton and acquires the custodial
// escrow authority. Exactly one initialization ever succeeds.
func (s *Service) Initialize(ctx context.Context, admin, feeAccount id.AccountID) (*models.Registry, error) {
	registry, err := models.NewRegistry(admin, feeAccount)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			return nil, dErrors.New(dErrors.CodeValidation, dErrors.MessageOf(err))
		}
		return nil, err
	}
	if err := s.registry.Create(ctx, registry); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "registry already initialized")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create registry")
	}
	if _, err := s.custody(ctx); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to acquire escrow custody")
	}
	s.auditEmitter.emitRegistryInitialized(ctx, registry)
	return registry, nil
}

// CreateLien validates terms and payment, then issues a pending certificate
// atomically under the registry serialization point: the id assignment, the
// fee total, the record, and both fund legs commit together or not at all. A
// failed issuance consumes no id.
func (s *Service) CreateLien(ctx context.Context, terms models.LienTerms, payment uint64) (*models.LienRecord, error) {
	start := time.Now()

	caller := requestcontext.CallerID(ctx)
	if caller.IsZero() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	if err := terms.Validate(); err != nil {
		return nil, err
	}

	fee := accrual.ServiceFee(terms.FaceAmount)
	if payment < accrual.RequiredPayment(terms.FaceAmount) {
		return nil, dErrors.New(dErrors.CodeInsufficientFunds, "insufficient payment")
	}

	authority, err := s.custody(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to acquire escrow custody")
	}
	issueDate := requestcontext.Now(ctx).Unix()

	var record *models.LienRecord
	_, err = s.registry.Execute(ctx, func(txCtx context.Context, registry *models.Registry) error {
		lienID := registry.RecordIssuance(fee)
		rec, err := models.NewLienRecord(lienID, terms, caller, payment, issueDate)
		if err != nil {
			return err
		}
		if err := s.liens.Create(txCtx, rec); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create lien record")
		}

		// Move funds last so validation failures never touch balances. The
		// investor pays face plus fee into escrow in one leg; the fee then
		// moves escrow to fee account under custody, where it cannot fail
		// for balance. Payment beyond face plus fee is recorded on the
		// certificate but never debited. The explicit delete unwinds the
		// memory store; on Postgres the record rolls back with the registry
		// transaction.
		total := terms.FaceAmount + fee
		if err := s.gateway.Transfer(ctx, caller, s.escrowAccount, total); err != nil {
			_ = s.liens.Delete(txCtx, rec.ID)
			if errors.Is(err, sentinel.ErrInsufficientFunds) {
				return dErrors.New(dErrors.CodeInsufficientFunds, "insufficient funds")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to transfer investment")
		}
		if err := s.gateway.TransferFromEscrow(ctx, authority, registry.FeeAccount, fee); err != nil {
			_ = s.gateway.TransferFromEscrow(ctx, authority, caller, total)
			_ = s.liens.Delete(txCtx, rec.ID)
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to collect service fee")
		}
		record = rec
		return nil
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeConflict, "registry not initialized")
		}
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.LiensCreated.Inc()
		s.metrics.FeesCollected.Add(float64(fee))
		s.metrics.ObserveCreate(start)
	}
	if s.logger != nil {
		s.logger.InfoContext(ctx, "lien created",
			"lien_id", record.ID,
			"investor", record.Investor,
			"face_amount", record.FaceAmount,
			"service_fee", fee,
		)
	}
	s.auditEmitter.emitLienCreated(ctx, record)
	return record, nil
}

// UpdateStatus applies an administrative transition. Only the registry admin
// may call it; it never moves funds and never destroys a record. Marking a
// lien redeemed stamps the redemption date the later settlement accrues to.
func (s *Service) UpdateStatus(ctx context.Context, lienID id.LienID, next models.Status) (*StatusUpdate, error) {
	caller := requestcontext.CallerID(ctx)
	if caller.IsZero() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	if !next.Valid() {
		return nil, dErrors.Newf(dErrors.CodeValidation, "unknown status %q", string(next))
	}

	registry, err := s.registry.Get(ctx)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeConflict, "registry not initialized")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load registry")
	}
	if !registry.IsAdmin(caller) {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "admin only")
	}

	now := requestcontext.Now(ctx).Unix()
	var old models.Status
	record, err := s.liens.Execute(ctx, lienID,
		func(rec *models.LienRecord) error {
			old = rec.Status
			return rec.CanUpdateStatus(next)
		},
		func(rec *models.LienRecord) {
			rec.ApplyStatus(next, now)
		},
	)
	if err != nil {
		return nil, wrapLienErr(err, "failed to update lien status")
	}

	if s.metrics != nil {
		s.metrics.StatusUpdates.WithLabelValues(string(old), string(next)).Inc()
	}
	s.auditEmitter.emitStatusUpdated(ctx, record, old, next)
	return &StatusUpdate{Record: record, OldStatus: old}, nil
}

// Redeem settles a lien the admin has marked redeemed: pays the investor
// face plus pro-rated returns out of escrow and destroys the record. The
// payout and the destruction are atomic; a failed transfer leaves the record
// intact.
func (s *Service) Redeem(ctx context.Context, lienID id.LienID) (*Redemption, error) {
	start := time.Now()

	caller := requestcontext.CallerID(ctx)
	if caller.IsZero() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	authority, err := s.custody(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to acquire escrow custody")
	}

	var result Redemption
	err = s.liens.Settle(ctx, lienID, func(rec *models.LienRecord) error {
		if rec.Status != models.StatusRedeemed {
			return dErrors.New(dErrors.CodeInvalidState, "lien is not redeemable")
		}
		if rec.Investor != caller {
			return dErrors.New(dErrors.CodeUnauthorized, "only the investor may redeem")
		}
		payout, returns, err := accrual.Payout(rec.FaceAmount, rec.APR, rec.RedemptionDate-rec.IssueDate)
		if err != nil {
			return err
		}
		if err := s.gateway.TransferFromEscrow(ctx, authority, caller, payout); err != nil {
			if errors.Is(err, sentinel.ErrInsufficientFunds) {
				return dErrors.New(dErrors.CodeInsufficientFunds, "escrow cannot cover payout")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to disburse payout")
		}
		result = Redemption{Record: *rec, Payout: payout, Returns: returns}
		return nil
	})
	if err != nil {
		return nil, wrapLienErr(err, "failed to redeem lien")
	}

	if s.metrics != nil {
		s.metrics.LiensRedeemed.Inc()
		s.metrics.PayoutsTotal.Add(float64(result.Payout))
		s.metrics.ObserveSettle(start)
	}
	if s.logger != nil {
		s.logger.InfoContext(ctx, "lien redeemed",
			"lien_id", lienID,
			"payout", result.Payout,
			"returns", result.Returns,
		)
	}
	s.auditEmitter.emitRedeemed(ctx, &result.Record, result.Payout, result.Returns)
	return &result, nil
}

// ClaimProperty settles a lien the admin has marked claimed: the investor
// takes title off-system, the certificate is destroyed, and no funds move.
func (s *Service) ClaimProperty(ctx context.Context, lienID id.LienID) (*models.LienRecord, error) {
	start := time.Now()

	caller := requestcontext.CallerID(ctx)
	if caller.IsZero() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}

	var snapshot models.LienRecord
	err := s.liens.Settle(ctx, lienID, func(rec *models.LienRecord) error {
		if rec.Status != models.StatusClaimed {
			return dErrors.New(dErrors.CodeInvalidState, "lien is not claimable")
		}
		if rec.Investor != caller {
			return dErrors.New(dErrors.CodeUnauthorized, "only the investor may claim")
		}
		snapshot = *rec
		return nil
	})
	if err != nil {
		return nil, wrapLienErr(err, "failed to claim property")
	}

	if s.metrics != nil {
		s.metrics.PropertiesClaimed.Inc()
		s.metrics.ObserveSettle(start)
	}
	if s.logger != nil {
		s.logger.InfoContext(ctx, "property claimed",
			"lien_id", lienID,
			"property_value", snapshot.PropertyValue,
		)
	}
	s.auditEmitter.emitPropertyClaimed(ctx, &snapshot)
	return &snapshot, nil
}

// GetLien fetches a record by id. Settled liens are gone and report not
// found.
func (s *Service) GetLien(ctx context.Context, lienID id.LienID) (*models.LienRecord, error) {
	record, err := s.liens.Get(ctx, lienID)
	if err != nil {
		return nil, wrapLienErr(err, "failed to load lien")
	}
	return record, nil
}

// ListLiens returns records matching the filter, ordered by id, plus the
// total match count before pagination.
func (s *Service) ListLiens(ctx context.Context, filter store.ListFilter, page store.Page) ([]*models.LienRecord, int, error) {
	records, total, err := s.liens.List(ctx, filter, page)
	if err != nil {
		return nil, 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list liens")
	}
	return records, total, nil
}

// GetRegistry reports the registry counters.
func (s *Service) GetRegistry(ctx context.Context) (*models.Registry, error) {
	registry, err := s.registry.Get(ctx)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "registry not initialized")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load registry")
	}
	return registry, nil
}

// wrapLienErr translates store sentinels, passing already-coded domain
// errors through untouched.
func wrapLienErr(err error, message string) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "lien not found")
	}
	var de *dErrors.Error
	if errors.As(err, &de) {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, message)
}
