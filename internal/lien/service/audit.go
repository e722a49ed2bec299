package service

import (
	"context"
	"log/slog"

	"github.com/taxlien-online/taxlien-nft/internal/lien/models"
	audit "github.com/taxlien-online/taxlien-nft/pkg/platform/audit"
	"github.com/taxlien-online/taxlien-nft/pkg/requestcontext"
)

// auditEmitter records lifecycle events after an operation has committed.
// Delivery is best effort: a failing audit sink is logged, never unwinds a
// settled operation.
type auditEmitter struct {
	logger    *slog.Logger
	publisher AuditPublisher
}

func (e *auditEmitter) emit(ctx context.Context, action audit.AuditEvent, event audit.Event) {
	event.Action = string(action)
	event.Category = audit.CategoryFor(action)
	event.Timestamp = requestcontext.Now(ctx)
	event.RequestID = requestcontext.RequestID(ctx)

	if e.logger != nil {
		attrs := []any{"log_type", "audit", "request_id", event.RequestID}
		if event.HasLien {
			attrs = append(attrs, "lien_id", event.LienID)
		}
		e.logger.InfoContext(ctx, string(action), attrs...)
	}
	if e.publisher == nil {
		return
	}
	if err := e.publisher.Emit(ctx, event); err != nil && e.logger != nil {
		e.logger.ErrorContext(ctx, "audit emit failed", "action", action, "error", err)
	}
}

func (e *auditEmitter) emitRegistryInitialized(ctx context.Context, registry *models.Registry) {
	e.emit(ctx, audit.EventRegistryInitialized, audit.Event{
		Investor: registry.AdminAccount,
	})
}

func (e *auditEmitter) emitLienCreated(ctx context.Context, record *models.LienRecord) {
	e.emit(ctx, audit.EventLienCreated, audit.Event{
		HasLien:    true,
		LienID:     record.ID,
		Investor:   record.Investor,
		ParcelID:   record.ParcelID,
		FaceAmount: record.FaceAmount,
		APR:        record.APR,
	})
}

func (e *auditEmitter) emitStatusUpdated(ctx context.Context, record *models.LienRecord, old, next models.Status) {
	e.emit(ctx, audit.EventStatusUpdated, audit.Event{
		HasLien:   true,
		LienID:    record.ID,
		OldStatus: string(old),
		NewStatus: string(next),
	})
}

func (e *auditEmitter) emitRedeemed(ctx context.Context, record *models.LienRecord, payout, returns uint64) {
	e.emit(ctx, audit.EventLienRedeemed, audit.Event{
		HasLien:  true,
		LienID:   record.ID,
		Investor: record.Investor,
		Payout:   payout,
		Returns:  returns,
	})
}

func (e *auditEmitter) emitPropertyClaimed(ctx context.Context, record *models.LienRecord) {
	e.emit(ctx, audit.EventPropertyClaimed, audit.Event{
		HasLien:       true,
		LienID:        record.ID,
		Investor:      record.Investor,
		PropertyValue: record.PropertyValue,
	})
}
