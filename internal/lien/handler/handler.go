// Package handler exposes the lien lifecycle over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/taxlien-online/taxlien-nft/internal/lien/idempotency"
	"github.com/taxlien-online/taxlien-nft/internal/lien/models"
	"github.com/taxlien-online/taxlien-nft/internal/lien/service"
	"github.com/taxlien-online/taxlien-nft/internal/lien/store"
	id "github.com/taxlien-online/taxlien-nft/pkg/domain"
	dErrors "github.com/taxlien-online/taxlien-nft/pkg/domain-errors"
	"github.com/taxlien-online/taxlien-nft/pkg/platform/httputil"
	"github.com/taxlien-online/taxlien-nft/pkg/requestcontext"
)

// idempotencyHeader carries the client's issuance deduplication key.
const idempotencyHeader = "Idempotency-Key"

// Service defines the lifecycle operations the handler exposes.
type Service interface {
	Initialize(ctx context.Context, admin, feeAccount id.AccountID) (*models.Registry, error)
	CreateLien(ctx context.Context, terms models.LienTerms, payment uint64) (*models.LienRecord, error)
	UpdateStatus(ctx context.Context, lienID id.LienID, next models.Status) (*service.StatusUpdate, error)
	Redeem(ctx context.Context, lienID id.LienID) (*service.Redemption, error)
	ClaimProperty(ctx context.Context, lienID id.LienID) (*models.LienRecord, error)
	GetLien(ctx context.Context, lienID id.LienID) (*models.LienRecord, error)
	ListLiens(ctx context.Context, filter store.ListFilter, page store.Page) ([]*models.LienRecord, int, error)
	GetRegistry(ctx context.Context) (*models.Registry, error)
}

// Handler wires lien endpoints to the lien service.
type Handler struct {
	service     Service
	idempotency idempotency.Store
	logger      *slog.Logger
}

// New constructs a lien handler with its dependencies. The idempotency store
// may be nil, disabling issuance deduplication.
func New(service Service, idempotencyStore idempotency.Store, logger *slog.Logger) *Handler {
	return &Handler{
		service:     service,
		idempotency: idempotencyStore,
		logger:      logger,
	}
}

// Register mounts lien endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/registry", h.HandleInitialize)
	r.Get("/registry", h.HandleGetRegistry)
	r.Post("/liens", h.HandleCreateLien)
	r.Get("/liens", h.HandleListLiens)
	r.Get("/liens/{lienID}", h.HandleGetLien)
	r.Put("/liens/{lienID}/status", h.HandleUpdateStatus)
	r.Post("/liens/{lienID}/redeem", h.HandleRedeem)
	r.Post("/liens/{lienID}/claim", h.HandleClaimProperty)
}

// HandleInitialize handles POST /registry. The caller becomes the registry
// admin.
func (h *Handler) HandleInitialize(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	caller := requestcontext.CallerID(ctx)
	if caller.IsZero() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	req, ok := httputil.DecodeAndPrepare[InitializeRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	registry, err := h.service.Initialize(ctx, caller, req.ParsedFeeAccount())
	if err != nil {
		h.logger.ErrorContext(ctx, "registry initialization failed",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "registry initialized",
		"request_id", requestID,
		"admin", registry.AdminAccount,
	)
	httputil.WriteJSON(w, http.StatusCreated, FromRegistry(registry))
}

// HandleGetRegistry handles GET /registry.
func (h *Handler) HandleGetRegistry(w http.ResponseWriter, r *http.Request) {
	registry, err := h.service.GetRegistry(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromRegistry(registry))
}

// HandleCreateLien handles POST /liens. An Idempotency-Key header makes the
// request safely retryable: a replay returns the lien already issued.
func (h *Handler) HandleCreateLien(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	caller := requestcontext.CallerID(ctx)
	if caller.IsZero() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	idemKey := r.Header.Get(idempotencyHeader)
	if idemKey != "" && h.idempotency != nil {
		lienID, found, err := h.idempotency.Lookup(ctx, idemKey)
		if err != nil {
			h.logger.WarnContext(ctx, "idempotency lookup failed",
				"request_id", requestID,
				"error", err,
			)
		} else if found {
			httputil.WriteJSON(w, http.StatusOK, CreateLienResponse{ID: uint64(lienID)})
			return
		}
	}

	req, ok := httputil.DecodeAndPrepare[CreateLienRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	record, err := h.service.CreateLien(ctx, req.Terms(), req.Payment)
	if err != nil {
		h.logger.ErrorContext(ctx, "lien creation failed",
			"request_id", requestID,
			"investor", caller,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	if idemKey != "" && h.idempotency != nil {
		if err := h.idempotency.Remember(ctx, idemKey, record.ID); err != nil {
			h.logger.WarnContext(ctx, "idempotency remember failed",
				"request_id", requestID,
				"error", err,
			)
		}
	}

	h.logger.InfoContext(ctx, "lien created",
		"request_id", requestID,
		"lien_id", record.ID,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusCreated, CreateLienResponse{ID: uint64(record.ID)})
}

// HandleListLiens handles GET /liens with status/state/county/APR filters and
// limit/offset pagination.
func (h *Handler) HandleListLiens(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	filter, page, err := parseListQuery(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	records, total, err := h.service.ListLiens(ctx, filter, page)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	liens := make([]LienResponse, 0, len(records))
	for _, record := range records {
		liens = append(liens, FromRecord(record))
	}
	httputil.WriteJSON(w, http.StatusOK, ListLiensResponse{
		Liens:  liens,
		Total:  total,
		Limit:  page.Limit,
		Offset: page.Offset,
	})
}

// HandleGetLien handles GET /liens/{lienID}.
func (h *Handler) HandleGetLien(w http.ResponseWriter, r *http.Request) {
	lienID, err := id.ParseLienID(chi.URLParam(r, "lienID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	record, err := h.service.GetLien(r.Context(), lienID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromRecord(record))
}

// HandleUpdateStatus handles PUT /liens/{lienID}/status (admin only).
func (h *Handler) HandleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	lienID, err := id.ParseLienID(chi.URLParam(r, "lienID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[UpdateStatusRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	update, err := h.service.UpdateStatus(ctx, lienID, req.ParsedStatus())
	if err != nil {
		h.logger.ErrorContext(ctx, "status update failed",
			"request_id", requestID,
			"lien_id", lienID,
			"target_status", req.Status,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "lien status updated",
		"request_id", requestID,
		"lien_id", lienID,
		"old_status", update.OldStatus,
		"new_status", update.Record.Status,
	)
	httputil.WriteJSON(w, http.StatusOK, FromStatusUpdate(update))
}

// HandleRedeem handles POST /liens/{lienID}/redeem.
func (h *Handler) HandleRedeem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	lienID, err := id.ParseLienID(chi.URLParam(r, "lienID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	redemption, err := h.service.Redeem(ctx, lienID)
	if err != nil {
		h.logger.ErrorContext(ctx, "redemption failed",
			"request_id", requestID,
			"lien_id", lienID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "lien redeemed",
		"request_id", requestID,
		"lien_id", lienID,
		"payout", redemption.Payout,
	)
	httputil.WriteJSON(w, http.StatusOK, RedeemResponse{
		ID:      uint64(lienID),
		Payout:  redemption.Payout,
		Returns: redemption.Returns,
	})
}

// HandleClaimProperty handles POST /liens/{lienID}/claim.
func (h *Handler) HandleClaimProperty(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	lienID, err := id.ParseLienID(chi.URLParam(r, "lienID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	record, err := h.service.ClaimProperty(ctx, lienID)
	if err != nil {
		h.logger.ErrorContext(ctx, "property claim failed",
			"request_id", requestID,
			"lien_id", lienID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "property claimed",
		"request_id", requestID,
		"lien_id", lienID,
	)
	httputil.WriteJSON(w, http.StatusOK, ClaimResponse{
		ID:            uint64(record.ID),
		PropertyValue: record.PropertyValue,
	})
}

func parseListQuery(r *http.Request) (store.ListFilter, store.Page, error) {
	var filter store.ListFilter
	query := r.URL.Query()

	if raw := query.Get("status"); raw != "" {
		status, err := models.ParseStatus(raw)
		if err != nil {
			return filter, store.Page{}, err
		}
		filter.Status = &status
	}
	filter.State = query.Get("state")
	filter.County = query.Get("county")

	minAPR, err := parseUint16Param(query.Get("min_apr"), "min_apr")
	if err != nil {
		return filter, store.Page{}, err
	}
	maxAPR, err := parseUint16Param(query.Get("max_apr"), "max_apr")
	if err != nil {
		return filter, store.Page{}, err
	}
	filter.MinAPR = minAPR
	filter.MaxAPR = maxAPR

	page := store.Page{Limit: 20}
	if raw := query.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 || limit > 100 {
			return filter, page, dErrors.New(dErrors.CodeInvalidInput, "limit must be between 1 and 100")
		}
		page.Limit = limit
	}
	if raw := query.Get("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			return filter, page, dErrors.New(dErrors.CodeInvalidInput, "offset must be a non-negative integer")
		}
		page.Offset = offset
	}
	return filter, page, nil
}

func parseUint16Param(raw, name string) (uint16, error) {
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseUint(raw, 10, 16)
	if err != nil {
		return 0, dErrors.Newf(dErrors.CodeInvalidInput, "%s must be an unsigned integer", name)
	}
	return uint16(v), nil
}
