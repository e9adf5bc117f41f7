package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"urut/pkg/config"
	apperrors "urut/pkg/errors"
	httputil "urut/pkg/http"
	"urut/pkg/logger"
	"urut/pkg/model"

	"github.com/julienschmidt/httprouter"
)

// BookingService is the slice of the booking core the HTTP surface needs.
type BookingService interface {
	Create(ctx context.Context, req *model.BookingRequest) (*model.Booking, error)
	Accept(ctx context.Context, id string) (*model.Booking, error)
	Decline(ctx context.Context, id, reason string) (*model.Booking, error)
	Confirm(ctx context.Context, id string) (*model.Booking, error)
	Cancel(ctx context.Context, id, reason string) (*model.Booking, error)
	Complete(ctx context.Context, id string) (*model.Booking, error)
	GetByID(ctx context.Context, id string) (*model.Booking, error)
	GetCommission(ctx context.Context, bookingID string) (*model.CommissionRecord, error)
	ListByProvider(ctx context.Context, providerID string, limit int, offset int64) ([]*model.Booking, int64, error)
	ListByCustomer(ctx context.Context, customerID string, limit int, offset int64) ([]*model.Booking, int64, error)
	CommissionSummary(ctx context.Context, from, to *time.Time) (*model.CommissionSummary, error)
}

type BookingHandler struct {
	service BookingService
	log     *logger.Logger
}

func NewBookingHandler(service BookingService, log *logger.Logger) *BookingHandler {
	return &BookingHandler{
		service: service,
		log:     log,
	}
}

type reasonRequest struct {
	Reason string `json:"reason"`
}

func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req model.BookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if writeErr := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		}); writeErr != nil {
			h.log.Error("failed to write JSON response", "handler", "Create", "operation", "WriteJSON", "error", writeErr)
		}
		return
	}

	booking, err := h.service.Create(r.Context(), &req)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Create", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteCreated(w, booking); err != nil {
		h.log.Error("failed to write created response", "handler", "Create", "operation", "WriteCreated", "error", err)
	}
}

func (h *BookingHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")

	booking, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "GetByID", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, booking); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByID", "operation", "WriteSuccess", "error", err)
	}
}

func (h *BookingHandler) GetCommission(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	record, err := h.service.GetCommission(r.Context(), ps.ByName("id"))
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "GetCommission", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, record); err != nil {
		h.log.Error("failed to write success response", "handler", "GetCommission", "operation", "WriteSuccess", "error", err)
	}
}

func (h *BookingHandler) Accept(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	h.transition(w, r, "Accept", func(ctx context.Context) (*model.Booking, error) {
		return h.service.Accept(ctx, ps.ByName("id"))
	})
}

func (h *BookingHandler) Decline(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	reason := h.decodeReason(r)
	h.transition(w, r, "Decline", func(ctx context.Context) (*model.Booking, error) {
		return h.service.Decline(ctx, ps.ByName("id"), reason)
	})
}

func (h *BookingHandler) Confirm(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	h.transition(w, r, "Confirm", func(ctx context.Context) (*model.Booking, error) {
		return h.service.Confirm(ctx, ps.ByName("id"))
	})
}

func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	reason := h.decodeReason(r)
	h.transition(w, r, "Cancel", func(ctx context.Context) (*model.Booking, error) {
		return h.service.Cancel(ctx, ps.ByName("id"), reason)
	})
}

func (h *BookingHandler) Complete(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	h.transition(w, r, "Complete", func(ctx context.Context) (*model.Booking, error) {
		return h.service.Complete(ctx, ps.ByName("id"))
	})
}

func (h *BookingHandler) transition(w http.ResponseWriter, r *http.Request, name string, apply func(ctx context.Context) (*model.Booking, error)) {
	booking, err := apply(r.Context())
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", name, "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, booking); err != nil {
		h.log.Error("failed to write success response", "handler", name, "operation", "WriteSuccess", "error", err)
	}
}

// decodeReason reads the optional reason body. A missing or malformed body
// just means no reason was given.
func (h *BookingHandler) decodeReason(r *http.Request) string {
	var req reasonRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return ""
	}
	return req.Reason
}

func (h *BookingHandler) ListByProvider(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	h.list(w, r, "ListByProvider", func(ctx context.Context, limit int, offset int64) ([]*model.Booking, int64, error) {
		return h.service.ListByProvider(ctx, ps.ByName("id"), limit, offset)
	})
}

func (h *BookingHandler) ListByCustomer(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	h.list(w, r, "ListByCustomer", func(ctx context.Context, limit int, offset int64) ([]*model.Booking, int64, error) {
		return h.service.ListByCustomer(ctx, ps.ByName("id"), limit, offset)
	})
}

func (h *BookingHandler) list(w http.ResponseWriter, r *http.Request, name string, find func(ctx context.Context, limit int, offset int64) ([]*model.Booking, int64, error)) {
	query := r.URL.Query()

	limit := 0
	if limitStr := query.Get("limit"); limitStr != "" {
		var err error
		limit, err = strconv.Atoi(limitStr)
		if err != nil {
			if writeErr := httputil.WriteError(w, apperrors.InvalidInput(fmt.Sprintf("invalid limit parameter: %s", limitStr))); writeErr != nil {
				h.log.Error("failed to write error response", "handler", name, "operation", "WriteError", "error", writeErr)
			}
			return
		}
	}

	var offset int64
	if offsetStr := query.Get("offset"); offsetStr != "" {
		var err error
		offset, err = strconv.ParseInt(offsetStr, 10, 64)
		if err != nil {
			if writeErr := httputil.WriteError(w, apperrors.InvalidInput(fmt.Sprintf("invalid offset parameter: %s", offsetStr))); writeErr != nil {
				h.log.Error("failed to write error response", "handler", name, "operation", "WriteError", "error", writeErr)
			}
			return
		}
	}

	limit = config.NormalizePaginationLimit(limit)
	offset = config.NormalizeOffset(offset)

	bookings, total, err := find(r.Context(), limit, offset)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", name, "operation", "WriteError", "error", writeErr)
		}
		return
	}
	if bookings == nil {
		bookings = []*model.Booking{}
	}

	if err := httputil.WritePaginated(w, bookings, total, limit, int(offset)); err != nil {
		h.log.Error("failed to write paginated response", "handler", name, "operation", "WritePaginated", "error", err)
	}
}

func (h *BookingHandler) CommissionSummary(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	query := r.URL.Query()

	from, err := h.parseTimeParam(query.Get("from"))
	if err != nil {
		if writeErr := httputil.WriteError(w, apperrors.InvalidInput("invalid from parameter, expected RFC3339")); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "CommissionSummary", "operation", "WriteError", "error", writeErr)
		}
		return
	}
	to, err := h.parseTimeParam(query.Get("to"))
	if err != nil {
		if writeErr := httputil.WriteError(w, apperrors.InvalidInput("invalid to parameter, expected RFC3339")); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "CommissionSummary", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	summary, err := h.service.CommissionSummary(r.Context(), from, to)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "CommissionSummary", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, summary); err != nil {
		h.log.Error("failed to write success response", "handler", "CommissionSummary", "operation", "WriteSuccess", "error", err)
	}
}

func (h *BookingHandler) parseTimeParam(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

func (h *BookingHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/bookings", h.Create)
	router.GET("/api/v1/bookings/id/:id", h.GetByID)
	router.GET("/api/v1/bookings/id/:id/commission", h.GetCommission)
	router.POST("/api/v1/bookings/id/:id/accept", h.Accept)
	router.POST("/api/v1/bookings/id/:id/decline", h.Decline)
	router.POST("/api/v1/bookings/id/:id/confirm", h.Confirm)
	router.POST("/api/v1/bookings/id/:id/cancel", h.Cancel)
	router.POST("/api/v1/bookings/id/:id/complete", h.Complete)
	router.GET("/api/v1/providers/:id/bookings", h.ListByProvider)
	router.GET("/api/v1/customers/:id/bookings", h.ListByCustomer)
	router.GET("/api/v1/commissions/summary", h.CommissionSummary)
}
