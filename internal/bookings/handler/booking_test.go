package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	apperrors "urut/pkg/errors"
	"urut/pkg/logger"
	"urut/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type mockBookingService struct {
	createFunc  func(ctx context.Context, req *model.BookingRequest) (*model.Booking, error)
	acceptFunc  func(ctx context.Context, id string) (*model.Booking, error)
	getByIDFunc func(ctx context.Context, id string) (*model.Booking, error)
	listFunc    func(ctx context.Context, id string, limit int, offset int64) ([]*model.Booking, int64, error)
	summaryFunc func(ctx context.Context, from, to *time.Time) (*model.CommissionSummary, error)
	recordFunc  func(ctx context.Context, bookingID string) (*model.CommissionRecord, error)
}

func (m *mockBookingService) Create(ctx context.Context, req *model.BookingRequest) (*model.Booking, error) {
	return m.createFunc(ctx, req)
}
func (m *mockBookingService) Accept(ctx context.Context, id string) (*model.Booking, error) {
	return m.acceptFunc(ctx, id)
}
func (m *mockBookingService) Decline(ctx context.Context, id, reason string) (*model.Booking, error) {
	return &model.Booking{BookingID: id, Status: model.StatusDeclined, DeclineReason: reason}, nil
}
func (m *mockBookingService) Confirm(ctx context.Context, id string) (*model.Booking, error) {
	return &model.Booking{BookingID: id, Status: model.StatusConfirmed}, nil
}
func (m *mockBookingService) Cancel(ctx context.Context, id, reason string) (*model.Booking, error) {
	return &model.Booking{BookingID: id, Status: model.StatusDeclined, DeclineReason: reason}, nil
}
func (m *mockBookingService) Complete(ctx context.Context, id string) (*model.Booking, error) {
	return &model.Booking{BookingID: id, Status: model.StatusCompleted}, nil
}
func (m *mockBookingService) GetByID(ctx context.Context, id string) (*model.Booking, error) {
	return m.getByIDFunc(ctx, id)
}
func (m *mockBookingService) ListByProvider(ctx context.Context, providerID string, limit int, offset int64) ([]*model.Booking, int64, error) {
	return m.listFunc(ctx, providerID, limit, offset)
}
func (m *mockBookingService) ListByCustomer(ctx context.Context, customerID string, limit int, offset int64) ([]*model.Booking, int64, error) {
	return m.listFunc(ctx, customerID, limit, offset)
}
func (m *mockBookingService) CommissionSummary(ctx context.Context, from, to *time.Time) (*model.CommissionSummary, error) {
	return m.summaryFunc(ctx, from, to)
}
func (m *mockBookingService) GetCommission(ctx context.Context, bookingID string) (*model.CommissionRecord, error) {
	return m.recordFunc(ctx, bookingID)
}

func newTestRouter(service *mockBookingService) *httprouter.Router {
	log := logger.New(logger.Config{Output: io.Discard})
	router := httprouter.New()
	NewBookingHandler(service, log).RegisterRoutes(router)
	return router
}

func TestCreateReturnsCreated(t *testing.T) {
	service := &mockBookingService{
		createFunc: func(ctx context.Context, req *model.BookingRequest) (*model.Booking, error) {
			return &model.Booking{
				BookingID: "BK1756461600000_ABCDEF",
				Status:    model.StatusPending,
				Price:     req.Price,
			}, nil
		},
	}
	router := newTestRouter(service)

	body := `{"customer_id":"cust-1","customer_name":"Budi Santoso","customer_phone":"+6281234567890","provider_id":"prov-1","provider_kind":"therapist","duration":90,"price":250000}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/bookings", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Data model.Booking `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Data.BookingID != "BK1756461600000_ABCDEF" {
		t.Errorf("unexpected booking id %s", resp.Data.BookingID)
	}
	if resp.Data.Status != model.StatusPending {
		t.Errorf("expected PENDING, got %s", resp.Data.Status)
	}
}

func TestCreateRejectsMalformedBody(t *testing.T) {
	service := &mockBookingService{
		createFunc: func(ctx context.Context, req *model.BookingRequest) (*model.Booking, error) {
			t.Error("handler must not call the service on a malformed body")
			return nil, nil
		},
	}
	router := newTestRouter(service)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/bookings", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestGetByIDNotFound(t *testing.T) {
	service := &mockBookingService{
		getByIDFunc: func(ctx context.Context, id string) (*model.Booking, error) {
			return nil, apperrors.NotFoundWithID("booking", id)
		},
	}
	router := newTestRouter(service)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/bookings/id/BK123_MISSING", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestAcceptConflictMapsTo409(t *testing.T) {
	service := &mockBookingService{
		acceptFunc: func(ctx context.Context, id string) (*model.Booking, error) {
			return nil, apperrors.Conflict("deadline for this action has elapsed")
		},
	}
	router := newTestRouter(service)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/bookings/id/BK123_ABCDEF/accept", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
}

func TestDeclinePassesReason(t *testing.T) {
	service := &mockBookingService{}
	router := newTestRouter(service)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/bookings/id/BK123_ABCDEF/decline",
		strings.NewReader(`{"reason":"fully booked"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp struct {
		Data model.Booking `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Data.DeclineReason != "fully booked" {
		t.Errorf("expected the reason to pass through, got %q", resp.Data.DeclineReason)
	}
}

func TestListByProviderNormalizesPagination(t *testing.T) {
	var gotLimit int
	var gotOffset int64
	service := &mockBookingService{
		listFunc: func(ctx context.Context, id string, limit int, offset int64) ([]*model.Booking, int64, error) {
			gotLimit = limit
			gotOffset = offset
			return nil, 0, nil
		},
	}
	router := newTestRouter(service)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/providers/prov-1/bookings?limit=100000&offset=-5", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if gotLimit > 100 || gotLimit <= 0 {
		t.Errorf("limit must be clamped, got %d", gotLimit)
	}
	if gotOffset != 0 {
		t.Errorf("negative offset must normalize to 0, got %d", gotOffset)
	}
}

func TestListByProviderRejectsBadLimit(t *testing.T) {
	service := &mockBookingService{
		listFunc: func(ctx context.Context, id string, limit int, offset int64) ([]*model.Booking, int64, error) {
			t.Error("handler must not call the service with an unparseable limit")
			return nil, 0, nil
		},
	}
	router := newTestRouter(service)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/providers/prov-1/bookings?limit=ten", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestGetCommissionReturnsRecord(t *testing.T) {
	service := &mockBookingService{
		recordFunc: func(ctx context.Context, bookingID string) (*model.CommissionRecord, error) {
			return &model.CommissionRecord{
				BookingID:       bookingID,
				Price:           250000,
				AdminCommission: 75000,
				ProviderPayout:  175000,
				Rate:            0.30,
			}, nil
		},
	}
	router := newTestRouter(service)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/bookings/id/BK1756461600000_ABCDEF/commission", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Data model.CommissionRecord `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Data.AdminCommission != 75000 || resp.Data.ProviderPayout != 175000 {
		t.Errorf("unexpected commission split %d/%d", resp.Data.AdminCommission, resp.Data.ProviderPayout)
	}
}

func TestGetCommissionNotFound(t *testing.T) {
	service := &mockBookingService{
		recordFunc: func(ctx context.Context, bookingID string) (*model.CommissionRecord, error) {
			return nil, apperrors.NotFoundWithID("commission record", bookingID)
		},
	}
	router := newTestRouter(service)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/bookings/id/BK1756461600000_ABCDEF/commission", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestCommissionSummaryParsesWindow(t *testing.T) {
	var gotFrom, gotTo *time.Time
	service := &mockBookingService{
		summaryFunc: func(ctx context.Context, from, to *time.Time) (*model.CommissionSummary, error) {
			gotFrom, gotTo = from, to
			return &model.CommissionSummary{TotalBookings: 3}, nil
		},
	}
	router := newTestRouter(service)

	req := httptest.NewRequest(http.MethodGet,
		"/api/v1/commissions/summary?from=2025-08-01T00:00:00Z&to=2025-08-31T00:00:00Z", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if gotFrom == nil || gotTo == nil {
		t.Fatal("expected both window bounds to be parsed")
	}
	if gotFrom.Month() != time.August || gotTo.Day() != 31 {
		t.Errorf("unexpected window %s - %s", gotFrom, gotTo)
	}
}

func TestCommissionSummaryRejectsBadWindow(t *testing.T) {
	service := &mockBookingService{
		summaryFunc: func(ctx context.Context, from, to *time.Time) (*model.CommissionSummary, error) {
			t.Error("handler must not call the service with an unparseable window")
			return nil, nil
		},
	}
	router := newTestRouter(service)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/commissions/summary?from=yesterday", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}
