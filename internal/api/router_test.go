package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/99minutos/locker-system/internal/api/handler"
	"github.com/99minutos/locker-system/internal/core/domain"
	"github.com/99minutos/locker-system/internal/core/hub"
	"github.com/99minutos/locker-system/internal/core/ports"
)

const testSecret = "test-secret"

type fakeAdmission struct{ err error }

func (f *fakeAdmission) Create(_ context.Context, in ports.CreateParcelInput) (*ports.ParcelResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &ports.ParcelResult{Parcel: &domain.Parcel{
		ID: "p1", TrackingNumber: in.TrackingNumber, OwnerID: in.Requester.ID,
		Kind: domain.ParcelKind(in.Kind), Status: domain.StatusInTransit,
	}}, nil
}

type fakeTransitions struct{ err error }

func (f *fakeTransitions) Transition(context.Context, ports.TransitionInput) (*domain.Parcel, error) {
	return nil, f.err
}

func (f *fakeTransitions) TransitionBatch(context.Context, ports.BatchTransitionInput) (*ports.BatchTransitionResult, error) {
	return &ports.BatchTransitionResult{}, nil
}

type fakeParcels struct{ err error }

func (f *fakeParcels) Get(context.Context, string, domain.Requester) (*domain.Parcel, error) {
	return nil, f.err
}
func (f *fakeParcels) List(context.Context, ports.ListParcelsInput) ([]*domain.Parcel, error) {
	return nil, f.err
}
func (f *fakeParcels) Update(context.Context, ports.UpdateParcelInput) (*domain.Parcel, error) {
	return nil, f.err
}
func (f *fakeParcels) Delete(context.Context, string, domain.Requester) error { return f.err }
func (f *fakeParcels) Stats(context.Context, domain.Requester) (*domain.ParcelStats, error) {
	return nil, f.err
}
func (f *fakeParcels) Lockers(context.Context) (*domain.Occupancy, error) { return nil, f.err }
func (f *fakeParcels) Capacity(context.Context) (*ports.CapacityView, error) {
	return nil, f.err
}

type fakeRepairer struct{ calls []string }

func (f *fakeRepairer) Resync(_ context.Context, id string) error {
	f.calls = append(f.calls, id)
	return nil
}

type fakeWatcher struct{}

func (fakeWatcher) Watch(context.Context, hub.WatchFilter) *hub.Subscription { return nil }

func newTestRouter(admissionErr, serviceErr error, repairer *fakeRepairer) *echo.Echo {
	return NewRouter(Deps{
		Log:         zerolog.Nop(),
		JWTSecret:   testSecret,
		Admission:   &fakeAdmission{err: admissionErr},
		Transitions: &fakeTransitions{err: serviceErr},
		Parcels:     &fakeParcels{err: serviceErr},
		Repairer:    repairer,
		Watcher:     fakeWatcher{},
		Readiness:   map[string]handler.Pinger{},
		Registry:    prometheus.NewRegistry(),
	})
}

func bearer(t *testing.T, sub, role string) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  sub,
		"role": role,
		"exp":  time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return "Bearer " + signed
}

func do(t *testing.T, e *echo.Echo, method, path, body, auth string) (*httptest.ResponseRecorder, errorResponse) {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	var resp errorResponse
	if rec.Code >= 400 {
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("invalid error envelope %q: %v", rec.Body.String(), err)
		}
	}
	return rec, resp
}

func TestRouter_AdmissionErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		code int
		name string
	}{
		{fmt.Errorf("create parcel: %w", domain.ErrCodLimitReached), http.StatusConflict, "cod_limit_reached"},
		{fmt.Errorf("create parcel: %w (fill 95.0%%)", domain.ErrCapacityExceeded), http.StatusConflict, "capacity_exceeded"},
		{fmt.Errorf("create parcel: %w", domain.ErrDuplicateRequest), http.StatusConflict, "duplicate_request"},
		{fmt.Errorf("create parcel: %w: tracking number is required", domain.ErrInvalidInput), http.StatusBadRequest, "invalid_input"},
		{fmt.Errorf("create parcel: %w", domain.ErrStoreUnavailable), http.StatusServiceUnavailable, "store_unavailable"},
		{fmt.Errorf("create parcel: %w", domain.ErrNoLockerAvailable), http.StatusInternalServerError, "no_locker_available"},
		{fmt.Errorf("boom"), http.StatusInternalServerError, "internal"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := newTestRouter(tc.err, nil, &fakeRepairer{})
			rec, resp := do(t, e, http.MethodPost, "/v1/parcels", `{"tracking_number":"TRK-1","kind":"cod"}`, bearer(t, "user-1", "user"))
			if rec.Code != tc.code {
				t.Fatalf("expected %d, got %d", tc.code, rec.Code)
			}
			if resp.Code != tc.name {
				t.Fatalf("expected code %q, got %q", tc.name, resp.Code)
			}
		})
	}
}

func TestRouter_ServiceErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		code int
		name string
	}{
		{fmt.Errorf("get parcel: %w", domain.ErrParcelNotFound), http.StatusNotFound, "not_found"},
		{fmt.Errorf("get parcel: %w", domain.ErrForbidden), http.StatusForbidden, "forbidden"},
	}
	for _, tc := range cases {
		e := newTestRouter(nil, tc.err, &fakeRepairer{})
		rec, resp := do(t, e, http.MethodGet, "/v1/parcels/p1", "", bearer(t, "user-1", "user"))
		if rec.Code != tc.code || resp.Code != tc.name {
			t.Fatalf("expected %d/%s, got %d/%s", tc.code, tc.name, rec.Code, resp.Code)
		}
	}

	e := newTestRouter(nil, fmt.Errorf("transition: %w: from in_transit to collected", domain.ErrIllegalTransition), &fakeRepairer{})
	rec, resp := do(t, e, http.MethodPost, "/v1/parcels/p1/transitions", `{"status":"collected"}`, bearer(t, "user-1", "user"))
	if rec.Code != http.StatusUnprocessableEntity || resp.Code != "illegal_transition" {
		t.Fatalf("expected 422/illegal_transition, got %d/%s", rec.Code, resp.Code)
	}

	e = newTestRouter(nil, fmt.Errorf("update parcel: %w: kind", domain.ErrImmutableField), &fakeRepairer{})
	rec, resp = do(t, e, http.MethodPatch, "/v1/parcels/p1", `{"kind":"non_cod"}`, bearer(t, "user-1", "user"))
	if rec.Code != http.StatusBadRequest || resp.Code != "immutable_field" {
		t.Fatalf("expected 400/immutable_field, got %d/%s", rec.Code, resp.Code)
	}
}

func TestRouter_RequiresAuth(t *testing.T) {
	e := newTestRouter(nil, nil, &fakeRepairer{})
	rec, resp := do(t, e, http.MethodGet, "/v1/parcels", "", "")
	if rec.Code != http.StatusUnauthorized || resp.Code != "unauthorized" {
		t.Fatalf("expected 401/unauthorized, got %d/%s", rec.Code, resp.Code)
	}

	rec, _ = do(t, e, http.MethodGet, "/health", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("health must not require auth, got %d", rec.Code)
	}
}

func TestRouter_AdminResyncRequiresOperator(t *testing.T) {
	repairer := &fakeRepairer{}
	e := newTestRouter(nil, nil, repairer)

	rec, _ := do(t, e, http.MethodPost, "/v1/admin/mirror/p1/resync", "", bearer(t, "user-1", "user"))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for regular user, got %d", rec.Code)
	}

	rec, _ = do(t, e, http.MethodPost, "/v1/admin/mirror/p1/resync", "", bearer(t, "ops-1", "operator"))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for operator, got %d", rec.Code)
	}
	if len(repairer.calls) != 1 || repairer.calls[0] != "p1" {
		t.Fatalf("expected one resync of p1, got %v", repairer.calls)
	}
}

func TestRouter_Metrics(t *testing.T) {
	e := newTestRouter(nil, nil, &fakeRepairer{})
	do(t, e, http.MethodGet, "/health", "", "")

	rec, _ := do(t, e, http.MethodGet, "/metrics", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "parcel_http_requests_total") {
		t.Fatalf("request metrics missing from /metrics output")
	}
}
