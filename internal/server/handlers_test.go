package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aykha18/tajir-optimized-sub001/internal/app"
	apperrors "github.com/aykha18/tajir-optimized-sub001/internal/errors"
	"github.com/aykha18/tajir-optimized-sub001/internal/models"
	syncpkg "github.com/aykha18/tajir-optimized-sub001/internal/sync"
)

type fakeService struct {
	online  bool
	saved   []models.Record
	saveErr error
	queued  bool
	records map[models.Collection][]models.Record
	drain   syncpkg.DrainResult
	status  app.Status
}

func (f *fakeService) Save(_ context.Context, opType models.OperationType, rec models.Record) (app.SaveResult, error) {
	if f.saveErr != nil {
		return app.SaveResult{}, f.saveErr
	}
	f.saved = append(f.saved, rec)
	return app.SaveResult{ID: "offline_1_abc", Queued: f.queued, Record: rec}, nil
}

func (f *fakeService) Load(_ context.Context, c models.Collection) ([]models.Record, error) {
	return f.records[c], nil
}

func (f *fakeService) FindCustomersByPhone(_ context.Context, phone string) ([]models.Record, error) {
	if phone == "" {
		return nil, apperrors.New(apperrors.ErrInvalid, "phone is required")
	}
	var out []models.Record
	for _, rec := range f.records[models.Customers] {
		if rec["phone"] == phone {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (f *fakeService) Status(context.Context) (app.Status, error) { return f.status, nil }

func (f *fakeService) SyncNow(context.Context) (syncpkg.DrainResult, error) { return f.drain, nil }

func (f *fakeService) SetOnline(online bool) { f.online = online }

func (f *fakeService) IsOnline() bool { return f.online }

func newTestRouter(svc Service) http.Handler {
	return NewRouter(NewHandler(svc, nil), http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}), Options{})
}

func do(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var out map[string]interface{}
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	}
	return rec, out
}

func TestHealth(t *testing.T) {
	rec, body := do(t, newTestRouter(&fakeService{online: true}), http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, true, body["online"])
}

func TestCreate_statusReflectsQueueing(t *testing.T) {
	svc := &fakeService{}
	h := newTestRouter(svc)

	rec, body := do(t, h, http.MethodPost, "/api/customers", `{"name":"Aisha"}`)
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "offline_1_abc", body["id"])

	svc.queued = true
	rec, body = do(t, h, http.MethodPost, "/api/bills", `{"customer_id":"C1"}`)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, true, body["queued"])
	require.Len(t, svc.saved, 2)
}

func TestCreate_invalidBody(t *testing.T) {
	rec, body := do(t, newTestRouter(&fakeService{}), http.MethodPost, "/api/products", `{"name":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, string(apperrors.ErrInvalid), body["code"])
}

func TestCreate_errorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"remote rejection passes through", &apperrors.AppError{Code: apperrors.ErrSyncDispatch, Message: "POST /api/bills", Status: 422}, http.StatusUnprocessableEntity},
		{"remote server error", &apperrors.AppError{Code: apperrors.ErrSyncDispatch, Message: "POST /api/bills", Status: 503}, http.StatusBadGateway},
		{"persistence", apperrors.New(apperrors.ErrPersistence, "store is closed"), http.StatusInternalServerError},
		{"uncoded", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, _ := do(t, newTestRouter(&fakeService{saveErr: tt.err}), http.MethodPost, "/api/bills", `{}`)
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestList(t *testing.T) {
	svc := &fakeService{records: map[models.Collection][]models.Record{
		models.Products: {{"product_id": "P1", "name": "Kandura"}},
	}}
	h := newTestRouter(svc)

	rec, body := do(t, h, http.MethodGet, "/api/products", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["data"], 1)

	rec, body = do(t, h, http.MethodGet, "/api/bills", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []interface{}{}, body["data"])
}

func TestSearchCustomers(t *testing.T) {
	svc := &fakeService{records: map[models.Collection][]models.Record{
		models.Customers: {
			{"customer_id": "C1", "phone": "0501"},
			{"customer_id": "C2", "phone": "0502"},
		},
	}}
	h := newTestRouter(svc)

	rec, body := do(t, h, http.MethodGet, "/api/customers/search?phone=0502", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, body["data"], 1)

	rec, _ = do(t, h, http.MethodGet, "/api/customers/search", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSyncEndpoints(t *testing.T) {
	svc := &fakeService{
		drain:  syncpkg.DrainResult{Attempted: 2, Synced: 2},
		status: app.Status{Online: true, Pending: 3},
	}
	h := newTestRouter(svc)

	rec, body := do(t, h, http.MethodPost, "/api/sync/drain", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 2, body["synced"])

	rec, body = do(t, h, http.MethodGet, "/api/sync/status", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 3, body["pending"])
	assert.Equal(t, true, body["online"])
}

func TestSetConnectivity(t *testing.T) {
	svc := &fakeService{}
	h := newTestRouter(svc)

	rec, body := do(t, h, http.MethodPost, "/api/connectivity", `{"online":true}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["online"])
	assert.True(t, svc.online)

	rec, _ = do(t, h, http.MethodPost, "/api/connectivity", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWebSocketRouteIsMounted(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	rec := httptest.NewRecorder()
	newTestRouter(&fakeService{}).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTeapot, rec.Code)
}

func TestCORS_allowsLocalhostOrigin(t *testing.T) {
	req := httptest.NewRequest(http.MethodOptions, "/api/bills", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	newTestRouter(&fakeService{}).ServeHTTP(rec, req)

	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
}
