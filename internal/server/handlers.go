package server

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/aykha18/tajir-optimized-sub001/internal/app"
	apperrors "github.com/aykha18/tajir-optimized-sub001/internal/errors"
	"github.com/aykha18/tajir-optimized-sub001/internal/models"
	syncpkg "github.com/aykha18/tajir-optimized-sub001/internal/sync"
)

// Service is the facade the handlers call.
type Service interface {
	Save(ctx context.Context, opType models.OperationType, rec models.Record) (app.SaveResult, error)
	Load(ctx context.Context, collection models.Collection) ([]models.Record, error)
	FindCustomersByPhone(ctx context.Context, phone string) ([]models.Record, error)
	Status(ctx context.Context) (app.Status, error)
	SyncNow(ctx context.Context) (syncpkg.DrainResult, error)
	SetOnline(online bool)
	IsOnline() bool
}

// Handler serves the local API.
type Handler struct {
	svc    Service
	logger *zap.Logger
}

// NewHandler creates a Handler.
func NewHandler(svc Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Details string `json:"details,omitempty"`
}

// Health handles GET /api/health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"online": h.svc.IsOnline(),
	})
}

// List handles GET /api/{collection}.
func (h *Handler) List(collection models.Collection) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		recs, err := h.svc.Load(r.Context(), collection)
		if err != nil {
			h.writeError(w, err)
			return
		}
		if recs == nil {
			recs = []models.Record{}
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"data": recs})
	}
}

// Create handles POST /api/{collection}. Records saved offline answer 202.
func (h *Handler) Create(opType models.OperationType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var rec models.Record
		if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
			h.writeError(w, apperrors.Wrap(apperrors.ErrInvalid, "invalid JSON body", err))
			return
		}

		res, err := h.svc.Save(r.Context(), opType, rec)
		if err != nil {
			h.writeError(w, err)
			return
		}

		status := http.StatusCreated
		if res.Queued {
			status = http.StatusAccepted
		}
		writeJSON(w, status, res)
	}
}

// SearchCustomers handles GET /api/customers/search?phone=.
func (h *Handler) SearchCustomers(w http.ResponseWriter, r *http.Request) {
	recs, err := h.svc.FindCustomersByPhone(r.Context(), r.URL.Query().Get("phone"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	if recs == nil {
		recs = []models.Record{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"data": recs})
}

// SyncStatus handles GET /api/sync/status.
func (h *Handler) SyncStatus(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.Status(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// Drain handles POST /api/sync/drain.
func (h *Handler) Drain(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.SyncNow(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// SetConnectivity handles POST /api/connectivity with {"online": bool}.
func (h *Handler) SetConnectivity(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Online *bool `json:"online"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.writeError(w, apperrors.Wrap(apperrors.ErrInvalid, "invalid JSON body", err))
		return
	}
	if body.Online == nil {
		h.writeError(w, apperrors.New(apperrors.ErrInvalid, "online is required"))
		return
	}

	h.svc.SetOnline(*body.Online)
	writeJSON(w, http.StatusOK, map[string]bool{"online": h.svc.IsOnline()})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", zap.Int("status", status), zap.Error(err))
	}

	resp := ErrorResponse{
		Error: http.StatusText(status),
		Code:  string(apperrors.CodeOf(err)),
	}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// statusFor maps an error code to the HTTP status reported to the UI.
func statusFor(err error) int {
	switch apperrors.CodeOf(err) {
	case apperrors.ErrInvalid:
		return http.StatusBadRequest
	case apperrors.ErrNotFound, apperrors.ErrUnknownCollection:
		return http.StatusNotFound
	case apperrors.ErrSyncDispatch:
		// Pass client errors from the shop server through.
		if s := apperrors.StatusOf(err); s >= 400 && s < 500 {
			return s
		}
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
