package bookings

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/wolfman30/cpr-booking-platform/pkg/logging"
)

// Handler serves the admin dashboard's booking API.
type Handler struct {
	store    Store
	validate *validator.Validate
	logger   *logging.Logger
}

func NewHandler(store Store, logger *logging.Logger) *Handler {
	if store == nil {
		panic("bookings: store required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{store: store, validate: validator.New(), logger: logger}
}

// CreateRequest is the admin create/upsert payload.
type CreateRequest struct {
	ClientName        string `json:"clientName"`
	Email             string `json:"email" validate:"omitempty,email"`
	Phone             string `json:"phone"`
	Service           string `json:"service"`
	Participants      int    `json:"participants" validate:"gte=0"`
	Date              string `json:"date"`
	Time              string `json:"time"`
	Status            string `json:"status" validate:"omitempty,oneof=upcoming completed canceled"`
	Notes             string `json:"notes"`
	ExternalSessionID string `json:"externalSessionId"`
}

// PatchRequest changes status and/or schedule. Absent fields are untouched.
type PatchRequest struct {
	Status *string `json:"status"`
	Date   *string `json:"date"`
	Time   *string `json:"time"`
}

// List handles GET /api/bookings.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	filter, ok := h.listFilter(w, r)
	if !ok {
		return
	}
	records, err := h.store.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("list bookings failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list bookings")
		return
	}
	writeJSON(w, http.StatusOK, records)
}

// Create handles POST /api/bookings. A payload carrying externalSessionId
// updates the matching record instead of adding a second one.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	fields := Fields{
		ClientName:   strings.TrimSpace(req.ClientName),
		Email:        strings.TrimSpace(req.Email),
		Phone:        strings.TrimSpace(req.Phone),
		Service:      strings.TrimSpace(req.Service),
		Participants: req.Participants,
		Date:         strings.TrimSpace(req.Date),
		Time:         strings.TrimSpace(req.Time),
		Status:       Status(req.Status),
		Notes:        req.Notes,
	}
	rec, created, err := h.store.UpsertBySessionID(r.Context(), req.ExternalSessionID, fields)
	if err != nil {
		h.logger.Error("create booking failed", "error", err, "session_id", req.ExternalSessionID)
		writeError(w, http.StatusInternalServerError, "failed to save booking")
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, rec)
}

// Get handles GET /api/bookings/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rec, err := h.store.Get(r.Context(), id)
	if err != nil {
		h.storeError(w, err, id)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// Patch handles PATCH /api/bookings/{id}. The status is checked before any
// write so a bad value leaves the record untouched.
func (h *Handler) Patch(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req PatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Status == nil && req.Date == nil && req.Time == nil {
		writeError(w, http.StatusBadRequest, "nothing to update")
		return
	}

	var status Status
	if req.Status != nil {
		parsed, err := ParseStatus(*req.Status)
		if err != nil {
			writeError(w, http.StatusBadRequest, "status must be one of upcoming, completed, canceled")
			return
		}
		status = parsed
	}

	rec, err := h.store.Update(r.Context(), id, Fields{
		Status: status,
		Date:   deref(req.Date),
		Time:   deref(req.Time),
	})
	if err != nil {
		h.storeError(w, err, id)
		return
	}
	h.logger.Info("booking updated", "booking_id", id, "status", string(rec.Status))
	writeJSON(w, http.StatusOK, rec)
}

// Export handles GET /api/bookings/export.xlsx.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	filter, ok := h.listFilter(w, r)
	if !ok {
		return
	}
	records, err := h.store.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("export bookings failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to export bookings")
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", "attachment; filename=bookings.xlsx")
	if err := WriteXLSX(w, records); err != nil {
		h.logger.Error("write xlsx failed", "error", err)
	}
}

func (h *Handler) listFilter(w http.ResponseWriter, r *http.Request) (ListFilter, bool) {
	raw := r.URL.Query().Get("status")
	if raw == "" {
		return ListFilter{}, true
	}
	status, err := ParseStatus(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "unknown status filter")
		return ListFilter{}, false
	}
	return ListFilter{Status: status}, true
}

func (h *Handler) storeError(w http.ResponseWriter, err error, id string) {
	switch {
	case errors.Is(err, ErrNotFound):
		writeError(w, http.StatusNotFound, "booking not found")
	case errors.Is(err, ErrInvalidStatus):
		writeError(w, http.StatusBadRequest, "invalid status")
	default:
		h.logger.Error("booking store failed", "error", err, "booking_id", id)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return "invalid " + fe.Field() + ": failed " + fe.Tag()
	}
	return "invalid request"
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
