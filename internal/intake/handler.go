package intake

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/wolfman30/cpr-booking-platform/pkg/logging"
)

// Handler exposes the intake flow over HTTP.
type Handler struct {
	svc    *Service
	logger *logging.Logger
}

func NewHandler(svc *Service, logger *logging.Logger) *Handler {
	if svc == nil {
		panic("intake: service required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{svc: svc, logger: logger}
}

// Intake handles POST /api/bookings/intake.
//
// 400 when required fields are missing, 500 when the booking could not be
// saved, otherwise 200 whatever happened with the remote scheduler.
func (h *Handler) Intake(w http.ResponseWriter, r *http.Request) {
	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "message": "invalid JSON"})
		return
	}

	res, err := h.svc.Process(r.Context(), req)
	if err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"success": false,
				"message": verr.Error(),
				"missing": verr.Missing,
			})
			return
		}
		h.logger.Error("intake failed", "error", err, "session_id", req.SessionID)
		if res == nil {
			res = &Result{Message: msgSaveFailed}
		}
		res.Success = false
		writeJSON(w, http.StatusInternalServerError, res)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
