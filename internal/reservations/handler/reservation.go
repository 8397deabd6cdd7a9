package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"ecovolt/internal/reservations/service"
	"ecovolt/internal/reservations/validator"
	apperrors "ecovolt/pkg/errors"
	httputil "ecovolt/pkg/http"
	"ecovolt/pkg/logger"
	"ecovolt/pkg/middleware"
	"ecovolt/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type ReservationResponse struct {
	ID            string                  `json:"id"`
	ReservationID string                  `json:"reservationId"`
	StationID     string                  `json:"stationId"`
	StationName   string                  `json:"stationName,omitempty"`
	Status        model.ReservationStatus `json:"status"`
	QRCode        string                  `json:"qrCode,omitempty"`
	ExpiresAt     time.Time               `json:"expiresAt"`
	CreatedAt     time.Time               `json:"createdAt"`
	UpdatedAt     time.Time               `json:"updatedAt"`
}

// NewReservationResponse exposes the code only while it can still be used.
func NewReservationResponse(r *model.Reservation) ReservationResponse {
	resp := ReservationResponse{
		ID:            r.ID,
		ReservationID: r.ID,
		StationID:     r.StationID,
		StationName:   r.StationName,
		Status:        r.Status,
		ExpiresAt:     r.ExpiresAt,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
	if r.Status == model.StatusActive {
		resp.QRCode = r.Code
	}
	return resp
}

func NewReservationResponses(rs []*model.Reservation) []ReservationResponse {
	out := make([]ReservationResponse, 0, len(rs))
	for _, r := range rs {
		out = append(out, NewReservationResponse(r))
	}
	return out
}

type VerifyResponse struct {
	ReservationID string `json:"reservationId"`
	Valid         bool   `json:"valid"`
}

type ReservationHandler struct {
	service   service.ReservationService
	validator *validator.ReservationValidator
	auth      middleware.TokenValidator
	log       *logger.Logger
}

func NewReservationHandler(
	service service.ReservationService,
	validator *validator.ReservationValidator,
	auth middleware.TokenValidator,
	log *logger.Logger,
) *ReservationHandler {
	return &ReservationHandler{
		service:   service,
		validator: validator,
		auth:      auth,
		log:       log,
	}
}

func (h *ReservationHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	principal, ok := middleware.PrincipalFrom(r.Context())
	if !ok {
		h.writeError(w, "Create", apperrors.Unauthorized("Missing principal"))
		return
	}

	var req validator.ReserveRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, "Create", err)
		return
	}
	if err := h.validator.ValidateReserve(&req); err != nil {
		h.writeError(w, "Create", validationError(err))
		return
	}

	reservation, err := h.service.Reserve(r.Context(), string(req.StationID), principal.UserID)
	if err != nil {
		h.writeError(w, "Create", err)
		return
	}

	if err := httputil.WriteCreated(w, NewReservationResponse(reservation)); err != nil {
		h.log.Error("failed to write created response", "handler", "Create", "operation", "WriteCreated", "error", err)
	}
}

func (h *ReservationHandler) List(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	principal, ok := middleware.PrincipalFrom(r.Context())
	if !ok {
		h.writeError(w, "List", apperrors.Unauthorized("Missing principal"))
		return
	}

	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		h.writeError(w, "List", err)
		return
	}

	reservations, err := h.service.ListByUser(r.Context(), principal.UserID, limit, offset)
	if err != nil {
		h.writeError(w, "List", err)
		return
	}

	if err := httputil.WritePaginated(w, NewReservationResponses(reservations), limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "List", "operation", "WritePaginated", "error", err)
	}
}

func (h *ReservationHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	principal, ok := middleware.PrincipalFrom(r.Context())
	if !ok {
		h.writeError(w, "GetByID", apperrors.Unauthorized("Missing principal"))
		return
	}

	reservation, err := h.service.Get(r.Context(), ps.ByName("id"), principal.UserID)
	if err != nil {
		h.writeError(w, "GetByID", err)
		return
	}

	if err := httputil.WriteSuccess(w, NewReservationResponse(reservation)); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByID", "operation", "WriteSuccess", "error", err)
	}
}

func (h *ReservationHandler) Cancel(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	principal, ok := middleware.PrincipalFrom(r.Context())
	if !ok {
		h.writeError(w, "Cancel", apperrors.Unauthorized("Missing principal"))
		return
	}

	reservation, err := h.service.Cancel(r.Context(), ps.ByName("id"), principal.UserID)
	if err != nil {
		h.writeError(w, "Cancel", err)
		return
	}

	if err := httputil.WriteSuccess(w, NewReservationResponse(reservation)); err != nil {
		h.log.Error("failed to write success response", "handler", "Cancel", "operation", "WriteSuccess", "error", err)
	}
}

func (h *ReservationHandler) QRCode(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	principal, ok := middleware.PrincipalFrom(r.Context())
	if !ok {
		h.writeError(w, "QRCode", apperrors.Unauthorized("Missing principal"))
		return
	}

	size := 0
	if s := r.URL.Query().Get("size"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil {
			h.writeError(w, "QRCode", apperrors.InvalidInput("invalid size parameter: "+s))
			return
		}
		size = v
	}

	png, err := h.service.QRCode(r.Context(), ps.ByName("id"), principal.UserID, size)
	if err != nil {
		h.writeError(w, "QRCode", err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(png); err != nil {
		h.log.Error("failed to write image response", "handler", "QRCode", "operation", "Write", "error", err)
	}
}

func (h *ReservationHandler) Verify(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	req, ok := h.decodeCode(w, r, "Verify")
	if !ok {
		return
	}

	id, err := h.service.Verify(r.Context(), req.QRCode)
	if err != nil {
		h.writeError(w, "Verify", err)
		return
	}

	if err := httputil.WriteSuccess(w, VerifyResponse{ReservationID: id, Valid: true}); err != nil {
		h.log.Error("failed to write success response", "handler", "Verify", "operation", "WriteSuccess", "error", err)
	}
}

// Complete is called by docks when a scooter is returned. The sealed code is
// the credential.
func (h *ReservationHandler) Complete(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	req, ok := h.decodeCode(w, r, "Complete")
	if !ok {
		return
	}

	reservation, err := h.service.Complete(r.Context(), req.QRCode)
	if err != nil {
		h.writeError(w, "Complete", err)
		return
	}

	if err := httputil.WriteSuccess(w, NewReservationResponse(reservation)); err != nil {
		h.log.Error("failed to write success response", "handler", "Complete", "operation", "WriteSuccess", "error", err)
	}
}

func (h *ReservationHandler) decodeCode(w http.ResponseWriter, r *http.Request, name string) (*validator.CodeRequest, bool) {
	var req validator.CodeRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, name, err)
		return nil, false
	}
	if err := h.validator.ValidateCode(&req); err != nil {
		h.writeError(w, name, validationError(err))
		return nil, false
	}
	return &req, true
}

func (h *ReservationHandler) writeError(w http.ResponseWriter, name string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", name, "operation", "WriteError", "error", writeErr)
	}
}

func validationError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return apperrors.Validation("Invalid request", map[string]any{"errors": verrs})
	}
	return apperrors.InvalidInput(err.Error())
}

func (h *ReservationHandler) RegisterRoutes(router *httprouter.Router) {
	requireAuth := middleware.RequireAuth(h.auth, h.log)

	router.POST("/api/reservations", requireAuth(h.Create))
	router.GET("/api/reservations", requireAuth(h.List))
	router.GET("/api/reservations/id/:id", requireAuth(h.GetByID))
	router.POST("/api/reservations/id/:id/cancel", requireAuth(h.Cancel))
	router.GET("/api/reservations/id/:id/qr.png", requireAuth(h.QRCode))
	router.POST("/api/reservations/verify", h.Verify)
	router.POST("/api/reservations/complete", h.Complete)
}
