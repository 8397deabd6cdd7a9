package handler

import (
	"context"
	"errors"
	"net/http"

	"ecovolt/internal/auth/service"
	"ecovolt/internal/auth/validator"
	reservationhandler "ecovolt/internal/reservations/handler"
	apperrors "ecovolt/pkg/errors"
	httputil "ecovolt/pkg/http"
	"ecovolt/pkg/logger"
	"ecovolt/pkg/middleware"
	"ecovolt/pkg/model"

	"github.com/julienschmidt/httprouter"
)

// profileReservationLimit caps how much history the profile view embeds.
const profileReservationLimit = 50

type ReservationLister interface {
	ListByUser(ctx context.Context, userID string, limit int, offset int64) ([]*model.Reservation, error)
}

type ProfileResponse struct {
	service.UserResponse
	Reservations []reservationhandler.ReservationResponse `json:"reservations"`
}

type AuthHandler struct {
	service      service.AuthService
	validator    *validator.AuthValidator
	reservations ReservationLister
	log          *logger.Logger
}

func NewAuthHandler(
	service service.AuthService,
	validator *validator.AuthValidator,
	reservations ReservationLister,
	log *logger.Logger,
) *AuthHandler {
	return &AuthHandler{
		service:      service,
		validator:    validator,
		reservations: reservations,
		log:          log,
	}
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	req, ok := h.decodeCredentials(w, r, "Register")
	if !ok {
		return
	}

	resp, err := h.service.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeError(w, "Register", err)
		return
	}

	if err := httputil.WriteSuccess(w, resp); err != nil {
		h.log.Error("failed to write success response", "handler", "Register", "operation", "WriteSuccess", "error", err)
	}
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	req, ok := h.decodeCredentials(w, r, "Login")
	if !ok {
		return
	}

	resp, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeError(w, "Login", err)
		return
	}

	if err := httputil.WriteSuccess(w, resp); err != nil {
		h.log.Error("failed to write success response", "handler", "Login", "operation", "WriteSuccess", "error", err)
	}
}

func (h *AuthHandler) Profile(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	principal, ok := middleware.PrincipalFrom(r.Context())
	if !ok {
		h.writeError(w, "Profile", apperrors.Unauthorized("Missing principal"))
		return
	}

	user, err := h.service.Profile(r.Context(), principal.UserID)
	if err != nil {
		h.writeError(w, "Profile", err)
		return
	}

	reservations, err := h.reservations.ListByUser(r.Context(), principal.UserID, profileReservationLimit, 0)
	if err != nil {
		h.writeError(w, "Profile", err)
		return
	}

	resp := ProfileResponse{
		UserResponse: service.NewUserResponse(user),
		Reservations: reservationhandler.NewReservationResponses(reservations),
	}
	if err := httputil.WriteSuccess(w, resp); err != nil {
		h.log.Error("failed to write success response", "handler", "Profile", "operation", "WriteSuccess", "error", err)
	}
}

func (h *AuthHandler) decodeCredentials(w http.ResponseWriter, r *http.Request, name string) (*validator.CredentialsRequest, bool) {
	var req validator.CredentialsRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, name, err)
		return nil, false
	}
	if err := h.validator.Validate(&req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			err = apperrors.Validation("Invalid credentials payload", map[string]any{"errors": verrs})
		}
		h.writeError(w, name, err)
		return nil, false
	}
	return &req, true
}

func (h *AuthHandler) writeError(w http.ResponseWriter, name string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", name, "operation", "WriteError", "error", writeErr)
	}
}

func (h *AuthHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/auth/register", h.Register)
	router.POST("/api/auth/login", h.Login)
	router.GET("/api/users/profile", middleware.RequireAuth(h.service, h.log)(h.Profile))
}
