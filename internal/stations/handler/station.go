package handler

import (
	"net/http"

	"ecovolt/internal/stations/service"
	httputil "ecovolt/pkg/http"
	"ecovolt/pkg/logger"

	"github.com/julienschmidt/httprouter"
)

type StationHandler struct {
	service service.StationService
	log     *logger.Logger
}

func NewStationHandler(service service.StationService, log *logger.Logger) *StationHandler {
	return &StationHandler{
		service: service,
		log:     log,
	}
}

// GetAll returns the stations as a bare JSON array; map clients consume it
// without an envelope.
func (h *StationHandler) GetAll(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	stations, err := h.service.List(r.Context())
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "GetAll", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, stations); err != nil {
		h.log.Error("failed to write success response", "handler", "GetAll", "operation", "WriteSuccess", "error", err)
	}
}

func (h *StationHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	station, err := h.service.Get(r.Context(), ps.ByName("id"))
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "GetByID", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, station); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByID", "operation", "WriteSuccess", "error", err)
	}
}

func (h *StationHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/api/stations", h.GetAll)
	router.GET("/api/stations/id/:id", h.GetByID)
}
