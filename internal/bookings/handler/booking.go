package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"villabook/internal/bookings/service"
	apperrors "villabook/pkg/errors"
	httputil "villabook/pkg/http"
	"villabook/pkg/logger"
	"villabook/pkg/middleware"
	"villabook/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type BookingHandler struct {
	service service.BookingService
	log     *logger.Logger
}

func NewBookingHandler(service service.BookingService, log *logger.Logger) *BookingHandler {
	return &BookingHandler{
		service: service,
		log:     log,
	}
}

// caller returns the authenticated identity, which the Identity middleware
// guarantees to be present on every route registered here.
func (h *BookingHandler) caller(w http.ResponseWriter, r *http.Request) (middleware.Caller, bool) {
	c, ok := middleware.CallerFromContext(r.Context())
	if !ok {
		h.writeError(w, "caller", apperrors.Unauthorized("Authentication required"))
		return middleware.Caller{}, false
	}
	return c, true
}

func (h *BookingHandler) requireAdmin(w http.ResponseWriter, r *http.Request) (middleware.Caller, bool) {
	c, ok := h.caller(w, r)
	if !ok {
		return middleware.Caller{}, false
	}
	if !c.IsAdmin() {
		h.writeError(w, "requireAdmin", apperrors.Forbidden("Administrator role required"))
		return middleware.Caller{}, false
	}
	return c, true
}

func (h *BookingHandler) writeError(w http.ResponseWriter, handlerName string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handlerName, "error", writeErr)
	}
}

func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	c, ok := h.caller(w, r)
	if !ok {
		return
	}

	var booking model.Booking
	if err := json.NewDecoder(r.Body).Decode(&booking); err != nil {
		h.writeError(w, "Create", apperrors.InvalidInput("Invalid request body"))
		return
	}

	if err := h.service.Create(r.Context(), c, &booking); err != nil {
		h.writeError(w, "Create", err)
		return
	}

	if err := httputil.WriteCreated(w, booking); err != nil {
		h.log.Error("failed to write created response", "handler", "Create", "error", err)
	}
}

func (h *BookingHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	c, ok := h.caller(w, r)
	if !ok {
		return
	}

	booking, err := h.service.GetByID(r.Context(), c, ps.ByName("id"))
	if err != nil {
		h.writeError(w, "GetByID", err)
		return
	}

	if err := httputil.WriteSuccess(w, booking); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByID", "error", err)
	}
}

func (h *BookingHandler) GetAll(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	c, ok := h.caller(w, r)
	if !ok {
		return
	}

	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		h.writeError(w, "GetAll", err)
		return
	}

	query := r.URL.Query()
	opts := service.ListOptions{
		Status:      query.Get("status"),
		ForCalendar: query.Get("for_calendar") == "true",
		Limit:       limit,
		Offset:      offset,
	}

	bookings, total, err := h.service.GetAll(r.Context(), c, opts)
	if err != nil {
		h.writeError(w, "GetAll", err)
		return
	}

	if err := httputil.WritePaginated(w, bookings, total, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "GetAll", "error", err)
	}
}

func (h *BookingHandler) GetAvailability(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	snapshot, err := h.service.GetAvailability(r.Context())
	if err != nil {
		h.writeError(w, "GetAvailability", err)
		return
	}

	if err := httputil.WriteSuccess(w, snapshot); err != nil {
		h.log.Error("failed to write success response", "handler", "GetAvailability", "error", err)
	}
}

func (h *BookingHandler) Update(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	c, ok := h.caller(w, r)
	if !ok {
		return
	}

	var updates model.BookingUpdate
	if err := json.NewDecoder(r.Body).Decode(&updates); err != nil {
		h.writeError(w, "Update", apperrors.InvalidInput("Invalid request body"))
		return
	}

	booking, err := h.service.Update(r.Context(), c, ps.ByName("id"), &updates)
	if err != nil {
		h.writeError(w, "Update", err)
		return
	}

	if err := httputil.WriteSuccess(w, booking); err != nil {
		h.log.Error("failed to write success response", "handler", "Update", "error", err)
	}
}

func (h *BookingHandler) UpdateStatus(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if _, ok := h.requireAdmin(w, r); !ok {
		return
	}

	var change model.StatusChange
	if err := json.NewDecoder(r.Body).Decode(&change); err != nil {
		h.writeError(w, "UpdateStatus", apperrors.InvalidInput("Invalid request body"))
		return
	}

	warning, err := h.service.UpdateStatus(r.Context(), ps.ByName("id"), &change)
	if err != nil {
		h.writeError(w, "UpdateStatus", err)
		return
	}

	if err := httputil.WriteSuccessMessage(w, map[string]string{"status": change.Status}, warning); err != nil {
		h.log.Error("failed to write success response", "handler", "UpdateStatus", "error", err)
	}
}

func (h *BookingHandler) Delete(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if _, ok := h.requireAdmin(w, r); !ok {
		return
	}

	if err := h.service.Delete(r.Context(), ps.ByName("id")); err != nil {
		h.writeError(w, "Delete", err)
		return
	}

	httputil.WriteNoContent(w)
}

func (h *BookingHandler) Stats(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if _, ok := h.requireAdmin(w, r); !ok {
		return
	}

	from, err := parseDateParam(r, "from")
	if err != nil {
		h.writeError(w, "Stats", err)
		return
	}
	to, err := parseDateParam(r, "to")
	if err != nil {
		h.writeError(w, "Stats", err)
		return
	}

	stats, err := h.service.Stats(r.Context(), from, to)
	if err != nil {
		h.writeError(w, "Stats", err)
		return
	}

	if err := httputil.WriteSuccess(w, stats); err != nil {
		h.log.Error("failed to write success response", "handler", "Stats", "error", err)
	}
}

func parseDateParam(r *http.Request, name string) (*time.Time, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil, apperrors.InvalidInput("invalid " + name + " parameter, must be YYYY-MM-DD")
	}
	return &t, nil
}

func (h *BookingHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/bookings", h.Create)
	router.GET("/api/v1/bookings", h.GetAll)
	router.GET("/api/v1/bookings/available", h.GetAvailability)
	router.GET("/api/v1/bookings/stats", h.Stats)
	router.GET("/api/v1/bookings/id/:id", h.GetByID)
	router.PATCH("/api/v1/bookings/id/:id", h.Update)
	router.PATCH("/api/v1/bookings/id/:id/status", h.UpdateStatus)
	router.DELETE("/api/v1/bookings/id/:id", h.Delete)
}
