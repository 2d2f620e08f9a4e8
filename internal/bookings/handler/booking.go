package handler

import (
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"

	"smartparking/internal/bookings/service"
	"smartparking/internal/receipts"
	"smartparking/internal/timeslot"
	apperrors "smartparking/pkg/errors"
	httputil "smartparking/pkg/http"
	"smartparking/pkg/logger"
	"smartparking/pkg/model"
	"smartparking/pkg/session"
)

type BookingResponse struct {
	Success bool           `json:"success"`
	Message string         `json:"message,omitempty"`
	Booking *model.Booking `json:"booking"`
}

type BookingsResponse struct {
	Success  bool             `json:"success"`
	Bookings []*model.Booking `json:"bookings"`
}

type PublicBookingsResponse struct {
	Success  bool                  `json:"success"`
	Bookings []model.PublicBooking `json:"bookings"`
}

type CancelResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	Cancelled bool   `json:"cancelled"`
}

type SlotsResponse struct {
	Success bool              `json:"success"`
	Slots   []*model.SlotView `json:"slots"`
}

type CountResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Count   int64  `json:"count"`
}

type TimeSlotsResponse struct {
	Success   bool     `json:"success"`
	TimeSlots []string `json:"timeSlots"`
}

type BookingHandler struct {
	service  service.BookingService
	receipts receipts.Renderer
	log      *logger.Logger
}

func NewBookingHandler(service service.BookingService, renderer receipts.Renderer, log *logger.Logger) *BookingHandler {
	return &BookingHandler{
		service:  service,
		receipts: renderer,
		log:      log,
	}
}

// Book reserves a slot. Anyone may book; a logged-in renter always books
// under their own email.
func (h *BookingHandler) Book(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var booking model.Booking
	if err := httputil.DecodeJSON(r, &booking); err != nil {
		h.writeError(w, "Book", err)
		return
	}

	if claims := session.FromContext(r.Context()); claims != nil && !claims.IsAdmin() {
		booking.Email = claims.Email
	}

	created, err := h.service.Book(r.Context(), &booking)
	if err != nil {
		h.writeError(w, "Book", err)
		return
	}

	if err := httputil.WriteCreated(w, BookingResponse{
		Success: true,
		Message: "Booking successful",
		Booking: created,
	}); err != nil {
		h.log.Error("failed to write created response", "handler", "Book", "operation", "WriteCreated", "error", err)
	}
}

// List returns all bookings, or one renter's when ?email is given. A
// logged-in non-admin only ever sees their own. Without a session the caller
// gets every booking reduced to slot, window and status, and ?email is ignored
// so renters cannot be looked up.
func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	claims := session.FromContext(r.Context())
	if claims == nil {
		h.listPublic(w, r)
		return
	}

	email := r.URL.Query().Get("email")
	if !claims.IsAdmin() {
		email = claims.Email
	}

	bookings, err := h.service.List(r.Context(), email)
	if err != nil {
		h.writeError(w, "List", err)
		return
	}
	if bookings == nil {
		bookings = []*model.Booking{}
	}

	if err := httputil.WriteSuccess(w, BookingsResponse{Success: true, Bookings: bookings}); err != nil {
		h.log.Error("failed to write success response", "handler", "List", "operation", "WriteSuccess", "error", err)
	}
}

func (h *BookingHandler) listPublic(w http.ResponseWriter, r *http.Request) {
	bookings, err := h.service.List(r.Context(), "")
	if err != nil {
		h.writeError(w, "List", err)
		return
	}

	public := make([]model.PublicBooking, 0, len(bookings))
	for _, b := range bookings {
		public = append(public, b.Public())
	}

	if err := httputil.WriteSuccess(w, PublicBookingsResponse{Success: true, Bookings: public}); err != nil {
		h.log.Error("failed to write success response", "handler", "List", "operation", "WriteSuccess", "error", err)
	}
}

func (h *BookingHandler) GetByBookingID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	booking, ok := h.loadOwned(w, r, ps.ByName("bookingID"), "GetByBookingID")
	if !ok {
		return
	}

	if err := httputil.WriteSuccess(w, BookingResponse{Success: true, Booking: booking}); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByBookingID", "operation", "WriteSuccess", "error", err)
	}
}

func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	bookingID := ps.ByName("bookingID")
	if _, ok := h.loadOwned(w, r, bookingID, "Cancel"); !ok {
		return
	}

	cancelled, err := h.service.Cancel(r.Context(), bookingID)
	if err != nil {
		h.writeError(w, "Cancel", err)
		return
	}
	if !cancelled {
		h.writeError(w, "Cancel", apperrors.NotFoundWithID("Booking", bookingID))
		return
	}

	if err := httputil.WriteSuccess(w, CancelResponse{
		Success:   true,
		Message:   "Booking cancelled",
		Cancelled: true,
	}); err != nil {
		h.log.Error("failed to write success response", "handler", "Cancel", "operation", "WriteSuccess", "error", err)
	}
}

func (h *BookingHandler) Update(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var updates model.BookingUpdate
	if err := httputil.DecodeJSON(r, &updates); err != nil {
		h.writeError(w, "Update", err)
		return
	}

	updated, err := h.service.Update(r.Context(), ps.ByName("bookingID"), &updates)
	if err != nil {
		h.writeError(w, "Update", err)
		return
	}

	if err := httputil.WriteSuccess(w, BookingResponse{
		Success: true,
		Message: "Booking updated",
		Booking: updated,
	}); err != nil {
		h.log.Error("failed to write success response", "handler", "Update", "operation", "WriteSuccess", "error", err)
	}
}

func (h *BookingHandler) Receipt(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	booking, ok := h.loadOwned(w, r, ps.ByName("bookingID"), "Receipt")
	if !ok {
		return
	}

	pdf, err := h.receipts.Render(booking)
	if err != nil {
		h.log.Error("Failed to render receipt", "booking_id", booking.BookingID, "error", err)
		h.writeError(w, "Receipt", apperrors.Internal("Failed to generate receipt", err))
		return
	}

	w.Header().Set("Content-Type", receipts.ContentType)
	w.Header().Set("Content-Disposition", "attachment; filename="+receipts.Filename(booking.BookingID))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(pdf); err != nil {
		h.log.Error("failed to write receipt", "handler", "Receipt", "operation", "Write", "error", err)
	}
}

// Slots renders the slot board. Admins may narrow it with ?vehicle.
func (h *BookingHandler) Slots(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	slots, err := h.service.Board(r.Context(), session.FromContext(r.Context()), r.URL.Query().Get("vehicle"))
	if err != nil {
		h.writeError(w, "Slots", err)
		return
	}

	if err := httputil.WriteSuccess(w, SlotsResponse{Success: true, Slots: slots}); err != nil {
		h.log.Error("failed to write success response", "handler", "Slots", "operation", "WriteSuccess", "error", err)
	}
}

func (h *BookingHandler) Reset(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	count, err := h.service.Reset(r.Context())
	if err != nil {
		h.writeError(w, "Reset", err)
		return
	}

	if err := httputil.WriteSuccess(w, CountResponse{
		Success: true,
		Message: "All slots reset",
		Count:   count,
	}); err != nil {
		h.log.Error("failed to write success response", "handler", "Reset", "operation", "WriteSuccess", "error", err)
	}
}

func (h *BookingHandler) ReleaseExpired(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	count, err := h.service.ReleaseExpired(r.Context(), time.Now())
	if err != nil {
		h.writeError(w, "ReleaseExpired", err)
		return
	}

	if err := httputil.WriteSuccess(w, CountResponse{
		Success: true,
		Message: "Expired bookings released",
		Count:   count,
	}); err != nil {
		h.log.Error("failed to write success response", "handler", "ReleaseExpired", "operation", "WriteSuccess", "error", err)
	}
}

func (h *BookingHandler) TimeSlots(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if err := httputil.WriteSuccess(w, TimeSlotsResponse{
		Success:   true,
		TimeSlots: timeslot.Options(),
	}); err != nil {
		h.log.Error("failed to write success response", "handler", "TimeSlots", "operation", "WriteSuccess", "error", err)
	}
}

// loadOwned fetches a booking the caller may act on: admins may touch any
// booking, renters only their own. Someone else's booking answers 404 so ids
// cannot be probed.
func (h *BookingHandler) loadOwned(w http.ResponseWriter, r *http.Request, bookingID, handler string) (*model.Booking, bool) {
	claims := session.FromContext(r.Context())
	if claims == nil {
		h.writeError(w, handler, apperrors.Unauthorized("Login required"))
		return nil, false
	}

	booking, err := h.service.GetByBookingID(r.Context(), bookingID)
	if err != nil {
		h.writeError(w, handler, err)
		return nil, false
	}
	if !claims.IsAdmin() && !claims.Owns(booking.Email) {
		h.writeError(w, handler, apperrors.NotFoundWithID("Booking", bookingID))
		return nil, false
	}
	return booking, true
}

func (h *BookingHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}
