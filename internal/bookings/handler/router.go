package handler

import (
	"github.com/julienschmidt/httprouter"

	"smartparking/pkg/middleware"
	"smartparking/pkg/session"
)

func (h *BookingHandler) RegisterRoutes(router *httprouter.Router) {
	admin := func(next httprouter.Handle) httprouter.Handle {
		return middleware.RequireAuth(h.log, next, session.RoleAdmin)
	}

	router.POST("/api/book", h.Book)
	router.GET("/api/bookings", h.List)
	router.GET("/api/bookings/:bookingID", h.GetByBookingID)
	router.DELETE("/api/bookings/:bookingID", h.Cancel)
	router.PATCH("/api/bookings/:bookingID", admin(h.Update))
	router.GET("/api/bookings/:bookingID/receipt", h.Receipt)

	router.GET("/api/slots", h.Slots)
	router.POST("/api/slots/reset", admin(h.Reset))
	router.POST("/api/slots/release-expired", admin(h.ReleaseExpired))
	router.GET("/api/timeslots", h.TimeSlots)
}
