package errors

import "errors"

var (
	ErrNotFound = errors.New("booking not found")

	ErrSlotTaken = errors.New("slot is already booked for this time slot")

	ErrDuplicateBookingID = errors.New("booking ID already exists")
)
