package model

import (
	"time"
)

type Booking struct {
	ID            string     `json:"-" bson:"_id,omitempty"`
	BookingID     string     `json:"bookingID" bson:"booking_id" validate:"omitempty,booking_id"`
	Name          string     `json:"name" bson:"name" validate:"required,min=1,max=100"`
	Email         string     `json:"email" bson:"email" validate:"required,max=254"`
	VehicleNumber string     `json:"vehicleNumber" bson:"vehicle_number" validate:"required,plate"`
	VehicleType   string     `json:"vehicleType,omitempty" bson:"vehicle_type,omitempty" validate:"omitempty,oneof=car bike suv truck ev"`
	SlotNumber    int        `json:"slotNumber" bson:"slot_number" validate:"required,min=1"`
	TimeSlot      string     `json:"timeSlot" bson:"time_slot" validate:"required,timeslot"`
	BookingTime   string     `json:"bookingTime" bson:"booking_time" validate:"omitempty,max=64"`
	StartMinute   int        `json:"-" bson:"start_minute"`
	EndMinute     int        `json:"-" bson:"end_minute"`
	Status        string     `json:"status" bson:"status"`
	CreatedAt     time.Time  `json:"createdAt" bson:"created_at"`
	ReleasedAt    *time.Time `json:"releasedAt,omitempty" bson:"released_at,omitempty"`
}

// PublicBooking is the part of a booking shown to callers without a session:
// which slot and window is taken, never who took it.
type PublicBooking struct {
	SlotNumber int    `json:"slotNumber"`
	TimeSlot   string `json:"timeSlot"`
	Status     string `json:"status"`
}

func (b *Booking) Public() PublicBooking {
	return PublicBooking{SlotNumber: b.SlotNumber, TimeSlot: b.TimeSlot, Status: b.Status}
}

// BookingUpdate carries the fields an admin may change. Nil pointers are left
// untouched.
type BookingUpdate struct {
	Name          *string `json:"name,omitempty" validate:"omitempty,min=1,max=100"`
	VehicleNumber *string `json:"vehicleNumber,omitempty" validate:"omitempty,plate"`
	VehicleType   *string `json:"vehicleType,omitempty" validate:"omitempty,oneof=car bike suv truck ev"`
	SlotNumber    *int    `json:"slotNumber,omitempty" validate:"omitempty,min=1"`
	TimeSlot      *string `json:"timeSlot,omitempty" validate:"omitempty,timeslot"`
}

func (u *BookingUpdate) IsEmpty() bool {
	return u.Name == nil && u.VehicleNumber == nil && u.VehicleType == nil &&
		u.SlotNumber == nil && u.TimeSlot == nil
}
