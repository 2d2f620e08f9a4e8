package model

// Slot board states.
const (
	SlotAvailable = "Available"
	SlotBooked    = "Booked"
	SlotExpired   = "Expired"
)

// SlotView is one entry of the slot board as seen by a particular viewer.
// Booking and Bookings are nil unless the viewer may see them.
type SlotView struct {
	SlotNumber int        `json:"slotNumber"`
	Status     string     `json:"status"`
	TimeSlot   string     `json:"timeSlot,omitempty"`
	Remaining  string     `json:"remaining,omitempty"`
	Booking    *Booking   `json:"booking,omitempty"`
	Bookings   []*Booking `json:"bookings,omitempty"`
}
