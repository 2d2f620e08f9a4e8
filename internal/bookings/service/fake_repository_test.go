package service

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	bookingserrors "smartparking/internal/bookings/errors"
	"smartparking/internal/bookings/repository"
	"smartparking/pkg/config"
	mongotx "smartparking/pkg/db/mongo"
	"smartparking/pkg/model"
)

// fakeBookingRepository keeps bookings in memory and enforces the same unique
// rules as the Mongo indexes: booking_id globally, and (slot_number,
// time_slot) among active bookings.
type fakeBookingRepository struct {
	mu       sync.Mutex
	bookings []*model.Booking

	createErr error
	findErr   error

	// afterFindActive runs once FindActive has read the store, outside the
	// lock, to interleave a concurrent mutation.
	afterFindActive func()
}

func newFakeBookingRepository() *fakeBookingRepository {
	return &fakeBookingRepository{}
}

func (r *fakeBookingRepository) conflicts(b *model.Booking, skipBookingID string) error {
	for _, existing := range r.bookings {
		if existing.BookingID == skipBookingID {
			continue
		}
		if existing.BookingID == b.BookingID {
			return bookingserrors.ErrDuplicateBookingID
		}
		if existing.Status == config.StatusActive && b.Status == config.StatusActive &&
			existing.SlotNumber == b.SlotNumber && existing.TimeSlot == b.TimeSlot {
			return bookingserrors.ErrSlotTaken
		}
	}
	return nil
}

func (r *fakeBookingRepository) Create(_ context.Context, b *model.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.createErr != nil {
		return r.createErr
	}
	if err := r.conflicts(b, ""); err != nil {
		return err
	}
	stored := *b
	r.bookings = append(r.bookings, &stored)
	return nil
}

func (r *fakeBookingRepository) FindByBookingID(_ context.Context, bookingID string) (*model.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, b := range r.bookings {
		if b.BookingID == bookingID {
			found := *b
			return &found, nil
		}
	}
	return nil, bookingserrors.ErrNotFound
}

func (r *fakeBookingRepository) Find(_ context.Context, filter repository.Filter) ([]*model.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.findErr != nil {
		return nil, r.findErr
	}
	out := []*model.Booking{}
	for _, b := range r.bookings {
		if filter.Email != "" && b.Email != strings.ToLower(filter.Email) {
			continue
		}
		if filter.Status != "" && b.Status != filter.Status {
			continue
		}
		found := *b
		out = append(out, &found)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SlotNumber != out[j].SlotNumber {
			return out[i].SlotNumber < out[j].SlotNumber
		}
		return out[i].StartMinute < out[j].StartMinute
	})
	return out, nil
}

func (r *fakeBookingRepository) FindActive(ctx context.Context) ([]*model.Booking, error) {
	bookings, err := r.Find(ctx, repository.Filter{Status: config.StatusActive})
	if hook := r.afterFindActive; hook != nil {
		r.afterFindActive = nil
		hook()
	}
	return bookings, err
}

func (r *fakeBookingRepository) Update(_ context.Context, bookingID string, b *model.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, existing := range r.bookings {
		if existing.BookingID != bookingID {
			continue
		}
		candidate := *existing
		candidate.Name = b.Name
		candidate.VehicleNumber = b.VehicleNumber
		candidate.VehicleType = b.VehicleType
		candidate.SlotNumber = b.SlotNumber
		candidate.TimeSlot = b.TimeSlot
		candidate.StartMinute = b.StartMinute
		candidate.EndMinute = b.EndMinute
		if err := r.conflicts(&candidate, bookingID); err != nil {
			return err
		}
		r.bookings[i] = &candidate
		return nil
	}
	return bookingserrors.ErrNotFound
}

func (r *fakeBookingRepository) Delete(_ context.Context, bookingID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, b := range r.bookings {
		if b.BookingID == bookingID {
			r.bookings = append(r.bookings[:i], r.bookings[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeBookingRepository) setStatus(match func(*model.Booking) bool, status string, at time.Time) int64 {
	var n int64
	for _, b := range r.bookings {
		if b.Status == config.StatusActive && match(b) {
			b.Status = status
			released := at
			b.ReleasedAt = &released
			n++
		}
	}
	return n
}

func (r *fakeBookingRepository) ReleaseExpired(_ context.Context, nowMinute int, at time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.setStatus(func(b *model.Booking) bool { return b.EndMinute <= nowMinute }, config.StatusReleased, at), nil
}

func (r *fakeBookingRepository) CancelActive(_ context.Context, at time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.setStatus(func(*model.Booking) bool { return true }, config.StatusCancelled, at), nil
}

func (r *fakeBookingRepository) CancelActiveByEmail(_ context.Context, email string, at time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	email = strings.ToLower(email)
	return r.setStatus(func(b *model.Booking) bool { return b.Email == email }, config.StatusCancelled, at), nil
}

func (r *fakeBookingRepository) ExecuteTransaction(_ context.Context, fn mongotx.TransactionFunc) error {
	return fn(nil)
}
