package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strings"
	"time"

	bookingserrors "smartparking/internal/bookings/errors"
	"smartparking/internal/bookings/cache"
	"smartparking/internal/bookings/repository"
	"smartparking/internal/bookings/validator"
	"smartparking/internal/timeslot"
	"smartparking/pkg/config"
	apperrors "smartparking/pkg/errors"
	"smartparking/pkg/kafka"
	"smartparking/pkg/model"
	"smartparking/pkg/sanitizer"
	"smartparking/pkg/session"
)

const maxBookingIDAttempts = 5

type BookingService interface {
	Book(ctx context.Context, booking *model.Booking) (*model.Booking, error)
	GetByBookingID(ctx context.Context, bookingID string) (*model.Booking, error)
	List(ctx context.Context, email string) ([]*model.Booking, error)
	FindByEmail(ctx context.Context, email string) ([]*model.Booking, error)
	Cancel(ctx context.Context, bookingID string) (bool, error)
	Update(ctx context.Context, bookingID string, updates *model.BookingUpdate) (*model.Booking, error)
	ReleaseExpired(ctx context.Context, now time.Time) (int64, error)
	Reset(ctx context.Context) (int64, error)
	Board(ctx context.Context, viewer *session.Claims, vehicle string) ([]*model.SlotView, error)
}

type bookingService struct {
	repo      repository.BookingRepository
	cache     cache.BoardCache
	validator *validator.BookingValidator
	events    kafka.Publisher
	metrics   *Metrics
	cfg       *config.Config
	now       func() time.Time
	newID     func() (string, error)
}

type Option func(*bookingService)

// WithClock replaces the wall clock used for expiry decisions.
func WithClock(now func() time.Time) Option {
	return func(s *bookingService) { s.now = now }
}

func WithIDGenerator(gen func() (string, error)) Option {
	return func(s *bookingService) { s.newID = gen }
}

func NewBookingService(
	repo repository.BookingRepository,
	boardCache cache.BoardCache,
	validator *validator.BookingValidator,
	events kafka.Publisher,
	metrics *Metrics,
	cfg *config.Config,
	opts ...Option,
) BookingService {
	s := &bookingService{
		repo:      repo,
		cache:     boardCache,
		validator: validator,
		events:    events,
		metrics:   metrics,
		cfg:       cfg,
		now:       cfg.Now,
		newID:     GenerateBookingID,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Book reserves (slotNumber, timeSlot) for the caller. The conflict check is
// the insert itself: the store rejects a second active booking for the pair.
// An occupant of the same pair shares the requested window, so an occupant
// that has expired implies the request is for an ended window and is refused
// before reaching the store.
func (s *bookingService) Book(ctx context.Context, booking *model.Booking) (*model.Booking, error) {
	s.sanitize(booking)
	if err := s.validate(booking); err != nil {
		return nil, err
	}

	now := s.now()
	nowMinute := timeslot.MinuteOfDay(now)
	window, _ := timeslot.Parse(booking.TimeSlot)
	if window.ExpiredAt(nowMinute) {
		return nil, apperrors.Validation("Time slot has already ended for today", map[string]any{
			"timeSlot": booking.TimeSlot,
		})
	}

	clientID := booking.BookingID != ""
	booking.StartMinute = window.Start
	booking.EndMinute = window.End
	booking.Status = config.StatusActive
	booking.CreatedAt = now.UTC().Truncate(time.Millisecond)
	booking.ReleasedAt = nil
	if booking.BookingTime == "" {
		booking.BookingTime = now.Format(time.RFC3339)
	}

	for attempt := 1; attempt <= maxBookingIDAttempts; attempt++ {
		if !clientID {
			id, err := s.newID()
			if err != nil {
				return nil, apperrors.Internal("Server error", err)
			}
			booking.BookingID = id
		}

		err := s.repo.Create(ctx, booking)
		switch {
		case err == nil:
			s.cache.Invalidate(ctx)
			s.metrics.created.Inc()
			s.events.PublishEvent(ctx, kafka.EventBookingCreated, booking.BookingID, booking)
			s.cfg.Log.Info("Booking created successfully",
				"booking_id", booking.BookingID,
				"slot_number", booking.SlotNumber,
				"time_slot", booking.TimeSlot,
			)
			return booking, nil

		case errors.Is(err, bookingserrors.ErrSlotTaken):
			return nil, s.slotConflict(booking)

		case errors.Is(err, bookingserrors.ErrDuplicateBookingID):
			if clientID {
				return nil, apperrors.Conflict("Booking ID already exists")
			}
			s.cfg.Log.Warn("Generated booking ID collided, retrying", "booking_id", booking.BookingID, "attempt", attempt)

		default:
			s.cfg.Log.Error("Failed to create booking", "slot_number", booking.SlotNumber, "error", err)
			return nil, apperrors.Internal("Server error", err)
		}
	}

	return nil, apperrors.Internal("Server error", fmt.Errorf("no free booking ID after %d attempts", maxBookingIDAttempts))
}

func (s *bookingService) slotConflict(booking *model.Booking) error {
	s.metrics.conflicts.Inc()
	s.cfg.Log.Info("Booking rejected, slot taken",
		"slot_number", booking.SlotNumber,
		"time_slot", booking.TimeSlot,
	)
	return apperrors.Conflict("Slot is already booked for this time slot.")
}

func (s *bookingService) GetByBookingID(ctx context.Context, bookingID string) (*model.Booking, error) {
	if !validator.IsBookingID(bookingID) {
		return nil, apperrors.InvalidInput("Invalid booking ID format")
	}

	booking, err := s.repo.FindByBookingID(ctx, bookingID)
	if err != nil {
		if errors.Is(err, bookingserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Booking", bookingID)
		}
		return nil, apperrors.Internal("Failed to retrieve booking", err)
	}
	return booking, nil
}

// List returns every booking, or only the renter's when email is set.
func (s *bookingService) List(ctx context.Context, email string) ([]*model.Booking, error) {
	if email != "" {
		return s.FindByEmail(ctx, email)
	}

	bookings, err := s.repo.Find(ctx, repository.Filter{})
	if err != nil {
		s.cfg.Log.Error("Failed to list bookings", "error", err)
		return nil, apperrors.Internal("Failed to retrieve bookings", err)
	}
	return bookings, nil
}

func (s *bookingService) FindByEmail(ctx context.Context, email string) ([]*model.Booking, error) {
	email = sanitizer.SanitizeEmail(email)
	if email == "" {
		return nil, apperrors.InvalidInput("Email cannot be empty")
	}

	bookings, err := s.repo.Find(ctx, repository.Filter{Email: email})
	if err != nil {
		s.cfg.Log.Error("Failed to list bookings by email", "error", err)
		return nil, apperrors.Internal("Failed to retrieve bookings", err)
	}
	return bookings, nil
}

// Cancel removes the booking whatever its state and reports whether anything
// was removed.
func (s *bookingService) Cancel(ctx context.Context, bookingID string) (bool, error) {
	if !validator.IsBookingID(bookingID) {
		return false, apperrors.InvalidInput("Invalid booking ID format")
	}

	removed, err := s.repo.Delete(ctx, bookingID)
	if err != nil {
		s.cfg.Log.Error("Failed to cancel booking", "booking_id", bookingID, "error", err)
		return false, apperrors.Internal("Failed to cancel booking", err)
	}
	if !removed {
		return false, nil
	}

	s.cache.Invalidate(ctx)
	s.metrics.cancelled.WithLabelValues("cancel").Inc()
	s.events.PublishEvent(ctx, kafka.EventBookingCancelled, bookingID, map[string]any{"bookingID": bookingID})
	s.cfg.Log.Info("Booking cancelled successfully", "booking_id", bookingID)
	return true, nil
}

func (s *bookingService) Update(ctx context.Context, bookingID string, updates *model.BookingUpdate) (*model.Booking, error) {
	existing, err := s.GetByBookingID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if existing.Status != config.StatusActive {
		return nil, apperrors.Conflict("Only active bookings can be edited")
	}
	if updates.IsEmpty() {
		return nil, apperrors.InvalidInput("No fields to update")
	}
	if err := s.validator.ValidateUpdate(updates); err != nil {
		s.cfg.Log.Warn("Booking update validation failed", "booking_id", bookingID, "error", err)
		return nil, validationError("Invalid update input", err)
	}

	merged := mergeBookingUpdates(existing, updates)
	s.sanitize(merged)
	if err := s.validate(merged); err != nil {
		return nil, err
	}
	window, _ := timeslot.Parse(merged.TimeSlot)
	// Moving a booking is held to the same rule as booking it.
	if (updates.TimeSlot != nil || updates.SlotNumber != nil) && window.ExpiredAt(timeslot.MinuteOfDay(s.now())) {
		return nil, apperrors.Validation("Time slot has already ended for today", map[string]any{
			"timeSlot": merged.TimeSlot,
		})
	}
	merged.StartMinute = window.Start
	merged.EndMinute = window.End

	if err := s.repo.Update(ctx, bookingID, merged); err != nil {
		switch {
		case errors.Is(err, bookingserrors.ErrSlotTaken):
			return nil, s.slotConflict(merged)
		case errors.Is(err, bookingserrors.ErrNotFound):
			return nil, apperrors.NotFoundWithID("Booking", bookingID)
		default:
			s.cfg.Log.Error("Failed to update booking", "booking_id", bookingID, "error", err)
			return nil, apperrors.Internal("Failed to update booking", err)
		}
	}

	s.cache.Invalidate(ctx)
	s.events.PublishEvent(ctx, kafka.EventBookingUpdated, bookingID, merged)
	s.cfg.Log.Info("Booking updated successfully", "booking_id", bookingID)
	return merged, nil
}

// ReleaseExpired marks every active booking whose window has ended at now as
// released. Calling it again without new bookings releases nothing.
func (s *bookingService) ReleaseExpired(ctx context.Context, now time.Time) (int64, error) {
	if s.cfg.Location != nil {
		now = now.In(s.cfg.Location)
	}

	count, err := s.repo.ReleaseExpired(ctx, timeslot.MinuteOfDay(now), now)
	if err != nil {
		s.cfg.Log.Error("Failed to release expired bookings", "error", err)
		return 0, apperrors.Internal("Failed to release expired bookings", err)
	}
	if count == 0 {
		return 0, nil
	}

	s.cache.Invalidate(ctx)
	s.metrics.released.Add(float64(count))
	s.events.PublishEvent(ctx, kafka.EventSlotsReleased, "sweep", map[string]any{
		"released": count,
		"at":       now.Format(time.RFC3339),
	})
	s.cfg.Log.Info("Released expired bookings", "count", count)
	return count, nil
}

func (s *bookingService) Reset(ctx context.Context) (int64, error) {
	now := s.now()
	count, err := s.repo.CancelActive(ctx, now)
	if err != nil {
		s.cfg.Log.Error("Failed to reset slots", "error", err)
		return 0, apperrors.Internal("Failed to reset slots", err)
	}

	s.cache.Invalidate(ctx)
	s.metrics.cancelled.WithLabelValues("reset").Add(float64(count))
	s.events.PublishEvent(ctx, kafka.EventSlotsReset, "reset", map[string]any{
		"cancelled": count,
		"at":        now.Format(time.RFC3339),
	})
	s.cfg.Log.Info("All slots reset", "cancelled", count)
	return count, nil
}

// Board renders every slot at the current instant, redacted for viewer. An
// admin may pass vehicle to hide booked slots whose plates do not contain it;
// free slots always stay on the board. Other viewers cannot filter.
func (s *bookingService) Board(ctx context.Context, viewer *session.Claims, vehicle string) ([]*model.SlotView, error) {
	active, generation, ok := s.cache.Get(ctx)
	if !ok {
		var err error
		active, err = s.repo.FindActive(ctx)
		if err != nil {
			s.cfg.Log.Error("Failed to load active bookings", "error", err)
			return nil, apperrors.Internal("Failed to load slots", err)
		}
		s.cache.Set(ctx, generation, active)
	}

	bySlot := make(map[int][]*model.Booking, s.cfg.SlotCount)
	for _, b := range active {
		bySlot[b.SlotNumber] = append(bySlot[b.SlotNumber], b)
	}

	plate := ""
	if viewer != nil && viewer.IsAdmin() {
		plate = sanitizer.SanitizePlate(vehicle)
	}

	nowMinute := timeslot.MinuteOfDay(s.now())
	views := make([]*model.SlotView, 0, s.cfg.SlotCount)
	for slot := 1; slot <= s.cfg.SlotCount; slot++ {
		if plate != "" && len(bySlot[slot]) > 0 && !anyPlateContains(bySlot[slot], plate) {
			continue
		}
		views = append(views, buildSlotView(slot, bySlot[slot], nowMinute, viewer))
	}
	return views, nil
}

func anyPlateContains(bookings []*model.Booking, plate string) bool {
	for _, b := range bookings {
		if strings.Contains(strings.ToUpper(b.VehicleNumber), plate) {
			return true
		}
	}
	return false
}

func buildSlotView(slot int, bookings []*model.Booking, nowMinute int, viewer *session.Claims) *model.SlotView {
	view := &model.SlotView{SlotNumber: slot, Status: model.SlotAvailable}
	if len(bookings) == 0 {
		return view
	}

	primary := pickPrimary(bookings, nowMinute)
	window := timeslot.Window{Start: primary.StartMinute, End: primary.EndMinute}
	view.Status = model.SlotBooked
	if window.ExpiredAt(nowMinute) {
		view.Status = model.SlotExpired
	}

	if viewer == nil {
		return view
	}

	view.TimeSlot = primary.TimeSlot
	view.Remaining = window.RemainingAt(nowMinute)

	switch {
	case viewer.IsAdmin():
		view.Booking = primary
		view.Bookings = bookings
	default:
		if viewer.Owns(primary.Email) {
			view.Booking = primary
		}
		for _, b := range bookings {
			if viewer.Owns(b.Email) {
				view.Bookings = append(view.Bookings, b)
			}
		}
	}
	return view
}

// pickPrimary chooses the booking a slot is shown with: the one whose window
// contains now, else the next to end among those still pending, else the
// most recently ended.
func pickPrimary(bookings []*model.Booking, nowMinute int) *model.Booking {
	sorted := make([]*model.Booking, len(bookings))
	copy(sorted, bookings)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].EndMinute < sorted[j].EndMinute })

	for _, b := range sorted {
		if nowMinute >= b.StartMinute && nowMinute < b.EndMinute {
			return b
		}
	}
	for _, b := range sorted {
		if nowMinute < b.EndMinute {
			return b
		}
	}
	return sorted[len(sorted)-1]
}

// --- Helpers ---

func (s *bookingService) sanitize(b *model.Booking) {
	b.Name = sanitizer.SanitizeName(b.Name)
	b.Email = sanitizer.SanitizeEmail(b.Email)
	b.VehicleNumber = sanitizer.SanitizePlate(b.VehicleNumber)
	b.VehicleType = sanitizer.SanitizeVehicleType(b.VehicleType)
	if canonical, err := timeslot.Canonical(b.TimeSlot); err == nil {
		b.TimeSlot = canonical
	}
}

func (s *bookingService) validate(booking *model.Booking) error {
	if err := s.validator.Validate(booking); err != nil {
		s.cfg.Log.Warn("Booking validation failed", "error", err)
		return validationError("Booking validation failed", err)
	}
	return nil
}

func validationError(message string, err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return apperrors.Validation(message, verrs.Details())
	}
	return apperrors.Validation(message, map[string]any{"error": err.Error()})
}

func mergeBookingUpdates(existing *model.Booking, updates *model.BookingUpdate) *model.Booking {
	merged := *existing

	if updates.Name != nil {
		merged.Name = *updates.Name
	}
	if updates.VehicleNumber != nil {
		merged.VehicleNumber = *updates.VehicleNumber
	}
	if updates.VehicleType != nil {
		merged.VehicleType = *updates.VehicleType
	}
	if updates.SlotNumber != nil {
		merged.SlotNumber = *updates.SlotNumber
	}
	if updates.TimeSlot != nil {
		merged.TimeSlot = *updates.TimeSlot
	}

	return &merged
}

// GenerateBookingID returns "BK" followed by six digits, 100000-999999.
func GenerateBookingID() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", fmt.Errorf("failed to generate booking ID: %w", err)
	}
	return fmt.Sprintf("BK%06d", n.Int64()+100000), nil
}
