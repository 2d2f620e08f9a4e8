package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	bookingserrors "smartparking/internal/bookings/errors"
	"smartparking/pkg/config"
	mongotx "smartparking/pkg/db/mongo"
	"smartparking/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "Bookings"

	// IndexSlotTimeActive is the unique partial index on
	// (slot_number, time_slot) restricted to status "active". It is what
	// makes booking an atomic conditional insert.
	IndexSlotTimeActive = "slot_time_active_unique"
	IndexBookingID      = "booking_id_unique"
	IndexEmail          = "email_idx"
	IndexStatusEnd      = "status_end_minute_idx"
)

type Filter struct {
	Email  string
	Status string
}

type BookingRepository interface {
	Create(ctx context.Context, booking *model.Booking) error
	FindByBookingID(ctx context.Context, bookingID string) (*model.Booking, error)
	Find(ctx context.Context, filter Filter) ([]*model.Booking, error)
	FindActive(ctx context.Context) ([]*model.Booking, error)
	Update(ctx context.Context, bookingID string, booking *model.Booking) error
	Delete(ctx context.Context, bookingID string) (bool, error)
	ReleaseExpired(ctx context.Context, nowMinute int, at time.Time) (int64, error)
	CancelActive(ctx context.Context, at time.Time) (int64, error)
	CancelActiveByEmail(ctx context.Context, email string, at time.Time) (int64, error)
	ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error
}

type mongoBookingRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
	txManager  mongotx.TransactionManager
}

func NewMongoBookingRepository(cfg *config.Config) BookingRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoBookingRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
		txManager:  mongotx.NewTransactionManager(cfg.Client.Mongo),
	}
}

func (r *mongoBookingRepository) Create(ctx context.Context, booking *model.Booking) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	if booking.CreatedAt.IsZero() {
		booking.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	}
	result, err := r.collection.InsertOne(ctx, booking)
	if err != nil {
		if dupErr := classifyDuplicate(err); dupErr != nil {
			return dupErr
		}
		return fmt.Errorf("failed to create booking: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		booking.ID = oid.Hex()
	}
	return nil
}

func (r *mongoBookingRepository) FindByBookingID(ctx context.Context, bookingID string) (*model.Booking, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var booking model.Booking
	err := r.collection.FindOne(ctx, bson.M{"booking_id": bookingID}).Decode(&booking)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, bookingserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find booking: %w", err)
	}

	return &booking, nil
}

func (r *mongoBookingRepository) Find(ctx context.Context, filter Filter) ([]*model.Booking, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	query := bson.M{}
	if filter.Email != "" {
		query["email"] = strings.ToLower(filter.Email)
	}
	if filter.Status != "" {
		query["status"] = filter.Status
	}

	opts := options.Find().SetSort(bson.D{
		{Key: "slot_number", Value: 1},
		{Key: "start_minute", Value: 1},
	})

	cursor, err := r.collection.Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find bookings: %w", err)
	}
	defer cursor.Close(ctx)

	bookings := []*model.Booking{}
	if err = cursor.All(ctx, &bookings); err != nil {
		return nil, fmt.Errorf("failed to decode bookings: %w", err)
	}

	return bookings, nil
}

func (r *mongoBookingRepository) FindActive(ctx context.Context) ([]*model.Booking, error) {
	return r.Find(ctx, Filter{Status: config.StatusActive})
}

// Update rewrites the mutable fields of an active booking. Moving it onto an
// occupied (slot, time slot) pair fails on the unique index.
func (r *mongoBookingRepository) Update(ctx context.Context, bookingID string, booking *model.Booking) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	update := bson.M{
		"$set": bson.M{
			"name":           booking.Name,
			"vehicle_number": booking.VehicleNumber,
			"vehicle_type":   booking.VehicleType,
			"slot_number":    booking.SlotNumber,
			"time_slot":      booking.TimeSlot,
			"start_minute":   booking.StartMinute,
			"end_minute":     booking.EndMinute,
		},
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"booking_id": bookingID}, update)
	if err != nil {
		if dupErr := classifyDuplicate(err); dupErr != nil {
			return dupErr
		}
		return fmt.Errorf("failed to update booking: %w", err)
	}

	if result.MatchedCount == 0 {
		return bookingserrors.ErrNotFound
	}
	return nil
}

func (r *mongoBookingRepository) Delete(ctx context.Context, bookingID string) (bool, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	result, err := r.collection.DeleteOne(ctx, bson.M{"booking_id": bookingID})
	if err != nil {
		return false, fmt.Errorf("failed to delete booking: %w", err)
	}
	return result.DeletedCount > 0, nil
}

// ReleaseExpired flips every active booking whose window ended at or before
// nowMinute to released in a single statement.
func (r *mongoBookingRepository) ReleaseExpired(ctx context.Context, nowMinute int, at time.Time) (int64, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	filter := bson.M{
		"status":     config.StatusActive,
		"end_minute": bson.M{"$lte": nowMinute},
	}
	result, err := r.collection.UpdateMany(ctx, filter, releaseUpdate(config.StatusReleased, at))
	if err != nil {
		return 0, fmt.Errorf("failed to release expired bookings: %w", err)
	}
	return result.ModifiedCount, nil
}

func (r *mongoBookingRepository) CancelActive(ctx context.Context, at time.Time) (int64, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	result, err := r.collection.UpdateMany(ctx, bson.M{"status": config.StatusActive}, releaseUpdate(config.StatusCancelled, at))
	if err != nil {
		return 0, fmt.Errorf("failed to cancel active bookings: %w", err)
	}
	return result.ModifiedCount, nil
}

func (r *mongoBookingRepository) CancelActiveByEmail(ctx context.Context, email string, at time.Time) (int64, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	filter := bson.M{
		"email":  strings.ToLower(email),
		"status": config.StatusActive,
	}
	result, err := r.collection.UpdateMany(ctx, filter, releaseUpdate(config.StatusCancelled, at))
	if err != nil {
		return 0, fmt.Errorf("failed to cancel bookings for %s: %w", email, err)
	}
	return result.ModifiedCount, nil
}

func (r *mongoBookingRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}

func releaseUpdate(status string, at time.Time) bson.M {
	return bson.M{
		"$set": bson.M{
			"status":      status,
			"released_at": at.UTC().Truncate(time.Millisecond),
		},
	}
}

// classifyDuplicate maps a duplicate key error to the sentinel for the index
// that rejected the write. It returns nil for any other error, including a
// duplicate on an index it does not know.
func classifyDuplicate(err error) error {
	if !mongo.IsDuplicateKeyError(err) {
		return nil
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, IndexSlotTimeActive):
		return bookingserrors.ErrSlotTaken
	case strings.Contains(msg, IndexBookingID):
		return bookingserrors.ErrDuplicateBookingID
	default:
		return nil
	}
}
