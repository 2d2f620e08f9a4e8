package mongo

import (
	"context"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	bookingsrepo "smartparking/internal/bookings/repository"
	"smartparking/internal/migrations/mongo/validators"
	usersrepo "smartparking/internal/users/repository"
	"smartparking/pkg/config"
	"smartparking/pkg/logger"
)

var (
	BookingsIndexes = []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "slot_number", Value: 1},
				{Key: "time_slot", Value: 1},
			},
			Options: options.Index().
				SetName(bookingsrepo.IndexSlotTimeActive).
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"status": config.StatusActive}),
		},
		{
			Keys:    bson.D{{Key: "booking_id", Value: 1}},
			Options: options.Index().SetName(bookingsrepo.IndexBookingID).SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetName(bookingsrepo.IndexEmail),
		},
		{
			Keys: bson.D{
				{Key: "status", Value: 1},
				{Key: "end_minute", Value: 1},
			},
			Options: options.Index().SetName(bookingsrepo.IndexStatusEnd),
		},
	}

	UsersIndexes = []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetName(usersrepo.IndexEmail).SetUnique(true),
		},
	}
)

type CollectionDef struct {
	Name      string
	Indexes   []mongo.IndexModel
	Validator bson.M
}

func Collections() []CollectionDef {
	return []CollectionDef{
		{
			Name:      bookingsrepo.CollectionName,
			Indexes:   BookingsIndexes,
			Validator: validators.BookingValidator,
		},
		{
			Name:      usersrepo.CollectionName,
			Indexes:   UsersIndexes,
			Validator: validators.UserValidator,
		},
	}
}

// RunMigration creates the collections with their $jsonSchema validators and
// indexes. It is safe to run repeatedly.
func RunMigration(ctx context.Context, db *mongo.Database, log *logger.Logger) error {
	log.Info("Running Mongo migrations", "database", db.Name())

	for _, def := range Collections() {
		if err := ensureCollection(ctx, db, def.Name, def.Validator, log); err != nil {
			return fmt.Errorf("failed to ensure collection %s: %w", def.Name, err)
		}
		if err := ensureIndexes(ctx, db, def.Name, def.Indexes, log); err != nil {
			return fmt.Errorf("failed to ensure indexes for %s: %w", def.Name, err)
		}
	}

	log.Info("All migrations applied successfully")
	return nil
}

// VerifyIndexes reports an error naming every index the collections rely on
// that is missing from db. The API calls it at startup: without
// slot_time_active_unique the store would accept double bookings.
func VerifyIndexes(ctx context.Context, db *mongo.Database) error {
	var problems []string
	for _, def := range Collections() {
		specs, err := db.Collection(def.Name).Indexes().ListSpecifications(ctx)
		if err != nil {
			return fmt.Errorf("failed to list indexes for %s: %w", def.Name, err)
		}

		present := make([]string, 0, len(specs))
		for _, spec := range specs {
			present = append(present, spec.Name)
		}
		for _, name := range missingIndexes(def.Indexes, present) {
			problems = append(problems, def.Name+"."+name)
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("missing indexes %s, run the migrate command", strings.Join(problems, ", "))
	}
	return nil
}

func missingIndexes(want []mongo.IndexModel, present []string) []string {
	have := make(map[string]bool, len(present))
	for _, name := range present {
		have[name] = true
	}

	var missing []string
	for _, idx := range want {
		if idx.Options == nil || idx.Options.Name == nil {
			continue
		}
		if !have[*idx.Options.Name] {
			missing = append(missing, *idx.Options.Name)
		}
	}
	return missing
}

func ensureCollection(ctx context.Context, db *mongo.Database, name string, validator bson.M, log *logger.Logger) error {
	existing, err := db.ListCollectionNames(ctx, bson.D{{Key: "name", Value: name}})
	if err != nil {
		return err
	}

	if len(existing) == 0 {
		log.Info("Creating collection", "collection", name)
		opts := options.CreateCollection().SetValidator(validator)
		if err := db.CreateCollection(ctx, name, opts); err != nil {
			return fmt.Errorf("failed creating %s: %w", name, err)
		}
		return nil
	}

	log.Info("Collection already exists, updating validator", "collection", name)
	command := bson.D{
		{Key: "collMod", Value: name},
		{Key: "validator", Value: validator},
	}
	if err := db.RunCommand(ctx, command).Err(); err != nil {
		log.Warn("Failed updating validator", "collection", name, "error", err)
	}
	return nil
}

func ensureIndexes(ctx context.Context, db *mongo.Database, name string, models []mongo.IndexModel, log *logger.Logger) error {
	coll := db.Collection(name)
	created, err := coll.Indexes().CreateMany(ctx, models)
	if err != nil {
		return err
	}
	log.Info("Ensured indexes", "collection", name, "indexes", created)
	return nil
}
