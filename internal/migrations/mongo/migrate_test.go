package mongo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	bookingsrepo "smartparking/internal/bookings/repository"
	usersrepo "smartparking/internal/users/repository"
)

func TestBookingsIndexes_ActiveSlotIsUnique(t *testing.T) {
	var found bool
	for _, idx := range BookingsIndexes {
		if idx.Options == nil || idx.Options.Name == nil || *idx.Options.Name != bookingsrepo.IndexSlotTimeActive {
			continue
		}
		found = true

		assert.Equal(t, bson.D{{Key: "slot_number", Value: 1}, {Key: "time_slot", Value: 1}}, idx.Keys)
		require.NotNil(t, idx.Options.Unique)
		assert.True(t, *idx.Options.Unique)
		assert.Equal(t, bson.M{"status": "active"}, idx.Options.PartialFilterExpression)
	}
	assert.True(t, found, "slot/time-slot index is defined")
}

func TestIndexNamesMatchRepositories(t *testing.T) {
	names := map[string]bool{}
	for _, def := range Collections() {
		for _, idx := range def.Indexes {
			require.NotNil(t, idx.Options.Name)
			names[*idx.Options.Name] = true
		}
	}

	for _, want := range []string{
		bookingsrepo.IndexSlotTimeActive,
		bookingsrepo.IndexBookingID,
		bookingsrepo.IndexEmail,
		bookingsrepo.IndexStatusEnd,
		usersrepo.IndexEmail,
	} {
		assert.True(t, names[want], "missing index %s", want)
	}
}

func TestCollectionsHaveValidators(t *testing.T) {
	for _, def := range Collections() {
		assert.Contains(t, def.Validator, "$jsonSchema", def.Name)
	}
}

func TestMissingIndexes(t *testing.T) {
	t.Run("fresh database", func(t *testing.T) {
		missing := missingIndexes(BookingsIndexes, []string{"_id_"})
		assert.Contains(t, missing, bookingsrepo.IndexSlotTimeActive)
		assert.Len(t, missing, len(BookingsIndexes))
	})

	t.Run("only the active slot index absent", func(t *testing.T) {
		missing := missingIndexes(BookingsIndexes, []string{
			"_id_",
			bookingsrepo.IndexBookingID,
			bookingsrepo.IndexEmail,
			bookingsrepo.IndexStatusEnd,
		})
		assert.Equal(t, []string{bookingsrepo.IndexSlotTimeActive}, missing)
	})

	t.Run("migrated", func(t *testing.T) {
		missing := missingIndexes(UsersIndexes, []string{"_id_", usersrepo.IndexEmail})
		assert.Empty(t, missing)
	})
}
