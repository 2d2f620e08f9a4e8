package validators

import "go.mongodb.org/mongo-driver/bson"

var BookingValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"booking_id",
			"name",
			"email",
			"vehicle_number",
			"slot_number",
			"time_slot",
			"start_minute",
			"end_minute",
			"status",
			"created_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType": "objectId",
			},

			"booking_id": bson.M{
				"bsonType": "string",
				"pattern":  "^BK[0-9]{6}$",
			},

			"name": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 100,
			},

			"email": bson.M{
				"bsonType":  "string",
				"maxLength": 254,
			},

			"vehicle_number": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 16,
			},

			"vehicle_type": bson.M{
				"bsonType": "string",
				"enum":     []string{"", "car", "bike", "suv", "truck", "ev"},
			},

			"slot_number": bson.M{
				"bsonType": []string{"int", "long"},
				"minimum":  1,
			},

			"time_slot": bson.M{
				"bsonType":  "string",
				"minLength": 1,
			},

			"start_minute": bson.M{
				"bsonType": []string{"int", "long"},
				"minimum":  0,
				"maximum":  1439,
			},

			"end_minute": bson.M{
				"bsonType": []string{"int", "long"},
				"minimum":  1,
				"maximum":  1439,
			},

			"status": bson.M{
				"bsonType": "string",
				"enum": []string{
					"active",
					"released",
					"cancelled",
				},
			},

			"created_at": bson.M{
				"bsonType": "date",
			},

			"released_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}
