package validators

import "go.mongodb.org/mongo-driver/bson"

var BookingValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"agent_id",
			"guest_name",
			"phone_number",
			"adults",
			"guest_count",
			"rental_type",
			"start_date",
			"end_date",
			"amount",
			"status",
			"created_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType": "objectId",
			},

			"agent_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
			},

			"guest_name": bson.M{
				"bsonType":  "string",
				"minLength": 2,
				"maxLength": 100,
			},

			"phone_number": bson.M{
				"bsonType":  "string",
				"minLength": 8,
				"maxLength": 16,
			},

			"adults": bson.M{
				"bsonType": "int",
				"minimum":  1,
				"maximum":  50,
			},

			"children": bson.M{
				"bsonType": "int",
				"minimum":  0,
				"maximum":  50,
			},

			"guest_count": bson.M{
				"bsonType": "int",
				"minimum":  1,
				"maximum":  100,
			},

			"rental_type": bson.M{
				"bsonType": "string",
				"enum": []string{
					"pool",
					"villa_pool",
				},
			},

			"start_date": bson.M{
				"bsonType": "date",
			},

			"end_date": bson.M{
				"bsonType": "date",
			},

			"duration": bson.M{
				"bsonType": "int",
				"minimum":  0,
			},

			"amount": bson.M{
				"bsonType": []string{"double", "int", "long", "decimal"},
				"minimum":  0,
			},

			"details": bson.M{
				"bsonType":  "string",
				"maxLength": 1000,
			},

			"status": bson.M{
				"bsonType": "string",
				"enum": []string{
					"pending",
					"approved",
					"rejected",
				},
			},

			"rejection_reason": bson.M{
				"bsonType":  "string",
				"maxLength": 500,
			},

			"created_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}

// BookingLockValidator guards the advisory lock documents that serialize
// concurrent create attempts for the same start day.
var BookingLockValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"_id",
			"expires_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType": "string",
			},

			"expires_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}
