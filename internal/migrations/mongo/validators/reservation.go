package validators

import "go.mongodb.org/mongo-driver/bson"

var ReservationValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType":             "object",
		"required":             []string{"_id", "station_id", "user_id", "status", "open", "created_at", "expires_at"},
		"additionalProperties": true,
		"properties": bson.M{
			"_id":          bson.M{"bsonType": "string"},
			"station_id":   bson.M{"bsonType": "string"},
			"station_name": bson.M{"bsonType": "string"},
			"user_id":      bson.M{"bsonType": "string"},
			"code":         bson.M{"bsonType": "string"},
			"status": bson.M{
				"enum": []string{"pending", "active", "completed", "cancelled", "expired"},
			},
			"open":       bson.M{"bsonType": "bool"},
			"created_at": bson.M{"bsonType": "date"},
			"updated_at": bson.M{"bsonType": "date"},
			"expires_at": bson.M{"bsonType": "date"},
		},
	},
}

var ClaimValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType":             "object",
		"required":             []string{"_id", "station_id", "released", "created_at"},
		"additionalProperties": true,
		"properties": bson.M{
			"_id":         bson.M{"bsonType": "string"},
			"station_id":  bson.M{"bsonType": "string"},
			"released":    bson.M{"bsonType": "bool"},
			"created_at":  bson.M{"bsonType": "date"},
			"released_at": bson.M{"bsonType": "date"},
		},
	},
}
