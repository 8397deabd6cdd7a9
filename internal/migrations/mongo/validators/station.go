package validators

import "go.mongodb.org/mongo-driver/bson"

// StationValidator mirrors the capacity bound enforced by the repository:
// 0 <= available_units <= total_units.
var StationValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType":             "object",
		"required":             []string{"_id", "name", "latitude", "longitude", "total_units", "available_units"},
		"additionalProperties": true,
		"properties": bson.M{
			"_id":             bson.M{"bsonType": "string", "maxLength": 64},
			"name":            bson.M{"bsonType": "string", "minLength": 2, "maxLength": 100},
			"latitude":        bson.M{"bsonType": []string{"double", "int", "long"}, "minimum": -90, "maximum": 90},
			"longitude":       bson.M{"bsonType": []string{"double", "int", "long"}, "minimum": -180, "maximum": 180},
			"total_units":     bson.M{"bsonType": []string{"int", "long"}, "minimum": 0},
			"available_units": bson.M{"bsonType": []string{"int", "long"}, "minimum": 0},
		},
	},
	"$expr": bson.M{"$lte": bson.A{"$available_units", "$total_units"}},
}
