package models

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// Location is a GeoJSON point with tour-specific metadata.
type Location struct {
	Type        string    `bson:"type" json:"type"`
	Coordinates []float64 `bson:"coordinates" json:"coordinates"` // [lng, lat]
	Address     string    `bson:"address,omitempty" json:"address,omitempty"`
	Description string    `bson:"description,omitempty" json:"description,omitempty"`
	Day         int       `bson:"day,omitempty" json:"day,omitempty"`
}

type Tour struct {
	ID              primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	Name            string               `bson:"name" json:"name"`
	Slug            string               `bson:"slug,omitempty" json:"slug,omitempty"`
	Cover           string               `bson:"cover" json:"cover"`
	Description     string               `bson:"description,omitempty" json:"description,omitempty"`
	Difficulty      string               `bson:"difficulty" json:"difficulty"`
	Duration        float64              `bson:"duration" json:"duration"`
	MaxGroupSize    int                  `bson:"maxGroupSize" json:"maxGroupSize"`
	Price           float64              `bson:"price" json:"price"`
	PriceDiscount   float64              `bson:"priceDiscount,omitempty" json:"priceDiscount,omitempty"`
	Rating          float64              `bson:"rating,omitempty" json:"rating,omitempty"`
	RatingsAverage  float64              `bson:"ratingsAverage,omitempty" json:"ratingsAverage,omitempty"`
	RatingsQuantity int                  `bson:"ratingsQuantity,omitempty" json:"ratingsQuantity,omitempty"`
	Images          []string             `bson:"images,omitempty" json:"images,omitempty"`
	StartDates      []time.Time          `bson:"startDates,omitempty" json:"startDates,omitempty"`
	StartLocation   *Location            `bson:"startLocation,omitempty" json:"startLocation,omitempty"`
	Locations       []Location           `bson:"locations,omitempty" json:"locations,omitempty"`
	Guides          []primitive.ObjectID `bson:"guides,omitempty" json:"guides,omitempty"`
	Reviews         []Review             `bson:"reviews,omitempty" json:"reviews,omitempty"`
	CreatedAt       time.Time            `bson:"createdAt" json:"createdAt"`
}

// TourReviewsLookup joins a tour's reviews onto the document. Declared
// once; passed explicitly by the operations that want the eager load.
var TourReviewsLookup = Lookup{
	From:         "reviews",
	LocalField:   "_id",
	ForeignField: "tour",
	As:           "reviews",
}

// TourStats is one difficulty bucket of the stats aggregation.
type TourStats struct {
	Difficulty string  `bson:"_id" json:"difficulty"`
	ToursCount int     `bson:"toursCount" json:"toursCount"`
	NumRating  int     `bson:"numRating" json:"numRating"`
	AvgRating  float64 `bson:"avgRating" json:"avgRating"`
	AvgPrice   float64 `bson:"avgPrice" json:"avgPrice"`
	MinPrice   float64 `bson:"minPrice" json:"minPrice"`
	MaxPrice   float64 `bson:"maxPrice" json:"maxPrice"`
}

// MonthlyPlanEntry is one month bucket of the monthly plan aggregation.
type MonthlyPlanEntry struct {
	Month     string   `bson:"month" json:"month"`
	TourCount int      `bson:"tourCount" json:"tourCount"`
	Tours     []string `bson:"tours" json:"tours"`
}

// TourDistance is a tour with its distance from a reference point.
type TourDistance struct {
	ID       primitive.ObjectID `bson:"_id" json:"id"`
	Name     string             `bson:"name" json:"name"`
	Distance float64            `bson:"distance" json:"distance"`
}

// TourStore adds the aggregation queries the tour routes need on top of the
// generic document capability.
type TourStore struct {
	*MongoStore[Tour]
	coll *mongo.Collection
}

func NewTourStore(db *mongo.Database) *TourStore {
	return &TourStore{
		MongoStore: NewMongoStore[Tour](db, "tours"),
		coll:       db.Collection("tours"),
	}
}

// Stats groups well-rated tours by difficulty with price and rating
// aggregates.
func (s *TourStore) Stats(ctx context.Context) ([]TourStats, error) {
	pipeline := mongo.Pipeline{
		bson.D{{Key: "$match", Value: bson.M{
			"ratingsAverage": bson.M{"$gte": 4.5},
		}}},
		bson.D{{Key: "$group", Value: bson.M{
			"_id":        bson.M{"$toUpper": "$difficulty"},
			"toursCount": bson.M{"$sum": 1},
			"numRating":  bson.M{"$sum": "$ratingsQuantity"},
			"avgRating":  bson.M{"$avg": "$ratingsAverage"},
			"avgPrice":   bson.M{"$avg": "$price"},
			"minPrice":   bson.M{"$min": "$price"},
			"maxPrice":   bson.M{"$max": "$price"},
		}}},
	}

	cursor, err := s.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var stats []TourStats
	if err := cursor.All(ctx, &stats); err != nil {
		return nil, err
	}
	return stats, nil
}

// MonthlyPlan counts tour starts per month of the given year.
func (s *TourStore) MonthlyPlan(ctx context.Context, year int) ([]MonthlyPlanEntry, error) {
	from := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(year, time.December, 31, 23, 59, 59, 0, time.UTC)

	pipeline := mongo.Pipeline{
		bson.D{{Key: "$unwind", Value: "$startDates"}},
		bson.D{{Key: "$match", Value: bson.M{
			"startDates": bson.M{"$gte": from, "$lte": to},
		}}},
		bson.D{{Key: "$group", Value: bson.M{
			"_id": bson.M{
				"month": bson.M{"$dateToString": bson.M{
					"format": "%B",
					"date":   "$startDates",
				}},
				"m": bson.M{"$month": "$startDates"},
			},
			"tourCount": bson.M{"$sum": 1},
			"tours":     bson.M{"$push": "$name"},
		}}},
		bson.D{{Key: "$sort", Value: bson.M{"_id.m": 1}}},
		bson.D{{Key: "$addFields", Value: bson.M{"month": "$_id.month"}}},
		bson.D{{Key: "$project", Value: bson.M{"_id": 0}}},
	}

	cursor, err := s.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var plan []MonthlyPlanEntry
	if err := cursor.All(ctx, &plan); err != nil {
		return nil, err
	}
	return plan, nil
}

// Within returns tours whose start location falls inside a sphere of the
// given radius (in radians) around the center point.
func (s *TourStore) Within(ctx context.Context, lng, lat, radius float64) ([]Tour, error) {
	filter := bson.M{
		"startLocation": bson.M{
			"$geoWithin": bson.M{
				"$centerSphere": []interface{}{[]float64{lng, lat}, radius},
			},
		},
	}

	cursor, err := s.coll.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	tours := []Tour{}
	if err := cursor.All(ctx, &tours); err != nil {
		return nil, err
	}
	return tours, nil
}

// Distances returns every tour with its distance from the point, scaled by
// the unit multiplier.
func (s *TourStore) Distances(ctx context.Context, lng, lat, multiplier float64) ([]TourDistance, error) {
	pipeline := mongo.Pipeline{
		bson.D{{Key: "$geoNear", Value: bson.M{
			"near": bson.M{
				"type":        "Point",
				"coordinates": []float64{lng, lat},
			},
			"distanceField":      "distance",
			"distanceMultiplier": multiplier,
		}}},
		bson.D{{Key: "$project", Value: bson.M{"distance": 1, "name": 1}}},
	}

	cursor, err := s.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var distances []TourDistance
	if err := cursor.All(ctx, &distances); err != nil {
		return nil, err
	}
	return distances, nil
}
