package models

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Tharoon321/go-tours/utils"
)

var (
	ErrNotFound  = errors.New("document not found")
	ErrInvalidID = errors.New("invalid document id")
)

// Lookup declares an eager load of related documents, replacing implicit
// query hooks: callers state per operation exactly which relation joins in.
type Lookup struct {
	From         string   // related collection
	LocalField   string   // field on this document
	ForeignField string   // field on the related documents
	As           string   // output field name
	Single       bool     // unwind the result to one embedded document
	Fields       []string // optional projection of the joined documents
}

// Store is a generic document-access capability: everything the generic
// CRUD handlers need, parameterized by document type and instantiated per
// collection at composition time.
type Store[T any] interface {
	FindAll(ctx context.Context, base bson.M, features *utils.APIFeatures) ([]T, error)
	FindByID(ctx context.Context, id string, lookups ...Lookup) (*T, error)
	Create(ctx context.Context, doc *T) error
	UpdateByID(ctx context.Context, id string, update bson.M) (*T, error)
	DeleteByID(ctx context.Context, id string) error
}

// MongoStore implements Store over a single MongoDB collection.
type MongoStore[T any] struct {
	coll *mongo.Collection
}

func NewMongoStore[T any](db *mongo.Database, collection string) *MongoStore[T] {
	return &MongoStore[T]{coll: db.Collection(collection)}
}

// FindAll executes the query the features layer described, with base merged
// into the filter for route-scoped conditions (e.g. a parent tour id).
func (s *MongoStore[T]) FindAll(ctx context.Context, base bson.M, features *utils.APIFeatures) ([]T, error) {
	filter, opts := features.Query()
	for k, v := range base {
		filter[k] = v
	}

	cursor, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	docs := []T{}
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

func (s *MongoStore[T]) FindByID(ctx context.Context, id string, lookups ...Lookup) (*T, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrInvalidID
	}

	if len(lookups) == 0 {
		var doc T
		err := s.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc)
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		if err != nil {
			return nil, err
		}
		return &doc, nil
	}

	pipeline := mongo.Pipeline{
		bson.D{{Key: "$match", Value: bson.M{"_id": oid}}},
	}
	for _, l := range lookups {
		pipeline = append(pipeline, l.stages()...)
	}

	cursor, err := s.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []T
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, ErrNotFound
	}
	return &docs[0], nil
}

func (s *MongoStore[T]) Create(ctx context.Context, doc *T) error {
	_, err := s.coll.InsertOne(ctx, doc)
	return err
}

// UpdateByID applies a partial $set update and returns the updated document.
func (s *MongoStore[T]) UpdateByID(ctx context.Context, id string, update bson.M) (*T, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrInvalidID
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var doc T
	err = s.coll.FindOneAndUpdate(ctx, bson.M{"_id": oid}, bson.M{"$set": update}, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func (s *MongoStore[T]) DeleteByID(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrInvalidID
	}

	res, err := s.coll.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (l Lookup) stages() []bson.D {
	lookup := bson.M{
		"from":         l.From,
		"localField":   l.LocalField,
		"foreignField": l.ForeignField,
		"as":           l.As,
	}
	if len(l.Fields) > 0 {
		project := bson.M{}
		for _, f := range l.Fields {
			project[f] = 1
		}
		lookup["pipeline"] = []bson.M{{"$project": project}}
	}

	stages := []bson.D{{{Key: "$lookup", Value: lookup}}}
	if l.Single {
		stages = append(stages, bson.D{{Key: "$unwind", Value: bson.M{
			"path":                       "$" + l.As,
			"preserveNullAndEmptyArrays": true,
		}}})
	}
	return stages
}
