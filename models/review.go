package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ReviewAuthor is the eager-loaded subset of the reviewing user.
type ReviewAuthor struct {
	ID    primitive.ObjectID `bson:"_id" json:"id"`
	Name  string             `bson:"name" json:"name"`
	Email string             `bson:"email" json:"email"`
}

type Review struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Review    string             `bson:"review" json:"review"`
	Rating    float64            `bson:"rating" json:"rating"`
	Tour      primitive.ObjectID `bson:"tour" json:"tour"`
	User      primitive.ObjectID `bson:"user" json:"user"`
	Author    *ReviewAuthor      `bson:"author,omitempty" json:"author,omitempty"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
}

// ReviewAuthorLookup joins the reviewing user's public fields onto a review.
// Declared once; passed explicitly by the operations that want it.
var ReviewAuthorLookup = Lookup{
	From:         "users",
	LocalField:   "user",
	ForeignField: "_id",
	As:           "author",
	Single:       true,
	Fields:       []string{"name", "email"},
}
