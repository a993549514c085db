package models

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// Role is the closed set of authorization roles.
type Role string

const (
	RoleUser      Role = "user"
	RoleGuide     Role = "guide"
	RoleLeadGuide Role = "lead-guide"
	RoleAdmin     Role = "admin"
)

// ValidRole reports whether r is one of the known roles.
func ValidRole(r Role) bool {
	switch r {
	case RoleUser, RoleGuide, RoleLeadGuide, RoleAdmin:
		return true
	}
	return false
}

// User is a registered identity. Password and reset fields never serialize
// to JSON regardless of any requested projection.
type User struct {
	ID                   primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name                 string             `bson:"name" json:"name"`
	Email                string             `bson:"email" json:"email"`
	Photo                string             `bson:"photo,omitempty" json:"photo,omitempty"`
	Password             string             `bson:"password" json:"-"` // bcrypt hash
	Role                 Role               `bson:"role" json:"role"`
	Active               bool               `bson:"active" json:"-"`
	PasswordChangedAt    time.Time          `bson:"passwordChangedAt,omitempty" json:"-"`
	PasswordResetToken   string             `bson:"passwordResetToken,omitempty" json:"-"`
	PasswordResetExpires time.Time          `bson:"passwordResetExpires,omitempty" json:"-"`
	CreatedAt            time.Time          `bson:"createdAt" json:"createdAt"`
}

// ChangedPasswordAfter reports whether the credential changed at or after
// the given token issue time, which invalidates every token issued before
// the change.
func (u *User) ChangedPasswordAfter(issuedAt time.Time) bool {
	if u.PasswordChangedAt.IsZero() {
		return false
	}
	return !u.PasswordChangedAt.Truncate(time.Second).Before(issuedAt.Truncate(time.Second))
}

// UserStore is the document-access capability AuthFlow needs. Lookups only
// see active identities; deactivated accounts behave as if they do not
// exist.
type UserStore interface {
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByID(ctx context.Context, id string) (*User, error)
	FindByResetToken(ctx context.Context, tokenHash string, now time.Time) (*User, error)
	Insert(ctx context.Context, u *User) error
	UpdateByID(ctx context.Context, id string, update bson.M) error
}

type mongoUserStore struct {
	coll *mongo.Collection
}

// NewUserStore returns a UserStore backed by the users collection.
func NewUserStore(db *mongo.Database) UserStore {
	return &mongoUserStore{coll: db.Collection("users")}
}

func (s *mongoUserStore) FindByEmail(ctx context.Context, email string) (*User, error) {
	return s.findOne(ctx, bson.M{"email": email, "active": bson.M{"$ne": false}})
}

func (s *mongoUserStore) FindByID(ctx context.Context, id string) (*User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrInvalidID
	}
	return s.findOne(ctx, bson.M{"_id": oid, "active": bson.M{"$ne": false}})
}

func (s *mongoUserStore) FindByResetToken(ctx context.Context, tokenHash string, now time.Time) (*User, error) {
	return s.findOne(ctx, bson.M{
		"passwordResetToken":   tokenHash,
		"passwordResetExpires": bson.M{"$gt": now},
	})
}

func (s *mongoUserStore) findOne(ctx context.Context, filter bson.M) (*User, error) {
	var u User
	err := s.coll.FindOne(ctx, filter).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *mongoUserStore) Insert(ctx context.Context, u *User) error {
	_, err := s.coll.InsertOne(ctx, u)
	return err
}

func (s *mongoUserStore) UpdateByID(ctx context.Context, id string, update bson.M) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrInvalidID
	}
	res, err := s.coll.UpdateByID(ctx, oid, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}
