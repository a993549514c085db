package controllers

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/Tharoon321/go-tours/middleware"
	"github.com/Tharoon321/go-tours/models"
	"github.com/Tharoon321/go-tours/utils"
)

// TourScopedFilter narrows nested review routes to their parent tour.
func TourScopedFilter(c *gin.Context) bson.M {
	tourID := c.Param("id")
	if tourID == "" {
		return bson.M{}
	}
	oid, err := primitive.ObjectIDFromHex(tourID)
	if err != nil {
		return bson.M{}
	}
	return bson.M{"tour": oid}
}

// PrepareReview fills server-owned review fields: id, timestamp, the parent
// tour from the route when the body leaves it out, and the author from the
// authenticated user.
func PrepareReview(c *gin.Context, r *models.Review) error {
	r.ID = primitive.NewObjectID()
	r.CreatedAt = time.Now().UTC()
	r.Author = nil

	if r.Tour.IsZero() {
		oid, err := primitive.ObjectIDFromHex(c.Param("id"))
		if err != nil {
			return utils.ValidationError("review must belong to a tour")
		}
		r.Tour = oid
	}

	if r.User.IsZero() {
		user, ok := middleware.CurrentUser(c)
		if !ok {
			return utils.AuthenticationError("you are not logged in, please log in")
		}
		r.User = user.ID
	}
	return nil
}
