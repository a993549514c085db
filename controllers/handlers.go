package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/Tharoon321/go-tours/models"
	"github.com/Tharoon321/go-tours/utils"
)

// BaseFilterFunc derives route-scoped filter conditions (e.g. the parent
// tour id on nested review routes) that merge into the client's query.
type BaseFilterFunc func(c *gin.Context) bson.M

// PrepareFunc fills in server-owned fields on a bound document before it is
// stored: ids, timestamps, values injected from the route or the
// authenticated user.
type PrepareFunc[T any] func(c *gin.Context, doc *T) error

// GetAll lists documents of one collection: the request's query parameters
// run through the features layer (filter, sort, field limiting,
// pagination) and the optional base filter scopes the result.
func GetAll[T any](store models.Store[T], base BaseFilterFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		features := utils.NewAPIFeatures(c.Request.URL.Query()).
			Filter().
			Sort().
			LimitFields().
			Paginate()

		baseFilter := bson.M{}
		if base != nil {
			baseFilter = base(c)
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
		defer cancel()

		docs, err := store.FindAll(ctx, baseFilter, features)
		if err != nil {
			_ = c.Error(err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":  "success",
			"message": "fetched successfully",
			"results": len(docs),
			"data":    docs,
		})
	}
}

// GetOne fetches a document by id, eager-loading the declared lookups.
func GetOne[T any](store models.Store[T], lookups ...models.Lookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		doc, err := store.FindByID(ctx, c.Param("id"), lookups...)
		if err != nil {
			_ = c.Error(err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":  "success",
			"message": "fetched successfully",
			"data":    doc,
		})
	}
}

// CreateOne binds the request body into a fresh document, runs the prepare
// hook and stores it.
func CreateOne[T any](store models.Store[T], prepare PrepareFunc[T]) gin.HandlerFunc {
	return func(c *gin.Context) {
		var doc T
		if err := c.ShouldBindJSON(&doc); err != nil {
			_ = c.Error(&utils.AppError{Kind: utils.KindValidation, Message: "invalid input data", Err: err})
			return
		}
		if prepare != nil {
			if err := prepare(c, &doc); err != nil {
				_ = c.Error(err)
				return
			}
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		if err := store.Create(ctx, &doc); err != nil {
			_ = c.Error(err)
			return
		}

		c.JSON(http.StatusCreated, gin.H{
			"status":  "success",
			"message": "created successfully",
			"data":    doc,
		})
	}
}

// UpdateOne applies a partial update from the raw request body. The id
// fields are stripped; everything else is the store's to validate.
func UpdateOne[T any](store models.Store[T]) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body bson.M
		if err := c.ShouldBindJSON(&body); err != nil {
			_ = c.Error(&utils.AppError{Kind: utils.KindValidation, Message: "invalid input data", Err: err})
			return
		}
		delete(body, "_id")
		delete(body, "id")
		if len(body) == 0 {
			_ = c.Error(utils.ValidationError("no fields to update"))
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		doc, err := store.UpdateByID(ctx, c.Param("id"), body)
		if err != nil {
			_ = c.Error(err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":  "success",
			"message": "updated successfully",
			"data":    doc,
		})
	}
}

// DeleteOne removes a document by id.
func DeleteOne[T any](store models.Store[T]) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		if err := store.DeleteByID(ctx, c.Param("id")); err != nil {
			_ = c.Error(err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":  "success",
			"message": "deleted successfully",
			"data":    nil,
		})
	}
}
