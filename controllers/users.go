package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/Tharoon321/go-tours/middleware"
	"github.com/Tharoon321/go-tours/models"
	"github.com/Tharoon321/go-tours/utils"
)

// UserController serves the logged-in user's self-service routes; admin
// CRUD goes through the generic handlers.
type UserController struct {
	Users models.UserStore
	Store models.Store[models.User]
}

// Me returns the authenticated user.
func (u *UserController) Me(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		_ = c.Error(utils.AuthenticationError("you are not logged in, please log in"))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"message": "fetched successfully",
		"data":    user,
	})
}

// UpdateMe updates the caller's name and email. Password changes are
// rejected here; they have their own route with its own checks.
func (u *UserController) UpdateMe(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		_ = c.Error(utils.AuthenticationError("you are not logged in, please log in"))
		return
	}

	var body map[string]interface{}
	if err := c.ShouldBindJSON(&body); err != nil {
		_ = c.Error(&utils.AppError{Kind: utils.KindValidation, Message: "invalid input data", Err: err})
		return
	}
	if _, has := body["password"]; has {
		_ = c.Error(utils.ValidationError("this route is not for password change, use /change-password"))
		return
	}
	if _, has := body["passwordConfirm"]; has {
		_ = c.Error(utils.ValidationError("this route is not for password change, use /change-password"))
		return
	}

	filtered := bson.M{}
	for _, field := range []string{"name", "email"} {
		if val, has := body[field]; has {
			filtered[field] = val
		}
	}
	if len(filtered) == 0 {
		_ = c.Error(utils.ValidationError("no fields to update"))
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	updated, err := u.Store.UpdateByID(ctx, user.ID.Hex(), filtered)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"message": "user updated successfully",
		"data":    updated,
	})
}

// Deactivate soft-deletes the caller's account. The user store never
// surfaces inactive accounts again.
func (u *UserController) Deactivate(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		_ = c.Error(utils.AuthenticationError("you are not logged in, please log in"))
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	err := u.Users.UpdateByID(ctx, user.ID.Hex(), bson.M{"$set": bson.M{"active": false}})
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.Status(http.StatusNoContent)
}

// UpdateUser is the admin partial update. Password keys are rejected and
// credential bookkeeping fields stripped, so a raw plaintext value can
// never land in the password column; passwords only change through the
// flows that hash them.
func (u *UserController) UpdateUser(c *gin.Context) {
	var body bson.M
	if err := c.ShouldBindJSON(&body); err != nil {
		_ = c.Error(&utils.AppError{Kind: utils.KindValidation, Message: "invalid input data", Err: err})
		return
	}
	if _, has := body["password"]; has {
		_ = c.Error(utils.ValidationError("this route is not for password change, use /change-password"))
		return
	}
	if _, has := body["passwordConfirm"]; has {
		_ = c.Error(utils.ValidationError("this route is not for password change, use /change-password"))
		return
	}
	for _, field := range []string{"_id", "id", "passwordResetToken", "passwordResetExpires", "passwordChangedAt"} {
		delete(body, field)
	}
	if len(body) == 0 {
		_ = c.Error(utils.ValidationError("no fields to update"))
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	updated, err := u.Store.UpdateByID(ctx, c.Param("id"), body)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"message": "user updated successfully",
		"data":    updated,
	})
}

// CreateUser exists so the admin collection route answers something
// sensible; accounts are made through signup where the password rules live.
func (u *UserController) CreateUser(c *gin.Context) {
	_ = c.Error(utils.ValidationError("this route is not for creating users, please use /signup"))
}
