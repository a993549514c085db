package controllers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/Tharoon321/go-tours/middleware"
	"github.com/Tharoon321/go-tours/models"
	"github.com/Tharoon321/go-tours/utils"
)

// AuthController owns the credential lifecycle: signup, login, password
// reset and password change. All collaborators are injected so the flow is
// testable without a database or a mail server.
type AuthController struct {
	Users         models.UserStore
	Signer        *utils.TokenSigner
	Hasher        *utils.PasswordHasher
	Mailer        utils.Mailer
	ResetTokenTTL time.Duration
}

// SignupInput request body for account creation
type SignupInput struct {
	Name            string      `json:"name" binding:"required"`
	Email           string      `json:"email" binding:"required,email"`
	Password        string      `json:"password" binding:"required"`
	PasswordConfirm string      `json:"passwordConfirm" binding:"required"`
	Role            models.Role `json:"role"`
}

// LoginInput request body for login
type LoginInput struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// ForgotPasswordInput
type ForgotPasswordInput struct {
	Email string `json:"email" binding:"required,email"`
}

// ResetPasswordInput
type ResetPasswordInput struct {
	Password        string `json:"password" binding:"required"`
	PasswordConfirm string `json:"passwordConfirm" binding:"required"`
}

// UpdatePasswordInput
type UpdatePasswordInput struct {
	CurrentPassword string `json:"currentPassword"`
	Password        string `json:"password" binding:"required"`
	PasswordConfirm string `json:"passwordConfirm" binding:"required"`
}

// Signup creates a new identity and logs it in.
func (a *AuthController) Signup(c *gin.Context) {
	var input SignupInput
	if err := c.ShouldBindJSON(&input); err != nil {
		_ = c.Error(&utils.AppError{Kind: utils.KindValidation, Message: "invalid input data", Err: err})
		return
	}

	if input.Password != input.PasswordConfirm {
		_ = c.Error(utils.ValidationError("passwords are not the same"))
		return
	}
	if err := utils.ValidatePassword(input.Password); err != nil {
		_ = c.Error(err)
		return
	}

	role := input.Role
	if role == "" {
		role = models.RoleUser
	}
	if !models.ValidRole(role) {
		_ = c.Error(utils.ValidationError("invalid role"))
		return
	}

	// the hash happens before anything touches storage; plaintext is never
	// persisted
	hash, err := a.Hasher.Hash(input.Password)
	if err != nil {
		_ = c.Error(err)
		return
	}

	user := models.User{
		ID:        primitive.NewObjectID(),
		Name:      input.Name,
		Email:     input.Email,
		Password:  hash,
		Role:      role,
		Active:    true,
		CreatedAt: time.Now().UTC(),
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if err := a.Users.Insert(ctx, &user); err != nil {
		_ = c.Error(err)
		return
	}

	token, err := a.Signer.Sign(user.ID.Hex())
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"status":  "success",
		"message": "account created successfully",
		"token":   token,
		"data":    user,
	})
}

// Login verifies credentials and issues a token. Unknown email and wrong
// password are deliberately indistinguishable to the client.
func (a *AuthController) Login(c *gin.Context) {
	var input LoginInput
	if err := c.ShouldBindJSON(&input); err != nil {
		_ = c.Error(&utils.AppError{Kind: utils.KindValidation, Message: "please provide email and password", Err: err})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	user, err := a.Users.FindByEmail(ctx, input.Email)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		_ = c.Error(err)
		return
	}
	if err != nil || !a.Hasher.Compare(user.Password, input.Password) {
		_ = c.Error(utils.AuthenticationError("incorrect email or password"))
		return
	}

	token, err := a.Signer.Sign(user.ID.Hex())
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"message": "login successful",
		"token":   token,
	})
}

// ForgotPassword stores a hashed single-use reset token against the user
// and mails the plaintext one. A failed dispatch rolls the stored fields
// back before reporting, so an undeliverable token never lingers. Unknown
// emails get the same accepted response as known ones.
func (a *AuthController) ForgotPassword(c *gin.Context) {
	var input ForgotPasswordInput
	if err := c.ShouldBindJSON(&input); err != nil {
		_ = c.Error(&utils.AppError{Kind: utils.KindValidation, Message: "please provide an email address", Err: err})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	user, err := a.Users.FindByEmail(ctx, input.Email)
	if errors.Is(err, models.ErrNotFound) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "success",
			"message": "if that email exists, a reset token has been sent",
		})
		return
	}
	if err != nil {
		_ = c.Error(err)
		return
	}

	rawToken, tokenHash := utils.NewResetToken()
	expires := time.Now().UTC().Add(a.ResetTokenTTL)

	err = a.Users.UpdateByID(ctx, user.ID.Hex(), bson.M{"$set": bson.M{
		"passwordResetToken":   tokenHash,
		"passwordResetExpires": expires,
	}})
	if err != nil {
		_ = c.Error(err)
		return
	}

	resetURL := requestScheme(c) + "://" + c.Request.Host + "/api/v1/users/reset-password/" + rawToken
	subject := "Your password reset token (valid for 10 minutes)"
	body := "Forgot your password? Submit a PATCH request with your new password and passwordConfirm to " +
		resetURL + "\nIf you didn't forget your password, please ignore this email."

	if err := a.Mailer.Send(user.Email, subject, body); err != nil {
		// never leave a stored token that was never delivered; the cleanup
		// must outlive the request, which may already be aborted
		rollbackCtx, rollbackCancel := context.WithTimeout(context.WithoutCancel(c.Request.Context()), 5*time.Second)
		defer rollbackCancel()
		rollbackErr := a.Users.UpdateByID(rollbackCtx, user.ID.Hex(), bson.M{"$unset": bson.M{
			"passwordResetToken":   "",
			"passwordResetExpires": "",
		}})
		if rollbackErr != nil {
			slog.Error("reset token rollback failed",
				slog.String("user", user.ID.Hex()),
				slog.String("error", rollbackErr.Error()),
			)
		}
		_ = c.Error(utils.DeliveryError("there was an error sending the email, try again later", err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"message": "if that email exists, a reset token has been sent",
	})
}

// ResetPassword consumes a reset token and sets a new password. Expired and
// mismatched tokens fail identically and leave the password untouched.
func (a *AuthController) ResetPassword(c *gin.Context) {
	var input ResetPasswordInput
	if err := c.ShouldBindJSON(&input); err != nil {
		_ = c.Error(&utils.AppError{Kind: utils.KindValidation, Message: "please provide password and passwordConfirm", Err: err})
		return
	}

	if input.Password != input.PasswordConfirm {
		_ = c.Error(utils.ValidationError("passwords are not the same"))
		return
	}
	if err := utils.ValidatePassword(input.Password); err != nil {
		_ = c.Error(err)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	tokenHash := utils.HashResetToken(c.Param("token"))
	user, err := a.Users.FindByResetToken(ctx, tokenHash, time.Now().UTC())
	if errors.Is(err, models.ErrNotFound) {
		_ = c.Error(utils.AuthenticationError("token is invalid or has expired"))
		return
	}
	if err != nil {
		_ = c.Error(err)
		return
	}

	hash, err := a.Hasher.Hash(input.Password)
	if err != nil {
		_ = c.Error(err)
		return
	}

	err = a.Users.UpdateByID(ctx, user.ID.Hex(), bson.M{
		"$set": bson.M{
			"password": hash,
			// backdated a second so the fresh token's iat is never behind it
			"passwordChangedAt": time.Now().UTC().Add(-time.Second),
		},
		"$unset": bson.M{
			"passwordResetToken":   "",
			"passwordResetExpires": "",
		},
	})
	if err != nil {
		_ = c.Error(err)
		return
	}

	token, err := a.Signer.Sign(user.ID.Hex())
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"message": "password reset successfully",
		"token":   token,
	})
}

// UpdatePassword changes the password of the authenticated user after
// re-checking the current one, then issues a fresh token.
func (a *AuthController) UpdatePassword(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		_ = c.Error(utils.AuthenticationError("you are not logged in, please log in"))
		return
	}

	var input UpdatePasswordInput
	if err := c.ShouldBindJSON(&input); err != nil {
		_ = c.Error(&utils.AppError{Kind: utils.KindValidation, Message: "please provide password and passwordConfirm", Err: err})
		return
	}
	if input.CurrentPassword == "" {
		_ = c.Error(utils.ValidationError("please provide current password"))
		return
	}

	if !a.Hasher.Compare(user.Password, input.CurrentPassword) {
		_ = c.Error(utils.AuthenticationError("please provide correct current password"))
		return
	}

	if input.Password != input.PasswordConfirm {
		_ = c.Error(utils.ValidationError("passwords are not the same"))
		return
	}
	if err := utils.ValidatePassword(input.Password); err != nil {
		_ = c.Error(err)
		return
	}

	hash, err := a.Hasher.Hash(input.Password)
	if err != nil {
		_ = c.Error(err)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	err = a.Users.UpdateByID(ctx, user.ID.Hex(), bson.M{"$set": bson.M{
		"password":          hash,
		"passwordChangedAt": time.Now().UTC().Add(-time.Second),
	}})
	if err != nil {
		_ = c.Error(err)
		return
	}

	token, err := a.Signer.Sign(user.ID.Hex())
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"message": "your password has been changed successfully",
		"token":   token,
	})
}

func requestScheme(c *gin.Context) string {
	if c.Request.TLS != nil {
		return "https"
	}
	return "http"
}
