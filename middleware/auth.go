package middleware

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Tharoon321/go-tours/models"
	"github.com/Tharoon321/go-tours/utils"
)

const currentUserKey = "currentUser"

// Auth verifies the Authorization: Bearer <token> header, resolves the
// token's user and rejects tokens issued before the user's last password
// change. The resolved user lands in the gin context for handlers.
func Auth(signer *utils.TokenSigner, users models.UserStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			abort(c, utils.AuthenticationError("you are not logged in, please log in"))
			return
		}

		claims, err := signer.Verify(tokenStr)
		if err != nil {
			if errors.Is(err, utils.ErrTokenExpired) {
				abort(c, utils.AuthenticationError("session expired, please log in again"))
			} else {
				abort(c, utils.AuthenticationError("invalid token, please log in again"))
			}
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		user, err := users.FindByID(ctx, claims.Subject)
		if err != nil {
			if errors.Is(err, models.ErrNotFound) || errors.Is(err, models.ErrInvalidID) {
				abort(c, utils.AuthenticationError("user no longer exists"))
			} else {
				abort(c, err)
			}
			return
		}

		if user.ChangedPasswordAfter(claims.IssuedAt) {
			abort(c, utils.AuthenticationError("user recently changed the password, please log in again"))
			return
		}

		c.Set(currentUserKey, user)
		c.Next()
	}
}

// RequireRole gates a route to the given roles. Must run after Auth; a
// missing identity is treated as a pipeline misconfiguration and rejected.
func RequireRole(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			abort(c, utils.AuthorizationError("you do not have permission to perform this action"))
			return
		}
		for _, role := range roles {
			if user.Role == role {
				c.Next()
				return
			}
		}
		abort(c, utils.AuthorizationError("you do not have permission to perform this action"))
	}
}

// CurrentUser returns the user attached by Auth, if any.
func CurrentUser(c *gin.Context) (*models.User, bool) {
	val, exists := c.Get(currentUserKey)
	if !exists {
		return nil, false
	}
	user, ok := val.(*models.User)
	return user, ok
}

func bearerToken(header string) (string, bool) {
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

func abort(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}
