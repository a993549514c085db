package middleware

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/Tharoon321/go-tours/models"
	"github.com/Tharoon321/go-tours/utils"
)

// ErrorHandler is the single boundary that turns errors attached via
// c.Error into HTTP responses. Operational errors expose their message; in
// production everything else is masked behind a generic one, while
// development responses carry the underlying error detail.
func ErrorHandler(production bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		err := c.Errors.Last().Err
		appErr := classify(err)

		if !appErr.Operational() {
			slog.Error("unhandled error",
				slog.String("path", c.Request.URL.Path),
				slog.String("error", err.Error()),
			)
		}

		status := appErr.Status()
		body := gin.H{
			"status":  statusWord(status),
			"message": appErr.Message,
		}
		if !production {
			if cause := errors.Unwrap(appErr); cause != nil {
				body["error"] = cause.Error()
			}
		} else if !appErr.Operational() {
			body["message"] = "something went wrong"
		}

		c.JSON(status, body)
	}
}

// classify maps collaborator errors into the operational taxonomy; anything
// unrecognized stays internal.
func classify(err error) *utils.AppError {
	var appErr *utils.AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	switch {
	case errors.Is(err, models.ErrNotFound), errors.Is(err, mongo.ErrNoDocuments):
		return utils.NotFoundError("no document found with that ID")
	case errors.Is(err, models.ErrInvalidID):
		return utils.ValidationError("invalid document id")
	case mongo.IsDuplicateKeyError(err):
		return utils.ValidationError("duplicate field value, please use another value")
	}
	return utils.InternalError(err)
}

func statusWord(status int) string {
	if status < http.StatusInternalServerError {
		return "fail"
	}
	return "error"
}
