package utils

import "net/http"

// ErrorKind classifies an operational error so the boundary middleware can
// map it to an HTTP status without inspecting messages.
type ErrorKind string

const (
	KindValidation     ErrorKind = "validation"
	KindAuthentication ErrorKind = "authentication"
	KindAuthorization  ErrorKind = "authorization"
	KindNotFound       ErrorKind = "not_found"
	KindDelivery       ErrorKind = "delivery"
	KindInternal       ErrorKind = "internal"
)

// AppError is an operational error whose message is safe to show to clients.
// Anything that is not an AppError gets masked in production.
type AppError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Status maps the error kind to its HTTP status code.
func (e *AppError) Status() int {
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindAuthentication:
		return http.StatusUnauthorized
	case KindAuthorization:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Operational reports whether the message may be exposed to the client.
func (e *AppError) Operational() bool {
	return e.Kind != KindInternal
}

func ValidationError(msg string) *AppError {
	return &AppError{Kind: KindValidation, Message: msg}
}

func AuthenticationError(msg string) *AppError {
	return &AppError{Kind: KindAuthentication, Message: msg}
}

func AuthorizationError(msg string) *AppError {
	return &AppError{Kind: KindAuthorization, Message: msg}
}

func NotFoundError(msg string) *AppError {
	return &AppError{Kind: KindNotFound, Message: msg}
}

func DeliveryError(msg string, err error) *AppError {
	return &AppError{Kind: KindDelivery, Message: msg, Err: err}
}

func InternalError(err error) *AppError {
	return &AppError{Kind: KindInternal, Message: "something went wrong", Err: err}
}
