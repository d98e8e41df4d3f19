package gateway

import (
	"errors"
	"net/http"

	"github.com/suPer8Hu/folio/internal/ai"
	"github.com/suPer8Hu/folio/internal/auth"
	"github.com/suPer8Hu/folio/internal/blog"
	"github.com/suPer8Hu/folio/internal/command"
	"github.com/suPer8Hu/folio/internal/content"
	"github.com/suPer8Hu/folio/internal/ratelimit"
)

var ErrInvalidRequest = errors.New("gateway: invalid request")

// RequestError is a caller mistake; Reason is safe to show to the client.
type RequestError struct {
	Reason string
}

func (e *RequestError) Error() string        { return "gateway: invalid request: " + e.Reason }
func (e *RequestError) Is(target error) bool { return target == ErrInvalidRequest }

func invalidRequest(reason string) error {
	return &RequestError{Reason: reason}
}

// StatusOf maps any component error to an HTTP status, a business code and a
// message that carries no internal detail.
func StatusOf(err error) (int, int, string) {
	var reqErr *RequestError
	var blogErr *blog.InputError
	switch {
	case errors.As(err, &reqErr):
		return http.StatusBadRequest, 10002, reqErr.Reason
	case errors.As(err, &blogErr):
		return http.StatusBadRequest, 10002, blogErr.Reason

	case errors.Is(err, ratelimit.ErrRejected):
		return http.StatusTooManyRequests, 42901, "too many requests, try again later"

	case errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized, 40102, "invalid credentials"
	case errors.Is(err, auth.ErrExpired), errors.Is(err, auth.ErrBadSignature):
		return http.StatusUnauthorized, 40101, "invalid or expired token"
	case errors.Is(err, auth.ErrMisconfigured):
		return http.StatusInternalServerError, 50003, "authentication is not configured"

	case errors.Is(err, command.ErrUnknownCommand):
		return http.StatusBadRequest, 10004, "unknown command type"
	case errors.Is(err, command.ErrInvalidPayload), errors.Is(err, content.ErrInvalidPayload):
		return http.StatusBadRequest, 10003, "invalid command payload"
	case errors.Is(err, content.ErrNotFound), errors.Is(err, blog.ErrNotFound):
		return http.StatusNotFound, 40401, "not found"
	case errors.Is(err, blog.ErrSlugTaken):
		return http.StatusConflict, 40901, "slug already in use"

	case errors.Is(err, ai.ErrUnknownModel):
		return http.StatusBadRequest, 10005, "unknown model"
	case errors.Is(err, ai.ErrMisconfigured):
		return http.StatusInternalServerError, 50004, "model provider is not configured"
	case errors.Is(err, ai.ErrUnavailable):
		return http.StatusInternalServerError, 50005, "model provider unavailable"
	case errors.Is(err, ai.ErrInvalidResponse):
		return http.StatusInternalServerError, 50006, "invalid response from model provider"
	}
	return http.StatusInternalServerError, 50001, "internal error"
}
