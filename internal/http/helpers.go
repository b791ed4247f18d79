package http

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"budget/internal/core"
	"budget/internal/log"
)

// HeaderUserID carries the caller's identity, set by the fronting auth layer.
const HeaderUserID = "X-User-ID"

type contextKey string

const userIDKey contextKey = "user_id"

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// requireUser rejects requests without an X-User-ID header and stores the
// id in the context.
func requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		uid := sanitizeInput(r.Header.Get(HeaderUserID))
		if uid == "" || len(uid) > 128 {
			UnauthorizedError("missing " + HeaderUserID + " header").Write(w)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userIDKey, uid)))
	})
}

func userID(r *http.Request) string {
	uid, _ := r.Context().Value(userIDKey).(string)
	return uid
}

// writeError maps err onto a status code. Unexpected errors are logged and
// hidden behind a generic message.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var fe *FieldError
	switch {
	case errors.As(err, &fe):
		UnprocessableEntityError(fe.Error()).Write(w)
	case errors.Is(err, errBodyTooLarge):
		ErrorResponse(http.StatusRequestEntityTooLarge, err.Error()).Write(w)
	case errors.Is(err, core.ErrNotFound):
		NotFoundError(err.Error()).Write(w)
	case errors.Is(err, core.ErrForbidden):
		ForbiddenError(err.Error()).Write(w)
	case errors.Is(err, core.ErrDuplicateInvite), errors.Is(err, core.ErrInvalidTransition):
		ConflictError(err.Error()).Write(w)
	case isValidation(err):
		UnprocessableEntityError(err.Error()).Write(w)
	default:
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Request failed",
			log.NewFields().WithOperation(r.Method+" "+r.URL.Path).WithError(err).ToSlice()...)
		InternalServerError("internal error").Write(w)
	}
}

var validationErrors = []error{
	core.ErrInvalidTerms,
	core.ErrInconsistentTerms,
	core.ErrInvalidAmount,
	core.ErrInvalidFrequency,
	core.ErrInvalidDate,
	core.ErrEmptyName,
	core.ErrEmptyOwner,
	core.ErrNameTooLong,
	core.ErrSelfCollaboration,
}

func isValidation(err error) bool {
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// parseBody parses the request body, writing a 400 on failure.
func parseBody(w http.ResponseWriter, r *http.Request) (*RequestBodyParser, bool) {
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		if errors.Is(err, errBodyTooLarge) {
			writeError(w, r, err)
		} else {
			BadRequestError("invalid request body").Write(w)
		}
		return nil, false
	}
	return p, true
}
