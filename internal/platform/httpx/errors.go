// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/buildbook/buildbook/internal/shared"
)

// FieldErrors reports request fields that failed validation.
type FieldErrors map[string]string

func (e FieldErrors) Error() string {
	keys := make([]string, 0, len(e))
	for k := range e {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s: %s", k, e[k])
	}
	return strings.Join(parts, "; ")
}

// Is matches shared.ErrValidation.
func (e FieldErrors) Is(target error) bool {
	return target == shared.ErrValidation
}

func fieldErrors(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := FieldErrors{}
	for _, fe := range verrs {
		out[fe.Field()] = describe(fe)
	}
	return out
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "oneof":
		return "must be one of " + fe.Param()
	case "gt", "gte", "lt", "lte", "min", "max":
		return fmt.Sprintf("must satisfy %s=%s", fe.Tag(), fe.Param())
	}
	return fe.Error()
}

// RespondError maps domain errors to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, err error) {
	var fields FieldErrors
	switch {
	case errors.As(err, &fields):
		JSON(w, http.StatusBadRequest, ProblemDetail{
			Title:  "Validation Failed",
			Status: http.StatusBadRequest,
			Detail: "One or more fields are invalid.",
			Errors: fields,
		})
	case errors.Is(err, shared.ErrValidation):
		Problem(w, http.StatusBadRequest, "Validation Failed", shared.UserSafeMessage(err))
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", shared.UserSafeMessage(err))
	case errors.Is(err, shared.ErrInvalidTransition):
		Problem(w, http.StatusConflict, "Invalid Transition", err.Error())
	case errors.Is(err, shared.ErrIdempotencyConflict), errors.Is(err, shared.ErrConflict):
		Problem(w, http.StatusConflict, "Conflict", shared.UserSafeMessage(err))
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
