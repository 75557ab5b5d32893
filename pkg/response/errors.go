package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"notes-api/internal/apperr"

	goerrors "github.com/go-errors/errors"
	"github.com/go-playground/validator/v10"
)

const internalErrorMessage = "An internal server error occurred. Please try again later."

// Failure is the translated form of an error raised while handling a request.
type Failure struct {
	Status  int
	Message string
	// Stack is always filled for server errors so it can be logged.
	Stack string
}

// Translate maps an error to its HTTP status and client message. In
// production, server error details are replaced by a generic message.
func Translate(err error, production bool) Failure {
	var (
		appErr  *apperr.Error
		verrs   validator.ValidationErrors
		syntax  *json.SyntaxError
		typeErr *json.UnmarshalTypeError
	)

	var f Failure
	switch {
	case errors.As(err, &appErr):
		f = Failure{Status: StatusFor(appErr.Kind), Message: appErr.Message}
		if appErr.Kind == apperr.KindInternal {
			f.Message = appErr.Error()
			f.Stack = appErr.Stack()
		}
	case errors.As(err, &verrs):
		f = Failure{Status: http.StatusBadRequest, Message: ValidationMessage(verrs)}
	case errors.As(err, &syntax), errors.As(err, &typeErr),
		errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		f = Failure{Status: http.StatusBadRequest, Message: "Invalid request body"}
	default:
		f = Failure{
			Status:  http.StatusInternalServerError,
			Message: err.Error(),
			Stack:   goerrors.Wrap(err, 1).ErrorStack(),
		}
	}

	if f.Status >= http.StatusInternalServerError && production {
		f.Message = internalErrorMessage
	}
	return f
}

// ValidationMessage joins one message per failed field.
func ValidationMessage(verrs validator.ValidationErrors) string {
	messages := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		messages = append(messages, fieldMessage(fe))
	}
	return strings.Join(messages, ", ")
}

func fieldMessage(fe validator.FieldError) string {
	field := fe.Field()
	label := field
	if label != "" {
		label = strings.ToUpper(label[:1]) + label[1:]
	}

	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", label)
	case "email":
		return "Invalid email format"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters long", label, fe.Param())
	case "max":
		return fmt.Sprintf("%s can't be more than %s characters long", label, fe.Param())
	case "oneof":
		if field == "priority" {
			return "Invalid priority value"
		}
		return fmt.Sprintf("%s must be one of: %s", label, strings.ReplaceAll(fe.Param(), " ", ", "))
	default:
		return fmt.Sprintf("%s is invalid", label)
	}
}
