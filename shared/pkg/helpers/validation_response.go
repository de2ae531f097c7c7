package helpers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
)

// ValidationErrorResponse is the 422 body: a summary message plus messages per field
type ValidationErrorResponse struct {
	Message string              `json:"message"`
	Errors  map[string][]string `json:"errors"`
}

var ruleMessages = map[string]string{
	"required":         "The %s field is required",
	"max":              "The %s field must not exceed %s",
	"min":              "The %s field must be at least %s",
	"oneof":            "The %s field must be one of: %s",
	"base64":           "The %s field must be base64 encoded",
	"asset_symbol":     "The %s field must be an asset symbol",
	"positive_decimal": "The %s field must be a positive decimal number",
	"ledger_address":   "The %s field must be a valid ledger address",
}

// FieldErrors converts validator errors into messages keyed by field name
func FieldErrors(err error) map[string][]string {
	out := make(map[string][]string)

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		if err != nil {
			out["_"] = []string{err.Error()}
		}
		return out
	}

	for _, fe := range verrs {
		out[fe.Field()] = append(out[fe.Field()], fieldMessage(fe))
	}
	return out
}

func fieldMessage(fe validator.FieldError) string {
	format, ok := ruleMessages[fe.Tag()]
	if !ok {
		return fmt.Sprintf("The %s field is invalid", fe.Field())
	}
	if fe.Param() != "" {
		return fmt.Sprintf(format, fe.Field(), fe.Param())
	}
	return fmt.Sprintf(format, fe.Field())
}

// NewValidationErrorResponse builds the response body. The message is the first field message.
func NewValidationErrorResponse(err error) ValidationErrorResponse {
	fields := FieldErrors(err)
	message := "The given data was invalid"
	for _, msgs := range fields {
		if len(msgs) > 0 {
			message = msgs[0]
			break
		}
	}
	return ValidationErrorResponse{Message: message, Errors: fields}
}

// WriteValidationErrorResponse writes a 422 response for err
func WriteValidationErrorResponse(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnprocessableEntity)
	json.NewEncoder(w).Encode(NewValidationErrorResponse(err))
}
