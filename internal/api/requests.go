package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/yourusername/quail/internal/models"
)

const maxBodyBytes = 1 << 20

type registerRequest struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=6"`
	FirstName string `json:"firstName" validate:"required"`
	LastName  string `json:"lastName" validate:"required"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

type createStrategyRequest struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
	Code        string `json:"code" validate:"required"`
}

type updateStrategyRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Code        *string `json:"code"`
	IsActive    *bool   `json:"isActive"`
}

func (r updateStrategyRequest) patch() models.StrategyPatch {
	return models.StrategyPatch{
		Name:        r.Name,
		Description: r.Description,
		Code:        r.Code,
		IsActive:    r.IsActive,
	}
}

type createBacktestRequest struct {
	StrategyID string `json:"strategyId" validate:"required,uuid4"`
	Name       string `json:"name" validate:"required"`
}

// fieldMessages maps "<json field>.<validator tag>" to the client message
var fieldMessages = map[string]string{
	"email.required":        "Email is required",
	"email.email":           "Please provide a valid email address",
	"password.required":     "Password is required",
	"password.min":          "Password must be at least 6 characters long",
	"firstName.required":    "First name is required",
	"lastName.required":     "Last name is required",
	"refreshToken.required": "Refresh token is required",
	"name.required":         "Name is required",
	"code.required":         "Code is required",
	"strategyId.required":   "Strategy ID is required",
	"strategyId.uuid4":      "Strategy ID must be a valid UUID",
}

// typeMessages is reported when a JSON field has the wrong type
var typeMessages = map[string]string{
	"email":        "Please provide a valid email address",
	"password":     "Password must be a string",
	"firstName":    "First name must be a string",
	"lastName":     "Last name must be a string",
	"refreshToken": "Refresh token must be a string",
	"name":         "Name must be a string",
	"description":  "Description must be a string",
	"code":         "Code must be a string",
	"isActive":     "isActive must be a boolean",
	"strategyId":   "Strategy ID must be a valid UUID",
}

type requestValidator struct {
	validate *validator.Validate
}

func newRequestValidator() *requestValidator {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &requestValidator{validate: v}
}

// decode reads a JSON body into dst and validates it. Every failure is a
// *models.ValidationError.
func (v *requestValidator) decode(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		return decodeError(err)
	}
	return v.check(dst)
}

func (v *requestValidator) check(dst interface{}) error {
	err := v.validate.Struct(dst)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err
	}

	messages := make([]string, 0, len(validationErrors))
	for _, e := range validationErrors {
		if msg, ok := fieldMessages[e.Field()+"."+e.Tag()]; ok {
			messages = append(messages, msg)
			continue
		}
		messages = append(messages, fmt.Sprintf("%s failed on the '%s' rule", e.Field(), e.Tag()))
	}
	return models.NewValidationError(messages...)
}

func decodeError(err error) error {
	var typeErr *json.UnmarshalTypeError
	var syntaxErr *json.SyntaxError
	var tooLarge *http.MaxBytesError

	switch {
	case errors.Is(err, io.EOF):
		return models.NewValidationError("Request body is required")
	case errors.As(err, &typeErr):
		if msg, ok := typeMessages[typeErr.Field]; ok {
			return models.NewValidationError(msg)
		}
		return models.NewValidationError(fmt.Sprintf("%s has an invalid type", typeErr.Field))
	case errors.As(err, &syntaxErr), errors.Is(err, io.ErrUnexpectedEOF):
		return models.NewValidationError("Malformed JSON body")
	case errors.As(err, &tooLarge):
		return models.NewValidationError("Request body is too large")
	case strings.HasPrefix(err.Error(), "json: unknown field "):
		field := strings.Trim(strings.TrimPrefix(err.Error(), "json: unknown field "), `"`)
		return models.NewValidationError(fmt.Sprintf("property %s should not exist", field))
	default:
		return models.NewValidationError("Malformed JSON body")
	}
}

// pathID parses the {id} route variable
func pathID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		return uuid.Nil, models.NewValidationError("ID must be a valid UUID")
	}
	return id, nil
}
