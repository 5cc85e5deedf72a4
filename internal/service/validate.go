package service

import (
	"errors"
	"sort"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"

	"go-auth-webhook/internal/model"
)

const (
	maxUsernameLength = 31
	minPasswordLength = 7
	maxNicknameLength = 30
)

func validateLogin(req model.LoginRequest) error {
	return collect(validation.ValidateStruct(&req,
		validation.Field(&req.Username, validation.Required.Error("Username is not valid")),
		validation.Field(&req.Password, validation.Required.Error("Password cannot be blank")),
	))
}

func validateSignup(req model.SignupRequest) error {
	return collect(validation.ValidateStruct(&req,
		validation.Field(&req.Username,
			validation.Required.Error("Username is not valid"),
			validation.RuneLength(1, maxUsernameLength).Error("Username should be less than 32 characters"),
		),
		validation.Field(&req.Password,
			validation.Required.Error("Password cannot be blank"),
			validation.RuneLength(minPasswordLength, 0).Error("Password must be at least 7 characters long"),
		),
		validation.Field(&req.Nickname,
			validation.RuneLength(0, maxNicknameLength).Error("Nickname should be at most 30 characters"),
		),
		validation.Field(&req.Email, is.Email.Error("Email is not valid")),
	))
}

// collect flattens ozzo's per-field map into an ordered list so every
// violation reaches the client in a stable order.
func collect(err error) error {
	if err == nil {
		return nil
	}

	var fieldErrs validation.Errors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	fields := make([]string, 0, len(fieldErrs))
	for field, fieldErr := range fieldErrs {
		if fieldErr != nil {
			fields = append(fields, field)
		}
	}
	if len(fields) == 0 {
		return nil
	}
	sort.Strings(fields)

	out := make(model.ValidationErrors, 0, len(fields))
	for _, field := range fields {
		out = append(out, model.FieldError{Field: field, Message: fieldErrs[field].Error()})
	}
	return out
}
