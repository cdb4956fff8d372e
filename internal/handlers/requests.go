package handlers

import (
	"encoding/json"
	"errors"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/taskapp/accounts/internal/services"
	"github.com/taskapp/accounts/types"
)

const (
	passwordMinLength = 7
	passwordMaxLength = 100
)

var passwordRules = []validation.Rule{
	validation.Length(passwordMinLength, passwordMaxLength),
	validation.By(passwordNotTrivial),
}

// passwordNotTrivial rejects passwords containing the word "password" in any
// case.
func passwordNotTrivial(value any) error {
	password, _ := value.(string)
	if strings.Contains(strings.ToLower(password), "password") {
		return errors.New(`cannot contain "password"`)
	}
	return nil
}

type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Age      int    `json:"age"`
}

func (r RegisterRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required),
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, append([]validation.Rule{validation.Required}, passwordRules...)...),
		validation.Field(&r.Age, validation.Min(0)),
	)
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required),
	)
}

// AuthResponse pairs the public user view with a freshly issued token.
type AuthResponse struct {
	User  types.User `json:"user"`
	Token string     `json:"token"`
}

var allowedProfileFields = map[string]bool{
	"name":     true,
	"email":    true,
	"password": true,
	"age":      true,
}

// parseProfileUpdate decodes a PATCH body, rejecting the whole update when it
// contains any field outside the allow-list.
func parseProfileUpdate(body []byte) (services.ProfileUpdate, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return services.ProfileUpdate{}, errors.New("invalid request body")
	}
	if len(raw) == 0 {
		return services.ProfileUpdate{}, errors.New("no updates provided")
	}
	for field := range raw {
		if !allowedProfileFields[field] {
			return services.ProfileUpdate{}, errors.New("invalid updates")
		}
	}

	var update services.ProfileUpdate
	if data, ok := raw["name"]; ok {
		var name string
		if err := json.Unmarshal(data, &name); err != nil {
			return services.ProfileUpdate{}, errors.New("invalid name")
		}
		name = strings.TrimSpace(name)
		if err := validation.Validate(name, validation.Required); err != nil {
			return services.ProfileUpdate{}, errors.New("name is required")
		}
		update.Name = &name
	}
	if data, ok := raw["email"]; ok {
		var email string
		if err := json.Unmarshal(data, &email); err != nil {
			return services.ProfileUpdate{}, errors.New("invalid email")
		}
		email = services.NormalizeEmail(email)
		if err := validation.Validate(email, validation.Required, is.Email); err != nil {
			return services.ProfileUpdate{}, errors.New("email is invalid")
		}
		update.Email = &email
	}
	if data, ok := raw["password"]; ok {
		var password string
		if err := json.Unmarshal(data, &password); err != nil {
			return services.ProfileUpdate{}, errors.New("invalid password")
		}
		password = strings.TrimSpace(password)
		if err := validation.Validate(password, append([]validation.Rule{validation.Required}, passwordRules...)...); err != nil {
			return services.ProfileUpdate{}, errors.New("password is invalid")
		}
		update.Password = &password
	}
	if data, ok := raw["age"]; ok {
		var age int
		if err := json.Unmarshal(data, &age); err != nil {
			return services.ProfileUpdate{}, errors.New("invalid age")
		}
		if age < 0 {
			return services.ProfileUpdate{}, errors.New("age must not be negative")
		}
		update.Age = &age
	}
	return update, nil
}
