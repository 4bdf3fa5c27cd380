package dto

import "github.com/pollbox/pollbox/internal/api/validation"

type UpdateNameRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

func (r UpdateNameRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if r.FirstName == "" {
		errors["first_name"] = "First name is required"
	}
	if r.LastName == "" {
		errors["last_name"] = "Last name is required"
	}

	return errors
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

func (r ChangePasswordRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if r.CurrentPassword == "" {
		errors["current_password"] = "Current password is required"
	}
	if ok, msg := validation.IsValidPassword(r.NewPassword); !ok {
		errors["new_password"] = msg
	}

	return errors
}

type ChangeEmailRequest struct {
	NewEmail string `json:"new_email"`
}

func (r ChangeEmailRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if r.NewEmail == "" {
		errors["new_email"] = "New email is required"
	} else if !validation.IsValidEmail(r.NewEmail) {
		errors["new_email"] = "Invalid email address"
	}

	return errors
}

type DeleteAccountRequest struct {
	Password string `json:"password"`
	// Cascade removes the account's polls along with it. The default
	// keeps them and detaches the creator.
	Cascade bool `json:"cascade"`
}
