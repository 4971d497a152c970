// SPDX-License-Identifier: MIT

package web

import (
	"net/http"
	"net/mail"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// Field limits matching the users and posts schema.
const (
	maxUsernameLen = 64
	maxEmailLen    = 120
	maxPostLen     = 140
	maxAboutMeLen  = 140
)

const (
	msgRequired      = "This field is required."
	msgUsernameTaken = "Please use a different username."
	msgEmailTaken    = "Please use a different email address."
	msgNoMatch       = "Passwords do not match."
)

// formErrors maps field names to a single validation message each.
// Templates index it by field name.
type formErrors map[string]string

func (e formErrors) add(field, msg string) {
	if _, ok := e[field]; !ok {
		e[field] = msg
	}
}

// cleanField trims whitespace and applies NFC normalization so visually
// identical inputs compare equal in uniqueness checks.
func cleanField(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

func fieldTooLong(s string, max int) bool {
	return utf8.RuneCountInString(s) > max
}

// LoginForm carries the sign-in fields.
type LoginForm struct {
	Username   string
	Password   string
	RememberMe bool
	Errors     formErrors
}

func parseLoginForm(r *http.Request) *LoginForm {
	return &LoginForm{
		Username:   cleanField(r.PostFormValue("username")),
		Password:   r.PostFormValue("password"),
		RememberMe: r.PostFormValue("remember_me") != "",
		Errors:     formErrors{},
	}
}

func (f *LoginForm) Validate() bool {
	if f.Username == "" {
		f.Errors.add("username", msgRequired)
	}
	if f.Password == "" {
		f.Errors.add("password", msgRequired)
	}
	return len(f.Errors) == 0
}

// RegistrationForm carries the sign-up fields.
type RegistrationForm struct {
	Username  string
	Email     string
	Password  string
	Password2 string
	Errors    formErrors
}

func parseRegistrationForm(r *http.Request) *RegistrationForm {
	return &RegistrationForm{
		Username:  cleanField(r.PostFormValue("username")),
		Email:     cleanField(r.PostFormValue("email")),
		Password:  r.PostFormValue("password"),
		Password2: r.PostFormValue("password2"),
		Errors:    formErrors{},
	}
}

func (f *RegistrationForm) Validate() bool {
	if f.Username == "" {
		f.Errors.add("username", msgRequired)
	} else if fieldTooLong(f.Username, maxUsernameLen) {
		f.Errors.add("username", "Username must be 64 characters or fewer.")
	}
	validateEmail(f.Errors, f.Email)
	if f.Password == "" {
		f.Errors.add("password", msgRequired)
	}
	if f.Password2 != f.Password {
		f.Errors.add("password2", msgNoMatch)
	}
	return len(f.Errors) == 0
}

// EditProfileForm carries the profile fields an account owner may change.
type EditProfileForm struct {
	Username string
	AboutMe  string
	Errors   formErrors
}

func parseEditProfileForm(r *http.Request) *EditProfileForm {
	return &EditProfileForm{
		Username: cleanField(r.PostFormValue("username")),
		AboutMe:  cleanField(r.PostFormValue("about_me")),
		Errors:   formErrors{},
	}
}

func (f *EditProfileForm) Validate() bool {
	if f.Username == "" {
		f.Errors.add("username", msgRequired)
	} else if fieldTooLong(f.Username, maxUsernameLen) {
		f.Errors.add("username", "Username must be 64 characters or fewer.")
	}
	if fieldTooLong(f.AboutMe, maxAboutMeLen) {
		f.Errors.add("about_me", "About me must be 140 characters or fewer.")
	}
	return len(f.Errors) == 0
}

// PostForm carries the status-update text.
type PostForm struct {
	Body   string
	Errors formErrors
}

func parsePostForm(r *http.Request) *PostForm {
	return &PostForm{
		Body:   cleanField(r.PostFormValue("post")),
		Errors: formErrors{},
	}
}

func (f *PostForm) Validate() bool {
	if f.Body == "" {
		f.Errors.add("post", msgRequired)
	} else if fieldTooLong(f.Body, maxPostLen) {
		f.Errors.add("post", "Post must be 140 characters or fewer.")
	}
	return len(f.Errors) == 0
}

// ResetRequestForm carries the email a reset link is sent to.
type ResetRequestForm struct {
	Email  string
	Errors formErrors
}

func parseResetRequestForm(r *http.Request) *ResetRequestForm {
	return &ResetRequestForm{
		Email:  cleanField(r.PostFormValue("email")),
		Errors: formErrors{},
	}
}

func (f *ResetRequestForm) Validate() bool {
	validateEmail(f.Errors, f.Email)
	return len(f.Errors) == 0
}

// ResetPasswordForm carries the new password pair.
type ResetPasswordForm struct {
	Password  string
	Password2 string
	Errors    formErrors
}

func parseResetPasswordForm(r *http.Request) *ResetPasswordForm {
	return &ResetPasswordForm{
		Password:  r.PostFormValue("password"),
		Password2: r.PostFormValue("password2"),
		Errors:    formErrors{},
	}
}

func (f *ResetPasswordForm) Validate() bool {
	if f.Password == "" {
		f.Errors.add("password", msgRequired)
	}
	if f.Password2 != f.Password {
		f.Errors.add("password2", msgNoMatch)
	}
	return len(f.Errors) == 0
}

func validateEmail(errs formErrors, email string) {
	if email == "" {
		errs.add("email", msgRequired)
		return
	}
	if fieldTooLong(email, maxEmailLen) {
		errs.add("email", "Email must be 120 characters or fewer.")
		return
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		errs.add("email", "Invalid email address.")
	}
}
