// SPDX-License-Identifier: MIT

package web

import (
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFormRequest(values url.Values) *LoginForm {
	r := httptest.NewRequest("POST", "/login", strings.NewReader(values.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return parseLoginForm(r)
}

func TestLoginFormValidate(t *testing.T) {
	form := newFormRequest(url.Values{"username": {"  john "}, "password": {"secret"}, "remember_me": {"1"}})
	assert.True(t, form.Validate())
	assert.Equal(t, "john", form.Username)
	assert.True(t, form.RememberMe)

	form = newFormRequest(url.Values{})
	assert.False(t, form.Validate())
	assert.Equal(t, msgRequired, form.Errors["username"])
	assert.Equal(t, msgRequired, form.Errors["password"])
}

func TestRegistrationFormValidate(t *testing.T) {
	tests := []struct {
		name      string
		form      RegistrationForm
		wantField string
	}{
		{
			name: "valid",
			form: RegistrationForm{Username: "susan", Email: "susan@example.com", Password: "pw", Password2: "pw"},
		},
		{
			name:      "missing username",
			form:      RegistrationForm{Email: "susan@example.com", Password: "pw", Password2: "pw"},
			wantField: "username",
		},
		{
			name:      "bad email",
			form:      RegistrationForm{Username: "susan", Email: "not-an-email", Password: "pw", Password2: "pw"},
			wantField: "email",
		},
		{
			name:      "email with display name rejected",
			form:      RegistrationForm{Username: "susan", Email: "Susan <susan@example.com>", Password: "pw", Password2: "pw"},
			wantField: "email",
		},
		{
			name:      "password mismatch",
			form:      RegistrationForm{Username: "susan", Email: "susan@example.com", Password: "pw", Password2: "other"},
			wantField: "password2",
		},
		{
			name:      "username too long",
			form:      RegistrationForm{Username: strings.Repeat("x", 65), Email: "susan@example.com", Password: "pw", Password2: "pw"},
			wantField: "username",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.form.Errors = formErrors{}
			ok := tt.form.Validate()
			if tt.wantField == "" {
				assert.True(t, ok)
				assert.Empty(t, tt.form.Errors)
				return
			}
			assert.False(t, ok)
			assert.Contains(t, tt.form.Errors, tt.wantField)
		})
	}
}

func TestPostFormLengthBound(t *testing.T) {
	form := PostForm{Body: strings.Repeat("a", 140), Errors: formErrors{}}
	assert.True(t, form.Validate())

	form = PostForm{Body: strings.Repeat("a", 141), Errors: formErrors{}}
	assert.False(t, form.Validate())
	assert.Contains(t, form.Errors, "post")

	// multi-byte runes count as one character
	form = PostForm{Body: strings.Repeat("ü", 140), Errors: formErrors{}}
	assert.True(t, form.Validate())
}

func TestCleanFieldNormalizesNFC(t *testing.T) {
	// u + combining diaeresis composes to the single rune ü
	decomposed := "üser"
	composed := "üser"
	require.NotEqual(t, decomposed, composed)
	assert.Equal(t, composed, cleanField(decomposed))
}

func TestEditProfileFormValidate(t *testing.T) {
	form := EditProfileForm{Username: "john", AboutMe: strings.Repeat("a", 140), Errors: formErrors{}}
	assert.True(t, form.Validate())

	form = EditProfileForm{Username: "john", AboutMe: strings.Repeat("a", 141), Errors: formErrors{}}
	assert.False(t, form.Validate())
	assert.Contains(t, form.Errors, "about_me")
}

func TestSafeNext(t *testing.T) {
	tests := []struct {
		next string
		want bool
	}{
		{"/user/john", true},
		{"/index", true},
		{"/explore?page=2", true},
		{"", false},
		{"http://evil.example/", false},
		{"//evil.example/", false},
		{"/\\evil.example", false},
		{"javascript:alert(1)", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, safeNext(tt.next), "next=%q", tt.next)
	}
}
