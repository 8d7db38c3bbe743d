package validator

import (
	"errors"
	"testing"

	"github.com/sitepass/subscription-whitelist/internal/pkg/apperror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsEmpty(t *testing.T) {
	cases := []struct {
		input string
		want  bool
	}{
		{"", true},
		{"   ", true},
		{"abc", false},
		{" abc ", false},
	}
	for _, c := range cases {
		got := IsEmpty(c.input)
		if got != c.want {
			t.Errorf("IsEmpty(%q) = %v, want %v", c.input, got, c.want)
		}
	}
}

func TestIsValidEmail(t *testing.T) {
	valid := []string{"test@example.com", "user.name+1@domain.co", "a@b.cd"}
	invalid := []string{"test@", "@example.com", "test@.com", "test@com", "test@domain", " ", ""}
	for _, email := range valid {
		if !IsValidEmail(email) {
			t.Errorf("IsValidEmail(%q) = false, want true", email)
		}
	}
	for _, email := range invalid {
		if IsValidEmail(email) {
			t.Errorf("IsValidEmail(%q) = true, want false", email)
		}
	}
}

func TestNormalizeSiteURL(t *testing.T) {
	cases := []struct {
		input string
		want  string
	}{
		{"https://example.com", "https://example.com"},
		{"https://example.com/", "https://example.com"},
		{"  HTTPS://Example.COM/Shop/  ", "https://example.com/Shop"},
		{"http://localhost:8080/", "http://localhost:8080"},
		{"https://sub.example.co.uk/path?q=1#frag", "https://sub.example.co.uk/path?q=1"},
	}
	for _, c := range cases {
		got, err := NormalizeSiteURL(c.input)
		require.NoError(t, err, c.input)
		assert.Equal(t, c.want, got, c.input)
	}
}

func TestNormalizeSiteURL_Rejects(t *testing.T) {
	invalid := []string{
		"",
		"   ",
		"example.com",
		"ftp://example.com",
		"https://",
		"https://intranet",
		"https://example..com",
		"https://.example.com",
		"https://example.com.",
		"javascript:alert(1)",
	}
	for _, input := range invalid {
		_, err := NormalizeSiteURL(input)
		if assert.Error(t, err, input) {
			assert.ErrorIs(t, err, apperror.ErrValidation, input)
		}
	}
}

func TestValidationErrors_Is(t *testing.T) {
	var err error = ValidationErrors{{Field: "amount", Message: "must be positive"}}

	assert.True(t, errors.Is(err, apperror.ErrValidation))
	assert.False(t, errors.Is(err, apperror.ErrNotFound))
	assert.Equal(t, map[string]string{"amount": "must be positive"}, err.(ValidationErrors).ToMap())
}

func TestStruct(t *testing.T) {
	type sample struct {
		Name string `validate:"required"`
		Port int    `validate:"min=1,max=65535"`
	}

	assert.NoError(t, Struct(sample{Name: "x", Port: 80}))

	err := Struct(sample{Port: 0})
	var errs ValidationErrors
	require.True(t, errors.As(err, &errs))
	assert.Len(t, errs, 2)
	assert.Contains(t, errs.ToMap(), "sample.Name")
}
