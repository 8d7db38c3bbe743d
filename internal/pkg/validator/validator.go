package validator

import (
	"errors"
	"net/url"
	"regexp"
	"strings"

	playground "github.com/go-playground/validator/v10"
	"github.com/sitepass/subscription-whitelist/internal/pkg/apperror"
)

type ValidationError struct {
	Field   string
	Message string
}

type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	var msgs []string
	for _, err := range v {
		msgs = append(msgs, err.Field+": "+err.Message)
	}
	return strings.Join(msgs, "; ")
}

// Is lets callers match any ValidationErrors with apperror.ErrValidation.
func (v ValidationErrors) Is(target error) bool {
	return target == apperror.ErrValidation
}

func (v ValidationErrors) ToMap() map[string]string {
	result := make(map[string]string)
	for _, err := range v {
		result[err.Field] = err.Message
	}
	return result
}

var validate = playground.New(playground.WithRequiredStructEnabled())

// Struct runs the `validate` struct tags on s and reports failures keyed by
// field name.
func Struct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs playground.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	errs := make(ValidationErrors, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		errs = append(errs, ValidationError{
			Field:   fe.Namespace(),
			Message: "failed on '" + fe.Tag() + "' rule",
		})
	}
	return errs
}

// IsEmpty checks if a string is empty after trimming whitespace.
func IsEmpty(s string) bool {
	return strings.TrimSpace(s) == ""
}

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// Email validation
func IsValidEmail(email string) bool {
	return emailRegex.MatchString(email)
}

// NormalizeSiteURL checks that raw is an absolute http(s) URL pointing at a
// plausible site and returns its canonical form: lower-case scheme and host,
// no fragment, no trailing slash.
//
// The host must contain a dot (or be "localhost") and may not start or end
// with a dot or contain "..".
func NormalizeSiteURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ValidationErrors{{Field: "url", Message: "url is required"}}
	}
	if err := validate.Var(raw, "http_url"); err != nil {
		return "", ValidationErrors{{Field: "url", Message: "url must be an absolute http or https URL"}}
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", ValidationErrors{{Field: "url", Message: "url could not be parsed"}}
	}

	host := strings.ToLower(u.Hostname())
	switch {
	case host == "":
		return "", ValidationErrors{{Field: "url", Message: "url must include a host"}}
	case strings.Contains(host, ".."),
		strings.HasPrefix(host, "."),
		strings.HasSuffix(host, "."):
		return "", ValidationErrors{{Field: "url", Message: "url host is malformed"}}
	case host != "localhost" && !strings.Contains(host, "."):
		return "", ValidationErrors{{Field: "url", Message: "url host must be a domain name"}}
	}

	var b strings.Builder
	b.WriteString(strings.ToLower(u.Scheme))
	b.WriteString("://")
	b.WriteString(strings.ToLower(u.Host))
	b.WriteString(strings.TrimRight(u.EscapedPath(), "/"))
	if u.RawQuery != "" {
		b.WriteString("?")
		b.WriteString(u.RawQuery)
	}
	return b.String(), nil
}
