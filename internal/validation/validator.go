// Package validation holds the declarative input constraints for login,
// signup and agent commands.
package validation

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Errors maps a field name to a human-readable message
type Errors map[string]string

func (e Errors) Error() string {
	keys := make([]string, 0, len(e))
	for k := range e {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	msgs := make([]string, 0, len(keys))
	for _, k := range keys {
		msgs = append(msgs, e[k])
	}
	return strings.Join(msgs, "; ")
}

// LoginInput is what a password login needs
type LoginInput struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required"`
}

// SignupInput is what a password signup needs
type SignupInput struct {
	Email    string `validate:"required,email"`
	Username string `validate:"required,min=3,max=64"`
	Password string `validate:"required,min=8,max=128"`
	OrgName  string `validate:"omitempty,min=2,max=100"`
}

// FirebaseSignupInput is what a signup after Google sign-in needs
type FirebaseSignupInput struct {
	Email         string `validate:"required,email"`
	Username      string `validate:"required,min=1,max=64"`
	FirebaseToken string `validate:"required"`
	OrgName       string `validate:"omitempty,min=2,max=100"`
}

// InviteInput is an invitation to join the organization
type InviteInput struct {
	Name  string `validate:"required,max=100"`
	Email string `validate:"required,email"`
	Role  string `validate:"required,oneof=owner admin member viewer"`
}

// ChannelInput holds the credentials of a Twilio channel
type ChannelInput struct {
	Name       string `validate:"required,max=100"`
	AccountSID string `validate:"required,startswith=AC"`
	AuthToken  string `validate:"required"`
}

// Validator checks inputs before they reach the backend
type Validator struct {
	validate           *validator.Validate
	profileNamePattern *regexp.Regexp
	injectionPattern   *regexp.Regexp
}

// NewValidator creates a new validator instance
func NewValidator() *Validator {
	return &Validator{
		validate: validator.New(),

		// Profile name: alphanumeric with underscores, hyphens, dots (1-64 chars)
		profileNamePattern: regexp.MustCompile(`^[a-zA-Z0-9._-]{1,64}$`),

		// Shell separators, substitution, redirection and null bytes
		injectionPattern: regexp.MustCompile("[;&|`<>\x00\n\r]|\\$\\(|\\$\\{"),
	}
}

// ValidateStruct runs the struct's validate tags. It returns Errors or nil.
func (v *Validator) ValidateStruct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("validation failed: %w", err)
	}

	out := make(Errors, len(fieldErrs))
	for _, fe := range fieldErrs {
		out[fe.Field()] = formatFieldError(fe, prettifyFieldName(fe.Field()))
	}
	return out
}

// ValidateLogin checks a login form
func (v *Validator) ValidateLogin(email, password string) error {
	return v.ValidateStruct(LoginInput{Email: strings.TrimSpace(email), Password: password})
}

// ValidateAgentID rejects non-positive agent ids
func (v *Validator) ValidateAgentID(id int64) error {
	if err := v.validate.Var(id, "gt=0"); err != nil {
		return fmt.Errorf("agent id must be a positive number, got %d", id)
	}
	return nil
}

// ValidateInvite normalises and checks an invitation. The returned input
// has its fields trimmed and the role lowercased.
func (v *Validator) ValidateInvite(name, email, role string) (InviteInput, error) {
	in := InviteInput{
		Name:  strings.TrimSpace(name),
		Email: strings.TrimSpace(email),
		Role:  strings.ToLower(strings.TrimSpace(role)),
	}
	return in, v.ValidateStruct(in)
}

// ValidateRole lowercases role and checks it names a member role
func (v *Validator) ValidateRole(role string) (string, error) {
	role = strings.ToLower(strings.TrimSpace(role))
	if err := v.validate.Var(role, "required,oneof=owner admin member viewer"); err != nil {
		return role, fmt.Errorf("role must be one of: owner, admin, member, viewer")
	}
	return role, nil
}

// ValidateChannel normalises and checks a Twilio channel form
func (v *Validator) ValidateChannel(name, accountSID, authToken string) (ChannelInput, error) {
	in := ChannelInput{
		Name:       strings.TrimSpace(name),
		AccountSID: strings.TrimSpace(accountSID),
		AuthToken:  strings.TrimSpace(authToken),
	}
	if err := v.ValidateStruct(in); err != nil {
		return in, err
	}
	if v.injectionPattern.MatchString(in.Name) || containsDangerousUnicode(in.Name) {
		return in, Errors{"Name": "Name contains invalid characters"}
	}
	return in, nil
}

// ValidateProfileName validates a session profile name
func (v *Validator) ValidateProfileName(name string) error {
	if name == "" {
		return fmt.Errorf("profile name cannot be empty")
	}
	if !v.profileNamePattern.MatchString(name) {
		return fmt.Errorf("invalid profile name: must be 1-64 alphanumeric characters, dots, underscores, or hyphens")
	}

	reserved := []string{"system", "root", "admin", "config"}
	for _, r := range reserved {
		if strings.EqualFold(name, r) {
			return fmt.Errorf("profile name '%s' is reserved", name)
		}
	}
	return nil
}

// ValidateOrgName checks an organization name typed during signup
func (v *Validator) ValidateOrgName(name string) error {
	trimmed := strings.TrimSpace(name)
	if err := v.validate.Var(trimmed, "required,min=2,max=100"); err != nil {
		return fmt.Errorf("organization name must be between 2 and 100 characters")
	}
	if v.injectionPattern.MatchString(trimmed) || containsDangerousUnicode(trimmed) {
		return fmt.Errorf("organization name contains invalid characters")
	}
	return nil
}

// containsDangerousUnicode checks for bidi overrides and other format characters
func containsDangerousUnicode(input string) bool {
	for _, r := range input {
		if unicode.Is(unicode.Cf, r) {
			return true
		}
	}
	return false
}

func formatFieldError(fe validator.FieldError, fieldName string) string {
	switch fe.Tag() {
	case "required":
		return fieldName + " is required"
	case "email":
		return fieldName + " must be a valid email address"
	case "min":
		return fieldName + " must be at least " + fe.Param() + " characters long"
	case "max":
		return fieldName + " must be at most " + fe.Param() + " characters long"
	case "gt":
		return fieldName + " must be greater than " + fe.Param()
	case "oneof":
		return fieldName + " must be one of: " + fe.Param()
	case "startswith":
		return fieldName + " must start with " + fe.Param()
	default:
		return fieldName + " is invalid"
	}
}

// prettifyFieldName turns OrgName into "Org Name"
func prettifyFieldName(field string) string {
	var result []rune
	for i, r := range field {
		if i > 0 && unicode.IsUpper(r) && unicode.IsLower(rune(field[i-1])) {
			result = append(result, ' ')
		}
		result = append(result, r)
	}
	return cases.Title(language.Und, cases.NoLower).String(string(result))
}
