package accounts

import (
	"errors"
	"regexp"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/nyaruka/phonenumbers"
)

const (
	DefaultMinPasswordLength = 6
	DefaultMobileRegion      = "FR"
)

var mobilePattern = regexp.MustCompile(`^[0-9]{10}$`)

// Rules are the input checks applied before any provider or store call.
type Rules struct {
	MinPasswordLength int
	MobileRegion      string
}

// DefaultRules returns the stock input rules
func DefaultRules() Rules {
	return Rules{
		MinPasswordLength: DefaultMinPasswordLength,
		MobileRegion:      DefaultMobileRegion,
	}
}

func (r Rules) withDefaults() Rules {
	if r.MinPasswordLength <= 0 {
		r.MinPasswordLength = DefaultMinPasswordLength
	}
	if strings.TrimSpace(r.MobileRegion) == "" {
		r.MobileRegion = DefaultMobileRegion
	}
	return r
}

// CreateAccountRequest is the operator's input for a new account.
type CreateAccountRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	Role      Role   `json:"role"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Mobile    string `json:"mobile"`
}

// Normalize trims the free text fields
func (r CreateAccountRequest) Normalize() CreateAccountRequest {
	r.Email = strings.TrimSpace(r.Email)
	r.FirstName = strings.TrimSpace(r.FirstName)
	r.LastName = strings.TrimSpace(r.LastName)
	r.Mobile = strings.TrimSpace(r.Mobile)
	r.Role = Role(strings.ToLower(strings.TrimSpace(string(r.Role))))
	return r
}

// Validate will validate the payload
func (r CreateAccountRequest) Validate(rules Rules) error {
	rules = rules.withDefaults()
	err := validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, validation.Length(3, 254), is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(rules.MinPasswordLength, 0)),
		validation.Field(&r.Role, validation.Required, validation.In(RoleAdmin, RoleEditor, RoleUser)),
		validation.Field(&r.FirstName, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.LastName, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Mobile, validation.Required, validation.Match(mobilePattern), validation.By(ValidateMobile(rules.MobileRegion))),
	)
	return validationError(err)
}

// UpdateAccountRequest changes the profile of an existing account.
// NewPassword is accepted so it can be refused explicitly.
type UpdateAccountRequest struct {
	RecordID    string       `json:"id"`
	Patch       ProfilePatch `json:"patch"`
	NewPassword string       `json:"new_password,omitempty"`
}

// Validate will validate the payload
func (r UpdateAccountRequest) Validate(rules Rules) error {
	rules = rules.withDefaults()
	p := r.Patch
	err := validation.Errors{
		"id": validation.Validate(r.RecordID, validation.Required, is.UUID),
		"patch": validation.ValidateStruct(&p,
			validation.Field(&p.Email, validation.NilOrNotEmpty, validation.Length(3, 254), is.Email),
			validation.Field(&p.FirstName, validation.NilOrNotEmpty, validation.Length(1, 200)),
			validation.Field(&p.LastName, validation.NilOrNotEmpty, validation.Length(1, 200)),
			validation.Field(&p.Mobile, validation.NilOrNotEmpty, validation.Match(mobilePattern), validation.By(ValidateMobile(rules.MobileRegion))),
			validation.Field(&p.Role, validation.NilOrNotEmpty, validation.In(RoleAdmin, RoleEditor, RoleUser)),
		),
	}.Filter()
	return validationError(err)
}

// ValidateMobile checks that the value parses as a phone number of region.
func ValidateMobile(region string) validation.RuleFunc {
	return func(value interface{}) error {
		v, isNil := validation.Indirect(value)
		if isNil {
			return nil
		}
		s, _ := v.(string)
		if s == "" {
			return nil
		}
		if _, err := phonenumbers.Parse(s, region); err != nil {
			return errors.New("must be a valid phone number")
		}
		return nil
	}
}

// FormatMobile renders mobile in E.164 for display. Numbers that do not
// parse are returned unchanged.
func FormatMobile(mobile, region string) string {
	if strings.TrimSpace(region) == "" {
		region = DefaultMobileRegion
	}
	num, err := phonenumbers.Parse(mobile, region)
	if err != nil {
		return mobile
	}
	return phonenumbers.Format(num, phonenumbers.E164)
}

// ValidationFields flattens ozzo errors to field -> message.
func ValidationFields(err error) map[string]string {
	out := map[string]string{}
	collectValidationFields("", err, out)
	return out
}

func collectValidationFields(prefix string, err error, out map[string]string) {
	var errs validation.Errors
	if !errors.As(err, &errs) {
		if err != nil && prefix != "" {
			out[prefix] = err.Error()
		}
		return
	}
	for field, fieldErr := range errs {
		key := field
		if prefix != "" {
			key = prefix + "." + field
		}
		collectValidationFields(key, fieldErr, out)
	}
}

func validationError(err error) error {
	if err == nil {
		return nil
	}

	fields := ValidationFields(err)
	metadata := make(map[string]any, len(fields))
	for k, v := range fields {
		metadata[k] = v
	}

	return WrapError(err, KindValidation, "invalid account input").
		WithMetadata(map[string]any{"fields": metadata})
}
