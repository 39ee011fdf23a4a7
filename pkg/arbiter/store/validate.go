package store

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"policyguard/gateway/pkg/arbiter"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("policy_category", func(fl validator.FieldLevel) bool {
		return arbiter.Category(fl.Field().String()).Valid()
	})
	_ = v.RegisterValidation("pii_action", func(fl validator.FieldLevel) bool {
		return arbiter.PIIAction(fl.Field().String()).Valid()
	})
	return v
}

// ValidationError lists the invalid fields of a policy.
type ValidationError struct {
	PolicyID string
	Fields   map[string]string
}

// Error returns the error message.
func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	msgs := make([]string, len(keys))
	for i, k := range keys {
		msgs[i] = e.Fields[k]
	}
	return fmt.Sprintf("invalid policy %q: %s", e.PolicyID, strings.Join(msgs, "; "))
}

// Validate checks a policy before it is stored. Unknown PII kinds are
// accepted; the engine skips them.
func Validate(p *arbiter.Policy) error {
	err := validate.Struct(p)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		field := fe.Namespace()
		switch fe.Tag() {
		case "required":
			fields[field] = fmt.Sprintf("%s is required", field)
		case "max":
			fields[field] = fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
		case "policy_category":
			fields[field] = fmt.Sprintf("%s %q is not a known category", field, fe.Value())
		case "pii_action":
			fields[field] = fmt.Sprintf("%s %q is not a known PII action", field, fe.Value())
		default:
			fields[field] = fmt.Sprintf("%s failed on '%s'", field, fe.Tag())
		}
	}
	return &ValidationError{PolicyID: p.ID, Fields: fields}
}

// validateAll validates every policy and rejects duplicate IDs.
func validateAll(policies []arbiter.Policy) error {
	seen := make(map[string]bool, len(policies))
	for i := range policies {
		if err := Validate(&policies[i]); err != nil {
			return err
		}
		if seen[policies[i].ID] {
			return fmt.Errorf("duplicate policy id %q", policies[i].ID)
		}
		seen[policies[i].ID] = true
	}
	return nil
}
