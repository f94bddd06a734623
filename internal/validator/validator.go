package validator

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"

	"github.com/SAP-F-2025/community-service/internal/models"
)

// ValidationError represents a single field failure
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value,omitempty"`
	Rule    string      `json:"rule,omitempty"`
}

// ErrValidationFailed matches any ValidationErrors via errors.Is
var ErrValidationFailed = errors.New("validation failed")

type ValidationErrors []ValidationError

func (ve ValidationErrors) Unwrap() error {
	return ErrValidationFailed
}

func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return "validation failed"
	}
	if len(ve) == 1 {
		return fmt.Sprintf("validation failed: %s %s", ve[0].Field, ve[0].Message)
	}
	return fmt.Sprintf("validation failed: %d field errors", len(ve))
}

// Validator wraps go-playground/validator with the service's custom rules
type Validator struct {
	validate *validator.Validate
	business *BusinessValidator
}

func New() *Validator {
	validate := validator.New()
	registerCustomRules(validate)

	return &Validator{
		validate: validate,
		business: NewBusinessValidator(),
	}
}

// Validate runs struct tags and, for known request types, business rules.
// It returns nil or a ValidationErrors value.
func (v *Validator) Validate(s interface{}) error {
	var errs ValidationErrors

	if err := v.validate.Struct(s); err != nil {
		errs = append(errs, ToValidationErrors(err)...)
	}
	errs = append(errs, v.business.Validate(s)...)

	if len(errs) == 0 {
		return nil
	}
	return errs
}

// ToValidationErrors converts validator errors to ValidationErrors
func ToValidationErrors(err error) ValidationErrors {
	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return ValidationErrors{{Field: "request", Message: err.Error(), Rule: "invalid"}}
	}

	out := make(ValidationErrors, 0, len(fieldErrors))
	for _, fe := range fieldErrors {
		out = append(out, ValidationError{
			Field:   toSnake(fe.Field()),
			Message: messageFor(fe),
			Value:   fe.Value(),
			Rule:    fe.Tag(),
		})
	}
	return out
}

func messageFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "uuid", "uuid4":
		return "must be a valid uuid"
	case "url":
		return "must be a valid url"
	case "message_type":
		return "must be one of text, image, video, audio, file"
	case "emoji":
		return "must be a single emoji"
	case "role_target":
		return "must be one of student, instructor, admin, superadmin, all"
	case "notification_type":
		return "is not a known notification type"
	default:
		return fmt.Sprintf("failed on %s", fe.Tag())
	}
}

func toSnake(s string) string {
	var b strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}

const maxEmojiBytes = 32

func registerCustomRules(validate *validator.Validate) {
	validate.RegisterValidation("message_type", func(fl validator.FieldLevel) bool {
		return models.MessageType(fl.Field().String()).IsValid()
	})

	// An emoji may span several code points (skin tones, ZWJ sequences) but
	// never contains letters or whitespace.
	validate.RegisterValidation("emoji", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		if s == "" || len(s) > maxEmojiBytes || !utf8.ValidString(s) {
			return false
		}
		for _, r := range s {
			if r < 0x80 && r != '#' && r != '*' && (r < '0' || r > '9') {
				return false
			}
			if unicode.IsLetter(r) || unicode.IsSpace(r) {
				return false
			}
		}
		return utf8.RuneCountInString(s) <= 8
	})

	validate.RegisterValidation("role_target", func(fl validator.FieldLevel) bool {
		return models.RoleTarget(fl.Field().String()).IsValid()
	})

	validate.RegisterValidation("notification_type", func(fl validator.FieldLevel) bool {
		switch models.NotificationType(fl.Field().String()) {
		case models.NotificationNewMessage, models.NotificationLevelUp, models.NotificationTaskSubmission,
			models.NotificationReminder, models.NotificationAnnouncement, models.NotificationSystem:
			return true
		}
		return false
	})
}
