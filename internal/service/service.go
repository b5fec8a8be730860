package service

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"user_service/internal/auth"
	"user_service/internal/common"

	"github.com/go-playground/validator/v10"
	"github.com/gofrs/uuid"
)

// passwordRules is the policy for every new secret.
const passwordRules = "required,min=4,bcrypt_max"

// maxPasswordBytes is bcrypt's input limit. It is counted in bytes, not runes.
const maxPasswordBytes = 72

type Hasher interface {
	Hash(secret string) (string, error)
	Verify(secret, hash string) (bool, error)
}

type TokenIssuer interface {
	Issue(subjectID uuid.UUID, subject string) (string, auth.Claims, error)
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("bcrypt_max", func(fl validator.FieldLevel) bool {
		return len(fl.Field().String()) <= maxPasswordBytes
	})

	return v
}

func validateStruct(s any) error {
	return toValidationError(validate.Struct(s), "")
}

func validatePassword(field, secret string) error {
	return toValidationError(validate.Var(secret, passwordRules), field)
}

// toValidationError converts validator output into *common.ValidationError.
// field names the value for single-variable checks.
func toValidationError(err error, field string) error {
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	out := &common.ValidationError{Fields: make([]common.FieldError, 0, len(verrs))}
	for _, fe := range verrs {
		name := fe.Field()
		if name == "" {
			name = field
		}
		out.Fields = append(out.Fields, common.FieldError{
			Field:   name,
			Rule:    fe.Tag(),
			Message: describe(fe),
		})
	}

	return out
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "must not be empty"
	case "min":
		return fmt.Sprintf("must be at least %s characters long", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters long", fe.Param())
	case "bcrypt_max":
		return fmt.Sprintf("must be at most %d bytes long", maxPasswordBytes)
	case "email":
		return "must be a valid email address"
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	default:
		return fmt.Sprintf("failed %q check", fe.Tag())
	}
}
