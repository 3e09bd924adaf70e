// Package validate holds the field rules shared by every endpoint, so a rule
// such as "password" is defined once and reused wherever that field appears.
package validate

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"recipecost/pkg/apperr"
)

// Password length bounds. bcrypt ignores input past 72 bytes, so longer
// secrets are refused instead of silently truncated.
const (
	MinPasswordLen = 6
	MaxPasswordLen = 72
)

var v *validator.Validate

func init() {
	v = validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	// optemail accepts "" so optional addresses can be cleared through a
	// non-nil pointer, where omitempty does not skip the empty value.
	_ = v.RegisterValidation("optemail", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		return s == "" || v.Var(s, "email") == nil
	})
	_ = v.RegisterValidation("password", func(fl validator.FieldLevel) bool {
		n := len(fl.Field().String())
		return n >= MinPasswordLen && n <= MaxPasswordLen
	})
}

var messages = map[string]string{
	"required": "O campo '%s' é obrigatório.",
	"notblank": "O campo '%s' não pode ser vazio.",
	"email":    "O campo '%s' deve ser um email válido.",
	"optemail": "O campo '%s' deve ser um email válido.",
	"password": "O campo '%s' deve ter entre 6 e 72 caracteres.",
	"min":      "O campo '%s' deve ser no mínimo %s.",
	"max":      "O campo '%s' deve ser no máximo %s.",
	"gte":      "O campo '%s' deve ser maior ou igual a %s.",
	"gt":       "O campo '%s' deve ser maior que %s.",
	"oneof":    "O campo '%s' deve ser um de: %s.",
}

func message(fe validator.FieldError) string {
	msg, ok := messages[fe.Tag()]
	if !ok {
		return fmt.Sprintf("O campo '%s' é inválido.", fe.Field())
	}
	if strings.Count(msg, "%s") == 2 {
		return fmt.Sprintf(msg, fe.Field(), fe.Param())
	}
	return fmt.Sprintf(msg, fe.Field())
}

// Struct validates s and returns a validation error describing the first
// failing field, or nil.
func Struct(s any) error {
	err := v.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return apperr.Validation(message(verrs[0]))
	}
	return apperr.Internal("falha ao validar requisição", err)
}

// Email normalizes an email for storage and lookup.
func Email(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// ID parses a path id that must be a positive integer.
func ID(raw, what string) (uint, error) {
	n, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	if err != nil || n == 0 {
		return 0, apperr.Validation(fmt.Sprintf("ID %s inválido.", what))
	}
	return uint(n), nil
}

// Date accepts RFC 3339 timestamps or plain YYYY-MM-DD dates.
func Date(raw, field string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t, nil
	}
	return time.Time{}, apperr.Validation(fmt.Sprintf("O campo '%s' deve ser uma data (AAAA-MM-DD ou RFC 3339).", field))
}
