package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// FieldError is one entry of the uniform validation error list.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

var (
	slugRe  = regexp.MustCompile(`^[a-z0-9-]+$`)
	colorRe = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)
)

func init() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		for _, tag := range []string{"json", "form"} {
			name := strings.SplitN(f.Tag.Get(tag), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name != "" {
				return name
			}
		}
		return f.Name
	})
	_ = v.RegisterValidation("slug", func(fl validator.FieldLevel) bool {
		return slugRe.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("hexcolor6", func(fl validator.FieldLevel) bool {
		return colorRe.MatchString(fl.Field().String())
	})
}

// IsSlug reports whether s is a valid topic slug.
func IsSlug(s string) bool { return slugRe.MatchString(s) }

// FieldErrors converts binding errors into the uniform field list.
func FieldErrors(err error) []FieldError {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		out := make([]FieldError, 0, len(verrs))
		for _, fe := range verrs {
			out = append(out, FieldError{Field: fieldPath(fe), Message: describe(fe)})
		}
		return out
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return []FieldError{{Field: typeErr.Field, Message: "must be a " + typeErr.Type.String()}}
	}

	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return []FieldError{{Field: "body", Message: "malformed JSON"}}
	}

	if err != nil {
		return []FieldError{{Field: "body", Message: err.Error()}}
	}
	return []FieldError{}
}

// fieldPath drops the struct name from the namespace: "req.preferences.theme" -> "preferences.theme".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email"
	case "url":
		return "must be a valid URL"
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at least %s characters", fe.Param())
		}
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("must contain at least %s items", fe.Param())
		}
		return "must be at least " + fe.Param()
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at most %s characters", fe.Param())
		}
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("must contain at most %s items", fe.Param())
		}
		return "must be at most " + fe.Param()
	case "gte":
		return "must be >= " + fe.Param()
	case "lte":
		return "must be <= " + fe.Param()
	case "oneof":
		return "must be one of: " + fe.Param()
	case "slug":
		return "may only contain lowercase letters, digits and '-'"
	case "hexcolor6":
		return "must be a hex color like #4CAF50"
	default:
		return "failed on " + fe.Tag()
	}
}
