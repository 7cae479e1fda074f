package services

import (
	"errors"
	"reflect"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/cppla/inkblog/models"
	"github.com/cppla/inkblog/utils"
)

var (
	slugPattern     = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)
	usernamePattern = regexp.MustCompile(`^[\w\p{Han}]+$`)
)

const (
	usernameMin, usernameMax = 2, 50
	passwordMin, passwordMax = 8, 128

	statusRule = "oneof=DRAFT PUBLISHED ARCHIVED"
)

// Input structs carry gin `binding` tags; `code` overrides the error code prefix,
// which otherwise is the upper snake case of the json name.
func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		registerRules(v)
	}
}

func registerRules(v *validator.Validate) {
	v.RegisterTagNameFunc(fieldCode)
	_ = v.RegisterValidation("slug", func(fl validator.FieldLevel) bool {
		return slugPattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return usernamePattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("password", func(fl validator.FieldLevel) bool {
		return strongPassword(fl.Field().String())
	})
}

func fieldCode(f reflect.StructField) string {
	if code := f.Tag.Get("code"); code != "" {
		return code
	}
	name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	if name == "" {
		name = f.Name
	}
	var b strings.Builder
	for i, r := range name {
		if unicode.IsUpper(r) && i > 0 {
			b.WriteByte('_')
		}
		b.WriteRune(unicode.ToUpper(r))
	}
	return b.String()
}

func engine() *validator.Validate {
	return binding.Validator.Engine().(*validator.Validate)
}

// validateInput checks a tagged input struct after normalization.
func validateInput(in interface{}) error {
	if err := engine().Struct(in); err != nil {
		return ValidationError(err)
	}
	return nil
}

// validateVar checks a single value against rule, reporting failures under code.
func validateVar(value interface{}, rule, code string) error {
	err := engine().Var(value, rule)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return translate(code, verrs[0])
	}
	return utils.ErrInvalidRequest.Wrap(err)
}

// ValidationError maps a binding or validation failure to a stable validation code.
// Anything that is not a field rule violation, such as malformed JSON, is ErrInvalidRequest.
func ValidationError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return translate(verrs[0].Field(), verrs[0])
	}
	return utils.ErrInvalidRequest.Wrap(err)
}

func translate(code string, fe validator.FieldError) error {
	tag := fe.Tag()
	if i := strings.LastIndexByte(tag, '|'); i >= 0 {
		tag = tag[i+1:]
	}
	tag = strings.SplitN(tag, "=", 2)[0]
	label := strings.ToLower(strings.ReplaceAll(code, "_", " "))

	switch tag {
	case "password":
		return utils.ErrWeakPassword
	case "eqfield":
		return utils.ErrPasswordMismatch
	case "required":
		return utils.Validation(code+"_REQUIRED", label+" is required")
	case "min", "gt", "gte":
		if isZero(fe.Value()) {
			return utils.Validation(code+"_REQUIRED", label+" is required")
		}
		return utils.Validation(code+"_TOO_SHORT", label+" is too short")
	case "max":
		return utils.Validation(code+"_TOO_LONG", label+" is too long")
	case "slug":
		return utils.Validation("INVALID_SLUG_FORMAT", "slug may only contain lowercase letters, digits and single hyphens")
	case "username":
		return utils.Validation("INVALID_USERNAME_FORMAT", "username may only contain letters, digits, underscores and Chinese characters")
	case "http_url":
		return utils.Validation("INVALID_"+code+"_FORMAT", label+" must start with http:// or https://")
	case "hexcolor", "len":
		return utils.Validation("INVALID_"+code+"_FORMAT", label+" must look like #RRGGBB")
	case "oneof":
		return utils.Validation("INVALID_"+code, label+" must be one of "+strings.ReplaceAll(fe.Param(), " ", ", "))
	}
	return utils.Validation("INVALID_"+code, label+" is invalid")
}

func isZero(v interface{}) bool {
	rv := reflect.Indirect(reflect.ValueOf(v))
	return !rv.IsValid() || rv.IsZero()
}

func runeLen(s string) int { return utf8.RuneCountInString(s) }

func validateStatus(s models.ArticleStatus) error {
	return validateVar(string(s), statusRule, "STATUS")
}

// strongPassword mirrors the registration rule: 8-128 characters with lower, upper case and digits.
func strongPassword(s string) bool {
	n := runeLen(s)
	if n < passwordMin || n > passwordMax {
		return false
	}
	var lower, upper, digit bool
	for _, r := range s {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	return lower && upper && digit
}

// slugify derives a slug from a display name; non-ASCII names yield "".
func slugify(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case r == ' ' || r == '-' || r == '_':
			if !dash && b.Len() > 0 {
				b.WriteByte('-')
				dash = true
			}
		}
	}
	return strings.TrimRight(b.String(), "-")
}
