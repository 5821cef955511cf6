package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

// Limits on request sizes.
const (
	MaxKeywordLength = 200
	MaxContextLength = 50
	MaxResults       = 100
)

var validate *validator.Validate

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = validate.RegisterValidation("keyword", validateKeywordTag)
}

func validateKeywordTag(fl validator.FieldLevel) bool {
	return ValidateKeyword(fl.Field().String())
}

// ValidateKeyword reports whether s is a usable keyword name: non-blank,
// at most MaxKeywordLength bytes, free of control characters.
func ValidateKeyword(s string) bool {
	if strings.TrimSpace(s) == "" || len(s) > MaxKeywordLength {
		return false
	}
	return strings.IndexFunc(s, unicode.IsControl) < 0
}

// NormalizeKeyword trims a keyword name and collapses inner whitespace runs
// to one space. Case is preserved; keyword names are matched exactly.
func NormalizeKeyword(keyword string) string {
	return strings.Join(strings.Fields(keyword), " ")
}

// NormalizeContext normalizes every entry and drops blank ones.
func NormalizeContext(context []string) []string {
	out := make([]string, 0, len(context))
	for _, k := range context {
		if k = NormalizeKeyword(k); k != "" {
			out = append(out, k)
		}
	}
	return out
}

// RecommendRequest asks for the keywords most likely to follow Context,
// with Keyword, when set, appended as the most recent entry.
type RecommendRequest struct {
	Keyword            string   `json:"keyword" validate:"omitempty,keyword"`
	Context            []string `json:"context" validate:"max=50,dive,keyword"`
	Library            string   `json:"library" validate:"max=100"`
	MaxRecommendations int      `json:"max_recommendations" validate:"gte=0,lte=100"`
}

// FullContext returns the normalized context including Keyword.
func (r *RecommendRequest) FullContext() []string {
	ctx := NormalizeContext(r.Context)
	if k := NormalizeKeyword(r.Keyword); k != "" {
		ctx = append(ctx, k)
	}
	return ctx
}

// ContextRequest asks for recommendations after an explicit keyword sequence.
type ContextRequest struct {
	Keywords           []string `json:"keywords" validate:"required,min=1,max=50,dive,keyword"`
	Library            string   `json:"library" validate:"max=100"`
	MaxRecommendations int      `json:"max_recommendations" validate:"gte=0,lte=100"`
}

// AutocompleteRequest asks for completions of a partial keyword name.
type AutocompleteRequest struct {
	Keyword    string `json:"keyword" validate:"required,max=200"`
	Library    string `json:"library" validate:"max=100"`
	MaxResults int    `json:"max_results" validate:"gte=0,lte=100"`
}

// PopularQuery filters the popular keyword listing.
type PopularQuery struct {
	Library string `query:"library" json:"library" validate:"max=100"`
	Limit   int    `query:"limit" json:"limit" validate:"gte=0,lte=1000"`
}

// Error lists the fields of a request that failed validation.
type Error struct {
	Fields []string
	msgs   []string
}

func (e *Error) Error() string {
	return strings.Join(e.msgs, "; ")
}

// Struct validates a request struct. Failures are returned as *Error.
func Struct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := &Error{}
	for _, fe := range verrs {
		field := trimNamespace(fe.Namespace())
		out.Fields = append(out.Fields, field)
		out.msgs = append(out.msgs, describe(field, fe))
	}
	return out
}

// trimNamespace drops the struct name prefix from "RecommendRequest.context[0]".
func trimNamespace(ns string) string {
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}

func describe(field string, fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "keyword":
		return fmt.Sprintf("%s must be a non-blank keyword name of at most %d bytes", field, MaxKeywordLength)
	case "min":
		return fmt.Sprintf("%s must have at least %s entries", field, fe.Param())
	case "max":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("%s must have at most %s entries", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be >= %s", field, fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be <= %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed %s", field, fe.Tag())
	}
}
