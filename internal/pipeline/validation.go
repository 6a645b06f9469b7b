package pipeline

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
)

// Input bounds enforced before any external call.
const (
	MaxDescriptionRunes = 10000
	MaxKeywords         = 50
	MaxKeywordRunes     = 200
	MaxCodes            = 50
	MaxCodeRunes        = 64
)

// InventionInput is what a submitter provides for a run.
type InventionInput struct {
	Description         string   `json:"inventionDescription" validate:"notblank,max=10000"`
	Keywords            []string `json:"technicalKeywords" validate:"max=50,dive,notblank,max=200"`
	ClassificationCodes []string `json:"classificationCodes" validate:"max=50,dive,notblank,max=64"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.RegisterValidation("notblank", validators.NotBlank); err != nil {
		panic(err)
	}
	return v
}

// ValidateInput checks in against the input bounds. Every returned error wraps
// ErrValidation; an over-long description returns ErrDescriptionTooLong.
func ValidateInput(in InventionInput) error {
	err := validate.Struct(in)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	for _, fe := range verrs {
		if fe.StructField() == "Description" && fe.Tag() == "max" {
			return ErrDescriptionTooLong
		}
	}
	return fmt.Errorf("%w: %s", ErrValidation, describe(verrs[0]))
}

func describe(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "notblank":
		return field + " must not be blank"
	case "max":
		return field + " exceeds " + fe.Param()
	default:
		return field + " failed " + fe.Tag()
	}
}

// normalizeInput trims whitespace around list entries and drops empty ones.
func normalizeInput(in InventionInput) InventionInput {
	in.Keywords = trimAll(in.Keywords)
	in.ClassificationCodes = trimAll(in.ClassificationCodes)
	return in
}

func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if t := strings.TrimSpace(v); t != "" {
			out = append(out, t)
		}
	}
	return out
}
