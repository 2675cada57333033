package site

import (
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

type addForm struct {
	Title string `form:"title" validate:"required,max=200"`
}

type editForm struct {
	Rating *float64 `form:"rating" validate:"required,gte=0,lte=10"`
	Review string   `form:"review" validate:"required,max=2000"`
	Owner  string   `form:"owner" validate:"owner"`
}

func bindAdd(values url.Values) (addForm, formValues) {
	title := strings.TrimSpace(values.Get("title"))
	return addForm{Title: title}, formValues{Title: title}
}

// bindEdit returns a parse error for rating separately, since a value that is
// not a number never reaches the validator.
func bindEdit(values url.Values) (editForm, formValues, map[string]string) {
	raw := formValues{
		Rating: strings.TrimSpace(values.Get("rating")),
		Review: strings.TrimSpace(values.Get("review")),
		Owner:  strings.TrimSpace(values.Get("owner")),
	}
	f := editForm{Review: raw.Review, Owner: raw.Owner}

	var parseErrs map[string]string
	if raw.Rating != "" {
		v, err := strconv.ParseFloat(raw.Rating, 64)
		if err != nil {
			parseErrs = map[string]string{"rating": "rating must be a number"}
		} else {
			f.Rating = &v
		}
	}
	return f, raw, parseErrs
}

// formValidator wraps a validator instance carrying the owner rule for
// this deployment.
type formValidator struct {
	validate *validator.Validate
}

func newFormValidator(owners []string) (*formValidator, error) {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("form"), ",")
		if name == "" || name == "-" {
			return strings.ToLower(fld.Name)
		}
		return name
	})

	allowed := make(map[string]struct{}, len(owners))
	for _, o := range owners {
		allowed[o] = struct{}{}
	}
	// With no owners configured the field must stay empty.
	err := v.RegisterValidation("owner", func(fl validator.FieldLevel) bool {
		owner := fl.Field().String()
		if len(allowed) == 0 {
			return owner == ""
		}
		_, ok := allowed[owner]
		return ok
	})
	if err != nil {
		return nil, fmt.Errorf("register owner validator: %w", err)
	}
	return &formValidator{validate: v}, nil
}

// check validates s and returns messages keyed by form field name.
func (fv *formValidator) check(s interface{}) map[string]string {
	err := fv.validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return map[string]string{"form": err.Error()}
	}
	out := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		out[fe.Field()] = translateError(fe)
	}
	return out
}

var errorMessageTemplates = map[string]string{
	"required": "%s is required",
	"owner":    "choose whose movie this is",
}

var errorMessageWithParam = map[string]string{
	"gte": "%s must be at least %s",
	"lte": "%s must be at most %s",
}

func translateError(fe validator.FieldError) string {
	field := fe.Field()
	if tmpl, ok := errorMessageTemplates[fe.Tag()]; ok {
		if strings.Contains(tmpl, "%s") {
			return fmt.Sprintf(tmpl, field)
		}
		return tmpl
	}
	if tmpl, ok := errorMessageWithParam[fe.Tag()]; ok {
		return fmt.Sprintf(tmpl, field, fe.Param())
	}
	if fe.Tag() == "max" {
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	}
	return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
}

func mergeErrors(a, b map[string]string) map[string]string {
	if len(a) == 0 {
		return b
	}
	for k, v := range b {
		if _, ok := a[k]; !ok {
			a[k] = v
		}
	}
	return a
}
