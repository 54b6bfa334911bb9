package handler

import (
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

var (
	emailPattern = regexp.MustCompile(`^\w+([\.-]?\w+)*@\w+([\.-]?\w+)*(\.\w{2,})+$`)
	phonePattern = regexp.MustCompile(`^\d{10,15}$`)
)

type customRule struct {
	tag     string
	pattern *regexp.Regexp
	message string
}

var customRules = []customRule{
	{tag: "email_address", pattern: emailPattern, message: "Please enter a valid email address"},
	{tag: "phone", pattern: phonePattern, message: "Please enter a valid phone number"},
}

func newValidator() (*validator.Validate, ut.Translator, error) {
	validate := validator.New(validator.WithRequiredStructEnabled())

	// 错误信息中使用 json 字段名
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	locale := en.New()
	uni := ut.New(locale, locale)
	trans, _ := uni.GetTranslator("en")
	if err := en_translations.RegisterDefaultTranslations(validate, trans); err != nil {
		return nil, nil, err
	}

	for _, rule := range customRules {
		if err := validate.RegisterValidation(rule.tag, func(fl validator.FieldLevel) bool {
			return rule.pattern.MatchString(fl.Field().String())
		}); err != nil {
			return nil, nil, err
		}

		err := validate.RegisterTranslation(rule.tag, trans,
			func(ut ut.Translator) error {
				return ut.Add(rule.tag, rule.message, true)
			},
			func(ut ut.Translator, fe validator.FieldError) string {
				msg, _ := ut.T(fe.Tag())
				return msg
			},
		)
		if err != nil {
			return nil, nil, err
		}
	}

	return validate, trans, nil
}
