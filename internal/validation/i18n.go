package validation

import (
	"fmt"

	"github.com/go-playground/locales/ru"
	ut "github.com/go-playground/universal-translator"
)

// Keywords reported in raw errors.
const (
	kwType                 = "type"
	kwRequired             = "required"
	kwAdditionalProperties = "additionalProperties"
	kwMinLength            = "minLength"
	kwMaxLength            = "maxLength"
	kwPattern              = "pattern"
	kwFormat               = "format"
	kwMinimum              = "minimum"
	kwMaximum              = "maximum"
	kwMultipleOf           = "multipleOf"
	kwFormatMinimum        = "formatMinimum"
	kwFormatMaximum        = "formatMaximum"
	kwEnum                 = "enum"
	kwConst                = "const"
	kwMinItems             = "minItems"
	kwMaxItems             = "maxItems"
	kwUniqueItems          = "uniqueItems"
	kwAnyOf                = "anyOf"
	kwOneOf                = "oneOf"
	kwErrorMessage         = "errorMessage"
)

var ruMessages = map[string]string{
	kwType:                 "должно быть {0}",
	kwRequired:             "должно иметь обязательное поле {0}",
	kwAdditionalProperties: "не должно иметь дополнительных полей",
	kwMinLength:            "должно иметь не менее {0} символов",
	kwMaxLength:            "должно иметь не более {0} символов",
	kwPattern:              "должно соответствовать образцу \"{0}\"",
	kwFormat:               "должно соответствовать формату \"{0}\"",
	kwMinimum:              "должно быть >= {0}",
	kwMaximum:              "должно быть <= {0}",
	kwMultipleOf:           "должно быть кратным {0}",
	kwFormatMinimum:        "должно быть >= {0}",
	kwFormatMaximum:        "должно быть <= {0}",
	kwEnum:                 "должно быть равно одному из допустимых значений",
	kwConst:                "должно быть равно разрешенному значению",
	kwMinItems:             "должно иметь не менее {0} элементов",
	kwMaxItems:             "должно иметь не более {0} элементов",
	kwUniqueItems:          "не должно иметь повторяющихся элементов (элементы {1} и {0} идентичны)",
	kwAnyOf:                "должно соответствовать одной из схем в \"anyOf\"",
	kwOneOf:                "должно соответствовать в точности одной схеме в \"oneOf\"",
}

// catalog renders standard error messages in Russian.
type catalog struct {
	trans ut.Translator
}

func newCatalog() (*catalog, error) {
	locale := ru.New()
	uni := ut.New(locale, locale)
	trans, found := uni.GetTranslator(locale.Locale())
	if !found {
		return nil, fmt.Errorf("validation: translator %q not found", locale.Locale())
	}
	for key, text := range ruMessages {
		if err := trans.Add(key, text, false); err != nil {
			return nil, fmt.Errorf("validation: add message %q: %w", key, err)
		}
	}
	return &catalog{trans: trans}, nil
}

func (c *catalog) message(keyword string, params ...string) string {
	msg, err := c.trans.T(keyword, params...)
	if err != nil || msg == "" {
		return keyword
	}
	return msg
}
