package validation

import (
	"math"
	"regexp"
	"strings"
	"time"

	"call-insights/internal/schema"

	"github.com/go-playground/validator/v10"
)

// FormatFunc reports whether value satisfies a format. Values of a type the format
// does not apply to must be reported as valid.
type FormatFunc func(value any) bool

const (
	layoutDate     = "2006-01-02"
	layoutDateTime = time.RFC3339
)

var phoneNumberRe = regexp.MustCompile(`^\+?[0-9]{10,15}$`)

// newFieldValidator returns a go-playground validator with the custom tags the
// formats below rely on.
func newFieldValidator() (*validator.Validate, error) {
	v := validator.New(validator.WithRequiredStructEnabled())
	err := v.RegisterValidation("phone_number", func(fl validator.FieldLevel) bool {
		return phoneNumberRe.MatchString(fl.Field().String())
	})
	if err != nil {
		return nil, err
	}
	return v, nil
}

func stringTag(v *validator.Validate, tag string) FormatFunc {
	return func(value any) bool {
		s, ok := value.(string)
		if !ok {
			return true
		}
		return v.Var(s, tag) == nil
	}
}

func defaultFormats(v *validator.Validate) map[string]FormatFunc {
	return map[string]FormatFunc{
		schema.FormatUUID:        stringTag(v, "uuid"),
		schema.FormatDate:        stringTag(v, "datetime="+layoutDate),
		schema.FormatDateTime:    dateTime,
		schema.FormatEmail:       stringTag(v, "email"),
		schema.FormatURI:         stringTag(v, "uri"),
		schema.FormatPhoneNumber: stringTag(v, "phone_number"),
		schema.FormatInt64:       int64Format,
	}
}

// dateTime accepts RFC 3339 timestamps, tolerating a lower-case "t" or a space separator.
func dateTime(value any) bool {
	s, ok := value.(string)
	if !ok {
		return true
	}
	_, ok = parseDateTime(s)
	return ok
}

// canonical rewrites a value accepted by format into the form Go decoders expect.
// Date-times become RFC 3339 so time.Time can unmarshal them.
func canonical(format string, value any) any {
	if format != schema.FormatDateTime {
		return value
	}
	s, ok := value.(string)
	if !ok {
		return value
	}
	t, ok := parseDateTime(s)
	if !ok {
		return value
	}
	return t.Format(time.RFC3339Nano)
}

func parseDateTime(s string) (time.Time, bool) {
	if len(s) > 10 && (s[10] == 't' || s[10] == ' ') {
		s = s[:10] + "T" + s[11:]
	}
	t, err := time.Parse(layoutDateTime, strings.ToUpper(s))
	return t, err == nil
}

func int64Format(value any) bool {
	f, ok := toFloat(value)
	if !ok {
		return true
	}
	return isIntegral(f) && f >= math.MinInt64 && f <= math.MaxInt64
}

// compareFormatted orders two values of the given format; ok is false when either
// side cannot be parsed.
func compareFormatted(format, a, b string) (int, bool) {
	switch format {
	case schema.FormatDate:
		ta, errA := time.Parse(layoutDate, a)
		tb, errB := time.Parse(layoutDate, b)
		if errA != nil || errB != nil {
			return 0, false
		}
		return ta.Compare(tb), true
	case schema.FormatDateTime:
		ta, okA := parseDateTime(a)
		tb, okB := parseDateTime(b)
		if !okA || !okB {
			return 0, false
		}
		return ta.Compare(tb), true
	default:
		return strings.Compare(a, b), true
	}
}
