package scoring

import (
	"strconv"
	"strings"

	"github.com/noah-isme/sma-adp-scoring/internal/models"
)

// NormalizeExtraValue converts a raw extra value into a 0-100 score for the
// given field. The boolean reports whether a value was recorded at all; a
// missing value normalizes to 0 and is not an error.
func NormalizeExtraValue(field models.ExtraField, value models.ExtraValue) (float64, bool) {
	if value.IsAbsent() {
		return 0, false
	}
	if field.Type == models.ExtraFieldTypeBoolean {
		if truthy(value) {
			return 100, true
		}
		return 0, true
	}

	number, ok := numericValue(value)
	if !ok {
		return 0, true
	}
	if field.MaxPoints != nil && *field.MaxPoints > 0 {
		maxPoints := *field.MaxPoints
		if number > maxPoints {
			number = maxPoints
		}
		number = number / maxPoints * 100
	}
	return clamp(round2(number)), true
}

func numericValue(value models.ExtraValue) (float64, bool) {
	switch value.Kind {
	case models.ExtraValueNumber:
		if !finite(value.Number) {
			return 0, false
		}
		return value.Number, true
	case models.ExtraValueBoolean:
		if value.Bool {
			return 100, true
		}
		return 0, true
	case models.ExtraValueText:
		return parseNumericText(value.Text)
	default:
		return 0, false
	}
}

func parseNumericText(text string) (float64, bool) {
	text = strings.TrimSpace(text)
	text = strings.TrimSuffix(text, "%")
	text = strings.TrimSpace(text)
	if text == "" {
		return 0, false
	}
	if !strings.Contains(text, ".") {
		text = strings.Replace(text, ",", ".", 1)
	}
	number, err := strconv.ParseFloat(text, 64)
	if err != nil || !finite(number) {
		return 0, false
	}
	return number, true
}

func truthy(value models.ExtraValue) bool {
	switch value.Kind {
	case models.ExtraValueBoolean:
		return value.Bool
	case models.ExtraValueNumber:
		return value.Number != 0
	case models.ExtraValueText:
		switch strings.ToLower(strings.TrimSpace(value.Text)) {
		case "true", "yes", "y", "1", "ya":
			return true
		}
	}
	return false
}
