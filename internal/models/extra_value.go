package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
)

// ExtraValueKind tags which variant of ExtraValue is populated.
type ExtraValueKind int

const (
	ExtraValueAbsent ExtraValueKind = iota
	ExtraValueNumber
	ExtraValueText
	ExtraValueBoolean
)

// ExtraValue is a raw extra-score value resolved at the boundary into one of
// the supported variants. The zero value is Absent.
type ExtraValue struct {
	Kind   ExtraValueKind
	Number float64
	Text   string
	Bool   bool
}

// NumberValue builds a numeric ExtraValue.
func NumberValue(v float64) ExtraValue { return ExtraValue{Kind: ExtraValueNumber, Number: v} }

// TextValue builds a text ExtraValue.
func TextValue(v string) ExtraValue { return ExtraValue{Kind: ExtraValueText, Text: v} }

// BoolValue builds a boolean ExtraValue.
func BoolValue(v bool) ExtraValue { return ExtraValue{Kind: ExtraValueBoolean, Bool: v} }

// IsAbsent reports whether no value was recorded.
func (v ExtraValue) IsAbsent() bool { return v.Kind == ExtraValueAbsent }

// Interface returns the value as a plain Go scalar (nil when absent).
func (v ExtraValue) Interface() interface{} {
	switch v.Kind {
	case ExtraValueNumber:
		return v.Number
	case ExtraValueText:
		return v.Text
	case ExtraValueBoolean:
		return v.Bool
	default:
		return nil
	}
}

// MarshalJSON encodes the value as a bare JSON scalar.
func (v ExtraValue) MarshalJSON() ([]byte, error) {
	if v.Kind == ExtraValueNumber && (math.IsNaN(v.Number) || math.IsInf(v.Number, 0)) {
		return []byte("null"), nil
	}
	return json.Marshal(v.Interface())
}

// UnmarshalJSON accepts any JSON scalar or null.
func (v *ExtraValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*v = ExtraValue{}
		return nil
	}
	var raw interface{}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	parsed, err := ParseExtraValue(raw)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// ParseExtraValue resolves a loosely typed value into an ExtraValue.
func ParseExtraValue(raw interface{}) (ExtraValue, error) {
	switch val := raw.(type) {
	case nil:
		return ExtraValue{}, nil
	case ExtraValue:
		return val, nil
	case float64:
		return NumberValue(val), nil
	case float32:
		return NumberValue(float64(val)), nil
	case int:
		return NumberValue(float64(val)), nil
	case int32:
		return NumberValue(float64(val)), nil
	case int64:
		return NumberValue(float64(val)), nil
	case json.Number:
		f, err := strconv.ParseFloat(val.String(), 64)
		if err != nil {
			return ExtraValue{}, fmt.Errorf("parse extra number %q: %w", val.String(), err)
		}
		return NumberValue(f), nil
	case string:
		return TextValue(val), nil
	case bool:
		return BoolValue(val), nil
	default:
		return ExtraValue{}, fmt.Errorf("unsupported extra value type %T", raw)
	}
}

// ParseExtraScores resolves a raw key/value map, skipping values that cannot be represented.
func ParseExtraScores(raw map[string]interface{}) map[string]ExtraValue {
	scores := make(map[string]ExtraValue, len(raw))
	for key, value := range raw {
		parsed, err := ParseExtraValue(value)
		if err != nil {
			continue
		}
		scores[key] = parsed
	}
	return scores
}

// DecodeExtraScores decodes a JSON object of extra scores key by key. Values
// that are not JSON scalars are dropped and their keys returned in skipped;
// only a payload that is not an object at all is an error.
func DecodeExtraScores(data []byte) (scores map[string]ExtraValue, skipped []string, err error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, nil, fmt.Errorf("decode extra scores: %w", err)
	}
	scores = make(map[string]ExtraValue, len(raw))
	for key, value := range raw {
		var parsed ExtraValue
		if err := parsed.UnmarshalJSON(value); err != nil {
			skipped = append(skipped, key)
			continue
		}
		scores[key] = parsed
	}
	sort.Strings(skipped)
	return scores, skipped, nil
}
