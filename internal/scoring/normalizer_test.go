package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/sma-adp-scoring/internal/models"
)

func TestNormalizeExtraValue(t *testing.T) {
	numberField := models.ExtraField{Key: "score", Type: models.ExtraFieldTypeNumber}
	pointsField := models.ExtraField{Key: "points", Type: models.ExtraFieldTypeNumber, MaxPoints: ptrFloat(20)}
	textField := models.ExtraField{Key: "text", Type: models.ExtraFieldTypeText}
	boolField := models.ExtraField{Key: "flag", Type: models.ExtraFieldTypeBoolean}

	cases := []struct {
		name    string
		field   models.ExtraField
		value   models.ExtraValue
		score   float64
		present bool
	}{
		{"absent", numberField, models.ExtraValue{}, 0, false},
		{"plain number", numberField, models.NumberValue(83.333), 83.33, true},
		{"above range clamps", numberField, models.NumberValue(140), 100, true},
		{"negative clamps", numberField, models.NumberValue(-4), 0, true},
		{"max points scaling", pointsField, models.NumberValue(15), 75, true},
		{"max points cap", pointsField, models.NumberValue(25), 100, true},
		{"numeric text", textField, models.TextValue(" 85,5 "), 85.5, true},
		{"percent text", textField, models.TextValue("92%"), 92, true},
		{"non numeric text", textField, models.TextValue("excellent"), 0, true},
		{"boolean true", boolField, models.BoolValue(true), 100, true},
		{"boolean false", boolField, models.BoolValue(false), 0, true},
		{"boolean from text", boolField, models.TextValue("yes"), 100, true},
		{"boolean value on number field", numberField, models.BoolValue(true), 100, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			score, present := NormalizeExtraValue(tc.field, tc.value)
			assert.Equal(t, tc.score, score)
			assert.Equal(t, tc.present, present)
		})
	}
}

func TestExtraValueJSON(t *testing.T) {
	var values map[string]models.ExtraValue
	err := jsonUnmarshal(`{"a": 12.5, "b": "text", "c": true, "d": null}`, &values)
	assert.NoError(t, err)
	assert.Equal(t, models.NumberValue(12.5), values["a"])
	assert.Equal(t, models.TextValue("text"), values["b"])
	assert.Equal(t, models.BoolValue(true), values["c"])
	assert.True(t, values["d"].IsAbsent())
	_, ok := values["e"]
	assert.False(t, ok)
}

func TestSettingsFingerprintIgnoresFieldOrder(t *testing.T) {
	settings := models.DefaultCalculationSettings()
	a := models.ExtraField{Key: "a", PassWeight: 1}
	b := models.ExtraField{Key: "b", PassWeight: 2}

	first := SettingsFingerprint(settings, []models.ExtraField{a, b})
	second := SettingsFingerprint(settings, []models.ExtraField{b, a})
	assert.Equal(t, first, second)
	assert.Len(t, first, 16)

	settings.OverallPassThreshold = 70
	assert.NotEqual(t, first, SettingsFingerprint(settings, []models.ExtraField{a, b}))
}
