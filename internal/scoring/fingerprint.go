package scoring

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"

	"github.com/noah-isme/sma-adp-scoring/internal/models"
)

const fingerprintLength = 16

// SettingsFingerprint hashes the shared calculation inputs: settings and the
// extra-field definitions. Field order does not affect the result.
func SettingsFingerprint(settings models.CalculationSettings, fields []models.ExtraField) string {
	sorted := make([]models.ExtraField, len(fields))
	copy(sorted, fields)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Key < sorted[j].Key })
	return hashJSON(struct {
		Settings models.CalculationSettings `json:"settings"`
		Fields   []models.ExtraField        `json:"fields"`
	}{Settings: settings, Fields: sorted})
}

func hashJSON(v interface{}) string {
	payload, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])[:fingerprintLength]
}
