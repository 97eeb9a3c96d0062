package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDataset() Dataset {
	return Dataset{
		Title:   "Scores",
		Headers: []string{"code", "final_score", "passed"},
		Rows: [][]string{
			{"S1", "80", "true"},
			{"S2", "42.5", "false"},
		},
	}
}

func TestCSVExporterRender(t *testing.T) {
	out, err := NewCSVExporter().Render(sampleDataset())
	require.NoError(t, err)
	assert.Equal(t, "code,final_score,passed\nS1,80,true\nS2,42.5,false\n", string(out))
}

func TestCSVExporterRejectsRaggedRows(t *testing.T) {
	data := sampleDataset()
	data.Rows = append(data.Rows, []string{"S3"})
	_, err := NewCSVExporter().Render(data)
	assert.Error(t, err)
}

func TestPDFExporterRender(t *testing.T) {
	out, err := NewPDFExporter().Render(sampleDataset())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF-")))
}

func TestRenderRequiresHeaders(t *testing.T) {
	_, err := NewPDFExporter().Render(Dataset{})
	assert.Error(t, err)
	_, err = NewCSVExporter().Render(Dataset{})
	assert.Error(t, err)
}

func TestParseFormatAndRenderer(t *testing.T) {
	format, ok := ParseFormat(" PDF ")
	require.True(t, ok)
	assert.Equal(t, FormatPDF, format)

	_, ok = ParseFormat("xlsx")
	assert.False(t, ok)

	r, err := NewRenderer(FormatCSV)
	require.NoError(t, err)
	assert.Equal(t, "text/csv", r.ContentType())
	assert.Equal(t, "csv", r.Extension())

	_, err = NewRenderer(Format("xlsx"))
	assert.Error(t, err)
}
