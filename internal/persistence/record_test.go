package persistence

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/pdfmailmerge/internal/models"
)

func TestEncodePageRecord(t *testing.T) {
	raw, err := EncodePageRecord([]models.Label{{ID: "a", Text: "Name", RelativeX: 0.5}})
	require.NoError(t, err)
	assert.Contains(t, raw, `"version":1`)
	assert.Contains(t, raw, `"id":"a"`)
	assert.Contains(t, raw, `"relativeX":0.5`)

	empty, err := EncodePageRecord(nil)
	require.NoError(t, err)
	assert.Equal(t, `{"version":1,"labels":[]}`, empty)
}

func TestDecodePageRecord(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantIDs []string
		wantErr bool
	}{
		{"current schema", `{"version":1,"labels":[{"id":"a"},{"id":"b"}]}`, []string{"a", "b"}, false},
		{"legacy array", `[{"id":"a","text":"Name","pageIndex":9}]`, []string{"a"}, false},
		{"legacy empty array", `[]`, nil, false},
		{"padded", "  \n[{\"id\":\"a\"}]", []string{"a"}, false},
		{"empty", ``, nil, true},
		{"not json", `garbage`, nil, true},
		{"object without labels", `{"version":1}`, nil, true},
		{"labels not a list", `{"version":1,"labels":{"id":"a"}}`, nil, true},
		{"unknown version", `{"version":2,"labels":[]}`, nil, true},
		{"missing id", `[{"text":"Name"}]`, nil, true},
		{"null element", `[null]`, nil, true},
		{"scalar elements", `[1,2]`, nil, true},
		{"string", `"labels"`, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			labels, err := DecodePageRecord(tt.raw)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrSchemaMismatch)
				return
			}
			require.NoError(t, err)
			var ids []string
			for _, l := range labels {
				ids = append(ids, l.ID)
			}
			assert.Equal(t, tt.wantIDs, ids)
		})
	}
}

func TestRecordRoundTrip(t *testing.T) {
	in := []models.Label{{
		ID: "a", PageIndex: 3, Text: "Email", RelativeX: 0.25, RelativeY: 0.75,
		FontFamily: "Times", FontSize: 14, FontWeight: models.WeightBold, FontStyle: models.StyleItalic,
	}}
	raw, err := EncodePageRecord(in)
	require.NoError(t, err)
	out, err := DecodePageRecord(raw)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "pdfTemplateLabels_abc_0", LabelsKey("abc", 0))
	assert.Equal(t, "pdfTemplateLabels_abc_12", LabelsKey("abc", 12))
	assert.Equal(t, "pdfTemplate_fileName_abc", FileNameKey("abc"))
	assert.Equal(t, "pdfTemplate_email_abc", EmailKey("abc"))
}
