package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestXLSXExporterRender(t *testing.T) {
	exporter := NewXLSXExporter()
	payload, err := exporter.Render(Dataset{
		Headers: []string{"Name", "ZIP"},
		Rows: []map[string]string{
			{"Name": "Greenwood High", "ZIP": "560035"},
			{"Name": "Lakeside Academy", "ZIP": "560036"},
		},
	}, "Leads")
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(payload))
	require.NoError(t, err)
	defer f.Close() //nolint:errcheck

	rows, err := f.GetRows("Leads")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"Name", "ZIP"}, rows[0])
	assert.Equal(t, "Greenwood High", rows[1][0])
	assert.Equal(t, "560036", rows[2][1])
}

func TestCSVExporterRender(t *testing.T) {
	exporter := NewCSVExporter()
	payload, err := exporter.Render(Dataset{
		Headers: []string{"Name"},
		Rows:    []map[string]string{{"Name": "Greenwood High"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "Name\nGreenwood High\n", string(payload))
}

func TestCSVExporterRequiresHeaders(t *testing.T) {
	exporter := NewCSVExporter()
	_, err := exporter.Render(Dataset{})
	require.Error(t, err)
}
