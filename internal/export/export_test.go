package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTable() Table {
	return Table{
		Title: "Baux",
		Columns: []Column{
			{Key: "tenant", Header: "Locataire"},
			{Key: "rent", Header: "Loyer", Format: Currency},
			{Key: "start", Header: "Début", Format: Date},
			{Key: "rate", Header: "Taux", Format: Percentage},
		},
		Records: []Record{
			{"tenant": "Mme Dupont", "rent": 1234.56, "start": time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), "rate": 12.5, "secret": "x"},
			{"tenant": "M. Martin <b>", "rent": 850, "start": "2023-07-01", "rate": nil},
		},
	}
}

func TestFormatValue(t *testing.T) {
	cases := []struct {
		v    any
		f    ColumnFormat
		want string
	}{
		{1234.56, Currency, "1 234,56 €"},
		{1234567.891, Currency, "1 234 567,89 €"},
		{-42.5, Currency, "-42,50 €"},
		{0, Currency, "0,00 €"},
		{12.5, Percentage, "12,5 %"},
		{20, Percentage, "20 %"},
		{time.Date(2024, 3, 9, 12, 0, 0, 0, time.UTC), Date, "09/03/2024"},
		{"2024-03-09", Date, "09/03/2024"},
		{1500.0, Number, "1 500"},
		{true, Boolean, "Oui"},
		{nil, Currency, ""},
		{"libre", Text, "libre"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, FormatValue(tc.v, tc.f), "%v as %s", tc.v, tc.f)
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, CSV, sampleTable()))
	out := buf.String()
	require.True(t, strings.HasPrefix(out, "\ufeff"), "missing BOM")

	r := csv.NewReader(strings.NewReader(strings.TrimPrefix(out, "\ufeff")))
	r.Comma = ';'
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, []string{"Locataire", "Loyer", "Début", "Taux"}, rows[0])
	assert.Equal(t, []string{"Mme Dupont", "1 234,56 €", "15/01/2024", "12,5 %"}, rows[1])
	assert.Equal(t, []string{"M. Martin <b>", "850,00 €", "01/07/2023", ""}, rows[2])
	assert.Equal(t, []string{"2 enregistrement(s)"}, rows[3])
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, JSON, sampleTable()))
	var got jsonExport
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, 2, got.Count)
	assert.Equal(t, "2 enregistrement(s)", got.Summary)
	require.Len(t, got.Records, 2)
	assert.Len(t, got.Records[0], 4, "only configured columns are exported")
	assert.NotContains(t, got.Records[0], "secret")
	assert.Equal(t, "1 234,56 €", got.Records[0]["rent"])
}

func TestWriteHTML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, HTML, sampleTable()))
	out := buf.String()
	assert.Contains(t, out, "<th>Locataire</th><th>Loyer</th><th>Début</th><th>Taux</th>")
	assert.Contains(t, out, "<td>1 234,56 €</td>")
	assert.Contains(t, out, "<td>M. Martin </td>")
	assert.NotContains(t, out, "<b>")
	assert.Contains(t, out, "2 enregistrement(s)")
	assert.Equal(t, 4, strings.Count(out, "<tr>"))
}

func TestWriteXLS(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, XLS, sampleTable()))
	out := buf.String()
	assert.Contains(t, out, `<?mso-application progid="Excel.Sheet"?>`)
	assert.Contains(t, out, `<Worksheet ss:Name="Baux">`)
	assert.Contains(t, out, "M. Martin &lt;b&gt;")
	assert.Contains(t, out, "2 enregistrement(s)")
	assert.Equal(t, 4, strings.Count(out, "<Row>"))
	assert.Equal(t, 4*3+1, strings.Count(out, "<Cell"))
}

func TestWrite_Errors(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, Write(&buf, CSV, Table{}))
	assert.Error(t, Write(&buf, "pdf", sampleTable()))

	_, err := ParseFormat("pdf")
	assert.Error(t, err)
	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, CSV, f)
}
