package ingest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/Manoela-Calabresi-Portfolio/ETL-Geodata-Pipeline-sub001/internal/errkind"
)

func writePopulationCSV(t *testing.T, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "population.csv")
	require.NoError(t, os.WriteFile(path, content, 0o644))
	return path
}

func TestLoadPopulation_SumsAgeGroups(t *testing.T) {
	path := writePopulationCSV(t, []byte(
		"Stichtag;Stadtbezirk;Alter in 10 Gruppen;Einwohner\n"+
			"31.12.2023;Mitte;unter 10;5000\n"+
			"31.12.2023;Mitte;10 bis 20;4500\n"+
			"31.12.2023;Vaihingen;unter 10;3000\n"+
			"31.12.2023;Vaihingen;10 bis 20;2800\n",
	))

	pop, stats, err := LoadPopulation(path, PopulationOptions{})
	require.NoError(t, err)

	assert.InDelta(t, 9500, pop["Mitte"], 1e-9)
	assert.InDelta(t, 5800, pop["Vaihingen"], 1e-9)
	assert.Equal(t, 4, stats.Loaded)
}

func TestLoadPopulation_DropsTotalRows(t *testing.T) {
	path := writePopulationCSV(t, []byte(
		"Stichtag;Stadtbezirk;Alter in 10 Gruppen;Einwohner\n"+
			"31.12.2023;Mitte;unter 10;5000\n"+
			"31.12.2023;Mitte;10 bis 20;4500\n"+
			"31.12.2023;Mitte;Insgesamt;9500\n",
	))

	pop, stats, err := LoadPopulation(path, PopulationOptions{})
	require.NoError(t, err)

	assert.InDelta(t, 9500, pop["Mitte"], 1e-9)
	assert.Equal(t, 1, stats.Skipped["total_row"])
}

func TestLoadPopulation_TotalsOnlyTable(t *testing.T) {
	path := writePopulationCSV(t, []byte(
		"Stichtag;Stadtbezirk;Alter in 10 Gruppen;Einwohner\n"+
			"31.12.2023;Mitte;Insgesamt;9500\n"+
			"31.12.2023;Vaihingen;Insgesamt;5800\n",
	))

	pop, _, err := LoadPopulation(path, PopulationOptions{})
	require.NoError(t, err)

	assert.InDelta(t, 9500, pop["Mitte"], 1e-9)
	assert.InDelta(t, 5800, pop["Vaihingen"], 1e-9)
}

func TestLoadPopulation_KeepsLatestYear(t *testing.T) {
	path := writePopulationCSV(t, []byte(
		"Stichtag;Stadtbezirk;Alter in 10 Gruppen;Einwohner\n"+
			"31.12.2022;Mitte;unter 10;4000\n"+
			"31.12.2023;Mitte;unter 10;5000\n"+
			"31.12.2022;Vaihingen;unter 10;2500\n"+
			"31.12.2023;Vaihingen;unter 10;3000\n",
	))

	pop, stats, err := LoadPopulation(path, PopulationOptions{})
	require.NoError(t, err)

	assert.InDelta(t, 5000, pop["Mitte"], 1e-9)
	assert.InDelta(t, 3000, pop["Vaihingen"], 1e-9)
	assert.Equal(t, 2, stats.Skipped["older_date"])
}

func TestLoadPopulation_SkipsCitywideTotalAndBadNumbers(t *testing.T) {
	path := writePopulationCSV(t, []byte(
		"Stichtag;Stadtbezirk;Alter in 10 Gruppen;Einwohner\n"+
			"31.12.2023;Mitte;unter 10;5.000\n"+
			"31.12.2023;Insgesamt;unter 10;610000\n"+
			"31.12.2023;Degerloch;unter 10;k.A.\n",
	))

	pop, stats, err := LoadPopulation(path, PopulationOptions{})
	require.NoError(t, err)

	assert.InDelta(t, 5000, pop["Mitte"], 1e-9)
	assert.NotContains(t, pop, "Insgesamt")
	assert.NotContains(t, pop, "Degerloch")
	assert.Equal(t, 1, stats.Skipped["citywide_total"])
	assert.Equal(t, 1, stats.Skipped["bad_number"])
}

func TestLoadPopulation_CharsetDecoded(t *testing.T) {
	// "Möhringen" in ISO 8859-1: 0xf6 for ö.
	row := append([]byte("Stichtag;Stadtbezirk;Einwohner\n31.12.2023;M"), 0xf6)
	row = append(row, []byte("hringen;31000\n")...)
	path := writePopulationCSV(t, row)

	pop, _, err := LoadPopulation(path, PopulationOptions{Charset: "iso-8859-1"})
	require.NoError(t, err)

	assert.InDelta(t, 31000, pop["Möhringen"], 1e-9)
}

func TestLoadPopulation_ColumnOverrides(t *testing.T) {
	path := writePopulationCSV(t, []byte(
		"date,area,people\n2023-12-31,North,1200\n2023-12-31,South,800\n",
	))

	pop, _, err := LoadPopulation(path, PopulationOptions{
		Delimiter:        ',',
		DateColumn:       "date",
		DistrictColumn:   "area",
		PopulationColumn: "people",
	})
	require.NoError(t, err)

	assert.InDelta(t, 1200, pop["North"], 1e-9)
	assert.InDelta(t, 800, pop["South"], 1e-9)
}

func TestLoadPopulation_MissingRequiredColumn(t *testing.T) {
	path := writePopulationCSV(t, []byte("Stichtag;Ort;Einwohner\n31.12.2023;Mitte;5000\n"))

	_, _, err := LoadPopulation(path, PopulationOptions{})
	require.Error(t, err)
	assert.True(t, errkind.Is(err, errkind.MalformedInput))
}

func TestLoadPopulation_MissingFile(t *testing.T) {
	_, _, err := LoadPopulation(filepath.Join(t.TempDir(), "nope.csv"), PopulationOptions{})
	require.Error(t, err)
	assert.True(t, errkind.Is(err, errkind.NoData))
}

func TestLoadPopulation_XLSX(t *testing.T) {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Bevölkerung")
	require.NoError(t, err)
	for _, rowData := range [][]string{
		{"Stichtag", "Stadtbezirk", "Alter in 10 Gruppen", "Einwohner"},
		{"31.12.2023", "Mitte", "unter 10", "5000"},
		{"31.12.2023", "Mitte", "10 bis 20", "4500"},
	} {
		row := sheet.AddRow()
		for _, cellData := range rowData {
			row.AddCell().SetString(cellData)
		}
	}
	path := filepath.Join(t.TempDir(), "population.xlsx")
	require.NoError(t, f.Save(path))

	pop, _, err := LoadPopulation(path, PopulationOptions{})
	require.NoError(t, err)
	assert.InDelta(t, 9500, pop["Mitte"], 1e-9)
}

