package ingest

import (
	"encoding/csv"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/Manoela-Calabresi-Portfolio/ETL-Geodata-Pipeline-sub001/internal/errkind"
)

// PopulationOptions configures how a population table is read. Zero values
// fall back to the German statistics-office defaults.
type PopulationOptions struct {
	Delimiter        rune   // CSV field delimiter, default ';'
	Charset          string // CSV charset, default UTF-8
	Sheet            string // XLSX sheet name, first sheet when empty
	DateColumn       string // default "Stichtag"
	DistrictColumn   string // default "Stadtbezirk"
	AgeGroupColumn   string // default "Alter in 10 Gruppen"
	PopulationColumn string // default "Einwohner"
}

func (o PopulationOptions) withDefaults() PopulationOptions {
	if o.Delimiter == 0 {
		o.Delimiter = ';'
	}
	if o.DateColumn == "" {
		o.DateColumn = "Stichtag"
	}
	if o.DistrictColumn == "" {
		o.DistrictColumn = "Stadtbezirk"
	}
	if o.AgeGroupColumn == "" {
		o.AgeGroupColumn = "Alter in 10 Gruppen"
	}
	if o.PopulationColumn == "" {
		o.PopulationColumn = "Einwohner"
	}
	return o
}

// LoadPopulation reads a district population table (CSV or XLSX) and returns
// population keyed by normalized district name.
//
// When the table carries a date column, only rows of the most recent 4-digit
// year survive. Age-group breakdown rows sum per district; explicit total
// rows (insgesamt/total/summe/alle in the age column) are dropped so the sum
// does not double-count — unless the table consists of nothing but totals,
// in which case the totals are the data.
func LoadPopulation(path string, opts PopulationOptions) (map[string]float64, *Stats, error) {
	opts = opts.withDefaults()

	var (
		rows [][]string
		err  error
	)
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		rows, err = readXLSXRows(path, opts.Sheet)
	} else {
		rows, err = readCSVRows(path, opts)
	}
	if err != nil {
		return nil, nil, err
	}
	if len(rows) < 2 {
		return nil, nil, errkind.New(errkind.NoData, eris.Errorf("ingest: population table %s has no data rows", path))
	}

	pop, stats, err := reducePopulation(rows, opts)
	if err != nil {
		return nil, stats, eris.Wrapf(err, "ingest: population table %s", path)
	}
	logSkipped(path, stats)
	return pop, stats, nil
}

func readCSVRows(path string, opts PopulationOptions) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errkind.New(errkind.NoData, eris.Wrapf(err, "ingest: population table %s", path))
		}
		return nil, eris.Wrapf(err, "ingest: open population table %s", path)
	}
	defer f.Close() //nolint:errcheck

	r, err := decodeCharset(f, opts.Charset)
	if err != nil {
		return nil, err
	}

	reader := csv.NewReader(r)
	reader.Comma = opts.Delimiter
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, errkind.New(errkind.MalformedInput, eris.Wrapf(err, "ingest: parse population CSV %s", path))
	}
	return rows, nil
}

func readXLSXRows(path, sheetName string) ([][]string, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, errkind.New(errkind.NoData, eris.Wrapf(err, "ingest: population workbook %s", path))
		}
		return nil, errkind.New(errkind.MalformedInput, eris.Wrapf(err, "ingest: open population workbook %s", path))
	}

	var sheet *xlsx.Sheet
	if sheetName != "" {
		s, ok := f.Sheet[sheetName]
		if !ok {
			return nil, errkind.New(errkind.MalformedInput, eris.Errorf("ingest: sheet %q not found in %s", sheetName, path))
		}
		sheet = s
	} else {
		if len(f.Sheets) == 0 {
			return nil, errkind.New(errkind.NoData, eris.Errorf("ingest: workbook %s has no sheets", path))
		}
		sheet = f.Sheets[0]
	}

	rows := make([][]string, 0, len(sheet.Rows))
	for _, row := range sheet.Rows {
		cells := make([]string, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = cell.String()
		}
		rows = append(rows, cells)
	}
	return rows, nil
}

func reducePopulation(rows [][]string, opts PopulationOptions) (map[string]float64, *Stats, error) {
	header := rows[0]
	districtCol := findColumn(header, opts.DistrictColumn)
	popCol := findColumn(header, opts.PopulationColumn)
	dateCol := findColumn(header, opts.DateColumn)
	ageCol := findColumn(header, opts.AgeGroupColumn)

	if districtCol < 0 {
		return nil, nil, errkind.New(errkind.MalformedInput,
			eris.Errorf("missing district column %q", opts.DistrictColumn))
	}
	if popCol < 0 {
		return nil, nil, errkind.New(errkind.MalformedInput,
			eris.Errorf("missing population column %q", opts.PopulationColumn))
	}

	data := rows[1:]
	stats := newStats()
	stats.Read = len(data)

	if dateCol >= 0 {
		data = filterLatestYear(data, dateCol, stats)
	}

	totalsOnly := false
	if ageCol >= 0 {
		data, totalsOnly = filterTotalRows(data, ageCol, stats)
	}

	pop := make(map[string]float64)
	for _, row := range data {
		district, value, reason := populationCell(row, districtCol, popCol)
		if reason != "" {
			stats.skip(reason)
			continue
		}
		if totalsOnly {
			// A totals-only table should carry one row per district; a
			// duplicate means the latest-year filter let two dates through.
			pop[district] = value
		} else {
			pop[district] += value
		}
		stats.Loaded++
	}

	if len(pop) == 0 {
		return nil, stats, errkind.New(errkind.NoData, eris.New("no usable population rows"))
	}
	return pop, stats, nil
}

func populationCell(row []string, districtCol, popCol int) (string, float64, string) {
	if districtCol >= len(row) || popCol >= len(row) {
		return "", 0, "short_row"
	}

	district := NormalizeName(row[districtCol])
	if district == "" {
		return "", 0, "no_district"
	}
	if IsTotalMarker(district) {
		return "", 0, "citywide_total"
	}

	value, err := ParseNumber(row[popCol])
	if err != nil {
		zap.L().Warn("ingest: unparseable population value",
			zap.String("district", district),
			zap.String("value", row[popCol]),
		)
		return "", 0, "bad_number"
	}
	return district, value, ""
}

// filterLatestYear keeps only the rows of the most recent year found in the
// date column. Tables without any parseable year pass through unchanged.
func filterLatestYear(data [][]string, dateCol int, stats *Stats) [][]string {
	latest, found := 0, false
	for _, row := range data {
		if dateCol >= len(row) {
			continue
		}
		if y, ok := YearOf(row[dateCol]); ok && (!found || y > latest) {
			latest, found = y, true
		}
	}
	if !found {
		return data
	}

	kept := data[:0]
	for _, row := range data {
		if dateCol < len(row) {
			if y, ok := YearOf(row[dateCol]); ok && y == latest {
				kept = append(kept, row)
				continue
			}
		}
		stats.skip("older_date")
	}
	return kept
}

// filterTotalRows drops explicit total rows so summing age groups does not
// double-count. When the table has no age breakdown at all — every row is a
// total — the totals are kept and the second return is true.
func filterTotalRows(data [][]string, ageCol int, stats *Stats) ([][]string, bool) {
	hasTotals, hasGroups := false, false
	for _, row := range data {
		if ageCol >= len(row) {
			continue
		}
		if IsTotalMarker(row[ageCol]) {
			hasTotals = true
		} else if strings.TrimSpace(row[ageCol]) != "" {
			hasGroups = true
		}
	}

	if !hasTotals {
		return data, false
	}
	if !hasGroups {
		return data, true
	}

	kept := data[:0]
	for _, row := range data {
		if ageCol < len(row) && IsTotalMarker(row[ageCol]) {
			stats.skip("total_row")
			continue
		}
		kept = append(kept, row)
	}
	return kept, false
}

// findColumn locates a header column by normalized, case-folded name.
func findColumn(header []string, name string) int {
	want := strings.ToLower(NormalizeName(name))
	for i, h := range header {
		if strings.ToLower(NormalizeName(h)) == want {
			return i
		}
	}
	return -1
}
