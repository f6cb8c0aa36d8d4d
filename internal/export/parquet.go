package export

import (
	"io"
	"sort"

	"github.com/parquet-go/parquet-go"
	"github.com/paulmach/orb"
	"github.com/rotisserie/eris"

	"github.com/Manoela-Calabresi-Portfolio/ETL-Geodata-Pipeline-sub001/internal/geometry"
	"github.com/Manoela-Calabresi-Portfolio/ETL-Geodata-Pipeline-sub001/internal/hexgrid"
	"github.com/Manoela-Calabresi-Portfolio/ETL-Geodata-Pipeline-sub001/internal/model"
)

type districtRow struct {
	Name       string  `parquet:"name"`
	Population float64 `parquet:"population"`
	AreaKm2    float64 `parquet:"area_km2"`
	Density    float64 `parquet:"density"`
	Composite  float64 `parquet:"composite"`
	Rank       int32   `parquet:"rank"`
	Geometry   []byte  `parquet:"geometry"`
}

func (w *Writer) districtsParquet(districts []model.District, scores map[string]model.ScoreRow) error {
	rows := make([]districtRow, 0, len(districts))
	for _, d := range districts {
		wkb, err := geometry.EncodeMultiPolygon(d.Geometry)
		if err != nil {
			return eris.Wrapf(err, "export: encode district %q", d.Name)
		}
		row := districtRow{
			Name:       d.Name,
			Population: d.Population,
			AreaKm2:    d.AreaKm2,
			Density:    density(d),
			Geometry:   wkb,
		}
		if s, ok := scores[d.Name]; ok {
			row.Composite = s.Composite
			row.Rank = int32(s.Rank)
		}
		rows = append(rows, row)
	}

	return w.writeAtomic(DistrictsParquetFile, func(f io.Writer) error {
		pw := parquet.NewGenericWriter[districtRow](f)
		if _, err := pw.Write(rows); err != nil {
			return eris.Wrap(err, "write district rows")
		}
		return pw.Close()
	})
}

// cellsParquet writes the hex-cell table with one Double column per KPI.
// The KPI set varies per run, so the schema is assembled dynamically and
// rows go through the generic map writer; cells without a value for a KPI
// write a null.
func (w *Writer) cellsParquet(cells []model.GridCell, kpis map[string]map[string]float64) error {
	names := make([]string, 0, len(kpis))
	for name := range kpis {
		names = append(names, name)
	}
	sort.Strings(names)

	group := parquet.Group{
		"cell_id":  parquet.String(),
		"lat":      parquet.Leaf(parquet.DoubleType),
		"lng":      parquet.Leaf(parquet.DoubleType),
		"geometry": parquet.Leaf(parquet.ByteArrayType),
	}
	for _, name := range names {
		group[name] = parquet.Optional(parquet.Leaf(parquet.DoubleType))
	}
	schema := parquet.NewSchema("cells", group)

	rows := make([]map[string]any, 0, len(cells))
	for _, c := range cells {
		wkb, err := cellWKB(c.ID)
		if err != nil {
			return eris.Wrapf(err, "export: encode cell %s", c.ID)
		}
		row := map[string]any{
			"cell_id":  c.ID,
			"lat":      c.CentroidLat,
			"lng":      c.CentroidLng,
			"geometry": wkb,
		}
		for _, name := range names {
			if v, ok := kpis[name][c.ID]; ok {
				row[name] = v
			}
		}
		rows = append(rows, row)
	}

	return w.writeAtomic(CellsParquetFile, func(f io.Writer) error {
		pw := parquet.NewGenericWriter[map[string]any](f, schema)
		if _, err := pw.Write(rows); err != nil {
			return eris.Wrap(err, "write cell rows")
		}
		return pw.Close()
	})
}

func cellWKB(id string) ([]byte, error) {
	poly, err := hexgrid.CellToPolygon(id)
	if err != nil {
		return nil, err
	}
	return geometry.EncodeMultiPolygon(orb.MultiPolygon{poly})
}
