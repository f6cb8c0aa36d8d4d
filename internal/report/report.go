// Package report renders a human-readable run summary: an HTML page with
// the district ranking, per-KPI statistics and phase timings, plus the same
// data as JSON for tooling. Both land in the run's output directory.
package report

import (
	"encoding/json"
	"html/template"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/rotisserie/eris"

	"github.com/Manoela-Calabresi-Portfolio/ETL-Geodata-Pipeline-sub001/internal/model"
)

const (
	HTMLFile = "report.html"
	JSONFile = "report.json"
)

// KPIStat summarizes one KPI's per-cell distribution.
type KPIStat struct {
	Name  string  `json:"name"`
	Cells int     `json:"cells"`
	Min   float64 `json:"min"`
	Mean  float64 `json:"mean"`
	Max   float64 `json:"max"`
}

// Data is everything the report shows.
type Data struct {
	Run       model.Run        `json:"run"`
	Generated time.Time        `json:"generated"`
	Scores    []model.ScoreRow `json:"scores"`
	KPIStats  []KPIStat        `json:"kpi_stats"`
	Phases    []model.RunPhase `json:"phases"`
}

// Build assembles report data from a run's artifacts. Scores arrive already
// ranked; KPI stats are computed here from the per-cell values.
func Build(run model.Run, scores []model.ScoreRow, kpis map[string]map[string]float64, phases []model.RunPhase) Data {
	stats := make([]KPIStat, 0, len(kpis))
	for name, values := range kpis {
		stats = append(stats, kpiStat(name, values))
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Name < stats[j].Name })

	ranked := make([]model.ScoreRow, len(scores))
	copy(ranked, scores)
	sort.Slice(ranked, func(i, j int) bool { return ranked[i].Rank < ranked[j].Rank })

	return Data{
		Run:       run,
		Generated: time.Now().UTC(),
		Scores:    ranked,
		KPIStats:  stats,
		Phases:    phases,
	}
}

func kpiStat(name string, values map[string]float64) KPIStat {
	stat := KPIStat{Name: name, Cells: len(values), Min: math.Inf(1), Max: math.Inf(-1)}
	if len(values) == 0 {
		stat.Min, stat.Max = 0, 0
		return stat
	}
	sum := 0.0
	for _, v := range values {
		sum += v
		stat.Min = math.Min(stat.Min, v)
		stat.Max = math.Max(stat.Max, v)
	}
	stat.Mean = sum / float64(len(values))
	return stat
}

// Write renders the HTML and JSON reports into dir.
func Write(dir string, data Data) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return eris.Wrapf(err, "report: create output dir %s", dir)
	}

	if err := writeFile(filepath.Join(dir, HTMLFile), func(f io.Writer) error {
		return reportTmpl.Execute(f, data)
	}); err != nil {
		return err
	}

	return writeFile(filepath.Join(dir, JSONFile), func(f io.Writer) error {
		enc := json.NewEncoder(f)
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	})
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "report: create %s", path)
	}
	defer f.Close() //nolint:errcheck

	if err := write(f); err != nil {
		return eris.Wrapf(err, "report: write %s", path)
	}
	return f.Close()
}

var reportTmpl = template.Must(template.New("report").Funcs(template.FuncMap{
	"round1": func(v float64) string { return formatFloat(v, 1) },
	"round2": func(v float64) string { return formatFloat(v, 2) },
}).Parse(reportHTML))

func formatFloat(v float64, decimals int) string {
	pow := math.Pow(10, float64(decimals))
	return strconv.FormatFloat(math.Round(v*pow)/pow, 'f', -1, 64)
}

const reportHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Run {{.Run.ID}} — {{.Run.City}}</title>
<style>
body { font-family: system-ui, sans-serif; margin: 2rem auto; max-width: 60rem; color: #1d2733; }
h1 { font-size: 1.4rem; }
h2 { font-size: 1.1rem; margin-top: 2rem; }
table { border-collapse: collapse; width: 100%; }
th, td { text-align: left; padding: 0.35rem 0.6rem; border-bottom: 1px solid #d8dee5; }
th { background: #f2f5f8; }
td.num, th.num { text-align: right; font-variant-numeric: tabular-nums; }
.status-complete { color: #1d7a3d; }
.status-failed { color: #b02a2a; }
.meta { color: #5a6b7d; font-size: 0.9rem; }
</style>
</head>
<body>
<h1>City analysis run {{.Run.ID}}</h1>
<p class="meta">
City: <strong>{{.Run.City}}</strong> ·
Resolution: {{.Run.Resolution}} ·
Status: <span class="status-{{.Run.Status}}">{{.Run.Status}}</span> ·
Generated: {{.Generated.Format "2006-01-02 15:04:05 MST"}}
</p>
{{if .Run.Result}}
<p class="meta">
Districts: {{.Run.Result.Districts}} ·
Cells: {{.Run.Result.Cells}} ·
Features: {{.Run.Result.Features}} ·
Population: {{round1 .Run.Result.TotalPopulation}}
</p>
{{end}}

<h2>District ranking</h2>
<table>
<tr><th class="num">Rank</th><th>District</th><th class="num">Composite</th></tr>
{{range .Scores}}
<tr><td class="num">{{.Rank}}</td><td>{{.District}}</td><td class="num">{{round2 .Composite}}</td></tr>
{{end}}
</table>

<h2>KPI statistics</h2>
<table>
<tr><th>KPI</th><th class="num">Cells</th><th class="num">Min</th><th class="num">Mean</th><th class="num">Max</th></tr>
{{range .KPIStats}}
<tr><td>{{.Name}}</td><td class="num">{{.Cells}}</td><td class="num">{{round2 .Min}}</td><td class="num">{{round2 .Mean}}</td><td class="num">{{round2 .Max}}</td></tr>
{{end}}
</table>

<h2>Phases</h2>
<table>
<tr><th>Phase</th><th>Status</th><th class="num">Duration</th></tr>
{{range .Phases}}
<tr><td>{{.Name}}</td><td>{{.Status}}</td><td class="num">{{if .Result}}{{.Result.Duration}} ms{{end}}</td></tr>
{{end}}
</table>
</body>
</html>
`
