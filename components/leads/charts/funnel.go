package charts

import (
	"strings"

	"github.com/goliatone/go-leadboard/components/leads"
)

// FunnelReport captures how many leads reached each stage.
type FunnelReport struct {
	Field          string       `json:"field"`
	Total          int          `json:"total"`
	ConversionRate float64      `json:"conversion_rate"`
	Steps          []FunnelStep `json:"steps"`
	// Unstaged counts rows whose status is not one of the stages, e.g. "lost".
	Unstaged int `json:"unstaged"`
}

// FunnelStep is a single funnel stage.
type FunnelStep struct {
	Label    string  `json:"label"`
	Value    int     `json:"value"`
	DropOff  float64 `json:"dropoff"`
	Position int     `json:"position"`
}

// BuildFunnel counts rows per stage of field. Stages are ordered; a row at stage i also counts
// as having reached every earlier stage. Rows with an unknown status only count toward the
// first stage, and rows without the field are ignored.
func BuildFunnel(rows []leads.Row, field string, stages []string) FunnelReport {
	report := FunnelReport{Field: field}
	if len(stages) == 0 {
		return report
	}
	position := make(map[string]int, len(stages))
	for i, stage := range stages {
		position[strings.ToLower(strings.TrimSpace(stage))] = i
	}
	reached := make([]int, len(stages))
	for _, row := range leads.NormalizeRows(rows) {
		status := strings.ToLower(strings.TrimSpace(leads.CellText(row[field])))
		if status == "" {
			continue
		}
		report.Total++
		idx, ok := position[status]
		if !ok {
			report.Unstaged++
			idx = 0
		}
		for i := 0; i <= idx; i++ {
			reached[i]++
		}
	}
	report.Steps = make([]FunnelStep, len(stages))
	for i, stage := range stages {
		step := FunnelStep{Label: stage, Value: reached[i], Position: i}
		if i > 0 && reached[i-1] > 0 {
			step.DropOff = percent(reached[i-1]-reached[i], reached[i-1])
		}
		report.Steps[i] = step
	}
	if reached[0] > 0 {
		report.ConversionRate = percent(reached[len(reached)-1], reached[0])
	}
	return report
}

func percent(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	return float64(int(float64(part)/float64(whole)*1000+0.5)) / 10
}
