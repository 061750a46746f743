package charts

import (
	"testing"

	"github.com/goliatone/go-leadboard/components/leads"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildFunnelCountsCumulativeStages(t *testing.T) {
	rows := []leads.Row{
		{"_id": "1", "status": "new"},
		{"_id": "2", "status": "Contacted"},
		{"_id": "3", "status": "qualified"},
		{"_id": "4", "status": "won"},
		{"_id": "5", "status": "lost"},
		{"_id": "6"},
	}
	report := BuildFunnel(rows, "status", []string{"new", "contacted", "qualified", "won"})

	require.Len(t, report.Steps, 4)
	assert.Equal(t, 5, report.Total)
	assert.Equal(t, 1, report.Unstaged)
	values := []int{}
	for _, step := range report.Steps {
		values = append(values, step.Value)
	}
	assert.Equal(t, []int{5, 3, 2, 1}, values)
	assert.Equal(t, 0.0, report.Steps[0].DropOff)
	assert.Equal(t, 40.0, report.Steps[1].DropOff)
	assert.Equal(t, 20.0, report.ConversionRate)
}

func TestBuildFunnelReadsMetaFieldData(t *testing.T) {
	rows := []leads.Row{
		{"id": "m1", "field_data": []any{map[string]any{"name": "lead_status", "values": []any{"qualified"}}}},
		{"id": "m2", "field_data": []any{map[string]any{"name": "lead_status", "values": []any{"new"}}}},
	}
	report := BuildFunnel(rows, "lead_status", []string{"new", "qualified"})
	require.Len(t, report.Steps, 2)
	assert.Equal(t, 2, report.Steps[0].Value)
	assert.Equal(t, 1, report.Steps[1].Value)
	assert.Equal(t, 50.0, report.ConversionRate)
}

func TestBuildFunnelWithoutStages(t *testing.T) {
	report := BuildFunnel([]leads.Row{{"status": "new"}}, "status", nil)
	assert.Empty(t, report.Steps)
	assert.Zero(t, report.ConversionRate)
}
