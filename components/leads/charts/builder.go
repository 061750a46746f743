package charts

import (
	"bytes"
	"fmt"
	"io"
	"slices"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"
	"github.com/goliatone/go-leadboard/components/leads"
)

const defaultChartHeight = "360px"

// Builder renders server-side go-echarts HTML for lead reports.
type Builder struct {
	cache      RenderCache
	theme      string
	assetsHost string
	height     string
}

// Option customizes a Builder.
type Option func(*Builder)

// WithCache injects a render cache. Without one every call renders.
func WithCache(cache RenderCache) Option {
	return func(b *Builder) {
		b.cache = cache
	}
}

// WithTheme sets the chart theme (defaults to Westeros).
func WithTheme(theme string) Option {
	return func(b *Builder) {
		b.theme = theme
	}
}

// WithAssetsHost rewrites the assets host so ECharts JS loads from a CDN.
func WithAssetsHost(host string) Option {
	return func(b *Builder) {
		b.assetsHost = host
	}
}

// WithHeight sets the chart container height.
func WithHeight(height string) Option {
	return func(b *Builder) {
		b.height = height
	}
}

// NewBuilder creates a chart builder.
func NewBuilder(opts ...Option) *Builder {
	b := &Builder{
		theme:  types.ThemeWesteros,
		height: defaultChartHeight,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Funnel renders a funnel report.
func (b *Builder) Funnel(title string, report FunnelReport) (string, error) {
	if len(report.Steps) == 0 {
		return "", fmt.Errorf("charts: funnel %q has no stages", title)
	}
	return b.cached("funnel", title, report, func() (string, error) {
		funnel := charts.NewFunnel()
		subtitle := fmt.Sprintf("%d leads, %.1f%% converted", report.Total, report.ConversionRate)
		funnel.SetGlobalOptions(b.globalOptions(title, subtitle)...)
		data := make([]opts.FunnelData, len(report.Steps))
		for i, step := range report.Steps {
			data[i] = opts.FunnelData{Name: leads.ColumnLabel(step.Label), Value: step.Value}
		}
		funnel.AddSeries(title, data)
		return render(funnel)
	})
}

// Bar renders one bar per key of counts in lexical order.
func (b *Builder) Bar(title string, counts map[string]int) (string, error) {
	keys := sortedKeys(counts)
	if len(keys) == 0 {
		return "", fmt.Errorf("charts: bar %q has no data", title)
	}
	return b.cached("bar", title, counts, func() (string, error) {
		bar := charts.NewBar()
		bar.SetGlobalOptions(b.globalOptions(title, "")...)
		axis := make([]string, len(keys))
		data := make([]opts.BarData, len(keys))
		for i, key := range keys {
			axis[i] = leads.ColumnLabel(key)
			data[i] = opts.BarData{Name: axis[i], Value: counts[key]}
		}
		bar.SetXAxis(axis)
		bar.AddSeries(title, data)
		return render(bar)
	})
}

// Pie renders one slice per key of counts.
func (b *Builder) Pie(title string, counts map[string]int) (string, error) {
	keys := sortedKeys(counts)
	if len(keys) == 0 {
		return "", fmt.Errorf("charts: pie %q has no data", title)
	}
	return b.cached("pie", title, counts, func() (string, error) {
		pie := charts.NewPie()
		pie.SetGlobalOptions(b.globalOptions(title, "")...)
		data := make([]opts.PieData, len(keys))
		for i, key := range keys {
			data[i] = opts.PieData{Name: leads.ColumnLabel(key), Value: counts[key]}
		}
		pie.AddSeries(title, data)
		return render(pie)
	})
}

func (b *Builder) cached(kind, title string, input any, renderFn func() (string, error)) (string, error) {
	if b.cache == nil {
		return renderFn()
	}
	key := ChartKey{Kind: kind, Title: title, Theme: b.theme, Digest: Digest(input)}
	return b.cache.GetOrRender(key, renderFn)
}

func (b *Builder) globalOptions(title, subtitle string) []charts.GlobalOpts {
	initOpts := opts.Initialization{
		Theme:  b.theme,
		Width:  "100%",
		Height: b.height,
	}
	if b.assetsHost != "" {
		initOpts.AssetsHost = b.assetsHost
	}
	return []charts.GlobalOpts{
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: subtitle}),
		charts.WithInitializationOpts(initOpts),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	}
}

func render(renderable interface{ Render(io.Writer) error }) (string, error) {
	var buf bytes.Buffer
	if err := renderable.Render(&buf); err != nil {
		return "", fmt.Errorf("charts: render: %w", err)
	}
	return buf.String(), nil
}

func sortedKeys(counts map[string]int) []string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
