// Package reactive keeps one dashboard session consistent: it validates input
// changes, clears selections that the new options no longer offer and
// recomputes exactly the outputs that depend on what changed.
package reactive

import "slices"

type Input string

const (
	InputMetric    Input = "metric"
	InputYear      Input = "year"
	InputRegion    Input = "region"
	InputSubRegion Input = "sub_region"
	InputCountry   Input = "country"
	InputRankMode  Input = "rank_mode"
)

func Inputs() []Input {
	return []Input{InputMetric, InputYear, InputRegion, InputSubRegion, InputCountry, InputRankMode}
}

type Output string

const (
	OutputSubRegionOptions Output = "sub_region_options"
	OutputCountryOptions   Output = "country_options"
	OutputMap              Output = "map"
	OutputBoxPlot          Output = "box_plot"
	OutputBubbleChart      Output = "bubble_chart"
	OutputBarChart         Output = "bar_chart"
)

// Outputs returns every output in evaluation order. Option outputs come first
// because they may clear inputs that the charts read.
func Outputs() []Output {
	return []Output{
		OutputSubRegionOptions,
		OutputCountryOptions,
		OutputMap,
		OutputBoxPlot,
		OutputBubbleChart,
		OutputBarChart,
	}
}

// IsOptions reports whether o produces a list of choices rather than a chart.
func (o Output) IsOptions() bool {
	return o == OutputSubRegionOptions || o == OutputCountryOptions
}

// Graph is the declared dependency map from outputs to the inputs they read.
type Graph struct {
	deps  map[Output][]Input
	order []Output
}

func DefaultGraph() *Graph {
	view := []Input{InputMetric, InputYear, InputRegion, InputSubRegion, InputCountry}
	return &Graph{
		order: Outputs(),
		deps: map[Output][]Input{
			OutputSubRegionOptions: {InputRegion},
			OutputCountryOptions:   {InputRegion, InputSubRegion},
			OutputMap:              view,
			OutputBoxPlot:          view,
			OutputBubbleChart:      view,
			OutputBarChart:         append(slices.Clone(view), InputRankMode),
		},
	}
}

func (g *Graph) DependsOn(o Output) []Input {
	return slices.Clone(g.deps[o])
}

// Affected returns the outputs that read any of the changed inputs, in
// evaluation order.
func (g *Graph) Affected(changed map[Input]bool) []Output {
	var out []Output
	for _, o := range g.order {
		if g.reads(o, changed) {
			out = append(out, o)
		}
	}
	return out
}

func (g *Graph) reads(o Output, changed map[Input]bool) bool {
	for _, in := range g.deps[o] {
		if changed[in] {
			return true
		}
	}
	return false
}

// Dependents returns the outputs that read in.
func (g *Graph) Dependents(in Input) []Output {
	return g.Affected(map[Input]bool{in: true})
}
