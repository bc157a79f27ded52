package reactive

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"time"

	"github.com/sudorandom/gapdash/pkg/chart"
	"github.com/sudorandom/gapdash/pkg/dataset"
	"github.com/sudorandom/gapdash/pkg/filter"
	"github.com/sudorandom/gapdash/pkg/metrics"
)

var (
	ErrInvalidInput  = errors.New("invalid input")
	ErrUnknownInput  = errors.New("unknown input")
	ErrUnknownOutput = errors.New("unknown output")
)

// Phase is the lifecycle of one output within a session.
type Phase int

const (
	Stale Phase = iota
	Recomputing
	Rendered
)

func (p Phase) String() string {
	switch p {
	case Recomputing:
		return "recomputing"
	case Rendered:
		return "rendered"
	}
	return "stale"
}

// State is the current value of every input.
type State struct {
	Metric    chart.Metric
	Year      int
	Region    string
	SubRegion string
	Country   string
	RankMode  chart.RankMode
}

func (s State) Selection() filter.Selection {
	return filter.Selection{Region: s.Region, SubRegion: s.SubRegion, Country: s.Country, Year: s.Year}
}

// Values returns the state in wire form. Unset inputs are empty strings.
func (s State) Values() map[Input]string {
	year := ""
	if s.Year != 0 {
		year = strconv.Itoa(s.Year)
	}
	return map[Input]string{
		InputMetric:    string(s.Metric),
		InputYear:      year,
		InputRegion:    s.Region,
		InputSubRegion: s.SubRegion,
		InputCountry:   s.Country,
		InputRankMode:  string(s.RankMode),
	}
}

// Result is the latest value of one output: a chart or a list of choices.
type Result struct {
	Output  Output      `json:"output"`
	Spec    *chart.Spec `json:"spec,omitempty"`
	Options []string    `json:"options,omitempty"`
}

// Update describes one recompute cycle.
type Update struct {
	// Changed lists the inputs whose value changed, cleared ones included.
	Changed []Input `json:"changed,omitempty"`
	// Cleared lists selections reset because their options no longer
	// offered them.
	Cleared []Input  `json:"cleared,omitempty"`
	Results []Result `json:"results"`
	State   State    `json:"-"`
}

// Builder computes a chart output from the filtered view and the state.
type Builder func(v dataset.View, s State, o chart.Options) (*chart.Spec, error)

func DefaultBuilders() map[Output]Builder {
	return map[Output]Builder{
		OutputMap: func(v dataset.View, s State, o chart.Options) (*chart.Spec, error) {
			return chart.WorldMap(v, s.Metric, s.Year, s.Region, o)
		},
		OutputBoxPlot: func(v dataset.View, s State, o chart.Options) (*chart.Spec, error) {
			return chart.BoxPlot(v, s.Metric, s.Year, o)
		},
		OutputBubbleChart: func(v dataset.View, s State, o chart.Options) (*chart.Spec, error) {
			return chart.Bubble(v, s.Metric, s.Selection(), o)
		},
		OutputBarChart: func(v dataset.View, s State, o chart.Options) (*chart.Spec, error) {
			return chart.Ranking(v, s.Metric, s.RankMode, o)
		},
	}
}

type Config struct {
	Table *dataset.Table
	Chart chart.Options
	// Years offered by the year control.
	Years   []int
	Initial State
	// InitialValues override Initial in wire form, as a Set would.
	InitialValues map[Input]string
	Logger        *slog.Logger

	// Optional configuration.
	Graph    *Graph
	Builders map[Output]Builder
}

func (c *Config) Validate() error {
	if c.Table == nil {
		return errors.New("table is required")
	}
	if len(c.Years) == 0 {
		return errors.New("years are required")
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Graph == nil {
		c.Graph = DefaultGraph()
	}
	builders := DefaultBuilders()
	for o, b := range c.Builders {
		builders[o] = b
	}
	c.Builders = builders
	if c.Initial.Metric == "" {
		c.Initial.Metric = chart.LifeExpectancy
	}
	if c.Initial.RankMode == "" {
		c.Initial.RankMode = chart.Top
	}
	return nil
}

// Controller owns the inputs and outputs of one session. It is not safe for
// concurrent use; callers serialise access per session.
type Controller struct {
	cfg     Config
	log     *slog.Logger
	state   State
	phases  map[Output]Phase
	results map[Output]Result
	// dirty holds outputs a failed cycle left behind the current state.
	dirty map[Output]bool
}

// New validates the initial state. Every output starts Stale until RenderAll.
func New(cfg Config) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := &Controller{
		cfg:     cfg,
		log:     cfg.Logger,
		phases:  make(map[Output]Phase),
		results: make(map[Output]Result),
		dirty:   make(map[Output]bool),
	}
	for _, o := range cfg.Graph.order {
		c.phases[o] = Stale
	}
	initial := cfg.Initial.Values()
	for in, v := range cfg.InitialValues {
		initial[in] = v
	}
	state, _, err := c.apply(State{}, initial)
	if err != nil {
		return nil, fmt.Errorf("initial state: %w", err)
	}
	c.state = state
	return c, nil
}

func (c *Controller) State() State { return c.state }

func (c *Controller) Years() []int { return slices.Clone(c.cfg.Years) }

func (c *Controller) Phase(o Output) Phase { return c.phases[o] }

// Result returns the last rendered value of o.
func (c *Controller) Result(o Output) (Result, bool) {
	r, ok := c.results[o]
	return r, ok
}

// RenderAll computes every output, as for the first page load.
func (c *Controller) RenderAll() (*Update, error) {
	all := make(map[Input]bool)
	for _, in := range Inputs() {
		all[in] = true
	}
	return c.cycle(all)
}

// Render computes a single output from the current state without running a
// cycle. The state is already consistent, so option outputs never clear.
func (c *Controller) Render(o Output) (Result, error) {
	if _, ok := c.phases[o]; !ok {
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownOutput, string(o))
	}
	c.phases[o] = Recomputing
	var view *dataset.View
	res, _, err := c.compute(o, &view)
	if err != nil {
		c.phases[o] = Stale
		return Result{}, err
	}
	c.phases[o] = Rendered
	c.results[o] = res
	delete(c.dirty, o)
	return res, nil
}

// Set validates and applies input changes, then recomputes the outputs that
// depend on them. Values are in wire form: the empty string unsets an input.
// An invalid change rejects the whole set and leaves the session untouched.
func (c *Controller) Set(changes map[Input]string) (*Update, error) {
	next, changed, err := c.apply(c.state, changes)
	if err != nil {
		return nil, err
	}
	c.state = next
	if len(changed) == 0 {
		return &Update{State: c.state, Results: []Result{}}, nil
	}
	return c.cycle(changed)
}

// apply validates changes against cur and returns the new state and the
// inputs whose value actually changed.
func (c *Controller) apply(cur State, changes map[Input]string) (State, map[Input]bool, error) {
	next := cur
	for in, raw := range changes {
		var err error
		switch in {
		case InputMetric:
			next.Metric, err = chart.ParseMetric(raw)
		case InputYear:
			next.Year, err = c.parseYear(raw)
		case InputRegion:
			if raw != "" && !c.cfg.Table.HasRegion(raw) {
				err = fmt.Errorf("no region %q", raw)
			}
			next.Region = raw
		case InputSubRegion:
			if raw != "" && !c.cfg.Table.HasSubRegion(raw) {
				err = fmt.Errorf("no sub-region %q", raw)
			}
			next.SubRegion = raw
		case InputCountry:
			if raw != "" && !c.cfg.Table.HasCountry(raw) {
				err = fmt.Errorf("no country %q", raw)
			}
			next.Country = raw
		case InputRankMode:
			next.RankMode, err = chart.ParseRankMode(raw)
		default:
			return cur, nil, fmt.Errorf("%w: %q", ErrUnknownInput, string(in))
		}
		if err != nil {
			return cur, nil, fmt.Errorf("%w: %s: %v", ErrInvalidInput, in, err)
		}
	}

	// Explicit selections must be among the options the other selections
	// offer. Stale selections that were not part of this change are cleared
	// during the cycle instead.
	if v, ok := changes[InputSubRegion]; ok && !filter.Contains(filter.SubRegionsFor(c.cfg.Table, next.Region), v) {
		return cur, nil, fmt.Errorf("%w: sub_region %q is not in region %q", ErrInvalidInput, v, next.Region)
	}
	if v, ok := changes[InputCountry]; ok && !filter.Contains(filter.CountriesFor(c.cfg.Table, next.Region, next.SubRegion), v) {
		return cur, nil, fmt.Errorf("%w: country %q is not offered", ErrInvalidInput, v)
	}

	changed := make(map[Input]bool)
	curValues, nextValues := cur.Values(), next.Values()
	for _, in := range Inputs() {
		if curValues[in] != nextValues[in] {
			changed[in] = true
		}
	}
	return next, changed, nil
}

func (c *Controller) parseYear(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	year, err := strconv.Atoi(raw)
	if err != nil {
		return 0, err
	}
	if !slices.Contains(c.cfg.Years, year) {
		return 0, fmt.Errorf("year %d is not offered", year)
	}
	return year, nil
}

// cycle recomputes every output affected by changed, plus any output an
// earlier failed cycle left dirty. Option outputs may clear a selection; the
// clear joins the changed set so later outputs see it. Each output is computed
// at most once.
func (c *Controller) cycle(changed map[Input]bool) (*Update, error) {
	g := c.cfg.Graph
	for _, o := range g.Affected(changed) {
		c.phases[o] = Stale
	}

	u := &Update{Results: []Result{}}
	done := make(map[Output]bool)
	var view *dataset.View
	for _, o := range g.order {
		if done[o] || !(g.reads(o, changed) || c.dirty[o]) {
			continue
		}
		done[o] = true

		c.phases[o] = Recomputing
		start := time.Now()
		res, cleared, err := c.compute(o, &view)
		metrics.RecomputeDuration.WithLabelValues(string(o)).Observe(time.Since(start).Seconds())
		if err != nil {
			c.phases[o] = Stale
			for _, a := range g.Affected(changed) {
				if c.phases[a] == Stale {
					c.dirty[a] = true
				}
			}
			metrics.Recomputes.WithLabelValues(string(o), "error").Inc()
			c.log.Error("recompute failed", "output", o, "error", err)
			return nil, fmt.Errorf("recompute %s: %w", o, err)
		}
		metrics.Recomputes.WithLabelValues(string(o), "ok").Inc()
		c.phases[o] = Rendered
		c.results[o] = res
		delete(c.dirty, o)
		u.Results = append(u.Results, res)

		if cleared != "" {
			changed[cleared] = true
			u.Cleared = append(u.Cleared, cleared)
			metrics.ClearedInputs.WithLabelValues(string(cleared)).Inc()
			c.log.Debug("cleared stale selection", "input", cleared, "by", o)
		}
	}

	for _, in := range Inputs() {
		if changed[in] {
			u.Changed = append(u.Changed, in)
		}
	}
	u.State = c.state
	c.log.Debug("recompute cycle done", "changed", u.Changed, "outputs", len(u.Results))
	return u, nil
}

// compute evaluates one output. The filtered view is resolved lazily and
// shared by the charts of a cycle; it is resolved after the option outputs
// had their chance to clear selections.
func (c *Controller) compute(o Output, view **dataset.View) (Result, Input, error) {
	t := c.cfg.Table
	switch o {
	case OutputSubRegionOptions:
		opts := filter.SubRegionsFor(t, c.state.Region)
		if !filter.Contains(opts, c.state.SubRegion) {
			c.state.SubRegion = ""
			return Result{Output: o, Options: opts}, InputSubRegion, nil
		}
		return Result{Output: o, Options: opts}, "", nil
	case OutputCountryOptions:
		opts := filter.CountriesFor(t, c.state.Region, c.state.SubRegion)
		if !filter.Contains(opts, c.state.Country) {
			c.state.Country = ""
			return Result{Output: o, Options: opts}, InputCountry, nil
		}
		return Result{Output: o, Options: opts}, "", nil
	}

	build, ok := c.cfg.Builders[o]
	if !ok {
		return Result{}, "", fmt.Errorf("no builder for output %q", o)
	}
	if *view == nil {
		v := filter.Resolve(t, c.state.Selection())
		*view = &v
	}
	spec, err := build(**view, c.state, c.cfg.Chart)
	if err != nil {
		return Result{}, "", err
	}
	return Result{Output: o, Spec: spec}, "", nil
}
