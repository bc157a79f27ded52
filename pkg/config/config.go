// Package config holds the dashboard presentation settings: which years the
// year control offers, the initial input values and the chart layout.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/sudorandom/gapdash/pkg/chart"
)

//go:embed dashboard.yaml
var defaultYAML []byte

type Config struct {
	Years    Years    `yaml:"years"`
	Defaults Defaults `yaml:"defaults"`
	Chart    Chart    `yaml:"chart"`
}

// Years configures the year control. A non-nil Range replaces Values.
type Years struct {
	Values  []int      `yaml:"values"`
	Range   *YearRange `yaml:"range"`
	Default int        `yaml:"default"`
}

type YearRange struct {
	Start int `yaml:"start"`
	End   int `yaml:"end"`
	Step  int `yaml:"step"`
}

type Defaults struct {
	Metric   string `yaml:"metric"`
	RankMode string `yaml:"rank_mode"`
}

type Chart struct {
	Width       int                               `yaml:"width"`
	Height      int                               `yaml:"height"`
	FontSize    float64                           `yaml:"font_size"`
	Geometry    string                            `yaml:"geometry"`
	Projections map[string]chart.RegionProjection `yaml:"projections"`
}

// Default returns the built-in configuration.
func Default() *Config {
	c, err := Parse(defaultYAML)
	if err != nil {
		panic(fmt.Sprintf("built-in config: %v", err))
	}
	return c
}

// Load reads a YAML file over the built-in configuration, so a file only
// needs the settings it changes. An empty path returns the default.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c, err := parseOver(Default(), raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Parse decodes and validates a complete configuration.
func Parse(raw []byte) (*Config, error) {
	return parseOver(&Config{}, raw)
}

func parseOver(c *Config, raw []byte) (*Config, error) {
	if err := yaml.Unmarshal(raw, c); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) Validate() error {
	if c.Years.Range != nil {
		r := c.Years.Range
		if r.Step <= 0 {
			return errors.New("years.range.step must be positive")
		}
		if r.End < r.Start {
			return errors.New("years.range.end is before years.range.start")
		}
	}
	years := c.YearChoices()
	if len(years) == 0 {
		return errors.New("no years configured")
	}
	if c.Years.Default == 0 {
		c.Years.Default = years[0]
	}
	if !slices.Contains(years, c.Years.Default) {
		return fmt.Errorf("default year %d is not offered", c.Years.Default)
	}

	if c.Defaults.Metric == "" {
		c.Defaults.Metric = string(chart.LifeExpectancy)
	}
	if _, err := chart.ParseMetric(c.Defaults.Metric); err != nil {
		return fmt.Errorf("defaults.metric: %w", err)
	}
	mode, err := chart.ParseRankMode(c.Defaults.RankMode)
	if err != nil {
		return fmt.Errorf("defaults.rank_mode: %w", err)
	}
	c.Defaults.RankMode = string(mode)

	if c.Chart.Width <= 0 || c.Chart.Height <= 0 {
		return errors.New("chart width and height must be positive")
	}
	for region, p := range c.Chart.Projections {
		if p.Scale <= 0 {
			return fmt.Errorf("chart.projections.%s: scale must be positive", region)
		}
	}
	return nil
}

// YearChoices returns the years offered by the year control in order.
func (c *Config) YearChoices() []int {
	if r := c.Years.Range; r != nil {
		var years []int
		if r.Step <= 0 {
			return nil
		}
		for y := r.Start; y <= r.End; y += r.Step {
			years = append(years, y)
		}
		return years
	}
	return slices.Clone(c.Years.Values)
}

// ChartOptions converts the chart section. Geometry is loaded by the caller.
func (c *Config) ChartOptions() chart.Options {
	return chart.Options{
		Width:       c.Chart.Width,
		Height:      c.Chart.Height,
		Projections: c.Chart.Projections,
		FontSize:    c.Chart.FontSize,
	}
}
