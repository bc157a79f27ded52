package server

import (
	"errors"
	"time"

	"github.com/sudorandom/gapdash/pkg/chart"
	"github.com/sudorandom/gapdash/pkg/config"
	"github.com/sudorandom/gapdash/pkg/dataset"
	"github.com/sudorandom/gapdash/pkg/utils"
)

const (
	defaultSessionTTL      = 30 * time.Minute
	defaultShutdownTimeout = 10 * time.Second
	defaultMaxMessageSize  = 64 << 10
)

type Config struct {
	Table     *dataset.Table
	Dashboard *config.Config
	Chart     chart.Options

	// Optional configuration.
	Cache           *utils.RenderCache
	Locator         *VisitorLocator
	SessionTTL      time.Duration
	ShutdownTimeout time.Duration
	MaxMessageSize  int64
}

func (c *Config) Validate() error {
	if c.Table == nil {
		return errors.New("table is required")
	}
	if c.Dashboard == nil {
		return errors.New("dashboard config is required")
	}
	if c.Chart.Width <= 0 || c.Chart.Height <= 0 {
		c.Chart = c.Dashboard.ChartOptions()
	}

	// Optional configuration.
	if c.SessionTTL <= 0 {
		c.SessionTTL = defaultSessionTTL
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = defaultShutdownTimeout
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = defaultMaxMessageSize
	}
	return nil
}
