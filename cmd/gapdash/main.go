package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"

	"github.com/sudorandom/gapdash/pkg/chart"
	"github.com/sudorandom/gapdash/pkg/config"
	"github.com/sudorandom/gapdash/pkg/dataset"
	"github.com/sudorandom/gapdash/pkg/metrics"
	"github.com/sudorandom/gapdash/pkg/server"
	"github.com/sudorandom/gapdash/pkg/sources"
	"github.com/sudorandom/gapdash/pkg/utils"
)

var (
	// Set by LDFLAGS
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// DataFlags locate the two dataset sources. Either may be a path or a URL.
type DataFlags struct {
	Metrics  string `help:"Metrics CSV (country, year, region, ...)." default:"${metrics_path}" env:"GAPDASH_METRICS"`
	IDs      string `name:"ids" help:"Country identifier CSV (country, id)." default:"${ids_path}" env:"GAPDASH_IDS"`
	CacheDir string `help:"Directory for downloaded remote sources." env:"GAPDASH_CACHE_DIR"`
}

func (f DataFlags) load(log *slog.Logger) (*dataset.Table, error) {
	t, err := dataset.LoadSources(log, f.Metrics, f.IDs, f.CacheDir)
	if err != nil {
		return nil, err
	}
	report := t.JoinReport()
	log.Info("dataset loaded", "rows", t.Len(), "fingerprint", t.Fingerprint(), "clean_join", report.Clean())
	return t, nil
}

type ServeCmd struct {
	DataFlags `embed:""`

	Listen          string        `help:"Address to serve the dashboard on." default:":8050" env:"GAPDASH_LISTEN"`
	Config          string        `help:"Dashboard YAML overriding the built-in settings." type:"path" env:"GAPDASH_CONFIG"`
	RenderCache     string        `help:"Badger directory for rendered charts. Empty keeps them in memory." env:"GAPDASH_RENDER_CACHE"`
	RenderCacheTTL  time.Duration `help:"How long rendered charts are kept. Zero keeps them until the dataset changes." env:"GAPDASH_RENDER_CACHE_TTL"`
	GeoIPDB         string        `name:"geoip-db" help:"MaxMind database used to count visitors by continent." type:"path" env:"GAPDASH_GEOIP_DB"`
	SessionTTL      time.Duration `help:"Idle time before a session is dropped." default:"30m" env:"GAPDASH_SESSION_TTL"`
	ShutdownTimeout time.Duration `help:"Grace period for open connections on shutdown." default:"10s" env:"GAPDASH_SHUTDOWN_TIMEOUT"`
}

func (c *ServeCmd) Run(log *slog.Logger) error {
	metrics.BuildInfo.WithLabelValues(version).Set(1)

	dash, err := config.Load(c.Config)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	table, err := c.load(log)
	if err != nil {
		return fmt.Errorf("failed to load dataset: %w", err)
	}
	report := table.JoinReport()
	metrics.DatasetRows.Set(float64(table.Len()))
	metrics.DatasetJoinMismatches.WithLabelValues("metrics").Set(float64(len(report.MetricsOnly)))
	metrics.DatasetJoinMismatches.WithLabelValues("identifiers").Set(float64(len(report.IdentifiersOnly)))
	if !report.Clean() {
		log.Warn("dataset sources do not fully match, run inspect for details",
			"metrics_only", len(report.MetricsOnly), "identifiers_only", len(report.IdentifiersOnly))
	}

	opts := dash.ChartOptions()
	if dash.Chart.Geometry != "" {
		geo, err := loadGeometry(log, dash.Chart.Geometry, c.CacheDir)
		if err != nil {
			return fmt.Errorf("failed to load geometry: %w", err)
		}
		log.Info("geometry loaded", "source", dash.Chart.Geometry, "features", geo.Features())
		opts.Geometry = geo
	}

	cache, err := utils.OpenRenderCache(c.RenderCache, c.RenderCacheTTL)
	if err != nil {
		return fmt.Errorf("failed to open render cache: %w", err)
	}
	defer cache.Close()

	var locator *server.VisitorLocator
	if c.GeoIPDB != "" {
		locator, err = server.OpenVisitorLocator(c.GeoIPDB)
		if err != nil {
			return fmt.Errorf("failed to open geoip database: %w", err)
		}
		defer locator.Close()
	}

	srv, err := server.New(log, server.Config{
		Table:           table,
		Dashboard:       dash,
		Chart:           opts,
		Cache:           cache,
		Locator:         locator,
		SessionTTL:      c.SessionTTL,
		ShutdownTimeout: c.ShutdownTimeout,
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	pruned, err := cache.Prune(srv.CacheNamespace() + "/")
	if err != nil {
		return fmt.Errorf("failed to prune render cache: %w", err)
	}
	if pruned > 0 {
		log.Info("pruned renders of a previous dataset or chart setup", "entries", pruned)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	listener, err := net.Listen("tcp", c.Listen)
	if err != nil {
		return fmt.Errorf("failed to create listener: %w", err)
	}
	defer listener.Close()

	errCh := srv.Start(ctx, cancel, listener)
	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		log.Info("context done, stopping")
		// Wait for in-flight requests to drain.
		if err := <-errCh; err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}
	return nil
}

func loadGeometry(log *slog.Logger, src, cacheDir string) (*chart.Geometry, error) {
	r, err := utils.OpenSource(log, src, cacheDir, "[geometry]")
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return chart.LoadGeometry(r)
}

type InspectCmd struct {
	DataFlags `embed:""`
}

func (c *InspectCmd) Run(log *slog.Logger) error {
	table, err := c.load(log)
	if err != nil {
		return err
	}
	report := table.JoinReport()
	fmt.Printf("rows:        %d\n", table.Len())
	fmt.Printf("countries:   %d\n", len(table.Countries()))
	fmt.Printf("regions:     %s\n", strings.Join(table.Regions(), ", "))
	fmt.Printf("years:       %v\n", table.Years())
	fmt.Printf("fingerprint: %s\n", table.Fingerprint())
	printNames("only in metrics", report.MetricsOnly)
	printNames("only in identifiers", report.IdentifiersOnly)
	printNames("duplicate identifiers", report.DuplicateIDNames)
	return nil
}

func printNames(label string, names []string) {
	if len(names) == 0 {
		return
	}
	fmt.Printf("%s (%d):\n", label, len(names))
	for _, n := range names {
		fmt.Printf("  %s\n", n)
	}
}

// IDsCmd writes an identifier table for the countries of a metrics file,
// resolving names to ISO 3166-1 numeric codes.
type IDsCmd struct {
	Metrics  string `help:"Metrics CSV to read country names from." default:"${metrics_path}" env:"GAPDASH_METRICS"`
	CacheDir string `help:"Directory for downloaded remote sources." env:"GAPDASH_CACHE_DIR"`
	Output   string `short:"o" help:"Write to this file instead of stdout." type:"path"`
}

func (c *IDsCmd) Run(log *slog.Logger) error {
	r, err := utils.OpenSource(log, c.Metrics, c.CacheDir, "[metrics]")
	if err != nil {
		return err
	}
	defer r.Close()
	table, err := dataset.Load(r, strings.NewReader("country,id\n"))
	if err != nil {
		return err
	}

	found, unresolved := sources.DeriveIDs(table.Countries())
	for _, name := range unresolved {
		log.Warn("no ISO code for country", "country", name)
	}

	w := os.Stdout
	if c.Output != "" {
		f, err := os.Create(c.Output)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	if err := sources.WriteIDs(w, found); err != nil {
		return err
	}
	log.Info("identifiers derived", "found", len(found), "unresolved", len(unresolved))
	return nil
}

type CLI struct {
	Verbose bool             `short:"v" help:"Show debug logs." env:"GAPDASH_VERBOSE"`
	Version kong.VersionFlag `help:"Show version and exit."`

	Serve   ServeCmd   `cmd:"" default:"withargs" help:"Serve the dashboard."`
	Inspect InspectCmd `cmd:"" help:"Load the dataset and report how the two sources joined."`
	IDs     IDsCmd     `cmd:"" name:"ids" help:"Derive a country identifier CSV from a metrics file."`
}

func main() {
	if err := run(); err != nil {
		log.Fatalf("failed to run: %v", err)
	}
}

func run() error {
	// Load .env file if it exists
	_ = godotenv.Load()

	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("gapdash"),
		kong.Description("Gapminder dashboard: maps and charts of life expectancy, child mortality and population density."),
		kong.Vars{
			"version":      fmt.Sprintf("version: %s, commit: %s, date: %s", version, commit, date),
			"metrics_path": sources.DefaultMetricsPath,
			"ids_path":     sources.DefaultIDsPath,
		},
	)
	return ctx.Run(newLogger(cli.Verbose))
}

func newLogger(verbose bool) *slog.Logger {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	log := slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level: logLevel,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				a.Value = slog.StringValue(formatRFC3339Millis(a.Value.Time()))
			}
			if s, ok := a.Value.Any().(string); ok && s == "" {
				return slog.Attr{}
			}
			return a
		},
	}))
	return log
}

func formatRFC3339Millis(t time.Time) string {
	t = t.UTC()
	base := t.Format("2006-01-02T15:04:05")
	ms := t.Nanosecond() / 1_000_000
	return fmt.Sprintf("%s.%03dZ", base, ms)
}
