package main

import (
	"context"
	"crypto/tls"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/woozymasta/radiance/internal/config"
	"github.com/woozymasta/radiance/internal/laads"
	"github.com/woozymasta/radiance/internal/logger"
	"github.com/woozymasta/radiance/internal/processor"
	"github.com/woozymasta/radiance/internal/raster"
	"github.com/woozymasta/radiance/internal/report"
	"github.com/woozymasta/radiance/internal/stats"
)

type Options struct {
	Logger logger.Logger `group:"Logger options"`

	ConfigFile  string   `short:"c" long:"config"      env:"CONFIG_FILE" description:"Path to configuration file" default:"config.yaml"`
	EnvFile     string   `short:"e" long:"env-file"    env:"ENV_FILE"    description:"Dotenv file with the archive token" default:".env"`
	Dates       []string `short:"d" long:"date"        description:"Date to process, YYYY-MM-DD or dd-mm-yy (repeatable)"`
	From        string   `short:"f" long:"from"        description:"First date of a range"`
	To          string   `short:"t" long:"to"          description:"Last date of a range (defaults to --from)"`
	Limit       []string `short:"l" long:"limit"       env:"LIMIT_NAMES" description:"Limit processing to specific municipality names"`
	Concurrency int      `short:"p" long:"concurrency" env:"CONCURRENCY" description:"Concurrent tiles" default:"4"`
	Scale       int      `short:"s" long:"scale"       env:"SCALE_FACTOR" description:"Override the configured scale factor"`
	Output      string   `short:"o" long:"out"         description:"Extra report file (.csv, .json, .yaml)"`
	KeepTiles   bool     `short:"k" long:"keep-tiles"  description:"Keep downloaded tiles in the cache directory"`
	Overlays    bool     `short:"O" long:"overlays"    description:"Write diagnostic overlays"`
}

func main() {
	var opts Options
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	opts.Logger.Setup()

	if err := godotenv.Load(opts.EnvFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Str("path", opts.EnvFile).Msg("Failed to read env file")
	}

	cfg, err := config.Load(opts.ConfigFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if opts.Scale > 0 {
		cfg.ScaleFactor = opts.Scale
	}
	if opts.Overlays {
		cfg.Overlays = true
	}

	dates, err := resolveDates(opts, time.Now())
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid dates")
	}

	token := os.Getenv(cfg.Product.TokenEnv)
	if token == "" {
		log.Warn().Str("env", cfg.Product.TokenEnv).Msg("Archive token not set, requests are anonymous")
	}

	client := &http.Client{
		Transport: &http.Transport{
			TLSNextProto:        make(map[string]func(string, *tls.Conn) http.RoundTripper),
			MaxIdleConns:        opts.Concurrency * 2,
			MaxIdleConnsPerHost: opts.Concurrency * 2,
		},
		Timeout: cfg.Product.Timeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	boundaries, err := processor.LoadBoundaries(ctx, client, cfg.Boundaries.Path, cfg.Boundaries.NameProperty)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.Boundaries.Path).Msg("Failed to load boundaries")
	}

	targets := processor.Targets(boundaries, cfg.Municipalities, opts.Limit)
	if len(targets) == 0 {
		log.Fatal().Msg("No municipalities to process")
	}

	p := &processor.Processor{
		Fetcher:     laads.New(client, cfg.Archive(token)),
		Extension:   cfg.Product.Extension,
		Rasterizer:  cfg.Rasterizer(),
		Load:        raster.LoadOptions{Scale: cfg.Product.Scale, Offset: cfg.Product.Offset},
		Concurrency: opts.Concurrency,
		CacheDir:    cfg.CacheDir,
		KeepTiles:   opts.KeepTiles,
	}
	if cfg.Overlays {
		p.OverlayDir = cfg.OverlayDir()
	}

	log.Info().
		Str("product", cfg.Product.Name).
		Int("boundaries_total", len(boundaries)).
		Int("municipalities_queued", len(targets)).
		Int("scale", cfg.ScaleFactor).
		Msg("Starting radiance extraction")

	rep, err := p.Run(ctx, dates, targets)
	if rep == nil {
		log.Fatal().Err(err).Msg("Failed to start batch")
	}
	if err != nil {
		log.Error().Err(err).Msg("Batch interrupted, writing partial results")
	}

	previous, err := report.ReadFile(cfg.MeasurementsPath())
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Fatal().Err(err).Str("path", cfg.MeasurementsPath()).Msg("Failed to read measurements")
	}
	table := report.Merge(previous, rep.Rows)
	if err := report.WriteFile(cfg.MeasurementsPath(), table); err != nil {
		log.Fatal().Err(err).Str("path", cfg.MeasurementsPath()).Msg("Failed to write measurements")
	}
	log.Info().Str("path", cfg.MeasurementsPath()).Int("rows", len(table)).Msg("Measurements updated")

	if opts.Output != "" {
		report.Sort(rep.Rows)
		if err := report.WriteFile(opts.Output, rep.Rows); err != nil {
			log.Fatal().Err(err).Str("path", opts.Output).Msg("Failed to write report")
		}
		log.Info().Str("path", opts.Output).Int("rows", len(rep.Rows)).Msg("Report written")
	}

	if len(rep.Rows) == 0 && len(rep.Failures) > 0 {
		log.Fatal().Int("failures", len(rep.Failures)).Msg("No measurements produced")
	}

	log.Info().
		Int("measurements", len(rep.Rows)).
		Int("failures", len(rep.Failures)).
		Msg("Radiance extraction finished")
}

// resolveDates expands the date options. Without any, yesterday is used.
func resolveDates(opts Options, now time.Time) ([]stats.Date, error) {
	var dates []stats.Date
	for _, s := range opts.Dates {
		d, err := stats.ParseDate(s)
		if err != nil {
			return nil, err
		}
		dates = append(dates, d)
	}

	if opts.From != "" {
		first, err := stats.ParseDate(opts.From)
		if err != nil {
			return nil, err
		}
		last := first
		if opts.To != "" {
			if last, err = stats.ParseDate(opts.To); err != nil {
				return nil, err
			}
		}
		if last.Before(first) {
			return nil, errors.New("--to is before --from")
		}
		dates = append(dates, stats.DateRange(first, last)...)
	}

	if len(dates) == 0 {
		dates = append(dates, stats.DateOf(now).AddDays(-1))
	}
	return dates, nil
}
