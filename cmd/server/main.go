package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/woozymasta/radiance/internal/config"
	"github.com/woozymasta/radiance/internal/geo"
	"github.com/woozymasta/radiance/internal/logger"
	"github.com/woozymasta/radiance/internal/server"

	"github.com/jessevdk/go-flags"
	"github.com/rs/zerolog/log"
)

type Options struct {
	Logger logger.Logger `group:"Logger options"`

	ConfigFile string `short:"c" long:"config" env:"CONFIG_FILE"    description:"Path to configuration file" default:"config.yaml"`
	Addr       string `short:"a" long:"addr"   env:"LISTEN_ADDRESS" description:"Address to listen on"       default:"0.0.0.0"`
	Port       int    `short:"p" long:"port"   env:"LISTEN_PORT"    description:"Port to listen on"          default:"8080"`
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

	// Setup Logging
	opts.Logger.Setup()

	// Load Config
	cfg, err := config.Load(opts.ConfigFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	boundaries, err := geo.LoadBoundaries(cfg.Boundaries.Path, cfg.Boundaries.NameProperty)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.Boundaries.Path).Msg("Failed to load boundaries")
	}

	srvCtx := server.NewServerContext(cfg, boundaries)

	listenAddr := fmt.Sprintf("%s:%d", opts.Addr, opts.Port)
	log.Info().
		Str("addr", listenAddr).
		Int("municipalities_loaded", len(srvCtx.Municipalities)).
		Str("measurements", cfg.MeasurementsPath()).
		Msg("Web server started")

	if err := http.ListenAndServe(listenAddr, srvCtx.Handler()); err != nil {
		log.Fatal().Err(err).Msg("Server failed")
	}
}
