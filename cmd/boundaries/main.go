package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/woozymasta/radiance/internal/geo"

	"github.com/jessevdk/go-flags"
	"gopkg.in/yaml.v3"
)

type Options struct {
	Input    string `short:"i" long:"in"       description:"Input GeoJSON boundaries. Reads from stdin if empty"`
	Output   string `short:"o" long:"out"      description:"Output file path. Writes to stdout if empty"`
	Format   string `short:"f" long:"format"   description:"Output format" choice:"json" choice:"yaml" default:"json"`
	Property string `short:"n" long:"property" description:"Feature property holding the municipality name" default:"NOMGEO"`
}

type summaryFile struct {
	Reference      geo.Point     `json:"reference" yaml:"reference"`
	Municipalities []geo.Summary `json:"municipalities" yaml:"municipalities"`
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

	// Read Input
	var inputData []byte
	var err error

	if opts.Input != "" {
		inputData, err = os.ReadFile(opts.Input)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading input file: %v\n", err)
			os.Exit(1)
		}
	} else {
		inputData, err = io.ReadAll(os.Stdin)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading stdin: %v\n", err)
			os.Exit(1)
		}
	}

	ms, err := geo.DecodeBoundaries(inputData, opts.Property)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error decoding boundaries: %v\n", err)
		os.Exit(1)
	}

	ref, summaries := geo.Summarize(ms)
	out := summaryFile{Reference: ref, Municipalities: summaries}

	for _, s := range summaries {
		if len(s.Spans) > 1 {
			fmt.Fprintf(os.Stderr, "Warning: %s spans tiles %v, measurements use %s\n", s.Name, s.Spans, s.Quadrant)
		}
	}

	// marshal
	var outputData []byte
	if opts.Format == "yaml" {
		outputData, err = yaml.Marshal(out)
	} else {
		outputData, err = json.MarshalIndent(out, "", "  ")
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error marshaling data: %v\n", err)
		os.Exit(1)
	}

	if opts.Output != "" {
		err = os.WriteFile(opts.Output, outputData, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error writing output file: %v\n", err)
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "Successfully summarized %d municipalities to %s (format: %s)\n", len(summaries), opts.Output, opts.Format)
	} else {
		fmt.Println(string(outputData))
	}
}
