// Copyright 2019 eBay Inc.
// Primary authors: Simon Fell, Diego Ongaro,
//                  Raymond Kroeker, and Sathish Kandasamy.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
// https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Command joinpath optimizes and evaluates join paths in MAL programs.
package main

import (
	"context"
	"os"

	docopt "github.com/docopt/docopt-go"
	"github.com/ebay/joinpath/config"
	"github.com/ebay/joinpath/query/exec"
	"github.com/ebay/joinpath/util/debuglog"
	"github.com/ebay/joinpath/util/tracing"
	opentracing "github.com/opentracing/opentracing-go"
	log "github.com/sirupsen/logrus"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var fmtr = message.NewPrinter(language.English)

const usage = `joinpath is a command-line tool for optimizing and evaluating join paths in
MAL programs.

Usage:
  joinpath [--config=FILE --trace --debug] optimize [--dot=FILE] PROGRAM...
  joinpath [--config=FILE --trace --debug] eval [--noopt --explain] PROGRAM DATA
  joinpath [--config=FILE] costrules

Options:
  --config=FILE    Read settings from this JSON file instead of using the defaults.
  --trace          Log every rewritten instruction and every join attempt.
  --debug          Log at Debug level.
  --dot=FILE       Draw the optimized program with Graphviz. The format is taken
                   from the file extension (dot, pdf, png, svg). Only valid with
                   a single PROGRAM.
  --noopt          Evaluate the program as written, without optimizing it first.
  --explain        Print every pairwise join with its estimated cost.

Examples:
  # Print the optimized program.
  joinpath optimize query.mal

  # Draw the optimized program.
  joinpath optimize --dot=query.svg query.mal

  # Evaluate a program against BATs read from a JSON file, which maps each
  # input name to its list of [head, tail] pairs.
  joinpath eval --explain query.mal data.json
`

type options struct {
	ConfigFile string `docopt:"--config"`
	Trace      bool   `docopt:"--trace"`
	Debug      bool   `docopt:"--debug"`

	// Optimize
	Optimize bool     `docopt:"optimize"`
	DotFile  string   `docopt:"--dot"`
	Programs []string `docopt:"PROGRAM"`

	// Eval
	Eval     bool   `docopt:"eval"`
	NoOpt    bool   `docopt:"--noopt"`
	Explain  bool   `docopt:"--explain"`
	DataFile string `docopt:"DATA"`

	// CostRules
	CostRules bool `docopt:"costrules"`
}

func parseArgs() *options {
	opts, err := docopt.ParseDoc(usage)
	if err != nil {
		log.Fatalf("Error parsing command-line arguments: %v", err)
	}
	var options options
	err = opts.Bind(&options)
	if err != nil {
		log.Fatalf("Error binding command-line arguments: %v\nfrom: %+v", err, opts)
	}
	if options.DotFile != "" && len(options.Programs) != 1 {
		log.Fatalf("--dot requires exactly one PROGRAM, got %d", len(options.Programs))
	}
	return &options
}

// settings is everything the subcommands need, resolved from the options and
// the configuration file.
type settings struct {
	cfg       *config.Config
	costModel *exec.CostModel
	trace     bool
}

func loadSettings(options *options) (*settings, error) {
	cfg := config.Default()
	if options.ConfigFile != "" {
		var err error
		cfg, err = config.Load(options.ConfigFile)
		if err != nil {
			return nil, err
		}
	}
	costModel, err := exec.NewCostModel(cfg.CostModel)
	if err != nil {
		return nil, err
	}
	return &settings{
		cfg:       cfg,
		costModel: costModel,
		trace:     options.Trace || cfg.Optimizer.Trace,
	}, nil
}

func main() {
	options := parseArgs()
	debuglog.Configure(debuglog.Options{Debug: options.Debug || options.Trace})
	ctx := context.Background()

	s, err := loadSettings(options)
	if err != nil {
		log.Fatalf("Error loading configuration: %v", err)
	}
	if options.CostRules {
		printCostRules(s, os.Stdout)
		return
	}
	if s.cfg.Tracing != nil {
		tracer, err := tracing.New("joinpath", s.cfg.Tracing)
		if err != nil {
			log.WithError(err).Warn("Could not initialize OpenTracing tracer")
		} else {
			defer tracer.Close()
		}
	}
	span, ctx := opentracing.StartSpanFromContext(ctx, "joinpath run")
	defer span.Finish()

	switch {
	case options.Optimize:
		err = optimizeFiles(ctx, s, options.Programs, options.DotFile, os.Stdout)
		if err != nil {
			log.Fatalf("Error optimizing: %v", err)
		}
	case options.Eval:
		err = evalFile(ctx, s, options.Programs[0], options.DataFile, evalOptions{
			optimize: !options.NoOpt,
			explain:  options.Explain,
		}, os.Stdout)
		if err != nil {
			log.Fatalf("Error evaluating: %v", err)
		}
	}
}
