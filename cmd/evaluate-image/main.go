// Command evaluate-image runs one evaluation from the command line and
// prints the record as JSON.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/raine/product-evaluator/internal/config"
	"github.com/raine/product-evaluator/internal/evaluation"
	"github.com/raine/product-evaluator/internal/evaluator"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	image := flag.String("image", "", "Image path, http(s) URL or data: URL")
	niche := flag.String("niche", "", "Niche or category label")
	cost := flag.Float64("cost", 0, "Known supplier cost in USD")
	verbose := flag.Bool("v", false, "Debug logging")
	flag.Parse()

	if *image == "" {
		fmt.Fprintf(os.Stderr, "Usage: %s -image <path|url> [-niche <niche>] [-cost <usd>]\n", os.Args[0])
		os.Exit(2)
	}

	level := zerolog.InfoLevel
	if *verbose {
		level = zerolog.DebugLevel
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level)

	config.LoadEnvFile()
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	ref, err := imageRef(*image)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to read image")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	o, err := evaluator.FromConfig(ctx, cfg, nil)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize evaluator")
	}

	rec, err := o.Evaluate(ctx, evaluation.Request{Image: ref, CostHint: *cost, Niche: *niche})
	if err != nil {
		log.Fatal().Err(err).Msg("evaluation failed")
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rec); err != nil {
		log.Fatal().Err(err).Msg("failed to encode record")
	}
}

func imageRef(s string) (evaluation.ImageRef, error) {
	if strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") || strings.HasPrefix(s, "data:") {
		return evaluation.ImageRef{URL: s}, nil
	}
	data, err := os.ReadFile(s)
	if err != nil {
		return evaluation.ImageRef{}, err
	}
	return evaluation.ImageRef{Data: data}, nil
}
