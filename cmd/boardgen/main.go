package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/vanshika/pursuit/backend/internal/board"
	"github.com/vanshika/pursuit/backend/internal/generator"
)

func main() {
	cfg := generator.DefaultConfig()
	var (
		name        = flag.String("name", cfg.Name, "board name, also the output file name")
		nodes       = flag.Int("nodes", cfg.NumNodes, "number of nodes on the board")
		taxiChance  = flag.Float64("taxi-chance", cfg.ExtraTaxiChance, "probability of an extra taxi link per node")
		busChance   = flag.Float64("bus-chance", cfg.BusChance, "probability of a bus link per node")
		underground = flag.Int("underground-every", cfg.UndergroundEvery, "spacing of underground stations; 0 disables the line")
		seed        = flag.Int64("seed", cfg.Seed, "random seed for deterministic generation")
		outputDir   = flag.String("output-dir", "boards", "directory to write <name>.yaml")
		withJSON    = flag.Bool("json", false, "also write the per-node adjacency documents as <name>.json")
		writeStdout = flag.Bool("stdout", false, "write the board YAML to stdout instead of a file")
	)
	flag.Parse()

	genCfg := generator.Config{
		Name:             *name,
		NumNodes:         *nodes,
		ExtraTaxiChance:  clampProbability(*taxiChance),
		BusChance:        clampProbability(*busChance),
		UndergroundEvery: *underground,
		Seed:             *seed,
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	spec, err := generator.New(genCfg).Generate(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "generation failed: %v\n", err)
		os.Exit(1)
	}

	if *writeStdout {
		data, err := board.Encode(spec)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to encode board: %v\n", err)
			os.Exit(1)
		}
		_, _ = os.Stdout.Write(data)
		return
	}

	path, err := generator.WriteBoard(spec, *outputDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to write board: %v\n", err)
		os.Exit(1)
	}
	if *withJSON {
		jsonPath := filepath.Join(*outputDir, spec.Name+".json")
		if err := generator.WriteAdjacencyJSON(spec, jsonPath); err != nil {
			fmt.Fprintf(os.Stderr, "failed to write adjacency json: %v\n", err)
			os.Exit(1)
		}
	}

	fmt.Fprintf(os.Stdout, "Generated board %q with %d nodes into %s\n", spec.Name, len(spec.Nodes), path)
}

func clampProbability(value float64) float64 {
	if value < 0 {
		return 0
	}
	if value > 1 {
		return 1
	}
	return value
}
