package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/gilchrisn/bigraph-clustering-service/pkg/pipeline"
)

func main() {
	os.Exit(run(os.Args, os.Stdout))
}

func printUsage(w io.Writer, prog string) {
	fmt.Fprintf(w, "Usage: %s ALGORITHM DATASET PARAM ITERATIONS [config.yaml]\n", prog)
	fmt.Fprintf(w, "  ALGORITHM:  %s\n", strings.Join(pipeline.Algorithms(), "|"))
	fmt.Fprintln(w, "  DATASET:    reads {input_dir}/{DATASET}_all.csv")
	fmt.Fprintln(w, "  PARAM:      resolution (modularity) or minimum Jaccard similarity (mroc)")
	fmt.Fprintln(w, "  ITERATIONS: number of coarsening iterations")
}

// parseArgs applies the positional arguments on top of the optional config file.
func parseArgs(args []string) (*pipeline.Config, error) {
	if len(args) != 5 && len(args) != 6 {
		return nil, fmt.Errorf("expected 4 or 5 arguments, got %d", len(args)-1)
	}

	param, err := strconv.ParseFloat(args[3], 64)
	if err != nil {
		return nil, fmt.Errorf("invalid PARAM %q: %w", args[3], err)
	}
	iterations, err := strconv.Atoi(args[4])
	if err != nil {
		return nil, fmt.Errorf("invalid ITERATIONS %q: %w", args[4], err)
	}

	config := pipeline.NewConfig()
	if len(args) == 6 {
		if err := config.LoadFromFile(args[5]); err != nil {
			return nil, fmt.Errorf("failed to load config %s: %w", args[5], err)
		}
	}
	config.Set("run.algorithm", strings.ToLower(args[1]))
	config.Set("run.dataset", args[2])
	config.Set("run.param", param)
	config.Set("run.iterations", iterations)
	return config, nil
}

func run(args []string, stdout io.Writer) int {
	config, err := parseArgs(args)
	if err != nil {
		fmt.Fprintf(stdout, "Error: %v\n", err)
		printUsage(stdout, args[0])
		return 1
	}

	driver, err := pipeline.NewDriver(config)
	if err != nil {
		fmt.Fprintf(stdout, "Error: %v\n", err)
		printUsage(stdout, args[0])
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	manifest, err := driver.Run(ctx)
	if err != nil {
		fmt.Fprintf(stdout, "Run failed: %v\n", err)
		return 1
	}

	fmt.Fprintf(stdout, "\n=== Results (run %s) ===\n", manifest.RunID)
	for _, level := range manifest.Levels {
		fmt.Fprintf(stdout, "Iteration %d: %d communities, modularity %.6f, next graph %d edges\n",
			level.Iteration, level.Communities, level.Modularity, level.NextEdges)
	}
	fmt.Fprintf(stdout, "Output: %s\n", manifest.Root)
	return 0
}
