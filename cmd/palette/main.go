// Command palette prints the dominant colours of an image.
//
//	palette -k 6 -space lab -policy reseed-nearest -seed 42 image.png
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/oho/palette-refinery/internal/kmeans"
	"github.com/oho/palette-refinery/internal/palette"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "palette:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("palette", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		k        = fs.Int("k", 5, "number of colours")
		space    = fs.String("space", "lab", "colour space: rgb, lab or luv")
		policy   = fs.String("policy", string(kmeans.PolicyReseedNearest), "empty-cluster policy")
		metric   = fs.String("metric", "euclidean", "distance metric")
		seed     = fs.Int64("seed", -1, "random seed; negative picks one at random")
		maxDim   = fs.Int("max-dim", 256, "downscale the longer side to at most this many pixels (0 keeps the original)")
		maxIter  = fs.Int("max-iter", 100, "iteration cap")
		workers  = fs.Int("workers", 1, "assignment goroutines")
		asJSON   = fs.Bool("json", false, "print the palette as JSON")
		showMeta = fs.Bool("v", false, "print convergence details")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return fmt.Errorf("expected one image path, got %d", fs.NArg())
	}

	opts := palette.DefaultOptions()
	cs, err := palette.ParseColorSpace(*space)
	if err != nil {
		return err
	}
	opts.ColorSpace = cs
	opts.Sampling.MaxDimension = *maxDim

	m, err := kmeans.MetricByName(*metric)
	if err != nil {
		return err
	}
	p, err := kmeans.ParsePolicy(*policy)
	if err != nil {
		return err
	}
	opts.Cluster.K = *k
	opts.Cluster.Metric = m
	opts.Cluster.Policy = p
	opts.Cluster.MaxIterations = *maxIter
	opts.Cluster.Workers = *workers
	if *seed >= 0 {
		s := uint64(*seed)
		opts.Cluster.Seed = &s
	}

	img, _, err := palette.DecodeFile(fs.Arg(0))
	if err != nil {
		return err
	}
	pal, err := palette.Extract(ctx, img, opts)
	if err != nil {
		return err
	}

	if *asJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(pal)
	}
	for _, s := range pal.Swatches {
		fmt.Fprintf(stdout, "%s  %.4f\n", s.Hex, s.Weight)
	}
	if *showMeta {
		fmt.Fprintf(stderr, "samples=%d iterations=%d restarts=%d converged=%v inertia=%.2f\n",
			pal.SampleCount, pal.Iterations, pal.Restarts, pal.Converged, pal.Inertia)
	}
	return nil
}
