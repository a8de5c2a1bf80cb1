package main

import (
	"flag"
	"fmt"
	"os"

	"ticketsim/cmd/mockgen/engine"
	"ticketsim/internal/reference"
	"ticketsim/internal/rng"
)

func main() {
	scenario := flag.String("scenario", "mild", "Scenario to generate: mild, chaos, drift")
	distribution := flag.String("distribution", "uniform", "Distribution to use: uniform, weibull")
	outDir := flag.String("out", "./.cache", "Output directory for mock files")
	count := flag.Int("count", 2000, "Number of reference tickets to generate")
	families := flag.Int("families", 5, "Number of families")
	year := flag.Int("year", 0, "Calendar year of the records (default: last year)")
	seed := flag.Int64("seed", 42, "Random seed")
	flag.Parse()

	cfg := engine.GeneratorConfig{
		Scenario:     *scenario,
		Distribution: *distribution,
		Count:        *count,
		Families:     *families,
		Year:         *year,
	}

	fmt.Printf("Generating scenario '%s' (Distribution: %s, Count: %d) to %s...\n", cfg.Scenario, cfg.Distribution, cfg.Count, *outDir)

	src := rng.New(seed)
	records := engine.Generate(cfg, src)
	bundle, report, err := reference.Mine(records, src)
	if err != nil {
		fmt.Printf("Failed to mine reference data: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Mined %d records (%d families repaired, %d timestamps repaired, %d dropped)\n",
		report.Records, report.RepairedFamilies, report.RepairedTimestamps, report.Dropped)

	sourceID := "TICKETSIM_" + cfg.Scenario
	if err := engine.Save(*outDir, sourceID, records, bundle); err != nil {
		fmt.Printf("Failed to save mock data: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Done.")
}
