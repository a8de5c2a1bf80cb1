// Package output writes the artifacts of a finished run: the train and test
// datasets, the generator state, the event log and the run metrics.
package output

import (
	"bufio"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"ticketsim/internal/config"
	"ticketsim/internal/simulation"
	"ticketsim/internal/ticket"
)

// Artifact file names inside the output directory.
const (
	TrainFile   = "train.csv"
	TestFile    = "test.csv"
	StateFile   = "state.json"
	EventsFile  = "events.jsonl"
	MetricsFile = "metrics.prom"
)

// WriteTrain writes the train dataset with the columns enabled in cfg.
func WriteTrain(w io.Writer, tickets []*ticket.Ticket, cfg *config.SimConfig) error {
	return writeCSV(w, tickets, trainColumns(cfg))
}

// WriteTest writes the unsolved dataset.
func WriteTest(w io.Writer, tickets []*ticket.Ticket, cfg *config.SimConfig) error {
	return writeCSV(w, tickets, testColumns(cfg))
}

func writeCSV(w io.Writer, tickets []*ticket.Ticket, cols []column) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header(cols)); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	row := make([]string, len(cols))
	for _, t := range tickets {
		for i, c := range cols {
			row[i] = c.value(t)
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write ticket %d: %w", t.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteState writes the generator state as indented JSON.
func WriteState(w io.Writer, state *State) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(state); err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}
	return nil
}

// WriteAll writes every artifact of res into dir concurrently. cfg selects the
// optional dataset columns; nil uses the run's effective config. Metrics are
// skipped when the run carries no recorder. Each file is written to a
// temporary name and renamed into place.
func WriteAll(ctx context.Context, dir string, res *simulation.Result, cfg *config.SimConfig) error {
	if cfg == nil {
		cfg = res.Config
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return writeFile(ctx, filepath.Join(dir, TrainFile), func(w io.Writer) error {
			return WriteTrain(w, res.Train, cfg)
		})
	})
	g.Go(func() error {
		return writeFile(ctx, filepath.Join(dir, TestFile), func(w io.Writer) error {
			return WriteTest(w, res.Test, cfg)
		})
	})
	g.Go(func() error {
		return writeFile(ctx, filepath.Join(dir, StateFile), func(w io.Writer) error {
			return WriteState(w, NewState(res))
		})
	})
	g.Go(func() error {
		if err := ctx.Err(); err != nil {
			return err
		}
		return res.Events.Save(filepath.Join(dir, EventsFile))
	})
	if res.Metrics != nil {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := res.Metrics.WriteTextfile(filepath.Join(dir, MetricsFile)); err != nil {
				return fmt.Errorf("failed to write metrics: %w", err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	log.Info().Str("dir", dir).Int("train", len(res.Train)).Int("test", len(res.Test)).Msg("Artifacts written")
	return nil
}

func writeFile(ctx context.Context, path string, fill func(io.Writer) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tmpPath := path + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", tmpPath, err)
	}

	writer := bufio.NewWriter(file)
	if err := fill(writer); err != nil {
		file.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := writer.Flush(); err != nil {
		file.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to flush %s: %w", path, err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename %s: %w", path, err)
	}
	log.Debug().Str("path", path).Msg("Artifact saved")
	return nil
}
