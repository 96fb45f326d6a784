package output

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"sensorstats/internal/analysis"
	"sensorstats/internal/logging"
)

var logger = logging.New("output")

// FileName is the output file of task: task1 becomes task1_output.csv for CSV.
func FileName(task, format string) string {
	return task + "_output" + Extension(format)
}

// WriteResults writes every result to dir in format, one file per task, and
// returns the paths in result order. Files are written concurrently; a
// partial file is removed when its write fails.
func WriteResults(ctx context.Context, dir, format string, results []analysis.Result) ([]string, error) {
	if _, err := New(format, nil); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	paths := make([]string, len(results))
	g, ctx := errgroup.WithContext(ctx)
	for i, res := range results {
		paths[i] = filepath.Join(dir, FileName(res.Task, format))
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := writeFile(paths[i], format, res); err != nil {
				os.Remove(paths[i])
				return fmt.Errorf("%s: %w", res.Task, err)
			}
			logger.Debugf("wrote %s (%d rows)", paths[i], res.Table.NumRows())
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return paths, nil
}

func writeFile(path, format string, res analysis.Result) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	bw := bufio.NewWriter(f)
	formatter, _ := New(format, bw)
	if err := formatter.Format(res.Table); err != nil {
		f.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
