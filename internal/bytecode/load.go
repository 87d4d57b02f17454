package bytecode

import (
	"context"
	"fmt"
	"os"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Load reads and decodes the program at path.
func Load(path string) (*Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read program: %w", err)
	}
	return Parse(path, data)
}

// FileResult is the outcome of loading one file in LoadFiles.
type FileResult struct {
	Path    string
	Program *Program
	Err     error
}

// LoadFiles loads every path concurrently with at most jobs workers
// (GOMAXPROCS when jobs <= 0). Per-file failures are reported in the results,
// which keep the input order; the returned error is only set on cancellation.
func LoadFiles(ctx context.Context, paths []string, jobs int) ([]FileResult, error) {
	return LoadFilesNotify(ctx, paths, jobs, nil)
}

// LoadFilesNotify is LoadFiles with a callback invoked from the worker
// goroutines before and after each file. notify must be safe for concurrent use.
func LoadFilesNotify(ctx context.Context, paths []string, jobs int, notify func(path string, res *FileResult)) ([]FileResult, error) {
	results := make([]FileResult, len(paths))
	if len(paths) == 0 {
		return results, nil
	}
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(min(jobs, len(paths)))
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			if notify != nil {
				notify(path, nil)
			}
			prog, err := Load(path)
			results[i] = FileResult{Path: path, Program: prog, Err: err}
			if notify != nil {
				notify(path, &results[i])
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}
