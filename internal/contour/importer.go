package contour

import (
	"context"
	"io"
	"path/filepath"

	"github.com/0xlemi/tunetrace/internal/audio"
	"golang.org/x/sync/errgroup"
)

// ImportResult reports the outcome for one file of a batch.
type ImportResult struct {
	Path  string
	Track Track
	Err   error
}

// Importer decodes and analyses files into a library.
type Importer struct {
	extractor *Extractor
	library   *Library
	workers   int
}

// NewImporter creates an importer running up to workers analyses at once.
func NewImporter(extractor *Extractor, library *Library, workers int) *Importer {
	if workers < 1 {
		workers = 1
	}
	return &Importer{extractor: extractor, library: library, workers: workers}
}

// ImportFiles analyses every path. A file that fails to decode is reported
// in its result and does not stop the others. Tracks are added in the
// order of paths.
func (im *Importer) ImportFiles(ctx context.Context, paths []string) []ImportResult {
	results := make([]ImportResult, len(paths))
	analysed := make([]Result, len(paths))
	durations := make([]float64, len(paths))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(im.workers)
	for i, path := range paths {
		results[i].Path = path
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i].Err = err
				return nil
			}
			buf, err := audio.DecodeWAVFile(path)
			if err != nil {
				results[i].Err = err
				return nil
			}
			analysed[i] = im.extractor.Extract(buf)
			durations[i] = buf.Duration()
			return nil
		})
	}
	// Workers never return an error; per-file failures live in results.
	_ = g.Wait()

	for i := range results {
		if results[i].Err != nil {
			continue
		}
		results[i].Track = im.library.Add(displayName(paths[i]), analysed[i], durations[i])
	}
	return results
}

// ImportReader analyses a single WAV stream under name.
func (im *Importer) ImportReader(name string, r io.Reader) (Track, error) {
	buf, err := audio.DecodeWAV(r)
	if err != nil {
		return Track{}, err
	}
	return im.library.Add(name, im.extractor.Extract(buf), buf.Duration()), nil
}

func displayName(path string) string {
	return filepath.Base(path)
}
