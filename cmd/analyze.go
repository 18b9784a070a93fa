package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/0xlemi/tunetrace/internal/contour"
	"github.com/0xlemi/tunetrace/internal/logging"
	"github.com/0xlemi/tunetrace/internal/pitch"
	"github.com/0xlemi/tunetrace/internal/timeline"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

var (
	analyzeCSV     bool
	analyzeWorkers int
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true)
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#ef4444"))
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze FILE...",
	Short: "Extract pitch contours from WAV files",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		workers := cfg.Import.Workers
		if cmd.Flags().Changed("workers") {
			workers = analyzeWorkers
		}

		detector := pitch.NewAutocorrelationDetector(cfg.Detector)
		importer := contour.NewImporter(
			contour.NewExtractor(cfg.Contour, detector),
			contour.NewLibrary(cfg.Import.Colors),
			workers,
		)
		results := importer.ImportFiles(cmd.Context(), args)

		out := cmd.OutOrStdout()
		if analyzeCSV {
			return writeContourCSV(out, results)
		}
		return writeSummary(out, results)
	},
}

func init() {
	analyzeCmd.Flags().BoolVar(&analyzeCSV, "csv", false, "print every contour point as CSV")
	analyzeCmd.Flags().IntVar(&analyzeWorkers, "workers", 4, "files analysed in parallel")
	rootCmd.AddCommand(analyzeCmd)
}

func noteLabel(n float64) string {
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return "-"
	}
	note, ok := pitch.FrequencyToNote(pitch.Frequency(n))
	if !ok {
		return "-"
	}
	return fmt.Sprintf("%s%d", note.Name, note.Octave)
}

func voicedShare(points []timeline.NotePoint) float64 {
	if len(points) == 0 {
		return 0
	}
	voiced := 0
	for _, p := range points {
		if p.Valid() {
			voiced++
		}
	}
	return float64(voiced) / float64(len(points))
}

func writeSummary(w io.Writer, results []contour.ImportResult) error {
	fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("%-24s %8s %8s %7s  %s", "FILE", "DURATION", "POINTS", "VOICED", "RANGE")))

	failed := 0
	for _, res := range results {
		if res.Err != nil {
			failed++
			fmt.Fprintln(w, failStyle.Render(fmt.Sprintf("%-24s %v", res.Path, res.Err)))
			logging.Error(res.Err, "analysis failed", logging.Fields{"path": res.Path})
			continue
		}
		t := res.Track
		span := "-"
		if !t.Range.Empty() {
			span = noteLabel(t.Range.Low) + " - " + noteLabel(t.Range.High)
		}
		fmt.Fprintf(w, "%-24s %8s %8d %6.0f%%  %s\n",
			t.Name, timeline.FormatTime(t.Duration), len(t.Points), 100*voicedShare(t.Points), span)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(results))
	}
	return nil
}

// writeContourCSV prints one row per point; gaps have an empty note.
func writeContourCSV(w io.Writer, results []contour.ImportResult) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"track", "time", "note"}); err != nil {
		return err
	}

	failed := 0
	for _, res := range results {
		if res.Err != nil {
			failed++
			logging.Error(res.Err, "analysis failed", logging.Fields{"path": res.Path})
			continue
		}
		for _, p := range res.Track.Points {
			note := ""
			if p.Valid() {
				note = strconv.FormatFloat(p.Note, 'f', 3, 64)
			}
			if err := cw.Write([]string{res.Track.Name, strconv.FormatFloat(p.Time, 'f', 4, 64), note}); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(results))
	}
	return nil
}
