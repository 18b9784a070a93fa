package main

import (
	"context"
	"fmt"

	"github.com/0xlemi/tunetrace/internal/audio"
	"github.com/0xlemi/tunetrace/internal/logging"
	"github.com/0xlemi/tunetrace/internal/session"
	"github.com/0xlemi/tunetrace/internal/ui"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

var (
	listenTracks        []string
	listenReplay        string
	listenSampleRate    int
	listenAmplification float64
)

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Track the pitch of the default input device",
	Long: `Opens the default input device and shows the detected note, a tuner
and a scrolling pitch contour. With --tracks the live pitch is recorded
against the imported contours.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("sample-rate") {
			cfg.Audio.SampleRate = listenSampleRate
		}
		if cmd.Flags().Changed("amplification") {
			cfg.Audio.Amplification = listenAmplification
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		return listen(cmd.Context())
	},
}

func init() {
	listenCmd.Flags().StringSliceVar(&listenTracks, "tracks", nil, "WAV files to compare against")
	listenCmd.Flags().StringVar(&listenReplay, "replay", "", "play a WAV file through the live path instead of the input device")
	listenCmd.Flags().IntVar(&listenSampleRate, "sample-rate", 44100, "input sample rate in Hz")
	listenCmd.Flags().Float64Var(&listenAmplification, "amplification", 1, "input gain")
	rootCmd.AddCommand(listenCmd)
}

// openCapturer returns the capture source and a release func.
func openCapturer() (audio.Capturer, func(), error) {
	if listenReplay != "" {
		buf, err := audio.DecodeWAVFile(listenReplay)
		if err != nil {
			return nil, nil, err
		}
		return audio.NewReplayCapturer(buf, cfg.Audio, true), func() {}, nil
	}

	c, err := audio.NewPortAudioCapturer(cfg.Audio)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create audio capturer: %w", err)
	}
	return c, func() {
		if err := c.Terminate(); err != nil {
			logging.Error(err, "terminate portaudio")
		}
	}, nil
}

func listen(parent context.Context) error {
	// bubbletea owns the terminal once it starts, so the session stays quiet
	sess := session.New(cfg, &logging.NoOpLogger{})

	if len(listenTracks) > 0 {
		for _, res := range sess.Import(parent, listenTracks) {
			if res.Err != nil {
				logging.Error(res.Err, "import failed", logging.Fields{"path": res.Path})
				continue
			}
			logging.Info("track imported", logging.Fields{"path": res.Path, "points": len(res.Track.Points)})
		}
	}

	capturer, release, err := openCapturer()
	if err != nil {
		return err
	}
	defer release()

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	p := tea.NewProgram(ui.NewModel(sess), tea.WithAltScreen(), tea.WithMouseCellMotion())

	done := make(chan error, 1)
	go func() {
		err := sess.Listen(ctx, capturer, nil)
		if err != nil {
			p.Send(ui.ErrMsg{Err: err})
		}
		done <- err
	}()

	if _, err := p.Run(); err != nil {
		cancel()
		<-done
		return fmt.Errorf("error running program: %w", err)
	}
	cancel()
	return <-done
}
