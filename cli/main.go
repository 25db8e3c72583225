// Command govidcompare compares two raw video files frame by frame with
// SSIM or PSNR, writes one stats line per pair, and optionally saves the
// forwarded reference stream.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/schollz/progressbar/v3"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/GreatValueCreamSoda/govidcompare/comparator"
	"github.com/GreatValueCreamSoda/govidcompare/framesync"
	"github.com/GreatValueCreamSoda/govidcompare/metrics"
	"github.com/GreatValueCreamSoda/govidcompare/pixfmt"
	"github.com/GreatValueCreamSoda/govidcompare/sources"
	"github.com/GreatValueCreamSoda/govidcompare/video"
)

func main() {
	printHelp := registerFlags()
	pflag.Parse()

	if *printHelp {
		cliUsage()
		os.Exit(0)
	}

	if err := run(); err != nil {
		logrus.WithError(err).Fatal("comparison failed")
	}
}

func run() error {
	if settings.configPath != "" {
		if err := applyConfigFile(settings.configPath); err != nil {
			return err
		}
	}

	if settings.referenceVideo == "" || settings.distortionVideo == "" {
		return errors.New("both --reference and --distortion must be given")
	}
	if settings.width <= 0 || settings.height <= 0 {
		return errors.New("--width and --height must be positive")
	}

	format, err := pixfmt.Parse(settings.format)
	if err != nil {
		return fmt.Errorf("unsupported pixel format %q", settings.format)
	}

	method, err := metrics.ParseMethod(settings.method)
	if err != nil {
		return err
	}

	frameRate, err := parseFrameRate(settings.fps)
	if err != nil {
		return err
	}

	reference, err := sources.NewRawReader(settings.referenceVideo, format,
		settings.width, settings.height, frameRate)
	if err != nil {
		return err
	}
	defer reference.Close()

	distortion, err := sources.NewRawReader(settings.distortionVideo, format,
		settings.width, settings.height, frameRate)
	if err != nil {
		return err
	}
	defer distortion.Close()

	var downstream comparator.Consumer
	if settings.outputPath != "" {
		writer, err := sources.NewRawWriter(settings.outputPath)
		if err != nil {
			return err
		}
		defer writer.Close()
		downstream = writer
	}

	comp := comparator.New(downstream, settings.queueBound)
	defer comp.Close()

	err = comp.Configure(comparator.Geometry{
		Width:     settings.width,
		Height:    settings.height,
		Format:    format,
		FrameRate: frameRate,
	}, comparator.Config{
		Method:    method,
		StatsFile: settings.statsFile,
	})
	if err != nil {
		return err
	}

	total := min(reference.NumFrames(), distortion.NumFrames())

	if stderrIsTerminal {
		bar := progressbar.NewOptions(total,
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSetDescription("comparing"),
			progressbar.OptionShowCount(),
		)
		comp.SetProgressCallback(func(done int) { _ = bar.Set(done) })
	}

	summary := newScoreSummary()
	comp.SetRecordCallback(summary.add)

	group, ctx := errgroup.WithContext(context.Background())

	group.Go(func() error { return produce(ctx, comp, reference, 0) })
	group.Go(func() error { return produce(ctx, comp, distortion, 1) })
	group.Go(func() error { return drive(ctx, comp) })

	if err := group.Wait(); err != nil {
		return err
	}

	if err := comp.Close(); err != nil {
		return err
	}

	summary.print(os.Stderr)
	return nil
}

// produce submits every frame of one source, then marks the input terminal.
func produce(ctx context.Context, comp *comparator.Comparator, src sources.Source,
	input int) error {
	defer comp.SignalEnd(input)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		frame, err := src.NextFrame()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading input %d: %w", input, err)
		}

		if err := comp.Submit(input, frame); err != nil {
			if errors.Is(err, framesync.ErrInputEnded) {
				return nil
			}
			return err
		}
	}
}

// drive runs the comparison loop until end-of-stream. On End it signals
// both inputs so any producer still blocked in Submit can unwind.
func drive(ctx context.Context, comp *comparator.Comparator) error {
	for {
		st, err := comp.Drive()
		if err != nil {
			return err
		}
		if st == framesync.StateEnd {
			comp.SignalEnd(0)
			comp.SignalEnd(1)
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		comp.AwaitReady()
	}
}

// parseFrameRate accepts "num/den" or a bare integer.
func parseFrameRate(s string) (video.Rational, error) {
	num, den := s, "1"
	if i := strings.IndexByte(s, '/'); i >= 0 {
		num, den = s[:i], s[i+1:]
	}

	n, err := strconv.ParseInt(num, 10, 64)
	if err != nil {
		return video.Rational{}, fmt.Errorf("invalid framerate %q", s)
	}
	d, err := strconv.ParseInt(den, 10, 64)
	if err != nil || d <= 0 || n <= 0 {
		return video.Rational{}, fmt.Errorf("invalid framerate %q", s)
	}

	return video.Rational{Num: n, Den: d}, nil
}
