package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"
)

func Run(ctx context.Context, config *Config, logger *slog.Logger) error {
	r, err := openReader(ctx, config)
	if err != nil {
		return err
	}
	defer r.Close()

	logger.Info("reading spectra", slog.Int("channels", r.Channels()))

	hist := NewPowerHistogram()
	start := time.Now()

	var n int
	for config.Count == 0 || n < config.Count {
		s, err := r.Next(ctx)
		if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
			break
		}
		if err != nil {
			return fmt.Errorf("reading spectrum %d: %w", n, err)
		}

		hist.Add(s)
		if n%config.Every == 0 {
			logStats(logger, n, Summarize(s))
		}
		n++
	}

	attrs := []any{
		slog.String("spectra", humanize.Comma(int64(n))),
		slog.String("samples", humanize.Comma(int64(hist.Count()))),
	}
	if elapsed := time.Since(start).Seconds(); elapsed > 0 && n > 0 {
		attrs = append(attrs, slog.String("rate", humanize.SIWithDigits(float64(n)/elapsed, 2, "spectra/s")))
	}
	if b, ok := hist.Bounds(); ok {
		attrs = append(attrs, slog.Group("power",
			slog.String("p5", fmt.Sprintf("%0.1fdB", b.P5)),
			slog.String("p95", fmt.Sprintf("%0.1fdB", b.P95)),
			slog.String("mean", fmt.Sprintf("%0.1fdB", b.Mean))))
	}
	logger.Info("finished", attrs...)

	return nil
}

func openReader(ctx context.Context, config *Config) (spectrumReader, error) {
	switch {
	case config.UDPAddr != "":
		return listenUDP(config.UDPAddr, config.Channels)
	case config.FilePath != "":
		return openFile(config.FilePath)
	default:
		return openDB(ctx, config)
	}
}

func logStats(logger *slog.Logger, n int, st Stats) {
	logger.Info("spectrum",
		slog.Int("n", n),
		slog.String("min", fmt.Sprintf("%0.2fdB", st.Min)),
		slog.String("max", fmt.Sprintf("%0.2fdB", st.Max)),
		slog.String("mean", fmt.Sprintf("%0.2fdB", st.Mean)),
		slog.Int("peak", st.Peak))
}
