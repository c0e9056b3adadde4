package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"github.com/dustin/go-humanize"

	"github.com/roman-kulish/spectral-accumulator/internal/filterbank"
	"github.com/roman-kulish/spectral-accumulator/internal/rawio"
)

// Header describes the converted file: channels in descending frequency
// order, starting half a channel below the top of the band.
func Header(c *Config) *filterbank.Header {
	foff := -c.SampleRate / float64(c.Channels)       // MHz
	fch1 := c.Frequency/1e6 + c.SampleRate/2 + foff/2 // MHz
	tsamp := float64(c.Channels) / 2 / (c.SampleRate * 1e6) * float64(c.Average)

	return filterbank.NewHeader(fch1, c.Channels, foff, c.TStart, tsamp)
}

func Run(ctx context.Context, config *Config, logger *slog.Logger) (err error) {
	in, err := os.Open(config.Input)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(config.Output)
	if err != nil {
		return err
	}
	defer func() {
		if cErr := out.Close(); cErr != nil && err == nil {
			err = cErr
		}
	}()

	header := Header(config)
	tsamp, _ := header.TSamp()
	fch1, _ := header.Float64(filterbank.FieldFch1)

	logger.Info("converting",
		slog.String("input", config.Input),
		slog.String("output", config.Output),
		slog.Int("channels", config.Channels),
		slog.String("fch1", fmt.Sprintf("%0.6fMHz", fch1)),
		slog.String("tsamp", fmt.Sprintf("%0.3fus", tsamp*1e6)))

	w := bufio.NewWriter(out)
	if _, err = header.WriteTo(w); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	n, err := Convert(ctx, bufio.NewReader(in), w, config.Channels)
	if err != nil {
		return err
	}
	if err = w.Flush(); err != nil {
		return err
	}

	logger.Info("finished",
		slog.String("spectra", humanize.Comma(int64(n))),
		slog.String("size", humanize.Bytes(uint64(n*config.Channels*4))))

	return nil
}

// Convert copies nch-channel spectra from r to w, reversing the channel
// order of each. A trailing partial spectrum is discarded. It returns the
// number of spectra written.
func Convert(ctx context.Context, r io.Reader, w io.Writer, nch int) (int, error) {
	buf := make([]float32, nch)
	var n int
	for {
		if n%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return n, err
			}
		}

		err := rawio.Read(r, buf)
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return n, nil
		}
		if err != nil {
			return n, fmt.Errorf("reading spectrum %d: %w", n, err)
		}

		slices.Reverse(buf)
		if err = rawio.WriteFloat32(w, buf); err != nil {
			return n, fmt.Errorf("writing spectrum %d: %w", n, err)
		}
		n++
	}
}
