package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/roman-kulish/spectral-accumulator/internal/channelizer"
	"github.com/roman-kulish/spectral-accumulator/internal/display"
	"github.com/roman-kulish/spectral-accumulator/internal/filterbank"
	"github.com/roman-kulish/spectral-accumulator/internal/pipeline"
	"github.com/roman-kulish/spectral-accumulator/internal/sdr"
	"github.com/roman-kulish/spectral-accumulator/internal/sdr/hackrf"
	"github.com/roman-kulish/spectral-accumulator/internal/sdr/rtl"
	"github.com/roman-kulish/spectral-accumulator/internal/sink"
	"github.com/roman-kulish/spectral-accumulator/internal/storage"
)

const (
	storageDir = "data"
)

// Run acquires samples from the configured device and runs the pipeline
// until ctx is cancelled or the source fails. A replayed file running out
// of samples is a normal end.
func Run(ctx context.Context, config *Config, logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	source, err := createSource(ctx, &config.Device, logger)
	if err != nil {
		return fmt.Errorf("failed to create source: %w", err)
	}
	defer source.Close()

	pfb, err := channelizer.New(config.Pipeline.Channels, config.Pipeline.Taps)
	if err != nil {
		return fmt.Errorf("failed to create channelizer: %w", err)
	}

	sinks, err := createSinks(ctx, config, source.Tuning(), logger)
	if err != nil {
		return fmt.Errorf("failed to create sinks: %w", err)
	}
	defer func() {
		if err := sinks.Close(); err != nil {
			logger.Error(fmt.Sprintf("closing sinks: %s", err))
		}
	}()

	options := []func(*pipeline.Pipeline){pipeline.WithLogger(logger)}
	if len(sinks) > 0 {
		options = append(options, pipeline.WithSink(sinks))
	}

	p, err := pipeline.New(config.Pipeline, source, pfb, options...)
	if err != nil {
		return fmt.Errorf("failed to create pipeline: %w", err)
	}

	var (
		wg         sync.WaitGroup
		displayErr error
	)
	if config.Display.Addr != "" {
		server, ln, err := createDisplay(p, source, &config.Display, logger)
		if err != nil {
			return fmt.Errorf("failed to create display: %w", err)
		}

		if config.Display.MDNS.Enabled {
			err = display.Advertise(ctx, display.Advertisement{
				Name:     config.Display.MDNS.Name,
				Port:     ln.Addr().(*net.TCPAddr).Port,
				Channels: config.Pipeline.Channels,
				Tuning:   source.Tuning(),
			}, logger)
			if err != nil {
				// The feed is still reachable by address.
				logger.Warn(fmt.Sprintf("mdns advertisement failed: %s", err))
			}
		}

		wg.Add(1)
		go func() {
			defer wg.Done()

			if displayErr = server.Serve(ctx, ln); displayErr != nil {
				cancel() // signal to the pipeline about fatal
			}
		}()
	}

	err = p.Run(ctx)
	cancel()
	wg.Wait()

	if errors.Is(err, sdr.ErrStreamClosed) && config.Device.Type == DeviceFile {
		logger.Info("replay finished")
		err = nil
	}
	if displayErr != nil {
		err = errors.Join(err, fmt.Errorf("display: %w", displayErr))
	}
	return err
}

// ownedSource is a sample source the app owns and closes.
type ownedSource interface {
	sdr.Source
	sdr.Tuned
	Close() error
}

type deviceSource struct {
	*sdr.Device
}

func (d deviceSource) Close() error {
	d.Stop()
	return nil
}

type toneSource struct {
	*sdr.ToneSource
}

func (toneSource) Close() error { return nil }

func createSource(ctx context.Context, config *DeviceConfig, logger *slog.Logger) (ownedSource, error) {
	var handler sdr.Handler
	var err error
	switch c := config.Config.(type) {
	case *rtl.Config:
		if handler, err = rtl.New(c); err != nil {
			return nil, fmt.Errorf("creating RTL-SDR device: %w", err)
		}

	case *hackrf.Config:
		if handler, err = hackrf.New(config.Serial, c); err != nil {
			return nil, fmt.Errorf("creating HackRF device: %w", err)
		}

	case *sdr.ToneConfig:
		return toneSource{sdr.NewToneSource(*c, config.MTU)}, nil

	case *FileConfig:
		src, err := sdr.OpenFileSource(c.Path, config.MTU, sdr.Tuning{
			CenterFrequency: c.CenterFrequency,
			SampleRate:      c.SampleRate,
		})
		if err != nil {
			return nil, fmt.Errorf("opening replay file: %w", err)
		}
		return src, nil

	default:
		return nil, fmt.Errorf("creating device: unknown type '%s'", config.Type)
	}

	device := sdr.NewDevice(config.Name, handler, sdr.WithLogger(logger), sdr.WithMTU(config.MTU))
	if err = device.Start(ctx); err != nil {
		return nil, fmt.Errorf("starting %s: %w", device.Device(), err)
	}

	return deviceSource{device}, nil
}

func createSinks(ctx context.Context, config *Config, tuning sdr.Tuning, logger *slog.Logger) (_ sink.Multi, err error) {
	var sinks sink.Multi
	defer func() {
		if err != nil {
			err = errors.Join(err, sinks.Close())
		}
	}()

	nch, average := config.Pipeline.Channels, config.Pipeline.Average

	if c := config.Sinks.File; c != nil {
		var header *filterbank.Header
		if c.Header {
			header = sink.Header(tuning, nch, average, time.Now())
		}

		fs, err := sink.OpenFile(c.Path, header)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, fs)

		logger.Info("writing spectra to file", slog.String("path", c.Path), slog.Bool("header", c.Header))
	}

	if c := config.Sinks.UDP; c != nil {
		us, err := sink.DialUDP(c.Addr)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, us)

		logger.Info("sending spectra over UDP", slog.String("addr", c.Addr))
	}

	if c := config.Sinks.Storage; c != nil {
		store, err := createStorage(c)
		if err != nil {
			return nil, fmt.Errorf("failed to create storage: %w", err)
		}

		sessionID, err := store.CreateSession(ctx, storage.NewSession{
			DeviceType:      string(config.Device.Type),
			DeviceID:        config.Device.Name,
			CenterFrequency: tuning.CenterFrequency,
			SampleRate:      tuning.SampleRate,
			Channels:        nch,
			Average:         average,
			Config:          config,
		})
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("creating session: %w", err)
		}

		var options []func(*sink.StoreSink)
		if c.MaxBatchSize > 0 {
			options = append(options, sink.WithBatchSize(c.MaxBatchSize))
		}
		sinks = append(sinks, storeSink{sink.NewStoreSink(store, sessionID, options...), store})

		logger.Info("storing spectra", slog.Int64("sessionID", sessionID))
	}

	return sinks, nil
}

// storeSink owns the store it writes into.
type storeSink struct {
	*sink.StoreSink
	store *storage.SqliteStore
}

func (s storeSink) Close() error {
	return errors.Join(s.StoreSink.Close(), s.store.Close())
}

func createStorage(config *StorageConfig) (*storage.SqliteStore, error) {
	dbPath := config.DataDirectory
	if dbPath == "" {
		dbPath = storageDir
	}
	if !filepath.IsAbs(dbPath) {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current working directory: %w", err)
		}
		dbPath = filepath.Join(wd, dbPath)
	}

	stat, err := os.Stat(dbPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("storage directory '%s' does not exist: %w", dbPath, err)
		}
		return nil, err
	}
	if !stat.IsDir() {
		return nil, fmt.Errorf("invalid storage directory '%s'", dbPath)
	}

	dbPath = filepath.Join(dbPath, fmt.Sprintf("spectra_%s.sqlite", time.Now().UTC().Format("20060102_150405")))
	return storage.NewSqliteStore(dbPath), nil
}

func createDisplay(p *pipeline.Pipeline, src ownedSource, config *DisplayConfig, logger *slog.Logger) (*display.Server, net.Listener, error) {
	options := []func(*display.Server){
		display.WithLogger(logger),
		display.WithHistory(!config.OmitHistory),
		display.WithClientBuffer(config.ClientBuffer),
	}

	if retuner, ok := src.(sdr.Retuner); ok {
		options = append(options, display.WithRetune(func(fc float64) error {
			t, err := retuner.Retune(fc)
			if err != nil {
				return err
			}
			p.Retune(t)
			return nil
		}))
	}

	ln, err := net.Listen("tcp", config.Addr)
	if err != nil {
		return nil, nil, fmt.Errorf("listening on %s: %w", config.Addr, err)
	}

	logger.Info("display feed", slog.String("url", "ws://"+hostPort(ln.Addr())+display.FeedPath))

	return display.NewServer(p.Display(), p.Repaint(), options...), ln, nil
}

func hostPort(addr net.Addr) string {
	tcp, ok := addr.(*net.TCPAddr)
	if !ok {
		return addr.String()
	}
	host := "localhost"
	if !tcp.IP.IsUnspecified() {
		host = tcp.IP.String()
	}
	return net.JoinHostPort(host, strconv.Itoa(tcp.Port))
}
