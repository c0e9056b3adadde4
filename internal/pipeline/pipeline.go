// Package pipeline turns a stream of complex sample blocks into averaged,
// smoothed power spectra. Each stage runs in its own goroutine and hands
// data to the next through a bounded queue that drops instead of blocking,
// so a slow consumer never stalls acquisition.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/roman-kulish/spectral-accumulator/internal/sdr"
)

// WithLogger sets the logger for the pipeline and its stages
func WithLogger(logger *slog.Logger) func(p *Pipeline) {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithSink forwards every averaged spectrum to sink from a dedicated stage.
func WithSink(sink Sink) func(p *Pipeline) {
	return func(p *Pipeline) {
		p.sink = sink
	}
}

// Pipeline wires Acquisition -> Channelization -> Averaging -> Smoothing,
// plus an optional sink stage.
type Pipeline struct {
	config      Config
	source      sdr.Source
	channelizer Channelizer
	sink        Sink

	raw      *Queue[Frame[[]complex64]]
	spectra  *Queue[Frame[[]float32]]
	averaged *Queue[Frame[[]float32]]
	toSink   *Queue[[]float32]
	gen      *generation

	acquisition    *Acquisition
	channelization *Channelization
	averaging      *Averaging
	smoother       *Smoother
	sinkStage      *SinkStage

	display   *Display
	coalescer *Coalescer

	logger *slog.Logger
}

// New validates config and builds the stages. Unset queue sizes and
// timeouts take their defaults.
func New(config Config, source sdr.Source, channelizer Channelizer, options ...func(p *Pipeline)) (*Pipeline, error) {
	config = config.WithDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if source == nil || channelizer == nil {
		return nil, fmt.Errorf("%w: source and channelizer are required", ErrInvalidConfig)
	}

	p := Pipeline{
		config:      config,
		source:      source,
		channelizer: channelizer,
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)), // nil logger
	}

	for _, option := range options {
		option(&p)
	}

	nch := config.Channels
	p.display = NewDisplay(config.HistoryDepth, nch)
	p.coalescer = NewCoalescer()

	if tuned, ok := source.(sdr.Tuned); ok {
		p.display.SetTuning(tuned.Tuning())
	}

	p.gen = &generation{}
	p.raw = NewQueue[Frame[[]complex64]]("raw", config.RawQueue, p.logger)
	p.spectra = NewQueue[Frame[[]float32]]("spectra", config.SpectrumQueue, p.logger)
	p.averaged = NewQueue[Frame[[]float32]]("averaged", config.AveragedQueue, p.logger)

	p.acquisition = &Acquisition{
		source:      source,
		out:         p.raw,
		gen:         p.gen,
		timeout:     config.ReadTimeout,
		reportEvery: config.ReportEvery,
		logger:      p.logger.With(slog.String("stage", "acquisition")),
	}

	p.channelization = &Channelization{
		channelizer: channelizer,
		in:          p.raw,
		out:         p.spectra,
		gen:         p.gen,
		logger:      p.logger.With(slog.String("stage", "channelization")),
	}

	p.averaging = &Averaging{
		averager: NewAverager(config.Average, nch),
		in:       p.spectra,
		out:      p.averaged,
		gen:      p.gen,
		logger:   p.logger.With(slog.String("stage", "averaging")),
	}

	p.smoother = &Smoother{
		ema:       NewEMA(nch, config.Smoothing),
		waterfall: NewWaterfall(config.HistoryDepth, nch),
		floor:     NewFloor(nch),
		display:   p.display,
		coalescer: p.coalescer,
		in:        p.averaged,
		gen:       p.gen,
		logger:    p.logger.With(slog.String("stage", "smoothing")),
	}

	if p.sink != nil {
		p.toSink = NewQueue[[]float32]("sink", config.SinkQueue, p.logger)
		p.smoother.sink = p.toSink
		p.sinkStage = &SinkStage{
			sink:   p.sink,
			in:     p.toSink,
			logger: p.logger.With(slog.String("stage", "sink")),
		}
	}

	return &p, nil
}

// Run starts every stage and blocks until ctx is cancelled or acquisition
// ends. An acquisition failure stops the other stages and is returned. At
// sdr.ErrStreamClosed the downstream stages first drain what is queued, so
// a replayed file is processed to its last block; the error is still
// returned.
func (p *Pipeline) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)

	stages := []func(context.Context) error{
		p.acquisition.Run,
		p.channelization.Run,
		p.averaging.Run,
		p.smoother.Run,
	}
	if p.sinkStage != nil {
		stages = append(stages, p.sinkStage.Run)
	}

	for _, run := range stages {
		wg.Add(1)
		go func() {
			defer wg.Done()

			err := run(ctx)
			if err == nil {
				return
			}

			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()

			if errors.Is(err, sdr.ErrStreamClosed) {
				return // closed queues stop the rest once drained
			}

			p.logger.Error(err.Error())
			cancel() // signal to other stages about fatal
		}()
	}

	p.logger.Info("pipeline started",
		slog.Int("channels", p.config.Channels),
		slog.Int("average", p.config.Average),
		slog.Int("historyDepth", p.config.HistoryDepth),
		slog.Float64("smoothing", p.config.Smoothing))

	wg.Wait()

	p.logger.Info("pipeline stopped",
		slog.Uint64("rawDropped", p.raw.Dropped()),
		slog.Uint64("spectraDropped", p.spectra.Dropped()),
		slog.Uint64("averagedDropped", p.averaged.Dropped()))

	return errors.Join(errs...)
}

// Display returns the published display state.
func (p *Pipeline) Display() *Display {
	return p.display
}

// Repaint returns the coalescer signalled after every smoothing cycle.
func (p *Pipeline) Repaint() *Coalescer {
	return p.coalescer
}

// Config returns the effective configuration.
func (p *Pipeline) Config() Config {
	return p.config
}

// Retune records a new tuning and starts a new tuning generation. Queued
// blocks and spectra from the previous tuning are discarded, the partial
// average and channelizer history are dropped, and display state is reset
// according to the configured policy before the first new spectrum.
func (p *Pipeline) Retune(t sdr.Tuning) {
	p.display.SetTuning(t)
	p.smoother.RequestReset(p.config.Retune)
	gen := p.gen.advance()

	p.logger.Info("retuned",
		slog.Uint64("generation", gen),
		slog.Float64("centerFrequency", t.CenterFrequency),
		slog.Float64("sampleRate", t.SampleRate))
}
