// Package sink writes averaged spectra to files, sockets and the session
// store. Every sink emits raw little-endian float32 channels with no framing;
// readers learn the channel count out of band.
package sink

import (
	"errors"
	"time"

	"github.com/roman-kulish/spectral-accumulator/internal/filterbank"
	"github.com/roman-kulish/spectral-accumulator/internal/sdr"
)

// Sink consumes averaged spectra.
type Sink interface {
	WriteSpectrum(spectrum []float32) error
	Close() error
}

// Multi fans each spectrum out to every sink.
type Multi []Sink

// WriteSpectrum writes to all sinks, even after a failure, and joins the
// errors.
func (m Multi) WriteSpectrum(spectrum []float32) error {
	var errs []error
	for _, s := range m {
		if err := s.WriteSpectrum(spectrum); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every sink and joins the errors.
func (m Multi) Close() error {
	var errs []error
	for _, s := range m {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Header builds the filterbank header describing the spectra a pipeline
// emits: channels ascending in frequency, centred on the tuned frequency,
// each averaged over average time steps of a 2x oversampled filterbank.
func Header(t sdr.Tuning, nch, average int, start time.Time) *filterbank.Header {
	foff := t.SampleRate / float64(nch) / 1e6                   // MHz
	fch1 := (t.CenterFrequency-t.SampleRate/2)/1e6 + foff/2     // MHz, centre of channel 0
	tsamp := float64(nch) / 2 / t.SampleRate * float64(average) // seconds

	return filterbank.NewHeader(fch1, nch, foff, filterbank.MJD(start), tsamp)
}
