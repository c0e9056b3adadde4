package display

import "github.com/roman-kulish/spectral-accumulator/internal/pipeline"

// Frame is the JSON document pushed to feed clients on every repaint.
// Power values are linear; History is oldest row first.
type Frame struct {
	Seq             uint64      `json:"seq"`
	CenterFrequency float64     `json:"centerFrequency"`
	SampleRate      float64     `json:"sampleRate"`
	Channels        int         `json:"channels"`
	Rows            int         `json:"rows"`
	Filtered        []float32   `json:"filtered"`
	Floor           []float32   `json:"floor"`
	History         [][]float32 `json:"history,omitempty"`
}

func newFrame(s pipeline.Snapshot, withHistory bool) Frame {
	f := Frame{
		Seq:             s.Seq,
		CenterFrequency: s.Tuning.CenterFrequency,
		SampleRate:      s.Tuning.SampleRate,
		Channels:        len(s.Filtered),
		Rows:            len(s.History),
		Filtered:        s.Filtered,
		Floor:           s.Floor,
	}
	if withHistory {
		f.History = s.History
	}
	return f
}

// Command is a message a feed client may send.
type Command struct {
	Type            string  `json:"type"`
	CenterFrequency float64 `json:"centerFrequency,omitempty"`
}

// CommandRetune asks the source to tune to CenterFrequency.
const CommandRetune = "retune"
