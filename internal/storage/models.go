package storage

import "time"

// NewSession describes a capture run about to start.
type NewSession struct {
	DeviceType      string
	DeviceID        string
	CenterFrequency float64 // Hz
	SampleRate      float64 // samples per second
	Channels        int
	Average         int
	Config          any // string, []byte or anything JSON-serializable
}

// Session is a stored capture run.
type Session struct {
	ID              int64
	RunID           string
	StartTime       time.Time
	DeviceType      string
	DeviceID        string
	CenterFrequency float64
	SampleRate      float64
	Channels        int
	Average         int
	Config          *string
}

// Spectrum is one stored averaged spectrum.
type Spectrum struct {
	ID        int64
	SessionID int64
	Timestamp time.Time
	Power     []float32
}
