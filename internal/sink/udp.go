package sink

import (
	"fmt"
	"net"

	"github.com/roman-kulish/spectral-accumulator/internal/rawio"
)

// MaxDatagram is the largest UDP payload over IPv4.
const MaxDatagram = 65507

// UDPSink sends one datagram per spectrum.
type UDPSink struct {
	conn net.Conn
	buf  []byte
}

// DialUDP connects to addr, for example "127.0.0.1:8888".
func DialUDP(addr string) (*UDPSink, error) {
	conn, err := net.Dial("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", addr, err)
	}
	return &UDPSink{conn: conn}, nil
}

// WriteSpectrum is not safe for concurrent use.
func (s *UDPSink) WriteSpectrum(spectrum []float32) error {
	if size := len(spectrum) * 4; size > MaxDatagram {
		return fmt.Errorf("spectrum of %d bytes exceeds the datagram limit of %d", size, MaxDatagram)
	}

	s.buf = rawio.AppendFloat32(s.buf[:0], spectrum)
	if _, err := s.conn.Write(s.buf); err != nil {
		return fmt.Errorf("sending spectrum: %w", err)
	}
	return nil
}

func (s *UDPSink) Close() error {
	return s.conn.Close()
}
