package app

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"
)

type Config struct {
	UDPAddr   string
	FilePath  string
	DBPath    string
	SessionID int64
	Channels  int
	Every     int // log one spectrum in Every
	Count     int // stop after Count spectra, 0 for no limit

	MinTimestamp *time.Time
	MaxTimestamp *time.Time
}

func NewConfig() *Config {
	return &Config{Every: 1}
}

// NewConfigFromCLI parses the command line into a validated Config.
func NewConfigFromCLI() (*Config, error) {
	return newConfigFromArgs(flag.CommandLine, os.Args[1:])
}

func newConfigFromArgs(fs *flag.FlagSet, args []string) (*Config, error) {
	c := NewConfig()

	var minTime, maxTime string
	fs.StringVar(&c.UDPAddr, "udp", "", "Listen for spectra on this UDP address")
	fs.StringVar(&c.FilePath, "file", "", "Read spectra from a filterbank file")
	fs.StringVar(&c.DBPath, "db", "", "Read spectra from a session database")
	fs.Int64Var(&c.SessionID, "s", 1, "Session ID, with -db")
	fs.IntVar(&c.Channels, "n", 0, "Number of channels, required with -udp")
	fs.IntVar(&c.Every, "every", c.Every, "Log every Nth spectrum")
	fs.IntVar(&c.Count, "count", 0, "Stop after this many spectra")
	fs.StringVar(&minTime, "min-time", "", "Earliest timestamp, with -db (format "+time.DateTime+")")
	fs.StringVar(&maxTime, "max-time", "", "Latest timestamp, with -db (format "+time.DateTime+")")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	var err error
	if c.MinTimestamp, err = parseTime(minTime); err != nil {
		err = fmt.Errorf("invalid min-time: %w", err)
	} else if c.MaxTimestamp, err = parseTime(maxTime); err != nil {
		err = fmt.Errorf("invalid max-time: %w", err)
	} else {
		err = c.Validate()
	}

	if err != nil {
		fs.Usage()
		return nil, err
	}

	return c, nil
}

func (c *Config) Validate() error {
	var sources int
	for _, s := range []string{c.UDPAddr, c.FilePath, c.DBPath} {
		if s != "" {
			sources++
		}
	}

	switch {
	case sources != 1:
		return errors.New("exactly one of -udp, -file or -db is required")
	case c.UDPAddr != "" && c.Channels <= 0:
		return errors.New("number of channels is required with -udp")
	case c.DBPath != "" && c.SessionID <= 0:
		return errors.New("session id is required")
	case c.Every <= 0:
		return fmt.Errorf("invalid log interval: %d", c.Every)
	case c.Count < 0:
		return fmt.Errorf("invalid count: %d", c.Count)
	}
	return nil
}

func parseTime(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation(time.DateTime, s, time.Local)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
